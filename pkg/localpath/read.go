package localpath

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/stagehand-io/stagehand/pkg/log"
	"github.com/stagehand-io/stagehand/pkg/metrics"
	"github.com/stagehand-io/stagehand/pkg/retry"
	"github.com/stagehand-io/stagehand/pkg/types"
)

// location asks the scheduler where the file currently lives and
// materialises any symlinks the answer carries.
func (p *Path) location(ctx context.Context) (*types.FileLocation, error) {
	loc, err := p.client.GetFileLocation(ctx, p.abs())
	if err != nil {
		return nil, fmt.Errorf("failed to locate %s: %w", p.underlying, err)
	}
	p.materialiseSymlinks(loc.Symlinks)
	return loc, nil
}

// materialiseSymlinks creates the links the scheduler reported, at most
// once per Path instance. An existing source is replaced. Failures are
// logged and skipped; a missing link surfaces later as a read error on
// the affected path.
func (p *Path) materialiseSymlinks(links []types.SymlinkSpec) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.symlinksDone {
		return
	}
	p.symlinksDone = true

	logger := log.WithComponent("localpath")
	for _, l := range links {
		if _, err := os.Lstat(l.Src); err == nil {
			if err := os.RemoveAll(l.Src); err != nil {
				logger.Warn().Err(err).Str("src", l.Src).Msg("could not remove stale link source")
				continue
			}
		} else if err := os.MkdirAll(filepath.Dir(l.Src), 0755); err != nil {
			logger.Warn().Err(err).Str("src", l.Src).Msg("could not create link parent")
			continue
		}
		if err := os.Symlink(l.Dst, l.Src); err != nil {
			logger.Warn().Err(err).Str("src", l.Src).Str("dst", l.Dst).Msg("could not create link")
			continue
		}
		metrics.SymlinksMaterialised.Inc()
	}
}

// Open returns a reader over the file's current content. Files owned by
// this node are opened directly; remote files are streamed from the owning
// daemon without creating a local copy.
func (p *Path) Open(ctx context.Context) (io.ReadCloser, error) {
	loc, err := p.location(ctx)
	if err != nil {
		return nil, err
	}
	if loc.SameAsEngine || p.Downloaded() {
		return os.Open(p.underlying)
	}
	return p.openRemote(ctx, loc)
}

// openRemote fetches loc over the data plane, re-resolving the daemon
// address between attempts to ride out daemon re-scheduling.
func (p *Path) openRemote(ctx context.Context, loc *types.FileLocation) (io.ReadCloser, error) {
	daemon := loc.Daemon

	var rc io.ReadCloser
	err := retry.Do(ctx, p.retry, func(attempt int) error {
		if attempt > 0 {
			metrics.FtpRetriesTotal.Inc()
			if addr, err := p.client.GetDaemonOnNode(ctx, loc.Node); err == nil {
				daemon = addr
			}
		}
		var err error
		rc, err = p.dialer.Fetch(ctx, daemon, loc.Path)
		return err
	})
	if err != nil {
		metrics.FtpFetchesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to fetch %s from %s: %w", loc.Path, daemon, err)
	}
	metrics.FtpFetchesTotal.WithLabelValues("ok").Inc()
	return countingReader{rc}, nil
}

// Bytes returns the raw bytes of the file.
func (p *Path) Bytes(ctx context.Context) ([]byte, error) {
	rc, err := p.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Text returns the file content as a string.
func (p *Path) Text(ctx context.Context) (string, error) {
	b, err := p.Bytes(ctx)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Lines returns the file content split into lines.
func (p *Path) Lines(ctx context.Context) ([]string, error) {
	rc, err := p.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var lines []string
	sc := bufio.NewScanner(rc)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// WithReader opens the file and hands the reader to fn, closing it on all
// exit paths.
func (p *Path) WithReader(ctx context.Context, fn func(io.Reader) error) error {
	rc, err := p.Open(ctx)
	if err != nil {
		return err
	}
	defer rc.Close()
	return fn(rc)
}

// EachLine streams the file line by line to fn.
func (p *Path) EachLine(ctx context.Context, fn func(line string) error) error {
	return p.WithReader(ctx, func(r io.Reader) error {
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
		for sc.Scan() {
			if err := fn(sc.Text()); err != nil {
				return err
			}
		}
		return sc.Err()
	})
}

// countingReader feeds the byte counter as remote content streams through.
type countingReader struct {
	io.ReadCloser
}

func (c countingReader) Read(b []byte) (int, error) {
	n, err := c.ReadCloser.Read(b)
	metrics.FtpBytesRead.Add(float64(n))
	return n, err
}
