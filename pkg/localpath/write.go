package localpath

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/stagehand-io/stagehand/pkg/log"
	"github.com/stagehand-io/stagehand/pkg/metrics"
	"github.com/stagehand-io/stagehand/pkg/types"
)

const downloadChunkSize = 8 * 1024

// Write replaces the file content. The file is promoted to a local copy
// first and the resulting location change is reported to the scheduler.
func (p *Path) Write(ctx context.Context, data []byte) error {
	return p.mutate(ctx, func() error {
		return os.WriteFile(p.underlying, data, 0644)
	})
}

// Append appends data to the file.
func (p *Path) Append(ctx context.Context, data []byte) error {
	return p.mutate(ctx, func() error {
		f, err := os.OpenFile(p.underlying, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			return err
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	})
}

// SetModTime updates the file's modification time.
func (p *Path) SetModTime(ctx context.Context, t time.Time) error {
	return p.mutate(ctx, func() error {
		return os.Chtimes(p.underlying, time.Time{}, t)
	})
}

// Touch updates the modification time to now, creating the file if it
// does not exist.
func (p *Path) Touch(ctx context.Context) error {
	return p.mutate(ctx, func() error {
		f, err := os.OpenFile(p.underlying, os.O_WRONLY|os.O_CREATE, 0644)
		if err != nil {
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		now := time.Now()
		return os.Chtimes(p.underlying, now, now)
	})
}

// OpenWrite promotes the file and returns a writer over the local copy.
// The location update is reported when the writer is closed.
func (p *Path) OpenWrite(ctx context.Context) (io.WriteCloser, error) {
	loc, err := p.location(ctx)
	if err != nil {
		return nil, err
	}
	justDownloaded, err := p.download(ctx, loc)
	if err != nil {
		return nil, err
	}
	before := p.fileState()

	f, err := os.OpenFile(p.underlying, os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}
	return &reportingWriter{
		File:           f,
		path:           p,
		loc:            loc,
		before:         before,
		justDownloaded: justDownloaded,
	}, nil
}

// reportingWriter reports the location change once the caller finishes
// writing.
type reportingWriter struct {
	*os.File
	path           *Path
	loc            *types.FileLocation
	before         fileState
	justDownloaded bool
}

func (w *reportingWriter) Close() error {
	if err := w.File.Close(); err != nil {
		return err
	}
	// the report uses a fresh context: the write completed locally and the
	// scheduler must hear about it even if the caller's context is done
	return w.path.report(context.Background(), w.loc, w.before, w.justDownloaded)
}

// mutate runs op against a locally owned copy of the file and reports the
// outcome to the scheduler.
func (p *Path) mutate(ctx context.Context, op func() error) error {
	loc, err := p.location(ctx)
	if err != nil {
		return err
	}
	justDownloaded, err := p.download(ctx, loc)
	if err != nil {
		return err
	}
	before := p.fileState()

	if err := op(); err != nil {
		return err
	}

	return p.report(ctx, loc, before, justDownloaded)
}

// download copies the remote file to the underlying path. It is a no-op
// when this node already owns the file. Returns whether a copy happened.
func (p *Path) download(ctx context.Context, loc *types.FileLocation) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.downloaded || loc.SameAsEngine {
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(p.underlying), 0755); err != nil {
		return false, fmt.Errorf("failed to create parent of %s: %w", p.underlying, err)
	}

	rc, err := p.openRemote(ctx, loc)
	if err != nil {
		return false, err
	}
	defer rc.Close()

	tmp := p.underlying + ".partial." + uuid.NewString()
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return false, fmt.Errorf("failed to create download target: %w", err)
	}
	if _, err := io.CopyBuffer(f, rc, make([]byte, downloadChunkSize)); err != nil {
		f.Close()
		os.Remove(tmp)
		return false, fmt.Errorf("failed to download %s: %w", loc.Path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return false, err
	}
	// the underlying path may be a symlink to the remote-staged location
	if _, err := os.Lstat(p.underlying); err == nil {
		if err := os.Remove(p.underlying); err != nil {
			os.Remove(tmp)
			return false, err
		}
	}
	if err := os.Rename(tmp, p.underlying); err != nil {
		os.Remove(tmp)
		return false, err
	}

	p.downloaded = true
	metrics.DownloadsTotal.Inc()
	return true, nil
}

// report tells the scheduler about a new or changed local copy. A changed
// modification time or size overwrites the index entry; a fresh download only adds
// a copy. Both echo the wrapper id of the location that was read.
func (p *Path) report(ctx context.Context, loc *types.FileLocation, before fileState, justDownloaded bool) error {
	after := p.fileState()
	changed := !after.Equal(before)
	if !changed && !justDownloaded {
		return nil
	}

	update := types.FileUpdate{
		Path:              p.abs(),
		Size:              after.size,
		Timestamp:         after.mtime.UnixMilli(),
		LocationWrapperID: loc.LocationWrapperID,
	}
	if err := p.client.AddFileLocation(ctx, update, changed); err != nil {
		logger := log.WithPath(p.underlying)
		logger.Error().Err(err).Msg("failed to report file location")
		return fmt.Errorf("failed to report location of %s: %w", p.underlying, err)
	}
	if changed {
		metrics.LocationsReported.WithLabelValues("overwrite").Inc()
	} else {
		metrics.LocationsReported.WithLabelValues("add").Inc()
	}
	return nil
}

// fileState captures what change detection compares. Size is included
// because file system timestamp granularity can hide a quick rewrite.
type fileState struct {
	mtime time.Time
	size  int64
}

func (s fileState) Equal(other fileState) bool {
	return s.mtime.Equal(other.mtime) && s.size == other.size
}

func (p *Path) fileState() fileState {
	info, err := os.Stat(p.underlying)
	if err != nil {
		return fileState{}
	}
	return fileState{mtime: info.ModTime(), size: info.Size()}
}
