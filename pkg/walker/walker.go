package walker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/stagehand-io/stagehand/pkg/localpath"
	"github.com/stagehand-io/stagehand/pkg/manifest"
	"github.com/stagehand-io/stagehand/pkg/metrics"
)

// Result is a visitor's reply to one manifest entry.
type Result int

const (
	// Continue proceeds with the next entry.
	Continue Result = iota
	// SkipSubtree drops all entries below the current directory.
	SkipSubtree
)

// Visitor receives the entries of a manifest in input order.
type Visitor interface {
	PreVisitDirectory(p *localpath.Path, attrs *manifest.FileRecord) (Result, error)
	VisitFile(p *localpath.Path, attrs *manifest.FileRecord) (Result, error)
}

// Factory builds the location-aware path handed to visitors. The executor
// installs a factory bound to the run's scheduler client.
type Factory func(path string, attrs *manifest.FileRecord, workdir string) *localpath.Path

// Walker streams task manifests and turns their rows into local paths.
type Walker struct {
	Factory Factory
}

// New returns a Walker creating paths through factory.
func New(factory Factory) *Walker {
	return &Walker{Factory: factory}
}

// Walk streams the manifest at manifestPath and calls visitor once per
// row, directories before their contents. A SkipSubtree reply suppresses
// every row below the current directory. workdir is attached to the
// created paths for later path translation.
func (w *Walker) Walk(manifestPath string, visitor Visitor, workdir string) error {
	f, err := os.Open(manifestPath)
	if err != nil {
		return fmt.Errorf("failed to open manifest: %w", err)
	}
	defer f.Close()

	r := manifest.NewReader(f)
	if _, err := r.Root(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}

	var skipped string
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to parse manifest %s: %w", manifestPath, err)
		}
		metrics.ManifestRowsParsed.Inc()

		if skipped != "" && strictDescendant(rec.VirtualPath, skipped) {
			continue
		}

		p := w.Factory(rec.VirtualPath, rec, workdir)
		var result Result
		if rec.IsDir() {
			result, err = visitor.PreVisitDirectory(p, rec)
		} else {
			result, err = visitor.VisitFile(p, rec)
		}
		if err != nil {
			return err
		}
		if result == SkipSubtree {
			skipped = rec.VirtualPath
		}
	}
}

// lookupParallelism bounds the comparison workers of Lookup.
var lookupParallelism = runtime.NumCPU()

// Lookup scans the manifest for the record of wanted, a path expressed in
// the current task's work directory. The manifest's scan-root header maps
// the path back to what the scanner recorded. Returns nil when the
// manifest is empty or has no matching row.
func (w *Walker) Lookup(ctx context.Context, manifestPath, wanted, workdir string) (*localpath.Path, error) {
	f, err := os.Open(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer f.Close()

	r := manifest.NewReader(f)
	root, err := r.Root()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	target := FakePath(wanted, root, workdir)

	// records are matched concurrently; only the first hit is kept, so
	// ordering between workers does not matter
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	records := make(chan *manifest.FileRecord)
	found := make(chan *manifest.FileRecord, 1)
	var once sync.Once

	var wg sync.WaitGroup
	for i := 0; i < lookupParallelism; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rec := range records {
				if rec.VirtualPath == target {
					once.Do(func() {
						found <- rec
						cancel()
					})
					return
				}
			}
		}()
	}

	var readErr error
feed:
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			readErr = fmt.Errorf("failed to parse manifest %s: %w", manifestPath, err)
			break
		}
		select {
		case records <- rec:
		case <-ctx.Done():
			break feed
		}
	}
	close(records)
	wg.Wait()

	select {
	case rec := <-found:
		return w.Factory(rec.VirtualPath, rec, workdir), nil
	default:
	}
	if readErr != nil {
		return nil, readErr
	}
	return nil, nil
}

// Exists reports whether wanted has a record in the manifest.
func (w *Walker) Exists(ctx context.Context, manifestPath, wanted, workdir string) (bool, error) {
	p, err := w.Lookup(ctx, manifestPath, wanted, workdir)
	return p != nil, err
}

// FakePath translates a path under the current work directory into the
// path the scanner would have recorded under root. The translation is
// purely textual prefix substitution.
func FakePath(path, root, workdir string) string {
	if workdir != "" && strings.HasPrefix(path, workdir) {
		return filepath.Clean(root + strings.TrimPrefix(path, workdir))
	}
	return path
}

func strictDescendant(path, dir string) bool {
	if path == dir {
		return false
	}
	return strings.HasPrefix(path, strings.TrimSuffix(dir, "/")+"/")
}
