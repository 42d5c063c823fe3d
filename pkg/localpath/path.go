package localpath

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/stagehand-io/stagehand/pkg/manifest"
	"github.com/stagehand-io/stagehand/pkg/retry"
	"github.com/stagehand-io/stagehand/pkg/types"
)

// LocationClient is the slice of the scheduler client a Path needs to
// resolve and report file locations. The reference is non-owning; paths
// never outlive the run.
type LocationClient interface {
	GetFileLocation(ctx context.Context, path string) (*types.FileLocation, error)
	AddFileLocation(ctx context.Context, update types.FileUpdate, overwrite bool) error
	GetDaemonOnNode(ctx context.Context, node string) (string, error)
}

// Dialer opens a data-plane connection to a daemon and retrieves one file.
type Dialer interface {
	Fetch(ctx context.Context, daemon, path string) (io.ReadCloser, error)
}

// Factory builds Paths bound to one scheduler client and data plane. The
// executor installs a Factory at run start; everything downstream creates
// paths through it.
type Factory struct {
	Client LocationClient
	Dialer Dialer
	Retry  retry.Policy
}

// New wraps path into a location-aware Path. attrs may be nil when the
// path was not discovered through a manifest; workdir is the work
// directory of the task that produced it, used for path translation.
func (f *Factory) New(path string, attrs *manifest.FileRecord, workdir string) *Path {
	return &Path{
		underlying: path,
		attrs:      attrs,
		workdir:    workdir,
		client:     f.Client,
		dialer:     f.Dialer,
		retry:      f.Retry,
	}
}

// Path is a file path whose I/O operations resolve to either a local open
// or a fetch from the node that owns the file. Reads never copy the file;
// the mutation operations in write.go promote it to a local copy first.
//
// downloaded and symlinksDone transition false to true at most once per
// instance.
type Path struct {
	underlying string
	attrs      *manifest.FileRecord
	workdir    string
	client     LocationClient
	dialer     Dialer
	retry      retry.Policy

	mu           sync.Mutex
	downloaded   bool
	symlinksDone bool
}

// String returns the underlying path.
func (p *Path) String() string {
	return p.underlying
}

// Workdir returns the originating task's work directory.
func (p *Path) Workdir() string {
	return p.workdir
}

// Attributes returns the manifest record the path was created from, or nil.
func (p *Path) Attributes() *manifest.FileRecord {
	return p.attrs
}

// derive creates a sibling Path sharing client, dialer and workdir. The
// derived instance carries no attributes and its own promotion state.
func (p *Path) derive(path string) *Path {
	return &Path{
		underlying: path,
		workdir:    p.workdir,
		client:     p.client,
		dialer:     p.dialer,
		retry:      p.retry,
	}
}

// Parent returns the parent directory as a Path.
func (p *Path) Parent() *Path {
	return p.derive(filepath.Dir(p.underlying))
}

// Resolve resolves other against this path: an absolute other stands
// alone, a relative other is joined onto this path.
func (p *Path) Resolve(other string) *Path {
	if filepath.IsAbs(other) {
		return p.derive(other)
	}
	return p.derive(filepath.Join(p.underlying, other))
}

// Normalize returns the path with redundant elements removed.
func (p *Path) Normalize() *Path {
	return p.derive(filepath.Clean(p.underlying))
}

// ToAbsolute returns the path in absolute form.
func (p *Path) ToAbsolute() (*Path, error) {
	abs, err := filepath.Abs(p.underlying)
	if err != nil {
		return nil, err
	}
	return p.derive(abs), nil
}

// Subpath returns the relative path built from the name components in
// [begin, end).
func (p *Path) Subpath(begin, end int) *Path {
	names := p.names()
	if begin < 0 || end > len(names) || begin >= end {
		return p.derive("")
	}
	return p.derive(filepath.Join(names[begin:end]...))
}

// Root returns the root component of the path, or "" for relative paths.
func (p *Path) Root() string {
	if filepath.IsAbs(p.underlying) {
		return "/"
	}
	return ""
}

// Filename returns the last path component.
func (p *Path) Filename() string {
	return filepath.Base(p.underlying)
}

// Name returns the i-th name component, or "" when out of range.
func (p *Path) Name(i int) string {
	names := p.names()
	if i < 0 || i >= len(names) {
		return ""
	}
	return names[i]
}

// NameCount returns the number of name components.
func (p *Path) NameCount() int {
	return len(p.names())
}

func (p *Path) names() []string {
	trimmed := strings.Trim(filepath.Clean(p.underlying), "/")
	if trimmed == "" || trimmed == "." {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// RealPath returns the link target recorded in the manifest when present,
// and otherwise resolves the path on the local file system.
func (p *Path) RealPath() (string, error) {
	if p.attrs != nil && p.attrs.RealPath != "" {
		return p.attrs.RealPath, nil
	}
	return filepath.EvalSymlinks(p.underlying)
}

// Compare orders two paths by their underlying path strings.
func (p *Path) Compare(other *Path) int {
	return strings.Compare(p.underlying, other.underlying)
}

// CompareString orders a Path against a plain path.
func (p *Path) CompareString(other string) int {
	return strings.Compare(p.underlying, other)
}

// IsDir answers from the manifest record when present, else from the
// file system.
func (p *Path) IsDir() bool {
	if p.attrs != nil {
		return p.attrs.IsDir()
	}
	info, err := os.Stat(p.underlying)
	return err == nil && info.IsDir()
}

// Size answers from the manifest record when present, else from the
// file system.
func (p *Path) Size() (int64, error) {
	if p.attrs != nil {
		return p.attrs.Size, nil
	}
	info, err := os.Stat(p.underlying)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Exists answers from the manifest record when present, else from the
// file system.
func (p *Path) Exists() bool {
	if p.attrs != nil {
		return p.attrs.Exists
	}
	_, err := os.Lstat(p.underlying)
	return err == nil
}

// Downloaded reports whether the file has been promoted to a local copy.
func (p *Path) Downloaded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.downloaded
}

func (p *Path) abs() string {
	if filepath.IsAbs(p.underlying) {
		return filepath.Clean(p.underlying)
	}
	abs, err := filepath.Abs(p.underlying)
	if err != nil {
		return p.underlying
	}
	return abs
}
