package localpath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagehand-io/stagehand/pkg/manifest"
)

func newPlain(path string) *Path {
	f := &Factory{}
	return f.New(path, nil, "/current/task")
}

func TestNavigation(t *testing.T) {
	p := newPlain("/w/run1/sub/file.txt")

	assert.Equal(t, "/w/run1/sub", p.Parent().String())
	assert.Equal(t, "file.txt", p.Filename())
	assert.Equal(t, "/", p.Root())
	assert.Equal(t, "w", p.Name(0))
	assert.Equal(t, "file.txt", p.Name(3))
	assert.Equal(t, "", p.Name(4))
	assert.Equal(t, 4, p.NameCount())
	assert.Equal(t, "run1/sub", p.Subpath(1, 3).String())
}

func TestResolve(t *testing.T) {
	p := newPlain("/w/run1")

	// relative operands resolve against this path
	assert.Equal(t, "/w/run1/out/x.bam", p.Resolve("out/x.bam").String())
	// absolute operands stand alone
	assert.Equal(t, "/elsewhere/y", p.Resolve("/elsewhere/y").String())
}

func TestNormalize(t *testing.T) {
	p := newPlain("/w/run1/../run2/./x")
	assert.Equal(t, "/w/run2/x", p.Normalize().String())
}

func TestDerivedPathsInheritBinding(t *testing.T) {
	f := &Factory{}
	p := f.New("/w/run1/x", nil, "/current/task")

	child := p.Parent().Resolve("y")
	assert.Equal(t, "/current/task", child.Workdir())
	assert.Nil(t, child.Attributes())
}

func TestCompare(t *testing.T) {
	a := newPlain("/w/a")
	b := newPlain("/w/b")

	assert.Negative(t, a.Compare(b))
	assert.Positive(t, b.Compare(a))
	assert.Zero(t, a.Compare(newPlain("/w/a")))
	assert.Zero(t, a.CompareString("/w/a"))
}

func TestAttributeQueries(t *testing.T) {
	f := &Factory{}
	attrs := &manifest.FileRecord{
		VirtualPath: "/w/x",
		Exists:      true,
		RealPath:    "/scratch/x",
		Size:        1234,
		Type:        manifest.TypeSymlink,
	}
	p := f.New("/w/x", attrs, "")

	size, err := p.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(1234), size)
	assert.False(t, p.IsDir())
	assert.True(t, p.Exists())

	real, err := p.RealPath()
	require.NoError(t, err)
	assert.Equal(t, "/scratch/x", real)
}

func TestAttributeQueriesFallBackToFilesystem(t *testing.T) {
	dir := t.TempDir()
	p := newPlain(dir)

	assert.True(t, p.IsDir())
	assert.True(t, p.Exists())

	missing := newPlain(dir + "/nope")
	assert.False(t, missing.Exists())
	_, err := missing.Size()
	assert.Error(t, err)
}
