package scan

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagehand-io/stagehand/pkg/manifest"
)

// buildTree lays out a scratch root with a work directory whose symlink
// points at a sibling staging directory.
func buildTree(t *testing.T) (root, work, stash string) {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	work = filepath.Join(root, "work")
	stash = filepath.Join(root, "stash")
	require.NoError(t, os.MkdirAll(filepath.Join(work, "sub"), 0755))
	require.NoError(t, os.MkdirAll(stash, 0755))

	require.NoError(t, os.WriteFile(filepath.Join(work, "a.txt"), []byte("alpha"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(work, "sub", "b.txt"), []byte("beta"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(stash, "c.txt"), []byte("gamma"), 0644))

	require.NoError(t, os.Symlink(stash, filepath.Join(work, "link")))
	require.NoError(t, os.Symlink(filepath.Join(root, "nowhere"), filepath.Join(work, "dangling")))
	return root, work, stash
}

func readAll(t *testing.T, out []byte) (string, []*manifest.FileRecord) {
	t.Helper()
	r := manifest.NewReader(bytes.NewReader(out))
	root, err := r.Root()
	require.NoError(t, err)

	var recs []*manifest.FileRecord
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		recs = append(recs, rec)
	}
	return root, recs
}

func TestScannerLong(t *testing.T) {
	root, work, stash := buildTree(t)

	var buf bytes.Buffer
	s := &Scanner{LocalRoot: root, Mode: ModeLong}
	require.NoError(t, s.Run(&buf, []string{work}))

	header, recs := readAll(t, buf.Bytes())
	assert.Equal(t, work, header)

	byPath := map[string]*manifest.FileRecord{}
	var order []string
	for _, rec := range recs {
		byPath[rec.VirtualPath] = rec
		order = append(order, rec.VirtualPath)
	}

	assert.Equal(t, []string{
		filepath.Join(work, "a.txt"),
		filepath.Join(work, "dangling"),
		filepath.Join(work, "link"),
		filepath.Join(work, "link", "c.txt"),
		filepath.Join(work, "sub"),
		filepath.Join(work, "sub", "b.txt"),
	}, order)

	a := byPath[filepath.Join(work, "a.txt")]
	assert.Equal(t, manifest.TypeRegular, a.Type)
	assert.Equal(t, int64(5), a.Size)
	assert.Empty(t, a.RealPath)
	assert.False(t, a.ModificationTime.IsZero())
	assert.False(t, a.CreationTime.IsZero())

	// the dangling link is recorded with the missing flag only
	dangling := byPath[filepath.Join(work, "dangling")]
	assert.False(t, dangling.Exists)
	assert.True(t, dangling.IsLink())

	// the link row carries its resolved target
	link := byPath[filepath.Join(work, "link")]
	assert.Equal(t, manifest.TypeSymlink, link.Type)
	assert.Equal(t, stash, link.RealPath)

	// descendants of a followed link keep the virtual view but record the
	// node-local location
	c := byPath[filepath.Join(work, "link", "c.txt")]
	require.NotNil(t, c)
	assert.Equal(t, manifest.TypeRegular, c.Type)
	assert.Equal(t, filepath.Join(stash, "c.txt"), c.RealPath)

	// a directory row precedes its contents
	assert.Less(t,
		indexOf(order, filepath.Join(work, "sub")),
		indexOf(order, filepath.Join(work, "sub", "b.txt")))
}

func TestScannerShort(t *testing.T) {
	root, work, _ := buildTree(t)

	var buf bytes.Buffer
	s := &Scanner{LocalRoot: root, Mode: ModeShort}
	require.NoError(t, s.Run(&buf, []string{work}))

	r := manifest.NewReader(bytes.NewReader(buf.Bytes()))
	ts, err := r.Timestamp()
	require.NoError(t, err)
	assert.NotEmpty(t, ts)

	header, err := r.Root()
	require.NoError(t, err)
	assert.Equal(t, work, header)

	rec, err := r.Next()
	require.NoError(t, err)
	assert.True(t, rec.ModificationTime.IsZero())
}

func TestScannerSkipsLinkTargetInsideScanDir(t *testing.T) {
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	work := filepath.Join(root, "work")
	require.NoError(t, os.MkdirAll(filepath.Join(work, "inner"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(work, "inner", "x"), []byte("x"), 0644))
	require.NoError(t, os.Symlink(filepath.Join(work, "inner"), filepath.Join(work, "loop")))

	var buf bytes.Buffer
	s := &Scanner{LocalRoot: root, Mode: ModeLong}
	require.NoError(t, s.Run(&buf, []string{work}))

	_, recs := readAll(t, buf.Bytes())
	for _, rec := range recs {
		assert.NotEqual(t, filepath.Join(work, "loop", "x"), rec.VirtualPath,
			"link target inside the scanned tree must not be descended into")
	}
}

func TestScannerErrors(t *testing.T) {
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	work := filepath.Join(root, "work")
	require.NoError(t, os.MkdirAll(work, 0755))
	outside := t.TempDir()

	tests := []struct {
		name      string
		localRoot string
		dirs      []string
	}{
		{"missing local root", filepath.Join(root, "nope"), []string{work}},
		{"missing scan dir", root, []string{filepath.Join(root, "nope")}},
		{"scan dir outside local root", work, []string{outside}},
		{"no scan dir", root, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Scanner{LocalRoot: tt.localRoot, Mode: ModeLong}
			assert.Error(t, s.Run(&bytes.Buffer{}, tt.dirs))
		})
	}
}

func TestParseMode(t *testing.T) {
	for _, ok := range []string{"short", "long"} {
		_, err := ParseMode(ok)
		assert.NoError(t, err)
	}
	_, err := ParseMode("full")
	assert.Error(t, err)
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
