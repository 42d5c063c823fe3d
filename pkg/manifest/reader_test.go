package manifest

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReaderLongForm(t *testing.T) {
	input := "/w\n" +
		"/w/a;1;;10;regular file;-;-;-\n" +
		"/w/sub;1;;4096;directory;-;-;-\n" +
		"/w/gone;0\n"

	r := NewReader(strings.NewReader(input))

	root, err := r.Root()
	require.NoError(t, err)
	assert.Equal(t, "/w", root)

	ts, err := r.Timestamp()
	require.NoError(t, err)
	assert.Empty(t, ts)

	var paths []string
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		paths = append(paths, rec.VirtualPath)
	}
	assert.Equal(t, []string{"/w/a", "/w/sub", "/w/gone"}, paths)
}

func TestReaderShortForm(t *testing.T) {
	input := "1686731415123456789\n" +
		"/w\n" +
		"/w/a;1;;10;regular file\n"

	r := NewReader(strings.NewReader(input))

	ts, err := r.Timestamp()
	require.NoError(t, err)
	assert.Equal(t, "1686731415123456789", ts)

	root, err := r.Root()
	require.NoError(t, err)
	assert.Equal(t, "/w", root)

	rec, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "/w/a", rec.VirtualPath)
	assert.True(t, rec.CreationTime.IsZero())

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReaderEmpty(t *testing.T) {
	r := NewReader(strings.NewReader(""))
	_, err := r.Root()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReaderMalformedRowAborts(t *testing.T) {
	r := NewReader(strings.NewReader("/w\n/w/a;1;too;few\n"))
	_, err := r.Next()
	assert.ErrorIs(t, err, ErrBadRecord)
}
