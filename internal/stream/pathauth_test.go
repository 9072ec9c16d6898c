package stream

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathAllowed(t *testing.T) {
	root := t.TempDir()
	other := t.TempDir()
	inside := filepath.Join(root, "Movies", "film.mkv")
	require.NoError(t, os.MkdirAll(filepath.Dir(inside), 0o755))
	require.NoError(t, os.WriteFile(inside, []byte("x"), 0o644))

	assert.True(t, PathAllowed(inside, []string{root}))
	assert.False(t, PathAllowed(inside, []string{other}))
	assert.False(t, PathAllowed(inside, nil))

	// Escaping the root with dot segments is caught by canonicalization.
	sneaky := filepath.Join(root, "..", filepath.Base(other), "x.mkv")
	assert.False(t, PathAllowed(sneaky, []string{root}))
}

func TestPathAllowedSymlink(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	target := filepath.Join(outside, "secret.mkv")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))

	link := filepath.Join(root, "link.mkv")
	require.NoError(t, os.Symlink(target, link))

	// The symlink resolves outside the library root.
	assert.False(t, PathAllowed(link, []string{root}))
	assert.True(t, PathAllowed(link, []string{outside}))
}

func TestSubtitlePathRoundTrip(t *testing.T) {
	path := "/media/movies/Film (2020)/Film.en.srt"
	token := EncodeSubtitlePath(path)
	decoded, err := DecodeSubtitlePath(token)
	require.NoError(t, err)
	assert.Equal(t, path, decoded)

	_, err = DecodeSubtitlePath("zz-not-hex")
	assert.Error(t, err)
}

func TestSubtitleContentType(t *testing.T) {
	assert.Equal(t, "application/x-subrip", SubtitleContentType("a.srt"))
	assert.Equal(t, "text/vtt", SubtitleContentType("a.vtt"))
	assert.Equal(t, "text/x-ssa", SubtitleContentType("a.ass"))
	assert.Equal(t, "text/x-ssa", SubtitleContentType("a.ssa"))
	assert.Equal(t, "application/octet-stream", SubtitleContentType("a.sup"))
	assert.Equal(t, "text/plain", SubtitleContentType("a.idx"))
	assert.Equal(t, "application/octet-stream", SubtitleContentType("a.xyz"))
}
