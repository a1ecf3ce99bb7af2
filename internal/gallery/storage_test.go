package gallery

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veresiye/defter/internal/platform/httpx"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 200, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestStorage(t *testing.T, maxBytes int64) (*LocalStorage, string) {
	t.Helper()
	root := t.TempDir()
	s, err := NewLocalStorage(root, "/media/", maxBytes)
	require.NoError(t, err)
	return s, root
}

func TestLocalStorageSavesSniffedImage(t *testing.T) {
	s, root := newTestStorage(t, 1<<20)

	rel, err := s.Save(bytes.NewReader(pngBytes(t)))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(rel, "gallery/"))
	assert.Equal(t, ".png", filepath.Ext(rel))
	assert.Equal(t, "/media/"+rel, s.URL(rel))

	_, err = os.Stat(filepath.Join(root, rel))
	require.NoError(t, err)

	require.NoError(t, s.Remove(rel))
	_, err = os.Stat(filepath.Join(root, rel))
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, s.Remove(rel), "removing twice")
}

func TestLocalStorageRejectsNonImages(t *testing.T) {
	s, _ := newTestStorage(t, 1<<20)

	_, err := s.Save(strings.NewReader("%PDF-1.4 not an image"))
	assert.ErrorIs(t, err, ErrUnsupportedImage)

	_, err = s.Save(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrImageRequired)
}

func TestLocalStorageEnforcesSizeLimit(t *testing.T) {
	data := pngBytes(t)
	s, _ := newTestStorage(t, int64(len(data)-1))

	_, err := s.Save(bytes.NewReader(data))
	var fe *httpx.FieldErrors
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, fe.Fields, "image")
}

func TestLocalStorageRemoveStaysInsideRoot(t *testing.T) {
	s, root := newTestStorage(t, 1<<20)
	outside := filepath.Join(filepath.Dir(root), "keep.txt")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0o644))
	t.Cleanup(func() { _ = os.Remove(outside) })

	require.NoError(t, s.Remove("../keep.txt"))
	_, err := os.Stat(outside)
	assert.NoError(t, err)
}
