package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dublin-rag/internal/models"
)

func touch(t *testing.T, path string, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestIsSupported(t *testing.T) {
	assert.True(t, IsSupported("DUBLIN REGULATIONS.pdf"))
	assert.True(t, IsSupported("/data/annex.PDF"))
	assert.False(t, IsSupported("notes.txt"))
	assert.False(t, IsSupported("pdf"))
}

func TestListSourcesDirectory(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "b.pdf"), "")
	touch(t, filepath.Join(dir, "a.PDF"), "")
	touch(t, filepath.Join(dir, "readme.md"), "")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.pdf"), 0o755))

	files, skipped, err := ListSources(dir)
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join(dir, "a.PDF"), filepath.Join(dir, "b.pdf")}, files)
	assert.Equal(t, []string{filepath.Join(dir, "readme.md")}, skipped)
}

func TestListSourcesSingleFile(t *testing.T) {
	dir := t.TempDir()
	pdfPath := filepath.Join(dir, "one.pdf")
	txtPath := filepath.Join(dir, "one.txt")
	touch(t, pdfPath, "")
	touch(t, txtPath, "")

	files, skipped, err := ListSources(pdfPath)
	require.NoError(t, err)
	assert.Equal(t, []string{pdfPath}, files)
	assert.Empty(t, skipped)

	_, _, err = ListSources(txtPath)
	assert.ErrorIs(t, err, models.ErrUnsupportedFile)

	_, _, err = ListSources(filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestPDFExtractorErrors(t *testing.T) {
	dir := t.TempDir()
	e := NewPDFExtractor()

	_, err := e.Extract(filepath.Join(dir, "missing.pdf"))
	assert.Error(t, err)

	corrupt := filepath.Join(dir, "corrupt.pdf")
	touch(t, corrupt, "this is not a pdf document")
	pages, err := e.Extract(corrupt)
	assert.Error(t, err)
	assert.Nil(t, pages)

	_, err = e.Extract(filepath.Join(dir, "notes.txt"))
	assert.ErrorIs(t, err, models.ErrUnsupportedFile)
}
