package fileutils_test

import (
	"os"
	"path/filepath"
	"testing"

	"fjacquet/statement-ledger/internal/fileutils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileExists(t *testing.T) {
	tmpDir := t.TempDir()

	testFile := filepath.Join(tmpDir, "test.txt")
	require.NoError(t, os.WriteFile(testFile, []byte("test"), 0600))

	assert.True(t, fileutils.FileExists(testFile))
	assert.False(t, fileutils.FileExists(filepath.Join(tmpDir, "nonexistent.txt")))
	assert.False(t, fileutils.FileExists(tmpDir))
	assert.True(t, fileutils.DirectoryExists(tmpDir))
	assert.False(t, fileutils.DirectoryExists(testFile))
}

func TestReadFileLimited(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "statement.csv")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0600))

	data, err := fileutils.ReadFileLimited(path, 0)
	require.NoError(t, err)
	assert.Len(t, data, 10)

	data, err = fileutils.ReadFileLimited(path, 4)
	require.NoError(t, err)
	assert.Len(t, data, 5, "one byte past the limit so the caller can reject the file")

	_, err = fileutils.ReadFileLimited(filepath.Join(tmpDir, "missing.csv"), 0)
	assert.Error(t, err)
}

func TestWriteFileCreatesParents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "out.csv")
	require.NoError(t, fileutils.WriteFile(path, []byte("x"), 0600))
	assert.True(t, fileutils.FileExists(path))

	f, err := fileutils.CreateFile(filepath.Join(filepath.Dir(path), "c", "new.json"))
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestMimeForPath(t *testing.T) {
	tests := []struct {
		path     string
		expected string
	}{
		{"statement.PDF", "application/pdf"},
		{"export.csv", "text/csv"},
		{"dump.txt", "text/plain"},
		{"camt053.xml", "application/xml"},
		{"image.png", ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.expected, fileutils.MimeForPath(tt.path))
		})
	}
}

func TestListStatementFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.csv", "a.pdf", "notes.md", ".hidden.csv"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.csv"), 0750))

	files, err := fileutils.ListStatementFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.pdf"), filepath.Join(dir, "b.csv")}, files)

	_, err = fileutils.ListStatementFiles(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
