package rawio

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWithTempFile_RemovedOnSuccess(t *testing.T) {
	dir := t.TempDir()
	var seen string

	err := WithTempFile(dir, "job-*.bin", []byte("abc"), zap.NewNop(), func(path string) error {
		seen = path
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, []byte("abc"), data)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(seen))
	assert.NoFileExists(t, seen)
	assertEmptyDir(t, dir)
}

func TestWithTempFile_RemovedOnError(t *testing.T) {
	dir := t.TempDir()
	boom := errors.New("boom")

	err := WithTempFile(dir, "job-*.bin", []byte("abc"), nil, func(string) error {
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assertEmptyDir(t, dir)
}

func TestWithTempFile_RemovedOnPanic(t *testing.T) {
	dir := t.TempDir()

	assert.PanicsWithValue(t, "kaboom", func() {
		_ = WithTempFile(dir, "job-*.bin", []byte("abc"), nil, func(string) error {
			panic("kaboom")
		})
	})
	assertEmptyDir(t, dir)
}

func TestWithTempFile_UniqueNames(t *testing.T) {
	dir := t.TempDir()
	var first, second string

	require.NoError(t, WithTempFile(dir, "job-*.bin", nil, nil, func(outer string) error {
		first = outer
		return WithTempFile(dir, "job-*.bin", nil, nil, func(inner string) error {
			second = inner
			return nil
		})
	}))
	assert.NotEqual(t, first, second)
}

func TestWithTempFile_CreateErrorPropagates(t *testing.T) {
	called := false
	err := WithTempFile(filepath.Join(t.TempDir(), "missing"), "job-*.bin", []byte("x"), nil, func(string) error {
		called = true
		return nil
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create temp file")
	assert.False(t, called)
}

func TestWithTempFile_FnCanRemoveFile(t *testing.T) {
	dir := t.TempDir()
	err := WithTempFile(dir, "job-*.bin", []byte("x"), zap.NewNop(), func(path string) error {
		return os.Remove(path)
	})
	require.NoError(t, err)
	assertEmptyDir(t, dir)
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
