package utils

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPanicIfNeeded(t *testing.T) {
	assert.NotPanics(t, func() { PanicIfNeeded(nil) })

	var nilErr error
	assert.NotPanics(t, func() { PanicIfNeeded(nilErr) })

	boom := errors.New("boom")
	assert.PanicsWithValue(t, boom, func() { PanicIfNeeded(boom) })
	assert.PanicsWithValue(t, "usage record not found", func() {
		PanicIfNeeded(errors.New("record not found"), "usage record not found")
	})
}

func TestLoadConfig_ReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("AZ_INFER_TEST_KEY=from-file\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("AZ_INFER_TEST_KEY") })

	LoadConfig(dir)
	assert.Equal(t, "from-file", os.Getenv("AZ_INFER_TEST_KEY"))
}

func TestGetPersistentServerID(t *testing.T) {
	assert.Equal(t, "node-1", GetPersistentServerID("node-1", t.TempDir()))

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".server_id"), []byte("azinfer-abc\n"), 0644))
	assert.Equal(t, "azinfer-abc", GetPersistentServerID("", dir))
}

func TestCreateFolder(t *testing.T) {
	base := t.TempDir()
	a := filepath.Join(base, "a", "b")
	require.NoError(t, CreateFolder(a, ""))
	info, err := os.Stat(a)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
