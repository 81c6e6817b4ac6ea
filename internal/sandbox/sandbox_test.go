package sandbox

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveWithinRoot(t *testing.T) {
	root := New(t.TempDir())

	resolved, err := root.Resolve("/etc/sysctl.d/99-tunectl.conf")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(resolved))
	assert.Contains(t, resolved, "etc/sysctl.d")
}

func TestResolveRejectsSymlinkEscape(t *testing.T) {
	dir := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.Symlink(outside, filepath.Join(dir, "etc")))

	root := New(dir)
	_, err := root.Resolve("/etc/passwd")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside the root")
}

func TestWriteFileAtomic(t *testing.T) {
	root := New(t.TempDir())

	require.NoError(t, root.WriteFile("/etc/app.conf", []byte("a 1\n"), 0o600))

	data, err := root.ReadFile("/etc/app.conf")
	require.NoError(t, err)
	assert.Equal(t, "a 1\n", string(data))

	info, err := root.Stat("/etc/app.conf")
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// No temp droppings left behind.
	entries, err := os.ReadDir(filepath.Join(root.Dir(), "etc"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWriteFileOverwrites(t *testing.T) {
	root := New(t.TempDir())
	require.NoError(t, root.WriteFile("/etc/app.conf", []byte("old"), 0o644))
	require.NoError(t, root.WriteFile("/etc/app.conf", []byte("new"), 0o644))

	data, err := root.ReadFile("/etc/app.conf")
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestWriteFileInPlace(t *testing.T) {
	root := New(t.TempDir())
	require.NoError(t, root.WriteFileInPlace("/proc/sys/net/core/somaxconn", []byte("65535\n"), 0o644))

	data, err := root.ReadFile("/proc/sys/net/core/somaxconn")
	require.NoError(t, err)
	assert.Equal(t, "65535\n", string(data))
}

func TestRemoveMissingIsNoError(t *testing.T) {
	root := New(t.TempDir())
	assert.NoError(t, root.Remove("/etc/absent.conf"))
}

func TestRemove(t *testing.T) {
	root := New(t.TempDir())
	require.NoError(t, root.WriteFile("/etc/app.conf", []byte("x"), 0o644))
	require.NoError(t, root.Remove("/etc/app.conf"))

	_, err := root.ReadFile("/etc/app.conf")
	assert.True(t, os.IsNotExist(err))
}

func TestEmptyRootMeansHostRoot(t *testing.T) {
	assert.Equal(t, "/", New("").Dir())
}
