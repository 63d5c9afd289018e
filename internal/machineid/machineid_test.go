package machineid

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isLowerHex(s string) bool {
	for _, c := range s {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}

func TestDeriveShape(t *testing.T) {
	id := Derive()
	assert.Len(t, id, 16)
	assert.True(t, isLowerHex(id), "machine id %q is not lowercase hex", id)
}

func TestDeriveIsStable(t *testing.T) {
	assert.Equal(t, Derive(), Derive())
}

func TestGetCachesToDisk(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	first := Get()
	require.Len(t, first, 16)

	data, err := os.ReadFile(filepath.Join(home, ".ccusage", "machine_id"))
	require.NoError(t, err)
	assert.Equal(t, first+"\n", string(data))

	assert.Equal(t, first, Get())
}

func TestGetTrustsCachedFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cached := "abcdef0123456789"
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".ccusage"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(home, ".ccusage", "machine_id"), []byte(cached+"\n"), 0o644))

	assert.Equal(t, cached, Get())
}

func TestGetIgnoresMalformedCache(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	require.NoError(t, os.MkdirAll(filepath.Join(home, ".ccusage"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(home, ".ccusage", "machine_id"), []byte("short\n"), 0o644))

	id := Get()
	assert.Len(t, id, 16)
	assert.NotEqual(t, "short", id)
}

func TestHostnameUserNeverEmpty(t *testing.T) {
	v := hostnameUser()
	assert.Contains(t, v, ":")
}
