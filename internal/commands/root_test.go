package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokenuze/tokenuze/internal/types"
)

func TestParseDateBounds(t *testing.T) {
	since, until, err := parseDateBounds("20251101", "20251130")
	require.NoError(t, err)
	assert.Equal(t, "2025-11-01", since)
	assert.Equal(t, "2025-11-30", until)

	_, _, err = parseDateBounds("2025-11-01", "")
	assert.ErrorIs(t, err, types.ErrInvalidUsage)

	_, _, err = parseDateBounds("20251101", "20251001")
	assert.ErrorIs(t, err, types.ErrInvalidUsage)

	_, _, err = parseDateBounds("20251340", "")
	assert.ErrorIs(t, err, types.ErrInvalidUsage)

	since, until, err = parseDateBounds("", "")
	require.NoError(t, err)
	assert.Empty(t, since)
	assert.Empty(t, until)
}

func TestSelectProviders(t *testing.T) {
	all, err := selectProviders(nil)
	require.NoError(t, err)
	names := make([]string, 0, len(all))
	for _, cfg := range all {
		names = append(names, cfg.Name)
	}
	assert.Equal(t, []string{"amp", "claude", "codex", "crush", "gemini", "opencode", "zed"}, names)

	some, err := selectProviders([]string{"codex", "zed", "codex"})
	require.NoError(t, err)
	require.Len(t, some, 2)
	assert.Equal(t, "codex", some[0].Name)
	assert.Equal(t, "zed", some[1].Name)

	_, err = selectProviders([]string{"cursor"})
	assert.ErrorIs(t, err, types.ErrInvalidUsage)
}

func TestResolveOffsetFlag(t *testing.T) {
	off, err := resolveOffset("+09:00")
	require.NoError(t, err)
	assert.Equal(t, 540, off)

	off, err = resolveOffset("UTC")
	require.NoError(t, err)
	assert.Equal(t, 0, off)

	_, err = resolveOffset("mars")
	assert.Error(t, err)
}

func TestRootCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"since", "until", "tz", "pretty", "agent", "upload", "sessions", "json", "machine-id", "breakdown", "offline", "debug"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "missing flag --%s", name)
	}
	assert.NotEmpty(t, cmd.Version)
}
