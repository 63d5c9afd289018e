package opencode

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokenuze/tokenuze/internal/provider"
	"github.com/tokenuze/tokenuze/internal/types"
)

func parseFixture(t *testing.T, content string) []types.TokenUsageEvent {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "ses_42.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, ok := provider.Lookup("opencode")
	require.True(t, ok)

	ctx := &provider.ParseContext{
		Provider: cfg.Name,
		Logger:   slog.New(slog.NewTextHandler(os.Stderr, nil)),
	}
	sink := provider.NewEventSink(ctx)
	require.NoError(t, cfg.ParseSession(ctx, "ses_42", path, sink))
	return sink.Events()
}

func TestParseSessionTokens(t *testing.T) {
	events := parseFixture(t, `{"timestamp":"2025-11-01T10:00:00Z","modelID":"claude-sonnet-4-5-20250929","tokens":{"input":100,"output":20,"reasoning":5,"cache":{"read":30,"write":10}}}
`)

	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, "ses_42", ev.SessionID)
	assert.Equal(t, uint64(100), ev.Usage.InputTokens)
	assert.Equal(t, uint64(20), ev.Usage.OutputTokens)
	assert.Equal(t, uint64(5), ev.Usage.ReasoningOutputTokens)
	assert.Equal(t, uint64(30), ev.Usage.CachedInputTokens)
	assert.Equal(t, uint64(10), ev.Usage.CacheCreationInputTokens)
	assert.Equal(t, uint64(165), ev.Usage.TotalTokens)
	assert.Equal(t, uint64(140), ev.DisplayInputTokens)
}

func TestParseSessionSkipsRecordsWithoutTokens(t *testing.T) {
	events := parseFixture(t, `{"timestamp":"2025-11-01T10:00:00Z","role":"user","content":"hi"}
{"timestamp":"2025-11-01T10:01:00Z","modelID":"big-pickle","tokens":{"input":1,"output":1}}
`)

	require.Len(t, events, 1)
	assert.Equal(t, "big-pickle", events[0].ModelName)
}
