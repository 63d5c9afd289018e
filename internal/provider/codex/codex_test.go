package codex

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
	path := filepath.Join(dir, "rollout-test.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, ok := provider.Lookup("codex")
	require.True(t, ok)

	ctx := &provider.ParseContext{
		Provider:                 cfg.Name,
		CachedCountsOverlapInput: cfg.CachedCountsOverlapInput,
		LegacyFallbackModel:      cfg.LegacyFallbackModel,
		Logger:                   slog.New(slog.NewTextHandler(os.Stderr, nil)),
	}
	sink := provider.NewEventSink(ctx)
	require.NoError(t, cfg.ParseSession(ctx, "rollout-test", path, sink))
	return sink.Events()
}

func TestParseSessionLastTokenUsage(t *testing.T) {
	events := parseFixture(t, `
{"timestamp":"2025-11-01T09:59:00Z","type":"turn_context","payload":{"model":"gpt-5-codex"}}
{"timestamp":"2025-11-01T10:00:00Z","type":"event_msg","payload":{"type":"token_count","info":{"last_token_usage":{"input_tokens":1000,"cached_input_tokens":200,"output_tokens":50}}}}
`)

	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, "gpt-5-codex", ev.ModelName)
	assert.False(t, ev.IsFallbackModel)
	assert.Equal(t, "rollout-test", ev.SessionID)
	assert.Equal(t, "2025-11-01", ev.LocalISODate)
	// cached tokens overlap input: 1000 input displays as 1000 but stores 800
	assert.Equal(t, uint64(1000), ev.DisplayInputTokens)
	assert.Equal(t, uint64(800), ev.Usage.InputTokens)
	assert.Equal(t, uint64(200), ev.Usage.CachedInputTokens)
	assert.Equal(t, uint64(50), ev.Usage.OutputTokens)
}

func TestParseSessionCumulativeTotals(t *testing.T) {
	events := parseFixture(t, `
{"timestamp":"2025-11-01T09:59:00Z","type":"turn_context","payload":{"model":"gpt-5-codex"}}
{"timestamp":"2025-11-01T10:00:00Z","type":"event_msg","payload":{"type":"token_count","info":{"total_token_usage":{"input_tokens":100,"output_tokens":10,"total_tokens":110}}}}
{"timestamp":"2025-11-01T10:05:00Z","type":"event_msg","payload":{"type":"token_count","info":{"total_token_usage":{"input_tokens":300,"output_tokens":40,"total_tokens":340}}}}
`)

	require.Len(t, events, 2)
	assert.Equal(t, uint64(110), events[0].Usage.TotalTokens)
	assert.Equal(t, uint64(230), events[1].Usage.TotalTokens)
	assert.Equal(t, uint64(200), events[1].Usage.InputTokens)
	assert.Equal(t, uint64(30), events[1].Usage.OutputTokens)
}

func TestParseSessionPrefersLastAndAdvancesCumulative(t *testing.T) {
	// When both counters appear, last_token_usage is the delta and the
	// cumulative state still advances from total_token_usage.
	events := parseFixture(t, `
{"timestamp":"2025-11-01T09:59:00Z","type":"turn_context","payload":{"model":"gpt-5-codex"}}
{"timestamp":"2025-11-01T10:00:00Z","type":"event_msg","payload":{"type":"token_count","info":{"last_token_usage":{"input_tokens":100,"output_tokens":10,"total_tokens":110},"total_token_usage":{"input_tokens":100,"output_tokens":10,"total_tokens":110}}}}
{"timestamp":"2025-11-01T10:05:00Z","type":"event_msg","payload":{"type":"token_count","info":{"total_token_usage":{"input_tokens":500,"output_tokens":60,"total_tokens":560}}}}
`)

	require.Len(t, events, 2)
	assert.Equal(t, uint64(110), events[0].Usage.TotalTokens)
	// 560 cumulative minus the 110 carried from the combined record
	assert.Equal(t, uint64(450), events[1].Usage.TotalTokens)
}

func TestParseSessionCumulativeDecreaseClampsToZero(t *testing.T) {
	events := parseFixture(t, `
{"timestamp":"2025-11-01T10:00:00Z","type":"event_msg","payload":{"type":"token_count","info":{"total_token_usage":{"input_tokens":500,"output_tokens":50,"total_tokens":550}}}}
{"timestamp":"2025-11-01T10:05:00Z","type":"event_msg","payload":{"type":"token_count","info":{"total_token_usage":{"input_tokens":400,"output_tokens":40,"total_tokens":440}}}}
`)

	// the rewound record has all-zero deltas and is dropped
	require.Len(t, events, 1)
	assert.Equal(t, uint64(550), events[0].Usage.TotalTokens)
}

func TestParseSessionLegacyFallbackModel(t *testing.T) {
	events := parseFixture(t, `
{"timestamp":"2025-11-01T10:00:00Z","type":"event_msg","payload":{"type":"token_count","info":{"last_token_usage":{"input_tokens":10,"output_tokens":1}}}}
`)

	require.Len(t, events, 1)
	assert.Equal(t, "gpt-5", events[0].ModelName)
	assert.True(t, events[0].IsFallbackModel)
}

func TestParseSessionModelFromTurnContextMetadata(t *testing.T) {
	events := parseFixture(t, `
{"timestamp":"2025-11-01T09:59:00Z","type":"turn_context","payload":{"metadata":{"model_name":"o3"}}}
{"timestamp":"2025-11-01T10:00:00Z","type":"event_msg","payload":{"type":"token_count","info":{"last_token_usage":{"input_tokens":10,"output_tokens":1}}}}
`)

	require.Len(t, events, 1)
	assert.Equal(t, "o3", events[0].ModelName)
}

func TestParseSessionSkipsMalformedLines(t *testing.T) {
	events := parseFixture(t, `
{"timestamp":"2025-11-01T10:00:00Z","type":"event_msg","payload":{"type":"token_count","info":{"last_token_usage":{"input_tokens":10,"output_tokens":1}}}}
{"timestamp":"2025-11-01T10:01:00Z","type":"event_msg","payload":"broken
{"timestamp":"2025-11-01T10:02:00Z","type":"event_msg","payload":{"type":"token_count","info":{"last_token_usage":{"input_tokens":20,"output_tokens":2}}}}
`)

	require.Len(t, events, 2)
}
