package provider

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokenuze/tokenuze/internal/types"
)

func testContext(overlap bool) *ParseContext {
	return &ParseContext{
		Provider:                 "test",
		CachedCountsOverlapInput: overlap,
		LegacyFallbackModel:      "gpt-5",
		Logger:                   slog.New(slog.NewTextHandler(os.Stderr, nil)),
	}
}

func TestResolveModel(t *testing.T) {
	ctx := testContext(false)
	var state types.ModelState

	name, fallback, ok := ctx.ResolveModel(&state, "gpt-5-codex")
	require.True(t, ok)
	assert.Equal(t, "gpt-5-codex", name)
	assert.False(t, fallback)

	// carried forward on later records without a model
	name, fallback, ok = ctx.ResolveModel(&state, "")
	require.True(t, ok)
	assert.Equal(t, "gpt-5-codex", name)
	assert.False(t, fallback)

	// fresh file, no model anywhere: legacy fallback
	var fresh types.ModelState
	name, fallback, ok = ctx.ResolveModel(&fresh, "")
	require.True(t, ok)
	assert.Equal(t, "gpt-5", name)
	assert.True(t, fallback)

	// no legacy fallback configured: event dropped
	bare := testContext(false)
	bare.LegacyFallbackModel = ""
	var none types.ModelState
	_, _, ok = bare.ResolveModel(&none, "")
	assert.False(t, ok)
}

func TestNormalizeUsageOverlap(t *testing.T) {
	ctx := testContext(true)
	ev := types.TokenUsageEvent{
		Usage: types.TokenUsage{
			InputTokens:       1000,
			CachedInputTokens: 200,
			OutputTokens:      50,
		},
	}
	ctx.NormalizeUsage(&ev)
	assert.Equal(t, uint64(1000), ev.DisplayInputTokens)
	assert.Equal(t, uint64(800), ev.Usage.InputTokens)
	assert.Equal(t, uint64(200), ev.Usage.CachedInputTokens)

	// idempotent
	before := ev
	ctx.NormalizeUsage(&ev)
	assert.Equal(t, before, ev)
}

func TestNormalizeUsageAdditive(t *testing.T) {
	ctx := testContext(false)
	ev := types.TokenUsageEvent{
		Usage: types.TokenUsage{
			InputTokens:              100,
			CachedInputTokens:        200,
			CacheCreationInputTokens: 50,
		},
	}
	ctx.NormalizeUsage(&ev)
	assert.Equal(t, uint64(350), ev.DisplayInputTokens)
	assert.Equal(t, uint64(100), ev.Usage.InputTokens)

	before := ev
	ctx.NormalizeUsage(&ev)
	assert.Equal(t, before, ev)
}

func TestEventSinkDropsZeroUsage(t *testing.T) {
	ctx := testContext(false)
	sink := &EventSink{ctx: ctx}
	sink.Emit(types.TokenUsageEvent{SessionID: "empty"})
	assert.Empty(t, sink.events)

	sink.Emit(types.TokenUsageEvent{
		SessionID: "real",
		Usage:     types.TokenUsage{OutputTokens: 1},
	})
	assert.Len(t, sink.events, 1)
}

func TestStreamJSONLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.jsonl")
	content := "{\"a\":1}\n\n  \n{\"a\":2}\nnot json\n{\"a\":3}\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	ctx := testContext(false)
	var lines []int
	err := ctx.StreamJSONLines(path, 0, func(line []byte, index int) error {
		lines = append(lines, index)
		return nil
	})
	require.NoError(t, err)
	// blank lines are skipped but indexes keep counting raw lines
	assert.Equal(t, []int{0, 3, 4, 5}, lines)
}

func TestStreamJSONLinesHaltsAtCap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{\"a\":1}\n{\"a\":2}\n{\"a\":3}\n"), 0o644))

	ctx := testContext(false)
	var count int
	err := ctx.StreamJSONLines(path, 17, func(line []byte, index int) error {
		count++
		return nil
	})
	require.NoError(t, err)
	// third line pushes past the cap; the first two survive
	assert.Equal(t, 2, count)
}

func TestJSONValueToU64(t *testing.T) {
	assert.Equal(t, uint64(42), JSONValueToU64(float64(42)))
	assert.Equal(t, uint64(42), JSONValueToU64(float64(42.9)))
	assert.Equal(t, uint64(0), JSONValueToU64(float64(-1)))
	assert.Equal(t, uint64(1234), JSONValueToU64("1,234"))
	assert.Equal(t, uint64(0), JSONValueToU64(nil))
	assert.Equal(t, uint64(0), JSONValueToU64(true))
}

func TestFingerprintPair(t *testing.T) {
	a := FingerprintPair("msg-1", "req-1")
	b := FingerprintPair("msg-1", "req-1")
	c := FingerprintPair("msg-1", "req-2")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestSessionFilesMissingDir(t *testing.T) {
	cfg := &Config{
		Name:              "test",
		SessionsDirSuffix: "no/such/dir",
		SessionFileExt:    ".jsonl",
	}
	_, err := cfg.SessionFiles(&Options{HomeDir: t.TempDir()})
	assert.ErrorIs(t, err, types.ErrDataNotFound)
}

func TestCollectWalksAndFunnels(t *testing.T) {
	home := t.TempDir()
	dir := filepath.Join(home, "logs", "nested")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "s1.jsonl"), []byte("x\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "s2.jsonl"), []byte("x\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("x\n"), 0o644))

	cfg := &Config{
		Name:              "test",
		SessionsDirSuffix: "logs",
		SessionFileExt:    ".jsonl",
		ParseSession: func(ctx *ParseContext, sessionID, path string, out *EventSink) error {
			out.Emit(types.TokenUsageEvent{
				SessionID:    sessionID,
				Timestamp:    "2025-11-01T10:00:00Z",
				LocalISODate: "2025-11-01",
				ModelName:    "m",
				Usage:        types.TokenUsage{OutputTokens: 1, TotalTokens: 1},
			})
			return nil
		},
	}

	var got []types.TokenUsageEvent
	consumer := NewEventConsumer(func(ev types.TokenUsageEvent) { got = append(got, ev) })
	cfg.Collect(&Options{HomeDir: home}, consumer)

	require.Len(t, got, 2)
	ids := map[string]bool{got[0].SessionID: true, got[1].SessionID: true}
	assert.True(t, ids["s1"] && ids["s2"])
}
