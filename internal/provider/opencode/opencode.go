package opencode

import (
	"encoding/json"

	"github.com/tokenuze/tokenuze/internal/provider"
	"github.com/tokenuze/tokenuze/internal/types"
)

func init() {
	provider.Register(&provider.Config{
		Name:              "opencode",
		SessionsDirSuffix: ".local/share/opencode/sessions",
		FallbackPricing:   fallbackPricing,
		SessionFileExt:    ".jsonl",
		ParseSession:      parseSession,
	})
}

// record is one opencode message line. Token counts live under "tokens"
// with cache read/write nested one level down; everything is per-message.
type record struct {
	Timestamp string `json:"timestamp"`
	ModelID   string `json:"modelID"`
	Tokens    *struct {
		Input     json.Number `json:"input"`
		Output    json.Number `json:"output"`
		Reasoning json.Number `json:"reasoning"`
		Cache     struct {
			Read  json.Number `json:"read"`
			Write json.Number `json:"write"`
		} `json:"cache"`
	} `json:"tokens"`
}

func parseSession(ctx *provider.ParseContext, sessionID, path string, out *provider.EventSink) error {
	var state types.ModelState

	return ctx.StreamJSONLines(path, provider.MaxSessionFileBytes, func(line []byte, index int) error {
		var rec record
		if err := json.Unmarshal(line, &rec); err != nil {
			return err
		}
		if rec.Tokens == nil {
			return nil
		}

		ts, ok := ctx.TimestampFromText(rec.Timestamp)
		if !ok {
			return nil
		}
		model, isFallback, ok := ctx.ResolveModel(&state, rec.ModelID)
		if !ok {
			return nil
		}

		var acc types.UsageAccumulator
		acc.ApplyField(types.FieldInput, provider.JSONValueToU64(rec.Tokens.Input))
		acc.ApplyField(types.FieldOutput, provider.JSONValueToU64(rec.Tokens.Output))
		acc.ApplyField(types.FieldReasoning, provider.JSONValueToU64(rec.Tokens.Reasoning))
		acc.ApplyField(types.FieldCached, provider.JSONValueToU64(rec.Tokens.Cache.Read))
		acc.ApplyField(types.FieldCacheCreation, provider.JSONValueToU64(rec.Tokens.Cache.Write))
		raw := acc.Finalize()
		raw.TotalTokens = types.SatAdd(
			types.SatAdd(types.SatAdd(raw.InputTokens, raw.CachedInputTokens), raw.CacheCreationInputTokens),
			types.SatAdd(raw.OutputTokens, raw.ReasoningOutputTokens))

		out.Emit(types.TokenUsageEvent{
			SessionID:       sessionID,
			Timestamp:       ts.Text,
			LocalISODate:    ts.LocalISODate,
			ModelName:       model,
			Usage:           types.FromRaw(raw),
			IsFallbackModel: isFallback,
		})
		return nil
	})
}

var fallbackPricing = map[string]types.PricingEntry{
	"claude-sonnet-4-5-20250929": {InputCostPerMillion: 3, CacheCreationCostPerMillion: 3.75, CachedInputCostPerMillion: 0.3, OutputCostPerMillion: 15},
	"gpt-5":                      {InputCostPerMillion: 1.25, CachedInputCostPerMillion: 0.125, OutputCostPerMillion: 10},
	"gemini-2.5-pro":             {InputCostPerMillion: 1.25, CachedInputCostPerMillion: 0.31, OutputCostPerMillion: 10},
	"big-pickle":                 {InputCostPerMillion: 0, CachedInputCostPerMillion: 0, OutputCostPerMillion: 0},
}
