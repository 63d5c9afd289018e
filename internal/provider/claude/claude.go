package claude

import (
	"encoding/json"

	"github.com/tokenuze/tokenuze/internal/provider"
	"github.com/tokenuze/tokenuze/internal/types"
)

func init() {
	provider.Register(&provider.Config{
		Name:              "claude",
		SessionsDirSuffix: ".claude/projects",
		FallbackPricing:   fallbackPricing,
		SessionFileExt:    ".jsonl",
		RequiresDeduper:   true,
		ParseSession:      parseSession,
	})
}

// record is one line of a Claude Code project log. Only assistant records
// carry usage.
type record struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	RequestID string `json:"requestId"`
	Timestamp string `json:"timestamp"`
	Message   struct {
		ID    string         `json:"id"`
		Model string         `json:"model"`
		Usage map[string]any `json:"usage"`
	} `json:"message"`
}

func parseSession(ctx *provider.ParseContext, sessionID, path string, out *provider.EventSink) error {
	session := sessionID
	sessionPinned := false
	var state types.ModelState

	return ctx.StreamJSONLines(path, provider.MaxSessionFileBytes, func(line []byte, index int) error {
		var rec record
		if err := json.Unmarshal(line, &rec); err != nil {
			return err
		}
		if rec.Type != "assistant" || rec.Message.Usage == nil {
			return nil
		}
		if rec.Message.Model == "<synthetic>" {
			return nil
		}

		// The log's own session label beats the file name; first seen wins.
		if !sessionPinned && rec.SessionID != "" {
			session = rec.SessionID
			sessionPinned = true
		}

		// Re-processed files repeat assistant records verbatim; the
		// (message ID, request ID) fingerprint suppresses them.
		if ctx.Deduper != nil && rec.Message.ID != "" && rec.RequestID != "" {
			if !ctx.Deduper.Mark(provider.FingerprintPair(rec.Message.ID, rec.RequestID)) {
				return nil
			}
		}

		ts, ok := ctx.TimestampFromText(rec.Timestamp)
		if !ok {
			return nil
		}
		model, isFallback, ok := ctx.ResolveModel(&state, rec.Message.Model)
		if !ok {
			return nil
		}

		var acc types.UsageAccumulator
		provider.AccumulateUsageObject(&acc, rec.Message.Usage)

		out.Emit(types.TokenUsageEvent{
			SessionID:       session,
			Timestamp:       ts.Text,
			LocalISODate:    ts.LocalISODate,
			ModelName:       model,
			Usage:           types.FromRaw(acc.Finalize()),
			IsFallbackModel: isFallback,
		})
		return nil
	})
}

var fallbackPricing = map[string]types.PricingEntry{
	"claude-opus-4-5-20251101":   {InputCostPerMillion: 5, CacheCreationCostPerMillion: 6.25, CachedInputCostPerMillion: 0.5, OutputCostPerMillion: 25},
	"claude-opus-4-1-20250805":   {InputCostPerMillion: 15, CacheCreationCostPerMillion: 18.75, CachedInputCostPerMillion: 1.5, OutputCostPerMillion: 75},
	"claude-opus-4-20250514":     {InputCostPerMillion: 15, CacheCreationCostPerMillion: 18.75, CachedInputCostPerMillion: 1.5, OutputCostPerMillion: 75},
	"claude-sonnet-4-5-20250929": {InputCostPerMillion: 3, CacheCreationCostPerMillion: 3.75, CachedInputCostPerMillion: 0.3, OutputCostPerMillion: 15},
	"claude-sonnet-4-20250514":   {InputCostPerMillion: 3, CacheCreationCostPerMillion: 3.75, CachedInputCostPerMillion: 0.3, OutputCostPerMillion: 15},
	"claude-3-7-sonnet-20250219": {InputCostPerMillion: 3, CacheCreationCostPerMillion: 3.75, CachedInputCostPerMillion: 0.3, OutputCostPerMillion: 15},
	"claude-haiku-4-5-20251001":  {InputCostPerMillion: 1, CacheCreationCostPerMillion: 1.25, CachedInputCostPerMillion: 0.1, OutputCostPerMillion: 5},
	"claude-3-5-haiku-20241022":  {InputCostPerMillion: 0.8, CacheCreationCostPerMillion: 1, CachedInputCostPerMillion: 0.08, OutputCostPerMillion: 4},
}
