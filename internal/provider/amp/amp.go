package amp

import (
	"encoding/json"

	"github.com/tokenuze/tokenuze/internal/provider"
	"github.com/tokenuze/tokenuze/internal/types"
)

func init() {
	provider.Register(&provider.Config{
		Name:              "amp",
		SessionsDirSuffix: ".config/amp/sessions",
		FallbackPricing:   fallbackPricing,
		SessionFileExt:    ".jsonl",
		ParseSession:      parseSession,
	})
}

// record is one Amp thread line. Usage is per-message and already a delta;
// the model carried by one message sticks for the rest of the file.
type record struct {
	Timestamp string         `json:"timestamp"`
	Model     string         `json:"model"`
	Usage     map[string]any `json:"usage"`
	Message   struct {
		Model string         `json:"model"`
		Usage map[string]any `json:"usage"`
	} `json:"message"`
}

func parseSession(ctx *provider.ParseContext, sessionID, path string, out *provider.EventSink) error {
	var state types.ModelState

	return ctx.StreamJSONLines(path, provider.MaxSessionFileBytes, func(line []byte, index int) error {
		var rec record
		if err := json.Unmarshal(line, &rec); err != nil {
			return err
		}

		usage := rec.Usage
		if usage == nil {
			usage = rec.Message.Usage
		}
		if usage == nil {
			return nil
		}

		extracted := rec.Model
		if extracted == "" {
			extracted = rec.Message.Model
		}

		ts, ok := ctx.TimestampFromText(rec.Timestamp)
		if !ok {
			return nil
		}
		model, isFallback, ok := ctx.ResolveModel(&state, extracted)
		if !ok {
			return nil
		}

		var acc types.UsageAccumulator
		provider.AccumulateUsageObject(&acc, usage)

		out.Emit(types.TokenUsageEvent{
			SessionID:       sessionID,
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
	"claude-sonnet-4-5-20250929": {InputCostPerMillion: 3, CacheCreationCostPerMillion: 3.75, CachedInputCostPerMillion: 0.3, OutputCostPerMillion: 15},
	"claude-opus-4-5-20251101":   {InputCostPerMillion: 5, CacheCreationCostPerMillion: 6.25, CachedInputCostPerMillion: 0.5, OutputCostPerMillion: 25},
	"claude-haiku-4-5-20251001":  {InputCostPerMillion: 1, CacheCreationCostPerMillion: 1.25, CachedInputCostPerMillion: 0.1, OutputCostPerMillion: 5},
}
