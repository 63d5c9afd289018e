package codex

import (
	"bytes"
	"encoding/json"

	"github.com/tokenuze/tokenuze/internal/provider"
	"github.com/tokenuze/tokenuze/internal/types"
)

func init() {
	provider.Register(&provider.Config{
		Name:                     "codex",
		SessionsDirSuffix:        ".codex/sessions",
		LegacyFallbackModel:      "gpt-5",
		FallbackPricing:          fallbackPricing,
		SessionFileExt:           ".jsonl",
		CachedCountsOverlapInput: true,
		ParseSession:             parseSession,
	})
}

// envelope is one line of a Codex rollout file.
type envelope struct {
	Timestamp string          `json:"timestamp"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
}

type turnContextPayload struct {
	Model    string `json:"model"`
	Metadata struct {
		ModelName string `json:"model_name"`
	} `json:"metadata"`
}

type eventMsgPayload struct {
	Type string `json:"type"`
	Info *struct {
		LastTokenUsage  map[string]any `json:"last_token_usage"`
		TotalTokenUsage map[string]any `json:"total_token_usage"`
	} `json:"info"`
}

var (
	needleTurnContext = []byte(`"turn_context"`)
	needleEventMsg    = []byte(`"event_msg"`)
)

// parseSession reads a Codex rollout. turn_context records update the model
// carried across the file; event_msg/token_count records carry usage either
// as a ready-made delta (last_token_usage) or as cumulative totals
// (total_token_usage) that must be differenced against the previous record.
// When both are present the delta comes from last_token_usage and the
// cumulative state still advances to total_token_usage.
func parseSession(ctx *provider.ParseContext, sessionID, path string, out *provider.EventSink) error {
	var state types.ModelState
	var prev *types.RawUsage

	return ctx.StreamJSONLines(path, provider.MaxSessionFileBytes, func(line []byte, index int) error {
		if !bytes.Contains(line, needleTurnContext) && !bytes.Contains(line, needleEventMsg) {
			return nil
		}

		var env envelope
		if err := json.Unmarshal(line, &env); err != nil {
			return err
		}

		switch env.Type {
		case "turn_context":
			var tc turnContextPayload
			if err := json.Unmarshal(env.Payload, &tc); err != nil {
				return err
			}
			name := tc.Model
			if name == "" {
				name = tc.Metadata.ModelName
			}
			ctx.ResolveModel(&state, name)

		case "event_msg":
			var msg eventMsgPayload
			if err := json.Unmarshal(env.Payload, &msg); err != nil {
				return err
			}
			if msg.Type != "token_count" || msg.Info == nil {
				return nil
			}

			var delta types.TokenUsage
			haveDelta := false
			if msg.Info.LastTokenUsage != nil {
				var acc types.UsageAccumulator
				provider.AccumulateUsageObject(&acc, msg.Info.LastTokenUsage)
				delta = types.FromRaw(acc.Finalize())
				haveDelta = true
			}
			if msg.Info.TotalTokenUsage != nil {
				var acc types.UsageAccumulator
				provider.AccumulateUsageObject(&acc, msg.Info.TotalTokenUsage)
				cumulative := acc.Finalize()
				if !haveDelta {
					delta = types.DeltaFrom(cumulative, prev)
					haveDelta = true
				}
				prev = &cumulative
			}
			if !haveDelta {
				return nil
			}

			ts, ok := ctx.TimestampFromText(env.Timestamp)
			if !ok {
				return nil
			}
			model, isFallback, ok := ctx.ResolveModel(&state, "")
			if !ok {
				return nil
			}

			out.Emit(types.TokenUsageEvent{
				SessionID:       sessionID,
				Timestamp:       ts.Text,
				LocalISODate:    ts.LocalISODate,
				ModelName:       model,
				Usage:           delta,
				IsFallbackModel: isFallback,
			})
		}
		return nil
	})
}

var fallbackPricing = map[string]types.PricingEntry{
	"gpt-5":       {InputCostPerMillion: 1.25, CachedInputCostPerMillion: 0.125, OutputCostPerMillion: 10},
	"gpt-5-codex": {InputCostPerMillion: 1.25, CachedInputCostPerMillion: 0.125, OutputCostPerMillion: 10},
	"gpt-5-mini":  {InputCostPerMillion: 0.25, CachedInputCostPerMillion: 0.025, OutputCostPerMillion: 2},
	"gpt-5-nano":  {InputCostPerMillion: 0.05, CachedInputCostPerMillion: 0.005, OutputCostPerMillion: 0.4},
	"gpt-4o":      {InputCostPerMillion: 2.5, CachedInputCostPerMillion: 1.25, OutputCostPerMillion: 10},
	"o3":          {InputCostPerMillion: 2, CachedInputCostPerMillion: 0.5, OutputCostPerMillion: 8},
	"o4-mini":     {InputCostPerMillion: 1.1, CachedInputCostPerMillion: 0.275, OutputCostPerMillion: 4.4},
}
