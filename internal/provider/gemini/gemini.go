package gemini

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tokenuze/tokenuze/internal/provider"
	"github.com/tokenuze/tokenuze/internal/types"
)

func init() {
	provider.Register(&provider.Config{
		Name:                "gemini",
		SessionsDirSuffix:   ".gemini/tmp",
		LegacyFallbackModel: "gemini-2.5-pro",
		FallbackPricing:     fallbackPricing,
		SessionFileExt:      ".json",
		ParseSession:        parseSession,
	})
}

// session is a whole Gemini CLI chat file: one JSON document whose messages
// carry cumulative token totals.
type session struct {
	SessionID   string    `json:"sessionId"`
	StartTime   string    `json:"startTime"`
	LastUpdated string    `json:"lastUpdated"`
	Messages    []message `json:"messages"`
}

type message struct {
	Timestamp string         `json:"timestamp"`
	Model     string         `json:"model"`
	Tokens    map[string]any `json:"tokens"`
}

// parseSession differences each message's cumulative totals against the
// previous message. Tool tokens fold into output; thoughts are reasoning.
// Gemini does not dedupe: a repeated message emits again when its cumulative
// totals moved; a verbatim repeat has a zero delta and is dropped.
func parseSession(ctx *provider.ParseContext, sessionID, path string, out *provider.EventSink) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Size() > provider.MaxSessionFileBytes {
		return fmt.Errorf("%w: %d bytes", types.ErrFileTooLarge, info.Size())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var sess session
	if err := json.Unmarshal(data, &sess); err != nil {
		return err
	}
	if sess.SessionID != "" {
		sessionID = sess.SessionID
	}

	var state types.ModelState
	var prev *types.RawUsage

	for _, msg := range sess.Messages {
		if msg.Tokens == nil {
			continue
		}

		var acc types.UsageAccumulator
		for key, val := range msg.Tokens {
			if key == "tool" {
				acc.ApplyField(types.FieldOutput, provider.JSONValueToU64(val))
				continue
			}
			acc.ApplyKey(key, provider.JSONValueToU64(val))
		}
		cumulative := acc.Finalize()
		delta := types.DeltaFrom(cumulative, prev)
		prev = &cumulative

		tsText := msg.Timestamp
		if tsText == "" {
			tsText = sess.LastUpdated
		}
		if tsText == "" {
			tsText = sess.StartTime
		}
		ts, ok := ctx.TimestampFromText(tsText)
		if !ok {
			continue
		}
		model, isFallback, ok := ctx.ResolveModel(&state, msg.Model)
		if !ok {
			continue
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
}

var fallbackPricing = map[string]types.PricingEntry{
	"gemini-2.5-pro":        {InputCostPerMillion: 1.25, CachedInputCostPerMillion: 0.31, OutputCostPerMillion: 10},
	"gemini-2.5-flash":      {InputCostPerMillion: 0.3, CachedInputCostPerMillion: 0.075, OutputCostPerMillion: 2.5},
	"gemini-2.5-flash-lite": {InputCostPerMillion: 0.1, CachedInputCostPerMillion: 0.025, OutputCostPerMillion: 0.4},
	"gemini-2.0-flash":      {InputCostPerMillion: 0.1, CachedInputCostPerMillion: 0.025, OutputCostPerMillion: 0.4},
}
