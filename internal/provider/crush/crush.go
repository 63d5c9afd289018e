package crush

import (
	"database/sql"

	"github.com/tokenuze/tokenuze/internal/provider"
	"github.com/tokenuze/tokenuze/internal/sqliteutil"
	"github.com/tokenuze/tokenuze/internal/timeutil"
	"github.com/tokenuze/tokenuze/internal/types"
)

func init() {
	provider.Register(&provider.Config{
		Name:              "crush",
		SessionsDirSuffix: ".config/crush/projects",
		FallbackPricing:   fallbackPricing,
		SessionFileExt:    ".db",
		ParseSession:      parseSession,
	})
}

// parseSession reads one project database. Each sessions row is one session
// with a prompt/completion token pair for a specific model; timestamps are
// unix epoch values, in seconds or milliseconds depending on the version
// that wrote the row.
func parseSession(ctx *provider.ParseContext, sessionID, path string, out *provider.EventSink) error {
	db, err := sqliteutil.OpenReadOnly(path)
	if err != nil {
		return err
	}
	defer db.Close()

	rows, err := db.Query(`SELECT id, model, prompt_tokens, completion_tokens, updated_at FROM sessions`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id        string
			model     sql.NullString
			prompt    sql.NullInt64
			completed sql.NullInt64
			updatedAt sql.NullInt64
		)
		if err := rows.Scan(&id, &model, &prompt, &completed, &updatedAt); err != nil {
			ctx.Logger.Warn("record parse failed",
				"provider", ctx.Provider, "path", path, "error", err)
			continue
		}

		tsText := timeutil.FormatUTCISO(epochSeconds(updatedAt.Int64))
		ts, ok := ctx.TimestampFromText(tsText)
		if !ok {
			continue
		}
		var state types.ModelState
		name, isFallback, ok := ctx.ResolveModel(&state, model.String)
		if !ok {
			continue
		}

		var acc types.UsageAccumulator
		if prompt.Int64 > 0 {
			acc.ApplyField(types.FieldInput, uint64(prompt.Int64))
		}
		if completed.Int64 > 0 {
			acc.ApplyField(types.FieldOutput, uint64(completed.Int64))
		}
		raw := acc.Finalize()
		raw.TotalTokens = types.SatAdd(raw.InputTokens, raw.OutputTokens)

		out.Emit(types.TokenUsageEvent{
			SessionID:       id,
			Timestamp:       ts.Text,
			LocalISODate:    ts.LocalISODate,
			ModelName:       name,
			Usage:           types.FromRaw(raw),
			IsFallbackModel: isFallback,
		})
	}
	return rows.Err()
}

func epochSeconds(v int64) int64 {
	if v > 1_000_000_000_000 { // milliseconds
		return v / 1000
	}
	return v
}

var fallbackPricing = map[string]types.PricingEntry{
	"claude-sonnet-4-5-20250929": {InputCostPerMillion: 3, CacheCreationCostPerMillion: 3.75, CachedInputCostPerMillion: 0.3, OutputCostPerMillion: 15},
	"gpt-5":                      {InputCostPerMillion: 1.25, CachedInputCostPerMillion: 0.125, OutputCostPerMillion: 10},
	"grok-code-fast-1":           {InputCostPerMillion: 0.2, CachedInputCostPerMillion: 0.02, OutputCostPerMillion: 1.5},
}
