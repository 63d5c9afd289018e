package zed

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/tokenuze/tokenuze/internal/provider"
	"github.com/tokenuze/tokenuze/internal/sqliteutil"
	"github.com/tokenuze/tokenuze/internal/types"
)

func init() {
	provider.Register(&provider.Config{
		Name:              "zed",
		SessionsDirSuffix: ".local/share/zed/threads",
		FallbackPricing:   fallbackPricing,
		SessionFileExt:    ".db",
		ParseSession:      parseSession,
	})
}

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// thread is the JSON document stored (zstd-compressed) in a threads row.
// Model is either a plain string or an object carrying a "model" key.
type thread struct {
	Model             json.RawMessage           `json:"model"`
	RequestTokenUsage map[string]map[string]any `json:"request_token_usage"`
}

// parseSession reads every thread row of the Zed database. Each entry of a
// thread's request_token_usage map becomes one event; the timestamp for all
// of them is the row's updated_at.
func parseSession(ctx *provider.ParseContext, sessionID, path string, out *provider.EventSink) error {
	db, err := sqliteutil.OpenReadOnly(path)
	if err != nil {
		return err
	}
	defer db.Close()

	rows, err := db.Query(`SELECT id, updated_at, data FROM threads`)
	if err != nil {
		return err
	}
	defer rows.Close()

	var readBytes int64
	for rows.Next() {
		var (
			id        string
			updatedAt string
			data      []byte
		)
		if err := rows.Scan(&id, &updatedAt, &data); err != nil {
			ctx.Logger.Warn("record parse failed",
				"provider", ctx.Provider, "path", path, "error", err)
			continue
		}
		readBytes += int64(len(data))
		if readBytes > sqliteutil.MaxRowBytes {
			ctx.Logger.Warn("thread data exceeds read cap, truncating",
				"provider", ctx.Provider, "path", path)
			return nil
		}
		if err := emitThread(ctx, id, updatedAt, data, out); err != nil {
			ctx.Logger.Warn("record parse failed",
				"provider", ctx.Provider, "path", path, "thread", id, "error", err)
		}
	}
	return rows.Err()
}

func emitThread(ctx *provider.ParseContext, id, updatedAt string, data []byte, out *provider.EventSink) error {
	if bytes.HasPrefix(data, zstdMagic) {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return err
		}
		defer dec.Close()
		data, err = dec.DecodeAll(data, nil)
		if err != nil {
			return err
		}
	}

	var th thread
	if err := json.Unmarshal(data, &th); err != nil {
		return err
	}
	if len(th.RequestTokenUsage) == 0 {
		return nil
	}

	ts, ok := ctx.TimestampFromText(normalizeSQLiteTime(updatedAt))
	if !ok {
		return nil
	}
	var state types.ModelState
	model, isFallback, ok := ctx.ResolveModel(&state, modelName(th.Model))
	if !ok {
		return nil
	}

	requestIDs := make([]string, 0, len(th.RequestTokenUsage))
	for reqID := range th.RequestTokenUsage {
		requestIDs = append(requestIDs, reqID)
	}
	sort.Strings(requestIDs)

	for _, reqID := range requestIDs {
		var acc types.UsageAccumulator
		provider.AccumulateUsageObject(&acc, th.RequestTokenUsage[reqID])
		out.Emit(types.TokenUsageEvent{
			SessionID:       id,
			Timestamp:       ts.Text,
			LocalISODate:    ts.LocalISODate,
			ModelName:       model,
			Usage:           types.FromRaw(acc.Finalize()),
			IsFallbackModel: isFallback,
		})
	}
	return nil
}

// modelName accepts both shapes Zed has written: "model": "name" and
// "model": {"model": "name", ...}.
func modelName(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var obj struct {
		Model string `json:"model"`
	}
	if json.Unmarshal(raw, &obj) == nil {
		return obj.Model
	}
	return ""
}

// normalizeSQLiteTime turns SQLite's "YYYY-MM-DD HH:MM:SS" into ISO form;
// rows written with ISO timestamps pass through untouched.
func normalizeSQLiteTime(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 19 && s[10] == ' ' {
		s = s[:10] + "T" + s[11:]
	}
	if len(s) == 19 {
		s += "Z"
	}
	return s
}

var fallbackPricing = map[string]types.PricingEntry{
	"claude-sonnet-4-5-20250929": {InputCostPerMillion: 3, CacheCreationCostPerMillion: 3.75, CachedInputCostPerMillion: 0.3, OutputCostPerMillion: 15},
	"claude-opus-4-5-20251101":   {InputCostPerMillion: 5, CacheCreationCostPerMillion: 6.25, CachedInputCostPerMillion: 0.5, OutputCostPerMillion: 25},
	"claude-haiku-4-5-20251001":  {InputCostPerMillion: 1, CacheCreationCostPerMillion: 1.25, CachedInputCostPerMillion: 0.1, OutputCostPerMillion: 5},
	"gpt-5":                      {InputCostPerMillion: 1.25, CachedInputCostPerMillion: 0.125, OutputCostPerMillion: 10},
}
