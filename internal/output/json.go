package output

import (
	"encoding/json"

	"github.com/tokenuze/tokenuze/internal/calculator"
	"github.com/tokenuze/tokenuze/internal/types"
)

// ModelReport is the per-model JSON slice of a day, session, or week.
// inputTokens is the display figure: for cache-overlap providers it is the
// raw input, otherwise input + cached + cache-creation.
type ModelReport struct {
	InputTokens              uint64  `json:"inputTokens"`
	CacheCreationInputTokens uint64  `json:"cacheCreationInputTokens"`
	CachedInputTokens        uint64  `json:"cachedInputTokens"`
	OutputTokens             uint64  `json:"outputTokens"`
	ReasoningOutputTokens    uint64  `json:"reasoningOutputTokens"`
	TotalTokens              uint64  `json:"totalTokens"`
	CostUSD                  float64 `json:"costUSD"`
	PricingAvailable         bool    `json:"pricingAvailable"`
	IsFallback               bool    `json:"isFallback"`
}

type DailyReport struct {
	Date                     string                 `json:"date"`
	ISODate                  string                 `json:"isoDate"`
	InputTokens              uint64                 `json:"inputTokens"`
	CacheCreationInputTokens uint64                 `json:"cacheCreationInputTokens"`
	CachedInputTokens        uint64                 `json:"cachedInputTokens"`
	OutputTokens             uint64                 `json:"outputTokens"`
	ReasoningOutputTokens    uint64                 `json:"reasoningOutputTokens"`
	TotalTokens              uint64                 `json:"totalTokens"`
	CostUSD                  float64                `json:"costUSD"`
	Models                   map[string]ModelReport `json:"models"`
	MissingPricing           []string               `json:"missingPricing"`
}

type SessionReport struct {
	SessionID                string                 `json:"sessionId"`
	FirstSeen                string                 `json:"firstSeen"`
	LastSeen                 string                 `json:"lastSeen"`
	InputTokens              uint64                 `json:"inputTokens"`
	CacheCreationInputTokens uint64                 `json:"cacheCreationInputTokens"`
	CachedInputTokens        uint64                 `json:"cachedInputTokens"`
	OutputTokens             uint64                 `json:"outputTokens"`
	ReasoningOutputTokens    uint64                 `json:"reasoningOutputTokens"`
	TotalTokens              uint64                 `json:"totalTokens"`
	CostUSD                  float64                `json:"costUSD"`
	Models                   map[string]ModelReport `json:"models"`
}

type WeeklyReport struct {
	ISOYear                  int                    `json:"isoYear"`
	ISOWeek                  int                    `json:"isoWeek"`
	StartDate                string                 `json:"startDate"`
	EndDate                  string                 `json:"endDate"`
	InputTokens              uint64                 `json:"inputTokens"`
	CacheCreationInputTokens uint64                 `json:"cacheCreationInputTokens"`
	CachedInputTokens        uint64                 `json:"cachedInputTokens"`
	OutputTokens             uint64                 `json:"outputTokens"`
	ReasoningOutputTokens    uint64                 `json:"reasoningOutputTokens"`
	TotalTokens              uint64                 `json:"totalTokens"`
	CostUSD                  float64                `json:"costUSD"`
	Models                   map[string]ModelReport `json:"models"`
	MissingPricing           []string               `json:"missingPricing"`
}

type TotalsReport struct {
	InputTokens              uint64   `json:"inputTokens"`
	CacheCreationInputTokens uint64   `json:"cacheCreationInputTokens"`
	CachedInputTokens        uint64   `json:"cachedInputTokens"`
	OutputTokens             uint64   `json:"outputTokens"`
	ReasoningOutputTokens    uint64   `json:"reasoningOutputTokens"`
	TotalTokens              uint64   `json:"totalTokens"`
	CostUSD                  float64  `json:"costUSD"`
	MissingPricing           []string `json:"missingPricing"`
}

// DailyDocument is the root of the default JSON output.
type DailyDocument struct {
	Daily  []DailyReport `json:"daily"`
	Totals TotalsReport  `json:"totals"`
}

// SessionsDocument is the root of the --sessions JSON output.
type SessionsDocument struct {
	Sessions []SessionReport `json:"sessions"`
	Totals   TotalsReport    `json:"totals"`
}

// WeeklyDocument is the per-provider weekly payload the uploader sends.
type WeeklyDocument struct {
	Weekly []WeeklyReport `json:"weekly"`
	Totals TotalsReport   `json:"totals"`
}

func modelReports(models map[string]*types.ModelSummary) map[string]ModelReport {
	out := make(map[string]ModelReport, len(models))
	for name, ms := range models {
		out[name] = ModelReport{
			InputTokens:              ms.DisplayInputTokens,
			CacheCreationInputTokens: ms.Usage.CacheCreationInputTokens,
			CachedInputTokens:        ms.Usage.CachedInputTokens,
			OutputTokens:             ms.Usage.OutputTokens,
			ReasoningOutputTokens:    ms.Usage.ReasoningOutputTokens,
			TotalTokens:              ms.Usage.TotalTokens,
			CostUSD:                  ms.CostUSD,
			PricingAvailable:         ms.PricingAvailable,
			IsFallback:               ms.IsFallback,
		}
	}
	return out
}

func totalsReport(t types.SummaryTotals) TotalsReport {
	return TotalsReport{
		InputTokens:              t.DisplayInputTokens,
		CacheCreationInputTokens: t.Usage.CacheCreationInputTokens,
		CachedInputTokens:        t.Usage.CachedInputTokens,
		OutputTokens:             t.Usage.OutputTokens,
		ReasoningOutputTokens:    t.Usage.ReasoningOutputTokens,
		TotalTokens:              t.Usage.TotalTokens,
		CostUSD:                  t.CostUSD,
		MissingPricing:           calculator.SortedMissing(t.MissingPricing),
	}
}

// BuildDailyDocument converts an aggregation result into the daily JSON
// shape of the output schema.
func BuildDailyDocument(res *calculator.Result) DailyDocument {
	doc := DailyDocument{
		Daily:  make([]DailyReport, 0, len(res.Daily)),
		Totals: totalsReport(res.Totals),
	}
	for _, day := range res.Daily {
		doc.Daily = append(doc.Daily, DailyReport{
			Date:                     day.DisplayDate,
			ISODate:                  day.ISODate,
			InputTokens:              day.DisplayInputTokens,
			CacheCreationInputTokens: day.Usage.CacheCreationInputTokens,
			CachedInputTokens:        day.Usage.CachedInputTokens,
			OutputTokens:             day.Usage.OutputTokens,
			ReasoningOutputTokens:    day.Usage.ReasoningOutputTokens,
			TotalTokens:              day.Usage.TotalTokens,
			CostUSD:                  day.CostUSD,
			Models:                   modelReports(day.Models),
			MissingPricing:           calculator.SortedMissing(day.MissingPricing),
		})
	}
	return doc
}

// BuildSessionsDocument converts an aggregation result into the per-session
// JSON shape.
func BuildSessionsDocument(res *calculator.Result) SessionsDocument {
	doc := SessionsDocument{
		Sessions: make([]SessionReport, 0, len(res.Sessions)),
		Totals:   totalsReport(res.Totals),
	}
	for _, sess := range res.Sessions {
		doc.Sessions = append(doc.Sessions, SessionReport{
			SessionID:                sess.SessionID,
			FirstSeen:                sess.FirstSeenTimestamp,
			LastSeen:                 sess.LastSeenTimestamp,
			InputTokens:              sess.DisplayInputTokens,
			CacheCreationInputTokens: sess.Usage.CacheCreationInputTokens,
			CachedInputTokens:        sess.Usage.CachedInputTokens,
			OutputTokens:             sess.Usage.OutputTokens,
			ReasoningOutputTokens:    sess.Usage.ReasoningOutputTokens,
			TotalTokens:              sess.Usage.TotalTokens,
			CostUSD:                  sess.CostUSD,
			Models:                   modelReports(sess.ModelBreakdown),
		})
	}
	return doc
}

// BuildWeeklyDocument converts an aggregation result into the weekly JSON
// shape used by uploads.
func BuildWeeklyDocument(res *calculator.Result) WeeklyDocument {
	doc := WeeklyDocument{
		Weekly: make([]WeeklyReport, 0, len(res.Weekly)),
		Totals: totalsReport(res.Totals),
	}
	for _, week := range res.Weekly {
		doc.Weekly = append(doc.Weekly, WeeklyReport{
			ISOYear:                  week.ISOYear,
			ISOWeek:                  week.ISOWeek,
			StartDate:                week.StartDate,
			EndDate:                  week.EndDate,
			InputTokens:              week.DisplayInputTokens,
			CacheCreationInputTokens: week.Usage.CacheCreationInputTokens,
			CachedInputTokens:        week.Usage.CachedInputTokens,
			OutputTokens:             week.Usage.OutputTokens,
			ReasoningOutputTokens:    week.Usage.ReasoningOutputTokens,
			TotalTokens:              week.Usage.TotalTokens,
			CostUSD:                  week.CostUSD,
			Models:                   modelReports(week.ModelBreakdown),
			MissingPricing:           calculator.SortedMissing(week.MissingPricing),
		})
	}
	return doc
}

// MarshalDocument renders any report document compactly, or indented when
// pretty is set.
func MarshalDocument(doc any, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(doc, "", "  ")
	}
	return json.Marshal(doc)
}
