// Package calculator turns the event stream into daily, session, and weekly
// summaries, applies pricing, and accumulates the run totals.
package calculator

import (
	"sort"

	"github.com/samber/lo"

	"github.com/tokenuze/tokenuze/internal/pricing"
	"github.com/tokenuze/tokenuze/internal/timeutil"
	"github.com/tokenuze/tokenuze/internal/types"
)

// Options filters and shapes a build.
type Options struct {
	SinceISODate string // inclusive YYYY-MM-DD bound on the local date; empty = open
	UntilISODate string
}

// Result is everything one aggregation pass produces.
type Result struct {
	Daily    []*types.DailySummary
	Sessions []*types.SessionSummary
	Weekly   []*types.WeeklySummary
	Totals   types.SummaryTotals
}

// Builder collects events from the provider workers and aggregates them on
// demand. Add is not safe for concurrent use on its own; the provider
// framework serializes delivery through its EventConsumer.
type Builder struct {
	events []types.TokenUsageEvent
}

func NewBuilder() *Builder {
	return &Builder{}
}

// Add appends one normalized event.
func (b *Builder) Add(ev types.TokenUsageEvent) {
	b.events = append(b.events, ev)
}

// EventCount reports how many events have been collected.
func (b *Builder) EventCount() int {
	return len(b.events)
}

// Build sorts, filters, buckets, and prices the collected events.
func (b *Builder) Build(pm types.PricingMap, opts Options) *Result {
	events := make([]types.TokenUsageEvent, len(b.events))
	copy(events, b.events)

	// Workers emit in arbitrary order; this sort re-establishes the
	// pipeline's deterministic ordering.
	sort.SliceStable(events, func(i, j int) bool {
		a, c := &events[i], &events[j]
		if a.Timestamp != c.Timestamp {
			return a.Timestamp < c.Timestamp
		}
		if a.SessionID != c.SessionID {
			return a.SessionID < c.SessionID
		}
		return a.ModelName < c.ModelName
	})

	res := &Result{
		Totals: types.SummaryTotals{MissingPricing: map[string]struct{}{}},
	}

	days := map[string]*types.DailySummary{}
	sessions := map[string]*types.SessionSummary{}
	weeks := map[[2]int]*types.WeeklySummary{}

	for i := range events {
		ev := &events[i]
		if opts.SinceISODate != "" && ev.LocalISODate < opts.SinceISODate {
			continue
		}
		if opts.UntilISODate != "" && ev.LocalISODate > opts.UntilISODate {
			continue
		}

		day := days[ev.LocalISODate]
		if day == nil {
			day = &types.DailySummary{
				ISODate:        ev.LocalISODate,
				DisplayDate:    timeutil.FormatDisplayDate(ev.LocalISODate),
				Models:         map[string]*types.ModelSummary{},
				MissingPricing: map[string]struct{}{},
			}
			days[ev.LocalISODate] = day
		}
		day.Usage.Add(ev.Usage)
		day.DisplayInputTokens = types.SatAdd(day.DisplayInputTokens, ev.DisplayInputTokens)
		addModel(day.Models, ev)

		sess := sessions[ev.SessionID]
		if sess == nil {
			sess = &types.SessionSummary{
				SessionID:          ev.SessionID,
				FirstSeenTimestamp: ev.Timestamp,
				ModelBreakdown:     map[string]*types.ModelSummary{},
			}
			sessions[ev.SessionID] = sess
		}
		sess.LastSeenTimestamp = ev.Timestamp
		sess.Usage.Add(ev.Usage)
		sess.DisplayInputTokens = types.SatAdd(sess.DisplayInputTokens, ev.DisplayInputTokens)
		addModel(sess.ModelBreakdown, ev)

		if wk, ok := timeutil.ISOWeekForDate(ev.LocalISODate); ok {
			key := [2]int{wk.Year, wk.Week}
			week := weeks[key]
			if week == nil {
				week = &types.WeeklySummary{
					ISOYear:        wk.Year,
					ISOWeek:        wk.Week,
					StartDate:      wk.StartDate,
					EndDate:        wk.EndDate,
					ModelBreakdown: map[string]*types.ModelSummary{},
					MissingPricing: map[string]struct{}{},
				}
				weeks[key] = week
			}
			week.Usage.Add(ev.Usage)
			week.DisplayInputTokens = types.SatAdd(week.DisplayInputTokens, ev.DisplayInputTokens)
			addModel(week.ModelBreakdown, ev)
		}
	}

	for _, day := range days {
		day.CostUSD = priceModels(pm, day.Models, day.MissingPricing, res.Totals.MissingPricing)
	}
	for _, sess := range sessions {
		sess.CostUSD = priceModels(pm, sess.ModelBreakdown, nil, nil)
	}
	for _, week := range weeks {
		week.CostUSD = priceModels(pm, week.ModelBreakdown, week.MissingPricing, nil)
	}

	for _, date := range sortedKeys(days) {
		day := days[date]
		res.Daily = append(res.Daily, day)
		res.Totals.Usage.Add(day.Usage)
		res.Totals.DisplayInputTokens = types.SatAdd(res.Totals.DisplayInputTokens, day.DisplayInputTokens)
		res.Totals.CostUSD += day.CostUSD
	}

	res.Sessions = lo.Values(sessions)
	sort.Slice(res.Sessions, func(i, j int) bool {
		a, c := res.Sessions[i], res.Sessions[j]
		if a.FirstSeenTimestamp != c.FirstSeenTimestamp {
			return a.FirstSeenTimestamp < c.FirstSeenTimestamp
		}
		return a.SessionID < c.SessionID
	})

	res.Weekly = lo.Values(weeks)
	sort.Slice(res.Weekly, func(i, j int) bool {
		a, c := res.Weekly[i], res.Weekly[j]
		if a.ISOYear != c.ISOYear {
			return a.ISOYear < c.ISOYear
		}
		return a.ISOWeek < c.ISOWeek
	})

	return res
}

func addModel(models map[string]*types.ModelSummary, ev *types.TokenUsageEvent) {
	ms := models[ev.ModelName]
	if ms == nil {
		ms = &types.ModelSummary{Name: ev.ModelName}
		models[ev.ModelName] = ms
	}
	ms.Usage.Add(ev.Usage)
	ms.DisplayInputTokens = types.SatAdd(ms.DisplayInputTokens, ev.DisplayInputTokens)
	if ev.IsFallbackModel {
		ms.IsFallback = true
	}
}

// priceModels applies the pricing map to a model breakdown and returns the
// summed cost. Models without pricing cost nothing and land in the missing
// sets instead.
func priceModels(pm types.PricingMap, models map[string]*types.ModelSummary, missing, globalMissing map[string]struct{}) float64 {
	total := 0.0
	for _, name := range sortedKeys(models) {
		ms := models[name]
		entry, ok := pricing.Lookup(pm, name)
		if !ok {
			ms.CostUSD = 0
			ms.PricingAvailable = false
			if missing != nil {
				missing[name] = struct{}{}
			}
			if globalMissing != nil {
				globalMissing[name] = struct{}{}
			}
			continue
		}
		ms.CostUSD = entry.CostUSD(ms.Usage)
		ms.PricingAvailable = true
		total += ms.CostUSD
	}
	return total
}

func sortedKeys[V any](m map[string]V) []string {
	keys := lo.Keys(m)
	sort.Strings(keys)
	return keys
}

// SortedMissing flattens a missing-pricing set into a sorted slice for
// rendering and upload payloads.
func SortedMissing(missing map[string]struct{}) []string {
	names := lo.Keys(missing)
	sort.Strings(names)
	return names
}
