package output

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/tokenuze/tokenuze/internal/calculator"
	"github.com/tokenuze/tokenuze/internal/types"
)

// TableFormatter renders the bordered ASCII reports.
type TableFormatter struct {
	noColor bool
}

func NewTableFormatter(noColor bool) *TableFormatter {
	return &TableFormatter{noColor: noColor}
}

// formatNumberWithCommas formats a count with thousand separators.
func formatNumberWithCommas(n uint64) string {
	if n < 1000 {
		return strconv.FormatUint(n, 10)
	}
	return formatNumberWithCommas(n/1000) + "," + fmt.Sprintf("%03d", n%1000)
}

// ShortenModelName compresses well-known model names for narrow columns.
// JSON output always carries the full name; only tables shorten.
func ShortenModelName(model string) string {
	if strings.HasPrefix(model, "claude-") {
		parts := strings.Split(strings.TrimPrefix(model, "claude-"), "-")
		if len(parts) >= 2 {
			family := strings.ToUpper(parts[0][:1]) + parts[0][1:]
			version := parts[1]
			if len(parts) >= 3 && len(parts[2]) == 1 {
				version = version + "." + parts[2]
			}
			return family + "-" + version
		}
	}
	if len(model) > 16 {
		return model[:16]
	}
	return model
}

var (
	costCold, _ = colorful.Hex("#5fd787")
	costHot, _  = colorful.Hex("#ff5f5f")
)

// costCell colors a cost relative to the largest cost in the table so the
// expensive days stand out; plain text when color is off.
func (f *TableFormatter) costCell(cost, max float64) string {
	text := fmt.Sprintf("$%.2f", cost)
	if f.noColor || max <= 0 {
		return text
	}
	heat := cost / max
	if heat > 1 {
		heat = 1
	}
	c := costCold.BlendLuv(costHot, heat)
	return lipgloss.NewStyle().Foreground(lipgloss.Color(c.Hex())).Render(text)
}

func (f *TableFormatter) banner(title string) string {
	if f.noColor {
		width := len(title) + 4
		top := " ╭" + strings.Repeat("─", width) + "╮\n"
		mid := " │  " + title + "  │\n"
		bottom := " ╰" + strings.Repeat("─", width) + "╯\n"
		return "\n" + top + mid + bottom + "\n"
	}
	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Padding(0, 2).
		MarginLeft(1)
	return "\n" + style.Render(title) + "\n\n"
}

func newReportTable(buf *bytes.Buffer) *tablewriter.Table {
	return tablewriter.NewTable(buf,
		tablewriter.WithRenderer(renderer.NewBlueprint(tw.Rendition{
			Settings: tw.Settings{Separators: tw.Separators{BetweenRows: tw.On}},
		})),
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Alignment: tw.CellAlignment{Global: tw.AlignRight},
			},
		}),
		tablewriter.WithHeaderAutoFormat(tw.Off),
	)
}

// FormatDailyReport renders the daily view, one row per day with an optional
// per-model breakdown row set, and a totals footer.
func (f *TableFormatter) FormatDailyReport(res *calculator.Result, tzLabel string, breakdown bool) string {
	if len(res.Daily) == 0 {
		return f.emptyReport()
	}

	var out strings.Builder
	out.WriteString(f.banner(fmt.Sprintf("Tokenuze — Daily Token Usage (%s)", tzLabel)))

	maxCost := 0.0
	for _, day := range res.Daily {
		if day.CostUSD > maxCost {
			maxCost = day.CostUSD
		}
	}

	var buf bytes.Buffer
	table := newReportTable(&buf)
	table.Header([]string{
		"Date\n",
		"Models\n",
		"Input\n",
		"Output\n",
		"Cache\nCreate",
		"Cache\nRead",
		"Reasoning\n",
		"Total\nTokens",
		"Cost\n(USD)",
	})

	for _, day := range res.Daily {
		names := modelNames(day.Models)
		table.Append([]string{
			day.DisplayDate,
			strings.Join(names, "\n"),
			formatNumberWithCommas(day.DisplayInputTokens),
			formatNumberWithCommas(day.Usage.OutputTokens),
			formatNumberWithCommas(day.Usage.CacheCreationInputTokens),
			formatNumberWithCommas(day.Usage.CachedInputTokens),
			formatNumberWithCommas(day.Usage.ReasoningOutputTokens),
			formatNumberWithCommas(day.Usage.TotalTokens),
			f.costCell(day.CostUSD, maxCost),
		})
		if breakdown {
			for _, name := range sortedNames(day.Models) {
				ms := day.Models[name]
				table.Append([]string{
					"",
					"  └ " + ShortenModelName(name),
					formatNumberWithCommas(ms.DisplayInputTokens),
					formatNumberWithCommas(ms.Usage.OutputTokens),
					formatNumberWithCommas(ms.Usage.CacheCreationInputTokens),
					formatNumberWithCommas(ms.Usage.CachedInputTokens),
					formatNumberWithCommas(ms.Usage.ReasoningOutputTokens),
					formatNumberWithCommas(ms.Usage.TotalTokens),
					f.costCell(ms.CostUSD, maxCost),
				})
			}
		}
	}

	table.Append([]string{
		"Total",
		"",
		formatNumberWithCommas(res.Totals.DisplayInputTokens),
		formatNumberWithCommas(res.Totals.Usage.OutputTokens),
		formatNumberWithCommas(res.Totals.Usage.CacheCreationInputTokens),
		formatNumberWithCommas(res.Totals.Usage.CachedInputTokens),
		formatNumberWithCommas(res.Totals.Usage.ReasoningOutputTokens),
		formatNumberWithCommas(res.Totals.Usage.TotalTokens),
		f.costCell(res.Totals.CostUSD, maxCost),
	})

	table.Render()
	out.Write(buf.Bytes())

	if missing := calculator.SortedMissing(res.Totals.MissingPricing); len(missing) > 0 {
		out.WriteString("\nNo pricing found for: " + strings.Join(missing, ", ") + "\n")
	}
	return out.String()
}

// FormatSessionReport renders the per-session view.
func (f *TableFormatter) FormatSessionReport(res *calculator.Result, tzLabel string) string {
	if len(res.Sessions) == 0 {
		return f.emptyReport()
	}

	var out strings.Builder
	out.WriteString(f.banner(fmt.Sprintf("Tokenuze — Session Token Usage (%s)", tzLabel)))

	maxCost := 0.0
	for _, sess := range res.Sessions {
		if sess.CostUSD > maxCost {
			maxCost = sess.CostUSD
		}
	}

	var buf bytes.Buffer
	table := newReportTable(&buf)
	table.Header([]string{
		"Session\n",
		"First Seen\n",
		"Last Seen\n",
		"Models\n",
		"Input\n",
		"Output\n",
		"Total\nTokens",
		"Cost\n(USD)",
	})

	for _, sess := range res.Sessions {
		table.Append([]string{
			shortenSessionID(sess.SessionID),
			sess.FirstSeenTimestamp,
			sess.LastSeenTimestamp,
			strings.Join(modelNames(sess.ModelBreakdown), "\n"),
			formatNumberWithCommas(sess.DisplayInputTokens),
			formatNumberWithCommas(sess.Usage.OutputTokens),
			formatNumberWithCommas(sess.Usage.TotalTokens),
			f.costCell(sess.CostUSD, maxCost),
		})
	}

	table.Append([]string{
		"Total", "", "", "",
		formatNumberWithCommas(res.Totals.DisplayInputTokens),
		formatNumberWithCommas(res.Totals.Usage.OutputTokens),
		formatNumberWithCommas(res.Totals.Usage.TotalTokens),
		f.costCell(res.Totals.CostUSD, maxCost),
	})

	table.Render()
	out.Write(buf.Bytes())
	return out.String()
}

func (f *TableFormatter) emptyReport() string {
	return f.banner("Tokenuze") + " No usage data found.\n"
}

func sortedNames(models map[string]*types.ModelSummary) []string {
	names := make([]string, 0, len(models))
	for name := range models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func modelNames(models map[string]*types.ModelSummary) []string {
	names := sortedNames(models)
	for i, name := range names {
		names[i] = ShortenModelName(name)
	}
	return names
}

func shortenSessionID(id string) string {
	if len(id) > 24 {
		return id[:24] + "…"
	}
	return id
}
