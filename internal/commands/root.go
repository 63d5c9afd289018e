package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tokenuze/tokenuze/internal/calculator"
	"github.com/tokenuze/tokenuze/internal/config"
	"github.com/tokenuze/tokenuze/internal/machineid"
	"github.com/tokenuze/tokenuze/internal/output"
	"github.com/tokenuze/tokenuze/internal/pricing"
	"github.com/tokenuze/tokenuze/internal/progress"
	"github.com/tokenuze/tokenuze/internal/provider"
	"github.com/tokenuze/tokenuze/internal/timeutil"
	"github.com/tokenuze/tokenuze/internal/types"
	"github.com/tokenuze/tokenuze/internal/uploader"

	// Provider specializations register themselves.
	_ "github.com/tokenuze/tokenuze/internal/provider/amp"
	_ "github.com/tokenuze/tokenuze/internal/provider/claude"
	_ "github.com/tokenuze/tokenuze/internal/provider/codex"
	_ "github.com/tokenuze/tokenuze/internal/provider/crush"
	_ "github.com/tokenuze/tokenuze/internal/provider/gemini"
	_ "github.com/tokenuze/tokenuze/internal/provider/opencode"
	_ "github.com/tokenuze/tokenuze/internal/provider/zed"
)

// Version is stamped by the release build.
var Version = "dev"

type rootFlags struct {
	since     string
	until     string
	tz        string
	pretty    bool
	agents    []string
	upload    bool
	sessions  bool
	jsonOut   bool
	machineID bool
	breakdown bool
	offline   bool
	debug     bool
}

// NewRootCommand builds the tokenuze CLI.
func NewRootCommand() *cobra.Command {
	var flags rootFlags

	cmd := &cobra.Command{
		Use:     "tokenuze",
		Short:   "Token usage and cost reports for local coding-agent session logs",
		Long:    `Tokenuze scans the session logs of Codex, Claude Code, Gemini CLI, Amp, opencode, Crush, and Zed, reconciles their token accounting, prices it, and reports usage by day, session, or week.`,
		Version: Version,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), &flags)
		},
		SilenceUsage: true,
	}

	cmd.Flags().StringVar(&flags.since, "since", "", "Inclusive lower bound on the local date (YYYYMMDD)")
	cmd.Flags().StringVar(&flags.until, "until", "", "Inclusive upper bound on the local date (YYYYMMDD)")
	cmd.Flags().StringVar(&flags.tz, "tz", "", "Bucket timezone: UTC or ±HH[:MM] (default: host offset)")
	cmd.Flags().BoolVar(&flags.pretty, "pretty", false, "Pretty-print JSON output")
	cmd.Flags().StringArrayVar(&flags.agents, "agent", nil, "Restrict to a provider (repeatable)")
	cmd.Flags().BoolVar(&flags.upload, "upload", false, "Upload per-provider reports to the dashboard")
	cmd.Flags().BoolVar(&flags.sessions, "sessions", false, "Report per session instead of per day")
	cmd.Flags().BoolVar(&flags.jsonOut, "json", false, "Emit JSON instead of a table")
	cmd.Flags().BoolVar(&flags.machineID, "machine-id", false, "Print this machine's ID and exit")
	cmd.Flags().BoolVar(&flags.breakdown, "breakdown", false, "Show per-model rows inside the daily table")
	cmd.Flags().BoolVar(&flags.offline, "offline", false, "Skip the remote pricing manifest; use static fallbacks only")
	cmd.Flags().BoolVar(&flags.debug, "debug", false, "Show debug information")

	return cmd
}

func run(ctx context.Context, flags *rootFlags) error {
	if flags.machineID {
		fmt.Println(machineid.Get())
		return nil
	}

	logLevel := slog.LevelWarn
	if flags.debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	since, until, err := parseDateBounds(flags.since, flags.until)
	if err != nil {
		return err
	}

	tzOffset, err := resolveOffset(flags.tz)
	if err != nil {
		return fmt.Errorf("%w: --tz %q", types.ErrInvalidUsage, flags.tz)
	}

	providers, err := selectProviders(flags.agents)
	if err != nil {
		return err
	}

	pm := types.PricingMap{}
	if !flags.offline {
		fetchCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		pm.Merge(pricing.FetchRemote(fetchCtx, http.DefaultClient))
		cancel()
	}
	for _, cfg := range providers {
		cfg.LoadPricingData(pm)
	}

	opts := &provider.Options{
		TZOffsetMinutes: tzOffset,
		Logger:          logger,
	}
	calcOpts := calculator.Options{SinceISODate: since, UntilISODate: until}

	if flags.upload {
		dash := config.Resolve()
		up := &uploader.Uploader{
			BaseURL:   dash.Server,
			APIKey:    dash.APIKey,
			MachineID: machineid.Get(),
			Out:       os.Stderr,
		}
		payload := up.BuildPayload(providers, opts, pm, calcOpts)
		if err := up.Send(ctx, payload); err != nil {
			if errors.Is(err, types.ErrMissingAPIKey) {
				os.Exit(1)
			}
			return err
		}
		return nil
	}

	var tracker *progress.Tracker
	if !flags.jsonOut && progress.Enabled() {
		tracker = progress.Start()
		opts.Progress = tracker.FileDone
	}

	builder := calculator.NewBuilder()
	consumer := provider.NewEventConsumer(builder.Add)
	for _, cfg := range providers {
		cfg.Collect(opts, consumer)
	}
	tracker.Stop()

	if flags.debug {
		logger.Debug("collection finished", "events", builder.EventCount())
	}

	res := builder.Build(pm, calcOpts)
	tzLabel := timeutil.FormatOffsetLabel(tzOffset)

	if flags.jsonOut {
		var doc any
		if flags.sessions {
			doc = output.BuildSessionsDocument(res)
		} else {
			doc = output.BuildDailyDocument(res)
		}
		data, err := output.MarshalDocument(doc, flags.pretty)
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	formatter := output.NewTableFormatter(!progress.Enabled())
	if flags.sessions {
		fmt.Print(formatter.FormatSessionReport(res, tzLabel))
	} else {
		fmt.Print(formatter.FormatDailyReport(res, tzLabel, flags.breakdown))
	}
	return nil
}

// parseDateBounds validates YYYYMMDD flags and converts them to ISO dates.
func parseDateBounds(since, until string) (string, string, error) {
	sinceISO, err := compactDateToISO(since)
	if err != nil {
		return "", "", fmt.Errorf("%w: --since %q (want YYYYMMDD)", types.ErrInvalidUsage, since)
	}
	untilISO, err := compactDateToISO(until)
	if err != nil {
		return "", "", fmt.Errorf("%w: --until %q (want YYYYMMDD)", types.ErrInvalidUsage, until)
	}
	if sinceISO != "" && untilISO != "" && untilISO < sinceISO {
		return "", "", fmt.Errorf("%w: --until must not precede --since", types.ErrInvalidUsage)
	}
	return sinceISO, untilISO, nil
}

func compactDateToISO(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	if len(s) != 8 {
		return "", types.ErrInvalidUsage
	}
	for i := 0; i < 8; i++ {
		if s[i] < '0' || s[i] > '9' {
			return "", types.ErrInvalidUsage
		}
	}
	iso := s[:4] + "-" + s[4:6] + "-" + s[6:8]
	if _, err := timeutil.ParseISO8601ToUTCSeconds(iso + "T00:00:00Z"); err != nil {
		return "", types.ErrInvalidUsage
	}
	return iso, nil
}

// resolveOffset picks the bucket offset: the --tz flag when given, otherwise
// the host's current offset. This is the only place the OS timezone is
// consulted.
func resolveOffset(tz string) (int, error) {
	if tz != "" {
		return timeutil.ParseOffsetFlag(tz)
	}
	_, offsetSec := time.Now().Zone()
	return offsetSec / 60, nil
}

func selectProviders(agents []string) ([]*provider.Config, error) {
	if len(agents) == 0 {
		return provider.All(), nil
	}
	var out []*provider.Config
	seen := map[string]bool{}
	for _, name := range agents {
		if seen[name] {
			continue
		}
		seen[name] = true
		cfg, ok := provider.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("%w: unknown provider %q", types.ErrInvalidUsage, name)
		}
		out = append(out, cfg)
	}
	return out, nil
}
