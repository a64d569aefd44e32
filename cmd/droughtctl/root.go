package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/couchcryptid/drought-dashboard/internal/adapter/backend"
	"github.com/couchcryptid/drought-dashboard/internal/config"
	"github.com/couchcryptid/drought-dashboard/internal/observability"
	"github.com/couchcryptid/drought-dashboard/internal/poller"
	"github.com/couchcryptid/drought-dashboard/internal/render"
	"github.com/couchcryptid/drought-dashboard/internal/store"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
)

// app holds the components shared by every subcommand.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	metrics  *observability.Metrics
	client   *backend.Client
	store    *store.Store
	poller   *poller.Poller
	renderer *render.Markdown
	raw      bool
}

type rootFlags struct {
	backendURL string
	timeout    time.Duration
	raw        bool
	width      int
}

func newRootCommand() *cobra.Command {
	var (
		flags rootFlags
		a     app
	)

	root := &cobra.Command{
		Use:   "droughtctl",
		Short: "Village water-stress dashboard for the terminal",
		Long: `droughtctl reads village water-stress and tanker allocation data from the
backend and prints the same views the web dashboard shows.

Configuration comes from the environment (BACKEND_URL, REQUEST_TIMEOUT,
INSIGHT_TIMEOUT, LOG_LEVEL, ...) and can be overridden with flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd, flags)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.backendURL, "backend", "", "backend base URL (default $BACKEND_URL)")
	pf.DurationVar(&flags.timeout, "timeout", 0, "timeout for every backend call (default from environment)")
	pf.BoolVar(&flags.raw, "raw", false, "print markdown without terminal styling")
	pf.IntVar(&flags.width, "width", render.DefaultWordWrap, "word wrap width")

	root.AddCommand(
		newSummaryCommand(&a),
		newVillagesCommand(&a),
		newExportCommand(&a),
		newAllocationCommand(&a),
		newIncidentsCommand(&a),
		newInsightCommand(&a),
		newForecastCommand(&a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command, flags rootFlags) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if flags.backendURL != "" {
		cfg.BackendURL = strings.TrimRight(flags.backendURL, "/")
	}
	if flags.timeout > 0 {
		cfg.RequestTimeout = flags.timeout
		cfg.InsightTimeout = flags.timeout
		cfg.ChatTimeout = flags.timeout
	}
	// Logs go to stderr so they never mix with command output.
	if cfg.LogLevel == "info" {
		cfg.LogLevel = "warn"
	}
	cfg.LogFormat = "text"

	a.cfg = cfg
	a.logger = observability.NewLoggerTo(cmd.ErrOrStderr(), cfg)
	a.metrics = observability.NewUnregisteredMetrics()
	a.raw = flags.raw

	if flags.raw {
		a.renderer = render.New(passthrough{}, a.logger)
	} else if a.renderer, err = render.NewTerminal(flags.width, a.logger); err != nil {
		return err
	}

	clock := clockwork.NewRealClock()
	a.client = backend.NewClient(cfg.BackendURL, backend.Timeouts{
		Request: cfg.RequestTimeout,
		Insight: cfg.InsightTimeout,
		Chat:    cfg.ChatTimeout,
	}, a.metrics, a.logger)
	a.store = store.New(clock)
	a.poller = poller.New(a.client, a.store, clock, cfg.PollInterval, a.logger, a.metrics)
	return nil
}

// sync runs one refresh. A failed village fetch is an error; a failed
// allocation fetch only degrades the output.
func (a *app) sync(ctx context.Context) error {
	res := a.poller.Refresh(ctx)
	if res.Villages == poller.Failed {
		return errors.New(backend.UserMessage(a.store.Villages().Err, backend.MsgVillagesUnavailable))
	}
	if res.Allocation == poller.Failed {
		a.logger.Warn(backend.UserMessage(a.store.Allocation().Err, backend.MsgAllocationUnavailable))
	}
	return nil
}

// print renders markdown to the command's output.
func (a *app) print(cmd *cobra.Command, markdown string) {
	fmt.Fprint(cmd.OutOrStdout(), a.renderer.Message(markdown))
}

// passthrough leaves markdown untouched.
type passthrough struct{}

func (passthrough) Render(s string) (string, error) { return s, nil }
