package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/restpipe/packages/core/config"
	"github.com/abdul-hamid-achik/restpipe/packages/http"
	"github.com/abdul-hamid-achik/restpipe/packages/logging"
	"github.com/abdul-hamid-achik/restpipe/packages/notify"
	"github.com/abdul-hamid-achik/restpipe/packages/stress"
)

var (
	loadMethod      string
	loadData        string
	loadHeaders     []string
	loadQuery       []string
	loadDuration    time.Duration
	loadRate        float64
	loadConcurrency int
	loadRampUp      time.Duration
	loadThreshold   string
	loadWatch       bool
	loadJSON        bool
	loadNoProgress  bool
	loadWebhooks    []string
	loadNotifyOn    string
)

var loadCmd = &cobra.Command{
	Use:   "load <path>",
	Short: "Drive one endpoint at a fixed rate and report latency and failures",
	Long: `Send the same request through the pipeline at a fixed rate for a fixed
duration. Failures are counted by kind: server, no response, and request setup.

With --watch-config the config file is reloaded on save while the run is in
progress, so the base URL or bearer token can be rotated mid-run.`,
	Example: `  restpipe load /users -d 30s -r 50
  restpipe load /login --method POST --data '{"email":"a@b.c","password":"x"}' -r 10
  restpipe load /users -d 1m --threshold "p95<200ms,errors<0.1%,no_response<0.01%"
  restpipe load /protected --watch-config --no-progress
  restpipe load /users --threshold "p99<500ms" --notify-webhook https://ci.example.com/hooks/load`,
	Args: usageArgs(cobra.ExactArgs(1)),
	RunE: runLoad,
}

func init() {
	f := loadCmd.Flags()
	f.StringVarP(&loadMethod, "method", "X", "GET", "HTTP method")
	f.StringVar(&loadData, "data", "", "Request body: JSON text, @file, or - for stdin")
	f.StringArrayVarP(&loadHeaders, "header", "H", nil, "Header as 'Name: value' (repeatable)")
	f.StringArrayVar(&loadQuery, "query", nil, "Query parameter as key=value (repeatable)")
	f.DurationVarP(&loadDuration, "duration", "d", 30*time.Second, "Run duration")
	f.Float64VarP(&loadRate, "rate", "r", 10, "Calls per second")
	f.IntVarP(&loadConcurrency, "concurrency", "c", 100, "Max calls in flight")
	f.DurationVar(&loadRampUp, "ramp-up", 0, "Ramp from 0 to the target rate over this duration")
	f.StringVar(&loadThreshold, "threshold", "", "Pass/fail thresholds over p50, p95, p99, max, errors, server, no_response, setup and rps, e.g. \"p95<200ms,errors<0.1%\"")
	f.BoolVar(&loadWatch, "watch-config", false, "Reload the config file on save during the run")
	f.BoolVar(&loadJSON, "json", false, "Print the summary as JSON")
	f.BoolVar(&loadNoProgress, "no-progress", false, "Disable the live progress display")
	f.StringArrayVar(&loadWebhooks, "notify-webhook", nil, "URL that receives the run result as JSON (repeatable)")
	f.StringVar(&loadNotifyOn, "notify-on", string(notify.NotifyFailure), "When to notify: always, failure, success")
}

func runLoad(cmd *cobra.Command, args []string) error {
	path := args[0]
	method := strings.ToUpper(loadMethod)

	thresholds, err := stress.ParseThresholds(loadThreshold)
	if err != nil {
		return usageError(err)
	}

	loadCfg := &stress.Config{
		Duration:       loadDuration,
		Rate:           loadRate,
		MaxConcurrency: loadConcurrency,
		RampUp:         loadRampUp,
		Thresholds:     thresholds,
	}
	if err := loadCfg.Validate(); err != nil {
		return usageError(err)
	}

	notifier, err := newNotifyManager()
	if err != nil {
		return usageError(err)
	}

	callOpts, err := buildCallOptions(loadHeaders, loadQuery)
	if err != nil {
		return usageError(err)
	}
	body, err := readBody(cmd.InOrStdin(), loadData)
	if err != nil {
		return usageError(err)
	}

	if loadWatch && configPath == "" {
		return configError(errors.New("--watch-config needs a config file; run 'restpipe init' or pass --config"))
	}

	client, cleanup, err := newClient()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ts, tok, err := authorize(ctx, client)
	if err != nil {
		return err
	}
	go keepAuthorized(ctx, client, ts, tok)

	if loadWatch {
		go watchConfig(ctx, client)
	}

	var progress io.Writer = cmd.OutOrStdout()
	if loadJSON {
		progress = io.Discard
	}
	reporter := stress.NewReporter(
		stress.WithWriter(progress),
		stress.WithNoColor(cfg.GetNoColor()),
		stress.WithNoProgress(loadNoProgress || loadJSON),
	)

	target := fmt.Sprintf("%s %s", method, requestURL(client, path))
	runner := stress.NewRunner(loadCfg,
		stress.WithReporter(reporter),
		stress.WithTarget(target),
	)

	report, err := runner.Run(ctx, func(ctx context.Context) error {
		_, err := http.Do[json.RawMessage](ctx, client, method, path, body, callOpts...)
		return err
	})
	if err != nil {
		return usageError(err)
	}

	if loadJSON {
		jsonReporter := stress.NewReporter(stress.WithWriter(cmd.OutOrStdout()), stress.WithNoColor(true))
		if err := jsonReporter.JSONSummary(report.Summary, report.Thresholds); err != nil {
			return err
		}
	}

	if notifier.Len() > 0 {
		// The run context may already be cancelled by an interrupt.
		notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		if err := notifier.Notify(notifyCtx, notify.FromReport(target, report)); err != nil {
			slog.Warn("notification failed", "error", err)
		}
		cancel()
	}

	if !report.Passed() {
		return reportedError(withExitCode(ExitFailure, errors.New("thresholds failed")))
	}
	return nil
}

func newNotifyManager() (*notify.Manager, error) {
	on, err := notify.ParseNotifyOn(loadNotifyOn)
	if err != nil {
		return nil, err
	}

	client := http.NewClient("",
		http.WithTimeout(10*time.Second),
		http.WithLogger(logging.NewPipelineLogger(logging.For("notify"))),
	)
	m := notify.NewManager(on)
	for _, u := range loadWebhooks {
		if err := http.ValidateURL(u); err != nil {
			return nil, fmt.Errorf("--notify-webhook: %w", err)
		}
		m.AddNotifier(notify.NewWebhookNotifier(u, notify.WithWebhookClient(client)))
	}
	return m, nil
}

// watchConfig keeps the live client in step with the config file. Flags and
// RESTPIPE_* variables still win over whatever the file says.
func watchConfig(ctx context.Context, client *http.Client) {
	log := logging.For("config")
	err := config.Watch(ctx, configPath,
		func(fileCfg *config.Config) {
			next := fileCfg.Merge(overrides)
			if err := next.Validate(); err != nil {
				log.Warn("ignoring reloaded config", "path", configPath, "error", err)
				return
			}
			next.ApplyRuntime(client)
			log.Info("config reloaded", "path", configPath, "baseURL", client.BaseURL())
		},
		func(err error) {
			log.Warn("config reload failed", "path", configPath, "error", err)
		},
	)
	if err != nil {
		slog.Error("config watch stopped", "error", err)
	}
}
