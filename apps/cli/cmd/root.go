package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/restpipe/packages/core/config"
	"github.com/abdul-hamid-achik/restpipe/packages/core/env"
	"github.com/abdul-hamid-achik/restpipe/packages/history"
	"github.com/abdul-hamid-achik/restpipe/packages/http"
	"github.com/abdul-hamid-achik/restpipe/packages/logging"
	"github.com/abdul-hamid-achik/restpipe/packages/output"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

const skipConfigAnnotation = "restpipe/skip-config"

var (
	configFlag    string
	envFileFlag   string
	baseURLFlag   string
	tokenFlag     string
	timeoutFlag   time.Duration
	logLevelFlag  string
	logFormatFlag string
	noColorFlag   bool
	historyFlag   string
	outputFlag    string
	verboseFlag   bool
)

// Settings resolved by the root pre-run. overrides holds what the
// environment and flags set, so a reloaded config file can be layered
// under them again.
var (
	cfg        *config.Config
	overrides  *config.Config
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "restpipe",
	Short: "A typed request pipeline for REST APIs",
	Long: `restpipe sends requests through a pipeline that resolves paths against a
base URL, attaches a bearer token, and sorts every failure into one of three
kinds: the server answered with an error status, no response arrived, or the
request could not be built.

Settings come from .restpipe.json, restpipe.config.json, .restpipe.yaml or
.restpipe.yml, then RESTPIPE_* environment variables, then flags.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadSettings,
}

func Execute(v, bt string) {
	version = v
	buildTime = bt
	if err := rootCmd.Execute(); err != nil {
		if !isReported(err) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(exitCodeFor(err))
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFlag, "config", "", "Path to config file (default: search the working directory)")
	pf.StringVar(&envFileFlag, "env-file", "", "Path to .env file that seeds RESTPIPE_* variables")
	pf.StringVar(&baseURLFlag, "base-url", "", "Base URL for relative paths")
	pf.StringVar(&tokenFlag, "token", "", "Bearer token sent with every request")
	pf.DurationVar(&timeoutFlag, "timeout", 0, "Request timeout (e.g., 5s, 500ms)")
	pf.StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&logFormatFlag, "log-format", "", "Log format: text, json")
	pf.BoolVar(&noColorFlag, "no-color", false, "Disable colored output")
	pf.StringVar(&historyFlag, "history", "", "SQLite file that records every call")
	pf.StringVarP(&outputFlag, "output", "o", "console", "Output format: console, json")
	pf.BoolVarP(&verboseFlag, "verbose", "v", false, "Show response headers")

	rootCmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return usageError(err)
	})

	for _, c := range newRequestCmds() {
		rootCmd.AddCommand(c)
	}
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(mockCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadSettings layers defaults, the config file, RESTPIPE_* variables and
// flags, then sets up logging.
func loadSettings(cmd *cobra.Command, args []string) error {
	if cmd.Annotations[skipConfigAnnotation] == "true" {
		initLogging(logLevelFlag, logFormatFlag, cmd.ErrOrStderr())
		return nil
	}

	configPath = configFlag
	if configPath == "" {
		configPath = config.FindConfigFile(".")
	}

	fileCfg := config.DefaultConfig()
	if configPath != "" {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return configError(err)
		}
		fileCfg = loaded
	}

	if envFileFlag != "" {
		if _, err := env.LoadAndExportDotEnv(envFileFlag); err != nil {
			return configError(err)
		}
	}
	envCfg, err := config.FromEnv(env.LoadSystemEnv(config.EnvPrefix))
	if err != nil {
		return configError(err)
	}

	overrides = envCfg.Merge(flagConfig(cmd))
	cfg = fileCfg.Merge(overrides)

	if err := cfg.Validate(); err != nil {
		return configError(err)
	}
	if _, err := output.ParseFormat(outputFlag); err != nil {
		return usageError(err)
	}

	return initLogging(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
}

func flagConfig(cmd *cobra.Command) *config.Config {
	c := &config.Config{
		BaseURL:   baseURLFlag,
		Token:     tokenFlag,
		LogLevel:  logLevelFlag,
		LogFormat: logFormatFlag,
		History:   historyFlag,
	}
	if timeoutFlag > 0 {
		c.Timeout = int(timeoutFlag.Milliseconds())
	}
	if cmd.Flags().Changed("no-color") {
		c.NoColor = config.BoolPtr(noColorFlag)
	}
	return c
}

func initLogging(level, format string, w io.Writer) error {
	lvl := logging.LevelWarn
	if level != "" {
		parsed, err := logging.ParseLevel(level)
		if err != nil {
			return configError(err)
		}
		lvl = parsed
	}

	f := logging.FormatText
	switch strings.ToLower(format) {
	case "", string(logging.FormatText):
	case string(logging.FormatJSON):
		f = logging.FormatJSON
	default:
		return configError(fmt.Errorf("unknown log format %q (expected text or json)", format))
	}

	logging.Init(lvl, f, w)
	return nil
}

// newClient builds the pipeline client from the resolved settings. The
// returned cleanup closes the history store when one is configured.
func newClient() (*http.Client, func(), error) {
	var logger http.Logger = logging.NewPipelineLogger(logging.For("pipeline"))
	cleanup := func() {}

	if cfg.History != "" {
		store, err := history.Open(cfg.History)
		if err != nil {
			return nil, nil, configError(err)
		}
		logger = http.MultiLogger{logger, store}
		cleanup = func() {
			if err := store.Close(); err != nil {
				slog.Warn("closing history store", "error", err)
			}
		}
	}

	return cfg.NewClient(logger), cleanup, nil
}

func outputFormat() output.Format {
	format, _ := output.ParseFormat(outputFlag)
	return format
}

func newFormatter(cmd *cobra.Command) output.Formatter {
	return output.New(outputFormat(), cmd.OutOrStdout(), verboseFlag, cfg != nil && cfg.GetNoColor())
}
