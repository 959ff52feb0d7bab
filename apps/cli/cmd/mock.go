package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/restpipe/packages/logging"
	"github.com/abdul-hamid-achik/restpipe/packages/mock"
)

var (
	mockPortFlag  int
	mockDelayFlag time.Duration
)

var mockCmd = &cobra.Command{
	Use:   "mock",
	Short: "Start a local stand-in for the demo users API",
	Long: `Start an HTTP server that serves the demo users API so the pipeline can be
tried without network access.

Routes:
  GET    /api/users            paged list (?page=N)
  POST   /api/users            create
  GET    /api/users/{{id}}     fetch one, 404 when unknown
  PUT    /api/users/{{id}}     replace
  PATCH  /api/users/{{id}}     update
  DELETE /api/users/{{id}}     delete
  POST   /api/login            issue a bearer token
  GET    /api/protected        requires the bearer token

Any route accepts ?delay=N to hold the response for N seconds.`,
	Example: `  restpipe mock
  restpipe mock --port 8080 --delay 200ms
  restpipe mock -v`,
	Args:        usageArgs(cobra.NoArgs),
	Annotations: map[string]string{skipConfigAnnotation: "true"},
	RunE:        mockCommand,
}

func init() {
	mockCmd.Flags().IntVarP(&mockPortFlag, "port", "p", 3000, "Port to run the mock server on")
	mockCmd.Flags().DurationVar(&mockDelayFlag, "delay", 0, "Delay to add to all responses (e.g., 100ms, 1s)")
}

func mockCommand(cmd *cobra.Command, args []string) error {
	if mockDelayFlag < 0 {
		return usageError(fmt.Errorf("invalid delay %s: cannot be negative", mockDelayFlag))
	}

	// Request lines are logged at info.
	if verboseFlag && logLevelFlag == "" {
		if err := initLogging("info", logFormatFlag, cmd.ErrOrStderr()); err != nil {
			return err
		}
	}

	server := mock.NewServer(
		mock.WithPort(mockPortFlag),
		mock.WithDelay(mockDelayFlag),
		mock.WithVerbose(verboseFlag),
		mock.WithLogger(logging.For("mock")),
	)

	fmt.Fprintf(cmd.OutOrStdout(), "Serving %d routes on http://localhost:%d/api\n", len(server.Routes()), mockPortFlag)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.StartWithContext(ctx)
}
