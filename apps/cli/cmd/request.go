package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/restpipe/packages/capture"
	"github.com/abdul-hamid-achik/restpipe/packages/http"
	"github.com/abdul-hamid-achik/restpipe/packages/output"
	"github.com/abdul-hamid-achik/restpipe/packages/schema"
)

type requestFlags struct {
	data       string
	headers    []string
	query      []string
	retry      int
	retryDelay time.Duration
	captures   []string
	schema     string
	quiet      bool
}

func newRequestCmds() []*cobra.Command {
	return []*cobra.Command{
		newRequestCmd("GET", false),
		newRequestCmd("POST", true),
		newRequestCmd("PUT", true),
		newRequestCmd("PATCH", true),
		newRequestCmd("DELETE", false),
	}
}

func newRequestCmd(method string, withBody bool) *cobra.Command {
	f := &requestFlags{}
	name := strings.ToLower(method)

	example := fmt.Sprintf("  restpipe %s /users/2\n  restpipe %s /users --query page=2 --capture first=body.data.0.email", name, name)
	if withBody {
		example = fmt.Sprintf("  restpipe %s /users --data '{\"name\":\"morpheus\",\"job\":\"leader\"}'\n  restpipe %s /users/2 --data @user.json --schema user.schema.json", name, name)
	}

	cmd := &cobra.Command{
		Use:     name + " <path>",
		Short:   fmt.Sprintf("Send a %s request through the pipeline", method),
		Example: example,
		Args:    usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequest(cmd, method, args[0], f)
		},
	}

	flags := cmd.Flags()
	if withBody {
		flags.StringVarP(&f.data, "data", "d", "", "Request body: JSON text, @file, or - for stdin")
	}
	flags.StringArrayVarP(&f.headers, "header", "H", nil, "Header as 'Name: value' (repeatable)")
	flags.StringArrayVar(&f.query, "query", nil, "Query parameter as key=value (repeatable)")
	flags.IntVar(&f.retry, "retry", 0, "Max attempts for transient failures (default from config)")
	flags.DurationVar(&f.retryDelay, "retry-delay", 0, "Initial retry delay; attempt k waits k times this (default from config)")
	flags.StringArrayVar(&f.captures, "capture", nil, "Capture as name=source.path, e.g. token=body.token (repeatable)")
	flags.StringVar(&f.schema, "schema", "", "JSON Schema file the response body must satisfy")
	flags.BoolVarP(&f.quiet, "quiet", "q", false, "Hide the progress spinner")

	return cmd
}

func runRequest(cmd *cobra.Command, method, path string, f *requestFlags) error {
	callOpts, err := buildCallOptions(f.headers, f.query)
	if err != nil {
		return usageError(err)
	}

	captures, err := capture.ParseAll(f.captures)
	if err != nil {
		return usageError(err)
	}

	body, err := readBody(cmd.InOrStdin(), f.data)
	if err != nil {
		return usageError(err)
	}

	client, cleanup, err := newClient()
	if err != nil {
		return err
	}
	defer cleanup()

	policy := client.RetryPolicy()
	policy.RetryIf = http.IsTransient
	if cmd.Flags().Changed("retry") {
		policy.MaxAttempts = f.retry
	}
	if cmd.Flags().Changed("retry-delay") {
		policy.InitialDelay = f.retryDelay
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	formatter := newFormatter(cmd)
	if _, _, err := authorize(ctx, client); err != nil {
		formatter.FormatError(err)
		return reportedError(err)
	}

	var s *spinner.Spinner
	if !f.quiet && !verboseFlag && outputFormat() == output.FormatConsole {
		s = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(cmd.ErrOrStderr()))
		s.Suffix = fmt.Sprintf(" %s %s", method, requestURL(client, path))
		s.Start()
	}

	env, err := http.WithRetry(ctx, policy, func(ctx context.Context) (*http.Envelope[json.RawMessage], error) {
		return http.Do[json.RawMessage](ctx, client, method, path, body, callOpts...)
	})
	if s != nil {
		s.Stop()
	}

	if err != nil {
		formatter.FormatError(err)
		return reportedError(err)
	}

	result := output.ResultFromEnvelope(method, requestURL(client, path), env)
	if len(captures) > 0 {
		result.Captures = capture.FromEnvelope(env).ExtractAll(captures)
	}
	formatter.FormatResult(result)

	if f.schema != "" {
		if err := schema.ValidateFile(env.Raw, f.schema, ""); err != nil {
			formatter.FormatError(err)
			return reportedError(withExitCode(ExitFailure, err))
		}
	}

	return nil
}

func buildCallOptions(headers, query []string) ([]http.CallOption, error) {
	opts := make([]http.CallOption, 0, len(headers)+len(query))
	for _, h := range headers {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q: expected 'Name: value'", h)
		}
		opts = append(opts, http.WithHeader(name, strings.TrimSpace(value)))
	}
	for _, q := range query {
		key, value, ok := strings.Cut(q, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid query %q: expected key=value", q)
		}
		opts = append(opts, http.WithQuery(key, value))
	}
	return opts, nil
}

// readBody turns the --data flag into a request body. JSON text is sent as
// JSON; anything else is sent as-is.
func readBody(stdin io.Reader, data string) (any, error) {
	if data == "" {
		return nil, nil
	}

	var raw []byte
	switch {
	case data == "-":
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read body from stdin: %w", err)
		}
		raw = b
	case strings.HasPrefix(data, "@"):
		b, err := os.ReadFile(strings.TrimPrefix(data, "@"))
		if err != nil {
			return nil, fmt.Errorf("failed to read body file: %w", err)
		}
		raw = b
	default:
		raw = []byte(data)
	}

	if json.Valid(raw) {
		return json.RawMessage(raw), nil
	}
	return string(raw), nil
}

func requestURL(client *http.Client, path string) string {
	return http.ResolveURL(client.BaseURL(), path)
}

// usageArgs makes argument count errors exit with the usage code.
func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		return usageError(validate(cmd, args))
	}
}
