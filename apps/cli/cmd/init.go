package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/restpipe/packages/core/config"
)

var (
	forceInit  bool
	initFormat string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config file",
	Long: `Write a starter config file in the current directory.

The file points at the local mock server (restpipe mock) and carries the
default timeout and retry policy.`,
	Example: `  restpipe init
  restpipe init --format json
  restpipe init --force`,
	Args:        usageArgs(cobra.NoArgs),
	Annotations: map[string]string{skipConfigAnnotation: "true"},
	RunE:        initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite an existing config file")
	initCmd.Flags().StringVar(&initFormat, "format", "yaml", "Config file format: yaml, json")
}

func initCommand(cmd *cobra.Command, args []string) error {
	var name string
	switch initFormat {
	case "yaml", "yml":
		name = ".restpipe.yaml"
	case "json":
		name = ".restpipe.json"
	default:
		return usageError(fmt.Errorf("unknown format %q (expected yaml or json)", initFormat))
	}

	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	path := filepath.Join(cwd, name)

	if !forceInit {
		if _, err := os.Stat(path); err == nil {
			return configError(fmt.Errorf("file already exists: %s (use --force to overwrite)", path))
		}
	}

	c := config.DefaultConfig()
	c.BaseURL = "http://localhost:3000/api"
	c.Headers = map[string]string{"User-Agent": "restpipe/" + version}

	if err := c.SaveConfig(path); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created: %s\n", path)
	fmt.Fprintln(out, "\nStart the mock server with 'restpipe mock', then try 'restpipe get /users'.")
	return nil
}
