// Command botctl operates the application pipeline directly against the
// configured store: migrations, one-off bot runs, job inspection and lock
// recovery.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"botic-pipeline/internal/app"
	"botic-pipeline/internal/common/config"
	"botic-pipeline/internal/common/logger"
)

// openPipeline builds the pipeline for one command invocation. Tests swap it
// for a memory-backed instance.
var openPipeline = func(ctx context.Context, configPath, logLevel string) (*app.App, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFromFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	zapLog := logger.New(logLevel, "console", "stderr")
	return app.Build(ctx, cfg, zapLog, app.Options{ConnectRetries: 3})
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath, logLevel string

	root := &cobra.Command{
		Use:           "botctl",
		Short:         "Operate the application pipeline and its bot",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a config file (default: configs/config.yaml)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level for diagnostics on stderr")

	open := func(cmd *cobra.Command) (*app.App, error) {
		return openPipeline(cmd.Context(), configPath, logLevel)
	}

	root.AddCommand(
		newMigrateCmd(open),
		newRunCmd(open),
		newJobCmd(open),
		newJobsCmd(open),
		newUnlockCmd(open),
		newTransitionCmd(open),
		newHistoryCmd(open),
	)
	return root
}

type opener func(cmd *cobra.Command) (*app.App, error)

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
