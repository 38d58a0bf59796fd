// Package cli provides the cobra command tree for sercha-ingest.
package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-ingest/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// Options are the persistent flags handed to the Bootstrapper.
type Options struct {
	ConfigPath string
	Verbose    bool
}

// App holds the services the commands drive.
type App struct {
	Ingestion driving.IngestionService
	Scheduler driving.Scheduler

	// Watchers maps provider names to sources that can observe changes.
	Watchers map[string]driven.Watcher

	// Close releases the stores. May be nil.
	Close func() error
}

// Bootstrapper builds the App from the persistent flags.
type Bootstrapper func(ctx context.Context, opts Options) (*App, error)

var (
	opts      Options
	app       *App
	bootstrap Bootstrapper
)

var rootCmd = &cobra.Command{
	Use:   "sercha-ingest",
	Short: "Burst ingestion for sercha providers",
	Long: `sercha-ingest keeps a target store in step with each configured provider.

Every tick advances a provider's ingestion by one step: a bounded burst of
pages while ingesting, a rest period once a cycle completes, exponential
backoff after failures and a clean restart after cancellation. Progress is
checkpointed per page, so an interrupted burst resumes where it stopped.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if opts.Verbose {
			logger.SetVerbose(true)
		}
	},
	PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
		return closeApp()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "config file (default ~/.sercha/ingest.toml)")
	rootCmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "enable debug logging")
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	version = v
}

// SetBootstrap registers how commands obtain their services.
func SetBootstrap(b Bootstrapper) {
	bootstrap = b
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// services returns the App, bootstrapping it on first use.
func services(cmd *cobra.Command) (*App, error) {
	if app != nil {
		return app, nil
	}
	if bootstrap == nil {
		return nil, errors.New("ingestion service not configured")
	}
	a, err := bootstrap(cmd.Context(), opts)
	if err != nil {
		return nil, err
	}
	app = a
	return app, nil
}

func closeApp() error {
	if app == nil || app.Close == nil {
		return nil
	}
	err := app.Close()
	app.Close = nil
	return err
}
