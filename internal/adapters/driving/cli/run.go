package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-ingest/internal/logger"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Tick ingestions on a schedule until interrupted",
	Long: `Runs the scheduler in the foreground. Each provider is ticked on the
configured interval and never more than once at a time. Interrupt (Ctrl-C)
stops in-flight bursts after their current page and waits for them.

With --watch, sources that can observe their inventory (filesystem) are
ticked as soon as changes settle instead of waiting for the interval.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolP("watch", "w", false, "tick watchable sources when they change")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, _ []string) error {
	a, err := services(cmd)
	if err != nil {
		return err
	}
	if a.Scheduler == nil {
		return errors.New("scheduler not configured")
	}
	watch, err := cmd.Flags().GetBool("watch")
	if err != nil {
		return fmt.Errorf("getting watch flag: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	if watch {
		startWatchers(ctx, &wg, a)
	}

	cmd.Printf("Scheduling %d providers. Press Ctrl-C to stop.\n", len(a.Ingestion.Providers()))
	err = a.Scheduler.Start(ctx)
	stop()
	wg.Wait()

	if stopErr := a.Scheduler.Stop(); stopErr != nil {
		logger.Warn("scheduler stop: %v", stopErr)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	cmd.Println("Scheduler stopped.")
	return nil
}

// startWatchers runs every watcher until ctx is done, triggering its provider on change.
func startWatchers(ctx context.Context, wg *sync.WaitGroup, a *App) {
	providers := make([]string, 0, len(a.Watchers))
	for p := range a.Watchers {
		providers = append(providers, p)
	}
	sort.Strings(providers)

	for _, provider := range providers {
		w := a.Watchers[provider]
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info("watch %s: started", provider)
			err := w.Watch(ctx, func() {
				logger.Debug("watch %s: change detected, triggering tick", provider)
				a.Scheduler.Trigger(provider)
			})
			if err != nil {
				logger.Error("watch %s: %v", provider, err)
			}
		}()
	}
}
