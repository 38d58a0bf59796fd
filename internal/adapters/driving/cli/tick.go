package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var tickCmd = &cobra.Command{
	Use:   "tick [provider]",
	Short: "Advance ingestion by one step",
	Long: `Evaluates the ingestion lifecycle once. If a provider is given, only that
provider is ticked. Otherwise, every configured provider is ticked in turn.

A tick that finds its provider resting or backing off does nothing until the
period has elapsed. Interrupting a tick stops its burst after the current page.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTick,
}

func init() {
	rootCmd.AddCommand(tickCmd)
}

func runTick(cmd *cobra.Command, args []string) error {
	a, err := services(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	providers := a.Ingestion.Providers()
	if len(args) > 0 {
		providers = []string{args[0]}
		if err := a.Ingestion.Tick(ctx, args[0]); err != nil {
			return fmt.Errorf("tick failed: %w", err)
		}
	} else {
		if err := a.Ingestion.TickAll(ctx); err != nil {
			return fmt.Errorf("tick failed: %w", err)
		}
	}

	for _, p := range providers {
		status, err := a.Ingestion.Status(ctx, p)
		if err != nil {
			return err
		}
		cmd.Printf("Ticked %s: next action %s (%s)\n", p, orDash(status.NextAction), orDash(status.State))
	}
	return nil
}
