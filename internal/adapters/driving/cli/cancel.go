package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel <provider>",
	Short: "Cancel a provider's active ingestion",
	Long: `Marks the provider's active ingestion for cancellation. The next tick
finalizes it and starts a fresh cycle from the first page.`,
	Args: cobra.ExactArgs(1),
	RunE: runCancel,
}

func init() {
	cancelCmd.Flags().StringP("reason", "r", "", "reason recorded with the cancellation")
	rootCmd.AddCommand(cancelCmd)
}

func runCancel(cmd *cobra.Command, args []string) error {
	a, err := services(cmd)
	if err != nil {
		return err
	}
	reason, err := cmd.Flags().GetString("reason")
	if err != nil {
		return fmt.Errorf("getting reason flag: %w", err)
	}

	if err := a.Ingestion.Cancel(cmd.Context(), args[0], reason); err != nil {
		return fmt.Errorf("cancel failed: %w", err)
	}
	cmd.Printf("Cancellation requested for %s.\n", args[0])
	return nil
}
