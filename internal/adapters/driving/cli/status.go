package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driving"
)

var statusCmd = &cobra.Command{
	Use:   "status [provider]",
	Short: "Show ingestion status",
	Long: `Shows where each provider is in its ingest/rest/backoff/cancel cycle,
the last checkpointed page and the most recent failure.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := services(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	var statuses []driving.IngestionStatus
	if len(args) > 0 {
		status, err := a.Ingestion.Status(ctx, args[0])
		if err != nil {
			return err
		}
		statuses = []driving.IngestionStatus{*status}
	} else {
		statuses, err = a.Ingestion.StatusAll(ctx)
		if err != nil {
			return err
		}
	}

	if len(statuses) == 0 {
		cmd.Println("No ingestions configured.")
		return nil
	}

	out := cmd.OutOrStdout()
	renderStatuses(out, stylesFor(out), statuses, time.Now())
	return nil
}

// renderStatuses writes one block per provider.
func renderStatuses(w io.Writer, s *Styles, statuses []driving.IngestionStatus, now time.Time) {
	for i, st := range statuses {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w, s.Title.Render(st.Provider))

		if !st.Exists {
			fmt.Fprintf(w, "  %s\n", s.Muted.Render("no ingestion yet (created on first tick)"))
			continue
		}

		fmt.Fprintf(w, "  ingestion:  %s\n", st.IngestionID)
		fmt.Fprintf(w, "  action:     %s (%s)\n", s.action(st.NextAction).Render(st.NextAction), st.State)
		if !st.NextActionAt.IsZero() {
			fmt.Fprintf(w, "  until:      %s\n", describeUntil(st.NextActionAt, now))
		}
		if st.LastSequence >= 0 {
			fmt.Fprintf(w, "  last mark:  %d\n", st.LastSequence)
		} else {
			fmt.Fprintf(w, "  last mark:  %s\n", s.Muted.Render("none"))
		}
		if st.Attempts > 0 {
			fmt.Fprintf(w, "  attempts:   %s\n", s.Warning.Render(fmt.Sprint(st.Attempts)))
		}
		if st.LastError != "" {
			fmt.Fprintf(w, "  last error: %s\n", s.Error.Render(firstLine(st.LastError)))
		}
	}
}

func describeUntil(at, now time.Time) string {
	stamp := at.Local().Format("2006-01-02 15:04:05")
	if !at.After(now) {
		return stamp + " (elapsed)"
	}
	return fmt.Sprintf("%s (in %s)", stamp, at.Sub(now).Round(time.Second))
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
