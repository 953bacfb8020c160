package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielolaszy/weave/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the outcome of the last pass",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		run, err := st.LastRun(cmd.Context())
		if errors.Is(err, store.ErrNotFound) {
			fmt.Fprintln(cmd.OutOrStdout(), "No passes recorded")
			return nil
		}
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Last run %s at %s\n", run.ID, run.FinishedAt.Format(time.RFC3339))
		fmt.Fprintf(w, "  commits  inserted=%d updated=%d skipped=%d failed=%d\n", run.CommitsInserted, run.CommitsUpdated, run.CommitsSkipped, run.CommitsFailed)
		fmt.Fprintf(w, "  issues   inserted=%d updated=%d skipped=%d failed=%d\n", run.IssuesInserted, run.IssuesUpdated, run.IssuesSkipped, run.IssuesFailed)
		fmt.Fprintf(w, "  records  inserted=%d updated=%d skipped=%d failed=%d\n", run.RecordsInserted, run.RecordsUpdated, run.RecordsSkipped, run.RecordsFailed)
		if len(run.FailedKeys) > 0 {
			fmt.Fprintf(w, "Failed: %s\n", strings.Join(run.FailedKeys, ", "))
		}
		return nil
	},
}
