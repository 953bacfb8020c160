package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var stagesCmd = &cobra.Command{
	Use:   "stages ISSUE-KEY",
	Short: "Show the stage of every commit referencing an issue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		key := strings.ToUpper(args[0])
		records, err := st.RecordsForIssue(cmd.Context(), key)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "No commits reference %s\n", key)
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "COMMIT\tCOMMITTED\tSTAGE\tSTATUS\tOWNER")
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", shortSHA(r.SHA), r.CommittedAt.Format(time.RFC3339), r.Stage, r.Status, r.Owner)
		}
		return w.Flush()
	},
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
