package cmd

import (
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile GitHub commits with JIRA issues",
	Long: `Run a full reconciliation pass.

Commits of every branch (or of the branches given with -B/--branch) and every issue
matched by the configured JQL are fetched concurrently. New commits are stored with
their files, tags and words; each commit referencing an issue is mapped onto the
issue's status timeline and stored as a reconciled record.

Example:
  weave sync -r owner/repo -B main -B release`,
	RunE: func(cmd *cobra.Command, args []string) error {
		branches, err := cmd.Flags().GetStringSlice("branch")
		if err != nil {
			return err
		}
		return runPass(cmd.Context(), cmd.OutOrStdout(), sources{github: true, jira: true}, branches)
	},
}

func init() {
	syncCmd.Flags().StringSliceP("branch", "B", nil, "branches to walk (default all)")
}
