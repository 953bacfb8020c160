package cmd

import (
	"github.com/spf13/cobra"
)

var githubCmd = &cobra.Command{
	Use:   "github",
	Short: "Reconcile GitHub commits only",
	Long: `Fetch and store commits without touching issues.

When JIRA is configured it is still queried for the assignees of referenced issues,
so that commit owners can be discovered.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		branches, err := cmd.Flags().GetStringSlice("branch")
		if err != nil {
			return err
		}
		return runPass(cmd.Context(), cmd.OutOrStdout(), sources{github: true}, branches)
	},
}

func init() {
	githubCmd.Flags().StringSliceP("branch", "B", nil, "branches to walk (default all)")
}
