package cmd

import (
	"github.com/spf13/cobra"
)

var jiraCmd = &cobra.Command{
	Use:   "jira",
	Short: "Reconcile JIRA issues only",
	Long: `Fetch issues and their changelogs and refresh the records of commits
already stored. No GitHub request is made.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPass(cmd.Context(), cmd.OutOrStdout(), sources{jira: true}, nil)
	},
}
