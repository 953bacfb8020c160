// Package cmd provides the command-line interface for weave.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/danielolaszy/weave/internal/config"
	"github.com/danielolaszy/weave/internal/logging"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "weave",
	Short: "Weave reconciles GitHub commits with JIRA issues",
	Long: `Weave is a CLI tool that reconciles the commit history of a GitHub repository
with the issues of a JIRA project. Every commit that references an issue key in its
message becomes a record carrying the issue's status, the workflow stage the issue
was in when the commit was made and the person who owns the commit.

Passes are incremental: data already stored is never fetched or written again.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		v, err := config.New(cfgFile)
		if err != nil {
			return err
		}

		flags := cmd.Root().PersistentFlags()
		v.BindPFlag("github.repository", flags.Lookup("repository"))
		v.BindPFlag("database.path", flags.Lookup("db"))
		v.BindPFlag("log.level", flags.Lookup("log-level"))
		v.BindPFlag("log.format", flags.Lookup("log-format"))

		cfg = config.FromViper(v)
		logging.SetupLoggerWithFormat(os.Stderr, logging.LogLevel(cfg.Log.Level), logging.Format(cfg.Log.Format))
		return nil
	},
}

// Execute adds all child commands to the root command and runs it until
// an interrupt cancels the context.
func Execute() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default "+config.DefaultFile+" when present)")
	rootCmd.PersistentFlags().StringP("repository", "r", "", "GitHub repository name (e.g., 'owner/repo')")
	rootCmd.PersistentFlags().String("db", "", "path of the SQLite database")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().String("log-format", "", "log format: text or json")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(githubCmd)
	rootCmd.AddCommand(jiraCmd)
	rootCmd.AddCommand(identitiesCmd)
	rootCmd.AddCommand(stagesCmd)
	rootCmd.AddCommand(statusCmd)
}
