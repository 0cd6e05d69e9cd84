package cmd

import (
	"os"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/spf13/cobra"
)

var (
	verbose     bool
	environment string
)

var rootCmd = &cobra.Command{
	Use:   "provision",
	Short: "Apply SQL scripts to a database, idempotently",
	Long: `provision applies SQL scripts (privileges, migrations, full schemas with
stored procedures, functions and triggers) to MySQL, PostgreSQL, SQLite or
libSQL.

A script is first sent to the server in one call. If the connection cannot
do that, or an object already exists, it is split into statements and run
one by one, skipping objects that already exist. If a statement still
fails, the original script is handed to the engine's command-line client.`,
	Version:       getVersion(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&environment, "environment", "e", "", "Environment from provision.toml (defaults to default_environment, then local)")
}

func setupLogging(verbose bool) {
	log.SetHandler(cli.New(os.Stderr))
	if verbose {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).Error("provision failed")
		os.Exit(1)
	}
}
