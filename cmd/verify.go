package cmd

import (
	"fmt"

	"github.com/apex/log"
	"github.com/spf13/cobra"

	"github.com/lockplane/provision/internal/config"
	"github.com/lockplane/provision/internal/database"
	"github.com/lockplane/provision/internal/verify"
)

var verifyDB string

var verifyCmd = &cobra.Command{
	Use:   "verify <script>",
	Short: "Run a script's verify queries",
	Long: `Run the verify queries configured for a script in provision.toml and
print their results. A failing query is reported and the rest still run.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if cfg.ConfigFilePath == "" {
			printConfigNotFound()
			return fmt.Errorf("%s not found", config.FileName)
		}

		target, err := resolveScript(cfg, "", args[0])
		if err != nil {
			return err
		}
		if len(target.Verify) == 0 {
			return fmt.Errorf("script %q has no verify queries", target.Name)
		}

		ctx := cmd.Context()
		_, _, db, _, err := openTarget(ctx, cfg, environmentFor(target), verifyDB, database.Options{})
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		results := verify.Run(ctx, db, target.Verify, log.Log)
		if err := verify.Render(cmd.OutOrStdout(), results); err != nil {
			return err
		}
		if n := verify.Failed(results); n > 0 {
			return fmt.Errorf("%d of %d verify queries failed", n, len(results))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	verifyCmd.Flags().StringVar(&verifyDB, "db", "", "Database connection string (overrides the environment)")
}
