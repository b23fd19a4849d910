package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/riskcheck/internal/logging"
	"github.com/ppiankov/riskcheck/internal/store/postgres"
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Long:  `Apply the embedded schema migrations to the database at DATABASE_URL.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		cfg, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}
		if cfg.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is not set")
		}
		logging.Init(cfg.Log)

		pool, err := postgres.Open(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer pool.Close()

		version, err := postgres.Migrate(ctx, pool)
		if err != nil {
			return err
		}
		fmt.Printf("Database at schema version %d\n", version)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
