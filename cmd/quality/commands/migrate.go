package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/pkg/config"
	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/pkg/database"
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the quality tables",
	Long: `Creates data_quality_metrics and data_quality_issues if missing.

With --with-monitored the ingested energy_consumption and weather_data
tables are created as well, for local development.

Example:
  go run ./cmd/quality migrate
  go run ./cmd/quality migrate --with-monitored
  go run ./cmd/quality migrate --print`,
	RunE: runMigrate,
}

var (
	migrateWithMonitored bool
	migratePrint         bool
)

func init() {
	rootCmd.AddCommand(migrateCmd)

	migrateCmd.Flags().BoolVar(&migrateWithMonitored, "with-monitored", false, "also create the monitored tables")
	migrateCmd.Flags().BoolVar(&migratePrint, "print", false, "print the DDL without applying it")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	if migratePrint {
		for _, stmt := range database.SchemaStatements(migrateWithMonitored) {
			fmt.Printf("%s;\n\n", stmt)
		}
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := db.Migrate(ctx, migrateWithMonitored); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	PrintSuccess(fmt.Sprintf("Applied %d statements", len(database.SchemaStatements(migrateWithMonitored))))
	return nil
}
