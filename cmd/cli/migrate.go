package cli

import (
	"fmt"
	"log"

	"github.com/glebarez/sqlite"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/nugl/affiliate-engine/cmd"
	"github.com/nugl/affiliate-engine/internal/config"
	"github.com/nugl/affiliate-engine/internal/models"
)

// MigrateCmd creates or updates the database schema.
var MigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Executes database migrations to create or update tables.",
	Long: `Connects to the configured SQLite database and runs GORM automatic
migrations for the clicks, conversions, attribution_links,
partner_summaries, referral_codes and referrals tables.`,
	Run: func(cobraCmd *cobra.Command, args []string) {
		cfg, err := config.LoadConfig()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}

		db, err := gorm.Open(sqlite.Open(cfg.Database.Name), &gorm.Config{})
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}

		sqlDB, err := db.DB()
		if err != nil {
			log.Fatalf("Failed to get underlying SQL database: %v", err)
		}
		defer sqlDB.Close()

		if err := db.AutoMigrate(
			&models.Click{}, &models.Conversion{}, &models.AttributionLink{},
			&models.PartnerSummary{}, &models.ReferralCode{}, &models.Referral{},
		); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}

		fmt.Println("Database migrations executed successfully.")
	},
}

func init() {
	cmd.RootCmd.AddCommand(MigrateCmd)
}
