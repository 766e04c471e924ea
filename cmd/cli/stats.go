package cli

import (
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/glebarez/sqlite"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/nugl/affiliate-engine/cmd"
	"github.com/nugl/affiliate-engine/internal/config"
	"github.com/nugl/affiliate-engine/internal/registry"
	"github.com/nugl/affiliate-engine/internal/services"
)

// StatsCmd prints earnings summaries, for one partner or all of them.
var StatsCmd = &cobra.Command{
	Use:   "stats [partner-id]",
	Short: "Print earnings statistics for a partner, or all partners.",
	Args:  cobra.MaximumNArgs(1),
	Run:   runStats,
}

func init() {
	cmd.RootCmd.AddCommand(StatsCmd)
}

func runStats(cobraCmd *cobra.Command, args []string) {
	partnerID := ""
	if len(args) > 0 {
		partnerID = args[0]
	}

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

	reg, err := registry.Load(cfg.Registry.PartnersFile)
	if err != nil {
		log.Fatalf("Failed to load partner registry: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	aggregator := services.NewEarningsAggregator(db, reg, logger)

	summaries, err := aggregator.Recompute(partnerID)
	if err != nil {
		fmt.Printf("Error computing statistics: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%-24s %8s %12s %12s %12s %8s\n",
		"PARTNER", "CLICKS", "CONVERSIONS", "REVENUE", "COMMISSION", "RATE")
	for _, s := range summaries {
		fmt.Printf("%-24s %8d %12d %12.2f %12.2f %7.1f%%\n",
			s.PartnerName, s.Clicks, s.Conversions, s.Revenue, s.Commission, s.ConversionRate*100)
	}
}
