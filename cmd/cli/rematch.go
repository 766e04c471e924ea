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
	"github.com/nugl/affiliate-engine/internal/repository"
	"github.com/nugl/affiliate-engine/internal/services"
)

// RematchCmd replays the match step for conversions that never got a
// terminal outcome (interrupted by a crash or store failure) and for
// conversions whose partner was unknown at the time but has since been
// added to the registry.
var RematchCmd = &cobra.Command{
	Use:   "rematch",
	Short: "Replays attribution for pending and unknown-partner conversions.",
	Run: func(cobraCmd *cobra.Command, args []string) {
		cfg, err := config.LoadConfig()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}

		db, err := gorm.Open(sqlite.Open(cfg.Database.Name), &gorm.Config{TranslateError: true})
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
		matcher := services.NewConversionMatcher(
			repository.NewConversionRepository(db),
			repository.NewClickRepository(db),
			reg, logger, nil,
		)

		attributed, err := matcher.Rematch()
		if err != nil {
			fmt.Printf("Error replaying attribution: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Rematch complete: %d conversion(s) newly attributed.\n", attributed)
	},
}

func init() {
	cmd.RootCmd.AddCommand(RematchCmd)
}
