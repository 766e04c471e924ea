package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/nugl/affiliate-engine/internal/config"
)

// Cfg holds the loaded configuration, accessible to all subcommands.
var Cfg *config.Config

// RootCmd is the base command. Subcommands (run-server, migrate, stats,
// rematch) register themselves from their own init() functions, which
// keeps this package free of import cycles.
var RootCmd = &cobra.Command{
	Use:   "affiliate-engine",
	Short: "Affiliate attribution and earnings engine",
	Long: `Records outbound affiliate clicks, matches partner-reported
conversions to clicks with last-click attribution, computes commissions
and serves dashboard projections.`,
}

// Execute is the entry point called from main.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	var err error
	Cfg, err = config.LoadConfig()
	if err != nil {
		log.Printf("Warning: problem loading configuration: %v. Using default values.", err)
	}
}
