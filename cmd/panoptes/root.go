package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vaibhaw-/panoptes/internal/panoptes/config"
	"github.com/vaibhaw-/panoptes/internal/panoptes/logger"
)

var (
	cfgFile string
	Version = "v0.1"
	build   = "dev"

	// loaded holds the config read in PersistentPreRunE.
	loaded config.Config

	rootCmd = &cobra.Command{
		Use:           "panoptes",
		Short:         "Panoptes - SQL statement auditing",
		Long:          "Panoptes: audit table provisioning, audit log queries and synthetic workloads.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cfgFile != "" {
				viper.SetConfigFile(cfgFile)
			} else {
				viper.SetConfigFile("panoptes.yaml")
			}
			viper.SetEnvPrefix("PANOPTES")
			viper.AutomaticEnv()
			if err := viper.ReadInConfig(); err != nil {
				// commands that only need flags still work without a file
				fmt.Fprintf(os.Stderr, "Warning: could not read config (%v). Using defaults and flags.\n", err)
			}

			viper.SetDefault("log_level", "info")
			if err := logger.InitLogger(viper.GetString("log_level")); err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			cfg, err := config.Load(viper.GetViper())
			if err != nil {
				return err
			}
			loaded = cfg
			return nil
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./panoptes.yaml)")
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(createTableCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(simulateCmd)
}

// loadedDSN is the audit database connection string. It lives outside
// config.Config because the library takes a live handle, not a DSN.
func loadedDSN() string {
	return viper.GetString("transports.database.dsn")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
