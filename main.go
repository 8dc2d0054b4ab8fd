package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/5amCurfew/tap-pagerduty/cmd"
	"github.com/5amCurfew/tap-pagerduty/models"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var version = "0.1.0"
var discover bool = false
var refresh bool = false
var statePath string
var catalogPath string

func main() {
	Execute()
}

func Execute() {
	rootCmd.Flags().BoolVarP(&discover, "discover", "d", false, "run the tap in discovery mode, writing the catalog to stdout")
	rootCmd.Flags().BoolVarP(&refresh, "refresh", "r", false, "extract all records from the configured since rather than from the stored bookmarks")
	rootCmd.Flags().StringVarP(&statePath, "state", "s", "", "path to the state JSON file to resume from and checkpoint to")
	rootCmd.Flags().StringVarP(&catalogPath, "catalog", "c", "", "path to a catalog JSON file selecting the streams to sync")

	if err := rootCmd.Execute(); err != nil {
		log.WithFields(log.Fields{"Error": err}).Fatalln("error using tap-pagerduty")
		os.Exit(1)
	} else {
		os.Exit(0)
	}
}

var rootCmd = &cobra.Command{
	Use:           "tap-pagerduty [PATH_TO_CONFIG_JSON]",
	Version:       version,
	Short:         "tap-pagerduty - Singer tap for the PagerDuty REST API",
	Long:          `tap-pagerduty extracts incidents, notifications, on-calls, services, escalation policies, schedules and users from the PagerDuty REST API and writes them as Singer messages to stdout.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(command *cobra.Command, args []string) error {
		log.SetFormatter(&log.JSONFormatter{})
		log.SetOutput(os.Stderr)

		if discover {
			if err := cmd.Discover(os.Stdout); err != nil {
				return fmt.Errorf("failed to discover streams: %w", err)
			}
			return nil
		}

		// Default to config.json if no path is provided
		cfgPath := "config.json"
		if len(args) > 0 {
			cfgPath = args[0]
		} else {
			log.Info("no config JSON path provided, defaulting to config.json")
		}

		config, err := readConfig(cfgPath)
		if err != nil {
			return fmt.Errorf("error parsing config JSON: %w", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if _, err := cmd.Extract(ctx, cmd.Options{
			Config:      config,
			StatePath:   statePath,
			CatalogPath: catalogPath,
			Refresh:     refresh,
			Out:         os.Stdout,
		}); err != nil {
			return fmt.Errorf("failed to extract records: %w", err)
		}

		return nil
	},
}

// readConfig reads the config file, then lets the environment (including a
// .env file in the working directory) override credentials
func readConfig(filePath string) (*models.Config, error) {
	_ = godotenv.Load(".env")

	config, readConfigError := os.ReadFile(filePath)
	if readConfigError != nil {
		return nil, fmt.Errorf("error reading %s: %w", filePath, readConfigError)
	}

	var cfg models.Config
	if jsonError := json.Unmarshal(config, &cfg); jsonError != nil {
		return nil, fmt.Errorf("error unmarshalling %s: %w", filePath, jsonError)
	}
	cfg.LoadFromEnv(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
