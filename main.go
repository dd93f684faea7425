package main

import (
	"fmt"
	"io"
	"os"

	"stagebased/config"
	"stagebased/db"
	"stagebased/logger"

	"github.com/jinzhu/gorm"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type app struct {
	conf   config.Configuration
	log    zerolog.Logger
	db     *gorm.DB
	closer io.Closer
}

var (
	configPath string
	state      app
)

var rootCmd = &cobra.Command{
	Use:   "stagebased",
	Short: "Staged message campaigns: subscriptions, dispatch and schedule sync",
	Long: `stagebased drives subscriptions through sequenced message sets.

Commands:
  serve     - Start the HTTP API and task workers
  send      - Dispatch the next message of one subscription
  metrics   - Fire the scheduled metrics sweep
  schedule  - Create or disable a subscription's remote schedule
  user      - Issue API tokens for users
  migrate   - Create or update the database tables`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		conf, err := config.Get(configPath)
		if err != nil {
			return err
		}
		log, closer, err := logger.New(conf.LogLevel, conf.LogPath)
		if err != nil {
			return err
		}
		database, err := db.Connect(conf, log)
		if err != nil {
			_ = closer.Close()
			return err
		}
		state = app{conf: conf, log: log, db: database, closer: closer}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if state.db != nil {
			_ = state.db.Close()
		}
		if state.closer != nil {
			return state.closer.Close()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a JSON config file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
