package main

import (
	"clurb/internal/config"
	"clurb/internal/db"
	"clurb/internal/logger"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "clurb",
	Short: "Clurb social reading server",
	Long: `clurb serves the reading API: libraries, shared documents, reading progress,
presence, sticky-note annotations and per-document chat.`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server (default)",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema and exit",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}

func bootstrap() (*zap.Logger, error) {
	config.LoadConfig()

	log, err := logger.New(config.AppConfig.Environment, config.AppConfig.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return log, nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	log, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Sync()

	database, err := db.Connect(config.AppConfig, log)
	if err != nil {
		return err
	}
	defer db.Close(database, log)

	return db.Migrate(database, log)
}

func runServe(cmd *cobra.Command, args []string) error {
	log, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Sync()

	database, err := db.Connect(config.AppConfig, log)
	if err != nil {
		return err
	}
	defer db.Close(database, log)

	if err := db.Migrate(database, log); err != nil {
		return err
	}

	app, err := newApp(cmd.Context(), database, log)
	if err != nil {
		return err
	}
	return app.run()
}
