package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/shalynjjj/prompt2CAD/internal/migration"
)

// =============================================================================
// Database Migration Commands
// =============================================================================

// runMigrate handles `prompt2cad migrate [flags] <action> [args]`.
func runMigrate(args []string) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	dbType := fs.String("db-type", "", "Database type (postgres, mysql, sqlite)")
	dbURL := fs.String("db-url", "", "Database connection URL")
	fs.Usage = printMigrateUsage
	fs.Parse(args)

	rest := fs.Args()
	if len(rest) == 0 {
		printMigrateUsage()
		os.Exit(1)
	}
	action := rest[0]
	if action == "help" {
		printMigrateUsage()
		return
	}

	migrator, err := createMigrator(*configPath, *dbType, *dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create migrator: %v\n", err)
		os.Exit(1)
	}
	defer migrator.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := migration.NewCLI(migrator).Run(ctx, action, rest[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Migration %s failed: %v\n", action, err)
		migrator.Close()
		os.Exit(1)
	}
}

// createMigrator prefers an explicit --db-type/--db-url pair over the config file.
func createMigrator(configPath, dbType, dbURL string) (*migration.DefaultMigrator, error) {
	if dbType != "" && dbURL != "" {
		return migration.NewMigratorFromURL(dbType, dbURL)
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if dbType != "" {
		cfg.Database.Driver = dbType
	}
	return migration.NewMigratorFromConfig(cfg)
}

func printMigrateUsage() {
	fmt.Printf(`Database Migration Commands

Usage:
  prompt2cad migrate [options] <action> [args]

%s

Options:
  --config <path>     Path to configuration file (YAML)
  --db-type <type>    Database type: postgres, mysql, sqlite (default: from config)
  --db-url <url>      Database connection URL (default: from config)

Examples:
  prompt2cad migrate up
  prompt2cad migrate --config /etc/prompt2cad/config.yaml up
  prompt2cad migrate status
  prompt2cad migrate goto 1
  prompt2cad migrate force 0
`, migration.Usage)
}
