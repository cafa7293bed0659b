package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dukerupert/mindthecat/internal/config"
	"github.com/dukerupert/mindthecat/internal/database"
	"github.com/dukerupert/mindthecat/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "mindthecat",
		Short:         "Shared chore tracker with overdue notifications",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")

	root.AddCommand(newServeCmd(&configPath))
	root.AddCommand(newWatchCmd(&configPath))
	root.AddCommand(newCheckCmd(&configPath))
	root.AddCommand(newSweepCmd(&configPath))
	root.AddCommand(newVAPIDKeysCmd())
	root.AddCommand(newUserCmd(&configPath))
	root.AddCommand(newGroupCmd(&configPath))
	return root
}

// env is what every command that touches the database needs.
type env struct {
	cfg    config.Config
	db     *sql.DB
	logger *slog.Logger
}

func (e *env) Close() error {
	return e.db.Close()
}

// open loads the config and opens the database. When logger is nil the
// default stderr logger from the config is installed.
func open(configPath string, logger *slog.Logger) (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Setup(cfg.LogLevel, cfg.LogFormat)
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return &env{cfg: cfg, db: db, logger: logger}, nil
}
