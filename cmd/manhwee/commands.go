package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sakif/manhwee/internal/config"
	"github.com/sakif/manhwee/internal/logging"
	sqliteRepo "github.com/sakif/manhwee/internal/repository/sqlite"
	"github.com/sakif/manhwee/internal/server"
	"github.com/sakif/manhwee/internal/service"
)

// app carries what every subcommand needs after flags are parsed.
type app struct {
	v          *viper.Viper
	configFile string
}

func newRootCommand() *cobra.Command {
	a := &app{v: config.New()}

	root := &cobra.Command{
		Use:           "manhwee",
		Short:         "Personal manhwa reading tracker",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "optional config file (yaml, json, toml or env)")
	flags.Int("port", 8080, "HTTP port")
	flags.String("env", "dev", "dev (text logs) or prod (JSON logs)")
	flags.String("log-level", "info", "debug, info, warn or error")
	flags.String("db", "data/manhwee.db", "SQLite database path")
	flags.String("storage", config.BackendSQLite, "item backend: sqlite, file or memory")
	flags.String("data-file", "data/items.json", "JSON file for the file backend")

	for key, flag := range map[string]string{
		"PORT":            "port",
		"ENV":             "env",
		"LOG_LEVEL":       "log-level",
		"DB_PATH":         "db",
		"STORAGE_BACKEND": "storage",
		"DATA_FILE":       "data-file",
	} {
		// Only errors for a nil flag.
		_ = a.v.BindPFlag(key, flags.Lookup(flag))
	}

	root.AddCommand(
		a.serveCommand(),
		a.migrateCommand(),
		a.importCommand(),
		a.exportCommand(),
	)
	return root
}

// load reads and validates configuration and builds the logger.
func (a *app) load() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(a.v, a.configFile)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func (a *app) serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := a.load()
			if err != nil {
				return err
			}

			srv, err := server.New(cfg, logger)
			if err != nil {
				return fmt.Errorf("creating server: %w", err)
			}
			// Start blocks until SIGINT/SIGTERM.
			return srv.Start(cmd.Context())
		},
	}
}

func (a *app) migrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the SQLite schema",
	}

	run := func(direction string) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.v, a.configFile)
			if err != nil {
				return err
			}

			db, err := sqliteRepo.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			if direction == "up" {
				err = db.MigrateUp()
			} else {
				err = db.MigrateDown()
			}
			if err != nil {
				return err
			}

			version, dirty, err := db.Version()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty=%t)\n", version, dirty)
			return nil
		}
	}

	cmd.AddCommand(
		&cobra.Command{Use: "up", Short: "Apply all pending migrations", Args: cobra.NoArgs, RunE: run("up")},
		&cobra.Command{Use: "down", Short: "Roll back every migration", Args: cobra.NoArgs, RunE: run("down")},
	)
	return cmd
}

func (a *app) importCommand() *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import a JSON array of items into a user's collection",
		Long: "Reads a JSON array of items, either this server's export or the older " +
			"browser export, from file or stdin and adds them to --user's collection.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			return a.withOwner(cmd.Context(), user, func(ctx context.Context, t *transfer) error {
				records, err := service.DecodeImport(in)
				if err != nil {
					return err
				}
				n, err := service.ImportItems(ctx, t.items, t.ownerID, records)
				t.logger.Info("import finished", slog.Int("imported", n), slog.Int("records", len(records)))
				return err
			})
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "username or email of the owner (required)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func (a *app) exportCommand() *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Print a user's collection as a JSON array",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withOwner(cmd.Context(), user, func(ctx context.Context, t *transfer) error {
				n, err := service.ExportItems(ctx, t.items, t.ownerID, cmd.OutOrStdout())
				t.logger.Debug("export finished", slog.Int("items", n))
				return err
			})
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "username or email of the owner (required)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
