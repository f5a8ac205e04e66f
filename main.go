package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"mdbed/internal/dblib"
)

// set by the linker
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := &Config{}
	cmd := &cobra.Command{
		Use:   "mdbed <file|alias> [table]",
		Short: "mdbed is a table editor for Access, SQLite, PostgreSQL and MySQL databases",
		Long: `mdbed browses the tables of a database in a tree and opens them as
editable grids. Cell edits are staged and saved together in one transaction;
rows are located by their primary key, or by the best substitute column when
the table has none.

Examples:
  mdbed orders.accdb
  mdbed shop.db customers
  mdbed --type mysql --host db.local shop`,
		Version:       version,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEditor(cmd, cfg, args)
		},
	}
	cmd.PersistentFlags().BoolP("help", "", false, "help for mdbed")
	addConnectionFlags(cmd.PersistentFlags(), cfg)
	addLoggerFlags(cmd.PersistentFlags())

	cmd.AddCommand(newTablesCmd(cfg))
	cmd.AddCommand(newKeyCmd(cfg))
	cmd.AddCommand(newBulkCmd(cfg))
	return cmd
}

// prepare loads settings, resolves the database argument and sets up
// logging and error reporting. The returned cleanup must be called on exit.
func prepare(cmd *cobra.Command, cfg *Config, dbArg string, interactive bool) (*Settings, func(), error) {
	settings, err := LoadSettings()
	if err != nil {
		return nil, nil, fmt.Errorf("error loading settings: %w", err)
	}
	if err := settings.Resolve(dbArg, cfg); err != nil {
		return nil, nil, err
	}

	logCleanup, err := setupLogger(cmd, interactive)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if logCleanup != nil {
			logCleanup()
		}
	}
	if settings.SentryDSN != "" {
		if err := InitSentry(settings.SentryDSN); err != nil {
			getLogger(cmd).Error(err, "sentry disabled")
		} else {
			InitBreadcrumbs(50)
			prev := cleanup
			cleanup = func() {
				FlushAndShutdown()
				prev()
			}
		}
	}
	return settings, cleanup, nil
}

func runEditor(cmd *cobra.Command, cfg *Config, args []string) error {
	_, cleanup, err := prepare(cmd, cfg, args[0], true)
	if err != nil {
		return err
	}
	defer cleanup()

	logger := getLogger(cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	session, err := cfg.Open(ctx, logger)
	if err != nil {
		CaptureError(err)
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer session.Close()

	tables, err := session.Tables(ctx)
	if err != nil {
		CaptureError(err)
		return err
	}

	surface := newTeaSurface()
	reconciler := dblib.NewReconciler(session, dblib.NewResolver(session), surface)
	model := NewModel(ctx, cfg, session, reconciler, surface, tables)
	if len(args) == 2 {
		model.initialTable = args[1]
	}

	p := tea.NewProgram(model, tea.WithAltScreen())
	surface.attach(p)
	if _, err := p.Run(); err != nil {
		CaptureError(err)
		return fmt.Errorf("error running program: %w", err)
	}
	return nil
}
