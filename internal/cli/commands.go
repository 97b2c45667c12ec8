package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	apperrors "complaintsync/internal/errors"
	"complaintsync/internal/health"
	"complaintsync/internal/importer"
	"complaintsync/internal/notion"
	"complaintsync/internal/syncer"
)

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	File string
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load a CSV export into the complaint table",
		Long: `Reconcile every row of a CSV export of the complaint database.

Rows are inserted or updated by complaint id; running the same file twice
leaves the table unchanged. Rows without an id are skipped.

Example:
  complaintsync import --file init-data/notion-export.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.File, "file", "", "CSV export to load (default: IMPORT_FILE)")
	return cmd
}

func runImport(ctx context.Context, opts *ImportOptions) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	if opts.File != "" {
		cfg.ImportFile = opts.File
	}
	if cfg.ImportFile == "" {
		return apperrors.NewConfigError("IMPORT_FILE", "no import file given")
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	im := importer.New(a.db, a.mapper, a.engine, a.log)
	s, err := im.Run(ctx, cfg.ImportFile)
	a.report(ctx, s, err)
	return err
}

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions
	Once bool
	All  bool
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Mirror recently edited pages into the complaint table",
		Long: `Query pages edited within SYNC_WINDOW and reconcile them, newest first.

Without --once the command keeps running, syncing every SYNC_INTERVAL and
serving /health and /metrics on HEALTH_CHECK_PORT when it is set.

Example:
  complaintsync sync
  complaintsync sync --once
  complaintsync sync --all`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd.Context(), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Once, "once", false, "run a single sync and exit")
	cmd.Flags().BoolVar(&opts.All, "all", false, "ignore the window and re-sync the most recent pages (implies --once)")
	return cmd
}

func runSync(ctx context.Context, opts *SyncOptions) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	if err := cfg.ValidateSync(); err != nil {
		return err
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	guard, closeGuard, err := a.guard(ctx)
	if err != nil {
		return err
	}
	defer closeGuard()

	src := notion.NewClient(cfg, a.log)
	s := syncer.New(src, a.db, a.mapper, a.engine, cfg.SyncWindow, a.log,
		syncer.WithGuard(guard),
		syncer.WithHook(a.report),
	)

	switch {
	case opts.All:
		_, err = s.RunAll(ctx)
	case opts.Once:
		_, err = s.Run(ctx)
	default:
		return a.serve(ctx, s)
	}
	if errors.Is(err, syncer.ErrRunInProgress) {
		a.log.Info("Another instance is syncing, nothing to do")
		return nil
	}
	return err
}

// serve runs the sync loop and, when a port is configured, the health
// server until ctx is done.
func (a *app) serve(ctx context.Context, s *syncer.Syncer) error {
	g, gctx := errgroup.WithContext(ctx)

	if a.cfg.HealthCheckPort != "" {
		srv := health.NewServer(a.monitor, a.metrics, a.cfg.HealthCheckPort, a.log)
		g.Go(func() error { return srv.Run(gctx) })
	}
	g.Go(func() error { return s.Loop(gctx, a.cfg.SyncInterval) })

	err := g.Wait()
	a.log.Info("Shutting down sync")
	return err
}

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the complaint table if it does not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.db.Migrate(ctx); err != nil {
				return err
			}
			a.log.Info("Complaint table ready", "driver", a.db.Dialect(), "table", cfg.DBTable)
			return nil
		},
	}
}
