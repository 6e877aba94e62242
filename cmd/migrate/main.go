package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/backoffice-backend/pkg/config"
	"github.com/angelmondragon/backoffice-backend/pkg/db"
	"github.com/angelmondragon/backoffice-backend/pkg/logger"
	"github.com/angelmondragon/backoffice-backend/pkg/migrate"
)

type options struct {
	dir     string
	name    string
	version string
	driver  string
}

// fileCommands never open a database connection.
var fileCommands = map[string]func(context.Context, *logger.Logger, options) error{
	"create": func(ctx context.Context, logg *logger.Logger, opts options) error {
		if opts.name == "" {
			return errors.New("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(opts.dir, opts.name)
		if err != nil {
			return err
		}
		logg.Info(logg.WithField(ctx, "path", path), "migrate.created")
		return nil
	},
	"validate": func(ctx context.Context, logg *logger.Logger, opts options) error {
		if err := migrate.ValidateDir(opts.dir); err != nil {
			return err
		}
		latest, err := migrate.LatestVersion(opts.dir)
		if err != nil {
			return err
		}
		logg.Info(logg.WithField(ctx, "latest_version", latest), "migrate.valid")
		return nil
	},
}

var dbCommands = map[string]func(context.Context, *logger.Logger, *migrate.Migrator, options) error{
	"up": func(ctx context.Context, logg *logger.Logger, m *migrate.Migrator, _ options) error {
		applied, err := m.Up(ctx)
		logg.Info(logg.WithField(ctx, "applied", applied), "migrate.up")
		return err
	},
	"down": func(ctx context.Context, _ *logger.Logger, m *migrate.Migrator, _ options) error {
		return m.Down(ctx)
	},
	"status": func(ctx context.Context, _ *logger.Logger, m *migrate.Migrator, _ options) error {
		statuses, err := m.Status(ctx)
		if err != nil {
			return err
		}
		for _, st := range statuses {
			applied := "-"
			if !st.AppliedAt.IsZero() {
				applied = st.AppliedAt.UTC().Format(time.RFC3339)
			}
			fmt.Printf("%-16d %-8s %-21s %s\n", st.Source.Version, st.State, applied, filepath.Base(st.Source.Path))
		}
		return nil
	},
	"version": func(ctx context.Context, _ *logger.Logger, m *migrate.Migrator, opts options) error {
		if opts.version == "" {
			return errors.New("missing -version for version command")
		}
		return m.MigrateTo(ctx, opts.version)
	},
}

func main() {
	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "migration command: "+strings.Join(commandNames(), "|"))
	var opts options
	flag.StringVar(&opts.dir, "dir", migrate.DefaultDir, "migrations directory; empty applies the set embedded in the binary")
	flag.StringVar(&opts.name, "name", "", "migration name (for create)")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "migrate"})
	cfg, err := config.Load()
	exitOnError(context.Background(), logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	opts.driver = cfg.DB.Driver
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":    cfg.App.Env,
		"cmd":    *cmd,
		"dir":    opts.dir,
		"driver": opts.driver,
	})

	if run, ok := fileCommands[*cmd]; ok {
		exitOnError(ctx, logg, *cmd, run(ctx, logg, opts))
		return
	}
	run, ok := dbCommands[*cmd]
	if !ok {
		exitOnError(ctx, logg, "flags", fmt.Errorf("unknown -cmd value %q", *cmd))
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	exitOnError(ctx, logg, "database", err)
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	exitOnError(ctx, logg, "sql database", err)
	migrator, err := migrate.New(sqlDB, opts.driver, migrate.Source(opts.dir))
	exitOnError(ctx, logg, "migrator", err)

	logg.Info(ctx, "migrate.start")
	if err := run(ctx, logg, migrator, opts); err != nil {
		dbClient.Close()
		exitOnError(ctx, logg, *cmd, err)
	}
	logg.Info(ctx, "migrate.done")
}

func commandNames() []string {
	names := make([]string, 0, len(fileCommands)+len(dbCommands))
	for name := range fileCommands {
		names = append(names, name)
	}
	for name := range dbCommands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func exitOnError(ctx context.Context, logg *logger.Logger, stage string, err error) {
	if err == nil {
		return
	}
	logg.Error(logg.WithField(ctx, "stage", stage), "migrate.failed", err)
	os.Exit(1)
}
