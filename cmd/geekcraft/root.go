// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GeekCraft Contributors

package main

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/geekcraft/geekcraft/internal/auth"
	"github.com/geekcraft/geekcraft/internal/auth/sqlite"
	"github.com/geekcraft/geekcraft/internal/authdb"
	"github.com/geekcraft/geekcraft/internal/config"
	"github.com/geekcraft/geekcraft/internal/logging"
	"github.com/geekcraft/geekcraft/internal/xdg"
)

// flagKeys maps persistent flags to configuration keys.
var flagKeys = map[string]string{
	"log-format": "log.format",
	"log-level":  "log.level",
	"backend":    "database.backend",
	"db-path":    "database.path",
	"db-url":     "database.url",
}

// cli holds state shared by every subcommand.
type cli struct {
	configFile string
	deps       *Deps
}

// NewRootCmd creates the root command for the GeekCraft CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(nil)
}

func newRootCmd(deps *Deps) *cobra.Command {
	c := &cli{deps: deps.withDefaults()}

	cmd := &cobra.Command{
		Use:   "geekcraft",
		Short: "GeekCraft - account and session service",
		Long: `GeekCraft registers accounts, authenticates logins and issues
session tokens over a pluggable storage backend (memory, relational,
key-value or document).`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&c.configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/geekcraft/config.yaml)")
	flags.String("log-format", "", "log format (json or text)")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("backend", "", "storage backend (memory, relational, keyvalue, document)")
	flags.String("db-path", "", "relational database path or postgres:// URL (default: XDG_DATA_HOME/geekcraft/auth.db)")
	flags.String("db-url", "", "key-value or document database URL")

	cmd.AddCommand(newServeCmd(c))
	cmd.AddCommand(newMigrateCmd(c))
	cmd.AddCommand(newSweepCmd(c))
	cmd.AddCommand(newUserCmd(c))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// loadConfig resolves configuration for cmd and builds its logger.
func (c *cli) loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	file := c.configFile
	if file == "" {
		if path, ok := xdg.ConfigFile(); ok {
			file = path
		}
	}

	cfg, err := config.Load(config.Options{
		File:     file,
		Flags:    cmd.Flags(),
		FlagKeys: flagKeys,
	})
	if err != nil {
		return nil, nil, err
	}

	logger, err := logging.Setup(logging.Options{
		Service: "geekcraft",
		Version: version,
		Format:  cfg.Log.Format,
		Level:   cfg.Log.Level,
		Writer:  cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	return cfg, logger, nil
}

// runtime is an opened database plus the service over it.
type runtime struct {
	cfg     *config.Config
	logger  *slog.Logger
	db      *authdb.Database
	service *auth.Service
}

// open loads configuration, opens the backend and builds the service.
// reg may be nil when metrics are not served.
func (c *cli) open(cmd *cobra.Command, reg prometheus.Registerer) (*runtime, error) {
	cfg, logger, err := c.loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	dbCfg, err := cfg.AuthDB()
	if err != nil {
		return nil, err
	}

	if dbCfg.Backend == authdb.KindRelational && !authdb.IsPostgresURL(dbCfg.Path) && dbCfg.Path != sqlite.MemoryPath {
		if err := xdg.EnsureDir(filepath.Dir(dbCfg.Path)); err != nil {
			return nil, err
		}
	}

	var dbOpts []authdb.Option
	var svcOpts []auth.ServiceOption
	if reg != nil {
		dbOpts = append(dbOpts, authdb.WithMetrics(authdb.NewMetrics(reg)))
		svcOpts = append(svcOpts, auth.WithMetrics(auth.NewMetrics(reg)))
	}

	db, err := c.deps.DatabaseOpener(cmd.Context(), dbCfg, logger, dbOpts...)
	if err != nil {
		return nil, err
	}

	hasher, err := auth.NewPasswordHasher(cfg.Auth.Hasher, cfg.Auth.Cost)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	svcOpts = append(svcOpts,
		auth.WithLogger(logger),
		auth.WithSessionDuration(cfg.Sessions.Duration),
	)
	svc, err := auth.NewService(db, hasher, svcOpts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &runtime{cfg: cfg, logger: logger, db: db, service: svc}, nil
}

func (r *runtime) close() {
	if err := r.db.Close(); err != nil {
		r.logger.Warn("error closing database", "error", err)
	}
}

// newVersionCmd prints build information.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.Printf("geekcraft %s (commit: %s, built: %s)\n", version, commit, date)
			return nil
		},
	}
}
