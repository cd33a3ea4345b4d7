package main

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/hackgods/clinic-appointment-assistant/internal/config"
	"github.com/hackgods/clinic-appointment-assistant/internal/logging"
	"github.com/hackgods/clinic-appointment-assistant/migrations"
)

// Usage: migrate [up|down|force <version>]
func main() {
	cfg, err := config.Load()
	if err != nil {
		fatal(logging.Default(), "config load error", err)
	}
	logger := logging.New(cfg.LogLevel).With("service", "migrate")
	if cfg.StoreBackend != config.StoreBackendPostgres {
		fatal(logger, "migrations need STORE_BACKEND=postgres", errors.New("wrong backend"))
	}

	db, err := sql.Open("pgx", cfg.PostgresDSN)
	if err != nil {
		fatal(logger, "open db", err)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		fatal(logger, "ping db", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		fatal(logger, "db driver", err)
	}
	srcDriver, err := iofs.New(migrations.FS, ".")
	if err != nil {
		fatal(logger, "source driver", err)
	}
	m, err := migrate.NewWithInstance("iofs", srcDriver, "postgres", dbDriver)
	if err != nil {
		fatal(logger, "create migrator", err)
	}
	defer func() { _, _ = m.Close() }()

	cmd := "up"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "up":
		err = m.Up()
	case "down":
		err = m.Steps(-1)
	case "force":
		if len(os.Args) < 3 {
			fatal(logger, "force needs a version", errors.New("missing version"))
		}
		version, convErr := strconv.Atoi(os.Args[2])
		if convErr != nil {
			fatal(logger, "invalid version", convErr)
		}
		err = m.Force(version)
	default:
		fatal(logger, "unknown command", fmt.Errorf("%q", cmd))
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		fatal(logger, "migrate "+cmd, err)
	}

	version, dirty, _ := m.Version()
	logger.Info("migrations complete", "command", cmd, "version", version, "dirty", dirty)
}

func fatal(logger *logging.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}
