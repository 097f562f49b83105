package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/infrastructure/config"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/infrastructure/logger"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/infrastructure/migration"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/infrastructure/persistence"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/migrations"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

func main() {
	var (
		dir        string
		configPath string
		logLevel   string
	)
	flag.StringVar(&dir, "path", "", "Read migrations from this directory instead of the embedded set")
	flag.StringVar(&configPath, "config", "", "Path to a config.toml (default: ./config.toml or /app/config.toml)")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(2)
	}

	log, err := logger.New(&logger.Config{
		Level:      logLevel,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	if err := run(args, dir, configPath, log); err != nil {
		log.Error("Migration command failed", zap.String("command", args[0]), zap.Error(err))
		os.Exit(1)
	}
}

func run(args []string, dir, configPath string, log *zap.Logger) error {
	command := args[0]

	switch command {
	case "create":
		if len(args) < 2 {
			return errors.New("usage: migrate create <name> [description]")
		}
		if dir == "" {
			dir = "migrations"
		}
		description := ""
		if len(args) > 2 {
			description = args[2]
		}
		f, err := migration.Create(dir, args[1], description)
		if err != nil {
			return err
		}
		log.Info("Migration created",
			zap.Uint64("version", f.Version),
			zap.String("up_file", f.UpPath),
			zap.String("down_file", f.DownPath),
		)
		return nil

	case "list":
		files, err := migration.List(sourceFS(dir))
		if err != nil {
			return err
		}
		log.Info("Available migrations", zap.Int("count", len(files)))
		for _, f := range files {
			fmt.Println("  -", f.Base())
		}
		return nil
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if cfg.Database.Driver == "sqlite" {
		return runSQLite(command, cfg, log)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	m, err := migration.New(db, migration.Config{Dir: dir, FS: migrations.FS}, log)
	if err != nil {
		return err
	}
	defer m.Close()

	switch command {
	case "up":
		return m.Up()
	case "down":
		return m.Down()
	case "steps":
		if len(args) < 2 {
			return errors.New("usage: migrate steps <n>")
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid step count %q", args[1])
		}
		return m.Steps(n)
	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			return err
		}
		log.Info("Current migration version", zap.Uint("version", version), zap.Bool("dirty", dirty))
		return nil
	case "force":
		if len(args) < 2 {
			return errors.New("usage: migrate force <version>")
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version %q", args[1])
		}
		return m.Force(version)
	default:
		printUsage()
		return fmt.Errorf("unknown command %q", command)
	}
}

// runSQLite handles local SQLite databases, which are created from the GORM
// models rather than the PostgreSQL migrations
func runSQLite(command string, cfg *config.Config, log *zap.Logger) error {
	if command != "up" {
		return fmt.Errorf("command %q is only supported for postgres; sqlite supports \"up\"", command)
	}
	db, err := persistence.NewDatabase(&cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.AutoMigrate(); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	log.Info("SQLite schema is up to date", zap.String("path", cfg.Database.Path))
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

func sourceFS(dir string) fs.FS {
	if dir != "" {
		return os.DirFS(dir)
	}
	return migrations.FS
}

func printUsage() {
	fmt.Println(`MADAS business context schema tool

Usage:
  migrate [flags] <command> [arguments]

Commands:
  up                    Apply all pending migrations
  down                  Roll back all migrations
  steps <n>             Apply n migrations (negative rolls back)
  version               Show the applied version
  force <version>       Record a version as applied (clears a dirty state)
  create <name> [desc]  Create a new migration pair in -path (default ./migrations)
  list                  List known migrations

Flags:
  -path string          Migrations directory (default: embedded migrations)
  -config string        Config file path
  -log-level string     debug, info, warn or error (default: info)

Environment:
  MADAS_DATABASE_HOST, MADAS_DATABASE_PORT, MADAS_DATABASE_USER,
  MADAS_DATABASE_PASSWORD, MADAS_DATABASE_DBNAME, MADAS_DATABASE_DRIVER`)
}
