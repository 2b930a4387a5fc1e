// Command gradeimport imports one spreadsheet for a professor from the
// command line and prints the import report.
//
//	gradeimport -owner <uuid> [-kind grades] notas.xlsx
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/JonMunkholm/gradebook/internal/config"
	"github.com/JonMunkholm/gradebook/internal/core"
	"github.com/JonMunkholm/gradebook/internal/database"
	"github.com/JonMunkholm/gradebook/internal/logging"
	"github.com/JonMunkholm/gradebook/internal/schema"
)

func main() {
	owner := flag.String("owner", "", "professor ID (UUID) owning the imported records")
	kind := flag.String("kind", "", "record kind when detection fails: courses, students, subjects or grades")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s -owner <uuid> [-kind grades] file\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 || *owner == "" {
		flag.Usage()
		os.Exit(2)
	}

	os.Exit(run(*owner, *kind, flag.Arg(0)))
}

func run(owner, kindName, path string) int {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "configuration:", err)
		return 1
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	var force *core.RecordKind
	if kindName != "" {
		k, ok := schema.ParseKind(kindName)
		if !ok {
			fmt.Fprintf(os.Stderr, "invalid record kind %q\n", kindName)
			return 2
		}
		force = &k
	}

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Import.Timeout)
	defer cancel()

	var store core.Store = core.NewMemStore()
	if cfg.Store.Backend != config.BackendMemory {
		pool, err := pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			fmt.Fprintln(os.Stderr, "database:", err)
			return 1
		}
		defer pool.Close()
		if cfg.Database.AutoMigrate {
			if err := database.Migrate(pool); err != nil {
				fmt.Fprintln(os.Stderr, "migrate:", err)
				return 1
			}
		}
		store = core.NewPgStore(pool)
	}

	service := core.NewService(store, core.ServiceConfig{
		BatchSize:     cfg.Import.BatchSize,
		MaxConcurrent: 1,
		MaxWait:       cfg.Import.MaxWaitTime,
		Timeout:       cfg.Import.Timeout,
	})

	class, outcome, err := service.Import(ctx, owner, filepath.Base(path), data, force)
	if class.Kind != "" {
		fmt.Printf("Detected: %s (%s)\n", class.Kind, class.Rationale)
	}
	if outcome != nil {
		fmt.Println(outcome.Summary())
		if report := outcome.ErrorsText(); report != "" {
			fmt.Print(report)
		}
	}
	if err != nil {
		slog.Debug("import failed", "error", err)
		fmt.Fprintln(os.Stderr, core.FormatUserError(err))
		if errors.Is(err, core.ErrUnrecognizedBatch) {
			fmt.Fprintln(os.Stderr, "rerun with -kind courses|students|subjects|grades")
		}
		return 1
	}
	if outcome.Failed > 0 {
		return 3
	}
	return 0
}
