package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"toon-shelf/logging"
	"toon-shelf/storage"
)

func main() {
	var (
		dataPath = flag.String("data", "./data", "Path to database directory")
		origin   = flag.String("origin", "default", "Store origin")
		command  = flag.String("cmd", "up", "Migration command: up, down, status, version, reset")
		verbose  = flag.Bool("v", false, "Verbose logging")
	)
	flag.Parse()

	logger, syncLogs, err := logging.New(logging.Options{Verbose: *verbose})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer syncLogs()

	sqliteStorage := storage.NewSQLiteStorage(*dataPath, *origin, 0, logger)
	if err := sqliteStorage.Initialize(); err != nil {
		logger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer sqliteStorage.Close()

	ctx := context.Background()
	switch *command {
	case "up":
		if err := sqliteStorage.RunMigrations(ctx); err != nil {
			logger.Fatal("Failed to run migrations", zap.Error(err))
		}
		fmt.Println("Migrations completed successfully")

	case "down":
		if err := sqliteStorage.RollbackMigration(ctx); err != nil {
			logger.Fatal("Failed to rollback migration", zap.Error(err))
		}
		fmt.Println("Migration rolled back successfully")

	case "status":
		migrator, err := sqliteStorage.Migrator()
		if err != nil {
			logger.Fatal("Failed to create migrator", zap.Error(err))
		}
		states, err := migrator.Status(ctx)
		if err != nil {
			logger.Fatal("Failed to get migration status", zap.Error(err))
		}
		for _, st := range states {
			applied := "Pending"
			if st.Applied {
				applied = st.AppliedAt.Local().Format(time.DateTime)
			}
			fmt.Printf("%5d  %-40s  %s\n", st.Version, st.Name, applied)
		}

	case "version":
		version, err := sqliteStorage.GetDatabaseVersion(ctx)
		if err != nil {
			logger.Fatal("Failed to get database version", zap.Error(err))
		}
		fmt.Printf("Database version: %d\n", version)

	case "reset":
		if err := sqliteStorage.ResetDatabase(ctx); err != nil {
			logger.Fatal("Failed to reset database", zap.Error(err))
		}
		fmt.Println("Database reset completed successfully")

	default:
		fmt.Printf("Unknown command: %s\n", *command)
		fmt.Println("Available commands: up, down, status, version, reset")
		os.Exit(1)
	}
}
