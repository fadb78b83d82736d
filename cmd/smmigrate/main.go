// Command smmigrate manages the optional Postgres schema for the
// statemachine store. SQLite deployments never need this: store.Open
// runs GORM AutoMigrate against the default SQLite backend automatically.
// This CLI is adapted line-for-line in structure from the teacher's
// cmd/migrate/main.go, wired to the embedded migration set in
// internal/store/migrate.go instead of the teacher's application schema.
//
// Usage:
//
//	smmigrate up           # Apply all pending migrations
//	smmigrate down         # Rollback last migration
//	smmigrate down-all     # Rollback all migrations
//	smmigrate version      # Show current migration version
//	smmigrate to N         # Migrate to specific version N
//	smmigrate force N      # Force version to N (fix dirty state)
package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"statemachine-engine/internal/config"
	"statemachine-engine/internal/store"
)

func main() {
	config.LoadDotEnv()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	dsn := databaseURL()
	command := os.Args[1]

	switch command {
	case "up":
		runUp(dsn)
	case "down":
		runDown(dsn)
	case "down-all":
		runDownAll(dsn)
	case "version":
		showVersion(dsn)
	case "to":
		if len(os.Args) < 3 {
			log.Fatal("Usage: smmigrate to <version>")
		}
		version, err := strconv.ParseUint(os.Args[2], 10, 32)
		if err != nil {
			log.Fatalf("invalid version number: %s", os.Args[2])
		}
		runTo(dsn, uint(version))
	case "force":
		if len(os.Args) < 3 {
			log.Fatal("Usage: smmigrate force <version>")
		}
		version, err := strconv.Atoi(os.Args[2])
		if err != nil {
			log.Fatalf("invalid version number: %s", os.Args[2])
		}
		runForce(dsn, version)
	case "help":
		printUsage()
	default:
		log.Printf("unknown command: %s", command)
		printUsage()
		os.Exit(1)
	}
}

func databaseURL() string {
	if url := os.Getenv("STATEMACHINE_DATABASE_URL"); url != "" {
		return url
	}
	host := config.GetEnv("DB_HOST", "localhost")
	port := config.GetEnvInt("DB_PORT", 5432)
	user := config.GetEnv("DB_USER", "postgres")
	password := config.GetEnv("DB_PASSWORD", "postgres")
	dbname := config.GetEnv("DB_NAME", "statemachine")
	sslmode := config.GetEnv("DB_SSL_MODE", "disable")
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s", user, password, host, port, dbname, sslmode)
}

func printUsage() {
	fmt.Print(`
statemachine migration tool

Usage:
  smmigrate <command> [arguments]

Commands:
  up              Apply all pending migrations
  down            Rollback the last migration
  down-all        Rollback all migrations (WARNING: deletes all data!)
  version         Show current migration version
  to <N>          Migrate to specific version N
  force <N>       Force version to N (use to fix dirty state)
  help            Show this help message

Environment Variables:
  STATEMACHINE_DATABASE_URL   Full postgres:// connection URL
  DB_HOST, DB_PORT, DB_USER, DB_PASSWORD, DB_NAME, DB_SSL_MODE
`)
}

func runUp(dsn string) {
	log.Println("applying all pending migrations...")
	if err := store.RunMigrations(dsn); err != nil {
		log.Fatalf("migration failed: %v", err)
	}
	log.Println("all migrations applied")
}

func runDown(dsn string) {
	log.Println("rolling back last migration...")
	if err := store.RollbackMigration(dsn); err != nil {
		log.Fatalf("rollback failed: %v", err)
	}
	log.Println("rollback complete")
}

func runDownAll(dsn string) {
	log.Println("WARNING: this rolls back ALL migrations and deletes all data!")
	log.Println("press Ctrl+C within 5 seconds to cancel...")
	time.Sleep(5 * time.Second)

	if err := store.RollbackAll(dsn); err != nil {
		log.Fatalf("rollback all failed: %v", err)
	}
	log.Println("all migrations rolled back")
}

func showVersion(dsn string) {
	status, err := store.MigrationVersion(dsn)
	if err != nil {
		log.Fatalf("failed to get version: %v", err)
	}
	fmt.Printf("Current Migration Status:\n  Version: %d\n  Dirty:   %v\n", status.Version, status.Dirty)
	if status.Dirty {
		fmt.Println("\nWARNING: database is in a dirty state (a migration failed halfway).")
		fmt.Printf("Use 'smmigrate force %d' to clear it, then retry.\n", status.Version-1)
	}
}

func runTo(dsn string, version uint) {
	log.Printf("migrating to version %d...", version)
	if err := store.MigrateToVersion(dsn, version); err != nil {
		log.Fatalf("migration to version %d failed: %v", version, err)
	}
	log.Printf("migrated to version %d", version)
}

func runForce(dsn string, version int) {
	log.Printf("forcing version to %d (no migration runs)...", version)
	if err := store.Force(dsn, version); err != nil {
		log.Fatalf("force failed: %v", err)
	}
	log.Printf("version forced to %d", version)
}
