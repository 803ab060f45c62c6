package db

import (
	"fmt"
	"io"
	"io/fs"
	"log"
	"strconv"
)

// RunMigrateCommand handles the 'migrate' subcommand. Status output goes to
// out; progress is logged.
func RunMigrateCommand(args []string, dbPath string, out io.Writer) error {
	if len(args) < 1 {
		PrintMigrateHelp(out)
		return fmt.Errorf("missing migrate action")
	}
	action := args[0]
	if action == "help" {
		PrintMigrateHelp(out)
		return nil
	}

	// Uses the embedded FS unless DevMode is set.
	migrationsFS, err := getMigrationsFS()
	if err != nil {
		return fmt.Errorf("failed to get migrations filesystem: %w", err)
	}

	// Open without running migrations; this command manages the schema.
	database, err := OpenDB(dbPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	switch action {
	case "up":
		return handleMigrateUp(database, migrationsFS, out)
	case "down":
		return handleMigrateDown(database, migrationsFS, out)
	case "status":
		return handleMigrateStatus(database, migrationsFS, out)
	case "version":
		n, err := versionArg(args, "version")
		if err != nil {
			return err
		}
		return handleMigrateVersion(database, migrationsFS, uint(n), out)
	case "force":
		n, err := versionArg(args, "force")
		if err != nil {
			return err
		}
		if len(args) < 3 || args[2] != "--yes" {
			return fmt.Errorf("force rewrites the recorded schema version; rerun as 'pattern-report migrate force %d --yes'", n)
		}
		return handleMigrateForce(database, migrationsFS, n, out)
	case "baseline":
		n, err := versionArg(args, "baseline")
		if err != nil {
			return err
		}
		if err := database.BaselineAtVersion(uint(n)); err != nil {
			return fmt.Errorf("baseline failed: %w", err)
		}
		fmt.Fprintf(out, "✓ Database baselined at version %d\n", n)
		return nil
	default:
		fmt.Fprintf(out, "Unknown migrate action: %s\n\n", action)
		PrintMigrateHelp(out)
		return fmt.Errorf("unknown migrate action %q", action)
	}
}

func versionArg(args []string, action string) (int, error) {
	if len(args) < 2 {
		return 0, fmt.Errorf("usage: pattern-report migrate %s <version_number>", action)
	}
	n, err := strconv.Atoi(args[1])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid version number: %s", args[1])
	}
	return n, nil
}

// handleMigrateUp applies all pending migrations
func handleMigrateUp(database *DB, migrationsFS fs.FS, out io.Writer) error {
	log.Printf("Running migrations...")
	if err := database.MigrateUp(migrationsFS); err != nil {
		return err
	}
	version, dirty, err := database.MigrateVersion(migrationsFS)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ All migrations applied successfully\nCurrent version: %d (dirty: %v)\n", version, dirty)
	return nil
}

// handleMigrateDown rolls back one migration
func handleMigrateDown(database *DB, migrationsFS fs.FS, out io.Writer) error {
	log.Printf("Rolling back one migration...")
	if err := database.MigrateDown(migrationsFS); err != nil {
		return err
	}
	version, dirty, err := database.MigrateVersion(migrationsFS)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ Migration rolled back successfully\nCurrent version: %d (dirty: %v)\n", version, dirty)
	return nil
}

// handleMigrateStatus displays the current migration status
func handleMigrateStatus(database *DB, migrationsFS fs.FS, out io.Writer) error {
	status, err := database.GetMigrationStatus(migrationsFS)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "=== Migration Status ===")
	fmt.Fprintf(out, "Current version: %d\n", status.CurrentVersion)
	fmt.Fprintf(out, "Latest available: %d\n", status.LatestVersion)
	fmt.Fprintf(out, "Dirty: %v\n", status.Dirty)
	fmt.Fprintf(out, "Schema migrations table exists: %v\n", status.SchemaMigrationsExists)

	switch {
	case status.Dirty:
		fmt.Fprintln(out, "\n⚠️  WARNING: Database is in a dirty state!")
		fmt.Fprintln(out, "A migration failed mid-execution. Inspect the database, then run:")
		fmt.Fprintln(out, "  pattern-report migrate force <version> --yes")
	case status.Pending() > 0:
		fmt.Fprintf(out, "\n⚠️  Database is %d version(s) behind. Run 'pattern-report migrate up' to update.\n", status.Pending())
	default:
		fmt.Fprintln(out, "\n✓ Database is up to date!")
	}
	return nil
}

// handleMigrateVersion migrates to a specific version
func handleMigrateVersion(database *DB, migrationsFS fs.FS, target uint, out io.Writer) error {
	log.Printf("Migrating to version %d...", target)
	if err := database.MigrateTo(migrationsFS, target); err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ Migrated to version %d successfully\n", target)
	return nil
}

// handleMigrateForce forces the migration version (recovery only)
func handleMigrateForce(database *DB, migrationsFS fs.FS, version int, out io.Writer) error {
	log.Printf("Forcing migration version to %d", version)
	if err := database.MigrateForce(migrationsFS, version); err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ Migration version forced to %d\n", version)
	return nil
}

// PrintMigrateHelp displays the help message for the migrate command
func PrintMigrateHelp(out io.Writer) {
	fmt.Fprintln(out, "Run ledger migration commands")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Usage: pattern-report migrate [-db path] <command> [options]")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  up                Apply all pending migrations")
	fmt.Fprintln(out, "  down              Rollback one migration")
	fmt.Fprintln(out, "  status            Show current migration status and version")
	fmt.Fprintln(out, "  version <N>       Migrate to specific version N")
	fmt.Fprintln(out, "  force <N> --yes   Force migration version to N (recovery only)")
	fmt.Fprintln(out, "  baseline <N>      Set migration version to N without running migrations")
	fmt.Fprintln(out, "  help              Show this help message")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Examples:")
	fmt.Fprintln(out, "  pattern-report migrate up")
	fmt.Fprintln(out, "  pattern-report migrate status")
	fmt.Fprintln(out, "  pattern-report migrate version 1")
}
