// Package cli implements the packctl operator commands. They open the
// ledger database directly, so the daemon does not need to be running.
package cli

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/owenwright/cookies/internal/database"
)

var dbPath string

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "packctl",
	Short: "Operator tooling for the cookie ledger",
	Long:  "Register packs, inspect the ledger, and manage operator access. SQLite-backed, single binary.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $COOKIES_DB_PATH or cookies.db)")
}

func getDBPath() string {
	if dbPath != "" {
		return dbPath
	}
	if env := os.Getenv("COOKIES_DB_PATH"); env != "" {
		return env
	}
	return "cookies.db"
}

func openDB() (*sql.DB, error) {
	return database.Open(getDBPath())
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
