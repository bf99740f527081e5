// Package cli implements the lorebook CLI commands.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jtarleton/lorebook/internal/config"
	"github.com/jtarleton/lorebook/internal/engine"
	"github.com/jtarleton/lorebook/internal/repo"
)

var (
	dbPath  string
	cfgPath string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "lorebook",
	Short: "Worldbook entry editor",
	Long:  "Edit named books of knowledge entries with debounced persistence, priority ordering and per-scope bindings. SQLite-backed, single binary.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $LOREBOOK_DB or ~/.lorebook/lorebook.db)")
	RootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Config file (default: ~/.lorebook/config.yaml)")
}

func loadConfig() config.Config {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v (using defaults)\n", err)
	}
	return cfg
}

func getDBPath(cfg config.Config) string {
	if dbPath != "" {
		return dbPath
	}
	if env := os.Getenv("LOREBOOK_DB"); env != "" {
		return env
	}
	return cfg.DBPath
}

// openEngine opens the repository and builds an engine over it. The caller
// must Close the engine (flushes pending writes) and then the repository.
func openEngine() (*engine.Engine, *repo.SQLiteRepository, error) {
	cfg := loadConfig()
	r, err := repo.NewSQLiteRepository(getDBPath(cfg))
	if err != nil {
		return nil, nil, err
	}
	e := engine.New(r, engine.Options{
		SaveDelay:        cfg.SaveDelay(),
		MetaSaveDelay:    cfg.MetaSaveDelay(),
		DefaultNoteDepth: cfg.DefaultNoteDepth,
	})
	return e, r, nil
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
