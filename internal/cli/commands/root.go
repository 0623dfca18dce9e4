// Package commands implements the seedsync CLI commands
package commands

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/seedsync/internal/cli"
	"github.com/conduit-lang/seedsync/internal/cli/config"
	"github.com/conduit-lang/seedsync/pkg/fixture"
	"github.com/conduit-lang/seedsync/pkg/schema"
	"github.com/conduit-lang/seedsync/pkg/store"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// NewRootCommand creates the seedsync root command
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seedsync",
		Short: "Declarative fixture synchronization for SQL databases",
		Long: `seedsync applies declaratively-defined fixtures to a database,
resolving relationships between fixtures and ordering syncs so that
dependencies exist before dependents.`,
	}

	cmd.AddCommand(newApplyCommand())
	cmd.AddCommand(newOrderCommand())

	return cmd
}

// loadProject loads configuration and every fixture file it points at
func loadProject() (*config.Config, *schema.Registry, []*fixture.Fixture, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}

	loader := cli.NewLoader()
	var files []string
	for _, pattern := range cfg.Fixtures.Paths {
		matches, err := filepath.Glob(filepath.Join(pattern, "*.yml"))
		if err != nil {
			return nil, nil, nil, err
		}
		files = append(files, matches...)
		matches, err = filepath.Glob(filepath.Join(pattern, "*.yaml"))
		if err != nil {
			return nil, nil, nil, err
		}
		files = append(files, matches...)
	}
	sort.Strings(files)
	if len(files) == 0 {
		return nil, nil, nil, fmt.Errorf("no fixture files found under %v", cfg.Fixtures.Paths)
	}
	for _, file := range files {
		if err := loader.LoadFile(file); err != nil {
			return nil, nil, nil, err
		}
	}

	registry, fixtures, err := loader.Build()
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, registry, fixtures, nil
}

// openStore opens the configured database and wraps it in a SQL adapter
func openStore(cfg *config.Config, registry *schema.Registry) (*sql.DB, store.Adapter, error) {
	dialect := store.DialectSQLite
	if cfg.Database.Driver == "pgx" {
		dialect = store.DialectPostgres
	}

	db, err := sql.Open(cfg.Database.Driver, cfg.GetDSN())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, store.NewSQL(db, registry, dialect), nil
}
