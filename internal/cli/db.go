package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/repofactor/repofactor/internal/config"
	"github.com/repofactor/repofactor/internal/db"
	"github.com/repofactor/repofactor/internal/pipeline"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Event database management",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the event database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, cleanup, err := openDB()
		if err != nil {
			return err
		}
		defer cleanup()
		fmt.Fprintln(cmd.OutOrStdout(), "Database schema is up to date.")
		return nil
	},
}

var dbResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Drop and recreate the event database (destructive!)",
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm, _ := cmd.Flags().GetBool("confirm")
		if !confirm {
			return fmt.Errorf("refusing to reset the event database without --confirm")
		}
		d, cleanup, err := openDB()
		if err != nil {
			return err
		}
		defer cleanup()
		if err := d.Reset(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Database reset.")
		return nil
	},
}

// openDB opens and migrates the event database per the loaded config,
// returning it with a cleanup func.
func openDB() (*db.DB, func(), error) {
	cfg, err := config.LoadDefault()
	if err != nil {
		return nil, nil, err
	}
	return openConfiguredDB(cfg)
}

func openConfiguredDB(cfg *config.Config) (*db.DB, func(), error) {
	dsn := cfg.Database.Path
	if cfg.Database.Driver == "postgres" {
		dsn = cfg.Database.DSN
	}
	d, err := db.Open(cfg.Database.Driver, dsn)
	if err != nil {
		return nil, nil, err
	}
	if err := d.Migrate(); err != nil {
		d.Close()
		return nil, nil, err
	}
	return d, func() { d.Close() }, nil
}

// openStore opens the run store, rooted at storage.base_dir when configured.
func openStore(cfg *config.Config) (*pipeline.Store, error) {
	if cfg.Storage.BaseDir != "" {
		return pipeline.NewStore(filepath.Join(cfg.Storage.BaseDir, "runs")), nil
	}
	return pipeline.DefaultStore()
}

func defaultStore() (*pipeline.Store, error) {
	cfg, err := config.LoadDefault()
	if err != nil {
		return nil, err
	}
	return openStore(cfg)
}

func init() {
	dbResetCmd.Flags().Bool("confirm", false, "Confirm the destructive reset")
	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbResetCmd)
}
