package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/repofactor/repofactor/internal/config"
	"github.com/repofactor/repofactor/internal/logging"
	"github.com/repofactor/repofactor/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the read-only status server",
	Long: `Start a JSON API on localhost exposing run state, event trails, agent call
records, aggregate analytics, and a live server-sent event stream.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")

		cfg, err := config.LoadDefault()
		if err != nil {
			return err
		}

		log, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
		if err != nil {
			return err
		}
		defer logging.Sync(log)

		database, cleanup, err := openConfiguredDB(cfg)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer cleanup()

		store, err := openStore(cfg)
		if err != nil {
			return fmt.Errorf("store: %w", err)
		}

		return web.NewServer(store, database, addr, log).Start()
	},
}

func init() {
	serveCmd.Flags().String("addr", ":8377", "Address to listen on")
}
