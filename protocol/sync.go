package protocol

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fariaslabs/sgfsync/engine"
	"github.com/fariaslabs/sgfsync/logger"
	"github.com/fariaslabs/sgfsync/source"
	"github.com/fariaslabs/sgfsync/store"
)

// syncCmd runs the engine until interrupted. SIGINT/SIGTERM cancel the
// stream workers; the page in flight finishes its commit before exit.
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "run the synchronization engine until interrupted",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		st, err := store.Open(ctx, cfg.StorePath())
		if err != nil {
			return err
		}
		defer st.Close()

		journal, err := engine.OpenJournal(cfg.JournalPath())
		if err != nil {
			return err
		}
		defer journal.Close()

		client := source.NewClient(cfg.APIBaseURL, cfg.AuthToken, cfg.RequestTimeout())
		logger.Infof("sync %s starting against %s", cfg.SyncID(), cfg.APIBaseURL)

		return engine.New(cfg, client, st, journal).Run(ctx)
	},
}
