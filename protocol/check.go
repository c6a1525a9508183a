package protocol

import (
	"github.com/spf13/cobra"

	"github.com/fariaslabs/sgfsync/logger"
	"github.com/fariaslabs/sgfsync/source"
	"github.com/fariaslabs/sgfsync/store"
	"github.com/fariaslabs/sgfsync/utils"
)

// checkCmd validates the configuration, probes the gateway and reports
// mirror table counts and per-stream sync state.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "validate config, probe the gateway and report mirror state",
	RunE: func(cmd *cobra.Command, _ []string) error {
		client := source.NewClient(cfg.APIBaseURL, cfg.AuthToken, cfg.RequestTimeout())
		if err := client.Ping(); err != nil {
			return err
		}
		logger.Infof("gateway %s reachable, token accepted", cfg.APIBaseURL)

		st, err := store.Open(cmd.Context(), cfg.StorePath())
		if err != nil {
			return err
		}
		defer st.Close()

		counts, err := st.TableCounts(cmd.Context())
		if err != nil {
			return err
		}
		for _, table := range []string{"sales", "cancellations", "purchases", "products", "stock_levels", "sellers", "suppliers"} {
			logger.Infof("%-14s %d rows", table, counts[table])
		}

		checkpoints, err := st.Checkpoints(cmd.Context())
		if err != nil {
			return err
		}
		if len(checkpoints) == 0 {
			logger.Info("no stream has synced yet")
			return nil
		}
		for _, cp := range checkpoints {
			phase := utils.Ternary(cp.BackfillComplete, "incremental", "backfill")
			logger.Infof("stream %-10s phase=%s cursor=%q updated=%s", cp.Stream, phase, cp.Cursor, cp.UpdatedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}
