package protocol

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fariaslabs/sgfsync/logger"
	"github.com/fariaslabs/sgfsync/store"
	"github.com/fariaslabs/sgfsync/types"
	"github.com/fariaslabs/sgfsync/utils"
)

var resetAll bool

// resetStateCmd wipes the sync state of one stream (or all of them) so the
// next cycle restarts from the historical start date. Mirror rows stay;
// the replay is absorbed by the idempotent upserts.
var resetStateCmd = &cobra.Command{
	Use:   "reset-state [stream]",
	Short: "reset a stream's checkpoint to force a fresh backfill",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Open(cmd.Context(), cfg.StorePath())
		if err != nil {
			return err
		}
		defer st.Close()

		var targets []types.Entity
		switch {
		case resetAll:
			for _, stream := range cfg.Streams() {
				targets = append(targets, stream.Entity)
			}
		case len(args) == 1:
			entity, err := entityByName(args[0])
			if err != nil {
				return err
			}
			targets = []types.Entity{entity}
		default:
			return fmt.Errorf("pass a stream name or --all")
		}

		resets := make([]func() error, 0, len(targets))
		for _, entity := range targets {
			resets = append(resets, func() error {
				if err := st.ResetCheckpoint(cmd.Context(), entity); err != nil {
					return err
				}
				logger.Infof("stream %s: checkpoint reset", entity)
				return nil
			})
		}
		return utils.ErrExecSequential(resets...)
	},
}

func entityByName(name string) (types.Entity, error) {
	for _, stream := range cfg.Streams() {
		if string(stream.Entity) == name {
			return stream.Entity, nil
		}
	}
	return "", fmt.Errorf("unknown stream %q", name)
}

func init() {
	resetStateCmd.Flags().BoolVarP(&resetAll, "all", "", false, "reset every stream")
}
