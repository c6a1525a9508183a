// Package protocol wires the CLI surface: sync, check and reset-state.
// Commands load the validated config, then hand off to the engine and store
// packages; no sync logic lives here.
package protocol

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fariaslabs/sgfsync/config"
	"github.com/fariaslabs/sgfsync/constants"
	"github.com/fariaslabs/sgfsync/logger"
)

var (
	configPath string
	cfg        *config.Config

	commands = []*cobra.Command{}
)

// RootCmd represents the base command when called without any subcommands.
// Assigned in init: the PersistentPreRunE closure refers to RootCmd, which
// the compiler rejects as an initialization cycle in a var initializer.
var RootCmd *cobra.Command

func init() {
	RootCmd = &cobra.Command{
		Use:   "sgfsync",
		Short: "incremental mirror of an SGF retail system into a local SQLite store",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == RootCmd.Name() || cmd.Name() == "help" {
				return nil
			}
			if configPath == "" {
				return fmt.Errorf("--config not passed")
			}

			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg = loaded

			// logger writes under DATA_DIR
			viper.Set(constants.DataDir, cfg.DataDir)
			logger.Init()
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
}

func Execute() error {
	RootCmd.AddCommand(commands...)
	// Disable Cobra CLI's built-in usage and error handling
	RootCmd.SilenceUsage = true
	RootCmd.SilenceErrors = true
	return RootCmd.Execute()
}

func init() {
	commands = append(commands, syncCmd, checkCmd, resetStateCmd)
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "", "", "(Required) Path to the engine config file")
}
