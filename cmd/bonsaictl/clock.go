package main

import (
	"fmt"
	"time"

	"github.com/itohio/gobonsai/pkg/clock"
	"github.com/spf13/cobra"
)

var clockCmd = &cobra.Command{
	Use:   "clock",
	Short: "Inspect or reset the persisted station clock",
}

var clockShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the persisted clock state",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := clock.NewFileStore(cfg.Clock.StatePath)
		state, err := store.Load()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "path:   %s\n", store.Path())
		fmt.Fprintf(out, "magic:  %#08x (valid: %t)\n", state.Magic, state.Magic == clock.MagicNumber)
		fmt.Fprintf(out, "offset: %s\n", time.Duration(state.Offset)*time.Millisecond)
		return nil
	},
}

var clockResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget the persisted clock so the next run starts from zero",
	RunE: func(cmd *cobra.Command, args []string) error {
		return clock.NewFileStore(cfg.Clock.StatePath).Remove()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init-config",
	Short: "Write the effective configuration to the config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cfg.Save(cfgFile)
	},
}

func init() {
	clockCmd.AddCommand(clockShowCmd)
	clockCmd.AddCommand(clockResetCmd)
	rootCmd.AddCommand(clockCmd)
	rootCmd.AddCommand(configInitCmd)
}
