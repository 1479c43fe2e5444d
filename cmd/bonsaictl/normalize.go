package main

import (
	"fmt"
	"strconv"

	"github.com/itohio/gobonsai/pkg/calibrate"
	"github.com/itohio/gobonsai/pkg/sample"
	"github.com/spf13/cobra"
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize <raw>...",
	Short: "Convert raw water sensor readings to percentages using the calibration table",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cal, err := sample.NewCalibrator(cfg.Calibration)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, arg := range args {
			raw, err := strconv.ParseInt(arg, 10, 16)
			if err != nil {
				return fmt.Errorf("invalid raw value %q: %w", arg, err)
			}
			pct, ok := cal.Normalize(int16(raw))
			if !ok {
				fmt.Fprintf(out, "%d\tuncalibrated\n", raw)
				continue
			}
			fmt.Fprintf(out, "%d\t%d%%\n", raw, pct)
		}
		return nil
	},
}

var tableCmd = &cobra.Command{
	Use:   "table",
	Short: "Print the calibration table",
	RunE: func(cmd *cobra.Command, args []string) error {
		cal, err := sample.NewCalibrator(cfg.Calibration)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		upper, lower := cal.Bounds()
		fmt.Fprintf(out, "saturation\t<=%d -> 0%%\t>=%d -> 100%%\n", lower, upper)
		for i, l := range cal.Table() {
			fmt.Fprintf(out, "%3d%%\t[%d, %d)\n", i*100/(calibrate.Points-1), l.Lower, l.Upper)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(normalizeCmd)
	rootCmd.AddCommand(tableCmd)
}
