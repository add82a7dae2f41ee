package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/streamport/webserial"
)

// signalsCmd represents the signals command
var signalsCmd = &cobra.Command{
	Use:   "signals <virtual-path>",
	Short: "Open a device and display its modem signal states",
	Long: `Open the device behind a virtual path and display its input signal
states.

Examples:
  serialls signals "serial://usb?usbVendorId=2341&usbProductId=0043&n=0"
  serialls signals serial://any

Signal meanings:
  CTS - Clear To Send
  DSR - Data Set Ready
  DCD - Data Carrier Detect
  RI  - Ring Indicator`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		binding := webserial.New(webserial.NewNativePlatform(newLogger()))
		session, err := binding.Open(ctx, webserial.OpenOptions{Path: args[0]})
		if err != nil {
			return fmt.Errorf("opening %s: %w", args[0], err)
		}
		defer func() {
			if err := session.Close(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "closing session: %v\n", err)
			}
		}()

		sig, err := session.GetSignals(ctx)
		if err != nil {
			return fmt.Errorf("reading signals: %w", err)
		}

		fmt.Printf("Signals for %s:\n\n", args[0])
		fmt.Printf("  CTS (Clear To Send):       %s\n", formatSignalState(sig.CTS))
		fmt.Printf("  DSR (Data Set Ready):      %s\n", formatSignalState(sig.DSR))
		fmt.Printf("  DCD (Data Carrier Detect): %s\n", formatSignalState(sig.DCD))
		fmt.Printf("  RI  (Ring Indicator):      %s\n", formatSignalState(sig.RI))
		return nil
	},
}

func formatSignalState(state bool) string {
	if state {
		return "HIGH"
	}
	return "low"
}

func init() {
	rootCmd.AddCommand(signalsCmd)
}
