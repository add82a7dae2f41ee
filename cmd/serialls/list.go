package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/streamport/webserial"
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List serial devices as virtual paths",
	Long: `List the host's serial devices as stable virtual paths.

Each path echoes the device's reported attributes (USB vendor/product id,
serial number, product string, device name) and ends with an ordinal that
disambiguates otherwise identical devices within one listing:

  serial://usb?usbVendorId=2341&usbProductId=0043&n=0
  serial://port?name=%2Fdev%2FttyS0&n=0`,
	RunE: func(cmd *cobra.Command, args []string) error {
		binding := webserial.New(webserial.NewNativePlatform(newLogger()))

		paths := binding.List(cmd.Context())
		if len(paths) == 0 {
			fmt.Println("No serial devices found")
			return nil
		}
		for _, p := range paths {
			fmt.Println(p)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
