package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bentwire/stm32f072-usb/host"
	"github.com/bentwire/stm32f072-usb/pkg"
	"github.com/bentwire/stm32f072-usb/pkg/usbid"
)

var (
	usbIDs  string
	timeout time.Duration
)

var enumerateCmd = &cobra.Command{
	Use:   "enumerate",
	Short: "Enumerate the simulated device",
	Long: `Run the enumeration sequence a host performs after attach: read the
device descriptor at the default address, reset, assign an address, read
the device, configuration and string descriptors, and select the first
configuration. The decoded descriptors are printed in lsusb style, with
vendor and product names from usb.ids when one is found.`,
	Args: cobra.NoArgs,
	RunE: runEnumerate,
}

func init() {
	rootCmd.AddCommand(enumerateCmd)

	enumerateCmd.Flags().StringVar(&usbIDs, "usb-ids", "",
		"path to usb.ids (default: search the usbutils locations)")
	enumerateCmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second,
		"enumeration timeout")
	enumerateCmd.Flags().BoolVar(&showStats, "stats", false,
		"print interrupt outcome counters")
}

func runEnumerate(cmd *cobra.Command, _ []string) error {
	sess, err := newSession()
	if err != nil {
		return err
	}
	defer sess.close()
	sess.bus.OnInterrupt(sess.service)

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	dev, err := host.New(sess.bus).Enumerate(ctx)
	if err != nil {
		return err
	}

	db := usbid.New()
	paths := usbid.DefaultPaths
	if usbIDs != "" {
		paths = []string{usbIDs}
	}
	if path, err := db.Load(paths...); err != nil {
		pkg.LogWarn(pkg.ComponentCLI, "usb.ids not loaded", "error", err)
	} else if path == "" && usbIDs != "" {
		return fmt.Errorf("usb.ids %s: not readable", usbIDs)
	}

	dd := dev.Descriptor()
	out := cmd.OutOrStdout()
	fmt.Fprint(out, dev.Summary(db.Vendor(dd.VendorID), db.Product(dd.VendorID, dd.ProductID)))
	if showStats {
		sess.printStats(out)
	}
	return nil
}
