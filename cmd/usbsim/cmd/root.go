package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/bentwire/stm32f072-usb/pkg"
	"github.com/bentwire/stm32f072-usb/pkg/prof"
)

const defaultEnvFile = ".env"

var (
	// Global flags
	envFile    string
	logLevel   string
	logFormat  string
	recordPath string
	recordAuto bool
	vendorID   uint16
	productID  uint16
	cpuProfile string
	memProfile string
)

// envFlags maps persistent flags to the environment variables that supply
// their defaults.
var envFlags = []struct{ flag, key string }{
	{"log-level", "USBSIM_LOG_LEVEL"},
	{"log-format", "USBSIM_LOG_FORMAT"},
	{"record", "USBSIM_RECORD"},
	{"record-auto", "USBSIM_RECORD_AUTO"},
	{"vid", "USBSIM_VID"},
	{"pid", "USBSIM_PID"},
	{"usb-ids", "USBSIM_USB_IDS"},
}

var rootCmd = &cobra.Command{
	Use:   "usbsim",
	Short: "STM32F072 USB device simulator",
	Long: `Replay host transactions against the USB device engine running on a
simulated STM32F072 peripheral.

Defaults for the persistent flags are read from USBSIM_* variables, which
may be placed in a .env file.

Examples:
  usbsim run testdata/enumerate.usb           # Replay a script
  usbsim run --record trace.sqlite3 a.usb     # Replay and record every transaction
  usbsim run --record-auto a.usb              # Record to a fresh usbsim_<id>.sqlite3
  usbsim enumerate --vid 0x0483 --pid 0x5740  # Enumerate like a host would`,
	Version:           "0.1.0",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(*cobra.Command, []string) { teardown() },
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		atexit.Exit(1)
	}
	atexit.Exit(0)
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&envFile, "env", defaultEnvFile, "dotenv file with USBSIM_* defaults")
	flags.StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	flags.StringVar(&logFormat, "log-format", "text", "log format (text, json)")
	flags.StringVar(&recordPath, "record", "", "record transactions to a SQLite database")
	flags.BoolVar(&recordAuto, "record-auto", false, "record to a new database named after the session")
	flags.Uint16Var(&vendorID, "vid", 0xFFFF, "idVendor of the simulated device")
	flags.Uint16Var(&productID, "pid", 0xFFFF, "idProduct of the simulated device")
	flags.StringVar(&cpuProfile, "cpuprofile", "", "write a CPU profile (profile builds only)")
	flags.StringVar(&memProfile, "memprofile", "", "write a heap profile on exit (profile builds only)")
}

func setup(cmd *cobra.Command, _ []string) error {
	if err := loadEnv(cmd); err != nil {
		return err
	}

	level, err := pkg.ParseLogLevel(logLevel)
	if err != nil {
		return err
	}
	format, err := pkg.ParseLogFormat(logFormat)
	if err != nil {
		return err
	}
	pkg.SetLogLevel(level)
	pkg.SetLogFormat(cmd.ErrOrStderr(), format)

	if cpuProfile != "" {
		if !prof.Enabled {
			pkg.LogWarn(pkg.ComponentCLI, "built without the profile tag", "flag", "cpuprofile")
		}
		if err := prof.StartCPU(cpuProfile); err != nil {
			return fmt.Errorf("cpu profile: %w", err)
		}
		atexit.Register(prof.StopCPU)
	}
	return nil
}

func teardown() {
	prof.StopCPU()
	if memProfile != "" {
		if err := prof.WriteHeap(memProfile); err != nil {
			pkg.LogError(pkg.ComponentCLI, "heap profile", "error", err)
		}
	}
}

// loadEnv reads the dotenv file into the process environment and applies
// USBSIM_* variables to flags not given on the command line. A missing
// default file is not an error.
func loadEnv(cmd *cobra.Command) error {
	if err := godotenv.Load(envFile); err != nil {
		if !errors.Is(err, fs.ErrNotExist) || cmd.Flags().Changed("env") {
			return fmt.Errorf("env %s: %w", envFile, err)
		}
	}
	flags := cmd.Flags()
	for _, e := range envFlags {
		if flags.Lookup(e.flag) == nil || flags.Changed(e.flag) {
			continue
		}
		v, ok := os.LookupEnv(e.key)
		if !ok {
			continue
		}
		if err := flags.Set(e.flag, v); err != nil {
			return fmt.Errorf("%s: %w", e.key, err)
		}
	}
	return nil
}
