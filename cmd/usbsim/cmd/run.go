package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bentwire/stm32f072-usb/pkg/script"
)

var showStats bool

var runCmd = &cobra.Command{
	Use:   "run <script>...",
	Short: "Replay transaction scripts",
	Long: `Replay one or more transaction scripts. Each script runs against a
freshly reset device and stops at its first failed expectation. Use "-" to
read a script from standard input.

Example script:
  reset
  setup 80 06 00 01 00 00 40 00
  in
  expect data 12 01 00 02
  out
  expect handshake ACK`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScripts,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&showStats, "stats", false,
		"print interrupt outcome counters after each script")
}

func runScripts(cmd *cobra.Command, args []string) error {
	for _, path := range args {
		if err := runScript(cmd, path); err != nil {
			return err
		}
	}
	return nil
}

func runScript(cmd *cobra.Command, path string) error {
	var (
		s   *script.Script
		err error
	)
	if path == "-" {
		s, err = script.Parse("stdin", cmd.InOrStdin())
	} else {
		s, err = script.ParseFile(path)
	}
	if err != nil {
		return err
	}

	sess, err := newSession()
	if err != nil {
		return err
	}
	defer sess.close()

	out := cmd.OutOrStdout()
	r := script.NewRunner(sess.bus, sess.ctx, out)
	if err := r.Run(s); err != nil {
		return err
	}
	if showStats {
		sess.printStats(out)
	}
	if sess.rec != nil {
		if err := sess.rec.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "recorded session %s to %s\n", sess.rec.Session(), sess.rec.Path())
	}
	return nil
}
