package cmd

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/remote-agent-terminal/ptyscreen/internal/capture"
	"github.com/remote-agent-terminal/ptyscreen/internal/frame"
	"github.com/remote-agent-terminal/ptyscreen/internal/pty"
)

var runCmd = &cobra.Command{
	Use:   "run [flags] -- command [args...]",
	Short: "Capture a command and show its output as a framed screen",
	Long: `Run a command with its stdin, stdout and stderr attached to a fresh
pseudo-terminal, then print what it displayed inside a frame.

The command sees a real terminal, so programs that change their output when
not attached to one behave as they would interactively. ptyscreen exits with
the command's exit status.

Examples:
  # Show the last 10 rows of a build
  ptyscreen run --height 10 -- make

  # Feed a line to a program that reads stdin
  ptyscreen run --input "hello" -- cat`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

var (
	runHeight int
	runTitle  string
	runInputs []string
	runPlain  bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().IntVarP(&runHeight, "height", "H", 0, "Rows to show, keeping the last ones (0 for all)")
	runCmd.Flags().StringVarP(&runTitle, "title", "t", "", "Frame title (default: PTY SCREEN WIDTHxHEIGHT)")
	runCmd.Flags().StringArrayVarP(&runInputs, "input", "i", nil, "Line to type into the terminal before the command starts (repeatable)")
	runCmd.Flags().BoolVar(&runPlain, "plain", false, "Print the captured lines without a frame")
}

func runRun(cmd *cobra.Command, args []string) error {
	opts := frameOptions(runHeight, runTitle)
	cols := uint16(frame.InnerWidth(opts.Width, opts.Padding))
	rows := uint16(pty.DefaultRows)
	if runHeight > pty.DefaultRows {
		rows = uint16(runHeight)
	}

	result, err := captured(strings.Join(args, " "), rows, cols, func(s *capture.Session) error {
		for _, line := range runInputs {
			if err := s.Inject(line); err != nil {
				return fmt.Errorf("inject input: %w", err)
			}
		}
		return attach(exec.Command(args[0], args[1:]...)).Run()
	})
	if result == nil {
		return err
	}

	out := cmd.OutOrStdout()
	if runPlain {
		for _, line := range result.Lines {
			fmt.Fprintln(out, line)
		}
	} else {
		fmt.Fprint(out, frame.Render(result.Lines, opts))
	}

	if err != nil {
		log.WithError(err).Debug("command failed")
		return exitStatus(err)
	}
	return nil
}
