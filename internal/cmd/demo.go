package cmd

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/remote-agent-terminal/ptyscreen/internal/capture"
	"github.com/remote-agent-terminal/ptyscreen/internal/frame"
	"github.com/remote-agent-terminal/ptyscreen/internal/pty"
)

var demoCmd = &cobra.Command{
	Use:   "demo [height]",
	Short: "Walk through nested captures, numbering and input injection",
	Long: `Run a scripted session inside a capture: print some text, run an external
command, capture a nested "cat" of a file and print it with line numbers, then
type a line into the terminal and read it back from stdin. Everything the
session displayed is finally shown in a frame, optionally limited to the last
height rows.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDemo,
}

var demoFile string

func init() {
	rootCmd.AddCommand(demoCmd)

	demoCmd.Flags().StringVarP(&demoFile, "file", "f", "", "File to cat in the nested capture (default: a generated sample)")
}

const demoSample = `ptyscreen keeps what a program showed on its terminal.
Each line of this file is read back through a nested pseudo-terminal,
	tabs and all,
and numbered before it is printed into the outer capture. A long line wraps onto continuation rows that leave the number column empty, which is easier to read than a line that runs off the edge of the frame.

The last line has no trailing newline.`

func runDemo(cmd *cobra.Command, args []string) error {
	height := 0
	if len(args) == 1 {
		if _, err := fmt.Sscanf(args[0], "%d", &height); err != nil || height < 0 {
			return fmt.Errorf("height must be a non-negative number, got %q", args[0])
		}
	}

	path := demoFile
	if path == "" {
		dir, err := os.MkdirTemp("", "ptyscreen-demo-")
		if err != nil {
			return err
		}
		defer os.RemoveAll(dir)
		path = filepath.Join(dir, "sample.txt")
		if err := os.WriteFile(path, []byte(demoSample), 0644); err != nil {
			return err
		}
	}

	opts := frameOptions(height, "")
	inner := frame.InnerWidth(opts.Width, opts.Padding)
	cols := uint16(inner)

	result, err := captured("demo", pty.DefaultRows, cols, func(s *capture.Session) error {
		return demoScript(s, path, inner)
	})
	if result == nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), frame.Render(result.Lines, opts))
	if err != nil {
		return exitStatus(err)
	}
	return nil
}

// demoScript runs inside the outer capture; everything it prints lands in the
// captured lines.
func demoScript(s *capture.Session, path string, width int) error {
	fmt.Print("hi\n\n")
	if err := runShown("echo", "echoed"); err != nil {
		return err
	}

	fmt.Println("\nlet's run something in a nested capture and number its lines. we will run:")
	showCommand("cat", path)
	fmt.Println("running...")

	inner, err := captured("cat "+path, pty.DefaultRows, uint16(width), func(*capture.Session) error {
		return attach(exec.Command("cat", path)).Run()
	})
	if err != nil {
		return fmt.Errorf("nested capture: %w", err)
	}

	fmt.Print("ran successfully. printing...\n\n")
	fmt.Println(strings.Join(frame.Number(inner.Lines, width), "\n"))

	fmt.Println("\nlet's write some fake input to the controller and read it back from stdin")
	if err := s.Inject("yo"); err != nil {
		return err
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return fmt.Errorf("read injected input: %w", err)
	}
	fmt.Printf("found input: %s\n", strings.TrimRight(line, "\r\n"))
	return nil
}

func showCommand(name string, args ...string) {
	fmt.Printf("> %s\n", strings.Join(append([]string{name}, args...), " "))
}

func runShown(name string, args ...string) error {
	showCommand(name, args...)
	return attach(exec.Command(name, args...)).Run()
}
