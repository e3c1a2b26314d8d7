package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/remote-agent-terminal/ptyscreen/internal/frame"
	"github.com/remote-agent-terminal/ptyscreen/internal/model"
	"github.com/remote-agent-terminal/ptyscreen/internal/repository"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List, show and remove saved captures",
	Long: `Work with the capture history kept in the sqlite database at history.path.

Examples:
  # The ten most recent captures
  ptyscreen history list -n 10

  # Show a saved capture in a frame
  ptyscreen history show 0f8c2a7e-...`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved captures, newest first",
	Args:  cobra.NoArgs,
	RunE:  runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show a saved capture in a frame",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyRmCmd = &cobra.Command{
	Use:   "rm ID...",
	Short: "Remove saved captures",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runHistoryRm,
}

var (
	historyLimit  int
	historyHeight int
)

var (
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd, historyShowCmd, historyRmCmd)

	historyListCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of captures to list (0 for all)")
	historyShowCmd.Flags().IntVarP(&historyHeight, "height", "H", 0, "Rows to show, keeping the last ones (0 for all)")
}

func requireHistory() (*repository.CaptureRepository, error) {
	repo, err := openHistory()
	if err != nil {
		return nil, err
	}
	if repo == nil {
		return nil, errors.New("history is disabled: set history.path in the config or PTYSCREEN_HISTORY_PATH")
	}
	return repo, nil
}

func runHistoryList(cmd *cobra.Command, _ []string) error {
	repo, err := requireHistory()
	if err != nil {
		return err
	}
	captures, err := repo.List(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}
	if len(captures) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no captures yet")
		return nil
	}
	printCaptures(cmd.OutOrStdout(), captures, consoleWidth())
	return nil
}

// printCaptures writes one row per capture: short ID, start time, status,
// duration, command and the last displayed line.
func printCaptures(w io.Writer, captures []*model.Capture, width int) {
	const fixed = 8 + 2 + 16 + 2 + 6 + 2 + 8 + 2
	commandWidth := 24
	previewWidth := max(width-fixed-commandWidth-2, 10)

	for _, c := range captures {
		status := okStyle.Render(runewidth.FillRight(string(c.Status), 6))
		if c.Status == model.CaptureStatusFailed {
			status = failedStyle.Render(runewidth.FillRight(string(c.Status), 6))
		}
		fmt.Fprintf(w, "%s  %s  %s  %s  %s  %s\n",
			c.ID[:min(8, len(c.ID))],
			c.StartedAt.Local().Format("2006-01-02 15:04"),
			status,
			runewidth.FillLeft(c.Duration.Round(time.Millisecond).String(), 8),
			runewidth.FillRight(runewidth.Truncate(c.Command, commandWidth, "…"), commandWidth),
			dimStyle.Render(runewidth.Truncate(c.Preview(), previewWidth, "…")),
		)
	}
}

// findCapture resolves a full ID or an unambiguous prefix of one.
func findCapture(ctx context.Context, repo *repository.CaptureRepository, id string) (*model.Capture, error) {
	capture, err := repo.GetByID(ctx, id)
	if !errors.Is(err, model.ErrCaptureNotFound) {
		return capture, err
	}

	all, err := repo.List(ctx, 0)
	if err != nil {
		return nil, err
	}
	var match *model.Capture
	for _, c := range all {
		if len(id) > 0 && len(c.ID) >= len(id) && c.ID[:len(id)] == id {
			if match != nil {
				return nil, fmt.Errorf("capture ID prefix %q is ambiguous", id)
			}
			match = c
		}
	}
	if match == nil {
		return nil, fmt.Errorf("%w: %s", model.ErrCaptureNotFound, id)
	}
	return match, nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	repo, err := requireHistory()
	if err != nil {
		return err
	}
	capture, err := findCapture(cmd.Context(), repo, args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s  %s  %s\n", capture.ID, capture.Command, capture.Status)
	if capture.Error != "" {
		fmt.Fprintln(out, failedStyle.Render(capture.Error))
	}
	fmt.Fprint(out, frame.Render(capture.Lines, frameOptions(historyHeight, "")))
	return nil
}

func runHistoryRm(cmd *cobra.Command, args []string) error {
	repo, err := requireHistory()
	if err != nil {
		return err
	}
	for _, id := range args {
		capture, err := findCapture(cmd.Context(), repo, id)
		if err != nil {
			return err
		}
		if err := repo.Delete(cmd.Context(), capture.ID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", capture.ID)
	}
	return nil
}
