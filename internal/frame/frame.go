// Package frame draws captured lines as a bordered, titled screen.
package frame

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

const (
	DefaultMaxWidth = 120
	DefaultMargin   = 1
	DefaultPadding  = 1

	tabWidth   = 8
	lineIndent = "    "
)

// Options controls the geometry of a rendered frame.
type Options struct {
	// Width is the outer width of the frame, borders included.
	Width int

	// Height is the number of rows shown. The last Height rows are kept and
	// short screens are padded with empty rows. Zero shows every row.
	Height int

	// Margin is the number of blank columns left of the frame and blank rows
	// above and below it.
	Margin int

	// Padding is the number of blank columns inside each vertical border.
	Padding int

	// Title replaces the default "PTY SCREEN {inner}x{height}" title.
	Title string

	// Renderer styles the title. Nil uses lipgloss.DefaultRenderer.
	Renderer *lipgloss.Renderer
}

// Width returns the outer frame width for a console of consoleWidth columns.
func Width(consoleWidth, maxWidth, margin int) int {
	w := consoleWidth - 2*margin
	if maxWidth > 0 && maxWidth < w {
		w = maxWidth
	}
	return w
}

// InnerWidth returns the number of text columns inside a frame.
func InnerWidth(width, padding int) int {
	inner := width - 2 - 2*padding
	if inner < 1 {
		return 1
	}
	return inner
}

// Render hard-wraps lines to the frame's inner width and returns the framed
// screen, one terminal row per line, ending with a newline.
func Render(lines []string, opts Options) string {
	border := lipgloss.NormalBorder()
	inner := InnerWidth(opts.Width, opts.Padding)
	width := inner + 2 + 2*opts.Padding

	var rows []string
	for _, line := range lines {
		rows = append(rows, Wrap(line, inner)...)
	}
	height := opts.Height
	if height <= 0 {
		height = len(rows)
	}
	if len(rows) > height {
		rows = rows[len(rows)-height:]
	}
	for len(rows) < height {
		rows = append(rows, "")
	}

	title := opts.Title
	if title == "" {
		title = fmt.Sprintf("PTY SCREEN %dx%d", inner, height)
	}
	dashes := max(width-6, 0)
	if runewidth.StringWidth(title) > dashes {
		title = runewidth.Truncate(title, dashes, "")
	}
	dashes -= runewidth.StringWidth(title)
	left := dashes / 2

	renderer := opts.Renderer
	if renderer == nil {
		renderer = lipgloss.DefaultRenderer()
	}
	titleStyle := renderer.NewStyle().Foreground(lipgloss.Color("11"))

	margin := strings.Repeat(" ", max(opts.Margin, 0))
	pad := strings.Repeat(" ", max(opts.Padding, 0))

	var b strings.Builder
	vertical := func() {
		for i := 0; i < opts.Margin; i++ {
			b.WriteByte('\n')
		}
	}

	vertical()
	b.WriteString(margin + border.TopLeft + strings.Repeat(border.Top, left))
	b.WriteString(border.MiddleRight + " " + titleStyle.Render(title) + " " + border.MiddleLeft)
	b.WriteString(strings.Repeat(border.Top, dashes-left) + border.TopRight + "\n")
	for _, row := range rows {
		b.WriteString(margin + border.Left + pad + runewidth.FillRight(row, inner) + pad + border.Right + "\n")
	}
	b.WriteString(margin + border.BottomLeft + strings.Repeat(border.Bottom, width-2) + border.BottomRight + "\n")
	vertical()

	return b.String()
}

// Number prefixes each line with its right-justified 1-based line number and
// wraps it so no row is wider than width. Continuation rows leave the number
// column blank.
func Number(lines []string, width int) []string {
	digits := len(strconv.Itoa(len(lines)))
	text := width - len(lineIndent) - digits - 2
	if text < 1 {
		text = 1
	}
	blank := lineIndent + strings.Repeat(" ", digits) + "  "

	var out []string
	for i, line := range lines {
		for j, row := range Wrap(line, text) {
			if j == 0 {
				out = append(out, fmt.Sprintf("%s%*d: %s", lineIndent, digits, i+1, row))
				continue
			}
			out = append(out, blank+row)
		}
	}
	return out
}

// Wrap splits line into rows no wider than width display columns. Tabs expand
// to the next multiple of eight columns of the current row, stopping at the
// row's last column. An empty line is one empty row.
func Wrap(line string, width int) []string {
	if width < 1 {
		width = 1
	}
	var rows []string
	var row strings.Builder
	rowWidth := 0
	flush := func() {
		rows = append(rows, row.String())
		row.Reset()
		rowWidth = 0
	}
	put := func(r rune, w int) {
		if rowWidth+w > width && row.Len() > 0 {
			flush()
		}
		row.WriteRune(r)
		rowWidth += w
	}

	for _, r := range line {
		if r == '\t' {
			if rowWidth >= width {
				flush()
			}
			n := min(tabWidth-rowWidth%tabWidth, width-rowWidth)
			row.WriteString(strings.Repeat(" ", n))
			rowWidth += n
			continue
		}
		put(r, runewidth.RuneWidth(r))
	}
	if row.Len() > 0 || len(rows) == 0 {
		flush()
	}
	return rows
}
