package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme defines the colors of terminal output.
type Theme struct {
	Primary lipgloss.Color // borders, titles, questions
	Dim     lipgloss.Color // status and secondary text
	Error   lipgloss.Color
}

// DefaultTheme is the bright green theme.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Dim:     lipgloss.Color("#6e7681"),
	Error:   lipgloss.Color("#ff5f5f"),
}

// Styles holds the styles derived from a theme.
type Styles struct {
	Title  lipgloss.Style
	Label  lipgloss.Style
	Border lipgloss.Style
	Help   lipgloss.Style
	Text   lipgloss.Style
	Error  lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Title:  lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Label:  lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Border: lipgloss.NewStyle().Foreground(t.Primary),
		Help:   lipgloss.NewStyle().Foreground(t.Dim),
		Text:   lipgloss.NewStyle(),
		Error:  lipgloss.NewStyle().Foreground(t.Error),
	}
}

// PlainStyles renders without any escape sequences.
func PlainStyles() Styles {
	s := lipgloss.NewStyle()
	return Styles{Title: s, Label: s, Border: s, Help: s, Text: s, Error: s}
}

// Section is a labeled block of a Card. Lines are wrapped to the card
// width; a line starting with "! " is rendered in the error style.
type Section struct {
	Label string
	Lines []string
}

// Card is a bordered block with a title line and labeled sections:
//
//	╭──────────────────────────╮
//	│ #3 12:04:05  [30.0s]     │
//	├─Transcript───────────────┤
//	│ What is ownership?       │
//	╰──────────────────────────╯
type Card struct {
	Styles   Styles
	Title    string
	Status   string
	Sections []Section
}

// Render renders the card width columns wide.
func (c Card) Render(width int) string {
	width = max(width, 12)
	bc := c.Styles.Border
	inner := width - 4

	var lines []string
	lines = append(lines, bc.Render("╭"+strings.Repeat("─", width-2)+"╮"))

	head := c.Styles.Title.Render(c.Title)
	if c.Status != "" {
		head += " " + c.Styles.Help.Render("["+c.Status+"]")
	}
	lines = append(lines, c.row(head, inner))

	for _, sec := range c.Sections {
		if len(sec.Lines) == 0 {
			continue
		}
		label := c.Styles.Label.Render(sec.Label)
		pad := max(0, width-3-lipgloss.Width(label))
		lines = append(lines, bc.Render("├─")+label+bc.Render(strings.Repeat("─", pad)+"┤"))
		for _, l := range sec.Lines {
			style := c.Styles.Text
			if rest, ok := strings.CutPrefix(l, "! "); ok {
				style, l = c.Styles.Error, rest
			}
			for _, w := range Wrap(l, inner) {
				lines = append(lines, c.row(style.Render(w), inner))
			}
		}
	}

	lines = append(lines, bc.Render("╰"+strings.Repeat("─", width-2)+"╯"))
	return strings.Join(lines, "\n")
}

// row pads rendered text into a bordered line.
func (c Card) row(text string, inner int) string {
	bc := c.Styles.Border
	if lipgloss.Width(text) > inner {
		text = truncateString(text, inner-1) + "…"
	}
	return bc.Render("│") + " " + text +
		strings.Repeat(" ", max(0, inner-lipgloss.Width(text))) + " " + bc.Render("│")
}

// Wrap breaks s into lines of at most width display columns, splitting on
// spaces and inside words longer than a line.
func Wrap(s string, width int) []string {
	if width <= 0 {
		return []string{s}
	}
	var out []string
	var cur strings.Builder
	curWidth := 0
	flush := func() {
		out = append(out, cur.String())
		cur.Reset()
		curWidth = 0
	}
	for _, word := range strings.Fields(s) {
		ww := lipgloss.Width(word)
		if curWidth > 0 && curWidth+1+ww > width {
			flush()
		}
		for ww > width {
			head := truncateString(word, width)
			if head == "" {
				head = string([]rune(word)[:1])
			}
			if curWidth > 0 {
				flush()
			}
			out = append(out, head)
			word = word[len(head):]
			ww = lipgloss.Width(word)
		}
		if curWidth > 0 {
			cur.WriteByte(' ')
			curWidth++
		}
		cur.WriteString(word)
		curWidth += ww
	}
	if curWidth > 0 || len(out) == 0 {
		flush()
	}
	return out
}

// truncateString safely truncates a string to the given width,
// handling multi-byte characters correctly.
func truncateString(s string, width int) string {
	if width <= 0 {
		return ""
	}
	runes := []rune(s)
	currentWidth := 0
	for i, r := range runes {
		w := lipgloss.Width(string(r))
		if currentWidth+w > width {
			return string(runes[:i])
		}
		currentWidth += w
	}
	return s
}
