package sink

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/haivivi/loopscribe/pkg/cli"
)

// DefaultWidth is the card width used when none is configured.
const DefaultWidth = 80

// Terminal renders each event as a bordered card.
type Terminal struct {
	mu     sync.Mutex
	w      io.Writer
	width  int
	styles cli.Styles
}

// NewTerminal creates a terminal sink. Color enables the default theme;
// width <= 0 uses DefaultWidth.
func NewTerminal(w io.Writer, color bool, width int) *Terminal {
	if width <= 0 {
		width = DefaultWidth
	}
	styles := cli.PlainStyles()
	if color {
		styles = cli.NewStyles(cli.DefaultTheme)
	}
	return &Terminal{w: w, width: width, styles: styles}
}

func (t *Terminal) Transcript(ev TranscriptEvent) {
	card := cli.Card{
		Styles: t.styles,
		Title:  fmt.Sprintf("#%d  %s", ev.Seq, ev.Start.Format("15:04:05")),
		Sections: []cli.Section{
			{Label: "Transcript", Lines: []string{ev.Text}},
		},
	}
	if ev.Duration > 0 {
		card.Status = cli.FormatDuration(ev.Duration)
	}
	switch {
	case ev.TranslateErr != nil:
		card.Sections = append(card.Sections, cli.Section{
			Label: "Translation", Lines: []string{"! " + ev.TranslateErr.Error()},
		})
	case ev.Translation != "":
		card.Sections = append(card.Sections, cli.Section{
			Label: "Translation", Lines: []string{ev.Translation},
		})
	}
	t.print(card)
}

func (t *Terminal) Analysis(ev AnalysisEvent) {
	card := cli.Card{
		Styles: t.styles,
		Title:  fmt.Sprintf("#%d  Questions", ev.Seq),
	}
	if ev.Duplicates > 0 {
		card.Status = fmt.Sprintf("%d repeated", ev.Duplicates)
	}
	for i, p := range ev.Pairs {
		lines := []string{p.Question}
		if p.Answer != "" {
			lines = append(lines, "→ "+p.Answer)
		}
		card.Sections = append(card.Sections, cli.Section{Label: fmt.Sprintf("Q%d", i+1), Lines: lines})
	}
	if ev.AnalyzeErr != nil {
		card.Sections = append(card.Sections, cli.Section{
			Label: "Analysis", Lines: []string{"! " + ev.AnalyzeErr.Error()},
		})
	}
	if len(card.Sections) == 0 {
		return
	}
	t.print(card)
}

func (t *Terminal) print(c cli.Card) {
	out := c.Render(t.width)
	t.mu.Lock()
	defer t.mu.Unlock()
	io.WriteString(t.w, strings.TrimRight(out, "\n")+"\n")
}
