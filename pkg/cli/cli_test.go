package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0ms"},
		{999 * time.Millisecond, "999ms"},
		{time.Second, "1.0s"},
		{1500 * time.Millisecond, "1.5s"},
		{59 * time.Second, "59.0s"},
		{time.Minute, "1m0.0s"},
		{125500 * time.Millisecond, "2m5.5s"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatDuration(tt.d); got != tt.want {
				t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
			}
		})
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.00 KB"},
		{1572864, "1.50 MB"},
		{1610612736, "1.50 GB"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatBytes(tt.bytes); got != tt.want {
				t.Errorf("FormatBytes(%d) = %q, want %q", tt.bytes, got, tt.want)
			}
		})
	}
}

func TestPercent(t *testing.T) {
	if got := Percent(50, 200); got != "25%" {
		t.Errorf("Percent = %q", got)
	}
	if got := Percent(50, 0); got != "?" {
		t.Errorf("Percent unknown total = %q", got)
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]OutputFormat{"": FormatYAML, "JSON": FormatJSON, "table": FormatTable} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("ParseFormat(xml) should fail")
	}
}

type testTable []string

func (t testTable) Header() []string { return []string{"NAME", "SIZE"} }
func (t testTable) Rows() [][]string {
	var rows [][]string
	for _, s := range t {
		rows = append(rows, []string{s, FormatBytes(int64(len(s)))})
	}
	return rows
}

func TestOutput(t *testing.T) {
	data := map[string]any{"name": "test", "value": 123}

	var buf bytes.Buffer
	if err := Output(&buf, data, FormatJSON); err != nil {
		t.Fatalf("Output json: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil || got["name"] != "test" {
		t.Errorf("json output = %s (%v)", buf.String(), err)
	}

	buf.Reset()
	if err := Output(&buf, data, ""); err != nil {
		t.Fatalf("Output yaml: %v", err)
	}
	if !strings.Contains(buf.String(), "name: test") {
		t.Errorf("yaml output = %s", buf.String())
	}

	buf.Reset()
	if err := Output(&buf, testTable{"tiny", "base"}, FormatTable); err != nil {
		t.Fatalf("Output table: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[0], "NAME") || !strings.HasPrefix(lines[2], "base") {
		t.Errorf("table output = %q", buf.String())
	}

	buf.Reset()
	if err := Output(&buf, data, FormatTable); err != nil || !strings.Contains(buf.String(), "name: test") {
		t.Errorf("table fallback = %q, %v", buf.String(), err)
	}

	if err := Output(&buf, data, "xml"); err == nil {
		t.Error("unsupported format should fail")
	}
}

func TestWrap(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  []string
	}{
		{"", 10, []string{""}},
		{"short", 10, []string{"short"}},
		{"one two three four", 9, []string{"one two", "three", "four"}},
		{"abcdefghij", 4, []string{"abcd", "efgh", "ij"}},
		{"ab cdefghij", 4, []string{"ab", "cdef", "ghij"}},
	}
	for _, tt := range tests {
		got := Wrap(tt.in, tt.width)
		if strings.Join(got, "|") != strings.Join(tt.want, "|") {
			t.Errorf("Wrap(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}

func TestCard_Render(t *testing.T) {
	c := Card{
		Styles: PlainStyles(),
		Title:  "#3",
		Status: "30.0s",
		Sections: []Section{
			{Label: "Transcript", Lines: []string{"What is ownership in Rust and why does it matter?"}},
			{Label: "Empty"},
			{Label: "Translation", Lines: []string{"! translate: timeout"}},
		},
	}
	out := c.Render(30)
	lines := strings.Split(out, "\n")
	for i, l := range lines {
		if w := lipgloss.Width(l); w != 30 {
			t.Errorf("line %d width = %d, want 30: %q", i, w, l)
		}
	}
	if strings.Contains(out, "Empty") {
		t.Error("empty section rendered")
	}
	if !strings.Contains(out, "#3 [30.0s]") || !strings.Contains(out, "translate: timeout") {
		t.Errorf("card = \n%s", out)
	}
	if strings.Contains(out, "! translate") {
		t.Error("error marker not stripped")
	}
}
