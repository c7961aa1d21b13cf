package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/goccy/go-yaml"
)

// OutputFormat selects how Output renders a value.
type OutputFormat string

const (
	FormatYAML  OutputFormat = "yaml"
	FormatJSON  OutputFormat = "json"
	FormatTable OutputFormat = "table"
)

// ParseFormat validates a --output flag value. Empty means YAML.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case "":
		return FormatYAML, nil
	case FormatYAML, FormatJSON, FormatTable:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported output format: %q", s)
	}
}

// Table is implemented by results that have a tabular form.
type Table interface {
	Header() []string
	Rows() [][]string
}

// Output writes v to w. Values that do not implement Table fall back to
// YAML when a table is requested.
func Output(w io.Writer, v any, format OutputFormat) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatTable:
		if t, ok := v.(Table); ok {
			return outputTable(w, t)
		}
		return outputYAML(w, v)
	case FormatYAML, "":
		return outputYAML(w, v)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

func outputYAML(w io.Writer, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	_, err = w.Write(data)
	return err
}

func outputTable(w io.Writer, t Table) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(t.Header(), "\t"))
	for _, row := range t.Rows() {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// PrintSuccess prints a message with a checkmark.
func PrintSuccess(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "✓ "+format+"\n", args...)
}

// PrintWarning prints a message with a warning sign.
func PrintWarning(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "⚠ "+format+"\n", args...)
}
