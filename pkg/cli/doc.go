// Package cli holds the pieces shared by loopscribe commands: per-user
// directories, result output in YAML, JSON or tables, byte and duration
// formatting, and the lipgloss card used for live terminal output.
package cli
