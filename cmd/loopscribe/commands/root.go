package commands

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haivivi/loopscribe/cmd/loopscribe/internal/config"
	"github.com/haivivi/loopscribe/pkg/cli"
)

var (
	// Global flags
	verbose    bool
	configPath string
	outputFlag string
)

var rootCmd = &cobra.Command{
	Use:   "loopscribe",
	Short: "Live transcription and question extraction for system audio",
	Long: `loopscribe - capture what your computer plays, transcribe it, translate it
and pull out the questions being asked, with short answers.

Audio is cut into fixed-length chunks, transcribed one at a time with a
whisper model (or a remote transcription API), translated, and analyzed
together with the previous chunks by a language model.

Configuration is read from the OS config directory:
  macOS:   ~/Library/Application Support/loopscribe/config.yaml
  Linux:   ~/.config/loopscribe/config.yaml
  Windows: %AppData%/loopscribe/config.yaml

Examples:
  # Write a default config, then download the default model
  loopscribe config init
  loopscribe models download ggml-base.bin

  # Start a live session on the loopback device
  OPENROUTER_API_KEY=... loopscribe run

  # Replay a recording instead of capturing
  loopscribe run --input meeting.wav --speed 0`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: OS config dir)")
	rootCmd.PersistentFlags().StringVarP(&outputFlag, "output", "o", "", "output format for listings: yaml, json or table")
}

// loadConfig loads the configuration and installs the default logger at
// the configured level. --verbose forces debug.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("config not available: %w", err)
	}
	level := parseLevel(cfg.LogLevel)
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
	return cfg, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// output writes v to the command output in the --output format, or def
// when the flag is not set.
func output(cmd *cobra.Command, v any, def cli.OutputFormat) error {
	format := def
	if outputFlag != "" {
		f, err := cli.ParseFormat(outputFlag)
		if err != nil {
			return err
		}
		format = f
	}
	return cli.Output(cmd.OutOrStdout(), v, format)
}
