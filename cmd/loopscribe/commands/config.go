package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/haivivi/loopscribe/cmd/loopscribe/internal/config"
	"github.com/haivivi/loopscribe/pkg/cli"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or initialize the configuration file",
	Long: `Show or initialize the configuration file.

Examples:
  loopscribe config path
  loopscribe config show
  loopscribe config init --force`,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			p, err := config.DefaultPath()
			if err != nil {
				return err
			}
			path = p
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration with secrets masked",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return output(cmd, cfg.Redacted(), cli.FormatYAML)
	},
}

var configInitForce bool

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		_, err = os.Stat(cfg.Path)
		if err == nil && !configInitForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", cfg.Path)
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		// Keys picked up from the environment stay out of the file.
		fresh := config.Default()
		fresh.Path = cfg.Path
		fresh.Transcription.ModelsDir = cfg.Transcription.ModelsDir
		fresh.Archive.Dir = cfg.Archive.Dir
		if err := fresh.Save(); err != nil {
			return err
		}
		cli.PrintSuccess(cmd.OutOrStdout(), "wrote %s", cfg.Path)
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing file")
	configCmd.AddCommand(configPathCmd, configShowCmd, configInitCmd)
	rootCmd.AddCommand(configCmd)
}
