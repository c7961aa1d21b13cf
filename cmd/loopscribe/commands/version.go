package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haivivi/loopscribe/cmd/loopscribe/internal/build"
	"github.com/haivivi/loopscribe/pkg/cli"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		if outputFlag != "" {
			return output(cmd, build.Get(), cli.FormatYAML)
		}
		fmt.Fprintln(cmd.OutOrStdout(), build.String())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
