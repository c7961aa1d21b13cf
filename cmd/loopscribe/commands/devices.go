package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/haivivi/loopscribe/pkg/audio/portaudio"
	"github.com/haivivi/loopscribe/pkg/cli"
)

// deviceTable lists capture-capable devices.
type deviceTable []portaudio.DeviceInfo

func (t deviceTable) Header() []string {
	return []string{"INDEX", "NAME", "HOST API", "CHANNELS", "RATE", "FLAGS"}
}

func (t deviceTable) Rows() [][]string {
	var rows [][]string
	for _, d := range t {
		var flags string
		if d.IsDefaultInput {
			flags += "default "
		}
		if d.IsLoopback() {
			flags += "loopback"
		}
		rows = append(rows, []string{
			strconv.Itoa(d.Index),
			d.Name,
			d.HostAPI,
			strconv.Itoa(d.MaxInputChannels),
			fmt.Sprintf("%.0f", d.DefaultSampleRate),
			flags,
		})
	}
	return rows
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List audio capture devices",
	Long: `List audio devices that can be captured from.

Devices flagged "loopback" carry what the system plays (PulseAudio and
PipeWire monitors, Stereo Mix, BlackHole). 'loopscribe run' picks the first
of them unless capture.device or --device names another.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := loadConfig(cmd); err != nil {
			return err
		}
		all, err := portaudio.Devices()
		if err != nil {
			return err
		}
		var inputs deviceTable
		for _, d := range all {
			if d.MaxInputChannels > 0 {
				inputs = append(inputs, d)
			}
		}
		return output(cmd, inputs, cli.FormatTable)
	},
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}
