package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/haivivi/loopscribe/cmd/loopscribe/internal/config"
	"github.com/haivivi/loopscribe/pkg/cli"
	"github.com/haivivi/loopscribe/pkg/models"
)

// modelRow is a catalog entry with its local state.
type modelRow struct {
	models.Model `yaml:",inline"`
	Downloaded   bool `json:"downloaded" yaml:"downloaded"`
}

type modelTable []modelRow

func (t modelTable) Header() []string {
	return []string{"FILE", "NAME", "SIZE", "DOWNLOADED"}
}

func (t modelTable) Rows() [][]string {
	var rows [][]string
	for _, m := range t {
		size := "?"
		if m.Size > 0 {
			size = cli.FormatBytes(m.Size)
		}
		downloaded := ""
		if m.Downloaded {
			downloaded = "yes"
		}
		rows = append(rows, []string{m.Filename, m.Name, size, downloaded})
	}
	return rows
}

// openManager returns a manager over the configured models directory with
// the persistent catalog cache. The returned func closes the cache.
func openManager(cfg *config.Config) (*models.Manager, func(), error) {
	paths, err := cli.NewPaths()
	if err != nil {
		return nil, nil, err
	}
	if err := cli.Ensure(paths.CatalogDir()); err != nil {
		return nil, nil, err
	}
	cache, err := models.OpenBadgerCache(paths.CatalogDir())
	if err != nil {
		return nil, nil, err
	}
	m := &models.Manager{Dir: cfg.Transcription.ModelsDir, Cache: cache}
	return m, func() { cache.Close() }, nil
}

func modelRows(m *models.Manager, list []models.Model) modelTable {
	rows := make(modelTable, len(list))
	for i, mod := range list {
		rows[i] = modelRow{Model: mod, Downloaded: m.Materialized(mod.Filename)}
	}
	return rows
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Manage whisper models",
	Long: `Manage the ggml whisper models used for local transcription.

The catalog starts with the common models and learns the rest from the
whisper.cpp model repository on 'refresh'. Models are stored in
transcription.models_dir.

Examples:
  loopscribe models list
  loopscribe models refresh
  loopscribe models download base.en
  loopscribe models delete ggml-large-v3.bin`,
}

var modelsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List known models",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		m, closeFn, err := openManager(cfg)
		if err != nil {
			return err
		}
		defer closeFn()
		list, err := m.List(cmd.Context())
		if err != nil {
			return err
		}
		return output(cmd, modelRows(m, list), cli.FormatTable)
	},
}

var modelsRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refresh the catalog from the model repository",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		m, closeFn, err := openManager(cfg)
		if err != nil {
			return err
		}
		defer closeFn()
		list, err := m.Refresh(cmd.Context())
		if err != nil {
			// The catalog is still usable without the remote listing.
			cli.PrintWarning(cmd.ErrOrStderr(), "refresh failed: %v", err)
		}
		return output(cmd, modelRows(m, list), cli.FormatTable)
	},
}

var modelsDownloadCmd = &cobra.Command{
	Use:   "download <model>",
	Short: "Download a model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		m, closeFn, err := openManager(cfg)
		if err != nil {
			return err
		}
		defer closeFn()
		mod, err := m.Find(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if m.Materialized(mod.Filename) {
			cli.PrintSuccess(cmd.OutOrStdout(), "%s already downloaded", mod.Filename)
			return nil
		}

		stderr := cmd.ErrOrStderr()
		begin := time.Now()
		var last time.Time
		err = m.Download(cmd.Context(), mod, func(done, total int64) {
			if time.Since(last) < 500*time.Millisecond && done != total {
				return
			}
			last = time.Now()
			fmt.Fprintf(stderr, "\r%s  %s / %s  %s   ", mod.Filename,
				cli.FormatBytes(done), cli.FormatBytes(total), cli.Percent(done, total))
		})
		fmt.Fprintln(stderr)
		if err != nil {
			return err
		}
		cli.PrintSuccess(cmd.OutOrStdout(), "downloaded %s to %s in %s",
			mod.Filename, m.Path(mod.Filename), cli.FormatDuration(time.Since(begin)))
		return nil
	},
}

var modelsDeleteCmd = &cobra.Command{
	Use:   "delete <model>",
	Short: "Delete a downloaded model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		m := &models.Manager{Dir: cfg.Transcription.ModelsDir}
		filename := models.Filename(args[0])
		if err := m.Delete(filename); err != nil {
			return err
		}
		cli.PrintSuccess(cmd.OutOrStdout(), "deleted %s", filename)
		return nil
	},
}

func init() {
	modelsCmd.AddCommand(modelsListCmd, modelsRefreshCmd, modelsDownloadCmd, modelsDeleteCmd)
	rootCmd.AddCommand(modelsCmd)
}
