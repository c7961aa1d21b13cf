package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// Manager keeps model files in a directory and tracks the catalog.
type Manager struct {
	// Dir holds downloaded model files.
	Dir string

	// Cache remembers the catalog of the last refresh. Optional.
	Cache Cache

	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client

	// TreeURL defaults to TreeURL.
	TreeURL string

	Logger *slog.Logger
}

func (m *Manager) httpClient() *http.Client {
	if m.HTTPClient != nil {
		return m.HTTPClient
	}
	return http.DefaultClient
}

func (m *Manager) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

// Path returns where the model file lives locally.
func (m *Manager) Path(filename string) string {
	return filepath.Join(m.Dir, filename)
}

// Materialized reports whether the model file exists with non-zero size.
func (m *Manager) Materialized(filename string) bool {
	fi, err := os.Stat(m.Path(filename))
	return err == nil && fi.Mode().IsRegular() && fi.Size() > 0
}

// List returns the defaults overlaid with the cached catalog.
func (m *Manager) List(ctx context.Context) ([]Model, error) {
	known, err := m.known(ctx)
	if err != nil {
		return nil, err
	}
	return overlay(Defaults(), known), nil
}

// Find resolves id (see Filename) against the catalog.
func (m *Manager) Find(ctx context.Context, id string) (Model, error) {
	list, err := m.List(ctx)
	if err != nil {
		return Model{}, err
	}
	want := Filename(id)
	for _, mod := range list {
		if mod.Filename == want || strings.EqualFold(mod.Name, id) {
			return mod, nil
		}
	}
	return Model{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Refresh fetches the remote listing, merges it into the catalog and
// stores the result. On fetch failure the current catalog is returned
// along with the error.
func (m *Manager) Refresh(ctx context.Context) ([]Model, error) {
	known, err := m.known(ctx)
	if err != nil {
		return nil, err
	}
	remote, err := m.fetchRemote(ctx)
	if err != nil {
		return overlay(Defaults(), known), err
	}
	merged := Merge(Defaults(), known, remote, m.Materialized)
	if m.Cache != nil {
		if err := m.Cache.Store(ctx, merged); err != nil {
			return merged, fmt.Errorf("models: store catalog: %w", err)
		}
	}
	m.logger().Info("model catalog refreshed", "remote", len(remote), "total", len(merged))
	return merged, nil
}

func (m *Manager) known(ctx context.Context) ([]Model, error) {
	if m.Cache == nil {
		return nil, nil
	}
	known, err := m.Cache.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("models: load catalog: %w", err)
	}
	return known, nil
}

type treeEntry struct {
	Type string `json:"type"`
	Path string `json:"path"`
	Size int64  `json:"size"`
}

func (m *Manager) fetchRemote(ctx context.Context) ([]Model, error) {
	url := m.TreeURL
	if url == "" {
		url = TreeURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := m.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("models: list remote: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("models: list remote: %s", resp.Status)
	}
	var entries []treeEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("models: decode listing: %w", err)
	}
	var out []Model
	for _, e := range entries {
		if e.Type == "file" && IsModelFile(e.Path) {
			out = append(out, newModel(e.Path, e.Size))
		}
	}
	return out, nil
}

// Progress reports bytes written so far and the expected total (0 when
// unknown).
type Progress func(done, total int64)

// Download fetches model into Dir. The file is written under a temporary
// name and renamed when complete, so a cancelled download never looks
// materialized.
func (m *Manager) Download(ctx context.Context, model Model, progress Progress) error {
	if err := os.MkdirAll(m.Dir, 0o755); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, model.URL, nil)
	if err != nil {
		return err
	}
	resp, err := m.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("models: download %s: %w", model.Filename, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("models: download %s: %s", model.Filename, resp.Status)
	}

	total := resp.ContentLength
	if total <= 0 {
		total = model.Size
	}
	dst := m.Path(model.Filename)
	tmp, err := os.CreateTemp(m.Dir, model.Filename+".*.part")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := &progressWriter{w: tmp, total: total, fn: progress}
	if _, err := io.Copy(w, resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("models: download %s: %w", model.Filename, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return err
	}
	m.logger().Info("model downloaded", "model", model.Filename, "bytes", w.done)
	return nil
}

// Delete removes the local model file. Deleting a missing file is not an
// error.
func (m *Manager) Delete(filename string) error {
	err := os.Remove(m.Path(filename))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

type progressWriter struct {
	w     io.Writer
	done  int64
	total int64
	fn    Progress
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.done += int64(n)
	if p.fn != nil {
		p.fn(p.done, p.total)
	}
	return n, err
}
