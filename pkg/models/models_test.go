package models

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestReadableName(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"ggml-base.en.bin", "Base (English Only)"},
		{"ggml-base.bin", "Base"},
		{"ggml-tiny.en.bin", "Tiny (English Only)"},
		{"ggml-large-v3-turbo-q5_0.bin", "Large-v3-turbo-q5_0"},
		{"ggml-small.q5_1.bin", "Small q5_1"},
		{"ggml-.bin", ""},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			if got := ReadableName(tt.filename); got != tt.want {
				t.Errorf("ReadableName(%q) = %q, want %q", tt.filename, got, tt.want)
			}
		})
	}
}

func TestFilename(t *testing.T) {
	for id, want := range map[string]string{
		"base.en":          "ggml-base.en.bin",
		"ggml-base.en":     "ggml-base.en.bin",
		"ggml-base.en.bin": "ggml-base.en.bin",
		"tiny":             "ggml-tiny.bin",
	} {
		if got := Filename(id); got != want {
			t.Errorf("Filename(%q) = %q, want %q", id, got, want)
		}
	}
}

func TestDefaults(t *testing.T) {
	ds := Defaults()
	if len(ds) != 10 {
		t.Fatalf("len(Defaults()) = %d, want 10", len(ds))
	}
	for _, m := range ds {
		if !IsModelFile(m.Filename) {
			t.Errorf("%s is not a model file name", m.Filename)
		}
		if m.URL != DownloadBaseURL+m.Filename {
			t.Errorf("%s URL = %s", m.Filename, m.URL)
		}
	}
	if !slices.IsSortedFunc(ds, func(a, b Model) int { return int(a.Size - b.Size) }) {
		t.Error("defaults are not sorted by size")
	}
}

func names(ms []Model) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Filename
	}
	return out
}

func TestMerge(t *testing.T) {
	defaults := []Model{
		{Filename: "ggml-a.bin", Name: "A default", Size: 10},
		{Filename: "ggml-b.bin", Name: "B default", Size: 20},
	}
	known := []Model{
		{Filename: "ggml-a.bin", Name: "A known", Size: 11},
		{Filename: "ggml-gone.bin", Size: 5},
		{Filename: "ggml-kept.bin", Size: 6},
	}
	remote := []Model{
		{Filename: "ggml-b.bin", Name: "B remote", Size: 21},
		{Filename: "ggml-new.bin", Size: 1},
	}
	present := func(f string) bool { return f == "ggml-kept.bin" }

	got := Merge(defaults, known, remote, present)

	want := []string{"ggml-new.bin", "ggml-kept.bin", "ggml-a.bin", "ggml-b.bin"}
	if !slices.Equal(names(got), want) {
		t.Fatalf("Merge = %v, want %v", names(got), want)
	}
	if got[2].Name != "A known" {
		t.Errorf("known must override default: %+v", got[2])
	}
	if got[3].Name != "B remote" {
		t.Errorf("remote must override default: %+v", got[3])
	}
}

func TestMerge_NilPresent(t *testing.T) {
	got := Merge(nil, []Model{{Filename: "ggml-x.bin"}}, nil, nil)
	if len(got) != 0 {
		t.Errorf("Merge = %v, want empty", names(got))
	}
}

func newTreeServer(t *testing.T, entries []treeEntry) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/tree":
			json.NewEncoder(w).Encode(entries)
		case "/files/ggml-test.bin":
			w.Header().Set("Content-Length", "11")
			w.Write([]byte("model-bytes"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestManager_Refresh(t *testing.T) {
	srv := newTreeServer(t, []treeEntry{
		{Type: "file", Path: "ggml-tiny.bin", Size: 77_691_713},
		{Type: "file", Path: "ggml-new-model.bin", Size: 1},
		{Type: "file", Path: "README.md", Size: 100},
		{Type: "directory", Path: "ggml-dir.bin"},
		{Type: "file", Path: "for-tests-ggml-tiny.bin", Size: 10},
	})
	cache, err := OpenBadgerCache("")
	if err != nil {
		t.Fatalf("OpenBadgerCache: %v", err)
	}
	t.Cleanup(func() { cache.Close() })

	m := &Manager{Dir: t.TempDir(), Cache: cache, TreeURL: srv.URL + "/tree"}
	ctx := context.Background()

	got, err := m.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if len(got) != 11 {
		t.Errorf("len(Refresh) = %d, want 11: %v", len(got), names(got))
	}
	if got[0].Filename != "ggml-new-model.bin" || got[0].Name != "New-model" {
		t.Errorf("smallest = %+v", got[0])
	}

	// The refreshed catalog survives in the cache.
	list, err := m.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if !slices.Equal(names(list), names(got)) {
		t.Errorf("List = %v, want %v", names(list), names(got))
	}
	tiny, err := m.Find(ctx, "tiny")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if tiny.Size != 77_691_713 {
		t.Errorf("tiny size = %d, want remote size", tiny.Size)
	}
}

func TestManager_RefreshFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	m := &Manager{Dir: t.TempDir(), Cache: &MemoryCache{}, TreeURL: srv.URL}
	got, err := m.Refresh(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if len(got) != len(Defaults()) {
		t.Errorf("fallback catalog has %d models, want defaults", len(got))
	}
}

func TestManager_DownloadDelete(t *testing.T) {
	srv := newTreeServer(t, nil)
	m := &Manager{Dir: filepath.Join(t.TempDir(), "models")}
	ctx := context.Background()
	model := Model{Filename: "ggml-test.bin", URL: srv.URL + "/files/ggml-test.bin"}

	if m.Materialized(model.Filename) {
		t.Fatal("materialized before download")
	}

	var last, total int64
	if err := m.Download(ctx, model, func(done, size int64) { last, total = done, size }); err != nil {
		t.Fatalf("Download: %v", err)
	}
	if last != 11 || total != 11 {
		t.Errorf("progress = %d/%d, want 11/11", last, total)
	}
	if !m.Materialized(model.Filename) {
		t.Fatal("not materialized after download")
	}
	data, err := os.ReadFile(m.Path(model.Filename))
	if err != nil || string(data) != "model-bytes" {
		t.Fatalf("file = %q, %v", data, err)
	}
	entries, _ := os.ReadDir(m.Dir)
	if len(entries) != 1 {
		t.Errorf("leftover files in model dir: %d entries", len(entries))
	}

	if err := m.Delete(model.Filename); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if m.Materialized(model.Filename) {
		t.Error("materialized after delete")
	}
	if err := m.Delete(model.Filename); err != nil {
		t.Errorf("second Delete: %v", err)
	}
}

func TestManager_DownloadNotFound(t *testing.T) {
	srv := newTreeServer(t, nil)
	m := &Manager{Dir: t.TempDir()}
	err := m.Download(context.Background(), Model{Filename: "ggml-x.bin", URL: srv.URL + "/missing"}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if m.Materialized("ggml-x.bin") {
		t.Error("failed download left a materialized file")
	}
}

func TestManager_MaterializedEmptyFile(t *testing.T) {
	m := &Manager{Dir: t.TempDir()}
	if err := os.WriteFile(m.Path("ggml-empty.bin"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if m.Materialized("ggml-empty.bin") {
		t.Error("zero-size file must not count as materialized")
	}
}

func TestManager_FindUnknown(t *testing.T) {
	m := &Manager{Dir: t.TempDir()}
	if _, err := m.Find(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Find error = %v, want ErrNotFound", err)
	}
}

func TestBadgerCache(t *testing.T) {
	c, err := OpenBadgerCache("")
	if err != nil {
		t.Fatalf("OpenBadgerCache: %v", err)
	}
	defer c.Close()
	ctx := context.Background()

	got, err := c.Load(ctx)
	if err != nil || got != nil {
		t.Fatalf("empty Load = %v, %v", got, err)
	}
	want := Defaults()[:2]
	if err := c.Store(ctx, want); err != nil {
		t.Fatalf("Store: %v", err)
	}
	got, err = c.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !slices.Equal(got, want) {
		t.Errorf("Load = %+v, want %+v", got, want)
	}
}
