// Package models manages the catalog of whisper.cpp ggml models: the
// built-in defaults, the Hugging Face listing and the files downloaded to
// a local directory.
package models

import (
	"cmp"
	"errors"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// DownloadBaseURL is where ggml model files are fetched from.
	DownloadBaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/"

	// TreeURL lists the files of the whisper.cpp model repository.
	TreeURL = "https://huggingface.co/api/models/ggerganov/whisper.cpp/tree/main"

	// DefaultModel is the model used when none is configured.
	DefaultModel = "ggml-base.bin"
)

// ErrNotFound is returned when a model is not in the catalog.
var ErrNotFound = errors.New("models: not found")

// Model describes one downloadable model file.
type Model struct {
	Name     string `json:"name" yaml:"name" msgpack:"name"`
	Filename string `json:"filename" yaml:"filename" msgpack:"filename"`
	URL      string `json:"url" yaml:"url" msgpack:"url"`

	// Size in bytes. Default entries carry an approximation.
	Size int64 `json:"size" yaml:"size" msgpack:"size"`
}

func newModel(filename string, size int64) Model {
	return Model{
		Name:     ReadableName(filename),
		Filename: filename,
		URL:      DownloadBaseURL + filename,
		Size:     size,
	}
}

// Defaults returns the built-in catalog, smallest first.
func Defaults() []Model {
	return []Model{
		newModel("ggml-tiny.en.bin", 77_000_000),
		newModel("ggml-tiny.bin", 77_000_000),
		newModel("ggml-base.en.bin", 148_000_000),
		newModel("ggml-base.bin", 148_000_000),
		newModel("ggml-small.en.bin", 488_000_000),
		newModel("ggml-small.bin", 488_000_000),
		{
			Name:     "Large v3 Turbo (Quantized q5_0)",
			Filename: "ggml-large-v3-turbo-q5_0.bin",
			URL:      DownloadBaseURL + "ggml-large-v3-turbo-q5_0.bin",
			Size:     575_000_000,
		},
		{
			Name:     "Large v3 Turbo (Quantized q8_0)",
			Filename: "ggml-large-v3-turbo-q8_0.bin",
			URL:      DownloadBaseURL + "ggml-large-v3-turbo-q8_0.bin",
			Size:     834_000_000,
		},
		newModel("ggml-medium.en.bin", 1_530_000_000),
		newModel("ggml-medium.bin", 1_530_000_000),
	}
}

// IsModelFile reports whether a repository path names a ggml model.
func IsModelFile(path string) bool {
	return strings.HasPrefix(path, "ggml-") && strings.HasSuffix(path, ".bin")
}

// Filename normalizes a model identifier: "base.en", "ggml-base.en" and
// "ggml-base.en.bin" all name "ggml-base.en.bin".
func Filename(id string) string {
	if !strings.HasPrefix(id, "ggml-") {
		id = "ggml-" + id
	}
	if !strings.HasSuffix(id, ".bin") {
		id += ".bin"
	}
	return id
}

// ReadableName derives a display name from a model filename, for example
// "ggml-base.en.bin" becomes "Base (English Only)".
func ReadableName(filename string) string {
	name := strings.TrimSuffix(strings.TrimPrefix(filename, "ggml-"), ".bin")
	if base, variant, ok := strings.Cut(name, "."); ok {
		if first, _, _ := strings.Cut(variant, "."); first == "en" {
			name = base + " (English Only)"
		} else {
			name = strings.ReplaceAll(name, ".", " ")
		}
	}
	r, n := utf8.DecodeRuneInString(name)
	if n == 0 {
		return name
	}
	return string(unicode.ToUpper(r)) + name[n:]
}

// Merge combines catalog sources by filename with precedence remote over
// known over defaults. An entry is kept iff it is listed remotely, is a
// default, or present reports it downloaded. The result is sorted by size.
func Merge(defaults, known, remote []Model, present func(filename string) bool) []Model {
	isDefault := filenames(defaults)
	isRemote := filenames(remote)
	var out []Model
	for _, m := range overlay(defaults, known, remote) {
		if isRemote[m.Filename] || isDefault[m.Filename] || (present != nil && present(m.Filename)) {
			out = append(out, m)
		}
	}
	return out
}

// overlay combines sources by filename, later sources winning, sorted by
// size then filename.
func overlay(sources ...[]Model) []Model {
	byName := map[string]Model{}
	for _, src := range sources {
		for _, m := range src {
			byName[m.Filename] = m
		}
	}
	out := make([]Model, 0, len(byName))
	for _, m := range byName {
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, b Model) int {
		return cmp.Or(cmp.Compare(a.Size, b.Size), strings.Compare(a.Filename, b.Filename))
	})
	return out
}

func filenames(ms []Model) map[string]bool {
	set := make(map[string]bool, len(ms))
	for _, m := range ms {
		set[m.Filename] = true
	}
	return set
}
