package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/haivivi/loopscribe/pkg/audio/pcm"
	"github.com/haivivi/loopscribe/pkg/audio/wav"
	"github.com/haivivi/loopscribe/pkg/models"
)

// DefaultWhisperBinary is the whisper.cpp command line program.
const DefaultWhisperBinary = "whisper-cli"

// WhisperLoader loads ggml models managed by a models.Manager and runs
// them with the whisper.cpp command line program.
type WhisperLoader struct {
	Models *models.Manager

	// Binary defaults to DefaultWhisperBinary, looked up in PATH.
	Binary string

	// Language is a whisper language code, "auto" when empty.
	Language string

	// Threads is passed as -t when positive.
	Threads int
}

var _ Loader = (*WhisperLoader)(nil)

// modelPath accepts a path to a model file or a catalog identifier.
func (l *WhisperLoader) modelPath(id string) string {
	if strings.ContainsRune(id, os.PathSeparator) || (filepath.Ext(id) == ".bin" && fileExists(id)) {
		return id
	}
	return l.Models.Path(models.Filename(id))
}

func fileExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular() && fi.Size() > 0
}

// Materialized reports whether the model file is on disk.
func (l *WhisperLoader) Materialized(id string) bool {
	return fileExists(l.modelPath(id))
}

// Load checks that the whisper binary can be found and returns an engine
// bound to the model file.
func (l *WhisperLoader) Load(_ context.Context, id string) (Engine, error) {
	bin := l.Binary
	if bin == "" {
		bin = DefaultWhisperBinary
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		return nil, fmt.Errorf("transcribe: whisper binary: %w", err)
	}
	lang := l.Language
	if lang == "" {
		lang = "auto"
	}
	return &WhisperEngine{
		Binary:   path,
		Model:    l.modelPath(id),
		Language: lang,
		Threads:  l.Threads,
	}, nil
}

// WhisperEngine runs one whisper.cpp process per request.
type WhisperEngine struct {
	Binary   string
	Model    string
	Language string
	Threads  int

	// TempDir holds the per-request WAV file. Default os.TempDir().
	TempDir string
}

// Args returns the command line for transcribing the WAV file at input.
func (e *WhisperEngine) Args(input string) []string {
	args := []string{"-m", e.Model, "-f", input, "-l", e.Language, "-nt", "-np"}
	if e.Threads > 0 {
		args = append(args, "-t", strconv.Itoa(e.Threads))
	}
	return args
}

// Transcribe writes samples to a 16-bit WAV file and returns the text the
// program prints.
func (e *WhisperEngine) Transcribe(ctx context.Context, samples []float32) (string, error) {
	f, err := os.CreateTemp(e.TempDir, "loopscribe-*.wav")
	if err != nil {
		return "", err
	}
	defer os.Remove(f.Name())
	if err := wav.Write(f, pcm.L16Mono16K, pcm.EncodeInt16(samples)); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.Binary, e.Args(f.Name())...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("%s: %w: %s", filepath.Base(e.Binary), err, lastLine(stderr.String()))
		}
		return "", err
	}
	return joinLines(stdout.String()), nil
}

// Close does nothing; no process outlives a request.
func (e *WhisperEngine) Close() error {
	return nil
}

func joinLines(s string) string {
	var parts []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, " ")
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
