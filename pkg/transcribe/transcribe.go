// Package transcribe turns audio chunks into text with a single speech
// recognition engine.
//
// A [Worker] owns at most one [Engine]. Loading happens once, in the
// background, and every request waits for it. Inference runs on one
// goroutine that serves requests in arrival order, so the engine is never
// entered concurrently. Failures degrade to empty transcripts: a missing
// model is reported once, engine errors and panics are logged and counted.
package transcribe

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrModelUnavailable is returned by Worker.Init when the model is not
	// materialized locally or cannot be loaded.
	ErrModelUnavailable = errors.New("transcribe: model unavailable")

	// ErrTranscription marks a failed inference. It is logged, never
	// returned from Worker.Transcribe.
	ErrTranscription = errors.New("transcribe: inference failed")

	// ErrClosed is returned after Worker.Close.
	ErrClosed = errors.New("transcribe: worker closed")
)

// DefaultSilenceThreshold is one 16-bit LSB. Buffers whose peak does not
// exceed it are not sent to the engine.
const DefaultSilenceThreshold = float32(1.0 / 32768)

// Engine is a loaded speech recognition model. Transcribe receives mono
// 16 kHz samples in [-1, 1].
type Engine interface {
	Transcribe(ctx context.Context, samples []float32) (string, error)
	Close() error
}

// Loader resolves a model identifier to an engine.
type Loader interface {
	// Materialized reports whether the model is available without a
	// download.
	Materialized(id string) bool

	// Load creates an engine for a materialized model.
	Load(ctx context.Context, id string) (Engine, error)
}

// Transcript is the text of one chunk. Empty text is valid.
type Transcript struct {
	Seq   int64     `json:"seq"`
	Start time.Time `json:"start"`
	Text  string    `json:"text"`
}

// Empty reports whether the transcript carries no text.
func (t Transcript) Empty() bool {
	return t.Text == ""
}
