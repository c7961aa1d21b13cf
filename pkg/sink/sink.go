// Package sink presents pipeline results: a terminal view, JSON lines and a
// websocket live feed, combined with Multi.
//
// Sinks are called from pipeline goroutines. Transcript events arrive in
// chunk order; analysis events arrive as analyses complete. Implementations
// must be safe for concurrent use and must not block for long.
package sink

import (
	"time"

	"github.com/haivivi/loopscribe/pkg/analysis"
)

// TranscriptEvent carries the transcript of one chunk and its translation.
type TranscriptEvent struct {
	SessionID string
	Seq       int64
	Start     time.Time
	Duration  time.Duration
	Text      string

	// Translation is empty when translation is disabled or failed.
	Translation  string
	TranslateErr error
}

// AnalysisEvent carries the new question/answer pairs found while
// analyzing one chunk. Questions already shown in the session are left out
// and counted in Duplicates.
type AnalysisEvent struct {
	SessionID  string
	Seq        int64
	Pairs      []analysis.Pair
	Duplicates int
	AnalyzeErr error
}

// Sink receives pipeline results.
type Sink interface {
	Transcript(TranscriptEvent)
	Analysis(AnalysisEvent)
}

// Multi forwards every event to each sink in order.
type Multi []Sink

func (m Multi) Transcript(ev TranscriptEvent) {
	for _, s := range m {
		s.Transcript(ev)
	}
}

func (m Multi) Analysis(ev AnalysisEvent) {
	for _, s := range m {
		s.Analysis(ev)
	}
}

// Discard drops all events.
var Discard Sink = Multi(nil)

// Record is the wire form of an event used by JSONLines and WebSocket.
type Record struct {
	Type        string          `json:"type"`
	SessionID   string          `json:"session_id,omitempty"`
	Seq         int64           `json:"seq"`
	Start       *time.Time      `json:"start,omitempty"`
	DurationMS  int64           `json:"duration_ms,omitempty"`
	Text        string          `json:"text,omitempty"`
	Translation string          `json:"translation,omitempty"`
	Pairs       []analysis.Pair `json:"pairs,omitempty"`
	Duplicates  int             `json:"duplicates,omitempty"`
	Error       string          `json:"error,omitempty"`
}

const (
	TypeTranscript = "transcript"
	TypeAnalysis   = "analysis"
)

// TranscriptRecord converts ev to its wire form.
func TranscriptRecord(ev TranscriptEvent) Record {
	r := Record{
		Type:        TypeTranscript,
		SessionID:   ev.SessionID,
		Seq:         ev.Seq,
		DurationMS:  ev.Duration.Milliseconds(),
		Text:        ev.Text,
		Translation: ev.Translation,
		Error:       errString(ev.TranslateErr),
	}
	if !ev.Start.IsZero() {
		start := ev.Start
		r.Start = &start
	}
	return r
}

// AnalysisRecord converts ev to its wire form.
func AnalysisRecord(ev AnalysisEvent) Record {
	return Record{
		Type:       TypeAnalysis,
		SessionID:  ev.SessionID,
		Seq:        ev.Seq,
		Pairs:      ev.Pairs,
		Duplicates: ev.Duplicates,
		Error:      errString(ev.AnalyzeErr),
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
