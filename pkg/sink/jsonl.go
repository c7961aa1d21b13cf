package sink

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"
)

// JSONLines writes one JSON Record per line.
type JSONLines struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONLines creates a sink writing to w.
func NewJSONLines(w io.Writer) *JSONLines {
	return &JSONLines{enc: json.NewEncoder(w)}
}

func (j *JSONLines) Transcript(ev TranscriptEvent) {
	j.write(TranscriptRecord(ev))
}

func (j *JSONLines) Analysis(ev AnalysisEvent) {
	j.write(AnalysisRecord(ev))
}

func (j *JSONLines) write(r Record) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.enc.Encode(r); err != nil {
		slog.Warn("sink: write json line", "seq", r.Seq, "error", err)
	}
}
