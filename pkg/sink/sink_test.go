package sink

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/haivivi/loopscribe/pkg/analysis"
	"github.com/haivivi/loopscribe/pkg/metrics"
)

var (
	testStart = time.Date(2024, 5, 1, 12, 4, 5, 0, time.UTC)

	transcriptEv = TranscriptEvent{
		SessionID:   "s1",
		Seq:         3,
		Start:       testStart,
		Duration:    30 * time.Second,
		Text:        "What is ownership in Rust?",
		Translation: "Что такое владение в Rust?",
	}
	analysisEv = AnalysisEvent{
		SessionID: "s1",
		Seq:       3,
		Pairs: []analysis.Pair{
			{Question: "What is ownership in Rust?", Answer: "Each value has one owner.", Seq: 3},
		},
		Duplicates: 1,
	}
)

type recorder struct {
	transcripts []TranscriptEvent
	analyses    []AnalysisEvent
}

func (r *recorder) Transcript(ev TranscriptEvent) { r.transcripts = append(r.transcripts, ev) }
func (r *recorder) Analysis(ev AnalysisEvent)     { r.analyses = append(r.analyses, ev) }

func TestMulti(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	m := Multi{a, b}
	m.Transcript(transcriptEv)
	m.Analysis(analysisEv)
	for i, r := range []*recorder{a, b} {
		if len(r.transcripts) != 1 || len(r.analyses) != 1 {
			t.Errorf("sink %d got %d transcripts, %d analyses", i, len(r.transcripts), len(r.analyses))
		}
	}
	Discard.Transcript(transcriptEv)
}

func TestJSONLines(t *testing.T) {
	var buf bytes.Buffer
	s := NewJSONLines(&buf)
	s.Transcript(transcriptEv)
	s.Analysis(AnalysisEvent{Seq: 4, AnalyzeErr: errors.New("llm: remote call failed")})

	var recs []Record
	sc := bufio.NewScanner(&buf)
	for sc.Scan() {
		var r Record
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			t.Fatalf("line %q: %v", sc.Text(), err)
		}
		recs = append(recs, r)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if r := recs[0]; r.Type != TypeTranscript || r.Seq != 3 || r.Text != transcriptEv.Text ||
		r.Translation != transcriptEv.Translation || r.DurationMS != 30000 || r.Start == nil || !r.Start.Equal(testStart) {
		t.Errorf("transcript record = %+v", r)
	}
	if r := recs[1]; r.Type != TypeAnalysis || r.Seq != 4 || r.Error != "llm: remote call failed" || len(r.Pairs) != 0 {
		t.Errorf("analysis record = %+v", r)
	}
}

func TestTerminal(t *testing.T) {
	var buf bytes.Buffer
	s := NewTerminal(&buf, false, 60)

	s.Transcript(transcriptEv)
	out := buf.String()
	for _, want := range []string{"#3  12:04:05", "[30.0s]", "Transcript", "What is ownership in Rust?", "Translation", "Что такое владение в Rust?"} {
		if !strings.Contains(out, want) {
			t.Errorf("transcript card missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	s.Analysis(analysisEv)
	out = buf.String()
	for _, want := range []string{"Questions", "[1 repeated]", "Q1", "→ Each value has one owner."} {
		if !strings.Contains(out, want) {
			t.Errorf("analysis card missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	s.Analysis(AnalysisEvent{Seq: 5})
	if buf.Len() != 0 {
		t.Errorf("empty analysis printed:\n%s", buf.String())
	}

	buf.Reset()
	s.Transcript(TranscriptEvent{Seq: 6, Text: "hello", TranslateErr: errors.New("timeout")})
	if out := buf.String(); !strings.Contains(out, "timeout") {
		t.Errorf("translation error not shown:\n%s", out)
	}
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readRecord(t *testing.T, conn *websocket.Conn) Record {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var r Record
	if err := conn.ReadJSON(&r); err != nil {
		t.Fatalf("read: %v", err)
	}
	return r
}

func waitClients(t *testing.T, h *WebSocket, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for h.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("clients = %d, want %d", h.Clients(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebSocket(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	h := NewWebSocket(2, nil, m)
	srv := httptest.NewServer(h)
	defer srv.Close()
	defer h.Close()

	// Published before anyone connects: only the last two are replayed.
	for seq := range int64(3) {
		h.Transcript(TranscriptEvent{Seq: seq, Text: "backlog"})
	}

	conn := dial(t, srv)
	waitClients(t, h, 1)
	if v := testutil.ToFloat64(m.LiveClients); v != 1 {
		t.Errorf("live clients gauge = %v, want 1", v)
	}
	for _, want := range []int64{1, 2} {
		if r := readRecord(t, conn); r.Seq != want {
			t.Errorf("backlog seq = %d, want %d", r.Seq, want)
		}
	}

	h.Analysis(analysisEv)
	r := readRecord(t, conn)
	if r.Type != TypeAnalysis || len(r.Pairs) != 1 || r.Pairs[0].Question != "What is ownership in Rust?" {
		t.Errorf("live record = %+v", r)
	}

	conn.Close()
	waitClients(t, h, 0)
	if v := testutil.ToFloat64(m.LiveClients); v != 0 {
		t.Errorf("live clients gauge = %v, want 0", v)
	}
}

func TestWebSocket_Close(t *testing.T) {
	h := NewWebSocket(0, nil, nil)
	srv := httptest.NewServer(h)
	defer srv.Close()

	conn := dial(t, srv)
	waitClients(t, h, 1)
	h.Close()
	waitClients(t, h, 0)

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("read after Close = %v, want normal closure", err)
	}
}
