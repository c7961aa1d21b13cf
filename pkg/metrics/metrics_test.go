package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNew_Registers(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordChunk(30, 960_000)
	m.RecordStage("translate", 0.2, nil)
	m.RecordStage("translate", 0.3, errors.New("boom"))
	m.RecordQuestions(2, 1)

	if got := testutil.ToFloat64(m.ChunksReceived); got != 1 {
		t.Errorf("chunks received = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.StageFailures.WithLabelValues("translate")); got != 1 {
		t.Errorf("translate failures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.QuestionsDuplicated); got != 1 {
		t.Errorf("duplicated = %v, want 1", got)
	}

	n, err := testutil.GatherAndCount(reg)
	if err != nil {
		t.Fatalf("GatherAndCount: %v", err)
	}
	if n == 0 {
		t.Error("no metrics gathered")
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.RecordChunk(1, 1)
	m.SetQueueSize(3)
	m.RecordTranscriptionRequest()
	m.RecordTranscriptionSuccess(1)
	m.RecordTranscriptionFailure(1)
	m.RecordSilentChunk()
	m.RecordModelUnavailable()
	m.RecordStage("analyze", 1, errors.New("x"))
	m.RecordQuestions(1, 1)
	m.SetLiveClients(1)
}
