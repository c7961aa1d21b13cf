// Package metrics holds the Prometheus instruments of a loopscribe process.
//
// All Record methods are safe on a nil *Metrics, so components can take an
// optional *Metrics without guarding every call.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for a session.
type Metrics struct {
	// Chunk metrics
	ChunksReceived prometheus.Counter
	ChunkDuration  prometheus.Histogram
	ChunkSize      prometheus.Histogram
	QueueSize      prometheus.Gauge

	// Transcription metrics
	TranscriptionRequests  prometheus.Counter
	TranscriptionSuccesses prometheus.Counter
	TranscriptionFailures  prometheus.Counter
	TranscriptionSilent    prometheus.Counter
	TranscriptionDuration  prometheus.Histogram
	ModelUnavailable       prometheus.Counter

	// Network stage metrics (translate, analyze, archive)
	StageFailures *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec

	// Analysis metrics
	QuestionsEmitted    prometheus.Counter
	QuestionsDuplicated prometheus.Counter

	// Presentation metrics
	LiveClients prometheus.Gauge
}

// New creates all metrics and registers them with reg. A nil reg leaves
// them unregistered, which suits tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ChunksReceived: f.NewCounter(prometheus.CounterOpts{
			Name: "loopscribe_chunks_received_total",
			Help: "Total number of finalized audio chunks handed to the pipeline",
		}),
		ChunkDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "loopscribe_chunk_duration_seconds",
			Help:    "Audio duration of finalized chunks",
			Buckets: []float64{1, 5, 10, 20, 30, 45, 60, 120},
		}),
		ChunkSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "loopscribe_chunk_size_bytes",
			Help:    "Size of finalized chunks in bytes",
			Buckets: prometheus.ExponentialBuckets(64*1024, 2, 10),
		}),
		QueueSize: f.NewGauge(prometheus.GaugeOpts{
			Name: "loopscribe_pipeline_queue_size",
			Help: "Chunks waiting for transcription",
		}),

		TranscriptionRequests: f.NewCounter(prometheus.CounterOpts{
			Name: "loopscribe_transcription_requests_total",
			Help: "Total number of transcription requests",
		}),
		TranscriptionSuccesses: f.NewCounter(prometheus.CounterOpts{
			Name: "loopscribe_transcription_successes_total",
			Help: "Total number of successful inferences",
		}),
		TranscriptionFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "loopscribe_transcription_failures_total",
			Help: "Total number of failed inferences, recovered as empty transcripts",
		}),
		TranscriptionSilent: f.NewCounter(prometheus.CounterOpts{
			Name: "loopscribe_transcription_silent_total",
			Help: "Total number of chunks skipped as empty or silent",
		}),
		TranscriptionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "loopscribe_transcription_duration_seconds",
			Help:    "Duration of inference calls",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40},
		}),
		ModelUnavailable: f.NewCounter(prometheus.CounterOpts{
			Name: "loopscribe_model_unavailable_total",
			Help: "Number of sessions whose transcription model could not be loaded",
		}),

		StageFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "loopscribe_stage_failures_total",
			Help: "Total number of recovered stage failures",
		}, []string{"stage"}),
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "loopscribe_stage_duration_seconds",
			Help:    "Duration of network stages",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),

		QuestionsEmitted: f.NewCounter(prometheus.CounterOpts{
			Name: "loopscribe_questions_emitted_total",
			Help: "Total number of question/answer pairs emitted",
		}),
		QuestionsDuplicated: f.NewCounter(prometheus.CounterOpts{
			Name: "loopscribe_questions_duplicated_total",
			Help: "Total number of questions suppressed as already seen",
		}),

		LiveClients: f.NewGauge(prometheus.GaugeOpts{
			Name: "loopscribe_live_clients",
			Help: "Connected live feed clients",
		}),
	}
}

// RecordChunk records a chunk entering the pipeline.
func (m *Metrics) RecordChunk(durationSeconds float64, sizeBytes int) {
	if m == nil {
		return
	}
	m.ChunksReceived.Inc()
	m.ChunkDuration.Observe(durationSeconds)
	m.ChunkSize.Observe(float64(sizeBytes))
}

// SetQueueSize sets the number of chunks waiting for transcription.
func (m *Metrics) SetQueueSize(n int) {
	if m == nil {
		return
	}
	m.QueueSize.Set(float64(n))
}

// RecordTranscriptionRequest increments transcription requests counter
func (m *Metrics) RecordTranscriptionRequest() {
	if m == nil {
		return
	}
	m.TranscriptionRequests.Inc()
}

// RecordTranscriptionSuccess records a successful inference.
func (m *Metrics) RecordTranscriptionSuccess(durationSeconds float64) {
	if m == nil {
		return
	}
	m.TranscriptionSuccesses.Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
}

// RecordTranscriptionFailure records a failed inference.
func (m *Metrics) RecordTranscriptionFailure(durationSeconds float64) {
	if m == nil {
		return
	}
	m.TranscriptionFailures.Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
}

// RecordSilentChunk records a chunk that skipped inference.
func (m *Metrics) RecordSilentChunk() {
	if m == nil {
		return
	}
	m.TranscriptionSilent.Inc()
}

// RecordModelUnavailable records a model that could not be loaded.
func (m *Metrics) RecordModelUnavailable() {
	if m == nil {
		return
	}
	m.ModelUnavailable.Inc()
}

// RecordStage records one network stage call.
func (m *Metrics) RecordStage(stage string, durationSeconds float64, err error) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(durationSeconds)
	if err != nil {
		m.StageFailures.WithLabelValues(stage).Inc()
	}
}

// RecordQuestions records emitted and suppressed questions.
func (m *Metrics) RecordQuestions(emitted, duplicated int) {
	if m == nil {
		return
	}
	m.QuestionsEmitted.Add(float64(emitted))
	m.QuestionsDuplicated.Add(float64(duplicated))
}

// SetLiveClients sets the number of connected live feed clients.
func (m *Metrics) SetLiveClients(n int) {
	if m == nil {
		return
	}
	m.LiveClients.Set(float64(n))
}
