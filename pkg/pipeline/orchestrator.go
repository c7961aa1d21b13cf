// Package pipeline drives captured chunks through transcription,
// translation and question extraction.
//
// Chunks are queued without blocking the capture goroutine and dispatched
// one at a time in arrival order: archive, transcribe, then push into the
// ContextWindow. The network stages of each chunk run on their own
// goroutine, so chunk K can be translated while chunk K+1 is transcribed.
// Transcript events reach the sink in chunk order; analysis events are
// emitted as analyses complete.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haivivi/loopscribe/pkg/analysis"
	"github.com/haivivi/loopscribe/pkg/buffer"
	"github.com/haivivi/loopscribe/pkg/capture"
	"github.com/haivivi/loopscribe/pkg/metrics"
	"github.com/haivivi/loopscribe/pkg/sink"
	"github.com/haivivi/loopscribe/pkg/transcribe"
)

// DefaultStageTimeout bounds each network stage of a chunk.
const DefaultStageTimeout = 60 * time.Second

// Stage names used in logs and metrics.
const (
	StageArchive    = "archive"
	StageTranscribe = "transcribe"
	StageTranslate  = "translate"
	StageAnalyze    = "analyze"
)

// Transcriber turns a chunk into text. *transcribe.Worker implements it.
type Transcriber interface {
	Transcribe(ctx context.Context, c *capture.Chunk) (transcribe.Transcript, error)
}

// Translator translates a transcript. *analysis.Translator implements it.
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// Analyzer extracts questions and answers from context text.
// *analysis.Analyzer implements it.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (analysis.Result, error)
}

// Archiver stores chunk audio. *storage.ChunkArchive implements it.
type Archiver interface {
	Archive(ctx context.Context, c *capture.Chunk) error
}

// Config configures an Orchestrator. Only Transcriber is required; a nil
// Translator, Analyzer or Archiver disables that stage.
type Config struct {
	// SessionID tags every event. Default: a random UUID.
	SessionID string

	Transcriber Transcriber
	Translator  Translator
	Analyzer    Analyzer
	Archiver    Archiver

	// Window defaults to NewContextWindow(DefaultWindowSize).
	Window *ContextWindow

	// Sink defaults to sink.Discard.
	Sink sink.Sink

	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// StageTimeout defaults to DefaultStageTimeout.
	StageTimeout time.Duration

	// OnState, if set, is called on every state transition of a chunk.
	OnState func(seq int64, s State)
}

// Orchestrator processes the chunks of one session.
type Orchestrator struct {
	cfg Config
	log *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	queue      *buffer.Queue[*capture.Chunk]
	seq        *sequencer
	dispatched chan struct{}
	wg         sync.WaitGroup
	closeOnce  sync.Once
}

// New creates an orchestrator and starts its dispatcher.
func New(cfg Config) *Orchestrator {
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}
	if cfg.Window == nil {
		cfg.Window = NewContextWindow(DefaultWindowSize)
	}
	if cfg.Sink == nil {
		cfg.Sink = sink.Discard
	}
	if cfg.StageTimeout <= 0 {
		cfg.StageTimeout = DefaultStageTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		cfg:        cfg,
		log:        log.With("session", cfg.SessionID),
		ctx:        ctx,
		cancel:     cancel,
		queue:      buffer.NewQueue[*capture.Chunk](16),
		seq:        newSequencer(),
		dispatched: make(chan struct{}),
	}
	go o.dispatch()
	return o
}

// SessionID returns the session identifier.
func (o *Orchestrator) SessionID() string {
	return o.cfg.SessionID
}

// Window returns the session context window.
func (o *Orchestrator) Window() *ContextWindow {
	return o.cfg.Window
}

// HandleChunk queues c. It never blocks; chunks handed in after Close are
// dropped with a warning.
func (o *Orchestrator) HandleChunk(c *capture.Chunk) {
	if err := o.queue.Push(c); err != nil {
		o.log.Warn("chunk dropped after close", "seq", c.Seq)
		return
	}
	o.cfg.Metrics.RecordChunk(c.Duration().Seconds(), len(c.Data))
	o.cfg.Metrics.SetQueueSize(o.queue.Len())
}

func (o *Orchestrator) state(seq int64, s State) {
	o.log.Debug("chunk state", "seq", seq, "state", s)
	if o.cfg.OnState != nil {
		o.cfg.OnState(seq, s)
	}
}

func (o *Orchestrator) dispatch() {
	defer close(o.dispatched)
	for {
		c, err := o.queue.Pop()
		if err != nil {
			return
		}
		o.cfg.Metrics.SetQueueSize(o.queue.Len())
		o.state(c.Seq, Received)
		ticket := o.seq.take()

		if o.cfg.Archiver != nil {
			o.wg.Add(1)
			go o.archive(c)
		}

		o.state(c.Seq, Transcribing)
		begin := time.Now()
		t, err := o.cfg.Transcriber.Transcribe(o.ctx, c)
		o.cfg.Metrics.RecordStage(StageTranscribe, time.Since(begin).Seconds(), err)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				o.log.Warn("transcription aborted", "seq", c.Seq, "error", err)
			}
		}
		if err != nil || t.Empty() {
			o.seq.release(ticket, nil)
			o.state(c.Seq, Done)
			continue
		}

		window := o.cfg.Window.PushAndBuild(t.Text)
		o.wg.Add(1)
		go o.process(ticket, c, t, window)
	}
}

func (o *Orchestrator) archive(c *capture.Chunk) {
	defer o.wg.Done()
	ctx, cancel := context.WithTimeout(o.ctx, o.cfg.StageTimeout)
	defer cancel()
	begin := time.Now()
	err := o.cfg.Archiver.Archive(ctx, c)
	o.cfg.Metrics.RecordStage(StageArchive, time.Since(begin).Seconds(), err)
	if err != nil {
		o.log.Warn("archive failed", "seq", c.Seq, "chunk", c.Name(), "error", err)
	}
}

// process runs the network stages of one transcribed chunk.
func (o *Orchestrator) process(ticket int64, c *capture.Chunk, t transcribe.Transcript, window string) {
	defer o.wg.Done()
	defer o.state(c.Seq, Done)

	ev := sink.TranscriptEvent{
		SessionID: o.cfg.SessionID,
		Seq:       c.Seq,
		Start:     c.Start,
		Duration:  c.Duration(),
		Text:      t.Text,
	}
	o.state(c.Seq, Translating)
	if o.cfg.Translator != nil {
		ev.TranslateErr = o.stage(StageTranslate, c.Seq, func(ctx context.Context) (err error) {
			ev.Translation, err = o.cfg.Translator.Translate(ctx, t.Text)
			return err
		})
	}
	o.seq.release(ticket, func() { o.cfg.Sink.Transcript(ev) })

	o.state(c.Seq, Analyzing)
	if o.cfg.Analyzer == nil {
		return
	}
	var res analysis.Result
	err := o.stage(StageAnalyze, c.Seq, func(ctx context.Context) (err error) {
		res, err = o.cfg.Analyzer.Analyze(ctx, window)
		return err
	})

	o.state(c.Seq, Merging)
	pairs, dup := o.cfg.Window.Filter(res.Pairs(c.Seq))
	o.cfg.Metrics.RecordQuestions(len(pairs), dup)
	if len(pairs) == 0 && err == nil {
		return
	}
	o.cfg.Sink.Analysis(sink.AnalysisEvent{
		SessionID:  o.cfg.SessionID,
		Seq:        c.Seq,
		Pairs:      pairs,
		Duplicates: dup,
		AnalyzeErr: err,
	})
}

// stage runs fn with the stage timeout, recording its duration and
// outcome. A failure is logged and returned; the chunk carries on.
func (o *Orchestrator) stage(name string, seq int64, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(o.ctx, o.cfg.StageTimeout)
	defer cancel()
	begin := time.Now()
	err := fn(ctx)
	o.cfg.Metrics.RecordStage(name, time.Since(begin).Seconds(), err)
	if err != nil {
		o.log.Warn(name+" failed", "seq", seq, "error", err)
	}
	return err
}

// Close stops accepting chunks and waits until every queued chunk has been
// processed. If ctx ends first, remaining work is cancelled and ctx.Err()
// is returned once it has wound down.
func (o *Orchestrator) Close(ctx context.Context) error {
	o.closeOnce.Do(func() { o.queue.CloseWrite() })
	done := make(chan struct{})
	go func() {
		<-o.dispatched
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		o.cancel()
		return nil
	case <-ctx.Done():
		o.cancel()
		<-done
		return ctx.Err()
	}
}
