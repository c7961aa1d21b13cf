package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/haivivi/loopscribe/pkg/audio/resampler"
	"github.com/haivivi/loopscribe/pkg/capture"
	"github.com/haivivi/loopscribe/pkg/metrics"
)

// Options configures a Worker.
type Options struct {
	// SilenceThreshold defaults to DefaultSilenceThreshold.
	SilenceThreshold float32

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Metrics is optional.
	Metrics *metrics.Metrics
}

// Worker serializes transcription against one engine.
type Worker struct {
	loader Loader
	model  string
	opts   Options
	log    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	initOnce sync.Once
	initDone chan struct{}
	engine   Engine
	initErr  error

	reportOnce sync.Once

	reqs      chan *request
	closeOnce sync.Once
	closed    chan struct{}
	wg        sync.WaitGroup
}

type request struct {
	ctx     context.Context
	samples []float32
	reply   chan string
}

// NewWorker creates a worker for model. Nothing is loaded until Init or
// the first Transcribe.
func NewWorker(loader Loader, model string, opts Options) *Worker {
	if opts.SilenceThreshold <= 0 {
		opts.SilenceThreshold = DefaultSilenceThreshold
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		loader:   loader,
		model:    model,
		opts:     opts,
		log:      log.With("model", model),
		ctx:      ctx,
		cancel:   cancel,
		initDone: make(chan struct{}),
		reqs:     make(chan *request),
		closed:   make(chan struct{}),
	}
}

// Model returns the model identifier.
func (w *Worker) Model() string {
	return w.model
}

// start launches initialization once. Loading is bound to the worker
// lifetime, not to the caller that happened to trigger it.
func (w *Worker) start() {
	w.initOnce.Do(func() {
		go w.init()
	})
}

func (w *Worker) init() {
	defer close(w.initDone)
	if !w.loader.Materialized(w.model) {
		w.initErr = fmt.Errorf("%w: %s is not downloaded", ErrModelUnavailable, w.model)
		return
	}
	begin := time.Now()
	e, err := w.loader.Load(w.ctx, w.model)
	if err != nil {
		w.initErr = fmt.Errorf("%w: %w", ErrModelUnavailable, err)
		return
	}
	select {
	case <-w.closed:
		e.Close()
		w.initErr = ErrClosed
		return
	default:
	}
	w.engine = e
	w.wg.Add(1)
	go w.serve()
	w.log.Info("transcription model loaded", "elapsed", time.Since(begin))
}

// Init starts loading the model and waits for it, bounded by ctx.
func (w *Worker) Init(ctx context.Context) error {
	w.start()
	select {
	case <-w.initDone:
		return w.initErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) reportUnavailable() {
	w.reportOnce.Do(func() {
		w.log.Error("transcription model unavailable, transcripts will be empty", "error", w.initErr)
		w.opts.Metrics.RecordModelUnavailable()
	})
}

// Transcribe returns the transcript of c. Empty, silent and failed chunks
// yield an empty transcript with a nil error; only ctx cancellation and
// ErrClosed are returned.
func (w *Worker) Transcribe(ctx context.Context, c *capture.Chunk) (Transcript, error) {
	t := Transcript{Seq: c.Seq, Start: c.Start}
	select {
	case <-w.closed:
		return t, ErrClosed
	default:
	}
	w.opts.Metrics.RecordTranscriptionRequest()

	w.start()
	select {
	case <-w.initDone:
	case <-ctx.Done():
		return t, ctx.Err()
	case <-w.closed:
		return t, ErrClosed
	}
	if w.initErr != nil {
		if errors.Is(w.initErr, ErrClosed) {
			return t, ErrClosed
		}
		w.reportUnavailable()
		return t, nil
	}

	samples, err := resampler.Resample(c.Data, c.Format)
	if err != nil {
		w.log.Warn("resample failed", "seq", c.Seq, "error", err)
		w.opts.Metrics.RecordTranscriptionFailure(0)
		return t, nil
	}
	if len(samples) == 0 || resampler.Peak(samples) <= w.opts.SilenceThreshold {
		w.log.Debug("silent chunk skipped", "seq", c.Seq, "samples", len(samples))
		w.opts.Metrics.RecordSilentChunk()
		return t, nil
	}

	req := &request{ctx: ctx, samples: samples, reply: make(chan string, 1)}
	select {
	case w.reqs <- req:
	case <-ctx.Done():
		return t, ctx.Err()
	case <-w.closed:
		return t, ErrClosed
	}
	select {
	case t.Text = <-req.reply:
		return t, nil
	case <-ctx.Done():
		return t, ctx.Err()
	}
}

// serve owns the engine. Requests are handled one at a time in the order
// they were sent.
func (w *Worker) serve() {
	defer w.wg.Done()
	for {
		select {
		case req := <-w.reqs:
			req.reply <- w.infer(req)
		case <-w.closed:
			return
		}
	}
}

func (w *Worker) infer(req *request) (text string) {
	begin := time.Now()
	defer func() {
		if r := recover(); r != nil {
			w.fail(begin, fmt.Errorf("%w: panic: %v", ErrTranscription, r))
			text = ""
		}
	}()
	if err := req.ctx.Err(); err != nil {
		return ""
	}
	out, err := w.engine.Transcribe(req.ctx, req.samples)
	if err != nil {
		w.fail(begin, fmt.Errorf("%w: %w", ErrTranscription, err))
		return ""
	}
	w.opts.Metrics.RecordTranscriptionSuccess(time.Since(begin).Seconds())
	return strings.TrimSpace(out)
}

func (w *Worker) fail(begin time.Time, err error) {
	w.log.Error("transcription failed", "error", err)
	w.opts.Metrics.RecordTranscriptionFailure(time.Since(begin).Seconds())
}

// Close waits for the inference in flight, then releases the engine.
// Requests not yet accepted fail with ErrClosed.
func (w *Worker) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.closed)
		w.cancel()
		w.initOnce.Do(func() {
			w.initErr = ErrClosed
			close(w.initDone)
		})
		<-w.initDone
		w.wg.Wait()
		if w.engine != nil {
			err = w.engine.Close()
		}
	})
	return err
}
