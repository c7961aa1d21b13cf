package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/haivivi/loopscribe/cmd/loopscribe/internal/config"
	"github.com/haivivi/loopscribe/pkg/analysis"
	"github.com/haivivi/loopscribe/pkg/audio/pcm"
	"github.com/haivivi/loopscribe/pkg/audio/portaudio"
	"github.com/haivivi/loopscribe/pkg/capture"
	"github.com/haivivi/loopscribe/pkg/llm"
	"github.com/haivivi/loopscribe/pkg/metrics"
	"github.com/haivivi/loopscribe/pkg/models"
	"github.com/haivivi/loopscribe/pkg/pipeline"
	"github.com/haivivi/loopscribe/pkg/sink"
	"github.com/haivivi/loopscribe/pkg/storage"
	"github.com/haivivi/loopscribe/pkg/transcribe"
)

// drainTimeout bounds how long in-flight chunks may finish after capture
// stops.
const drainTimeout = 2 * time.Minute

var runFlags struct {
	input       string
	speed       float64
	device      string
	period      time.Duration
	format      string
	listen      string
	metricsAddr string
	noTranslate bool
	noAnalyze   bool
	archive     bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Capture, transcribe and analyze system audio",
	Long: `Capture system audio and process it chunk by chunk.

Each chunk is transcribed, translated into llm.target_language and printed
as soon as all earlier chunks have been printed. The transcript together
with the previous ones is then sent to the language model, and questions
not seen before in this session are printed with their answers.

Ctrl-C stops capture and waits for the chunks in flight. A second Ctrl-C
abandons them.

Examples:
  loopscribe run
  loopscribe run --device "BlackHole" --period 15s
  loopscribe run --input talk.wav --speed 1 --format jsonl
  loopscribe run --listen 127.0.0.1:8090   # websocket feed at /live`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runFlags.input, "input", "", "read a WAV file instead of capturing")
	f.Float64Var(&runFlags.speed, "speed", 1, "playback speed for --input (0: as fast as possible)")
	f.StringVar(&runFlags.device, "device", "", "capture device name (substring)")
	f.DurationVar(&runFlags.period, "period", 0, "chunk length (default from config)")
	f.StringVar(&runFlags.format, "format", "", "output format: terminal or jsonl")
	f.StringVar(&runFlags.listen, "listen", "", "serve the websocket live feed on this address")
	f.StringVar(&runFlags.metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	f.BoolVar(&runFlags.noTranslate, "no-translate", false, "skip translation")
	f.BoolVar(&runFlags.noAnalyze, "no-analyze", false, "skip question extraction")
	f.BoolVar(&runFlags.archive, "archive", false, "archive chunk audio")
	rootCmd.AddCommand(runCmd)
}

// applyRunFlags overrides cfg with the flags that were set.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	if f.Changed("device") {
		cfg.Capture.Device = runFlags.device
	}
	if f.Changed("period") {
		cfg.Capture.Period = runFlags.period.String()
	}
	if f.Changed("format") {
		cfg.Present.Format = runFlags.format
	}
	if f.Changed("listen") {
		cfg.Present.ListenAddr = runFlags.listen
	}
	if f.Changed("metrics-addr") {
		cfg.MetricsAddr = runFlags.metricsAddr
	}
	if runFlags.noTranslate {
		cfg.LLM.DisableTranslation = true
	}
	if runFlags.noAnalyze {
		cfg.LLM.DisableAnalysis = true
	}
	if runFlags.archive {
		cfg.Archive.Enabled = true
	}
	return cfg.Validate()
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyRunFlags(cmd, cfg); err != nil {
		return err
	}
	period, _ := cfg.ChunkPeriod()
	stageTimeout, _ := cfg.StageTimeout()
	log := slog.Default()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessionID := uuid.NewString()
	log = log.With("session", sessionID)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Transcription
	worker := transcribe.NewWorker(newLoader(cfg), cfg.Transcription.Model, transcribe.Options{
		SilenceThreshold: cfg.Transcription.SilenceThreshold,
		Logger:           log,
		Metrics:          m,
	})
	defer worker.Close()
	if err := initWorker(ctx, worker, log); err != nil {
		return fmt.Errorf("transcription model %s: %w", cfg.Transcription.Model, err)
	}

	// Translation and analysis
	pcfg := pipeline.Config{
		SessionID:    sessionID,
		Transcriber:  worker,
		Window:       pipeline.NewContextWindow(cfg.ContextSize),
		Logger:       log,
		Metrics:      m,
		StageTimeout: stageTimeout,
	}
	if !cfg.LLM.DisableTranslation || !cfg.LLM.DisableAnalysis {
		client, err := newLLMClient(ctx, cfg)
		switch {
		case err != nil:
			return err
		case client == nil:
			log.Warn("no API key for llm provider, translation and analysis disabled", "provider", cfg.LLM.Provider)
		default:
			if !cfg.LLM.DisableTranslation {
				pcfg.Translator = &analysis.Translator{
					Client:   client,
					Language: cfg.LLM.TargetLanguage,
					Prompt:   cfg.LLM.TranslatePrompt,
				}
			}
			if !cfg.LLM.DisableAnalysis {
				pcfg.Analyzer = &analysis.Analyzer{
					Client:   client,
					Language: cfg.LLM.TargetLanguage,
					Prompt:   cfg.LLM.AnalyzePrompt,
				}
			}
		}
	}

	// Archive
	if cfg.Archive.Enabled {
		store, err := newStore(cfg)
		if err != nil {
			return err
		}
		pcfg.Archiver = &storage.ChunkArchive{Store: store, Prefix: sessionID}
	}

	// Presentation
	var sinks sink.Multi
	switch cfg.Present.Format {
	case config.PresentJSONL:
		sinks = append(sinks, sink.NewJSONLines(cmd.OutOrStdout()))
	default:
		sinks = append(sinks, sink.NewTerminal(cmd.OutOrStdout(), !cfg.Present.NoColor, cfg.Present.Width))
	}
	var hub *sink.WebSocket
	if cfg.Present.ListenAddr != "" {
		hub = sink.NewWebSocket(0, log, m)
		defer hub.Close()
		sinks = append(sinks, hub)
	}
	pcfg.Sink = sinks

	servers := serve(cfg, reg, hub, log)
	defer shutdown(servers, log)

	orch := pipeline.New(pcfg)

	// Capture
	src, err := openSource(cfg)
	if err != nil {
		return err
	}
	session := capture.NewSession(src, orch, capture.Options{Period: period, Logger: log})
	if err := session.Start(ctx); err != nil {
		orch.Close(context.Background())
		return fmt.Errorf("start capture: %w", err)
	}
	log.Info("session started", "period", period, "model", worker.Model())

	select {
	case <-ctx.Done():
		log.Info("stopping")
	case <-session.Done():
	}
	if err := session.Stop(); err != nil {
		log.Warn("stop capture", "error", err)
	}
	captureErr := session.Err()

	// A second interrupt, or the timeout, abandons the chunks in flight.
	stop()
	drainCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	drainCtx, cancelTimeout := context.WithTimeout(drainCtx, drainTimeout)
	defer cancelTimeout()
	if err := orch.Close(drainCtx); err != nil {
		log.Warn("chunks abandoned", "error", err)
	}

	stats := session.Stats()
	log.Info("session finished",
		"chunks", stats.Chunks,
		"frames", stats.Frames,
		"bytes", stats.Bytes,
		"questions", orch.Window().Seen())
	return captureErr
}

// initWorker loads the model up front. A missing model is not fatal: the
// session keeps capturing and archiving while transcripts stay empty.
func initWorker(ctx context.Context, w *transcribe.Worker, log *slog.Logger) error {
	err := w.Init(ctx)
	if errors.Is(err, transcribe.ErrModelUnavailable) {
		log.Warn("continuing without transcription; run 'loopscribe models download' to fetch the model", "error", err)
		return nil
	}
	return err
}

func newLoader(cfg *config.Config) transcribe.Loader {
	t := cfg.Transcription
	if t.Engine == config.EngineOpenAI {
		lang := t.Language
		if lang == "auto" {
			lang = ""
		}
		return &transcribe.RemoteLoader{APIKey: t.APIKey, BaseURL: t.BaseURL, Language: lang}
	}
	return &transcribe.WhisperLoader{
		Models:   &models.Manager{Dir: t.ModelsDir},
		Binary:   t.Binary,
		Language: t.Language,
		Threads:  t.Threads,
	}
}

// newLLMClient returns nil without error when no API key is configured.
func newLLMClient(ctx context.Context, cfg *config.Config) (llm.Client, error) {
	l := cfg.LLM
	if l.APIKey == "" {
		return nil, nil
	}
	var opts []llm.Option
	if l.Model != "" {
		opts = append(opts, llm.WithModel(l.Model))
	}
	if l.BaseURL != "" {
		opts = append(opts, llm.WithBaseURL(l.BaseURL))
	}
	if l.Provider == config.ProviderGemini {
		g, err := llm.NewGemini(ctx, l.APIKey, opts...)
		if err != nil {
			return nil, err
		}
		return g, nil
	}
	return llm.NewOpenAI(l.APIKey, opts...), nil
}

func newStore(cfg *config.Config) (storage.Store, error) {
	if s3 := cfg.Archive.S3; s3 != nil {
		return storage.NewS3(storage.NewS3Client(s3.S3Config), s3.Bucket, s3.Prefix), nil
	}
	return storage.NewLocal(cfg.Archive.Dir)
}

func openSource(cfg *config.Config) (capture.Source, error) {
	if runFlags.input != "" {
		return capture.OpenWAV(runFlags.input, runFlags.speed)
	}
	f := pcm.F32Stereo48K
	if cfg.Capture.SampleRate > 0 {
		f.SampleRate = cfg.Capture.SampleRate
	}
	if cfg.Capture.Channels > 0 {
		f.Channels = cfg.Capture.Channels
	}
	c, err := portaudio.Open(cfg.Capture.Device, f, capture.DefaultFrameDuration)
	if err != nil {
		return nil, err
	}
	slog.Info("capturing", "device", c.Device().Name, "format", c.Format())
	return c, nil
}

// serve starts the metrics and live feed listeners. Both share one server
// when they are configured on the same address.
func serve(cfg *config.Config, reg *prometheus.Registry, hub *sink.WebSocket, log *slog.Logger) []*http.Server {
	muxes := map[string]*http.ServeMux{}
	mux := func(addr string) *http.ServeMux {
		if m, ok := muxes[addr]; ok {
			return m
		}
		m := http.NewServeMux()
		muxes[addr] = m
		return m
	}
	if cfg.MetricsAddr != "" {
		mux(cfg.MetricsAddr).Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}
	if hub != nil {
		mux(cfg.Present.ListenAddr).Handle("/live", hub)
	}

	var servers []*http.Server
	for addr, m := range muxes {
		srv := &http.Server{Addr: addr, Handler: m, ReadHeaderTimeout: 10 * time.Second}
		servers = append(servers, srv)
		go func() {
			log.Info("listening", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("http server", "addr", addr, "error", err)
			}
		}()
	}
	return servers
}

func shutdown(servers []*http.Server, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(ctx); err != nil {
			log.Warn("http shutdown", "addr", srv.Addr, "error", err)
		}
	}
}
