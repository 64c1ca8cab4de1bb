// Package runtime assembles the tutoring services and serves them over
// HTTP and WebSocket until the process is told to stop.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/profailabs/prof-core/internal/bus"
	"github.com/profailabs/prof-core/internal/capability"
	"github.com/profailabs/prof-core/internal/chat"
	"github.com/profailabs/prof-core/internal/config"
	"github.com/profailabs/prof-core/internal/course"
	"github.com/profailabs/prof-core/internal/eventstore"
	"github.com/profailabs/prof-core/internal/llm"
	"github.com/profailabs/prof-core/internal/natsserver"
	"github.com/profailabs/prof-core/internal/protocol"
	"github.com/profailabs/prof-core/internal/scheduler"
	"github.com/profailabs/prof-core/internal/session"
	"github.com/profailabs/prof-core/internal/synth"
	"github.com/profailabs/prof-core/internal/teach"
	"github.com/profailabs/prof-core/internal/transcribe"
	"github.com/profailabs/prof-core/internal/translate"
)

type Runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	httpServer  *http.Server
	tracerClose func(context.Context) error
	ready       atomic.Bool
	wg          sync.WaitGroup

	courses    *course.Store
	chat       chat.Provider
	teach      *teach.Service
	scheduler  *scheduler.Scheduler
	recognizer transcribe.Recognizer
	events     *eventstore.Store
	bus        *bus.Client
	embedded   *natsserver.EmbeddedServer
	announcer  *capability.Announcer
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricsHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	if err := r.buildServices(ctx); err != nil {
		return err
	}
	defer r.closeServices()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)
	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}
	r.mountAPI(mux)
	r.mountSessions(mux)

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	r.ready.Store(true)
	r.logger.Info("runtime started", slog.String("addr", addr))

	<-ctx.Done()
	r.logger.Info("runtime stopping")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	r.wg.Wait()

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}

// buildServices constructs every enabled collaborator. Order matters:
// the bus comes up before anything that publishes to it, and the
// course store before anything that teaches from it.
func (r *Runtime) buildServices(ctx context.Context) error {
	if r.cfg.Bus.Enabled {
		embedded, err := natsserver.Start(r.cfg.Bus, r.logger)
		if err != nil {
			return fmt.Errorf("start embedded bus: %w", err)
		}
		r.embedded = embedded

		client, err := bus.Connect(ctx, r.cfg.Bus, r.logger)
		if err != nil {
			return fmt.Errorf("connect bus: %w", err)
		}
		r.bus = client
	}

	events, err := eventstore.Open(ctx, r.cfg.EventStore, r.logger)
	if err != nil {
		return fmt.Errorf("open event store: %w", err)
	}
	r.events = events

	r.courses = course.NewStore(r.cfg.Course.Path)
	if err := r.courses.Load(); err != nil {
		// A missing catalog disables teaching but the runtime still
		// serves chat and audio.
		r.logger.Warn("course catalog unavailable", slog.String("error", err.Error()))
		r.courses = nil
	}

	if r.cfg.Chat.Enabled {
		generator, err := llm.NewGenerator(r.cfg.Chat)
		if err != nil {
			return fmt.Errorf("build llm generator: %w", err)
		}

		var translator translate.Translator = translate.NewMockTranslator()
		if r.cfg.Translate.Enabled {
			translator, err = translate.NewTranslator(r.cfg.Translate)
			if err != nil {
				return fmt.Errorf("build translator: %w", err)
			}
		}
		r.chat = chat.NewService(r.cfg.Chat, generator, translator, r.logger)

		if r.cfg.Teaching.Enabled {
			r.teach = teach.NewService(r.cfg.Chat, generator, r.logger)
		}
	}

	if r.cfg.Synthesis.Enabled {
		synthesizer, err := synth.NewSynthesizer(r.cfg.Synthesis)
		if err != nil {
			return fmt.Errorf("build synthesizer: %w", err)
		}
		r.scheduler = scheduler.New(r.cfg.Synthesis, synthesizer, r.logger)
	}

	if r.cfg.STT.Enabled {
		recognizer, err := transcribe.NewRecognizer(r.cfg.STT)
		if err != nil {
			return fmt.Errorf("build recognizer: %w", err)
		}
		r.recognizer = recognizer
	}

	if r.bus != nil {
		r.announcer = capability.NewAnnouncer(ctx, r.cfg.RuntimeName, r.capabilities(), r.bus, r.logger)
	}

	return nil
}

func (r *Runtime) closeServices() {
	if r.announcer != nil {
		r.announcer.Close()
	}
	if r.events != nil {
		if err := r.events.Close(); err != nil {
			r.logger.Warn("event store close failed", slog.String("error", err.Error()))
		}
	}
	if r.bus != nil {
		r.bus.Close()
	}
	if r.embedded != nil {
		r.embedded.Shutdown()
	}
}

func (r *Runtime) capabilities() protocol.Capabilities {
	return protocol.Capabilities{
		Chat:     r.chat != nil,
		Teaching: r.courses != nil && r.cfg.Teaching.Enabled,
		Audio:    r.scheduler != nil,
	}
}

func (r *Runtime) mountSessions(mux *http.ServeMux) {
	deps := session.Deps{
		Chat:      r.chat,
		Teach:     r.teach,
		Courses:   r.courses,
		Scheduler: r.scheduler,
		Events:    r.events,
		Bus:       r.bus,
		Announcer: r.announcer,
		Logger:    r.logger,
	}
	caps := r.capabilities()
	mux.Handle("/ws/voice-tutor", session.NewHandler(deps, caps))
	mux.Handle("/ws/test", session.NewTestHandler(deps, caps))
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}
