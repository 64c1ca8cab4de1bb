// Package capability advertises which tutoring features this runtime
// has enabled and reports liveness over the bus.
package capability

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/profailabs/prof-core/internal/bus"
	"github.com/profailabs/prof-core/internal/protocol"
)

type announceMessage struct {
	RuntimeID    string                `json:"runtime_id"`
	Capabilities protocol.Capabilities `json:"capabilities"`
	Timestamp    time.Time             `json:"timestamp"`
}

type heartbeatMessage struct {
	RuntimeID string    `json:"runtime_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Announcer publishes the runtime's capability set once on startup and
// heartbeats for as long as the runtime is alive. It also carries the
// active-session gauge the WebSocket handlers report into.
type Announcer struct {
	id        string
	caps      protocol.Capabilities
	bus       *bus.Client
	log       *slog.Logger
	cancel    context.CancelFunc
	heartbeat *time.Ticker
	sessions  atomic.Int64
}

func NewAnnouncer(parent context.Context, runtimeID string, caps protocol.Capabilities, busClient *bus.Client, log *slog.Logger) *Announcer {
	ctx, cancel := context.WithCancel(parent)
	a := &Announcer{
		id:     runtimeID,
		caps:   caps,
		bus:    busClient,
		log:    log.With(slog.String("component", "capability")),
		cancel: cancel,
	}

	if err := a.initMetrics(); err != nil {
		a.log.Warn("failed to initialize metrics", slog.String("error", err.Error()))
	}

	if err := a.announce(); err != nil {
		a.log.Warn("failed to announce capabilities", slog.String("error", err.Error()))
	}

	a.heartbeat = time.NewTicker(5 * time.Second)
	go a.runHeartbeat(ctx)
	return a
}

func (a *Announcer) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.heartbeat != nil {
		a.heartbeat.Stop()
	}
}

// Capabilities returns the advertised feature set.
func (a *Announcer) Capabilities() protocol.Capabilities {
	return a.caps
}

// SessionOpened and SessionClosed maintain the active-session gauge.
func (a *Announcer) SessionOpened() { a.sessions.Add(1) }
func (a *Announcer) SessionClosed() { a.sessions.Add(-1) }

func (a *Announcer) announce() error {
	return a.bus.PublishJSON(protocol.SubjectCapability, announceMessage{
		RuntimeID:    a.id,
		Capabilities: a.caps,
		Timestamp:    time.Now().UTC(),
	})
}

func (a *Announcer) runHeartbeat(ctx context.Context) {
	subject := fmt.Sprintf("capability.heartbeat.%s", a.id)
	for {
		select {
		case <-ctx.Done():
			return
		case <-a.heartbeat.C:
			err := a.bus.PublishJSON(subject, heartbeatMessage{
				RuntimeID: a.id,
				Timestamp: time.Now().UTC(),
			})
			if err != nil {
				a.log.Warn("failed to publish heartbeat", slog.String("error", err.Error()))
			}
		}
	}
}

func (a *Announcer) initMetrics() error {
	meter := otel.Meter("github.com/profailabs/prof-core/runtime")

	sessionGauge, err := meter.Int64ObservableGauge("prof.sessions.active",
		metric.WithDescription("Number of open tutoring sessions"))
	if err != nil {
		return err
	}
	capGauge, err := meter.Int64ObservableGauge("prof.capabilities.enabled",
		metric.WithDescription("Number of enabled tutoring capabilities"))
	if err != nil {
		return err
	}
	_, err = meter.RegisterCallback(func(ctx context.Context, obs metric.Observer) error {
		obs.ObserveInt64(sessionGauge, a.sessions.Load())
		obs.ObserveInt64(capGauge, a.enabledCount())
		return nil
	}, sessionGauge, capGauge)
	return err
}

func (a *Announcer) enabledCount() int64 {
	var n int64
	for _, enabled := range []bool{a.caps.Chat, a.caps.Teaching, a.caps.Audio} {
		if enabled {
			n++
		}
	}
	return n
}
