// Package session multiplexes chat, teaching, and audio delivery over
// a single WebSocket connection per client. Messages are dispatched
// one at a time in arrival order, so every client sees a strictly
// ordered event stream.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/profailabs/prof-core/internal/bus"
	"github.com/profailabs/prof-core/internal/capability"
	"github.com/profailabs/prof-core/internal/chat"
	"github.com/profailabs/prof-core/internal/course"
	"github.com/profailabs/prof-core/internal/eventstore"
	"github.com/profailabs/prof-core/internal/protocol"
	"github.com/profailabs/prof-core/internal/scheduler"
	"github.com/profailabs/prof-core/internal/teach"
)

// Deps collects the collaborators a session can reach. Disabled
// features leave their field nil; the handler degrades per message
// rather than refusing the connection.
type Deps struct {
	Chat      chat.Provider
	Teach     *teach.Service
	Courses   *course.Store
	Scheduler *scheduler.Scheduler
	Events    *eventstore.Store
	Bus       *bus.Client
	Announcer *capability.Announcer
	Logger    *slog.Logger
}

// Handler upgrades HTTP requests into tutoring sessions.
type Handler struct {
	deps       Deps
	caps       protocol.Capabilities
	endpoint   string
	restricted bool
	upgrader   websocket.Upgrader
	logger     *slog.Logger
}

// NewHandler serves the full tutoring protocol.
func NewHandler(deps Deps, caps protocol.Capabilities) *Handler {
	return newHandler(deps, caps, "/ws/voice-tutor", false)
}

// NewTestHandler serves the connectivity-test endpoint: ping and echo
// only, everything else is rejected without closing the connection.
func NewTestHandler(deps Deps, caps protocol.Capabilities) *Handler {
	return newHandler(deps, caps, "/ws/test", true)
}

func newHandler(deps Deps, caps protocol.Capabilities, endpoint string, restricted bool) *Handler {
	return &Handler{
		deps:       deps,
		caps:       caps,
		endpoint:   endpoint,
		restricted: restricted,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: deps.Logger.With(
			slog.String("component", "session"),
			slog.String("endpoint", endpoint)),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	sessionID := uuid.NewString()
	s := &session{
		id:      sessionID,
		conn:    conn,
		handler: h,
		logger:  h.logger.With(slog.String("session_id", sessionID)),
	}
	s.run(r.Context())
}

type session struct {
	id      string
	conn    *websocket.Conn
	handler *Handler
	logger  *slog.Logger
}

func (s *session) run(ctx context.Context) {
	defer s.conn.Close()

	h := s.handler
	if h.deps.Announcer != nil {
		h.deps.Announcer.SessionOpened()
		defer h.deps.Announcer.SessionClosed()
	}
	if h.deps.Events != nil {
		if err := h.deps.Events.AppendSession(ctx, s.id, h.endpoint, ""); err != nil {
			s.logger.Warn("failed to record session", slog.String("error", err.Error()))
		}
	}
	s.logger.Info("session opened")

	s.send(ctx, protocol.EventConnectionReady, protocol.ConnectionReady{
		Type:         protocol.EventConnectionReady,
		SessionID:    s.id,
		Capabilities: h.caps,
		Timestamp:    time.Now().UTC(),
	})

	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("session closed unexpectedly", slog.String("error", err.Error()))
			} else {
				s.logger.Info("session closed")
			}
			return
		}
		if msgType != websocket.TextMessage {
			s.sendError(ctx, "binary messages are not supported")
			continue
		}
		s.dispatch(ctx, data)
	}
}

// dispatch routes one inbound message. Malformed or unknown messages
// produce an error event and leave the connection open.
func (s *session) dispatch(ctx context.Context, data []byte) {
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.sendError(ctx, "invalid message: "+err.Error())
		return
	}

	switch env.Type {
	case protocol.TypePing:
		s.send(ctx, protocol.EventPong, protocol.Pong{Type: protocol.EventPong, Timestamp: time.Now().UTC()})
	case protocol.TypeEcho:
		var req protocol.EchoRequest
		if err := json.Unmarshal(data, &req); err != nil {
			s.sendError(ctx, "invalid echo message: "+err.Error())
			return
		}
		s.send(ctx, protocol.EventEcho, protocol.Echo{Type: protocol.EventEcho, Message: req.Message})
	case protocol.TypeChatWithAudio:
		if s.rejectRestricted(ctx, env.Type) {
			return
		}
		s.handleChatWithAudio(ctx, data)
	case protocol.TypeStartClass:
		if s.rejectRestricted(ctx, env.Type) {
			return
		}
		s.handleStartClass(ctx, data)
	case protocol.TypeAudioOnly:
		if s.rejectRestricted(ctx, env.Type) {
			return
		}
		s.handleAudioOnly(ctx, data)
	case "":
		s.sendError(ctx, "message has no type")
	default:
		s.sendError(ctx, fmt.Sprintf("unknown message type %q", env.Type))
	}
}

func (s *session) rejectRestricted(ctx context.Context, msgType string) bool {
	if !s.handler.restricted {
		return false
	}
	s.sendError(ctx, fmt.Sprintf("message type %q is not available on the test endpoint", msgType))
	return true
}

func (s *session) handleChatWithAudio(ctx context.Context, data []byte) {
	h := s.handler
	var req protocol.ChatWithAudio
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendError(ctx, "invalid chat message: "+err.Error())
		return
	}
	if req.Message == "" {
		s.sendError(ctx, "chat message is empty")
		return
	}
	if h.deps.Chat == nil {
		s.sendError(ctx, "chat is not enabled")
		return
	}

	s.send(ctx, protocol.EventProcessingStarted, protocol.ProcessingStarted{
		Type:    protocol.EventProcessingStarted,
		Message: "thinking about your question",
	})

	answer, err := h.deps.Chat.Ask(ctx, req.Message, req.Language)
	if err != nil {
		s.logger.Warn("chat failed", slog.String("error", err.Error()))
		s.sendError(ctx, "could not answer your question, please try again")
		return
	}

	s.send(ctx, protocol.EventTextResponse, protocol.TextResponse{
		Type: protocol.EventTextResponse,
		Text: answer.Answer,
		Metadata: map[string]any{
			"language": s.effectiveLanguage(req.Language),
			"sources":  answer.Sources,
		},
	})

	s.streamSpeech(ctx, answer.Answer, req.Language)
}

func (s *session) handleStartClass(ctx context.Context, data []byte) {
	h := s.handler
	var req protocol.StartClass
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendError(ctx, "invalid start_class message: "+err.Error())
		return
	}
	if h.deps.Courses == nil {
		s.sendError(ctx, "teaching is not enabled")
		return
	}

	s.send(ctx, protocol.EventClassStarting, protocol.ClassStarting{
		Type:          protocol.EventClassStarting,
		CourseID:      req.CourseID,
		ModuleIndex:   req.ModuleIndex,
		SubTopicIndex: req.SubTopicIndex,
	})

	mod, sub, err := h.deps.Courses.Lookup(req.CourseID, req.ModuleIndex, req.SubTopicIndex)
	if err != nil {
		s.logger.Warn("lesson lookup failed",
			slog.String("course_id", req.CourseID),
			slog.Int("module_index", req.ModuleIndex),
			slog.Int("sub_topic_index", req.SubTopicIndex),
			slog.String("error", err.Error()))
		s.sendError(ctx, "lesson not found: "+err.Error())
		return
	}

	s.send(ctx, protocol.EventCourseInfo, protocol.CourseInfo{
		Type:          protocol.EventCourseInfo,
		ModuleTitle:   mod.Title,
		SubTopicTitle: sub.Title,
	})

	var lesson string
	if h.deps.Teach != nil {
		lesson = h.deps.Teach.Generate(ctx, mod, sub, req.Language)
	} else {
		lesson = teach.Fallback(sub)
	}

	s.send(ctx, protocol.EventTeachingContent, protocol.TeachingContent{
		Type:          protocol.EventTeachingContent,
		Content:       lesson,
		ContentLength: len(lesson),
	})

	if !s.streamSpeech(ctx, lesson, req.Language) {
		return
	}

	s.send(ctx, protocol.EventClassComplete, protocol.ClassComplete{
		Type:    protocol.EventClassComplete,
		Message: "lesson finished, ask me anything",
	})
}

func (s *session) handleAudioOnly(ctx context.Context, data []byte) {
	var req protocol.AudioOnly
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendError(ctx, "invalid audio_only message: "+err.Error())
		return
	}
	if req.Text == "" {
		s.sendError(ctx, "audio_only text is empty")
		return
	}
	if s.handler.deps.Scheduler == nil {
		s.sendError(ctx, "audio is not enabled")
		return
	}
	s.streamSpeech(ctx, req.Text, req.Language)
}

// streamSpeech synthesizes text on the low-latency path and delivers
// the result as one framed audio stream. The stream is announced
// before synthesis starts; an empty result becomes an error event and
// a false return so callers can withhold their completion event.
func (s *session) streamSpeech(ctx context.Context, text, language string) bool {
	h := s.handler
	if h.deps.Scheduler == nil {
		return true
	}

	s.send(ctx, protocol.EventAudioStreamStart, protocol.AudioStreamStart{Type: protocol.EventAudioStreamStart})

	audio := h.deps.Scheduler.SynthesizeUltraFast(ctx, text, language)
	if len(audio) == 0 {
		s.logger.Warn("synthesis produced no audio", slog.Int("text_length", len(text)))
		s.sendError(ctx, "failed to generate audio - empty result")
		return false
	}

	s.send(ctx, protocol.EventAudioChunk, protocol.AudioChunk{
		Type:      protocol.EventAudioChunk,
		ChunkID:   1,
		AudioData: audio,
		Size:      len(audio),
	})
	s.send(ctx, protocol.EventAudioStreamComplete, protocol.AudioStreamComplete{
		Type:        protocol.EventAudioStreamComplete,
		TotalChunks: 1,
	})
	return true
}

func (s *session) sendError(ctx context.Context, message string) {
	s.send(ctx, protocol.EventError, protocol.ErrorEvent{Type: protocol.EventError, Message: message})
}

// send writes one event to the client, then records it on the timeline
// and mirrors it to the bus. Recording failures never break delivery.
func (s *session) send(ctx context.Context, eventType string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("failed to encode event", slog.String("event", eventType), slog.String("error", err.Error()))
		return
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.logger.Warn("failed to write event", slog.String("event", eventType), slog.String("error", err.Error()))
		return
	}
	s.record(ctx, eventType, data)
}

func (s *session) record(ctx context.Context, eventType string, data []byte) {
	h := s.handler

	payload := data
	if eventType == protocol.EventAudioChunk {
		// Audio payloads stay out of the timeline; keep the shape only.
		var chunk protocol.AudioChunk
		if err := json.Unmarshal(data, &chunk); err == nil {
			payload, _ = json.Marshal(map[string]any{"chunk_id": chunk.ChunkID, "size": chunk.Size})
		}
	}

	if h.deps.Events != nil {
		err := h.deps.Events.AppendEvent(ctx, eventstore.Event{
			SessionID: s.id,
			Type:      eventType,
			Payload:   payload,
		})
		if err != nil {
			s.logger.Warn("failed to record event", slog.String("event", eventType), slog.String("error", err.Error()))
		}
	}
	if h.deps.Bus != nil {
		if err := h.deps.Bus.PublishJSON(protocol.SessionEventSubject(s.id), json.RawMessage(payload)); err != nil {
			s.logger.Warn("failed to mirror event", slog.String("event", eventType), slog.String("error", err.Error()))
		}
	}
}

func (s *session) effectiveLanguage(language string) string {
	if language == "" {
		return "en-IN"
	}
	return language
}
