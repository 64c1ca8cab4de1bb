package runtime

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/profailabs/prof-core/internal/course"
	"github.com/profailabs/prof-core/internal/transcribe"
)

// mountAPI attaches the REST surface. Endpoints for disabled features
// respond with 503 rather than disappearing from the mux.
func (r *Runtime) mountAPI(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", r.handleHealthReport)
	mux.HandleFunc("GET /api/courses", r.handleListCourses)
	mux.HandleFunc("GET /api/course/{id}", r.handleGetCourse)
	mux.HandleFunc("POST /api/chat", r.handleChat)
	mux.HandleFunc("POST /api/transcribe", r.handleTranscribe)
	mux.HandleFunc("GET /api/session/{id}/events", r.handleSessionEvents)
}

func (r *Runtime) handleHealthReport(w http.ResponseWriter, _ *http.Request) {
	caps := r.capabilities()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"runtime":   r.cfg.RuntimeName,
		"timestamp": time.Now().UTC(),
		"capabilities": map[string]bool{
			"chat":     caps.Chat,
			"teaching": caps.Teaching,
			"audio":    caps.Audio,
		},
	})
}

type courseSummary struct {
	CourseID    string `json:"course_id"`
	Title       string `json:"course_title"`
	ModuleCount int    `json:"module_count"`
}

func (r *Runtime) handleListCourses(w http.ResponseWriter, _ *http.Request) {
	if r.courses == nil {
		writeError(w, http.StatusServiceUnavailable, "course catalog is not loaded")
		return
	}
	courses := r.courses.Courses()
	summaries := make([]courseSummary, 0, len(courses))
	for _, c := range courses {
		summaries = append(summaries, courseSummary{
			CourseID:    c.CourseID,
			Title:       c.Title,
			ModuleCount: len(c.Modules),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"courses": summaries})
}

func (r *Runtime) handleGetCourse(w http.ResponseWriter, req *http.Request) {
	if r.courses == nil {
		writeError(w, http.StatusServiceUnavailable, "course catalog is not loaded")
		return
	}
	c, err := r.courses.Course(req.PathValue("id"))
	if err != nil {
		if errors.Is(err, course.ErrCourseNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type chatRequest struct {
	Message  string `json:"message"`
	Language string `json:"language,omitempty"`
}

func (r *Runtime) handleChat(w http.ResponseWriter, req *http.Request) {
	if r.chat == nil {
		writeError(w, http.StatusServiceUnavailable, "chat is not enabled")
		return
	}
	var body chatRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if body.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	answer, err := r.chat.Ask(req.Context(), body.Message, body.Language)
	if err != nil {
		r.logger.Warn("chat request failed", slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, "could not answer the question")
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

// handleTranscribe accepts a WAV upload either as multipart form field
// "file" or as the raw request body.
func (r *Runtime) handleTranscribe(w http.ResponseWriter, req *http.Request) {
	if r.recognizer == nil {
		writeError(w, http.StatusServiceUnavailable, "transcription is not enabled")
		return
	}

	var payload []byte
	if file, _, err := req.FormFile("file"); err == nil {
		defer file.Close()
		payload, err = io.ReadAll(io.LimitReader(file, 32<<20))
		if err != nil {
			writeError(w, http.StatusBadRequest, "read upload: "+err.Error())
			return
		}
	} else {
		body, err := io.ReadAll(io.LimitReader(req.Body, 32<<20))
		if err != nil {
			writeError(w, http.StatusBadRequest, "read body: "+err.Error())
			return
		}
		payload = body
	}

	pcm, sampleRate, channels, err := transcribe.DecodeWAV(bytes.NewReader(payload))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := r.recognizer.Transcribe(req.Context(), pcm, sampleRate, channels)
	if err != nil {
		r.logger.Warn("transcription failed", slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, "transcription failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"text":       result.Text,
		"confidence": result.Confidence,
	})
}

func (r *Runtime) handleSessionEvents(w http.ResponseWriter, req *http.Request) {
	if r.events == nil {
		writeError(w, http.StatusServiceUnavailable, "event store is not enabled")
		return
	}
	events, err := r.events.ListSessionEvents(req.Context(), req.PathValue("id"), 500)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	type timelineEntry struct {
		Type      string          `json:"type"`
		Payload   json.RawMessage `json:"payload,omitempty"`
		CreatedAt time.Time       `json:"created_at"`
	}
	timeline := make([]timelineEntry, 0, len(events))
	for _, e := range events {
		timeline = append(timeline, timelineEntry{
			Type:      e.Type,
			Payload:   json.RawMessage(e.Payload),
			CreatedAt: e.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": timeline})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
