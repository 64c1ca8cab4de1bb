// Package protocol defines the JSON messages exchanged with tutoring
// clients over the WebSocket session, plus the bus subjects session
// events are mirrored to.
package protocol

import (
	"fmt"
	"time"
)

// Inbound message types.
const (
	TypePing          = "ping"
	TypeEcho          = "echo"
	TypeChatWithAudio = "chat_with_audio"
	TypeStartClass    = "start_class"
	TypeAudioOnly     = "audio_only"
)

// Outbound event types.
const (
	EventConnectionReady     = "connection_ready"
	EventPong                = "pong"
	EventEcho                = "echo"
	EventProcessingStarted   = "processing_started"
	EventTextResponse        = "text_response"
	EventAudioStreamStart    = "audio_stream_start"
	EventAudioChunk          = "audio_chunk"
	EventAudioStreamComplete = "audio_stream_complete"
	EventClassStarting       = "class_starting"
	EventCourseInfo          = "course_info"
	EventTeachingContent     = "teaching_content"
	EventClassComplete       = "class_complete"
	EventError               = "error"
)

// Envelope carries just the discriminator so the session loop can
// decode the rest per type.
type Envelope struct {
	Type string `json:"type"`
}

// ChatWithAudio asks a question and requests a spoken answer.
type ChatWithAudio struct {
	Message  string `json:"message"`
	Language string `json:"language,omitempty"`
}

// StartClass begins a teaching session for one lesson.
type StartClass struct {
	CourseID      string `json:"course_id"`
	ModuleIndex   int    `json:"module_index"`
	SubTopicIndex int    `json:"sub_topic_index"`
	Language      string `json:"language,omitempty"`
}

// AudioOnly synthesizes caller-supplied text with no model involved.
type AudioOnly struct {
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
}

// EchoRequest is the connectivity-test message.
type EchoRequest struct {
	Message string `json:"message,omitempty"`
}

// Capabilities advertises which features this runtime has enabled.
type Capabilities struct {
	Chat     bool `json:"chat"`
	Teaching bool `json:"teaching"`
	Audio    bool `json:"audio"`
}

type ConnectionReady struct {
	Type         string       `json:"type"`
	SessionID    string       `json:"session_id"`
	Capabilities Capabilities `json:"capabilities"`
	Timestamp    time.Time    `json:"timestamp"`
}

type Pong struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

type Echo struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type ProcessingStarted struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

type TextResponse struct {
	Type     string         `json:"type"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type AudioStreamStart struct {
	Type string `json:"type"`
}

// AudioChunk carries one base64-coded audio payload. ChunkID numbers
// chunks from 1 in delivery order.
type AudioChunk struct {
	Type      string `json:"type"`
	ChunkID   int    `json:"chunk_id"`
	AudioData []byte `json:"audio_data"`
	Size      int    `json:"size"`
}

type AudioStreamComplete struct {
	Type        string `json:"type"`
	TotalChunks int    `json:"total_chunks"`
}

type ClassStarting struct {
	Type          string `json:"type"`
	CourseID      string `json:"course_id"`
	ModuleIndex   int    `json:"module_index"`
	SubTopicIndex int    `json:"sub_topic_index"`
}

type CourseInfo struct {
	Type          string `json:"type"`
	ModuleTitle   string `json:"module_title"`
	SubTopicTitle string `json:"sub_topic_title"`
}

type TeachingContent struct {
	Type          string `json:"type"`
	Content       string `json:"content"`
	ContentLength int    `json:"content_length"`
}

type ClassComplete struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"error"`
}

// Bus subjects. Session events are mirrored per session so other
// services can observe tutoring progress.
const (
	SubjectSessionEventPrefix = "session.events"
	SubjectCapability         = "capability.announce"
)

// SessionEventSubject returns the mirror subject for one session.
func SessionEventSubject(sessionID string) string {
	return fmt.Sprintf("%s.%s", SubjectSessionEventPrefix, sessionID)
}
