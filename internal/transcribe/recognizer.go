// Package transcribe converts uploaded learner audio into text.
package transcribe

import (
	"context"

	"github.com/profailabs/prof-core/internal/config"
)

// Result captures recognizer output.
type Result struct {
	Text       string
	Confidence float64
}

// Recognizer abstracts speech-to-text backends.
type Recognizer interface {
	Transcribe(ctx context.Context, pcm []byte, sampleRate int, channels int) (Result, error)
}

// NewRecognizer constructs the backend selected by configuration.
func NewRecognizer(cfg config.STTConfig) (Recognizer, error) {
	switch cfg.Mode {
	case "exec":
		return NewExecRecognizer(cfg)
	default:
		return NewMockRecognizer(), nil
	}
}
