package synth

import (
	"context"
	"time"

	"github.com/profailabs/prof-core/internal/config"
)

// Request contains parameters to synthesize one chunk of speech.
type Request struct {
	Text     string
	Language string
	Voice    string
}

// Synthesizer converts a single chunk of text into audio bytes. A
// failed or empty synthesis is reported through the error; callers are
// expected to treat it as "this chunk produced zero bytes", never as a
// fatal fault.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) ([]byte, error)
}

// NewSynthesizer constructs the backend selected by configuration.
func NewSynthesizer(cfg config.SynthesisConfig) (Synthesizer, error) {
	switch cfg.Mode {
	case "exec":
		return NewExecSynth(cfg.Command)
	case "sarvam":
		return NewSarvamSynth(cfg.Endpoint)
	default:
		return NewMockSynth(50 * time.Millisecond), nil
	}
}

// StreamingSynthesizer exposes the duplex shape: a per-chunk stream
// whose audio frames arrive as the backend produces them. The error
// channel carries at most one error and both channels are closed when
// the stream ends.
type StreamingSynthesizer interface {
	SynthesizeStream(ctx context.Context, req Request) (<-chan []byte, <-chan error)
}
