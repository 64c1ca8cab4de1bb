package synth

import (
	"context"
	"time"
)

type mockSynth struct {
	delay time.Duration
}

// NewMockSynth returns a synthesizer producing deterministic fake audio
// proportional to the input length. Used in development and tests.
func NewMockSynth(delay time.Duration) Synthesizer {
	return &mockSynth{delay: delay}
}

func (m *mockSynth) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	if m.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.delay):
		}
	}
	audio := make([]byte, len(req.Text))
	for i := range audio {
		audio[i] = byte(i % 251)
	}
	return audio, nil
}

func (m *mockSynth) SynthesizeStream(ctx context.Context, req Request) (<-chan []byte, <-chan error) {
	frames := make(chan []byte, 2)
	errs := make(chan error, 1)
	go func() {
		defer close(frames)
		defer close(errs)
		audio, err := m.Synthesize(ctx, req)
		if err != nil {
			errs <- err
			return
		}
		half := len(audio) / 2
		if half > 0 {
			frames <- audio[:half]
		}
		if len(audio[half:]) > 0 {
			frames <- audio[half:]
		}
	}()
	return frames, errs
}
