package scheduler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/profailabs/prof-core/internal/config"
	"github.com/profailabs/prof-core/internal/synth"
)

// stubSynth echoes each request's text back as audio bytes, recording
// every call. Texts found in fail are rejected with an error.
type stubSynth struct {
	mu    sync.Mutex
	calls []synth.Request
	fail  map[string]bool
	delay time.Duration
}

func (s *stubSynth) Synthesize(ctx context.Context, req synth.Request) ([]byte, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	fail := s.fail[req.Text]
	s.mu.Unlock()
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if fail {
		return nil, errors.New("synthesis unavailable")
	}
	return []byte(req.Text), nil
}

func (s *stubSynth) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *stubSynth) lastCall() synth.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[len(s.calls)-1]
}

func newTestScheduler(t *testing.T, stub *stubSynth) *Scheduler {
	t.Helper()
	cfg := config.Default().Synthesis
	return New(cfg, stub, slog.New(slog.NewTextHandler(testWriter{t}, nil)))
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimSpace(string(p)))
	return len(p), nil
}

func sentences(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "Sentence number %04d carries enough words to take up meaningful space in the input. ", i)
	}
	return strings.TrimSpace(b.String())
}

func TestSynthesizeShortUsesSingleCall(t *testing.T) {
	stub := &stubSynth{}
	s := newTestScheduler(t, stub)

	audio := s.Synthesize(context.Background(), "Hello there, how are you today?", "")
	if len(audio) == 0 {
		t.Fatal("expected audio output")
	}
	if got := stub.callCount(); got != 1 {
		t.Fatalf("expected 1 synthesis call, got %d", got)
	}
	if lang := stub.lastCall().Language; lang != "en-IN" {
		t.Fatalf("expected default language en-IN, got %q", lang)
	}
	if voice := stub.lastCall().Voice; voice != "anushka" {
		t.Fatalf("expected default voice, got %q", voice)
	}
}

func TestSynthesizeMediumRunsParallelChunks(t *testing.T) {
	stub := &stubSynth{}
	s := newTestScheduler(t, stub)

	text := sentences(50) // ~4400 chars, lands in the medium tier
	audio := s.Synthesize(context.Background(), text, "hi-IN")

	if got := stub.callCount(); got < 2 {
		t.Fatalf("expected multiple chunk calls, got %d", got)
	}
	// Echo synthesis means the concatenated audio must reproduce the
	// cleaned text in order.
	if !bytes.Contains(audio, []byte("Sentence number 0000")) {
		t.Fatal("missing first chunk content")
	}
	first := bytes.Index(audio, []byte("Sentence number 0000"))
	last := bytes.Index(audio, []byte("Sentence number 0049"))
	if last < first {
		t.Fatal("chunks reassembled out of order")
	}
	if lang := stub.lastCall().Language; lang != "hi-IN" {
		t.Fatalf("expected requested language, got %q", lang)
	}
}

func TestSynthesizeSkipsFailedChunk(t *testing.T) {
	stub := &stubSynth{fail: map[string]bool{}}
	s := newTestScheduler(t, stub)

	text := sentences(50)
	// First pass to learn the chunk texts.
	s.Synthesize(context.Background(), text, "")
	for _, call := range stub.calls {
		if strings.Contains(call.Text, "Sentence number 0020") {
			stub.fail[call.Text] = true
		}
	}
	stub.calls = nil

	audio := s.Synthesize(context.Background(), text, "")
	if len(audio) == 0 {
		t.Fatal("expected partial audio despite one failed chunk")
	}
	if bytes.Contains(audio, []byte("Sentence number 0020")) {
		t.Fatal("failed chunk should contribute no audio")
	}
	if !bytes.Contains(audio, []byte("Sentence number 0049")) {
		t.Fatal("chunks after the failure must still be present")
	}
}

func TestSynthesizeAllChunksFailingYieldsEmpty(t *testing.T) {
	stub := &stubSynth{fail: map[string]bool{}}
	s := newTestScheduler(t, stub)

	text := "This will not work."
	stub.fail[text] = true
	if audio := s.Synthesize(context.Background(), text, ""); len(audio) != 0 {
		t.Fatalf("expected empty audio, got %d bytes", len(audio))
	}
}

func TestPlanSelectsModeByLength(t *testing.T) {
	s := newTestScheduler(t, &stubSynth{})

	if job := s.Plan("short text.", ""); job.Mode != ModeSingle {
		t.Fatalf("short input: expected single mode, got %v", job.Mode)
	}

	medium := s.Plan(sentences(50), "")
	if medium.Mode != ModeParallelBatch || medium.ChunkSize != 2000 {
		t.Fatalf("medium input: expected parallel batch with small chunks, got mode %v size %d", medium.Mode, medium.ChunkSize)
	}

	long := s.Plan(sentences(90), "")
	if long.Mode != ModeParallelBatch || long.ChunkSize != 2500 {
		t.Fatalf("long input: expected parallel batch with large chunks, got mode %v size %d", long.Mode, long.ChunkSize)
	}
}

func TestPlanEnforcesHardCeiling(t *testing.T) {
	s := newTestScheduler(t, &stubSynth{})

	job := s.Plan(sentences(120), "")
	if len(job.Text) > 8000 {
		t.Fatalf("planned text exceeds hard ceiling: %d chars", len(job.Text))
	}
	if !strings.HasSuffix(job.Text, ".") {
		t.Fatal("truncated text should end with a period")
	}
}

func TestSynthesizeUltraFastTruncatesAndCallsOnce(t *testing.T) {
	stub := &stubSynth{}
	s := newTestScheduler(t, stub)

	text := sentences(60) // well past the ultra-fast ceiling
	audio := s.SynthesizeUltraFast(context.Background(), text, "")
	if len(audio) == 0 {
		t.Fatal("expected audio output")
	}
	if got := stub.callCount(); got != 1 {
		t.Fatalf("ultra-fast must make exactly one call, got %d", got)
	}
	if sent := len(stub.lastCall().Text); sent > 2801 {
		t.Fatalf("ultra-fast input not truncated: %d chars", sent)
	}
}

func TestSynthesizeUltraFastTruncatesOnRuneBoundary(t *testing.T) {
	stub := &stubSynth{}
	s := newTestScheduler(t, stub)

	// Devanagari text past the ceiling. Every rune is three bytes, so a
	// byte-offset cut would leave a split character at the end.
	text := strings.Repeat("यह एक लंबा पाठ है जो सीमा से आगे जाता है। ", 80)
	audio := s.SynthesizeUltraFast(context.Background(), text, "hi-IN")
	if len(audio) == 0 {
		t.Fatal("expected audio output")
	}
	sent := stub.lastCall().Text
	if !utf8.ValidString(sent) {
		t.Fatalf("truncation produced invalid UTF-8: %q", sent[len(sent)-12:])
	}
	if len(sent) > 2801 {
		t.Fatalf("ultra-fast input not truncated: %d bytes", len(sent))
	}
}

func TestSynthesizeUltraFastKeepsEllipses(t *testing.T) {
	stub := &stubSynth{}
	s := newTestScheduler(t, stub)

	s.SynthesizeUltraFast(context.Background(), "Wait... *really*?", "")
	sent := stub.lastCall().Text
	if !strings.Contains(sent, "...") {
		t.Fatalf("minimal cleaning should keep ellipses, sent %q", sent)
	}
	if strings.Contains(sent, "*") {
		t.Fatalf("minimal cleaning should strip markdown, sent %q", sent)
	}
}

func TestStreamDeliversFirstChunkFirst(t *testing.T) {
	stub := &stubSynth{delay: 5 * time.Millisecond}
	s := newTestScheduler(t, stub)

	text := sentences(40) // several streaming chunks at 1500 chars
	var got [][]byte
	for audio := range s.Stream(context.Background(), text, "") {
		got = append(got, audio)
	}
	if len(got) < 2 {
		t.Fatalf("expected multiple streamed chunks, got %d", len(got))
	}
	// The first delivery is always the opening sentences, regardless of
	// how fast later chunks complete.
	if !bytes.Contains(got[0], []byte("Sentence number 0000")) {
		t.Fatalf("first streamed chunk should open the text, got %q", got[0][:40])
	}
}

func TestStreamEmptyInputClosesImmediately(t *testing.T) {
	s := newTestScheduler(t, &stubSynth{})

	ch := s.Stream(context.Background(), "   ", "")
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected no chunks for blank input")
		}
	case <-time.After(time.Second):
		t.Fatal("stream channel never closed")
	}
}
