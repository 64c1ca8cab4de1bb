package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/profailabs/prof-core/internal/config"
	"github.com/profailabs/prof-core/internal/llm"
)

type recordingGenerator struct {
	lastReq llm.Request
	answer  string
	err     error
}

func (g *recordingGenerator) Generate(ctx context.Context, req llm.Request, consumer func(llm.Chunk) error) error {
	g.lastReq = req
	if g.err != nil {
		return g.err
	}
	return consumer(llm.Chunk{Content: g.answer})
}

type failingTranslator struct{}

func (failingTranslator) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	return "", errors.New("translator offline")
}

type prefixTranslator struct{}

func (prefixTranslator) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	return "translated: " + text, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAskEnglishSkipsTranslation(t *testing.T) {
	gen := &recordingGenerator{answer: "Photosynthesis converts light into energy."}
	s := NewService(config.Default().Chat, gen, prefixTranslator{}, discardLogger())

	ans, err := s.Ask(context.Background(), "What is photosynthesis?", "en-IN")
	if err != nil {
		t.Fatal(err)
	}
	if ans.Answer != "Photosynthesis converts light into energy." {
		t.Fatalf("unexpected answer %q", ans.Answer)
	}
	if strings.Contains(gen.lastReq.Prompt, "translated:") {
		t.Fatal("english queries must not pass through the translator")
	}
}

func TestAskNonEnglishBridgesQuery(t *testing.T) {
	gen := &recordingGenerator{answer: "ok"}
	s := NewService(config.Default().Chat, gen, prefixTranslator{}, discardLogger())

	if _, err := s.Ask(context.Background(), "प्रकाश संश्लेषण क्या है?", "hi-IN"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(gen.lastReq.Prompt, "translated:") {
		t.Fatalf("expected translated query in prompt, got %q", gen.lastReq.Prompt)
	}
	if !strings.Contains(gen.lastReq.Prompt, "Respond in Hindi.") {
		t.Fatalf("expected response language instruction, got %q", gen.lastReq.Prompt)
	}
}

func TestAskTranslatorFailureFallsBack(t *testing.T) {
	gen := &recordingGenerator{answer: "ok"}
	s := NewService(config.Default().Chat, gen, failingTranslator{}, discardLogger())

	if _, err := s.Ask(context.Background(), "original query", "hi-IN"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(gen.lastReq.Prompt, "original query") {
		t.Fatalf("expected untranslated query in prompt, got %q", gen.lastReq.Prompt)
	}
}

func TestAskRejectsEmptyQuery(t *testing.T) {
	s := NewService(config.Default().Chat, &recordingGenerator{}, prefixTranslator{}, discardLogger())
	if _, err := s.Ask(context.Background(), "   ", "en-IN"); err == nil {
		t.Fatal("expected error for blank query")
	}
}

func TestAskGeneratorErrorSurfaces(t *testing.T) {
	gen := &recordingGenerator{err: errors.New("model down")}
	s := NewService(config.Default().Chat, gen, prefixTranslator{}, discardLogger())
	if _, err := s.Ask(context.Background(), "anything", "en-IN"); err == nil {
		t.Fatal("expected generation error to surface")
	}
}
