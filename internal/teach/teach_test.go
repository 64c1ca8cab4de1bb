package teach

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/profailabs/prof-core/internal/config"
	"github.com/profailabs/prof-core/internal/course"
	"github.com/profailabs/prof-core/internal/llm"
)

type stubGenerator struct {
	lesson string
	err    error
}

func (g *stubGenerator) Generate(ctx context.Context, req llm.Request, consumer func(llm.Chunk) error) error {
	if g.err != nil {
		return g.err
	}
	return consumer(llm.Chunk{Content: g.lesson})
}

func newTestService(gen llm.Generator) *Service {
	return NewService(config.Default().Chat, gen, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

var (
	testModule   = &course.Module{Title: "Cells", SubTopics: []course.SubTopic{{Title: "Cell structure"}}}
	testSubTopic = &course.SubTopic{Title: "Cell structure", Content: "Cells are the basic unit of life."}
)

func TestGenerateUsesModelOutput(t *testing.T) {
	s := newTestService(&stubGenerator{lesson: "Today we explore the living cell"})

	lesson := s.Generate(context.Background(), testModule, testSubTopic, "en-IN")
	if !strings.HasPrefix(lesson, "Today we explore") {
		t.Fatalf("unexpected lesson %q", lesson)
	}
	if !strings.HasSuffix(lesson, ".") {
		t.Fatalf("lesson should end on a sentence boundary, got %q", lesson)
	}
}

func TestGenerateStripsMarkdown(t *testing.T) {
	s := newTestService(&stubGenerator{lesson: "**Welcome!** Let us begin."})

	lesson := s.Generate(context.Background(), testModule, testSubTopic, "en-IN")
	if strings.Contains(lesson, "*") {
		t.Fatalf("markdown should be stripped, got %q", lesson)
	}
}

func TestGenerateTurnsParagraphBreaksIntoPauses(t *testing.T) {
	s := newTestService(&stubGenerator{lesson: "First idea.\n\nSecond idea."})

	lesson := s.Generate(context.Background(), testModule, testSubTopic, "en-IN")
	if lesson != "First idea. ... Second idea." {
		t.Fatalf("expected spoken pause between paragraphs, got %q", lesson)
	}
}

func TestGenerateFallsBackOnModelError(t *testing.T) {
	s := newTestService(&stubGenerator{err: errors.New("model down")})

	lesson := s.Generate(context.Background(), testModule, testSubTopic, "en-IN")
	want := "Welcome to the lesson on Cell structure. Cells are the basic unit of life."
	if lesson != want {
		t.Fatalf("expected fallback lesson %q, got %q", want, lesson)
	}
}

func TestGenerateFallsBackOnEmptyOutput(t *testing.T) {
	s := newTestService(&stubGenerator{lesson: "   "})

	lesson := s.Generate(context.Background(), testModule, testSubTopic, "en-IN")
	if !strings.HasPrefix(lesson, "Welcome to the lesson on Cell structure.") {
		t.Fatalf("expected fallback lesson, got %q", lesson)
	}
}

func TestFallbackTruncatesLongMaterial(t *testing.T) {
	sub := &course.SubTopic{Title: "DNA", Content: strings.Repeat("x", 800)}

	lesson := Fallback(sub)
	if !strings.HasSuffix(lesson, "...") {
		t.Fatalf("long material should be truncated with ellipsis, got tail %q", lesson[len(lesson)-10:])
	}
	if len(lesson) > len("Welcome to the lesson on DNA. ")+503 {
		t.Fatalf("fallback too long: %d chars", len(lesson))
	}
}

func TestFallbackWithoutMaterial(t *testing.T) {
	sub := &course.SubTopic{Title: "DNA"}
	if got := Fallback(sub); got != "Welcome to the lesson on DNA." {
		t.Fatalf("unexpected fallback %q", got)
	}
}
