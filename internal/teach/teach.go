// Package teach produces spoken lesson narrations from course material.
// Generation never fails outward: when the model is unavailable the
// lesson falls back to a template built from the raw material.
package teach

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/profailabs/prof-core/internal/chat"
	"github.com/profailabs/prof-core/internal/config"
	"github.com/profailabs/prof-core/internal/course"
	"github.com/profailabs/prof-core/internal/llm"
	"github.com/profailabs/prof-core/internal/textseg"
)

const teacherPrompt = `You are Professor AI delivering a spoken lesson.
Teach the topic below in a warm, conversational voice. Use plain
sentences suitable for text-to-speech: no markdown, no bullet points,
no headings. Open by welcoming the student to the lesson and close by
inviting questions.`

type Service struct {
	cfg       config.ChatConfig
	generator llm.Generator
	logger    *slog.Logger
}

func NewService(cfg config.ChatConfig, generator llm.Generator, logger *slog.Logger) *Service {
	return &Service{
		cfg:       cfg,
		generator: generator,
		logger:    logger.With(slog.String("component", "teach")),
	}
}

// Generate narrates one sub-topic in the requested language. Model
// failures degrade to the fallback template rather than erroring.
func (s *Service) Generate(ctx context.Context, mod *course.Module, sub *course.SubTopic, language string) string {
	req := llm.RequestFromConfig(s.cfg)
	req.System = teacherPrompt
	req.Prompt = buildLessonPrompt(mod, sub, language)

	start := time.Now()
	var content strings.Builder
	err := s.generator.Generate(ctx, req, func(chunk llm.Chunk) error {
		content.WriteString(chunk.Content)
		return nil
	})
	lesson := strings.TrimSpace(content.String())
	if err != nil || lesson == "" {
		if err != nil {
			s.logger.Warn("lesson generation failed, using fallback",
				slog.String("sub_topic", sub.Title),
				slog.String("error", err.Error()))
		}
		return Fallback(sub)
	}
	s.logger.Info("lesson generated",
		slog.String("sub_topic", sub.Title),
		slog.Int("length", len(lesson)),
		slog.Duration("latency", time.Since(start)))
	return polish(lesson)
}

func buildLessonPrompt(mod *course.Module, sub *course.SubTopic, language string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Module: %s\nTopic: %s\n", mod.Title, sub.Title)
	if sub.Content != "" {
		fmt.Fprintf(&b, "\nReference material:\n%s\n", sub.Content)
	}
	if name, ok := chat.LanguageName(language); ok && name != "English" {
		fmt.Fprintf(&b, "\nDeliver the lesson in %s.", name)
	}
	return b.String()
}

// Fallback is the lesson used when no model output is available: a
// welcome line followed by the opening of the raw material.
func Fallback(sub *course.SubTopic) string {
	lesson := "Welcome to the lesson on " + sub.Title + "."
	raw := strings.TrimSpace(sub.Content)
	if raw == "" {
		return lesson
	}
	if len(raw) > 500 {
		raw = raw[:500] + "..."
	}
	return lesson + " " + raw
}

// polish prepares the narration for speech: paragraph breaks become
// spoken pauses, markdown remnants the model may emit despite the
// prompt are stripped, and the text ends on a sentence boundary.
func polish(lesson string) string {
	lesson = strings.ReplaceAll(lesson, "\n\n", " ... ")
	lesson = textseg.CleanMinimal(lesson)
	if lesson == "" {
		return lesson
	}
	if !strings.ContainsAny(lesson[len(lesson)-1:], ".!?") {
		lesson += "."
	}
	return lesson
}
