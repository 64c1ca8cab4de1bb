// Package chat answers learner questions through a language model,
// bridging non-English queries through translation on the way in and
// asking the model to respond in the learner's language on the way out.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/profailabs/prof-core/internal/config"
	"github.com/profailabs/prof-core/internal/llm"
	"github.com/profailabs/prof-core/internal/translate"
)

// Answer is the assembled response to one learner query.
type Answer struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources,omitempty"`
}

// Provider answers a query in the requested language.
type Provider interface {
	Ask(ctx context.Context, query, language string) (Answer, error)
}

const systemPrompt = `You are Professor AI, a patient and encouraging tutor.
Answer the student's question clearly and concisely. Prefer short
spoken-friendly sentences over lists and markdown. If you do not know
the answer, say so honestly.`

// languageNames maps the locale codes accepted over the wire to the
// names used when prompting the model.
var languageNames = map[string]string{
	"en-IN": "English",
	"hi-IN": "Hindi",
	"bn-IN": "Bengali",
	"ta-IN": "Tamil",
	"te-IN": "Telugu",
	"kn-IN": "Kannada",
	"ml-IN": "Malayalam",
	"mr-IN": "Marathi",
	"gu-IN": "Gujarati",
	"pa-IN": "Punjabi",
}

// LanguageName resolves a locale code to its prompt-facing name.
func LanguageName(code string) (string, bool) {
	name, ok := languageNames[code]
	return name, ok
}

type Service struct {
	cfg        config.ChatConfig
	generator  llm.Generator
	translator translate.Translator
	logger     *slog.Logger
}

func NewService(cfg config.ChatConfig, generator llm.Generator, translator translate.Translator, logger *slog.Logger) *Service {
	return &Service{
		cfg:        cfg,
		generator:  generator,
		translator: translator,
		logger:     logger.With(slog.String("component", "chat")),
	}
}

// Ask answers query in language. Translation faults never surface: a
// failed bridge falls back to the untranslated query so the learner
// still gets an answer.
func (s *Service) Ask(ctx context.Context, query, language string) (Answer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Answer{}, fmt.Errorf("empty query")
	}

	modelQuery := query
	if language != "" && language != "en-IN" {
		translated, err := s.translator.Translate(ctx, query, language, "en-IN")
		if err != nil {
			s.logger.Warn("query translation failed, using original",
				slog.String("language", language),
				slog.String("error", err.Error()))
		} else if strings.TrimSpace(translated) != "" {
			modelQuery = translated
		}
	}

	req := llm.RequestFromConfig(s.cfg)
	req.System = systemPrompt
	req.Prompt = s.buildPrompt(modelQuery, language)

	start := time.Now()
	var response strings.Builder
	err := s.generator.Generate(ctx, req, func(chunk llm.Chunk) error {
		response.WriteString(chunk.Content)
		return nil
	})
	if err != nil {
		return Answer{}, fmt.Errorf("generate answer: %w", err)
	}
	s.logger.Info("chat answer generated",
		slog.Int("query_length", len(query)),
		slog.Duration("latency", time.Since(start)))

	answer := strings.TrimSpace(response.String())
	if answer == "" {
		return Answer{}, fmt.Errorf("model returned empty answer")
	}
	return Answer{Answer: answer}, nil
}

func (s *Service) buildPrompt(query, language string) string {
	name, ok := LanguageName(language)
	if !ok || name == "English" {
		return query
	}
	return fmt.Sprintf("%s\n\nRespond in %s.", query, name)
}
