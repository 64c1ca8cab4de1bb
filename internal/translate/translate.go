// Package translate converts learner queries and lesson text between
// languages. Backends follow the same pluggable shape as the other
// model-facing packages.
package translate

import (
	"context"

	"github.com/profailabs/prof-core/internal/config"
)

// Translator converts text from one language code to another.
type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

// NewTranslator constructs the backend selected by configuration.
func NewTranslator(cfg config.TranslateConfig) (Translator, error) {
	switch cfg.Mode {
	case "exec":
		return NewExecTranslator(cfg.Command)
	default:
		return NewMockTranslator(), nil
	}
}
