package translate

import "context"

type mockTranslator struct{}

func NewMockTranslator() Translator { return &mockTranslator{} }

// Translate echoes the input unchanged. The mock keeps the pipeline
// exercisable without a model attached.
func (m *mockTranslator) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	return text, nil
}
