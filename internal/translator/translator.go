package translator

import (
	"context"

	"newslingo/internal/models"
)

// Translator produces a three-way translation of an article's title and
// summary. Implementations must always return a structured result: provider
// failures surface as a result with the failed status, never as an error.
// A non-nil error is reserved for context cancellation.
type Translator interface {
	Translate(ctx context.Context, title, summary string) (*models.TranslationResult, error)
}
