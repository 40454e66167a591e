package language

import (
	"github.com/pemistahl/lingua-go"

	"newslingo/internal/models"
)

// Detector labels stored articles with the language they were originally
// written in. Detection is advisory presentation metadata; it never feeds
// back into translation or storage decisions.
type Detector struct {
	detector lingua.LanguageDetector
}

func NewDetector() *Detector {
	// A small distractor set keeps short-headline detection reliable
	// without loading every model lingua ships.
	detector := lingua.NewLanguageDetectorBuilder().
		FromLanguages(
			lingua.English, lingua.Chinese, lingua.Japanese,
			lingua.Korean, lingua.German, lingua.French, lingua.Spanish,
		).
		Build()
	return &Detector{detector: detector}
}

// OriginalLanguage returns the language an article was written in.
//
// Articles translated by the pipeline leave the source language's column
// empty, so a single missing column identifies the original directly.
// Anything else (untranslated or partially translated rows) falls back to
// statistical detection on the original title.
func (d *Detector) OriginalLanguage(article *models.Article) string {
	missing := ""
	count := 0
	if article.TitleZhTW == nil {
		missing = models.LangZhTW
		count++
	}
	if article.TitleZhCN == nil {
		missing = models.LangZhCN
		count++
	}
	if article.TitleEN == nil {
		missing = models.LangEN
		count++
	}
	if count == 1 {
		return missing
	}

	return d.Detect(article.OriginalTitle)
}

// Detect classifies free text into "en", "zh" or "unknown".
func (d *Detector) Detect(text string) string {
	if text == "" {
		return "unknown"
	}

	detected, exists := d.detector.DetectLanguageOf(text)
	if !exists {
		return "unknown"
	}

	switch detected {
	case lingua.English:
		return "en"
	case lingua.Chinese:
		return "zh"
	default:
		return "unknown"
	}
}
