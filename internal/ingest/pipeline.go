package ingest

import (
	"context"
	"log"
	"strings"

	"github.com/mmcdole/gofeed"

	"newslingo/internal/content"
	"newslingo/internal/keylock"
	"newslingo/internal/models"
	"newslingo/internal/storage"
	"newslingo/internal/timefmt"
	"newslingo/internal/translator"
)

// Publisher announces a newly stored article to downstream consumers.
type Publisher interface {
	PublishArticle(ctx context.Context, article *models.Article) error
}

// EntryOutcome reports what happened to a single feed entry.
type EntryOutcome struct {
	Inserted          bool
	Skipped           bool
	TranslationFailed bool
}

// Pipeline processes one feed entry end to end: extract, clean, normalize,
// dedup, translate, insert. The per-link lock keeps concurrent entries for
// the same link from translating twice; InsertIfAbsent remains the one
// authoritative dedup gate underneath it.
type Pipeline struct {
	store      storage.Storage
	locks      *keylock.Registry
	translator translator.Translator
	service    string
	publisher  Publisher
}

func NewPipeline(store storage.Storage, locks *keylock.Registry, trans translator.Translator, service string, publisher Publisher) *Pipeline {
	return &Pipeline{
		store:      store,
		locks:      locks,
		translator: trans,
		service:    service,
		publisher:  publisher,
	}
}

// ProcessEntry runs the per-entry state machine. A non-nil error means the
// store or the context failed; everything else (duplicates, empty entries,
// translation failures) is reported through the outcome.
func (p *Pipeline) ProcessEntry(ctx context.Context, item *gofeed.Item, feedSource string, translate bool) (EntryOutcome, error) {
	link := strings.TrimSpace(item.Link)
	if link == "" {
		log.Printf("Skipping entry without link from %s (%q)", feedSource, item.Title)
		return EntryOutcome{Skipped: true}, nil
	}

	article := &models.Article{
		Link:            link,
		OriginalTitle:   strings.TrimSpace(item.Title),
		OriginalSummary: content.Clean(entryBody(item)),
		FeedSource:      feedSource,
	}

	article.Published = timefmt.Normalize(item.PublishedParsed, item.Published)
	if article.Published == "" && item.Published != "" {
		log.Printf("Could not normalize published time %q for %s, keeping raw value", item.Published, link)
		article.Published = item.Published
	}

	// Cheap pre-check before taking the lock.
	exists, err := p.store.Exists(ctx, link)
	if err != nil {
		return EntryOutcome{}, err
	}
	if exists {
		return EntryOutcome{Skipped: true}, nil
	}

	p.locks.Acquire(link)
	defer p.locks.Release(link)

	// Another holder may have inserted while we waited.
	exists, err = p.store.Exists(ctx, link)
	if err != nil {
		return EntryOutcome{}, err
	}
	if exists {
		return EntryOutcome{Skipped: true}, nil
	}

	var result *models.TranslationResult
	if translate && p.translator != nil {
		result, err = p.translator.Translate(ctx, article.OriginalTitle, article.OriginalSummary)
		if err != nil {
			return EntryOutcome{}, err
		}
		if result.Status == models.TranslationCompleted {
			applyTranslation(article, result)
		} else {
			log.Printf("Translation failed for %s, storing without enrichment", link)
		}
	}

	// Last look before committing a potentially expensive translation.
	exists, err = p.store.Exists(ctx, link)
	if err != nil {
		return EntryOutcome{}, err
	}
	if exists {
		return EntryOutcome{Skipped: true}, nil
	}

	inserted, err := p.store.InsertIfAbsent(ctx, article)
	if err != nil {
		return EntryOutcome{}, err
	}
	if !inserted {
		return EntryOutcome{Skipped: true}, nil
	}

	outcome := EntryOutcome{Inserted: true}

	if result != nil && result.Status == models.TranslationFailed {
		outcome.TranslationFailed = true
		entry := &models.TranslationLog{
			ArticleLink:     link,
			TargetLanguage:  "all",
			TranslationType: "title",
			Service:         p.service,
			Success:         false,
			ErrorMessage:    "translation failed after retries",
		}
		if err := p.store.AppendTranslationLog(ctx, entry); err != nil {
			log.Printf("Failed to record translation failure for %s: %v", link, err)
		}
	}

	if p.publisher != nil {
		if err := p.publisher.PublishArticle(ctx, article); err != nil {
			log.Printf("Failed to publish article %s: %v", link, err)
		}
	}

	return outcome, nil
}

// applyTranslation fills the enrichment columns for every target language
// except the detected original, whose column stays empty. That empty column
// later identifies the source language without storing it separately.
func applyTranslation(article *models.Article, result *models.TranslationResult) {
	for _, lang := range models.TargetLanguages() {
		if lang == result.OriginalLanguage {
			continue
		}
		title, summary := result.FieldsFor(lang)
		setTranslation(article, lang, title, summary)
	}
}

func setTranslation(article *models.Article, language, title, summary string) {
	switch language {
	case models.LangZhTW:
		article.TitleZhTW = &title
		article.SummaryZhTW = &summary
	case models.LangZhCN:
		article.TitleZhCN = &title
		article.SummaryZhCN = &summary
	case models.LangEN:
		article.TitleEN = &title
		article.SummaryEN = &summary
	}
}

// entryBody picks the richest text an entry carries. Most feeds put the
// lead into Description; some only fill Content.
func entryBody(item *gofeed.Item) string {
	if strings.TrimSpace(item.Description) != "" {
		return item.Description
	}
	return item.Content
}
