package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"

	"newslingo/internal/models"
	"newslingo/internal/storage"
	"newslingo/internal/translator"
)

// ErrRunInProgress is returned when a fetch or backfill run is requested
// while another run holds the coordinator.
var ErrRunInProgress = errors.New("fetch run already in progress")

// FeedParser abstracts gofeed for testing.
type FeedParser interface {
	ParseURLWithContext(url string, ctx context.Context) (*gofeed.Feed, error)
}

var _ FeedParser = (*gofeed.Parser)(nil)

// Options tunes a coordinator run.
type Options struct {
	Feeds []string
	// Entry fan-out for runs without translation. Translation-enabled runs
	// are always serial so the provider pacing gate stays meaningful.
	FetchConcurrency int
	ItemDelay        time.Duration
	FeedDelay        time.Duration
	// Minimum age of the last translation attempt before backfill retries
	// an article/language pair.
	BackfillCooldown time.Duration
}

// Coordinator drives full fetch runs over the configured feeds and backfill
// runs over articles missing a translation. At most one run is in flight at
// any time; concurrent triggers get ErrRunInProgress immediately.
type Coordinator struct {
	store      storage.Storage
	parser     FeedParser
	pipeline   *Pipeline
	translator translator.Translator
	service    string
	opts       Options

	mu         sync.Mutex
	inProgress bool
}

func NewCoordinator(store storage.Storage, parser FeedParser, pipeline *Pipeline, trans translator.Translator, service string, opts Options) *Coordinator {
	if opts.FetchConcurrency < 1 {
		opts.FetchConcurrency = 1
	}
	if opts.BackfillCooldown <= 0 {
		opts.BackfillCooldown = time.Hour
	}
	return &Coordinator{
		store:      store,
		parser:     parser,
		pipeline:   pipeline,
		translator: trans,
		service:    service,
		opts:       opts,
	}
}

// InProgress reports whether a run currently holds the coordinator.
func (c *Coordinator) InProgress() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inProgress
}

func (c *Coordinator) begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inProgress {
		return ErrRunInProgress
	}
	c.inProgress = true
	return nil
}

func (c *Coordinator) end() {
	c.mu.Lock()
	c.inProgress = false
	c.mu.Unlock()
}

// FetchAll visits every configured feed once and runs each entry through the
// pipeline. With skipTranslation set (or no translator configured) entries
// fan out up to FetchConcurrency; otherwise they are processed one at a time
// with ItemDelay between them.
func (c *Coordinator) FetchAll(ctx context.Context, skipTranslation bool) (*models.RunResult, error) {
	if err := c.begin(); err != nil {
		return nil, err
	}
	defer c.end()

	translate := !skipTranslation && c.translator != nil

	result := &models.RunResult{StartedAt: time.Now()}
	defer func() {
		result.Duration = time.Since(result.StartedAt)
	}()

	log.Printf("Starting fetch run over %d feeds (translate=%v)", len(c.opts.Feeds), translate)

	for i, feedURL := range c.opts.Feeds {
		if i > 0 && c.opts.FeedDelay > 0 {
			select {
			case <-time.After(c.opts.FeedDelay):
			case <-ctx.Done():
				return result, ctx.Err()
			}
		}

		feed, err := c.parser.ParseURLWithContext(feedURL, ctx)
		if err != nil {
			log.Printf("Failed to fetch feed %s: %v", feedURL, err)
			result.FailedFeeds = append(result.FailedFeeds, feedURL)
			continue
		}

		source := feed.Title
		if source == "" {
			source = feedURL
		}

		if translate {
			err = c.processSerial(ctx, feed.Items, source, result)
		} else {
			err = c.processConcurrent(ctx, feed.Items, source, result)
		}
		if err != nil {
			return result, err
		}
	}

	log.Printf("Fetch run complete: %d new, %d skipped, %d translation failures, %d failed feeds",
		result.NewArticles, result.Skipped, result.TranslationFailures, len(result.FailedFeeds))
	return result, nil
}

func (c *Coordinator) processSerial(ctx context.Context, items []*gofeed.Item, source string, result *models.RunResult) error {
	for i, item := range items {
		if i > 0 && c.opts.ItemDelay > 0 {
			select {
			case <-time.After(c.opts.ItemDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		result.Processed++
		outcome, err := c.pipeline.ProcessEntry(ctx, item, source, true)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("Failed to process entry %s: %v", item.Link, err)
			continue
		}
		tally(result, outcome)
	}
	return nil
}

func (c *Coordinator) processConcurrent(ctx context.Context, items []*gofeed.Item, source string, result *models.RunResult) error {
	sem := make(chan struct{}, c.opts.FetchConcurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, item := range items {
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(item *gofeed.Item) {
			defer wg.Done()
			defer func() { <-sem }()

			outcome, err := c.pipeline.ProcessEntry(ctx, item, source, false)

			mu.Lock()
			defer mu.Unlock()
			result.Processed++
			if err != nil {
				if ctx.Err() == nil {
					log.Printf("Failed to process entry %s: %v", item.Link, err)
				}
				return
			}
			tally(result, outcome)
		}(item)
	}

	wg.Wait()
	return ctx.Err()
}

func tally(result *models.RunResult, outcome EntryOutcome) {
	if outcome.Inserted {
		result.NewArticles++
	}
	if outcome.Skipped {
		result.Skipped++
	}
	if outcome.TranslationFailed {
		result.TranslationFailures++
	}
}

// TranslateMissing walks the target languages in priority order and fills in
// translations for stored articles that are missing one. Articles with a
// recent attempt (successful or not) are left alone until the cool-down
// passes, so a broken provider does not cause a retry storm.
func (c *Coordinator) TranslateMissing(ctx context.Context, limit int) (*models.BackfillResult, error) {
	if c.translator == nil {
		return nil, fmt.Errorf("translation is not configured")
	}
	if err := c.begin(); err != nil {
		return nil, err
	}
	defer c.end()

	result := &models.BackfillResult{}
	cutoff := time.Now().Add(-c.opts.BackfillCooldown)

	for _, language := range models.TargetLanguages() {
		// limit caps the whole run, not each language.
		remaining := 0
		if limit > 0 {
			remaining = limit - result.Processed
			if remaining <= 0 {
				break
			}
		}

		pending, err := c.store.FetchPendingTranslation(ctx, language, remaining)
		if err != nil {
			return result, err
		}

		for _, article := range pending {
			if limit > 0 && result.Processed >= limit {
				break
			}
			recent, err := c.store.HasRecentTranslationAttempt(ctx, article.Link, language, cutoff)
			if err != nil {
				return result, err
			}
			if recent {
				continue
			}

			if result.Processed > 0 && c.opts.ItemDelay > 0 {
				select {
				case <-time.After(c.opts.ItemDelay):
				case <-ctx.Done():
					return result, ctx.Err()
				}
			}
			result.Processed++

			translation, err := c.translator.Translate(ctx, article.OriginalTitle, article.OriginalSummary)
			if err != nil {
				return result, err
			}

			if translation.Status != models.TranslationCompleted {
				result.Failed++
				c.recordBackfillFailure(ctx, article.Link, language)
				continue
			}

			title, summary := translation.FieldsFor(language)
			updated, err := c.store.UpdateTranslation(ctx, article.Link, language, title, summary, c.service)
			if err != nil {
				return result, err
			}
			if updated {
				result.Successful++
			}
		}
	}

	log.Printf("Backfill complete: %d processed, %d successful, %d failed",
		result.Processed, result.Successful, result.Failed)
	return result, nil
}

func (c *Coordinator) recordBackfillFailure(ctx context.Context, link, language string) {
	entry := &models.TranslationLog{
		ArticleLink:     link,
		TargetLanguage:  language,
		TranslationType: "title",
		Service:         c.service,
		Success:         false,
		ErrorMessage:    "translation failed after retries",
	}
	if err := c.store.AppendTranslationLog(ctx, entry); err != nil {
		log.Printf("Failed to record backfill failure for %s: %v", link, err)
	}
}
