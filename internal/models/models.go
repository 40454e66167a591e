package models

import (
	"time"
)

// Target languages for article enrichment.
const (
	LangZhTW = "zh-tw"
	LangZhCN = "zh-cn"
	LangEN   = "en"
)

// TargetLanguages returns the enrichment languages in backfill priority order.
func TargetLanguages() []string {
	return []string{LangZhTW, LangZhCN, LangEN}
}

// Article is the canonical stored entity, keyed by its source link.
// The original fields are immutable after insert; the per-language fields
// start as NULL and are set at most once by translation.
type Article struct {
	Link            string `json:"link"`
	OriginalTitle   string `json:"original_title"`
	OriginalSummary string `json:"original_summary"`
	Published       string `json:"published"`
	FeedSource      string `json:"feed_source"`

	TitleZhTW   *string `json:"title_zh_tw"`
	SummaryZhTW *string `json:"summary_zh_tw"`
	TitleZhCN   *string `json:"title_zh_cn"`
	SummaryZhCN *string `json:"summary_zh_cn"`
	TitleEN     *string `json:"title_en"`
	SummaryEN   *string `json:"summary_en"`
}

// TranslationFor returns the stored title/summary for a target language,
// or nil pointers when that language has not been translated yet.
func (a *Article) TranslationFor(language string) (title, summary *string) {
	switch language {
	case LangZhTW:
		return a.TitleZhTW, a.SummaryZhTW
	case LangZhCN:
		return a.TitleZhCN, a.SummaryZhCN
	case LangEN:
		return a.TitleEN, a.SummaryEN
	}
	return nil, nil
}

// Translation outcome tags. The translator never raises across the pipeline
// boundary; callers branch on the status instead.
const (
	TranslationCompleted = "completed"
	TranslationFailed    = "failed"
)

// TranslationResult is the structured outcome of one provider call.
// On failure the per-language fields carry the original text as fallback.
type TranslationResult struct {
	OriginalLanguage string `json:"original_language"`
	TitleZhTW        string `json:"title_zh_tw"`
	TitleZhCN        string `json:"title_zh_cn"`
	TitleEN          string `json:"title_en"`
	SummaryZhTW      string `json:"content_zh_tw"`
	SummaryZhCN      string `json:"content_zh_cn"`
	SummaryEN        string `json:"content_en"`
	Status           string `json:"translation_status"`
}

// FieldsFor returns the translated title/summary pair for a target language.
func (r *TranslationResult) FieldsFor(language string) (title, summary string) {
	switch language {
	case LangZhTW:
		return r.TitleZhTW, r.SummaryZhTW
	case LangZhCN:
		return r.TitleZhCN, r.SummaryZhCN
	case LangEN:
		return r.TitleEN, r.SummaryEN
	}
	return "", ""
}

// TranslationLog is one append-only audit record for a translation attempt.
type TranslationLog struct {
	ID              int64     `json:"id"`
	ArticleLink     string    `json:"article_link"`
	TargetLanguage  string    `json:"target_language"`
	TranslationType string    `json:"translation_type"`
	TranslatedText  string    `json:"translated_text"`
	Service         string    `json:"service"`
	Success         bool      `json:"success"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// RunResult aggregates the outcome of one pass over all configured feeds.
type RunResult struct {
	NewArticles         int           `json:"new_articles"`
	Processed           int           `json:"processed"`
	Skipped             int           `json:"skipped"`
	TranslationFailures int           `json:"translation_failures"`
	FailedFeeds         []string      `json:"failed_feeds,omitempty"`
	StartedAt           time.Time     `json:"started_at"`
	Duration            time.Duration `json:"duration"`
}

// BackfillResult aggregates one pass of translating articles that are
// missing a target language.
type BackfillResult struct {
	Processed  int `json:"processed"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// TranslationStats summarizes translation coverage across the store.
type TranslationStats struct {
	TotalArticles  int `json:"total_articles"`
	TranslatedZhTW int `json:"translated_zh_tw"`
	TranslatedZhCN int `json:"translated_zh_cn"`
	TranslatedEN   int `json:"translated_en"`
	Untranslated   int `json:"untranslated"`
}

// IntegrityReport is the outcome of the periodic link-integrity sweep.
// The link primary key already enforces uniqueness, so the sweep verifies
// and reports rather than deleting.
type IntegrityReport struct {
	TotalArticles int `json:"total_articles"`
	EmptyLinks    int `json:"empty_links"`
}

// SchedulerStatus describes the scheduler and its background jobs.
type SchedulerStatus struct {
	IsRunning          bool       `json:"is_running"`
	FetchEnabled       bool       `json:"fetch_enabled"`
	TranslationEnabled bool       `json:"translation_enabled"`
	FetchInProgress    bool       `json:"fetch_in_progress"`
	LastFetchTime      *time.Time `json:"last_fetch_time"`
	LastFetchResult    *RunResult `json:"last_fetch_result"`
	NextFetch          *time.Time `json:"next_fetch"`
	NextCleanup        *time.Time `json:"next_cleanup"`
}
