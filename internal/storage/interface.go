package storage

import (
	"context"
	"time"

	"newslingo/internal/models"
)

// LogFilter narrows translation-log queries. Zero values mean "no filter".
type LogFilter struct {
	ArticleLink    string
	TargetLanguage string
	Since          time.Time
	Limit          int
}

// Storage defines the persistence operations of the ingestion pipeline.
//
// InsertIfAbsent is the sole authoritative dedup gate: Exists is an
// optimistic pre-check and may race with concurrent writers.
type Storage interface {
	Exists(ctx context.Context, link string) (bool, error)
	InsertIfAbsent(ctx context.Context, article *models.Article) (bool, error)
	GetArticle(ctx context.Context, link string) (*models.Article, error)
	ListArticles(ctx context.Context, limit int) ([]models.Article, error)

	FetchPendingTranslation(ctx context.Context, language string, limit int) ([]models.Article, error)
	UpdateTranslation(ctx context.Context, link, language, title, summary, service string) (bool, error)

	AppendTranslationLog(ctx context.Context, entry *models.TranslationLog) error
	TranslationLogs(ctx context.Context, filter LogFilter) ([]models.TranslationLog, error)
	HasRecentTranslationAttempt(ctx context.Context, link, language string, since time.Time) (bool, error)

	TranslationStats(ctx context.Context) (*models.TranslationStats, error)
	LinkIntegrity(ctx context.Context) (*models.IntegrityReport, error)

	Close() error
}
