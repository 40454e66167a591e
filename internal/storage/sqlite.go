package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"newslingo/internal/models"
	"newslingo/internal/timefmt"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteTimeLayout = "2006-01-02 15:04:05"

type SQLiteStorage struct {
	db *sql.DB
}

func NewSQLiteStorage(dataDir string) (*SQLiteStorage, error) {
	if err := os.MkdirAll(dataDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %v", err)
	}

	dbPath := filepath.Join(dataDir, "newslingo.db")
	log.Printf("Initializing database at: %s", dbPath)

	// Foreign keys go in the DSN so every pooled connection gets the
	// pragma, including replacements opened after ConnMaxLifetime.
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_synchronous=NORMAL&_busy_timeout=30000&_timeout=30000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %v", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func createTables(db *sql.DB) error {
	articlesTable := `
	CREATE TABLE IF NOT EXISTS articles (
		link TEXT PRIMARY KEY,
		original_title TEXT NOT NULL,
		original_summary TEXT,
		published TEXT,
		feed_source TEXT,
		title_zh_tw TEXT,
		summary_zh_tw TEXT,
		title_zh_cn TEXT,
		summary_zh_cn TEXT,
		title_en TEXT,
		summary_en TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`

	logsTable := `
	CREATE TABLE IF NOT EXISTS translation_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		article_link TEXT NOT NULL,
		target_language TEXT NOT NULL,
		translation_type TEXT NOT NULL,
		translated_text TEXT,
		service TEXT,
		success BOOLEAN DEFAULT TRUE,
		error_message TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (article_link) REFERENCES articles(link) ON DELETE CASCADE
	);`

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_articles_published ON articles(published DESC);",
		"CREATE INDEX IF NOT EXISTS idx_articles_feed_source ON articles(feed_source);",
		"CREATE INDEX IF NOT EXISTS idx_translation_logs_article ON translation_logs(article_link);",
		"CREATE INDEX IF NOT EXISTS idx_translation_logs_language ON translation_logs(target_language);",
		"CREATE INDEX IF NOT EXISTS idx_translation_logs_created_at ON translation_logs(created_at DESC);",
	}

	if _, err := db.Exec(articlesTable); err != nil {
		return fmt.Errorf("failed to create articles table: %v", err)
	}
	if _, err := db.Exec(logsTable); err != nil {
		return fmt.Errorf("failed to create translation_logs table: %v", err)
	}
	for _, index := range indexes {
		if _, err := db.Exec(index); err != nil {
			return fmt.Errorf("failed to create index: %v", err)
		}
	}

	return nil
}

// translationColumns maps a target language to its article columns.
func translationColumns(language string) (titleCol, summaryCol string, err error) {
	switch language {
	case models.LangZhTW:
		return "title_zh_tw", "summary_zh_tw", nil
	case models.LangZhCN:
		return "title_zh_cn", "summary_zh_cn", nil
	case models.LangEN:
		return "title_en", "summary_en", nil
	}
	return "", "", fmt.Errorf("unsupported target language: %s", language)
}

func (s *SQLiteStorage) Exists(ctx context.Context, link string) (bool, error) {
	if strings.TrimSpace(link) == "" {
		return false, nil
	}

	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM articles WHERE link = ? LIMIT 1", link).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check article existence: %v", err)
	}
	return true, nil
}

// InsertIfAbsent inserts the article unless a row with the same link already
// exists. Returns false without error when the row was already there; the
// primary-key conflict is the authoritative dedup decision.
func (s *SQLiteStorage) InsertIfAbsent(ctx context.Context, article *models.Article) (bool, error) {
	if article == nil || strings.TrimSpace(article.Link) == "" {
		return false, nil
	}
	if strings.TrimSpace(article.OriginalTitle) == "" {
		return false, nil
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO articles (
			link, original_title, original_summary, published, feed_source,
			title_zh_tw, summary_zh_tw, title_zh_cn, summary_zh_cn,
			title_en, summary_en
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		article.Link, article.OriginalTitle, article.OriginalSummary,
		article.Published, article.FeedSource,
		article.TitleZhTW, article.SummaryZhTW,
		article.TitleZhCN, article.SummaryZhCN,
		article.TitleEN, article.SummaryEN,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert article: %v", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %v", err)
	}
	return rows == 1, nil
}

const articleColumns = `
	link, original_title, original_summary, published, feed_source,
	title_zh_tw, summary_zh_tw, title_zh_cn, summary_zh_cn, title_en, summary_en`

func scanArticle(scanner interface{ Scan(...any) error }) (*models.Article, error) {
	var a models.Article
	var summary, published, source sql.NullString
	var ttw, stw, tcn, scn, ten, sen sql.NullString

	err := scanner.Scan(
		&a.Link, &a.OriginalTitle, &summary, &published, &source,
		&ttw, &stw, &tcn, &scn, &ten, &sen,
	)
	if err != nil {
		return nil, err
	}

	a.OriginalSummary = summary.String
	a.Published = published.String
	a.FeedSource = source.String
	a.TitleZhTW = nullableString(ttw)
	a.SummaryZhTW = nullableString(stw)
	a.TitleZhCN = nullableString(tcn)
	a.SummaryZhCN = nullableString(scn)
	a.TitleEN = nullableString(ten)
	a.SummaryEN = nullableString(sen)

	return &a, nil
}

func nullableString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func (s *SQLiteStorage) GetArticle(ctx context.Context, link string) (*models.Article, error) {
	row := s.db.QueryRowContext(ctx, "SELECT"+articleColumns+" FROM articles WHERE link = ?", link)
	article, err := scanArticle(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get article: %v", err)
	}
	return article, nil
}

// ListArticles returns articles newest-first. Published times are stored as
// canonical text, so ordering parses them back rather than trusting the
// column's lexical order.
func (s *SQLiteStorage) ListArticles(ctx context.Context, limit int) ([]models.Article, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT"+articleColumns+" FROM articles")
	if err != nil {
		return nil, fmt.Errorf("failed to query articles: %v", err)
	}
	defer rows.Close()

	var articles []models.Article
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article: %v", err)
		}
		articles = append(articles, *article)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate articles: %v", err)
	}

	sort.SliceStable(articles, func(i, j int) bool {
		ti, _ := timefmt.Parse(articles[i].Published)
		tj, _ := timefmt.Parse(articles[j].Published)
		return ti.After(tj)
	})

	if limit > 0 && len(articles) > limit {
		articles = articles[:limit]
	}
	return articles, nil
}

func (s *SQLiteStorage) FetchPendingTranslation(ctx context.Context, language string, limit int) ([]models.Article, error) {
	titleCol, _, err := translationColumns(language)
	if err != nil {
		return nil, err
	}

	query := "SELECT" + articleColumns + " FROM articles WHERE " + titleCol + " IS NULL ORDER BY published DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending translations: %v", err)
	}
	defer rows.Close()

	var articles []models.Article
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article: %v", err)
		}
		articles = append(articles, *article)
	}
	return articles, rows.Err()
}

// UpdateTranslation sets the language-specific fields and appends one audit
// log row per written field. Returns whether an article row was modified.
func (s *SQLiteStorage) UpdateTranslation(ctx context.Context, link, language, title, summary, service string) (bool, error) {
	if strings.TrimSpace(link) == "" || strings.TrimSpace(title) == "" {
		return false, nil
	}

	titleCol, summaryCol, err := translationColumns(language)
	if err != nil {
		return false, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %v", err)
	}
	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil {
				log.Printf("Warning: failed to rollback transaction: %v", err)
			}
		}
	}()

	result, err := tx.ExecContext(ctx,
		"UPDATE articles SET "+titleCol+" = ?, "+summaryCol+" = ? WHERE link = ?",
		title, summary, link,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update translation: %v", err)
	}
	updated, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %v", err)
	}

	logStmt := `
		INSERT INTO translation_logs (
			article_link, target_language, translation_type,
			translated_text, service, success, error_message
		) VALUES (?, ?, ?, ?, ?, ?, ?)`

	if _, err := tx.ExecContext(ctx, logStmt, link, language, "title", title, service, true, nil); err != nil {
		return false, fmt.Errorf("failed to log title translation: %v", err)
	}
	if summary != "" {
		if _, err := tx.ExecContext(ctx, logStmt, link, language, "summary", summary, service, true, nil); err != nil {
			return false, fmt.Errorf("failed to log summary translation: %v", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %v", err)
	}
	committed = true

	return updated > 0, nil
}

func (s *SQLiteStorage) AppendTranslationLog(ctx context.Context, entry *models.TranslationLog) error {
	if entry == nil || strings.TrimSpace(entry.ArticleLink) == "" {
		return fmt.Errorf("translation log entry requires an article link")
	}

	var errMsg any
	if entry.ErrorMessage != "" {
		errMsg = entry.ErrorMessage
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO translation_logs (
			article_link, target_language, translation_type,
			translated_text, service, success, error_message
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ArticleLink, entry.TargetLanguage, entry.TranslationType,
		entry.TranslatedText, entry.Service, entry.Success, errMsg,
	)
	if err != nil {
		return fmt.Errorf("failed to append translation log: %v", err)
	}
	return nil
}

func (s *SQLiteStorage) TranslationLogs(ctx context.Context, filter LogFilter) ([]models.TranslationLog, error) {
	var conditions []string
	var args []any

	if filter.ArticleLink != "" {
		conditions = append(conditions, "article_link = ?")
		args = append(args, filter.ArticleLink)
	}
	if filter.TargetLanguage != "" {
		conditions = append(conditions, "target_language = ?")
		args = append(args, filter.TargetLanguage)
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "created_at > ?")
		args = append(args, filter.Since.UTC().Format(sqliteTimeLayout))
	}

	query := `
		SELECT id, article_link, target_language, translation_type,
		       COALESCE(translated_text, ''), COALESCE(service, ''),
		       success, COALESCE(error_message, ''), created_at
		FROM translation_logs`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query translation logs: %v", err)
	}
	defer rows.Close()

	var logs []models.TranslationLog
	for rows.Next() {
		var entry models.TranslationLog
		var createdAt string
		err := rows.Scan(
			&entry.ID, &entry.ArticleLink, &entry.TargetLanguage,
			&entry.TranslationType, &entry.TranslatedText, &entry.Service,
			&entry.Success, &entry.ErrorMessage, &createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan translation log: %v", err)
		}
		if t, err := time.Parse(sqliteTimeLayout, createdAt); err == nil {
			entry.CreatedAt = t.UTC()
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

// HasRecentTranslationAttempt reports whether any log entry for the
// (link, language) pair was created after since. Used as a cool-down check
// before re-translating.
func (s *SQLiteStorage) HasRecentTranslationAttempt(ctx context.Context, link, language string, since time.Time) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM translation_logs
		WHERE article_link = ? AND target_language = ? AND created_at > ?
		LIMIT 1`,
		link, language, since.UTC().Format(sqliteTimeLayout),
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check translation cool-down: %v", err)
	}
	return true, nil
}

func (s *SQLiteStorage) TranslationStats(ctx context.Context) (*models.TranslationStats, error) {
	stats := &models.TranslationStats{}

	queries := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM articles", &stats.TotalArticles},
		{"SELECT COUNT(*) FROM articles WHERE title_zh_tw IS NOT NULL", &stats.TranslatedZhTW},
		{"SELECT COUNT(*) FROM articles WHERE title_zh_cn IS NOT NULL", &stats.TranslatedZhCN},
		{"SELECT COUNT(*) FROM articles WHERE title_en IS NOT NULL", &stats.TranslatedEN},
		{"SELECT COUNT(*) FROM articles WHERE title_zh_tw IS NULL AND title_zh_cn IS NULL AND title_en IS NULL", &stats.Untranslated},
	}

	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("failed to collect translation stats: %v", err)
		}
	}
	return stats, nil
}

// LinkIntegrity reports article-link health for the maintenance sweep. The
// primary key already guarantees uniqueness, so there is nothing to repair.
func (s *SQLiteStorage) LinkIntegrity(ctx context.Context) (*models.IntegrityReport, error) {
	report := &models.IntegrityReport{}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM articles").Scan(&report.TotalArticles); err != nil {
		return nil, fmt.Errorf("failed to count articles: %v", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM articles WHERE link IS NULL OR link = ''").Scan(&report.EmptyLinks); err != nil {
		return nil, fmt.Errorf("failed to count empty links: %v", err)
	}
	return report, nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
