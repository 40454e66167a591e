package storage

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"newslingo/internal/models"
)

func newTestStorage(t *testing.T) Storage {
	t.Helper()

	s, err := NewStorage(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testArticle(link string) *models.Article {
	return &models.Article{
		Link:            link,
		OriginalTitle:   "Test title",
		OriginalSummary: "Test summary",
		Published:       "Fri, 13 Jun 2025 20:16:24 +0000",
		FeedSource:      "Test Feed",
	}
}

func TestSQLiteStorage_InsertIfAbsent(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	inserted, err := s.InsertIfAbsent(ctx, testArticle("https://example.com/1"))
	if err != nil {
		t.Fatalf("Failed to insert article: %v", err)
	}
	if !inserted {
		t.Error("Expected first insert to succeed")
	}

	inserted, err = s.InsertIfAbsent(ctx, testArticle("https://example.com/1"))
	if err != nil {
		t.Fatalf("Unexpected error on duplicate insert: %v", err)
	}
	if inserted {
		t.Error("Expected duplicate insert to report false")
	}

	exists, err := s.Exists(ctx, "https://example.com/1")
	if err != nil {
		t.Fatalf("Failed to check existence: %v", err)
	}
	if !exists {
		t.Error("Expected article to exist")
	}
}

func TestSQLiteStorage_InsertIfAbsent_RejectsEmptyFields(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	inserted, err := s.InsertIfAbsent(ctx, &models.Article{Link: "", OriginalTitle: "t"})
	if err != nil || inserted {
		t.Errorf("Expected empty link to be rejected, got inserted=%v err=%v", inserted, err)
	}

	inserted, err = s.InsertIfAbsent(ctx, &models.Article{Link: "https://example.com/x", OriginalTitle: "  "})
	if err != nil || inserted {
		t.Errorf("Expected empty title to be rejected, got inserted=%v err=%v", inserted, err)
	}
}

func TestSQLiteStorage_ConcurrentInsertsSameLink(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	const workers = 10
	var wg sync.WaitGroup
	successes := make(chan bool, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inserted, err := s.InsertIfAbsent(ctx, testArticle("https://example.com/race"))
			if err != nil {
				t.Errorf("Unexpected insert error: %v", err)
				return
			}
			successes <- inserted
		}()
	}
	wg.Wait()
	close(successes)

	wins := 0
	for inserted := range successes {
		if inserted {
			wins++
		}
	}
	if wins != 1 {
		t.Errorf("Expected exactly 1 winning insert, got %d", wins)
	}

	articles, err := s.ListArticles(ctx, 0)
	if err != nil {
		t.Fatalf("Failed to list articles: %v", err)
	}
	if len(articles) != 1 {
		t.Errorf("Expected exactly 1 stored row, got %d", len(articles))
	}
}

func TestSQLiteStorage_Exists_EmptyLink(t *testing.T) {
	s := newTestStorage(t)

	exists, err := s.Exists(context.Background(), "")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if exists {
		t.Error("Expected empty link to report not existing")
	}
}

func TestSQLiteStorage_ListArticles_NewestFirst(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	older := testArticle("https://example.com/old")
	older.Published = "Thu, 12 Jun 2025 08:00:00 +0000"
	newer := testArticle("https://example.com/new")
	newer.Published = "Fri, 13 Jun 2025 20:16:24 +0000"

	for _, a := range []*models.Article{older, newer} {
		if _, err := s.InsertIfAbsent(ctx, a); err != nil {
			t.Fatalf("Failed to insert article: %v", err)
		}
	}

	articles, err := s.ListArticles(ctx, 0)
	if err != nil {
		t.Fatalf("Failed to list articles: %v", err)
	}
	if len(articles) != 2 {
		t.Fatalf("Expected 2 articles, got %d", len(articles))
	}
	if articles[0].Link != "https://example.com/new" {
		t.Errorf("Expected newest article first, got %s", articles[0].Link)
	}

	limited, err := s.ListArticles(ctx, 1)
	if err != nil {
		t.Fatalf("Failed to list articles with limit: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("Expected limit to cap results at 1, got %d", len(limited))
	}
}

func TestSQLiteStorage_UpdateTranslation(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	if _, err := s.InsertIfAbsent(ctx, testArticle("https://example.com/tr")); err != nil {
		t.Fatalf("Failed to insert article: %v", err)
	}

	updated, err := s.UpdateTranslation(ctx, "https://example.com/tr", models.LangZhTW, "翻譯標題", "翻譯摘要", "openai")
	if err != nil {
		t.Fatalf("Failed to update translation: %v", err)
	}
	if !updated {
		t.Error("Expected update to modify a row")
	}

	article, err := s.GetArticle(ctx, "https://example.com/tr")
	if err != nil {
		t.Fatalf("Failed to get article: %v", err)
	}
	if article.TitleZhTW == nil || *article.TitleZhTW != "翻譯標題" {
		t.Errorf("Expected zh-tw title to be set, got %v", article.TitleZhTW)
	}
	if article.TitleEN != nil {
		t.Error("Expected en title to stay NULL")
	}

	// One audit row per written field.
	logs, err := s.TranslationLogs(ctx, LogFilter{ArticleLink: "https://example.com/tr"})
	if err != nil {
		t.Fatalf("Failed to fetch translation logs: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("Expected 2 log entries, got %d", len(logs))
	}
	for _, entry := range logs {
		if !entry.Success {
			t.Errorf("Expected successful log entry, got failure: %+v", entry)
		}
		if entry.TargetLanguage != models.LangZhTW {
			t.Errorf("Expected target language zh-tw, got %s", entry.TargetLanguage)
		}
	}
}

func TestSQLiteStorage_UpdateTranslation_MissingArticle(t *testing.T) {
	s := newTestStorage(t)

	updated, err := s.UpdateTranslation(context.Background(), "https://example.com/none", models.LangEN, "title", "summary", "openai")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if updated {
		t.Error("Expected no row to be modified for unknown link")
	}
}

func TestSQLiteStorage_FetchPendingTranslation(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := s.InsertIfAbsent(ctx, testArticle(fmt.Sprintf("https://example.com/p%d", i))); err != nil {
			t.Fatalf("Failed to insert article: %v", err)
		}
	}
	if _, err := s.UpdateTranslation(ctx, "https://example.com/p0", models.LangEN, "done", "done", "openai"); err != nil {
		t.Fatalf("Failed to update translation: %v", err)
	}

	pending, err := s.FetchPendingTranslation(ctx, models.LangEN, 0)
	if err != nil {
		t.Fatalf("Failed to fetch pending translations: %v", err)
	}
	if len(pending) != 2 {
		t.Errorf("Expected 2 pending articles, got %d", len(pending))
	}

	limited, err := s.FetchPendingTranslation(ctx, models.LangEN, 1)
	if err != nil {
		t.Fatalf("Failed to fetch pending translations with limit: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("Expected 1 pending article with limit, got %d", len(limited))
	}

	if _, err := s.FetchPendingTranslation(ctx, "klingon", 0); err == nil {
		t.Error("Expected error for unsupported language")
	}
}

func TestSQLiteStorage_AppendTranslationLog_RejectsUnknownArticle(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	err := s.AppendTranslationLog(ctx, &models.TranslationLog{
		ArticleLink:     "https://example.com/never-stored",
		TargetLanguage:  models.LangEN,
		TranslationType: "title",
		Service:         "openai",
		Success:         true,
	})
	if err == nil {
		t.Error("Expected foreign key violation for a log row without an article")
	}
}

func TestSQLiteStorage_AppendTranslationLog_Failure(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	if _, err := s.InsertIfAbsent(ctx, testArticle("https://example.com/fail")); err != nil {
		t.Fatalf("Failed to insert article: %v", err)
	}

	err := s.AppendTranslationLog(ctx, &models.TranslationLog{
		ArticleLink:     "https://example.com/fail",
		TargetLanguage:  "all",
		TranslationType: "title",
		Service:         "openai",
		Success:         false,
		ErrorMessage:    "provider timeout",
	})
	if err != nil {
		t.Fatalf("Failed to append translation log: %v", err)
	}

	logs, err := s.TranslationLogs(ctx, LogFilter{ArticleLink: "https://example.com/fail"})
	if err != nil {
		t.Fatalf("Failed to fetch translation logs: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("Expected 1 log entry, got %d", len(logs))
	}
	if logs[0].Success {
		t.Error("Expected failed log entry")
	}
	if logs[0].ErrorMessage != "provider timeout" {
		t.Errorf("Expected error message to round-trip, got %q", logs[0].ErrorMessage)
	}
}

func TestSQLiteStorage_HasRecentTranslationAttempt(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	if _, err := s.InsertIfAbsent(ctx, testArticle("https://example.com/cool")); err != nil {
		t.Fatalf("Failed to insert article: %v", err)
	}
	if _, err := s.UpdateTranslation(ctx, "https://example.com/cool", models.LangEN, "title", "summary", "openai"); err != nil {
		t.Fatalf("Failed to update translation: %v", err)
	}

	recent, err := s.HasRecentTranslationAttempt(ctx, "https://example.com/cool", models.LangEN, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("Failed to check cool-down: %v", err)
	}
	if !recent {
		t.Error("Expected a recent attempt within the last hour")
	}

	recent, err = s.HasRecentTranslationAttempt(ctx, "https://example.com/cool", models.LangEN, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Failed to check cool-down: %v", err)
	}
	if recent {
		t.Error("Expected no attempt after a future cutoff")
	}

	recent, err = s.HasRecentTranslationAttempt(ctx, "https://example.com/other", models.LangEN, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("Failed to check cool-down: %v", err)
	}
	if recent {
		t.Error("Expected no attempt for unknown link")
	}
}

func TestSQLiteStorage_TranslationStats(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := s.InsertIfAbsent(ctx, testArticle(fmt.Sprintf("https://example.com/s%d", i))); err != nil {
			t.Fatalf("Failed to insert article: %v", err)
		}
	}
	if _, err := s.UpdateTranslation(ctx, "https://example.com/s0", models.LangZhTW, "標題", "摘要", "openai"); err != nil {
		t.Fatalf("Failed to update translation: %v", err)
	}

	stats, err := s.TranslationStats(ctx)
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}
	if stats.TotalArticles != 3 {
		t.Errorf("Expected 3 total articles, got %d", stats.TotalArticles)
	}
	if stats.TranslatedZhTW != 1 {
		t.Errorf("Expected 1 zh-tw translation, got %d", stats.TranslatedZhTW)
	}
	if stats.Untranslated != 2 {
		t.Errorf("Expected 2 untranslated articles, got %d", stats.Untranslated)
	}
}

func TestSQLiteStorage_LinkIntegrity(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := s.InsertIfAbsent(ctx, testArticle(fmt.Sprintf("https://example.com/i%d", i))); err != nil {
			t.Fatalf("Failed to insert article: %v", err)
		}
	}

	report, err := s.LinkIntegrity(ctx)
	if err != nil {
		t.Fatalf("Failed to run integrity sweep: %v", err)
	}
	if report.TotalArticles != 2 {
		t.Errorf("Expected 2 articles, got %d", report.TotalArticles)
	}
	if report.EmptyLinks != 0 {
		t.Errorf("Expected 0 empty links, got %d", report.EmptyLinks)
	}
}
