package cache

import (
	"testing"
	"time"

	"newslingo/internal/models"
)

func TestCacheManager_GetSet(t *testing.T) {
	cacheManager := NewManager(15 * time.Minute)

	key := "articles:limit=20:language=zh-tw"
	value := []models.Article{{Link: "https://example.com/a", OriginalTitle: "Title"}}

	cacheManager.Set(key, value, 15*time.Minute)

	cached, found := cacheManager.Get(key)
	if !found {
		t.Fatal("Expected to find cached value")
	}
	articles, ok := cached.([]models.Article)
	if !ok {
		t.Fatal("Failed to type assert cached value")
	}
	if len(articles) != 1 || articles[0].Link != "https://example.com/a" {
		t.Errorf("Cached value mismatch: %+v", articles)
	}
}

func TestCacheManager_Delete(t *testing.T) {
	cacheManager := NewManager(15 * time.Minute)

	key := "articles:limit=20:language=en"
	cacheManager.Set(key, "value", 15*time.Minute)

	if _, found := cacheManager.Get(key); !found {
		t.Error("Expected to find cached value before deletion")
	}

	cacheManager.Delete(key)

	if _, found := cacheManager.Get(key); found {
		t.Error("Expected cached value to be deleted")
	}
}

func TestCacheManager_Flush(t *testing.T) {
	cacheManager := NewManager(15 * time.Minute)

	cacheManager.Set("key1", "value1", 15*time.Minute)
	cacheManager.Set("key2", "value2", 15*time.Minute)

	cacheManager.Flush()

	if _, found := cacheManager.Get("key1"); found {
		t.Error("Expected key1 to be flushed")
	}
	if _, found := cacheManager.Get("key2"); found {
		t.Error("Expected key2 to be flushed")
	}
	if count := cacheManager.ItemCount(); count != 0 {
		t.Errorf("Expected empty cache after flush, got %d items", count)
	}
}

func TestCacheManager_Expiration(t *testing.T) {
	cacheManager := NewManager(15 * time.Minute)

	cacheManager.Set("short-lived", "value", 20*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	if _, found := cacheManager.Get("short-lived"); found {
		t.Error("Expected value to expire")
	}
}
