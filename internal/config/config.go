package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// TranslationConfig drives the translation client.
type TranslationConfig struct {
	Endpoint    string
	Model       string
	APIKey      string
	Service     string
	MinInterval time.Duration // pacing gate between outbound provider calls
	MaxRetries  int
	RetryDelay  time.Duration
}

// PublisherConfig configures the optional AMQP publisher. Publishing is
// disabled when URL is empty.
type PublisherConfig struct {
	URL        string
	Exchange   string
	RoutingKey string
	QueueName  string
}

// SecurityConfig represents HTTP security configuration.
type SecurityConfig struct {
	EnableRateLimit       bool
	RateLimitPerSecond    float64
	RateLimitBurst        int
	EnableCORS            bool
	AllowedOrigins        []string
	EnableSecurityHeaders bool
	MaxRequestSize        int64
	EnableRequestID       bool
}

type Config struct {
	Port    int
	DataDir string

	Feeds []string

	CacheTTL        time.Duration
	FetchInterval   time.Duration
	CleanupInterval time.Duration

	TranslateOnFetch bool
	// Entry fan-out for runs without translation. Translation-enabled runs
	// are always serialized to respect the provider pacing gate.
	FetchConcurrency int
	ItemDelay        time.Duration
	FeedDelay        time.Duration

	Translation TranslationConfig
	Publisher   PublisherConfig
	Security    SecurityConfig
}

func Load() *Config {
	// Local development keeps credentials in a .env file.
	_ = godotenv.Load()

	return &Config{
		Port:    getEnvAsInt("PORT", 8080),
		DataDir: getEnv("DATA_DIR", "./data"),

		Feeds: getEnvAsStringSlice("FEED_URLS", defaultFeeds()),

		CacheTTL:        getEnvAsDuration("CACHE_TTL", 5*time.Minute),
		FetchInterval:   getEnvAsDuration("FETCH_INTERVAL", 10*time.Minute),
		CleanupInterval: getEnvAsDuration("CLEANUP_INTERVAL", time.Hour),

		TranslateOnFetch: getEnvAsBool("TRANSLATE_ON_FETCH", true),
		FetchConcurrency: getEnvAsInt("FETCH_CONCURRENCY", 5),
		ItemDelay:        getEnvAsDuration("ITEM_DELAY", 500*time.Millisecond),
		FeedDelay:        getEnvAsDuration("FEED_DELAY", time.Second),

		Translation: TranslationConfig{
			Endpoint:    getEnv("OPENAI_ENDPOINT", "https://api.openai.com/v1/chat/completions"),
			Model:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			APIKey:      getEnv("OPENAI_API_KEY", ""),
			Service:     getEnv("TRANSLATION_SERVICE", "openai"),
			MinInterval: getEnvAsDuration("TRANSLATION_MIN_INTERVAL", time.Second),
			MaxRetries:  getEnvAsInt("TRANSLATION_MAX_RETRIES", 3),
			RetryDelay:  getEnvAsDuration("TRANSLATION_RETRY_DELAY", 2*time.Second),
		},

		Publisher: PublisherConfig{
			URL:        getEnv("AMQP_URL", ""),
			Exchange:   getEnv("AMQP_EXCHANGE", "newslingo"),
			RoutingKey: getEnv("AMQP_ROUTING_KEY", "articles"),
			QueueName:  getEnv("AMQP_QUEUE", "newslingo_articles"),
		},

		Security: loadSecurityConfig(),
	}
}

// Validate catches configuration errors that must prevent startup.
func (c *Config) Validate() error {
	if c.TranslateOnFetch && c.Translation.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when TRANSLATE_ON_FETCH is enabled")
	}
	if len(c.Feeds) == 0 {
		return fmt.Errorf("at least one feed URL must be configured")
	}
	return nil
}

func loadSecurityConfig() SecurityConfig {
	return SecurityConfig{
		EnableRateLimit:       getEnvAsBool("ENABLE_RATE_LIMIT", true),
		RateLimitPerSecond:    getEnvAsFloat("RATE_LIMIT_PER_SECOND", 10.0),
		RateLimitBurst:        getEnvAsInt("RATE_LIMIT_BURST", 20),
		EnableCORS:            getEnvAsBool("ENABLE_CORS", true),
		AllowedOrigins:        getEnvAsStringSlice("ALLOWED_ORIGINS", []string{"*"}),
		EnableSecurityHeaders: getEnvAsBool("ENABLE_SECURITY_HEADERS", true),
		MaxRequestSize:        getEnvAsInt64("MAX_REQUEST_SIZE", 10<<20), // 10MB
		EnableRequestID:       getEnvAsBool("ENABLE_REQUEST_ID", true),
	}
}

func defaultFeeds() []string {
	return []string{
		// English sources
		"https://www.artificialintelligence-news.com/feed/",
		"https://techcrunch.com/category/artificial-intelligence/feed/",
		"https://www.theverge.com/rss/ai-artificial-intelligence/index.xml",
		"https://www.technologyreview.com/feed/",
		"https://venturebeat.com/category/ai/feed/",
		// Chinese / Taiwanese sources
		"https://technews.tw/category/ai/feed",
		"http://www.jiqizhixin.com/rss",
		"https://www.qbitai.com/feed",
	}
}

func getEnv(key string, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsInt64(key string, defaultVal int64) int64 {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.ParseInt(val, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if floatVal, err := strconv.ParseFloat(val, 64); err == nil {
			return floatVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			return duration
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if boolVal, err := strconv.ParseBool(val); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsStringSlice(key string, defaultVal []string) []string {
	if val := os.Getenv(key); val != "" {
		parts := strings.Split(val, ",")
		out := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultVal
}
