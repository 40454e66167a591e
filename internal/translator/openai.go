package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"newslingo/internal/config"
	"newslingo/internal/models"
)

const systemPrompt = `You are a professional multilingual translator. Analyze the given text, detect its language, then translate according to these rules:

1. Traditional Chinese input: translate to English and Simplified Chinese.
2. English input: translate to Traditional Chinese and Simplified Chinese.
3. Simplified Chinese input: translate to Traditional Chinese and English.

Respond with a JSON object containing these fields:
- original_language: detected language ("zh-tw", "en", "zh-cn", "other")
- title_zh_tw, title_en, title_zh_cn: translated titles
- content_zh_tw, content_en, content_zh_cn: translated contents

Do not include language labels in the translated text. Keep the tone and style of the original.`

// OpenAIClient calls an OpenAI-compatible chat-completions endpoint.
//
// A single pacing gate serializes outbound calls to a minimum interval
// regardless of caller concurrency, protecting the provider's rate limit.
type OpenAIClient struct {
	endpoint   string
	model      string
	apiKey     string
	service    string
	maxRetries int
	retryDelay time.Duration
	pacer      *rate.Limiter
	httpClient *http.Client
}

var _ Translator = (*OpenAIClient)(nil)

func NewOpenAIClient(cfg config.TranslationConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("translation provider API key is required")
	}

	maxRetries := cfg.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}
	minInterval := cfg.MinInterval
	if minInterval <= 0 {
		minInterval = time.Second
	}

	return &OpenAIClient{
		endpoint:   cfg.Endpoint,
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
		service:    cfg.Service,
		maxRetries: maxRetries,
		retryDelay: cfg.RetryDelay,
		pacer:      rate.NewLimiter(rate.Every(minInterval), 1),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

// Service returns the provider label recorded in translation logs.
func (c *OpenAIClient) Service() string {
	if c.service == "" {
		return "openai"
	}
	return c.service
}

// Translate detects the language of title/summary and translates into the
// remaining target languages. Retries transport and provider failures with
// increasing backoff; after exhausting attempts it returns a failed result
// whose fields fall back to the original text.
func (c *OpenAIClient) Translate(ctx context.Context, title, summary string) (*models.TranslationResult, error) {
	if strings.TrimSpace(title) == "" && strings.TrimSpace(summary) == "" {
		return failedResult("", ""), nil
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if err := c.pacer.Wait(ctx); err != nil {
			return nil, err
		}

		result, err := c.call(ctx, title, summary)
		if err == nil {
			result.Status = models.TranslationCompleted
			return result, nil
		}
		lastErr = err
		log.Printf("Translation attempt %d/%d failed: %v", attempt, c.maxRetries, err)

		if attempt < c.maxRetries {
			backoff := c.retryDelay * time.Duration(attempt)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	log.Printf("Translation failed after %d attempts: %v", c.maxRetries, lastErr)
	return failedResult(title, summary), nil
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	MaxTokens      int           `json:"max_tokens"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat responseFmt   `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFmt struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *OpenAIClient) call(ctx context.Context, title, summary string) (*models.TranslationResult, error) {
	userPrompt := combinedText(title, summary)

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: "Analyze and translate the following text:\n\n" + userPrompt},
		},
		MaxTokens:      3000,
		Temperature:    0.3,
		ResponseFormat: responseFmt{Type: "json_object"},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("provider error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %v", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("provider returned no choices")
	}

	var result models.TranslationResult
	if err := json.Unmarshal([]byte(parsed.Choices[0].Message.Content), &result); err != nil {
		return nil, fmt.Errorf("decode translation payload: %v", err)
	}
	return &result, nil
}

func combinedText(title, summary string) string {
	switch {
	case title != "" && summary != "":
		return "Title: " + title + "\nContent: " + summary
	case title != "":
		return title
	default:
		return summary
	}
}

// failedResult carries the original text in every target field so the
// pipeline still has content to store, tagged failed so nothing is written
// to the enrichment columns.
func failedResult(title, summary string) *models.TranslationResult {
	return &models.TranslationResult{
		OriginalLanguage: "unknown",
		TitleZhTW:        title,
		TitleZhCN:        title,
		TitleEN:          title,
		SummaryZhTW:      summary,
		SummaryZhCN:      summary,
		SummaryEN:        summary,
		Status:           models.TranslationFailed,
	}
}
