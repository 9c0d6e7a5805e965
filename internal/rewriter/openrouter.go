package rewriter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/valpere/dochumanize/internal/postprocess"
)

const openRouterBaseURL = "https://openrouter.ai/api/v1"

// DefaultOpenRouterModel is used when no model is configured.
const DefaultOpenRouterModel = "meta-llama/llama-3.1-8b-instruct:free"

// OpenRouterService rewrites text through OpenRouter's OpenAI-compatible
// chat completions endpoint.
type OpenRouterService struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewOpenRouterService(apiKey, baseURL string, timeout time.Duration) *OpenRouterService {
	if baseURL == "" {
		baseURL = openRouterBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &OpenRouterService{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *OpenRouterService) Name() string { return "openrouter" }

func (s *OpenRouterService) Rewrite(ctx context.Context, cfg Config, req Request) (*Result, error) {
	result := &Result{ServiceName: s.Name()}
	start := time.Now()
	defer func() { result.Latency = time.Since(start) }()

	apiKey := s.apiKey
	if apiKey == "" {
		apiKey = cfg.APIKey
	}
	if apiKey == "" {
		return result, fmt.Errorf("openrouter API key required")
	}

	model := cfg.Model
	if model == "" {
		model = DefaultOpenRouterModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	orReq := map[string]interface{}{
		"model": model,
		"messages": []map[string]string{
			{"role": "system", "content": cfg.SystemPrompt},
			{"role": "user", "content": fmt.Sprintf("Rewrite this text:\n\n%s", req.Text)},
		},
		"temperature": clampTemperature(cfg.Temperature),
		"max_tokens":  maxTokens,
	}

	jsonData, err := json.Marshal(orReq)
	if err != nil {
		return result, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", fmt.Sprintf("%s/chat/completions", s.baseURL), bytes.NewBuffer(jsonData))
	if err != nil {
		return result, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", apiKey))
	httpReq.Header.Set("HTTP-Referer", "https://dochumanize.local")
	httpReq.Header.Set("X-Title", "DocHumanize")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return result, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return result, statusError(s.Name(), resp)
	}

	var orResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&orResp); err != nil {
		return result, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if len(orResp.Choices) == 0 {
		return result, fmt.Errorf("%w: no choices in payload", ErrInvalidResponse)
	}

	text := postprocess.Clean(orResp.Choices[0].Message.Content)
	if text == "" {
		return result, fmt.Errorf("%w: empty completion", ErrInvalidResponse)
	}

	result.Text = text
	result.Model = model
	return result, nil
}

func (s *OpenRouterService) IsAvailable(ctx context.Context) error {
	if s.apiKey == "" {
		return fmt.Errorf("openrouter API key not configured")
	}
	return nil
}

func (s *OpenRouterService) Models(ctx context.Context) ([]string, error) {
	return []string{DefaultOpenRouterModel}, nil
}
