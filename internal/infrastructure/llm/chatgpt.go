package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"filingscout/internal/config"
	"filingscout/internal/ports"
)

// maxInputChars caps the filing text sent to the model.
const maxInputChars = 4000

// ChatGPTSummarizer implements ports.Summarizer backed by OpenAI-compatible
// chat-completion APIs.
type ChatGPTSummarizer struct {
	endpoint     string
	model        string
	apiKey       string
	systemPrompt string
	httpClient   *http.Client
}

var _ ports.Summarizer = (*ChatGPTSummarizer)(nil)

// NewChatGPTSummarizer builds a client from configuration.
func NewChatGPTSummarizer(cfg config.ChatGPTConfig) *ChatGPTSummarizer {
	return &ChatGPTSummarizer{
		endpoint:     cfg.Endpoint,
		model:        cfg.Model,
		apiKey:       cfg.APIKey,
		systemPrompt: cfg.SystemPrompt,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Summarize asks the model for a 2-3 sentence summary of the filing text.
func (c *ChatGPTSummarizer) Summarize(ctx context.Context, company, text string) (string, error) {
	if c == nil {
		return "", fmt.Errorf("chatgpt summarizer is nil")
	}
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return "", fmt.Errorf("chatgpt summarizer misconfigured")
	}

	body, err := json.Marshal(map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": safePrompt(c.systemPrompt)},
			{"role": "user", "content": userPrompt(company, text)},
		},
		"max_tokens":  150,
		"temperature": 0.3,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chatgpt payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("chatgpt error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var decoded struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("no choices in chatgpt response")
	}

	summary := strings.TrimSpace(decoded.Choices[0].Message.Content)
	if summary == "" {
		return "", fmt.Errorf("empty summary in chatgpt response")
	}
	return summary, nil
}

func userPrompt(company, text string) string {
	if len(text) > maxInputChars {
		text = text[:maxInputChars]
	}
	if text == "" {
		text = "(no extracted text)"
	}
	return fmt.Sprintf(
		"Summarize this corporate filing for %s in 2-3 sentences focusing on key financial or operational updates:\n\n%s",
		company, text)
}

func safePrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "You are a financial analyst summarizing corporate filings."
	}
	return prompt
}
