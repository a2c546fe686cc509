package answer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const systemPrompt = "You are a helpful assistant that answers questions about technical runbooks " +
	"and procedures. Always base your answers strictly on the provided runbook content."

const promptTemplate = `Based on the following excerpts from internal runbooks, please answer the user's question.

RUNBOOK EXCERPTS:
%s

USER QUESTION: %s

INSTRUCTIONS:
- Provide a clear, actionable answer based ONLY on the information in the runbook excerpts above
- If the question cannot be answered from the provided excerpts, say "I cannot find specific information about this in the available runbooks"
- Include relevant details like steps, commands, or procedures when available
- Be concise but comprehensive

ANSWER:`

// OpenAIClient synthesizes answers via an OpenAI-compatible chat completions API.
type OpenAIClient struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// OpenAIConfig configures an OpenAIClient.
type OpenAIConfig struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	// Timeout bounds the whole synthesis call; on expiry the caller falls
	// back to a deterministic local answer rather than hang.
	Timeout time.Duration
}

// NewOpenAIClient creates a chat completions client. The API key is read from
// the environment variable named by APIKeyEnv.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-3.5-turbo"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &OpenAIClient{
		baseURL: cfg.BaseURL,
		apiKey:  os.Getenv(cfg.APIKeyEnv),
		model:   cfg.Model,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Synthesize asks the model to answer query from the given runbook context.
func (c *OpenAIClient) Synthesize(ctx context.Context, query, contextText string) (string, error) {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: fmt.Sprintf(promptTemplate, contextText, query)},
		},
		MaxTokens:   500,
		Temperature: 0.1,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("chat request failed: %s: %s", resp.Status, string(payload))
	}
	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("chat response contained no answer")
	}
	return parsed.Choices[0].Message.Content, nil
}
