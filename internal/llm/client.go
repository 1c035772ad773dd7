package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"
)

// QuestText is the narrative the language model produces for a task.
type QuestText struct {
	Title     string `json:"title"`
	Narrative string `json:"narrative"`
}

// Transformer turns a mundane to-do item into quest text. The concrete
// provider behind it is interchangeable; handlers only ever see this
// interface.
type Transformer interface {
	TransformTask(ctx context.Context, task string) (*QuestText, error)
}

// Client calls an OpenAI-compatible chat completion endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewClient() *Client {
	return &Client{
		baseURL: getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
		apiKey:  os.Getenv("LLM_API_KEY"),
		model:   getEnv("LLM_MODEL", "gpt-4o-mini"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

const systemPrompt = "You are the narrator of a fantasy RPG. Rewrite the " +
	"player's to-do item as a short quest. Respond with JSON: " +
	`{"title": "...", "narrative": "..."}`

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *Client) TransformTask(ctx context.Context, task string) (*QuestText, error) {
	payload := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: task},
		},
		ResponseFormat: &respFormat{Type: "json_object"},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("llm provider returned status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("llm provider returned no choices")
	}

	var quest QuestText
	if err := json.Unmarshal([]byte(parsed.Choices[0].Message.Content), &quest); err != nil {
		return nil, fmt.Errorf("llm provider returned malformed quest: %w", err)
	}

	return &quest, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
