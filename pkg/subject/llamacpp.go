package subject

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// LlamaCppLocator talks to the OpenAI compatible chat endpoint of a
// llama.cpp server.
type LlamaCppLocator struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// NewLlamaCppLocator creates a locator for the server at serverURL
func NewLlamaCppLocator(serverURL, model string, timeout time.Duration) *LlamaCppLocator {
	if serverURL == "" {
		serverURL = "http://localhost:8080"
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &LlamaCppLocator{
		baseURL:    strings.TrimSuffix(serverURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (l *LlamaCppLocator) Locate(ctx context.Context, img image.Image) (Subject, error) {
	data, err := encodeForModel(img)
	if err != nil {
		return Subject{}, err
	}

	payload, err := json.Marshal(chatCompletionRequest{
		Model: l.model,
		Messages: []chatMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: locatePrompt},
				{Type: "image_url", ImageURL: &imageURL{URL: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data)}},
			},
		}},
		MaxTokens: 512,
	})
	if err != nil {
		return Subject{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return Subject{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return Subject{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Subject{}, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Subject{}, fmt.Errorf("server returned status %d: %s", resp.StatusCode, body)
	}

	var out chatCompletionResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return Subject{}, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(out.Choices) == 0 {
		return Subject{}, errors.New("no choices in response")
	}

	text := messageText(out.Choices[0].Message.Content)
	if text == "" {
		return Subject{}, errors.New("empty response from llama.cpp server")
	}

	s, ok := parseSubject(text)
	if !ok {
		log.Ctx(ctx).Warn().Str("model", l.model).Msg("model reply was not usable JSON, using center")
	}
	return s, nil
}

// messageText handles both string content and an array of content parts
func messageText(content any) string {
	switch c := content.(type) {
	case string:
		return c
	case []any:
		for _, item := range c {
			if part, ok := item.(map[string]any); ok {
				if text, ok := part["text"].(string); ok && text != "" {
					return text
				}
			}
		}
	}
	return ""
}
