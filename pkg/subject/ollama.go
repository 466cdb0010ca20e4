package subject

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/ollama/ollama/api"
	"github.com/rs/zerolog/log"
)

const (
	DefaultModel   = "qwen2.5vl:7b"
	DefaultTimeout = 5 * time.Minute

	// images are reduced before upload, vision models work on small inputs anyway
	uploadMaxSide = 1024
)

const locatePrompt = `Find the single most important subject in this photo.
Respond with JSON only, no prose:
{"label": "<short noun>", "confidence": <0..1>, "box": {"x": <left>, "y": <top>, "w": <width>, "h": <height>}}
All box values are fractions of the image width or height between 0 and 1.`

// Chatter is the part of the Ollama client the locator uses
type Chatter interface {
	Chat(ctx context.Context, req *api.ChatRequest, fn api.ChatResponseFunc) error
}

// OllamaLocator asks a vision model served by Ollama for the subject box
type OllamaLocator struct {
	client  Chatter
	model   string
	timeout time.Duration
}

// NewOllamaLocator connects to the Ollama server at rawURL. Any path on the
// URL is dropped, the client adds its own.
func NewOllamaLocator(rawURL, model string, timeout time.Duration) (*OllamaLocator, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid ollama URL %q", rawURL)
	}
	base := &url.URL{Scheme: parsed.Scheme, Host: parsed.Host}
	return NewOllamaLocatorWithClient(api.NewClient(base, http.DefaultClient), model, timeout), nil
}

// NewOllamaLocatorWithClient wraps an existing client
func NewOllamaLocatorWithClient(c Chatter, model string, timeout time.Duration) *OllamaLocator {
	if model == "" {
		model = DefaultModel
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &OllamaLocator{client: c, model: model, timeout: timeout}
}

func (l *OllamaLocator) Locate(ctx context.Context, img image.Image) (Subject, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	data, err := encodeForModel(img)
	if err != nil {
		return Subject{}, err
	}

	stream := false
	req := &api.ChatRequest{
		Model: l.model,
		Messages: []api.Message{{
			Role:    "user",
			Content: locatePrompt,
			Images:  []api.ImageData{api.ImageData(data)},
		}},
		Stream:  &stream,
		Options: map[string]any{"temperature": 0},
	}

	var content strings.Builder
	err = l.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return Subject{}, fmt.Errorf("ollama chat error: %w", err)
	}
	if content.Len() == 0 {
		return Subject{}, errors.New("empty response from ollama")
	}

	s, ok := parseSubject(content.String())
	if !ok {
		log.Ctx(ctx).Warn().Str("model", l.model).Msg("model reply was not usable JSON, using center")
	}
	log.Ctx(ctx).Debug().Str("label", s.Label).Float64("confidence", s.Confidence).Msg("subject located")
	return s, nil
}

// encodeForModel downsizes img and encodes it as JPEG
func encodeForModel(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	small := imaging.Fit(img, uploadMaxSide, uploadMaxSide, imaging.Lanczos)
	if err := imaging.Encode(&buf, small, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, fmt.Errorf("failed to encode image for model: %w", err)
	}
	return buf.Bytes(), nil
}

// parseSubject decodes the model reply. Unusable replies yield the center box
// with low confidence and ok false.
func parseSubject(raw string) (Subject, bool) {
	fallback := Subject{Label: "unclear", Confidence: 0.1, Box: CenterBox}

	raw = sanitizeModelJSON(raw)
	if !strings.HasPrefix(raw, "{") {
		return fallback, false
	}
	var s Subject
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return fallback, false
	}
	if s.Box.W <= 0 || s.Box.H <= 0 {
		return fallback, false
	}
	s.Box = s.Box.Clamp()
	s.Confidence = clamp01(s.Confidence)
	return s, true
}

var (
	reBlockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLineComment  = regexp.MustCompile(`(?m)//.*$`)
	reTrailing     = regexp.MustCompile(`,(\s*[}\]])`)
)

// sanitizeModelJSON strips code fences, comments and trailing commas and
// keeps the outermost object.
func sanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.Trim(strings.TrimSpace(raw), "`")

	raw = reBlockComment.ReplaceAllString(raw, "")
	raw = reLineComment.ReplaceAllString(raw, "")
	raw = reTrailing.ReplaceAllString(raw, "$1")

	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}
