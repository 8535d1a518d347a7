// Package enrich calls an OpenAI-compatible chat endpoint to classify,
// describe and rewrite prompts.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/thebtf/promptvault/pkg/models"
)

// Default client settings.
const (
	DefaultModel   = "gpt-4o-mini"
	DefaultTimeout = 60 * time.Second
)

var (
	// ErrNotConfigured is returned when no API key is set.
	ErrNotConfigured = errors.New("enrichment API key is missing")
	// ErrEmptyResponse is returned when the model sends back no content.
	ErrEmptyResponse = errors.New("empty model response")
	// ErrInvalidAnalysis is returned when the model reply holds no usable JSON.
	ErrInvalidAnalysis = errors.New("model reply is not a valid analysis")
)

// Enricher is the set of model-backed operations used by the pipeline and
// the library service.
type Enricher interface {
	// Analyze returns tags, named attributes and a short description.
	Analyze(ctx context.Context, text string) (*models.Analysis, error)
	// Visualize returns a painterly description of at most 50 words.
	Visualize(ctx context.Context, text string) (string, error)
	// Enhance rewrites the prompt to be more artistic, vivid and safe.
	Enhance(ctx context.Context, text string) (string, error)
}

// Config configures Client.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Timeout     time.Duration
	Temperature float32
}

// Client implements Enricher on top of go-openai.
type Client struct {
	api   *openai.Client
	model string
	temp  float32
	ready bool
}

// New creates a client. A client without an API key is valid but every call
// returns ErrNotConfigured.
func New(cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &Client{
		api:   openai.NewClientWithConfig(oc),
		model: cfg.Model,
		temp:  cfg.Temperature,
		ready: cfg.APIKey != "",
	}
}

// Analyze implements Enricher.
func (c *Client) Analyze(ctx context.Context, text string) (*models.Analysis, error) {
	reply, err := c.complete(ctx, AnalysisSystemPrompt, BuildAnalysisPrompt(text))
	if err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}
	a, err := ParseAnalysis(reply)
	if err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}
	return a, nil
}

// Visualize implements Enricher.
func (c *Client) Visualize(ctx context.Context, text string) (string, error) {
	reply, err := c.complete(ctx, VisualizeSystemPrompt, BuildVisualizePrompt(text))
	if err != nil {
		return "", fmt.Errorf("visualize: %w", err)
	}
	return reply, nil
}

// Enhance implements Enricher.
func (c *Client) Enhance(ctx context.Context, text string) (string, error) {
	reply, err := c.complete(ctx, "", BuildEnhancePrompt(text))
	if err != nil {
		return "", fmt.Errorf("enhance: %w", err)
	}
	return reply, nil
}

func (c *Client) complete(ctx context.Context, system, user string) (string, error) {
	if !c.ready {
		return "", ErrNotConfigured
	}

	var msgs []openai.ChatCompletionMessage
	if system != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: user})

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    msgs,
		Temperature: c.temp,
	})
	if err != nil {
		return "", err
	}
	log.Debug().
		Str("model", c.model).
		Int("tokens", resp.Usage.TotalTokens).
		Dur("took", time.Since(start)).
		Msg("Chat completion finished")

	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}

// ParseAnalysis reads an analysis from a model reply that may wrap the JSON
// in code fences or surrounding prose.
func ParseAnalysis(reply string) (*models.Analysis, error) {
	raw := ExtractJSON(reply)
	if raw == "" {
		return nil, ErrInvalidAnalysis
	}
	var a models.Analysis
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAnalysis, err)
	}

	tags := make([]string, 0, len(a.Tags))
	for _, t := range a.Tags {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	a.Tags = tags
	return &a, nil
}

// Fallback is the analysis recorded when enrichment of text fails.
func Fallback(text string) *models.Analysis {
	meta := make(map[string]string, len(models.MetaKeys))
	for _, k := range models.MetaKeys {
		meta[k] = ""
	}
	return &models.Analysis{
		Tags:              []string{"untagged"},
		Meta:              meta,
		SampleDescription: text,
	}
}

var _ Enricher = (*Client)(nil)
