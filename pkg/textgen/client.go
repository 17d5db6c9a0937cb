// Package textgen wraps the Gemini API for structured text generation.
package textgen

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"strings"

	"github.com/gastromap/location-enricher/pkg/enrich"
	"github.com/gastromap/location-enricher/pkg/pipeline/core"
	"google.golang.org/genai"
)

const (
	serviceName  = "gemini"
	DefaultModel = "gemini-2.5-flash"
)

type Config struct {
	APIKey string
	Model  string

	// BaseURL overrides the Gemini API base URL. Useful for proxies/testing.
	BaseURL string

	Logger *slog.Logger
}

// Client generates text with Gemini. A Client built without an API key is valid but
// unconfigured: every call fails with enrich.NotConfiguredError.
type Client struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

// Request is one generation call. When Schema is set the model is asked for JSON matching it
// and the response is parsed.
type Request struct {
	Prompt            string
	SystemInstruction string
	Schema            *genai.Schema
	Temperature       *float32
}

// Output is the result of a generation call. When a schema was requested and the text did not
// parse, Parsed is nil and ParseErr is set; Raw always carries the model text.
type Output struct {
	Raw      string
	Parsed   map[string]any
	ParseErr *enrich.ParseError
}

// String returns the string value of key from Parsed, or "".
func (o Output) String(key string) string {
	v, _ := o.Parsed[key].(string)
	return strings.TrimSpace(v)
}

func New(ctx context.Context, cfg Config) (*Client, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	c := &Client{model: model, logger: logger}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return c, nil
	}

	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		cc.HTTPOptions.BaseURL = strings.TrimSpace(cfg.BaseURL)
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, err
	}
	c.client = client
	return c, nil
}

// Configured reports whether an API key was supplied.
func (c *Client) Configured() bool {
	return c != nil && c.client != nil
}

// Model returns the model name used for generation.
func (c *Client) Model() string {
	return c.model
}

// Generate runs one generation call.
func (c *Client) Generate(ctx context.Context, req Request) (Output, error) {
	if !c.Configured() {
		return Output{}, &enrich.NotConfiguredError{Service: serviceName}
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return Output{}, errors.New("textgen: empty prompt")
	}

	cfg := &genai.GenerateContentConfig{CandidateCount: 1}
	if s := strings.TrimSpace(req.SystemInstruction); s != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: s}}}
	}
	if req.Temperature != nil {
		cfg.Temperature = req.Temperature
	}
	if req.Schema != nil {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = req.Schema
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), cfg)
	if err != nil {
		return Output{}, classifyErr(err)
	}

	out := Output{Raw: strings.TrimSpace(resp.Text())}
	if req.Schema == nil {
		return out, nil
	}
	if err := json.Unmarshal([]byte(stripFences(out.Raw)), &out.Parsed); err != nil {
		out.Parsed = nil
		out.ParseErr = &enrich.ParseError{Raw: out.Raw, Err: err}
		c.logger.Warn("structured output did not parse, keeping raw text",
			"model", c.model,
			"error", err,
		)
	}
	return out, nil
}

// stripFences removes a ```json ... ``` wrapper some models add despite the JSON MIME type.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func classifyErr(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 429:
			return &enrich.QuotaExceededError{Service: serviceName, Status: apiErr.Status}
		case apiErr.Code/100 == 5:
			return &core.TransientError{Err: &enrich.ProviderError{Service: serviceName, Status: apiErr.Status, Message: apiErr.Message}}
		default:
			return &enrich.ProviderError{Service: serviceName, Status: apiErr.Status, Message: apiErr.Message}
		}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &core.TransientError{Err: err}
	}
	return err
}
