// Package insight produces short AI-written book blurbs for the presentation
// layers. The library core never depends on it.
package insight

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	// FallbackEmpty is returned when the model answered with no text.
	FallbackEmpty = "No summary available."
	// FallbackUnavailable is returned when the model could not be reached.
	FallbackUnavailable = "AI insight is temporarily unavailable."

	DefaultModel   = "gemini-2.5-flash"
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultTimeout = 10 * time.Second
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Generator writes a blurb for a book. It never fails: on error it returns
// one of the fallback strings.
type Generator interface {
	GenerateBlurb(ctx context.Context, title, author string) string
}

// Static always answers with the same text. Used when no API key is configured.
type Static struct {
	Text string
}

// GenerateBlurb implements Generator.
func (s Static) GenerateBlurb(context.Context, string, string) string {
	if s.Text == "" {
		return FallbackUnavailable
	}
	return s.Text
}

// GeminiConfig configures the Gemini client.
type GeminiConfig struct {
	APIKey     string
	Model      string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Gemini calls the generateContent endpoint of the Gemini API.
type Gemini struct {
	cfg    GeminiConfig
	logger *zap.Logger
	group  singleflight.Group
}

// NewGemini creates a Gemini client, filling in defaults.
func NewGemini(cfg GeminiConfig, logger *zap.Logger) *Gemini {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gemini{cfg: cfg, logger: logger}
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// GenerateBlurb implements Generator. Concurrent calls for the same book
// share one upstream request, which outlives any single caller's ctx and is
// bounded by the configured timeout instead.
func (g *Gemini) GenerateBlurb(ctx context.Context, title, author string) string {
	shared := context.WithoutCancel(ctx)
	ch := g.group.DoChan(title+"\x00"+author, func() (any, error) {
		return g.generate(shared, title, author)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		res.Err = ctx.Err()
	}

	v, err := res.Val, res.Err
	if err != nil {
		g.logger.Warn("Gemini request failed",
			zap.Error(err),
			zap.String("title", title),
			zap.String("author", author),
		)
		return FallbackUnavailable
	}

	text := strings.TrimSpace(v.(string))
	if text == "" {
		return FallbackEmpty
	}
	return text
}

func prompt(title, author string) string {
	return fmt.Sprintf("Write a short, engaging summary (at most 2 sentences) of the book %q by %s. Focus on its genre and main themes.", title, author)
}

func (g *Gemini) generate(ctx context.Context, title, author string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt(title, author)}}}},
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent",
		strings.TrimRight(g.cfg.BaseURL, "/"), url.PathEscape(g.cfg.Model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.cfg.APIKey)

	resp, err := g.cfg.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("call gemini: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("gemini returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	var sb strings.Builder
	if len(out.Candidates) > 0 {
		for _, p := range out.Candidates[0].Content.Parts {
			sb.WriteString(p.Text)
		}
	}
	return sb.String(), nil
}
