package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"photo-styler/internal/media"
)

const DefaultImageModel = "gemini-2.5-flash-image-preview"

// Backend is one way of reaching the remote model.
type Backend interface {
	Generate(ctx context.Context, img media.Encoded, instruction string) (media.Encoded, error)
}

type Options struct {
	APIKey     string
	BaseURL    string
	APIVersion string
	Model      string
	HTTPClient *http.Client
	Logger     *slog.Logger

	// MinInterval paces consecutive requests; zero disables pacing.
	MinInterval time.Duration

	// RequestTimeout bounds one generate call; zero leaves it to the transport.
	RequestTimeout time.Duration
}

type Client struct {
	apiKey     string
	baseURL    string
	apiVersion string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
	limiter    *rate.Limiter
	timeout    time.Duration
}

func New(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}

	apiVersion := strings.TrimSpace(opts.APIVersion)
	if apiVersion == "" {
		apiVersion = "v1beta"
	}

	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultImageModel
	}

	return &Client{
		apiKey:     opts.APIKey,
		baseURL:    baseURL,
		apiVersion: apiVersion,
		model:      model,
		httpClient: opts.HTTPClient,
		logger:     loggerOrDiscard(opts.Logger),
		limiter:    newLimiter(opts.MinInterval),
		timeout:    opts.RequestTimeout,
	}
}

func (c *Client) Model() string {
	return c.model
}

// Generate sends the photo and one instruction in a single request and
// returns the first inline image of the reply. Errors are classified with
// apperr kinds; nothing is retried here.
func (c *Client) Generate(ctx context.Context, img media.Encoded, instruction string) (media.Encoded, error) {
	if err := waitTurn(ctx, c.limiter); err != nil {
		return media.Encoded{}, failure(err)
	}
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	req := generateContentRequest{
		Contents: []content{{
			Role: "user",
			Parts: []part{
				{InlineData: &blob{Data: img.Data, MimeType: img.MimeType}},
				{Text: strings.TrimSpace(instruction)},
			},
		}},
		GenerationConfig: generationConfig{
			ResponseModalities: []string{"IMAGE", "TEXT"},
		},
	}

	start := time.Now()
	resp, err := c.generateContent(ctx, req)
	if err != nil {
		c.logger.Error("gemini request failed", "model", c.model, "dur_ms", time.Since(start).Milliseconds(), "err", err)
		return media.Encoded{}, failure(err)
	}

	out, err := firstImage(resp)
	if err != nil {
		c.logger.Warn("gemini returned no image", "model", c.model, "err", err)
		return media.Encoded{}, err
	}

	c.logger.Debug("gemini image received", "model", c.model, "mime", out.MimeType, "dur_ms", time.Since(start).Milliseconds())
	return out, nil
}

func (c *Client) generateContent(ctx context.Context, payload generateContentRequest) (generateContentResponse, error) {
	if c.httpClient == nil {
		return generateContentResponse{}, errors.New("http client is nil")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return generateContentResponse{}, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/models/%s:generateContent", c.baseURL, c.apiVersion, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return generateContentResponse{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("content-type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return generateContentResponse{}, fmt.Errorf("request: %w", err)
	}
	defer httpResp.Body.Close()

	rawBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return generateContentResponse{}, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode >= 400 {
		return generateContentResponse{}, fmt.Errorf("gemini API %s: %s", httpResp.Status, apiErrorMessage(rawBody))
	}

	var decoded generateContentResponse
	if err := json.Unmarshal(rawBody, &decoded); err != nil {
		return generateContentResponse{}, fmt.Errorf("decode response: %w", err)
	}
	return decoded, nil
}

// firstImage scans the first candidate's parts in order; the first part
// carrying inline data wins.
func firstImage(resp generateContentResponse) (media.Encoded, error) {
	if resp.PromptFeedback != nil && isBlockedReason(resp.PromptFeedback.BlockReason) {
		return media.Encoded{}, blockedError(resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return media.Encoded{}, noImageError()
	}

	cand := resp.Candidates[0]
	for _, p := range cand.Content.Parts {
		if p.InlineData == nil || p.InlineData.Data == "" {
			continue
		}
		mimeType := media.NormalizeMime(p.InlineData.MimeType)
		if mimeType == "" {
			mimeType = media.MimeJPEG
		}
		return media.Encoded{Data: p.InlineData.Data, MimeType: mimeType}, nil
	}

	if isBlockedReason(cand.FinishReason) {
		return media.Encoded{}, blockedError(cand.FinishReason)
	}
	return media.Encoded{}, noImageError()
}

func apiErrorMessage(raw []byte) string {
	var decoded errorResponse
	if err := json.Unmarshal(raw, &decoded); err == nil && decoded.Error.Message != "" {
		if decoded.Error.Status != "" {
			return decoded.Error.Status + ": " + decoded.Error.Message
		}
		return decoded.Error.Message
	}
	return strings.TrimSpace(string(raw))
}

func newLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

func waitTurn(ctx context.Context, limiter *rate.Limiter) error {
	if limiter == nil {
		return nil
	}
	return limiter.Wait(ctx)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func loggerOrDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return logger
}

var _ Backend = (*Client)(nil)
