package gemini

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"photo-styler/internal/media"
)

// SDKClient reaches the same model through google.golang.org/genai.
type SDKClient struct {
	models  *genai.Models
	model   string
	logger  *slog.Logger
	limiter *rate.Limiter
	timeout time.Duration
}

func NewSDK(ctx context.Context, opts Options) (*SDKClient, error) {
	cfg := &genai.ClientConfig{
		APIKey:     opts.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opts.HTTPClient,
	}
	if base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"); base != "" {
		cfg.HTTPOptions.BaseURL = base + "/"
	}
	if v := strings.TrimSpace(opts.APIVersion); v != "" {
		cfg.HTTPOptions.APIVersion = v
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}

	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultImageModel
	}

	return &SDKClient{
		models:  client.Models,
		model:   model,
		logger:  loggerOrDiscard(opts.Logger),
		limiter: newLimiter(opts.MinInterval),
		timeout: opts.RequestTimeout,
	}, nil
}

func (c *SDKClient) Generate(ctx context.Context, img media.Encoded, instruction string) (media.Encoded, error) {
	if err := waitTurn(ctx, c.limiter); err != nil {
		return media.Encoded{}, failure(err)
	}

	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := img.Bytes()
	if err != nil {
		return media.Encoded{}, failure(err)
	}

	contents := []*genai.Content{genai.NewContentFromParts([]*genai.Part{
		{InlineData: &genai.Blob{MIMEType: img.MimeType, Data: raw}},
		genai.NewPartFromText(strings.TrimSpace(instruction)),
	}, genai.RoleUser)}

	start := time.Now()
	resp, err := c.models.GenerateContent(ctx, c.model, contents, &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
	})
	if err != nil {
		c.logger.Error("genai request failed", "model", c.model, "dur_ms", time.Since(start).Milliseconds(), "err", err)
		return media.Encoded{}, failure(err)
	}

	out, err := firstSDKImage(resp)
	if err != nil {
		c.logger.Warn("genai returned no image", "model", c.model, "err", err)
		return media.Encoded{}, err
	}
	c.logger.Debug("genai image received", "model", c.model, "mime", out.MimeType, "dur_ms", time.Since(start).Milliseconds())
	return out, nil
}

func firstSDKImage(resp *genai.GenerateContentResponse) (media.Encoded, error) {
	if resp == nil {
		return media.Encoded{}, noImageError()
	}
	if resp.PromptFeedback != nil && isBlockedReason(string(resp.PromptFeedback.BlockReason)) {
		return media.Encoded{}, blockedError(string(resp.PromptFeedback.BlockReason))
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return media.Encoded{}, noImageError()
	}

	cand := resp.Candidates[0]
	if cand.Content != nil {
		for _, p := range cand.Content.Parts {
			if p == nil || p.InlineData == nil || len(p.InlineData.Data) == 0 {
				continue
			}
			mimeType := media.NormalizeMime(p.InlineData.MIMEType)
			if mimeType == "" {
				mimeType = media.MimeJPEG
			}
			return media.Encoded{
				Data:     base64.StdEncoding.EncodeToString(p.InlineData.Data),
				MimeType: mimeType,
			}, nil
		}
	}

	if isBlockedReason(string(cand.FinishReason)) {
		return media.Encoded{}, blockedError(string(cand.FinishReason))
	}
	return media.Encoded{}, noImageError()
}

var _ Backend = (*SDKClient)(nil)
