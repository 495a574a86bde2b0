// Package gemini implements audit.Generator on the Google Gen AI SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/JakeFAU/ai-visibility-audit/internal/audit"
)

// contentModel is the slice of *genai.Models the generator calls.
type contentModel interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// Config selects the model and bounds each call.
type Config struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Generator sends one prompt per call and asks for a JSON response.
type Generator struct {
	models  contentModel
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

// New creates a Gemini API client.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Generator, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("genai api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return newGenerator(client.Models, cfg, logger), nil
}

func newGenerator(models contentModel, cfg Config, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	return &Generator{
		models:  models,
		model:   cfg.Model,
		timeout: cfg.Timeout,
		logger:  logger.Named("genai"),
	}
}

// Generate implements audit.Generator.
func (g *Generator) Generate(ctx context.Context, req audit.Request) (audit.Response, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(req.Temperature)),
		MaxOutputTokens:  int32(req.MaxOutputTokens),
		ResponseMIMEType: "application/json",
	}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	start := time.Now()
	resp, err := g.models.GenerateContent(ctx, g.model,
		[]*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}, config)
	if err != nil {
		return audit.Response{}, fmt.Errorf("generate content: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return audit.Response{}, errors.New("generate content: empty response")
	}

	out := audit.Response{
		Text:      resp.Text(),
		Truncated: resp.Candidates[0].FinishReason == genai.FinishReasonMaxTokens,
	}
	g.logger.Debug("generation finished",
		zap.String("model", g.model),
		zap.String("finish_reason", string(resp.Candidates[0].FinishReason)),
		zap.Int("chars", len(out.Text)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return out, nil
}
