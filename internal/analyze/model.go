package analyze

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"cropscan-gateway/internal/fallback"
)

// Model is one inference backend for the analysis stage. Complete returns
// the raw completion text; parsing is the stage's job so that a parse
// failure on the primary can still trigger the secondary with the
// identical prompt.
type Model interface {
	Name() string
	Complete(ctx context.Context, prompt string, images [][]byte) (string, error)
}

// OpenAIModelConfig configures the pair of analysis models. Primary is the
// capable default, secondary the cheaper model used after a primary
// failure.
type OpenAIModelConfig struct {
	APIKey    string
	BaseURL   string        // optional override for tests
	Primary   string        // default: gpt-4o
	Secondary string        // default: gpt-4o-mini
	Timeout   time.Duration // per-call (default: 60s)
}

type openAIModel struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

// NewOpenAIModels returns the primary and secondary analysis models backed
// by one shared client. A missing API key fails construction; that is a
// startup-fatal configuration error.
func NewOpenAIModels(cfg OpenAIModelConfig, logger *zap.Logger) (primary, secondary Model, err error) {
	if cfg.APIKey == "" {
		return nil, nil, errors.New("invalid analysis model config: APIKey is required")
	}
	if cfg.Primary == "" {
		cfg.Primary = openai.GPT4o
	}
	if cfg.Secondary == "" {
		cfg.Secondary = openai.GPT4oMini
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	client := openai.NewClientWithConfig(clientCfg)

	primary = &openAIModel{
		client:  client,
		model:   cfg.Primary,
		timeout: cfg.Timeout,
		logger:  logger.Named("analysis_model"),
	}
	secondary = &openAIModel{
		client:  client,
		model:   cfg.Secondary,
		timeout: cfg.Timeout,
		logger:  logger.Named("analysis_model"),
	}
	return primary, secondary, nil
}

func (m *openAIModel) Name() string { return m.model }

func (m *openAIModel) Complete(parentCtx context.Context, prompt string, images [][]byte) (string, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(parentCtx, m.timeout)
	defer cancel()

	parts := []openai.ChatMessagePart{
		{Type: openai.ChatMessagePartTypeText, Text: prompt},
	}
	for _, img := range images {
		if len(img) == 0 {
			continue
		}
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    imageDataURL(img),
				Detail: openai.ImageURLDetailHigh,
			},
		})
	}

	resp, err := m.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     m.model,
		MaxTokens: 2048,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, MultiContent: parts},
		},
	})
	if err != nil {
		m.logger.Warn("analysis completion failed",
			zap.String("model", m.model),
			zap.Error(err),
			zap.Duration("duration", time.Since(start)),
		)
		return "", &fallback.ProviderError{Provider: m.model, Err: err}
	}

	if len(resp.Choices) == 0 {
		return "", &fallback.ProviderError{Provider: m.model, Err: errors.New("no choices returned")}
	}

	m.logger.Info("analysis completion done",
		zap.String("model", m.model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("duration", time.Since(start)),
	)

	return resp.Choices[0].Message.Content, nil
}

func imageDataURL(img []byte) string {
	mime := http.DetectContentType(img)
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img)
}
