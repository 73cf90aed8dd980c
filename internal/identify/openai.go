package identify

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"cropscan-gateway/internal/fallback"
	"cropscan-gateway/internal/jsonx"
)

// VisionConfig configures the secondary identifier: a general
// vision-and-reasoning model asked to emit a structured identification
// guess with a self-reported confidence.
type VisionConfig struct {
	APIKey  string
	BaseURL string        // optional override for tests
	Model   string        // default: gpt-4o-mini
	Timeout time.Duration // default: 30s
}

type VisionProvider struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

func NewVisionProvider(cfg VisionConfig, logger *zap.Logger) (*VisionProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("invalid vision identifier config: APIKey is required")
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &VisionProvider{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		timeout: cfg.Timeout,
		logger:  logger.Named("vision_identify"),
	}, nil
}

func (p *VisionProvider) Name() string { return "vision" }

const visionSystemPrompt = `You are a botanist identifying the plant species in a photo.
Respond with a single JSON object and nothing else:
{"scientific_name": string, "common_names": [string], "family": string, "genus": string, "confidence": number between 0 and 1}
If you cannot identify the plant at all, set scientific_name to "" and confidence to 0.`

type visionGuess struct {
	ScientificName string   `json:"scientific_name"`
	CommonNames    []string `json:"common_names"`
	Family         string   `json:"family"`
	Genus          string   `json:"genus"`
	Confidence     float64  `json:"confidence"`
}

func (p *VisionProvider) Identify(parentCtx context.Context, req Request) (*Identification, error) {
	start := time.Now()

	if len(req.Image) == 0 {
		return nil, &fallback.ProviderError{Provider: p.Name(), Err: errors.New("empty image")}
	}

	ctx, cancel := context.WithTimeout(parentCtx, p.timeout)
	defer cancel()

	userText := "Identify the plant in this photo."
	if req.CategoryHint != "" {
		userText = fmt.Sprintf("Identify the plant in this photo. The user labelled it as %q; verify rather than assume.", req.CategoryHint)
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     p.model,
		MaxTokens: 512,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: visionSystemPrompt},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: userText},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURL(req.Image),
							Detail: openai.ImageURLDetailLow,
						},
					},
				},
			},
		},
	})
	if err != nil {
		p.logger.Warn("vision identification failed",
			zap.Error(err),
			zap.Duration("duration", time.Since(start)),
		)
		return nil, &fallback.ProviderError{Provider: p.Name(), Err: err}
	}

	if len(resp.Choices) == 0 {
		return nil, &fallback.ProviderError{Provider: p.Name(), Err: errors.New("no choices returned")}
	}

	raw, err := jsonx.ExtractObject(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, &fallback.ProviderError{Provider: p.Name(), Err: fmt.Errorf("extract guess: %w", err)}
	}

	var guess visionGuess
	if err := json.Unmarshal([]byte(raw), &guess); err != nil {
		return nil, &fallback.ProviderError{Provider: p.Name(), Err: fmt.Errorf("decode guess: %w", err)}
	}
	if guess.ScientificName == "" {
		return nil, &fallback.ProviderError{Provider: p.Name(), Err: errors.New("model could not identify the plant")}
	}
	if guess.Confidence < 0 {
		guess.Confidence = 0
	}
	if guess.Confidence > 1 {
		guess.Confidence = 1
	}

	result := &Identification{
		ScientificName: guess.ScientificName,
		CommonNames:    guess.CommonNames,
		Family:         guess.Family,
		Genus:          guess.Genus,
		Confidence:     guess.Confidence,
		Source:         p.Name(),
	}

	p.logger.Info("vision identification completed",
		zap.String("scientific_name", result.ScientificName),
		zap.Float64("confidence", result.Confidence),
		zap.Duration("duration", time.Since(start)),
	)

	return result, nil
}

// dataURL embeds the image bytes for the vision API.
func dataURL(image []byte) string {
	mime := http.DetectContentType(image)
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(image)
}
