package identify

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"cropscan-gateway/internal/fallback"
)

const maxImageSize = 8 * 1024 * 1024

// FloraScanConfig configures the primary identification provider, a
// dedicated plant-recognition HTTP API.
type FloraScanConfig struct {
	BaseURL string
	APIKey  string

	Timeout time.Duration // per-request timeout (default: 20s)

	MaxIdleConns        int // default: 100
	MaxIdleConnsPerHost int // default: 100

	// Custom HTTP client (for testing or special configs)
	HTTPClient *http.Client
}

func (c *FloraScanConfig) Validate() error {
	if c.BaseURL == "" {
		return errors.New("BaseURL is required")
	}
	if c.APIKey == "" {
		return errors.New("APIKey is required")
	}
	return nil
}

// WithDefaults returns a copy of the config with sane defaults applied.
func (c *FloraScanConfig) WithDefaults() FloraScanConfig {
	cfg := *c

	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = 100
	}
	if cfg.MaxIdleConnsPerHost <= 0 {
		cfg.MaxIdleConnsPerHost = 100
	}

	return cfg
}

// FloraScanProvider calls the plant-recognition API with the raw image and
// maps its ranked candidate list to an Identification.
type FloraScanProvider struct {
	cfg        FloraScanConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewFloraScanProvider validates credentials up front; a missing key is a
// startup-time configuration error, not a per-request one.
func NewFloraScanProvider(cfg FloraScanConfig, logger *zap.Logger) (*FloraScanProvider, error) {
	cfg = cfg.WithDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid florascan config: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:          cfg.MaxIdleConns,
				MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
			},
		}
	}

	return &FloraScanProvider{
		cfg:        cfg,
		httpClient: httpClient,
		logger:     logger.Named("florascan"),
	}, nil
}

func (p *FloraScanProvider) Name() string { return "florascan" }

// Wire shapes for the upstream API.

type florascanRequest struct {
	Image    string `json:"image"` // base64-encoded bytes
	Organ    string `json:"organ,omitempty"`
	Category string `json:"category,omitempty"`
	MaxHits  int    `json:"max_hits,omitempty"`
}

type florascanCandidate struct {
	Species struct {
		ScientificName string   `json:"scientific_name"`
		CommonNames    []string `json:"common_names"`
		Family         string   `json:"family"`
		Genus          string   `json:"genus"`
	} `json:"species"`
	Score float64 `json:"score"`
}

type florascanResponse struct {
	Candidates []florascanCandidate `json:"candidates"`
}

type florascanError struct {
	Error struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

// Identify posts the image and returns the top-ranked candidate. Every
// failure mode (network, auth, empty result) surfaces as a ProviderError so
// the chain can fall back.
func (p *FloraScanProvider) Identify(parentCtx context.Context, req Request) (*Identification, error) {
	start := time.Now()

	if len(req.Image) == 0 {
		return nil, &fallback.ProviderError{Provider: p.Name(), Err: errors.New("empty image")}
	}
	if len(req.Image) > maxImageSize {
		return nil, &fallback.ProviderError{
			Provider: p.Name(),
			Err:      fmt.Errorf("image too large (%d bytes, max %d)", len(req.Image), maxImageSize),
		}
	}

	ctx, cancel := context.WithTimeout(parentCtx, p.cfg.Timeout)
	defer cancel()

	body, err := json.Marshal(florascanRequest{
		Image:    base64.StdEncoding.EncodeToString(req.Image),
		Category: req.CategoryHint,
		MaxHits:  3,
	})
	if err != nil {
		return nil, fmt.Errorf("florascan: marshal request: %w", err)
	}

	url := p.cfg.BaseURL + "/v1/identify"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("florascan: build HTTP request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		p.logger.Warn("identification request failed",
			zap.Error(err),
			zap.Duration("duration", time.Since(start)),
		)
		return nil, &fallback.ProviderError{Provider: p.Name(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)

		var ferr florascanError
		if err := json.Unmarshal(raw, &ferr); err == nil && ferr.Error.Message != "" {
			p.logger.Warn("identification upstream error",
				zap.Int("status", resp.StatusCode),
				zap.String("error_code", ferr.Error.Code),
				zap.String("error_message", ferr.Error.Message),
			)
			return nil, &fallback.ProviderError{
				Provider: p.Name(),
				Err:      fmt.Errorf("upstream %d: %s (%s)", resp.StatusCode, ferr.Error.Message, ferr.Error.Code),
			}
		}

		p.logger.Warn("identification upstream error",
			zap.Int("status", resp.StatusCode),
			zap.String("body", truncate(string(raw), 200)),
		)
		return nil, &fallback.ProviderError{
			Provider: p.Name(),
			Err:      fmt.Errorf("upstream %d: %s", resp.StatusCode, truncate(string(raw), 200)),
		}
	}

	var fResp florascanResponse
	if err := json.NewDecoder(resp.Body).Decode(&fResp); err != nil {
		return nil, &fallback.ProviderError{
			Provider: p.Name(),
			Err:      fmt.Errorf("decode response: %w", err),
		}
	}

	if len(fResp.Candidates) == 0 {
		return nil, &fallback.ProviderError{Provider: p.Name(), Err: errors.New("no candidates returned")}
	}

	top := fResp.Candidates[0]
	result := &Identification{
		ScientificName: top.Species.ScientificName,
		CommonNames:    top.Species.CommonNames,
		Family:         top.Species.Family,
		Genus:          top.Species.Genus,
		Confidence:     top.Score,
		Source:         p.Name(),
	}

	p.logger.Info("identification completed",
		zap.String("scientific_name", result.ScientificName),
		zap.Float64("confidence", result.Confidence),
		zap.Int("candidates", len(fResp.Candidates)),
		zap.Duration("duration", time.Since(start)),
	)

	return result, nil
}

// truncate limits string length for logging.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
