package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dyk-im/Break-Bias/models"
	"github.com/sirupsen/logrus"
)

// OllamaConfig configures the Ollama embedder.
type OllamaConfig struct {
	BaseURL   string
	Model     string
	BatchSize int
	Timeout   time.Duration
}

// OllamaEmbedder calls Ollama's batched /api/embed endpoint.
type OllamaEmbedder struct {
	baseURL    string
	model      string
	batchSize  int
	httpClient *http.Client
	maxRetries int
	log        *logrus.Entry
}

// NewOllamaEmbedder creates an embedder for the given Ollama server.
func NewOllamaEmbedder(cfg OllamaConfig) *OllamaEmbedder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "nomic-embed-text"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &OllamaEmbedder{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		batchSize:  cfg.BatchSize,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		maxRetries: 3,
		log:        logrus.WithField("component", "ollama"),
	}
}

// Name returns the identifier of this embedder implementation.
func (o *OllamaEmbedder) Name() string { return "ollama" }

// EmbedOne embeds a single text.
func (o *OllamaEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := o.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// Embed embeds texts in batches, preserving input order.
func (o *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += o.batchSize {
		end := start + o.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]
		vecs, err := o.embedBatch(ctx, batch)
		if err != nil {
			return nil, models.NewProviderError(o.Name(), "embed", batch[0], err)
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (o *OllamaEmbedder) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	reqBody, err := json.Marshal(models.OllamaEmbedRequest{Model: o.model, Input: batch})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ollama request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= o.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, retryDelay(attempt-1)); err != nil {
				return nil, err
			}
		}

		vecs, retry, err := o.post(ctx, reqBody)
		if err == nil {
			if len(vecs) != len(batch) {
				return nil, fmt.Errorf("ollama returned %d embeddings for %d inputs", len(vecs), len(batch))
			}
			return vecs, nil
		}
		lastErr = err
		if !retry {
			break
		}
		o.log.WithError(err).WithField("attempt", attempt+1).Warn("embedding request failed, retrying")
	}
	return nil, lastErr
}

// post performs one request and reports whether a failure is worth retrying.
func (o *OllamaEmbedder) post(ctx context.Context, body []byte) ([][]float32, bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("failed to create ollama request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return nil, ctx.Err() == nil, fmt.Errorf("failed to send request to ollama: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("failed to read ollama response: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, true, fmt.Errorf("ollama returned %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("ollama returned %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var out models.OllamaEmbedResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, false, fmt.Errorf("failed to decode ollama response: %w", err)
	}
	if out.Error != "" {
		return nil, false, fmt.Errorf("ollama error: %s", out.Error)
	}
	return out.Embeddings, false, nil
}
