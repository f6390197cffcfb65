package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cropwise/plantclinic/internal/models"
)

// HTTPClassifier calls an external leaf-image classification service over
// HTTP. The service accepts the ClassifyInput JSON at POST {base}/classify
// and returns a ClassificationResult JSON.
type HTTPClassifier struct {
	baseURL string
	client  *http.Client
}

// ClassifierOption configures the HTTP classifier.
type ClassifierOption func(*HTTPClassifier)

// WithClassifierHTTPClient overrides the default HTTP client.
func WithClassifierHTTPClient(c *http.Client) ClassifierOption {
	return func(h *HTTPClassifier) { h.client = c }
}

// NewHTTPClassifier creates a classifier adapter for the service at baseURL.
func NewHTTPClassifier(baseURL string, opts ...ClassifierOption) *HTTPClassifier {
	h := &HTTPClassifier{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Classify sends the image and context to the classification service.
func (h *HTTPClassifier) Classify(ctx context.Context, in ClassifyInput) (*models.ClassificationResult, error) {
	if in.ImageB64 == "" {
		return nil, fmt.Errorf("no image supplied")
	}
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("failed to encode classify request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/classify", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build classify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classification service unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("classification service returned %d: %s", resp.StatusCode, snippet)
	}

	var result models.ClassificationResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode classification result: %w", err)
	}
	if result.DiseaseName == "" {
		return nil, fmt.Errorf("classification service returned no disease name")
	}
	slog.Debug("HTTPClassifier.Classify: classified", "disease", result.DiseaseName, "confidence", result.Confidence)
	return &result, nil
}
