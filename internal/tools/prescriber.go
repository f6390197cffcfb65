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

// HTTPPrescriber calls the retrieval-backed prescription service over HTTP.
// The service accepts the PrescribeInput JSON at POST {base}/prescribe and
// returns a PrescriptionData JSON.
type HTTPPrescriber struct {
	baseURL string
	client  *http.Client
}

// PrescriberOption configures the HTTP prescriber.
type PrescriberOption func(*HTTPPrescriber)

// WithPrescriberHTTPClient overrides the default HTTP client.
func WithPrescriberHTTPClient(c *http.Client) PrescriberOption {
	return func(h *HTTPPrescriber) { h.client = c }
}

// NewHTTPPrescriber creates a prescriber adapter for the service at baseURL.
func NewHTTPPrescriber(baseURL string, opts ...PrescriberOption) *HTTPPrescriber {
	h := &HTTPPrescriber{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Prescribe requests treatment recommendations for a diagnosed disease.
func (h *HTTPPrescriber) Prescribe(ctx context.Context, in PrescribeInput) (*models.PrescriptionData, error) {
	if in.DiseaseName == "" {
		return nil, fmt.Errorf("no disease name supplied")
	}
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("failed to encode prescribe request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/prescribe", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build prescribe request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("prescription service unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("prescription service returned %d: %s", resp.StatusCode, snippet)
	}

	var data models.PrescriptionData
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode prescription data: %w", err)
	}
	if len(data.Treatments) == 0 {
		return nil, fmt.Errorf("prescription service returned no treatments")
	}
	slog.Debug("HTTPPrescriber.Prescribe: prescription generated", "disease", in.DiseaseName, "treatments", len(data.Treatments))
	return &data, nil
}
