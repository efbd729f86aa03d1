package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gomcpgo/photo_edit_session/pkg/adjust"
	"github.com/gomcpgo/photo_edit_session/pkg/types"
)

// EngineError is a non-2xx answer from the render daemon.
type EngineError struct {
	Status  int
	Path    string
	Message string
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("render engine %s (status %d): %s", e.Path, e.Status, e.Message)
}

// HTTPEngineOptions configures an HTTPEngine.
type HTTPEngineOptions struct {
	HTTPClient *http.Client  // Default: client with Timeout
	Timeout    time.Duration // Default: 60s, ignored when HTTPClient is set
	Logger     *slog.Logger
}

// HTTPEngine talks JSON over HTTP to a render daemon.
//
// Render endpoints take the adjustment set as a JSON body and answer with
// the encoded raster; analysis endpoints answer with JSON.
type HTTPEngine struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPEngine creates an engine client for the daemon at baseURL.
func NewHTTPEngine(baseURL string, opts HTTPEngineOptions) *HTTPEngine {
	if opts.HTTPClient == nil {
		if opts.Timeout <= 0 {
			opts.Timeout = 60 * time.Second
		}
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &HTTPEngine{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
	}
}

// RenderPreview implements RenderEngine.
func (e *HTTPEngine) RenderPreview(ctx context.Context, set adjust.AdjustmentSet) ([]byte, error) {
	return e.render(ctx, "/render/preview", set)
}

// RenderFullResolution implements RenderEngine.
func (e *HTTPEngine) RenderFullResolution(ctx context.Context, set adjust.AdjustmentSet) ([]byte, error) {
	return e.render(ctx, "/render/full", set)
}

// RenderHistogram implements RenderEngine.
func (e *HTTPEngine) RenderHistogram(ctx context.Context) (types.Histogram, error) {
	var h types.Histogram
	err := e.getJSON(ctx, "/analysis/histogram", &h)
	return h, err
}

// RenderWaveform implements RenderEngine.
func (e *HTTPEngine) RenderWaveform(ctx context.Context) (types.Waveform, error) {
	var w types.Waveform
	err := e.getJSON(ctx, "/analysis/waveform", &w)
	return w, err
}

func (e *HTTPEngine) render(ctx context.Context, path string, set adjust.AdjustmentSet) ([]byte, error) {
	body, err := json.Marshal(set)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal adjustments: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	raster, err := e.do(req, path)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("render complete", "path", path, "bytes", len(raster), "elapsed", time.Since(start))
	return raster, nil
}

func (e *HTTPEngine) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	body, err := e.do(req, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", path, err)
	}
	return nil
}

func (e *HTTPEngine) do(req *http.Request, path string) ([]byte, error) {
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &EngineError{Status: resp.StatusCode, Path: path, Message: strings.TrimSpace(loggable(body))}
	}
	return body, nil
}
