package client

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

	"github.com/gomcpgo/photo_edit_session/pkg/types"
)

const (
	replicateAPIURL = "https://api.replicate.com/v1"

	// Bodies larger than this are logged by size only; they usually carry
	// base64 images.
	maxLoggedBody = 1000
)

// Prediction outcomes other than success.
var (
	ErrPredictionFailed   = errors.New("prediction failed")
	ErrPredictionCanceled = errors.New("prediction was canceled")
	ErrPredictionTimeout  = errors.New("prediction timed out")
	ErrBilling            = errors.New("billing issue")
)

// ReplicateOptions configures a ReplicateClient.
type ReplicateOptions struct {
	BaseURL      string        // Default: https://api.replicate.com/v1
	HTTPTimeout  time.Duration // Default: 60s
	PollInterval time.Duration // Default: 2s
	Logger       *slog.Logger
}

// ReplicateClient handles communication with the Replicate API
type ReplicateClient struct {
	apiToken     string
	baseURL      string
	pollInterval time.Duration
	httpClient   *http.Client
	logger       *slog.Logger
}

// NewReplicateClient creates a new Replicate API client
func NewReplicateClient(apiToken string, opts ReplicateOptions) *ReplicateClient {
	if opts.BaseURL == "" {
		opts.BaseURL = replicateAPIURL
	}
	if opts.HTTPTimeout <= 0 {
		opts.HTTPTimeout = 60 * time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &ReplicateClient{
		apiToken:     apiToken,
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		pollInterval: opts.PollInterval,
		httpClient: &http.Client{
			Timeout: opts.HTTPTimeout,
		},
		logger: opts.Logger,
	}
}

// CreatePrediction creates a new prediction on Replicate
func (c *ReplicateClient) CreatePrediction(ctx context.Context, modelVersion string, input map[string]interface{}) (*types.ReplicatePredictionResponse, error) {
	var url string
	var body []byte
	var err error

	// A version hash (owner/name:hash) goes to the predictions endpoint;
	// a bare model name runs its latest version.
	if strings.Contains(modelVersion, ":") {
		req := types.ReplicatePredictionRequest{
			Version: modelVersion[strings.Index(modelVersion, ":")+1:],
			Input:   input,
		}
		body, err = json.Marshal(req)
		url = fmt.Sprintf("%s/predictions", c.baseURL)
	} else {
		body, err = json.Marshal(map[string]interface{}{
			"input": input,
		})
		url = fmt.Sprintf("%s/models/%s/predictions", c.baseURL, modelVersion)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	c.logger.Debug("creating prediction", "url", url, "model", modelVersion, "body", loggable(body))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	status, respBody, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("prediction created", "status", status, "body", loggable(respBody))

	if status == http.StatusPaymentRequired {
		var errorResp map[string]interface{}
		if err := json.Unmarshal(respBody, &errorResp); err == nil {
			if detail, ok := errorResp["detail"].(string); ok {
				return nil, fmt.Errorf("%w: %s", ErrBilling, detail)
			}
		}
		return nil, fmt.Errorf("%w (status 402): %s", ErrBilling, string(respBody))
	}
	if status != http.StatusCreated && status != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", status, string(respBody))
	}

	var prediction types.ReplicatePredictionResponse
	if err := json.Unmarshal(respBody, &prediction); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &prediction, nil
}

// GetPrediction gets the status of a prediction
func (c *ReplicateClient) GetPrediction(ctx context.Context, predictionID string) (*types.ReplicatePredictionResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/predictions/%s", c.baseURL, predictionID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	status, respBody, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", status, string(respBody))
	}

	var prediction types.ReplicatePredictionResponse
	if err := json.Unmarshal(respBody, &prediction); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &prediction, nil
}

// WaitForCompletion polls a prediction until it finishes, fails or timeout
// elapses
func (c *ReplicateClient) WaitForCompletion(ctx context.Context, predictionID string, timeout time.Duration) (*types.ReplicatePredictionResponse, error) {
	return pollUntilDone(ctx, c, predictionID, timeout, c.pollInterval, c.logger)
}

// CancelPrediction cancels a running prediction
func (c *ReplicateClient) CancelPrediction(ctx context.Context, predictionID string) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/predictions/%s/cancel", c.baseURL, predictionID), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	status, body, err := c.do(httpReq)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("failed to cancel prediction (status %d): %s", status, string(body))
	}
	return nil
}

func (c *ReplicateClient) do(req *http.Request) (int, []byte, error) {
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiToken))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

// pollUntilDone polls c until the prediction reaches a terminal status.
func pollUntilDone(ctx context.Context, c PredictionClient, predictionID string, timeout, interval time.Duration, logger *slog.Logger) (*types.ReplicatePredictionResponse, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger.Debug("waiting for prediction", "id", predictionID, "timeout", timeout)

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	pollCount := 0
	for {
		select {
		case <-ctx.Done():
			logger.Debug("wait cancelled", "id", predictionID)
			return nil, ctx.Err()
		case <-ticker.C:
			pollCount++
			if time.Now().After(deadline) {
				logger.Debug("wait timed out", "id", predictionID, "polls", pollCount)
				prediction, _ := c.GetPrediction(ctx, predictionID)
				return prediction, fmt.Errorf("%w after %v", ErrPredictionTimeout, timeout)
			}

			prediction, err := c.GetPrediction(ctx, predictionID)
			if err != nil {
				return nil, err
			}

			switch prediction.Status {
			case types.StatusSucceeded:
				logger.Debug("prediction succeeded", "id", predictionID, "polls", pollCount)
				return prediction, nil
			case types.StatusFailed:
				return prediction, fmt.Errorf("%w: %s", ErrPredictionFailed, predictionErrorMessage(prediction.Error))
			case types.StatusCanceled:
				return prediction, ErrPredictionCanceled
			}
			// Keep polling while starting or processing.
		}
	}
}

func predictionErrorMessage(v interface{}) string {
	switch e := v.(type) {
	case string:
		if e != "" {
			return e
		}
	case map[string]interface{}:
		if msg, ok := e["message"]; ok {
			return fmt.Sprintf("%v", msg)
		}
	}
	return "unknown error"
}

func loggable(body []byte) string {
	if len(body) > maxLoggedBody {
		return fmt.Sprintf("[%d bytes]", len(body))
	}
	return string(body)
}
