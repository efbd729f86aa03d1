package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gomcpgo/photo_edit_session/pkg/types"
)

// onePixelPNG is a 1x1 transparent PNG data URL.
const onePixelPNG = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

// MockPredictionClient is an in-memory PredictionClient for testing
type MockPredictionClient struct {
	// Control behavior
	ResponseDelay time.Duration // How long predictions take to complete
	PollInterval  time.Duration // How often WaitForCompletion polls
	ShouldFail    bool          // Whether predictions should fail
	FailAfter     time.Duration // Fail after this duration instead of at creation
	FailMessage   string        // Custom failure message
	Output        interface{}   // Output of succeeded predictions

	// Track calls for assertions
	CreateCalls []CreateCall
	GetCalls    []string
	CancelCalls []string

	predictions map[string]*MockPrediction
	mu          sync.Mutex
}

// CreateCall records a call to CreatePrediction
type CreateCall struct {
	ModelVersion string
	Input        map[string]interface{}
	Timestamp    time.Time
}

// MockPrediction is the server-side state of one mock prediction
type MockPrediction struct {
	ID         string
	Status     string
	StartTime  time.Time
	CompleteAt time.Time
	Output     interface{}
	Error      interface{}
}

// NewMockPredictionClient creates a mock whose predictions succeed after 50ms
func NewMockPredictionClient() *MockPredictionClient {
	return &MockPredictionClient{
		ResponseDelay: 50 * time.Millisecond,
		PollInterval:  10 * time.Millisecond,
		Output:        []interface{}{onePixelPNG},
		predictions:   make(map[string]*MockPrediction),
	}
}

// CreatePrediction creates a mock prediction
func (m *MockPredictionClient) CreatePrediction(ctx context.Context, modelVersion string, input map[string]interface{}) (*types.ReplicatePredictionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CreateCalls = append(m.CreateCalls, CreateCall{
		ModelVersion: modelVersion,
		Input:        input,
		Timestamp:    time.Now(),
	})

	if m.ShouldFail && m.FailAfter == 0 {
		if m.FailMessage != "" {
			return nil, errors.New(m.FailMessage)
		}
		return nil, errors.New("mock client configured to fail")
	}

	now := time.Now()
	pred := &MockPrediction{
		ID:         fmt.Sprintf("mock-pred-%d", len(m.predictions)+1),
		Status:     types.StatusStarting,
		StartTime:  now,
		CompleteAt: now.Add(m.ResponseDelay),
		Output:     m.Output,
	}
	m.predictions[pred.ID] = pred

	return &types.ReplicatePredictionResponse{
		ID:        pred.ID,
		Version:   modelVersion,
		Status:    types.StatusStarting,
		Input:     input,
		CreatedAt: now.Format(time.RFC3339),
	}, nil
}

// GetPrediction reports the status a prediction has reached by now
func (m *MockPredictionClient) GetPrediction(ctx context.Context, predictionID string) (*types.ReplicatePredictionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.GetCalls = append(m.GetCalls, predictionID)

	pred, exists := m.predictions[predictionID]
	if !exists {
		return nil, fmt.Errorf("prediction not found: %s", predictionID)
	}

	resp := &types.ReplicatePredictionResponse{
		ID:        predictionID,
		Status:    types.StatusProcessing,
		CreatedAt: pred.StartTime.Format(time.RFC3339),
	}
	elapsed := time.Since(pred.StartTime)

	switch {
	case pred.Status == types.StatusCanceled || pred.Status == types.StatusFailed:
		resp.Status = pred.Status
		resp.Error = pred.Error
	case m.ShouldFail && m.FailAfter > 0 && elapsed >= m.FailAfter:
		resp.Status = types.StatusFailed
		resp.Error = m.FailMessage
		if m.FailMessage == "" {
			resp.Error = "mock failure"
		}
	case pred.Status == types.StatusSucceeded || !time.Now().Before(pred.CompleteAt):
		resp.Status = types.StatusSucceeded
		resp.Output = pred.Output
	}
	return resp, nil
}

// WaitForCompletion polls a mock prediction until it finishes
func (m *MockPredictionClient) WaitForCompletion(ctx context.Context, predictionID string, timeout time.Duration) (*types.ReplicatePredictionResponse, error) {
	return pollUntilDone(ctx, m, predictionID, timeout, m.PollInterval, nil)
}

// CancelPrediction cancels a mock prediction
func (m *MockPredictionClient) CancelPrediction(ctx context.Context, predictionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CancelCalls = append(m.CancelCalls, predictionID)

	pred, exists := m.predictions[predictionID]
	if !exists {
		return fmt.Errorf("prediction not found: %s", predictionID)
	}
	pred.Status = types.StatusCanceled
	return nil
}

// Helper methods for testing

// SetPredictionComplete marks a prediction as complete immediately
func (m *MockPredictionClient) SetPredictionComplete(predictionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if pred, exists := m.predictions[predictionID]; exists {
		pred.Status = types.StatusSucceeded
		pred.CompleteAt = time.Now()
	}
}

// SetPredictionFailed marks a prediction as failed
func (m *MockPredictionClient) SetPredictionFailed(predictionID string, errorMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if pred, exists := m.predictions[predictionID]; exists {
		pred.Status = types.StatusFailed
		pred.Error = errorMsg
	}
}

// SetResponseDelay changes the response delay for future predictions
func (m *MockPredictionClient) SetResponseDelay(delay time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ResponseDelay = delay
}

// Calls returns copies of the recorded create and cancel calls
func (m *MockPredictionClient) Calls() ([]CreateCall, []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	creates := make([]CreateCall, len(m.CreateCalls))
	copy(creates, m.CreateCalls)
	cancels := make([]string, len(m.CancelCalls))
	copy(cancels, m.CancelCalls)
	return creates, cancels
}

// Reset clears all state for a fresh test
func (m *MockPredictionClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.predictions = make(map[string]*MockPrediction)
	m.CreateCalls = nil
	m.GetCalls = nil
	m.CancelCalls = nil
	m.ShouldFail = false
	m.FailAfter = 0
	m.FailMessage = ""
}
