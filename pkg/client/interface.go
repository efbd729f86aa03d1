package client

import (
	"context"
	"time"

	"github.com/gomcpgo/photo_edit_session/pkg/adjust"
	"github.com/gomcpgo/photo_edit_session/pkg/mask"
	"github.com/gomcpgo/photo_edit_session/pkg/types"
)

// RenderEngine produces rasters and analysis data for the open image.
type RenderEngine interface {
	// RenderPreview renders a quick, low-resolution raster
	RenderPreview(ctx context.Context, set adjust.AdjustmentSet) ([]byte, error)

	// RenderFullResolution renders the image at its original size
	RenderFullResolution(ctx context.Context, set adjust.AdjustmentSet) ([]byte, error)

	// RenderHistogram returns channel histograms of the last preview
	RenderHistogram(ctx context.Context) (types.Histogram, error)

	// RenderWaveform returns the luminance waveform of the last preview
	RenderWaveform(ctx context.Context) (types.Waveform, error)
}

// MaskRequest asks the AI service to segment part of an image.
type MaskRequest struct {
	Kind  mask.Kind
	Image string // data URL of the source raster
	Box   *types.Rect
}

// MaskResult is a generated mask.
type MaskResult struct {
	Generated string // data URL of the mask raster
}

// PatchRequest asks the AI service to repaint part of an image.
type PatchRequest struct {
	Kind     mask.PatchKind
	Image    string // data URL of the source raster
	Size     types.Size
	Prompt   string
	SubMasks []mask.SubMask
	Box      *types.Rect
}

// AIService runs mask generation and generative fill.
type AIService interface {
	GenerateMask(ctx context.Context, req MaskRequest) (MaskResult, error)
	GenerativeReplace(ctx context.Context, req PatchRequest) (types.PatchResult, error)
}

// MetadataStore persists the edit state of each image.
type MetadataStore interface {
	// LoadMetadata returns nil, nil when no edit has been stored for path
	LoadMetadata(ctx context.Context, path string) (*adjust.AdjustmentSet, error)

	SaveMetadata(ctx context.Context, path string, set adjust.AdjustmentSet) error
}

// PredictionClient defines the interface for interacting with the Replicate API
type PredictionClient interface {
	// CreatePrediction creates a new prediction on Replicate
	CreatePrediction(ctx context.Context, modelVersion string, input map[string]interface{}) (*types.ReplicatePredictionResponse, error)

	// GetPrediction gets the status of a prediction
	GetPrediction(ctx context.Context, predictionID string) (*types.ReplicatePredictionResponse, error)

	// WaitForCompletion waits for a prediction to complete or timeout
	WaitForCompletion(ctx context.Context, predictionID string, timeout time.Duration) (*types.ReplicatePredictionResponse, error)

	// CancelPrediction cancels a running prediction
	CancelPrediction(ctx context.Context, predictionID string) error
}

var (
	_ PredictionClient = (*ReplicateClient)(nil)
	_ PredictionClient = (*MockPredictionClient)(nil)
	_ RenderEngine     = (*HTTPEngine)(nil)
	_ RenderEngine     = (*MockEngine)(nil)
	_ AIService        = (*MockAI)(nil)
)
