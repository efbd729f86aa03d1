package types

import (
	"math"
)

// Model IDs for the Replicate models backing the AI service
const (
	// Mask models
	ModelRemoveBG     = "lucataco/remove-bg:95fcc2a26d3899cd6c2691c900465aaeff466285a65c14638cc5f36f34befaf1"
	ModelSkySegment   = "cjwbw/rembg:fb8af171cfa1616ddcf1242c093f9c46bcada5ad4cf6f2fbe8b81b330ec5c003"
	ModelSegmentBoxed = "meta/sam-2:fe97b453a6455861e3bac769b441ca1f1086110da7466dbb65cf1eecfd60dc83"

	// Patch models
	ModelInpainting = "stability-ai/stable-diffusion-inpainting"
	ModelQuickErase = "allenhooo/lama:cdac78a1bec5b23c07fd29692fb70baa513ea403a39e643c48ec5edadb15fe72"
)

// Prediction statuses from Replicate
const (
	StatusStarting   = "starting"
	StatusProcessing = "processing"
	StatusSucceeded  = "succeeded"
	StatusFailed     = "failed"
	StatusCanceled   = "canceled"
)

// Point is a position in image or curve space.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Finite reports whether both coordinates are finite numbers.
func (p Point) Finite() bool {
	return isFinite(p.X) && isFinite(p.Y)
}

// Rect is an axis-aligned rectangle given by its origin and size.
type Rect struct {
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Valid reports whether the rectangle has finite coordinates and a positive area.
func (r Rect) Valid() bool {
	return isFinite(r.X) && isFinite(r.Y) && isFinite(r.Width) && isFinite(r.Height) &&
		r.Width > 0 && r.Height > 0
}

// Center returns the midpoint of the rectangle.
func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Size is a pixel size.
type Size struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Empty reports whether either dimension is non-positive.
func (s Size) Empty() bool {
	return s.Width <= 0 || s.Height <= 0
}

// Swap returns the size with width and height exchanged.
func (s Size) Swap() Size {
	return Size{Width: s.Height, Height: s.Width}
}

// Histogram holds per-channel bin counts for the current render.
type Histogram struct {
	Red   []uint32 `json:"red"`
	Green []uint32 `json:"green"`
	Blue  []uint32 `json:"blue"`
	Luma  []uint32 `json:"luma"`
}

// Waveform holds a column-major luminance waveform of the current render.
type Waveform struct {
	Width  int      `json:"width"`
	Height int      `json:"height"`
	Data   []uint32 `json:"data"`
}

// PatchResult is the raster produced by a generative-replace round trip.
// Both fields are opaque data URLs.
type PatchResult struct {
	Color string `json:"color" yaml:"color"`
	Mask  string `json:"mask" yaml:"mask"`
}

// ReplicatePredictionRequest represents a request to create a prediction
type ReplicatePredictionRequest struct {
	Version string                 `json:"version"`
	Input   map[string]interface{} `json:"input"`
	Webhook string                 `json:"webhook,omitempty"`
}

// ReplicatePredictionResponse represents the response from Replicate
type ReplicatePredictionResponse struct {
	ID          string                 `json:"id"`
	Version     string                 `json:"version"`
	Status      string                 `json:"status"`
	Input       map[string]interface{} `json:"input"`
	Output      interface{}            `json:"output"`
	Error       interface{}            `json:"error"`
	Logs        string                 `json:"logs"`
	CreatedAt   string                 `json:"created_at"`
	StartedAt   *string                `json:"started_at"`
	CompletedAt *string                `json:"completed_at"`
	URLs        struct {
		Get    string `json:"get"`
		Cancel string `json:"cancel"`
	} `json:"urls"`
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
