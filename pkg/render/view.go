package render

import (
	"math"

	"github.com/gomcpgo/photo_edit_session/pkg/types"
)

// Zoom limits. Zoom is measured against original pixels: 1.0 shows one
// original pixel per screen pixel.
const (
	MinZoom = 0.1
	MaxZoom = 2.0

	// FullResolutionZoom is the zoom above which full resolution may be
	// needed.
	FullResolutionZoom = 0.5
)

// View describes how the image is currently displayed.
type View struct {
	Zoom             float64    `json:"zoom" yaml:"zoom"`
	BaseRenderSize   types.Size `json:"baseRenderSize" yaml:"base_render_size"`
	OriginalSize     types.Size `json:"originalSize" yaml:"original_size"`
	OrientationSteps int        `json:"orientationSteps" yaml:"orientation_steps"`
}

// ClampZoom limits z to [MinZoom, MaxZoom]. NaN maps to MinZoom.
func ClampZoom(z float64) float64 {
	if math.IsNaN(z) || z < MinZoom {
		return MinZoom
	}
	if z > MaxZoom {
		return MaxZoom
	}
	return z
}

// Normalized returns v with its zoom clamped and orientation reduced mod 4.
func (v View) Normalized() View {
	v.Zoom = ClampZoom(v.Zoom)
	v.OrientationSteps = ((v.OrientationSteps % 4) + 4) % 4
	return v
}

// EffectiveOriginal is the original size after quarter-turn rotation.
func (v View) EffectiveOriginal() types.Size {
	if v.OrientationSteps%2 != 0 {
		return v.OriginalSize.Swap()
	}
	return v.OriginalSize
}

// EffectiveZoom converts the zoom into a scale factor for the preview raster.
func (v View) EffectiveZoom() float64 {
	if v.BaseRenderSize.Width <= 0 {
		return 0
	}
	return ClampZoom(v.Zoom) * float64(v.EffectiveOriginal().Width) / float64(v.BaseRenderSize.Width)
}

// DisplayWidth is the on-screen width of the image in screen pixels.
func (v View) DisplayWidth() float64 {
	return float64(v.BaseRenderSize.Width) * v.EffectiveZoom()
}

// NeedsFullResolution reports whether the preview raster would be upscaled
// at this zoom.
func (v View) NeedsFullResolution() bool {
	if v.BaseRenderSize.Empty() || v.OriginalSize.Empty() {
		return false
	}
	return ClampZoom(v.Zoom) > FullResolutionZoom && v.DisplayWidth() > float64(v.BaseRenderSize.Width)
}

// FitZoom returns the zoom that fits the whole image inside container.
func (v View) FitZoom(container types.Size) float64 {
	orig := v.EffectiveOriginal()
	if orig.Empty() || container.Empty() {
		return MinZoom
	}
	scale := math.Min(
		float64(container.Width)/float64(orig.Width),
		float64(container.Height)/float64(orig.Height),
	)
	return ClampZoom(scale)
}
