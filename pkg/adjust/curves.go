package adjust

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/gomcpgo/photo_edit_session/pkg/curve"
	"github.com/gomcpgo/photo_edit_session/pkg/types"
)

// Channel names one tone curve.
type Channel string

const (
	ChannelLuma  Channel = "luma"
	ChannelRed   Channel = "red"
	ChannelGreen Channel = "green"
	ChannelBlue  Channel = "blue"
)

// Channels lists every curve channel.
var Channels = []Channel{ChannelLuma, ChannelRed, ChannelGreen, ChannelBlue}

const curveMax = 255

var (
	errCurveEndpoints = errors.New("curve must start at x=0 and end at x=255")
	errCurveRange     = errors.New("curve points must lie in [0,255]")
	errCurveEndpoint  = errors.New("curve endpoints cannot be removed")
)

// Curves holds the control points of each tone curve.
type Curves struct {
	Luma  []types.Point `json:"luma" yaml:"luma"`
	Red   []types.Point `json:"red" yaml:"red"`
	Green []types.Point `json:"green" yaml:"green"`
	Blue  []types.Point `json:"blue" yaml:"blue"`
}

// NeutralCurves returns identity curves for every channel.
func NeutralCurves() Curves {
	identity := func() []types.Point {
		return []types.Point{{X: 0, Y: 0}, {X: curveMax, Y: curveMax}}
	}
	return Curves{Luma: identity(), Red: identity(), Green: identity(), Blue: identity()}
}

func (c Curves) get(ch Channel) []types.Point {
	switch ch {
	case ChannelLuma:
		return c.Luma
	case ChannelRed:
		return c.Red
	case ChannelGreen:
		return c.Green
	case ChannelBlue:
		return c.Blue
	}
	return nil
}

func (c *Curves) set(ch Channel, pts []types.Point) {
	switch ch {
	case ChannelLuma:
		c.Luma = pts
	case ChannelRed:
		c.Red = pts
	case ChannelGreen:
		c.Green = pts
	case ChannelBlue:
		c.Blue = pts
	}
}

func (c Curves) clone() Curves {
	return Curves{
		Luma:  clonePoints(c.Luma),
		Red:   clonePoints(c.Red),
		Green: clonePoints(c.Green),
		Blue:  clonePoints(c.Blue),
	}
}

// Points returns a copy of a channel's control points.
func (c Curves) Points(ch Channel) []types.Point {
	return clonePoints(c.get(ch))
}

// Evaluator builds the monotone interpolant for a channel.
func (c Curves) Evaluator(ch Channel) (*curve.Monotone, error) {
	return curve.New(c.get(ch))
}

func clonePoints(in []types.Point) []types.Point {
	if in == nil {
		return nil
	}
	out := make([]types.Point, len(in))
	copy(out, in)
	return out
}

func knownChannel(ch Channel) bool {
	for _, c := range Channels {
		if c == ch {
			return true
		}
	}
	return false
}

// validateCurve returns a sorted copy of pts, or the reason it cannot be a
// tone curve.
func validateCurve(pts []types.Point) ([]types.Point, error) {
	sorted := clonePoints(pts)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].X < sorted[j].X })

	for _, p := range sorted {
		if !p.Finite() {
			return nil, curve.ErrNotFinite
		}
		if p.X < 0 || p.X > curveMax || p.Y < 0 || p.Y > curveMax {
			return nil, errCurveRange
		}
	}
	// curve.New enforces the point count and strictly increasing x.
	if _, err := curve.New(sorted); err != nil {
		return nil, err
	}
	if sorted[0].X != 0 || sorted[len(sorted)-1].X != curveMax {
		return nil, errCurveEndpoints
	}
	return sorted, nil
}

// SetCurve replaces a channel's control points. The points may be given in
// any order.
func (a AdjustmentSet) SetCurve(ch Channel, pts []types.Point) (AdjustmentSet, error) {
	if !knownChannel(ch) {
		return a, invalid(CodeInvalidInput, fmt.Sprintf("unknown curve channel %q", ch), nil)
	}
	sorted, err := validateCurve(pts)
	if err != nil {
		return a, invalid(CodeInvalidCurve, fmt.Sprintf("%s curve", ch), err)
	}
	out := a.Clone()
	out.Curves.set(ch, sorted)
	return out, nil
}

// AddCurvePoint inserts a control point. A point at an existing x replaces
// that point's y.
func (a AdjustmentSet) AddCurvePoint(ch Channel, p types.Point) (AdjustmentSet, error) {
	if !knownChannel(ch) {
		return a, invalid(CodeInvalidInput, fmt.Sprintf("unknown curve channel %q", ch), nil)
	}
	pts := clonePoints(a.Curves.get(ch))
	replaced := false
	for i := range pts {
		if pts[i].X == p.X {
			pts[i].Y = p.Y
			replaced = true
			break
		}
	}
	if !replaced {
		pts = append(pts, p)
	}
	return a.SetCurve(ch, pts)
}

// RemoveCurvePoint removes the control point at index. The first and last
// points are fixed.
func (a AdjustmentSet) RemoveCurvePoint(ch Channel, index int) (AdjustmentSet, error) {
	if !knownChannel(ch) {
		return a, invalid(CodeInvalidInput, fmt.Sprintf("unknown curve channel %q", ch), nil)
	}
	pts := a.Curves.get(ch)
	if index < 0 || index >= len(pts) {
		return a, EditError{
			Code:    CodeNotFound,
			Message: fmt.Sprintf("%s curve has no point %d", ch, index),
			Details: map[string]interface{}{"index": index},
		}
	}
	if index == 0 || index == len(pts)-1 {
		return a, invalid(CodeInvalidCurve, fmt.Sprintf("%s curve", ch), errCurveEndpoint)
	}
	next := make([]types.Point, 0, len(pts)-1)
	next = append(next, pts[:index]...)
	next = append(next, pts[index+1:]...)
	return a.SetCurve(ch, next)
}

// GeometryUpdate is a partial update of the crop and orientation fields.
// Nil fields are left alone.
type GeometryUpdate struct {
	Crop             *types.Rect
	ClearCrop        bool
	AspectRatio      *float64
	ClearAspectRatio bool
	Rotation         *float64
	FlipHorizontal   *bool
	FlipVertical     *bool
	OrientationSteps *int
}

// SetGeometry applies u. Orientation steps are reduced mod 4, so -1 is the
// same as 3.
func (a AdjustmentSet) SetGeometry(u GeometryUpdate) (AdjustmentSet, error) {
	out := a.Clone()
	if u.ClearCrop {
		out.Crop = nil
	}
	if u.Crop != nil {
		c := *u.Crop
		out.Crop = &c
	}
	if u.ClearAspectRatio {
		out.AspectRatio = nil
	}
	if u.AspectRatio != nil {
		r := *u.AspectRatio
		out.AspectRatio = &r
	}
	if u.Rotation != nil {
		out.Rotation = *u.Rotation
	}
	if u.FlipHorizontal != nil {
		out.FlipHorizontal = *u.FlipHorizontal
	}
	if u.FlipVertical != nil {
		out.FlipVertical = *u.FlipVertical
	}
	if u.OrientationSteps != nil {
		out.OrientationSteps = ((*u.OrientationSteps % 4) + 4) % 4
	}
	if err := validateGeometry(out); err != nil {
		return a, err
	}
	return out, nil
}

// EffectiveSize is the original size as displayed after quarter-turn
// rotation.
func (a AdjustmentSet) EffectiveSize(original types.Size) types.Size {
	if a.OrientationSteps%2 != 0 {
		return original.Swap()
	}
	return original
}

func validateGeometry(a AdjustmentSet) error {
	if math.IsNaN(a.Rotation) || math.IsInf(a.Rotation, 0) || a.Rotation < -180 || a.Rotation > 180 {
		return invalid(CodeInvalidGeometry, fmt.Sprintf("rotation %v must be in [-180,180]", a.Rotation), nil)
	}
	if a.Crop != nil && !a.Crop.Valid() {
		return invalid(CodeInvalidGeometry, "crop must have a positive size", nil)
	}
	if a.AspectRatio != nil {
		r := *a.AspectRatio
		if math.IsNaN(r) || math.IsInf(r, 0) || r <= 0 {
			return invalid(CodeInvalidGeometry, "aspect ratio must be positive", nil)
		}
	}
	if a.OrientationSteps < 0 || a.OrientationSteps > 3 {
		return invalid(CodeInvalidGeometry, fmt.Sprintf("orientation steps %d out of range", a.OrientationSteps), nil)
	}
	return nil
}
