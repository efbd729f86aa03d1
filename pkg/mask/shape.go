// Package mask models the regions that local adjustments and AI patches
// apply to: sub-mask geometry, mask containers and generative patches.
package mask

import (
	"errors"
	"fmt"
	"math"

	"github.com/gomcpgo/photo_edit_session/pkg/types"
)

// Kind identifies a sub-mask variant.
type Kind string

const (
	KindBrush        Kind = "brush"
	KindLinear       Kind = "linear"
	KindRadial       Kind = "radial"
	KindAISubject    Kind = "ai-subject"
	KindAIForeground Kind = "ai-foreground"
	KindAISky        Kind = "ai-sky"
)

// Kinds lists every sub-mask kind in display order.
var Kinds = []Kind{KindBrush, KindLinear, KindRadial, KindAISubject, KindAIForeground, KindAISky}

// Valid reports whether k names a known sub-mask kind.
func (k Kind) Valid() bool {
	switch k {
	case KindBrush, KindLinear, KindRadial, KindAISubject, KindAIForeground, KindAISky:
		return true
	}
	return false
}

// IsAI reports whether the kind is produced by the AI service.
func (k Kind) IsAI() bool {
	return k == KindAISubject || k == KindAIForeground || k == KindAISky
}

// NeedsGeneration reports whether creating a sub-mask of this kind starts a
// mask generation round trip immediately, without user-drawn geometry.
func NeedsGeneration(k Kind) bool {
	return k == KindAIForeground || k == KindAISky
}

// NeedsBox reports whether generation for this kind waits for a
// user-drawn bounding box.
func NeedsBox(k Kind) bool {
	return k == KindAISubject
}

// ErrInvalidShape is wrapped by every shape validation failure.
var ErrInvalidShape = errors.New("invalid mask shape")

// Shape is the geometry of one sub-mask. It is implemented only by the
// variants in this package: Brush, Linear, Radial and AIMask.
type Shape interface {
	Kind() Kind
	Validate() error
	cloneShape() Shape
}

// BrushTool selects whether a stroke adds or removes coverage.
type BrushTool string

const (
	ToolBrush  BrushTool = "brush"
	ToolEraser BrushTool = "eraser"
)

// Stroke is one painted brush line.
type Stroke struct {
	Tool    BrushTool     `json:"tool" yaml:"tool"`
	Size    float64       `json:"brushSize" yaml:"brush_size"`
	Feather float64       `json:"feather" yaml:"feather"`
	Points  []types.Point `json:"points" yaml:"points"`
}

// Brush is a free-hand painted mask.
type Brush struct {
	Strokes []Stroke `json:"lines" yaml:"lines"`
}

func (Brush) Kind() Kind { return KindBrush }

func (b Brush) Validate() error {
	for i, s := range b.Strokes {
		if s.Tool != ToolBrush && s.Tool != ToolEraser {
			return fmt.Errorf("stroke %d: unknown tool %q: %w", i, s.Tool, ErrInvalidShape)
		}
		if !finite(s.Size) || s.Size <= 0 {
			return fmt.Errorf("stroke %d: brush size must be positive: %w", i, ErrInvalidShape)
		}
		if !unit(s.Feather) {
			return fmt.Errorf("stroke %d: feather must be in [0,1]: %w", i, ErrInvalidShape)
		}
		for _, p := range s.Points {
			if !p.Finite() {
				return fmt.Errorf("stroke %d: non-finite point: %w", i, ErrInvalidShape)
			}
		}
	}
	return nil
}

// cloneShape deep-copies the strokes. Missing stroke and point lists come
// back empty so a brush encodes the same whether it was decoded from null
// or from an empty list.
func (b Brush) cloneShape() Shape {
	out := Brush{Strokes: make([]Stroke, len(b.Strokes))}
	for i, s := range b.Strokes {
		s.Points = append(make([]types.Point, 0, len(s.Points)), s.Points...)
		out.Strokes[i] = s
	}
	return out
}

// Linear is a gradient between two points with a falloff range.
type Linear struct {
	Start types.Point `json:"start" yaml:"start"`
	End   types.Point `json:"end" yaml:"end"`
	Range float64     `json:"range" yaml:"range"`
}

func (Linear) Kind() Kind { return KindLinear }

func (l Linear) Validate() error {
	if !l.Start.Finite() || !l.End.Finite() {
		return fmt.Errorf("linear endpoints must be finite: %w", ErrInvalidShape)
	}
	if l.Start == l.End {
		return fmt.Errorf("linear endpoints must differ: %w", ErrInvalidShape)
	}
	if !finite(l.Range) || l.Range < 0 {
		return fmt.Errorf("linear range must be non-negative: %w", ErrInvalidShape)
	}
	return nil
}

func (l Linear) cloneShape() Shape { return l }

// Radial is an elliptical mask.
type Radial struct {
	Center   types.Point `json:"center" yaml:"center"`
	RadiusX  float64     `json:"radiusX" yaml:"radius_x"`
	RadiusY  float64     `json:"radiusY" yaml:"radius_y"`
	Rotation float64     `json:"rotation" yaml:"rotation"`
	Feather  float64     `json:"feather" yaml:"feather"`
}

func (Radial) Kind() Kind { return KindRadial }

func (r Radial) Validate() error {
	if !r.Center.Finite() {
		return fmt.Errorf("radial center must be finite: %w", ErrInvalidShape)
	}
	if !finite(r.RadiusX) || !finite(r.RadiusY) || r.RadiusX <= 0 || r.RadiusY <= 0 {
		return fmt.Errorf("radial radii must be positive: %w", ErrInvalidShape)
	}
	if !finite(r.Rotation) {
		return fmt.Errorf("radial rotation must be finite: %w", ErrInvalidShape)
	}
	if !unit(r.Feather) {
		return fmt.Errorf("radial feather must be in [0,1]: %w", ErrInvalidShape)
	}
	return nil
}

func (r Radial) cloneShape() Shape { return r }

// AIMask is a mask produced by the AI service. Generated holds the opaque
// data URL returned by the last generation round trip, empty until then.
type AIMask struct {
	Variant   Kind        `json:"-" yaml:"-"`
	Box       *types.Rect `json:"box,omitempty" yaml:"box,omitempty"`
	Generated string      `json:"generated,omitempty" yaml:"generated,omitempty"`
}

func (a AIMask) Kind() Kind { return a.Variant }

func (a AIMask) Validate() error {
	if !a.Variant.IsAI() {
		return fmt.Errorf("%q is not an AI mask kind: %w", a.Variant, ErrInvalidShape)
	}
	if a.Box != nil && !a.Box.Valid() {
		return fmt.Errorf("bounding box must have positive size: %w", ErrInvalidShape)
	}
	return nil
}

func (a AIMask) cloneShape() Shape {
	if a.Box != nil {
		box := *a.Box
		a.Box = &box
	}
	return a
}

// Ready reports whether the mask has generated data to render.
func (a AIMask) Ready() bool {
	return a.Generated != ""
}

// DefaultShape seeds geometry for a new sub-mask sized to the image.
func DefaultShape(kind Kind, size types.Size) (Shape, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown mask kind %q: %w", kind, ErrInvalidShape)
	}
	if size.Empty() {
		return nil, fmt.Errorf("image size %dx%d: %w", size.Width, size.Height, ErrInvalidShape)
	}
	w, h := float64(size.Width), float64(size.Height)

	switch kind {
	case KindRadial:
		return Radial{
			Center:  types.Point{X: w / 2, Y: h / 2},
			RadiusX: w / 4,
			RadiusY: w / 4,
			Feather: 0.5,
		}, nil
	case KindLinear:
		return Linear{
			Start: types.Point{X: w / 2, Y: h / 3},
			End:   types.Point{X: w / 2, Y: 2 * h / 3},
			Range: h / 6,
		}, nil
	case KindBrush:
		return Brush{Strokes: []Stroke{}}, nil
	default:
		return AIMask{Variant: kind}, nil
	}
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func unit(f float64) bool {
	return finite(f) && f >= 0 && f <= 1
}
