// Package adjust defines the AdjustmentSet, the immutable description of a
// non-destructive edit, and the copy-on-write operations that derive new
// sets from old ones. No operation modifies its receiver.
package adjust

import (
	"fmt"
	"math"
	"reflect"

	"github.com/gomcpgo/photo_edit_session/pkg/mask"
	"github.com/gomcpgo/photo_edit_session/pkg/types"
)

// Scalar names a global slider.
type Scalar string

const (
	Exposure    Scalar = "exposure"
	Contrast    Scalar = "contrast"
	Highlights  Scalar = "highlights"
	Shadows     Scalar = "shadows"
	Whites      Scalar = "whites"
	Blacks      Scalar = "blacks"
	Saturation  Scalar = "saturation"
	Temperature Scalar = "temperature"
	Tint        Scalar = "tint"
	Vibrance    Scalar = "vibrance"
	Rating      Scalar = "rating"
)

// Scalars lists the tonal and color sliders in panel order. Rating is not
// among them.
var Scalars = []Scalar{
	Exposure, Contrast, Highlights, Shadows, Whites, Blacks,
	Saturation, Temperature, Tint, Vibrance,
}

type scalarRange struct{ min, max float64 }

var scalarRanges = map[Scalar]scalarRange{
	Exposure:    {-5, 5},
	Contrast:    {-100, 100},
	Highlights:  {-100, 100},
	Shadows:     {-100, 100},
	Whites:      {-100, 100},
	Blacks:      {-100, 100},
	Saturation:  {-100, 100},
	Temperature: {-100, 100},
	Tint:        {-100, 100},
	Vibrance:    {-100, 100},
	Rating:      {0, 5},
}

// HueBand names one of the eight HSL bands.
type HueBand string

const (
	Reds     HueBand = "reds"
	Oranges  HueBand = "oranges"
	Yellows  HueBand = "yellows"
	Greens   HueBand = "greens"
	Aquas    HueBand = "aquas"
	Blues    HueBand = "blues"
	Purples  HueBand = "purples"
	Magentas HueBand = "magentas"
)

// HueBands lists the bands in hue order.
var HueBands = []HueBand{Reds, Oranges, Yellows, Greens, Aquas, Blues, Purples, Magentas}

// HSL is a per-band hue/saturation/luminance shift, each in [-100,100].
type HSL struct {
	Hue        float64 `json:"hue" yaml:"hue"`
	Saturation float64 `json:"saturation" yaml:"saturation"`
	Luminance  float64 `json:"luminance" yaml:"luminance"`
}

// HSLBands holds one HSL triple per hue band.
type HSLBands struct {
	Reds     HSL `json:"reds" yaml:"reds"`
	Oranges  HSL `json:"oranges" yaml:"oranges"`
	Yellows  HSL `json:"yellows" yaml:"yellows"`
	Greens   HSL `json:"greens" yaml:"greens"`
	Aquas    HSL `json:"aquas" yaml:"aquas"`
	Blues    HSL `json:"blues" yaml:"blues"`
	Purples  HSL `json:"purples" yaml:"purples"`
	Magentas HSL `json:"magentas" yaml:"magentas"`
}

func (h *HSLBands) band(b HueBand) *HSL {
	switch b {
	case Reds:
		return &h.Reds
	case Oranges:
		return &h.Oranges
	case Yellows:
		return &h.Yellows
	case Greens:
		return &h.Greens
	case Aquas:
		return &h.Aquas
	case Blues:
		return &h.Blues
	case Purples:
		return &h.Purples
	case Magentas:
		return &h.Magentas
	}
	return nil
}

// Band returns the triple for b.
func (h HSLBands) Band(b HueBand) (HSL, bool) {
	p := h.band(b)
	if p == nil {
		return HSL{}, false
	}
	return *p, true
}

// AdjustmentSet is the complete description of one image's edit.
type AdjustmentSet struct {
	Exposure    float64 `json:"exposure" yaml:"exposure"`
	Contrast    float64 `json:"contrast" yaml:"contrast"`
	Highlights  float64 `json:"highlights" yaml:"highlights"`
	Shadows     float64 `json:"shadows" yaml:"shadows"`
	Whites      float64 `json:"whites" yaml:"whites"`
	Blacks      float64 `json:"blacks" yaml:"blacks"`
	Saturation  float64 `json:"saturation" yaml:"saturation"`
	Temperature float64 `json:"temperature" yaml:"temperature"`
	Tint        float64 `json:"tint" yaml:"tint"`
	Vibrance    float64 `json:"vibrance" yaml:"vibrance"`
	Rating      int     `json:"rating" yaml:"rating"`

	HSL    HSLBands `json:"hsl" yaml:"hsl"`
	Curves Curves   `json:"curves" yaml:"curves"`

	Crop             *types.Rect `json:"crop" yaml:"crop,omitempty"`
	AspectRatio      *float64    `json:"aspectRatio" yaml:"aspect_ratio,omitempty"`
	Rotation         float64     `json:"rotation" yaml:"rotation"`
	FlipHorizontal   bool        `json:"flipHorizontal" yaml:"flip_horizontal"`
	FlipVertical     bool        `json:"flipVertical" yaml:"flip_vertical"`
	OrientationSteps int         `json:"orientationSteps" yaml:"orientation_steps"`

	Masks     []mask.Container `json:"masks" yaml:"masks"`
	AiPatches []mask.Patch     `json:"aiPatches" yaml:"ai_patches"`
}

// New returns the all-neutral adjustment set used for unedited images.
func New() AdjustmentSet {
	return AdjustmentSet{
		Curves:    NeutralCurves(),
		Masks:     []mask.Container{},
		AiPatches: []mask.Patch{},
	}
}

// Clone returns a deep copy.
func (a AdjustmentSet) Clone() AdjustmentSet {
	a.Curves = a.Curves.clone()
	if a.Crop != nil {
		c := *a.Crop
		a.Crop = &c
	}
	if a.AspectRatio != nil {
		r := *a.AspectRatio
		a.AspectRatio = &r
	}
	if a.Masks != nil {
		masks := make([]mask.Container, len(a.Masks))
		for i, m := range a.Masks {
			masks[i] = m.Clone()
		}
		a.Masks = masks
	}
	if a.AiPatches != nil {
		patches := make([]mask.Patch, len(a.AiPatches))
		for i, p := range a.AiPatches {
			patches[i] = p.Clone()
		}
		a.AiPatches = patches
	}
	return a
}

// Normalized returns a copy with nil collections replaced by empty ones,
// so sets that differ only in nil-versus-empty compare and fingerprint
// identically. Rating is clamped to [0,5] and orientation reduced mod 4.
func (a AdjustmentSet) Normalized() AdjustmentSet {
	out := a.Clone()
	out.Rating = min(max(out.Rating, 0), 5)
	out.OrientationSteps = ((out.OrientationSteps % 4) + 4) % 4
	if out.Masks == nil {
		out.Masks = []mask.Container{}
	}
	if out.AiPatches == nil {
		out.AiPatches = []mask.Patch{}
	}
	for i := range out.Masks {
		if out.Masks[i].SubMasks == nil {
			out.Masks[i].SubMasks = []mask.SubMask{}
		}
	}
	for i := range out.AiPatches {
		if out.AiPatches[i].SubMasks == nil {
			out.AiPatches[i].SubMasks = []mask.SubMask{}
		}
	}
	return out
}

// Equal reports structural equality.
func (a AdjustmentSet) Equal(b AdjustmentSet) bool {
	return reflect.DeepEqual(a.Normalized(), b.Normalized())
}

// Scalar returns the current value of a global slider.
func (a AdjustmentSet) Scalar(key Scalar) (float64, bool) {
	if key == Rating {
		return float64(a.Rating), true
	}
	p := (&a).scalar(key)
	if p == nil {
		return 0, false
	}
	return *p, true
}

func (a *AdjustmentSet) scalar(key Scalar) *float64 {
	switch key {
	case Exposure:
		return &a.Exposure
	case Contrast:
		return &a.Contrast
	case Highlights:
		return &a.Highlights
	case Shadows:
		return &a.Shadows
	case Whites:
		return &a.Whites
	case Blacks:
		return &a.Blacks
	case Saturation:
		return &a.Saturation
	case Temperature:
		return &a.Temperature
	case Tint:
		return &a.Tint
	case Vibrance:
		return &a.Vibrance
	}
	return nil
}

// SetScalar sets a global slider. Out-of-range values are clamped to the
// slider's range; rating is rounded to a whole star.
func (a AdjustmentSet) SetScalar(key Scalar, value float64) (AdjustmentSet, error) {
	r, ok := scalarRanges[key]
	if !ok {
		return a, invalid(CodeInvalidInput, fmt.Sprintf("unknown adjustment %q", key), nil)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return a, invalid(CodeInvalidInput, fmt.Sprintf("%s must be finite", key), nil)
	}
	value = clamp(value, r.min, r.max)

	out := a.Clone()
	if key == Rating {
		out.Rating = int(math.Round(value))
		return out, nil
	}
	*out.scalar(key) = value
	return out, nil
}

// SetHSL replaces one hue band. Components are clamped to [-100,100].
func (a AdjustmentSet) SetHSL(band HueBand, v HSL) (AdjustmentSet, error) {
	for _, c := range []float64{v.Hue, v.Saturation, v.Luminance} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return a, invalid(CodeInvalidInput, fmt.Sprintf("hsl %s must be finite", band), nil)
		}
	}
	out := a.Clone()
	p := out.HSL.band(band)
	if p == nil {
		return a, invalid(CodeInvalidInput, fmt.Sprintf("unknown hue band %q", band), nil)
	}
	*p = HSL{
		Hue:        clamp(v.Hue, -100, 100),
		Saturation: clamp(v.Saturation, -100, 100),
		Luminance:  clamp(v.Luminance, -100, 100),
	}
	return out, nil
}

// Validate checks every invariant of the set. It is used on values that did
// not come from the operations in this package, such as loaded metadata.
func (a AdjustmentSet) Validate() error {
	for key := range scalarRanges {
		v, _ := a.Scalar(key)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return invalid(CodeInvalidInput, fmt.Sprintf("%s must be finite", key), nil)
		}
	}
	if a.Rating < 0 || a.Rating > 5 {
		return invalid(CodeInvalidInput, fmt.Sprintf("rating %d out of range", a.Rating), nil)
	}
	for _, ch := range Channels {
		if _, err := validateCurve(a.Curves.get(ch)); err != nil {
			return invalid(CodeInvalidCurve, fmt.Sprintf("%s curve", ch), err)
		}
	}
	if err := validateGeometry(a); err != nil {
		return err
	}

	seen := make(map[string]bool)
	claim := func(id string) error {
		if seen[id] {
			return EditError{
				Code:    CodeDuplicateID,
				Message: fmt.Sprintf("id %q used more than once", id),
				Details: map[string]interface{}{"id": id},
			}
		}
		seen[id] = true
		return nil
	}
	for _, c := range a.Masks {
		if err := c.Validate(); err != nil {
			return invalid(CodeInvalidInput, "mask container", err)
		}
		if err := claim(c.ID); err != nil {
			return err
		}
		for _, s := range c.SubMasks {
			if err := claim(s.ID); err != nil {
				return err
			}
		}
	}
	for _, p := range a.AiPatches {
		if err := p.Validate(); err != nil {
			return invalid(CodeInvalidInput, "ai patch", err)
		}
		if err := claim(p.ID); err != nil {
			return err
		}
		for _, s := range p.SubMasks {
			if err := claim(s.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
