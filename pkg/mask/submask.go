package mask

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/gomcpgo/photo_edit_session/pkg/types"
)

// Mode controls how a sub-mask combines with its siblings.
type Mode string

const (
	ModeAdditive    Mode = "additive"
	ModeSubtractive Mode = "subtractive"
)

// SubMask is one geometric or AI-derived region inside a container or patch.
type SubMask struct {
	ID      string
	Visible bool
	Mode    Mode
	Opacity float64
	Shape   Shape
}

// NewSubMask creates a visible, additive sub-mask with default geometry.
func NewSubMask(kind Kind, size types.Size) (SubMask, error) {
	shape, err := DefaultShape(kind, size)
	if err != nil {
		return SubMask{}, err
	}
	return SubMask{
		ID:      NewID(),
		Visible: true,
		Mode:    ModeAdditive,
		Opacity: 1,
		Shape:   shape,
	}, nil
}

// NewID returns a fresh globally unique id.
func NewID() string {
	return uuid.NewString()
}

// Kind returns the variant of the sub-mask's shape.
func (s SubMask) Kind() Kind {
	if s.Shape == nil {
		return ""
	}
	return s.Shape.Kind()
}

// Validate checks the sub-mask and its shape.
func (s SubMask) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("sub-mask id is required: %w", ErrInvalidShape)
	}
	if s.Shape == nil {
		return fmt.Errorf("sub-mask %s has no shape: %w", s.ID, ErrInvalidShape)
	}
	if s.Mode != ModeAdditive && s.Mode != ModeSubtractive {
		return fmt.Errorf("sub-mask %s: unknown mode %q: %w", s.ID, s.Mode, ErrInvalidShape)
	}
	if !unit(s.Opacity) {
		return fmt.Errorf("sub-mask %s: opacity must be in [0,1]: %w", s.ID, ErrInvalidShape)
	}
	if err := s.Shape.Validate(); err != nil {
		return fmt.Errorf("sub-mask %s: %w", s.ID, err)
	}
	return nil
}

// Clone returns a deep copy.
func (s SubMask) Clone() SubMask {
	if s.Shape != nil {
		s.Shape = s.Shape.cloneShape()
	}
	return s
}

// SubMaskUpdate is a partial update of a sub-mask. Nil fields are left alone.
type SubMaskUpdate struct {
	Visible *bool
	Mode    *Mode
	Opacity *float64

	// Shape replaces the geometry; it must keep the sub-mask's kind.
	Shape Shape

	// Box and Generated apply to AI masks only.
	Box       *types.Rect
	Generated *string
}

// Apply returns a copy of s with u applied and validated.
func (s SubMask) Apply(u SubMaskUpdate) (SubMask, error) {
	out := s.Clone()
	if u.Visible != nil {
		out.Visible = *u.Visible
	}
	if u.Mode != nil {
		out.Mode = *u.Mode
	}
	if u.Opacity != nil {
		out.Opacity = *u.Opacity
	}
	if u.Shape != nil {
		if u.Shape.Kind() != s.Kind() {
			return SubMask{}, fmt.Errorf("cannot change %s sub-mask into %s: %w", s.Kind(), u.Shape.Kind(), ErrInvalidShape)
		}
		out.Shape = u.Shape.cloneShape()
	}
	if u.Box != nil || u.Generated != nil {
		ai, ok := out.Shape.(AIMask)
		if !ok {
			return SubMask{}, fmt.Errorf("%s sub-mask has no AI parameters: %w", s.Kind(), ErrInvalidShape)
		}
		if u.Box != nil {
			box := *u.Box
			ai.Box = &box
		}
		if u.Generated != nil {
			ai.Generated = *u.Generated
		}
		out.Shape = ai
	}
	if err := out.Validate(); err != nil {
		return SubMask{}, err
	}
	return out, nil
}

type subMaskJSON struct {
	ID         string          `json:"id"`
	Type       Kind            `json:"type"`
	Visible    bool            `json:"visible"`
	Mode       Mode            `json:"mode"`
	Opacity    float64         `json:"opacity"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
}

// MarshalJSON encodes the sub-mask as {id, type, ..., parameters}.
func (s SubMask) MarshalJSON() ([]byte, error) {
	var params json.RawMessage
	if s.Shape != nil {
		b, err := json.Marshal(s.Shape)
		if err != nil {
			return nil, err
		}
		params = b
	}
	return json.Marshal(subMaskJSON{
		ID:         s.ID,
		Type:       s.Kind(),
		Visible:    s.Visible,
		Mode:       s.Mode,
		Opacity:    s.Opacity,
		Parameters: params,
	})
}

// UnmarshalJSON decodes the shape variant named by the type field.
func (s *SubMask) UnmarshalJSON(data []byte) error {
	var w subMaskJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	shape, err := decodeShape(w.Type, func(v interface{}) error {
		if len(w.Parameters) == 0 {
			return nil
		}
		return json.Unmarshal(w.Parameters, v)
	})
	if err != nil {
		return err
	}
	*s = SubMask{ID: w.ID, Visible: w.Visible, Mode: w.Mode, Opacity: w.Opacity, Shape: shape}
	return nil
}

type subMaskYAML struct {
	ID         string      `yaml:"id"`
	Type       Kind        `yaml:"type"`
	Visible    bool        `yaml:"visible"`
	Mode       Mode        `yaml:"mode"`
	Opacity    float64     `yaml:"opacity"`
	Parameters interface{} `yaml:"parameters,omitempty"`
}

// MarshalYAML encodes the sub-mask with the same layout as JSON.
func (s SubMask) MarshalYAML() (interface{}, error) {
	return subMaskYAML{
		ID:         s.ID,
		Type:       s.Kind(),
		Visible:    s.Visible,
		Mode:       s.Mode,
		Opacity:    s.Opacity,
		Parameters: s.Shape,
	}, nil
}

// UnmarshalYAML decodes the shape variant named by the type field.
func (s *SubMask) UnmarshalYAML(value *yaml.Node) error {
	var w struct {
		ID         string    `yaml:"id"`
		Type       Kind      `yaml:"type"`
		Visible    bool      `yaml:"visible"`
		Mode       Mode      `yaml:"mode"`
		Opacity    float64   `yaml:"opacity"`
		Parameters yaml.Node `yaml:"parameters"`
	}
	if err := value.Decode(&w); err != nil {
		return err
	}
	shape, err := decodeShape(w.Type, func(v interface{}) error {
		if w.Parameters.Kind == 0 {
			return nil
		}
		return w.Parameters.Decode(v)
	})
	if err != nil {
		return err
	}
	*s = SubMask{ID: w.ID, Visible: w.Visible, Mode: w.Mode, Opacity: w.Opacity, Shape: shape}
	return nil
}

func decodeShape(kind Kind, decode func(interface{}) error) (Shape, error) {
	switch kind {
	case KindBrush:
		var b Brush
		if err := decode(&b); err != nil {
			return nil, fmt.Errorf("decode brush parameters: %w", err)
		}
		return b, nil
	case KindLinear:
		var l Linear
		if err := decode(&l); err != nil {
			return nil, fmt.Errorf("decode linear parameters: %w", err)
		}
		return l, nil
	case KindRadial:
		var r Radial
		if err := decode(&r); err != nil {
			return nil, fmt.Errorf("decode radial parameters: %w", err)
		}
		return r, nil
	case KindAISubject, KindAIForeground, KindAISky:
		var a AIMask
		if err := decode(&a); err != nil {
			return nil, fmt.Errorf("decode %s parameters: %w", kind, err)
		}
		a.Variant = kind
		return a, nil
	default:
		return nil, fmt.Errorf("unknown sub-mask type %q: %w", kind, ErrInvalidShape)
	}
}
