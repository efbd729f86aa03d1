package mask

import (
	"fmt"
	"math"

	"github.com/gomcpgo/photo_edit_session/pkg/types"
)

// Adjustments is the local tone/colour delta a container applies inside
// its region.
type Adjustments struct {
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
}

// Validate rejects non-finite values.
func (a Adjustments) Validate() error {
	for _, v := range []float64{a.Exposure, a.Contrast, a.Highlights, a.Shadows, a.Whites,
		a.Blacks, a.Saturation, a.Temperature, a.Tint, a.Vibrance} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("mask adjustments must be finite: %w", ErrInvalidShape)
		}
	}
	return nil
}

// Container is a named, orderable adjustment region built from sub-masks.
type Container struct {
	ID          string      `json:"id" yaml:"id"`
	Name        string      `json:"name" yaml:"name"`
	Visible     bool        `json:"visible" yaml:"visible"`
	Invert      bool        `json:"invert" yaml:"invert"`
	Opacity     float64     `json:"opacity" yaml:"opacity"`
	Adjustments Adjustments `json:"adjustments" yaml:"adjustments"`
	SubMasks    []SubMask   `json:"subMasks" yaml:"sub_masks"`
}

// NewContainer creates a visible container seeded with one sub-mask of kind.
func NewContainer(name string, kind Kind, size types.Size) (Container, error) {
	sub, err := NewSubMask(kind, size)
	if err != nil {
		return Container{}, err
	}
	return Container{
		ID:       NewID(),
		Name:     name,
		Visible:  true,
		Opacity:  1,
		SubMasks: []SubMask{sub},
	}, nil
}

// Validate checks the container and its sub-masks.
func (c Container) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("container id is required: %w", ErrInvalidShape)
	}
	if !unit(c.Opacity) {
		return fmt.Errorf("container %s: opacity must be in [0,1]: %w", c.ID, ErrInvalidShape)
	}
	if err := c.Adjustments.Validate(); err != nil {
		return fmt.Errorf("container %s: %w", c.ID, err)
	}
	for _, s := range c.SubMasks {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("container %s: %w", c.ID, err)
		}
	}
	return nil
}

// Clone returns a deep copy.
func (c Container) Clone() Container {
	c.SubMasks = cloneSubMasks(c.SubMasks)
	return c
}

// Duplicate returns a deep copy with fresh ids for the container and every
// sub-mask.
func (c Container) Duplicate() Container {
	out := c.Clone()
	out.ID = NewID()
	for i := range out.SubMasks {
		out.SubMasks[i].ID = NewID()
	}
	return out
}

// ContainerUpdate is a partial update of a container. Nil fields are left alone.
type ContainerUpdate struct {
	Name        *string
	Visible     *bool
	Invert      *bool
	Opacity     *float64
	Adjustments *Adjustments
}

// Apply returns a copy of c with u applied and validated.
func (c Container) Apply(u ContainerUpdate) (Container, error) {
	out := c.Clone()
	if u.Name != nil {
		out.Name = *u.Name
	}
	if u.Visible != nil {
		out.Visible = *u.Visible
	}
	if u.Invert != nil {
		out.Invert = *u.Invert
	}
	if u.Opacity != nil {
		out.Opacity = *u.Opacity
	}
	if u.Adjustments != nil {
		out.Adjustments = *u.Adjustments
	}
	if err := out.Validate(); err != nil {
		return Container{}, err
	}
	return out, nil
}

func cloneSubMasks(in []SubMask) []SubMask {
	if in == nil {
		return nil
	}
	out := make([]SubMask, len(in))
	for i, s := range in {
		out[i] = s.Clone()
	}
	return out
}
