package mask

import (
	"fmt"

	"github.com/gomcpgo/photo_edit_session/pkg/types"
)

// PatchKind selects how an AI patch fills its region.
type PatchKind string

const (
	// PatchGenerativeReplace repaints a brushed region from a text prompt.
	PatchGenerativeReplace PatchKind = "generative-replace"

	// PatchQuickErase removes the object inside a user-drawn box.
	PatchQuickErase PatchKind = "quick-erase"
)

// Valid reports whether k is a known patch kind.
func (k PatchKind) Valid() bool {
	return k == PatchGenerativeReplace || k == PatchQuickErase
}

// seedKind is the sub-mask kind a new patch of this kind starts with.
func (k PatchKind) seedKind() Kind {
	if k == PatchQuickErase {
		return KindAISubject
	}
	return KindBrush
}

// PatchNeedsBox reports whether the patch waits for a drawn box before it
// can be generated.
func PatchNeedsBox(k PatchKind) bool {
	return k == PatchQuickErase
}

// Patch is a generative-replace unit.
type Patch struct {
	ID        string             `json:"id" yaml:"id"`
	Name      string             `json:"name" yaml:"name"`
	Kind      PatchKind          `json:"kind" yaml:"kind"`
	Visible   bool               `json:"visible" yaml:"visible"`
	Prompt    string             `json:"prompt" yaml:"prompt"`
	IsLoading bool               `json:"isLoading" yaml:"is_loading"`
	SubMasks  []SubMask          `json:"subMasks" yaml:"sub_masks"`
	Result    *types.PatchResult `json:"result,omitempty" yaml:"result,omitempty"`
}

// NewPatch creates a visible patch seeded with the sub-mask its kind uses.
func NewPatch(name string, kind PatchKind, size types.Size) (Patch, error) {
	if !kind.Valid() {
		return Patch{}, fmt.Errorf("unknown patch kind %q: %w", kind, ErrInvalidShape)
	}
	sub, err := NewSubMask(kind.seedKind(), size)
	if err != nil {
		return Patch{}, err
	}
	return Patch{
		ID:       NewID(),
		Name:     name,
		Kind:     kind,
		Visible:  true,
		SubMasks: []SubMask{sub},
	}, nil
}

// Validate checks the patch and its sub-masks.
func (p Patch) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("patch id is required: %w", ErrInvalidShape)
	}
	if !p.Kind.Valid() {
		return fmt.Errorf("patch %s: unknown kind %q: %w", p.ID, p.Kind, ErrInvalidShape)
	}
	for _, s := range p.SubMasks {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("patch %s: %w", p.ID, err)
		}
	}
	return nil
}

// Clone returns a deep copy.
func (p Patch) Clone() Patch {
	p.SubMasks = cloneSubMasks(p.SubMasks)
	if p.Result != nil {
		r := *p.Result
		p.Result = &r
	}
	return p
}

// Box returns the first bounding box drawn on the patch's AI sub-masks.
func (p Patch) Box() (types.Rect, bool) {
	for _, s := range p.SubMasks {
		if ai, ok := s.Shape.(AIMask); ok && ai.Box != nil {
			return *ai.Box, true
		}
	}
	return types.Rect{}, false
}

// PatchUpdate is a partial update of a patch. Nil fields are left alone.
type PatchUpdate struct {
	Name        *string
	Visible     *bool
	Prompt      *string
	IsLoading   *bool
	Result      *types.PatchResult
	ClearResult bool
}

// Apply returns a copy of p with u applied and validated.
func (p Patch) Apply(u PatchUpdate) (Patch, error) {
	out := p.Clone()
	if u.Name != nil {
		out.Name = *u.Name
	}
	if u.Visible != nil {
		out.Visible = *u.Visible
	}
	if u.Prompt != nil {
		out.Prompt = *u.Prompt
	}
	if u.IsLoading != nil {
		out.IsLoading = *u.IsLoading
	}
	if u.ClearResult {
		out.Result = nil
	}
	if u.Result != nil {
		r := *u.Result
		out.Result = &r
	}
	if err := out.Validate(); err != nil {
		return Patch{}, err
	}
	return out, nil
}
