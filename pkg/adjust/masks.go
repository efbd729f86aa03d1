package adjust

import (
	"fmt"

	"github.com/gomcpgo/photo_edit_session/pkg/mask"
	"github.com/gomcpgo/photo_edit_session/pkg/types"
)

// AddMaskContainer appends a container seeded with one sub-mask of kind and
// returns the ids of both.
func (a AdjustmentSet) AddMaskContainer(kind mask.Kind, size types.Size) (AdjustmentSet, string, string, error) {
	c, err := mask.NewContainer(fmt.Sprintf("Mask %d", len(a.Masks)+1), kind, size)
	if err != nil {
		return a, "", "", invalid(CodeInvalidInput, "add mask", err)
	}
	out := a.Clone()
	out.Masks = append(out.Masks, c)
	return out, c.ID, c.SubMasks[0].ID, nil
}

// RemoveMaskContainer drops a container and all of its sub-masks.
func (a AdjustmentSet) RemoveMaskContainer(id string) (AdjustmentSet, error) {
	i := a.containerIndex(id)
	if i < 0 {
		return a, notFound("mask", id)
	}
	out := a.Clone()
	out.Masks = append(out.Masks[:i:i], out.Masks[i+1:]...)
	return out, nil
}

// UpdateMaskContainer applies a partial update to one container.
func (a AdjustmentSet) UpdateMaskContainer(id string, u mask.ContainerUpdate) (AdjustmentSet, error) {
	i := a.containerIndex(id)
	if i < 0 {
		return a, notFound("mask", id)
	}
	c, err := a.Masks[i].Apply(u)
	if err != nil {
		return a, invalid(CodeInvalidInput, "update mask", err)
	}
	out := a.Clone()
	out.Masks[i] = c
	return out, nil
}

// DuplicateMaskContainer inserts a deep copy with fresh ids directly after
// the source and returns the new container's id.
func (a AdjustmentSet) DuplicateMaskContainer(id string) (AdjustmentSet, string, error) {
	i := a.containerIndex(id)
	if i < 0 {
		return a, "", notFound("mask", id)
	}
	dup := a.Masks[i].Duplicate()
	dup.Name = a.Masks[i].Name + " copy"

	out := a.Clone()
	masks := make([]mask.Container, 0, len(out.Masks)+1)
	masks = append(masks, out.Masks[:i+1]...)
	masks = append(masks, dup)
	masks = append(masks, out.Masks[i+1:]...)
	out.Masks = masks
	return out, dup.ID, nil
}

// MoveMaskContainer moves a container to index, clamped to the list bounds.
func (a AdjustmentSet) MoveMaskContainer(id string, index int) (AdjustmentSet, error) {
	from := a.containerIndex(id)
	if from < 0 {
		return a, notFound("mask", id)
	}
	if index < 0 {
		index = 0
	}
	if index >= len(a.Masks) {
		index = len(a.Masks) - 1
	}
	out := a.Clone()
	c := out.Masks[from]
	rest := append(out.Masks[:from:from], out.Masks[from+1:]...)
	masks := make([]mask.Container, 0, len(a.Masks))
	masks = append(masks, rest[:index]...)
	masks = append(masks, c)
	masks = append(masks, rest[index:]...)
	out.Masks = masks
	return out, nil
}

// AddSubMask appends a default sub-mask of kind to the container or patch
// identified by ownerID and returns the new sub-mask's id.
func (a AdjustmentSet) AddSubMask(ownerID string, kind mask.Kind, size types.Size) (AdjustmentSet, string, error) {
	sub, err := mask.NewSubMask(kind, size)
	if err != nil {
		return a, "", invalid(CodeInvalidInput, "add sub-mask", err)
	}
	out := a.Clone()
	if i := out.containerIndex(ownerID); i >= 0 {
		out.Masks[i].SubMasks = append(out.Masks[i].SubMasks, sub)
		return out, sub.ID, nil
	}
	if i := out.patchIndex(ownerID); i >= 0 {
		out.AiPatches[i].SubMasks = append(out.AiPatches[i].SubMasks, sub)
		return out, sub.ID, nil
	}
	return a, "", notFound("mask", ownerID)
}

// RemoveSubMask drops a sub-mask from whichever container or patch owns it.
func (a AdjustmentSet) RemoveSubMask(id string) (AdjustmentSet, error) {
	out := a.Clone()
	subs, i := out.subMaskSlot(id)
	if subs == nil {
		return a, notFound("sub-mask", id)
	}
	*subs = append((*subs)[:i:i], (*subs)[i+1:]...)
	return out, nil
}

// UpdateSubMask applies a partial update to a sub-mask wherever it lives.
func (a AdjustmentSet) UpdateSubMask(id string, u mask.SubMaskUpdate) (AdjustmentSet, error) {
	out := a.Clone()
	subs, i := out.subMaskSlot(id)
	if subs == nil {
		return a, notFound("sub-mask", id)
	}
	s, err := (*subs)[i].Apply(u)
	if err != nil {
		return a, invalid(CodeInvalidInput, "update sub-mask", err)
	}
	(*subs)[i] = s
	return out, nil
}

// AddAiPatch appends a patch of kind and returns its id.
func (a AdjustmentSet) AddAiPatch(kind mask.PatchKind, size types.Size) (AdjustmentSet, string, error) {
	p, err := mask.NewPatch(fmt.Sprintf("Patch %d", len(a.AiPatches)+1), kind, size)
	if err != nil {
		return a, "", invalid(CodeInvalidInput, "add patch", err)
	}
	out := a.Clone()
	out.AiPatches = append(out.AiPatches, p)
	return out, p.ID, nil
}

// RemoveAiPatch drops a patch.
func (a AdjustmentSet) RemoveAiPatch(id string) (AdjustmentSet, error) {
	i := a.patchIndex(id)
	if i < 0 {
		return a, notFound("patch", id)
	}
	out := a.Clone()
	out.AiPatches = append(out.AiPatches[:i:i], out.AiPatches[i+1:]...)
	return out, nil
}

// UpdateAiPatch applies a partial update to a patch.
func (a AdjustmentSet) UpdateAiPatch(id string, u mask.PatchUpdate) (AdjustmentSet, error) {
	i := a.patchIndex(id)
	if i < 0 {
		return a, notFound("patch", id)
	}
	p, err := a.AiPatches[i].Apply(u)
	if err != nil {
		return a, invalid(CodeInvalidInput, "update patch", err)
	}
	out := a.Clone()
	out.AiPatches[i] = p
	return out, nil
}

// Container looks up a mask container by id.
func (a AdjustmentSet) Container(id string) (mask.Container, bool) {
	if i := a.containerIndex(id); i >= 0 {
		return a.Masks[i], true
	}
	return mask.Container{}, false
}

// Patch looks up an AI patch by id.
func (a AdjustmentSet) Patch(id string) (mask.Patch, bool) {
	if i := a.patchIndex(id); i >= 0 {
		return a.AiPatches[i], true
	}
	return mask.Patch{}, false
}

// SubMask looks up a sub-mask by id and reports the id of its owner.
func (a AdjustmentSet) SubMask(id string) (mask.SubMask, string, bool) {
	for _, c := range a.Masks {
		for _, s := range c.SubMasks {
			if s.ID == id {
				return s, c.ID, true
			}
		}
	}
	for _, p := range a.AiPatches {
		for _, s := range p.SubMasks {
			if s.ID == id {
				return s, p.ID, true
			}
		}
	}
	return mask.SubMask{}, "", false
}

// HasID reports whether any container, patch or sub-mask carries id.
func (a AdjustmentSet) HasID(id string) bool {
	if a.containerIndex(id) >= 0 || a.patchIndex(id) >= 0 {
		return true
	}
	_, _, ok := a.SubMask(id)
	return ok
}

func (a AdjustmentSet) containerIndex(id string) int {
	for i, c := range a.Masks {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (a AdjustmentSet) patchIndex(id string) int {
	for i, p := range a.AiPatches {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// subMaskSlot returns the slice holding sub-mask id and its index in it.
// The receiver must already be a private clone.
func (a *AdjustmentSet) subMaskSlot(id string) (*[]mask.SubMask, int) {
	for ci := range a.Masks {
		for i, s := range a.Masks[ci].SubMasks {
			if s.ID == id {
				return &a.Masks[ci].SubMasks, i
			}
		}
	}
	for pi := range a.AiPatches {
		for i, s := range a.AiPatches[pi].SubMasks {
			if s.ID == id {
				return &a.AiPatches[pi].SubMasks, i
			}
		}
	}
	return nil, -1
}
