package session

import (
	"github.com/gomcpgo/photo_edit_session/pkg/adjust"
	"github.com/gomcpgo/photo_edit_session/pkg/mask"
	"github.com/gomcpgo/photo_edit_session/pkg/types"
)

// SetScalar sets one global slider.
func (s *Session) SetScalar(key adjust.Scalar, value float64) error {
	return s.apply(func(a adjust.AdjustmentSet) (adjust.AdjustmentSet, error) {
		return a.SetScalar(key, value)
	})
}

// SetHSL sets the hue, saturation and luminance shifts of one band.
func (s *Session) SetHSL(band adjust.HueBand, v adjust.HSL) error {
	return s.apply(func(a adjust.AdjustmentSet) (adjust.AdjustmentSet, error) {
		return a.SetHSL(band, v)
	})
}

func (s *Session) SetCurve(ch adjust.Channel, pts []types.Point) error {
	return s.apply(func(a adjust.AdjustmentSet) (adjust.AdjustmentSet, error) {
		return a.SetCurve(ch, pts)
	})
}

func (s *Session) AddCurvePoint(ch adjust.Channel, p types.Point) error {
	return s.apply(func(a adjust.AdjustmentSet) (adjust.AdjustmentSet, error) {
		return a.AddCurvePoint(ch, p)
	})
}

func (s *Session) RemoveCurvePoint(ch adjust.Channel, index int) error {
	return s.apply(func(a adjust.AdjustmentSet) (adjust.AdjustmentSet, error) {
		return a.RemoveCurvePoint(ch, index)
	})
}

// SetGeometry changes crop, rotation, flips or orientation.
func (s *Session) SetGeometry(u adjust.GeometryUpdate) error {
	return s.apply(func(a adjust.AdjustmentSet) (adjust.AdjustmentSet, error) {
		return a.SetGeometry(u)
	})
}

// AddMaskContainer adds a container seeded with one sub-mask of kind and
// selects both. AI kinds that need no input start generating at once.
func (s *Session) AddMaskContainer(kind mask.Kind) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var containerID, subID string
	err := s.applyLocked(func(a adjust.AdjustmentSet) (adjust.AdjustmentSet, error) {
		next, cid, sid, err := a.AddMaskContainer(kind, s.originalSize)
		containerID, subID = cid, sid
		return next, err
	})
	if err != nil {
		return "", err
	}
	s.selection = Selection{MaskID: containerID, SubMaskID: subID}
	s.autoGenerateLocked(kind, subID)
	return containerID, nil
}

func (s *Session) RemoveMaskContainer(id string) error {
	return s.apply(func(a adjust.AdjustmentSet) (adjust.AdjustmentSet, error) {
		return a.RemoveMaskContainer(id)
	})
}

// UpdateMaskContainer applies a partial update. Hiding a container drops
// it from the selection.
func (s *Session) UpdateMaskContainer(id string, u mask.ContainerUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.applyLocked(func(a adjust.AdjustmentSet) (adjust.AdjustmentSet, error) {
		return a.UpdateMaskContainer(id, u)
	})
	if err != nil {
		return err
	}
	if u.Visible != nil && !*u.Visible {
		s.deselectLocked(s.history.Live(), id)
	}
	return nil
}

// DuplicateMaskContainer copies a container with fresh ids and selects the
// copy.
func (s *Session) DuplicateMaskContainer(id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var newID string
	err := s.applyLocked(func(a adjust.AdjustmentSet) (adjust.AdjustmentSet, error) {
		next, nid, err := a.DuplicateMaskContainer(id)
		newID = nid
		return next, err
	})
	if err != nil {
		return "", err
	}
	s.selection = Selection{MaskID: newID}
	return newID, nil
}

func (s *Session) MoveMaskContainer(id string, index int) error {
	return s.apply(func(a adjust.AdjustmentSet) (adjust.AdjustmentSet, error) {
		return a.MoveMaskContainer(id, index)
	})
}

// AddSubMask adds a sub-mask to a container or patch and selects it.
func (s *Session) AddSubMask(ownerID string, kind mask.Kind) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var subID string
	err := s.applyLocked(func(a adjust.AdjustmentSet) (adjust.AdjustmentSet, error) {
		next, sid, err := a.AddSubMask(ownerID, kind, s.originalSize)
		subID = sid
		return next, err
	})
	if err != nil {
		return "", err
	}
	if _, ok := s.history.Live().Patch(ownerID); ok {
		s.selection = Selection{PatchID: ownerID, SubMaskID: subID}
	} else {
		s.selection = Selection{MaskID: ownerID, SubMaskID: subID}
	}
	s.autoGenerateLocked(kind, subID)
	return subID, nil
}

func (s *Session) RemoveSubMask(id string) error {
	return s.apply(func(a adjust.AdjustmentSet) (adjust.AdjustmentSet, error) {
		return a.RemoveSubMask(id)
	})
}

// UpdateSubMask applies a partial update. Drawing a box on a subject mask
// starts its generation; drawing one on a quick-erase patch starts the
// erase.
func (s *Session) UpdateSubMask(id string, u mask.SubMaskUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.applyLocked(func(a adjust.AdjustmentSet) (adjust.AdjustmentSet, error) {
		return a.UpdateSubMask(id, u)
	})
	if err != nil {
		return err
	}
	live := s.history.Live()
	if u.Visible != nil && !*u.Visible {
		s.deselectLocked(live, id)
	}
	if u.Box == nil || s.opts.AI == nil {
		return nil
	}

	sub, ownerID, _ := live.SubMask(id)
	if p, ok := live.Patch(ownerID); ok && mask.PatchNeedsBox(p.Kind) {
		return s.generatePatchLocked(ownerID)
	}
	if mask.NeedsBox(sub.Kind()) {
		return s.generateMaskLocked(id)
	}
	return nil
}

// AddAiPatch adds a patch seeded for its kind and selects it.
func (s *Session) AddAiPatch(kind mask.PatchKind) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var patchID string
	err := s.applyLocked(func(a adjust.AdjustmentSet) (adjust.AdjustmentSet, error) {
		next, pid, err := a.AddAiPatch(kind, s.originalSize)
		patchID = pid
		return next, err
	})
	if err != nil {
		return "", err
	}
	sel := Selection{PatchID: patchID}
	if p, ok := s.history.Live().Patch(patchID); ok && len(p.SubMasks) > 0 {
		sel.SubMaskID = p.SubMasks[0].ID
	}
	s.selection = sel
	return patchID, nil
}

func (s *Session) RemoveAiPatch(id string) error {
	return s.apply(func(a adjust.AdjustmentSet) (adjust.AdjustmentSet, error) {
		return a.RemoveAiPatch(id)
	})
}

// UpdateAiPatch applies a partial update. Hiding a patch drops it from the
// selection.
func (s *Session) UpdateAiPatch(id string, u mask.PatchUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.applyLocked(func(a adjust.AdjustmentSet) (adjust.AdjustmentSet, error) {
		return a.UpdateAiPatch(id, u)
	})
	if err != nil {
		return err
	}
	if u.Visible != nil && !*u.Visible {
		s.deselectLocked(s.history.Live(), id)
	}
	return nil
}

// autoGenerateLocked starts generation for AI kinds that need no user
// input. A failure to start is reported as a notice; the edit stands.
func (s *Session) autoGenerateLocked(kind mask.Kind, subID string) {
	if !mask.NeedsGeneration(kind) {
		return
	}
	if err := s.generateMaskLocked(subID); err != nil {
		s.logger.Warn("mask generation not started", "sub_mask_id", subID, "error", err)
		s.notices.add(SourceAI, "mask generation not started: "+err.Error())
	}
}
