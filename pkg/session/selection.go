package session

import (
	"fmt"

	"github.com/gomcpgo/photo_edit_session/pkg/adjust"
)

// Selection holds the ids of the entities being edited. Empty means none.
type Selection struct {
	MaskID    string `json:"maskId,omitempty"`
	SubMaskID string `json:"subMaskId,omitempty"`
	PatchID   string `json:"patchId,omitempty"`
}

// Selection returns the current selection.
func (s *Session) Selection() Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection
}

// Select replaces the selection. Every non-empty id must exist, and a
// selected sub-mask must belong to the selected mask or patch when one is
// given.
func (s *Session) Select(sel Selection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	live := s.history.Live()

	if sel.MaskID != "" {
		if _, ok := live.Container(sel.MaskID); !ok {
			return notFound("mask container", sel.MaskID)
		}
	}
	if sel.PatchID != "" {
		if _, ok := live.Patch(sel.PatchID); !ok {
			return notFound("AI patch", sel.PatchID)
		}
	}
	if sel.SubMaskID != "" {
		_, owner, ok := live.SubMask(sel.SubMaskID)
		if !ok {
			return notFound("sub-mask", sel.SubMaskID)
		}
		if (sel.MaskID != "" || sel.PatchID != "") && owner != sel.MaskID && owner != sel.PatchID {
			return adjust.EditError{
				Code:    adjust.CodeInvalidInput,
				Message: "selected sub-mask belongs to a different owner",
				Details: map[string]interface{}{"sub_mask_id": sel.SubMaskID, "owner_id": owner},
			}
		}
	}
	s.selection = sel
	return nil
}

// ClearSelection deselects everything.
func (s *Session) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection = Selection{}
}

// pruneSelectionLocked drops selected ids that no longer exist in set.
func (s *Session) pruneSelectionLocked(set adjust.AdjustmentSet) {
	if s.selection.MaskID != "" {
		if _, ok := set.Container(s.selection.MaskID); !ok {
			s.selection.MaskID = ""
		}
	}
	if s.selection.PatchID != "" {
		if _, ok := set.Patch(s.selection.PatchID); !ok {
			s.selection.PatchID = ""
		}
	}
	if s.selection.SubMaskID != "" {
		if _, _, ok := set.SubMask(s.selection.SubMaskID); !ok {
			s.selection.SubMaskID = ""
		}
	}
}

// deselectLocked clears every selected id equal to id, along with a
// selected sub-mask owned by id.
func (s *Session) deselectLocked(set adjust.AdjustmentSet, id string) {
	if s.selection.SubMaskID != "" {
		if _, owner, ok := set.SubMask(s.selection.SubMaskID); ok && owner == id {
			s.selection.SubMaskID = ""
		}
	}
	switch id {
	case s.selection.MaskID:
		s.selection.MaskID = ""
	case s.selection.PatchID:
		s.selection.PatchID = ""
	case s.selection.SubMaskID:
		s.selection.SubMaskID = ""
	}
}

func notFound(what, id string) error {
	return adjust.EditError{
		Code:    adjust.CodeNotFound,
		Message: fmt.Sprintf("%s %q not found", what, id),
		Details: map[string]interface{}{"id": id},
	}
}
