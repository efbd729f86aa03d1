package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gomcpgo/photo_edit_session/pkg/adjust"
	"github.com/gomcpgo/photo_edit_session/pkg/client"
	"github.com/gomcpgo/photo_edit_session/pkg/mask"
	"github.com/gomcpgo/photo_edit_session/pkg/types"
)

// aiOp is one running AI round trip, keyed in Session.inflight by the id of
// the sub-mask or patch it will write to.
type aiOp struct {
	seq     uint64
	kind    string
	started time.Time
	cancel  context.CancelFunc
}

const (
	opMask  = "mask"
	opPatch = "patch"
)

// editFunc transforms the live edit state.
type editFunc func(adjust.AdjustmentSet) (adjust.AdjustmentSet, error)

// GenerateMask (re)runs AI generation for an AI sub-mask. The result is
// applied when it arrives, unless the sub-mask is gone by then.
func (s *Session) GenerateMask(subMaskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.readyLocked(); err != nil {
		return err
	}
	return s.generateMaskLocked(subMaskID)
}

// GeneratePatch runs generative fill for a patch. The patch shows as loading
// until the result arrives or the request fails.
func (s *Session) GeneratePatch(patchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.readyLocked(); err != nil {
		return err
	}
	return s.generatePatchLocked(patchID)
}

func (s *Session) generateMaskLocked(subID string) error {
	if s.opts.AI == nil {
		return ErrAIUnavailable
	}
	sub, _, ok := s.history.Live().SubMask(subID)
	if !ok {
		return notFound("sub-mask", subID)
	}
	shape, ok := sub.Shape.(mask.AIMask)
	if !ok {
		return adjust.EditError{
			Code:    adjust.CodeInvalidInput,
			Message: fmt.Sprintf("%s sub-mask is not generated", sub.Kind()),
			Details: map[string]interface{}{"sub_mask_id": subID},
		}
	}
	if mask.NeedsBox(shape.Variant) && shape.Box == nil {
		return adjust.EditError{
			Code:    adjust.CodeInvalidInput,
			Message: "draw a bounding box before generating a subject mask",
			Details: map[string]interface{}{"sub_mask_id": subID},
		}
	}

	req := client.MaskRequest{Kind: shape.Variant, Box: shape.Box}
	s.startAILocked(subID, opMask, s.opts.Timeouts.MaskTimeout,
		func(ctx context.Context, image string) (editFunc, error) {
			req.Image = image
			res, err := s.opts.AI.GenerateMask(ctx, req)
			if err != nil {
				return nil, err
			}
			return func(a adjust.AdjustmentSet) (adjust.AdjustmentSet, error) {
				return a.UpdateSubMask(subID, mask.SubMaskUpdate{Generated: &res.Generated})
			}, nil
		}, nil)
	return nil
}

func (s *Session) generatePatchLocked(patchID string) error {
	if s.opts.AI == nil {
		return ErrAIUnavailable
	}
	p, ok := s.history.Live().Patch(patchID)
	if !ok {
		return notFound("AI patch", patchID)
	}
	if p.Kind == mask.PatchGenerativeReplace && strings.TrimSpace(p.Prompt) == "" {
		return adjust.EditError{
			Code:    adjust.CodeInvalidInput,
			Message: "a prompt is required for generative replace",
			Details: map[string]interface{}{"patch_id": patchID},
		}
	}
	var box *types.Rect
	if b, ok := p.Box(); ok {
		box = &b
	}
	if mask.PatchNeedsBox(p.Kind) && box == nil {
		return adjust.EditError{
			Code:    adjust.CodeInvalidInput,
			Message: "draw a bounding box before erasing",
			Details: map[string]interface{}{"patch_id": patchID},
		}
	}

	loading, done := true, false
	err := s.applyLocked(func(a adjust.AdjustmentSet) (adjust.AdjustmentSet, error) {
		return a.UpdateAiPatch(patchID, mask.PatchUpdate{IsLoading: &loading})
	})
	if err != nil {
		return err
	}

	req := client.PatchRequest{
		Kind:     p.Kind,
		Size:     s.originalSize,
		Prompt:   p.Prompt,
		SubMasks: p.SubMasks,
		Box:      box,
	}
	s.startAILocked(patchID, opPatch, s.opts.Timeouts.PatchTimeout,
		func(ctx context.Context, image string) (editFunc, error) {
			req.Image = image
			res, err := s.opts.AI.GenerativeReplace(ctx, req)
			if err != nil {
				return nil, err
			}
			return func(a adjust.AdjustmentSet) (adjust.AdjustmentSet, error) {
				return a.UpdateAiPatch(patchID, mask.PatchUpdate{Result: &res, IsLoading: &done})
			}, nil
		},
		func(a adjust.AdjustmentSet) (adjust.AdjustmentSet, error) {
			return a.UpdateAiPatch(patchID, mask.PatchUpdate{IsLoading: &done})
		})
	return nil
}

// startAILocked supersedes any request already writing to target and runs
// call in the background. The edit call returns is applied on success;
// onFail, when set, is applied on failure.
func (s *Session) startAILocked(target, kind string, timeout time.Duration,
	call func(ctx context.Context, image string) (editFunc, error), onFail editFunc) {

	s.cancelAILocked(target)
	s.aiSeq++
	seq := s.aiSeq
	ctx, cancel := context.WithTimeout(s.baseCtx, timeout)
	s.inflight[target] = &aiOp{seq: seq, kind: kind, started: time.Now(), cancel: cancel}
	path := s.path

	s.logger.Info("AI request started", "target", target, "op", kind)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()

		var update editFunc
		image, err := s.opts.ImageSource(path)
		if err != nil {
			err = fmt.Errorf("failed to read source image: %w", err)
		} else {
			update, err = call(ctx, image)
		}
		s.finishAI(target, seq, path, update, onFail, err)
	}()
}

func (s *Session) finishAI(target string, seq uint64, path string, update, onFail editFunc, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	op, ok := s.inflight[target]
	if !ok || op.seq != seq || s.closed || s.path != path {
		s.logger.Debug("discarding superseded AI result", "target", target)
		return
	}
	delete(s.inflight, target)
	elapsed := time.Since(op.started)

	if err != nil {
		s.logger.Warn("AI request failed", "target", target, "op", op.kind, "elapsed", elapsed, "error", err)
		msg := fmt.Sprintf("%s generation failed: %v", op.kind, err)
		if errors.Is(err, context.DeadlineExceeded) {
			msg = fmt.Sprintf("%s generation timed out after %s", op.kind, elapsed.Round(time.Second))
		}
		s.notices.add(SourceAI, msg)
		if onFail != nil {
			if err := s.applyLocked(onFail); err != nil && !adjust.IsCode(err, adjust.CodeNotFound) {
				s.logger.Warn("failed to clear AI state", "target", target, "error", err)
			}
		}
		return
	}

	if err := s.applyLocked(update); err != nil {
		if adjust.IsCode(err, adjust.CodeNotFound) {
			s.logger.Debug("AI target removed before result arrived", "target", target)
			return
		}
		s.logger.Warn("failed to apply AI result", "target", target, "error", err)
		s.notices.add(SourceAI, fmt.Sprintf("could not apply %s result: %v", op.kind, err))
		return
	}
	s.logger.Info("AI request completed", "target", target, "op", op.kind, "elapsed", elapsed)
}

// cancelAILocked cancels the request writing to target, or every request
// when target is empty.
func (s *Session) cancelAILocked(target string) {
	for id, op := range s.inflight {
		if target == "" || id == target {
			op.cancel()
			delete(s.inflight, id)
		}
	}
}

// cancelOrphanedAILocked cancels requests whose target no longer exists.
func (s *Session) cancelOrphanedAILocked(set adjust.AdjustmentSet) {
	for id, op := range s.inflight {
		if !set.HasID(id) {
			s.logger.Debug("cancelling AI request for removed target", "target", id)
			op.cancel()
			delete(s.inflight, id)
		}
	}
}

func (s *Session) generatingLocked() []string {
	if len(s.inflight) == 0 {
		return nil
	}
	out := make([]string, 0, len(s.inflight))
	for id := range s.inflight {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
