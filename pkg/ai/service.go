package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gomcpgo/photo_edit_session/pkg/client"
	"github.com/gomcpgo/photo_edit_session/pkg/mask"
	"github.com/gomcpgo/photo_edit_session/pkg/types"
)

// cancelTimeout bounds the remote cancel issued after a caller gives up.
const cancelTimeout = 10 * time.Second

// Service implements client.AIService on top of a prediction client.
type Service struct {
	client  client.PredictionClient
	pending *PendingTracker
	opts    Options
	logger  *slog.Logger
}

var _ client.AIService = (*Service)(nil)

// New creates a service that runs predictions through c.
func New(c client.PredictionClient, opts Options) *Service {
	opts.setDefaults()
	return &Service{
		client:  c,
		pending: NewPendingTracker(),
		opts:    opts,
		logger:  opts.Logger,
	}
}

// Pending returns the tracker of in-flight predictions.
func (s *Service) Pending() *PendingTracker {
	return s.pending
}

// GenerateMask segments req.Image according to the mask kind. Subject masks
// need a bounding box; foreground and sky masks cover the whole image.
func (s *Service) GenerateMask(ctx context.Context, req client.MaskRequest) (client.MaskResult, error) {
	if req.Image == "" {
		return client.MaskResult{}, Error{Code: CodeInvalidParameters, Message: "image is required"}
	}

	var model string
	input := map[string]interface{}{"image": req.Image}

	switch req.Kind {
	case mask.KindAIForeground:
		model = types.ModelRemoveBG
	case mask.KindAISky:
		model = types.ModelSkySegment
		input["only_mask"] = true
	case mask.KindAISubject:
		if req.Box == nil || !req.Box.Valid() {
			return client.MaskResult{}, Error{
				Code:    CodeInvalidParameters,
				Message: "subject mask needs a bounding box",
			}
		}
		model = types.ModelSegmentBoxed
		input["box"] = boxInput(*req.Box)
	default:
		return client.MaskResult{}, Error{
			Code:    CodeInvalidParameters,
			Message: fmt.Sprintf("%q is not an AI mask kind", req.Kind),
		}
	}

	generated, err := s.run(ctx, OpGenerateMask, model, input, s.opts.MaskTimeout)
	if err != nil {
		return client.MaskResult{}, err
	}
	return client.MaskResult{Generated: generated}, nil
}

// GenerativeReplace repaints the region covered by req.SubMasks. Quick
// erase fills the bounding box from its surroundings; generative replace
// follows req.Prompt.
func (s *Service) GenerativeReplace(ctx context.Context, req client.PatchRequest) (types.PatchResult, error) {
	if req.Image == "" {
		return types.PatchResult{}, Error{Code: CodeInvalidParameters, Message: "image is required"}
	}

	subs := req.SubMasks
	var model, op string
	switch req.Kind {
	case mask.PatchQuickErase:
		model, op = types.ModelQuickErase, OpQuickErase
		if req.Box != nil {
			subs = append(append([]mask.SubMask(nil), subs...), mask.SubMask{
				ID:      "box",
				Visible: true,
				Mode:    mask.ModeAdditive,
				Opacity: 1,
				Shape:   mask.AIMask{Variant: mask.KindAISubject, Box: req.Box},
			})
		}
	case mask.PatchGenerativeReplace:
		model, op = types.ModelInpainting, OpGenerativeReplace
	default:
		return types.PatchResult{}, Error{
			Code:    CodeInvalidParameters,
			Message: fmt.Sprintf("unknown patch kind %q", req.Kind),
		}
	}

	coverage, err := Rasterize(req.Size, subs)
	if err != nil {
		return types.PatchResult{}, err
	}
	if !Covered(coverage) {
		msg := "patch mask is empty"
		if mask.PatchNeedsBox(req.Kind) {
			msg = "quick erase needs a bounding box"
		}
		return types.PatchResult{}, Error{Code: CodeInvalidParameters, Message: msg}
	}
	maskURL, err := EncodePNGDataURL(coverage)
	if err != nil {
		return types.PatchResult{}, err
	}

	input := map[string]interface{}{
		"image": req.Image,
		"mask":  maskURL,
	}
	if req.Kind == mask.PatchGenerativeReplace {
		input["prompt"] = req.Prompt
		input["num_outputs"] = 1
	}

	color, err := s.run(ctx, op, model, input, s.opts.PatchTimeout)
	if err != nil {
		return types.PatchResult{}, err
	}
	return types.PatchResult{Color: color, Mask: maskURL}, nil
}

// run creates a prediction, waits for it and returns its output as a data
// URL. A caller that gives up cancels the prediction remotely.
func (s *Service) run(ctx context.Context, op, model string, input map[string]interface{}, timeout time.Duration) (string, error) {
	start := time.Now()

	prediction, err := s.client.CreatePrediction(ctx, model, input)
	if err != nil {
		return "", Error{
			Code:    CodePredictionFailed,
			Message: fmt.Sprintf("failed to create prediction: %v", err),
			Details: map[string]interface{}{"operation": op, "model": model},
			Err:     err,
		}
	}

	s.pending.Add(PendingOperation{
		PredictionID: prediction.ID,
		Operation:    op,
		Model:        model,
		StartTime:    start,
	})
	defer s.pending.Remove(prediction.ID)

	s.logger.Info("prediction started", "operation", op, "id", prediction.ID, "model", model,
		"estimated_seconds", EstimateRemainingTime(op, 0))

	result, err := s.client.WaitForCompletion(ctx, prediction.ID, timeout)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, client.ErrPredictionTimeout) {
			s.cancelRemote(ctx, prediction.ID)
		}
		return "", s.predictionError(ctx, prediction.ID, err)
	}

	url, err := extractOutputURL(result)
	if err != nil {
		return "", err
	}
	dataURL, err := toDataURL(ctx, s.opts.HTTPClient, url)
	if err != nil {
		return "", err
	}

	s.logger.Debug("prediction complete", "operation", op, "id", prediction.ID, "elapsed", time.Since(start))
	return dataURL, nil
}

func (s *Service) cancelRemote(ctx context.Context, predictionID string) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cancelTimeout)
	defer cancel()
	if err := s.client.CancelPrediction(cctx, predictionID); err != nil {
		s.logger.Warn("failed to cancel prediction", "id", predictionID, "error", err)
	}
}

func (s *Service) predictionError(ctx context.Context, predictionID string, err error) error {
	details := map[string]interface{}{"prediction_id": predictionID}
	switch {
	case ctx.Err() != nil || errors.Is(err, client.ErrPredictionCanceled):
		return Error{Code: CodeCanceled, Message: "prediction canceled", Details: details, Err: err}
	case errors.Is(err, client.ErrPredictionTimeout):
		return Error{Code: CodeTimeout, Message: err.Error(), Details: details, Err: err}
	default:
		return Error{Code: CodePredictionFailed, Message: err.Error(), Details: details, Err: err}
	}
}

// boxInput converts a rect to the x0,y0,x1,y1 form segmentation models take.
func boxInput(r types.Rect) []float64 {
	return []float64{r.X, r.Y, r.X + r.Width, r.Y + r.Height}
}
