// Package responses renders command results as indented JSON documents.
package responses

import (
	"encoding/json"
	"errors"

	"github.com/gomcpgo/photo_edit_session/pkg/adjust"
	"github.com/gomcpgo/photo_edit_session/pkg/ai"
	"github.com/gomcpgo/photo_edit_session/pkg/session"
)

// EditSummary describes an edit state without its rasters.
type EditSummary struct {
	Fingerprint      string   `json:"fingerprint"`
	Rating           int      `json:"rating"`
	Scalars          Scalars  `json:"scalars"`
	CurvePoints      int      `json:"curve_points"`
	Cropped          bool     `json:"cropped"`
	OrientationSteps int      `json:"orientation_steps"`
	Masks            []string `json:"masks,omitempty"`
	Patches          []string `json:"patches,omitempty"`
}

// Scalars lists the non-neutral global sliders by key.
type Scalars map[adjust.Scalar]float64

// Summarize builds an EditSummary of set.
func Summarize(set adjust.AdjustmentSet) (EditSummary, error) {
	fp, err := set.Fingerprint()
	if err != nil {
		return EditSummary{}, err
	}
	s := EditSummary{
		Fingerprint:      fp,
		Rating:           set.Rating,
		Scalars:          Scalars{},
		Cropped:          set.Crop != nil,
		OrientationSteps: set.OrientationSteps,
	}
	for _, key := range adjust.Scalars {
		if v, ok := set.Scalar(key); ok && v != 0 {
			s.Scalars[key] = v
		}
	}
	for _, ch := range adjust.Channels {
		s.CurvePoints += len(set.Curves.Points(ch))
	}
	for _, c := range set.Masks {
		s.Masks = append(s.Masks, c.Name)
	}
	for _, p := range set.AiPatches {
		s.Patches = append(s.Patches, p.Name)
	}
	return s, nil
}

// BuildSessionResponse creates the response for a finished session run.
func BuildSessionResponse(operation string, st session.Status, live adjust.AdjustmentSet) string {
	summary, err := Summarize(live)
	if err != nil {
		return BuildErrorResponse(operation, err)
	}
	response := map[string]interface{}{
		"success":   true,
		"operation": operation,
		"image": map[string]interface{}{
			"path":   st.Path,
			"width":  st.OriginalSize.Width,
			"height": st.OriginalSize.Height,
		},
		"edit": summary,
		"history": map[string]interface{}{
			"entries":  st.HistoryLen,
			"cursor":   st.Cursor,
			"pending":  st.Pending,
			"can_undo": st.CanUndo,
			"can_redo": st.CanRedo,
		},
		"render": map[string]interface{}{
			"mode":               st.Render.Mode,
			"zoom":               st.Render.View.Zoom,
			"preview_requests":   st.Render.PreviewRequests,
			"full_requests":      st.Render.FullRequests,
			"cache_hits":         st.Render.CacheHits,
			"stale_discards":     st.Render.StaleDiscards,
			"failures":           st.Render.Failures,
			"cached_fingerprint": st.Render.CachedFingerprint,
		},
	}
	if len(st.Generating) > 0 {
		response["generating"] = st.Generating
	}
	if len(st.Notices) > 0 {
		response["notices"] = st.Notices
	}
	return marshal(response)
}

// BuildEditResponse creates the response describing a stored edit.
func BuildEditResponse(operation, path string, set *adjust.AdjustmentSet) string {
	response := map[string]interface{}{
		"success":   true,
		"operation": operation,
		"path":      path,
		"edited":    set != nil,
	}
	if set != nil {
		summary, err := Summarize(*set)
		if err != nil {
			return BuildErrorResponse(operation, err)
		}
		response["edit"] = summary
	}
	return marshal(response)
}

// BuildErrorResponse creates a standardized error response
func BuildErrorResponse(operation string, err error) string {
	errorType, details := classify(err)
	response := map[string]interface{}{
		"success":   false,
		"operation": operation,
		"error": map[string]interface{}{
			"type":       errorType,
			"message":    err.Error(),
			"details":    details,
			"suggestion": GetSuggestion(errorType),
		},
	}
	return marshal(response)
}

func classify(err error) (string, map[string]interface{}) {
	var editErr adjust.EditError
	if errors.As(err, &editErr) {
		return editErr.Code, editErr.Details
	}
	var aiErr ai.Error
	if errors.As(err, &aiErr) {
		return aiErr.Code, aiErr.Details
	}
	switch {
	case errors.Is(err, session.ErrNoImage):
		return "no_image", nil
	case errors.Is(err, session.ErrAIUnavailable):
		return "ai_unavailable", nil
	}
	return "internal", nil
}

// GetSuggestion provides helpful suggestions for different error types
func GetSuggestion(errorType string) string {
	suggestions := map[string]string{
		adjust.CodeInvalidInput:    "Check the parameter values and ensure they are within range",
		adjust.CodeInvalidCurve:    "Curve points need ascending x values and fixed endpoints at 0 and 255",
		adjust.CodeInvalidGeometry: "Crop rectangles must have a positive size",
		adjust.CodeNotFound:        "The mask, sub-mask or patch no longer exists; refresh the selection",
		ai.CodePredictionFailed:    "Try again, or check the Replicate dashboard for the model status",
		ai.CodeTimeout:             "The model is taking longer than expected; raise the AI timeout and retry",
		ai.CodeNoOutput:            "The model returned no image; try a different prompt or box",
		"no_image":                 "Open an image before editing",
		"ai_unavailable":           "Set REPLICATE_API_TOKEN to enable AI masks and patches",
	}
	if suggestion, ok := suggestions[errorType]; ok {
		return suggestion
	}
	return "Please check your input and try again"
}

func marshal(v interface{}) string {
	jsonBytes, _ := json.MarshalIndent(v, "", "  ")
	return string(jsonBytes)
}
