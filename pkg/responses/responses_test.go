package responses

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomcpgo/photo_edit_session/pkg/adjust"
	"github.com/gomcpgo/photo_edit_session/pkg/ai"
	"github.com/gomcpgo/photo_edit_session/pkg/mask"
	"github.com/gomcpgo/photo_edit_session/pkg/session"
	"github.com/gomcpgo/photo_edit_session/pkg/types"
)

func decode(t *testing.T, s string) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(s), &out))
	return out
}

func TestSummarize(t *testing.T) {
	set, err := adjust.New().SetScalar(adjust.Exposure, 0.75)
	require.NoError(t, err)
	set, err = set.SetScalar(adjust.Rating, 4)
	require.NoError(t, err)
	set, _, _, err = set.AddMaskContainer(mask.KindRadial, types.Size{Width: 100, Height: 100})
	require.NoError(t, err)

	s, err := Summarize(set)
	require.NoError(t, err)
	assert.Equal(t, Scalars{adjust.Exposure: 0.75}, s.Scalars)
	assert.Equal(t, 4, s.Rating)
	assert.Equal(t, 8, s.CurvePoints, "four neutral two-point curves")
	assert.Len(t, s.Masks, 1)
	assert.Empty(t, s.Patches)

	fp, err := set.Fingerprint()
	require.NoError(t, err)
	assert.Equal(t, fp, s.Fingerprint)
}

func TestBuildEditResponse(t *testing.T) {
	out := decode(t, BuildEditResponse("inspect", "/photos/a.jpg", nil))
	assert.Equal(t, true, out["success"])
	assert.Equal(t, false, out["edited"])
	assert.NotContains(t, out, "edit")

	set := adjust.New()
	out = decode(t, BuildEditResponse("inspect", "/photos/a.jpg", &set))
	assert.Equal(t, true, out["edited"])
	assert.Contains(t, out, "edit")
}

func TestBuildErrorResponse(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantType string
	}{
		{
			name:     "edit error",
			err:      adjust.EditError{Code: adjust.CodeNotFound, Message: "mask \"x\" not found"},
			wantType: adjust.CodeNotFound,
		},
		{
			name:     "wrapped ai error",
			err:      fmt.Errorf("mask generation: %w", ai.Error{Code: ai.CodeTimeout, Message: "took too long"}),
			wantType: ai.CodeTimeout,
		},
		{
			name:     "no image",
			err:      session.ErrNoImage,
			wantType: "no_image",
		},
		{
			name:     "anything else",
			err:      fmt.Errorf("disk on fire"),
			wantType: "internal",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := decode(t, BuildErrorResponse("replay", tt.err))
			assert.Equal(t, false, out["success"])
			e := out["error"].(map[string]interface{})
			assert.Equal(t, tt.wantType, e["type"])
			assert.Equal(t, tt.err.Error(), e["message"])
			assert.NotEmpty(t, e["suggestion"])
		})
	}
}

func TestBuildSessionResponse(t *testing.T) {
	st := session.Status{
		Path:         "/photos/a.jpg",
		OriginalSize: types.Size{Width: 4000, Height: 3000},
		HistoryLen:   3,
		Cursor:       2,
		CanUndo:      true,
		Generating:   []string{"sub-1"},
	}
	out := decode(t, BuildSessionResponse("replay", st, adjust.New()))
	assert.Equal(t, true, out["success"])
	history := out["history"].(map[string]interface{})
	assert.Equal(t, float64(3), history["entries"])
	assert.Equal(t, []interface{}{"sub-1"}, out["generating"])
	assert.NotContains(t, out, "notices")
}
