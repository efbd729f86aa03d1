package adjust

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomcpgo/photo_edit_session/pkg/mask"
	"github.com/gomcpgo/photo_edit_session/pkg/types"
)

var imageSize = types.Size{Width: 4000, Height: 3000}

func TestNew_IsNeutralAndValid(t *testing.T) {
	a := New()
	require.NoError(t, a.Validate())
	assert.Equal(t, 0, a.Rating)
	for _, ch := range Channels {
		assert.Equal(t, []types.Point{{X: 0, Y: 0}, {X: 255, Y: 255}}, a.Curves.Points(ch))
	}
	assert.Empty(t, a.Masks)
	assert.Empty(t, a.AiPatches)
}

func TestSetScalar(t *testing.T) {
	base := New()

	tests := []struct {
		name  string
		key   Scalar
		value float64
		want  float64
	}{
		{"exposure in range", Exposure, 1.25, 1.25},
		{"exposure clamped high", Exposure, 9, 5},
		{"exposure clamped low", Exposure, -9, -5},
		{"contrast clamped", Contrast, -300, -100},
		{"vibrance", Vibrance, 40, 40},
		{"rating rounded", Rating, 3.6, 4},
		{"rating clamped", Rating, 12, 5},
		{"rating negative", Rating, -1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := base.SetScalar(tt.key, tt.value)
			require.NoError(t, err)
			got, ok := out.Scalar(tt.key)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	// The receiver never changes.
	assert.True(t, base.Equal(New()))
}

func TestSetScalar_RejectsBadInput(t *testing.T) {
	_, err := New().SetScalar(Exposure, math.NaN())
	assert.True(t, IsCode(err, CodeInvalidInput))

	_, err = New().SetScalar(Exposure, math.Inf(1))
	assert.True(t, IsCode(err, CodeInvalidInput))

	_, err = New().SetScalar("clarity", 10)
	assert.True(t, IsCode(err, CodeInvalidInput))
}

func TestSetHSL(t *testing.T) {
	out, err := New().SetHSL(Blues, HSL{Hue: 20, Saturation: -150, Luminance: 5})
	require.NoError(t, err)

	got, ok := out.HSL.Band(Blues)
	require.True(t, ok)
	assert.Equal(t, HSL{Hue: 20, Saturation: -100, Luminance: 5}, got)

	reds, _ := out.HSL.Band(Reds)
	assert.Equal(t, HSL{}, reds)

	_, err = New().SetHSL("teals", HSL{})
	assert.True(t, IsCode(err, CodeInvalidInput))
}

func TestSetCurve(t *testing.T) {
	out, err := New().SetCurve(ChannelRed, []types.Point{{X: 255, Y: 240}, {X: 0, Y: 10}, {X: 128, Y: 140}})
	require.NoError(t, err)
	assert.Equal(t, []types.Point{{X: 0, Y: 10}, {X: 128, Y: 140}, {X: 255, Y: 240}}, out.Curves.Points(ChannelRed))

	m, err := out.Curves.Evaluator(ChannelRed)
	require.NoError(t, err)
	assert.InDelta(t, 140, m.Eval(128), 1e-9)

	bad := []struct {
		name string
		pts  []types.Point
	}{
		{"single point", []types.Point{{X: 0, Y: 0}}},
		{"duplicate x", []types.Point{{X: 0, Y: 0}, {X: 100, Y: 10}, {X: 100, Y: 20}, {X: 255, Y: 255}}},
		{"missing right endpoint", []types.Point{{X: 0, Y: 0}, {X: 200, Y: 255}}},
		{"out of range", []types.Point{{X: 0, Y: 0}, {X: 255, Y: 300}}},
	}
	for _, tt := range bad {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New().SetCurve(ChannelLuma, tt.pts)
			assert.True(t, IsCode(err, CodeInvalidCurve), "got %v", err)
		})
	}
}

func TestCurvePoints_AddRemove(t *testing.T) {
	a, err := New().AddCurvePoint(ChannelLuma, types.Point{X: 64, Y: 80})
	require.NoError(t, err)
	assert.Len(t, a.Curves.Luma, 3)

	// Same x replaces.
	a, err = a.AddCurvePoint(ChannelLuma, types.Point{X: 64, Y: 50})
	require.NoError(t, err)
	assert.Equal(t, types.Point{X: 64, Y: 50}, a.Curves.Luma[1])

	_, err = a.RemoveCurvePoint(ChannelLuma, 0)
	assert.True(t, IsCode(err, CodeInvalidCurve))
	_, err = a.RemoveCurvePoint(ChannelLuma, 2)
	assert.True(t, IsCode(err, CodeInvalidCurve))
	_, err = a.RemoveCurvePoint(ChannelLuma, 7)
	assert.True(t, IsCode(err, CodeNotFound))

	a, err = a.RemoveCurvePoint(ChannelLuma, 1)
	require.NoError(t, err)
	assert.Equal(t, New().Curves.Luma, a.Curves.Luma)

	// Never below two points.
	_, err = a.RemoveCurvePoint(ChannelLuma, 1)
	assert.Error(t, err)
}

func TestSetGeometry(t *testing.T) {
	steps := -1
	a, err := New().SetGeometry(GeometryUpdate{OrientationSteps: &steps})
	require.NoError(t, err)
	assert.Equal(t, 3, a.OrientationSteps)

	steps = 5
	a, err = a.SetGeometry(GeometryUpdate{OrientationSteps: &steps})
	require.NoError(t, err)
	assert.Equal(t, 1, a.OrientationSteps)

	crop := types.Rect{X: 10, Y: 10, Width: 100, Height: 80}
	ratio := 1.5
	a, err = a.SetGeometry(GeometryUpdate{Crop: &crop, AspectRatio: &ratio})
	require.NoError(t, err)
	require.NotNil(t, a.Crop)
	assert.Equal(t, crop, *a.Crop)

	a, err = a.SetGeometry(GeometryUpdate{ClearCrop: true, ClearAspectRatio: true})
	require.NoError(t, err)
	assert.Nil(t, a.Crop)
	assert.Nil(t, a.AspectRatio)

	rot := 200.0
	_, err = a.SetGeometry(GeometryUpdate{Rotation: &rot})
	assert.True(t, IsCode(err, CodeInvalidGeometry))

	empty := types.Rect{X: 0, Y: 0, Width: 0, Height: 10}
	_, err = a.SetGeometry(GeometryUpdate{Crop: &empty})
	assert.True(t, IsCode(err, CodeInvalidGeometry))
}

func TestEffectiveSize(t *testing.T) {
	for steps, want := range map[int]types.Size{
		0: {Width: 4000, Height: 3000},
		1: {Width: 3000, Height: 4000},
		2: {Width: 4000, Height: 3000},
		3: {Width: 3000, Height: 4000},
	} {
		a := New()
		a.OrientationSteps = steps
		assert.Equal(t, want, a.EffectiveSize(imageSize), "steps %d", steps)
	}
}

func TestMaskContainers(t *testing.T) {
	base := New()
	a, cid, sid, err := base.AddMaskContainer(mask.KindRadial, imageSize)
	require.NoError(t, err)
	assert.Empty(t, base.Masks)
	require.Len(t, a.Masks, 1)
	assert.Equal(t, "Mask 1", a.Masks[0].Name)

	sub, owner, ok := a.SubMask(sid)
	require.True(t, ok)
	assert.Equal(t, cid, owner)
	assert.Equal(t, mask.KindRadial, sub.Kind())

	a, sid2, err := a.AddSubMask(cid, mask.KindLinear, imageSize)
	require.NoError(t, err)
	c, ok := a.Container(cid)
	require.True(t, ok)
	assert.Len(t, c.SubMasks, 2)

	mode := mask.ModeSubtractive
	a, err = a.UpdateSubMask(sid2, mask.SubMaskUpdate{Mode: &mode})
	require.NoError(t, err)
	sub, _, _ = a.SubMask(sid2)
	assert.Equal(t, mask.ModeSubtractive, sub.Mode)

	a, err = a.RemoveSubMask(sid)
	require.NoError(t, err)
	assert.False(t, a.HasID(sid))

	name := "Sky"
	a, err = a.UpdateMaskContainer(cid, mask.ContainerUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Sky", a.Masks[0].Name)

	require.NoError(t, a.Validate())
}

func TestDuplicateAndMoveContainers(t *testing.T) {
	a := New()
	var ids []string
	for i := 0; i < 3; i++ {
		var id string
		var err error
		a, id, _, err = a.AddMaskContainer(mask.KindBrush, imageSize)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	dup, dupID, err := a.DuplicateMaskContainer(ids[0])
	require.NoError(t, err)
	require.Len(t, dup.Masks, 4)
	assert.Equal(t, dupID, dup.Masks[1].ID)
	assert.NotEqual(t, dup.Masks[0].SubMasks[0].ID, dup.Masks[1].SubMasks[0].ID)
	require.NoError(t, dup.Validate())

	moved, err := a.MoveMaskContainer(ids[0], 2)
	require.NoError(t, err)
	assert.Equal(t, []string{ids[1], ids[2], ids[0]}, containerIDs(moved))

	moved, err = moved.MoveMaskContainer(ids[0], -4)
	require.NoError(t, err)
	assert.Equal(t, ids, containerIDs(moved))

	removed, err := a.RemoveMaskContainer(ids[1])
	require.NoError(t, err)
	assert.Equal(t, []string{ids[0], ids[2]}, containerIDs(removed))
	assert.Len(t, a.Masks, 3)
}

func TestUnknownIDs(t *testing.T) {
	a := New()
	_, err := a.RemoveMaskContainer("nope")
	assert.True(t, IsCode(err, CodeNotFound))
	_, _, err = a.DuplicateMaskContainer("nope")
	assert.True(t, IsCode(err, CodeNotFound))
	_, err = a.RemoveSubMask("nope")
	assert.True(t, IsCode(err, CodeNotFound))
	_, _, err = a.AddSubMask("nope", mask.KindBrush, imageSize)
	assert.True(t, IsCode(err, CodeNotFound))
	_, err = a.UpdateAiPatch("nope", mask.PatchUpdate{})
	assert.True(t, IsCode(err, CodeNotFound))
}

func TestAiPatches(t *testing.T) {
	a, pid, err := New().AddAiPatch(mask.PatchGenerativeReplace, imageSize)
	require.NoError(t, err)
	p, ok := a.Patch(pid)
	require.True(t, ok)
	require.Len(t, p.SubMasks, 1)

	// Sub-mask ids resolve inside patches too.
	sub, owner, ok := a.SubMask(p.SubMasks[0].ID)
	require.True(t, ok)
	assert.Equal(t, pid, owner)
	assert.Equal(t, mask.KindBrush, sub.Kind())

	prompt := "a red barn"
	loading := true
	a, err = a.UpdateAiPatch(pid, mask.PatchUpdate{Prompt: &prompt, IsLoading: &loading})
	require.NoError(t, err)
	p, _ = a.Patch(pid)
	assert.Equal(t, prompt, p.Prompt)
	assert.True(t, p.IsLoading)

	a, err = a.RemoveAiPatch(pid)
	require.NoError(t, err)
	assert.Empty(t, a.AiPatches)
}

func TestValidate_DuplicateIDs(t *testing.T) {
	a, _, _, err := New().AddMaskContainer(mask.KindRadial, imageSize)
	require.NoError(t, err)
	a.Masks = append(a.Masks, a.Masks[0].Clone())
	assert.True(t, IsCode(a.Validate(), CodeDuplicateID))
}

func TestEqual_NilAndEmpty(t *testing.T) {
	a := New()
	b := New()
	b.Masks = nil
	b.AiPatches = nil
	assert.True(t, a.Equal(b))

	c, err := a.SetScalar(Exposure, 0.5)
	require.NoError(t, err)
	assert.False(t, a.Equal(c))
}

func TestNormalized_ClampsRatingAndOrientation(t *testing.T) {
	a := New()
	a.Rating = 9
	a.OrientationSteps = 7
	n := a.Normalized()
	assert.Equal(t, 5, n.Rating)
	assert.Equal(t, 3, n.OrientationSteps)
	require.NoError(t, n.Validate())
	assert.Error(t, a.Validate(), "raw value is still out of range")
}

func TestFingerprint_EmptyBrushStrokes(t *testing.T) {
	a, cid, _, err := New().AddMaskContainer(mask.KindBrush, imageSize)
	require.NoError(t, err)
	want, err := a.Fingerprint()
	require.NoError(t, err)

	c, ok := a.Container(cid)
	require.True(t, ok)
	b := a.Clone()
	b.Masks[0].SubMasks[0].Shape = mask.Brush{}
	require.Equal(t, c.SubMasks[0].ID, b.Masks[0].SubMasks[0].ID)

	got, err := b.Fingerprint()
	require.NoError(t, err)
	assert.Equal(t, want, got, "null and empty stroke lists fingerprint alike")
	assert.True(t, a.Equal(b))
}

func TestFingerprint_IgnoresNonVisualFields(t *testing.T) {
	a, pid, err := New().AddAiPatch(mask.PatchGenerativeReplace, imageSize)
	require.NoError(t, err)
	a, cid, _, err := a.AddMaskContainer(mask.KindRadial, imageSize)
	require.NoError(t, err)
	base, err := a.Fingerprint()
	require.NoError(t, err)
	assert.Len(t, base, 64)

	name := "Renamed"
	loading := true
	b, err := a.UpdateMaskContainer(cid, mask.ContainerUpdate{Name: &name})
	require.NoError(t, err)
	b, err = b.UpdateAiPatch(pid, mask.PatchUpdate{Name: &name, IsLoading: &loading})
	require.NoError(t, err)
	b, err = b.SetScalar(Rating, 4)
	require.NoError(t, err)

	got, err := b.Fingerprint()
	require.NoError(t, err)
	assert.Equal(t, base, got)

	c, err := a.SetScalar(Exposure, 0.5)
	require.NoError(t, err)
	other, err := c.Fingerprint()
	require.NoError(t, err)
	assert.NotEqual(t, base, other)
}

func TestFingerprint_StableAcrossEncoding(t *testing.T) {
	a, _, _, err := New().AddMaskContainer(mask.KindLinear, imageSize)
	require.NoError(t, err)
	a, err = a.SetScalar(Temperature, 12)
	require.NoError(t, err)

	data, err := json.Marshal(a)
	require.NoError(t, err)
	var decoded AdjustmentSet
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.NoError(t, decoded.Validate())

	want, err := a.Fingerprint()
	require.NoError(t, err)
	got, err := decoded.Fingerprint()
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.True(t, a.Equal(decoded))
}

func TestFingerprintProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	base := New()
	baseFP, err := base.Fingerprint()
	require.NoError(t, err)

	properties.Property("rating never changes the fingerprint", prop.ForAll(
		func(rating int) bool {
			a, err := base.SetScalar(Rating, float64(rating))
			if err != nil {
				return false
			}
			fp, err := a.Fingerprint()
			return err == nil && fp == baseFP
		},
		gen.IntRange(0, 5),
	))

	properties.Property("exposure always changes the fingerprint", prop.ForAll(
		func(exposure float64) bool {
			a, err := base.SetScalar(Exposure, exposure)
			if err != nil {
				return false
			}
			fp, err := a.Fingerprint()
			return err == nil && fp != baseFP
		},
		gen.Float64Range(0.01, 5),
	))

	properties.TestingRun(t)
}

func containerIDs(a AdjustmentSet) []string {
	ids := make([]string, len(a.Masks))
	for i, c := range a.Masks {
		ids[i] = c.ID
	}
	return ids
}
