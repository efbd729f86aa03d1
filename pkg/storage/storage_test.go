package storage

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomcpgo/photo_edit_session/pkg/adjust"
	"github.com/gomcpgo/photo_edit_session/pkg/client"
	"github.com/gomcpgo/photo_edit_session/pkg/mask"
	"github.com/gomcpgo/photo_edit_session/pkg/types"
)

// editedSet returns a set touching scalars, curves, geometry and masks.
func editedSet(t *testing.T) adjust.AdjustmentSet {
	t.Helper()
	size := types.Size{Width: 400, Height: 300}

	set, err := adjust.New().SetScalar(adjust.Exposure, 1.25)
	require.NoError(t, err)
	set, err = set.AddCurvePoint(adjust.ChannelLuma, types.Point{X: 128, Y: 150})
	require.NoError(t, err)
	crop := types.Rect{X: 10, Y: 10, Width: 200, Height: 100}
	steps := 1
	set, err = set.SetGeometry(adjust.GeometryUpdate{Crop: &crop, OrientationSteps: &steps})
	require.NoError(t, err)
	set, _, _, err = set.AddMaskContainer(mask.KindRadial, size)
	require.NoError(t, err)
	set, _, err = set.AddAiPatch(mask.PatchQuickErase, size)
	require.NoError(t, err)
	return set
}

func testStores(t *testing.T) map[string]client.MetadataStore {
	t.Helper()
	db, err := OpenBadger(BadgerConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return map[string]client.MetadataStore{
		"sidecar": NewSidecar(),
		"badger":  db,
		"memory":  NewMemory(),
	}
}

func TestStores_RoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			imagePath := filepath.Join(t.TempDir(), "IMG_0001.jpg")

			got, err := store.LoadMetadata(ctx, imagePath)
			require.NoError(t, err)
			assert.Nil(t, got, "absent metadata loads as nil")

			set := editedSet(t)
			require.NoError(t, store.SaveMetadata(ctx, imagePath, set))

			got, err = store.LoadMetadata(ctx, imagePath)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.True(t, set.Equal(*got))

			want, err := set.Fingerprint()
			require.NoError(t, err)
			fp, err := got.Fingerprint()
			require.NoError(t, err)
			assert.Equal(t, want, fp)
		})
	}
}

func TestStores_NormalizeOutOfRangeFields(t *testing.T) {
	ctx := context.Background()
	stores := testStores(t)
	for _, name := range []string{"sidecar", "badger"} {
		store := stores[name]
		t.Run(name, func(t *testing.T) {
			imagePath := filepath.Join(t.TempDir(), "IMG_0004.jpg")
			set := editedSet(t)
			set.Rating = 6
			set.OrientationSteps = -1
			require.NoError(t, store.SaveMetadata(ctx, imagePath, set))

			got, err := store.LoadMetadata(ctx, imagePath)
			require.NoError(t, err, "edits survive a bad rating or orientation")
			require.NotNil(t, got)
			assert.Equal(t, 5, got.Rating)
			assert.Equal(t, 3, got.OrientationSteps)
			exposure, _ := got.Scalar(adjust.Exposure)
			assert.Equal(t, 1.25, exposure)
			assert.Len(t, got.Masks, 1)

			set.OrientationSteps = 4
			set.Rating = -2
			require.NoError(t, store.SaveMetadata(ctx, imagePath, set))
			got, err = store.LoadMetadata(ctx, imagePath)
			require.NoError(t, err)
			assert.Equal(t, 0, got.Rating)
			assert.Equal(t, 0, got.OrientationSteps)
		})
	}
}

func TestStores_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, store.SaveMetadata(ctx, "x.jpg", adjust.New()))
			_, err := store.LoadMetadata(ctx, "x.jpg")
			assert.Error(t, err)
		})
	}
}

func TestSidecar_FileLayout(t *testing.T) {
	dir := t.TempDir()
	imagePath := filepath.Join(dir, "IMG_0002.jpg")
	s := NewSidecar()

	require.NoError(t, s.SaveMetadata(context.Background(), imagePath, editedSet(t)))

	data, err := os.ReadFile(imagePath + SidecarExt)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "version: \"1.0\"")
	assert.Contains(t, text, "image: IMG_0002.jpg")
	assert.Contains(t, text, "type: radial")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files are cleaned up")
}

func TestSidecar_RejectsCorruptFile(t *testing.T) {
	imagePath := filepath.Join(t.TempDir(), "IMG_0003.jpg")
	require.NoError(t, os.WriteFile(imagePath+SidecarExt, []byte("adjustments: [not, a, map]"), 0644))

	_, err := NewSidecar().LoadMetadata(context.Background(), imagePath)
	assert.Error(t, err)
}

func TestBadger_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	db, err := OpenBadger(BadgerConfig{Path: dir})
	require.NoError(t, err)
	require.NoError(t, db.SaveMetadata(ctx, "/photos/a.jpg", editedSet(t)))
	require.NoError(t, db.SaveMetadata(ctx, "/photos/b.jpg", adjust.New()))
	require.NoError(t, db.Close())

	db, err = OpenBadger(BadgerConfig{Path: dir})
	require.NoError(t, err)
	defer db.Close()

	paths, err := db.Paths(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"/photos/a.jpg", "/photos/b.jpg"}, paths)

	got, err := db.LoadMetadata(ctx, "/photos/b.jpg")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, adjust.New().Equal(*got))
}

func TestOpenBadger_RequiresPath(t *testing.T) {
	_, err := OpenBadger(BadgerConfig{})
	assert.Error(t, err)
}

func TestMemory_ReturnsCopies(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	set := editedSet(t)
	require.NoError(t, m.SaveMetadata(ctx, "a.jpg", set))

	got, err := m.LoadMetadata(ctx, "a.jpg")
	require.NoError(t, err)
	got.Masks[0].Name = "changed"

	again, err := m.LoadMetadata(ctx, "a.jpg")
	require.NoError(t, err)
	assert.NotEqual(t, "changed", again.Masks[0].Name)
	assert.Equal(t, 1, m.Saves())
}

func TestImageDataURL(t *testing.T) {
	dir := t.TempDir()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 3, 3))))
	pngPath := filepath.Join(dir, "photo.bin")
	require.NoError(t, os.WriteFile(pngPath, buf.Bytes(), 0644))

	url, err := ImageDataURL(pngPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "data:image/png;base64,"))

	txtPath := filepath.Join(dir, "notes.jpg")
	require.NoError(t, os.WriteFile(txtPath, []byte("just text"), 0644))
	_, err = ImageDataURL(txtPath)
	assert.Error(t, err)

	_, err = ImageDataURL(filepath.Join(dir, "missing.png"))
	assert.Error(t, err)
}
