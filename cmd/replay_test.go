package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomcpgo/photo_edit_session/pkg/adjust"
	"github.com/gomcpgo/photo_edit_session/pkg/config"
	"github.com/gomcpgo/photo_edit_session/pkg/types"
)

func testSetup(t *testing.T) {
	t.Helper()
	c := config.Default()
	c.Store = config.StoreMemory
	c.Timeouts = config.TestTimeouts()
	cfg = c
	logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	mockAI = true
	t.Cleanup(func() { mockAI = false })
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadScript_ReadsSizeFromImage(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 64, 48))))
	imagePath := filepath.Join(dir, "photo.png")
	require.NoError(t, os.WriteFile(imagePath, buf.Bytes(), 0644))

	sc, err := loadScript(writeScript(t, "image: "+imagePath+"\n"))
	require.NoError(t, err)
	assert.Equal(t, types.Size{Width: 64, Height: 48}, sc.Size)

	_, err = loadScript(writeScript(t, "steps: []\n"))
	assert.Error(t, err)
}

func TestReplay(t *testing.T) {
	testSetup(t)
	sc, err := loadScript(writeScript(t, `
image: /photos/a.jpg
size: {width: 4000, height: 3000}
steps:
  - {op: scalar, key: exposure, value: 0.5}
  - {op: scalar, key: exposure, value: 1.0}
  - {op: commit}
  - {op: curve_point, channel: luma, point: {x: 128, y: 140}}
  - {op: add_mask, kind: ai-sky, as: sky}
  - {op: mask, target: sky, opacity: 0.5}
  - {op: add_patch, kind: quick-erase, as: erase}
  - {op: sub_mask, target: erase.sub, rect: {x: 10, y: 10, width: 100, height: 80}}
  - {op: wait}
  - {op: undo}
  - {op: redo}
`))
	require.NoError(t, err)

	st, live, err := replay(context.Background(), sc)
	require.NoError(t, err)
	assert.Equal(t, 1.0, live.Exposure)
	require.Len(t, live.Masks, 1)
	assert.Equal(t, 0.5, live.Masks[0].Opacity)
	require.Len(t, live.AiPatches, 1)
	assert.NotNil(t, live.AiPatches[0].Result)
	assert.Len(t, live.Curves.Points(adjust.ChannelLuma), 3)
	assert.Equal(t, "/photos/a.jpg", st.Path)
	assert.Empty(t, st.Generating)
}

func TestReplay_StepErrorNamesStep(t *testing.T) {
	testSetup(t)
	sc := script{
		Image: "/photos/a.jpg",
		Size:  types.Size{Width: 100, Height: 100},
		Steps: []step{{Op: "scalar", Key: "exposure", Value: 1}, {Op: "remove_mask", Target: "missing"}},
	}
	_, _, err := replay(context.Background(), sc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step 2 (remove_mask)")
	assert.True(t, adjust.IsCode(err, adjust.CodeNotFound))
}

func TestReplayCommand_PrintsJSON(t *testing.T) {
	testSetup(t)
	path := writeScript(t, `
image: /photos/b.jpg
size: {width: 800, height: 600}
steps:
  - {op: scalar, key: contrast, value: 25}
`)
	var out bytes.Buffer
	replayCmd.SetOut(&out)
	replayCmd.SetContext(context.Background())
	require.NoError(t, replayCmd.RunE(replayCmd, []string{path}))

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &doc))
	assert.Equal(t, true, doc["success"])
	edit := doc["edit"].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"contrast": 25.0}, edit["scalars"])
}
