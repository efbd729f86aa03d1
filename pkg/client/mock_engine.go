package client

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
	"time"

	"github.com/gomcpgo/photo_edit_session/pkg/adjust"
	"github.com/gomcpgo/photo_edit_session/pkg/types"
)

// MockEngine is an in-memory RenderEngine for tests.
//
// Preview renders return a PNG of PreviewSize. Full resolution renders
// return "full:" followed by the set's fingerprint, so callers can tell which
// edit a raster belongs to. With HoldFullResolution set, each full render
// blocks until ReleaseFull is called for it.
type MockEngine struct {
	mu sync.Mutex

	previewSize  types.Size
	previewPNG   []byte
	previewDelay time.Duration
	previewErr   error
	fullErr      error
	analysisErr  error

	hold         bool
	ignoreCancel bool
	held         []chan struct{}

	previewCalls   []adjust.AdjustmentSet
	fullCalls      []adjust.AdjustmentSet
	histogramCalls int
	waveformCalls  int
}

// NewMockEngine creates a mock whose previews are 1000x750.
func NewMockEngine() *MockEngine {
	m := &MockEngine{}
	m.SetPreviewSize(types.Size{Width: 1000, Height: 750})
	return m
}

// SetPreviewSize changes the size of future preview rasters.
func (m *MockEngine) SetPreviewSize(size types.Size) {
	img := image.NewGray(image.Rect(0, 0, size.Width, size.Height))
	for i := range img.Pix {
		img.Pix[i] = 128
	}
	img.SetGray(0, 0, color.Gray{Y: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(fmt.Sprintf("encode mock preview: %v", err))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.previewSize = size
	m.previewPNG = buf.Bytes()
}

// SetPreviewDelay makes preview renders take d.
func (m *MockEngine) SetPreviewDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.previewDelay = d
}

// SetPreviewError makes preview renders fail with err (nil to succeed).
func (m *MockEngine) SetPreviewError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.previewErr = err
}

// SetFullError makes full resolution renders fail with err (nil to succeed).
func (m *MockEngine) SetFullError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fullErr = err
}

// SetAnalysisError makes histogram and waveform requests fail.
func (m *MockEngine) SetAnalysisError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.analysisErr = err
}

// HoldFullResolution makes later full renders wait for ReleaseFull. With
// ignoreCancel they keep waiting after their context is cancelled, which
// models a response that arrives after it was superseded.
func (m *MockEngine) HoldFullResolution(hold, ignoreCancel bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hold = hold
	m.ignoreCancel = ignoreCancel
}

// ReleaseFull lets the index-th held full render return.
func (m *MockEngine) ReleaseFull(index int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if index < 0 || index >= len(m.held) || m.held[index] == nil {
		return false
	}
	close(m.held[index])
	m.held[index] = nil
	return true
}

// RenderPreview implements RenderEngine.
func (m *MockEngine) RenderPreview(ctx context.Context, set adjust.AdjustmentSet) ([]byte, error) {
	m.mu.Lock()
	m.previewCalls = append(m.previewCalls, set)
	delay, err, raster := m.previewDelay, m.previewErr, m.previewPNG
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return raster, nil
}

// RenderFullResolution implements RenderEngine.
func (m *MockEngine) RenderFullResolution(ctx context.Context, set adjust.AdjustmentSet) ([]byte, error) {
	fp, err := set.Fingerprint()
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.fullCalls = append(m.fullCalls, set)
	var release chan struct{}
	if m.hold {
		release = make(chan struct{})
		m.held = append(m.held, release)
	}
	ignoreCancel := m.ignoreCancel
	m.mu.Unlock()

	if release != nil {
		if ignoreCancel {
			<-release
		} else {
			select {
			case <-release:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	m.mu.Lock()
	err = m.fullErr
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return []byte("full:" + fp), nil
}

// RenderHistogram implements RenderEngine.
func (m *MockEngine) RenderHistogram(ctx context.Context) (types.Histogram, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.histogramCalls++
	if m.analysisErr != nil {
		return types.Histogram{}, m.analysisErr
	}
	bins := make([]uint32, 256)
	bins[128] = uint32(m.previewSize.Width * m.previewSize.Height)
	return types.Histogram{Red: bins, Green: bins, Blue: bins, Luma: bins}, nil
}

// RenderWaveform implements RenderEngine.
func (m *MockEngine) RenderWaveform(ctx context.Context) (types.Waveform, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.waveformCalls++
	if m.analysisErr != nil {
		return types.Waveform{}, m.analysisErr
	}
	return types.Waveform{Width: 1, Height: 256, Data: make([]uint32, 256)}, nil
}

// PreviewCalls returns the number of preview renders requested.
func (m *MockEngine) PreviewCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.previewCalls)
}

// FullCalls returns the number of full resolution renders requested.
func (m *MockEngine) FullCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.fullCalls)
}

// HeldFull returns the number of full renders ever held, released or not.
func (m *MockEngine) HeldFull() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.held)
}

// AnalysisCalls returns the histogram and waveform request counts.
func (m *MockEngine) AnalysisCalls() (histograms, waveforms int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.histogramCalls, m.waveformCalls
}

// MockAI is an in-memory AIService for tests.
type MockAI struct {
	mu sync.Mutex

	delay     time.Duration
	maskErr   error
	patchErr  error
	maskCalls []MaskRequest
	patchReqs []PatchRequest
}

// NewMockAI creates a mock that answers immediately.
func NewMockAI() *MockAI {
	return &MockAI{}
}

// SetDelay makes every call take d.
func (m *MockAI) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// SetMaskError makes GenerateMask fail with err.
func (m *MockAI) SetMaskError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maskErr = err
}

// SetPatchError makes GenerativeReplace fail with err.
func (m *MockAI) SetPatchError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patchErr = err
}

func (m *MockAI) wait(ctx context.Context) error {
	m.mu.Lock()
	d := m.delay
	m.mu.Unlock()
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GenerateMask implements AIService.
func (m *MockAI) GenerateMask(ctx context.Context, req MaskRequest) (MaskResult, error) {
	m.mu.Lock()
	m.maskCalls = append(m.maskCalls, req)
	n := len(m.maskCalls)
	m.mu.Unlock()

	if err := m.wait(ctx); err != nil {
		return MaskResult{}, err
	}
	m.mu.Lock()
	err := m.maskErr
	m.mu.Unlock()
	if err != nil {
		return MaskResult{}, err
	}
	return MaskResult{Generated: fmt.Sprintf("data:image/png;base64,mask-%s-%d", req.Kind, n)}, nil
}

// GenerativeReplace implements AIService.
func (m *MockAI) GenerativeReplace(ctx context.Context, req PatchRequest) (types.PatchResult, error) {
	m.mu.Lock()
	m.patchReqs = append(m.patchReqs, req)
	n := len(m.patchReqs)
	m.mu.Unlock()

	if err := m.wait(ctx); err != nil {
		return types.PatchResult{}, err
	}
	m.mu.Lock()
	err := m.patchErr
	m.mu.Unlock()
	if err != nil {
		return types.PatchResult{}, err
	}
	return types.PatchResult{
		Color: fmt.Sprintf("data:image/png;base64,color-%d", n),
		Mask:  fmt.Sprintf("data:image/png;base64,mask-%d", n),
	}, nil
}

// MaskCalls returns the mask requests received so far.
func (m *MockAI) MaskCalls() []MaskRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MaskRequest, len(m.maskCalls))
	copy(out, m.maskCalls)
	return out
}

// PatchCalls returns the patch requests received so far.
func (m *MockAI) PatchCalls() []PatchRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PatchRequest, len(m.patchReqs))
	copy(out, m.patchReqs)
	return out
}
