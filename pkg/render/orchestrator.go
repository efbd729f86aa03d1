// Package render decides which raster to show for the open image and keeps
// the render engine busy with only the requests that still matter.
//
// # Description
//
// Two independent pipelines feed the display. The preview pipeline
// re-renders a quick, low-resolution raster after every edit, then refreshes
// the histogram and waveform. The full resolution pipeline runs only while
// the view is zoomed in far enough that the preview would be upscaled; its
// single result is cached against the visual fingerprint of the edit so an
// unchanged edit never renders twice.
//
// # Cancellation
//
// Every engine call carries a generation number. Starting a newer call of the
// same tier bumps the generation and cancels the older call's context; a
// result whose generation is no longer current is discarded on arrival and
// is never published or cached.
//
// # Thread Safety
//
// Safe for concurrent use. Callbacks run outside the orchestrator's lock.
package render

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gomcpgo/photo_edit_session/pkg/adjust"
	"github.com/gomcpgo/photo_edit_session/pkg/client"
	"github.com/gomcpgo/photo_edit_session/pkg/debounce"
	"github.com/gomcpgo/photo_edit_session/pkg/types"
)

// Mode is the resolution tier currently on screen.
type Mode string

const (
	ModePreview        Mode = "preview"
	ModeFullResolution Mode = "full_resolution"
)

// Tier labels an engine call in metrics, spans and errors.
type Tier string

const (
	TierPreview  Tier = "preview"
	TierFull     Tier = "full_resolution"
	TierAnalysis Tier = "analysis"
)

const (
	keyPreview = "preview"
	keyFull    = "full"
)

// Preview is a finished quick render.
type Preview struct {
	Raster      []byte
	Size        types.Size
	Fingerprint string
}

// FullResolution is a full resolution raster ready to display.
type FullResolution struct {
	Raster      []byte
	Fingerprint string
	Cached      bool
}

// Analysis holds the scopes computed for the latest preview.
type Analysis struct {
	Histogram types.Histogram
	Waveform  types.Waveform
}

// RenderError wraps a failed engine call.
type RenderError struct {
	Tier Tier
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %v", e.Tier, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// Options configures an Orchestrator. Zero durations use the defaults.
type Options struct {
	// PreviewDebounce delays the quick preview after an edit. Default: 75ms
	PreviewDebounce time.Duration

	// FullDebounce delays full resolution requests. Default: 150ms
	FullDebounce time.Duration

	// RenderTimeout bounds every engine call. Default: 30s
	RenderTimeout time.Duration

	Logger *slog.Logger

	OnPreview        func(Preview)
	OnFullResolution func(FullResolution)
	OnAnalysis       func(Analysis)
	OnError          func(error)
}

// DefaultOptions returns the default debounce windows and timeout.
func DefaultOptions() Options {
	return Options{
		PreviewDebounce: 75 * time.Millisecond,
		FullDebounce:    150 * time.Millisecond,
		RenderTimeout:   30 * time.Second,
	}
}

// State is a snapshot of the orchestrator for display and tests.
type State struct {
	Mode              Mode
	SourcePath        string
	View              View
	Fingerprint       string
	CachedFingerprint string
	PreviewLoading    bool
	FullLoading       bool
	PreviewRequests   int
	FullRequests      int
	CacheHits         int
	StaleDiscards     int
	Failures          int
}

// Orchestrator owns the preview and full resolution pipelines for one
// viewer.
type Orchestrator struct {
	mu     sync.Mutex
	engine client.RenderEngine
	opts   Options
	logger *slog.Logger

	debouncer *debounce.Debouncer
	cache     Cache

	baseCtx    context.Context
	baseCancel context.CancelFunc

	path        string
	set         adjust.AdjustmentSet
	hasSet      bool
	fingerprint string
	view        View
	mode        Mode

	previewGen    uint64
	previewCancel context.CancelFunc
	fullGen       uint64
	fullCancel    context.CancelFunc

	previewLoading bool
	fullLoading    bool

	previewRequests int
	fullRequests    int
	cacheHits       int
	staleDiscards   int
	failures        int

	closed bool
}

// New creates an orchestrator that renders through engine.
func New(engine client.RenderEngine, opts Options) *Orchestrator {
	defaults := DefaultOptions()
	if opts.PreviewDebounce <= 0 {
		opts.PreviewDebounce = defaults.PreviewDebounce
	}
	if opts.FullDebounce <= 0 {
		opts.FullDebounce = defaults.FullDebounce
	}
	if opts.RenderTimeout <= 0 {
		opts.RenderTimeout = defaults.RenderTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		engine:     engine,
		opts:       opts,
		logger:     logger,
		debouncer:  debounce.New(),
		baseCtx:    ctx,
		baseCancel: cancel,
		mode:       ModePreview,
		view:       View{Zoom: MinZoom},
	}
}

// SetImage switches to another source image. Everything in flight is
// cancelled and the view drops back to preview mode. The cached full
// resolution render is kept; it only matches its own image.
func (o *Orchestrator) SetImage(path string, originalSize types.Size) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.cancelPreviewLocked()
	o.cancelFullLocked()
	o.path = path
	o.hasSet = false
	o.fingerprint = ""
	o.mode = ModePreview
	o.view.OriginalSize = originalSize
	o.view.BaseRenderSize = types.Size{}
	o.view.OrientationSteps = 0

	o.logger.Debug("render source changed", "path", path,
		"width", originalSize.Width, "height", originalSize.Height)
}

// Update reports a new edit state. The preview is always refreshed and the
// view takes its orientation from set. In full resolution mode a changed
// fingerprint cancels the render in flight and is served from cache or
// re-requested; an unchanged one leaves the full resolution pipeline alone.
func (o *Orchestrator) Update(set adjust.AdjustmentSet) error {
	fp, err := set.Fingerprint()
	if err != nil {
		o.reportError(fmt.Errorf("fingerprint adjustments: %w", err))
		return err
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	changed := !o.hasSet || fp != o.fingerprint
	o.set = set
	o.hasSet = true
	o.fingerprint = fp
	o.debouncer.Trigger(keyPreview, o.opts.PreviewDebounce, o.runPreview)

	wasFull := o.mode == ModeFullResolution
	o.view.OrientationSteps = set.OrientationSteps
	o.view = o.view.Normalized()
	hit := o.applyModeLocked()
	if wasFull && o.mode == ModeFullResolution && changed {
		o.cancelFullLocked()
		hit = o.scheduleFullLocked()
	}
	o.mu.Unlock()

	o.publishFull(hit)
	return nil
}

// SetView reports a zoom or layout change. Crossing the full resolution
// threshold enters or leaves full resolution mode. The orientation of v is
// ignored; it always follows the last edit passed to Update.
func (o *Orchestrator) SetView(v View) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	v.OrientationSteps = o.view.OrientationSteps
	v = v.Normalized()
	if v.BaseRenderSize.Empty() {
		v.BaseRenderSize = o.view.BaseRenderSize
	}
	if v.OriginalSize.Empty() {
		v.OriginalSize = o.view.OriginalSize
	}
	o.view = v
	hit := o.applyModeLocked()
	o.mu.Unlock()

	o.publishFull(hit)
}

// applyModeLocked moves between preview and full resolution mode to match
// the current view.
func (o *Orchestrator) applyModeLocked() *FullResolution {
	needs := o.view.NeedsFullResolution()
	switch {
	case needs && o.mode == ModePreview:
		o.mode = ModeFullResolution
		o.logger.Debug("entering full resolution mode", "zoom", o.view.Zoom)
		return o.scheduleFullLocked()
	case !needs && o.mode == ModeFullResolution:
		o.mode = ModePreview
		o.cancelFullLocked()
		o.logger.Debug("leaving full resolution mode", "zoom", o.view.Zoom)
	}
	return nil
}

// scheduleFullLocked serves the current fingerprint from cache, or debounces
// a render for it.
func (o *Orchestrator) scheduleFullLocked() *FullResolution {
	if !o.hasSet {
		return nil
	}
	if e, ok := o.cache.Get(o.path, o.fingerprint); ok {
		o.cancelFullLocked()
		o.cacheHits++
		recordCache(o.baseCtx, true)
		return &FullResolution{Raster: e.Raster, Fingerprint: e.Fingerprint, Cached: true}
	}
	o.debouncer.Trigger(keyFull, o.opts.FullDebounce, o.runFull)
	return nil
}

func (o *Orchestrator) cancelPreviewLocked() {
	o.debouncer.Cancel(keyPreview)
	o.previewGen++
	if o.previewCancel != nil {
		o.previewCancel()
		o.previewCancel = nil
	}
	o.previewLoading = false
}

func (o *Orchestrator) cancelFullLocked() {
	o.debouncer.Cancel(keyFull)
	o.fullGen++
	if o.fullCancel != nil {
		o.fullCancel()
		o.fullCancel = nil
	}
	o.fullLoading = false
}

func (o *Orchestrator) runPreview() {
	o.mu.Lock()
	if o.closed || !o.hasSet {
		o.mu.Unlock()
		return
	}
	o.previewGen++
	gen := o.previewGen
	if o.previewCancel != nil {
		o.previewCancel()
	}
	ctx, cancel := context.WithTimeout(o.baseCtx, o.opts.RenderTimeout)
	o.previewCancel = cancel
	o.previewLoading = true
	o.previewRequests++
	set, fp := o.set, o.fingerprint
	o.mu.Unlock()
	defer cancel()

	raster, err := o.call(ctx, TierPreview, fp, gen, func(ctx context.Context) ([]byte, error) {
		return o.engine.RenderPreview(ctx, set)
	})

	o.mu.Lock()
	if gen != o.previewGen {
		o.discardLocked(TierPreview, gen)
		o.mu.Unlock()
		return
	}
	o.previewLoading = false
	o.previewCancel = nil
	if err != nil {
		o.failures++
		o.mu.Unlock()
		o.reportError(&RenderError{Tier: TierPreview, Err: err})
		return
	}

	size, format, serr := RasterSize(raster)
	if serr != nil {
		o.logger.Debug("preview raster size unknown", "error", serr)
	} else {
		o.view.BaseRenderSize = size
		o.logger.Debug("preview rendered", "format", format,
			"width", size.Width, "height", size.Height, "generation", gen)
	}
	hit := o.applyModeLocked()
	o.mu.Unlock()

	o.publishPreview(Preview{Raster: raster, Size: size, Fingerprint: fp})
	o.publishFull(hit)
	o.runAnalysis(gen)
}

// runAnalysis fetches the histogram and waveform of preview generation gen
// concurrently.
func (o *Orchestrator) runAnalysis(gen uint64) {
	ctx, cancel := context.WithTimeout(o.baseCtx, o.opts.RenderTimeout)
	defer cancel()
	ctx, span := startRenderSpan(ctx, TierAnalysis, "", gen)

	var a Analysis
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		h, err := o.engine.RenderHistogram(gctx)
		if err != nil {
			return fmt.Errorf("histogram: %w", err)
		}
		a.Histogram = h
		return nil
	})
	g.Go(func() error {
		w, err := o.engine.RenderWaveform(gctx)
		if err != nil {
			return fmt.Errorf("waveform: %w", err)
		}
		a.Waveform = w
		return nil
	})
	err := g.Wait()
	endRenderSpan(span, err)

	o.mu.Lock()
	stale := gen != o.previewGen || o.closed
	if stale {
		o.discardLocked(TierAnalysis, gen)
	} else if err != nil {
		o.failures++
	}
	o.mu.Unlock()

	if stale {
		return
	}
	if err != nil {
		o.reportError(&RenderError{Tier: TierAnalysis, Err: err})
		return
	}
	if o.opts.OnAnalysis != nil {
		o.opts.OnAnalysis(a)
	}
}

func (o *Orchestrator) runFull() {
	o.mu.Lock()
	if o.closed || o.mode != ModeFullResolution || !o.hasSet {
		o.mu.Unlock()
		return
	}
	o.fullGen++
	gen := o.fullGen
	if o.fullCancel != nil {
		o.fullCancel()
	}
	ctx, cancel := context.WithTimeout(o.baseCtx, o.opts.RenderTimeout)
	o.fullCancel = cancel
	o.fullLoading = true
	o.fullRequests++
	set, fp, path := o.set, o.fingerprint, o.path
	recordCache(o.baseCtx, false)
	o.mu.Unlock()
	defer cancel()

	raster, err := o.call(ctx, TierFull, fp, gen, func(ctx context.Context) ([]byte, error) {
		return o.engine.RenderFullResolution(ctx, set)
	})

	o.mu.Lock()
	if gen != o.fullGen {
		o.discardLocked(TierFull, gen)
		o.mu.Unlock()
		return
	}
	o.fullLoading = false
	o.fullCancel = nil
	if err != nil {
		o.failures++
		o.mode = ModePreview
		o.mu.Unlock()
		o.reportError(&RenderError{Tier: TierFull, Err: err})
		return
	}
	o.cache.Put(CacheEntry{Fingerprint: fp, Raster: raster, SourcePath: path})
	o.mu.Unlock()

	o.publishFull(&FullResolution{Raster: raster, Fingerprint: fp})
}

// call runs one engine request with tracing, metrics and latency recording.
func (o *Orchestrator) call(ctx context.Context, tier Tier, fp string, gen uint64,
	fn func(context.Context) ([]byte, error)) ([]byte, error) {
	ctx, span := startRenderSpan(ctx, tier, fp, gen)
	recordRequest(ctx, tier)
	start := time.Now()

	raster, err := fn(ctx)

	recordLatency(ctx, tier, time.Since(start), err == nil)
	if err != nil {
		recordFailure(ctx, tier)
	}
	endRenderSpan(span, err)
	return raster, err
}

func (o *Orchestrator) discardLocked(tier Tier, gen uint64) {
	o.staleDiscards++
	recordStale(o.baseCtx, tier)
	o.logger.Debug("discarding stale render", "tier", string(tier), "generation", gen)
}

func (o *Orchestrator) publishPreview(p Preview) {
	if o.opts.OnPreview != nil {
		o.opts.OnPreview(p)
	}
}

func (o *Orchestrator) publishFull(f *FullResolution) {
	if f == nil {
		return
	}
	if o.opts.OnFullResolution != nil {
		o.opts.OnFullResolution(*f)
	}
}

func (o *Orchestrator) reportError(err error) {
	o.logger.Warn("render failed", "error", err)
	if o.opts.OnError != nil {
		o.opts.OnError(err)
	}
}

// State returns a snapshot.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := State{
		Mode:            o.mode,
		SourcePath:      o.path,
		View:            o.view,
		Fingerprint:     o.fingerprint,
		PreviewLoading:  o.previewLoading,
		FullLoading:     o.fullLoading,
		PreviewRequests: o.previewRequests,
		FullRequests:    o.fullRequests,
		CacheHits:       o.cacheHits,
		StaleDiscards:   o.staleDiscards,
		Failures:        o.failures,
	}
	if e, ok := o.cache.Peek(); ok {
		s.CachedFingerprint = e.Fingerprint
	}
	return s
}

// Close cancels all work. Results still in flight are discarded.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.closed = true
	o.cancelPreviewLocked()
	o.cancelFullLocked()
	o.debouncer.Stop()
	o.baseCancel()
}
