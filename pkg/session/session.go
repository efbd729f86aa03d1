// Package session is the owned edit session for one viewer. Every edit goes
// through its API, which keeps undo history, the render pipelines, the
// debounced metadata save and the AI round trips in step with the live
// edit state.
//
// # Thread Safety
//
// Safe for concurrent use. Render and notice callbacks run outside the
// session lock and must not call back into mutating session methods
// synchronously.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/gomcpgo/photo_edit_session/pkg/adjust"
	"github.com/gomcpgo/photo_edit_session/pkg/client"
	"github.com/gomcpgo/photo_edit_session/pkg/config"
	"github.com/gomcpgo/photo_edit_session/pkg/debounce"
	"github.com/gomcpgo/photo_edit_session/pkg/history"
	"github.com/gomcpgo/photo_edit_session/pkg/render"
	"github.com/gomcpgo/photo_edit_session/pkg/storage"
	"github.com/gomcpgo/photo_edit_session/pkg/types"
)

const (
	keyPersist = "persist"

	// persistTimeout bounds a single metadata write.
	persistTimeout = 10 * time.Second
)

// Control conditions returned by session operations.
var (
	ErrNoImage       = errors.New("no image is open")
	ErrAIUnavailable = errors.New("AI service is not configured")
	ErrClosed        = errors.New("session is closed")
)

// Options configures a Session.
type Options struct {
	// Engine renders previews and scopes. Required.
	Engine client.RenderEngine

	// AI runs mask generation and generative fill. Nil disables AI edits.
	AI client.AIService

	// Store persists edits per image. Nil disables persistence.
	Store client.MetadataStore

	// ImageSource returns the image at path as a data URL for the AI
	// service. Default: storage.ImageDataURL
	ImageSource func(path string) (string, error)

	Timeouts     config.TimeoutConfig
	HistoryLimit int
	Logger       *slog.Logger

	OnPreview        func(render.Preview)
	OnFullResolution func(render.FullResolution)
	OnAnalysis       func(render.Analysis)
	OnNotice         func(Notice)
}

// Session owns the edit state of the open image.
type Session struct {
	// mu guards every field below it and serializes history mutations, so
	// history change listeners always run with mu held.
	mu           sync.Mutex
	path         string
	originalSize types.Size
	selection    Selection
	inflight     map[string]*aiOp
	aiSeq        uint64
	closed       bool

	history   *history.Controller
	render    *render.Orchestrator
	debouncer *debounce.Debouncer
	notices   noticeBoard

	opts    Options
	logger  *slog.Logger
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a session with no image open.
func New(opts Options) (*Session, error) {
	if opts.Engine == nil {
		return nil, errors.New("render engine is required")
	}
	if opts.Timeouts == (config.TimeoutConfig{}) {
		opts.Timeouts = config.DefaultTimeouts()
	}
	if opts.ImageSource == nil {
		opts.ImageSource = storage.ImageDataURL
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		inflight:  make(map[string]*aiOp),
		debouncer: debounce.New(),
		opts:      opts,
		logger:    opts.Logger,
		baseCtx:   ctx,
		cancel:    cancel,
	}
	s.notices.onNotice = opts.OnNotice

	s.history = history.New(adjust.New(), history.Options{
		Window: opts.Timeouts.HistoryWindow,
		Limit:  opts.HistoryLimit,
		Logger: opts.Logger.With("component", "history"),
	})
	s.render = render.New(opts.Engine, render.Options{
		PreviewDebounce:  opts.Timeouts.PreviewDebounce,
		FullDebounce:     opts.Timeouts.FullResolutionDebounce,
		RenderTimeout:    opts.Timeouts.RenderTimeout,
		Logger:           opts.Logger.With("component", "render"),
		OnPreview:        opts.OnPreview,
		OnFullResolution: opts.OnFullResolution,
		OnAnalysis:       opts.OnAnalysis,
		OnError: func(err error) {
			s.notices.add(SourceRender, err.Error())
		},
	})
	s.history.OnChange(s.onChange)
	return s, nil
}

// Open switches the session to the image at path. Edits pending for the
// previous image are saved first. The stored edit for path is loaded, or a
// neutral one is used when there is none or it cannot be read.
func (s *Session) Open(ctx context.Context, path string, originalSize types.Size) error {
	if originalSize.Empty() {
		return adjust.EditError{
			Code:    adjust.CodeInvalidInput,
			Message: fmt.Sprintf("image size %dx%d is empty", originalSize.Width, originalSize.Height),
		}
	}
	s.debouncer.Flush(keyPersist)

	set := adjust.New()
	if s.opts.Store != nil {
		stored, err := s.opts.Store.LoadMetadata(ctx, path)
		switch {
		case err != nil:
			s.logger.Warn("failed to load metadata", "path", path, "error", err)
			s.notices.add(SourcePersistence, fmt.Sprintf("could not load saved edits: %v", err))
		case stored != nil:
			set = stored.Normalized()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.cancelAILocked("")
	s.path = path
	s.originalSize = originalSize
	s.selection = Selection{}
	s.render.SetImage(path, originalSize)
	s.history.Reset(set)

	s.logger.Debug("image opened", "path", path, "width", originalSize.Width, "height", originalSize.Height)
	return nil
}

// onChange runs for every live value change. History is only mutated with
// s.mu held, so this runs with s.mu held too.
func (s *Session) onChange(ch history.Change) {
	s.pruneSelectionLocked(ch.Value)
	s.cancelOrphanedAILocked(ch.Value)

	if err := s.render.Update(ch.Value); err != nil {
		s.logger.Warn("render update failed", "error", err)
	}
	if ch.Reason == history.ReasonReset || s.opts.Store == nil || s.path == "" {
		return
	}
	path, value := s.path, ch.Value
	s.debouncer.Trigger(keyPersist, s.opts.Timeouts.PersistDebounce, func() {
		s.persist(path, value)
	})
}

func (s *Session) persist(path string, set adjust.AdjustmentSet) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(s.baseCtx), persistTimeout)
	defer cancel()
	if err := s.opts.Store.SaveMetadata(ctx, path, set); err != nil {
		s.logger.Warn("failed to save metadata", "path", path, "error", err)
		s.notices.add(SourcePersistence, fmt.Sprintf("could not save edits: %v", err))
		return
	}
	s.logger.Debug("metadata saved", "path", path)
}

// apply funnels one edit through history. fn receives the live value and
// returns its replacement; an error leaves everything unchanged.
func (s *Session) apply(fn editFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyLocked(fn)
}

func (s *Session) applyLocked(fn editFunc) error {
	if err := s.readyLocked(); err != nil {
		return err
	}
	next, err := fn(s.history.Live())
	if err != nil {
		return err
	}
	s.history.SetLive(next)
	return nil
}

func (s *Session) readyLocked() error {
	if s.closed {
		return ErrClosed
	}
	if s.path == "" {
		return ErrNoImage
	}
	return nil
}

// Live returns the edit state currently shown.
func (s *Session) Live() adjust.AdjustmentSet {
	return s.history.Live()
}

// Path returns the open image, or "" when none is open.
func (s *Session) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// OriginalSize returns the pixel size of the open image.
func (s *Session) OriginalSize() types.Size {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.originalSize
}

// Undo steps back one history entry.
func (s *Session) Undo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	return s.history.Undo()
}

// Redo steps forward one history entry.
func (s *Session) Redo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	return s.history.Redo()
}

// CanUndo reports whether Undo would change the edit state.
func (s *Session) CanUndo() bool { return s.history.CanUndo() }

// CanRedo reports whether Redo would change the edit state.
func (s *Session) CanRedo() bool { return s.history.CanRedo() }

// Commit turns a pending live edit into a history entry immediately.
func (s *Session) Commit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Flush()
}

// SetView reports a zoom or layout change to the render pipelines. The
// original size comes from the session and the orientation from the live edit.
func (s *Session) SetView(v render.View) {
	s.mu.Lock()
	v.OriginalSize = s.originalSize
	s.mu.Unlock()
	s.render.SetView(v)
}

// SetZoom changes only the zoom of the current view.
func (s *Session) SetZoom(zoom float64) {
	v := s.render.State().View
	v.Zoom = zoom
	s.SetView(v)
}

// FitZoom returns the zoom that fits the image inside container.
func (s *Session) FitZoom(container types.Size) float64 {
	s.mu.Lock()
	v := render.View{OriginalSize: s.originalSize, OrientationSteps: s.history.Live().OrientationSteps}
	s.mu.Unlock()
	return v.FitZoom(container)
}

// Status is a snapshot of the session for display.
type Status struct {
	Path         string
	OriginalSize types.Size
	Fingerprint  string
	HistoryLen   int
	Cursor       int
	Pending      bool
	CanUndo      bool
	CanRedo      bool
	Selection    Selection
	Generating   []string
	Render       render.State
	Notices      []Notice
}

// Status returns a snapshot of the session.
func (s *Session) Status() Status {
	s.mu.Lock()
	st := Status{
		Path:         s.path,
		OriginalSize: s.originalSize,
		Selection:    s.selection,
		Generating:   s.generatingLocked(),
	}
	s.mu.Unlock()

	st.HistoryLen = s.history.Len()
	st.Cursor = s.history.Cursor()
	st.Pending = s.history.Pending()
	st.CanUndo = s.history.CanUndo()
	st.CanRedo = s.history.CanRedo()
	st.Render = s.render.State()
	st.Fingerprint = st.Render.Fingerprint
	st.Notices = s.notices.list()
	return st
}

// Flush commits pending history, writes pending metadata and waits for
// running AI requests to finish. Render pipelines keep running.
func (s *Session) Flush() {
	s.Commit()
	s.wg.Wait()
	s.debouncer.Flush(keyPersist)
}

// Close commits pending history, saves pending metadata and stops every
// pipeline. AI requests still running are cancelled.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.history.Flush()
	s.closed = true
	s.cancelAILocked("")
	s.mu.Unlock()

	s.wg.Wait()
	s.debouncer.Flush(keyPersist)
	s.debouncer.Stop()
	s.history.Close()
	s.render.Close()
	s.cancel()
}
