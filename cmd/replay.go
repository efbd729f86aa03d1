package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/gomcpgo/photo_edit_session/pkg/adjust"
	"github.com/gomcpgo/photo_edit_session/pkg/mask"
	"github.com/gomcpgo/photo_edit_session/pkg/render"
	"github.com/gomcpgo/photo_edit_session/pkg/responses"
	"github.com/gomcpgo/photo_edit_session/pkg/session"
	"github.com/gomcpgo/photo_edit_session/pkg/types"
)

// script is a recorded edit session.
//
//	image: /photos/IMG_0001.jpg
//	steps:
//	  - {op: scalar, key: exposure, value: 0.7}
//	  - {op: add_mask, kind: ai-sky, as: sky}
//	  - {op: mask, target: sky, opacity: 0.5}
//	  - {op: wait}
type script struct {
	Image string     `yaml:"image"`
	Size  types.Size `yaml:"size"` // read from the image header when empty
	Zoom  float64    `yaml:"zoom"`
	Steps []step     `yaml:"steps"`
}

type step struct {
	Op     string `yaml:"op"`
	As     string `yaml:"as"`
	Target string `yaml:"target"`

	Key      string        `yaml:"key"`
	Value    float64       `yaml:"value"`
	Band     string        `yaml:"band"`
	HSL      adjust.HSL    `yaml:"hsl"`
	Channel  string        `yaml:"channel"`
	Point    types.Point   `yaml:"point"`
	Points   []types.Point `yaml:"points"`
	Index    int           `yaml:"index"`
	Rect     *types.Rect   `yaml:"rect"`
	Steps    *int          `yaml:"steps"`
	Kind     string        `yaml:"kind"`
	Prompt   *string       `yaml:"prompt"`
	Name     *string       `yaml:"name"`
	Visible  *bool         `yaml:"visible"`
	Invert   *bool         `yaml:"invert"`
	Mode     string        `yaml:"mode"`
	Opacity  *float64      `yaml:"opacity"`
	Duration time.Duration `yaml:"duration"`
}

var replayCmd = &cobra.Command{
	Use:   "replay <script.yaml>",
	Short: "Run a scripted edit session and print its final state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sc, err := loadScript(args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		st, live, err := replay(cmd.Context(), sc)
		if err != nil {
			fmt.Fprintln(out, responses.BuildErrorResponse("replay", err))
			return err
		}
		fmt.Fprintln(out, responses.BuildSessionResponse("replay", st, live))
		return nil
	},
}

func loadScript(path string) (script, error) {
	var sc script
	data, err := os.ReadFile(path)
	if err != nil {
		return sc, fmt.Errorf("failed to read script: %w", err)
	}
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return sc, fmt.Errorf("failed to parse script %s: %w", path, err)
	}
	if sc.Image == "" {
		return sc, fmt.Errorf("script %s names no image", path)
	}
	if sc.Size.Empty() {
		raw, err := os.ReadFile(sc.Image)
		if err != nil {
			return sc, fmt.Errorf("failed to read image: %w", err)
		}
		if sc.Size, _, err = render.RasterSize(raw); err != nil {
			return sc, err
		}
	}
	return sc, nil
}

func replay(ctx context.Context, sc script) (session.Status, adjust.AdjustmentSet, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	store, closeStore, err := openStore()
	if err != nil {
		return session.Status{}, adjust.AdjustmentSet{}, err
	}
	defer closeStore()

	s, err := session.New(session.Options{
		Engine:       newEngine(),
		AI:           newAI(),
		Store:        store,
		Timeouts:     cfg.Timeouts,
		HistoryLimit: cfg.HistoryLimit,
		Logger:       logger.With("component", "session"),
		OnPreview: func(p render.Preview) {
			logger.Debug("preview", "width", p.Size.Width, "height", p.Size.Height, "fingerprint", p.Fingerprint)
		},
		OnFullResolution: func(f render.FullResolution) {
			logger.Debug("full resolution", "fingerprint", f.Fingerprint)
		},
		OnNotice: func(n session.Notice) {
			logger.Warn("notice", "source", n.Source, "message", n.Message)
		},
	})
	if err != nil {
		return session.Status{}, adjust.AdjustmentSet{}, err
	}
	defer s.Close()

	if err := s.Open(ctx, sc.Image, sc.Size); err != nil {
		return session.Status{}, adjust.AdjustmentSet{}, err
	}
	if sc.Zoom > 0 {
		s.SetZoom(sc.Zoom)
	}

	r := &runner{s: s, ids: make(map[string]string)}
	for i, st := range sc.Steps {
		logger.Debug("replaying step", "index", i, "op", st.Op)
		if err := r.run(st); err != nil {
			return s.Status(), s.Live(), fmt.Errorf("step %d (%s): %w", i+1, st.Op, err)
		}
	}
	s.Flush()
	return s.Status(), s.Live(), nil
}

// runner applies steps to a session. Steps name entities by the aliases
// given in earlier steps' "as" fields; "<alias>.sub" is the sub-mask a
// mask or patch was seeded with.
type runner struct {
	s   *session.Session
	ids map[string]string
}

func (r *runner) id(ref string) string {
	if id, ok := r.ids[ref]; ok {
		return id
	}
	return ref
}

func (r *runner) alias(name, id string) {
	if name == "" {
		return
	}
	r.ids[name] = id
	if sub := r.s.Selection().SubMaskID; sub != "" {
		r.ids[name+".sub"] = sub
	}
}

func (r *runner) run(st step) error {
	s := r.s
	switch st.Op {
	case "scalar":
		return s.SetScalar(adjust.Scalar(st.Key), st.Value)
	case "hsl":
		return s.SetHSL(adjust.HueBand(st.Band), st.HSL)
	case "curve":
		return s.SetCurve(adjust.Channel(st.Channel), st.Points)
	case "curve_point":
		return s.AddCurvePoint(adjust.Channel(st.Channel), st.Point)
	case "remove_curve_point":
		return s.RemoveCurvePoint(adjust.Channel(st.Channel), st.Index)
	case "crop":
		return s.SetGeometry(adjust.GeometryUpdate{Crop: st.Rect, ClearCrop: st.Rect == nil})
	case "rotate":
		return s.SetGeometry(adjust.GeometryUpdate{Rotation: &st.Value})
	case "orientation":
		return s.SetGeometry(adjust.GeometryUpdate{OrientationSteps: st.Steps})
	case "flip_horizontal":
		v := !s.Live().FlipHorizontal
		return s.SetGeometry(adjust.GeometryUpdate{FlipHorizontal: &v})
	case "flip_vertical":
		v := !s.Live().FlipVertical
		return s.SetGeometry(adjust.GeometryUpdate{FlipVertical: &v})

	case "add_mask":
		id, err := s.AddMaskContainer(mask.Kind(st.Kind))
		if err == nil {
			r.alias(st.As, id)
		}
		return err
	case "duplicate_mask":
		id, err := s.DuplicateMaskContainer(r.id(st.Target))
		if err == nil {
			r.alias(st.As, id)
		}
		return err
	case "move_mask":
		return s.MoveMaskContainer(r.id(st.Target), st.Index)
	case "remove_mask":
		return s.RemoveMaskContainer(r.id(st.Target))
	case "mask":
		return s.UpdateMaskContainer(r.id(st.Target), mask.ContainerUpdate{
			Name:    st.Name,
			Visible: st.Visible,
			Invert:  st.Invert,
			Opacity: st.Opacity,
		})
	case "add_sub_mask":
		id, err := s.AddSubMask(r.id(st.Target), mask.Kind(st.Kind))
		if err == nil && st.As != "" {
			r.ids[st.As] = id
		}
		return err
	case "remove_sub_mask":
		return s.RemoveSubMask(r.id(st.Target))
	case "sub_mask":
		u := mask.SubMaskUpdate{Visible: st.Visible, Opacity: st.Opacity, Box: st.Rect}
		if st.Mode != "" {
			m := mask.Mode(st.Mode)
			u.Mode = &m
		}
		return s.UpdateSubMask(r.id(st.Target), u)
	case "generate_mask":
		return s.GenerateMask(r.id(st.Target))

	case "add_patch":
		id, err := s.AddAiPatch(mask.PatchKind(st.Kind))
		if err == nil {
			r.alias(st.As, id)
		}
		return err
	case "remove_patch":
		return s.RemoveAiPatch(r.id(st.Target))
	case "patch":
		return s.UpdateAiPatch(r.id(st.Target), mask.PatchUpdate{
			Name:    st.Name,
			Visible: st.Visible,
			Prompt:  st.Prompt,
		})
	case "generate_patch":
		return s.GeneratePatch(r.id(st.Target))

	case "undo":
		s.Undo()
	case "redo":
		s.Redo()
	case "commit":
		s.Commit()
	case "zoom":
		s.SetZoom(st.Value)
	case "wait":
		if st.Duration > 0 {
			time.Sleep(st.Duration)
		} else {
			s.Flush()
		}
	default:
		return fmt.Errorf("unknown op %q", st.Op)
	}
	return nil
}
