package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/headless-mmd/internal/assets"
	"github.com/Faultbox/headless-mmd/internal/config"
	"github.com/Faultbox/headless-mmd/internal/logger"
	"github.com/Faultbox/headless-mmd/pkg/anim"
	"github.com/Faultbox/headless-mmd/pkg/encoding"
	"github.com/Faultbox/headless-mmd/pkg/formats"
	"github.com/Faultbox/headless-mmd/pkg/math"
)

// Asset kinds by file extension.
const (
	kindModel  = ".pmx"
	kindMotion = ".vmd"
	kindScene  = ".mscap"
)

func kindOf(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

func cmdInfo(args []string) {
	e := setup("info", "<file>", 1, args)
	defer logger.Sync()

	path := e.fs.Arg(0)
	conv := encoding.ShiftJISStringToUTF8
	if e.cfg.Import.NameEncoding == config.NameEncodingRaw {
		conv = strconv.Quote
	}

	var err error
	switch kindOf(path) {
	case kindModel:
		err = printModelInfo(path)
	case kindMotion:
		err = printMotionInfo(path, conv)
	case kindScene:
		err = printSceneInfo(path, conv)
	default:
		err = fmt.Errorf("unknown file type: %s", path)
	}
	if err != nil {
		fatal("%v", err)
	}
}

func printModelInfo(path string) error {
	m, err := formats.LoadModelFile(path)
	if err != nil {
		return err
	}
	h := &m.Header
	fmt.Printf("Model:     %s\n", h.Name)
	if h.NameEn != "" {
		fmt.Printf("English:   %s\n", h.NameEn)
	}
	fmt.Printf("Version:   %.1f (%s, %d extra UVs)\n", h.Version, h.Encoding, h.ExtraUVs)
	fmt.Printf("Vertices:  %d\n", len(m.Vertices))
	fmt.Printf("Faces:     %d\n", len(m.Indices)/3)
	fmt.Printf("Textures:  %d\n", len(m.Textures))
	fmt.Printf("Materials: %d\n", len(m.Materials))
	fmt.Printf("Bones:     %d\n", len(m.Bones))
	fmt.Printf("Morphs:    %d (group %d, vertex %d, bone %d, uv %d, material %d)\n",
		m.MorphCount(), len(m.GroupMorphs), len(m.VertexMorphs), len(m.BoneMorphs),
		len(m.UVMorphs), len(m.MaterialMorphs))
	fmt.Printf("Frames:    %d\n", len(m.DisplayFrames))
	fmt.Printf("Bodies:    %d\n", len(m.RigidBodies))
	fmt.Printf("Joints:    %d\n", len(m.Joints))
	return nil
}

func printMotionInfo(path string, conv func(string) string) error {
	m, err := formats.LoadMotionFile(path)
	if err != nil {
		return err
	}
	m.ConvertNames(conv)

	fmt.Printf("Motion:     %s\n", m.Name)
	fmt.Printf("Last frame: %d\n", m.MaxFrame())
	fmt.Printf("Bones:      %d tracks\n", len(m.Bones))
	for _, name := range m.BoneNames() {
		fmt.Printf("  %-20s %d keys\n", name, len(m.Bones[name]))
	}
	fmt.Printf("Morphs:     %d tracks\n", len(m.Morphs))
	for _, name := range m.MorphNames() {
		fmt.Printf("  %-20s %d keys\n", name, len(m.Morphs[name]))
	}
	fmt.Printf("Camera:     %d keys\n", len(m.Cameras))
	fmt.Printf("Light:      %d keys\n", len(m.Lights))
	fmt.Printf("Shadow:     %d keys\n", len(m.Shadows))
	fmt.Printf("Visibility: %d keys\n", len(m.Visibility))
	fmt.Printf("IK:         %d tracks\n", len(m.IK))
	return nil
}

func printSceneInfo(path string, conv func(string) string) error {
	c, err := formats.LoadCaptureFile(path)
	if err != nil {
		return err
	}
	fmt.Printf("Scene:   %s\n", path)
	fmt.Printf("Models:  %d\n", len(c.Models))
	for i := range c.Models {
		m := &c.Models[i]
		m.ConvertNames(conv)
		frames := 0
		for _, b := range m.Bones {
			frames = max(frames, len(b.Frames))
		}
		fmt.Printf("  %-20s %d bones, %d morphs, %d frames\n", m.Name, len(m.Bones), len(m.Morphs), frames)
	}
	fmt.Printf("Camera:  %d keys\n", len(c.Cameras))
	return nil
}

func cmdRoundTrip(args []string) {
	e := setup("roundtrip", "<in> <out>", 2, args)
	defer logger.Sync()

	in, out := e.fs.Arg(0), e.fs.Arg(1)
	if kindOf(in) != kindOf(out) {
		fatal("input and output must have the same extension")
	}

	var err error
	switch kindOf(in) {
	case kindModel:
		var m *formats.Model
		if m, err = formats.LoadModelFile(in); err == nil {
			err = formats.SaveModelFile(out, m)
		}
	case kindMotion:
		var m *formats.Motion
		if m, err = formats.LoadMotionFile(in); err == nil {
			err = formats.SaveMotionFile(out, m)
		}
	case kindScene:
		var c *formats.Capture
		if c, err = formats.LoadCaptureFile(in); err == nil {
			err = formats.SaveCaptureFile(out, c)
		}
	default:
		err = fmt.Errorf("unknown file type: %s", in)
	}
	if err != nil {
		fatal("%v", err)
	}

	inInfo, _ := os.Stat(in)
	outInfo, _ := os.Stat(out)
	if inInfo != nil && outInfo != nil {
		logger.Info("round trip complete",
			zap.String("in", in), zap.Int64("in_bytes", inInfo.Size()),
			zap.String("out", out), zap.Int64("out_bytes", outInfo.Size()))
	}
	fmt.Printf("Wrote %s\n", out)
}

// importAnimation imports a motion or scene capture and returns its
// animation and camera IDs.
func importAnimation(lib *assets.Library, path string, model assets.ID) (assets.ID, assets.ID, error) {
	switch kindOf(path) {
	case kindMotion:
		return lib.ImportMotion(path, model)
	case kindScene:
		return lib.ImportScene(path, model)
	default:
		return assets.NullID, assets.NullID, fmt.Errorf("not a motion file: %s", path)
	}
}

func parseFrame(s string) int {
	frame, err := strconv.Atoi(s)
	if err != nil || frame < 0 {
		fatal("invalid frame %q", s)
	}
	return frame
}

func cmdPose(args []string) {
	e := setup("pose", "<model.pmx> <motion> <frame>", 3, args)
	defer logger.Sync()

	frame := parseFrame(e.fs.Arg(2))
	modelID, err := e.lib.ImportModel(e.fs.Arg(0))
	if err != nil {
		fatal("%v", err)
	}
	animID, _, err := importAnimation(e.lib, e.fs.Arg(1), modelID)
	if err != nil {
		fatal("%v", err)
	}

	model := e.lib.Model(modelID)
	a := e.lib.Animation(animID)
	if a == nil {
		fatal("%s has no animation for the model", e.fs.Arg(1))
	}
	fmt.Printf("Frame %d of %d\n", frame, a.NumFrames())

	fmt.Println("Bones:")
	for i, m := range a.Pose(frame, nil) {
		t := m.Translation()
		fmt.Printf("  %-20s translation (%8.3f %8.3f %8.3f)\n", model.Skeleton.Names[i], t.X, t.Y, t.Z)
	}

	fmt.Println("Morphs:")
	for i, w := range a.MorphWeights(frame, nil) {
		if w != 0 {
			fmt.Printf("  %-20s %.3f\n", model.MorphNames[i], w)
		}
	}
}

func cmdCamera(args []string) {
	e := setup("camera", "<motion> <frame>", 2, args)
	defer logger.Sync()

	frame := parseFrame(e.fs.Arg(1))
	_, camID, err := importAnimation(e.lib, e.fs.Arg(0), assets.NullID)
	if err != nil {
		fatal("%v", err)
	}
	if camID == assets.NullID {
		fatal("%s has no camera keys", e.fs.Arg(0))
	}

	cam := e.lib.Camera(camID)
	s := cam.CameraAt(frame)
	fmt.Printf("Frame:    %d of %d\n", frame, cam.NumFrames())
	fmt.Printf("Position: %s\n", formatVec3(s.Position))
	fmt.Printf("Forward:  %s\n", formatVec3(s.Forward))
	fmt.Printf("Up:       %s\n", formatVec3(s.Up))
	fmt.Printf("FoV:      %.0f\n", s.FoV)
}

func formatVec3(v math.Vec3) string {
	return fmt.Sprintf("(%8.3f %8.3f %8.3f)", v.X, v.Y, v.Z)
}

func cmdExportMorphs(args []string) {
	e := setup("export-morphs", "<model.pmx> <motion> <out.vmd>", 3, args)
	defer logger.Sync()

	modelID, err := e.lib.ImportModel(e.fs.Arg(0))
	if err != nil {
		fatal("%v", err)
	}
	animID, _, err := importAnimation(e.lib, e.fs.Arg(1), modelID)
	if err != nil {
		fatal("%v", err)
	}

	model := e.lib.Model(modelID)
	a := e.lib.Animation(animID)
	if a == nil {
		fatal("%s has no animation for the model", e.fs.Arg(1))
	}

	// PMX names are decoded to UTF-8; VMD stores Shift-JIS.
	names := make([]string, len(model.MorphNames))
	tracks := make([]anim.Track[float32], len(model.MorphNames))
	for i, name := range model.MorphNames {
		names[i] = string(encoding.UTF8ToShiftJIS(name))
		tracks[i] = a.MorphTrack(i)
	}

	motion, err := anim.ExportMorphMotion(string(encoding.UTF8ToShiftJIS(e.cfg.Export.ModelName)), names, tracks)
	if err != nil {
		fatal("%v", err)
	}
	if err := formats.SaveMotionFile(e.fs.Arg(2), motion); err != nil {
		fatal("%v", err)
	}
	logger.Info("exported morphs",
		zap.String("out", e.fs.Arg(2)),
		zap.Int("tracks", len(motion.Morphs)))
	fmt.Printf("Wrote %d morph tracks to %s\n", len(motion.Morphs), e.fs.Arg(2))
}
