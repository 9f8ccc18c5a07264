package formats

import (
	"cmp"
	"fmt"
	"os"
	"slices"

	"github.com/Faultbox/headless-mmd/pkg/binio"
	"github.com/Faultbox/headless-mmd/pkg/math"
)

// Scene capture errors.
var (
	ErrInvalidCaptureFlags  = fmt.Errorf("%w: unsupported scene capture flags", ErrFormat)
	ErrInvalidCaptureCount  = fmt.Errorf("%w: invalid scene capture count", ErrFormat)
	ErrTruncatedCaptureData = fmt.Errorf("%w: truncated scene capture data", ErrTruncated)
)

// CaptureFlags lists the channels present in a scene capture.
type CaptureFlags uint32

// Capture channels.
const (
	CaptureMotion CaptureFlags = 1 << iota
	CaptureMorphs
	CaptureCamera

	// CaptureAll is the only combination the capture plugin writes.
	CaptureAll = CaptureMotion | CaptureMorphs | CaptureCamera
)

// Capture is a scene baked out of MMD by the capture plugin: dense per-frame
// bone matrices and sparse morph keys for each model, plus the camera.
type Capture struct {
	Models  []CaptureModel
	Cameras []CameraKey // sorted by frame after load
}

// CaptureModel holds one model's baked animation. Names are raw
// (Shift-JIS) bytes.
type CaptureModel struct {
	Name   string
	Bones  []CaptureBone
	Morphs []CaptureMorph
}

// CaptureBone is a bone's pose matrix for every frame from 0.
type CaptureBone struct {
	Name   string
	Frames []math.Mat4
}

// CaptureMorph is a morph's weight keys.
type CaptureMorph struct {
	Name string
	Keys []MorphKey
}

// FindModel returns the captured model with the given name, or nil.
func (c *Capture) FindModel(name string) *CaptureModel {
	for i := range c.Models {
		if c.Models[i].Name == name {
			return &c.Models[i]
		}
	}
	return nil
}

// ConvertNames rewrites the model, bone and morph names with conv.
func (m *CaptureModel) ConvertNames(conv func(string) string) {
	m.Name = conv(m.Name)
	for i := range m.Bones {
		m.Bones[i].Name = conv(m.Bones[i].Name)
	}
	for i := range m.Morphs {
		m.Morphs[i].Name = conv(m.Morphs[i].Name)
	}
}

// LoadCaptureFile reads and parses a scene capture from disk.
func LoadCaptureFile(path string) (*Capture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scene capture: %w", err)
	}
	return LoadCapture(data)
}

// LoadCapture parses a scene capture.
func LoadCapture(data []byte) (*Capture, error) {
	r := binio.NewReader(data)

	flags := CaptureFlags(r.Uint32())
	if r.Overflow() {
		return nil, checkpoint(r, ErrTruncatedCaptureData)
	}
	if flags != CaptureAll {
		return nil, fmt.Errorf("%w: 0b%03b", ErrInvalidCaptureFlags, flags)
	}

	n, err := captureCount(r, 3*4)
	if err != nil {
		return nil, fmt.Errorf("parsing models: %w", err)
	}

	c := &Capture{Models: make([]CaptureModel, n)}
	for i := range c.Models {
		if err := loadCaptureModel(r, &c.Models[i]); err != nil {
			return nil, fmt.Errorf("parsing model %d: %w", i, err)
		}
		if err := checkpoint(r, ErrTruncatedCaptureData); err != nil {
			return nil, fmt.Errorf("parsing model %d: %w", i, err)
		}
	}

	cams := r.Uint32()
	if r.Overflow() {
		return nil, fmt.Errorf("parsing camera keys: %w", checkpoint(r, ErrTruncatedCaptureData))
	}
	if uint64(cams) > uint64(r.Remaining()) || !r.Fits(int(cams), vmdCameraKeySize) {
		return nil, fmt.Errorf("parsing camera keys: %w: %d keys", ErrTruncatedCaptureData, cams)
	}
	c.Cameras = make([]CameraKey, cams)
	for i := range c.Cameras {
		c.Cameras[i].Frame = r.Uint32()
		readCameraBody(r, &c.Cameras[i])
	}
	if err := checkpoint(r, ErrTruncatedCaptureData); err != nil {
		return nil, fmt.Errorf("parsing camera keys: %w", err)
	}
	slices.SortStableFunc(c.Cameras, func(a, b CameraKey) int { return cmp.Compare(a.Frame, b.Frame) })

	return c, nil
}

// captureCount reads an int32 count and validates it.
func captureCount(r *binio.Reader, minSize int) (int, error) {
	n := r.Int32()
	if r.Overflow() {
		return 0, checkpoint(r, ErrTruncatedCaptureData)
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidCaptureCount, n)
	}
	if !r.Fits(int(n), minSize) {
		return 0, fmt.Errorf("%w: %d elements exceed remaining %d bytes", ErrTruncatedCaptureData, n, r.Remaining())
	}
	return int(n), nil
}

func loadCaptureModel(r *binio.Reader, m *CaptureModel) error {
	m.Name = r.TextA()

	bones, err := captureCount(r, 2*4)
	if err != nil {
		return fmt.Errorf("bones: %w", err)
	}
	m.Bones = make([]CaptureBone, bones)
	for i := range m.Bones {
		b := &m.Bones[i]
		b.Name = r.TextA()
		frames, err := captureCount(r, 64)
		if err != nil {
			return fmt.Errorf("bone %d: %w", i, err)
		}
		b.Frames = make([]math.Mat4, frames)
		for j := range b.Frames {
			b.Frames[j] = r.Mat4()
		}
	}

	morphs, err := captureCount(r, 2*4)
	if err != nil {
		return fmt.Errorf("morphs: %w", err)
	}
	m.Morphs = make([]CaptureMorph, morphs)
	for i := range m.Morphs {
		mo := &m.Morphs[i]
		mo.Name = r.TextA()
		keys, err := captureCount(r, vmdMorphKeySize)
		if err != nil {
			return fmt.Errorf("morph %d: %w", i, err)
		}
		mo.Keys = make([]MorphKey, keys)
		for j := range mo.Keys {
			mo.Keys[j] = MorphKey{Frame: r.Uint32(), Weight: r.Float32()}
		}
	}
	return nil
}

// SaveCaptureFile serializes c and writes it to path.
func SaveCaptureFile(path string, c *Capture) error {
	if err := os.WriteFile(path, SaveCapture(c), 0o644); err != nil {
		return fmt.Errorf("writing scene capture: %w", err)
	}
	return nil
}

// SaveCapture serializes c in the layout the capture plugin writes.
func SaveCapture(c *Capture) []byte {
	w := binio.NewWriter(0)
	w.PutUint32(uint32(CaptureAll))

	w.PutInt32(int32(len(c.Models)))
	for i := range c.Models {
		m := &c.Models[i]
		w.PutTextA(m.Name)

		w.PutInt32(int32(len(m.Bones)))
		for _, b := range m.Bones {
			w.PutTextA(b.Name)
			w.PutInt32(int32(len(b.Frames)))
			for _, mat := range b.Frames {
				w.PutMat4(mat)
			}
		}

		w.PutInt32(int32(len(m.Morphs)))
		for _, mo := range m.Morphs {
			w.PutTextA(mo.Name)
			w.PutInt32(int32(len(mo.Keys)))
			for _, k := range mo.Keys {
				w.PutUint32(k.Frame)
				w.PutFloat32(k.Weight)
			}
		}
	}

	w.PutUint32(uint32(len(c.Cameras)))
	for i := range c.Cameras {
		w.PutUint32(c.Cameras[i].Frame)
		writeCameraBody(w, &c.Cameras[i])
	}
	return w.Bytes()
}
