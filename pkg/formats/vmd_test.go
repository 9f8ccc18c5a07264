package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/Faultbox/headless-mmd/pkg/encoding"
	"github.com/Faultbox/headless-mmd/pkg/math"
)

var (
	sjisCenter = string(encoding.UTF8ToShiftJIS("センター"))
	sjisLegIKL = string(encoding.UTF8ToShiftJIS("左足ＩＫ"))
	sjisLegIKR = string(encoding.UTF8ToShiftJIS("右足ＩＫ"))
	sjisMouthA = string(encoding.UTF8ToShiftJIS("あ"))
)

type vmdBuilder struct {
	buf bytes.Buffer
}

func (b *vmdBuilder) put(vals ...any) {
	for _, v := range vals {
		binary.Write(&b.buf, binary.LittleEndian, v)
	}
}

func (b *vmdBuilder) fixed(s string, n int) {
	field := make([]byte, n)
	copy(field, s)
	b.buf.Write(field)
}

func (b *vmdBuilder) boneKey(name string, frame uint32, pos [3]float32, interp [64]byte) {
	b.fixed(name, 15)
	b.put(frame, pos, [4]float32{0, 0, 0, 1}, interp)
}

func (b *vmdBuilder) cameraKey(frame uint32, distance float32) {
	b.put(frame, distance, [3]float32{0, 10, 0}, [3]float32{0.1, 0.2, 0.3})
	for i := 0; i < 6; i++ {
		b.put([4]int8{20, 107, 20, 107})
	}
	b.put(int32(30), uint8(0))
}

// buildSyntheticVMD writes a motion with every track type. The IK bone key
// carries the physics-off marker and a custom X curve.
func buildSyntheticVMD() []byte {
	b := &vmdBuilder{}
	b.fixed("Vocaloid Motion Data 0002", 30)
	b.fixed("model", 20)

	ik := defaultBoneInterp
	ik[0], ik[4], ik[8], ik[12] = 10, 20, 30, 40
	ik[2], ik[3] = 0x63, 0x0F

	b.put(uint32(3))
	b.boneKey(sjisCenter, 0, [3]float32{}, defaultBoneInterp)
	b.boneKey(sjisLegIKL, 5, [3]float32{1, 0, 0}, ik)
	b.boneKey(sjisCenter, 10, [3]float32{0, 1, 0}, defaultBoneInterp)

	b.put(uint32(1))
	b.fixed(sjisMouthA, 15)
	b.put(uint32(3), float32(0.5))

	b.put(uint32(2))
	b.cameraKey(30, -20)
	b.cameraKey(0, -45)

	b.put(uint32(1), uint32(0), [3]float32{0.6, 0.6, 0.6}, [3]float32{-0.5, -1, 0.5})
	b.put(uint32(1), uint32(0), int8(1), float32(0.01))

	b.put(uint32(2))
	b.put(uint32(0), uint8(1), uint32(2))
	b.fixed(sjisLegIKL, 20)
	b.put(uint8(1))
	b.fixed(sjisLegIKR, 20)
	b.put(uint8(1))
	b.put(uint32(10), uint8(0), uint32(1))
	b.fixed(sjisLegIKL, 20)
	b.put(uint8(0))

	return b.buf.Bytes()
}

func TestLoadMotion_InvalidMagic(t *testing.T) {
	data := buildSyntheticVMD()
	copy(data, "Vocaloid Motion Data file")
	_, err := LoadMotion(data)
	if !errors.Is(err, ErrInvalidVMDMagic) {
		t.Errorf("expected ErrInvalidVMDMagic, got %v", err)
	}
}

func TestLoadMotion_Structure(t *testing.T) {
	m, err := LoadMotion(buildSyntheticVMD())
	if err != nil {
		t.Fatalf("failed to parse VMD: %v", err)
	}

	if m.Name != "model" {
		t.Errorf("expected name 'model', got %q", m.Name)
	}
	if len(m.Bones) != 2 || len(m.Bones[sjisCenter]) != 2 || len(m.Bones[sjisLegIKL]) != 1 {
		t.Fatalf("unexpected bone tracks: %d", len(m.Bones))
	}
	if m.Bones[sjisCenter][1].Position != (math.Vec3{X: 0, Y: 1, Z: 0}) {
		t.Errorf("unexpected position %v", m.Bones[sjisCenter][1].Position)
	}
	if m.Morphs[sjisMouthA][0].Weight != 0.5 {
		t.Errorf("expected morph weight 0.5, got %f", m.Morphs[sjisMouthA][0].Weight)
	}
	if len(m.Lights) != 1 || len(m.Shadows) != 1 || m.Shadows[0].Mode != 1 {
		t.Errorf("unexpected light/shadow tracks: %+v %+v", m.Lights, m.Shadows)
	}
}

func TestLoadMotion_Interpolation(t *testing.T) {
	m, err := LoadMotion(buildSyntheticVMD())
	if err != nil {
		t.Fatalf("failed to parse VMD: %v", err)
	}

	center := m.Bones[sjisCenter][0]
	if !center.Physics {
		t.Error("expected physics enabled without the marker")
	}
	for _, e := range []Ease{center.X, center.Y, center.Z, center.R} {
		if e != DefaultEase {
			t.Errorf("expected default ease, got %+v", e)
		}
	}

	ik := m.Bones[sjisLegIKL][0]
	if ik.Physics {
		t.Error("expected physics disabled by the 0x63 0x0F marker")
	}
	want := Ease{X1: 10, Y1: 20, X2: 30, Y2: 40}
	if ik.X != want {
		t.Errorf("expected X ease %+v, got %+v", want, ik.X)
	}
}

func TestLoadMotion_CameraSorted(t *testing.T) {
	m, err := LoadMotion(buildSyntheticVMD())
	if err != nil {
		t.Fatalf("failed to parse VMD: %v", err)
	}
	if len(m.Cameras) != 2 {
		t.Fatalf("expected 2 camera keys, got %d", len(m.Cameras))
	}
	if m.Cameras[0].Frame != 0 || m.Cameras[1].Frame != 30 {
		t.Errorf("expected camera frames [0 30], got [%d %d]", m.Cameras[0].Frame, m.Cameras[1].Frame)
	}
	if m.Cameras[0].Distance != -45 || m.Cameras[0].ViewAngle != 30 {
		t.Errorf("unexpected camera key %+v", m.Cameras[0])
	}
}

func TestLoadMotion_ExtensionSplit(t *testing.T) {
	m, err := LoadMotion(buildSyntheticVMD())
	if err != nil {
		t.Fatalf("failed to parse VMD: %v", err)
	}

	wantVis := []VisibilityKey{{Frame: 0, Visible: true}, {Frame: 10, Visible: false}}
	if !reflect.DeepEqual(m.Visibility, wantVis) {
		t.Errorf("expected visibility %v, got %v", wantVis, m.Visibility)
	}

	wantIK := map[string][]IKKey{
		sjisLegIKL: {{Frame: 0, Enabled: true}, {Frame: 10, Enabled: false}},
		sjisLegIKR: {{Frame: 0, Enabled: true}},
	}
	if !reflect.DeepEqual(m.IK, wantIK) {
		t.Errorf("expected IK %v, got %v", wantIK, m.IK)
	}
}

func TestLoadMotion_TruncatedAtEveryOffset(t *testing.T) {
	data := buildSyntheticVMD()
	for n := 0; n < len(data); n++ {
		m, err := LoadMotion(data[:n])
		if err == nil || m != nil {
			t.Fatalf("expected failure for buffer truncated to %d of %d bytes", n, len(data))
		}
		if n >= 30 && !errors.Is(err, ErrTruncated) {
			t.Fatalf("offset %d: expected truncation error, got %v", n, err)
		}
	}
}

func TestLoadMotion_HugeCount(t *testing.T) {
	b := &vmdBuilder{}
	b.fixed(VMDMagic, 30)
	b.fixed("", 20)
	b.put(uint32(0xFFFFFFFF))
	if _, err := LoadMotion(b.buf.Bytes()); !errors.Is(err, ErrTruncatedVMDData) {
		t.Errorf("expected ErrTruncatedVMDData, got %v", err)
	}
}

func TestMotion_RoundTrip(t *testing.T) {
	original, err := LoadMotion(buildSyntheticVMD())
	if err != nil {
		t.Fatalf("failed to parse VMD: %v", err)
	}

	saved := SaveMotion(original)
	reloaded, err := LoadMotion(saved)
	if err != nil {
		t.Fatalf("failed to reload: %v", err)
	}
	if !reflect.DeepEqual(original, reloaded) {
		t.Errorf("round trip mismatch\nwant %+v\ngot  %+v", original, reloaded)
	}

	ik := reloaded.Bones[sjisLegIKL][0]
	if ik.Raw[2] != 0x63 || ik.Raw[3] != 0x0F {
		t.Errorf("expected physics marker to survive, got % X", ik.Raw[:4])
	}

	if again := SaveMotion(reloaded); !bytes.Equal(saved, again) {
		t.Error("second save differs from first")
	}
}

func TestSaveMotion_MergesExtension(t *testing.T) {
	m := NewMotion("m")
	m.Visibility = []VisibilityKey{{Frame: 20, Visible: false}, {Frame: 0, Visible: true}}
	m.IK["b"] = []IKKey{{Frame: 5, Enabled: false}, {Frame: 20, Enabled: true}}
	m.IK["a"] = []IKKey{{Frame: 5, Enabled: true}}

	got, err := LoadMotion(SaveMotion(m))
	if err != nil {
		t.Fatalf("failed to reload: %v", err)
	}

	wantVis := []VisibilityKey{{Frame: 0, Visible: true}, {Frame: 5, Visible: true}, {Frame: 20, Visible: false}}
	if !reflect.DeepEqual(got.Visibility, wantVis) {
		t.Errorf("expected visibility %v, got %v", wantVis, got.Visibility)
	}
	wantIK := map[string][]IKKey{
		"a": {{Frame: 5, Enabled: true}},
		"b": {{Frame: 5, Enabled: false}, {Frame: 20, Enabled: true}},
	}
	if !reflect.DeepEqual(got.IK, wantIK) {
		t.Errorf("expected IK %v, got %v", wantIK, got.IK)
	}
}

func TestBoneKey_PhysicsPacking(t *testing.T) {
	tests := []struct {
		name    string
		raw     [64]byte
		physics bool
		want2   byte
		want3   byte
	}{
		{"disable", defaultBoneInterp, false, 0x63, 0x0F},
		{"keep enabled", defaultBoneInterp, true, defaultBoneInterp[2], defaultBoneInterp[3]},
		{"re-enable", func() [64]byte {
			r := defaultBoneInterp
			r[2], r[3] = 0x63, 0x0F
			return r
		}(), true, 20, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := DefaultBoneKey(0)
			k.Raw = tt.raw
			k.Physics = tt.physics
			raw := k.packInterp()
			if raw[2] != tt.want2 || raw[3] != tt.want3 {
				t.Errorf("expected bytes 2-3 = %02X %02X, got %02X %02X", tt.want2, tt.want3, raw[2], raw[3])
			}
		})
	}
}

func TestSaveMotion_EaseOverridesRaw(t *testing.T) {
	m := NewMotion("m")
	k := DefaultBoneKey(0)
	k.R = Ease{X1: 1, X2: 2, Y1: 3, Y2: 4}
	m.Bones["bone"] = []BoneKey{k}

	got, err := LoadMotion(SaveMotion(m))
	if err != nil {
		t.Fatalf("failed to reload: %v", err)
	}
	if r := got.Bones["bone"][0].R; r != k.R {
		t.Errorf("expected R ease %+v, got %+v", k.R, r)
	}
}

func TestSaveMotion_TruncatesNames(t *testing.T) {
	m := NewMotion("a very long model name here")
	m.Morphs["abcdefghijklmnopqrstuvwxyz"] = []MorphKey{{Frame: 1, Weight: 1}}

	got, err := LoadMotion(SaveMotion(m))
	if err != nil {
		t.Fatalf("failed to reload: %v", err)
	}
	if got.Name != "a very long model na" {
		t.Errorf("expected 20-byte name, got %q", got.Name)
	}
	if _, ok := got.Morphs["abcdefghijklmno"]; !ok {
		t.Errorf("expected 15-byte morph name, got %v", got.MorphNames())
	}
}

func TestMotion_ConvertNames(t *testing.T) {
	m, err := LoadMotion(buildSyntheticVMD())
	if err != nil {
		t.Fatalf("failed to parse VMD: %v", err)
	}
	m.ConvertNames(encoding.ShiftJISStringToUTF8)

	if _, ok := m.Bones["センター"]; !ok {
		t.Errorf("expected converted bone name, got %v", m.BoneNames())
	}
	if _, ok := m.IK["右足ＩＫ"]; !ok {
		t.Error("expected converted IK name")
	}
	if got := m.MaxFrame(); got != 30 {
		t.Errorf("expected max frame 30, got %d", got)
	}
}

func TestLoadMotionFile(t *testing.T) {
	m, err := LoadMotion(buildSyntheticVMD())
	if err != nil {
		t.Fatalf("failed to parse: %v", err)
	}
	path := filepath.Join(t.TempDir(), "motion.vmd")
	if err := SaveMotionFile(path, m); err != nil {
		t.Fatalf("failed to save: %v", err)
	}
	loaded, err := LoadMotionFile(path)
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}
	if len(loaded.Cameras) != 2 {
		t.Errorf("expected 2 camera keys, got %d", len(loaded.Cameras))
	}
}

func TestDefaultCameraKey(t *testing.T) {
	k := DefaultCameraKey(7)
	if k.Frame != 7 || k.Distance != 45 || k.ViewAngle != 30 || k.Orthographic {
		t.Errorf("unexpected default camera %+v", k)
	}
	if k.Position != (math.Vec3{Y: 10}) || k.Rotation != (math.Vec3{}) {
		t.Errorf("unexpected default placement %v %v", k.Position, k.Rotation)
	}
	for _, e := range []Ease{k.X, k.Y, k.Z, k.R, k.Dist, k.Angle} {
		if e != DefaultEase {
			t.Errorf("expected default curves, got %+v", e)
		}
	}
}

func TestInterpBlock_DecodesBack(t *testing.T) {
	x := Ease{X1: 1, X2: 2, Y1: 3, Y2: 4}
	y := Ease{X1: 5, X2: 6, Y1: 7, Y2: 8}
	z := Ease{X1: 9, X2: 10, Y1: 11, Y2: 12}
	r := Ease{X1: 13, X2: 14, Y1: 15, Y2: 16}
	raw := interpBlock(x, y, z, r)

	for i, tt := range []struct {
		base int
		want Ease
	}{{0, x}, {16, y}, {32, z}, {48, r}} {
		if got := decodeEase(&raw, tt.base); got != tt.want {
			t.Errorf("channel %d: expected %+v, got %+v", i, tt.want, got)
		}
	}
}

func TestLoadMotionFile_Generated(t *testing.T) {
	testFile := filepath.Join("testdata", "test.vmd")
	if _, err := os.Stat(testFile); os.IsNotExist(err) {
		t.Skip("testdata/test.vmd not found, run: go run testdata/generate_vmd.go")
	}

	m, err := LoadMotionFile(testFile)
	if err != nil {
		t.Fatalf("failed to parse test VMD file: %v", err)
	}
	if m.Name != "generated" {
		t.Errorf("expected model name 'generated', got %q", m.Name)
	}

	keys := m.Bones[sjisCenter]
	if len(keys) != 2 || keys[1].Frame != 30 {
		t.Fatalf("expected center keys at frames 0 and 30, got %+v", keys)
	}
	if keys[1].X != DefaultEase || keys[1].R != DefaultEase || !keys[1].Physics {
		t.Errorf("expected default curves with physics on, got %+v", keys[1])
	}
	if len(m.Morphs[sjisMouthA]) != 1 || len(m.Cameras) != 1 {
		t.Errorf("unexpected morph or camera tracks: %d %d", len(m.Morphs[sjisMouthA]), len(m.Cameras))
	}
}
