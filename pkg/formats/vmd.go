package formats

import (
	"cmp"
	"fmt"
	"maps"
	"slices"

	"github.com/Faultbox/headless-mmd/pkg/math"
)

// VMD format errors.
var (
	ErrInvalidVMDMagic  = fmt.Errorf("%w: invalid VMD magic: expected 'Vocaloid Motion Data 0002'", ErrFormat)
	ErrTruncatedVMDData = fmt.Errorf("%w: truncated VMD data", ErrTruncated)
)

// VMD layout constants.
const (
	VMDMagic          = "Vocaloid Motion Data 0002"
	vmdMagicSize      = 30
	vmdModelNameSize  = 20
	vmdTrackNameSize  = 15
	vmdIKNameSize     = 20
	vmdInterpSize     = 64
	vmdBoneKeySize    = 4 + 12 + 16 + vmdInterpSize
	vmdMorphKeySize   = 4 + 4
	vmdCameraKeySize  = 4 + 4 + 12 + 12 + 6*4 + 4 + 1
	vmdLightKeySize   = 4 + 12 + 12
	vmdShadowKeySize  = 4 + 1 + 4
	vmdExKeyMinSize   = 4 + 1 + 4
	vmdIKEntrySize    = vmdIKNameSize + 1
	physicsOffMarker0 = 0x63
	physicsOffMarker1 = 0x0F
)

// Ease is a cubic Bezier easing curve with control points (X1,Y1) and
// (X2,Y2), each coordinate stored as a signed byte in [0,127].
type Ease struct {
	X1, X2, Y1, Y2 int8
}

// DefaultEase is the curve MMD assigns to new keys. It is close to linear.
var DefaultEase = Ease{X1: 20, X2: 107, Y1: 20, Y2: 107}

// defaultBoneInterp is the interpolation block for a key using DefaultEase
// on every channel.
var defaultBoneInterp = interpBlock(DefaultEase, DefaultEase, DefaultEase, DefaultEase)

// interpBlock lays out four curves the way MMD stores them: one 16-byte row
// interleaving the channels, repeated four times, each copy shifted left by
// one byte.
func interpBlock(x, y, z, r Ease) [vmdInterpSize]byte {
	row := [16]byte{
		byte(x.X1), byte(y.X1), byte(z.X1), byte(r.X1),
		byte(x.Y1), byte(y.Y1), byte(z.Y1), byte(r.Y1),
		byte(x.X2), byte(y.X2), byte(z.X2), byte(r.X2),
		byte(x.Y2), byte(y.Y2), byte(z.Y2), byte(r.Y2),
	}
	var raw [vmdInterpSize]byte
	for i := 0; i < 4; i++ {
		copy(raw[i*16:(i+1)*16], row[i:])
	}
	return raw
}

// Motion represents a parsed VMD motion.
//
// Track names are kept as the raw bytes stored in the file (usually
// Shift-JIS); use ConvertNames to change their encoding.
type Motion struct {
	Name       string
	Bones      map[string][]BoneKey
	Morphs     map[string][]MorphKey
	Cameras    []CameraKey
	Lights     []LightKey
	Shadows    []ShadowKey
	Visibility []VisibilityKey
	IK         map[string][]IKKey
}

// NewMotion returns an empty motion with initialized track maps.
func NewMotion(name string) *Motion {
	return &Motion{
		Name:   name,
		Bones:  make(map[string][]BoneKey),
		Morphs: make(map[string][]MorphKey),
		IK:     make(map[string][]IKKey),
	}
}

// BoneKey is a bone pose keyframe.
type BoneKey struct {
	Frame       uint32
	Position    math.Vec3
	Orientation math.Quat
	X, Y, Z, R  Ease
	// Raw is the interpolation block as stored on disk. The easing curves
	// above are decoded from it and written back into it on save.
	Raw [vmdInterpSize]byte
	// Physics is false when the key disables physics for the bone, which
	// the format marks by storing 0x63 0x0F in Raw[2:4].
	Physics bool
}

// DefaultBoneKey returns an identity pose key using DefaultEase.
func DefaultBoneKey(frame uint32) BoneKey {
	return BoneKey{
		Frame:       frame,
		Orientation: math.QuatIdentity(),
		X:           DefaultEase,
		Y:           DefaultEase,
		Z:           DefaultEase,
		R:           DefaultEase,
		Raw:         defaultBoneInterp,
		Physics:     true,
	}
}

// MorphKey is a morph weight keyframe.
type MorphKey struct {
	Frame  uint32
	Weight float32
}

// CameraKey is a camera keyframe. The camera orbits Position at Distance
// (negative distances place the eye in front of the target).
type CameraKey struct {
	Frame    uint32
	Distance float32
	Position math.Vec3
	Rotation math.Vec3 // pitch, yaw, roll in radians

	X, Y, Z, R Ease
	Dist       Ease
	Angle      Ease

	ViewAngle    int32 // degrees
	Orthographic bool
}

// DefaultCameraKey returns MMD's initial camera.
func DefaultCameraKey(frame uint32) CameraKey {
	return CameraKey{
		Frame:     frame,
		Distance:  45,
		Position:  math.Vec3{X: 0, Y: 10, Z: 0},
		X:         DefaultEase,
		Y:         DefaultEase,
		Z:         DefaultEase,
		R:         DefaultEase,
		Dist:      DefaultEase,
		Angle:     DefaultEase,
		ViewAngle: 30,
	}
}

// LightKey is a directional light keyframe.
type LightKey struct {
	Frame    uint32
	Color    math.Vec3
	Position math.Vec3
}

// ShadowKey is a self-shadow keyframe.
type ShadowKey struct {
	Frame    uint32
	Mode     int8
	Distance float32
}

// VisibilityKey toggles model visibility.
type VisibilityKey struct {
	Frame   uint32
	Visible bool
}

// IKKey enables or disables one IK bone.
type IKKey struct {
	Frame   uint32
	Enabled bool
}

// BoneNames returns the bone track names in byte order.
func (m *Motion) BoneNames() []string {
	return slices.Sorted(maps.Keys(m.Bones))
}

// MorphNames returns the morph track names in byte order.
func (m *Motion) MorphNames() []string {
	return slices.Sorted(maps.Keys(m.Morphs))
}

// MaxFrame returns the highest frame number of any key, or 0.
func (m *Motion) MaxFrame() uint32 {
	var last uint32
	for _, keys := range m.Bones {
		for _, k := range keys {
			last = max(last, k.Frame)
		}
	}
	for _, keys := range m.Morphs {
		for _, k := range keys {
			last = max(last, k.Frame)
		}
	}
	for _, k := range m.Cameras {
		last = max(last, k.Frame)
	}
	for _, k := range m.Lights {
		last = max(last, k.Frame)
	}
	for _, k := range m.Shadows {
		last = max(last, k.Frame)
	}
	for _, k := range m.Visibility {
		last = max(last, k.Frame)
	}
	for _, keys := range m.IK {
		for _, k := range keys {
			last = max(last, k.Frame)
		}
	}
	return last
}

// ConvertNames rewrites the motion name and every track name with conv.
// Tracks whose converted names collide are concatenated and re-sorted.
func (m *Motion) ConvertNames(conv func(string) string) {
	m.Name = conv(m.Name)
	m.Bones = convertKeys(m.Bones, conv, func(k BoneKey) uint32 { return k.Frame })
	m.Morphs = convertKeys(m.Morphs, conv, func(k MorphKey) uint32 { return k.Frame })
	m.IK = convertKeys(m.IK, conv, func(k IKKey) uint32 { return k.Frame })
}

func convertKeys[K any](tracks map[string][]K, conv func(string) string, frame func(K) uint32) map[string][]K {
	out := make(map[string][]K, len(tracks))
	for _, name := range slices.Sorted(maps.Keys(tracks)) {
		converted := conv(name)
		if existing, ok := out[converted]; ok {
			merged := append(existing, tracks[name]...)
			slices.SortStableFunc(merged, func(a, b K) int {
				return cmp.Compare(frame(a), frame(b))
			})
			out[converted] = merged
			continue
		}
		out[converted] = tracks[name]
	}
	return out
}

// decodeEase reads the curve for one channel from the 64-byte block.
// The block interleaves channels; each control byte is 4 bytes apart.
func decodeEase(raw *[vmdInterpSize]byte, base int) Ease {
	return Ease{
		X1: int8(raw[base+0]),
		Y1: int8(raw[base+4]),
		X2: int8(raw[base+8]),
		Y2: int8(raw[base+12]),
	}
}

func encodeEase(raw *[vmdInterpSize]byte, base int, e Ease) {
	raw[base+0] = byte(e.X1)
	raw[base+4] = byte(e.Y1)
	raw[base+8] = byte(e.X2)
	raw[base+12] = byte(e.Y2)
}

func hasPhysicsOffMarker(raw *[vmdInterpSize]byte) bool {
	return raw[2] == physicsOffMarker0 && raw[3] == physicsOffMarker1
}

// packInterp returns the interpolation block to store for k.
func (k *BoneKey) packInterp() [vmdInterpSize]byte {
	raw := k.Raw
	encodeEase(&raw, 0, k.X)
	encodeEase(&raw, 16, k.Y)
	encodeEase(&raw, 32, k.Z)
	encodeEase(&raw, 48, k.R)

	switch {
	case !k.Physics:
		raw[2] = physicsOffMarker0
		raw[3] = physicsOffMarker1
	case hasPhysicsOffMarker(&raw):
		// Bytes 2 and 3 mirror the Z and R channels' X1 in MMD's layout.
		raw[2] = byte(k.Z.X1)
		raw[3] = byte(k.R.X1)
		if hasPhysicsOffMarker(&raw) {
			raw[2] = 0
		}
	}
	return raw
}
