package formats

import (
	"cmp"
	"fmt"
	"os"
	"slices"

	"github.com/Faultbox/headless-mmd/pkg/binio"
)

// LoadMotionFile reads and parses a VMD file from disk.
func LoadMotionFile(path string) (*Motion, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading VMD file: %w", err)
	}
	return LoadMotion(data)
}

// LoadMotion parses a VMD motion.
//
// The on-disk extension track, which stores a visibility flag and a list of
// IK switches per frame, is split into Motion.Visibility and Motion.IK.
// Camera, visibility and IK keys are sorted by frame; bone and morph keys
// keep file order.
func LoadMotion(data []byte) (*Motion, error) {
	r := binio.NewReader(data)

	magic := r.Bytes(vmdMagicSize)
	if r.Overflow() {
		return nil, checkpoint(r, ErrTruncatedVMDData)
	}
	if string(magic[:len(VMDMagic)]) != VMDMagic {
		return nil, ErrInvalidVMDMagic
	}

	m := NewMotion(r.FixedString(vmdModelNameSize))
	if err := checkpoint(r, ErrTruncatedVMDData); err != nil {
		return nil, fmt.Errorf("parsing header: %w", err)
	}

	steps := []struct {
		section string
		load    func(*binio.Reader, *Motion) error
	}{
		{"bone keys", loadBoneTracks},
		{"morph keys", loadMorphTracks},
		{"camera keys", loadCameraTrack},
		{"light keys", loadLightTrack},
		{"shadow keys", loadShadowTrack},
		{"extension keys", loadExtensionTrack},
	}
	for _, step := range steps {
		if err := step.load(r, m); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", step.section, err)
		}
		if err := checkpoint(r, ErrTruncatedVMDData); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", step.section, err)
		}
	}

	slices.SortStableFunc(m.Cameras, func(a, b CameraKey) int { return cmp.Compare(a.Frame, b.Frame) })
	slices.SortStableFunc(m.Visibility, func(a, b VisibilityKey) int { return cmp.Compare(a.Frame, b.Frame) })
	for _, keys := range m.IK {
		slices.SortStableFunc(keys, func(a, b IKKey) int { return cmp.Compare(a.Frame, b.Frame) })
	}

	return m, nil
}

// trackCount reads a uint32 key count and checks it against the data left.
func trackCount(r *binio.Reader, keySize int) (int, error) {
	n := r.Uint32()
	if r.Overflow() {
		return 0, checkpoint(r, ErrTruncatedVMDData)
	}
	if uint64(n) > uint64(r.Remaining()) || !r.Fits(int(n), keySize) {
		return 0, fmt.Errorf("%w: %d keys exceed remaining %d bytes", ErrTruncatedVMDData, n, r.Remaining())
	}
	return int(n), nil
}

func loadBoneTracks(r *binio.Reader, m *Motion) error {
	n, err := trackCount(r, vmdTrackNameSize+vmdBoneKeySize)
	if err != nil {
		return err
	}
	for range n {
		name := r.FixedString(vmdTrackNameSize)
		m.Bones[name] = append(m.Bones[name], readBoneKey(r))
	}
	return nil
}

func readBoneKey(r *binio.Reader) BoneKey {
	k := BoneKey{
		Frame:       r.Uint32(),
		Position:    r.Vec3(),
		Orientation: r.Quat(),
	}
	r.Array(k.Raw[:])
	k.X = decodeEase(&k.Raw, 0)
	k.Y = decodeEase(&k.Raw, 16)
	k.Z = decodeEase(&k.Raw, 32)
	k.R = decodeEase(&k.Raw, 48)
	k.Physics = !hasPhysicsOffMarker(&k.Raw)
	return k
}

func loadMorphTracks(r *binio.Reader, m *Motion) error {
	n, err := trackCount(r, vmdTrackNameSize+vmdMorphKeySize)
	if err != nil {
		return err
	}
	for range n {
		name := r.FixedString(vmdTrackNameSize)
		m.Morphs[name] = append(m.Morphs[name], MorphKey{
			Frame:  r.Uint32(),
			Weight: r.Float32(),
		})
	}
	return nil
}

func readEase(r *binio.Reader) Ease {
	return Ease{X1: r.Int8(), X2: r.Int8(), Y1: r.Int8(), Y2: r.Int8()}
}

// readCameraBody reads a camera key after its frame number. Scene captures
// share this layout.
func readCameraBody(r *binio.Reader, k *CameraKey) {
	k.Distance = r.Float32()
	k.Position = r.Vec3()
	k.Rotation = r.Vec3()
	k.X = readEase(r)
	k.Y = readEase(r)
	k.Z = readEase(r)
	k.R = readEase(r)
	k.Dist = readEase(r)
	k.Angle = readEase(r)
	k.ViewAngle = r.Int32()
	k.Orthographic = r.Bool()
}

func loadCameraTrack(r *binio.Reader, m *Motion) error {
	n, err := trackCount(r, vmdCameraKeySize)
	if err != nil {
		return err
	}
	m.Cameras = make([]CameraKey, n)
	for i := range m.Cameras {
		m.Cameras[i].Frame = r.Uint32()
		readCameraBody(r, &m.Cameras[i])
	}
	return nil
}

func loadLightTrack(r *binio.Reader, m *Motion) error {
	n, err := trackCount(r, vmdLightKeySize)
	if err != nil {
		return err
	}
	m.Lights = make([]LightKey, n)
	for i := range m.Lights {
		m.Lights[i] = LightKey{
			Frame:    r.Uint32(),
			Color:    r.Vec3(),
			Position: r.Vec3(),
		}
	}
	return nil
}

func loadShadowTrack(r *binio.Reader, m *Motion) error {
	n, err := trackCount(r, vmdShadowKeySize)
	if err != nil {
		return err
	}
	m.Shadows = make([]ShadowKey, n)
	for i := range m.Shadows {
		m.Shadows[i] = ShadowKey{
			Frame:    r.Uint32(),
			Mode:     r.Int8(),
			Distance: r.Float32(),
		}
	}
	return nil
}

func loadExtensionTrack(r *binio.Reader, m *Motion) error {
	n, err := trackCount(r, vmdExKeyMinSize)
	if err != nil {
		return err
	}
	m.Visibility = make([]VisibilityKey, 0, n)
	for i := 0; i < n; i++ {
		frame := r.Uint32()
		m.Visibility = append(m.Visibility, VisibilityKey{Frame: frame, Visible: r.Bool()})

		iks, err := trackCount(r, vmdIKEntrySize)
		if err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		for range iks {
			name := r.FixedString(vmdIKNameSize)
			m.IK[name] = append(m.IK[name], IKKey{Frame: frame, Enabled: r.Bool()})
		}
	}
	return nil
}
