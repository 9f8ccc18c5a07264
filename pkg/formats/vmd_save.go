package formats

import (
	"fmt"
	"maps"
	"os"
	"slices"

	"github.com/Faultbox/headless-mmd/pkg/binio"
)

// SaveMotionFile serializes m and writes it to path.
func SaveMotionFile(path string, m *Motion) error {
	if err := os.WriteFile(path, SaveMotion(m), 0o644); err != nil {
		return fmt.Errorf("writing VMD file: %w", err)
	}
	return nil
}

// SaveMotion serializes m as VMD.
//
// Named tracks are written in byte order of their names. Visibility and IK
// keys are merged into one extension record per frame, in frame order; a
// frame that only has IK keys is written as visible. Names longer than
// their fixed field are truncated.
func SaveMotion(m *Motion) []byte {
	w := binio.NewWriter(estimateMotionSize(m))

	w.PutFixedString(VMDMagic, vmdMagicSize)
	w.PutFixedString(m.Name, vmdModelNameSize)

	saveNamedTrack(w, m.Bones, func(k *BoneKey) {
		w.PutUint32(k.Frame)
		w.PutVec3(k.Position)
		w.PutQuat(k.Orientation)
		raw := k.packInterp()
		w.PutBytes(raw[:])
	})
	saveNamedTrack(w, m.Morphs, func(k *MorphKey) {
		w.PutUint32(k.Frame)
		w.PutFloat32(k.Weight)
	})

	w.PutUint32(uint32(len(m.Cameras)))
	for i := range m.Cameras {
		w.PutUint32(m.Cameras[i].Frame)
		writeCameraBody(w, &m.Cameras[i])
	}

	w.PutUint32(uint32(len(m.Lights)))
	for _, k := range m.Lights {
		w.PutUint32(k.Frame)
		w.PutVec3(k.Color)
		w.PutVec3(k.Position)
	}

	w.PutUint32(uint32(len(m.Shadows)))
	for _, k := range m.Shadows {
		w.PutUint32(k.Frame)
		w.PutInt8(k.Mode)
		w.PutFloat32(k.Distance)
	}

	saveExtensionTrack(w, m)

	return w.Bytes()
}

func estimateMotionSize(m *Motion) int {
	size := vmdMagicSize + vmdModelNameSize + 6*4
	for _, keys := range m.Bones {
		size += len(keys) * (vmdTrackNameSize + vmdBoneKeySize)
	}
	for _, keys := range m.Morphs {
		size += len(keys) * (vmdTrackNameSize + vmdMorphKeySize)
	}
	return size + len(m.Cameras)*vmdCameraKeySize
}

func saveNamedTrack[K any](w *binio.Writer, tracks map[string][]K, write func(*K)) {
	var total uint32
	for _, keys := range tracks {
		total += uint32(len(keys))
	}
	w.PutUint32(total)

	for _, name := range slices.Sorted(maps.Keys(tracks)) {
		keys := tracks[name]
		for i := range keys {
			w.PutFixedString(name, vmdTrackNameSize)
			write(&keys[i])
		}
	}
}

func writeEase(w *binio.Writer, e Ease) {
	w.PutInt8(e.X1)
	w.PutInt8(e.X2)
	w.PutInt8(e.Y1)
	w.PutInt8(e.Y2)
}

// writeCameraBody writes a camera key after its frame number.
func writeCameraBody(w *binio.Writer, k *CameraKey) {
	w.PutFloat32(k.Distance)
	w.PutVec3(k.Position)
	w.PutVec3(k.Rotation)
	writeEase(w, k.X)
	writeEase(w, k.Y)
	writeEase(w, k.Z)
	writeEase(w, k.R)
	writeEase(w, k.Dist)
	writeEase(w, k.Angle)
	w.PutInt32(k.ViewAngle)
	w.PutBool(k.Orthographic)
}

type extensionRecord struct {
	visible bool
	ik      map[string]bool
}

// mergeExtension folds visibility and IK keys into one record per frame.
// Later keys for the same frame and name win.
func mergeExtension(m *Motion) map[uint32]*extensionRecord {
	records := make(map[uint32]*extensionRecord)
	record := func(frame uint32) *extensionRecord {
		rec, ok := records[frame]
		if !ok {
			rec = &extensionRecord{visible: true, ik: make(map[string]bool)}
			records[frame] = rec
		}
		return rec
	}

	for _, k := range m.Visibility {
		record(k.Frame).visible = k.Visible
	}
	for name, keys := range m.IK {
		for _, k := range keys {
			record(k.Frame).ik[name] = k.Enabled
		}
	}
	return records
}

func saveExtensionTrack(w *binio.Writer, m *Motion) {
	records := mergeExtension(m)
	w.PutUint32(uint32(len(records)))

	for _, frame := range slices.Sorted(maps.Keys(records)) {
		rec := records[frame]
		w.PutUint32(frame)
		w.PutBool(rec.visible)
		w.PutUint32(uint32(len(rec.ik)))
		for _, name := range slices.Sorted(maps.Keys(rec.ik)) {
			w.PutFixedString(name, vmdIKNameSize)
			w.PutBool(rec.ik[name])
		}
	}
}
