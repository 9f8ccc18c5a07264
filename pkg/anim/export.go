package anim

import (
	"errors"
	"fmt"

	"github.com/Faultbox/headless-mmd/pkg/formats"
)

// ErrTrackMismatch is returned when an export gets a different number of
// names and tracks.
var ErrTrackMismatch = errors.New("morph names and tracks differ in length")

// ExportMorphMotion builds a morph-only motion from weight tracks. Names are
// written as given, so they should already be in the VMD encoding. Keys
// before frame 0 are written at frame 0.
func ExportMorphMotion(modelName string, names []string, tracks []Track[float32]) (*formats.Motion, error) {
	if len(names) != len(tracks) {
		return nil, fmt.Errorf("%w: %d names, %d tracks", ErrTrackMismatch, len(names), len(tracks))
	}

	m := formats.NewMotion(modelName)
	for i, name := range names {
		if tracks[i].Empty() {
			continue
		}
		out := make([]formats.MorphKey, 0, tracks[i].Len())
		for _, k := range tracks[i].Keys {
			out = append(out, formats.MorphKey{Frame: uint32(max(k.Frame, 0)), Weight: k.Value})
		}
		m.Morphs[name] = append(m.Morphs[name], out...)
	}
	return m, nil
}

// ExportMorphKeys builds a morph-only motion from parallel frame and value
// lists. A morph whose frame and value lists differ in length is skipped,
// as is one with no keys.
func ExportMorphKeys(modelName string, names []string, frames [][]int32, values [][]float32) (*formats.Motion, error) {
	if len(frames) != len(names) || len(values) != len(names) {
		return nil, fmt.Errorf("%w: %d names, %d frame lists, %d value lists",
			ErrTrackMismatch, len(names), len(frames), len(values))
	}

	m := formats.NewMotion(modelName)
	for i, name := range names {
		if len(frames[i]) != len(values[i]) || len(frames[i]) == 0 {
			continue
		}
		out := make([]formats.MorphKey, len(frames[i]))
		for j := range out {
			out[j] = formats.MorphKey{Frame: uint32(max(frames[i][j], 0)), Weight: values[i][j]}
		}
		m.Morphs[name] = append(m.Morphs[name], out...)
	}
	return m, nil
}
