package anim

import (
	"fmt"

	"github.com/Faultbox/headless-mmd/pkg/formats"
	"github.com/Faultbox/headless-mmd/pkg/math"
)

// FrameCount selects how Animation.NumFrames is derived.
type FrameCount int

const (
	// FrameCountKeys uses the largest key count of any bone track. Baked
	// captures have one key per frame, so this is their length.
	FrameCountKeys FrameCount = iota
	// FrameCountLastFrame uses the last keyed frame of any bone or morph
	// track, plus one.
	FrameCountLastFrame
)

func (f FrameCount) String() string {
	switch f {
	case FrameCountKeys:
		return "keys"
	case FrameCountLastFrame:
		return "last_frame"
	default:
		return fmt.Sprintf("FrameCount(%d)", int(f))
	}
}

// ParseFrameCount parses the names returned by FrameCount.String.
func ParseFrameCount(s string) (FrameCount, error) {
	switch s {
	case "keys", "":
		return FrameCountKeys, nil
	case "last_frame":
		return FrameCountLastFrame, nil
	default:
		return 0, fmt.Errorf("unknown frame count mode %q", s)
	}
}

// Options control how motion data is imported.
type Options struct {
	FrameCount FrameCount
}

// Animation holds one pose track per skeleton bone and one weight track per
// morph, indexed like the skeleton and morph list it was built against.
type Animation struct {
	numFrames int
	bones     []Track[math.Mat4]
	morphs    []Track[float32]
}

// ImportMotion builds an Animation from VMD keys. Track names in m must use
// the same encoding as sk.Names and morphNames (see Motion.ConvertNames).
//
// Each bone key becomes the matrix that rotates by the key's orientation and
// then translates to the bone's rest position plus the key's offset. Bones
// and morphs without keys hold their rest pose and zero weight.
func ImportMotion(m *formats.Motion, sk *Skeleton, morphNames []string, opts Options) *Animation {
	a := &Animation{bones: make([]Track[math.Mat4], sk.Len())}

	for i, name := range sk.Names {
		keys := m.Bones[name]
		if len(keys) == 0 {
			a.bones[i].Insert(0, sk.Rest[i])
			continue
		}
		rest := sk.Rest[i].Translation()
		for _, k := range keys {
			p := rest.Add(k.Position)
			pose := math.Translate(p.X, p.Y, p.Z).Mul(k.Orientation.ToMat4())
			a.bones[i].Insert(int(k.Frame), pose)
		}
	}

	a.morphs = importMorphs(morphNames, func(name string) []formats.MorphKey { return m.Morphs[name] })
	a.numFrames = a.countFrames(opts.FrameCount)
	return a
}

// ImportCapture builds an Animation from a baked scene capture. Bone matrix
// i becomes the key at frame i.
func ImportCapture(c *formats.CaptureModel, sk *Skeleton, morphNames []string, opts Options) *Animation {
	frames := make(map[string][]math.Mat4, len(c.Bones))
	for _, b := range c.Bones {
		frames[b.Name] = b.Frames
	}
	morphs := make(map[string][]formats.MorphKey, len(c.Morphs))
	for _, mo := range c.Morphs {
		morphs[mo.Name] = mo.Keys
	}

	a := &Animation{bones: make([]Track[math.Mat4], sk.Len())}
	for i, name := range sk.Names {
		src := frames[name]
		if len(src) == 0 {
			a.bones[i].Insert(0, sk.Rest[i])
			continue
		}
		keys := make([]Key[math.Mat4], len(src))
		for f, mat := range src {
			keys[f] = Key[math.Mat4]{Frame: f, Value: mat}
		}
		a.bones[i].Keys = keys
	}

	a.morphs = importMorphs(morphNames, func(name string) []formats.MorphKey { return morphs[name] })
	a.numFrames = a.countFrames(opts.FrameCount)
	return a
}

func importMorphs(names []string, lookup func(string) []formats.MorphKey) []Track[float32] {
	tracks := make([]Track[float32], len(names))
	for i, name := range names {
		keys := lookup(name)
		if len(keys) == 0 {
			tracks[i].Insert(0, 0)
			continue
		}
		for _, k := range keys {
			tracks[i].Insert(int(k.Frame), k.Weight)
		}
	}
	return tracks
}

func (a *Animation) countFrames(mode FrameCount) int {
	n := 0
	switch mode {
	case FrameCountLastFrame:
		for i := range a.bones {
			n = max(n, a.bones[i].LastFrame()+1)
		}
		for i := range a.morphs {
			n = max(n, a.morphs[i].LastFrame()+1)
		}
	default:
		for i := range a.bones {
			n = max(n, a.bones[i].Len())
		}
	}
	return n
}

// NumFrames returns the animation length chosen by Options.FrameCount.
func (a *Animation) NumFrames() int { return a.numFrames }

// NumBoneTracks returns the number of bone tracks.
func (a *Animation) NumBoneTracks() int { return len(a.bones) }

// NumMorphTracks returns the number of morph tracks.
func (a *Animation) NumMorphTracks() int { return len(a.morphs) }

// BoneKey returns the pose of a bone at frame.
func (a *Animation) BoneKey(bone, frame int) math.Mat4 {
	return a.bones[bone].SampleAt(frame, LerpMat4)
}

// MorphWeight returns the weight of a morph at frame.
func (a *Animation) MorphWeight(morph, frame int) float32 {
	return a.morphs[morph].SampleAt(frame, LerpFloat)
}

// Pose samples every bone at frame, reusing dst's storage.
func (a *Animation) Pose(frame int, dst []math.Mat4) []math.Mat4 {
	dst = dst[:0]
	for i := range a.bones {
		dst = append(dst, a.bones[i].SampleAt(frame, LerpMat4))
	}
	return dst
}

// MorphWeights samples every morph at frame, reusing dst's storage.
func (a *Animation) MorphWeights(frame int, dst []float32) []float32 {
	dst = dst[:0]
	for i := range a.morphs {
		dst = append(dst, a.morphs[i].SampleAt(frame, LerpFloat))
	}
	return dst
}

// MorphTrack returns a copy of a morph's keys.
func (a *Animation) MorphTrack(morph int) Track[float32] {
	keys := make([]Key[float32], len(a.morphs[morph].Keys))
	copy(keys, a.morphs[morph].Keys)
	return Track[float32]{Keys: keys}
}
