package anim

import (
	"github.com/Faultbox/headless-mmd/pkg/formats"
	"github.com/Faultbox/headless-mmd/pkg/math"
)

// Skeleton is the bone list an Animation is built against. Rest holds each
// bone's rest pose in model space.
type Skeleton struct {
	Names []string
	Rest  []math.Mat4
}

// SkeletonFromModel builds a skeleton from a PMX model's bones. The rest
// pose is a translation to the bone's position.
func SkeletonFromModel(m *formats.Model) *Skeleton {
	sk := &Skeleton{
		Names: make([]string, len(m.Bones)),
		Rest:  make([]math.Mat4, len(m.Bones)),
	}
	for i := range m.Bones {
		b := &m.Bones[i]
		sk.Names[i] = b.Name
		sk.Rest[i] = math.Translate(b.Position.X, b.Position.Y, b.Position.Z)
	}
	return sk
}

// Len returns the number of bones.
func (s *Skeleton) Len() int {
	return len(s.Names)
}

// Index returns the index of the named bone, or -1.
func (s *Skeleton) Index(name string) int {
	for i, n := range s.Names {
		if n == name {
			return i
		}
	}
	return -1
}

// MorphNamesFromModel lists the model's vertex morphs in file order. These
// are the morphs a skinned mesh deforms.
func MorphNamesFromModel(m *formats.Model) []string {
	names := make([]string, len(m.VertexMorphs))
	for i := range m.VertexMorphs {
		names[i] = m.VertexMorphs[i].Name
	}
	return names
}
