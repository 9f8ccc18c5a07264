package formats

import (
	"fmt"
	"os"

	"github.com/Faultbox/headless-mmd/pkg/binio"
)

// pmxSaveIndexSize is the width used for every index category on save.
const pmxSaveIndexSize = 4

// SaveModelFile serializes m and writes it to path.
func SaveModelFile(path string, m *Model) error {
	if err := os.WriteFile(path, SaveModel(m), 0o644); err != nil {
		return fmt.Errorf("writing PMX file: %w", err)
	}
	return nil
}

// SaveModel serializes m as PMX 2.0 with UTF-16 text. All indices are
// written 4 bytes wide regardless of m.Header.IndexSizes. Bone layout flags
// are recomputed from the bone's optional parts, and morphs are written
// grouped by kind: group, vertex, bone, UV, material.
func SaveModel(m *Model) []byte {
	w := binio.NewWriter(estimateModelSize(m))
	s := pmxSaver{w: w, m: m}

	s.saveHeader()
	s.saveVertices()
	s.saveFaces()
	s.saveTextures()
	s.saveMaterials()
	s.saveBones()
	s.saveMorphs()
	s.saveDisplayFrames()
	s.saveRigidBodies()
	s.saveJoints()

	return w.Bytes()
}

func estimateModelSize(m *Model) int {
	return 256 + len(m.Vertices)*(72+int(m.Header.ExtraUVs)*16) + len(m.Indices)*4 +
		len(m.Materials)*160 + len(m.Bones)*128
}

type pmxSaver struct {
	w *binio.Writer
	m *Model
}

func (s *pmxSaver) index(v int32) {
	s.w.PutIndex(pmxSaveIndexSize, v)
}

func (s *pmxSaver) saveHeader() {
	w := s.w
	h := &s.m.Header

	w.PutBytes([]byte(PMXMagic))
	w.PutFloat32(PMXVersion)
	w.PutUint8(pmxHeaderDataSize)
	w.PutUint8(uint8(PMXEncodingUTF16))
	w.PutUint8(min(h.ExtraUVs, pmxMaxExtraUVs))
	for range 6 {
		w.PutUint8(pmxSaveIndexSize)
	}

	w.PutText(h.Name)
	w.PutText(h.NameEn)
	w.PutText(h.Comment)
	w.PutText(h.CommentEn)
}

func (s *pmxSaver) saveVertices() {
	w := s.w
	extra := int(min(s.m.Header.ExtraUVs, pmxMaxExtraUVs))

	w.PutInt32(int32(len(s.m.Vertices)))
	for i := range s.m.Vertices {
		v := &s.m.Vertices[i]
		w.PutVec3(v.Position)
		w.PutVec3(v.Normal)
		w.PutVec2(v.UV)
		for j := 0; j < extra; j++ {
			w.PutVec4(v.ExtraUV[j])
		}

		switch wt := v.Weighting.(type) {
		case BDEF2:
			w.PutUint8(uint8(WeightBDEF2))
			s.index(wt.Bones[0])
			s.index(wt.Bones[1])
			w.PutFloat32(wt.Weight)
		case BDEF4:
			w.PutUint8(uint8(WeightBDEF4))
			for _, b := range wt.Bones {
				s.index(b)
			}
			for _, f := range wt.Weights {
				w.PutFloat32(f)
			}
		case SDEF:
			w.PutUint8(uint8(WeightSDEF))
			s.index(wt.Bones[0])
			s.index(wt.Bones[1])
			w.PutFloat32(wt.Weight)
			w.PutVec3(wt.C)
			w.PutVec3(wt.R0)
			w.PutVec3(wt.R1)
		case BDEF1:
			w.PutUint8(uint8(WeightBDEF1))
			s.index(wt.Bone)
		default:
			// Unbound vertices follow the root bone.
			w.PutUint8(uint8(WeightBDEF1))
			s.index(0)
		}

		w.PutFloat32(v.EdgeScale)
	}
}

func (s *pmxSaver) saveFaces() {
	s.w.PutInt32(int32(len(s.m.Indices)))
	for _, idx := range s.m.Indices {
		s.index(idx)
	}
}

func (s *pmxSaver) saveTextures() {
	s.w.PutInt32(int32(len(s.m.Textures)))
	for _, t := range s.m.Textures {
		s.w.PutText(t)
	}
}

func (s *pmxSaver) saveMaterials() {
	w := s.w
	w.PutInt32(int32(len(s.m.Materials)))
	for i := range s.m.Materials {
		mat := &s.m.Materials[i]
		w.PutText(mat.Name)
		w.PutText(mat.NameEn)
		w.PutVec4(mat.Diffuse)
		w.PutVec4(mat.Specular)
		w.PutVec3(mat.Ambient)
		w.PutUint8(uint8(mat.Flags))
		w.PutVec4(mat.EdgeColor)
		w.PutFloat32(mat.EdgeSize)
		s.index(mat.Texture)
		s.index(mat.SphereTexture)
		w.PutUint8(uint8(mat.SphereMode))
		w.PutBool(mat.SharedToon)
		if mat.SharedToon {
			w.PutInt8(int8(mat.ToonTexture))
		} else {
			s.index(mat.ToonTexture)
		}
		w.PutText(mat.Note)
		w.PutInt32(mat.VertexCount)
	}
}

// layoutFlags returns b.Flags with the layout bits replaced by the ones
// implied by b's optional parts.
func (b *Bone) layoutFlags() BoneFlags {
	f := b.Flags &^ boneLayoutFlags
	if _, ok := b.Tip.(TipBone); ok {
		f |= BoneTipIsBone
	}
	if g := b.Grant; g != nil {
		if g.Rotation {
			f |= BoneGrantRotation
		}
		if g.Translation {
			f |= BoneGrantTranslation
		}
	}
	if b.FixedAxis != nil {
		f |= BoneFixedAxis
	}
	if b.LocalAxis != nil {
		f |= BoneLocalAxis
	}
	if b.ExternalKey != nil {
		f |= BoneExternalParent
	}
	if b.IK != nil {
		f |= BoneIKFlag
	}
	return f
}

func (s *pmxSaver) saveBones() {
	w := s.w
	w.PutInt32(int32(len(s.m.Bones)))
	for i := range s.m.Bones {
		b := &s.m.Bones[i]
		flags := b.layoutFlags()

		w.PutText(b.Name)
		w.PutText(b.NameEn)
		w.PutVec3(b.Position)
		s.index(b.Parent)
		w.PutInt32(b.Layer)
		w.PutUint16(uint16(flags))

		switch tip := b.Tip.(type) {
		case TipBone:
			s.index(tip.Bone)
		case TipOffset:
			w.PutVec3(tip.Offset)
		default:
			w.PutVec3(TipOffset{}.Offset)
		}

		if flags&(BoneGrantRotation|BoneGrantTranslation) != 0 {
			s.index(b.Grant.Parent)
			w.PutFloat32(b.Grant.Rate)
		}
		if b.FixedAxis != nil {
			w.PutVec3(*b.FixedAxis)
		}
		if b.LocalAxis != nil {
			w.PutVec3(b.LocalAxis.X)
			w.PutVec3(b.LocalAxis.Z)
		}
		if b.ExternalKey != nil {
			w.PutInt32(*b.ExternalKey)
		}
		if ik := b.IK; ik != nil {
			s.index(ik.Target)
			w.PutInt32(ik.Iterations)
			w.PutFloat32(ik.AngleLimit)
			w.PutInt32(int32(len(ik.Links)))
			for _, link := range ik.Links {
				s.index(link.Bone)
				w.PutBool(link.Limit != nil)
				if link.Limit != nil {
					w.PutVec3(link.Limit.Min)
					w.PutVec3(link.Limit.Max)
				}
			}
		}
	}
}

func saveMorphs[T any](s *pmxSaver, morphs []Morph[T], write func(*T)) {
	for i := range morphs {
		m := &morphs[i]
		s.w.PutText(m.Name)
		s.w.PutText(m.NameEn)
		s.w.PutUint8(uint8(m.Panel))
		s.w.PutUint8(uint8(m.Type))
		s.w.PutInt32(int32(len(m.Offsets)))
		for j := range m.Offsets {
			write(&m.Offsets[j])
		}
	}
}

func (s *pmxSaver) saveMorphs() {
	w := s.w
	w.PutInt32(int32(s.m.MorphCount()))

	saveMorphs(s, s.m.GroupMorphs, func(o *GroupOffset) {
		s.index(o.Morph)
		w.PutFloat32(o.Rate)
	})
	saveMorphs(s, s.m.VertexMorphs, func(o *VertexOffset) {
		s.index(o.Vertex)
		w.PutVec3(o.Offset)
	})
	saveMorphs(s, s.m.BoneMorphs, func(o *BoneOffset) {
		s.index(o.Bone)
		w.PutVec3(o.Translation)
		w.PutQuat(o.Rotation)
	})
	saveMorphs(s, s.m.UVMorphs, func(o *UVOffset) {
		s.index(o.Vertex)
		w.PutVec4(o.Offset)
	})
	saveMorphs(s, s.m.MaterialMorphs, func(o *MaterialOffset) {
		s.index(o.Material)
		w.PutUint8(uint8(o.Op))
		w.PutVec4(o.Diffuse)
		w.PutVec4(o.Specular)
		w.PutVec3(o.Ambient)
		w.PutVec4(o.EdgeColor)
		w.PutFloat32(o.EdgeSize)
		w.PutVec4(o.Texture)
		w.PutVec4(o.Sphere)
		w.PutVec4(o.Toon)
	})
}

func (s *pmxSaver) saveDisplayFrames() {
	w := s.w
	w.PutInt32(int32(len(s.m.DisplayFrames)))
	for i := range s.m.DisplayFrames {
		f := &s.m.DisplayFrames[i]
		w.PutText(f.Name)
		w.PutText(f.NameEn)
		w.PutBool(f.Special)
		w.PutInt32(int32(len(f.Items)))
		for _, item := range f.Items {
			w.PutUint8(uint8(item.Kind))
			s.index(item.Index)
		}
	}
}

func (s *pmxSaver) saveRigidBodies() {
	w := s.w
	w.PutInt32(int32(len(s.m.RigidBodies)))
	for i := range s.m.RigidBodies {
		b := &s.m.RigidBodies[i]
		w.PutText(b.Name)
		w.PutText(b.NameEn)
		s.index(b.Bone)
		w.PutUint8(b.Group)
		w.PutUint16(b.NoCollision)
		w.PutUint8(uint8(b.Shape))
		w.PutVec3(b.Size)
		w.PutVec3(b.Position)
		w.PutVec3(b.Rotation)
		w.PutFloat32(b.Mass)
		w.PutFloat32(b.LinearDamping)
		w.PutFloat32(b.AngularDamping)
		w.PutFloat32(b.Restitution)
		w.PutFloat32(b.Friction)
		w.PutUint8(uint8(b.Physics))
	}
}

func (s *pmxSaver) saveJoints() {
	w := s.w
	w.PutInt32(int32(len(s.m.Joints)))
	for i := range s.m.Joints {
		j := &s.m.Joints[i]
		w.PutText(j.Name)
		w.PutText(j.NameEn)
		w.PutUint8(uint8(JointSpring6DOF))
		s.index(j.BodyA)
		s.index(j.BodyB)
		w.PutVec3(j.Position)
		w.PutVec3(j.Rotation)
		w.PutVec3(j.TranslationMin)
		w.PutVec3(j.TranslationMax)
		w.PutVec3(j.RotationMin)
		w.PutVec3(j.RotationMax)
		w.PutVec3(j.SpringTranslation)
		w.PutVec3(j.SpringRotation)
	}
}
