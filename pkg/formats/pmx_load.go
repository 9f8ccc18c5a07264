package formats

import (
	"fmt"
	"os"

	"github.com/Faultbox/headless-mmd/pkg/binio"
)

// Minimum on-disk element sizes, used to reject counts that cannot fit.
const (
	minTextSize     = 4
	minMaterialSize = 2*minTextSize + 16 + 16 + 12 + 1 + 16 + 4 + 2 + 2 + 1 + minTextSize + 4
	minBoneSize     = 2*minTextSize + 12 + 1 + 4 + 2 + 1
	minMorphSize    = 2*minTextSize + 1 + 1 + 4
	minFrameSize    = 2*minTextSize + 1 + 4
	minBodySize     = 2*minTextSize + 1 + 1 + 2 + 1 + 3*12 + 5*4 + 1
	minJointSize    = 2*minTextSize + 1 + 2 + 8*12
)

// LoadModelFile reads and parses a PMX file from disk.
func LoadModelFile(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading PMX file: %w", err)
	}
	return LoadModel(data)
}

// LoadModel parses a PMX 2.0 model. It never returns a partially decoded
// model: any malformed field fails the whole load.
func LoadModel(data []byte) (*Model, error) {
	l := &pmxLoader{r: binio.NewReader(data), m: &Model{}}

	steps := []struct {
		section string
		load    func() error
	}{
		{"header", l.loadHeader},
		{"vertices", l.loadVertices},
		{"faces", l.loadFaces},
		{"textures", l.loadTextures},
		{"materials", l.loadMaterials},
		{"bones", l.loadBones},
		{"morphs", l.loadMorphs},
		{"display frames", l.loadDisplayFrames},
		{"rigid bodies", l.loadRigidBodies},
		{"joints", l.loadJoints},
	}
	for _, step := range steps {
		if err := step.load(); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", step.section, err)
		}
		if err := checkpoint(l.r, ErrTruncatedPMXData); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", step.section, err)
		}
	}

	return l.m, nil
}

type pmxLoader struct {
	r *binio.Reader
	m *Model
}

func (l *pmxLoader) widths() IndexSizes {
	return l.m.Header.IndexSizes
}

// count reads an int32 element count and checks that count elements of at
// least minSize bytes fit in the remaining data.
func (l *pmxLoader) count(minSize int) (int, error) {
	n := l.r.Int32()
	if l.r.Overflow() {
		return 0, checkpoint(l.r, ErrTruncatedPMXData)
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidPMXCount, n)
	}
	if !l.r.Fits(int(n), minSize) {
		return 0, fmt.Errorf("%w: %d elements exceed remaining %d bytes", ErrTruncatedPMXData, n, l.r.Remaining())
	}
	return int(n), nil
}

func (l *pmxLoader) loadHeader() error {
	r := l.r
	h := &l.m.Header

	magic := r.Bytes(4)
	if r.Overflow() {
		return checkpoint(r, ErrTruncatedPMXData)
	}
	if string(magic) != PMXMagic {
		return ErrInvalidPMXMagic
	}

	h.Version = r.Float32()
	if r.Overflow() {
		return checkpoint(r, ErrTruncatedPMXData)
	}
	if h.Version != PMXVersion {
		return fmt.Errorf("%w: %.1f", ErrUnsupportedPMXVersion, h.Version)
	}

	if size := r.Uint8(); size != pmxHeaderDataSize {
		if r.Overflow() {
			return checkpoint(r, ErrTruncatedPMXData)
		}
		return fmt.Errorf("%w: header data size %d", ErrInvalidPMXHeader, size)
	}

	h.Encoding = PMXEncoding(r.Uint8())
	h.ExtraUVs = r.Uint8()
	h.IndexSizes = IndexSizes{
		Vertex:   r.Uint8(),
		Texture:  r.Uint8(),
		Material: r.Uint8(),
		Bone:     r.Uint8(),
		Morph:    r.Uint8(),
		Body:     r.Uint8(),
	}
	if r.Overflow() {
		return checkpoint(r, ErrTruncatedPMXData)
	}
	if h.Encoding != PMXEncodingUTF16 {
		return fmt.Errorf("%w: %s", ErrUnsupportedPMXEncoding, h.Encoding)
	}
	if h.ExtraUVs > pmxMaxExtraUVs {
		return fmt.Errorf("%w: %d extra UVs", ErrInvalidPMXHeader, h.ExtraUVs)
	}
	if !h.IndexSizes.Valid() {
		return fmt.Errorf("%w: index sizes %+v", ErrInvalidPMXHeader, h.IndexSizes)
	}

	h.Name = r.Text()
	h.NameEn = r.Text()
	h.Comment = r.Text()
	h.CommentEn = r.Text()
	return nil
}

func (l *pmxLoader) loadVertices() error {
	r := l.r
	w := l.widths()
	minSize := 8*4 + int(l.m.Header.ExtraUVs)*16 + 1 + int(w.Bone) + 4
	n, err := l.count(minSize)
	if err != nil {
		return err
	}

	l.m.Vertices = make([]Vertex, n)
	for i := range l.m.Vertices {
		v := &l.m.Vertices[i]
		v.Position = r.Vec3()
		v.Normal = r.Vec3()
		v.UV = r.Vec2()
		for j := 0; j < int(l.m.Header.ExtraUVs); j++ {
			v.ExtraUV[j] = r.Vec4()
		}

		wt := WeightType(r.Uint8())
		switch wt {
		case WeightBDEF1:
			v.Weighting = BDEF1{Bone: r.Index(w.Bone)}
		case WeightBDEF2:
			var b BDEF2
			b.Bones[0] = r.Index(w.Bone)
			b.Bones[1] = r.Index(w.Bone)
			b.Weight = r.Float32()
			v.Weighting = b
		case WeightBDEF4:
			var b BDEF4
			for j := range b.Bones {
				b.Bones[j] = r.Index(w.Bone)
			}
			for j := range b.Weights {
				b.Weights[j] = r.Float32()
			}
			v.Weighting = b
		case WeightSDEF:
			var s SDEF
			s.Bones[0] = r.Index(w.Bone)
			s.Bones[1] = r.Index(w.Bone)
			s.Weight = r.Float32()
			s.C = r.Vec3()
			s.R0 = r.Vec3()
			s.R1 = r.Vec3()
			v.Weighting = s
		default:
			if r.Overflow() {
				return checkpoint(r, ErrTruncatedPMXData)
			}
			return fmt.Errorf("vertex %d: %w: %s", i, ErrInvalidPMXWeighting, wt)
		}

		v.EdgeScale = r.Float32()
	}
	return nil
}

func (l *pmxLoader) loadFaces() error {
	width := l.widths().Vertex
	n, err := l.count(int(width))
	if err != nil {
		return err
	}
	if n%3 != 0 {
		return fmt.Errorf("%w: %d indices is not a multiple of 3", ErrInvalidPMXCount, n)
	}

	l.m.Indices = make([]int32, n)
	for i := range l.m.Indices {
		l.m.Indices[i] = l.r.UIndex(width)
	}
	return nil
}

func (l *pmxLoader) loadTextures() error {
	n, err := l.count(minTextSize)
	if err != nil {
		return err
	}

	l.m.Textures = make([]string, n)
	for i := range l.m.Textures {
		l.m.Textures[i] = l.r.Text()
	}
	return nil
}

func (l *pmxLoader) loadMaterials() error {
	r := l.r
	tw := l.widths().Texture
	n, err := l.count(minMaterialSize)
	if err != nil {
		return err
	}

	l.m.Materials = make([]Material, n)
	var span int64
	for i := range l.m.Materials {
		mat := &l.m.Materials[i]
		mat.Name = r.Text()
		mat.NameEn = r.Text()
		mat.Diffuse = r.Vec4()
		mat.Specular = r.Vec4()
		mat.Ambient = r.Vec3()
		mat.Flags = MaterialFlags(r.Uint8())
		mat.EdgeColor = r.Vec4()
		mat.EdgeSize = r.Float32()
		mat.Texture = r.Index(tw)
		mat.SphereTexture = r.Index(tw)
		mat.SphereMode = SphereMode(r.Uint8())
		mat.SharedToon = r.Bool()
		if mat.SharedToon {
			mat.ToonTexture = int32(r.Uint8())
		} else {
			mat.ToonTexture = r.Index(tw)
		}
		mat.Note = r.Text()
		mat.VertexCount = r.Int32()

		if r.Overflow() {
			return checkpoint(r, ErrTruncatedPMXData)
		}
		if mat.VertexCount < 0 || mat.VertexCount%3 != 0 {
			return fmt.Errorf("material %d: %w: %d is not a multiple of 3", i, ErrInvalidPMXMaterialSpan, mat.VertexCount)
		}
		span += int64(mat.VertexCount)
	}

	if span != int64(len(l.m.Indices)) {
		return fmt.Errorf("%w: spans cover %d of %d indices", ErrInvalidPMXMaterialSpan, span, len(l.m.Indices))
	}
	return nil
}

func (l *pmxLoader) loadBones() error {
	r := l.r
	bw := l.widths().Bone
	n, err := l.count(minBoneSize)
	if err != nil {
		return err
	}

	l.m.Bones = make([]Bone, n)
	for i := range l.m.Bones {
		b := &l.m.Bones[i]
		b.Name = r.Text()
		b.NameEn = r.Text()
		b.Position = r.Vec3()
		b.Parent = r.Index(bw)
		b.Layer = r.Int32()
		b.Flags = BoneFlags(r.Uint16())

		if b.Flags.Has(BoneTipIsBone) {
			b.Tip = TipBone{Bone: r.Index(bw)}
		} else {
			b.Tip = TipOffset{Offset: r.Vec3()}
		}

		rot, trans := b.Flags.Has(BoneGrantRotation), b.Flags.Has(BoneGrantTranslation)
		if rot || trans {
			b.Grant = &BoneGrant{
				Parent:      r.Index(bw),
				Rate:        r.Float32(),
				Rotation:    rot,
				Translation: trans,
			}
		}

		if b.Flags.Has(BoneFixedAxis) {
			axis := r.Vec3()
			b.FixedAxis = &axis
		}

		if b.Flags.Has(BoneLocalAxis) {
			b.LocalAxis = &LocalAxis{X: r.Vec3(), Z: r.Vec3()}
		}

		if b.Flags.Has(BoneExternalParent) {
			key := r.Int32()
			b.ExternalKey = &key
		}

		if b.Flags.Has(BoneIKFlag) {
			ik, err := l.loadIK(bw)
			if err != nil {
				return fmt.Errorf("bone %d: %w", i, err)
			}
			b.IK = ik
		}
	}
	return nil
}

func (l *pmxLoader) loadIK(bw uint8) (*BoneIK, error) {
	r := l.r
	ik := &BoneIK{
		Target:     r.Index(bw),
		Iterations: r.Int32(),
		AngleLimit: r.Float32(),
	}

	n, err := l.count(int(bw) + 1)
	if err != nil {
		return nil, err
	}

	ik.Links = make([]IKLink, n)
	for i := range ik.Links {
		link := &ik.Links[i]
		link.Bone = r.Index(bw)
		if r.Bool() {
			link.Limit = &AngleLimit{Min: r.Vec3(), Max: r.Vec3()}
		}
	}
	return ik, nil
}

func (l *pmxLoader) loadMorphs() error {
	r := l.r
	w := l.widths()
	n, err := l.count(minMorphSize)
	if err != nil {
		return err
	}

	for i := 0; i < n; i++ {
		name := r.Text()
		nameEn := r.Text()
		panel := MorphPanel(r.Uint8())
		typ := MorphType(r.Uint8())
		if r.Overflow() {
			return checkpoint(r, ErrTruncatedPMXData)
		}

		switch typ {
		case MorphGroup:
			m, err := loadMorph(l, name, nameEn, panel, typ, int(w.Morph)+4, func(o *GroupOffset) error {
				o.Morph = r.Index(w.Morph)
				o.Rate = r.Float32()
				return nil
			})
			if err != nil {
				return fmt.Errorf("morph %d: %w", i, err)
			}
			l.m.GroupMorphs = append(l.m.GroupMorphs, m)

		case MorphVertex:
			m, err := loadMorph(l, name, nameEn, panel, typ, int(w.Vertex)+12, func(o *VertexOffset) error {
				o.Vertex = r.UIndex(w.Vertex)
				o.Offset = r.Vec3()
				return nil
			})
			if err != nil {
				return fmt.Errorf("morph %d: %w", i, err)
			}
			l.m.VertexMorphs = append(l.m.VertexMorphs, m)

		case MorphBone:
			m, err := loadMorph(l, name, nameEn, panel, typ, int(w.Bone)+28, func(o *BoneOffset) error {
				o.Bone = r.Index(w.Bone)
				o.Translation = r.Vec3()
				o.Rotation = r.Quat()
				return nil
			})
			if err != nil {
				return fmt.Errorf("morph %d: %w", i, err)
			}
			l.m.BoneMorphs = append(l.m.BoneMorphs, m)

		case MorphUV, MorphExUV1, MorphExUV2, MorphExUV3, MorphExUV4:
			m, err := loadMorph(l, name, nameEn, panel, typ, int(w.Vertex)+16, func(o *UVOffset) error {
				o.Vertex = r.UIndex(w.Vertex)
				o.Offset = r.Vec4()
				return nil
			})
			if err != nil {
				return fmt.Errorf("morph %d: %w", i, err)
			}
			l.m.UVMorphs = append(l.m.UVMorphs, m)

		case MorphMaterial:
			m, err := loadMorph(l, name, nameEn, panel, typ, int(w.Material)+113, func(o *MaterialOffset) error {
				o.Material = r.Index(w.Material)
				o.Op = MaterialOp(r.Uint8())
				o.Diffuse = r.Vec4()
				o.Specular = r.Vec4()
				o.Ambient = r.Vec3()
				o.EdgeColor = r.Vec4()
				o.EdgeSize = r.Float32()
				o.Texture = r.Vec4()
				o.Sphere = r.Vec4()
				o.Toon = r.Vec4()
				if o.Op != MaterialOpMul && o.Op != MaterialOpAdd && !r.Overflow() {
					return fmt.Errorf("%w: material morph op %d", ErrInvalidPMXTag, o.Op)
				}
				return nil
			})
			if err != nil {
				return fmt.Errorf("morph %d: %w", i, err)
			}
			l.m.MaterialMorphs = append(l.m.MaterialMorphs, m)

		default:
			return fmt.Errorf("morph %d: %w: morph type %d", i, ErrInvalidPMXTag, typ)
		}
	}
	return nil
}

func loadMorph[T any](l *pmxLoader, name, nameEn string, panel MorphPanel, typ MorphType, minSize int, read func(*T) error) (Morph[T], error) {
	m := Morph[T]{Name: name, NameEn: nameEn, Panel: panel, Type: typ}
	n, err := l.count(minSize)
	if err != nil {
		return m, err
	}

	m.Offsets = make([]T, n)
	for i := range m.Offsets {
		if err := read(&m.Offsets[i]); err != nil {
			return m, err
		}
	}
	return m, nil
}

func (l *pmxLoader) loadDisplayFrames() error {
	r := l.r
	w := l.widths()
	n, err := l.count(minFrameSize)
	if err != nil {
		return err
	}

	l.m.DisplayFrames = make([]DisplayFrame, n)
	for i := range l.m.DisplayFrames {
		f := &l.m.DisplayFrames[i]
		f.Name = r.Text()
		f.NameEn = r.Text()
		f.Special = r.Bool()

		items, err := l.count(2)
		if err != nil {
			return fmt.Errorf("display frame %d: %w", i, err)
		}
		f.Items = make([]DisplayItem, items)
		for j := range f.Items {
			item := &f.Items[j]
			item.Kind = DisplayItemKind(r.Uint8())
			switch item.Kind {
			case DisplayBone:
				item.Index = r.Index(w.Bone)
			case DisplayMorph:
				item.Index = r.Index(w.Morph)
			default:
				if r.Overflow() {
					return checkpoint(r, ErrTruncatedPMXData)
				}
				return fmt.Errorf("display frame %d: %w: item kind %d", i, ErrInvalidPMXTag, item.Kind)
			}
		}
	}
	return nil
}

func (l *pmxLoader) loadRigidBodies() error {
	r := l.r
	bw := l.widths().Bone
	n, err := l.count(minBodySize)
	if err != nil {
		return err
	}

	l.m.RigidBodies = make([]RigidBody, n)
	for i := range l.m.RigidBodies {
		b := &l.m.RigidBodies[i]
		b.Name = r.Text()
		b.NameEn = r.Text()
		b.Bone = r.Index(bw)
		b.Group = r.Uint8()
		b.NoCollision = r.Uint16()
		b.Shape = BodyShape(r.Uint8())
		b.Size = r.Vec3()
		b.Position = r.Vec3()
		b.Rotation = r.Vec3()
		b.Mass = r.Float32()
		b.LinearDamping = r.Float32()
		b.AngularDamping = r.Float32()
		b.Restitution = r.Float32()
		b.Friction = r.Float32()
		b.Physics = PhysicsMode(r.Uint8())

		if r.Overflow() {
			return checkpoint(r, ErrTruncatedPMXData)
		}
		if b.Physics > PhysicsCombine {
			return fmt.Errorf("rigid body %d: %w: physics mode %d", i, ErrInvalidPMXTag, b.Physics)
		}
	}
	return nil
}

func (l *pmxLoader) loadJoints() error {
	r := l.r
	bw := l.widths().Body
	n, err := l.count(minJointSize)
	if err != nil {
		return err
	}

	l.m.Joints = make([]Joint, n)
	for i := range l.m.Joints {
		j := &l.m.Joints[i]
		j.Name = r.Text()
		j.NameEn = r.Text()
		j.Type = JointType(r.Uint8())
		if r.Overflow() {
			return checkpoint(r, ErrTruncatedPMXData)
		}
		if j.Type != JointSpring6DOF {
			return fmt.Errorf("joint %d: %w: joint type %d", i, ErrInvalidPMXTag, j.Type)
		}

		j.BodyA = r.Index(bw)
		j.BodyB = r.Index(bw)
		j.Position = r.Vec3()
		j.Rotation = r.Vec3()
		j.TranslationMin = r.Vec3()
		j.TranslationMax = r.Vec3()
		j.RotationMin = r.Vec3()
		j.RotationMax = r.Vec3()
		j.SpringTranslation = r.Vec3()
		j.SpringRotation = r.Vec3()
	}
	return nil
}
