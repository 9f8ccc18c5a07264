package formats

import (
	"fmt"

	"github.com/Faultbox/headless-mmd/pkg/math"
)

// PMX format errors.
var (
	ErrInvalidPMXMagic        = fmt.Errorf("%w: invalid PMX magic: expected 'PMX '", ErrFormat)
	ErrUnsupportedPMXVersion  = fmt.Errorf("%w: unsupported PMX version", ErrFormat)
	ErrInvalidPMXHeader       = fmt.Errorf("%w: invalid PMX header", ErrFormat)
	ErrUnsupportedPMXEncoding = fmt.Errorf("%w: unsupported PMX text encoding", ErrFormat)
	ErrInvalidPMXCount        = fmt.Errorf("%w: invalid PMX element count", ErrFormat)
	ErrInvalidPMXTag          = fmt.Errorf("%w: invalid PMX type tag", ErrFormat)
	ErrInvalidPMXWeighting    = fmt.Errorf("%w: unsupported vertex weighting", ErrSemantic)
	ErrInvalidPMXMaterialSpan = fmt.Errorf("%w: invalid material vertex span", ErrSemantic)
	ErrTruncatedPMXData       = fmt.Errorf("%w: truncated PMX data", ErrTruncated)
)

// PMX header constants.
const (
	PMXMagic          = "PMX "
	PMXVersion        = float32(2.0)
	pmxHeaderDataSize = 8
	pmxMaxExtraUVs    = 4
)

// PMXEncoding is the text encoding declared in the PMX header.
type PMXEncoding uint8

// Text encodings. Only UTF-16 is accepted by the loader.
const (
	PMXEncodingUTF16 PMXEncoding = 0
	PMXEncodingUTF8  PMXEncoding = 1
)

// String returns a human-readable name for the encoding.
func (e PMXEncoding) String() string {
	switch e {
	case PMXEncodingUTF16:
		return "UTF-16"
	case PMXEncodingUTF8:
		return "UTF-8"
	default:
		return fmt.Sprintf("Unknown(%d)", e)
	}
}

// IndexSizes holds the byte width (1, 2 or 4) of each index category.
type IndexSizes struct {
	Vertex   uint8
	Texture  uint8
	Material uint8
	Bone     uint8
	Morph    uint8
	Body     uint8
}

// Valid reports whether every width is 1, 2 or 4.
func (s IndexSizes) Valid() bool {
	for _, w := range [...]uint8{s.Vertex, s.Texture, s.Material, s.Bone, s.Morph, s.Body} {
		if w != 1 && w != 2 && w != 4 {
			return false
		}
	}
	return true
}

// PMXHeader is the fixed header of a PMX model.
type PMXHeader struct {
	Version    float32
	Encoding   PMXEncoding
	ExtraUVs   uint8 // 0-4
	IndexSizes IndexSizes
	Name       string
	NameEn     string
	Comment    string
	CommentEn  string
}

// Model represents a parsed PMX model.
type Model struct {
	Header    PMXHeader
	Vertices  []Vertex
	Indices   []int32 // triangle list, len is a multiple of 3
	Textures  []string
	Materials []Material
	Bones     []Bone

	GroupMorphs    []Morph[GroupOffset]
	VertexMorphs   []Morph[VertexOffset]
	BoneMorphs     []Morph[BoneOffset]
	UVMorphs       []Morph[UVOffset]
	MaterialMorphs []Morph[MaterialOffset]

	DisplayFrames []DisplayFrame
	RigidBodies   []RigidBody
	Joints        []Joint
}

// Vertex is a skinned mesh vertex.
type Vertex struct {
	Position  math.Vec3
	Normal    math.Vec3
	UV        math.Vec2
	ExtraUV   [pmxMaxExtraUVs]math.Vec4 // first Header.ExtraUVs entries are stored
	Weighting Weighting
	EdgeScale float32
}

// WeightType identifies a vertex weighting mode.
type WeightType uint8

// Weighting modes.
const (
	WeightBDEF1 WeightType = 0
	WeightBDEF2 WeightType = 1
	WeightBDEF4 WeightType = 2
	WeightSDEF  WeightType = 3
)

// String returns a human-readable name for the weighting mode.
func (t WeightType) String() string {
	switch t {
	case WeightBDEF1:
		return "BDEF1"
	case WeightBDEF2:
		return "BDEF2"
	case WeightBDEF4:
		return "BDEF4"
	case WeightSDEF:
		return "SDEF"
	default:
		return fmt.Sprintf("Unknown(%d)", t)
	}
}

// Weighting binds a vertex to skeleton bones. The concrete type is one of
// BDEF1, BDEF2, BDEF4 or SDEF.
type Weighting interface {
	Type() WeightType
	// BoneIndices returns four bone indices; unused slots are -1.
	BoneIndices() [4]int32
	// BoneWeights returns the blend weights matching BoneIndices.
	BoneWeights() [4]float32
}

// BDEF1 binds a vertex to a single bone.
type BDEF1 struct {
	Bone int32
}

// BDEF2 blends two bones; the second bone receives 1-Weight.
type BDEF2 struct {
	Bones  [2]int32
	Weight float32
}

// BDEF4 blends four bones with explicit weights.
type BDEF4 struct {
	Bones   [4]int32
	Weights [4]float32
}

// SDEF is spherical deformation between two bones.
type SDEF struct {
	Bones  [2]int32
	Weight float32
	C      math.Vec3
	R0     math.Vec3
	R1     math.Vec3
}

func (BDEF1) Type() WeightType { return WeightBDEF1 }
func (BDEF2) Type() WeightType { return WeightBDEF2 }
func (BDEF4) Type() WeightType { return WeightBDEF4 }
func (SDEF) Type() WeightType  { return WeightSDEF }

func (w BDEF1) BoneIndices() [4]int32   { return [4]int32{w.Bone, -1, -1, -1} }
func (w BDEF1) BoneWeights() [4]float32 { return [4]float32{1, 0, 0, 0} }

func (w BDEF2) BoneIndices() [4]int32   { return [4]int32{w.Bones[0], w.Bones[1], -1, -1} }
func (w BDEF2) BoneWeights() [4]float32 { return [4]float32{w.Weight, 1 - w.Weight, 0, 0} }

func (w BDEF4) BoneIndices() [4]int32   { return w.Bones }
func (w BDEF4) BoneWeights() [4]float32 { return w.Weights }

func (w SDEF) BoneIndices() [4]int32   { return [4]int32{w.Bones[0], w.Bones[1], -1, -1} }
func (w SDEF) BoneWeights() [4]float32 { return [4]float32{w.Weight, 1 - w.Weight, 0, 0} }

// MaterialFlags is the material drawing bitfield.
type MaterialFlags uint8

// Material flag bits.
const (
	MaterialDoubleSided  MaterialFlags = 0x01
	MaterialGroundShadow MaterialFlags = 0x02
	MaterialCastShadow   MaterialFlags = 0x04
	MaterialRecvShadow   MaterialFlags = 0x08
	MaterialDrawEdge     MaterialFlags = 0x10
)

// Has reports whether all bits of flag are set.
func (f MaterialFlags) Has(flag MaterialFlags) bool {
	return f&flag == flag
}

// SphereMode controls how a material's sphere texture is applied.
type SphereMode uint8

// Sphere texture modes.
const (
	SphereNone SphereMode = 0
	SphereMul  SphereMode = 1
	SphereAdd  SphereMode = 2
	SphereSub  SphereMode = 3
)

// Material describes a contiguous span of the index list.
type Material struct {
	Name          string
	NameEn        string
	Diffuse       math.Vec4
	Specular      math.Vec4 // rgb + power
	Ambient       math.Vec3
	Flags         MaterialFlags
	EdgeColor     math.Vec4
	EdgeSize      float32
	Texture       int32 // -1 = none
	SphereTexture int32 // -1 = none
	SphereMode    SphereMode
	SharedToon    bool
	ToonTexture   int32 // shared toon number (0-9) if SharedToon, else texture index
	Note          string
	VertexCount   int32 // number of indices, multiple of 3
}

// BoneFlags is the PMX bone bitfield.
type BoneFlags uint16

// Bone flag bits.
const (
	BoneTipIsBone        BoneFlags = 0x0001
	BoneRotatable        BoneFlags = 0x0002
	BoneTranslatable     BoneFlags = 0x0004
	BoneVisible          BoneFlags = 0x0008
	BoneOperable         BoneFlags = 0x0010
	BoneIKFlag           BoneFlags = 0x0020
	BoneLocalGrant       BoneFlags = 0x0080
	BoneGrantRotation    BoneFlags = 0x0100
	BoneGrantTranslation BoneFlags = 0x0200
	BoneFixedAxis        BoneFlags = 0x0400
	BoneLocalAxis        BoneFlags = 0x0800
	BoneAfterPhysics     BoneFlags = 0x1000
	BoneExternalParent   BoneFlags = 0x2000

	// boneLayoutFlags select the optional fields present on disk.
	boneLayoutFlags = BoneTipIsBone | BoneIKFlag | BoneGrantRotation | BoneGrantTranslation |
		BoneFixedAxis | BoneLocalAxis | BoneExternalParent
)

// Has reports whether all bits of flag are set.
func (f BoneFlags) Has(flag BoneFlags) bool {
	return f&flag == flag
}

// Bone is a skeleton node. Optional parts are nil when absent; the matching
// layout bits of Flags are derived from them when saving.
type Bone struct {
	Name        string
	NameEn      string
	Position    math.Vec3
	Parent      int32 // -1 = root
	Layer       int32
	Flags       BoneFlags
	Tip         BoneTip
	Grant       *BoneGrant
	FixedAxis   *math.Vec3
	LocalAxis   *LocalAxis
	ExternalKey *int32
	IK          *BoneIK
}

// BoneTip is where a bone points to: a TipOffset or a TipBone.
type BoneTip interface {
	isBoneTip()
}

// TipOffset points the bone at a position relative to its origin.
type TipOffset struct {
	Offset math.Vec3
}

// TipBone points the bone at another bone.
type TipBone struct {
	Bone int32 // -1 = none
}

func (TipOffset) isBoneTip() {}
func (TipBone) isBoneTip()   {}

// BoneGrant inherits rotation and/or translation from another bone.
type BoneGrant struct {
	Parent      int32
	Rate        float32
	Rotation    bool
	Translation bool
}

// LocalAxis is a bone's local X and Z axes.
type LocalAxis struct {
	X math.Vec3
	Z math.Vec3
}

// BoneIK is an IK solver attached to a bone.
type BoneIK struct {
	Target     int32
	Iterations int32
	AngleLimit float32 // radians per iteration
	Links      []IKLink
}

// IKLink is one joint of an IK chain.
type IKLink struct {
	Bone  int32
	Limit *AngleLimit
}

// AngleLimit bounds an IK link's rotation in radians.
type AngleLimit struct {
	Min math.Vec3
	Max math.Vec3
}

// FindBone returns the index of the named bone, or -1.
func (m *Model) FindBone(name string) int {
	for i := range m.Bones {
		if m.Bones[i].Name == name {
			return i
		}
	}
	return -1
}

// MorphType identifies the kind of a morph.
type MorphType uint8

// Morph types.
const (
	MorphGroup    MorphType = 0
	MorphVertex   MorphType = 1
	MorphBone     MorphType = 2
	MorphUV       MorphType = 3
	MorphExUV1    MorphType = 4
	MorphExUV2    MorphType = 5
	MorphExUV3    MorphType = 6
	MorphExUV4    MorphType = 7
	MorphMaterial MorphType = 8
)

// String returns a human-readable name for the morph type.
func (t MorphType) String() string {
	switch t {
	case MorphGroup:
		return "Group"
	case MorphVertex:
		return "Vertex"
	case MorphBone:
		return "Bone"
	case MorphUV:
		return "UV"
	case MorphExUV1, MorphExUV2, MorphExUV3, MorphExUV4:
		return fmt.Sprintf("ExUV%d", t-MorphUV)
	case MorphMaterial:
		return "Material"
	default:
		return fmt.Sprintf("Unknown(%d)", t)
	}
}

// MorphPanel is the editor panel a morph is listed under.
type MorphPanel uint8

// Morph panels.
const (
	PanelSystem  MorphPanel = 0
	PanelEyebrow MorphPanel = 1
	PanelEye     MorphPanel = 2
	PanelMouth   MorphPanel = 3
	PanelOther   MorphPanel = 4
)

// Morph is a named deformation with typed offsets.
type Morph[T any] struct {
	Name    string
	NameEn  string
	Panel   MorphPanel
	Type    MorphType
	Offsets []T
}

// GroupOffset drives another morph.
type GroupOffset struct {
	Morph int32
	Rate  float32
}

// VertexOffset moves one vertex.
type VertexOffset struct {
	Vertex int32
	Offset math.Vec3
}

// BoneOffset moves and rotates one bone.
type BoneOffset struct {
	Bone        int32
	Translation math.Vec3
	Rotation    math.Quat
}

// UVOffset shifts one vertex's UV or extra UV channel.
type UVOffset struct {
	Vertex int32
	Offset math.Vec4
}

// MaterialOp is how a material morph combines with the material.
type MaterialOp uint8

// Material morph operations.
const (
	MaterialOpMul MaterialOp = 0
	MaterialOpAdd MaterialOp = 1
)

// MaterialOffset changes one material (or all, when Material is -1).
type MaterialOffset struct {
	Material  int32
	Op        MaterialOp
	Diffuse   math.Vec4
	Specular  math.Vec4
	Ambient   math.Vec3
	EdgeColor math.Vec4
	EdgeSize  float32
	Texture   math.Vec4
	Sphere    math.Vec4
	Toon      math.Vec4
}

// MorphCount returns the total number of morphs across all five lists.
func (m *Model) MorphCount() int {
	return len(m.GroupMorphs) + len(m.VertexMorphs) + len(m.BoneMorphs) +
		len(m.UVMorphs) + len(m.MaterialMorphs)
}

// DisplayItemKind tags a display frame entry.
type DisplayItemKind uint8

// Display item kinds.
const (
	DisplayBone  DisplayItemKind = 0
	DisplayMorph DisplayItemKind = 1
)

// DisplayItem references a bone or a morph.
type DisplayItem struct {
	Kind  DisplayItemKind
	Index int32
}

// DisplayFrame is an outliner node grouping bones and morphs.
type DisplayFrame struct {
	Name    string
	NameEn  string
	Special bool
	Items   []DisplayItem
}

// BodyShape is a rigid body collision shape.
type BodyShape uint8

// Rigid body shapes.
const (
	ShapeSphere  BodyShape = 0
	ShapeBox     BodyShape = 1
	ShapeCapsule BodyShape = 2
)

// PhysicsMode controls how a rigid body follows its bone.
type PhysicsMode uint8

// Physics modes.
const (
	PhysicsStatic  PhysicsMode = 0
	PhysicsDynamic PhysicsMode = 1
	PhysicsCombine PhysicsMode = 2
)

// RigidBody is a physics body attached to a bone.
type RigidBody struct {
	Name           string
	NameEn         string
	Bone           int32
	Group          uint8
	NoCollision    uint16
	Shape          BodyShape
	Size           math.Vec3
	Position       math.Vec3
	Rotation       math.Vec3
	Mass           float32
	LinearDamping  float32
	AngularDamping float32
	Restitution    float32
	Friction       float32
	Physics        PhysicsMode
}

// JointType identifies a joint constraint.
type JointType uint8

// JointSpring6DOF is the only joint type defined by PMX 2.0.
const JointSpring6DOF JointType = 0

// Joint connects two rigid bodies.
type Joint struct {
	Name              string
	NameEn            string
	Type              JointType
	BodyA             int32
	BodyB             int32
	Position          math.Vec3
	Rotation          math.Vec3
	TranslationMin    math.Vec3
	TranslationMax    math.Vec3
	RotationMin       math.Vec3
	RotationMax       math.Vec3
	SpringTranslation math.Vec3
	SpringRotation    math.Vec3
}
