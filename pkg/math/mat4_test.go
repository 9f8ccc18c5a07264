package math

import (
	"math"
	"testing"
)

func TestIdentity(t *testing.T) {
	m := Identity()
	// Diagonal should be 1
	if m[0] != 1 || m[5] != 1 || m[10] != 1 || m[15] != 1 {
		t.Error("Identity diagonal should be 1")
	}
	// Off-diagonal should be 0
	if m[1] != 0 || m[4] != 0 {
		t.Error("Identity off-diagonal should be 0")
	}
}

func TestMulIdentity(t *testing.T) {
	m := Translate(1, 2, 3)
	id := Identity()
	result := m.Mul(id)

	for i := 0; i < 16; i++ {
		if result[i] != m[i] {
			t.Errorf("M * I should equal M, element %d: got %f, want %f", i, result[i], m[i])
		}
	}
}

func TestTranslate(t *testing.T) {
	m := Translate(5, 10, 15)

	// Translation should be in column 4 (indices 12, 13, 14)
	if m[12] != 5 || m[13] != 10 || m[14] != 15 {
		t.Errorf("Translate: got (%f, %f, %f), want (5, 10, 15)", m[12], m[13], m[14])
	}
}

func TestTransformVec3(t *testing.T) {
	yaw90 := QuatFromAxisAngle(Vec3{Y: 1}, math.Pi/2).ToMat4()
	tests := []struct {
		name string
		m    Mat4
		want Vec3
	}{
		{"translate", Translate(10, 20, 30), Vec3{11, 22, 33}},
		{"rotate y", yaw90, Vec3{3, 2, -1}},
		{"rotate then translate", Translate(1, 0, 0).Mul(yaw90), Vec3{4, 2, -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.m.TransformVec3(Vec3{1, 2, 3})
			if got.Sub(tt.want).Length() > 1e-5 {
				t.Errorf("TransformVec3: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPerspective(t *testing.T) {
	fov := float32(math.Pi / 4) // 45 degrees
	aspect := float32(1.0)
	near := float32(0.1)
	far := float32(100.0)

	m := Perspective(fov, aspect, near, far)

	// Should be a valid projection matrix (not identity)
	if m[0] == 0 || m[5] == 0 {
		t.Error("Perspective should have non-zero elements")
	}
	// Element [15] should be 0 for perspective projection
	if m[15] != 0 {
		t.Errorf("Perspective [15] should be 0, got %f", m[15])
	}
	// Element [11] should be -1 for perspective projection
	if m[11] != -1 {
		t.Errorf("Perspective [11] should be -1, got %f", m[11])
	}
}

func TestLookAt(t *testing.T) {
	eye := Vec3{0, 0, 5}
	center := Vec3{0, 0, 0}
	up := Vec3{0, 1, 0}

	m := LookAt(eye, center, up)

	if m[15] != 1 {
		t.Errorf("LookAt [15] should be 1, got %f", m[15])
	}
	// The eye maps to the origin and the target lies down -Z.
	if p := m.TransformVec3(eye); p.Length() > 1e-5 {
		t.Errorf("LookAt eye: got %v, want origin", p)
	}
	if p := m.TransformVec3(center); abs(p.Z+5) > 1e-5 {
		t.Errorf("LookAt center: got %v, want (0, 0, -5)", p)
	}
}

func abs(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}

func TestMat4Lerp(t *testing.T) {
	a := Translate(0, 0, 0)
	b := Translate(10, 20, 30)

	mid := a.Lerp(b, 0.5)
	if mid.Translation() != (Vec3{5, 10, 15}) {
		t.Errorf("Lerp midpoint: got %v, want (5, 10, 15)", mid.Translation())
	}
	if a.Lerp(b, 0) != a || a.Lerp(b, 1) != b {
		t.Error("Lerp endpoints should return the inputs")
	}
}
