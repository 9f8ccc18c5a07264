package binio

import (
	"bytes"
	"errors"
	"testing"

	"github.com/Faultbox/headless-mmd/pkg/math"
)

func TestReader_Primitives(t *testing.T) {
	w := NewWriter(0)
	w.PutUint8(0xAB)
	w.PutInt8(-2)
	w.PutUint16(0xBEEF)
	w.PutInt32(-123456)
	w.PutFloat32(1.5)
	w.PutVec3(math.Vec3{X: 1, Y: 2, Z: 3})
	w.PutQuat(math.Quat{X: 0, Y: 0, Z: 0, W: 1})
	w.PutBool(true)

	r := NewReader(w.Bytes())
	if v := r.Uint8(); v != 0xAB {
		t.Errorf("expected 0xAB, got 0x%X", v)
	}
	if v := r.Int8(); v != -2 {
		t.Errorf("expected -2, got %d", v)
	}
	if v := r.Uint16(); v != 0xBEEF {
		t.Errorf("expected 0xBEEF, got 0x%X", v)
	}
	if v := r.Int32(); v != -123456 {
		t.Errorf("expected -123456, got %d", v)
	}
	if v := r.Float32(); v != 1.5 {
		t.Errorf("expected 1.5, got %f", v)
	}
	if v := r.Vec3(); v != (math.Vec3{X: 1, Y: 2, Z: 3}) {
		t.Errorf("expected (1,2,3), got %v", v)
	}
	if q := r.Quat(); q != math.QuatIdentity() {
		t.Errorf("expected identity quat, got %v", q)
	}
	if !r.Bool() {
		t.Error("expected true")
	}
	if r.Err() != nil {
		t.Errorf("unexpected error: %v", r.Err())
	}
	if r.Remaining() != 0 {
		t.Errorf("expected 0 remaining, got %d", r.Remaining())
	}
}

func TestReader_StickyOverflow(t *testing.T) {
	r := NewReader([]byte{1, 2, 3})
	if v := r.Uint16(); v != 0x0201 {
		t.Errorf("expected 0x0201, got 0x%X", v)
	}
	if v := r.Uint32(); v != 0 {
		t.Errorf("expected zero on overflow, got %d", v)
	}
	if !r.Overflow() {
		t.Fatal("expected overflow")
	}
	// The remaining byte is still there but the reader must stay failed.
	if v := r.Uint8(); v != 0 {
		t.Errorf("expected zero after overflow, got %d", v)
	}
	if !errors.Is(r.Err(), ErrOverflow) {
		t.Errorf("expected ErrOverflow, got %v", r.Err())
	}
	if r.Offset() != 2 {
		t.Errorf("expected offset to stop at 2, got %d", r.Offset())
	}
}

func TestReader_Index(t *testing.T) {
	tests := []struct {
		name   string
		data   []byte
		width  uint8
		signed int32
		uns    int32
	}{
		{"byte none", []byte{0xFF}, 1, -1, 255},
		{"byte", []byte{0x7F}, 1, 127, 127},
		{"short none", []byte{0xFF, 0xFF}, 2, -1, 65535},
		{"short", []byte{0x34, 0x12}, 2, 0x1234, 0x1234},
		{"int none", []byte{0xFF, 0xFF, 0xFF, 0xFF}, 4, -1, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if v := NewReader(tt.data).Index(tt.width); v != tt.signed {
				t.Errorf("Index = %d, want %d", v, tt.signed)
			}
			if v := NewReader(tt.data).UIndex(tt.width); v != tt.uns {
				t.Errorf("UIndex = %d, want %d", v, tt.uns)
			}
		})
	}

	r := NewReader([]byte{0, 0, 0})
	r.Index(3)
	if !errors.Is(r.Err(), ErrInvalidIndexWidth) {
		t.Errorf("expected ErrInvalidIndexWidth, got %v", r.Err())
	}
}

func TestReader_Text(t *testing.T) {
	w := NewWriter(0)
	w.PutText("モデル")
	w.PutTextA("raw")
	w.PutFixedString("center", 15)

	r := NewReader(w.Bytes())
	if s := r.Text(); s != "モデル" {
		t.Errorf("expected モデル, got %q", s)
	}
	if s := r.TextA(); s != "raw" {
		t.Errorf("expected raw, got %q", s)
	}
	if s := r.FixedString(15); s != "center" {
		t.Errorf("expected center, got %q", s)
	}
	if r.Err() != nil {
		t.Errorf("unexpected error: %v", r.Err())
	}
}

func TestReader_TextLengthTooLarge(t *testing.T) {
	r := NewReader([]byte{0xFF, 0xFF, 0xFF, 0x7F, 'a', 0})
	if s := r.Text(); s != "" {
		t.Errorf("expected empty string, got %q", s)
	}
	if !r.Overflow() {
		t.Error("expected overflow for oversized length prefix")
	}
}

func TestReader_FixedStringGarbage(t *testing.T) {
	data := []byte("abc\x00\xFF\xFE")
	if s := NewReader(data).FixedString(len(data)); s != "abc" {
		t.Errorf("expected abc, got %q", s)
	}
}

func TestReader_Fits(t *testing.T) {
	r := NewReader(make([]byte, 16))
	if !r.Fits(4, 4) {
		t.Error("expected 4x4 to fit in 16 bytes")
	}
	if r.Fits(5, 4) {
		t.Error("expected 5x4 not to fit in 16 bytes")
	}
	if r.Fits(-1, 4) {
		t.Error("negative count must not fit")
	}
}

func TestWriter_FixedString(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want []byte
	}{
		{"ab", 4, []byte{'a', 'b', 0, 0}},
		{"abcdef", 4, []byte("abcd")},
		{"", 2, []byte{0, 0}},
	}
	for _, tt := range tests {
		w := NewWriter(0)
		w.PutFixedString(tt.in, tt.n)
		if !bytes.Equal(w.Bytes(), tt.want) {
			t.Errorf("PutFixedString(%q, %d) = % X, want % X", tt.in, tt.n, w.Bytes(), tt.want)
		}
	}
}

func TestWriter_IndexWidths(t *testing.T) {
	w := NewWriter(0)
	w.PutIndex(1, -1)
	w.PutIndex(2, -1)
	w.PutIndex(4, -1)
	if w.Len() != 7 {
		t.Fatalf("expected 7 bytes, got %d", w.Len())
	}

	r := NewReader(w.Bytes())
	for _, width := range []uint8{1, 2, 4} {
		if v := r.Index(width); v != -1 {
			t.Errorf("width %d: expected -1, got %d", width, v)
		}
	}
}

func TestReader_Mat4(t *testing.T) {
	m := math.Translate(1, 2, 3)
	w := NewWriter(64)
	w.PutMat4(m)
	if got := NewReader(w.Bytes()).Mat4(); got != m {
		t.Errorf("expected %v, got %v", m, got)
	}
}
