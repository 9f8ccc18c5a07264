package binio

import (
	"encoding/binary"
	gomath "math"

	"github.com/Faultbox/headless-mmd/pkg/encoding"
	"github.com/Faultbox/headless-mmd/pkg/math"
)

// Writer appends little-endian values to a growing buffer.
type Writer struct {
	buf []byte
}

// NewWriter creates a writer with sizeHint bytes preallocated.
func NewWriter(sizeHint int) *Writer {
	return &Writer{buf: make([]byte, 0, max(sizeHint, 0))}
}

// Bytes returns the written data.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len returns the number of bytes written.
func (w *Writer) Len() int {
	return len(w.buf)
}

// PutUint8 writes one byte.
func (w *Writer) PutUint8(v uint8) {
	w.buf = append(w.buf, v)
}

// PutInt8 writes one signed byte.
func (w *Writer) PutInt8(v int8) {
	w.buf = append(w.buf, uint8(v))
}

// PutBool writes 1 for true and 0 for false.
func (w *Writer) PutBool(v bool) {
	if v {
		w.PutUint8(1)
		return
	}
	w.PutUint8(0)
}

// PutUint16 writes a little-endian uint16.
func (w *Writer) PutUint16(v uint16) {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
}

// PutInt16 writes a little-endian int16.
func (w *Writer) PutInt16(v int16) {
	w.PutUint16(uint16(v))
}

// PutUint32 writes a little-endian uint32.
func (w *Writer) PutUint32(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

// PutInt32 writes a little-endian int32.
func (w *Writer) PutInt32(v int32) {
	w.PutUint32(uint32(v))
}

// PutFloat32 writes an IEEE 754 float.
func (w *Writer) PutFloat32(v float32) {
	w.PutUint32(gomath.Float32bits(v))
}

// PutVec2 writes two floats.
func (w *Writer) PutVec2(v math.Vec2) {
	w.PutFloat32(v.X)
	w.PutFloat32(v.Y)
}

// PutVec3 writes three floats.
func (w *Writer) PutVec3(v math.Vec3) {
	w.PutFloat32(v.X)
	w.PutFloat32(v.Y)
	w.PutFloat32(v.Z)
}

// PutVec4 writes four floats.
func (w *Writer) PutVec4(v math.Vec4) {
	for _, f := range v {
		w.PutFloat32(f)
	}
}

// PutQuat writes a quaternion as x, y, z, w.
func (w *Writer) PutQuat(q math.Quat) {
	w.PutFloat32(q.X)
	w.PutFloat32(q.Y)
	w.PutFloat32(q.Z)
	w.PutFloat32(q.W)
}

// PutMat4 writes sixteen floats in storage order.
func (w *Writer) PutMat4(m math.Mat4) {
	for _, f := range m {
		w.PutFloat32(f)
	}
}

// PutBytes writes b verbatim.
func (w *Writer) PutBytes(b []byte) {
	w.buf = append(w.buf, b...)
}

// PutIndex writes v narrowed to width bytes. Widths other than 1 and 2
// are written as 4 bytes.
func (w *Writer) PutIndex(width uint8, v int32) {
	switch width {
	case 1:
		w.PutUint8(uint8(v))
	case 2:
		w.PutUint16(uint16(v))
	default:
		w.PutInt32(v)
	}
}

// PutText writes s as a uint32 byte length followed by UTF-16LE text.
// Strings that cannot be encoded are written empty.
func (w *Writer) PutText(s string) {
	b, err := encoding.UTF8ToUTF16LE(s)
	if err != nil {
		b = nil
	}
	w.PutUint32(uint32(len(b)))
	w.PutBytes(b)
}

// PutTextA writes s as a uint32 byte length followed by its raw bytes.
func (w *Writer) PutTextA(s string) {
	w.PutUint32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

// PutFixedString writes exactly n bytes: s truncated to n, or NUL-padded.
func (w *Writer) PutFixedString(s string, n int) {
	if len(s) > n {
		s = s[:n]
	}
	w.buf = append(w.buf, s...)
	for i := len(s); i < n; i++ {
		w.buf = append(w.buf, 0)
	}
}
