// Package binio provides a bounds-checked little-endian cursor over byte
// buffers, shared by the PMX, VMD and scene capture codecs.
//
// A Reader never panics on short input. The first failing read puts it into
// a sticky failed state: that read and every later read return zero values,
// and Err reports where decoding stopped. Loaders check Err at section
// boundaries instead of after every field.
package binio

import (
	"encoding/binary"
	"errors"
	"fmt"
	gomath "math"

	"github.com/Faultbox/headless-mmd/pkg/encoding"
	"github.com/Faultbox/headless-mmd/pkg/math"
)

// Reader errors.
var (
	ErrOverflow          = errors.New("read past end of buffer")
	ErrInvalidIndexWidth = errors.New("invalid index width")
	ErrInvalidText       = errors.New("invalid text encoding")
)

// Reader reads little-endian values from a byte slice.
type Reader struct {
	buf []byte
	off int
	err error
}

// NewReader creates a reader positioned at the start of data.
func NewReader(data []byte) *Reader {
	return &Reader{buf: data}
}

// Err returns nil while all reads succeeded, otherwise the first failure
// annotated with the offset at which it happened.
func (r *Reader) Err() error {
	return r.err
}

// Overflow reports whether the reader is in its failed state.
func (r *Reader) Overflow() bool {
	return r.err != nil
}

// Offset returns the current cursor position.
func (r *Reader) Offset() int {
	return r.off
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.off
}

// Fits reports whether count elements of at least elemSize bytes could
// still be read. Loaders call it before allocating for a count field.
func (r *Reader) Fits(count, elemSize int) bool {
	if r.err != nil || count < 0 || elemSize < 0 {
		return false
	}
	return uint64(count)*uint64(elemSize) <= uint64(r.Remaining())
}

func (r *Reader) fail(err error) {
	if r.err == nil {
		r.err = fmt.Errorf("%w at offset %d", err, r.off)
	}
}

func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || n > r.Remaining() {
		r.fail(ErrOverflow)
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

// Uint8 reads one byte.
func (r *Reader) Uint8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

// Int8 reads one signed byte.
func (r *Reader) Int8() int8 {
	return int8(r.Uint8())
}

// Bool reads one byte; any non-zero value is true.
func (r *Reader) Bool() bool {
	return r.Uint8() != 0
}

// Uint16 reads a little-endian uint16.
func (r *Reader) Uint16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

// Int16 reads a little-endian int16.
func (r *Reader) Int16() int16 {
	return int16(r.Uint16())
}

// Uint32 reads a little-endian uint32.
func (r *Reader) Uint32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

// Int32 reads a little-endian int32.
func (r *Reader) Int32() int32 {
	return int32(r.Uint32())
}

// Float32 reads a little-endian IEEE 754 float.
func (r *Reader) Float32() float32 {
	return gomath.Float32frombits(r.Uint32())
}

// Vec2 reads two floats.
func (r *Reader) Vec2() math.Vec2 {
	return math.Vec2{X: r.Float32(), Y: r.Float32()}
}

// Vec3 reads three floats.
func (r *Reader) Vec3() math.Vec3 {
	return math.Vec3{X: r.Float32(), Y: r.Float32(), Z: r.Float32()}
}

// Vec4 reads four floats.
func (r *Reader) Vec4() math.Vec4 {
	return math.Vec4{r.Float32(), r.Float32(), r.Float32(), r.Float32()}
}

// Quat reads a quaternion stored as x, y, z, w.
func (r *Reader) Quat() math.Quat {
	return math.Quat{X: r.Float32(), Y: r.Float32(), Z: r.Float32(), W: r.Float32()}
}

// Mat4 reads sixteen floats in storage order.
func (r *Reader) Mat4() math.Mat4 {
	var m math.Mat4
	b := r.take(64)
	if b == nil {
		return m
	}
	for i := range m {
		m[i] = gomath.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return m
}

// Bytes reads n bytes. The returned slice aliases the underlying buffer.
func (r *Reader) Bytes(n int) []byte {
	return r.take(n)
}

// Array fills dst with the next len(dst) bytes.
func (r *Reader) Array(dst []byte) {
	b := r.take(len(dst))
	if b == nil {
		clear(dst)
		return
	}
	copy(dst, b)
}

// Index reads a signed index of the given byte width (1, 2 or 4) widened
// to int32, so -1 keeps meaning "none" at every width.
func (r *Reader) Index(width uint8) int32 {
	switch width {
	case 1:
		return int32(r.Int8())
	case 2:
		return int32(r.Int16())
	case 4:
		return r.Int32()
	default:
		r.fail(fmt.Errorf("%w: %d", ErrInvalidIndexWidth, width))
		return 0
	}
}

// UIndex reads a vertex index: unsigned at widths 1 and 2, signed at 4.
func (r *Reader) UIndex(width uint8) int32 {
	switch width {
	case 1:
		return int32(r.Uint8())
	case 2:
		return int32(r.Uint16())
	case 4:
		return r.Int32()
	default:
		r.fail(fmt.Errorf("%w: %d", ErrInvalidIndexWidth, width))
		return 0
	}
}

func (r *Reader) lengthPrefixed() []byte {
	n := r.Uint32()
	if r.err != nil {
		return nil
	}
	if uint64(n) > uint64(r.Remaining()) {
		r.fail(ErrOverflow)
		return nil
	}
	return r.take(int(n))
}

// Text reads a uint32 byte length followed by UTF-16LE text.
func (r *Reader) Text() string {
	b := r.lengthPrefixed()
	if len(b) == 0 {
		return ""
	}
	s, err := encoding.UTF16LEToUTF8(b)
	if err != nil {
		r.fail(fmt.Errorf("%w: %v", ErrInvalidText, err))
		return ""
	}
	return s
}

// TextA reads a uint32 byte length followed by raw 8-bit text.
func (r *Reader) TextA() string {
	return string(r.lengthPrefixed())
}

// FixedString reads exactly n bytes and returns them up to the first NUL.
// Bytes after the terminator are padding or garbage and are discarded.
func (r *Reader) FixedString(n int) string {
	return string(encoding.TrimNUL(r.take(n)))
}
