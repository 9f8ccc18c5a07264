// Package encoding provides text encoding utilities for MMD file formats.
//
// PMX stores text as UTF-16LE; VMD and scene captures store names as
// NUL-padded Shift-JIS. Codecs keep the raw bytes and callers convert
// with the helpers here.
package encoding

import (
	"bytes"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

// ShiftJISToUTF8 converts Shift-JIS encoded bytes to a UTF-8 string.
// Returns the original bytes as a string if conversion fails.
func ShiftJISToUTF8(data []byte) string {
	result, _, err := transform.Bytes(japanese.ShiftJIS.NewDecoder(), data)
	if err != nil {
		return string(data)
	}
	return string(result)
}

// ShiftJISStringToUTF8 converts a Shift-JIS encoded string to UTF-8.
func ShiftJISStringToUTF8(s string) string {
	return ShiftJISToUTF8([]byte(s))
}

// UTF8ToShiftJIS converts a UTF-8 string to Shift-JIS encoded bytes.
// Returns the original bytes if conversion fails.
func UTF8ToShiftJIS(s string) []byte {
	result, _, err := transform.Bytes(japanese.ShiftJIS.NewEncoder(), []byte(s))
	if err != nil {
		return []byte(s)
	}
	return result
}

// TrimNUL returns b up to (not including) the first NUL byte.
func TrimNUL(b []byte) []byte {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return b[:i]
	}
	return b
}
