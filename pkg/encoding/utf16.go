package encoding

import (
	"golang.org/x/text/encoding/unicode"
)

var utf16LE = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// UTF16LEToUTF8 decodes little-endian UTF-16 bytes.
// A trailing odd byte decodes to the replacement character.
func UTF16LEToUTF8(data []byte) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	out, err := utf16LE.NewDecoder().Bytes(data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// UTF8ToUTF16LE encodes s as little-endian UTF-16 without a BOM.
func UTF8ToUTF16LE(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	return utf16LE.NewEncoder().Bytes([]byte(s))
}
