package encoding

import (
	"bytes"
	"testing"
)

func TestShiftJISRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		utf8 string
		sjis []byte
	}{
		{"ascii", "center", []byte("center")},
		{"center bone", "センター", []byte{0x83, 0x5A, 0x83, 0x93, 0x83, 0x5E, 0x81, 0x5B}},
		{"empty", "", []byte{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := UTF8ToShiftJIS(tt.utf8)
			if !bytes.Equal(got, tt.sjis) {
				t.Errorf("UTF8ToShiftJIS(%q) = % X, want % X", tt.utf8, got, tt.sjis)
			}
			if back := ShiftJISToUTF8(tt.sjis); back != tt.utf8 {
				t.Errorf("ShiftJISToUTF8 = %q, want %q", back, tt.utf8)
			}
		})
	}
}

func TestUTF16LE(t *testing.T) {
	enc, err := UTF8ToUTF16LE("aあ")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := []byte{'a', 0x00, 0x42, 0x30}
	if !bytes.Equal(enc, want) {
		t.Errorf("expected % X, got % X", want, enc)
	}

	dec, err := UTF16LEToUTF8(enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dec != "aあ" {
		t.Errorf("expected %q, got %q", "aあ", dec)
	}

	if s, err := UTF16LEToUTF8(nil); err != nil || s != "" {
		t.Errorf("expected empty string for nil input, got %q (%v)", s, err)
	}
}

func TestTrimNUL(t *testing.T) {
	tests := []struct {
		in   []byte
		want string
	}{
		{[]byte("abc\x00\x00"), "abc"},
		{[]byte("abc"), "abc"},
		{[]byte("\x00garbage"), ""},
		{[]byte("ab\x00cd\x00"), "ab"},
	}
	for _, tt := range tests {
		if got := string(TrimNUL(tt.in)); got != tt.want {
			t.Errorf("TrimNUL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
