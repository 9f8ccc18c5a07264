//go:build ignore

// This program generates a test VMD file for unit tests.
// Run with: go run generate_vmd.go
package main

import (
	"bytes"
	"encoding/binary"
	"os"
)

var (
	center = []byte{0x83, 0x5A, 0x83, 0x93, 0x83, 0x5E, 0x81, 0x5B} // センター
	mouthA = []byte{0x82, 0xA0}                                     // あ
)

func main() {
	var buf bytes.Buffer

	// Header (50 bytes)
	writeFixed(&buf, []byte("Vocaloid Motion Data 0002"), 30)
	writeFixed(&buf, []byte("generated"), 20)

	// Bones: center at frame 0 and 30
	binary.Write(&buf, binary.LittleEndian, uint32(2))
	writeBoneKey(&buf, 0, [3]float32{0, 0, 0})
	writeBoneKey(&buf, 30, [3]float32{0, 5, 0})

	// Morphs: one key
	binary.Write(&buf, binary.LittleEndian, uint32(1))
	writeFixed(&buf, mouthA, 15)
	binary.Write(&buf, binary.LittleEndian, uint32(15))
	binary.Write(&buf, binary.LittleEndian, float32(1))

	// Camera: one key
	binary.Write(&buf, binary.LittleEndian, uint32(1))
	binary.Write(&buf, binary.LittleEndian, uint32(0))
	binary.Write(&buf, binary.LittleEndian, float32(45))
	binary.Write(&buf, binary.LittleEndian, [3]float32{0, 10, 0})
	binary.Write(&buf, binary.LittleEndian, [3]float32{0, 0, 0})
	for i := 0; i < 6; i++ {
		buf.Write([]byte{20, 107, 20, 107})
	}
	binary.Write(&buf, binary.LittleEndian, uint32(30))
	buf.WriteByte(0)

	// Light, shadow, visibility/IK: empty
	binary.Write(&buf, binary.LittleEndian, [3]uint32{})

	if err := os.WriteFile("test.vmd", buf.Bytes(), 0644); err != nil {
		panic(err)
	}

	println("Generated test.vmd:", buf.Len(), "bytes")
	println("  - 2 bone keys (center: frame 0, 30)")
	println("  - 1 morph key")
	println("  - 1 camera key")
}

func writeFixed(buf *bytes.Buffer, s []byte, n int) {
	field := make([]byte, n)
	copy(field, s)
	buf.Write(field)
}

func writeBoneKey(buf *bytes.Buffer, frame uint32, pos [3]float32) {
	writeFixed(buf, center, 15)
	binary.Write(buf, binary.LittleEndian, frame)
	binary.Write(buf, binary.LittleEndian, pos)
	binary.Write(buf, binary.LittleEndian, [4]float32{0, 0, 0, 1})

	// Default curve on every channel, stored as four shifted rows.
	row := []byte{
		20, 20, 20, 20,
		20, 20, 20, 20,
		107, 107, 107, 107,
		107, 107, 107, 107,
	}
	for i := 0; i < 4; i++ {
		shifted := make([]byte, 16)
		copy(shifted, row[i:])
		buf.Write(shifted)
	}
}
