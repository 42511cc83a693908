package fat

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/appsworld/tbd/pkg/iohelp"
	"github.com/appsworld/tbd/types"
)

func buildFat32(t *testing.T, arches [][5]uint32) *iohelp.Stream {
	t.Helper()
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint32(0xcafebabe))
	binary.Write(&buf, binary.BigEndian, uint32(len(arches)))
	for _, a := range arches {
		for _, field := range a {
			binary.Write(&buf, binary.BigEndian, field)
		}
	}
	// pad enough trailing bytes that declared arch ranges fit "in the file".
	buf.Write(make([]byte, 0x10000))
	return iohelp.New(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
}

func TestEnumerateTwoArches(t *testing.T) {
	s := buildFat32(t, [][5]uint32{
		{uint32(types.CPU386), 0, 0x1000, 0x100, 12},
		{uint32(types.CPUAmd64), 0, 0x2000, 0x100, 12},
	})

	arches, err := Enumerate(s, types.BigEndian, false, Options{})
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	if len(arches) != 2 {
		t.Fatalf("len(arches) = %d, want 2", len(arches))
	}
	if arches[0].Offset != 0x1000 || arches[1].Offset != 0x2000 {
		t.Fatalf("unexpected offsets: %+v", arches)
	}
}

func TestEnumerateDuplicateRejected(t *testing.T) {
	s := buildFat32(t, [][5]uint32{
		{uint32(types.CPUAmd64), 0, 0x1000, 0x100, 12},
		{uint32(types.CPUAmd64), 0, 0x2000, 0x100, 12},
	})

	_, err := Enumerate(s, types.BigEndian, false, Options{})
	ferr, ok := err.(*Error)
	if !ok || ferr.Kind != DuplicateFatArch {
		t.Fatalf("Enumerate: got %v, want DuplicateFatArch", err)
	}
}

func TestEnumerateOutOfRangeArch(t *testing.T) {
	s := buildFat32(t, [][5]uint32{
		{uint32(types.CPUAmd64), 0, 0xffff0000, 0x100000, 12},
	})

	_, err := Enumerate(s, types.BigEndian, false, Options{})
	ferr, ok := err.(*Error)
	if !ok || ferr.Kind != InvalidRange {
		t.Fatalf("Enumerate: got %v, want InvalidRange", err)
	}
}
