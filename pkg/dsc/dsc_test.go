package dsc

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/appsworld/tbd/macho"
	"github.com/appsworld/tbd/pkg/iohelp"
	"github.com/appsworld/tbd/types"
)

// buildCache assembles a minimal synthetic dyld shared cache: a header, one
// mapping covering the whole file starting at virtual address 0x1000, and
// one image whose Mach-O slice (header + LC_SEGMENT_64 + path string)
// follows the tables.
func buildCache(t *testing.T, overlap bool) []byte {
	t.Helper()
	const (
		headerSize  = 32
		mappingSize = 32
		imageSize   = 32
	)

	mappingOffset := uint32(headerSize)
	mappingCount := uint32(1)
	if overlap {
		mappingCount = 2
	}
	imageOffset := mappingOffset + mappingCount*mappingSize
	imageCount := uint32(1)
	imageTableEnd := imageOffset + imageCount*imageSize

	// Mach-O image slice: header(32) + LC_SEGMENT_64(8+64=72).
	const machoHeaderSize = 32
	const segCmdSize = 8 + 64
	pathOffset := imageTableEnd + machoHeaderSize + segCmdSize
	path := "/usr/lib/libx.dylib"

	var buf bytes.Buffer

	// header
	magic := make([]byte, 16)
	copy(magic, "dyld_v1  x86_64")
	buf.Write(magic)
	binary.Write(&buf, binary.LittleEndian, mappingOffset)
	binary.Write(&buf, binary.LittleEndian, mappingCount)
	binary.Write(&buf, binary.LittleEndian, imageOffset)
	binary.Write(&buf, binary.LittleEndian, imageCount)

	// mapping(s): address, size, fileOffset, maxProt, initProt
	writeMapping := func(addr, size, fileOff uint64) {
		binary.Write(&buf, binary.LittleEndian, addr)
		binary.Write(&buf, binary.LittleEndian, size)
		binary.Write(&buf, binary.LittleEndian, fileOff)
		binary.Write(&buf, binary.LittleEndian, uint32(3))
		binary.Write(&buf, binary.LittleEndian, uint32(3))
	}
	writeMapping(0x1000, 0x100000, 0)
	if overlap {
		writeMapping(0x1000, 0x100000, 0) // identical range: must collide
	}

	// image: address, modTime, inode, pathFileOffset, pad
	binary.Write(&buf, binary.LittleEndian, uint64(0x1000)+uint64(imageTableEnd))
	binary.Write(&buf, binary.LittleEndian, uint64(0))
	binary.Write(&buf, binary.LittleEndian, uint64(0))
	binary.Write(&buf, binary.LittleEndian, pathOffset)
	binary.Write(&buf, binary.LittleEndian, uint32(0))

	if buf.Len() != int(imageTableEnd) {
		t.Fatalf("table layout drifted: buf.Len()=%d, want %d", buf.Len(), imageTableEnd)
	}

	// Mach-O header at file offset imageTableEnd (== vaddr 0x1000+imageTableEnd).
	binary.Write(&buf, binary.LittleEndian, uint32(0xfeedfacf)) // 64-bit magic
	binary.Write(&buf, binary.LittleEndian, uint32(types.CPUAmd64))
	binary.Write(&buf, binary.LittleEndian, uint32(0))
	binary.Write(&buf, binary.LittleEndian, uint32(types.MH_DYLIB))
	binary.Write(&buf, binary.LittleEndian, uint32(1)) // ncmds
	binary.Write(&buf, binary.LittleEndian, uint32(segCmdSize))
	binary.Write(&buf, binary.LittleEndian, uint32(0))
	binary.Write(&buf, binary.LittleEndian, uint32(0))

	// LC_SEGMENT_64: cmd, cmdsize, segname(16), addr, memsz, offset, filesz,
	// maxprot, initprot, nsects, flags.
	binary.Write(&buf, binary.LittleEndian, uint32(types.LC_SEGMENT_64))
	binary.Write(&buf, binary.LittleEndian, uint32(segCmdSize))
	buf.Write(make([]byte, 16)) // segname
	binary.Write(&buf, binary.LittleEndian, uint64(0x1000))                    // addr
	binary.Write(&buf, binary.LittleEndian, uint64(0x2000))                    // memsz
	binary.Write(&buf, binary.LittleEndian, uint64(0))                         // offset (relative to image base)
	binary.Write(&buf, binary.LittleEndian, uint64(machoHeaderSize+segCmdSize)) // filesz covers header+cmd only
	binary.Write(&buf, binary.LittleEndian, uint32(7))
	binary.Write(&buf, binary.LittleEndian, uint32(5))
	binary.Write(&buf, binary.LittleEndian, uint32(0))
	binary.Write(&buf, binary.LittleEndian, uint32(0))

	if uint32(buf.Len()) != pathOffset {
		t.Fatalf("path offset drifted: buf.Len()=%d, want %d", buf.Len(), pathOffset)
	}
	buf.WriteString(path)
	buf.WriteByte(0)

	return buf.Bytes()
}

func TestParseAndTranslate(t *testing.T) {
	raw := buildCache(t, false)
	s := iohelp.New(bytes.NewReader(raw), int64(len(raw)))

	info, err := Parse(s, Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(info.Mappings()) != 1 {
		t.Fatalf("len(Mappings()) = %d, want 1", len(info.Mappings()))
	}
	if len(info.Images()) != 1 {
		t.Fatalf("len(Images()) = %d, want 1", len(info.Images()))
	}

	off, err := info.Translate(0x1000)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if off != 0 {
		t.Fatalf("Translate(0x1000) = %d, want 0 (mapping fileOffset)", off)
	}

	path, err := info.ImagePath(info.Images()[0])
	if err != nil {
		t.Fatalf("ImagePath: %v", err)
	}
	if path != "/usr/lib/libx.dylib" {
		t.Fatalf("ImagePath = %q, want %q", path, "/usr/lib/libx.dylib")
	}
}

func TestOverlappingMappingsRejected(t *testing.T) {
	raw := buildCache(t, true)
	s := iohelp.New(bytes.NewReader(raw), int64(len(raw)))

	_, err := Parse(s, Options{})
	derr, ok := err.(*Error)
	if !ok || derr.Kind != OverlappingMappings {
		t.Fatalf("Parse with duplicate mappings: got %v, want OverlappingMappings", err)
	}
}

func TestIterateSynthesizesContainer(t *testing.T) {
	raw := buildCache(t, false)
	s := iohelp.New(bytes.NewReader(raw), int64(len(raw)))

	info, err := Parse(s, Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	var visited int
	err = info.Iterate(nil, func(image ImageInfo, path string, container *macho.Container, ctx any) bool {
		visited++
		if container == nil {
			t.Fatal("expected a synthesized container")
		}
		if container.Header().Type != types.MH_DYLIB {
			t.Fatalf("synthesized container filetype = %v, want MH_DYLIB", container.Header().Type)
		}
		if path != "/usr/lib/libx.dylib" {
			t.Fatalf("path = %q, want %q", path, "/usr/lib/libx.dylib")
		}
		return true
	})
	if err != nil {
		t.Fatalf("Iterate: %v", err)
	}
	if visited != 1 {
		t.Fatalf("visited %d images, want 1", visited)
	}
}

func TestIterateCancellation(t *testing.T) {
	raw := buildCache(t, false)
	s := iohelp.New(bytes.NewReader(raw), int64(len(raw)))
	info, err := Parse(s, Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	calls := 0
	info.Iterate(nil, func(image ImageInfo, path string, container *macho.Container, ctx any) bool {
		calls++
		return false
	})
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (cancel on first)", calls)
	}
}
