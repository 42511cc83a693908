// Package fat enumerates the arch table of a fat (universal) Mach-O
// archive, yielding bounded sub-streams the container opener can hand to
// the macho package. Grounded in the arch-table walk described in
// original_source's dyld_shared_cache tooling and in the other example
// pack's standalone universal.go (256lights/zb), adapted from its
// UniversalFileEntry record layout to the spec's fat/fat64 record set.
package fat

import (
	"encoding/binary"

	"github.com/appsworld/tbd/pkg/iohelp"
	"github.com/appsworld/tbd/types"
)

const (
	headerSize      = 8
	archEntrySize   = 20
	arch64EntrySize = 32

	// DefaultMaxArches bounds nfat_arch against hostile input, per spec §4.D.
	DefaultMaxArches = 1024
)

// Options configures an enumeration.
type Options struct {
	// MaxArches overrides DefaultMaxArches; zero means use the default.
	MaxArches uint32
}

// Arch is one fat arch-table entry, already validated against the file.
type Arch struct {
	CPU    types.CPU
	SubCPU types.CPUSubtype
	Offset uint64
	Size   uint64
	Align  uint32
}

// Enumerate reads the fat header and arch table from the start of s (which
// must be the whole-file stream) and returns the arch entries in file
// order. is64 selects the fat_arch_64 record layout; endian is the byte
// order the fat header and records were classified at (component C always
// reports fat headers as big-endian on disk, but the classifier accepts a
// byte-swapped variant too).
func Enumerate(s *iohelp.Stream, endian types.Endian, is64 bool, opts Options) ([]Arch, error) {
	maxArches := opts.MaxArches
	if maxArches == 0 {
		maxArches = DefaultMaxArches
	}

	hdr, err := s.ReadAt(0, headerSize)
	if err != nil {
		return nil, &Error{Kind: StreamRead, Index: -1, Msg: err.Error()}
	}
	nfatArch := byteOrder(endian).Uint32(hdr[4:8])

	if nfatArch > maxArches {
		return nil, &Error{Kind: TooManyArches, Index: -1, Msg: "nfat_arch exceeds ceiling"}
	}

	entrySize := int64(archEntrySize)
	if is64 {
		entrySize = arch64EntrySize
	}

	tableSize := int64(nfatArch) * entrySize
	tableEnd := headerSize + tableSize

	arches := make([]Arch, 0, nfatArch)
	seen := make(map[[2]uint32]bool, nfatArch)

	for i := uint32(0); i < nfatArch; i++ {
		off := headerSize + int64(i)*entrySize
		rec, err := s.ReadAt(off, entrySize)
		if err != nil {
			return nil, &Error{Kind: StreamRead, Index: int(i), Msg: err.Error()}
		}

		bo := byteOrder(endian)
		cpu := types.CPU(bo.Uint32(rec[0:4]))
		subCPU := types.CPUSubtype(bo.Uint32(rec[4:8]))

		var offset, size uint64
		var align uint32
		if is64 {
			offset = bo.Uint64(rec[8:16])
			size = bo.Uint64(rec[16:24])
			align = bo.Uint32(rec[24:28])
		} else {
			offset = uint64(bo.Uint32(rec[8:12]))
			size = uint64(bo.Uint32(rec[12:16]))
			align = bo.Uint32(rec[16:20])
		}

		key := [2]uint32{uint32(cpu), uint32(subCPU)}
		if seen[key] {
			return nil, &Error{Kind: DuplicateFatArch, Index: int(i), Msg: "duplicate cputype/cpusubtype pair"}
		}
		seen[key] = true

		end := offset + size
		if end < offset || int64(end) > s.Size() {
			return nil, &Error{Kind: InvalidRange, Index: int(i), Msg: "arch range exceeds file"}
		}
		if int64(offset) < tableEnd {
			return nil, &Error{Kind: InvalidRange, Index: int(i), Msg: "arch range overlaps fat header/arch table"}
		}
		if align < 32 && offset%(uint64(1)<<align) != 0 {
			return nil, &Error{Kind: InvalidRange, Index: int(i), Msg: "offset misaligned for declared align"}
		}

		arches = append(arches, Arch{CPU: cpu, SubCPU: subCPU, Offset: offset, Size: size, Align: align})
	}

	return arches, nil
}

func byteOrder(e types.Endian) binary.ByteOrder {
	if e == types.BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}
