// Package dsc parses the dyld shared cache: its header, virtual-address
// mapping table, and image table, and iterates the libraries ("images")
// embedded in it, synthesising a macho.Container rooted inside the mapped
// region for each. Grounded in original_source/src/parse_dsc_for_main.c
// (dsc_iterate_images_callback, find_image_flags_for_path) and spec §4.H/I.
package dsc

import (
	"encoding/binary"

	"github.com/appsworld/tbd/internal/overflow"
	"github.com/appsworld/tbd/pkg/iohelp"
)

const (
	headerMagicSize = 16
	mappingSize     = 32 // address u64, size u64, fileOffset u64, maxProt u32, initProt u32
	imageSize       = 32 // address u64, modTime u64, inode u64, pathFileOffset u32, pad u32
)

// Header is the version-independent prefix of a dyld shared cache header:
// magic, and the mapping/image table locations and counts. All offsets are
// relative to the cache file's base.
type Header struct {
	Magic         [16]byte
	MappingOffset uint32
	MappingCount  uint32
	ImageOffset   uint32
	ImageCount    uint32
}

// Mapping is one entry of the DSC's virtual-address-to-file-offset
// translation table.
type Mapping struct {
	Address    uint64
	Size       uint64
	FileOffset uint64
	MaxProt    uint32
	InitProt   uint32
}

// ImageInfo describes one library embedded in the cache.
type ImageInfo struct {
	Address        uint64
	ModTime        uint64
	Inode          uint64
	PathFileOffset uint32
	// Pad is a caller-usable tag; bit 0 conventionally means "already
	// extracted" during iteration (spec §3, §4.I).
	Pad uint32
}

const alreadyExtractedBit = 1

// AlreadyExtracted reports whether bit 0 of Pad is set.
func (i ImageInfo) AlreadyExtracted() bool {
	return i.Pad&alreadyExtractedBit != 0
}

// MarkExtracted sets bit 0 of Pad.
func (i *ImageInfo) MarkExtracted() {
	i.Pad |= alreadyExtractedBit
}

// Options configures Parse.
type Options struct {
	// ZeroImagePads clears every image's pad byte to 0 on load, discarding
	// whatever memo a previous run may have left in the file-derived view.
	ZeroImagePads bool
}

// Info owns a read-only view over one dyld shared cache: its decoded
// header, mapping table, and image table.
type Info struct {
	stream   *iohelp.Stream
	header   Header
	mappings []Mapping
	images   []ImageInfo
}

// Parse validates and decodes the DSC header, mapping table, and image
// table from stream, which must already be known (via the magic
// classifier) to begin with the DSC magic prefix.
func Parse(stream *iohelp.Stream, opts Options) (*Info, error) {
	raw, err := stream.ReadAt(0, headerMagicSize+16)
	if err != nil {
		return nil, &Error{Kind: TruncatedHeader, Msg: "fewer than 32 bytes for header"}
	}

	var hdr Header
	copy(hdr.Magic[:], raw[0:16])
	hdr.MappingOffset = binary.LittleEndian.Uint32(raw[16:20])
	hdr.MappingCount = binary.LittleEndian.Uint32(raw[20:24])
	hdr.ImageOffset = binary.LittleEndian.Uint32(raw[24:28])
	hdr.ImageCount = binary.LittleEndian.Uint32(raw[28:32])

	mappings, err := parseMappings(stream, hdr)
	if err != nil {
		return nil, err
	}
	images, err := parseImages(stream, hdr, opts)
	if err != nil {
		return nil, err
	}

	return &Info{stream: stream, header: hdr, mappings: mappings, images: images}, nil
}

func parseMappings(stream *iohelp.Stream, hdr Header) ([]Mapping, error) {
	tableSize, overflowed := overflow.Mul(hdr.MappingCount, uint32(mappingSize))
	if overflowed {
		return nil, &Error{Kind: TruncatedMappings, Msg: "mapping count overflows table size"}
	}
	raw, err := stream.ReadAt(int64(hdr.MappingOffset), int64(tableSize))
	if err != nil {
		return nil, &Error{Kind: TruncatedMappings, Msg: "mapping table exceeds file"}
	}

	mappings := make([]Mapping, hdr.MappingCount)
	for i := range mappings {
		rec := raw[i*mappingSize : (i+1)*mappingSize]
		mappings[i] = Mapping{
			Address:    binary.LittleEndian.Uint64(rec[0:8]),
			Size:       binary.LittleEndian.Uint64(rec[8:16]),
			FileOffset: binary.LittleEndian.Uint64(rec[16:24]),
			MaxProt:    binary.LittleEndian.Uint32(rec[24:28]),
			InitProt:   binary.LittleEndian.Uint32(rec[28:32]),
		}
	}

	for i := 0; i < len(mappings); i++ {
		for j := i + 1; j < len(mappings); j++ {
			a, b := mappings[i], mappings[j]
			if a.Address < b.Address+b.Size && b.Address < a.Address+a.Size {
				return nil, &Error{Kind: OverlappingMappings, Msg: "two mappings overlap in virtual-address space"}
			}
		}
	}

	return mappings, nil
}

func parseImages(stream *iohelp.Stream, hdr Header, opts Options) ([]ImageInfo, error) {
	tableSize, overflowed := overflow.Mul(hdr.ImageCount, uint32(imageSize))
	if overflowed {
		return nil, &Error{Kind: TruncatedImages, Msg: "image count overflows table size"}
	}
	raw, err := stream.ReadAt(int64(hdr.ImageOffset), int64(tableSize))
	if err != nil {
		return nil, &Error{Kind: TruncatedImages, Msg: "image table exceeds file"}
	}

	images := make([]ImageInfo, hdr.ImageCount)
	for i := range images {
		rec := raw[i*imageSize : (i+1)*imageSize]
		img := ImageInfo{
			Address:        binary.LittleEndian.Uint64(rec[0:8]),
			ModTime:        binary.LittleEndian.Uint64(rec[8:16]),
			Inode:          binary.LittleEndian.Uint64(rec[16:24]),
			PathFileOffset: binary.LittleEndian.Uint32(rec[24:28]),
			Pad:            binary.LittleEndian.Uint32(rec[28:32]),
		}
		if opts.ZeroImagePads {
			img.Pad = 0
		}
		images[i] = img
	}
	return images, nil
}

// Mappings returns the decoded mapping table in file order.
func (info *Info) Mappings() []Mapping { return info.mappings }

// Images returns the decoded image table in file order. Callers that set
// an image's Pad bit as an "already extracted" memo should do so through
// the slice returned here; Iterate re-reads from this slice on each pass.
func (info *Info) Images() []ImageInfo { return info.images }

// Stream returns the DSC's underlying byte stream, for synthesising
// per-image containers.
func (info *Info) Stream() *iohelp.Stream { return info.stream }
