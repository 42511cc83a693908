// Package macho implements the core binary-container reader: opening a
// single Mach-O slice, lazily walking its load commands, and resolving its
// symbol and string tables. Grounded primarily in
// original_source/src/mach-o/container.cc (the `container` class's
// validate_and_load_data / find_first_of_load_command design), with record
// layouts adapted from the teacher's types package.
package macho

import (
	"github.com/appsworld/tbd/internal/overflow"
	"github.com/appsworld/tbd/pkg/iohelp"
	"github.com/appsworld/tbd/types"
)

// OpenOptions mirrors the core's fixed option-flag set (spec §6).
type OpenOptions struct {
	// IgnoreInvalidFields is carried in the options, but Open does not
	// consult it: every header validation failure still fails Open, and
	// Container.Warnings is left empty.
	IgnoreInvalidFields bool
	// BigEndianInput forces big-endian interpretation of the header,
	// overriding what the magic classifier reported. Diagnostic only.
	BigEndianInput bool
}

// libraryFileTypes are the Mach-O filetypes open_as_library accepts.
var libraryFileTypes = map[types.HeaderFileType]bool{
	types.MH_DYLIB:      true,
	types.MH_DYLIB_STUB: true,
}

// Container owns one Mach-O slice: its header, and three lazily populated
// caches (load-command block, symbol records, string pool). It is not safe
// for concurrent use (spec §5): caches are populated on first access
// without internal synchronisation.
type Container struct {
	stream *iohelp.Stream
	endian types.Endian
	width  types.BitWidth
	header types.FileHeader

	Warnings []string

	cmdBlock    []byte
	cmdEntries  []commandEntry
	cmdLoaded   bool

	symtab     *types.SymtabCmd
	symRecords []SymbolRecord
	strPool    []byte
	symLoaded  bool
}

// commandEntry is one parsed, swapped load-command prefix plus the byte
// offset (relative to the command block) its body starts at.
type commandEntry struct {
	prefix types.LoadCommandPrefix
	offset int64 // offset of the prefix itself within cmdBlock
}

// Open reads the magic, validates bitwidth/endian, reads and swaps the
// header, and validates header invariants. It does not read load commands.
func Open(stream *iohelp.Stream, opts OpenOptions) (*Container, error) {
	magicBytes, err := stream.ReadAt(0, 16)
	if err != nil {
		if ioErr, ok := err.(*iohelp.Error); ok && ioErr.Kind == iohelp.OutOfRange {
			return nil, &Error{Kind: HeaderTooSmall, Offset: 0, Msg: "fewer than 16 bytes available"}
		}
		return nil, &Error{Kind: StreamRead, Offset: 0, Msg: err.Error()}
	}

	kind := types.ClassifyMagic(magicBytes)
	if !kind.IsMach() {
		return nil, &Error{Kind: InvalidMagic, Offset: 0, Msg: "not a single-slice Mach-O magic"}
	}

	endian := kind.Endian()
	if opts.BigEndianInput {
		endian = types.BigEndian
	}
	width := kind.Width()

	headerSize := width.HeaderSize()
	raw, err := stream.ReadAt(0, headerSize)
	if err != nil {
		return nil, &Error{Kind: HeaderTooSmall, Offset: 0, Msg: "header truncated"}
	}

	header := decodeHeader(raw, endian, width)

	if (header.NCommands > 0) != (header.SizeCommands > 0) {
		return nil, &Error{Kind: InvalidRange, Offset: 0, Msg: "ncmds and sizeofcmds disagree on emptiness"}
	}
	minSize, overflowed := overflow.Mul(header.NCommands, uint32(8))
	if overflowed {
		return nil, &Error{Kind: ArithOverflow, Offset: 0, Msg: "ncmds * sizeof(prefix) overflows"}
	}
	if header.SizeCommands < minSize {
		return nil, &Error{Kind: InvalidRange, Offset: 0, Msg: "sizeofcmds smaller than ncmds * sizeof(prefix)"}
	}

	end, overflowed := overflow.Add(uint64(headerSize), uint64(header.SizeCommands))
	if overflowed || int64(end) > stream.Size() {
		return nil, &Error{Kind: InvalidRange, Offset: headerSize, Msg: "command block exceeds slice"}
	}

	return &Container{
		stream: stream,
		endian: endian,
		width:  width,
		header: header,
	}, nil
}

// OpenAsLibrary opens stream as Open does, then requires the Mach-O
// filetype to be one of the library filetypes.
func OpenAsLibrary(stream *iohelp.Stream, opts OpenOptions) (*Container, error) {
	c, err := Open(stream, opts)
	if err != nil {
		return nil, err
	}
	if !libraryFileTypes[c.header.Type] {
		return nil, &Error{Kind: NotALibrary, Offset: 0, Msg: "filetype is not a library"}
	}
	return c, nil
}

// OpenAsDynamicLibrary opens stream as OpenAsLibrary does, then requires a
// well-formed LC_ID_DYLIB load command, per
// original_source/src/mach-o/utils/validation/as_dynamic_library.cc.
func OpenAsDynamicLibrary(stream *iohelp.Stream, opts OpenOptions) (*Container, error) {
	c, err := OpenAsLibrary(stream, opts)
	if err != nil {
		return nil, err
	}
	entry, err := c.FindFirstCommand(types.LC_ID_DYLIB)
	if err != nil {
		if IsNotPresent(err) {
			return nil, &Error{Kind: MissingIdDylib, Offset: 0, Msg: "no LC_ID_DYLIB present"}
		}
		return nil, err
	}
	const dylibCmdFixedSize = 8 + 16 // prefix + dylib_command fixed fields
	if entry.prefix.CmdSize < dylibCmdFixedSize {
		return nil, &Error{Kind: IdDylibTooSmall, Offset: entry.offset, Msg: "LC_ID_DYLIB shorter than dylib_command"}
	}
	return c, nil
}

// Header returns the decoded, swapped Mach-O header.
func (c *Container) Header() types.FileHeader { return c.header }

// Endian returns the byte order this container was decoded with.
func (c *Container) Endian() types.Endian { return c.endian }

// Width returns the bit width this container was decoded at.
func (c *Container) Width() types.BitWidth { return c.width }

// Stream returns the container's underlying bounded byte stream, for
// callers (symbol table resolution, DSC segment synthesis) that need raw
// access within the slice.
func (c *Container) Stream() *iohelp.Stream { return c.stream }

func decodeHeader(raw []byte, endian types.Endian, width types.BitWidth) types.FileHeader {
	bo := byteOrderFor(endian)
	h := types.FileHeader{
		Magic:        types.Magic(bo.Uint32(raw[0:4])),
		CPU:          types.CPU(bo.Uint32(raw[4:8])),
		SubCPU:       types.CPUSubtype(bo.Uint32(raw[8:12])),
		Type:         types.HeaderFileType(bo.Uint32(raw[12:16])),
		NCommands:    bo.Uint32(raw[16:20]),
		SizeCommands: bo.Uint32(raw[20:24]),
		Flags:        types.HeaderFlag(bo.Uint32(raw[24:28])),
	}
	if width == types.Width64 {
		h.Reserved = bo.Uint32(raw[28:32])
	}
	return h
}
