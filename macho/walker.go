package macho

import (
	"github.com/appsworld/tbd/internal/overflow"
	"github.com/appsworld/tbd/types"
)

const prefixSize = 8

// LoadCommand is a swapped load-command prefix plus its body, handed out
// of the container's load-command cache. Valid for the container's
// lifetime (spec §4.F: "a stable pointer into the cached block").
type LoadCommand struct {
	Cmd     types.LoadCmd
	CmdSize uint32
	offset  int64 // offset of the prefix within the cached command block
	body    []byte
}

// Body returns the command's payload, excluding the 8-byte prefix.
func (lc *LoadCommand) Body() []byte { return lc.body }

// Offset returns the command's offset within the container's command
// block, for error reporting.
func (lc *LoadCommand) Offset() int64 { return lc.offset }

// loadCommandBlock lazily reads the sizeofcmds bytes following the header
// into the container's cache. Grounded in container.cc's
// validate_and_load_data: seek to base + sizeof(header) [+4 for 64-bit is
// already folded into width.HeaderSize()], read sizeofcmds bytes in one
// shot, and perform all structural validation only on the first read.
func (c *Container) loadCommandBlock() error {
	if c.cmdLoaded {
		return nil
	}

	block, err := c.stream.ReadAt(c.width.HeaderSize(), int64(c.header.SizeCommands))
	if err != nil {
		return &Error{Kind: LoadCommandTooLarge, Offset: c.width.HeaderSize(), Msg: "command block exceeds slice"}
	}

	entries, err := walkAndValidate(block, c.endian, c.width, c.header.NCommands, uint64(c.header.SizeCommands))
	if err != nil {
		// Partially populated caches on a failed walk are discarded (spec §5).
		return err
	}

	c.cmdBlock = block
	c.cmdEntries = entries
	c.cmdLoaded = true
	return nil
}

// walkAndValidate performs the single pass of bounds/alignment checking
// spec §4.F describes. It does not mutate the container; on success the
// caller installs the result into the cache.
func walkAndValidate(block []byte, endian types.Endian, width types.BitWidth, ncmds uint32, sizeofcmds uint64) ([]commandEntry, error) {
	bo := byteOrderFor(endian)
	align := uint32(4)
	if width == types.Width64 {
		align = 8
	}

	entries := make([]commandEntry, 0, ncmds)
	var total uint64
	for i := uint32(0); i < ncmds; i++ {
		if total+prefixSize > sizeofcmds {
			return nil, &Error{Kind: LoadCommandTooSmall, Offset: int64(total), Msg: "not enough bytes left for a prefix"}
		}
		prefixBytes := block[total : total+prefixSize]
		cmd := types.LoadCmd(bo.Uint32(prefixBytes[0:4]))
		cmdSize := bo.Uint32(prefixBytes[4:8])

		if cmdSize < prefixSize {
			return nil, &Error{Kind: LoadCommandTooSmall, Offset: int64(total), Msg: "cmdsize smaller than prefix"}
		}
		if cmdSize%align != 0 {
			return nil, &Error{Kind: UnalignedCommand, Offset: int64(total), Msg: "cmdsize not aligned to word size"}
		}

		newTotal, overflowed := overflow.Add(total, uint64(cmdSize))
		if overflowed {
			return nil, &Error{Kind: ArithOverflow, Offset: int64(total), Msg: "running command-size total overflows"}
		}
		isLast := i == ncmds-1
		if newTotal > sizeofcmds {
			return nil, &Error{Kind: LoadCommandTooLarge, Offset: int64(total), Msg: "command exceeds sizeofcmds"}
		}
		if newTotal == sizeofcmds && !isLast {
			return nil, &Error{Kind: LoadCommandTooLarge, Offset: int64(total), Msg: "sizeofcmds reached before last command"}
		}
		if isLast && newTotal != sizeofcmds {
			return nil, &Error{Kind: LoadCommandTooLarge, Offset: int64(total), Msg: "last command ends before sizeofcmds"}
		}

		entries = append(entries, commandEntry{
			prefix: types.LoadCommandPrefix{Cmd: cmd, CmdSize: cmdSize},
			offset: int64(total),
		})
		total = newTotal
	}

	return entries, nil
}

func (c *Container) commandAt(e commandEntry) *LoadCommand {
	bodyStart := e.offset + prefixSize
	bodyEnd := e.offset + int64(e.prefix.CmdSize)
	return &LoadCommand{
		Cmd:     e.prefix.Cmd,
		CmdSize: e.prefix.CmdSize,
		offset:  e.offset,
		body:    c.cmdBlock[bodyStart:bodyEnd],
	}
}

// FindFirstCommand lazily populates the load-command cache, then scans for
// the first command of kind. Re-entrant: a second call with the same kind
// returns an equal result without re-walking.
func (c *Container) FindFirstCommand(kind types.LoadCmd) (*LoadCommand, error) {
	if err := c.loadCommandBlock(); err != nil {
		return nil, err
	}
	for _, e := range c.cmdEntries {
		if e.prefix.Cmd == kind {
			return c.commandAt(e), nil
		}
	}
	return nil, &Error{Kind: NotPresent, Offset: -1, Msg: kind.String() + " not present"}
}

// IterateCommands applies visit to every command in file order. Stops and
// returns the first error visit produces.
func (c *Container) IterateCommands(visit func(lc *LoadCommand) error) error {
	if err := c.loadCommandBlock(); err != nil {
		return err
	}
	for _, e := range c.cmdEntries {
		if err := visit(c.commandAt(e)); err != nil {
			return err
		}
	}
	return nil
}

// NumCommands returns ncmds from the header, for callers verifying
// iteration visited exactly this many entries.
func (c *Container) NumCommands() uint32 { return c.header.NCommands }
