package macho

import (
	"bytes"

	"github.com/appsworld/tbd/internal/overflow"
	"github.com/appsworld/tbd/types"
)

// SymbolRecord is one post-swap nlist entry.
type SymbolRecord struct {
	Strx  uint32
	Type  uint8
	Sect  uint8
	Desc  uint16
	Value uint64
}

const (
	symRecordSize32 = 12
	symRecordSize64 = 16
)

// loadSymtab locates LC_SYMTAB, validates its two regions fit within the
// slice, and fills the symbol-record and string-pool caches. Idempotent.
func (c *Container) loadSymtab() error {
	if c.symLoaded {
		return nil
	}

	lc, err := c.FindFirstCommand(types.LC_SYMTAB)
	if err != nil {
		return err
	}
	if len(lc.Body()) < 16 {
		return &Error{Kind: LoadCommandTooSmall, Offset: lc.Offset(), Msg: "LC_SYMTAB shorter than symtab_command"}
	}

	bo := byteOrderFor(c.endian)
	body := lc.Body()
	symoff := bo.Uint32(body[0:4])
	nsyms := bo.Uint32(body[4:8])
	stroff := bo.Uint32(body[8:12])
	strsize := bo.Uint32(body[12:16])

	recSize := uint32(symRecordSize32)
	if c.width == types.Width64 {
		recSize = symRecordSize64
	}

	symTableSize, overflowed := overflow.Mul(nsyms, recSize)
	if overflowed {
		return &Error{Kind: ArithOverflow, Offset: lc.Offset(), Msg: "nsyms * record size overflows"}
	}
	symEnd, overflowed := overflow.Add(symoff, symTableSize)
	if overflowed || int64(symEnd) > c.stream.Size() {
		return &Error{Kind: SymtabOutOfRange, Offset: int64(symoff), Msg: "symbol table exceeds slice"}
	}
	strEnd, overflowed := overflow.Add(stroff, strsize)
	if overflowed || int64(strEnd) > c.stream.Size() {
		return &Error{Kind: StringOutOfRange, Offset: int64(stroff), Msg: "string pool exceeds slice"}
	}

	symBytes, err := c.stream.ReadAt(int64(symoff), int64(symTableSize))
	if err != nil {
		return &Error{Kind: SymtabOutOfRange, Offset: int64(symoff), Msg: err.Error()}
	}
	strBytes, err := c.stream.ReadAt(int64(stroff), int64(strsize))
	if err != nil {
		return &Error{Kind: StringOutOfRange, Offset: int64(stroff), Msg: err.Error()}
	}

	records := make([]SymbolRecord, nsyms)
	for i := uint32(0); i < nsyms; i++ {
		rec := symBytes[i*recSize : (i+1)*recSize]
		r := SymbolRecord{
			Strx: bo.Uint32(rec[0:4]),
			Type: rec[4],
			Sect: rec[5],
			Desc: bo.Uint16(rec[6:8]),
		}
		if c.width == types.Width64 {
			r.Value = bo.Uint64(rec[8:16])
		} else {
			r.Value = uint64(bo.Uint32(rec[8:12]))
		}
		records[i] = r
	}

	c.symtab = &types.SymtabCmd{Symoff: symoff, Nsyms: nsyms, Stroff: stroff, Strsize: strsize}
	c.symRecords = records
	c.strPool = strBytes
	c.symLoaded = true
	return nil
}

// SymbolTable lazily resolves LC_SYMTAB and returns the decoded symbol
// records. NotPresent if the container carries no LC_SYMTAB.
func (c *Container) SymbolTable() ([]SymbolRecord, error) {
	if err := c.loadSymtab(); err != nil {
		return nil, err
	}
	return c.symRecords, nil
}

// String returns the NUL-terminated name at strx in the string pool,
// clamped to the pool's bounds. Requires SymbolTable to have been called
// at least once (or calls it itself).
func (c *Container) String(strx uint32) (string, error) {
	if err := c.loadSymtab(); err != nil {
		return "", err
	}
	if strx >= uint32(len(c.strPool)) {
		return "", &Error{Kind: StringOutOfRange, Offset: int64(strx), Msg: "n_strx past string pool"}
	}
	rest := c.strPool[strx:]
	if nul := bytes.IndexByte(rest, 0); nul >= 0 {
		return string(rest[:nul]), nil
	}
	return string(rest), nil
}
