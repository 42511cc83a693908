package macho

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/appsworld/tbd/pkg/iohelp"
	"github.com/appsworld/tbd/types"
)

// buildDylib assembles a minimal 64-bit LE Mach-O dylib slice: header,
// LC_ID_DYLIB, LC_SYMTAB, one symbol record, and a two-entry string pool.
// badSymtabCmdSize, if non-zero, overrides the LC_SYMTAB cmdsize to exercise
// the malformed-command path (S2).
func buildDylib(t *testing.T, badSymtabCmdSize uint32) []byte {
	t.Helper()
	var buf bytes.Buffer

	const (
		headerSize  = 32
		idDylibSize = 32 // 8 prefix + 16 fixed + 8 bytes of padded name
		symtabSize  = 24
	)
	sizeofcmds := uint32(idDylibSize + symtabSize)

	// header
	binary.Write(&buf, binary.LittleEndian, uint32(0xfeedfacf)) // Magic64
	binary.Write(&buf, binary.LittleEndian, uint32(types.CPUAmd64))
	binary.Write(&buf, binary.LittleEndian, uint32(0)) // subCPU
	binary.Write(&buf, binary.LittleEndian, uint32(types.MH_DYLIB))
	binary.Write(&buf, binary.LittleEndian, uint32(2)) // ncmds
	binary.Write(&buf, binary.LittleEndian, sizeofcmds)
	binary.Write(&buf, binary.LittleEndian, uint32(0)) // flags
	binary.Write(&buf, binary.LittleEndian, uint32(0)) // reserved

	// LC_ID_DYLIB
	binary.Write(&buf, binary.LittleEndian, uint32(types.LC_ID_DYLIB))
	binary.Write(&buf, binary.LittleEndian, uint32(idDylibSize))
	binary.Write(&buf, binary.LittleEndian, uint32(24)) // name offset within this command
	binary.Write(&buf, binary.LittleEndian, uint32(0))  // timestamp
	binary.Write(&buf, binary.LittleEndian, uint32(0))  // current version
	binary.Write(&buf, binary.LittleEndian, uint32(0))  // compat version
	name := make([]byte, idDylibSize-24)
	copy(name, "libx")
	buf.Write(name)

	// LC_SYMTAB
	symtabCmdSize := uint32(symtabSize)
	if badSymtabCmdSize != 0 {
		symtabCmdSize = badSymtabCmdSize
	}
	binary.Write(&buf, binary.LittleEndian, uint32(types.LC_SYMTAB))
	binary.Write(&buf, binary.LittleEndian, symtabCmdSize)
	symoff := uint32(headerSize + sizeofcmds)
	binary.Write(&buf, binary.LittleEndian, symoff)
	binary.Write(&buf, binary.LittleEndian, uint32(1)) // nsyms
	stroff := symoff + 16
	binary.Write(&buf, binary.LittleEndian, stroff)
	binary.Write(&buf, binary.LittleEndian, uint32(8)) // strsize

	// one 64-bit symbol record: n_strx=1, rest zero
	binary.Write(&buf, binary.LittleEndian, uint32(1))
	buf.WriteByte(0) // n_type
	buf.WriteByte(0) // n_sect
	binary.Write(&buf, binary.LittleEndian, uint16(0)) // n_desc
	binary.Write(&buf, binary.LittleEndian, uint64(0)) // n_value

	// string pool: "\0foo\0\0\0\0"
	buf.Write([]byte{0, 'f', 'o', 'o', 0, 0, 0, 0})

	return buf.Bytes()
}

func TestOpenAsDynamicLibrary(t *testing.T) {
	raw := buildDylib(t, 0)
	s := iohelp.New(bytes.NewReader(raw), int64(len(raw)))

	c, err := OpenAsDynamicLibrary(s, OpenOptions{})
	if err != nil {
		t.Fatalf("OpenAsDynamicLibrary: %v", err)
	}

	lc, err := c.FindFirstCommand(types.LC_ID_DYLIB)
	if err != nil {
		t.Fatalf("FindFirstCommand(LC_ID_DYLIB): %v", err)
	}
	if lc.Cmd != types.LC_ID_DYLIB {
		t.Fatalf("unexpected command kind: %v", lc.Cmd)
	}

	records, err := c.SymbolTable()
	if err != nil {
		t.Fatalf("SymbolTable: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}
	name, err := c.String(records[0].Strx)
	if err != nil {
		t.Fatalf("String: %v", err)
	}
	if name != "foo" {
		t.Fatalf("String(strx) = %q, want %q", name, "foo")
	}
}

func TestFindFirstCommandReentrant(t *testing.T) {
	raw := buildDylib(t, 0)
	s := iohelp.New(bytes.NewReader(raw), int64(len(raw)))
	c, err := Open(s, OpenOptions{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	first, err := c.FindFirstCommand(types.LC_SYMTAB)
	if err != nil {
		t.Fatalf("first FindFirstCommand: %v", err)
	}
	second, err := c.FindFirstCommand(types.LC_SYMTAB)
	if err != nil {
		t.Fatalf("second FindFirstCommand: %v", err)
	}
	if first.Offset() != second.Offset() || first.CmdSize != second.CmdSize {
		t.Fatal("FindFirstCommand must be re-entrant: repeated calls should agree")
	}

	visited := 0
	if err := c.IterateCommands(func(lc *LoadCommand) error {
		visited++
		return nil
	}); err != nil {
		t.Fatalf("IterateCommands: %v", err)
	}
	if uint32(visited) != c.NumCommands() {
		t.Fatalf("IterateCommands visited %d entries, want %d", visited, c.NumCommands())
	}
}

func TestMalformedCommandSizeRejected(t *testing.T) {
	raw := buildDylib(t, 4) // S2: cmdsize too small for symtab_command
	s := iohelp.New(bytes.NewReader(raw), int64(len(raw)))
	c, err := Open(s, OpenOptions{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	_, err = c.FindFirstCommand(types.LC_SYMTAB)
	merr, ok := err.(*Error)
	if !ok || merr.Kind != LoadCommandTooLarge && merr.Kind != LoadCommandTooSmall {
		t.Fatalf("FindFirstCommand with malformed cmdsize: got %v, want a load-command error", err)
	}
}
