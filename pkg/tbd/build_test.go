package tbd

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/appsworld/tbd/macho"
	"github.com/appsworld/tbd/pkg/iohelp"
	"github.com/appsworld/tbd/types"
)

// buildDylib assembles a synthetic 64-bit LE dylib with an LC_ID_DYLIB,
// LC_SUB_CLIENT, LC_REEXPORT_DYLIB, and an LC_SYMTAB carrying one classic
// exported symbol and one Objective-C class symbol.
func buildDylib(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := func(v any) { binary.Write(&buf, binary.LittleEndian, v) }

	const (
		idDylibSize      = 32
		subClientSize    = 16
		reexportSize     = 32
		symtabSize       = 24
		headerSize       = 32
	)
	sizeofcmds := uint32(idDylibSize + subClientSize + reexportSize + symtabSize)

	// header
	w(uint32(0xfeedfacf))
	w(uint32(types.CPUAmd64))
	w(uint32(0))
	w(uint32(types.MH_DYLIB))
	w(uint32(4)) // ncmds
	w(sizeofcmds)
	w(uint32(0))
	w(uint32(0))

	// LC_ID_DYLIB
	w(uint32(types.LC_ID_DYLIB))
	w(uint32(idDylibSize))
	w(uint32(24)) // name offset (8 prefix + 16 fixed)
	w(uint32(0))
	w(uint32(0x00010000)) // current version 1.0
	w(uint32(0))
	name := make([]byte, idDylibSize-24)
	copy(name, "libx")
	buf.Write(name)

	// LC_SUB_CLIENT
	w(uint32(types.LC_SUB_CLIENT))
	w(uint32(subClientSize))
	w(uint32(12)) // client offset (8 prefix + 4 field)
	client := make([]byte, subClientSize-12)
	copy(client, "foo")
	buf.Write(client)

	// LC_REEXPORT_DYLIB
	w(uint32(types.LC_REEXPORT_DYLIB))
	w(uint32(reexportSize))
	w(uint32(24))
	w(uint32(0))
	w(uint32(0))
	w(uint32(0))
	reName := make([]byte, reexportSize-24)
	copy(reName, "libz")
	buf.Write(reName)

	// LC_SYMTAB
	symoff := uint32(headerSize) + sizeofcmds
	w(uint32(types.LC_SYMTAB))
	w(uint32(symtabSize))
	w(symoff)
	w(uint32(2)) // nsyms
	stroff := symoff + 2*16
	w(stroff)
	w(uint32(24)) // strsize

	// symbol records
	w(uint32(1)) // strx "_foo"
	buf.WriteByte(0x0f)
	buf.WriteByte(1)
	w(uint16(0))
	w(uint64(0))

	w(uint32(6)) // strx "_OBJC_CLASS_$_Bar"
	buf.WriteByte(0x0f)
	buf.WriteByte(1)
	w(uint16(0))
	w(uint64(0))

	// string pool: \0 _foo\0 _OBJC_CLASS_$_Bar\0
	buf.WriteByte(0)
	buf.WriteString("_foo")
	buf.WriteByte(0)
	buf.WriteString("_OBJC_CLASS_$_Bar")
	buf.WriteByte(0)

	return buf.Bytes()
}

func TestBuildDescriptor(t *testing.T) {
	raw := buildDylib(t)
	s := iohelp.New(bytes.NewReader(raw), int64(len(raw)))
	c, err := macho.OpenAsDynamicLibrary(s, macho.OpenOptions{})
	if err != nil {
		t.Fatalf("OpenAsDynamicLibrary: %v", err)
	}

	d, err := Build(c)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if d.InstallName != "libx" {
		t.Fatalf("InstallName = %q, want %q", d.InstallName, "libx")
	}
	if d.CurrentVersion != "1.0" {
		t.Fatalf("CurrentVersion = %q, want %q", d.CurrentVersion, "1.0")
	}
	if len(d.AllowableClients) != 1 || d.AllowableClients[0] != "foo" {
		t.Fatalf("AllowableClients = %v, want [foo]", d.AllowableClients)
	}
	if len(d.ReExports) != 1 || d.ReExports[0] != "libz" {
		t.Fatalf("ReExports = %v, want [libz]", d.ReExports)
	}

	if len(d.Exports) != 1 {
		t.Fatalf("len(Exports) = %d, want 1", len(d.Exports))
	}
	group := d.Exports[0]
	if len(group.Symbols) != 1 || group.Symbols[0] != "_foo" {
		t.Fatalf("Symbols = %v, want [_foo]", group.Symbols)
	}
	if len(group.ObjCClasses) != 1 || group.ObjCClasses[0] != "Bar" {
		t.Fatalf("ObjCClasses = %v, want [Bar]", group.ObjCClasses)
	}

	var out bytes.Buffer
	if err := WriteTo(&out, d); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	if !strings.Contains(out.String(), "install-name: libx") {
		t.Fatalf("serialized TBD missing install-name: %s", out.String())
	}
}
