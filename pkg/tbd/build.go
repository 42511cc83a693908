package tbd

import (
	"encoding/binary"
	"fmt"

	"github.com/appsworld/tbd/macho"
	"github.com/appsworld/tbd/pkg/trie"
	"github.com/appsworld/tbd/types"
)

// nlist n_type bits (see <mach-o/nlist.h>); not part of the core's own
// taxonomy, so they live here rather than in types.
const (
	nTypeStab = 0xe0
	nTypeMask = 0x0e
	nTypeUndf = 0x00
	nExt      = 0x01
)

// nlist n_desc weak-definition flag.
const nDescWeakDef = 0x0080

func byteOrder(c *macho.Container) binary.ByteOrder {
	if c.Endian() == types.BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// Build constructs a Descriptor from an opened, library-typed container.
// Exported symbols are read first from the LC_DYLD_EXPORTS_TRIE, if
// present, falling back to a classic symbol-table scan (external, defined
// entries) for containers built without one.
func Build(c *macho.Container) (*Descriptor, error) {
	d := &Descriptor{}

	idCmd, err := c.FindFirstCommand(types.LC_ID_DYLIB)
	if err != nil {
		return nil, err
	}
	d.InstallName, d.CurrentVersion, d.CompatibilityVersion = decodeDylibID(c, idCmd.Body())

	d.Architectures = []string{c.Header().CPU.String()}

	if uuidCmd, err := c.FindFirstCommand(types.LC_UUID); err == nil && len(uuidCmd.Body()) >= 16 {
		var u types.UUID
		copy(u[:], uuidCmd.Body()[:16])
		d.UUID = u.String()
	}

	if bv, err := c.FindFirstCommand(types.LC_BUILD_VERSION); err == nil && len(bv.Body()) >= 4 {
		platform := types.Platform(byteOrder(c).Uint32(bv.Body()[0:4]))
		d.Platform = platform.String()
	}

	var clients, reexports []string
	err = c.IterateCommands(func(lc *macho.LoadCommand) error {
		switch lc.Cmd {
		case types.LC_SUB_CLIENT:
			// body: client lc_str offset (4 bytes, relative to command start)
			if name := decodeTrailingString(c, lc.Body(), 0); name != "" {
				clients = append(clients, name)
			}
		case types.LC_REEXPORT_DYLIB:
			// body: name lc_str offset, timestamp, current, compat (dylib layout)
			if name := decodeTrailingString(c, lc.Body(), 0); name != "" {
				reexports = append(reexports, name)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	d.AllowableClients = sortUnique(clients)
	d.ReExports = sortUnique(reexports)

	group := SymbolGroup{Architectures: d.Architectures}

	if trieEntries, terr := exportTrieEntries(c); terr == nil && len(trieEntries) > 0 {
		for _, e := range trieEntries {
			classifyInto(&group, e.Name, e.Flags.WeakDefinition())
		}
	} else {
		classicEntries, cerr := classicExports(c)
		if cerr != nil {
			return nil, cerr
		}
		for _, e := range classicEntries {
			classifyInto(&group, e.name, e.weak)
		}
	}

	group.Symbols = sortUnique(group.Symbols)
	group.WeakSymbols = sortUnique(group.WeakSymbols)
	group.ObjCClasses = sortUnique(group.ObjCClasses)
	group.ObjCIVars = sortUnique(group.ObjCIVars)
	d.Exports = []SymbolGroup{group}

	return d, nil
}

func classifyInto(group *SymbolGroup, name string, weak bool) {
	bucket, bare := classifySymbol(name)
	switch bucket {
	case "class":
		group.ObjCClasses = append(group.ObjCClasses, bare)
	case "ivar":
		group.ObjCIVars = append(group.ObjCIVars, bare)
	default:
		if weak {
			group.WeakSymbols = append(group.WeakSymbols, name)
		} else {
			group.Symbols = append(group.Symbols, name)
		}
	}
}

func exportTrieEntries(c *macho.Container) ([]trie.TrieEntry, error) {
	cmd, err := c.FindFirstCommand(types.LC_DYLD_EXPORTS_TRIE)
	if err != nil {
		return nil, err
	}
	body := cmd.Body()
	if len(body) < 8 {
		return nil, fmt.Errorf("tbd: LC_DYLD_EXPORTS_TRIE shorter than linkedit_data_command")
	}
	bo := byteOrder(c)
	offset := bo.Uint32(body[0:4])
	size := bo.Uint32(body[4:8])
	data, err := c.Stream().ReadAt(int64(offset), int64(size))
	if err != nil {
		return nil, err
	}
	return trie.ParseTrie(data, 0)
}

type classicExport struct {
	name string
	weak bool
}

func classicExports(c *macho.Container) ([]classicExport, error) {
	records, err := c.SymbolTable()
	if err != nil {
		if macho.IsNotPresent(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []classicExport
	for _, r := range records {
		if r.Type&nTypeStab != 0 {
			continue
		}
		if r.Type&nExt == 0 {
			continue
		}
		if r.Type&nTypeMask == nTypeUndf {
			continue
		}
		name, err := c.String(r.Strx)
		if err != nil {
			continue
		}
		if name == "" {
			continue
		}
		out = append(out, classicExport{name: name, weak: r.Desc&nDescWeakDef != 0})
	}
	return out, nil
}

// decodeDylibID decodes a dylib_command body (after the shared 8-byte
// load-command prefix): name offset (relative to the command's own start,
// prefix included), timestamp, current version, compatibility version.
func decodeDylibID(c *macho.Container, body []byte) (name, current, compat string) {
	if len(body) < 16 {
		return "", "", ""
	}
	bo := byteOrder(c)
	nameOff := int(bo.Uint32(body[0:4]))
	currentVersion := types.Version(bo.Uint32(body[8:12]))
	compatVersion := types.Version(bo.Uint32(body[12:16]))
	const prefixSize = 8
	if nameOff >= prefixSize && nameOff-prefixSize < len(body) {
		name = cString(body[nameOff-prefixSize:])
	}
	return name, currentVersion.String(), compatVersion.String()
}

// decodeTrailingString decodes a command's leading lc_str field (an offset
// relative to the command's own start, prefix included) and returns the
// NUL-terminated string it points at within body.
func decodeTrailingString(c *macho.Container, body []byte, fieldOffsetInBody int) string {
	if len(body) < fieldOffsetInBody+4 {
		return ""
	}
	bo := byteOrder(c)
	strOff := int(bo.Uint32(body[fieldOffsetInBody : fieldOffsetInBody+4]))
	const prefixSize = 8
	if strOff < prefixSize || strOff-prefixSize >= len(body) {
		return ""
	}
	return cString(body[strOff-prefixSize:])
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
