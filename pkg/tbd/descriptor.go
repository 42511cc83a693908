// Package tbd builds and serializes text-based API stub descriptors from a
// parsed Mach-O container: one descriptor per library image, describing its
// identity and exported symbol surface. Grounded in
// original_source/src/parse_dsc_for_main.c's tbd_create_info construction
// and _examples/blacktop-go-macho's export.go symbol classification.
package tbd

import "sort"

// Descriptor is the structured view of one library's TBD stub: everything
// downstream consumers (linkers stubbing out a missing dylib) need without
// the library's actual code.
type Descriptor struct {
	InstallName        string   `yaml:"install-name"`
	CurrentVersion      string   `yaml:"current-version"`
	CompatibilityVersion string  `yaml:"compatibility-version"`
	Architectures       []string `yaml:"archs"`
	Platform            string   `yaml:"platform,omitempty"`
	UUID                string   `yaml:"uuid,omitempty"`

	AllowableClients []string `yaml:"allowable-clients,omitempty"`
	ReExports        []string `yaml:"re-exports,omitempty"`

	Exports []SymbolGroup `yaml:"exports"`
}

// SymbolGroup is one architecture's exported-symbol surface, split into the
// four kinds a TBD file distinguishes.
type SymbolGroup struct {
	Architectures []string `yaml:"archs"`
	Symbols       []string `yaml:"symbols,omitempty"`
	WeakSymbols   []string `yaml:"weak-symbols,omitempty"`
	ObjCClasses   []string `yaml:"objc-classes,omitempty"`
	ObjCIVars     []string `yaml:"objc-ivars,omitempty"`
}

const (
	objcClassPrefix     = "_OBJC_CLASS_$_"
	objcMetaclassPrefix = "_OBJC_METACLASS_$_"
	objcIVarPrefix      = "_OBJC_IVAR_$_"
)

// classifySymbol strips a known Objective-C runtime-symbol prefix, reporting
// which bucket the bare name belongs in.
func classifySymbol(name string) (bucket string, bare string) {
	switch {
	case hasPrefix(name, objcClassPrefix):
		return "class", name[len(objcClassPrefix):]
	case hasPrefix(name, objcMetaclassPrefix):
		return "class", name[len(objcMetaclassPrefix):]
	case hasPrefix(name, objcIVarPrefix):
		return "ivar", name[len(objcIVarPrefix):]
	default:
		return "symbol", name
	}
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// sortUnique sorts names ascending and removes adjacent duplicates in place.
func sortUnique(names []string) []string {
	sort.Strings(names)
	out := names[:0]
	var prev string
	for i, n := range names {
		if i == 0 || n != prev {
			out = append(out, n)
		}
		prev = n
	}
	return out
}
