package types

import "encoding/binary"

// MagicKind is the tagged-variant result of classifying the first bytes of
// a candidate binary.
type MagicKind uint8

const (
	KindUnknown MagicKind = iota
	KindMach32LE
	KindMach32BE
	KindMach64LE
	KindMach64BE
	KindFatLE
	KindFatBE
	KindFat64LE
	KindFat64BE
	KindDSC
)

func (k MagicKind) String() string {
	switch k {
	case KindMach32LE:
		return "mach32le"
	case KindMach32BE:
		return "mach32be"
	case KindMach64LE:
		return "mach64le"
	case KindMach64BE:
		return "mach64be"
	case KindFatLE:
		return "fatle"
	case KindFatBE:
		return "fatbe"
	case KindFat64LE:
		return "fat64le"
	case KindFat64BE:
		return "fat64be"
	case KindDSC:
		return "dsc"
	default:
		return "unknown"
	}
}

// IsFat reports whether k denotes any fat/universal variant.
func (k MagicKind) IsFat() bool {
	switch k {
	case KindFatLE, KindFatBE, KindFat64LE, KindFat64BE:
		return true
	}
	return false
}

// IsMach reports whether k denotes a single-slice Mach-O variant.
func (k MagicKind) IsMach() bool {
	switch k {
	case KindMach32LE, KindMach32BE, KindMach64LE, KindMach64BE:
		return true
	}
	return false
}

func (k MagicKind) Endian() Endian {
	switch k {
	case KindMach32BE, KindMach64BE, KindFatBE, KindFat64BE:
		return BigEndian
	}
	return LittleEndian
}

func (k MagicKind) Width() BitWidth {
	switch k {
	case KindMach64LE, KindMach64BE:
		return Width64
	}
	return Width32
}

const (
	magicMach32    uint32 = 0xfeedface
	magicMach64    uint32 = 0xfeedfacf
	magicFat       uint32 = 0xcafebabe
	magicFat64     uint32 = 0xcafebabf

	// DSCMagicPrefix is the leading bytes common to every dyld shared
	// cache version ("dyld_v1" followed by a version-specific suffix
	// padded to 16 bytes).
	DSCMagicPrefix = "dyld_v1"
)

// ClassifyMagic inspects the first 16 bytes read from a candidate offset
// and returns a dispatch kind, never erroring: unrecognised input classifies
// as KindUnknown and it is the caller's job to turn that into TruncatedHeader
// or InvalidMagic depending on how many bytes were actually available.
//
// The 32-bit fat magic and the Java class-file magic share the leading word
// 0xCAFEBABE; they are disambiguated by the caller supplying enough of the
// header for this function to sanity-check a plausible nfat_arch count,
// where a Java class file carries its minor/major version pair instead.
func ClassifyMagic(first16 []byte) MagicKind {
	if len(first16) >= 16 && string(first16[:7]) == DSCMagicPrefix {
		return KindDSC
	}
	if len(first16) < 4 {
		return KindUnknown
	}

	le := binary.LittleEndian.Uint32(first16[:4])
	be := binary.BigEndian.Uint32(first16[:4])

	switch le {
	case magicMach32:
		return KindMach32LE
	case magicMach64:
		return KindMach64LE
	}
	switch be {
	case magicMach32:
		return KindMach32BE
	case magicMach64:
		return KindMach64BE
	}

	// Fat and fat-64 are big-endian on disk by convention, but a fat file
	// built on a little-endian host may be byte-swapped; check both.
	if be == magicFat || le == magicFat {
		if classifyPlausibleFat(first16, le == magicFat) {
			if le == magicFat {
				return KindFatLE
			}
			return KindFatBE
		}
	}
	if be == magicFat64 || le == magicFat64 {
		if classifyPlausibleFat(first16, le == magicFat64) {
			if le == magicFat64 {
				return KindFat64LE
			}
			return KindFat64BE
		}
	}
	return KindUnknown
}

// classifyPlausibleFat guards against mistaking a Java class file (which
// also begins 0xCAFEBABE, followed by a minor/major version pair) for a
// fat Mach-O, by requiring the second word to decode to a small, non-zero
// architecture count. Java class-file major versions start at 45, so a
// class file's version word always reads as 45 or more here.
func classifyPlausibleFat(first16 []byte, littleEndian bool) bool {
	if len(first16) < 8 {
		return false
	}
	var nfatArch uint32
	if littleEndian {
		nfatArch = binary.LittleEndian.Uint32(first16[4:8])
	} else {
		nfatArch = binary.BigEndian.Uint32(first16[4:8])
	}
	return nfatArch > 0 && nfatArch < 45
}
