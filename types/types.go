package types

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

type VmProtection int32

func (v VmProtection) Read() bool    { return (v & 0x01) != 0 }
func (v VmProtection) Write() bool   { return (v & 0x02) != 0 }
func (v VmProtection) Execute() bool { return (v & 0x04) != 0 }

func (v VmProtection) String() string {
	var protStr string
	if v.Read() {
		protStr += "r"
	} else {
		protStr += "-"
	}
	if v.Write() {
		protStr += "w"
	} else {
		protStr += "-"
	}
	if v.Execute() {
		protStr += "x"
	} else {
		protStr += "-"
	}
	return protStr
}

// UUID is a macho uuid object
type UUID [16]byte

// IsNull returns true if UUID is 00000000-0000-0000-0000-000000000000
func (u UUID) IsNull() bool {
	return u == [16]byte{0}
}

func (u UUID) String() string {
	return strings.ToUpper(uuid.UUID(u).String())
}

// Platform is a macho platform object
type Platform uint32

const (
	PlatformUnknown            Platform = 0  // PLATFORM_UNKNOWN
	PlatformMacOS              Platform = 1  // PLATFORM_MACOS
	PlatformIOS                Platform = 2  // PLATFORM_IOS
	PlatformTvOS               Platform = 3  // PLATFORM_TVOS
	PlatformWatchOS            Platform = 4  // PLATFORM_WATCHOS
	PlatformBridgeOS           Platform = 5  // PLATFORM_BRIDGEOS
	PlatformMacCatalyst        Platform = 6  // PLATFORM_MACCATALYST
	PlatformIOSSimulator       Platform = 7  // PLATFORM_IOSSIMULATOR
	PlatformTvOSSimulator      Platform = 8  // PLATFORM_TVOSSIMULATOR
	PlatformWatchOSSimulator   Platform = 9  // PLATFORM_WATCHOSSIMULATOR
	PlatformDriverKit          Platform = 10 // PLATFORM_DRIVERKIT
	PlatformAny                Platform = 0xFFFFFFFF
)

var platformStrings = []IntName{
	{uint32(PlatformMacOS), "macOS"},
	{uint32(PlatformIOS), "iOS"},
	{uint32(PlatformTvOS), "tvOS"},
	{uint32(PlatformWatchOS), "watchOS"},
	{uint32(PlatformBridgeOS), "bridgeOS"},
	{uint32(PlatformMacCatalyst), "macCatalyst"},
	{uint32(PlatformIOSSimulator), "iOSSimulator"},
	{uint32(PlatformTvOSSimulator), "tvOSSimulator"},
	{uint32(PlatformWatchOSSimulator), "watchOSSimulator"},
	{uint32(PlatformDriverKit), "driverKit"},
}

func (p Platform) String() string { return StringName(uint32(p), platformStrings, false) }

// Version is a packed X.Y.Z version number, X in the high 16 bits.
type Version uint32

func (v Version) String() string {
	s := make([]byte, 4)
	binary.BigEndian.PutUint32(s, uint32(v))
	if (s[3] & 0xFF) == 0 {
		return fmt.Sprintf("%d.%d", binary.BigEndian.Uint16(s[:2]), s[2])
	}
	return fmt.Sprintf("%d.%d.%d", binary.BigEndian.Uint16(s[:2]), s[2], s[3])
}

// SrcVersion is the A.B.C.D.E packed source version carried by LC_SOURCE_VERSION.
type SrcVersion uint64

func (sv SrcVersion) String() string {
	a := sv >> 40
	b := (sv >> 30) & 0x3ff
	c := (sv >> 20) & 0x3ff
	d := (sv >> 10) & 0x3ff
	e := sv & 0x3ff
	return fmt.Sprintf("%d.%d.%d.%d.%d", a, b, c, d, e)
}

type Tool uint32

const (
	ToolNone  Tool = 0
	ToolClang Tool = 1 // TOOL_CLANG
	ToolSwift Tool = 2 // TOOL_SWIFT
	ToolLd    Tool = 3 // TOOL_LD
	ToolLld   Tool = 4 // TOOL_LLD
)

// BuildToolVersion pairs a build tool with the version it was invoked at,
// as recorded by LC_BUILD_VERSION's trailing tool list.
type BuildToolVersion struct {
	Tool    Tool
	Version Version
}

// IntName is a lookup table entry pairing a raw encoded value with its
// symbolic name, used by StringName to render enum-like fields.
type IntName struct {
	I uint32
	S string
}

// StringName looks up i in names, falling back to its hex encoding.
// goSyntax renders the match as a Go-qualified identifier (macho.Foo).
func StringName(i uint32, names []IntName, goSyntax bool) string {
	for _, n := range names {
		if n.I == i {
			if goSyntax {
				return "macho." + n.S
			}
			return n.S
		}
	}
	return "0x" + strconv.FormatUint(uint64(i), 16)
}
