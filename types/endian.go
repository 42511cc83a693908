package types

// Endian is the byte order a container was decoded with. It is derived once
// from the container's magic number and never changes over the container's
// life (spec component B).
type Endian uint8

const (
	LittleEndian Endian = iota
	BigEndian
)

func (e Endian) String() string {
	if e == BigEndian {
		return "big-endian"
	}
	return "little-endian"
}

// SwapUint16 reverses the byte order of x.
func SwapUint16(x uint16) uint16 {
	return x<<8 | x>>8
}

// SwapUint32 reverses the byte order of x.
func SwapUint32(x uint32) uint32 {
	return x<<24 | (x&0xff00)<<8 | (x&0xff0000)>>8 | x>>24
}

// SwapUint64 reverses the byte order of x.
func SwapUint64(x uint64) uint64 {
	return uint64(SwapUint32(uint32(x)))<<32 | uint64(SwapUint32(uint32(x>>32)))
}

// Uint32 decodes x according to e.
func (e Endian) Uint32(x uint32) uint32 {
	if e == BigEndian {
		return SwapUint32(x)
	}
	return x
}

// Uint64 decodes x according to e.
func (e Endian) Uint64(x uint64) uint64 {
	if e == BigEndian {
		return SwapUint64(x)
	}
	return x
}

// SwapLoadCommandPrefix swaps the two words of a load command prefix
// (cmd, cmdsize) in place. Only ever needed for big-endian containers;
// the vast majority of Mach-O in the wild is little-endian.
func SwapLoadCommandPrefix(p *LoadCommandPrefix) {
	p.Cmd = LoadCmd(SwapUint32(uint32(p.Cmd)))
	p.CmdSize = SwapUint32(p.CmdSize)
}

// SwapFileHeader swaps every field of a Mach-O header in place, for the
// given bit width (the trailing reserved word only exists for 64-bit).
func SwapFileHeader(h *FileHeader, width BitWidth) {
	h.Magic = Magic(SwapUint32(uint32(h.Magic)))
	h.CPU = CPU(SwapUint32(uint32(h.CPU)))
	h.SubCPU = CPUSubtype(SwapUint32(uint32(h.SubCPU)))
	h.Type = HeaderFileType(SwapUint32(uint32(h.Type)))
	h.NCommands = SwapUint32(h.NCommands)
	h.SizeCommands = SwapUint32(h.SizeCommands)
	h.Flags = HeaderFlag(SwapUint32(uint32(h.Flags)))
	if width == Width64 {
		h.Reserved = SwapUint32(h.Reserved)
	}
}
