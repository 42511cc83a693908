package macho

import (
	"encoding/binary"

	"github.com/appsworld/tbd/types"
)

func byteOrderFor(e types.Endian) binary.ByteOrder {
	if e == types.BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}
