package macho

import "github.com/appsworld/tbd/types"

// SegmentExtent returns the highest (file offset + file size) among the
// container's LC_SEGMENT/LC_SEGMENT_64 commands, relative to the
// container's own base. Used by the DSC image iterator to bound a
// synthesized container to the minimal region its segments actually cover
// (spec §4.I), since a DSC image has no header-level "total size" field of
// its own the way a discrete Mach-O file does.
func (c *Container) SegmentExtent() (int64, error) {
	var extent int64
	err := c.IterateCommands(func(lc *LoadCommand) error {
		body := lc.Body()
		bo := byteOrderFor(c.endian)
		switch lc.Cmd {
		case types.LC_SEGMENT:
			// Segment32 body (after the 8-byte cmd/cmdsize prefix):
			// Name(16) Addr(4) Memsz(4) Offset(4) Filesz(4) ...
			if len(body) < 32 {
				return nil
			}
			offset := int64(bo.Uint32(body[24:28]))
			filesz := int64(bo.Uint32(body[28:32]))
			if end := offset + filesz; end > extent {
				extent = end
			}
		case types.LC_SEGMENT_64:
			// Segment64 body (after the 8-byte cmd/cmdsize prefix):
			// Name(16) Addr(8) Memsz(8) Offset(8) Filesz(8) ...
			if len(body) < 48 {
				return nil
			}
			offset := int64(bo.Uint64(body[32:40]))
			filesz := int64(bo.Uint64(body[40:48]))
			if end := offset + filesz; end > extent {
				extent = end
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if extent == 0 {
		return 0, &Error{Kind: NotPresent, Offset: -1, Msg: "no LC_SEGMENT/LC_SEGMENT_64 commands present"}
	}
	return extent, nil
}
