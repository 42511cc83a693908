package dsc

import (
	"bytes"

	"github.com/appsworld/tbd/internal/overflow"
)

// Translate looks up the mapping containing address and returns the
// corresponding file offset. Mapping counts in real caches are small (tens
// of entries), so a linear scan is sufficient; spec §4.H permits either.
func (info *Info) Translate(address uint64) (int64, error) {
	for _, m := range info.mappings {
		if address >= m.Address && address < m.Address+m.Size {
			delta := address - m.Address
			off, overflowed := overflow.Add(m.FileOffset, delta)
			if overflowed || int64(off) > info.stream.Size() {
				return 0, &Error{Kind: ReadFail, Msg: "translated offset exceeds file"}
			}
			return int64(off), nil
		}
	}
	return 0, &Error{Kind: ReadFail, Msg: "address not covered by any mapping"}
}

// ImagePath reads the NUL-terminated path string for image.
func (info *Info) ImagePath(image ImageInfo) (string, error) {
	// A real path is short; read a bounded chunk first, and only if the NUL
	// isn't found within it, read once more up to the end of the file.
	const chunk = 512
	off := int64(image.PathFileOffset)
	remaining := info.stream.Size() - off
	if remaining < 0 {
		return "", &Error{Kind: ReadFail, Msg: "pathFileOffset past end of file"}
	}
	n := int64(chunk)
	if n > remaining {
		n = remaining
	}
	raw, err := info.stream.ReadAt(off, n)
	if err != nil {
		return "", &Error{Kind: ReadFail, Msg: err.Error()}
	}
	if idx := bytes.IndexByte(raw, 0); idx >= 0 {
		return string(raw[:idx]), nil
	}
	if n == remaining {
		return "", &Error{Kind: ReadFail, Msg: "image path not NUL-terminated"}
	}
	raw, err = info.stream.ReadAt(off, remaining)
	if err != nil {
		return "", &Error{Kind: ReadFail, Msg: err.Error()}
	}
	if idx := bytes.IndexByte(raw, 0); idx >= 0 {
		return string(raw[:idx]), nil
	}
	return "", &Error{Kind: ReadFail, Msg: "image path not NUL-terminated"}
}
