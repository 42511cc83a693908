// Package iohelp provides the core's byte-stream abstraction: a seekable,
// bounded byte source that reports read-at-offset failures as structured
// errors instead of partial reads. Grounded in the teacher's
// CustomSectionReader (types.CustomSectionReader), stripped of its virtual
// address translation, which belongs to the dyld shared cache layer instead.
package iohelp

import "io"

// Stream is a read-only view over a byte source, constrained to
// [base, base+size) of the underlying ReaderAt. All offsets a caller passes
// to ReadAt are relative to the stream's own base, not the underlying
// source's.
type Stream struct {
	r    io.ReaderAt
	base int64
	size int64
}

// New wraps r as a Stream spanning its first n bytes.
func New(r io.ReaderAt, n int64) *Stream {
	return &Stream{r: r, base: 0, size: n}
}

// Size returns the stream's length in bytes.
func (s *Stream) Size() int64 { return s.size }

// ReadAt reads exactly n bytes starting at off (relative to the stream's
// base). It never returns a short read: an out-of-range request returns
// OutOfRange, and any underlying I/O failure returns StreamRead.
func (s *Stream) ReadAt(off, n int64) ([]byte, error) {
	if off < 0 || n < 0 || off+n > s.size {
		return nil, &Error{Kind: OutOfRange, Offset: off, Msg: "read past stream end"}
	}
	buf := make([]byte, n)
	if n == 0 {
		return buf, nil
	}
	read, err := s.r.ReadAt(buf, s.base+off)
	if err != nil && !(err == io.EOF && read == int(n)) {
		return nil, &Error{Kind: StreamRead, Offset: off, Msg: err.Error()}
	}
	return buf, nil
}

// Subrange returns a derived Stream constrained to [base, base+size) of s,
// with offsets in the derived stream relative to the new base. Fails with
// OutOfRange if the requested range does not lie within s.
func (s *Stream) Subrange(base, size int64) (*Stream, error) {
	if base < 0 || size < 0 || base+size > s.size {
		return nil, &Error{Kind: OutOfRange, Offset: base, Msg: "subrange exceeds parent stream"}
	}
	return &Stream{r: s.r, base: s.base + base, size: size}, nil
}
