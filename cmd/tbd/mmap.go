package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"

	"github.com/appsworld/tbd/pkg/iohelp"
)

// mappedFile is a read-only memory-mapped view of a file on disk, handed to
// the core as an iohelp.Stream. Grounded in saferwall/pe's use of
// edsrzf/mmap-go for read-only binary parsing.
type mappedFile struct {
	f *os.File
	m mmap.MMap
}

func openMapped(path string) (*mappedFile, *iohelp.Stream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() == 0 {
		f.Close()
		return nil, nil, fmt.Errorf("%s: empty file", path)
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("mmap %s: %w", path, err)
	}

	mf := &mappedFile{f: f, m: m}
	stream := iohelp.New(bytes.NewReader([]byte(m)), info.Size())
	return mf, stream, nil
}

func (mf *mappedFile) Close() error {
	unmapErr := mf.m.Unmap()
	closeErr := mf.f.Close()
	if unmapErr != nil {
		return unmapErr
	}
	return closeErr
}
