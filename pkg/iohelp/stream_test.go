package iohelp

import (
	"bytes"
	"errors"
	"testing"
)

func TestReadAt(t *testing.T) {
	src := bytes.NewReader([]byte("hello world"))
	s := New(src, int64(src.Len()))

	got, err := s.ReadAt(6, 5)
	if err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if string(got) != "world" {
		t.Fatalf("ReadAt(6,5) = %q, want %q", got, "world")
	}
}

func TestReadAtOutOfRange(t *testing.T) {
	src := bytes.NewReader([]byte("short"))
	s := New(src, int64(src.Len()))

	_, err := s.ReadAt(2, 10)
	var serr *Error
	if !errors.As(err, &serr) || serr.Kind != OutOfRange {
		t.Fatalf("ReadAt past end: got %v, want OutOfRange", err)
	}
}

func TestSubrange(t *testing.T) {
	src := bytes.NewReader([]byte("0123456789"))
	s := New(src, int64(src.Len()))

	sub, err := s.Subrange(3, 4)
	if err != nil {
		t.Fatalf("Subrange: %v", err)
	}
	got, err := sub.ReadAt(0, 4)
	if err != nil {
		t.Fatalf("ReadAt on subrange: %v", err)
	}
	if string(got) != "3456" {
		t.Fatalf("subrange read = %q, want %q", got, "3456")
	}

	if _, err := sub.ReadAt(0, 5); err == nil {
		t.Fatal("read past subrange end: want error")
	}
}

func TestSubrangeOutOfParent(t *testing.T) {
	src := bytes.NewReader([]byte("0123456789"))
	s := New(src, int64(src.Len()))

	if _, err := s.Subrange(8, 5); err == nil {
		t.Fatal("Subrange exceeding parent: want error")
	}
}
