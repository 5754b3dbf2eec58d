package httpkit

import (
	"errors"
	"io"
	"strings"
	"testing"
)

type trackingReader struct {
	io.Reader
	closed bool
}

func (r *trackingReader) Close() error {
	r.closed = true
	return nil
}

func TestEntityStreamingReadsOnce(t *testing.T) {
	e := NewEntity(strings.NewReader("hello"))
	if e.Buffered() {
		t.Fatal("expected streaming entity")
	}
	if e.Len() != -1 {
		t.Fatalf("expected unknown length, got %d", e.Len())
	}

	data, err := io.ReadAll(e)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("unexpected content: %q", data)
	}

	// A second read finds the stream exhausted.
	again, err := io.ReadAll(e)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("expected exhausted stream, got %q", again)
	}
}

func TestEntityBuffer(t *testing.T) {
	src := &trackingReader{Reader: strings.NewReader("payload")}
	e := NewEntity(src)

	if err := e.Buffer(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !e.Buffered() {
		t.Fatal("expected buffered entity")
	}
	if !src.closed {
		t.Fatal("expected source to be closed after buffering")
	}
	if e.Len() != int64(len("payload")) {
		t.Fatalf("unexpected length: %d", e.Len())
	}

	// Idempotent.
	if err := e.Buffer(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < 2; i++ {
		data, err := io.ReadAll(e)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(data) != "payload" {
			t.Fatalf("read %d: unexpected content: %q", i, data)
		}
		if err := e.Reset(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
}

func TestEntityBufferAfterPartialRead(t *testing.T) {
	e := NewEntity(strings.NewReader("abcdef"))

	p := make([]byte, 3)
	if _, err := io.ReadFull(e, p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := e.Buffer(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := e.Bytes()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "def" {
		t.Fatalf("expected remainder, got %q", data)
	}
}

func TestEntityResetStreaming(t *testing.T) {
	e := NewEntity(strings.NewReader("x"))
	if err := e.Reset(); !errors.Is(err, ErrNotBuffered) {
		t.Fatalf("expected ErrNotBuffered, got %v", err)
	}
}

func TestEntityBytesBuffersStream(t *testing.T) {
	src := &trackingReader{Reader: strings.NewReader("bytes")}
	e := NewEntity(src)

	data, err := e.Bytes()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "bytes" {
		t.Fatalf("unexpected content: %q", data)
	}
	if !e.Buffered() || !src.closed {
		t.Fatal("expected Bytes to buffer and close the source")
	}
}

func TestEntityBufferReadError(t *testing.T) {
	wantErr := errors.New("boom")
	e := NewEntity(io.MultiReader(strings.NewReader("par"), &failingReader{err: wantErr}))
	if err := e.Buffer(); !errors.Is(err, wantErr) {
		t.Fatalf("expected read error, got %v", err)
	}
}

type failingReader struct {
	err error
}

func (r *failingReader) Read([]byte) (int, error) {
	return 0, r.err
}

func TestEntityClose(t *testing.T) {
	src := &trackingReader{Reader: strings.NewReader("x")}
	e := NewEntity(src)
	if err := e.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !src.closed {
		t.Fatal("expected source to be closed")
	}
	// Safe to close again.
	if err := e.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Buffered entities have nothing to close.
	b := NewBufferedEntity([]byte("y"))
	if err := b.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := b.Bytes()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "y" {
		t.Fatalf("unexpected content after close: %q", data)
	}
}

func TestEntityNilReader(t *testing.T) {
	e := NewEntity(nil)
	if !e.Buffered() {
		t.Fatal("expected nil reader to produce a buffered empty entity")
	}
	if e.Len() != 0 {
		t.Fatalf("unexpected length: %d", e.Len())
	}
}
