package httpkit

import (
	"bytes"
	"io"
)

// Entity is a message body. It is either streaming, wrapping an underlying
// reader that can be consumed once, or buffered, holding the full content
// in memory so it can be replayed.
//
// A streaming entity becomes buffered by calling Buffer, which drains the
// source, caches the bytes and closes the source. The transition is one-way:
// a buffered entity never goes back to streaming.
type Entity struct {
	src    io.ReadCloser
	buf    []byte
	cursor *bytes.Reader
	length int64
}

// NewEntity wraps a reader as a streaming entity. The content length is
// unknown. If r implements io.Closer, Close and Buffer will close it.
func NewEntity(r io.Reader) *Entity {
	return NewEntityWithLength(r, -1)
}

// NewEntityWithLength wraps a reader as a streaming entity with a known
// content length. Pass -1 when the length is unknown.
func NewEntityWithLength(r io.Reader, length int64) *Entity {
	if r == nil {
		return NewBufferedEntity(nil)
	}
	rc, ok := r.(io.ReadCloser)
	if !ok {
		rc = io.NopCloser(r)
	}
	return &Entity{src: rc, length: length}
}

// NewBufferedEntity creates an entity that holds b in memory. The entity is
// repeatable from the start.
func NewBufferedEntity(b []byte) *Entity {
	return &Entity{
		buf:    b,
		cursor: bytes.NewReader(b),
		length: int64(len(b)),
	}
}

// NewStringEntity creates a buffered entity from s.
func NewStringEntity(s string) *Entity {
	return NewBufferedEntity([]byte(s))
}

// Buffered reports whether the content is held in memory.
func (e *Entity) Buffered() bool {
	return e.cursor != nil
}

// Len returns the content length in bytes, or -1 when unknown. Buffered
// entities always have a known length.
func (e *Entity) Len() int64 {
	return e.length
}

// Buffer drains the remaining streaming content into memory, closes the
// underlying source and switches the entity to buffered. It is a no-op on
// an already buffered entity. A read failure while draining leaves the
// entity unusable and is returned as-is.
func (e *Entity) Buffer() error {
	if e.cursor != nil {
		return nil
	}
	data, err := io.ReadAll(e.src)
	closeErr := e.src.Close()
	e.src = nil
	if err != nil {
		return err
	}
	if closeErr != nil {
		return closeErr
	}
	e.buf = data
	e.cursor = bytes.NewReader(data)
	e.length = int64(len(data))
	return nil
}

// Reset rewinds a buffered entity to the beginning so it can be read again.
// Calling Reset on a streaming entity returns ErrNotBuffered.
func (e *Entity) Reset() error {
	if e.cursor == nil {
		return ErrNotBuffered
	}
	e.cursor.Seek(0, io.SeekStart)
	return nil
}

// Bytes returns the full content. A streaming entity is buffered first, so
// after Bytes the entity is repeatable. The returned slice is the internal
// buffer and must not be modified.
func (e *Entity) Bytes() ([]byte, error) {
	if err := e.Buffer(); err != nil {
		return nil, err
	}
	return e.buf, nil
}

// Read reads the content. Streaming entities read through to the source;
// buffered entities read from the replay cursor.
func (e *Entity) Read(p []byte) (int, error) {
	if e.cursor != nil {
		return e.cursor.Read(p)
	}
	if e.src == nil {
		return 0, io.EOF
	}
	return e.src.Read(p)
}

// Close releases the underlying source of a streaming entity. It is a no-op
// on buffered entities and safe to call more than once.
func (e *Entity) Close() error {
	if e.src == nil {
		return nil
	}
	src := e.src
	e.src = nil
	return src.Close()
}
