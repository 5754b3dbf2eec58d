package filters

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"hash"
	"io"

	"github.com/kbukum/httpkit"
)

const digestStateKey = "filters.digest.hash"

// Digest computes a SHA-256 digest of the transmitted request entity and
// sets it as a Content-Digest header in the RFC 9530 format:
//
//	Content-Digest: sha-256=:BASE64:
//
// The hash observes the bytes after any entity filters registered before
// this one, so it covers exactly what goes on the wire. It relies on the
// transport staging the entity before it writes headers, which the default
// transport does. Requests without an entity get no header.
type Digest struct{}

// NewDigest creates a content digest filter.
func NewDigest() *Digest {
	return &Digest{}
}

type hashingWriter struct {
	next io.Writer
	h    hash.Hash
}

func (w *hashingWriter) Write(p []byte) (int, error) {
	n, err := w.next.Write(p)
	if n > 0 {
		w.h.Write(p[:n])
	}
	return n, err
}

// FilterEntity wraps the sink with a hashing writer. The hash state is kept
// on the exchange, one per attempt.
func (d *Digest) FilterEntity(ex *httpkit.Exchange, next io.Writer) io.Writer {
	hw := &hashingWriter{next: next, h: sha256.New()}
	ex.Set(digestStateKey, hw)
	return hw
}

// OnRequest sets the digest header once the entity has been written.
func (d *Digest) OnRequest(ex *httpkit.Exchange, body io.Writer) {
	v, ok := ex.Value(digestStateKey)
	if !ok {
		return
	}
	hw := v.(*hashingWriter)
	sum := base64.StdEncoding.EncodeToString(hw.h.Sum(nil))
	ex.Request.Headers.Set("Content-Digest", fmt.Sprintf("sha-256=:%s:", sum))
}
