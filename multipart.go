package httpkit

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"

	"github.com/google/uuid"
)

// MultipartBody represents a multipart/form-data request body. Pass it as
// the Body of a Request; the multipart converter encodes it and the content
// type (including the boundary) is set automatically.
type MultipartBody struct {
	// Fields are simple key-value form fields.
	Fields map[string]string
	// Files are file upload fields.
	Files []FileField

	boundary string
}

// FileField represents a file to upload in a multipart request.
type FileField struct {
	// FieldName is the form field name (e.g., "file", "audio").
	FieldName string
	// FileName is the file name sent to the server.
	FileName string
	// ContentType is the MIME type (e.g., "audio/wav"). If empty, uses application/octet-stream.
	ContentType string
	// Data is the file content. Used if Reader is nil.
	Data []byte
	// Reader is an alternative to Data for large files.
	Reader io.Reader
}

// ContentType returns the multipart content type with the body's boundary.
// The boundary is pinned on first use so the header and the encoded bytes
// always agree.
func (m *MultipartBody) ContentType() string {
	if m.boundary == "" {
		m.boundary = "httpkit" + strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	return "multipart/form-data; boundary=" + m.boundary
}

// encode builds the multipart payload as a buffered entity.
func (m *MultipartBody) encode() (*Entity, error) {
	m.ContentType()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.SetBoundary(m.boundary); err != nil {
		return nil, err
	}

	for k, v := range m.Fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, err
		}
	}

	for _, f := range m.Files {
		var part io.Writer
		var err error

		if f.ContentType != "" {
			header := make(textproto.MIMEHeader)
			header.Set("Content-Disposition",
				`form-data; name="`+escapeQuotes(f.FieldName)+`"; filename="`+escapeQuotes(f.FileName)+`"`)
			header.Set("Content-Type", f.ContentType)
			part, err = w.CreatePart(header)
		} else {
			part, err = w.CreateFormFile(f.FieldName, f.FileName)
		}
		if err != nil {
			return nil, err
		}

		if f.Data != nil {
			if _, err := part.Write(f.Data); err != nil {
				return nil, err
			}
		} else if f.Reader != nil {
			if _, err := io.Copy(part, f.Reader); err != nil {
				return nil, err
			}
		}
	}

	if err := w.Close(); err != nil {
		return nil, err
	}

	return NewBufferedEntity(buf.Bytes()), nil
}

// escapeQuotes replaces special characters in header values.
func escapeQuotes(s string) string {
	var buf bytes.Buffer
	for _, b := range []byte(s) {
		if b == '"' || b == '\\' {
			buf.WriteByte('\\')
		}
		buf.WriteByte(b)
	}
	return buf.String()
}

// MultipartConverter encodes MultipartBody values. It declares no static
// content type; the boundary-bearing value supplies it.
type MultipartConverter struct{}

func (MultipartConverter) SupportsWrite(v any) bool {
	_, ok := v.(*MultipartBody)
	return ok
}

func (MultipartConverter) ContentType() string { return "" }

func (MultipartConverter) Write(v any, _ string) (*Entity, error) {
	return v.(*MultipartBody).encode()
}
