package httpkit

import (
	"encoding/json"
	"io"
	"net/url"
	"reflect"
	"strings"
)

// EntityConverter passes *Entity bodies through unchanged. Registered first
// so a caller-built entity is never re-encoded.
type EntityConverter struct{}

func (EntityConverter) SupportsWrite(v any) bool {
	_, ok := v.(*Entity)
	return ok
}

func (EntityConverter) ContentType() string { return "" }

func (EntityConverter) Write(v any, _ string) (*Entity, error) {
	return v.(*Entity), nil
}

// ReaderConverter wraps io.Reader bodies as streaming entities.
type ReaderConverter struct{}

func (ReaderConverter) SupportsWrite(v any) bool {
	_, ok := v.(io.Reader)
	return ok
}

func (ReaderConverter) ContentType() string { return "" }

func (ReaderConverter) Write(v any, _ string) (*Entity, error) {
	return NewEntity(v.(io.Reader)), nil
}

// BytesConverter handles raw []byte payloads in both directions.
type BytesConverter struct{}

func (BytesConverter) SupportsWrite(v any) bool {
	_, ok := v.([]byte)
	return ok
}

func (BytesConverter) ContentType() string { return "application/octet-stream" }

func (BytesConverter) Write(v any, _ string) (*Entity, error) {
	return NewBufferedEntity(v.([]byte)), nil
}

func (BytesConverter) SupportsRead(target any) bool {
	_, ok := target.(*[]byte)
	return ok
}

func (BytesConverter) Read(target any, data []byte, _, _ string) (bool, error) {
	*(target.(*[]byte)) = append([]byte(nil), data...)
	return true, nil
}

// StringConverter handles string payloads in both directions. Content is
// treated as UTF-8; the charset parameter is carried through on the header
// only.
type StringConverter struct{}

func (StringConverter) SupportsWrite(v any) bool {
	_, ok := v.(string)
	return ok
}

func (StringConverter) ContentType() string { return "text/plain; charset=utf-8" }

func (StringConverter) Write(v any, _ string) (*Entity, error) {
	return NewStringEntity(v.(string)), nil
}

func (StringConverter) SupportsRead(target any) bool {
	_, ok := target.(*string)
	return ok
}

func (StringConverter) Read(target any, data []byte, _, _ string) (bool, error) {
	*(target.(*string)) = string(data)
	return true, nil
}

// FormConverter encodes map-shaped values as application/x-www-form-urlencoded
// and decodes such bodies into *url.Values targets.
type FormConverter struct{}

func (FormConverter) SupportsWrite(v any) bool {
	switch v.(type) {
	case url.Values, map[string]string, map[string][]string:
		return true
	}
	return false
}

func (FormConverter) ContentType() string { return "application/x-www-form-urlencoded" }

func (FormConverter) Write(v any, _ string) (*Entity, error) {
	var values url.Values
	switch m := v.(type) {
	case url.Values:
		values = m
	case map[string][]string:
		values = url.Values(m)
	case map[string]string:
		values = make(url.Values, len(m))
		for k, val := range m {
			values.Set(k, val)
		}
	}
	return NewStringEntity(values.Encode()), nil
}

func (FormConverter) SupportsRead(target any) bool {
	_, ok := target.(*url.Values)
	return ok
}

func (FormConverter) Read(target any, data []byte, contentType, _ string) (bool, error) {
	if contentType != "" && contentType != "application/x-www-form-urlencoded" {
		return false, nil
	}
	values, err := url.ParseQuery(string(data))
	if err != nil {
		return false, err
	}
	*(target.(*url.Values)) = values
	return true, nil
}

// JSONConverter is the fallback converter: it serializes any remaining value
// with encoding/json and deserializes into any pointer target when the
// content type is JSON (or absent).
type JSONConverter struct{}

func (JSONConverter) SupportsWrite(v any) bool {
	return v != nil
}

func (JSONConverter) ContentType() string { return "application/json" }

func (JSONConverter) Write(v any, _ string) (*Entity, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return NewBufferedEntity(data), nil
}

func (JSONConverter) SupportsRead(target any) bool {
	rv := reflect.ValueOf(target)
	return rv.Kind() == reflect.Ptr && !rv.IsNil()
}

func (JSONConverter) Read(target any, data []byte, contentType, _ string) (bool, error) {
	if contentType != "" && !isJSONContentType(contentType) {
		return false, nil
	}
	if err := json.Unmarshal(data, target); err != nil {
		return false, err
	}
	return true, nil
}

func isJSONContentType(mediaType string) bool {
	return mediaType == "application/json" ||
		mediaType == "text/json" ||
		strings.HasSuffix(mediaType, "+json")
}
