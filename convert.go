package httpkit

import (
	"fmt"
	"mime"
	"reflect"
	"strings"

	"github.com/kbukum/httpkit/logger"
)

// DefaultCharset is assumed when a content type declares none.
const DefaultCharset = "utf-8"

// EntityWriter serializes values into entities. Implementations may be
// speculative: SupportsWrite gates on the runtime value, and Write may still
// abstain by returning (nil, nil) to let a later converter try.
type EntityWriter interface {
	// SupportsWrite reports whether this converter can serialize v.
	SupportsWrite(v any) bool
	// ContentType is the content type this converter produces, or "" when it
	// does not declare one.
	ContentType() string
	// Write serializes v using the given charset. Returning (nil, nil) means
	// the converter abstains for this value.
	Write(v any, charset string) (*Entity, error)
}

// EntityReader deserializes entity bytes into caller-supplied targets.
type EntityReader interface {
	// SupportsRead reports whether this converter can populate target, which
	// is always a non-nil pointer.
	SupportsRead(target any) bool
	// Read deserializes data into target. Returning (false, nil) means the
	// converter abstains for this target or content type.
	Read(target any, data []byte, contentType, charset string) (bool, error)
}

// Converter is an entity converter. A converter implements EntityWriter,
// EntityReader, or both; the registry dispatches only to the capabilities a
// converter actually has.
type Converter any

// ConverterRegistry is an ordered collection of entity converters with
// first-match dispatch. Registration order is precedence: the first converter
// that supports a value (writing) or target (reading) and produces a result
// wins.
//
// The registry is meant to be configured at client construction time and
// treated as read-only while requests are in flight. It performs no internal
// locking; callers that mutate it concurrently with traffic must synchronize.
type ConverterRegistry struct {
	converters []Converter
	log        *logger.Logger
}

// NewConverterRegistry creates an empty registry.
func NewConverterRegistry() *ConverterRegistry {
	return &ConverterRegistry{
		log: logger.Get("converters"),
	}
}

// DefaultRegistry creates a registry populated with the built-in converters:
// entity and reader passthrough, bytes, string, form, multipart and JSON, in
// that order. Each call returns a fresh instance so per-client mutation stays
// isolated.
func DefaultRegistry() *ConverterRegistry {
	r := NewConverterRegistry()
	r.Add(EntityConverter{})
	r.Add(ReaderConverter{})
	r.Add(BytesConverter{})
	r.Add(StringConverter{})
	r.Add(FormConverter{})
	r.Add(MultipartConverter{})
	r.Add(JSONConverter{})
	return r
}

// Add appends c to the registry. If a converter of the same concrete type is
// already registered the call is a no-op, preserving both the existing
// instance and its position.
func (r *ConverterRegistry) Add(c Converter) {
	if c == nil {
		return
	}
	kind := reflect.TypeOf(c)
	for _, existing := range r.converters {
		if reflect.TypeOf(existing) == kind {
			return
		}
	}
	r.converters = append(r.converters, c)
}

// Remove deletes the registered converter of the same concrete type as c.
// Safe to call when the registry is empty or the kind is absent.
func (r *ConverterRegistry) Remove(c Converter) {
	if c == nil {
		return
	}
	kind := reflect.TypeOf(c)
	for i, existing := range r.converters {
		if reflect.TypeOf(existing) == kind {
			r.converters = append(r.converters[:i], r.converters[i+1:]...)
			return
		}
	}
}

// Clear removes all converters.
func (r *ConverterRegistry) Clear() {
	r.converters = nil
}

// Len returns the number of registered converters.
func (r *ConverterRegistry) Len() int {
	return len(r.converters)
}

// Write serializes v into an entity by asking registered writers in order.
// Writers that abstain or fail are skipped; the first produced entity wins.
// When the winning writer declares a content type and req has none set, the
// content type is set on req. An explicit caller content type is never
// overwritten. req may be nil when no request is in play.
//
// Returns UnsupportedConversionError when no writer produces an entity.
func (r *ConverterRegistry) Write(v any, req *Request) (*Entity, error) {
	charset := DefaultCharset
	declared := ""
	if req != nil {
		declared = req.Headers.Get("Content-Type")
		if _, cs := splitContentType(declared); cs != "" {
			charset = cs
		}
	}

	for _, c := range r.converters {
		w, ok := c.(EntityWriter)
		if !ok || !w.SupportsWrite(v) {
			continue
		}
		entity, err := w.Write(v, charset)
		if err != nil {
			r.log.Debug("writer failed, trying next converter", logger.Fields(
				logger.FieldConverter, fmt.Sprintf("%T", c),
				logger.FieldError, err.Error(),
			))
			continue
		}
		if entity == nil {
			continue
		}
		if req != nil && declared == "" {
			ct := w.ContentType()
			if ct == "" {
				// Values like MultipartBody carry their own content type
				// (the boundary is per-value, not per-converter).
				if ctv, ok := v.(interface{ ContentType() string }); ok {
					ct = ctv.ContentType()
				}
			}
			if ct != "" {
				req.Headers.Set("Content-Type", ct)
			}
		}
		return entity, nil
	}
	return nil, &UnsupportedConversionError{Op: "write", Type: fmt.Sprintf("%T", v)}
}

// Read deserializes entity content into target by asking registered readers
// in order. The entity is buffered first so every candidate reader sees the
// same bytes; a buffering failure propagates as the I/O error it is. Readers
// that abstain or fail are skipped; the first to populate target wins.
//
// Returns UnsupportedConversionError when no reader handles the target.
func (r *ConverterRegistry) Read(target any, entity *Entity, contentType string) error {
	if target == nil {
		return &UnsupportedConversionError{Op: "read", Type: "<nil>", ContentType: contentType}
	}

	var data []byte
	if entity != nil {
		if err := entity.Buffer(); err != nil {
			return err
		}
		data, _ = entity.Bytes()
	}

	mediaType, charset := splitContentType(contentType)
	if charset == "" {
		charset = DefaultCharset
	}

	for _, c := range r.converters {
		rd, ok := c.(EntityReader)
		if !ok || !rd.SupportsRead(target) {
			continue
		}
		done, err := rd.Read(target, data, mediaType, charset)
		if err != nil {
			r.log.Debug("reader failed, trying next converter", logger.Fields(
				logger.FieldConverter, fmt.Sprintf("%T", c),
				logger.FieldContentType, mediaType,
				logger.FieldError, err.Error(),
			))
			continue
		}
		if done {
			return nil
		}
	}
	return &UnsupportedConversionError{
		Op:          "read",
		Type:        fmt.Sprintf("%T", target),
		ContentType: mediaType,
	}
}

// splitContentType parses a Content-Type header value into its media type
// and charset parameter. Malformed values fall back to the trimmed raw value
// with no charset.
func splitContentType(v string) (mediaType, charset string) {
	if v == "" {
		return "", ""
	}
	mt, params, err := mime.ParseMediaType(v)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(v)), ""
	}
	return mt, strings.ToLower(params["charset"])
}
