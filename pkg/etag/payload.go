package etag

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// Kind names the variant of a Payload.
type Kind int

const (
	// KindAbsent is the kind of a nil Payload.
	KindAbsent Kind = iota

	// KindText is UTF-8 text.
	KindText

	// KindBytes is an opaque byte sequence.
	KindBytes

	// KindStructured is keyed or sequential data that needs canonicalization.
	KindStructured

	// KindUnsupported is any other value, e.g. a bare number or boolean.
	KindUnsupported
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindAbsent:
		return "absent"
	case KindText:
		return "text"
	case KindBytes:
		return "bytes"
	case KindStructured:
		return "structured"
	case KindUnsupported:
		return "unsupported"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Payload is the body of a response under evaluation.
// It is one of Text, Bytes, Structured or Unsupported; an absent body is
// a nil Payload.
type Payload interface {
	Kind() Kind
}

// Text is a textual payload, hashed as its UTF-8 bytes.
type Text string

// Bytes is a binary payload, hashed as is.
type Bytes []byte

// Structured is a map, sequence or struct payload.
type Structured struct {
	Value any
}

// Unsupported is a payload that cannot be fingerprinted.
type Unsupported struct {
	Value any
}

// Kind implements Payload.
func (Text) Kind() Kind { return KindText }

// Kind implements Payload.
func (Bytes) Kind() Kind { return KindBytes }

// Kind implements Payload.
func (Structured) Kind() Kind { return KindStructured }

// Kind implements Payload.
func (Unsupported) Kind() Kind { return KindUnsupported }

// KindOf returns the kind of p, KindAbsent for nil.
func KindOf(p Payload) Kind {
	if p == nil {
		return KindAbsent
	}
	return p.Kind()
}

// Classify maps a handler's return value onto a Payload variant.
//
// nil and nil pointers, maps, slices and interfaces are absent, and so is a
// nil Bytes. Other Payload values are returned unchanged. Strings are
// Text (json.Number counts as a number), byte slices are Bytes, and maps,
// slices, arrays and structs (also behind pointers) are Structured.
// Everything else is Unsupported.
func Classify(v any) Payload {
	switch p := v.(type) {
	case nil:
		return nil
	case Payload:
		if b, ok := p.(Bytes); ok && b == nil {
			return nil
		}
		return p
	case json.Number:
		return Unsupported{Value: p}
	case string:
		return Text(p)
	case []byte:
		if p == nil {
			return nil
		}
		return Bytes(p)
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.String:
		return Text(rv.String())
	case reflect.Slice:
		if rv.IsNil() {
			return nil
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return Bytes(rv.Bytes())
		}
		return Structured{Value: v}
	case reflect.Map:
		if rv.IsNil() {
			return nil
		}
		return Structured{Value: v}
	case reflect.Array, reflect.Struct:
		return Structured{Value: v}
	}
	return Unsupported{Value: v}
}
