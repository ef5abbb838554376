// Package canonical serializes structured values into a stable JSON form
// suitable for content fingerprinting.
//
// Two values that are structurally equal produce byte-identical output,
// regardless of map iteration order or how the value was constructed:
//
//   - map keys are emitted in bytewise ascending order
//   - struct fields follow their `json` tags ("-" skips a field,
//     omitempty is honoured, untagged embedded structs are promoted)
//   - when fields share a JSON name, outer fields shadow promoted ones and,
//     at the same level, the first declared field wins
//   - json.Marshaler and encoding.TextMarshaler implementations are used
//   - []byte values are emitted as base64 strings
//
// Circular references are detected on the current traversal path and
// reported as a *SerializationError wrapping ErrCycle. Shared references
// that do not form a cycle are serialized once per occurrence.
package canonical

import (
	"bytes"
	"encoding"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

// MaxDepth is the deepest nesting level Marshal accepts.
const MaxDepth = 1000

var (
	// ErrCycle indicates the value references itself.
	ErrCycle = errors.New("circular reference")

	// ErrUnsupportedType indicates a type with no JSON representation
	// (channels, functions, complex numbers, unsupported map keys).
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrUnsupportedValue indicates a value with no lossless JSON
	// representation (NaN, infinities, failing marshalers, key collisions).
	ErrUnsupportedValue = errors.New("unsupported value")

	// ErrMaxDepth indicates nesting deeper than MaxDepth.
	ErrMaxDepth = errors.New("maximum nesting depth exceeded")
)

// SerializationError reports why a structured value could not be serialized
// and where in the value the problem was found.
type SerializationError struct {
	// Path locates the offending value, e.g. `$.items[3].owner`.
	Path string

	// Err is one of the sentinel errors of this package, possibly wrapped.
	Err error
}

// Error implements the error interface.
func (e *SerializationError) Error() string {
	return fmt.Sprintf("canonical: cannot serialize %s: %v", e.Path, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *SerializationError) Unwrap() error {
	return e.Err
}

var api = jsoniter.Config{
	SortMapKeys:            true,
	EscapeHTML:             false,
	ValidateJsonRawMessage: true,
}.Froze()

var (
	jsonMarshalerType = reflect.TypeOf((*json.Marshaler)(nil)).Elem()
	textMarshalerType = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
	numberType        = reflect.TypeOf(json.Number(""))
)

// Marshal returns the canonical JSON encoding of v.
// Any failure is returned as a *SerializationError.
func Marshal(v any) ([]byte, error) {
	w := &walker{visiting: make(map[visit]struct{})}
	tree, err := w.walk(reflect.ValueOf(v), "$", 0)
	if err != nil {
		return nil, err
	}

	data, err := api.Marshal(tree)
	if err != nil {
		return nil, &SerializationError{Path: "$", Err: fmt.Errorf("%w: %v", ErrUnsupportedValue, err)}
	}
	return data, nil
}

// visit identifies a reference-typed value on the traversal path.
type visit struct {
	ptr uintptr
	typ reflect.Type
	len int
}

// walker converts arbitrary values into a tree of nil, bool, int64,
// uint64, json.Number, string, json.RawMessage, []any and map[string]any.
type walker struct {
	visiting map[visit]struct{}
}

func (w *walker) walk(v reflect.Value, path string, depth int) (any, error) {
	if depth > MaxDepth {
		return nil, &SerializationError{Path: path, Err: ErrMaxDepth}
	}
	if !v.IsValid() {
		return nil, nil
	}

	if out, ok, err := w.marshaler(v, path); ok || err != nil {
		return out, err
	}

	switch v.Kind() {
	case reflect.Interface:
		if v.IsNil() {
			return nil, nil
		}
		return w.walk(v.Elem(), path, depth)

	case reflect.Pointer:
		if v.IsNil() {
			return nil, nil
		}
		key := visit{ptr: v.Pointer(), typ: v.Type()}
		if err := w.enter(key, path); err != nil {
			return nil, err
		}
		defer w.leave(key)
		return w.walk(v.Elem(), path, depth+1)

	case reflect.Bool:
		return v.Bool(), nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint(), nil

	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, &SerializationError{Path: path, Err: fmt.Errorf("%w: %v", ErrUnsupportedValue, f)}
		}
		return json.Number(strconv.FormatFloat(f, 'g', -1, v.Type().Bits())), nil

	case reflect.String:
		if v.Type() == numberType {
			return json.Number(v.String()), nil
		}
		return v.String(), nil

	case reflect.Slice:
		if v.IsNil() {
			return nil, nil
		}
		if v.Type().Elem().Kind() == reflect.Uint8 && !implementsMarshaler(reflect.PointerTo(v.Type().Elem())) {
			return base64.StdEncoding.EncodeToString(v.Bytes()), nil
		}
		if v.Len() > 0 {
			key := visit{ptr: v.Pointer(), typ: v.Type(), len: v.Len()}
			if err := w.enter(key, path); err != nil {
				return nil, err
			}
			defer w.leave(key)
		}
		return w.sequence(v, path, depth)

	case reflect.Array:
		return w.sequence(v, path, depth)

	case reflect.Map:
		if v.IsNil() {
			return nil, nil
		}
		key := visit{ptr: v.Pointer(), typ: v.Type()}
		if err := w.enter(key, path); err != nil {
			return nil, err
		}
		defer w.leave(key)
		return w.mapping(v, path, depth)

	case reflect.Struct:
		out := make(map[string]any, v.NumField())
		if err := w.fields(v, path, depth, out); err != nil {
			return nil, err
		}
		return out, nil
	}

	return nil, &SerializationError{Path: path, Err: fmt.Errorf("%w: %s", ErrUnsupportedType, v.Type())}
}

func (w *walker) enter(key visit, path string) error {
	if _, ok := w.visiting[key]; ok {
		return &SerializationError{Path: path, Err: ErrCycle}
	}
	w.visiting[key] = struct{}{}
	return nil
}

func (w *walker) leave(key visit) {
	delete(w.visiting, key)
}

// marshaler uses json.Marshaler or encoding.TextMarshaler when v provides one.
func (w *walker) marshaler(v reflect.Value, path string) (any, bool, error) {
	if !v.CanInterface() {
		return nil, false, nil
	}
	if (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) && v.IsNil() {
		return nil, false, nil
	}

	target := v
	if !implementsMarshaler(v.Type()) {
		if !v.CanAddr() || !implementsMarshaler(reflect.PointerTo(v.Type())) {
			return nil, false, nil
		}
		target = v.Addr()
	}

	switch m := target.Interface().(type) {
	case json.Marshaler:
		raw, err := m.MarshalJSON()
		if err != nil {
			return nil, true, &SerializationError{Path: path, Err: fmt.Errorf("%w: %v", ErrUnsupportedValue, err)}
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return nil, true, &SerializationError{Path: path, Err: fmt.Errorf("%w: %v", ErrUnsupportedValue, err)}
		}
		return json.RawMessage(buf.Bytes()), true, nil

	case encoding.TextMarshaler:
		text, err := m.MarshalText()
		if err != nil {
			return nil, true, &SerializationError{Path: path, Err: fmt.Errorf("%w: %v", ErrUnsupportedValue, err)}
		}
		return string(text), true, nil
	}
	return nil, false, nil
}

func implementsMarshaler(t reflect.Type) bool {
	return t.Implements(jsonMarshalerType) || t.Implements(textMarshalerType)
}

func (w *walker) sequence(v reflect.Value, path string, depth int) (any, error) {
	out := make([]any, v.Len())
	for i := range out {
		item, err := w.walk(v.Index(i), path+"["+strconv.Itoa(i)+"]", depth+1)
		if err != nil {
			return nil, err
		}
		out[i] = item
	}
	return out, nil
}

func (w *walker) mapping(v reflect.Value, path string, depth int) (any, error) {
	out := make(map[string]any, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		name, err := mapKey(iter.Key())
		if err != nil {
			return nil, &SerializationError{Path: path, Err: err}
		}
		if _, dup := out[name]; dup {
			return nil, &SerializationError{Path: path, Err: fmt.Errorf("%w: duplicate key %q", ErrUnsupportedValue, name)}
		}
		item, err := w.walk(iter.Value(), childPath(path, name), depth+1)
		if err != nil {
			return nil, err
		}
		out[name] = item
	}
	return out, nil
}

func mapKey(k reflect.Value) (string, error) {
	if k.Kind() == reflect.Interface {
		if k.IsNil() {
			return "", fmt.Errorf("%w: nil map key", ErrUnsupportedType)
		}
		k = k.Elem()
	}
	if k.Kind() == reflect.String {
		return k.String(), nil
	}
	if k.CanInterface() {
		if tm, ok := k.Interface().(encoding.TextMarshaler); ok {
			if k.Kind() == reflect.Pointer && k.IsNil() {
				return "", nil
			}
			text, err := tm.MarshalText()
			if err != nil {
				return "", fmt.Errorf("%w: %v", ErrUnsupportedValue, err)
			}
			return string(text), nil
		}
	}
	switch k.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(k.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(k.Uint(), 10), nil
	}
	return "", fmt.Errorf("%w: map key %s", ErrUnsupportedType, k.Type())
}

// fields adds the JSON-visible fields of the struct v to out. Fields already
// present in out take precedence, so outer fields shadow promoted ones.
func (w *walker) fields(v reflect.Value, path string, depth int, out map[string]any) error {
	if depth > MaxDepth {
		return &SerializationError{Path: path, Err: ErrMaxDepth}
	}

	t := v.Type()
	var embedded []reflect.Value
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag := sf.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")

		if sf.Anonymous && name == "" {
			ft := sf.Type
			if ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				embedded = append(embedded, v.Field(i))
				continue
			}
		}
		if !sf.IsExported() {
			continue
		}
		if name == "" {
			name = sf.Name
		}
		if _, dup := out[name]; dup {
			continue
		}

		fv := v.Field(i)
		if hasOption(opts, "omitempty") && isEmptyValue(fv) {
			continue
		}
		item, err := w.walk(fv, childPath(path, name), depth+1)
		if err != nil {
			return err
		}
		out[name] = item
	}

	for _, ev := range embedded {
		if ev.Kind() == reflect.Pointer {
			if ev.IsNil() {
				continue
			}
			key := visit{ptr: ev.Pointer(), typ: ev.Type()}
			if err := w.enter(key, path); err != nil {
				return err
			}
			err := w.fields(ev.Elem(), path, depth+1, out)
			w.leave(key)
			if err != nil {
				return err
			}
			continue
		}
		if err := w.fields(ev, path, depth+1, out); err != nil {
			return err
		}
	}
	return nil
}

func hasOption(opts, name string) bool {
	for opts != "" {
		var opt string
		opt, opts, _ = strings.Cut(opts, ",")
		if opt == name {
			return true
		}
	}
	return false
}

func isEmptyValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return v.Len() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Interface, reflect.Pointer:
		return v.IsNil()
	}
	return false
}

func childPath(path, name string) string {
	if isIdentifier(name) {
		return path + "." + name
	}
	return path + "[" + strconv.Quote(name) + "]"
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r == '$', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
