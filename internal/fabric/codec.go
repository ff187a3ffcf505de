package fabric

import (
	"encoding/json"
	"math"
	"reflect"
)

// sanitizeFloats walks v and replaces any NaN or +/-Inf float with nil so
// json.Marshal never sees a non-finite value — encoding/json itself refuses
// to emit "NaN"/"Infinity" tokens (which are not valid RFC 8259 JSON), so
// this is done ahead of marshaling rather than left to surface as an error.
// Values implementing json.Marshaler (time.Time, json.RawMessage) are handed
// to their own MarshalJSON, and untagged embedded structs are flattened into
// their parent, as encoding/json does.
func sanitizeFloats(v any) any {
	return sanitizeValue(reflect.ValueOf(v))
}

func sanitizeValue(rv reflect.Value) any {
	if !rv.IsValid() {
		return nil
	}
	if rv.Kind() != reflect.Ptr && rv.Kind() != reflect.Interface && rv.CanInterface() {
		if m, ok := rv.Interface().(json.Marshaler); ok {
			return m
		}
	}
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		return f
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return sanitizeValue(rv.Elem())
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = sanitizeValue(rv.Index(i))
		}
		return out
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[keyToString(iter.Key())] = sanitizeValue(iter.Value())
		}
		return out
	case reflect.Struct:
		t := rv.Type()
		out := make(map[string]any, t.NumField())
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if field.PkgPath != "" {
				continue // unexported
			}
			if _, tagged := field.Tag.Lookup("json"); field.Anonymous && !tagged {
				if inner, ok := sanitizeValue(rv.Field(i)).(map[string]any); ok {
					for k, v := range inner {
						if _, set := out[k]; !set {
							out[k] = v
						}
					}
					continue
				}
			}
			name := field.Name
			if tag, ok := field.Tag.Lookup("json"); ok {
				if tag == "-" {
					continue
				}
				if idx := indexComma(tag); idx >= 0 {
					if idx > 0 {
						name = tag[:idx]
					}
				} else if tag != "" {
					name = tag
				}
			}
			out[name] = sanitizeValue(rv.Field(i))
		}
		return out
	default:
		if rv.CanInterface() {
			return rv.Interface()
		}
		return nil
	}
}

func keyToString(v reflect.Value) string {
	if v.Kind() == reflect.String {
		return v.String()
	}
	return ""
}

func indexComma(s string) int {
	for i, r := range s {
		if r == ',' {
			return i
		}
	}
	return -1
}

// EncodeJSON marshals v as RFC 8259 compliant JSON.
func EncodeJSON(v any) ([]byte, error) {
	return json.Marshal(sanitizeFloats(v))
}

// DecodeJSON unmarshals JSON bytes into v.
func DecodeJSON(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
