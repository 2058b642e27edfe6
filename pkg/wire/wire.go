// Package wire validates inbound vendor payloads against their wire schemas
// before a parser trusts any field.
//
// Schemas are plain structs with `json` tags for shape and `validate` tags
// (github.com/go-playground/validator/v10) for constraints. Unknown keys are
// always tolerated; absent optional fields are normal.
package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is shared by every vendor. It is configured once at package init
// and only read afterwards, which validator supports concurrently.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report JSON field names in paths instead of Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	return v
}

// Decode parses data into v and validates it against v's schema tags.
//
// It returns a *MalformedEventError when data is not JSON, and a
// *SchemaViolationError when the JSON does not fit the schema.
func Decode(vendor, data string, v any) error {
	if err := json.Unmarshal([]byte(data), v); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return &SchemaViolationError{
				Vendor: vendor,
				Path:   typeErr.Field,
				Reason: "type",
				Err:    err,
			}
		}
		return &MalformedEventError{Vendor: vendor, Err: err}
	}

	return Validate(vendor, v)
}

// DecodeField decodes raw, a sub-document of an event that was decoded
// with a json.RawMessage placeholder, into v. It reports false with no
// error when raw is absent or JSON null. Schema violation paths are
// prefixed with field.
func DecodeField(vendor, field string, raw json.RawMessage, v any) (bool, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return false, nil
	}

	if err := Decode(vendor, string(raw), v); err != nil {
		var violation *SchemaViolationError
		if errors.As(err, &violation) {
			violation.Path = joinPath(field, violation.Path)
		}
		return false, err
	}
	return true, nil
}

// Validate checks an already decoded value against its schema tags.
func Validate(vendor string, v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &SchemaViolationError{
			Vendor: vendor,
			Path:   trimRoot(fe.Namespace()),
			Reason: fe.Tag(),
			Err:    err,
		}
	}

	return &SchemaViolationError{Vendor: vendor, Reason: "invalid", Err: err}
}

// Peek extracts the top-level string field name from data without a full
// schema, for discriminating event variants. It returns "" when the field is
// absent or data is not a JSON object.
func Peek(data, field string) string {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(data), &probe); err != nil {
		return ""
	}

	var s string
	if raw, ok := probe[field]; ok {
		_ = json.Unmarshal(raw, &s)
	}
	return s
}

// trimRoot drops the root struct name from a validator namespace:
// "openaiChunk.choices[0].delta" becomes "choices[0].delta".
func trimRoot(ns string) string {
	_, rest, ok := strings.Cut(ns, ".")
	if !ok {
		return ""
	}
	return rest
}

func joinPath(field, path string) string {
	switch {
	case field == "":
		return path
	case path == "":
		return field
	default:
		return field + "." + path
	}
}
