package query

import (
	"regexp"
	"strings"
	"time"

	"github.com/skyhookdb/skyhook-go/pkg/object"
)

// FieldFormatter rewrites a domain field name into its wire spelling. It is
// applied to every field at compile time, including keys/include lists.
type FieldFormatter func(string) string

// FormatIdentity leaves field names untouched.
func FormatIdentity(s string) string { return s }

// reservedWire pins the server's built-in fields to their fixed wire names;
// formatters never restyle them.
var reservedWire = map[string]string{
	"created_at": "createdAt",
	"createdAt":  "createdAt",
	"updated_at": "updatedAt",
	"updatedAt":  "updatedAt",
	"object_id":  "objectId",
	"objectId":   "objectId",
}

// FormatCamelCase rewrites snake_case into camelCase ("play_count" ->
// "playCount").
func FormatCamelCase(s string) string {
	if wire, ok := reservedWire[s]; ok {
		return wire
	}
	return camelize(s, false)
}

// FormatPascalCase rewrites snake_case into CapitalizedCamel ("play_count"
// -> "PlayCount").
func FormatPascalCase(s string) string {
	if wire, ok := reservedWire[s]; ok {
		return wire
	}
	return camelize(s, true)
}

func camelize(s string, upperFirst bool) string {
	parts := strings.Split(s, "_")
	var b strings.Builder
	for i, p := range parts {
		if p == "" {
			continue
		}
		if i == 0 && !upperFirst {
			b.WriteString(p)
			continue
		}
		b.WriteString(object.Capitalize(p))
	}
	return b.String()
}

// formatValue normalizes a constraint value into its wire representation.
// The rules apply uniformly regardless of operator: times become date
// descriptors, records become pointers, regexps flatten to their pattern
// source, sub-queries compile to {where, className}, and slices are formatted
// element-wise.
func formatValue(v any, f FieldFormatter, opts compileOptions) (any, error) {
	switch val := v.(type) {
	case time.Time:
		return object.EncodeDate(val), nil
	case *time.Time:
		if val == nil {
			return nil, nil
		}
		return object.EncodeDate(*val), nil
	case object.Pointer:
		return val.Encode(), nil
	case *object.Pointer:
		if val == nil {
			return nil, nil
		}
		return val.Encode(), nil
	case *object.Record:
		if val == nil {
			return nil, nil
		}
		return val.Pointer().Encode(), nil
	case object.GeoPoint:
		return val.Encode(), nil
	case *regexp.Regexp:
		if val == nil {
			return nil, nil
		}
		return val.String(), nil
	case *Query:
		if val == nil {
			return nil, nil
		}
		where, err := val.CompileWhere(f)
		if err != nil {
			return nil, err
		}
		return map[string]any{"where": where, "className": val.collection}, nil
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			fe, err := formatValue(e, f, opts)
			if err != nil {
				return nil, err
			}
			out[i] = fe
		}
		return out, nil
	default:
		return v, nil
	}
}

// asList coerces a scalar into a single-element list; lists pass through.
func asList(v any) []any {
	switch val := v.(type) {
	case []any:
		return val
	case []string:
		out := make([]any, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out
	case []int:
		out := make([]any, len(val))
		for i, n := range val {
			out[i] = n
		}
		return out
	default:
		return []any{v}
	}
}
