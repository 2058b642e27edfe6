package resilience

import (
	"encoding/json"
	"fmt"
	"sort"
	"unicode/utf8"
)

// Ellipsis marks content dropped by BoundedCopy.
const Ellipsis = "..."

// BoundedCopy deep-copies value, spending at most limit characters on
// strings and map keys. Strings are cut at the budget, and once it is spent
// the remaining slice elements and map entries collapse into Ellipsis.
//
// Maps, slices and strings as produced by encoding/json are copied
// structurally. Numbers, booleans and nil are kept as is. Anything else is
// rendered with fmt and bounded as a string.
func BoundedCopy(value any, limit int) any {
	b := &budget{left: limit}
	return b.copy(value)
}

type budget struct {
	left int
}

func (b *budget) copy(value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		return b.str(v)
	case json.RawMessage:
		return b.str(string(v))
	case []byte:
		return b.str(string(v))
	case bool, float64, float32, int, int64, int32, uint, uint64, uint32, json.Number:
		b.spend(utf8.RuneCountInString(fmt.Sprint(v)))
		return v
	case []any:
		out := make([]any, 0, len(v))
		for _, el := range v {
			if b.left <= 0 {
				out = append(out, Ellipsis)
				break
			}
			out = append(out, b.copy(el))
		}
		return out
	case []string:
		out := make([]any, 0, len(v))
		for _, el := range v {
			if b.left <= 0 {
				out = append(out, Ellipsis)
				break
			}
			out = append(out, b.str(el))
		}
		return out
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		out := make(map[string]any, len(v))
		for i, k := range keys {
			if b.left <= 0 {
				out[Ellipsis] = fmt.Sprintf("%d more", len(keys)-i)
				break
			}
			b.spend(utf8.RuneCountInString(k))
			out[k] = b.copy(v[k])
		}
		return out
	default:
		return b.str(fmt.Sprintf("%+v", v))
	}
}

func (b *budget) str(s string) string {
	if b.left <= 0 {
		if s == "" {
			return s
		}
		return Ellipsis
	}

	n := utf8.RuneCountInString(s)
	if n <= b.left {
		b.left -= n
		return s
	}

	runes := []rune(s)
	cut := string(runes[:b.left]) + Ellipsis
	b.left = 0
	return cut
}

func (b *budget) spend(n int) {
	b.left -= n
	if b.left < 0 {
		b.left = 0
	}
}
