package etsy

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Payload is a decoded marketplace JSON object. Lookup helpers tolerate
// missing keys anywhere along a nested path: absence yields the zero value,
// never a panic.
type Payload map[string]any

// Get walks a nested path and returns the value found, or nil if any key
// along the way is missing or not an object.
func (p Payload) Get(path ...string) any {
	var cur any = map[string]any(p)
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = m[key]
		if !ok {
			return nil
		}
	}
	return cur
}

// Object returns the nested object at path, or nil.
func (p Payload) Object(path ...string) Payload {
	if m, ok := p.Get(path...).(map[string]any); ok {
		return Payload(m)
	}
	return nil
}

// Objects returns the array of objects at path, or nil.
func (p Payload) Objects(path ...string) []Payload {
	raw, ok := p.Get(path...).([]any)
	if !ok {
		return nil
	}
	out := make([]Payload, 0, len(raw))
	for _, el := range raw {
		if m, ok := el.(map[string]any); ok {
			out = append(out, Payload(m))
		}
	}
	return out
}

// String returns the string at path, or "".
func (p Payload) String(path ...string) string {
	if s, ok := p.Get(path...).(string); ok {
		return s
	}
	return ""
}

// Int64 returns the integer at path, or 0. JSON numbers decode as float64.
func (p Payload) Int64(path ...string) int64 {
	switch v := p.Get(path...).(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}

// Int returns the integer at path, or 0.
func (p Payload) Int(path ...string) int {
	return int(p.Int64(path...))
}

// Bool returns the boolean at path, or false.
func (p Payload) Bool(path ...string) bool {
	if b, ok := p.Get(path...).(bool); ok {
		return b
	}
	return false
}

// Time returns the unix-epoch-seconds timestamp at path as UTC, or the zero
// time when absent.
func (p Payload) Time(path ...string) time.Time {
	sec := p.Int64(path...)
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

// TimePtr is Time but nil when absent, for nullable columns.
func (p Payload) TimePtr(path ...string) *time.Time {
	t := p.Time(path...)
	if t.IsZero() {
		return nil
	}
	return &t
}

// Money resolves the marketplace's {amount, divisor, currency_code} triple
// at path to a decimal plus its currency code.
func (p Payload) Money(path ...string) (decimal.Decimal, string) {
	obj := p.Object(path...)
	if obj == nil {
		return decimal.Zero, ""
	}
	amount := obj.Int64("amount")
	divisor := obj.Int64("divisor")
	if divisor == 0 {
		divisor = 100
	}
	return decimal.New(amount, 0).Div(decimal.New(divisor, 0)), obj.String("currency_code")
}

// ListDelimiter separates elements of string-array fields flattened into a
// single text column. The marketplace forbids '|' in tags, materials and
// SKUs, so it can never collide with element content.
const ListDelimiter = "|"

// EncodeList flattens a string array into one delimited string.
func EncodeList(values []string) string {
	return strings.Join(values, ListDelimiter)
}

// DecodeList splits a delimited string back into its elements. An empty
// input yields a nil slice, not [""].
func DecodeList(encoded string) []string {
	if encoded == "" {
		return nil
	}
	return strings.Split(encoded, ListDelimiter)
}

// StringList returns the string array at path encoded per EncodeList.
func (p Payload) StringList(path ...string) string {
	raw, ok := p.Get(path...).([]any)
	if !ok {
		return ""
	}
	values := make([]string, 0, len(raw))
	for _, el := range raw {
		if s, ok := el.(string); ok {
			values = append(values, s)
		}
	}
	return EncodeList(values)
}
