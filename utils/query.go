package utils

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const upperhex = "0123456789ABCDEF"

// EncodeURIComponent escapes s the way ECMAScript's encodeURIComponent does.
func EncodeURIComponent(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if shouldKeep(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&15])
	}
	return b.String()
}

func shouldKeep(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '-', '_', '.', '!', '~', '*', '\'', '(', ')':
		return true
	}
	return false
}

// BuildQueryString renders params as the canonical string that gets signed.
// Keys are sorted; slices are written as ["a","b"].
func BuildQueryString(params Params) string {
	if len(params) == 0 {
		return ""
	}
	pairs := make([]string, 0, len(params))
	for _, k := range SortedKeys(params) {
		pairs = append(pairs, k+"="+EncodeURIComponent(canonicalValue(params[k])))
	}
	return strings.Join(pairs, "&")
}

func canonicalValue(v interface{}) string {
	if isNil(v) {
		return ""
	}
	if _, ok := v.([]byte); ok {
		return FormatValue(v)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]string, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			items[i] = FormatValue(rv.Index(i).Interface())
		}
		return `["` + strings.Join(items, `","`) + `"]`
	case reflect.Map, reflect.Struct:
		if _, ok := v.(decimal.Decimal); ok {
			return FormatValue(v)
		}
		if data, err := Json.Marshal(v); err == nil {
			return string(data)
		}
	}
	return FormatValue(v)
}

// FormatValue string form of a primitive parameter value
func FormatValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case decimal.Decimal:
		return t.String()
	case *decimal.Decimal:
		return t.String()
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

type searchParam struct {
	key   string
	value string
}

// SearchParams is an ordered multi-valued query, the Go side of URLSearchParams.
type SearchParams struct {
	entries []searchParam
}

func NewSearchParams() *SearchParams {
	return &SearchParams{}
}

func (s *SearchParams) Has(key string) bool {
	for _, e := range s.entries {
		if e.key == key {
			return true
		}
	}
	return false
}

// Get first value for key
func (s *SearchParams) Get(key string) string {
	for _, e := range s.entries {
		if e.key == key {
			return e.value
		}
	}
	return ""
}

// GetAll every value for key, in insertion order
func (s *SearchParams) GetAll(key string) []string {
	var out []string
	for _, e := range s.entries {
		if e.key == key {
			out = append(out, e.value)
		}
	}
	return out
}

// Set replaces the first value for key and drops the others, or appends when key is new.
func (s *SearchParams) Set(key, value string) {
	found := false
	kept := s.entries[:0]
	for _, e := range s.entries {
		if e.key == key {
			if found {
				continue
			}
			found = true
			e.value = value
		}
		kept = append(kept, e)
	}
	s.entries = kept
	if !found {
		s.entries = append(s.entries, searchParam{key: key, value: value})
	}
}

func (s *SearchParams) Append(key, value string) {
	s.entries = append(s.entries, searchParam{key: key, value: value})
}

func (s *SearchParams) Len() int {
	return len(s.entries)
}

// Encode writes the params in insertion order using EncodeURIComponent, so that a flat
// query matches the string produced by BuildQueryString byte for byte.
func (s *SearchParams) Encode() string {
	pairs := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		pairs = append(pairs, EncodeURIComponent(e.key)+"="+EncodeURIComponent(e.value))
	}
	return strings.Join(pairs, "&")
}

// SetFlattenedQueryParams flattens value into sp under key.
//
// Maps recurse with dot-joined keys. A slice under a non-empty key is written once as its
// JSON text; at the top level (empty key) each element is flattened on its own, which is how
// batch inputs given as a list of objects are expanded. Primitive values are appended when the
// key is already present.
func SetFlattenedQueryParams(sp *SearchParams, value interface{}, key string) {
	if isNil(value) {
		return
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Map:
		keys := make([]string, 0, rv.Len())
		values := make(map[string]interface{}, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			k := fmt.Sprintf("%v", iter.Key().Interface())
			keys = append(keys, k)
			values[k] = iter.Value().Interface()
		}
		sort.Strings(keys)
		for _, k := range keys {
			child := k
			if key != "" {
				child = key + "." + k
			}
			SetFlattenedQueryParams(sp, values[k], child)
		}
		return
	case reflect.Slice, reflect.Array:
		if _, ok := value.([]byte); ok {
			break
		}
		if key == "" {
			for i := 0; i < rv.Len(); i++ {
				SetFlattenedQueryParams(sp, rv.Index(i).Interface(), "")
			}
			return
		}
		data, err := Json.Marshal(value)
		if err != nil {
			return
		}
		setOrAppend(sp, key, string(data))
		return
	}
	if key == "" {
		return
	}
	setOrAppend(sp, key, FormatValue(value))
}

func setOrAppend(sp *SearchParams, key, value string) {
	if sp.Has(key) {
		sp.Append(key, value)
		return
	}
	sp.Set(key, value)
}

// SetSearchParams flattens every object into sp.
func SetSearchParams(sp *SearchParams, objects ...Params) {
	items := make([]interface{}, len(objects))
	for i, o := range objects {
		items[i] = o
	}
	SetFlattenedQueryParams(sp, items, "")
}

func isNil(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
