package cache

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const (
	// KeySeparator terminates the operation name and every argument in a cache key.
	KeySeparator = "|"
	// NullSentinel stands in for nil arguments.
	NullSentinel = "(null)"
)

// KeySerializerFunc adapts a plain function to KeySerializer.
type KeySerializerFunc func(method string, args ...any) string

// SerializeKey calls f.
func (f KeySerializerFunc) SerializeKey(method string, args ...any) string {
	return f(method, args...)
}

// DeriveKey builds the default cache key for a call: the operation name followed by
// the text form of each argument, every segment terminated by KeySeparator.
//
//	DeriveKey("FetchUser", 42)      // "FetchUser|42|"
//	DeriveKey("Find", nil, "x")     // "Find|(null)|x|"
//
// Keys are deterministic within a process. An argument whose text contains
// KeySeparator or NullSentinel can collide with a different argument tuple; use
// NewLengthPrefixedKeySerializer or NewHashedKeySerializer when that matters.
func DeriveKey(method string, args ...any) string {
	return defaultSerializer.SerializeKey(method, args...)
}

var defaultSerializer = &defaultKeySerializer{}

// defaultKeySerializer implements KeySerializer using reflection-based serialization.
// It handles function pointers using %p formatting, recursive slices, and falls back to JSON
// for complex types while ensuring deterministic key generation across runs.
type defaultKeySerializer struct{}

// NewDefaultKeySerializer creates a new instance of the default key serializer.
func NewDefaultKeySerializer() KeySerializer {
	return &defaultKeySerializer{}
}

// SerializeKey builds a cache key from method name and args.
func (s *defaultKeySerializer) SerializeKey(method string, args ...any) string {
	var b strings.Builder
	b.WriteString(method)
	b.WriteString(KeySeparator)

	for _, arg := range args {
		b.WriteString(serializeValue(arg))
		b.WriteString(KeySeparator)
	}

	return b.String()
}

// lengthPrefixedKeySerializer writes every argument as <len>:<text> so that no
// argument text can be confused with a separator.
type lengthPrefixedKeySerializer struct{}

// NewLengthPrefixedKeySerializer returns a serializer whose keys never collide for
// distinct argument text tuples.
func NewLengthPrefixedKeySerializer() KeySerializer {
	return &lengthPrefixedKeySerializer{}
}

func (s *lengthPrefixedKeySerializer) SerializeKey(method string, args ...any) string {
	var b strings.Builder
	b.WriteString(method)
	b.WriteString(KeySeparator)
	writeLengthPrefixed(&b, args)
	return b.String()
}

func writeLengthPrefixed(b *strings.Builder, args []any) {
	for _, arg := range args {
		if arg == nil || isNilValue(reflect.ValueOf(arg)) {
			b.WriteString("-1:")
			continue
		}
		text := serializeValue(arg)
		b.WriteString(strconv.Itoa(len(text)))
		b.WriteByte(':')
		b.WriteString(text)
	}
}

// hashedKeySerializer keeps the readable method prefix and replaces the argument
// list with a fixed width xxhash digest.
type hashedKeySerializer struct{}

// NewHashedKeySerializer returns a serializer producing "method|<16 hex digits>"
// keys. Useful when arguments are large; prefix invalidation by method still works.
func NewHashedKeySerializer() KeySerializer {
	return &hashedKeySerializer{}
}

func (s *hashedKeySerializer) SerializeKey(method string, args ...any) string {
	var b strings.Builder
	writeLengthPrefixed(&b, args)
	return fmt.Sprintf("%s%s%016x", method, KeySeparator, xxhash.Sum64String(b.String()))
}

// serializeValue handles individual argument serialization based on type.
func serializeValue(v any) string {
	if v == nil {
		return NullSentinel
	}

	rv := reflect.ValueOf(v)
	rt := rv.Type()

	if isNilValue(rv) {
		return NullSentinel
	}

	switch tv := v.(type) {
	case fmt.Stringer:
		return tv.String()
	case error:
		return tv.Error()
	}

	switch rt.Kind() {
	case reflect.Func:
		return fmt.Sprintf("func:%p", v)
	case reflect.Chan:
		return fmt.Sprintf("chan:%p", v)
	case reflect.Ptr:
		return serializeValue(rv.Elem().Interface())
	case reflect.Slice:
		return serializeSeq("slice", rv)
	case reflect.Array:
		return serializeSeq("array", rv)
	case reflect.Map:
		return serializeMap(rv)
	case reflect.Struct:
		return serializeStruct(rv, rt)
	}

	if isBasicType(rt.Kind()) {
		return fmt.Sprintf("%v", v)
	}

	return jsonFallback(v)
}

func isNilValue(rv reflect.Value) bool {
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}

func serializeSeq(kind string, rv reflect.Value) string {
	length := rv.Len()
	parts := make([]string, length)

	for i := 0; i < length; i++ {
		parts[i] = serializeValue(rv.Index(i).Interface())
	}

	return fmt.Sprintf("%s[%d]:{%s}", kind, length, strings.Join(parts, ","))
}

// serializeMap renders map entries sorted by their serialized key.
func serializeMap(rv reflect.Value) string {
	pairs := make([]string, 0, rv.Len())

	iter := rv.MapRange()
	for iter.Next() {
		pairs = append(pairs, serializeValue(iter.Key().Interface())+"="+serializeValue(iter.Value().Interface()))
	}
	sort.Strings(pairs)

	return fmt.Sprintf("map[%d]:{%s}", len(pairs), strings.Join(pairs, ","))
}

func serializeStruct(rv reflect.Value, rt reflect.Type) string {
	numFields := rv.NumField()
	parts := make([]string, 0, numFields)

	for i := 0; i < numFields; i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}

		fieldValue := rv.Field(i)
		if !fieldValue.CanInterface() {
			continue
		}

		parts = append(parts, field.Name+":"+serializeValue(fieldValue.Interface()))
	}

	return fmt.Sprintf("struct:{%s}", strings.Join(parts, ","))
}

func isBasicType(kind reflect.Kind) bool {
	switch kind {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64,
		reflect.Complex64, reflect.Complex128,
		reflect.String:
		return true
	default:
		return false
	}
}

// jsonFallback provides JSON serialization as a last resort
func jsonFallback(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "fallback:" + reflect.TypeOf(v).String()
	}
	return "json:" + string(data)
}
