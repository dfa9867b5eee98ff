package cache

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// KeySeparator delimits the namespace, shape, and hash segments of a key.
const KeySeparator = ":"

// KeyBuilder derives cache keys from a namespace, a read shape, and
// arbitrary key material. Implementations must be deterministic across
// processes: the same material always maps to the same key.
type KeyBuilder interface {
	BuildKey(namespace, shape string, material ...any) (string, error)
	Keyspace(namespace, shape string) string
}

// defaultKeyBuilder serializes key material with reflection-based rules and
// hashes the result with xxhash. Funcs and channels have no identity that
// survives a process restart, so they fail with ErrUnhashableKey instead of
// producing an unstable key.
type defaultKeyBuilder struct{}

// NewDefaultKeyBuilder creates the default key builder.
func NewDefaultKeyBuilder() KeyBuilder {
	return &defaultKeyBuilder{}
}

// Keyspace returns the common prefix of every key the builder produces for
// the namespace/shape pair. Useful for pattern-scanning invalidation.
func (b *defaultKeyBuilder) Keyspace(namespace, shape string) string {
	return namespace + KeySeparator + shape + KeySeparator
}

// BuildKey serializes the material deterministically and returns
// "<namespace>:<shape>:<hash>".
func (b *defaultKeyBuilder) BuildKey(namespace, shape string, material ...any) (string, error) {
	parts := make([]string, 0, len(material))
	for _, m := range material {
		s, err := b.serializeValue(m)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	sum := xxhash.Sum64String(strings.Join(parts, KeySeparator))
	return fmt.Sprintf("%s%016x", b.Keyspace(namespace, shape), sum), nil
}

// serializeValue handles individual value serialization based on type.
func (b *defaultKeyBuilder) serializeValue(v any) (string, error) {
	if v == nil {
		return "nil", nil
	}

	rv := reflect.ValueOf(v)
	rt := reflect.TypeOf(v)

	switch rt.Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		// Pointer formatting would be stable only within one process.
		return "", ErrUnhashableKey

	case reflect.Ptr:
		if rv.IsNil() {
			return "nil", nil
		}
		return b.serializeValue(rv.Elem().Interface())

	case reflect.Slice:
		if rv.IsNil() {
			return "slice:nil", nil
		}
		return b.serializeSeq("slice", rv)

	case reflect.Array:
		return b.serializeSeq("array", rv)

	case reflect.Map:
		if rv.IsNil() {
			return "map:nil", nil
		}
		return b.serializeMap(rv)

	case reflect.Struct:
		return b.serializeStruct(rv, rt)

	case reflect.Interface:
		if rv.IsNil() {
			return "nil", nil
		}
		return b.serializeValue(rv.Elem().Interface())
	}

	if isBasicKind(rt.Kind()) {
		return fmt.Sprintf("%v", v), nil
	}

	return b.jsonFallback(v)
}

// serializeSeq handles slices and arrays recursively.
func (b *defaultKeyBuilder) serializeSeq(label string, rv reflect.Value) (string, error) {
	length := rv.Len()
	parts := make([]string, length)
	for i := 0; i < length; i++ {
		s, err := b.serializeValue(rv.Index(i).Interface())
		if err != nil {
			return "", err
		}
		parts[i] = s
	}
	return fmt.Sprintf("%s[%d]:{%s}", label, length, strings.Join(parts, ",")), nil
}

// serializeMap sorts the serialized keys so output is deterministic.
func (b *defaultKeyBuilder) serializeMap(rv reflect.Value) (string, error) {
	keys := rv.MapKeys()
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		ks, err := b.serializeValue(k.Interface())
		if err != nil {
			return "", err
		}
		vs, err := b.serializeValue(rv.MapIndex(k).Interface())
		if err != nil {
			return "", err
		}
		pairs = append(pairs, ks+"="+vs)
	}
	sort.Strings(pairs)
	return fmt.Sprintf("map[%d]:{%s}", len(pairs), strings.Join(pairs, ",")), nil
}

// serializeStruct walks exported fields in declaration order.
func (b *defaultKeyBuilder) serializeStruct(rv reflect.Value, rt reflect.Type) (string, error) {
	parts := make([]string, 0, rv.NumField())
	for i := 0; i < rv.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		fv := rv.Field(i)
		if !fv.CanInterface() {
			continue
		}
		s, err := b.serializeValue(fv.Interface())
		if err != nil {
			return "", err
		}
		parts = append(parts, field.Name+":"+s)
	}
	return fmt.Sprintf("struct:{%s}", strings.Join(parts, ",")), nil
}

func isBasicKind(kind reflect.Kind) bool {
	switch kind {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64,
		reflect.Complex64, reflect.Complex128,
		reflect.String:
		return true
	default:
		return false
	}
}

// jsonFallback serializes types the switch above does not cover.
func (b *defaultKeyBuilder) jsonFallback(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", ErrUnhashableKey
	}
	return "json:" + string(data), nil
}
