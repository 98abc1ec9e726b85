// Package settings exposes the external key-value settings store to the core
// as a typed configuration provider. Values are resolved into a tagged
// variant at the provider boundary so consumers never cast by a stored type
// string.
package settings

import "context"

// Kind tags the concrete type carried by a Value.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindBool
)

// Value is a tagged-variant setting value.
type Value struct {
	kind Kind
	s    string
	i    int
	b    bool
}

func String(s string) Value { return Value{kind: KindString, s: s} }
func Int(i int) Value       { return Value{kind: KindInt, i: i} }
func Bool(b bool) Value     { return Value{kind: KindBool, b: b} }

func (v Value) Kind() Kind { return v.kind }

// StringOr returns the string payload or fallback when the kinds mismatch.
func (v Value) StringOr(fallback string) string {
	if v.kind != KindString {
		return fallback
	}
	return v.s
}

// IntOr returns the int payload or fallback when the kinds mismatch.
func (v Value) IntOr(fallback int) int {
	if v.kind != KindInt {
		return fallback
	}
	return v.i
}

// BoolOr returns the bool payload or fallback when the kinds mismatch.
func (v Value) BoolOr(fallback bool) bool {
	if v.kind != KindBool {
		return fallback
	}
	return v.b
}

// Provider resolves settings per call. Implementations must not cache on
// behalf of callers; invalidation happens by handing consumers a fresh
// provider or snapshot.
type Provider interface {
	Get(ctx context.Context, key string) (Value, bool)
}

// Static is an immutable snapshot provider, used for defaults and tests.
type Static map[string]Value

func (s Static) Get(_ context.Context, key string) (Value, bool) {
	v, ok := s[key]
	return v, ok
}
