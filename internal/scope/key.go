package scope

import (
	"reflect"
	"strconv"
)

// Key identifies a resource in a scope. A key is either a type key or a
// label key; the zero Key is invalid.
type Key struct {
	typ   reflect.Type
	label string
}

// Type returns a type key for T.
func Type[T any]() Key {
	return Key{typ: reflect.TypeOf((*T)(nil)).Elem()}
}

// TypeOf returns a type key for the dynamic type of v.
func TypeOf(v any) Key {
	return Key{typ: reflect.TypeOf(v)}
}

// KeyFor returns a type key for an already reflected type.
func KeyFor(t reflect.Type) Key {
	return Key{typ: t}
}

// Label returns a label key.
func Label(label string) Key {
	return Key{label: label}
}

// ReflectType returns the key's type, or nil for a label key.
func (k Key) ReflectType() reflect.Type { return k.typ }

// LabelName returns the key's label, or "" for a type key.
func (k Key) LabelName() string { return k.label }

// IsZero reports whether the key carries neither a type nor a label.
func (k Key) IsZero() bool { return k.typ == nil && k.label == "" }

func (k Key) String() string {
	if k.typ != nil {
		return k.typ.String()
	}
	return strconv.Quote(k.label)
}
