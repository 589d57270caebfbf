package require

import (
	"fmt"
	"reflect"

	"github.com/vk/wirecell/internal/scope"
)

// Op is a single derived-value modifier. Apply receives the value resolved
// so far and returns the derived value, or the missing sentinel when the
// extraction fails.
type Op interface {
	Apply(o any) any
	String() string
}

type attrOp struct {
	name string
}

func (op *attrOp) Apply(o any) any {
	if o == scope.Missing || o == nil {
		return scope.Missing
	}
	rv := reflect.ValueOf(o)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return scope.Missing
		}
		rv = rv.Elem()
	}
	if rv.Kind() == reflect.Struct {
		if f := rv.FieldByName(op.name); f.IsValid() && f.CanInterface() {
			return f.Interface()
		}
	}
	// Fall back to a niladic method on the original value.
	if m := reflect.ValueOf(o).MethodByName(op.name); m.IsValid() {
		if m.Type().NumIn() == 0 && m.Type().NumOut() == 1 {
			return m.Call(nil)[0].Interface()
		}
	}
	return scope.Missing
}

func (op *attrOp) String() string { return "." + op.name }

type itemOp struct {
	key any
}

func (op *itemOp) Apply(o any) any {
	if o == scope.Missing || o == nil {
		return scope.Missing
	}
	rv := reflect.ValueOf(o)
	switch rv.Kind() {
	case reflect.Map:
		kv := reflect.ValueOf(op.key)
		if !kv.Type().AssignableTo(rv.Type().Key()) {
			return scope.Missing
		}
		v := rv.MapIndex(kv)
		if !v.IsValid() {
			return scope.Missing
		}
		return v.Interface()
	case reflect.Slice, reflect.Array:
		i, ok := op.key.(int)
		if !ok || i < 0 || i >= rv.Len() {
			return scope.Missing
		}
		return rv.Index(i).Interface()
	default:
		return scope.Missing
	}
}

func (op *itemOp) String() string { return fmt.Sprintf("[%#v]", op.key) }
