package declare

import (
	"reflect"
	"runtime"
)

// FuncName resolves a human-readable name for a callable, used in errors
// and runner step names.
func FuncName(fn any) string {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		return reflect.TypeOf(fn).String()
	}
	return funcName(v)
}

func fnForPC(v reflect.Value) string {
	f := runtime.FuncForPC(v.Pointer())
	if f == nil {
		return ""
	}
	return f.Name()
}
