package declare

import (
	"fmt"
	"reflect"

	"github.com/vk/wirecell/internal/scope"
)

// Pair is one (key, value) produced by a returns policy.
type Pair struct {
	Key   scope.Key
	Value any
}

// Returns turns a callable's return value into zero or more resources to
// store. A nil result is ignored under every policy except Mapping.
type Returns interface {
	Process(result any) ([]Pair, error)
	String() string
}

type resultType struct{}

// ResultType is the default policy: store the result under its own runtime
// type.
func ResultType() Returns { return resultType{} }

func (resultType) Process(result any) ([]Pair, error) {
	if result == nil {
		return nil, nil
	}
	return []Pair{{Key: scope.TypeOf(result), Value: result}}, nil
}

func (resultType) String() string { return "ResultType()" }

type toKeys struct {
	keys []scope.Key
}

// To stores the result under explicit keys. With one key the whole result
// is stored; with several the result must be a slice or array whose
// elements are zipped with the keys.
func To(keys ...scope.Key) Returns { return toKeys{keys: keys} }

func (r toKeys) Process(result any) ([]Pair, error) {
	if len(r.keys) == 1 {
		if result == nil {
			return nil, nil
		}
		return []Pair{{Key: r.keys[0], Value: result}}, nil
	}
	rv := reflect.ValueOf(result)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, &scope.UsageError{
			Reason: fmt.Sprintf("%s needs a sequence result, got %T", r, result),
		}
	}
	if rv.Len() != len(r.keys) {
		return nil, &scope.UsageError{
			Reason: fmt.Sprintf("%s got %d values for %d keys", r, rv.Len(), len(r.keys)),
		}
	}
	var pairs []Pair
	for i, key := range r.keys {
		v := rv.Index(i).Interface()
		if v == nil {
			continue
		}
		pairs = append(pairs, Pair{Key: key, Value: v})
	}
	return pairs, nil
}

func (r toKeys) String() string {
	s := "To("
	for i, k := range r.keys {
		if i > 0 {
			s += ", "
		}
		s += k.String()
	}
	return s + ")"
}

type sequence struct{}

// Sequence stores each element of a returned slice or array under its own
// runtime type, skipping nils.
func Sequence() Returns { return sequence{} }

func (s sequence) Process(result any) ([]Pair, error) {
	if result == nil {
		return nil, nil
	}
	rv := reflect.ValueOf(result)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, &scope.UsageError{
			Reason: fmt.Sprintf("Sequence() needs a sequence result, got %T", result),
		}
	}
	var pairs []Pair
	for i := 0; i < rv.Len(); i++ {
		v := rv.Index(i).Interface()
		if v == nil {
			continue
		}
		pairs = append(pairs, Pair{Key: scope.TypeOf(v), Value: v})
	}
	return pairs, nil
}

func (sequence) String() string { return "Sequence()" }

type mapping struct{}

// Mapping uses a returned map directly as key to value pairs. Keys may be
// scope.Key or plain strings (treated as labels). Nil values are stored,
// not skipped; this is the one policy where absence is meaningful.
func Mapping() Returns { return mapping{} }

func (m mapping) Process(result any) ([]Pair, error) {
	switch mv := result.(type) {
	case map[scope.Key]any:
		pairs := make([]Pair, 0, len(mv))
		for k, v := range mv {
			pairs = append(pairs, Pair{Key: k, Value: v})
		}
		return pairs, nil
	case map[string]any:
		pairs := make([]Pair, 0, len(mv))
		for k, v := range mv {
			pairs = append(pairs, Pair{Key: scope.Label(k), Value: v})
		}
		return pairs, nil
	default:
		return nil, &scope.UsageError{
			Reason: fmt.Sprintf("Mapping() needs a map result, got %T", result),
		}
	}
}

func (mapping) String() string { return "Mapping()" }

type nothing struct{}

// Nothing ignores the return value entirely.
func Nothing() Returns { return nothing{} }

func (nothing) Process(result any) ([]Pair, error) { return nil, nil }

func (nothing) String() string { return "Nothing()" }
