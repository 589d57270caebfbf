package hcl

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/vk/wirecell/internal/ctxlog"
)

// Decoder implements config.Decoder for HCL argument expressions.
type Decoder struct{}

// NewDecoder creates a new HCL argument decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// DecodeArguments evaluates each step argument expression and populates the
// matching field of target, a pointer to a handler's input struct. Fields
// are matched by their `wire` tag, falling back to the field name; fields
// with no matching argument keep their zero value.
func (d *Decoder) DecodeArguments(ctx context.Context, target any, args map[string]hcl.Expression) error {
	logger := ctxlog.FromContext(ctx)

	structVal := reflect.ValueOf(target)
	if structVal.Kind() != reflect.Ptr || structVal.IsNil() {
		return fmt.Errorf("decode target must be a non-nil pointer, got %T", target)
	}
	structVal = structVal.Elem()
	if structVal.Kind() != reflect.Struct {
		return fmt.Errorf("decode target must point to a struct, got %T", target)
	}
	structType := structVal.Type()

	for i := 0; i < structType.NumField(); i++ {
		field := structType.Field(i)
		fieldVal := structVal.Field(i)
		if !fieldVal.CanSet() {
			continue
		}

		lookupName := field.Name
		if tag := field.Tag.Get("wire"); tag != "" {
			lookupName = strings.Split(tag, ",")[0]
		}

		expr, provided := args[lookupName]
		if !provided {
			continue
		}

		// Manifests are evaluated statically; no variables are in scope.
		val, diags := expr.Value(nil)
		if diags.HasErrors() {
			return fmt.Errorf("failed to evaluate argument %q: %w", lookupName, diags)
		}
		if err := decodeValue(val, fieldVal.Addr().Interface()); err != nil {
			return fmt.Errorf("failed to decode argument %q: %w", lookupName, err)
		}
		logger.Debug("Decoded argument.", "name", lookupName, "type", field.Type.String())
	}
	return nil
}

// decodeValue converts a cty.Value into the Go value behind the pointer,
// applying cty's implicit conversions where the types differ.
func decodeValue(val cty.Value, goVal any) error {
	impliedType, err := gocty.ImpliedType(reflect.ValueOf(goVal).Elem().Interface())
	if err != nil {
		return gocty.FromCtyValue(val, goVal)
	}
	converted, err := convert.Convert(val, impliedType)
	if err != nil {
		return fmt.Errorf("cannot convert %s to %s: %w",
			val.Type().FriendlyName(), impliedType.FriendlyName(), err)
	}
	return gocty.FromCtyValue(converted, goVal)
}
