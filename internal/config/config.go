// Package config defines the format-agnostic pipeline model along with the
// interfaces (Loader, Decoder) for reading it from concrete manifest
// formats. The model is the single source of truth for the app package;
// format-specific implementations live in separate packages.
package config

import (
	"context"

	"github.com/hashicorp/hcl/v2"
)

// Pipeline is the unified representation of a user's pipeline manifest.
type Pipeline struct {
	Steps []*Step
}

// Step is the format-agnostic representation of a `step` block.
type Step struct {
	Handler   string
	Name      string
	Order     string
	Arguments map[string]hcl.Expression
}

// Loader is the interface for a format-specific manifest loader.
type Loader interface {
	// Load reads manifests from the given paths, translates them into the
	// format-agnostic model, and returns a matching Decoder.
	Load(ctx context.Context, paths ...string) (*Pipeline, Decoder, error)
}

// Decoder binds a step's raw argument expressions to a handler's input
// struct. It bridges the manifest format and the Go types used by modules.
type Decoder interface {
	DecodeArguments(ctx context.Context, target any, args map[string]hcl.Expression) error
}
