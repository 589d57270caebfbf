// Package hcl is the HCL-specific implementation of the config interfaces.
package hcl

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/vk/wirecell/internal/config"
	"github.com/vk/wirecell/internal/ctxlog"
)

// Loader implements config.Loader for .hcl manifest files.
type Loader struct{}

// NewLoader creates a new HCL manifest loader.
func NewLoader() *Loader {
	return &Loader{}
}

type stepArguments struct {
	Body hcl.Body `hcl:",remain"`
}

type stepBlock struct {
	Handler   string         `hcl:"handler,label"`
	Name      string         `hcl:"name,label"`
	Order     string         `hcl:"order,optional"`
	Arguments *stepArguments `hcl:"arguments,block"`
}

// fileRoot decodes all recognised top-level blocks from any manifest file.
type fileRoot struct {
	Steps  []*stepBlock `hcl:"step,block"`
	Remain hcl.Body     `hcl:",remain"`
}

// Load parses every .hcl file reachable from the given paths and merges the
// discovered steps, in file order, into one pipeline.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Pipeline, config.Decoder, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	files, err := findManifestFiles(paths)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("Discovered manifest files.", "count", len(files))

	pipeline := &config.Pipeline{}
	parser := hclparse.NewParser()

	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, nil, fmt.Errorf("failed to parse manifest %s: %w", file, diags)
		}

		var root fileRoot
		diags = gohcl.DecodeBody(hclFile.Body, nil, &root)
		if diags.HasErrors() {
			return nil, nil, fmt.Errorf("failed to decode manifest %s: %w", file, diags)
		}

		for _, step := range root.Steps {
			translated, err := translateStep(step)
			if err != nil {
				return nil, nil, fmt.Errorf("in manifest %s: %w", file, err)
			}
			pipeline.Steps = append(pipeline.Steps, translated)
		}
	}

	logger.Debug("HCL loading complete.", "steps", len(pipeline.Steps))
	return pipeline, NewDecoder(), nil
}

func translateStep(s *stepBlock) (*config.Step, error) {
	switch s.Order {
	case "", "first", "last":
	default:
		return nil, fmt.Errorf("step %q: invalid order %q, must be 'first' or 'last'", s.Name, s.Order)
	}
	return &config.Step{
		Handler:   s.Handler,
		Name:      s.Name,
		Order:     s.Order,
		Arguments: extractBodyAttributes(s.Arguments),
	}, nil
}

func extractBodyAttributes(block *stepArguments) map[string]hcl.Expression {
	if block == nil || block.Body == nil {
		return nil
	}
	attrs, _ := block.Body.JustAttributes()
	if len(attrs) == 0 {
		return nil
	}
	exprMap := make(map[string]hcl.Expression, len(attrs))
	for name, attr := range attrs {
		exprMap[name] = attr.Expr
	}
	return exprMap
}

// findManifestFiles walks all given paths and returns a flat, deduplicated
// list of .hcl files. A configured path that does not exist is skipped.
func findManifestFiles(paths []string) ([]string, error) {
	var all []string
	seen := make(map[string]struct{})

	add := func(p string) {
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			all = append(all, p)
		}
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("error accessing path %s: %w", path, err)
		}

		if !info.IsDir() {
			if filepath.Ext(path) == ".hcl" {
				add(path)
			}
			continue
		}
		err = filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !info.IsDir() && filepath.Ext(p) == ".hcl" {
				add(p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return all, nil
}
