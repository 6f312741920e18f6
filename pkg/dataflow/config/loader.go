package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFormat is returned for files whose extension is not
// .yaml, .yml, .json or .hcl.
var ErrUnsupportedFormat = errors.New("unsupported pipeline file format")

// LoadOption configures how pipeline files are loaded.
type LoadOption func(*loadOptions)

type loadOptions struct {
	env     map[string]string
	lookup  LookupFunc
	missing MissingAction
}

// WithEnv resolves variables from env instead of the process environment.
func WithEnv(env map[string]string) LoadOption {
	return func(o *loadOptions) {
		o.env = env
		o.lookup = func(name string) (string, bool) {
			v, ok := env[name]
			return v, ok
		}
	}
}

// WithMissing sets how undefined ${NAME} variables are handled in YAML and
// JSON files. HCL files always reject undefined env attributes.
//
// Default: MissingKeep
func WithMissing(action MissingAction) LoadOption {
	return func(o *loadOptions) {
		o.missing = action
	}
}

func applyLoadOptions(opts []LoadOption) loadOptions {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// LoadFile loads a pipeline spec, auto-detecting format by extension.
func LoadFile(path string, opts ...LoadOption) (*PipelineSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipeline file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return ParseYAML(data, opts...)
	case ".json":
		return ParseJSON(data, opts...)
	case ".hcl":
		return ParseHCL(data, filepath.Base(path), opts...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// ParseYAML parses a YAML pipeline spec. Unknown fields are rejected.
func ParseYAML(data []byte, opts ...LoadOption) (*PipelineSpec, error) {
	var spec PipelineSpec
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return finish(&spec, applyLoadOptions(opts))
}

// ParseJSON parses a JSON pipeline spec. Unknown fields are rejected.
func ParseJSON(data []byte, opts ...LoadOption) (*PipelineSpec, error) {
	var spec PipelineSpec
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	return finish(&spec, applyLoadOptions(opts))
}

func finish(spec *PipelineSpec, o loadOptions) (*PipelineSpec, error) {
	exp := newExpander(o)
	exp.spec(spec)
	if err := exp.err(); err != nil {
		return nil, err
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return spec, nil
}
