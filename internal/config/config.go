// Package config loads compression configuration documents.
//
// A document lists algorithm entries under "compression", either as a
// list or as a single object. Each entry names its algorithm under
// "algorithm"; every other key is passed to the algorithm as a parameter:
//
//	compression:
//	  - algorithm: quantization
//	    bits: 8
//	    initializer:
//	      range:
//	        num_init_steps: 10
//	  - algorithm: magnitude_sparsity
//	    sparsity_target: 0.5
//	checkpoint:
//	  prefixes: ["module.", "compressed."]
//	  strict: true
//
// Parameter values are not validated here; the algorithm builders do that
// when the model is wrapped.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/born-ml/compress/internal/compression"
	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Format is a document encoding.
type Format string

// Supported formats.
const (
	YAML Format = "yaml"
	JSON Format = "json"
)

const algorithmKey = "algorithm"

// ErrInvalidDocument reports a document whose structure cannot be read.
var ErrInvalidDocument = errors.New("invalid configuration document")

// Checkpoint holds checkpoint matching settings. Nil fields were not set.
type Checkpoint struct {
	Prefixes []string `yaml:"prefixes" json:"prefixes"`
	Strict   *bool    `yaml:"strict" json:"strict"`
}

// Document is a decoded configuration document.
type Document struct {
	Algorithms []compression.AlgorithmConfig
	Checkpoint Checkpoint
}

type rawDocument struct {
	Compression any        `yaml:"compression" json:"compression"`
	Checkpoint  Checkpoint `yaml:"checkpoint" json:"checkpoint"`
}

// FormatOf returns the format implied by a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML, nil
	case ".json":
		return JSON, nil
	default:
		return "", fmt.Errorf("%w: unsupported extension %q", ErrInvalidDocument, filepath.Ext(path))
	}
}

// Load reads and parses the document at path.
func Load(path string) (*Document, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	//nolint:gosec // G304: configuration path comes from the user
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	doc, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Parse decodes a document.
func Parse(data []byte, format Format) (*Document, error) {
	var raw rawDocument
	switch format {
	case YAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
	case JSON:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
	default:
		return nil, fmt.Errorf("%w: unknown format %q", ErrInvalidDocument, format)
	}

	entries, err := entryList(raw.Compression)
	if err != nil {
		return nil, err
	}
	doc := &Document{Checkpoint: raw.Checkpoint}
	for i, e := range entries {
		ac, err := algorithmEntry(e)
		if err != nil {
			return nil, fmt.Errorf("compression entry %d: %w", i, err)
		}
		doc.Algorithms = append(doc.Algorithms, ac)
	}
	return doc, nil
}

// Config builds the in-memory configuration. Duplicate algorithm names
// are rejected here.
func (d *Document) Config() (*compression.Config, error) {
	return compression.NewConfig(d.Algorithms...)
}

// StrictOr returns the configured strictness, or def when unset.
func (c Checkpoint) StrictOr(def bool) bool {
	if c.Strict == nil {
		return def
	}
	return *c.Strict
}

func entryList(v any) ([]map[string]any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return []map[string]any{t}, nil
	case []any:
		out := make([]map[string]any, len(t))
		for i, item := range t {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: compression entry %d is %T, want object", ErrInvalidDocument, i, item)
			}
			out[i] = m
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: compression is %T, want list or object", ErrInvalidDocument, v)
	}
}

func algorithmEntry(m map[string]any) (compression.AlgorithmConfig, error) {
	name, ok := m[algorithmKey].(string)
	if !ok || name == "" {
		return compression.AlgorithmConfig{}, fmt.Errorf("%w: missing %q", ErrInvalidDocument, algorithmKey)
	}
	params := make(compression.Params, len(m)-1)
	for k, v := range m {
		if k != algorithmKey {
			params[k] = normalize(v)
		}
	}
	return compression.AlgorithmConfig{Name: name, Params: params}, nil
}

// normalize converts decoder-specific shapes (map[any]any from nested
// YAML nodes) into the shapes Params expects.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = normalize(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[fmt.Sprint(k)] = normalize(item)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalize(item)
		}
		return out
	default:
		return v
	}
}
