package providerconfig

import (
	"fmt"
	"maps"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

const regionConfigKey = "region_config"

// Parse reads a provider document. Top-level keys are attribute names and the
// optional region_config key maps region names to attribute blocks, which are
// registered as region overrides in document order. Unknown attribute names
// are recorded and reported by Validate instead of failing the parse.
func Parse(data []byte) (*Config, error) {
	cfg := New()

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return cfg, nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: line %d: expected a mapping", ErrInvalidDocument, root.Line)
	}

	known := AttributeNames()
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]

		if key.Value == regionConfigKey {
			if err := cfg.parseRegions(value, known); err != nil {
				return nil, err
			}
			continue
		}

		if !slices.Contains(known, key.Value) {
			cfg.detected = append(cfg.detected, key.Value)
			continue
		}

		var v any
		if err := value.Decode(&v); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidDocument, value.Line, err)
		}
		if err := cfg.applyAttribute(key.Value, v); err != nil {
			return nil, fmt.Errorf("line %d: %w", value.Line, err)
		}
	}

	return cfg, nil
}

func (c *Config) parseRegions(node *yaml.Node, known []string) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("%w: line %d: %s must be a mapping", ErrInvalidDocument, node.Line, regionConfigKey)
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		region, block := node.Content[i].Value, node.Content[i+1]

		attrs := map[string]any{}
		if block.Kind != yaml.ScalarNode || block.Tag != "!!null" {
			if err := block.Decode(&attrs); err != nil {
				return fmt.Errorf("%w: line %d: region %q: %v", ErrInvalidDocument, block.Line, region, err)
			}
		}

		for _, name := range slices.Sorted(maps.Keys(attrs)) {
			if !slices.Contains(known, name) {
				c.detected = append(c.detected, region+"."+name)
				delete(attrs, name)
			}
		}

		if err := c.AddRegionOverride(region, SetFields(attrs)); err != nil {
			return fmt.Errorf("line %d: %w", block.Line, err)
		}
	}
	return nil
}

// LoadFile parses the provider document at path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read provider document %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse provider document %s: %w", path, err)
	}
	return cfg, nil
}

// LoadFiles parses each document and merges them left to right onto base, so
// later files win. base may be nil.
func LoadFiles(base *Config, paths ...string) (*Config, error) {
	if base == nil {
		base = New()
	}
	out := base
	for _, path := range paths {
		layer, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		out = out.Merge(layer)
	}
	return out, nil
}
