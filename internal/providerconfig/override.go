package providerconfig

import (
	"fmt"
	"maps"
	"net"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Override is one action replayed against a fresh region configuration when
// that region is compiled. It is either SetFields or Mutate.
type Override interface {
	isOverride()
}

// SetFields assigns attributes by name, as in a provider document.
type SetFields map[string]any

// Mutate changes the region configuration directly.
type Mutate func(*Config)

func (SetFields) isOverride() {}
func (Mutate) isOverride()    {}

func applyOverride(c *Config, o Override) error {
	switch o := o.(type) {
	case SetFields:
		return c.Apply(o)
	case Mutate:
		if o != nil {
			o(c)
		}
		return nil
	default:
		return fmt.Errorf("unsupported override %T", o)
	}
}

// AddRegionOverride registers overrides for region. They run in registration
// order when the base configuration is finalized. Registering a region with no
// overrides still compiles it. SetFields overrides are checked against the
// attribute table up front so that Finalize cannot fail on them.
func (c *Config) AddRegionOverride(region string, overrides ...Override) error {
	for _, o := range overrides {
		if attrs, ok := o.(SetFields); ok {
			if err := New().Apply(attrs); err != nil {
				return fmt.Errorf("region %q: %w", region, err)
			}
		}
	}

	if c.overrides == nil {
		c.overrides = map[string][]Override{}
	}
	if _, ok := c.overrides[region]; !ok {
		c.regionOrder = append(c.regionOrder, region)
	}
	c.overrides[region] = append(c.overrides[region], overrides...)
	return nil
}

// OverrideRegion registers attributes to set on region.
func (c *Config) OverrideRegion(region string, attrs map[string]any) error {
	return c.AddRegionOverride(region, SetFields(maps.Clone(attrs)))
}

// OverrideRegionFunc registers a mutation applied to region.
func (c *Config) OverrideRegionFunc(region string, fn func(*Config)) {
	// Mutate overrides need no up-front check.
	_ = c.AddRegionOverride(region, Mutate(fn))
}

// Apply assigns attributes by document name. A nil value clears an attribute.
func (c *Config) Apply(attrs map[string]any) error {
	names := slices.Sorted(maps.Keys(attrs))
	for _, name := range names {
		if err := c.applyAttribute(name, attrs[name]); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) applyAttribute(name string, value any) error {
	switch name {
	case "tags":
		tags, err := toStringMap(value)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		c.Tags = tags
		return nil
	case "package_tags":
		tags, err := toStringMap(value)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		c.PackageTags = tags
		return nil
	case "block_device_mapping":
		mappings, err := toBlockDeviceMappings(value)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		c.BlockDeviceMapping = mappings
		return nil
	case "elastic_ip":
		value = normalizeElasticIP(value)
	}

	field, ok := c.attribute(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAttribute, name)
	}
	if err := field.assign(value); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// normalizeElasticIP maps true to an allocation request and false to none.
func normalizeElasticIP(value any) any {
	switch v := value.(type) {
	case bool:
		if v {
			return "true"
		}
		return nil
	case string:
		if ip := net.ParseIP(strings.TrimSpace(v)); ip != nil {
			return ip.String()
		}
	}
	return value
}

func toStringMap(value any) (map[string]string, error) {
	switch m := value.(type) {
	case nil:
		return map[string]string{}, nil
	case map[string]string:
		return maps.Clone(m), nil
	case map[string]any:
		out := make(map[string]string, len(m))
		for k, v := range m {
			switch v.(type) {
			case map[string]any, []any:
				return nil, fmt.Errorf("%w: tag %q must be a scalar", ErrInvalidAttribute, k)
			case nil:
				out[k] = ""
			default:
				out[k] = fmt.Sprint(v)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: expected mapping, got %v", ErrInvalidAttribute, value)
	}
}

func toBlockDeviceMappings(value any) ([]BlockDeviceMapping, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []BlockDeviceMapping:
		return slices.Clone(v), nil
	case BlockDeviceMapping:
		return []BlockDeviceMapping{v}, nil
	}

	// Loosely typed document values round-trip through YAML.
	raw, err := yaml.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAttribute, err)
	}
	var out []BlockDeviceMapping
	if err := yaml.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: expected list of block device mappings: %v", ErrInvalidAttribute, err)
	}
	return out, nil
}
