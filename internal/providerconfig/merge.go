package providerconfig

import (
	"maps"
	"slices"
)

// Merge layers other on top of c and returns the result as a new, unfinalized
// configuration. Neither operand is modified.
//
// Attributes set (or explicitly cleared) in other win; unset ones keep c's
// value. Region overrides run c's before other's. Tags and package tags are
// unioned with other winning conflicts, block device mappings are
// set-unioned in first-seen order, and the result is region specific if
// either operand is.
func (c *Config) Merge(other *Config) *Config {
	out := newConfig(c.regionSpecific || other.regionSpecific)

	outAttrs := out.attributes()
	selfAttrs := c.attributes()
	otherAttrs := other.attributes()
	for i := range outAttrs {
		outAttrs[i].field.mergeFrom(selfAttrs[i].field)
		outAttrs[i].field.mergeFrom(otherAttrs[i].field)
	}

	maps.Copy(out.Tags, c.Tags)
	maps.Copy(out.Tags, other.Tags)
	maps.Copy(out.PackageTags, c.PackageTags)
	maps.Copy(out.PackageTags, other.PackageTags)

	out.BlockDeviceMapping = unionMappings(c.BlockDeviceMapping, other.BlockDeviceMapping)

	for _, region := range c.regionOrder {
		out.regionOrder = append(out.regionOrder, region)
		out.overrides[region] = slices.Clone(c.overrides[region])
	}
	for _, region := range other.regionOrder {
		if _, ok := out.overrides[region]; !ok {
			out.regionOrder = append(out.regionOrder, region)
		}
		out.overrides[region] = append(out.overrides[region], other.overrides[region]...)
	}

	out.detected = append(slices.Clone(c.detected), other.detected...)
	return out
}

func unionMappings(lists ...[]BlockDeviceMapping) []BlockDeviceMapping {
	var out []BlockDeviceMapping
	for _, list := range lists {
		for _, m := range list {
			if !slices.Contains(out, m) {
				out = append(out, m)
			}
		}
	}
	return out
}
