// Package providerconfig holds the Fusion provider configuration: a layered
// set of attributes whose "never configured" state is tracked separately from
// an explicit empty value, per-region override blocks compiled on Finalize,
// and a field-level Merge used to stack configuration layers.
//
// A typical lifecycle:
//
//	cfg := providerconfig.New()
//	cfg.AccessKeyID = providerconfig.Of("AKIA...")
//	cfg.SecretAccessKey = providerconfig.Of("...")
//	_ = cfg.OverrideRegion("us-west-2", map[string]any{"ami": "ami-1"})
//	if err := cfg.Finalize(credentials.OSEnvironment{}); err != nil {
//	    return err
//	}
//	west, _ := cfg.RegionConfig("us-west-2")
package providerconfig
