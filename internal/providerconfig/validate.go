package providerconfig

import (
	"fmt"
	"strings"
)

// ValidationCategory is the category every provider validation message is
// reported under.
const ValidationCategory = "Fusion Provider"

const (
	msgMissingCredentials = "Missing credentials in profile %q under %s: access key ID, secret access key and region are required"
	msgRegionRequired     = "A region must be specified via \"region\""
	msgAccessKeyRequired  = "An access key ID must be specified via \"access_key_id\""
	msgSecretKeyRequired  = "A secret access key is required via \"secret_access_key\""
	msgSubnetRequired     = "If you assign a public IP address to an instance in a VPC, you must specify a subnet via \"subnet_id\""
	msgAMIRequired        = "An AMI must be configured via \"ami\" (region: %s)"
	msgUnknownAttributes  = "The following settings shouldn't exist: %s"
)

// ValidationErrors maps a category to its messages in check order.
type ValidationErrors map[string][]string

// Empty reports whether no category holds a message.
func (v ValidationErrors) Empty() bool {
	for _, msgs := range v {
		if len(msgs) > 0 {
			return false
		}
	}
	return true
}

// Messages returns the messages of category.
func (v ValidationErrors) Messages(category string) []string {
	return v[category]
}

func (v ValidationErrors) String() string {
	var b strings.Builder
	for category, msgs := range v {
		for _, msg := range msgs {
			fmt.Fprintf(&b, "%s: %s\n", category, msg)
		}
	}
	return b.String()
}

// Validate checks a finalized configuration and collects every problem found.
// The returned error is non-nil only when the configuration is not finalized.
func (c *Config) Validate() (ValidationErrors, error) {
	if !c.finalized {
		return nil, ErrNotFinalized
	}

	errs := []string{}
	if len(c.detected) > 0 {
		errs = append(errs, fmt.Sprintf(msgUnknownAttributes, strings.Join(c.detected, ", ")))
	}

	if profile, ok := c.FusionProfile.Get(); ok {
		if c.AccessKeyID.IsNull() || c.SecretAccessKey.IsNull() || c.Region.IsNull() {
			errs = append(errs, fmt.Sprintf(msgMissingCredentials, profile, c.FusionDir.Or("")))
		}
	}

	region, ok := c.Region.Get()
	if !ok || region == "" {
		errs = append(errs, msgRegionRequired)
	}

	regionCfg, err := c.RegionConfig(region)
	if err != nil {
		return nil, err
	}

	if !regionCfg.UseIAMProfile.Or(false) {
		if !regionCfg.AccessKeyID.IsSet() {
			errs = append(errs, msgAccessKeyRequired)
		}
		if !regionCfg.SecretAccessKey.IsSet() {
			errs = append(errs, msgSecretKeyRequired)
		}
	}

	if regionCfg.AssociatePublicIP.Or(false) && !regionCfg.SubnetID.IsSet() {
		errs = append(errs, msgSubnetRequired)
	}

	if !regionCfg.AMI.IsSet() {
		errs = append(errs, fmt.Sprintf(msgAMIRequired, region))
	}

	return ValidationErrors{ValidationCategory: errs}, nil
}
