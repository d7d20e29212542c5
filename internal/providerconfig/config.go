package providerconfig

import (
	"maps"
	"slices"
	"time"
)

// BlockDeviceMapping describes one block device attached at launch.
type BlockDeviceMapping struct {
	DeviceName          string `yaml:"device_name" json:"device_name"`
	VirtualName         string `yaml:"virtual_name,omitempty" json:"virtual_name,omitempty"`
	SnapshotID          string `yaml:"snapshot_id,omitempty" json:"snapshot_id,omitempty"`
	VolumeSize          int    `yaml:"volume_size,omitempty" json:"volume_size,omitempty"`
	VolumeType          string `yaml:"volume_type,omitempty" json:"volume_type,omitempty"`
	IOPS                int    `yaml:"iops,omitempty" json:"iops,omitempty"`
	DeleteOnTermination bool   `yaml:"delete_on_termination,omitempty" json:"delete_on_termination,omitempty"`
	Encrypted           bool   `yaml:"encrypted,omitempty" json:"encrypted,omitempty"`
}

// Config is the provider configuration for one layer or one compiled region.
type Config struct {
	// Credentials. When both keys are unset at Finalize they are resolved
	// from the environment or the profile files.
	AccessKeyID     Field[string]
	SecretAccessKey Field[string]
	SessionToken    Field[string]
	Region          Field[string]
	FusionProfile   Field[string]
	FusionDir       Field[string]
	UseIAMProfile   Field[bool]
	Endpoint        Field[string]
	Version         Field[string]

	// Instance.
	AMI                    Field[string]
	AvailabilityZone       Field[string]
	InstanceType           Field[string]
	InstanceReadyTimeout   Field[time.Duration]
	InstanceCheckInterval  Field[time.Duration]
	InstancePackageTimeout Field[time.Duration]
	KeypairName            Field[string]
	KernelID               Field[string]
	UserData               Field[string]
	TerminateOnShutdown    Field[bool]
	Monitoring             Field[bool]
	EBSOptimized           Field[bool]
	Tenancy                Field[string]
	IAMInstanceProfileARN  Field[string]
	IAMInstanceProfileName Field[string]

	// Networking.
	PrivateIPAddress  Field[string]
	ElasticIP         Field[string]
	SecurityGroups    Field[[]string]
	SubnetID          Field[string]
	SourceDestCheck   Field[bool]
	AssociatePublicIP Field[bool]
	SSHHostAttribute  Field[[]string]

	// Load balancer.
	ELB                 Field[string]
	UnregisterELBFromAZ Field[bool]

	// Collections are never unset; layers are unioned on Merge.
	Tags               map[string]string
	PackageTags        map[string]string
	BlockDeviceMapping []BlockDeviceMapping

	overrides      map[string][]Override
	regionOrder    []string
	compiled       map[string]*Config
	finalized      bool
	regionSpecific bool
	detected       []string
}

// New returns an empty base configuration with every attribute unset.
func New() *Config {
	return newConfig(false)
}

// NewRegionSpecific returns an empty configuration for a single region. Region
// specific configurations never compile region overrides of their own.
func NewRegionSpecific() *Config {
	return newConfig(true)
}

func newConfig(regionSpecific bool) *Config {
	return &Config{
		Tags:           map[string]string{},
		PackageTags:    map[string]string{},
		overrides:      map[string][]Override{},
		compiled:       map[string]*Config{},
		regionSpecific: regionSpecific,
	}
}

// SetSecurityGroups replaces the security groups.
func (c *Config) SetSecurityGroups(groups ...string) {
	c.SecurityGroups.Set(slices.Clone(groups))
}

// Finalized reports whether Finalize has completed.
func (c *Config) Finalized() bool {
	return c.finalized
}

// RegionSpecific reports whether the configuration belongs to a single region.
func (c *Config) RegionSpecific() bool {
	return c.regionSpecific
}

// Regions returns the region names with registered overrides in registration order.
func (c *Config) Regions() []string {
	return slices.Clone(c.regionOrder)
}

type namedAttribute struct {
	name  string
	field attribute
}

// attributes lists every tri-state attribute under its document name.
func (c *Config) attributes() []namedAttribute {
	return []namedAttribute{
		{"access_key_id", &c.AccessKeyID},
		{"ami", &c.AMI},
		{"availability_zone", &c.AvailabilityZone},
		{"instance_check_interval", &c.InstanceCheckInterval},
		{"instance_ready_timeout", &c.InstanceReadyTimeout},
		{"instance_package_timeout", &c.InstancePackageTimeout},
		{"instance_type", &c.InstanceType},
		{"keypair_name", &c.KeypairName},
		{"private_ip_address", &c.PrivateIPAddress},
		{"region", &c.Region},
		{"endpoint", &c.Endpoint},
		{"version", &c.Version},
		{"secret_access_key", &c.SecretAccessKey},
		{"session_token", &c.SessionToken},
		{"security_groups", &c.SecurityGroups},
		{"subnet_id", &c.SubnetID},
		{"user_data", &c.UserData},
		{"use_iam_profile", &c.UseIAMProfile},
		{"elastic_ip", &c.ElasticIP},
		{"iam_instance_profile_arn", &c.IAMInstanceProfileARN},
		{"iam_instance_profile_name", &c.IAMInstanceProfileName},
		{"terminate_on_shutdown", &c.TerminateOnShutdown},
		{"ssh_host_attribute", &c.SSHHostAttribute},
		{"monitoring", &c.Monitoring},
		{"ebs_optimized", &c.EBSOptimized},
		{"source_dest_check", &c.SourceDestCheck},
		{"associate_public_ip", &c.AssociatePublicIP},
		{"elb", &c.ELB},
		{"unregister_elb_from_az", &c.UnregisterELBFromAZ},
		{"kernel_id", &c.KernelID},
		{"tenancy", &c.Tenancy},
		{"fusion_dir", &c.FusionDir},
		{"fusion_profile", &c.FusionProfile},
	}
}

func (c *Config) attribute(name string) (attribute, bool) {
	for _, a := range c.attributes() {
		if a.name == name {
			return a.field, true
		}
	}
	return nil, false
}

// AttributeNames returns every attribute name accepted by Apply.
func AttributeNames() []string {
	attrs := New().attributes()
	names := make([]string, 0, len(attrs)+3)
	for _, a := range attrs {
		names = append(names, a.name)
	}
	names = append(names, "tags", "package_tags", "block_device_mapping")
	slices.Sort(names)
	return names
}

// UnsetAttributes returns the names of attributes that are still unset.
func (c *Config) UnsetAttributes() []string {
	var names []string
	for _, a := range c.attributes() {
		if a.field.IsUnset() {
			names = append(names, a.name)
		}
	}
	return names
}

// View returns a display form of the configuration keyed by attribute name.
// Unset attributes are omitted and null ones map to nil. Secrets are masked
// unless revealSecrets is true.
func (c *Config) View(revealSecrets bool) map[string]any {
	out := make(map[string]any, len(c.attributes())+3)
	for _, a := range c.attributes() {
		if a.field.IsUnset() {
			continue
		}
		value := a.field.display()
		if !revealSecrets && value != nil && isSecret(a.name) {
			value = "********"
		}
		out[a.name] = value
	}
	out["tags"] = maps.Clone(c.Tags)
	out["package_tags"] = maps.Clone(c.PackageTags)
	out["block_device_mapping"] = append([]BlockDeviceMapping{}, c.BlockDeviceMapping...)
	return out
}

func isSecret(name string) bool {
	return name == "secret_access_key" || name == "session_token"
}
