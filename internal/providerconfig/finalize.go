package providerconfig

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/eugenenazirov/vagrant-fusion/internal/credentials"
)

// Defaults applied by Finalize to attributes that are still unset.
const (
	DefaultRegion                 = "us-east-1"
	DefaultInstanceType           = "m3.medium"
	DefaultTenancy                = "default"
	DefaultInstanceReadyTimeout   = 120 * time.Second
	DefaultInstanceCheckInterval  = 2 * time.Second
	DefaultInstancePackageTimeout = 600 * time.Second
)

// CredentialResolver looks up credentials for a profile.
type CredentialResolver interface {
	Resolve(profile, dir string) (credentials.Credentials, error)
}

// FinalizeOption configures Finalize.
type FinalizeOption func(*finalizeOptions)

type finalizeOptions struct {
	logger   *zap.Logger
	resolver CredentialResolver
}

// WithLogger sets the logger used while finalizing.
func WithLogger(logger *zap.Logger) FinalizeOption {
	return func(o *finalizeOptions) {
		o.logger = logger
	}
}

// WithResolver overrides the credential resolver (primarily for tests).
func WithResolver(resolver CredentialResolver) FinalizeOption {
	return func(o *finalizeOptions) {
		o.resolver = resolver
	}
}

// Finalize resolves credentials, applies defaults to every unset attribute
// and, on a base configuration, compiles every registered region. env supplies
// the credential environment variables and HOME.
//
// Finalize must run exactly once and is not safe for concurrent use.
func (c *Config) Finalize(env credentials.Environment, opts ...FinalizeOption) error {
	if c.finalized {
		return ErrAlreadyFinalized
	}
	if env == nil {
		env = credentials.OSEnvironment{}
	}

	o := finalizeOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.resolver == nil {
		o.resolver = credentials.NewResolver(env, o.logger)
	}

	if err := c.resolveCredentials(env, o.resolver); err != nil {
		return err
	}
	c.applyDefaults()

	if !c.regionSpecific {
		if err := c.compileRegions(env, opts); err != nil {
			return err
		}
	}

	c.finalized = true
	return nil
}

func (c *Config) resolveCredentials(env credentials.Environment, resolver CredentialResolver) error {
	if !c.AccessKeyID.IsUnset() && !c.SecretAccessKey.IsUnset() {
		c.FusionProfile.Clear()
		c.FusionDir.Clear()
		return nil
	}

	c.FusionProfile.defaultTo(credentials.DefaultProfile)
	c.FusionDir.defaultTo(defaultFusionDir(env))

	profile := c.FusionProfile.Or("")
	dir := c.FusionDir.Or("")
	creds, err := resolver.Resolve(profile, dir)
	if err != nil {
		return fmt.Errorf("resolve credentials for profile %q: %w", profile, err)
	}

	// The key pair is taken from one source or not at all.
	if c.AccessKeyID.IsUnset() && c.SecretAccessKey.IsUnset() {
		assignResolved(&c.AccessKeyID, creds.AccessKeyID)
		assignResolved(&c.SecretAccessKey, creds.SecretAccessKey)
	}
	if c.Region.IsUnset() && creds.Region != "" {
		c.Region.Set(creds.Region)
	}
	if c.SessionToken.IsUnset() {
		assignResolved(&c.SessionToken, creds.SessionToken)
	}
	return nil
}

// defaultFusionDir is $HOME/.fusion/. An empty HOME yields /.fusion/, never a
// path relative to the working directory.
func defaultFusionDir(env credentials.Environment) string {
	home := strings.TrimRight(env.Getenv(credentials.EnvHome), string(filepath.Separator))
	return home + string(filepath.Separator) + ".fusion" + string(filepath.Separator)
}

func assignResolved(f *Field[string], value string) {
	if value == "" {
		f.Clear()
		return
	}
	f.Set(value)
}

// applyDefaults gives every attribute still unset its default or null.
func (c *Config) applyDefaults() {
	c.AccessKeyID.defaultNull()
	c.SecretAccessKey.defaultNull()
	c.SessionToken.defaultNull()
	c.Region.defaultTo(DefaultRegion)
	c.FusionProfile.defaultNull()
	c.FusionDir.defaultNull()
	c.UseIAMProfile.defaultTo(false)
	c.Endpoint.defaultNull()
	c.Version.defaultNull()

	c.AMI.defaultNull()
	c.AvailabilityZone.defaultNull()
	c.InstanceType.defaultTo(DefaultInstanceType)
	c.InstanceReadyTimeout.defaultTo(DefaultInstanceReadyTimeout)
	c.InstanceCheckInterval.defaultTo(DefaultInstanceCheckInterval)
	c.InstancePackageTimeout.defaultTo(DefaultInstancePackageTimeout)
	c.KeypairName.defaultNull()
	c.KernelID.defaultNull()
	c.UserData.defaultNull()
	c.TerminateOnShutdown.defaultTo(false)
	c.Monitoring.defaultTo(false)
	c.EBSOptimized.defaultTo(false)
	c.Tenancy.defaultTo(DefaultTenancy)
	c.IAMInstanceProfileARN.defaultNull()
	c.IAMInstanceProfileName.defaultNull()

	c.PrivateIPAddress.defaultNull()
	c.ElasticIP.defaultNull()
	c.SecurityGroups.defaultTo([]string{})
	c.SubnetID.defaultNull()
	c.SourceDestCheck.defaultNull()
	c.AssociatePublicIP.defaultTo(false)
	c.SSHHostAttribute.defaultNull()

	c.ELB.defaultNull()
	c.UnregisterELBFromAZ.defaultTo(true)

	if c.Tags == nil {
		c.Tags = map[string]string{}
	}
	if c.PackageTags == nil {
		c.PackageTags = map[string]string{}
	}
}

func (c *Config) compileRegions(env credentials.Environment, opts []FinalizeOption) error {
	for _, region := range c.regionOrder {
		compiled := NewRegionSpecific().Merge(c)
		for _, o := range c.overrides[region] {
			if err := applyOverride(compiled, o); err != nil {
				return fmt.Errorf("compile region %q: %w", region, err)
			}
		}
		compiled.Region.Set(region)

		if err := compiled.Finalize(env, opts...); err != nil {
			return fmt.Errorf("compile region %q: %w", region, err)
		}
		c.compiled[region] = compiled
	}
	return nil
}

// RegionConfig returns the compiled configuration for name, or c itself when
// no override was registered for name. In that case the returned Region may
// differ from name.
func (c *Config) RegionConfig(name string) (*Config, error) {
	if !c.finalized {
		return nil, ErrNotFinalized
	}
	if compiled, ok := c.compiled[name]; ok {
		return compiled, nil
	}
	return c, nil
}
