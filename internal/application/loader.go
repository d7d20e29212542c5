package application

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/eugenenazirov/vagrant-fusion/internal/credentials"
	"github.com/eugenenazirov/vagrant-fusion/internal/providerconfig"
)

// ProviderLoader builds finalized provider configurations from a list of
// provider documents. It implements api.Loader.
type ProviderLoader struct {
	Files []string
	// Profile and Dir are applied when no document sets fusion_profile or
	// fusion_dir.
	Profile string
	Dir     string
	Env     credentials.Environment
	Logger  *zap.Logger
}

// Load merges the documents left to right, applies layers on top and
// finalizes the result.
func (l *ProviderLoader) Load(layers ...*providerconfig.Config) (*providerconfig.Config, error) {
	base := providerconfig.New()
	if l.Profile != "" {
		base.FusionProfile = providerconfig.Of(l.Profile)
	}
	if l.Dir != "" {
		base.FusionDir = providerconfig.Of(l.Dir)
	}

	cfg, err := providerconfig.LoadFiles(base, l.Files...)
	if err != nil {
		return nil, err
	}
	for _, layer := range layers {
		if layer != nil {
			cfg = cfg.Merge(layer)
		}
	}

	logger := l.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Finalize(l.Env, providerconfig.WithLogger(logger)); err != nil {
		return nil, fmt.Errorf("finalize provider configuration: %w", err)
	}
	return cfg, nil
}
