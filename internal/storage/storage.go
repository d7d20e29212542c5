package storage

import (
	"errors"
	"slices"
	"sync"

	"github.com/eugenenazirov/vagrant-fusion/internal/providerconfig"
)

var (
	// ErrNoConfig indicates no provider configuration has been stored yet.
	ErrNoConfig = errors.New("no provider configuration loaded")
	// ErrNotFinalized indicates an attempt to store a configuration that was never finalized.
	ErrNotFinalized = errors.New("provider configuration must be finalized before it is stored")
)

// Storage provides access to the active provider configuration.
type Storage interface {
	GetConfig() (*providerconfig.Config, error)
	SetConfig(cfg *providerconfig.Config, sources ...string) error
	Sources() []string
}

// MemoryStorage keeps the active configuration in memory and guards access
// with a RWMutex. Stored configurations are finalized and never mutated, so
// readers share them without copying.
type MemoryStorage struct {
	mu      sync.RWMutex
	cfg     *providerconfig.Config
	sources []string
}

// NewMemoryStorage returns an empty store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// GetConfig returns the active configuration.
func (s *MemoryStorage) GetConfig() (*providerconfig.Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.cfg == nil {
		return nil, ErrNoConfig
	}
	return s.cfg, nil
}

// SetConfig swaps in a finalized configuration loaded from sources.
func (s *MemoryStorage) SetConfig(cfg *providerconfig.Config, sources ...string) error {
	if cfg == nil || !cfg.Finalized() {
		return ErrNotFinalized
	}

	s.mu.Lock()
	s.cfg = cfg
	s.sources = slices.Clone(sources)
	s.mu.Unlock()

	return nil
}

// Sources returns a copy of the document paths the active configuration came from.
func (s *MemoryStorage) Sources() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.sources)
}
