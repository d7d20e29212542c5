package providerconfig

import "errors"

var (
	// ErrNotFinalized is returned by accessors that require a finalized configuration.
	ErrNotFinalized = errors.New("configuration must be finalized before calling this method")
	// ErrAlreadyFinalized is returned when Finalize runs twice on the same configuration.
	ErrAlreadyFinalized = errors.New("configuration is already finalized")
	// ErrUnknownAttribute is returned when an attribute name is not recognised.
	ErrUnknownAttribute = errors.New("unknown attribute")
	// ErrInvalidAttribute is returned when an attribute value has the wrong type.
	ErrInvalidAttribute = errors.New("invalid attribute value")
	// ErrInvalidDocument is returned when a provider document is not a YAML mapping.
	ErrInvalidDocument = errors.New("invalid provider document")
)
