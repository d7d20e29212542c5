package credentials

import "os"

// Environment variable names consulted during resolution.
const (
	EnvDefaultRegion         = "FUSION_DEFAULT_REGION"
	EnvAccessKeyID           = "FUSION_ACCESS_KEY_ID"
	EnvSecretAccessKey       = "FUSION_SECRET_ACCESS_KEY"
	EnvSessionToken          = "FUSION_SESSION_TOKEN"
	EnvConfigFile            = "FUSION_CONFIG_FILE"
	EnvSharedCredentialsFile = "FUSION_SHARED_CREDENTIALS_FILE"
	EnvHome                  = "HOME"
)

// Environment is a read-only view of process environment variables.
type Environment interface {
	Getenv(key string) string
}

// OSEnvironment reads from the real process environment.
type OSEnvironment struct{}

// Getenv implements Environment.
func (OSEnvironment) Getenv(key string) string {
	return os.Getenv(key)
}

// MapEnvironment serves variables from a fixed map, primarily for tests.
type MapEnvironment map[string]string

// Getenv implements Environment.
func (m MapEnvironment) Getenv(key string) string {
	return m[key]
}
