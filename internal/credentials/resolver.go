package credentials

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/ini.v1"
)

// DefaultProfile is the profile used when none is configured.
const DefaultProfile = "default"

// INI keys read from the credentials file.
const (
	keyRegion          = "region"
	keyAccessKeyID     = "fusion_access_key_id"
	keySecretAccessKey = "fusion_secret_access_key"
	keySessionToken    = "fusion_session_token"
)

// Source names where resolved credentials came from.
type Source string

const (
	SourceNone        Source = "none"
	SourceEnvironment Source = "environment"
	SourceFiles       Source = "files"
)

// Credentials holds a resolved credential set. An empty string means absent.
type Credentials struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Source          Source
}

// HasKeys reports whether both the access key and the secret key are present.
func (c Credentials) HasKeys() bool {
	return c.AccessKeyID != "" && c.SecretAccessKey != ""
}

// Resolver looks up credentials from the environment and profile files.
type Resolver struct {
	env    Environment
	logger *zap.Logger
}

// NewResolver creates a Resolver reading variables from env.
func NewResolver(env Environment, logger *zap.Logger) *Resolver {
	if env == nil {
		env = OSEnvironment{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{env: env, logger: logger}
}

// Resolve returns the credentials for profile, searching dir for the default
// config and credentials files. It returns an error only when a file exists
// but cannot be read or parsed; missing sources resolve to empty Credentials.
func (r *Resolver) Resolve(profile, dir string) (Credentials, error) {
	if profile == "" {
		profile = DefaultProfile
	}

	creds := r.fromEnvironment()
	if creds.HasKeys() {
		r.logger.Debug("credentials resolved", zap.String("source", string(SourceEnvironment)))
		return creds, nil
	}

	configPath, credentialsPath := r.filePaths(dir)
	if !fileExists(configPath) || !fileExists(credentialsPath) {
		r.logger.Debug("no credential files found",
			zap.String("config", configPath),
			zap.String("credentials", credentialsPath),
		)
		return Credentials{Source: SourceNone}, nil
	}

	creds, err := readFiles(profile, configPath, credentialsPath)
	if err != nil {
		return Credentials{}, err
	}
	if !creds.HasKeys() {
		// Half a key pair is no key pair, and its region goes with it.
		r.logger.Debug("incomplete key pair in credential files",
			zap.String("profile", profile),
			zap.String("credentials", credentialsPath),
		)
		return Credentials{Source: SourceNone}, nil
	}
	r.logger.Debug("credentials resolved",
		zap.String("source", string(creds.Source)),
		zap.String("profile", profile),
		zap.String("config", configPath),
	)
	return creds, nil
}

func (r *Resolver) fromEnvironment() Credentials {
	return Credentials{
		Region:          strings.TrimSpace(r.env.Getenv(EnvDefaultRegion)),
		AccessKeyID:     strings.TrimSpace(r.env.Getenv(EnvAccessKeyID)),
		SecretAccessKey: strings.TrimSpace(r.env.Getenv(EnvSecretAccessKey)),
		SessionToken:    strings.TrimSpace(r.env.Getenv(EnvSessionToken)),
		Source:          SourceEnvironment,
	}
}

// filePaths returns the override paths when both variables are set, else the
// default files inside dir.
func (r *Resolver) filePaths(dir string) (string, string) {
	configPath := r.env.Getenv(EnvConfigFile)
	credentialsPath := r.env.Getenv(EnvSharedCredentialsFile)
	if configPath == "" || credentialsPath == "" {
		return filepath.Join(dir, "config"), filepath.Join(dir, "credentials")
	}
	return configPath, credentialsPath
}

func readFiles(profile, configPath, credentialsPath string) (Credentials, error) {
	configFile, err := loadINI(configPath)
	if err != nil {
		return Credentials{}, err
	}
	credentialsFile, err := loadINI(credentialsPath)
	if err != nil {
		return Credentials{}, err
	}

	configSection := profile
	if profile != DefaultProfile {
		configSection = "profile " + profile
	}

	return Credentials{
		Region:          lookup(configFile, configSection, keyRegion),
		AccessKeyID:     lookup(credentialsFile, profile, keyAccessKeyID),
		SecretAccessKey: lookup(credentialsFile, profile, keySecretAccessKey),
		SessionToken:    lookup(credentialsFile, profile, keySessionToken),
		Source:          SourceFiles,
	}, nil
}

func loadINI(path string) (*ini.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &FileError{Path: path, Err: fmt.Errorf("read file: %w", err)}
	}
	file, err := ini.Load(data)
	if err != nil {
		return nil, &FileError{Path: path, Err: fmt.Errorf("%w: %v", ErrMalformedFile, err)}
	}
	return file, nil
}

func lookup(file *ini.File, section, key string) string {
	sec, err := file.GetSection(section)
	if err != nil {
		return ""
	}
	if !sec.HasKey(key) {
		return ""
	}
	return strings.TrimSpace(sec.Key(key).String())
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
