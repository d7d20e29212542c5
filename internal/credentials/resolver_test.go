package credentials

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap/zaptest"
)

const (
	testConfigFile = `[default]
region = eu-west-1

[profile staging]
region = ap-south-1
`
	testCredentialsFile = `[default]
fusion_access_key_id = file-key
fusion_secret_access_key = file-secret
fusion_session_token = file-token

[staging]
fusion_access_key_id = staging-key
fusion_secret_access_key = staging-secret
`
)

func writeFiles(t *testing.T, dir, config, credentials string) {
	t.Helper()

	if err := os.WriteFile(filepath.Join(dir, "config"), []byte(config), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "credentials"), []byte(credentials), 0o600); err != nil {
		t.Fatalf("write credentials: %v", err)
	}
}

func TestResolveFromEnvironmentSkipsFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFiles(t, dir, testConfigFile, testCredentialsFile)

	env := MapEnvironment{
		EnvAccessKeyID:     "env-key",
		EnvSecretAccessKey: "env-secret",
	}
	got, err := NewResolver(env, zaptest.NewLogger(t)).Resolve("default", dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := Credentials{
		AccessKeyID:     "env-key",
		SecretAccessKey: "env-secret",
		Source:          SourceEnvironment,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected credentials (-want +got):\n%s", diff)
	}
}

func TestResolveFromFiles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		profile string
		want    Credentials
	}{
		{
			name:    "DefaultProfile",
			profile: "default",
			want: Credentials{
				Region:          "eu-west-1",
				AccessKeyID:     "file-key",
				SecretAccessKey: "file-secret",
				SessionToken:    "file-token",
				Source:          SourceFiles,
			},
		},
		{
			name:    "EmptyProfileMeansDefault",
			profile: "",
			want: Credentials{
				Region:          "eu-west-1",
				AccessKeyID:     "file-key",
				SecretAccessKey: "file-secret",
				SessionToken:    "file-token",
				Source:          SourceFiles,
			},
		},
		{
			name:    "NamedProfileUsesProfileSection",
			profile: "staging",
			want: Credentials{
				Region:          "ap-south-1",
				AccessKeyID:     "staging-key",
				SecretAccessKey: "staging-secret",
				Source:          SourceFiles,
			},
		},
		{
			name:    "MissingProfile",
			profile: "nope",
			want:    Credentials{Source: SourceNone},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			writeFiles(t, dir, testConfigFile, testCredentialsFile)

			got, err := NewResolver(MapEnvironment{}, zaptest.NewLogger(t)).Resolve(tc.profile, dir)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("unexpected credentials (-want +got):\n%s", diff)
			}
		})
	}
}

func TestResolvePartialEnvironmentFallsBackToFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFiles(t, dir, testConfigFile, testCredentialsFile)

	env := MapEnvironment{
		EnvAccessKeyID:   "env-key",
		EnvDefaultRegion: "us-west-1",
	}
	got, err := NewResolver(env, nil).Resolve("default", dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.AccessKeyID != "file-key" || got.Region != "eu-west-1" {
		t.Fatalf("expected file values to replace partial environment, got %+v", got)
	}
}

func TestResolveHalfKeyPairInFilesYieldsNoKeys(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFiles(t, dir, testConfigFile, "[default]\nfusion_access_key_id = lonely\nfusion_session_token = tok\n")

	got, err := NewResolver(MapEnvironment{}, nil).Resolve("default", dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.AccessKeyID != "" || got.SecretAccessKey != "" || got.SessionToken != "" {
		t.Fatalf("expected no keys from a half key pair, got %+v", got)
	}
	if got.Region != "" || got.Source != SourceNone {
		t.Fatalf("expected no region from a half key pair, got %+v", got)
	}
}

func TestResolveMissingFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config"), []byte(testConfigFile), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	env := MapEnvironment{EnvDefaultRegion: "us-west-1"}
	for _, searchDir := range []string{dir, filepath.Join(dir, "does-not-exist")} {
		got, err := NewResolver(env, nil).Resolve("default", searchDir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if diff := cmp.Diff(Credentials{Source: SourceNone}, got); diff != "" {
			t.Fatalf("expected nothing resolved for %s (-want +got):\n%s", searchDir, diff)
		}
	}
}

func TestResolveEmptyValuesAreAbsent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFiles(t, dir, "[default]\nregion =\n", "[default]\nfusion_access_key_id = k\nfusion_secret_access_key = s\nfusion_session_token =\n")

	got, err := NewResolver(MapEnvironment{}, nil).Resolve("default", dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Region != "" || got.SessionToken != "" {
		t.Fatalf("expected empty values to be absent, got %+v", got)
	}
	if !got.HasKeys() {
		t.Fatalf("expected key pair, got %+v", got)
	}
}

func TestResolveOverridePathsRequireBothVariables(t *testing.T) {
	t.Parallel()

	overrideDir := t.TempDir()
	writeFiles(t, overrideDir, "[default]\nregion = override-region\n", "[default]\nfusion_access_key_id = ok\nfusion_secret_access_key = os\n")
	defaultDir := t.TempDir()
	writeFiles(t, defaultDir, testConfigFile, testCredentialsFile)

	both := MapEnvironment{
		EnvConfigFile:            filepath.Join(overrideDir, "config"),
		EnvSharedCredentialsFile: filepath.Join(overrideDir, "credentials"),
	}
	got, err := NewResolver(both, nil).Resolve("default", defaultDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.AccessKeyID != "ok" || got.Region != "override-region" {
		t.Fatalf("expected override files to be used, got %+v", got)
	}

	onlyOne := MapEnvironment{EnvConfigFile: filepath.Join(overrideDir, "config")}
	got, err = NewResolver(onlyOne, nil).Resolve("default", defaultDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.AccessKeyID != "file-key" {
		t.Fatalf("expected default files when one override is missing, got %+v", got)
	}
}

func TestResolveMalformedFileFails(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFiles(t, dir, testConfigFile, "[default]\nthis line has no delimiter\n")

	_, err := NewResolver(MapEnvironment{}, nil).Resolve("default", dir)
	if !errors.Is(err, ErrMalformedFile) {
		t.Fatalf("expected ErrMalformedFile, got %v", err)
	}
	var fileErr *FileError
	if !errors.As(err, &fileErr) {
		t.Fatalf("expected *FileError, got %T", err)
	}
	if fileErr.Path != filepath.Join(dir, "credentials") {
		t.Fatalf("unexpected path %q", fileErr.Path)
	}
}
