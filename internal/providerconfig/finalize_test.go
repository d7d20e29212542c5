package providerconfig

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap/zaptest"

	"github.com/eugenenazirov/vagrant-fusion/internal/credentials"
)

// emptyEnv returns an environment with no credentials and a HOME without
// profile files.
func emptyEnv(t *testing.T) credentials.MapEnvironment {
	t.Helper()
	return credentials.MapEnvironment{credentials.EnvHome: t.TempDir()}
}

type stubResolver struct {
	creds credentials.Credentials
	err   error
	calls int
}

func (s *stubResolver) Resolve(string, string) (credentials.Credentials, error) {
	s.calls++
	return s.creds, s.err
}

func TestFinalizeLeavesNoAttributeUnset(t *testing.T) {
	t.Parallel()

	cfg := New()
	if err := cfg.Finalize(emptyEnv(t), WithLogger(zaptest.NewLogger(t))); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	if unset := cfg.UnsetAttributes(); len(unset) != 0 {
		t.Fatalf("attributes left unset: %v", unset)
	}
	if !cfg.Finalized() {
		t.Fatal("expected finalized flag")
	}
}

func TestFinalizeDefaults(t *testing.T) {
	t.Parallel()

	cfg := New()
	if err := cfg.Finalize(emptyEnv(t)); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	checks := []struct {
		name string
		got  any
		want any
	}{
		{"region", cfg.Region.Or(""), DefaultRegion},
		{"instance_type", cfg.InstanceType.Or(""), DefaultInstanceType},
		{"instance_ready_timeout", cfg.InstanceReadyTimeout.Or(0), 120 * time.Second},
		{"instance_check_interval", cfg.InstanceCheckInterval.Or(0), 2 * time.Second},
		{"instance_package_timeout", cfg.InstancePackageTimeout.Or(0), 600 * time.Second},
		{"tenancy", cfg.Tenancy.Or(""), "default"},
		{"unregister_elb_from_az", cfg.UnregisterELBFromAZ.Or(false), true},
		{"use_iam_profile", cfg.UseIAMProfile.Or(true), false},
		{"associate_public_ip", cfg.AssociatePublicIP.Or(true), false},
		{"security_groups", cfg.SecurityGroups.Or(nil), []string{}},
		{"fusion_profile", cfg.FusionProfile.Or(""), credentials.DefaultProfile},
		{"ami_null", cfg.AMI.IsNull(), true},
		{"source_dest_check_null", cfg.SourceDestCheck.IsNull(), true},
		{"access_key_null", cfg.AccessKeyID.IsNull(), true},
		{"secret_key_null", cfg.SecretAccessKey.IsNull(), true},
	}
	for _, c := range checks {
		if diff := cmp.Diff(c.want, c.got); diff != "" {
			t.Errorf("%s mismatch (-want +got):\n%s", c.name, diff)
		}
	}
}

func TestFinalizeKeepsExplicitValues(t *testing.T) {
	t.Parallel()

	cfg := New()
	cfg.AccessKeyID = Of("K")
	cfg.SecretAccessKey = Of("S")
	cfg.Region = Of("eu-central-1")
	cfg.InstanceType = Of("t3.micro")
	cfg.InstanceReadyTimeout = Of(5 * time.Second)
	cfg.UnregisterELBFromAZ = Of(false)
	cfg.SecurityGroups = Null[[]string]()
	cfg.FusionProfile = Of("staging")

	resolver := &stubResolver{}
	if err := cfg.Finalize(emptyEnv(t), WithResolver(resolver)); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	if resolver.calls != 0 {
		t.Fatalf("resolver must not run with explicit keys, ran %d times", resolver.calls)
	}
	if got := cfg.Region.Or(""); got != "eu-central-1" {
		t.Fatalf("region overwritten: %q", got)
	}
	if got := cfg.InstanceType.Or(""); got != "t3.micro" {
		t.Fatalf("instance type overwritten: %q", got)
	}
	if got := cfg.InstanceReadyTimeout.Or(0); got != 5*time.Second {
		t.Fatalf("timeout overwritten: %s", got)
	}
	if cfg.UnregisterELBFromAZ.Or(true) {
		t.Fatal("unregister_elb_from_az overwritten")
	}
	if !cfg.SecurityGroups.IsNull() {
		t.Fatalf("explicit null overwritten: %s", cfg.SecurityGroups)
	}
	if !cfg.FusionProfile.IsNull() || !cfg.FusionDir.IsNull() {
		t.Fatalf("profile markers should be cleared, got %s / %s", cfg.FusionProfile, cfg.FusionDir)
	}
}

func TestFinalizeEnvironmentCredentialsWin(t *testing.T) {
	t.Parallel()

	home := t.TempDir()
	dir := filepath.Join(home, ".fusion")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeProfileFiles(t, dir, "file-key", "file-secret")

	env := credentials.MapEnvironment{
		credentials.EnvHome:            home,
		credentials.EnvAccessKeyID:     "env-key",
		credentials.EnvSecretAccessKey: "env-secret",
		credentials.EnvDefaultRegion:   "sa-east-1",
	}

	cfg := New()
	if err := cfg.Finalize(env); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	if got := cfg.AccessKeyID.Or(""); got != "env-key" {
		t.Fatalf("expected env key, got %q", got)
	}
	if got := cfg.SecretAccessKey.Or(""); got != "env-secret" {
		t.Fatalf("expected env secret, got %q", got)
	}
	if got := cfg.Region.Or(""); got != "sa-east-1" {
		t.Fatalf("expected env region, got %q", got)
	}
}

func TestFinalizeResolvesFromProfileFiles(t *testing.T) {
	t.Parallel()

	home := t.TempDir()
	dir := filepath.Join(home, ".fusion")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeProfileFiles(t, dir, "file-key", "file-secret")

	cfg := New()
	if err := cfg.Finalize(credentials.MapEnvironment{credentials.EnvHome: home}); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	if got := cfg.AccessKeyID.Or(""); got != "file-key" {
		t.Fatalf("expected file key, got %q", got)
	}
	if got := cfg.Region.Or(""); got != "eu-west-1" {
		t.Fatalf("expected file region, got %q", got)
	}
	if got := cfg.FusionDir.Or(""); got != dir+string(filepath.Separator) {
		t.Fatalf("unexpected fusion dir %q", got)
	}
}

func TestFinalizeNeverMixesKeySources(t *testing.T) {
	t.Parallel()

	cfg := New()
	cfg.AccessKeyID = Of("explicit-key")

	resolver := &stubResolver{creds: credentials.Credentials{
		Region:          "us-west-1",
		AccessKeyID:     "resolved-key",
		SecretAccessKey: "resolved-secret",
		SessionToken:    "resolved-token",
		Source:          credentials.SourceFiles,
	}}
	if err := cfg.Finalize(emptyEnv(t), WithResolver(resolver)); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	if resolver.calls != 1 {
		t.Fatalf("expected one resolution, got %d", resolver.calls)
	}
	if got := cfg.AccessKeyID.Or(""); got != "explicit-key" {
		t.Fatalf("explicit key overwritten: %q", got)
	}
	if !cfg.SecretAccessKey.IsNull() {
		t.Fatalf("secret must not come from another source, got %s", cfg.SecretAccessKey)
	}
	if got := cfg.Region.Or(""); got != "us-west-1" {
		t.Fatalf("expected resolved region, got %q", got)
	}
}

func TestFinalizePropagatesResolverErrors(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("boom")
	cfg := New()
	err := cfg.Finalize(emptyEnv(t), WithResolver(&stubResolver{err: sentinel}))
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected resolver error, got %v", err)
	}
	if cfg.Finalized() {
		t.Fatal("failed finalize must not mark the config finalized")
	}
}

func TestFinalizeTwice(t *testing.T) {
	t.Parallel()

	cfg := New()
	if err := cfg.Finalize(emptyEnv(t)); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if err := cfg.Finalize(emptyEnv(t)); !errors.Is(err, ErrAlreadyFinalized) {
		t.Fatalf("expected ErrAlreadyFinalized, got %v", err)
	}
}

func TestRegionConfigRequiresFinalize(t *testing.T) {
	t.Parallel()

	if _, err := New().RegionConfig("us-east-1"); !errors.Is(err, ErrNotFinalized) {
		t.Fatalf("expected ErrNotFinalized, got %v", err)
	}
}

func TestRegionConfigCompilesOverrides(t *testing.T) {
	t.Parallel()

	cfg := New()
	cfg.AccessKeyID = Of("K")
	cfg.SecretAccessKey = Of("S")
	cfg.Tags = map[string]string{"team": "infra"}
	if err := cfg.OverrideRegion("us-west-2", map[string]any{"ami": "ami-1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := cfg.Finalize(emptyEnv(t)); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	west, err := cfg.RegionConfig("us-west-2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := west.AMI.Or(""); got != "ami-1" {
		t.Fatalf("expected ami-1, got %q", got)
	}
	if got := west.AccessKeyID.Or(""); got != "K" {
		t.Fatalf("expected inherited key, got %q", got)
	}
	if got := west.InstanceType.Or(""); got != "m3.medium" {
		t.Fatalf("expected default instance type, got %q", got)
	}
	if got := west.Region.Or(""); got != "us-west-2" {
		t.Fatalf("expected forced region, got %q", got)
	}
	if !west.RegionSpecific() || !west.Finalized() {
		t.Fatal("compiled config should be region specific and finalized")
	}

	again, err := cfg.RegionConfig("us-west-2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again != west {
		t.Fatal("compiled config should be cached")
	}

	west.Tags["team"] = "changed"
	if cfg.Tags["team"] != "infra" {
		t.Fatal("compiled config shares tags with the base")
	}
	if !cfg.AMI.IsNull() {
		t.Fatalf("override leaked into base: %s", cfg.AMI)
	}
}

func TestRegionConfigFallsBackToBase(t *testing.T) {
	t.Parallel()

	cfg := New()
	cfg.AccessKeyID = Of("K")
	cfg.SecretAccessKey = Of("S")
	if err := cfg.Finalize(emptyEnv(t)); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	got, err := cfg.RegionConfig("ap-northeast-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != cfg {
		t.Fatal("expected the base configuration itself")
	}
	if region := got.Region.Or(""); region != DefaultRegion {
		t.Fatalf("fallback keeps the base region, got %q", region)
	}
}

func TestRegionWithoutActionsIsCompiled(t *testing.T) {
	t.Parallel()

	cfg := New()
	if err := cfg.AddRegionOverride("eu-north-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := cfg.Finalize(emptyEnv(t)); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	got, err := cfg.RegionConfig("eu-north-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == cfg {
		t.Fatal("registered region should be compiled")
	}
	if region := got.Region.Or(""); region != "eu-north-1" {
		t.Fatalf("expected eu-north-1, got %q", region)
	}
}

func TestAddRegionOverrideRejectsUnknownAttributes(t *testing.T) {
	t.Parallel()

	cfg := New()
	err := cfg.OverrideRegion("us-west-2", map[string]any{"amii": "ami-1"})
	if !errors.Is(err, ErrUnknownAttribute) {
		t.Fatalf("expected ErrUnknownAttribute, got %v", err)
	}
	if len(cfg.Regions()) != 0 {
		t.Fatalf("rejected override registered a region: %v", cfg.Regions())
	}
}

func writeProfileFiles(t *testing.T, dir, key, secret string) {
	t.Helper()

	config := "[default]\nregion = eu-west-1\n"
	creds := "[default]\nfusion_access_key_id = " + key + "\nfusion_secret_access_key = " + secret + "\n"
	if err := os.WriteFile(filepath.Join(dir, "config"), []byte(config), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "credentials"), []byte(creds), 0o600); err != nil {
		t.Fatalf("write credentials: %v", err)
	}
}

func TestFinalizeHalfKeyPairFallsBackToDefaultRegion(t *testing.T) {
	t.Parallel()

	home := t.TempDir()
	dir := filepath.Join(home, ".fusion")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeProfileFiles(t, dir, "file-key", "")

	cfg := New()
	if err := cfg.Finalize(credentials.MapEnvironment{credentials.EnvHome: home}); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	if !cfg.AccessKeyID.IsNull() || !cfg.SecretAccessKey.IsNull() || !cfg.SessionToken.IsNull() {
		t.Fatalf("expected null credentials, got access=%s secret=%s token=%s",
			cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)
	}
	if got := cfg.Region.Or(""); got != DefaultRegion {
		t.Fatalf("expected region %q, got %q", DefaultRegion, got)
	}
}

func TestFinalizeEmptyHomeUsesRootFusionDir(t *testing.T) {
	t.Parallel()

	cfg := New()
	if err := cfg.Finalize(credentials.MapEnvironment{}); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	want := string(filepath.Separator) + ".fusion" + string(filepath.Separator)
	if got := cfg.FusionDir.Or(""); got != want {
		t.Fatalf("expected fusion dir %q, got %q", want, got)
	}
}

func TestZeroValueConfigAcceptsRegionOverrides(t *testing.T) {
	t.Parallel()

	var cfg Config
	if err := cfg.OverrideRegion("us-west-2", map[string]any{"ami": "ami-1"}); err != nil {
		t.Fatalf("override region: %v", err)
	}
	cfg.OverrideRegionFunc("us-west-2", func(c *Config) { c.InstanceType = Of("t3.micro") })

	if diff := cmp.Diff([]string{"us-west-2"}, cfg.Regions()); diff != "" {
		t.Fatalf("regions mismatch (-want +got):\n%s", diff)
	}
}
