package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/caas/audit-substrate/internal/compliance"
)

func TestLoadFidelityConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadFidelityConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.NotNil(t, cfg)
}

func TestLoadFidelityConfigAppliesOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fidelity.yaml")
	doc := `
default: policy_bound
by_tenant:
  tenant-a: merkle_proof
by_bucket:
  tenant-b/logs: policy_bound
by_criticality:
  low: metadata_only
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := LoadFidelityConfig(path)
	require.NoError(t, err)
	require.Equal(t, compliance.FidelityPolicyBound, cfg.DefaultFidelity)
}

func TestSplitBucketKey(t *testing.T) {
	tenantID, bucket := splitBucketKey("tenant-a/logs")
	require.Equal(t, "tenant-a", tenantID)
	require.Equal(t, "logs", bucket)

	tenantID, bucket = splitBucketKey("tenant-only")
	require.Equal(t, "tenant-only", tenantID)
	require.Equal(t, "", bucket)
}
