package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/caas/audit-substrate/internal/compliance"
)

// FidelityDocument is the on-disk YAML shape for AAP's selection maps: a
// document-shaped overlay over the env-var process config, the same role
// config.yaml plays for CtrlAI's provider/streaming settings.
type FidelityDocument struct {
	Default     string            `yaml:"default"`
	ByTenant    map[string]string `yaml:"by_tenant"`
	ByBucket    map[string]string `yaml:"by_bucket"` // key "tenant_id/bucket"
	ByCriticality map[string]string `yaml:"by_criticality"`
}

// LoadFidelityConfig reads path and applies it onto a fresh
// compliance.PipelineConfig. A missing file yields the library defaults,
// matching the teacher's "no config file = defaults, not an error" rule.
func LoadFidelityConfig(path string) (*compliance.PipelineConfig, error) {
	cfg := compliance.NewPipelineConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading fidelity config %s: %w", path, err)
	}

	var doc FidelityDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing fidelity config %s: %w", path, err)
	}

	if doc.Default != "" {
		cfg.DefaultFidelity = compliance.Fidelity(doc.Default)
	}
	for tenantID, level := range doc.ByTenant {
		cfg.SetTenantFidelity(tenantID, compliance.Fidelity(level))
	}
	for key, level := range doc.ByBucket {
		tenantID, bucket := splitBucketKey(key)
		cfg.SetBucketFidelity(tenantID, bucket, compliance.Fidelity(level))
	}
	for crit, level := range doc.ByCriticality {
		cfg.SetCriticalityFidelity(compliance.Criticality(crit), compliance.Fidelity(level))
	}

	return cfg, nil
}

func splitBucketKey(key string) (tenantID, bucket string) {
	for i := 0; i < len(key); i++ {
		if key[i] == '/' {
			return key[:i], key[i+1:]
		}
	}
	return key, ""
}
