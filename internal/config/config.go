// Package config loads process-wide tunables from the environment, the
// way the teacher's assurance service does (including the policy
// directory, CAAS_POLICY_DIR), plus a YAML overlay for the document-shaped
// per-tenant/bucket/criticality fidelity maps that env vars don't fit
// naturally.
package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds every process-wide tunable read from the environment.
type Config struct {
	Port            int
	PolicyDir       string
	BatchSize       int
	KAnonymity      int
	DPEpsilon       float64
	DPSeed          int64
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	QueueCapacity   int
	FidelityConfig  string // path to the optional fidelity.yaml overlay
}

// Load reads CAAS_* environment variables, applying the same
// fail-fast-on-malformed-value discipline as the teacher's config loader.
func Load() Config {
	getInt := func(key string, def int) int {
		val := os.Getenv(key)
		if val == "" {
			return def
		}
		n, err := strconv.Atoi(val)
		if err != nil {
			log.Fatalf("invalid %s=%q", key, val)
		}
		return n
	}
	getFloat := func(key string, def float64) float64 {
		val := os.Getenv(key)
		if val == "" {
			return def
		}
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			log.Fatalf("invalid %s=%q", key, val)
		}
		return f
	}
	getDuration := func(key string, def time.Duration) time.Duration {
		val := os.Getenv(key)
		if val == "" {
			return def
		}
		d, err := time.ParseDuration(val)
		if err != nil {
			log.Fatalf("invalid %s=%q", key, val)
		}
		return d
	}

	cfg := Config{
		Port:           getInt("CAAS_PORT", 9010),
		PolicyDir:      os.Getenv("CAAS_POLICY_DIR"),
		BatchSize:      getInt("CAAS_BATCH_SIZE", 100),
		KAnonymity:     getInt("CAAS_K_ANON", 5),
		DPEpsilon:      getFloat("CAAS_DP_EPS", 0.7),
		DPSeed:         int64(getInt("CAAS_DP_SEED", 0)),
		WriteTimeout:   getDuration("CAAS_WRITE_TIMEOUT", 5*time.Second),
		ReadTimeout:    getDuration("CAAS_READ_TIMEOUT", 5*time.Second),
		QueueCapacity:  getInt("CAAS_QUEUE_CAPACITY", 10000),
		FidelityConfig: os.Getenv("CAAS_FIDELITY_CONFIG"),
	}

	if cfg.PolicyDir == "" {
		cfg.PolicyDir = "./policies"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.KAnonymity <= 1 {
		cfg.KAnonymity = 2
	}
	if cfg.DPEpsilon <= 0 {
		cfg.DPEpsilon = 0.7
	}
	if cfg.FidelityConfig == "" {
		cfg.FidelityConfig = "./fidelity.yaml"
	}
	return cfg
}
