package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"CONFIG_FILE", "DEPLOYMENT_ENV", "EXECUTION_FAILURE_POLICY", "INVOKE_TIMEOUT"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DeploymentEnv != EnvDocker {
		t.Errorf("DeploymentEnv = %q, want docker", cfg.DeploymentEnv)
	}
	if cfg.ExecutionFailurePolicy != FailurePropagate {
		t.Errorf("ExecutionFailurePolicy = %q, want propagate", cfg.ExecutionFailurePolicy)
	}
	if cfg.InvokeTimeout != 60*time.Second {
		t.Errorf("InvokeTimeout = %v, want 60s", cfg.InvokeTimeout)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("DEPLOYMENT_ENV", "Kubernetes")
	t.Setenv("POOL_SIZE", "7")
	t.Setenv("INVOKE_TIMEOUT", "5s")
	t.Setenv("EXECUTION_FAILURE_POLICY", "record")
	t.Setenv("CORS_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DeploymentEnv != EnvKubernetes {
		t.Errorf("DeploymentEnv = %q, want kubernetes", cfg.DeploymentEnv)
	}
	if cfg.PoolSize != 7 {
		t.Errorf("PoolSize = %d, want 7", cfg.PoolSize)
	}
	if cfg.InvokeTimeout != 5*time.Second {
		t.Errorf("InvokeTimeout = %v, want 5s", cfg.InvokeTimeout)
	}
	if cfg.ExecutionFailurePolicy != FailureRecord {
		t.Errorf("ExecutionFailurePolicy = %q, want record", cfg.ExecutionFailurePolicy)
	}
	if len(cfg.CORSOrigins) != 2 {
		t.Errorf("CORSOrigins = %v, want 2 entries", cfg.CORSOrigins)
	}
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("POOL_SIZE", "many")
	t.Setenv("ORCHESTRATOR_TIMEOUT", "soon")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	def := Default()
	if cfg.PoolSize != def.PoolSize {
		t.Errorf("PoolSize = %d, want %d", cfg.PoolSize, def.PoolSize)
	}
	if cfg.OrchestratorTimeout != def.OrchestratorTimeout {
		t.Errorf("OrchestratorTimeout = %v, want %v", cfg.OrchestratorTimeout, def.OrchestratorTimeout)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	data := []byte(`
deployment_env: kubernetes
namespace: functions
pool_size: 5
invoke_timeout: 15s
execution_failure_policy: record
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("POOL_SIZE", "9")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DeploymentEnv != EnvKubernetes {
		t.Errorf("DeploymentEnv = %q, want kubernetes", cfg.DeploymentEnv)
	}
	if cfg.Namespace != "functions" {
		t.Errorf("Namespace = %q, want functions", cfg.Namespace)
	}
	if cfg.PoolSize != 9 {
		t.Errorf("PoolSize = %d, want env override 9", cfg.PoolSize)
	}
	if cfg.InvokeTimeout != 15*time.Second {
		t.Errorf("InvokeTimeout = %v, want 15s", cfg.InvokeTimeout)
	}
	if cfg.ExecutionFailurePolicy != FailureRecord {
		t.Errorf("ExecutionFailurePolicy = %q, want record", cfg.ExecutionFailurePolicy)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
