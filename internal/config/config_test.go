package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadFromBytes_Defaults(t *testing.T) {
	yaml := []byte(`
provider:
  api_key: "sk-test"
`)
	cfg, err := LoadFromBytes(yaml)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Provider.BaseURL != "https://api.openai.com" {
		t.Errorf("expected default base_url, got %q", cfg.Provider.BaseURL)
	}
	if cfg.Provider.Model != "gpt-4o-mini" {
		t.Errorf("expected default model, got %q", cfg.Provider.Model)
	}
	if cfg.Provider.Timeout() != 30*time.Second {
		t.Errorf("expected default timeout 30s, got %s", cfg.Provider.Timeout())
	}
	if cfg.Recovery.LedgerCapacity != 1000 {
		t.Errorf("expected default ledger capacity 1000, got %d", cfg.Recovery.LedgerCapacity)
	}
	if cfg.Recovery.DefaultStrategy != "default" {
		t.Errorf("expected default strategy %q, got %q", "default", cfg.Recovery.DefaultStrategy)
	}
	if len(cfg.Strategies) == 0 {
		t.Fatal("expected baseline strategies when none configured")
	}
	if cfg.Strategies[0].Name != "default" || cfg.Strategies[0].Type != StrategyExponentialBackoff {
		t.Errorf("unexpected baseline strategy: %+v", cfg.Strategies[0])
	}
	if cfg.Logging.Output != "stderr" || cfg.Logging.Level != "info" || cfg.Logging.Format != "auto" {
		t.Errorf("unexpected logging defaults: %+v", cfg.Logging)
	}
	if !cfg.Metrics.IsEnabled() {
		t.Error("expected metrics enabled by default")
	}
	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("expected default metrics path /metrics, got %q", cfg.Metrics.Path)
	}
}

func TestLoadFromBytes_FullConfig(t *testing.T) {
	yaml := []byte(`
provider:
  base_url: "http://localhost:3001"
  api_key: "sk-test"
  model: "test-model"
  timeout_ms: 5000
  requests_per_second: 2
  burst_size: 1
logging:
  output: stdout
  format: json
  level: debug
metrics:
  addr: "127.0.0.1:9464"
recovery:
  ledger_capacity: 50
  default_strategy: "careful"
strategies:
  - name: "careful"
    type: exponential_backoff
    max_retries: 5
    initial_delay_ms: 100
  - name: "degraded"
    type: fallback
    fallback_text: "service unavailable"
breakers:
  - name: "payments"
    failure_threshold: 3
    success_threshold: 2
    cooldown: 1s
`)
	cfg, err := LoadFromBytes(yaml)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Provider.Model != "test-model" {
		t.Errorf("expected model test-model, got %q", cfg.Provider.Model)
	}
	if cfg.Provider.Timeout() != 5*time.Second {
		t.Errorf("expected timeout 5s, got %s", cfg.Provider.Timeout())
	}
	if cfg.Recovery.DefaultStrategy != "careful" {
		t.Errorf("expected default strategy careful, got %q", cfg.Recovery.DefaultStrategy)
	}
	if len(cfg.Strategies) != 2 {
		t.Fatalf("expected 2 strategies, got %d", len(cfg.Strategies))
	}
	if cfg.Strategies[1].FallbackText != "service unavailable" {
		t.Errorf("unexpected fallback text: %q", cfg.Strategies[1].FallbackText)
	}
	if len(cfg.Breakers) != 1 {
		t.Fatalf("expected 1 breaker, got %d", len(cfg.Breakers))
	}
	b := cfg.Breakers[0]
	if b.Name != "payments" || b.FailureThreshold != 3 || b.SuccessThreshold != 2 || b.Cooldown != time.Second {
		t.Errorf("unexpected breaker config: %+v", b)
	}
}

func TestLoadFromBytes_EnvSubstitution(t *testing.T) {
	t.Setenv("TEST_CHATCTL_KEY", "sk-from-env")

	yaml := []byte(`
provider:
  api_key: "${TEST_CHATCTL_KEY}"
`)
	cfg, err := LoadFromBytes(yaml)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Provider.APIKey != "sk-from-env" {
		t.Errorf("expected substituted key, got %q", cfg.Provider.APIKey)
	}
	if len(cfg.Warnings) != 0 {
		t.Errorf("expected no warnings, got %v", cfg.Warnings)
	}
}

func TestLoadFromBytes_UnresolvedEnvWarning(t *testing.T) {
	yaml := []byte(`
provider:
  api_key: "${CHATCTL_KEY_THAT_DOES_NOT_EXIST}"
`)
	cfg, err := LoadFromBytes(yaml)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found := false
	for _, w := range cfg.Warnings {
		if strings.Contains(w, "unresolved environment variable") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected unresolved env warning, got %v", cfg.Warnings)
	}
}

func TestLoadFromBytes_ValidationErrors(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "bad base url scheme",
			yaml: `
provider:
  base_url: "ftp://example.com"
`,
			want: "scheme must be http or https",
		},
		{
			name: "unknown strategy type",
			yaml: `
strategies:
  - name: "weird"
    type: "quantum"
recovery:
  default_strategy: "weird"
`,
			want: "strategies[0].type",
		},
		{
			name: "duplicate strategy name",
			yaml: `
strategies:
  - name: "dup"
    type: timeout
    timeout_ms: 100
  - name: "dup"
    type: timeout
    timeout_ms: 200
recovery:
  default_strategy: "dup"
`,
			want: "duplicate strategy name",
		},
		{
			name: "default strategy missing",
			yaml: `
strategies:
  - name: "only"
    type: timeout
    timeout_ms: 100
recovery:
  default_strategy: "absent"
`,
			want: "not a configured strategy",
		},
		{
			name: "bad log level",
			yaml: `
logging:
  level: "verbose"
`,
			want: "logging.level",
		},
		{
			name: "duplicate breaker name",
			yaml: `
breakers:
  - name: "dup"
  - name: "dup"
`,
			want: "duplicate breaker name",
		},
		{
			name: "breaker without name",
			yaml: `
breakers:
  - failure_threshold: 3
`,
			want: "breakers[0].name is required",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadFromBytes([]byte(tc.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestLoadFromBytes_BreakerDefaults(t *testing.T) {
	yaml := []byte(`
breakers:
  - name: "dep"
`)
	cfg, err := LoadFromBytes(yaml)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b := cfg.Breakers[0]
	if b.FailureThreshold != 5 || b.SuccessThreshold != 2 || b.Cooldown != 30*time.Second {
		t.Errorf("unexpected breaker defaults: %+v", b)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/chatctl.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
