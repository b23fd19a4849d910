package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/ppiankov/riskcheck/internal/model"
)

func newTestViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	if err := configureEnv(v); err != nil {
		t.Fatalf("configureEnv failed: %v", err)
	}
	return v
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig(newTestViper(t))
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	def := model.DefaultConfig()
	if cfg.Server.Addr != def.Server.Addr {
		t.Errorf("Expected addr %q, got %q", def.Server.Addr, cfg.Server.Addr)
	}
	if cfg.HTTP.Timeout != def.HTTP.Timeout {
		t.Errorf("Expected timeout %v, got %v", def.HTTP.Timeout, cfg.HTTP.Timeout)
	}
	if cfg.Search.Enabled() {
		t.Error("Search must be disabled without credentials")
	}
}

func TestLoadConfig_Environment(t *testing.T) {
	t.Setenv("GOOGLE_CSE_API_KEY", "key")
	t.Setenv("GOOGLE_CSE_CX", "cx")
	t.Setenv("ADMIN_TOKEN", "token")
	t.Setenv("HTTP_TIMEOUT_S", "3")
	t.Setenv("SEARCH_CACHE_TTL_S", "60")
	t.Setenv("FRONTEND_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8,192.0.2.10")
	t.Setenv("BLOCK_PRIVATE_NETS", "false")
	t.Setenv("RISKCHECK_SERVER_ADDR", ":9999")
	t.Setenv("RISKCHECK_PROBE_PHONE_REGION", "GB")

	cfg, err := loadConfig(newTestViper(t))
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}

	if !cfg.Search.Enabled() {
		t.Error("Expected search enabled from GOOGLE_CSE_* variables")
	}
	if cfg.Admin.Token != "token" {
		t.Errorf("Expected admin token, got %q", cfg.Admin.Token)
	}
	if cfg.HTTP.Timeout != 3*time.Second {
		t.Errorf("Expected 3s timeout, got %v", cfg.HTTP.Timeout)
	}
	if cfg.Search.CacheTTL != time.Minute {
		t.Errorf("Expected 1m cache TTL, got %v", cfg.Search.CacheTTL)
	}
	if len(cfg.Server.FrontendOrigins) != 2 || cfg.Server.FrontendOrigins[1] != "https://b.example" {
		t.Errorf("Unexpected origins %v", cfg.Server.FrontendOrigins)
	}
	if len(cfg.Server.TrustedProxies) != 2 || cfg.Server.TrustedProxies[0] != "10.0.0.0/8" {
		t.Errorf("Unexpected trusted proxies %v", cfg.Server.TrustedProxies)
	}
	if cfg.HTTP.BlockPrivateNets {
		t.Error("Expected private network guard disabled")
	}
	if cfg.Server.Addr != ":9999" {
		t.Errorf("Expected prefixed variable to apply, got %q", cfg.Server.Addr)
	}
	if cfg.Probe.PhoneRegion != "GB" {
		t.Errorf("Expected region GB, got %q", cfg.Probe.PhoneRegion)
	}
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("server:\n  addr: \":7070\"\nprobe:\n  subcheck_timeout: 2s\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	v := newTestViper(t)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig failed: %v", err)
	}
	cfg, err := loadConfig(v)
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.Server.Addr != ":7070" {
		t.Errorf("Expected :7070, got %q", cfg.Server.Addr)
	}
	if cfg.Probe.SubcheckTimeout != 2*time.Second {
		t.Errorf("Expected 2s, got %v", cfg.Probe.SubcheckTimeout)
	}
	if cfg.Probe.PhoneRegion != "PK" {
		t.Errorf("Expected default region to survive, got %q", cfg.Probe.PhoneRegion)
	}
}

func TestRedacted(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Admin.Token = "secret"
	cfg.Database.URL = "postgres://app:hunter2@db:5432/riskcheck"

	out := redacted(cfg)
	if out.Admin.Token == "secret" {
		t.Error("Admin token not masked")
	}
	if out.Database.URL != "postgres://app:********@db:5432/riskcheck" {
		t.Errorf("Unexpected database URL %q", out.Database.URL)
	}
	if cfg.Admin.Token != "secret" {
		t.Error("redacted must not modify the input")
	}
}
