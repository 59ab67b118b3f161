package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalConfig = `
[server]
server_ip = "192.168.1.1"
log_level = "info"

[dispatcher]
suspend_threshold = 10

[database]
engine = "sqlite"
dsn = "/tmp/test.db"
`

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeTestConfig(t, minimalConfig)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.ServerPort != DefaultServerPort {
		t.Errorf("ServerPort = %d, want %d", cfg.Server.ServerPort, DefaultServerPort)
	}
	if cfg.Server.ClientPort != DefaultClientPort {
		t.Errorf("ClientPort = %d, want %d", cfg.Server.ClientPort, DefaultClientPort)
	}
	if !cfg.Server.AllowsLocalDHCP() {
		t.Error("AllowsLocalDHCP() = false, want true by default")
	}
	if !cfg.Server.RapidCommitEnabled() {
		t.Error("RapidCommitEnabled() = false, want true by default")
	}
	if !cfg.Dispatcher.SuspendEnabled() {
		t.Error("SuspendEnabled() = false, want true by default")
	}
	if cfg.Dispatcher.UnauthorizedClientTimeout != 60 {
		t.Errorf("UnauthorizedClientTimeout = %d, want 60", cfg.Dispatcher.UnauthorizedClientTimeout)
	}
	if cfg.Dispatcher.MisbehavingClientTimeout != 150 {
		t.Errorf("MisbehavingClientTimeout = %d, want 150", cfg.Dispatcher.MisbehavingClientTimeout)
	}
	if cfg.Database.PoolSize != DefaultDatabasePoolSize {
		t.Errorf("PoolSize = %d, want %d", cfg.Database.PoolSize, DefaultDatabasePoolSize)
	}
}

func TestLoadRejectsInvalidServerIP(t *testing.T) {
	path := writeTestConfig(t, `
[server]
server_ip = "not-an-ip"
`)
	if _, err := Load(path); err == nil {
		t.Error("Load: expected error for invalid server_ip, got nil")
	}
}

func TestLoadRejectsInvalidRelay(t *testing.T) {
	path := writeTestConfig(t, `
[server]
allow_dhcp_relays = true
allowed_dhcp_relays = ["not-an-ip"]
`)
	if _, err := Load(path); err == nil {
		t.Error("Load: expected error for invalid relay IP, got nil")
	}
}

func TestLoadRejectsCacheOnDiskWithoutCache(t *testing.T) {
	path := writeTestConfig(t, `
[cache]
cache_on_disk = true
`)
	if _, err := Load(path); err == nil {
		t.Error("Load: expected error for cache_on_disk without use_cache, got nil")
	}
}

func TestLoadRejectsOutOfRangeQTag(t *testing.T) {
	path := writeTestConfig(t, `
[[server.response_interface_qtags]]
pcp = 9
vid = 100
`)
	if _, err := Load(path); err == nil {
		t.Error("Load: expected error for out-of-range pcp, got nil")
	}
}

func TestExplicitFalseOverridesDefault(t *testing.T) {
	path := writeTestConfig(t, `
[server]
allow_local_dhcp = false
enable_rapidcommit = false

[dispatcher]
enable_suspend = false
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.AllowsLocalDHCP() {
		t.Error("AllowsLocalDHCP() = true, want false (explicit override)")
	}
	if cfg.Server.RapidCommitEnabled() {
		t.Error("RapidCommitEnabled() = true, want false (explicit override)")
	}
	if cfg.Dispatcher.SuspendEnabled() {
		t.Error("SuspendEnabled() = true, want false (explicit override)")
	}
}
