package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Database.SQLitePath != "ledger.db" {
		t.Errorf("Expected default db path, got %q", cfg.Database.SQLitePath)
	}
	if cfg.Reminders.GraceDays != 35 {
		t.Errorf("Expected default grace of 35 days, got %d", cfg.Reminders.GraceDays)
	}
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  port: 9000
database:
  sqlite_path: /var/lib/ledgerd/books.db
accounts:
  - name: CHEQUE
    type: cheque
    salary: true
  - name: VISA
    type: visa
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	t.Setenv("LEDGERD_PORT", "9100")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("Environment should override file, got port %d", cfg.Server.Port)
	}
	if cfg.Database.SQLitePath != "/var/lib/ledgerd/books.db" {
		t.Errorf("Unexpected db path %q", cfg.Database.SQLitePath)
	}
	if len(cfg.Accounts) != 2 || cfg.Accounts[0].Name != "CHEQUE" || !cfg.Accounts[0].Salary {
		t.Errorf("Unexpected accounts: %+v", cfg.Accounts)
	}
}
