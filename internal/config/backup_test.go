package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBackupFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, ".geoidx.yaml")

	t.Run("no config exists", func(t *testing.T) {
		backupPath, err := BackupFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if backupPath != "" {
			t.Errorf("expected empty backup path for non-existent config, got %s", backupPath)
		}
	})

	t.Run("backup existing config", func(t *testing.T) {
		testContent := "version: 1\nindexer:\n  threads: 2\n"
		if err := os.WriteFile(configPath, []byte(testContent), 0o644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		backupPath, err := BackupFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.HasPrefix(filepath.Base(backupPath), ".geoidx.yaml.bak.") {
			t.Errorf("unexpected backup name: %s", backupPath)
		}

		backupContent, err := os.ReadFile(backupPath)
		if err != nil {
			t.Fatalf("failed to read backup: %v", err)
		}
		if string(backupContent) != testContent {
			t.Errorf("backup content mismatch:\ngot: %s\nwant: %s", backupContent, testContent)
		}
	})
}

func TestListBackups_PrunesToMax(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("version: 1\n"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	// stale backups from earlier inits
	for _, ts := range []string{"20260101-000000.000", "20260102-000000.000", "20260103-000000.000", "20260104-000000.000"} {
		p := configPath + BackupSuffix + "." + ts
		if err := os.WriteFile(p, []byte("old"), 0o644); err != nil {
			t.Fatalf("failed to write backup: %v", err)
		}
	}

	newest, err := BackupFile(configPath)
	if err != nil {
		t.Fatalf("backup failed: %v", err)
	}

	backups, err := ListBackups(configPath)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(backups) != MaxBackups {
		t.Fatalf("expected %d backups, got %d: %v", MaxBackups, len(backups), backups)
	}
	if backups[0] != newest {
		t.Errorf("expected newest backup first, got %s", backups[0])
	}
	if _, err := os.Stat(configPath + BackupSuffix + ".20260101-000000.000"); !os.IsNotExist(err) {
		t.Error("oldest backup should have been pruned")
	}
}

func TestListBackups_MissingDir(t *testing.T) {
	backups, err := ListBackups(filepath.Join(t.TempDir(), "missing", "config.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(backups) != 0 {
		t.Errorf("expected no backups, got %v", backups)
	}
}

func TestBackupUserConfig_UsesXDG(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	path := filepath.Join(xdg, "geoidx", "config.yaml")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("version: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	backupPath, err := BackupUserConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filepath.Dir(backupPath) != filepath.Dir(path) {
		t.Errorf("backup should sit beside the user config, got %s", backupPath)
	}
}

func TestWriteYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "out.yaml")

	cfg := NewConfig()
	cfg.Indexer.Threads = 3
	if err := cfg.WriteYAML(path); err != nil {
		t.Fatalf("WriteYAML failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read: %v", err)
	}
	if !strings.Contains(string(data), "threads: 3") {
		t.Errorf("expected threads in output, got:\n%s", data)
	}
	if !strings.Contains(string(data), "search_index:") {
		t.Errorf("expected search_index section, got:\n%s", data)
	}
}
