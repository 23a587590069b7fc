package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "karja.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
tool: awslocal
profile: prod
region: eu-north-1
timeout: 45s
data_dir: /tmp/karja-test
no_color: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Tool != "awslocal" {
		t.Errorf("Tool = %v, want awslocal", cfg.Tool)
	}
	if cfg.Profile != "prod" {
		t.Errorf("Profile = %v, want prod", cfg.Profile)
	}
	if cfg.Region != "eu-north-1" {
		t.Errorf("Region = %v, want eu-north-1", cfg.Region)
	}
	if cfg.Timeout != 45*time.Second {
		t.Errorf("Timeout = %v, want 45s", cfg.Timeout)
	}
	if !cfg.NoColor {
		t.Error("NoColor should be true")
	}
	if got := cfg.JournalPath(); got != filepath.Join("/tmp/karja-test", "journal.db") {
		t.Errorf("JournalPath() = %v", got)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "profile: staging\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Profile != "staging" {
		t.Errorf("Profile = %v, want staging", cfg.Profile)
	}
	if cfg.Tool != "aws" {
		t.Errorf("Tool = %v, want default aws", cfg.Tool)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want default 30s", cfg.Timeout)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load() should fail on a missing file")
	}
}

func TestLoadOrDefault_NoFileAnywhere(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadOrDefault("")
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v", err)
	}
	if cfg.Tool != "aws" || cfg.Timeout != 30*time.Second {
		t.Errorf("LoadOrDefault() = %+v, want defaults", cfg)
	}
}

func TestFind_EnvOverride(t *testing.T) {
	path := writeConfig(t, "tool: aws\n")
	t.Setenv(EnvConfigPath, path)

	if got := Find(""); got != path {
		t.Errorf("Find() = %v, want %v", got, path)
	}
	if got := Find("/explicit/wins.yaml"); got != "/explicit/wins.yaml" {
		t.Errorf("Find() = %v, explicit path must win over env", got)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:    "valid config",
			config:  Config{Tool: "aws", Timeout: 30 * time.Second},
			wantErr: false,
		},
		{
			name:    "missing tool",
			config:  Config{Timeout: 30 * time.Second},
			wantErr: true,
		},
		{
			name:    "zero timeout",
			config:  Config{Tool: "aws"},
			wantErr: true,
		},
		{
			name:    "negative timeout",
			config:  Config{Tool: "aws", Timeout: -time.Second},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
