package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type sample struct {
	Name string `yaml:"name"`
	Port int    `yaml:"port"`
}

type validated struct {
	Port int `yaml:"port"`
}

func (v *validated) Validate() error {
	if v.Port <= 0 {
		return errors.New("port must be positive")
	}
	return nil
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad(t *testing.T) {
	p := writeConfig(t, "name: app\nport: 8080\n")
	var cfg sample
	if err := Load(p, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Name != "app" || cfg.Port != 8080 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_APP_NAME", "expanded")
	p := writeConfig(t, "name: ${TEST_APP_NAME}\nport: 1\n")
	var cfg sample
	if err := Load(p, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Name != "expanded" {
		t.Errorf("name = %q", cfg.Name)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	var cfg sample
	if err := Load(filepath.Join(t.TempDir(), "nope.yaml"), &cfg); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	p := writeConfig(t, "name: [unclosed\n")
	var cfg sample
	if err := Load(p, &cfg); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoad_ValidationRuns(t *testing.T) {
	p := writeConfig(t, "port: 0\n")
	var cfg validated
	if err := Load(p, &cfg); err == nil {
		t.Error("expected validation error")
	}

	p = writeConfig(t, "port: 99\n")
	if err := Load(p, &cfg); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
}

func TestLoadWithDefaults(t *testing.T) {
	def := writeConfig(t, "name: fallback\nport: 2\n")
	missing := filepath.Join(t.TempDir(), "missing.yaml")

	var cfg sample
	if err := LoadWithDefaults(missing, def, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Name != "fallback" {
		t.Errorf("name = %q", cfg.Name)
	}

	if err := LoadWithDefaults(missing, "", &cfg); err == nil {
		t.Error("expected error with no default file")
	}
}
