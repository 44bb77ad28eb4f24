package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type sample struct {
	Name  string `yaml:"name"`
	Limit int    `yaml:"limit"`
}

func (s *sample) Validate() error {
	if s.Limit < 0 {
		return errors.New("limit must not be negative")
	}
	return nil
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("SAMPLE_NAME", "lattice")
	path := writeFile(t, "name: ${SAMPLE_NAME}\nlimit: 3\n")

	var s sample
	if err := Load(path, &s); err != nil {
		t.Fatal(err)
	}
	if s.Name != "lattice" || s.Limit != 3 {
		t.Errorf("loaded = %+v", s)
	}
}

func TestLoad_Validates(t *testing.T) {
	path := writeFile(t, "limit: -1\n")
	var s sample
	err := Load(path, &s)
	if err == nil || !strings.Contains(err.Error(), "validation failed") {
		t.Fatalf("err = %v, want validation failure", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	var s sample
	if err := Load(filepath.Join(t.TempDir(), "nope.yaml"), &s); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadOptional(t *testing.T) {
	s := sample{Name: "default", Limit: 1}
	if err := LoadOptional(filepath.Join(t.TempDir(), "nope.yaml"), &s); err != nil {
		t.Fatalf("missing file: %v", err)
	}
	if s.Name != "default" {
		t.Errorf("defaults overwritten: %+v", s)
	}

	bad := sample{Limit: -5}
	if err := LoadOptional(filepath.Join(t.TempDir(), "nope.yaml"), &bad); err == nil {
		t.Error("invalid defaults should fail validation")
	}

	path := writeFile(t, "name: file\n")
	if err := LoadOptional(path, &s); err != nil {
		t.Fatal(err)
	}
	if s.Name != "file" || s.Limit != 1 {
		t.Errorf("loaded = %+v", s)
	}
}
