package config

import (
	"os"
	"path/filepath"
	"testing"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func TestLoadFallsBackToHomeDirWhenUnset(t *testing.T) {
	chdir(t, t.TempDir())
	for _, k := range []string{"REACHVAULT_DATA_DIR", "REACHVAULT_LOG_LEVEL"} {
		old, had := os.LookupEnv(k)
		os.Unsetenv(k)
		t.Cleanup(func() {
			if had {
				os.Setenv(k, old)
			}
		})
	}

	rc, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if rc.DataDir == "" {
		t.Fatal("DataDir must fall back to a non-empty default")
	}
}

func TestLoadReadsYAMLDefaults(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	os.Unsetenv("REACHVAULT_DATA_DIR")
	os.Unsetenv("REACHVAULT_LOG_LEVEL")

	yamlBody := "data_dir: /tmp/from-yaml\nlog_level: debug\n"
	if err := os.WriteFile(filepath.Join(dir, "reachvault.yaml"), []byte(yamlBody), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	rc, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if rc.DataDir != "/tmp/from-yaml" {
		t.Fatalf("DataDir = %q, want %q", rc.DataDir, "/tmp/from-yaml")
	}
	if rc.LogLevel != "debug" {
		t.Fatalf("LogLevel = %q, want %q", rc.LogLevel, "debug")
	}
}

func TestLoadEnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	yamlBody := "data_dir: /tmp/from-yaml\n"
	if err := os.WriteFile(filepath.Join(dir, "reachvault.yaml"), []byte(yamlBody), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	os.Setenv("REACHVAULT_DATA_DIR", "/tmp/from-env")
	t.Cleanup(func() { os.Unsetenv("REACHVAULT_DATA_DIR") })

	rc, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if rc.DataDir != "/tmp/from-env" {
		t.Fatalf("DataDir = %q, want the env value %q to win over YAML", rc.DataDir, "/tmp/from-env")
	}
}

func TestSetRuntimeAndGet(t *testing.T) {
	rc := &RuntimeConfig{DataDir: "/tmp/explicit"}
	SetRuntime(rc)
	if Get() != rc {
		t.Fatal("Get must return the exact RuntimeConfig passed to SetRuntime")
	}
	if DataDir() != "/tmp/explicit" {
		t.Fatalf("DataDir() = %q, want %q", DataDir(), "/tmp/explicit")
	}
}
