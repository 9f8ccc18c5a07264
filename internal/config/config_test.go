package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/Faultbox/headless-mmd/pkg/anim"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Import.NameEncoding != NameEncodingShiftJIS {
		t.Errorf("expected shift_jis names, got %s", cfg.Import.NameEncoding)
	}
	if cfg.Import.FrameCount != "keys" {
		t.Errorf("expected frame count 'keys', got %s", cfg.Import.FrameCount)
	}
	if cfg.Export.ModelName == "" {
		t.Error("expected a default export model name")
	}
	if len(cfg.Data.SearchPaths) != 1 || cfg.Data.SearchPaths[0] != "." {
		t.Errorf("expected search path '.', got %v", cfg.Data.SearchPaths)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Logging.Level)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
data:
  search_paths: ["models", "motions"]

import:
  name_encoding: raw
  frame_count: last_frame

export:
  model_name: "miku"

logging:
  level: "debug"
  log_file: "mmd.log"
`)

	cfg := Default()
	if err := loadFromFile(cfg, path); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if len(cfg.Data.SearchPaths) != 2 || cfg.Data.SearchPaths[1] != "motions" {
		t.Errorf("unexpected search paths %v", cfg.Data.SearchPaths)
	}
	if cfg.Import.NameEncoding != NameEncodingRaw {
		t.Errorf("expected raw names, got %s", cfg.Import.NameEncoding)
	}
	if cfg.ImportOptions().FrameCount != anim.FrameCountLastFrame {
		t.Errorf("expected last_frame mode, got %v", cfg.ImportOptions().FrameCount)
	}
	if cfg.Export.ModelName != "miku" {
		t.Errorf("expected model name 'miku', got %s", cfg.Export.ModelName)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.LogFile != "mmd.log" {
		t.Errorf("unexpected logging config %+v", cfg.Logging)
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"syntax", "import:\n  frame_count: [\n"},
		{"unknown key", "import:\n  fps: 30\n"},
		{"wrong type", "data:\n  search_paths: 3\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			if err := loadFromFile(cfg, writeConfig(t, tt.content)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestLoadFromFileEmpty(t *testing.T) {
	cfg := Default()
	if err := loadFromFile(cfg, writeConfig(t, "")); err != nil {
		t.Fatalf("empty file should load: %v", err)
	}
	if cfg.Import.FrameCount != "keys" {
		t.Errorf("empty file changed defaults: %+v", cfg.Import)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := Default()
	if err := loadFromFile(cfg, "/nonexistent/path/config.yaml"); err == nil {
		t.Error("expected error loading missing file, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"name encoding", func(c *Config) { c.Import.NameEncoding = "euc-jp" }},
		{"frame count", func(c *Config) { c.Import.FrameCount = "seconds" }},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestConfigDir(t *testing.T) {
	dir := ConfigDir()
	if dir == "" {
		t.Error("ConfigDir returned empty string")
	}
	if !filepath.IsAbs(dir) {
		t.Errorf("ConfigDir should return absolute path, got %s", dir)
	}
}

func TestFindConfigFile(t *testing.T) {
	origDir, _ := os.Getwd()
	defer os.Chdir(origDir)

	tmpDir := t.TempDir()
	os.Chdir(tmpDir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "xdg"))

	if path := findConfigFile(); path != "" {
		t.Errorf("expected empty path when no config exists, got %s", path)
	}

	if err := os.WriteFile(filepath.Join(tmpDir, "mmdtool.yaml"), []byte("export:\n  model_name: x\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}
	if path := findConfigFile(); path == "" {
		t.Error("expected to find mmdtool.yaml in current directory")
	}
}

func TestFlags(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	var f Flags
	f.Register(fs)

	err := fs.Parse([]string{"-debug", "-frames", "last_frame", "-raw-names", "-model-name", "rin", "-log", "out.log"})
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	cfg := Default()
	f.apply(cfg)

	if cfg.Logging.Level != "debug" || cfg.Logging.LogFile != "out.log" {
		t.Errorf("unexpected logging config %+v", cfg.Logging)
	}
	if cfg.Import.FrameCount != "last_frame" || cfg.Import.NameEncoding != NameEncodingRaw {
		t.Errorf("unexpected import config %+v", cfg.Import)
	}
	if cfg.Export.ModelName != "rin" {
		t.Errorf("expected model name 'rin', got %s", cfg.Export.ModelName)
	}
}

func TestLoadPriority(t *testing.T) {
	path := writeConfig(t, `
import:
  frame_count: last_frame
export:
  model_name: "from file"
`)

	cfg, err := Load(&Flags{Config: path, ModelName: "from flag"})
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Export.ModelName != "from flag" {
		t.Errorf("expected model name from flag, got %s", cfg.Export.ModelName)
	}
	if cfg.Import.FrameCount != "last_frame" {
		t.Errorf("expected frame count from file, got %s", cfg.Import.FrameCount)
	}
}

func TestLoadRejectsInvalidOverride(t *testing.T) {
	path := writeConfig(t, "")
	if _, err := Load(&Flags{Config: path, FrameCount: "bogus"}); err == nil {
		t.Error("expected validation error from flag override")
	}
}

func TestSaveTo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Export.ModelName = "saved"

	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}

	loaded := Default()
	if err := loadFromFile(loaded, path); err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if loaded.Export.ModelName != "saved" {
		t.Errorf("expected model name 'saved', got %s", loaded.Export.ModelName)
	}
}
