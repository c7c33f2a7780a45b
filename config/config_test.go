package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ByLCY/textbehind/fonts"
	"github.com/ByLCY/textbehind/separation"
)

const sampleYAML = `
log_level: debug
out_dir: build
preview:
  width: 800
  height: 450
reset_layers_on_upload: true
separator:
  kind: http
  url: http://localhost:7000/remove
  header:
    X-Api-Key: secret
  timeout: 30s
  attempts: 3
  backoff: 500ms
vars:
  name: Ada
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Preview.Width != 1000 || cfg.Preview.Height != 600 {
		t.Fatalf("preview default: %+v", cfg.Preview)
	}
	if cfg.Separator.Kind != SeparatorChroma || cfg.ResetLayersOnUpload {
		t.Fatalf("separator/reset defaults: %+v", cfg)
	}
	if cfg.Level() != logrus.InfoLevel {
		t.Fatalf("level: %v", cfg.Level())
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "textbehind.yaml", sampleYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Level() != logrus.DebugLevel || cfg.OutDir != "build" || !cfg.ResetLayersOnUpload {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Preview.Width != 800 || cfg.Preview.Height != 450 {
		t.Fatalf("preview: %+v", cfg.Preview)
	}
	sc := cfg.Separator
	if sc.Kind != SeparatorHTTP || sc.Timeout != 30*time.Second || sc.Attempts != 3 || sc.Backoff != 500*time.Millisecond {
		t.Fatalf("separator: %+v", sc)
	}
	if sc.Header["X-Api-Key"] != "secret" {
		t.Fatalf("header: %+v", sc.Header)
	}
	// 文件中未出现的字段保留默认值
	if sc.Tolerance != Default().Separator.Tolerance {
		t.Fatalf("tolerance default lost: %g", sc.Tolerance)
	}
	if cfg.Vars["name"] != "Ada" {
		t.Fatalf("vars: %+v", cfg.Vars)
	}

	s, err := cfg.NewSeparator()
	if err != nil {
		t.Fatalf("NewSeparator: %v", err)
	}
	r, ok := s.(separation.Retry)
	if !ok {
		t.Fatalf("expected Retry wrapper, got %T", s)
	}
	h, ok := r.Separator.(separation.HTTP)
	if !ok || h.URL != "http://localhost:7000/remove" || h.Header.Get("X-Api-Key") != "secret" {
		t.Fatalf("inner separator: %#v", r.Separator)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(envMap(map[string]string{
		"TEXTBEHIND_LOG_LEVEL":         "warn",
		"TEXTBEHIND_SEPARATOR":         "command",
		"TEXTBEHIND_SEPARATOR_COMMAND": "rembg",
		"TEXTBEHIND_SEPARATOR_ARGS":    "i - -",
		"TEXTBEHIND_SEPARATOR_TOKEN":   "abc",
		"TEXTBEHIND_SEPARATOR_TIMEOUT": "5s",
		"TEXTBEHIND_RESET_LAYERS":      "true",
	}))
	if err != nil {
		t.Fatalf("applyEnv: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Level() != logrus.WarnLevel || !cfg.ResetLayersOnUpload {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	sc := cfg.Separator
	if sc.Kind != SeparatorCommand || sc.Command != "rembg" || len(sc.Args) != 3 || sc.Timeout != 5*time.Second {
		t.Fatalf("separator overrides: %+v", sc)
	}
	if sc.Header["Authorization"] != "Bearer abc" {
		t.Fatalf("token header: %+v", sc.Header)
	}

	bad := Default()
	if err := bad.applyEnv(envMap(map[string]string{"TEXTBEHIND_SEPARATOR_ATTEMPTS": "many"})); err == nil {
		t.Fatalf("expected error for bad attempts")
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"level":   func(c *Config) { c.LogLevel = "loud" },
		"kind":    func(c *Config) { c.Separator.Kind = "magic" },
		"command": func(c *Config) { c.Separator.Kind = SeparatorCommand },
		"http":    func(c *Config) { c.Separator.Kind = SeparatorHTTP },
	}
	for name, mutate := range cases {
		cfg := Default()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestNewSeparatorWithoutRetry(t *testing.T) {
	cfg := Default()
	cfg.Separator.Attempts = 1
	cfg.Separator.Timeout = 0
	s, err := cfg.NewSeparator()
	if err != nil {
		t.Fatalf("NewSeparator: %v", err)
	}
	if _, ok := s.(separation.ChromaKey); !ok {
		t.Fatalf("expected bare ChromaKey, got %T", s)
	}
}

func TestRegisterFonts(t *testing.T) {
	data, _ := fonts.NewRegistry().Resolve(fonts.FamilyGoMono, 400)
	path := writeFile(t, "custom.ttf", string(data))

	cfg := Default()
	cfg.Fonts = map[string]map[int]string{"Poster": {900: path}}
	reg := fonts.NewRegistry()
	if err := cfg.RegisterFonts(reg); err != nil {
		t.Fatalf("RegisterFonts: %v", err)
	}
	if _, family, weight := reg.Resolve("Poster", 800); family != "Poster" || weight != 900 {
		t.Fatalf("resolved %s %d", family, weight)
	}

	cfg.Fonts = map[string]map[int]string{"Missing": {400: filepath.Join(t.TempDir(), "nope.ttf")}}
	if err := cfg.RegisterFonts(reg); err == nil {
		t.Fatalf("expected error for missing font file")
	}
}

func TestLoadEnvFile(t *testing.T) {
	if err := LoadEnvFile(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("missing .env should be ignored: %v", err)
	}
	path := writeFile(t, ".env", "TEXTBEHIND_TEST_ONLY=from-dotenv\n")
	t.Setenv("TEXTBEHIND_TEST_ONLY", "")
	os.Unsetenv("TEXTBEHIND_TEST_ONLY")
	if err := LoadEnvFile(path); err != nil {
		t.Fatalf("LoadEnvFile: %v", err)
	}
	if got := os.Getenv("TEXTBEHIND_TEST_ONLY"); got != "from-dotenv" {
		t.Fatalf("env from file: %q", got)
	}
}
