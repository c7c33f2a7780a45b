// Package config loads runtime settings from a YAML file, an optional .env
// file and TEXTBEHIND_* environment variables, in that order of precedence
// (environment wins).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/ByLCY/textbehind/composite"
	"github.com/ByLCY/textbehind/fonts"
	"github.com/ByLCY/textbehind/separation"
)

// EnvPrefix 是所有环境变量覆盖项的前缀。
const EnvPrefix = "TEXTBEHIND_"

// 抠图后端
const (
	SeparatorChroma  = "chroma"
	SeparatorCommand = "command"
	SeparatorHTTP    = "http"
)

type Config struct {
	LogLevel            string                    `yaml:"log_level"`
	OutDir              string                    `yaml:"out_dir"`
	Preview             composite.Size            `yaml:"preview"`
	ResetLayersOnUpload bool                      `yaml:"reset_layers_on_upload"`
	Separator           SeparatorConfig           `yaml:"separator"`
	Fonts               map[string]map[int]string `yaml:"fonts"` // family -> weight -> file
	Vars                map[string]any            `yaml:"vars"`  // 场景文件 ${key} 的默认值
}

type SeparatorConfig struct {
	Kind      string            `yaml:"kind"`
	Command   string            `yaml:"command"`
	Args      []string          `yaml:"args"`
	URL       string            `yaml:"url"`
	Header    map[string]string `yaml:"header"`
	Key       string            `yaml:"key"`
	Tolerance float64           `yaml:"tolerance"`
	Softness  float64           `yaml:"softness"`
	Timeout   time.Duration     `yaml:"timeout"`
	Attempts  int               `yaml:"attempts"`
	Backoff   time.Duration     `yaml:"backoff"`
}

// Default returns the settings used when no file is given.
func Default() Config {
	return Config{
		LogLevel: "info",
		OutDir:   ".",
		Preview:  composite.Size{Width: composite.DefaultPreviewWidth, Height: composite.DefaultPreviewHeight},
		Separator: SeparatorConfig{
			Kind:      SeparatorChroma,
			Tolerance: 0.15,
			Softness:  0.05,
			Timeout:   2 * time.Minute,
			Attempts:  1,
			Backoff:   time.Second,
		},
	}
}

// LoadEnvFile 加载 .env 文件；文件不存在不算错误。
func LoadEnvFile(files ...string) error {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config: load env file: %w", err)
	}
	return nil
}

// Load reads path (if non-empty) over the defaults, then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: load %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: unmarshal %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	str("LOG_LEVEL", &c.LogLevel)
	str("OUT_DIR", &c.OutDir)
	str("SEPARATOR", &c.Separator.Kind)
	str("SEPARATOR_COMMAND", &c.Separator.Command)
	str("SEPARATOR_URL", &c.Separator.URL)
	str("SEPARATOR_KEY", &c.Separator.Key)

	if v, ok := lookup(EnvPrefix + "SEPARATOR_ARGS"); ok {
		c.Separator.Args = strings.Fields(v)
	}
	if v, ok := lookup(EnvPrefix + "SEPARATOR_TOKEN"); ok && v != "" {
		if c.Separator.Header == nil {
			c.Separator.Header = map[string]string{}
		}
		c.Separator.Header["Authorization"] = "Bearer " + v
	}
	if v, ok := lookup(EnvPrefix + "SEPARATOR_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: %sSEPARATOR_TIMEOUT: %w", EnvPrefix, err)
		}
		c.Separator.Timeout = d
	}
	if v, ok := lookup(EnvPrefix + "SEPARATOR_ATTEMPTS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %sSEPARATOR_ATTEMPTS: %w", EnvPrefix, err)
		}
		c.Separator.Attempts = n
	}
	if v, ok := lookup(EnvPrefix + "RESET_LAYERS"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: %sRESET_LAYERS: %w", EnvPrefix, err)
		}
		c.ResetLayersOnUpload = b
	}
	return nil
}

// Validate 检查日志级别与抠图后端是否可用。
func (c Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch c.Separator.Kind {
	case SeparatorChroma:
	case SeparatorCommand:
		if c.Separator.Command == "" {
			return fmt.Errorf("config: separator kind %q needs a command", c.Separator.Kind)
		}
	case SeparatorHTTP:
		if c.Separator.URL == "" {
			return fmt.Errorf("config: separator kind %q needs a url", c.Separator.Kind)
		}
	default:
		return fmt.Errorf("config: unknown separator kind %q", c.Separator.Kind)
	}
	return nil
}

// Level returns the parsed log level.
func (c Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// NewSeparator builds the configured adapter, wrapped with retries and a
// per-attempt timeout.
func (c Config) NewSeparator() (separation.Separator, error) {
	sc := c.Separator
	var s separation.Separator
	switch sc.Kind {
	case SeparatorChroma:
		s = separation.ChromaKey{Key: sc.Key, Tolerance: sc.Tolerance, Softness: sc.Softness}
	case SeparatorCommand:
		s = separation.Command{Path: sc.Command, Args: sc.Args}
	case SeparatorHTTP:
		header := http.Header{}
		for k, v := range sc.Header {
			header.Set(k, v)
		}
		s = separation.HTTP{URL: sc.URL, Header: header}
	default:
		return nil, fmt.Errorf("config: unknown separator kind %q", sc.Kind)
	}
	if sc.Attempts <= 1 && sc.Timeout <= 0 {
		return s, nil
	}
	return separation.Retry{Separator: s, Attempts: sc.Attempts, Backoff: sc.Backoff, Timeout: sc.Timeout}, nil
}

// RegisterFonts 把配置里的字体文件注册到 reg，按族名与字重排序以保证错误信息稳定。
func (c Config) RegisterFonts(reg *fonts.Registry) error {
	families := make([]string, 0, len(c.Fonts))
	for family := range c.Fonts {
		families = append(families, family)
	}
	sort.Strings(families)
	for _, family := range families {
		weights := make([]int, 0, len(c.Fonts[family]))
		for w := range c.Fonts[family] {
			weights = append(weights, w)
		}
		sort.Ints(weights)
		for _, w := range weights {
			if err := reg.RegisterFile(family, w, c.Fonts[family][w]); err != nil {
				return fmt.Errorf("config: font %s %d: %w", family, w, err)
			}
		}
	}
	return nil
}
