// Package config holds the intentui configuration decoded by viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/zjrosen/intentui/internal/domain/catalog"
	"github.com/zjrosen/intentui/internal/flags"
	"github.com/zjrosen/intentui/internal/log"
	"github.com/zjrosen/intentui/internal/tracing"
)

// EnvPrefix prefixes environment overrides, e.g. INTENTUI_SERVER_ADDR.
const EnvPrefix = "INTENTUI"

// DefaultPath is where a missing config file is created.
const DefaultPath = ".intentui/config.yaml"

// Config holds all intentui configuration.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Sources      SourcesConfig      `mapstructure:"sources"`
	Resolver     ResolverConfig     `mapstructure:"resolver"`
	Render       RenderConfig       `mapstructure:"render"`
	DataProvider DataProviderConfig `mapstructure:"data_provider"`
	Tracing      tracing.Config     `mapstructure:"tracing"`
	Log          LogConfig          `mapstructure:"log"`
	Flags        map[string]bool    `mapstructure:"flags"`
}

// ServerConfig configures the HTTP boundary.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// DefaultMode is used by /render when options.mode is absent: "html" or "json".
	DefaultMode string `mapstructure:"default_mode"`
}

// SourcesConfig locates the intent and component catalogs. Each path may be a
// single .json/.yaml file or a doublestar glob such as "intents/**/*.json".
type SourcesConfig struct {
	Intents    string        `mapstructure:"intents"`
	Components string        `mapstructure:"components"`
	Watch      bool          `mapstructure:"watch"`
	Debounce   time.Duration `mapstructure:"debounce"`
}

// ResolverConfig configures intent resolution.
type ResolverConfig struct {
	// DefaultTTL is used for components without performance.cacheTtl, in seconds.
	DefaultTTL   int           `mapstructure:"default_ttl"`
	CacheCleanup time.Duration `mapstructure:"cache_cleanup"`
}

// RenderConfig configures HTML rendering.
type RenderConfig struct {
	// SSREndpoints maps a framework name to a server rendering URL.
	SSREndpoints map[string]string `mapstructure:"ssr_endpoints"`
	SSRTimeout   time.Duration     `mapstructure:"ssr_timeout"`
	Title        string            `mapstructure:"title"`
	Lang         string            `mapstructure:"lang"`
}

// DataProviderConfig configures the optional HTTP data provider.
type DataProviderConfig struct {
	URL         string            `mapstructure:"url"`
	Timeout     time.Duration     `mapstructure:"timeout"`
	MaxAttempts uint              `mapstructure:"max_attempts"`
	Headers     map[string]string `mapstructure:"headers"`
}

// LogConfig configures the global logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			DefaultMode:     "json",
		},
		Sources: SourcesConfig{
			Intents:    "config/intents.json",
			Components: "config/components.json",
			Watch:      false,
			Debounce:   300 * time.Millisecond,
		},
		Resolver: ResolverConfig{
			DefaultTTL:   300,
			CacheCleanup: 10 * time.Minute,
		},
		Render: RenderConfig{
			SSRTimeout: 2 * time.Second,
			Lang:       "en",
		},
		DataProvider: DataProviderConfig{
			Timeout:     5 * time.Second,
			MaxAttempts: 3,
		},
		Tracing: tracing.DefaultConfig(),
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Flags: flags.Defaults(),
	}
}

// SetDefaults registers every default with v so partial files and env
// overrides decode on top of them.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.default_mode", d.Server.DefaultMode)
	v.SetDefault("sources.intents", d.Sources.Intents)
	v.SetDefault("sources.components", d.Sources.Components)
	v.SetDefault("sources.watch", d.Sources.Watch)
	v.SetDefault("sources.debounce", d.Sources.Debounce)
	v.SetDefault("resolver.default_ttl", d.Resolver.DefaultTTL)
	v.SetDefault("resolver.cache_cleanup", d.Resolver.CacheCleanup)
	v.SetDefault("render.ssr_timeout", d.Render.SSRTimeout)
	v.SetDefault("render.lang", d.Render.Lang)
	v.SetDefault("data_provider.timeout", d.DataProvider.Timeout)
	v.SetDefault("data_provider.max_attempts", d.DataProvider.MaxAttempts)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.otlp_endpoint", d.Tracing.OTLPEndpoint)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	for name, on := range d.Flags {
		v.SetDefault("flags."+name, on)
	}
}

// Load decodes v over the defaults and validates the result.
func Load(v *viper.Viper) (Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration and reports every problem at once.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	switch c.Server.DefaultMode {
	case "", "json", "html":
	default:
		errs = append(errs, fmt.Errorf("server.default_mode must be \"json\" or \"html\", got %q", c.Server.DefaultMode))
	}
	if c.Sources.Intents == "" {
		errs = append(errs, errors.New("sources.intents is required"))
	}
	if c.Sources.Components == "" {
		errs = append(errs, errors.New("sources.components is required"))
	}
	if c.Sources.Debounce < 0 {
		errs = append(errs, errors.New("sources.debounce must not be negative"))
	}
	if c.Resolver.DefaultTTL < 0 {
		errs = append(errs, errors.New("resolver.default_ttl must not be negative"))
	}
	for name, endpoint := range c.Render.SSREndpoints {
		if !catalog.Framework(name).Valid() {
			errs = append(errs, fmt.Errorf("render.ssr_endpoints: unknown framework %q", name))
		}
		if endpoint == "" {
			errs = append(errs, fmt.Errorf("render.ssr_endpoints.%s: url is required", name))
		}
	}
	if c.DataProvider.URL != "" && !strings.HasPrefix(c.DataProvider.URL, "http://") && !strings.HasPrefix(c.DataProvider.URL, "https://") {
		errs = append(errs, fmt.Errorf("data_provider.url must be an http(s) URL, got %q", c.DataProvider.URL))
	}
	if err := ValidateTracing(c.Tracing); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be \"text\" or \"json\", got %q", c.Log.Format))
	}
	for name := range c.Flags {
		if _, known := flags.Defaults()[name]; !known {
			errs = append(errs, fmt.Errorf("flags: unknown flag %q", name))
		}
	}
	if len(errs) > 0 {
		return catalog.WrapError(catalog.ErrConfiguration, errors.Join(errs...), "invalid configuration")
	}
	return nil
}

// ValidateTracing checks tracing configuration for errors.
func ValidateTracing(t tracing.Config) error {
	if t.SampleRate < 0.0 || t.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", t.SampleRate)
	}
	switch t.Exporter {
	case "", "none", "file", "stdout", "otlp":
	default:
		return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", t.Exporter)
	}
	if t.Enabled {
		if t.Exporter == "file" && t.FilePath == "" {
			return fmt.Errorf("tracing.file_path is required when exporter is \"file\"")
		}
		if t.Exporter == "otlp" && t.OTLPEndpoint == "" {
			return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
		}
	}
	return nil
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# intentui configuration

server:
  addr: ":8080"
  read_timeout: 10s
  write_timeout: 30s
  shutdown_timeout: 10s
  default_mode: json      # /render output when options.mode is absent: json or html

# Catalog sources. Each entry is a .json/.yaml file or a glob ("intents/**/*.json").
sources:
  intents: config/intents.json
  components: config/components.json
  watch: false            # Reload when a source file changes
  debounce: 300ms

resolver:
  default_ttl: 300        # Seconds, for components without performance.cacheTtl
  cache_cleanup: 10m

render:
  ssr_timeout: 2s
  lang: en
  # title: My Shop
  # ssr_endpoints:
  #   react: http://localhost:3001/render

# Optional backend that contributes data to props and crawler listings.
# data_provider:
#   url: http://localhost:9000
#   timeout: 5s
#   max_attempts: 3

log:
  level: info             # debug, info, warn, error
  format: text            # text or json
  # file: /var/log/intentui.log

flags:
  ssr: true
  resolution-cache: true
  live-reload: false

# Tracing
# tracing:
#   enabled: true
#   exporter: otlp        # none, file, stdout, otlp
#   otlp_endpoint: localhost:4317
#   sample_rate: 1.0
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
