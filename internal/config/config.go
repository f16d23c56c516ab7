package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

var configLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	configLogger = l
}

// Config represents the complete configuration structure
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Storage   StorageConfig   `yaml:"storage"`
	Auth      AuthConfig      `yaml:"auth"`
	Cache     CacheConfig     `yaml:"cache"`
	Client    ClientConfig    `yaml:"client"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type LoggingConfig struct {
	Level string `yaml:"level" default:"info"`
	// Format is console or json.
	Format string `yaml:"format" default:"console"`
}

type SiteConfig struct {
	Name        string `yaml:"name" default:"Business War Room"`
	Description string `yaml:"description" default:"Strategy, growth and leadership intel for operators"`
	// MarkdownEngine is "classic" or "mmark".
	MarkdownEngine string `yaml:"markdown_engine" default:"classic"`
}

type ServerConfig struct {
	Host         string        `yaml:"host" default:"0.0.0.0"`
	Port         string        `yaml:"port" default:"12600"`
	ReadTimeout  time.Duration `yaml:"read_timeout" default:"15s"`
	WriteTimeout time.Duration `yaml:"write_timeout" default:"15s"`
	CorsOrigins  []string      `yaml:"cors_origins" default:"*"`
	MaxUploadMB  int           `yaml:"max_upload_mb" default:"10"`
}

type DatabaseConfig struct {
	Path string `yaml:"path" default:"./database.db"`
}

type StorageConfig struct {
	// Driver is "local" or "s3".
	Driver        string `yaml:"driver" default:"local"`
	LocalDir      string `yaml:"local_dir" default:"./uploads"`
	PublicBaseURL string `yaml:"public_base_url" default:"http://localhost:12600/uploads"`
	Bucket        string `yaml:"bucket" default:"blog-assets"`
	Endpoint      string `yaml:"endpoint" default:""`
	Region        string `yaml:"region" default:"auto"`
}

type AuthConfig struct {
	// Provider is "local" or "clerk".
	Provider      string        `yaml:"provider" default:"local"`
	TokenTTL      time.Duration `yaml:"token_ttl" default:"24h"`
	CookieName    string        `yaml:"cookie_name" default:"session"`
	AllowedEmails []string      `yaml:"allowed_emails" default:"admin@warroom.local"`
	MaxAdmins     int           `yaml:"max_admins" default:"3"`
	Provisioning  Provisioning  `yaml:"provisioning"`
}

type Provisioning struct {
	Attempts int           `yaml:"attempts" default:"5"`
	Delay    time.Duration `yaml:"delay" default:"500ms"`
	Interval time.Duration `yaml:"interval" default:"250ms"`
}

type CacheConfig struct {
	PostsTTL      time.Duration `yaml:"posts_ttl" default:"5m"`
	FeaturedLimit int           `yaml:"featured_limit" default:"3"`
	// PollInterval is how often the server checks for writes made by other processes.
	PollInterval time.Duration `yaml:"poll_interval" default:"5s"`
}

type ClientConfig struct {
	BaseURL     string        `yaml:"base_url" default:"http://localhost:12600"`
	StateDir    string        `yaml:"state_dir" default:""`
	Timeout     time.Duration `yaml:"timeout" default:"10s"`
	Compression string        `yaml:"compression" default:"zstd"`
}

type RateLimitConfig struct {
	SignInPerMinute int `yaml:"signin_per_minute" default:"5"`
	PublicPerMinute int `yaml:"public_per_minute" default:"120"`
}

// Addr is the listen address of the API server.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}

func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "local", "s3":
	default:
		return fmt.Errorf("unsupported storage driver %q", c.Storage.Driver)
	}
	switch c.Auth.Provider {
	case "local", "clerk":
	default:
		return fmt.Errorf("unsupported auth provider %q", c.Auth.Provider)
	}
	switch c.Site.MarkdownEngine {
	case "classic", "mmark":
	default:
		return fmt.Errorf("unsupported markdown engine %q", c.Site.MarkdownEngine)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("unsupported log format %q", c.Logging.Format)
	}
	if c.Auth.MaxAdmins < 1 {
		return fmt.Errorf("auth.max_admins must be positive, got %d", c.Auth.MaxAdmins)
	}
	if c.Auth.Provisioning.Attempts < 1 {
		return fmt.Errorf("auth.provisioning.attempts must be positive, got %d", c.Auth.Provisioning.Attempts)
	}
	if c.Cache.PostsTTL < 0 {
		return fmt.Errorf("cache.posts_ttl must not be negative")
	}
	if c.Cache.PollInterval <= 0 {
		return fmt.Errorf("cache.poll_interval must be positive")
	}
	return nil
}

// LoadConfig reads the YAML file at path on top of the defaults.
// A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	config := &Config{}

	// Apply default values first
	applyDefaults(config)

	// Try to read and parse the config file
	data, err := os.ReadFile(path)
	if err != nil {
		// If file doesn't exist, just use defaults
		configLogger.Info().Str("path", path).Msg("Config file not found, using defaults")
		return config, nil
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file: %w", err)
	}

	return config, nil
}

func ApplyDefaults(config interface{}) {
	applyDefaults(config)
}

var durationType = reflect.TypeOf(time.Duration(0))

func applyDefaults(config interface{}) {
	v := reflect.ValueOf(config)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		return
	}

	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.IsValid() || !field.CanSet() {
			continue
		}

		// Recursively apply defaults to nested structs
		if field.Kind() == reflect.Struct {
			applyDefaults(field.Addr().Interface())
			continue
		}

		defaultValue := fieldType.Tag.Get("default")
		if defaultValue == "" {
			continue
		}

		if field.Type() == durationType {
			if val, err := time.ParseDuration(defaultValue); err == nil {
				field.SetInt(int64(val))
			}
			continue
		}

		switch field.Kind() {
		case reflect.String:
			field.SetString(defaultValue)
		case reflect.Bool:
			if val, err := strconv.ParseBool(defaultValue); err == nil {
				field.SetBool(val)
			}
		case reflect.Int:
			if val, err := strconv.ParseInt(defaultValue, 10, 64); err == nil {
				field.SetInt(val)
			}
		case reflect.Float64:
			if val, err := strconv.ParseFloat(defaultValue, 64); err == nil {
				field.SetFloat(val)
			}
		case reflect.Slice:
			if field.Len() == 0 && field.Type().Elem().Kind() == reflect.String {
				parts := strings.Split(defaultValue, ",")
				slice := reflect.MakeSlice(field.Type(), len(parts), len(parts))
				for j, part := range parts {
					slice.Index(j).SetString(strings.TrimSpace(part))
				}
				field.Set(slice)
			}
		default:
			configLogger.Warn().
				Str("field_name", fieldType.Name).
				Str("field_type", field.Kind().String()).
				Msg("Unsupported field type for default value")
		}
	}
}
