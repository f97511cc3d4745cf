package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"eyescan-server/internal/platform/errors"
)

// DefaultPath is read when EYESCAN_CONFIG is unset.
const DefaultPath = ".config.yaml"

// Loader reads configuration from defaults, a YAML file and the environment,
// in that order of precedence (later wins).
type Loader struct {
	useDotEnv bool
	path      string
	lookupEnv func(string) (string, bool)
}

// NewLoader creates a loader for the default config path.
func NewLoader() *Loader {
	return &Loader{
		useDotEnv: true,
		lookupEnv: os.LookupEnv,
	}
}

// WithDotEnv toggles loading variables from a .env file before reading config.
func (l *Loader) WithDotEnv(enabled bool) *Loader {
	l.useDotEnv = enabled
	return l
}

// WithPath overrides the YAML file location.
func (l *Loader) WithPath(path string) *Loader {
	l.path = path
	return l
}

// WithEnv overrides environment lookup (useful for tests).
func (l *Loader) WithEnv(lookup func(string) (string, bool)) *Loader {
	if lookup != nil {
		l.lookupEnv = lookup
	}
	return l
}

// Result captures the loaded configuration and its origin path.
type Result struct {
	Config *Config
	Path   string
}

// Load merges defaults, the YAML file (when present) and environment overrides,
// then validates the result.
func (l *Loader) Load() (*Result, error) {
	if l.useDotEnv {
		// A missing .env is normal outside development.
		_ = godotenv.Load()
	}

	cfg := DefaultConfig()

	path := l.path
	if path == "" {
		if v, ok := l.lookupEnv("EYESCAN_CONFIG"); ok && v != "" {
			path = v
		} else {
			path = DefaultPath
		}
	}

	origin := "defaults"
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(errors.KindConfig, "config.load", "parse "+path, err)
		}
		origin = path
	case os.IsNotExist(err) && l.path == "":
	default:
		return nil, errors.Wrap(errors.KindConfig, "config.load", "read "+path, err)
	}

	if err := l.applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := l.validate(cfg); err != nil {
		return nil, err
	}

	return &Result{Config: cfg, Path: origin}, nil
}

func (l *Loader) applyEnv(cfg *Config) error {
	str := func(key string, dst *string) {
		if v, ok := l.lookupEnv(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	str("ROBOFLOW_API_URL", &cfg.Inference.APIURL)
	str("ROBOFLOW_API_KEY", &cfg.Inference.APIKey)
	str("ROBOFLOW_MODEL_ID", &cfg.Inference.ModelID)
	str("EYESCAN_CLASS_POLICY", &cfg.Detection.ClassPolicy)
	str("LOG_LEVEL", &cfg.Log.Level)

	if v, ok := l.lookupEnv("PORT"); ok && strings.TrimSpace(v) != "" {
		port, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return errors.Wrap(errors.KindConfig, "config.env", "PORT must be an integer", err)
		}
		cfg.Server.Port = port
	}
	return nil
}

func (l *Loader) validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return errors.New(errors.KindConfig, "config.validate",
			fmt.Sprintf("server port out of range: %d", cfg.Server.Port))
	}
	cfg.Detection.ClassPolicy = strings.ToLower(strings.TrimSpace(cfg.Detection.ClassPolicy))
	switch cfg.Detection.ClassPolicy {
	case ClassPolicyWhitelist, ClassPolicyPassthrough:
	default:
		return errors.New(errors.KindConfig, "config.validate",
			fmt.Sprintf("unknown class policy %q", cfg.Detection.ClassPolicy))
	}
	if cfg.Detection.ClassPolicy == ClassPolicyWhitelist && len(cfg.Detection.Classes) == 0 {
		return errors.New(errors.KindConfig, "config.validate", "whitelist policy requires at least one class")
	}
	if strings.TrimSpace(cfg.Inference.ModelID) == "" {
		return errors.New(errors.KindConfig, "config.validate", "inference model id is required")
	}
	if strings.TrimSpace(cfg.Inference.APIURL) == "" {
		return errors.New(errors.KindConfig, "config.validate", "inference api url is required")
	}
	if cfg.Inference.Timeout <= 0 {
		return errors.New(errors.KindConfig, "config.validate", "inference timeout must be positive")
	}
	if cfg.Security.MaxFileSize <= 0 {
		return errors.New(errors.KindConfig, "config.validate", "security max_file_size must be positive")
	}
	return nil
}
