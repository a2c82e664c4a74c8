package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// EnvPrefix prefixes every environment override, e.g. GPIOGW_SERVICE_SIMULATE.
const EnvPrefix = "GPIOGW_"

// Load reads configuration from a YAML file.
//
// Keys absent from the file keep their Defaults() value. A .env file next to
// the config is loaded first (existing variables win), then ${VAR}
// placeholders are expanded, then GPIOGW_* variables override file values.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(resolveConfigFile(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}

	baseDir := filepath.Dir(absPath)
	if err := loadDotEnv(filepath.Join(baseDir, ".env")); err != nil {
		return nil, err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal([]byte(interpolateEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", absPath, err)
	}
	cfg.SourcePath = absPath

	if err := finish(cfg, baseDir); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefaults returns Defaults() with environment overrides applied, for
// hosts that run without a config file. Relative paths resolve against the
// working directory.
func LoadDefaults() (*Config, error) {
	cfg := Defaults()
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolve working directory: %w", err)
	}
	if err := finish(cfg, wd); err != nil {
		return nil, err
	}
	return cfg, nil
}

func finish(cfg *Config, baseDir string) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("failed to apply environment overrides: %w", err)
	}
	resolvePaths(cfg, baseDir)
	if err := validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func loadDotEnv(path string) error {
	if !fileExists(path) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Unknown variables are left as-is.
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}

func resolvePaths(cfg *Config, baseDir string) {
	for _, p := range []*string{
		&cfg.Paths.ConfigDir,
		&cfg.Paths.StartupDir,
		&cfg.Paths.PluginsDir,
		&cfg.State.Path,
	} {
		if *p == "" || *p == ":memory:" || filepath.IsAbs(*p) {
			continue
		}
		*p = filepath.Join(baseDir, *p)
	}
}

var (
	validLogLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
	validLogFormats = map[string]bool{"json": true, "text": true}
	validDrivers    = map[string]bool{"memory": true, "periph": true}
)

func validate(cfg *Config) error {
	var errs []error

	if !validLogLevels[strings.ToLower(cfg.Service.LogLevel)] {
		errs = append(errs, fmt.Errorf("service.log_level %q is not one of debug, info, warn, error", cfg.Service.LogLevel))
	}
	if !validLogFormats[strings.ToLower(cfg.Service.LogFormat)] {
		errs = append(errs, fmt.Errorf("service.log_format %q must be json or text", cfg.Service.LogFormat))
	}
	if cfg.Paths.ConfigDir == "" {
		errs = append(errs, errors.New("paths.config_dir is required"))
	}
	if cfg.State.Path == "" {
		errs = append(errs, errors.New("state.path is required"))
	}
	if !validDrivers[cfg.Hardware.Driver] {
		errs = append(errs, fmt.Errorf("hardware.driver %q must be memory or periph", cfg.Hardware.Driver))
	}

	if cfg.API.Enabled && strings.TrimSpace(cfg.API.Listen) == "" {
		errs = append(errs, errors.New("api.listen is required when the API is enabled"))
	}
	for i, tok := range cfg.API.Auth.Tokens {
		if strings.TrimSpace(tok.Token) == "" {
			errs = append(errs, fmt.Errorf("api.auth.tokens[%d]: token is empty", i))
		}
		if len(tok.Scopes) == 0 {
			errs = append(errs, fmt.Errorf("api.auth.tokens[%d]: at least one scope is required", i))
		}
		if envVarPattern.MatchString(tok.Token) {
			errs = append(errs, fmt.Errorf("api.auth.tokens[%d]: unresolved environment variable in token", i))
		}
	}
	if envVarPattern.MatchString(cfg.API.Auth.APIKey) {
		errs = append(errs, errors.New("api.auth.api_key: unresolved environment variable"))
	}

	if cfg.MQTT.Enabled {
		if cfg.MQTT.Broker.Host == "" {
			errs = append(errs, errors.New("mqtt.broker.host is required when mqtt is enabled"))
		}
		if cfg.MQTT.Broker.Port < 1 || cfg.MQTT.Broker.Port > 65535 {
			errs = append(errs, fmt.Errorf("mqtt.broker.port %d out of range", cfg.MQTT.Broker.Port))
		}
		if cfg.MQTT.Broker.ClientID == "" {
			errs = append(errs, errors.New("mqtt.broker.client_id is required when mqtt is enabled"))
		}
	}
	if cfg.MQTT.QoS < 0 || cfg.MQTT.QoS > 2 {
		errs = append(errs, fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", cfg.MQTT.QoS))
	}

	if cfg.InfluxDB.Enabled {
		if cfg.InfluxDB.URL == "" {
			errs = append(errs, errors.New("influxdb.url is required when influxdb is enabled"))
		}
		if cfg.InfluxDB.Org == "" {
			errs = append(errs, errors.New("influxdb.org is required when influxdb is enabled"))
		}
		if cfg.InfluxDB.Bucket == "" {
			errs = append(errs, errors.New("influxdb.bucket is required when influxdb is enabled"))
		}
	}

	return errors.Join(errs...)
}
