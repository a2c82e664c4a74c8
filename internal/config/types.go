package config

// Config represents the complete gpiogw configuration.
type Config struct {
	Service  ServiceConfig  `yaml:"service" envPrefix:"SERVICE_"`
	Paths    PathsConfig    `yaml:"paths" envPrefix:"PATHS_"`
	State    StateConfig    `yaml:"state" envPrefix:"STATE_"`
	Hardware HardwareConfig `yaml:"hardware" envPrefix:"HARDWARE_"`
	API      APIConfig      `yaml:"api" envPrefix:"API_"`
	MQTT     MQTTConfig     `yaml:"mqtt" envPrefix:"MQTT_"`
	InfluxDB InfluxDBConfig `yaml:"influxdb" envPrefix:"INFLUXDB_"`

	// SourcePath is the absolute path of the loaded file. Empty for Defaults().
	SourcePath string `yaml:"-"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name           string `yaml:"name" env:"NAME"`
	LogLevel       string `yaml:"log_level" env:"LOG_LEVEL"`
	LogFormat      string `yaml:"log_format" env:"LOG_FORMAT"`
	AllowThreading bool   `yaml:"allow_threading" env:"ALLOW_THREADING"`
	Simulate       bool   `yaml:"simulate" env:"SIMULATE"`
	// StopWaitMS bounds the per-task wait on shutdown. Negative waits forever.
	StopWaitMS int `yaml:"stop_wait_ms" env:"STOP_WAIT_MS"`
}

// PathsConfig locates the on-disk inputs. Relative paths resolve against
// the directory of the config file.
type PathsConfig struct {
	ConfigDir  string `yaml:"config_dir" env:"CONFIG_DIR"`
	StartupDir string `yaml:"startup_dir" env:"STARTUP_DIR"`
	PluginsDir string `yaml:"plugins_dir" env:"PLUGINS_DIR"`
}

// StateConfig defines the action history database.
type StateConfig struct {
	Path string `yaml:"path" env:"PATH"`
}

// HardwareConfig selects the GPIO/I2C driver.
type HardwareConfig struct {
	Driver string `yaml:"driver" env:"DRIVER"` // memory | periph
	I2CBus string `yaml:"i2c_bus" env:"I2C_BUS"`
}

// APIConfig defines HTTP API server settings.
type APIConfig struct {
	Enabled bool          `yaml:"enabled" env:"ENABLED"`
	Listen  string        `yaml:"listen" env:"LISTEN"`
	Auth    APIAuthConfig `yaml:"auth" envPrefix:"AUTH_"`
}

// APIAuthConfig defines API authentication settings.
type APIAuthConfig struct {
	// APIKey is a single bearer token with full access.
	// Prefer Tokens for scoped access.
	APIKey string     `yaml:"api_key" env:"API_KEY"`
	Tokens []APIToken `yaml:"tokens,omitempty"`
}

// Enabled reports whether any credential is configured.
func (a APIAuthConfig) Enabled() bool {
	return a.APIKey != "" || len(a.Tokens) > 0
}

// APIToken defines a bearer token and its scopes.
type APIToken struct {
	Token  string   `yaml:"token"`
	Scopes []string `yaml:"scopes"`
}

// MQTTConfig defines the optional event forwarder.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled" env:"ENABLED"`
	Broker      MQTTBrokerConfig    `yaml:"broker" envPrefix:"BROKER_"`
	Auth        MQTTAuthConfig      `yaml:"auth" envPrefix:"AUTH_"`
	QoS         int                 `yaml:"qos" env:"QOS"`
	TopicPrefix string              `yaml:"topic_prefix" env:"TOPIC_PREFIX"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect" envPrefix:"RECONNECT_"`
}

type MQTTBrokerConfig struct {
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	ClientID string `yaml:"client_id" env:"CLIENT_ID"`
	TLS      bool   `yaml:"tls" env:"TLS"`
}

type MQTTAuthConfig struct {
	Username string `yaml:"username" env:"USERNAME"`
	Password string `yaml:"password" env:"PASSWORD"`
}

// MQTTReconnectConfig holds reconnect backoff bounds in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay" env:"INITIAL_DELAY"`
	MaxDelay     int `yaml:"max_delay" env:"MAX_DELAY"`
}

// InfluxDBConfig defines the optional temperature telemetry sink.
type InfluxDBConfig struct {
	Enabled         bool   `yaml:"enabled" env:"ENABLED"`
	URL             string `yaml:"url" env:"URL"`
	Token           string `yaml:"token" env:"TOKEN"`
	Org             string `yaml:"org" env:"ORG"`
	Bucket          string `yaml:"bucket" env:"BUCKET"`
	BatchSize       uint   `yaml:"batch_size" env:"BATCH_SIZE"`
	FlushIntervalMS int    `yaml:"flush_interval_ms" env:"FLUSH_INTERVAL_MS"`
}

// Defaults returns a Config with defaults suitable for a development host:
// memory driver, API on loopback, no MQTT or InfluxDB.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:           "gpiogw",
			LogLevel:       "info",
			LogFormat:      "json",
			AllowThreading: true,
			Simulate:       false,
			StopWaitMS:     5000,
		},
		Paths: PathsConfig{
			ConfigDir:  "./actionconfig",
			StartupDir: "./startup",
			PluginsDir: "./plugins",
		},
		State: StateConfig{
			Path: "./data/history.db",
		},
		Hardware: HardwareConfig{
			Driver: "memory",
			I2CBus: "",
		},
		API: APIConfig{
			Enabled: true,
			Listen:  "127.0.0.1:8080",
		},
		MQTT: MQTTConfig{
			Enabled: false,
			Broker: MQTTBrokerConfig{
				Host:     "127.0.0.1",
				Port:     1883,
				ClientID: "gpiogw",
			},
			QoS:         1,
			TopicPrefix: "gpiogw",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			Enabled:         false,
			URL:             "http://127.0.0.1:8086",
			Bucket:          "gpiogw",
			BatchSize:       100,
			FlushIntervalMS: 1000,
		},
	}
}
