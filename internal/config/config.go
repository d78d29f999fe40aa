package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Relay    RelayConfig    `yaml:"relay"`
	AWS      AWSConfig      `yaml:"aws"`
	APNs     APNsConfig     `yaml:"apns"`
	JWT      JWTConfig      `yaml:"jwt"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int    `yaml:"max_conns"`
	// EnsureSchema creates the tables on startup. Development only.
	EnsureSchema bool `yaml:"ensure_schema"`
}

// RelayConfig holds live session and messaging limits
type RelayConfig struct {
	OutboundBuffer   int           `yaml:"outbound_buffer"`
	MaxContentLength int           `yaml:"max_content_length"`
	WriteWait        time.Duration `yaml:"write_wait"`
	PongWait         time.Duration `yaml:"pong_wait"`
	MaxFrameBytes    int64         `yaml:"max_frame_bytes"`
}

// PingPeriod is how often the writer pings an idle peer. It must be shorter
// than PongWait.
func (c *RelayConfig) PingPeriod() time.Duration {
	return c.PongWait * 9 / 10
}

// AWSConfig holds object storage configuration for profile photos
type AWSConfig struct {
	Region     string        `yaml:"region"`
	S3Bucket   string        `yaml:"s3_bucket"`
	AccessKey  string        `yaml:"access_key"`
	SecretKey  string        `yaml:"secret_key"`
	Endpoint   string        `yaml:"endpoint"`
	PresignTTL time.Duration `yaml:"presign_ttl"`
}

// APNsConfig holds offline push configuration
type APNsConfig struct {
	Enabled    bool   `yaml:"enabled"`
	KeyFile    string `yaml:"key_file"`
	KeyID      string `yaml:"key_id"`
	TeamID     string `yaml:"team_id"`
	Topic      string `yaml:"topic"`
	Production bool   `yaml:"production"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level"`
}

// Path returns the config file location, honoring RELAY_CONFIG.
func Path() string {
	if p := os.Getenv("RELAY_CONFIG"); p != "" {
		return p
	}
	return "config.yaml"
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration and fills defaults
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()

	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt.secret is required")
	}
	if cfg.Relay.PongWait <= cfg.Relay.WriteWait {
		return nil, fmt.Errorf("relay.pong_wait must exceed relay.write_wait")
	}
	if cfg.APNs.Enabled && (cfg.APNs.KeyFile == "" || cfg.APNs.Topic == "") {
		return nil, fmt.Errorf("apns.key_file and apns.topic are required when apns is enabled")
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Relay.OutboundBuffer <= 0 {
		c.Relay.OutboundBuffer = 64
	}
	if c.Relay.MaxContentLength <= 0 {
		c.Relay.MaxContentLength = 2000
	}
	if c.Relay.WriteWait <= 0 {
		c.Relay.WriteWait = 10 * time.Second
	}
	if c.Relay.PongWait <= 0 {
		c.Relay.PongWait = 60 * time.Second
	}
	if c.Relay.MaxFrameBytes <= 0 {
		c.Relay.MaxFrameBytes = 16 * 1024
	}
	if c.AWS.PresignTTL <= 0 {
		c.AWS.PresignTTL = 15 * time.Minute
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
	if c.MaxConns > 0 {
		dsn += fmt.Sprintf(" pool_max_conns=%d", c.MaxConns)
	}
	return dsn
}
