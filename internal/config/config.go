package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	LogLevel  string    `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	HTTPPort  string    `yaml:"http-port" env:"HTTP_PORT" env-default:"9090"`
	WebSocket WebSocket `yaml:"websocket"`
	Rooms     Rooms     `yaml:"rooms"`
	Redis     Redis     `yaml:"redis"`
}

type WebSocket struct {
	ReadLimit      int64         `yaml:"read-limit" env:"WS_READ_LIMIT" env-default:"4096"`
	WriteWait      time.Duration `yaml:"write-wait" env:"WS_WRITE_WAIT" env-default:"10s"`
	PongWait       time.Duration `yaml:"pong-wait" env:"WS_PONG_WAIT" env-default:"60s"`
	SendBuffer     int           `yaml:"send-buffer" env:"WS_SEND_BUFFER" env-default:"64"`
	AllowedOrigins []string      `yaml:"allowed-origins" env:"WS_ALLOWED_ORIGINS" env-separator:","`
}

type Rooms struct {
	MaxCodeLength int `yaml:"max-code-length" env:"ROOMS_MAX_CODE_LENGTH" env-default:"64"`
}

type Redis struct {
	Enabled bool   `yaml:"enabled" env:"REDIS_ENABLED" env-default:"false"`
	Host    string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port    string `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
}

// Load - reads the yaml file at path, then applies environment overrides and defaults.
func Load(path string) (*Config, error) {
	config := &Config{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		return nil, fmt.Errorf("unable to load config file: %w", err)
	}

	return config, nil
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config, err := Load(path)
	if err != nil {
		panic(err)
	}

	return config
}

// PingPeriod - keepalive pings are sent a little before the peer's pong deadline.
func (that *WebSocket) PingPeriod() time.Duration {
	return that.PongWait * 9 / 10
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}
