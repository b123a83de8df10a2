package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	LogLevel string `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	HTTP     HTTP   `yaml:"http"`
	Events   Events `yaml:"events"`
}

// HTTP configures the listener. WriteTimeout defaults to none because event
// streams stay open.
type HTTP struct {
	Addr            string        `yaml:"addr" env:"HTTP_ADDR" env-default:":8080"`
	ReadTimeout     time.Duration `yaml:"read-timeout" env:"HTTP_READ_TIMEOUT" env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write-timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"0s"`
	IdleTimeout     time.Duration `yaml:"idle-timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown-timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"5s"`
}

type Events struct {
	Heartbeat        time.Duration `yaml:"heartbeat" env:"SSE_HEARTBEAT" env-default:"15s"`
	SubscriberBuffer int           `yaml:"subscriber-buffer" env:"SSE_SUBSCRIBER_BUFFER" env-default:"1"`
}

// Load reads path when it exists and then applies environment overrides.
// A missing file is not an error; defaults and env vars are used instead.
func Load(path string) (*Config, error) {
	config := &Config{}

	if path != "" {
		_, err := os.Stat(path)
		switch {
		case err == nil:
			if err := cleanenv.ReadConfig(path, config); err != nil {
				return nil, fmt.Errorf("unable to load config file: %w", err)
			}
			return config, nil
		case !errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("stat config file: %w", err)
		}
	}

	if err := cleanenv.ReadEnv(config); err != nil {
		return nil, fmt.Errorf("unable to read config from env: %w", err)
	}
	return config, nil
}

// MustLoad - load configuration or panic.
func MustLoad(path string) *Config {
	config, err := Load(path)
	if err != nil {
		panic(err)
	}
	return config
}
