package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/docker/go-units"
	"github.com/pingcap-incubator/tinysync/log"
	"github.com/pingcap/errors"
)

const (
	EngineBadger = "badger"
	EnginePebble = "pebble"
	EngineMemory = "memory"
)

type Config struct {
	// Address the push/pull HTTP API listens on.
	StoreAddr string `toml:"store-addr"`
	// Address of the status server (pprof). Empty disables it.
	StatusAddr string `toml:"status-addr"`
	LogLevel   string `toml:"log-level"`

	// Storage engine: badger, pebble or memory.
	Engine string `toml:"engine"`
	DBPath string `toml:"db-path"` // Directory to store the data in. Should exist and be writable.
	// Fsync every committed batch.
	SyncWrites bool `toml:"sync-writes"`

	// Largest accepted push or pull body, e.g. "10MB".
	MaxRequestBody string `toml:"max-request-body"`
}

func (c *Config) Validate() error {
	switch c.Engine {
	case EngineBadger, EnginePebble:
		if c.DBPath == "" {
			return fmt.Errorf("db-path must be set for engine %s", c.Engine)
		}
	case EngineMemory:
		log.Warnf("Engine %s keeps all data in memory, it is lost on restart.", c.Engine)
	default:
		return fmt.Errorf("unknown engine %q", c.Engine)
	}

	if c.StoreAddr == "" {
		return fmt.Errorf("store-addr must be set")
	}

	size, err := c.MaxRequestBodyBytes()
	if err != nil {
		return err
	}
	if size <= 0 {
		return fmt.Errorf("max-request-body must be greater than 0")
	}
	return nil
}

// MaxRequestBodyBytes parses MaxRequestBody.
func (c *Config) MaxRequestBodyBytes() (int64, error) {
	size, err := units.RAMInBytes(c.MaxRequestBody)
	if err != nil {
		return 0, errors.Annotatef(err, "invalid max-request-body %q", c.MaxRequestBody)
	}
	return size, nil
}

func getLogLevel() (logLevel string) {
	logLevel = "info"
	if l := os.Getenv("LOG_LEVEL"); len(l) != 0 {
		logLevel = l
	}
	return
}

func NewDefaultConfig() *Config {
	return &Config{
		StoreAddr:      "127.0.0.1:7890",
		StatusAddr:     "",
		LogLevel:       getLogLevel(),
		Engine:         EngineBadger,
		DBPath:         "/tmp/tinysync",
		SyncWrites:     true,
		MaxRequestBody: "10MB",
	}
}

func NewTestConfig() *Config {
	return &Config{
		StoreAddr:      "127.0.0.1:0",
		LogLevel:       getLogLevel(),
		Engine:         EngineMemory,
		DBPath:         "/tmp/tinysync-test",
		SyncWrites:     false,
		MaxRequestBody: "1MB",
	}
}

// LoadFile overlays the TOML file at path onto the default config.
func LoadFile(path string) (*Config, error) {
	conf := NewDefaultConfig()
	if path == "" {
		return conf, nil
	}
	if _, err := toml.DecodeFile(path, conf); err != nil {
		return nil, errors.Annotatef(err, "load config %s", path)
	}
	return conf, nil
}
