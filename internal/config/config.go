package config

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"

	yaml "gopkg.in/yaml.v3"
)

const defaultConf = `server:
    name: "armada"
    host: "localhost"
    port: "6667"
    motd: "Welcome to the Secure Chat Server!"
    debug: false
auth:
    password: ""
    require: false
chat:
    preserve_channels_on_rename: false
transfer:
    max_bytes: 0
`

// Config holds all server settings. The auth and chat sections pin down
// behavior that is otherwise ambiguous: an empty auth.password means clients
// start out authenticated unless auth.require forces an explicit AUTH
// exchange, and preserve_channels_on_rename decides whether a nickname
// change keeps existing channel memberships.
type Config struct {
	Server struct {
		Name  string `yaml:"name"`
		Host  string `yaml:"host"`
		Port  string `yaml:"port"`
		Motd  string `yaml:"motd"`
		Debug bool   `yaml:"debug"`
	} `yaml:"server"`
	Auth struct {
		// Password is the shared server password, either plaintext or a
		// bcrypt hash (recognized by its $2 prefix). Empty disables the
		// password check.
		Password string `yaml:"password"`
		Require  bool   `yaml:"require"`
	} `yaml:"auth"`
	Chat struct {
		PreserveChannelsOnRename bool `yaml:"preserve_channels_on_rename"`
	} `yaml:"chat"`
	Transfer struct {
		// MaxBytes caps the declared size of a single file transfer.
		// Zero means unlimited.
		MaxBytes int64 `yaml:"max_bytes"`
	} `yaml:"transfer"`
}

// Default returns the built-in configuration.
func Default() *Config {
	c := &Config{}
	if err := yaml.Unmarshal([]byte(defaultConf), c); err != nil {
		panic(err)
	}
	return c
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	c := Default()
	if err := yaml.Unmarshal(raw, c); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return c, nil
}

// LoadDefault loads ~/.armada/conf.yaml, writing a default file on first run.
func LoadDefault() (*Config, error) {
	osUser, err := user.Current()
	if err != nil {
		return nil, err
	}

	configDir := filepath.Join(osUser.HomeDir, ".armada")
	if _, err := os.Stat(configDir); os.IsNotExist(err) {
		if err := os.Mkdir(configDir, 0o755); err != nil {
			return nil, err
		}
	}
	confPath := filepath.Join(configDir, "conf.yaml")
	if _, err := os.Stat(confPath); os.IsNotExist(err) {
		if err := os.WriteFile(confPath, []byte(defaultConf), 0o644); err != nil {
			return nil, err
		}
	}
	return Load(confPath)
}
