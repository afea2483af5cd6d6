package client

import (
	"fmt"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/mdouchement/notepad/internal/backup"
	"github.com/pkg/errors"
	yamlv3 "gopkg.in/yaml.v3"
)

const (
	// ConfigFile is the default configuration file, looked up in the current directory.
	ConfigFile = "notepad.yml"
	// EnvPrefix is the prefix of the environment variables overriding the configuration.
	EnvPrefix = "NOTEPAD_"
)

type (
	// A Config holds client's configuration.
	Config struct {
		Endpoint string `koanf:"endpoint"  yaml:"endpoint"`
		AnonKey  string `koanf:"anon_key"  yaml:"anon_key"`
		Storage  string `koanf:"storage"   yaml:"storage"`
		LogFile  string `koanf:"log_file"  yaml:"log_file"`
		AutoSync bool   `koanf:"auto_sync" yaml:"auto_sync"`
		Realtime bool   `koanf:"realtime"  yaml:"realtime"`
		// ShareBase is the base URL of the sync links, default to the endpoint.
		ShareBase string       `koanf:"share_base" yaml:"share_base,omitempty"`
		Backup    BackupConfig `koanf:"backup"     yaml:"backup,omitempty"`
	}

	// A BackupConfig holds the backup destinations.
	BackupConfig struct {
		S3 backup.S3Config `koanf:"s3" yaml:"s3,omitempty"`
	}
)

// Defaults returns the default configuration.
func Defaults() Config {
	return Config{
		Storage:  "notepad.db",
		LogFile:  "notepad.log",
		AutoSync: true,
		Realtime: true,
	}
}

// CloudConfigured returns true when a backend is configured.
func (c Config) CloudConfigured() bool {
	return c.Endpoint != "" && c.AnonKey != ""
}

// Load reads the configuration from the given file, then from the environment.
// A missing file is not an error.
func Load(filename string) (Config, error) {
	cfg := Defaults()
	if filename == "" {
		filename = ConfigFile
	}

	konf := koanf.New(".")
	err := konf.Load(confmap.Provider(map[string]any{
		"storage":   cfg.Storage,
		"log_file":  cfg.LogFile,
		"auto_sync": cfg.AutoSync,
		"realtime":  cfg.Realtime,
	}, "."), nil)
	if err != nil {
		return cfg, errors.Wrap(err, "could not load defaults")
	}

	if _, err = os.Stat(filename); err == nil {
		if err = konf.Load(file.Provider(filename), yaml.Parser()); err != nil {
			return cfg, errors.Wrapf(err, "could not load %s", filename)
		}
	}

	// NOTEPAD_BACKUP__S3__BUCKET => backup.s3.bucket
	err = konf.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil)
	if err != nil {
		return cfg, errors.Wrap(err, "could not load environment")
	}

	err = konf.Unmarshal("", &cfg)
	return cfg, errors.Wrap(err, "could not parse config")
}

// Save writes the configuration in the given file.
func Save(filename string, cfg Config) error {
	payload, err := yamlv3.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "could not serialize config")
	}

	err = os.WriteFile(filename, payload, 0o600)
	return errors.Wrapf(err, "could not write %s", filename)
}

// Init prompts the backend settings and writes the configuration file.
func Init(filename string) error {
	if filename == "" {
		filename = ConfigFile
	}

	cfg, err := Load(filename)
	if err != nil {
		return err
	}

	fmt.Println("Leave the endpoint empty to keep the notes on this device only.")
	cfg.Endpoint, err = readline.Line("Endpoint: ")
	if err != nil {
		return errors.Wrap(err, "could not read endpoint from stdin")
	}
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)

	if cfg.Endpoint != "" {
		key, err := readline.Password("Anon key: ")
		if err != nil {
			return errors.Wrap(err, "could not read anon key from stdin")
		}
		cfg.AnonKey = strings.TrimSpace(string(key))
	}

	fmt.Println("Storing configuration in " + filename)
	return Save(filename, cfg)
}
