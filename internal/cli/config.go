package cli

import (
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

const (
	DefaultConfigFile = "tide.yaml"
	DefaultEnvFile    = ".env"
)

var (
	ErrDatabaseUrlMissing = errors.New("database url was not defined")
	ErrFolderMissing      = errors.New("migrations folder was not defined")
)

type (
	Config struct {
		DatabaseUrl       string
		MigrationsFolder  string
		MigrationsTable   string
		Connections       map[string]string
		LockHeldOnFailure bool
		PushGateway       string
	}

	migrations struct {
		LocalFolder       string            `yaml:"local_folder"`
		Table             string            `yaml:"table"`
		DatabaseURL       string            `yaml:"database_url"`
		LockHeldOnFailure bool              `yaml:"lock_held_on_failure"`
		Connections       map[string]string `yaml:"connections"`
	}

	metricsSection struct {
		PushGateway string `yaml:"pushgateway"`
	}

	configFile struct {
		Version    string         `yaml:"version"`
		Migrations migrations     `yaml:"migrations"`
		Metrics    metricsSection `yaml:"metrics"`
	}
)

const configFileStub = `version: "1"
migrations:
  local_folder: ./migrations
  table: migrations
  database_url: "%%DATABASE_URL%%"
  lock_held_on_failure: false
  connections: {}
metrics:
  pushgateway: ""
`

// LoadEnv reads a dotenv file when it exists, variables already set win
func LoadEnv(path string) error {
	if !FileExists(path) {
		return nil
	}

	if err := godotenv.Load(path); err != nil {
		return errors.Wrapf(err, "could not load env file %s", path)
	}

	return nil
}

func ConfigFromYaml(path string) (Config, error) {
	var cfg Config

	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "could not read tide configuration file")
	}

	var cfgFile configFile
	if err := yaml.Unmarshal(b, &cfgFile); err != nil {
		return cfg, errors.Wrap(err, "could not parse tide configuration file")
	}

	cfg.DatabaseUrl = fromEnv(cfgFile.Migrations.DatabaseURL)
	cfg.MigrationsFolder = fromEnv(cfgFile.Migrations.LocalFolder)
	cfg.MigrationsTable = fromEnv(cfgFile.Migrations.Table)
	cfg.LockHeldOnFailure = cfgFile.Migrations.LockHeldOnFailure
	cfg.PushGateway = fromEnv(cfgFile.Metrics.PushGateway)

	if len(cfgFile.Migrations.Connections) > 0 {
		cfg.Connections = make(map[string]string, len(cfgFile.Migrations.Connections))
		for name, url := range cfgFile.Migrations.Connections {
			cfg.Connections[name] = fromEnv(url)
		}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func (cfg Config) Validate() error {
	if cfg.DatabaseUrl == "" {
		return ErrDatabaseUrlMissing
	}

	if cfg.MigrationsFolder == "" {
		return ErrFolderMissing
	}

	for name, url := range cfg.Connections {
		if url == "" {
			return errors.Wrapf(ErrDatabaseUrlMissing, "connection [%s]", name)
		}
	}

	return nil
}

// ConnectionNames lists the secondary connections in a stable order
func (cfg Config) ConnectionNames() []string {
	names := make([]string, 0, len(cfg.Connections))
	for name := range cfg.Connections {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// InitCfg writes a config stub, an existing file is never overwritten
func InitCfg(path string) error {
	if FileExists(path) {
		return errors.Errorf("config file %s already exists", path)
	}

	if err := os.WriteFile(path, []byte(configFileStub), 0o644); err != nil {
		return errors.Wrap(err, "could not create config file")
	}

	return nil
}

func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}

	return !info.IsDir()
}

// fromEnv resolves values written as %%NAME%% from the environment
func fromEnv(value string) string {
	if len(value) > 4 && strings.HasPrefix(value, "%%") && strings.HasSuffix(value, "%%") {
		return os.Getenv(strings.Trim(value, "%"))
	}

	return value
}
