package config

import (
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/iancoleman/strcase"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

const (
	configFileENV     = "CONFIG_FILE"
	defaultConfigFile = "/config/folio.yaml"
)

type Config struct {
	DatabaseFilePath          string        `koanf:"database_file_path" required:"true"`
	DatabaseDebug             bool          `koanf:"database_debug"`
	DatabaseConnectRetryCount int           `koanf:"database_connect_retry_count" default:"5"`
	DatabaseConnectRetryDelay time.Duration `koanf:"database_connect_retry_delay" default:"2s"`
	DatabaseBusyTimeout       time.Duration `koanf:"database_busy_timeout" default:"5s"`
	DatabaseMaxRetries        int           `koanf:"database_max_retries" default:"5"`

	ServerHost string `koanf:"server_host" default:"127.0.0.1"`
	ServerPort int    `koanf:"server_port" default:"3690"`

	AdvisorAPIKey            string        `koanf:"advisor_api_key"`
	AdvisorBaseURL           string        `koanf:"advisor_base_url" default:"https://openrouter.ai/api/v1/chat/completions"`
	AdvisorModel             string        `koanf:"advisor_model" default:"google/gemini-2.5-flash"`
	AdvisorTimeout           time.Duration `koanf:"advisor_timeout" default:"30s"`
	AdvisorRequestsPerMinute int           `koanf:"advisor_requests_per_minute" default:"20"`

	ImportUseAdvisor     bool `koanf:"import_use_advisor" default:"true"`
	BulkWriteConcurrency int  `koanf:"bulk_write_concurrency" default:"1"`

	LockMaxAttempts     int           `koanf:"lock_max_attempts" default:"5"`
	LockLockoutDuration time.Duration `koanf:"lock_lockout_duration" default:"5m"`
}

// New builds the config from struct defaults, then the YAML file named by
// CONFIG_FILE, then environment variables. Later sources win.
func New() (*Config, error) {
	// A missing .env is the normal case outside of development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, errors.WithStack(err)
	}

	k := koanf.New(".")

	configFile := os.Getenv(configFileENV)
	if configFile == "" {
		configFile = defaultConfigFile
	}
	if _, err := os.Stat(configFile); err == nil {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "failed to load config file %s", configFile)
		}
	}

	known := knownKeys()
	err := k.Load(env.Provider("", ".", func(s string) string {
		key := strings.ToLower(s)
		if _, ok := known[key]; !ok {
			return ""
		}
		return key
	}), nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, errors.WithStack(err)
	}

	if err := checkRequired(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// NewForTest returns a config backed by an in-memory database.
func NewForTest() *Config {
	cfg := &Config{}
	_ = defaults.Set(cfg)
	cfg.DatabaseFilePath = ":memory:"
	cfg.DatabaseConnectRetryCount = 1
	cfg.DatabaseConnectRetryDelay = 0
	cfg.ImportUseAdvisor = false
	return cfg
}

// InMemory reports whether the database lives only in memory, in which case
// there is no file to lock.
func (cfg *Config) InMemory() bool {
	return cfg.DatabaseFilePath == ":memory:" || strings.HasPrefix(cfg.DatabaseFilePath, "file::memory:")
}

func knownKeys() map[string]struct{} {
	keys := map[string]struct{}{}
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		if tag := t.Field(i).Tag.Get("koanf"); tag != "" {
			keys[tag] = struct{}{}
		}
	}
	return keys
}

func checkRequired(cfg *Config) error {
	v := reflect.ValueOf(cfg).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Tag.Get("required") != "true" {
			continue
		}
		if v.Field(i).IsZero() {
			key := toSnakeCase(field.Name)
			return errors.Errorf("missing required config: %s (%s)", strings.ToUpper(key), key)
		}
	}
	return nil
}

func toSnakeCase(s string) string {
	return strcase.ToSnake(s)
}
