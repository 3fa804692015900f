package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/Alwanly/resource-watcher/pkg/validator"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig wraps every validation failure returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// OptionsEnv carries the whole configuration, serialized as JSON or YAML,
// for a re-spawned background process.
const OptionsEnv = "WATCHER_OPTIONS"

const (
	DefaultDelayMs       = 5000
	DefaultScriptRunner  = "npm run"
	DefaultTokenField    = "access_token"
	DefaultNotifyChannel = "resource-watcher:changes"
)

// BasicAuth holds static credentials sent with every fetch when no bearer
// token is available.
type BasicAuth struct {
	Username string `yaml:"username" json:"username" validate:"required"`
	Password string `yaml:"password" json:"password"`
}

// LoginDescriptor describes how to exchange credentials for a bearer token.
type LoginDescriptor struct {
	URL        string `yaml:"url" json:"url" validate:"required,url"`
	Username   string `yaml:"username" json:"username" validate:"required"`
	Password   string `yaml:"password" json:"password"`
	TokenField string `yaml:"token_field" json:"token_field"`
}

type RedisConfig struct {
	Host     string `yaml:"host" json:"host" validate:"required"`
	Port     int    `yaml:"port" json:"port" validate:"gt=0"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
}

// WatchConfig is supplied once at startup and never mutated afterwards.
type WatchConfig struct {
	URI              string `yaml:"uri" json:"uri" validate:"required,url"`
	DelayMs          int    `yaml:"delay" json:"delay" validate:"gt=0"`
	InitTrigger      bool   `yaml:"init_trigger" json:"init_trigger"`
	WorkingDirectory string `yaml:"working_directory" json:"working_directory"`
	IsScript         bool   `yaml:"is_script" json:"is_script"`
	ScriptRunner     string `yaml:"script_runner" json:"script_runner"`
	Verbose          bool   `yaml:"verbose" json:"verbose"`
	Command          string `yaml:"command" json:"command" validate:"required"`

	AccessToken string           `yaml:"access_token" json:"access_token"`
	BasicAuth   *BasicAuth       `yaml:"basic_auth" json:"basic_auth"`
	Login       *LoginDescriptor `yaml:"login" json:"login"`

	// Zero means the transport's own limits apply.
	RequestTimeoutMs int `yaml:"request_timeout" json:"request_timeout" validate:"gte=0"`
	// Zero means the poll delay.
	AuthRetryDelayMs int `yaml:"auth_retry_delay" json:"auth_retry_delay" validate:"gte=0"`

	LogFormat      string       `yaml:"log_format" json:"log_format" validate:"omitempty,oneof=console development json production"`
	StatusAddr     string       `yaml:"status_addr" json:"status_addr"`
	StatusUsername string       `yaml:"status_username" json:"status_username"`
	StatusPassword string       `yaml:"status_password" json:"status_password"`
	HistoryDB      string       `yaml:"history_db" json:"history_db"`
	Redis          *RedisConfig `yaml:"redis" json:"redis"`
	NotifyChannel  string       `yaml:"notify_channel" json:"notify_channel"`
	LockFile       string       `yaml:"lock_file" json:"lock_file"`
}

// Default returns a config with every optional field at its default.
func Default() *WatchConfig {
	return &WatchConfig{
		DelayMs:       DefaultDelayMs,
		ScriptRunner:  DefaultScriptRunner,
		NotifyChannel: DefaultNotifyChannel,
		LogFormat:     os.Getenv("LOG_FORMAT"),
	}
}

// Interval is the poll delay as a duration. The delay is always milliseconds.
func (c *WatchConfig) Interval() time.Duration {
	return time.Duration(c.DelayMs) * time.Millisecond
}

func (c *WatchConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMs) * time.Millisecond
}

// AuthRetryDelay is the fixed wait between login attempts that failed at the
// transport level.
func (c *WatchConfig) AuthRetryDelay() time.Duration {
	if c.AuthRetryDelayMs > 0 {
		return time.Duration(c.AuthRetryDelayMs) * time.Millisecond
	}
	return c.Interval()
}

// TokenFieldOrDefault returns the JSON path of the token in the login response.
func (l *LoginDescriptor) TokenFieldOrDefault() string {
	if l.TokenField == "" {
		return DefaultTokenField
	}
	return l.TokenField
}

// Load builds the configuration from defaults, an optional YAML file,
// the WATCHER_OPTIONS variable and WATCHER_* variables, in that order.
// The result is not validated; callers apply flag overrides first.
func Load(path string) (*WatchConfig, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if v := os.Getenv(OptionsEnv); v != "" {
		// JSON is a subset of YAML, so one decoder covers both encodings.
		if err := yaml.Unmarshal([]byte(v), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", OptionsEnv, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Encode serializes cfg for OptionsEnv.
func Encode(cfg *WatchConfig) (string, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}
	return string(data), nil
}

// Validate checks required fields and value ranges.
func (c *WatchConfig) Validate() error {
	if err := validator.ValidateStruct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, validator.TranslateError(err))
	}
	return nil
}

func applyEnv(cfg *WatchConfig) error {
	setString(&cfg.URI, "WATCHER_URI")
	setString(&cfg.Command, "WATCHER_COMMAND")
	setString(&cfg.WorkingDirectory, "WATCHER_CWD")
	setString(&cfg.ScriptRunner, "WATCHER_SCRIPT_RUNNER")
	setString(&cfg.AccessToken, "WATCHER_ACCESS_TOKEN")
	setString(&cfg.StatusAddr, "WATCHER_STATUS_ADDR")
	setString(&cfg.StatusUsername, "WATCHER_STATUS_USER")
	setString(&cfg.StatusPassword, "WATCHER_STATUS_PASSWORD")
	setString(&cfg.HistoryDB, "WATCHER_HISTORY_DB")
	setString(&cfg.NotifyChannel, "WATCHER_NOTIFY_CHANNEL")
	setString(&cfg.LockFile, "WATCHER_LOCK_FILE")

	for key, dst := range map[string]*int{
		"WATCHER_DELAY_MS":            &cfg.DelayMs,
		"WATCHER_REQUEST_TIMEOUT_MS":  &cfg.RequestTimeoutMs,
		"WATCHER_AUTH_RETRY_DELAY_MS": &cfg.AuthRetryDelayMs,
	} {
		if v := os.Getenv(key); v != "" {
			i, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
			*dst = i
		}
	}

	for key, dst := range map[string]*bool{
		"WATCHER_INIT_TRIGGER": &cfg.InitTrigger,
		"WATCHER_IS_SCRIPT":    &cfg.IsScript,
		"WATCHER_VERBOSE":      &cfg.Verbose,
	} {
		if v := os.Getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
			*dst = b
		}
	}

	if user := os.Getenv("WATCHER_BASIC_USER"); user != "" {
		cfg.BasicAuth = &BasicAuth{Username: user, Password: os.Getenv("WATCHER_BASIC_PASSWORD")}
	}
	if url := os.Getenv("WATCHER_LOGIN_URL"); url != "" {
		cfg.Login = &LoginDescriptor{
			URL:        url,
			Username:   os.Getenv("WATCHER_LOGIN_USER"),
			Password:   os.Getenv("WATCHER_LOGIN_PASSWORD"),
			TokenField: os.Getenv("WATCHER_LOGIN_TOKEN_FIELD"),
		}
	}
	if host := os.Getenv("WATCHER_REDIS_HOST"); host != "" {
		port := 6379
		if v := os.Getenv("WATCHER_REDIS_PORT"); v != "" {
			p, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid WATCHER_REDIS_PORT: %w", err)
			}
			port = p
		}
		cfg.Redis = &RedisConfig{Host: host, Port: port, Password: os.Getenv("WATCHER_REDIS_PASSWORD")}
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
