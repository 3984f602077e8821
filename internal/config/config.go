// Load envs from .env
// Load YAML config
// Override with env vars
// Provide default values
// Validate config

package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	apperrors "go-seek-scraper/internal/errors"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "configs/config.yaml"

type Config struct {
	//Target site
	BaseURL   string `yaml:"base_url"`
	UserAgent string `yaml:"user_agent"`
	//Browser
	ShowBrowser bool          `yaml:"show_browser"`
	PageTimeout time.Duration `yaml:"page_timeout"`
	SettleDelay time.Duration `yaml:"settle_delay"`
	//Paths
	OutputDir   string `yaml:"output_dir"`
	DebugDir    string `yaml:"debug_dir"`
	CookiesPath string `yaml:"cookies_path"`
	CachePath   string `yaml:"cache_path"`
	//Logging
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
	//Optional integrations
	TelegramToken  string `yaml:"telegram_token"`
	TelegramChatID int64  `yaml:"telegram_chat_id"`
	DatabaseURL    string `yaml:"database_url"`
	Port           string `yaml:"port"`
}

// Load reads .env, then CONFIG_PATH or configs/config.yaml.
func Load() (*Config, error) {
	_ = godotenv.Load()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = DefaultPath
	}
	return LoadFrom(path)
}

// LoadFrom builds the config from the YAML file at path (optional) and the environment.
func LoadFrom(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, apperrors.InvalidInput("parsing "+path, err)
		}
	case !os.IsNotExist(err):
		return nil, apperrors.InvalidInput("reading "+path, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("SEEK_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("SHOW_BROWSER"); v != "" {
		show, err := strconv.ParseBool(v)
		if err != nil {
			return apperrors.InvalidInput("invalid SHOW_BROWSER", err)
		}
		c.ShowBrowser = show
	}
	if v := os.Getenv("PAGE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return apperrors.InvalidInput("invalid PAGE_TIMEOUT", err)
		}
		c.PageTimeout = d
	}
	if v := os.Getenv("OUTPUT_DIR"); v != "" {
		c.OutputDir = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		c.LogFile = v
	}
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		c.TelegramToken = token
	}
	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return apperrors.InvalidInput("invalid TELEGRAM_CHAT_ID", err)
		}
		c.TelegramChatID = id
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("PORT"); v != "" {
		c.Port = v
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://www.seek.com.au"
	}
	if c.PageTimeout == 0 {
		c.PageTimeout = 15 * time.Second
	}
	if c.SettleDelay == 0 {
		c.SettleDelay = 3 * time.Second
	}
	if c.OutputDir == "" {
		c.OutputDir = "."
	}
	if c.DebugDir == "" {
		c.DebugDir = "logs/screenshots"
	}
	if c.CookiesPath == "" {
		c.CookiesPath = ".cookies/cookies-seek.json"
	}
	if c.CachePath == "" {
		c.CachePath = ".cache"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Port == "" {
		c.Port = "8080"
	}
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return apperrors.InvalidInput(fmt.Sprintf("base_url %q is not an absolute URL", c.BaseURL), err)
	}
	if c.PageTimeout < 0 {
		return apperrors.InvalidInput("page_timeout must be positive", nil)
	}
	if c.SettleDelay < 0 {
		return apperrors.InvalidInput("settle_delay must not be negative", nil)
	}
	if (c.TelegramToken == "") != (c.TelegramChatID == 0) {
		return apperrors.InvalidInput("telegram_token and telegram_chat_id must be set together", nil)
	}
	return nil
}

// TelegramEnabled reports whether run summaries should be sent.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramToken != "" && c.TelegramChatID != 0
}
