package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"

	EnvToken    = "MAPUPLOAD_TOKEN"
	EnvRedisURL = "MAPUPLOAD_REDIS_URL"

	defaultRole          = "justabotuser"
	defaultDownloadDir   = "downloaded"
	defaultExtractDir    = "extracted"
	defaultGameBananaAPI = "https://api.gamebanana.com/Core/Item/Data"
	defaultMirrorURL     = "https://main.fastdl.me"
	defaultUserAgent     = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/74.0.3729.169 Safari/537.36"
	defaultHTTPTimeout   = 10 * time.Minute
	defaultHistorySize   = 50
	defaultEnvFile       = ".env"
)

// TreeConfig is one deployment destination and the account owning its files.
type TreeConfig struct {
	Path string `yaml:"path"`
	User string `yaml:"user"`
}

type StagingConfig struct {
	DownloadDir string `yaml:"download_dir"`
	ExtractDir  string `yaml:"extract_dir"`
}

type GameBananaConfig struct {
	APIURL string `yaml:"api_url"`
}

type MirrorConfig struct {
	URL string `yaml:"url"`
}

type Config struct {
	Token          string           `yaml:"token"`
	LogLevel       string           `yaml:"log_level"`
	Listen         string           `yaml:"listen"`
	RedisURL       string           `yaml:"redis_url"`
	Role           string           `yaml:"role"`
	GuildID        string           `yaml:"guild_id"`
	UserAgent      string           `yaml:"user_agent"`
	HTTPTimeout    time.Duration    `yaml:"http_timeout"`
	HistorySize    int              `yaml:"history_size"`
	StatusTemplate string           `yaml:"status_template"`
	Maps           TreeConfig       `yaml:"maps"`
	FastDL         TreeConfig       `yaml:"fastdl"`
	Staging        StagingConfig    `yaml:"staging"`
	GameBanana     GameBananaConfig `yaml:"gamebanana"`
	Mirror         MirrorConfig     `yaml:"mirror"`
}

func (c *Config) SetDefaults() {
	c.LogLevel = LogLevelInfo
	c.Role = defaultRole
	c.UserAgent = defaultUserAgent
	c.HTTPTimeout = defaultHTTPTimeout
	c.HistorySize = defaultHistorySize
	c.Staging.DownloadDir = defaultDownloadDir
	c.Staging.ExtractDir = defaultExtractDir
	c.GameBanana.APIURL = defaultGameBananaAPI
	c.Mirror.URL = defaultMirrorURL
}

func (c *Config) Validate() error {
	switch c.LogLevel {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
	default:
		return fmt.Errorf("unknown log level: %q", c.LogLevel)
	}

	if c.Token == "" {
		return fmt.Errorf("bot token is not set, use %s or token", EnvToken)
	}

	if c.Maps.Path == "" || c.FastDL.Path == "" {
		return fmt.Errorf("maps.path and fastdl.path must be set")
	}

	if c.Maps.User == "" || c.FastDL.User == "" {
		return fmt.Errorf("maps.user and fastdl.user must be set")
	}

	if c.HistorySize < 1 {
		return fmt.Errorf("history_size must be positive")
	}

	return nil
}

// Load reads the YAML file at path (a missing file leaves defaults), then applies
// the .env file and environment overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	cfg.SetDefaults()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	if err := godotenv.Load(defaultEnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("cannot load %s: %w", defaultEnvFile, err)
	}

	if token := os.Getenv(EnvToken); token != "" {
		cfg.Token = token
	}

	if redisURL := os.Getenv(EnvRedisURL); redisURL != "" {
		cfg.RedisURL = redisURL
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}

	return cfg
}
