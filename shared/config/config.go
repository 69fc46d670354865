package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const defaultConfigFile = "config.yaml"

// ScheduleParser accepts five or six field cron specs and descriptors such as "@every 30s".
var ScheduleParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

type Config struct {
	Folders  FoldersConfig `yaml:"folders"`
	Store    StoreConfig   `yaml:"store"`
	API      APIConfig     `yaml:"api"`
	YouTube  YouTubeConfig `yaml:"youtube"`
	AI       AIConfig      `yaml:"ai"`
	Email    EmailConfig   `yaml:"email"`
	Logging  LoggingConfig `yaml:"logging"`
	Schedule string        `yaml:"schedule" env:"SCHEDULE"`
}

type FoldersConfig struct {
	ToPost string `yaml:"to_post" env:"TO_POST_FOLDER"`
	Posted string `yaml:"posted" env:"POSTED_FOLDER"`
}

type StoreConfig struct {
	DataFile string `yaml:"data_file" env:"DATA_FILE"`
}

type APIConfig struct {
	Host string `yaml:"host" env:"API_HOST"`
	Port int    `yaml:"port" env:"API_PORT"`
}

// Addr returns the host:port the API binds to.
func (a APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

type YouTubeConfig struct {
	UploadEnabled bool   `yaml:"upload_enabled" env:"YOUTUBE_UPLOAD_ENABLED"`
	ClientID      string `yaml:"client_id" env:"GOOGLE_CLIENT_ID"`
	ClientSecret  string `yaml:"client_secret" env:"GOOGLE_CLIENT_SECRET"`
	TokenFile     string `yaml:"token_file" env:"YOUTUBE_TOKEN_FILE"`
	PrivacyStatus string `yaml:"privacy_status" env:"YOUTUBE_PRIVACY_STATUS"`
}

type AIConfig struct {
	GeminiAPIKey string `yaml:"gemini_api_key" env:"GEMINI_API_KEY"`
	Model        string `yaml:"model" env:"GEMINI_MODEL"`
}

type EmailConfig struct {
	SMTPServer string `yaml:"smtp_server" env:"SMTP_SERVER"`
	SMTPPort   int    `yaml:"smtp_port" env:"SMTP_PORT"`
	Username   string `yaml:"username" env:"EMAIL_USERNAME"`
	Password   string `yaml:"password" env:"EMAIL_PASSWORD"`
	FromEmail  string `yaml:"from_email" env:"EMAIL_FROM"`
	ToEmail    string `yaml:"to_email" env:"EMAIL_TO"`
}

// Enabled reports whether enough SMTP settings exist to send mail.
func (e EmailConfig) Enabled() bool {
	return e.SMTPServer != "" && e.FromEmail != "" && e.ToEmail != ""
}

type LoggingConfig struct {
	Level      string `yaml:"level" env:"LOG_LEVEL"`
	Format     string `yaml:"format" env:"LOG_FORMAT"`
	File       string `yaml:"file" env:"LOG_FILE"`
	MaxSizeMB  int    `yaml:"max_size_mb" env:"LOG_MAX_SIZE"`
	MaxBackups int    `yaml:"max_backups" env:"LOG_MAX_BACKUPS"`
	MaxAgeDays int    `yaml:"max_age_days" env:"LOG_MAX_AGE"`
}

// Load reads configuration from CONFIG_FILE (or config.yaml when present),
// then applies environment overrides and defaults.
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom is Load with an explicit config file path. An empty path falls back
// to CONFIG_FILE and then to an optional config.yaml.
func LoadFrom(path string) (*Config, error) {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	explicit := path != ""
	if !explicit {
		if envPath := os.Getenv("CONFIG_FILE"); envPath != "" {
			path = envPath
			explicit = true
		} else {
			path = defaultConfigFile
		}
	}

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
		// No config file: environment and defaults only.
	default:
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Folders.ToPost == "" {
		c.Folders.ToPost = "to_post"
	}
	if c.Folders.Posted == "" {
		c.Folders.Posted = "posted"
	}
	if c.Store.DataFile == "" {
		c.Store.DataFile = "data/videos.json"
	}
	if c.API.Host == "" {
		c.API.Host = "127.0.0.1"
	}
	if c.API.Port == 0 {
		c.API.Port = 8000
	}
	if c.Schedule == "" {
		c.Schedule = "@every 30s"
	}
	if c.YouTube.TokenFile == "" {
		c.YouTube.TokenFile = "youtube_token.json"
	}
	if c.YouTube.PrivacyStatus == "" {
		c.YouTube.PrivacyStatus = "private"
	}
	if c.AI.Model == "" {
		c.AI.Model = "gemini-2.5-flash"
	}
	if c.Email.SMTPPort == 0 {
		c.Email.SMTPPort = 587
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = 100
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = 7
	}
	if c.Logging.MaxAgeDays == 0 {
		c.Logging.MaxAgeDays = 7
	}
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Folders.ToPost) == "" || strings.TrimSpace(c.Folders.Posted) == "" {
		return fmt.Errorf("both to_post and posted folders are required (set TO_POST_FOLDER and POSTED_FOLDER)")
	}
	if c.API.Port < 1 || c.API.Port > 65535 {
		return fmt.Errorf("API port %d out of range (set API_PORT or api.port)", c.API.Port)
	}
	if _, err := ScheduleParser.Parse(c.Schedule); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", c.Schedule, err)
	}
	if c.YouTube.UploadEnabled {
		if c.YouTube.ClientID == "" {
			return fmt.Errorf("YouTube client ID is required for uploads (set GOOGLE_CLIENT_ID or youtube.client_id)")
		}
		if c.YouTube.ClientSecret == "" {
			return fmt.Errorf("YouTube client secret is required for uploads (set GOOGLE_CLIENT_SECRET or youtube.client_secret)")
		}
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q (want text or json)", c.Logging.Format)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic":
	default:
		return fmt.Errorf("unknown log level %q", c.Logging.Level)
	}
	return nil
}
