package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/model"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Auth     AuthConfig     `yaml:"auth"`
	Users    []User         `yaml:"users"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Minio    MinioConfig    `yaml:"minio"`
	Mail     MailConfig     `yaml:"mail"`
	Exporter ExporterConfig `yaml:"exporter"`
	Render   RenderConfig   `yaml:"render"`
	Company  model.Company  `yaml:"company"`
	Public   PublicConfig   `yaml:"public"`
	Store    StoreConfig    `yaml:"store"`
}

type ServerConfig struct {
	Port            int `yaml:"port"`
	ShutdownSeconds int `yaml:"shutdown_seconds"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type AuthConfig struct {
	JWTSecret        string `yaml:"jwt_secret"`
	TokenExpireHours int    `yaml:"token_expire_hours"`
}

// User is a back-office operator. PasswordHash is a bcrypt hash.
type User struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"`
	Role         string `yaml:"role"`
}

// DatabaseConfig selects the PostgreSQL store. An empty DSN keeps records in
// memory.
type DatabaseConfig struct {
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	Migrate      bool   `yaml:"migrate"`
}

type RedisConfig struct {
	Addr       string `yaml:"addr"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	TTLSeconds int    `yaml:"ttl_seconds"`
}

type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"use_ssl"`
	// PublicURL overrides the scheme://host used in returned object links.
	PublicURL string `yaml:"public_url"`
}

// MailConfig points at an HTTP mail API. An empty APIURL disables outbound
// mail; notifications are then logged and reported as warnings.
type MailConfig struct {
	APIURL         string `yaml:"api_url"`
	APIToken       string `yaml:"api_token"`
	From           string `yaml:"from"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type ExporterConfig struct {
	GotenbergURL         string  `yaml:"gotenberg_url"`
	ImageTimeoutSeconds  int     `yaml:"image_timeout_seconds"`
	RenderTimeoutSeconds int     `yaml:"render_timeout_seconds"`
	PaperWidth           float64 `yaml:"paper_width"`
	PaperHeight          float64 `yaml:"paper_height"`
}

type RenderConfig struct {
	Locale              string `yaml:"locale"`
	CurrencySymbol      string `yaml:"currency_symbol"`
	Undefined           string `yaml:"undefined"`
	TimeZone            string `yaml:"time_zone"`
	BlockTimeoutSeconds int    `yaml:"block_timeout_seconds"`
}

type PublicConfig struct {
	BaseURL         string `yaml:"base_url"`
	RateLimitPerMin int    `yaml:"rate_limit_per_minute"`
	RateLimitBurst  int    `yaml:"rate_limit_burst"`
}

type StoreConfig struct {
	EditRetries int `yaml:"edit_retries"`
}

// envOverrides holds the ACE_* variables. Zero values leave the file value in
// place.
type envOverrides struct {
	Port          int    `env:"ACE_SERVER_PORT"`
	LogLevel      string `env:"ACE_LOG_LEVEL"`
	LogFormat     string `env:"ACE_LOG_FORMAT"`
	JWTSecret     string `env:"ACE_JWT_SECRET"`
	DatabaseDSN   string `env:"ACE_DATABASE_DSN"`
	RedisAddr     string `env:"ACE_REDIS_ADDR"`
	RedisPassword string `env:"ACE_REDIS_PASSWORD"`
	MinioEndpoint string `env:"ACE_MINIO_ENDPOINT"`
	MinioAccess   string `env:"ACE_MINIO_ACCESS_KEY"`
	MinioSecret   string `env:"ACE_MINIO_SECRET_KEY"`
	MinioBucket   string `env:"ACE_MINIO_BUCKET"`
	MailAPIURL    string `env:"ACE_MAIL_API_URL"`
	MailAPIToken  string `env:"ACE_MAIL_API_TOKEN"`
	GotenbergURL  string `env:"ACE_GOTENBERG_URL"`
	PublicBaseURL string `env:"ACE_PUBLIC_BASE_URL"`
}

var GlobalConfig *Config

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.setDefaults()

	GlobalConfig = &cfg
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	var e envOverrides
	if err := env.Parse(&e); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	setInt := func(dst *int, v int) {
		if v != 0 {
			*dst = v
		}
	}
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}

	setInt(&c.Server.Port, e.Port)
	set(&c.Log.Level, e.LogLevel)
	set(&c.Log.Format, e.LogFormat)
	set(&c.Auth.JWTSecret, e.JWTSecret)
	set(&c.Database.DSN, e.DatabaseDSN)
	set(&c.Redis.Addr, e.RedisAddr)
	set(&c.Redis.Password, e.RedisPassword)
	set(&c.Minio.Endpoint, e.MinioEndpoint)
	set(&c.Minio.AccessKey, e.MinioAccess)
	set(&c.Minio.SecretKey, e.MinioSecret)
	set(&c.Minio.Bucket, e.MinioBucket)
	set(&c.Mail.APIURL, e.MailAPIURL)
	set(&c.Mail.APIToken, e.MailAPIToken)
	set(&c.Exporter.GotenbergURL, e.GotenbergURL)
	set(&c.Public.BaseURL, e.PublicBaseURL)
	return nil
}

func (c *Config) setDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ShutdownSeconds == 0 {
		c.Server.ShutdownSeconds = 10
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Auth.TokenExpireHours == 0 {
		c.Auth.TokenExpireHours = 24
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Redis.TTLSeconds == 0 {
		c.Redis.TTLSeconds = 300
	}
	if c.Mail.TimeoutSeconds == 0 {
		c.Mail.TimeoutSeconds = 10
	}
	if c.Exporter.ImageTimeoutSeconds == 0 {
		c.Exporter.ImageTimeoutSeconds = 5
	}
	if c.Exporter.RenderTimeoutSeconds == 0 {
		c.Exporter.RenderTimeoutSeconds = 60
	}
	// A4 in inches
	if c.Exporter.PaperWidth == 0 {
		c.Exporter.PaperWidth = 8.27
	}
	if c.Exporter.PaperHeight == 0 {
		c.Exporter.PaperHeight = 11.7
	}
	if c.Render.Locale == "" {
		c.Render.Locale = "pt-BR"
	}
	if c.Render.CurrencySymbol == "" {
		c.Render.CurrencySymbol = "R$"
	}
	if c.Render.Undefined == "" {
		c.Render.Undefined = "A definir"
	}
	if c.Render.TimeZone == "" {
		c.Render.TimeZone = "America/Sao_Paulo"
	}
	if c.Render.BlockTimeoutSeconds == 0 {
		c.Render.BlockTimeoutSeconds = 3
	}
	if c.Public.BaseURL == "" {
		c.Public.BaseURL = fmt.Sprintf("http://localhost:%d", c.Server.Port)
	}
	if c.Public.RateLimitPerMin == 0 {
		c.Public.RateLimitPerMin = 30
	}
	if c.Public.RateLimitBurst == 0 {
		c.Public.RateLimitBurst = 10
	}
	if c.Store.EditRetries == 0 {
		c.Store.EditRetries = 5
	}
}

// Seconds converts a config value in seconds to a Duration.
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// FindUser finds a user by username
func (c *Config) FindUser(username string) *User {
	for i := range c.Users {
		if c.Users[i].Username == username {
			return &c.Users[i]
		}
	}
	return nil
}
