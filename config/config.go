package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment   string              `json:"environment"`
	Database      DatabaseConfig      `json:"database"`
	Stripe        StripeConfig        `json:"stripe"`
	Server        ServerConfig        `json:"server"`
	Redis         RedisConfig         `json:"redis"`
	Security      SecurityConfig      `json:"security"`
	Mail          MailConfig          `json:"mail"`
	App           AppConfig           `json:"app"`
	Notifications NotificationsConfig `json:"notifications"`
	Monitoring    MonitoringConfig    `json:"monitoring"`
}

type DatabaseConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	User         string        `json:"user"`
	Password     string        `json:"password"`
	DBName       string        `json:"dbname"`
	SSLMode      string        `json:"sslmode"`
	MaxOpenConns int           `json:"max_open_conns"`
	MaxIdleConns int           `json:"max_idle_conns"`
	MaxLifetime  time.Duration `json:"max_lifetime"`
	MaxIdleTime  time.Duration `json:"max_idle_time"`
	ReplicaDSNs  []string      `json:"replica_dsns"`
}

type StripeConfig struct {
	Secret        string `json:"secret"`
	Public        string `json:"public"`
	WebhookSecret string `json:"webhook_secret"`
	Currency      string `json:"currency"`
}

type ServerConfig struct {
	Port            string        `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	MaxHeaderBytes  int           `json:"max_header_bytes"`
	EnableTLS       bool          `json:"enable_tls"`
	TLSCertFile     string        `json:"tls_cert_file"`
	TLSKeyFile      string        `json:"tls_key_file"`
}

type RedisConfig struct {
	Host     string        `json:"host"`
	Port     int           `json:"port"`
	Password string        `json:"password"`
	DB       int           `json:"db"`
	TTL      time.Duration `json:"ttl"`
	PoolSize int           `json:"pool_size"`
	MinIdle  int           `json:"min_idle"`
}

type SecurityConfig struct {
	JWTSecret        string        `json:"jwt_secret"`
	JWTIssuer        string        `json:"jwt_issuer"`
	JWTAudience      string        `json:"jwt_audience"`
	JWTExpiration    time.Duration `json:"jwt_expiration"`
	RateLimitOff     bool          `json:"rate_limit_off"`
	RateLimitRPS     float64       `json:"rate_limit_rps"`
	RateLimitBurst   int           `json:"rate_limit_burst"`
	AllowedOrigins   []string      `json:"allowed_origins"`
}

// MailConfig configures outbound mail. An empty Host logs mail instead of
// sending it.
type MailConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	From     string `json:"from"`
}

type AppConfig struct {
	PublicBaseURL   string `json:"public_base_url"`
	PaymentTermDays int    `json:"payment_term_days"`
}

type NotificationsConfig struct {
	Backend   string `json:"backend"`
	Workers   int    `json:"workers"`
	QueueSize int    `json:"queue_size"`
}

type MonitoringConfig struct {
	LogLevel  string `json:"log_level"`
	LogFormat string `json:"log_format"`
}

const (
	NotificationBackendMemory = "memory"
	NotificationBackendRedis  = "redis"
)

func LoadConfig() (*Config, error) {
	// A missing .env file is normal outside development.
	_ = godotenv.Load()

	config := &Config{}

	configDir, err := filepath.Abs("config")
	if err != nil {
		return nil, err
	}

	if err := config.loadFile(filepath.Join(configDir, "config.json")); err != nil {
		return nil, err
	}

	config.loadFromEnv()

	if config.Environment == "" {
		config.Environment = "development"
	}
	config.setEnvironmentDefaults()

	return config, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func (c *Config) loadFromEnv() {
	setString(&c.Environment, "ENVIRONMENT")

	setString(&c.Database.Host, "DB_HOST")
	setInt(&c.Database.Port, "DB_PORT")
	setString(&c.Database.User, "DB_USER")
	setString(&c.Database.Password, "DB_PASSWORD")
	setString(&c.Database.DBName, "DB_NAME")
	setString(&c.Database.SSLMode, "DB_SSLMODE")
	if replicas := os.Getenv("DB_REPLICA_DSNS"); replicas != "" {
		c.Database.ReplicaDSNs = splitList(replicas)
	}

	setString(&c.Stripe.Secret, "STRIPE_SECRET")
	setString(&c.Stripe.Public, "STRIPE_PUBLIC")
	setString(&c.Stripe.WebhookSecret, "STRIPE_WEBHOOK_SECRET")
	setString(&c.Stripe.Currency, "STRIPE_CURRENCY")

	setString(&c.Server.Port, "SERVER_PORT")

	setString(&c.Redis.Host, "REDIS_HOST")
	setInt(&c.Redis.Port, "REDIS_PORT")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setInt(&c.Redis.DB, "REDIS_DB")

	setString(&c.Security.JWTSecret, "JWT_SECRET")
	setString(&c.Security.JWTIssuer, "JWT_ISSUER")
	setString(&c.Security.JWTAudience, "JWT_AUDIENCE")
	setBool(&c.Security.RateLimitOff, "RATE_LIMIT_OFF")
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		c.Security.AllowedOrigins = splitList(origins)
	}

	setString(&c.Mail.Host, "SMTP_HOST")
	setInt(&c.Mail.Port, "SMTP_PORT")
	setString(&c.Mail.Username, "SMTP_USERNAME")
	setString(&c.Mail.Password, "SMTP_PASSWORD")
	setString(&c.Mail.From, "MAIL_FROM")

	setString(&c.App.PublicBaseURL, "PUBLIC_BASE_URL")
	setInt(&c.App.PaymentTermDays, "PAYMENT_TERM_DAYS")

	setString(&c.Notifications.Backend, "NOTIFICATION_BACKEND")
	setInt(&c.Notifications.Workers, "NOTIFICATION_WORKERS")

	setString(&c.Monitoring.LogLevel, "LOG_LEVEL")
	setString(&c.Monitoring.LogFormat, "LOG_FORMAT")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) setEnvironmentDefaults() {
	c.setCommonDefaults()

	switch c.Environment {
	case "production":
		c.setProductionDefaults()
	case "staging":
		c.setStagingDefaults()
	default: // development
		c.setDevelopmentDefaults()
	}
}

func (c *Config) setCommonDefaults() {
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}
	if c.Redis.Port == 0 {
		c.Redis.Port = 6379
	}
	if c.Stripe.Currency == "" {
		c.Stripe.Currency = "sgd"
	}
	c.Stripe.Currency = strings.ToLower(c.Stripe.Currency)
	if c.Security.JWTIssuer == "" {
		c.Security.JWTIssuer = "invoicer"
	}
	if c.Security.JWTAudience == "" {
		c.Security.JWTAudience = "invoicer-api"
	}
	if c.Security.JWTExpiration == 0 {
		c.Security.JWTExpiration = 24 * time.Hour
	}
	if c.Mail.Port == 0 {
		c.Mail.Port = 587
	}
	if c.App.PaymentTermDays == 0 {
		c.App.PaymentTermDays = 30
	}
	c.App.PublicBaseURL = strings.TrimRight(c.App.PublicBaseURL, "/")
	if c.Notifications.Backend == "" {
		c.Notifications.Backend = NotificationBackendMemory
	}
	if c.Notifications.Workers == 0 {
		c.Notifications.Workers = 2
	}
	if c.Notifications.QueueSize == 0 {
		c.Notifications.QueueSize = 256
	}
	if c.Monitoring.LogFormat == "" {
		c.Monitoring.LogFormat = "json"
	}
}

func (c *Config) setDevelopmentDefaults() {
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 20
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Redis.TTL == 0 {
		c.Redis.TTL = time.Hour
	}
	if c.Security.RateLimitRPS == 0 {
		c.Security.RateLimitRPS = 50
	}
	if c.Security.RateLimitBurst == 0 {
		c.Security.RateLimitBurst = 100
	}
	if c.App.PublicBaseURL == "" {
		c.App.PublicBaseURL = "http://localhost:" + c.Server.Port
	}
	if c.Monitoring.LogLevel == "" {
		c.Monitoring.LogLevel = "debug"
	}
}

func (c *Config) setStagingDefaults() {
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 50
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 10
	}
	if c.Redis.TTL == 0 {
		c.Redis.TTL = 12 * time.Hour
	}
	if c.Security.RateLimitRPS == 0 {
		c.Security.RateLimitRPS = 10
	}
	if c.Security.RateLimitBurst == 0 {
		c.Security.RateLimitBurst = 40
	}
	if c.Monitoring.LogLevel == "" {
		c.Monitoring.LogLevel = "info"
	}
}

func (c *Config) setProductionDefaults() {
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 100
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 20
	}
	if c.Database.MaxLifetime == 0 {
		c.Database.MaxLifetime = time.Hour
	}
	if c.Database.MaxIdleTime == 0 {
		c.Database.MaxIdleTime = 10 * time.Minute
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 15 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.Redis.TTL == 0 {
		c.Redis.TTL = 24 * time.Hour
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = 20
	}
	if c.Redis.MinIdle == 0 {
		c.Redis.MinIdle = 5
	}
	if c.Security.RateLimitRPS == 0 {
		c.Security.RateLimitRPS = 5
	}
	if c.Security.RateLimitBurst == 0 {
		c.Security.RateLimitBurst = 20
	}
	if c.Monitoring.LogLevel == "" {
		c.Monitoring.LogLevel = "info"
	}
}

func (c *Config) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.DBName,
		c.Database.SSLMode,
	)
}

func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsStaging() bool {
	return c.Environment == "staging"
}
