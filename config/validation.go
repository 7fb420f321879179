package config

import (
	"fmt"
	"net/url"
)

func (c *Config) Validate() error {
	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("database config: %w", err)
	}

	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if c.Notifications.Backend == NotificationBackendRedis {
		if err := c.Redis.Validate(); err != nil {
			return fmt.Errorf("redis config: %w", err)
		}
	}

	if err := c.Stripe.Validate(); err != nil {
		return fmt.Errorf("stripe config: %w", err)
	}

	if err := c.Security.Validate(c.IsProduction()); err != nil {
		return fmt.Errorf("security config: %w", err)
	}

	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app config: %w", err)
	}

	if err := c.Notifications.Validate(); err != nil {
		return fmt.Errorf("notifications config: %w", err)
	}

	if err := c.Mail.Validate(); err != nil {
		return fmt.Errorf("mail config: %w", err)
	}

	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Port == 0 {
		return fmt.Errorf("port is required")
	}
	if c.User == "" {
		return fmt.Errorf("user is required")
	}
	if c.DBName == "" {
		return fmt.Errorf("database name is required")
	}
	return nil
}

func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port is required")
	}
	if c.EnableTLS && (c.TLSCertFile == "" || c.TLSKeyFile == "") {
		return fmt.Errorf("tls cert and key files are required when tls is enabled")
	}
	return nil
}

func (c *RedisConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Port == 0 {
		return fmt.Errorf("port is required")
	}
	return nil
}

func (c *StripeConfig) Validate() error {
	if c.Secret == "" || c.Secret == "your_stripe_secret_key" {
		return fmt.Errorf("stripe secret key is required - set STRIPE_SECRET environment variable")
	}
	if len(c.Currency) != 3 {
		return fmt.Errorf("currency must be a three letter ISO code, got %q", c.Currency)
	}
	return nil
}

// Validate requires a signing secret. Production additionally requires it to
// be at least 32 bytes.
func (c *SecurityConfig) Validate(production bool) error {
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt secret is required - set JWT_SECRET environment variable")
	}
	if production && len(c.JWTSecret) < 32 {
		return fmt.Errorf("jwt secret must be at least 32 bytes in production")
	}
	return nil
}

func (c *AppConfig) Validate() error {
	u, err := url.Parse(c.PublicBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("public base url must be an absolute url - set PUBLIC_BASE_URL environment variable")
	}
	if c.PaymentTermDays < 0 {
		return fmt.Errorf("payment term days must not be negative")
	}
	return nil
}

func (c *NotificationsConfig) Validate() error {
	switch c.Backend {
	case NotificationBackendMemory, NotificationBackendRedis:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	return nil
}

func (c *MailConfig) Validate() error {
	if c.Host != "" && c.From == "" {
		return fmt.Errorf("from address is required when smtp host is set - set MAIL_FROM environment variable")
	}
	return nil
}
