package internal

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Gateway       GatewayConfig       `mapstructure:"gateway"`
	Collaborators CollaboratorsConfig `mapstructure:"collaborators"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	BaseURL           string        `mapstructure:"base_url"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"required,min=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"required,min=1"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"required,min=1m"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" validate:"required,min=1m"`
	Source          string        `mapstructure:"source"`
}

// GatewayConfig selects and drives the payment gateway. An empty BaseURL
// runs the built-in simulator; SuccessRate is a percentage, Seed of 0 means
// seed from wall clock.
type GatewayConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	APIKey       string        `mapstructure:"api_key"`
	SuccessRate  int           `mapstructure:"success_rate"`
	PaymentDelay time.Duration `mapstructure:"payment_delay"`
	RefundDelay  time.Duration `mapstructure:"refund_delay"`
	Seed         int64         `mapstructure:"seed"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type CollaboratorsConfig struct {
	OrderServiceURL        string        `mapstructure:"order_service_url"`
	NotificationServiceURL string        `mapstructure:"notification_service_url"`
	RequestTimeout         time.Duration `mapstructure:"request_timeout"`
	MaxRetries             int           `mapstructure:"max_retries"`
	RetryBaseDelay         time.Duration `mapstructure:"retry_base_delay"`
	BreakerThreshold       int           `mapstructure:"breaker_threshold"`
	BreakerCooldown        time.Duration `mapstructure:"breaker_cooldown"`
}

type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

// ----------------- HELPERS -----------------

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}

// LoadConfigFromEnv builds a Config purely from environment variables, used
// for container deployments where no config file is mounted.
func LoadConfigFromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              getEnvAsInt("SERVER_PORT", 8080),
			BaseURL:           getEnv("SERVER_BASE_URL", "http://localhost:8080"),
			AllowedOrigins:    getEnv("SERVER_ALLOWED_ORIGINS", "*"),
			ReadHeaderTimeout: getEnvAsDuration("SERVER_READ_HEADER_TIMEOUT", 5*time.Second),
			ReadTimeout:       getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			IdleTimeout:       getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			WriteTimeout:      getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
		},
		Database: DatabaseConfig{
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
			Source:          getEnv("DB_SOURCE", ""),
		},
		Gateway: GatewayConfig{
			BaseURL:      getEnv("GATEWAY_BASE_URL", ""),
			APIKey:       getEnv("GATEWAY_API_KEY", ""),
			SuccessRate:  getEnvAsInt("GATEWAY_SUCCESS_RATE", 85),
			PaymentDelay: getEnvAsDuration("GATEWAY_PAYMENT_DELAY", 2*time.Second),
			RefundDelay:  getEnvAsDuration("GATEWAY_REFUND_DELAY", time.Second),
			Timeout:      getEnvAsDuration("GATEWAY_TIMEOUT", 10*time.Second),
		},
		Collaborators: CollaboratorsConfig{
			OrderServiceURL:        getEnv("ORDER_SERVICE_URL", ""),
			NotificationServiceURL: getEnv("NOTIFICATION_SERVICE_URL", ""),
			RequestTimeout:         getEnvAsDuration("COLLABORATOR_TIMEOUT", 10*time.Second),
			MaxRetries:             getEnvAsInt("COLLABORATOR_MAX_RETRIES", 3),
			RetryBaseDelay:         getEnvAsDuration("COLLABORATOR_RETRY_BASE_DELAY", 200*time.Millisecond),
			BreakerThreshold:       getEnvAsInt("COLLABORATOR_BREAKER_THRESHOLD", 5),
			BreakerCooldown:        getEnvAsDuration("COLLABORATOR_BREAKER_COOLDOWN", 30*time.Second),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "json"),
			},
		},
	}
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Gateway.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("gateway config: %v", err))
	}

	if err := c.Collaborators.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("collaborators config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.AllowedOrigins != "" {
		origins := strings.Split(c.AllowedOrigins, ",")
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *GatewayConfig) Validate() error {
	if c.SuccessRate < 0 || c.SuccessRate > 100 {
		return errors.New("success_rate must be between 0 and 100")
	}
	if c.PaymentDelay < 0 || c.RefundDelay < 0 {
		return errors.New("gateway delays must not be negative")
	}
	return nil
}

func (c *CollaboratorsConfig) Validate() error {
	if c.OrderServiceURL == "" {
		return errors.New("order_service_url is required")
	}
	if c.NotificationServiceURL == "" {
		return errors.New("notification_service_url is required")
	}
	if c.MaxRetries < 1 {
		return errors.New("max_retries must be at least 1")
	}
	if c.BreakerThreshold < 1 {
		return errors.New("breaker_threshold must be at least 1")
	}
	return nil
}
