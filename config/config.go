// Ininicializing common application configuration
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Booking  BookingConfig  `mapstructure:"booking"`
	Outbox   OutboxConfig   `mapstructure:"outbox"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
	Waitlist WaitlistConfig `mapstructure:"waitlist"`
}

type ServerConfig struct {
	AppVersion  string        `mapstructure:"app_version"`
	Host        string        `mapstructure:"host"`
	Port        string        `mapstructure:"port"`
	Timeout     time.Duration `mapstructure:"timeout"`
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
	Env         string        `mapstructure:"environment"`
	Mode        string        `mapstructure:"mode"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // postgres | memory
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	Migrate         bool          `mapstructure:"migrate"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// Connection pool
	MaxRetries   int           `mapstructure:"max_retries"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolTimeout  time.Duration `mapstructure:"pool_timeout"`
	DeadLetters  string        `mapstructure:"dead_letter_key"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	// Disabled lets requests carry the tenant in the X-Tenant-ID header.
	// Development only.
	Disabled bool `mapstructure:"disabled"`
}

type BookingConfig struct {
	SlotMinutes      int           `mapstructure:"slot_minutes"`
	DefaultStartHour int           `mapstructure:"default_start_hour"`
	DefaultEndHour   int           `mapstructure:"default_end_hour"`
	MinDuration      time.Duration `mapstructure:"min_duration"`
	MaxDuration      time.Duration `mapstructure:"max_duration"`
	HoldTTL          time.Duration `mapstructure:"hold_ttl"`
	MaxHoldTTL       time.Duration `mapstructure:"max_hold_ttl"`
	CacheTTL         time.Duration `mapstructure:"cache_ttl"`
	MaxRangeDays     int           `mapstructure:"max_range_days"`
}

type OutboxConfig struct {
	BatchLimit  int           `mapstructure:"batch_limit"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	Backoff     string        `mapstructure:"backoff"` // linear | exponential
	BackoffBase time.Duration `mapstructure:"backoff_base"`
	Jitter      bool          `mapstructure:"jitter"`
	Interval    time.Duration `mapstructure:"interval"`
}

type WorkerConfig struct {
	HoldReaperInterval time.Duration `mapstructure:"hold_reaper_interval"`
	BatchSize          int           `mapstructure:"batch_size"`
}

type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	Enabled  bool   `mapstructure:"enabled"`
}

type WebhookConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type RabbitMQConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

type WaitlistConfig struct {
	NotifyLimit int           `mapstructure:"notify_limit"`
	EntryTTL    time.Duration `mapstructure:"entry_ttl"`
}

// LoadConfig reads ./config/config.yaml when present; every key can be
// overridden with TITHI_<SECTION>_<KEY>.
func LoadConfig() (*viper.Viper, error) {
	viperInstance := viper.New()

	viperInstance.AddConfigPath("./config")
	viperInstance.SetConfigName("config")
	viperInstance.SetConfigType("yaml")

	viperInstance.SetEnvPrefix("TITHI")
	viperInstance.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viperInstance.AutomaticEnv()

	setDefaults(viperInstance)

	if err := viperInstance.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}
	return viperInstance, nil
}

func ParseConfig(v *viper.Viper) (*Config, error) {
	var c Config

	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("config: unknown database driver %q", c.Database.Driver)
	}
	if c.Booking.SlotMinutes <= 0 {
		return errors.New("config: booking.slot_minutes must be positive")
	}
	if c.Booking.DefaultStartHour < 0 || c.Booking.DefaultStartHour >= c.Booking.DefaultEndHour || c.Booking.DefaultEndHour > 24 {
		return errors.New("config: booking default hours must satisfy 0 <= start < end <= 24")
	}
	if c.Booking.MinDuration <= 0 || c.Booking.MaxDuration < c.Booking.MinDuration {
		return errors.New("config: booking duration bounds are inconsistent")
	}
	if c.Outbox.MaxAttempts <= 0 {
		return errors.New("config: outbox.max_attempts must be positive")
	}
	if !c.JWT.Disabled && c.JWT.Secret == "" {
		return errors.New("config: jwt.secret is required")
	}
	return nil
}

// GetServerAddress returns host:port for the listener.
func (c *Config) GetServerAddress() string {
	return c.Server.Host + ":" + c.Server.Port
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.app_version", "1.0.0")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.mode", "release")

	v.SetDefault("log.level", "info")

	// Database defaults
	v.SetDefault("database.driver", "memory")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "tithi")
	v.SetDefault("database.password", "password")
	v.SetDefault("database.dbname", "tithi")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.migrate", true)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 3*time.Second)
	v.SetDefault("redis.write_timeout", 3*time.Second)
	v.SetDefault("redis.pool_timeout", 4*time.Second)
	v.SetDefault("redis.dead_letter_key", "outbox:dead_letters")

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.disabled", false)

	// Booking defaults
	v.SetDefault("booking.slot_minutes", 60)
	v.SetDefault("booking.default_start_hour", 9)
	v.SetDefault("booking.default_end_hour", 17)
	v.SetDefault("booking.min_duration", 15*time.Minute)
	v.SetDefault("booking.max_duration", 8*time.Hour)
	v.SetDefault("booking.hold_ttl", 15*time.Minute)
	v.SetDefault("booking.max_hold_ttl", time.Hour)
	v.SetDefault("booking.cache_ttl", 5*time.Minute)
	v.SetDefault("booking.max_range_days", 62)

	v.SetDefault("outbox.batch_limit", 100)
	v.SetDefault("outbox.max_attempts", 3)
	v.SetDefault("outbox.backoff", "linear")
	v.SetDefault("outbox.backoff_base", 60*time.Second)
	v.SetDefault("outbox.jitter", false)
	v.SetDefault("outbox.interval", 10*time.Second)

	// Worker defaults
	v.SetDefault("worker.hold_reaper_interval", time.Minute)
	v.SetDefault("worker.batch_size", 500)

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)

	v.SetDefault("webhook.timeout", 10*time.Second)

	v.SetDefault("kafka.topic", "tithi.analytics")
	v.SetDefault("rabbitmq.exchange", "tithi.bookings")

	v.SetDefault("waitlist.notify_limit", 5)
	v.SetDefault("waitlist.entry_ttl", 30*24*time.Hour)
}
