package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config представляет конфигурацию приложения
type Config struct {
	Server struct {
		Port int `mapstructure:"port"`
	} `mapstructure:"server"`
	DB struct {
		Driver          string        `mapstructure:"driver"` // postgres или sqlite
		Host            string        `mapstructure:"host"`
		Port            int           `mapstructure:"port"`
		User            string        `mapstructure:"user"`
		Password        string        `mapstructure:"password"`
		DBName          string        `mapstructure:"name"`
		SSLMode         string        `mapstructure:"sslmode"`
		Migrate         bool          `mapstructure:"migrate"`
		LogLevel        string        `mapstructure:"log_level"`
		MaxOpenConns    int           `mapstructure:"max_open_conns"`
		MaxIdleConns    int           `mapstructure:"max_idle_conns"`
		ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	} `mapstructure:"db"`
	JWT struct {
		SecretKey string `mapstructure:"secret_key"`
		ExpiresIn int    `mapstructure:"expires_in"` // в часах
	} `mapstructure:"jwt"`
	SMTP struct {
		Host     string `mapstructure:"host"` // пустой хост отключает рассылку
		Port     int    `mapstructure:"port"`
		Username string `mapstructure:"username"`
		Password string `mapstructure:"password"`
		From     string `mapstructure:"from"`
	} `mapstructure:"smtp"`
	Redis struct {
		Addr     string `mapstructure:"addr"` // пустой адрес отключает публикацию событий
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
		Stream   string `mapstructure:"stream"`
	} `mapstructure:"redis"`
	Transfer struct {
		MaxRetries   int           `mapstructure:"max_retries"`
		RetryBackoff time.Duration `mapstructure:"retry_backoff"`
		Timeout      time.Duration `mapstructure:"timeout"`
	} `mapstructure:"transfer"`
	Ops struct {
		Enabled bool `mapstructure:"enabled"`
		Port    int  `mapstructure:"port"`
	} `mapstructure:"ops"`
	Log struct {
		Dir string `mapstructure:"dir"`
	} `mapstructure:"log"`
	Seed struct {
		Enabled       bool   `mapstructure:"enabled"`
		AdminUsername string `mapstructure:"admin_username"`
		AdminPassword string `mapstructure:"admin_password"`
	} `mapstructure:"seed"`
}

// NewConfig создает новый экземпляр конфигурации.
// Значения берутся из config.yaml (если есть) и переменных окружения (SERVER_PORT, DB_HOST, ...).
func NewConfig() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("ошибка чтения файла конфигурации: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("неверный формат конфигурации: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Настройки сервера
	v.SetDefault("server.port", 8080)

	// Настройки базы данных
	v.SetDefault("db.driver", "postgres")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "postgres")
	v.SetDefault("db.name", "bank_db")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.migrate", true)
	v.SetDefault("db.log_level", "warn")
	v.SetDefault("db.max_open_conns", 100)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", time.Hour)

	// Настройки JWT
	v.SetDefault("jwt.secret_key", "your-secret-key-here")
	v.SetDefault("jwt.expires_in", 24)

	// Настройки SMTP
	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "no-reply@bank.local")

	// Настройки Redis
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.stream", "transfer-events")

	// Настройки переводов
	v.SetDefault("transfer.max_retries", 3)
	v.SetDefault("transfer.retry_backoff", 50*time.Millisecond)
	v.SetDefault("transfer.timeout", 5*time.Second)

	v.SetDefault("ops.enabled", true)
	v.SetDefault("ops.port", 9090)

	v.SetDefault("log.dir", "")

	v.SetDefault("seed.enabled", true)
	v.SetDefault("seed.admin_username", "admin")
	v.SetDefault("seed.admin_password", "Admin123!")
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("неверный порт сервера: %d", c.Server.Port)
	}
	switch c.DB.Driver {
	case "postgres":
		if c.DB.Port <= 0 || c.DB.Port > 65535 {
			return fmt.Errorf("неверный порт базы данных: %d", c.DB.Port)
		}
	case "sqlite":
	default:
		return fmt.Errorf("неизвестный драйвер базы данных: %q", c.DB.Driver)
	}
	if c.JWT.SecretKey == "" {
		return errors.New("не задан JWT_SECRET_KEY")
	}
	if c.JWT.ExpiresIn <= 0 {
		return fmt.Errorf("неверное время жизни JWT: %d", c.JWT.ExpiresIn)
	}
	if c.Transfer.MaxRetries < 1 {
		return fmt.Errorf("неверное число попыток перевода: %d", c.Transfer.MaxRetries)
	}
	return nil
}

// PostgresDSN формирует строку подключения для GORM
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.DBName,
		c.DB.SSLMode,
	)
}

// PostgresURL формирует URL для миграций
func (c *Config) PostgresURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DB.User,
		c.DB.Password,
		c.DB.Host,
		c.DB.Port,
		c.DB.DBName,
		c.DB.SSLMode,
	)
}
