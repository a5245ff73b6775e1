package config

import (
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション設定を表す
type Config struct {
	Env      string
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	AMQP     AMQPConfig
	Lock     LockConfig
	Order    OrderConfig
	Payment  PaymentConfig
}

// ServerConfig はサーバー設定
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig はデータベース設定
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig はRedis設定
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// AMQPConfig はメッセージブローカー設定
// URLが空の場合、通知は無効化される
type AMQPConfig struct {
	URL string
}

// LockConfig は座席ロック設定
type LockConfig struct {
	TTL             time.Duration
	ReclaimInterval time.Duration
}

// OrderConfig は注文設定
type OrderConfig struct {
	AbandonTimeout time.Duration
	SweepInterval  time.Duration
}

// PaymentConfig は決済設定
// Secret は署名検証用の帯域外共有シークレット
type PaymentConfig struct {
	Secret   string
	Currency string
}

// Load は環境変数から設定を読み込む
func Load() *Config {
	return &Config{
		Env: getEnv("APP_ENV", "development"),
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "ticket_booking"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		AMQP: AMQPConfig{
			URL: getEnv("AMQP_URL", ""),
		},
		Lock: LockConfig{
			TTL:             getDurationEnv("LOCK_TTL", 5*time.Minute),
			ReclaimInterval: getDurationEnv("LOCK_RECLAIM_INTERVAL", 30*time.Second),
		},
		Order: OrderConfig{
			AbandonTimeout: getDurationEnv("ORDER_ABANDON_TIMEOUT", 15*time.Minute),
			SweepInterval:  getDurationEnv("ORDER_SWEEP_INTERVAL", 1*time.Minute),
		},
		Payment: PaymentConfig{
			Secret:   getEnv("PAYMENT_WEBHOOK_SECRET", ""),
			Currency: getEnv("PAYMENT_CURRENCY", "JPY"),
		},
	}
}

// DSN はPostgreSQL接続文字列を返す
func (c *DatabaseConfig) DSN() string {
	return "host=" + c.Host +
		" port=" + c.Port +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.DBName +
		" sslmode=" + c.SSLMode
}

// Addr はRedis接続アドレスを返す
func (c *RedisConfig) Addr() string {
	return c.Host + ":" + c.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
