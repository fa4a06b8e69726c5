package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	AuthProviderJWT      = "jwt"
	AuthProviderFirebase = "firebase"
)

type Config struct {
	Port      string
	GinMode   string
	ClientURL string
	DB        DBConfig
	Redis     RedisConfig
	Cache     CacheConfig
	Auth      AuthConfig
	Firebase  FirebaseConfig
	Notify    NotifyConfig
	Log       LogConfig
}

type DBConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN строка подключения к PostgreSQL
func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

type CacheConfig struct {
	Enabled   bool
	NearbyTTL time.Duration
}

type AuthConfig struct {
	Provider  string
	JWTSecret string
}

type FirebaseConfig struct {
	CredentialsFile string
	ProjectID       string
}

// Enabled сообщает, настроен ли Firebase
func (c FirebaseConfig) Enabled() bool {
	return c.CredentialsFile != "" || c.ProjectID != ""
}

type NotifyConfig struct {
	Workers   int
	QueueSize int
}

type LogConfig struct {
	Level  string
	Format string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("GIN_MODE", "debug")
	v.SetDefault("CLIENT_URL", "*")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "")
	v.SetDefault("DB_NAME", "carpool")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 100)
	v.SetDefault("DB_MAX_IDLE_CONNS", 25)
	v.SetDefault("DB_CONN_MAX_LIFETIME_MINUTES", 60)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("CACHE_ENABLED", true)
	v.SetDefault("NEARBY_CACHE_TTL_SECONDS", 30)
	v.SetDefault("AUTH_PROVIDER", AuthProviderJWT)
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("FIREBASE_CREDENTIALS_FILE", "")
	v.SetDefault("FIREBASE_PROJECT_ID", "")
	v.SetDefault("NOTIFY_WORKERS", 4)
	v.SetDefault("NOTIFY_QUEUE_SIZE", 256)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}

// Load читает .env (если есть) и переменные окружения
func Load() (*Config, error) {
	// Отсутствие .env не ошибка, используем переменные окружения
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:      v.GetString("PORT"),
		GinMode:   v.GetString("GIN_MODE"),
		ClientURL: v.GetString("CLIENT_URL"),
		DB: DBConfig{
			Host:            v.GetString("DB_HOST"),
			Port:            v.GetString("DB_PORT"),
			User:            v.GetString("DB_USER"),
			Password:        v.GetString("DB_PASSWORD"),
			Name:            v.GetString("DB_NAME"),
			SSLMode:         v.GetString("DB_SSLMODE"),
			MaxOpenConns:    positiveOr(v.GetInt("DB_MAX_OPEN_CONNS"), 100),
			MaxIdleConns:    positiveOr(v.GetInt("DB_MAX_IDLE_CONNS"), 25),
			ConnMaxLifetime: time.Duration(positiveOr(v.GetInt("DB_CONN_MAX_LIFETIME_MINUTES"), 60)) * time.Minute,
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
		},
		Cache: CacheConfig{
			Enabled:   v.GetBool("CACHE_ENABLED"),
			NearbyTTL: time.Duration(positiveOr(v.GetInt("NEARBY_CACHE_TTL_SECONDS"), 30)) * time.Second,
		},
		Auth: AuthConfig{
			Provider:  strings.ToLower(v.GetString("AUTH_PROVIDER")),
			JWTSecret: v.GetString("JWT_SECRET"),
		},
		Firebase: FirebaseConfig{
			CredentialsFile: v.GetString("FIREBASE_CREDENTIALS_FILE"),
			ProjectID:       v.GetString("FIREBASE_PROJECT_ID"),
		},
		Notify: NotifyConfig{
			Workers:   positiveOr(v.GetInt("NOTIFY_WORKERS"), 4),
			QueueSize: positiveOr(v.GetInt("NOTIFY_QUEUE_SIZE"), 256),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет согласованность настроек авторизации
func (c *Config) Validate() error {
	switch c.Auth.Provider {
	case AuthProviderJWT:
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET не задан для AUTH_PROVIDER=jwt")
		}
	case AuthProviderFirebase:
		if !c.Firebase.Enabled() {
			return fmt.Errorf("FIREBASE_CREDENTIALS_FILE или FIREBASE_PROJECT_ID обязательны для AUTH_PROVIDER=firebase")
		}
	default:
		return fmt.Errorf("неизвестный AUTH_PROVIDER: %q", c.Auth.Provider)
	}
	return nil
}

func positiveOr(val, def int) int {
	if val > 0 {
		return val
	}
	return def
}
