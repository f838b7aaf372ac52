package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Timetable TimetableConfig
	RabbitMQ  RabbitMQConfig
	Mail      MailConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
	Issuer string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// TimetableConfig holds the generation defaults a group may override.
type TimetableConfig struct {
	Days              []string
	MaxPeriods        int
	Rooms             []string
	Attempts          int
	Workers           int
	Seed              int64
	LabMarker         string
	CacheTTL          time.Duration
	GenerationTimeout time.Duration
	AsyncWorkers      int
	AsyncQueueSize    int
}

// RabbitMQConfig configures the timetable event publisher. An empty DSN disables it.
type RabbitMQConfig struct {
	DSN            string
	Exchange       string
	PublishTimeout time.Duration
}

// MailConfig configures the timetable notification mailer.
type MailConfig struct {
	SMTPHost    string
	SMTPPort    int
	Username    string
	Password    string
	From        string
	Recipients  []string
	Queue       string
	DialTimeout time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("ENABLE_REDIS"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
		Issuer: v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Timetable = TimetableConfig{
		Days:              splitAndTrim(v.GetString("TIMETABLE_DAYS")),
		MaxPeriods:        v.GetInt("TIMETABLE_MAX_PERIODS"),
		Rooms:             splitAndTrim(v.GetString("TIMETABLE_ROOMS")),
		Attempts:          v.GetInt("TIMETABLE_ATTEMPTS"),
		Workers:           v.GetInt("TIMETABLE_WORKERS"),
		Seed:              v.GetInt64("TIMETABLE_SEED"),
		LabMarker:         v.GetString("TIMETABLE_LAB_MARKER"),
		CacheTTL:          parseDuration(v.GetString("TIMETABLE_CACHE_TTL"), 10*time.Minute),
		GenerationTimeout: parseDuration(v.GetString("TIMETABLE_GENERATION_TIMEOUT"), 10*time.Second),
		AsyncWorkers:      v.GetInt("TIMETABLE_ASYNC_WORKERS"),
		AsyncQueueSize:    v.GetInt("TIMETABLE_ASYNC_QUEUE_SIZE"),
	}

	cfg.RabbitMQ = RabbitMQConfig{
		DSN:            v.GetString("RABBITMQ_DSN"),
		Exchange:       v.GetString("RABBITMQ_EXCHANGE"),
		PublishTimeout: parseDuration(v.GetString("RABBITMQ_PUBLISH_TIMEOUT"), 5*time.Second),
	}

	cfg.Mail = MailConfig{
		SMTPHost:    v.GetString("SMTP_HOST"),
		SMTPPort:    v.GetInt("SMTP_PORT"),
		Username:    v.GetString("SMTP_USERNAME"),
		Password:    v.GetString("SMTP_PASSWORD"),
		From:        v.GetString("MAIL_FROM"),
		Recipients:  splitAndTrim(v.GetString("TIMETABLE_NOTIFY_RECIPIENTS")),
		Queue:       v.GetString("RABBITMQ_NOTIFY_QUEUE"),
		DialTimeout: parseDuration(v.GetString("SMTP_DIAL_TIMEOUT"), 10*time.Second),
	}
	if cfg.Mail.From == "" {
		cfg.Mail.From = cfg.Mail.Username
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "timetable")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("ENABLE_REDIS", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("TIMETABLE_DAYS", "Mon,Tue,Wed,Thu,Fri")
	v.SetDefault("TIMETABLE_MAX_PERIODS", 6)
	v.SetDefault("TIMETABLE_ROOMS", "101,102,LAB-306")
	v.SetDefault("TIMETABLE_ATTEMPTS", 30)
	v.SetDefault("TIMETABLE_WORKERS", 1)
	v.SetDefault("TIMETABLE_SEED", 0)
	v.SetDefault("TIMETABLE_LAB_MARKER", "LAB")
	v.SetDefault("TIMETABLE_CACHE_TTL", "10m")
	v.SetDefault("TIMETABLE_GENERATION_TIMEOUT", "10s")
	v.SetDefault("TIMETABLE_ASYNC_WORKERS", 2)
	v.SetDefault("TIMETABLE_ASYNC_QUEUE_SIZE", 16)

	v.SetDefault("RABBITMQ_DSN", "")
	v.SetDefault("RABBITMQ_EXCHANGE", "timetable.events")
	v.SetDefault("RABBITMQ_PUBLISH_TIMEOUT", "5s")
	v.SetDefault("RABBITMQ_NOTIFY_QUEUE", "timetable.notifications")

	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 465)
	v.SetDefault("SMTP_DIAL_TIMEOUT", "10s")
	v.SetDefault("TIMETABLE_NOTIFY_RECIPIENTS", "")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
