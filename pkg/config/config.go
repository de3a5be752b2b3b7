package config

import (
	"errors"
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

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Admin    AdminConfig
	CORS     CORSConfig
	Log      LogConfig
	Roster   RosterConfig
	Course   CourseConfig
	Exports  ExportsConfig
	Jobs     JobsConfig
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
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

// AdminConfig holds the single admin credential accepted by the login
// endpoint. The password hash is a bcrypt digest; a plaintext password may be
// supplied instead for local development.
type AdminConfig struct {
	Username     string
	PasswordHash string
	Password     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// RosterConfig points at the two form result sources and tunes how the
// reconciled roster is fetched and cached.
type RosterConfig struct {
	RegisterSource string
	SurveySource   string
	SourceTimeout  time.Duration
	CacheTTL       time.Duration
	RetryAttempts  int
	RetryBaseDelay time.Duration
}

// CourseConfig tunes course-structure extraction and the grade-structure
// migration worker.
type CourseConfig struct {
	DefaultLabCount int
	CacheTTL        time.Duration
	BatchSize       int
}

// ExportsConfig controls roster export storage and signed download links.
type ExportsConfig struct {
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
}

// JobsConfig tunes the in-process background queue used for grade-structure
// syncs after course content changes.
type JobsConfig struct {
	WorkerConcurrency int
	WorkerRetries     int
	RetryDelay        time.Duration
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
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

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
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.Admin = AdminConfig{
		Username:     v.GetString("ADMIN_USERNAME"),
		PasswordHash: v.GetString("ADMIN_PASSWORD_HASH"),
		Password:     v.GetString("ADMIN_PASSWORD"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Roster = RosterConfig{
		RegisterSource: v.GetString("ROSTER_REGISTER_SOURCE"),
		SurveySource:   v.GetString("ROSTER_SURVEY_SOURCE"),
		SourceTimeout:  parseDuration(v.GetString("ROSTER_SOURCE_TIMEOUT"), 30*time.Second),
		CacheTTL:       parseDuration(v.GetString("ROSTER_CACHE_TTL"), 5*time.Minute),
		RetryAttempts:  v.GetInt("ROSTER_RETRY_ATTEMPTS"),
		RetryBaseDelay: parseDuration(v.GetString("ROSTER_RETRY_BASE_DELAY"), time.Second),
	}

	batchSize := v.GetInt("COURSE_SYNC_BATCH_SIZE")
	if batchSize <= 0 || batchSize > 500 {
		batchSize = 500
	}
	cfg.Course = CourseConfig{
		DefaultLabCount: v.GetInt("COURSE_DEFAULT_LAB_COUNT"),
		CacheTTL:        parseDuration(v.GetString("COURSE_CACHE_TTL"), 10*time.Minute),
		BatchSize:       batchSize,
	}

	cfg.Exports = ExportsConfig{
		StorageDir:      v.GetString("EXPORTS_STORAGE_DIR"),
		SignedURLSecret: v.GetString("EXPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("EXPORTS_SIGNED_URL_TTL"), 24*time.Hour),
	}

	cfg.Jobs = JobsConfig{
		WorkerConcurrency: v.GetInt("JOBS_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("JOBS_WORKER_RETRIES"),
		RetryDelay:        parseDuration(v.GetString("JOBS_RETRY_DELAY"), 5*time.Second),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "course_ops")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")

	v.SetDefault("ADMIN_USERNAME", "admin")
	v.SetDefault("ADMIN_PASSWORD_HASH", "")
	v.SetDefault("ADMIN_PASSWORD", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ROSTER_REGISTER_SOURCE", "")
	v.SetDefault("ROSTER_SURVEY_SOURCE", "")
	v.SetDefault("ROSTER_SOURCE_TIMEOUT", "30s")
	v.SetDefault("ROSTER_CACHE_TTL", "5m")
	v.SetDefault("ROSTER_RETRY_ATTEMPTS", 3)
	v.SetDefault("ROSTER_RETRY_BASE_DELAY", "1s")

	v.SetDefault("COURSE_DEFAULT_LAB_COUNT", 2)
	v.SetDefault("COURSE_CACHE_TTL", "10m")
	v.SetDefault("COURSE_SYNC_BATCH_SIZE", 500)

	v.SetDefault("EXPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("EXPORTS_SIGNED_URL_SECRET", "dev_exports_secret")
	v.SetDefault("EXPORTS_SIGNED_URL_TTL", "24h")

	v.SetDefault("JOBS_WORKER_CONCURRENCY", 1)
	v.SetDefault("JOBS_WORKER_RETRIES", 3)
	v.SetDefault("JOBS_RETRY_DELAY", "5s")
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
