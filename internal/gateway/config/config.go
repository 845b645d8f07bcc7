package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	Env            string
	SimBackendURL  string
	DatabaseURL    string
	PopupStatePath string
	PopupSeedPath  string
	PopupExpiry    PopupExpiry
	PopupLocation  *time.Location
	PublicBaseURL  string
	SessionTTL     time.Duration
	MaxSessions    int
	AllowedOrigins []string
	// ShutdownTimeout bounds draining requests and closing streams on exit.
	ShutdownTimeout time.Duration
	Redis           RedisConfig
	Media           MediaConfig
}

// PopupExpiry controls how long "don't show again" lasts.
type PopupExpiry string

const (
	PopupExpiryNever    PopupExpiry = "never"
	PopupExpiryEndOfDay PopupExpiry = "end_of_day"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.Addr) != ""
}

type MediaConfig struct {
	Endpoint      string
	Region        string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	PublicBaseURL string
}

func (c MediaConfig) CanUseS3() bool {
	return c.Endpoint != "" && c.AccessKey != "" && c.SecretKey != "" && c.Bucket != ""
}

// Load reads .env, then command-line flags, then environment overrides.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return parse(os.Args[1:], os.Getenv)
}

func parse(args []string, getenv func(string) string) (*Config, error) {
	env := func(key string) string { return strings.TrimSpace(getenv(key)) }

	fs := flag.NewFlagSet("labsite", flag.ContinueOnError)
	port := fs.String("port", ":8080", "server port")
	backend := fs.String("sim-backend", "http://localhost:8000", "simulation backend base url")
	statePath := fs.String("popup-state", "tmp/popup_flags.json", "file for durable popup flags when redis is not configured")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if envPort := env("PORT"); envPort != "" {
		if strings.HasPrefix(envPort, ":") {
			*port = envPort
		} else {
			*port = ":" + envPort
		}
	}

	appEnv := firstNonEmpty(env("APP_ENV"), "local")

	ttl := 12 * time.Hour
	if raw := env("SESSION_TTL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid SESSION_TTL %q", raw)
		}
		ttl = d
	}

	maxSessions := 1024
	if raw := env("MAX_SESSIONS"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid MAX_SESSIONS %q", raw)
		}
		maxSessions = n
	}

	shutdownTimeout := 10 * time.Second
	if raw := env("SHUTDOWN_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT %q", raw)
		}
		shutdownTimeout = d
	}

	redisDB := 0
	if raw := env("REDIS_DB"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB %q", raw)
		}
		redisDB = n
	}

	expiry := PopupExpiry(strings.ToLower(firstNonEmpty(env("POPUP_HIDE_UNTIL"), string(PopupExpiryNever))))
	if expiry != PopupExpiryNever && expiry != PopupExpiryEndOfDay {
		return nil, fmt.Errorf("invalid POPUP_HIDE_UNTIL %q", expiry)
	}
	loc := time.Local
	if tz := env("POPUP_TIMEZONE"); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("invalid POPUP_TIMEZONE %q: %w", tz, err)
		}
		loc = l
	}

	publicBase := firstNonEmpty(env("PUBLIC_BASE_URL"), "http://localhost"+*port)

	return &Config{
		Port:            *port,
		Env:             appEnv,
		SimBackendURL:   firstNonEmpty(env("SIM_BACKEND_URL"), *backend),
		DatabaseURL:     env("DATABASE_URL"),
		PopupStatePath:  firstNonEmpty(env("POPUP_STATE_PATH"), *statePath),
		PopupSeedPath:   env("POPUP_SEED_PATH"),
		PopupExpiry:     expiry,
		PopupLocation:   loc,
		PublicBaseURL:   strings.TrimRight(publicBase, "/"),
		SessionTTL:      ttl,
		MaxSessions:     maxSessions,
		AllowedOrigins:  splitList(env("CORS_ALLOWED_ORIGINS")),
		ShutdownTimeout: shutdownTimeout,
		Redis: RedisConfig{
			Addr:     env("REDIS_ADDR"),
			Password: env("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Media: loadMediaConfig(appEnv, env),
	}, nil
}

func loadMediaConfig(appEnv string, env func(string) string) MediaConfig {
	return MediaConfig{
		Endpoint:      env("MEDIA_S3_ENDPOINT"),
		Region:        firstNonEmpty(env("MEDIA_S3_REGION"), "us-east-1"),
		AccessKey:     firstNonEmpty(env("MEDIA_S3_ACCESS_KEY"), env("MINIO_ROOT_USER")),
		SecretKey:     firstNonEmpty(env("MEDIA_S3_SECRET_KEY"), env("MINIO_ROOT_PASSWORD")),
		Bucket:        firstNonEmpty(env("MEDIA_S3_BUCKET"), "lab-media"),
		UseSSL:        resolveUseSSL(appEnv, env("MEDIA_S3_USE_SSL")),
		PublicBaseURL: env("MEDIA_PUBLIC_BASE_URL"),
	}
}

func resolveUseSSL(appEnv, raw string) bool {
	if raw == "" {
		return !strings.EqualFold(appEnv, "local")
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return true
	}
	return v
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
