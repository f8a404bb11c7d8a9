package config

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Activation email dispatch policies. Outbox commits the email job in the
// same transaction as the user row and lets the worker retry; sync sends
// inline and fails the registration when the provider does.
const (
	MailModeOutbox = "outbox"
	MailModeSync   = "sync"
)

type Config struct {
	Env   string
	Port  int
	DBURL string

	// JWT
	JWTSecret     string // base64-encoded HMAC key
	JWTTTLMinutes int

	// Account activation
	ActivationTTLMinutes int
	ActivationURL        string
	MailMode             string

	// SMTP
	MailHost     string
	MailPort     int
	MailFrom     string
	MailUsername string
	MailPassword string

	// File uploads
	UploadDir string

	// Redis (rate limiting)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Seeded admin account
	AdminEmail     string
	AdminPassword  string
	AdminFirstName string
	AdminLastName  string

	// Rate limiting for /auth endpoints
	RateLimit         int
	RateWindowSeconds int

	// Tracing; empty disables the exporter
	OTLPEndpoint string
}

func Load() Config {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	return Config{
		Env:   getEnv("APP_ENV", "dev"),
		Port:  getEnvInt("PORT", 8080),
		DBURL: buildDBURL(),

		JWTSecret:     getEnv("JWT_SECRET", ""),
		JWTTTLMinutes: getEnvInt("JWT_TTL_MINUTES", 1440),

		ActivationTTLMinutes: getEnvInt("ACTIVATION_TTL_MINUTES", 15),
		ActivationURL:        getEnv("ACTIVATION_URL", "http://localhost:4200/activate-account"),
		MailMode:             getEnv("ACTIVATION_EMAIL_MODE", MailModeOutbox),

		MailHost:     getEnv("MAIL_HOST", "localhost"),
		MailPort:     getEnvInt("MAIL_PORT", 1025),
		MailFrom:     getEnv("MAIL_FROM", "no-reply@booknest.local"),
		MailUsername: getEnv("MAIL_USERNAME", ""),
		MailPassword: getEnv("MAIL_PASSWORD", ""),

		UploadDir: getEnv("UPLOAD_DIR", "./uploads"),

		RedisAddr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		AdminEmail:     getEnv("ADMIN_EMAIL", ""),
		AdminPassword:  getEnv("ADMIN_PASSWORD", ""),
		AdminFirstName: getEnv("ADMIN_FIRST_NAME", "Admin"),
		AdminLastName:  getEnv("ADMIN_LAST_NAME", "User"),

		RateLimit:         getEnvInt("RATE_LIMIT", 20),
		RateWindowSeconds: getEnvInt("RATE_WINDOW_SECONDS", 60),

		OTLPEndpoint: getEnv("OTLP_ENDPOINT", ""),
	}
}

func (c Config) JWTTTL() time.Duration {
	return time.Duration(c.JWTTTLMinutes) * time.Minute
}

func (c Config) ActivationTTL() time.Duration {
	return time.Duration(c.ActivationTTLMinutes) * time.Minute
}

func buildDBURL() string {
	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "booknest")
	pass := getEnv("DB_PASSWORD", "booknest")
	name := getEnv("DB_NAME", "booknest")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			return fallback
		}

		return num
	}
	return fallback
}
