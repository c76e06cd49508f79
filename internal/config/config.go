// Package config provides configuration loading for the ArtKey service.
// All settings come from ARTKEY_* environment variables, with .env files
// loaded in development and sensible defaults elsewhere.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// init loads .env files during package initialization. godotenv.Load never
// overrides already-set variables, preserving OS env > .env precedence. In
// production no .env file exists and only the system environment applies.
func init() {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to load .env file: %v\n", err)
		}
	}
	if _, err := os.Stat(".env.local"); err == nil {
		if err := godotenv.Load(".env.local"); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to load .env.local file: %v\n", err)
		}
	}
}

// Config captures environment-driven settings for the ArtKey service.
type Config struct {
	Env         string // Deployment environment (dev, staging, prod)
	Port        string // HTTP server port
	DatabaseDSN string // PostgreSQL DSN; empty selects the in-memory store
	NATSURL     string // NATS server URL; empty disables event publishing

	// Sharing surface
	PublicBaseURL string // Base for share URLs; differs per deployment
	QRRendererURL string // External QR rendering collaborator

	// Upload backend (S3-compatible)
	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string

	// Admin authentication; empty issuer disables admin JWTs entirely
	JWTIssuer   string
	JWTAudience string

	// Commerce collaborator for order-driven activation
	OrdersURL string

	// Store call budget; a timeout surfaces as unavailable, never not-found
	StoreTimeout time.Duration

	// Guest upload limits
	MaxMediaSize     int64
	AllowedMimeTypes []string

	// CORS configuration (empty means deny all cross-origin callers)
	CORSAllowedOrigins []string
}

const (
	defaultPort         = "8080"
	defaultEnv          = "dev"
	defaultS3Region     = "us-east-1"
	defaultQRRenderer   = "https://api.qrserver.com/v1/create-qr-code/"
	defaultStoreTimeout = 5 * time.Second
)

// Load reads environment variables and produces a Config suitable for wiring
// the service.
func Load() (Config, error) {
	cfg := Config{
		Env:           getEnv("ARTKEY_ENV", defaultEnv),
		Port:          getEnv("ARTKEY_PORT", defaultPort),
		DatabaseDSN:   os.Getenv("ARTKEY_DB_DSN"),
		NATSURL:       os.Getenv("ARTKEY_NATS_URL"),
		QRRendererURL: getEnv("ARTKEY_QR_RENDERER_URL", defaultQRRenderer),
		S3Endpoint:    os.Getenv("ARTKEY_S3_ENDPOINT"),
		S3Region:      getEnv("ARTKEY_S3_REGION", defaultS3Region),
		S3Bucket:      os.Getenv("ARTKEY_S3_BUCKET"),
		S3AccessKey:   os.Getenv("ARTKEY_S3_ACCESS_KEY"),
		S3SecretKey:   os.Getenv("ARTKEY_S3_SECRET_KEY"),
		JWTIssuer:     os.Getenv("ARTKEY_JWT_ISSUER"),
		JWTAudience:   os.Getenv("ARTKEY_JWT_AUDIENCE"),
		OrdersURL:     os.Getenv("ARTKEY_ORDERS_URL"),
	}

	cfg.PublicBaseURL = resolveBaseURL(cfg.Port)

	cfg.StoreTimeout = defaultStoreTimeout
	if raw, exists := os.LookupEnv("ARTKEY_STORE_TIMEOUT_MS"); exists {
		if ms, err := strconv.ParseInt(raw, 10, 64); err == nil && ms > 0 {
			cfg.StoreTimeout = time.Duration(ms) * time.Millisecond
		}
	}

	cfg.MaxMediaSize = 10 * 1024 * 1024
	if raw, exists := os.LookupEnv("ARTKEY_MAX_MEDIA_SIZE"); exists {
		if size, err := strconv.ParseInt(raw, 10, 64); err == nil {
			cfg.MaxMediaSize = size
		}
	}

	cfg.AllowedMimeTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp", "video/mp4"}
	if raw, exists := os.LookupEnv("ARTKEY_ALLOWED_MIME_TYPES"); exists {
		cfg.AllowedMimeTypes = splitTrimmed(raw)
	}

	if raw, exists := os.LookupEnv("ARTKEY_CORS_ALLOWED_ORIGINS"); exists {
		cfg.CORSAllowedOrigins = splitTrimmed(raw)
	}

	if cfg.JWTIssuer != "" && cfg.JWTAudience == "" {
		return cfg, fmt.Errorf("ARTKEY_JWT_AUDIENCE is required when ARTKEY_JWT_ISSUER is set")
	}

	return cfg, nil
}

// resolveBaseURL picks the public base URL for share links, falling back
// through the deployment-platform-provided variables to localhost. Platform
// variables carry a bare host.
func resolveBaseURL(port string) string {
	if v := os.Getenv("ARTKEY_PUBLIC_BASE_URL"); v != "" {
		return strings.TrimRight(v, "/")
	}
	if v := os.Getenv("VERCEL_URL"); v != "" {
		return "https://" + strings.TrimRight(v, "/")
	}
	if v := os.Getenv("RENDER_EXTERNAL_URL"); v != "" {
		return strings.TrimRight(v, "/")
	}
	return "http://localhost:" + port
}

// getEnv retrieves an environment variable value, returning a fallback if
// not set or empty.
func getEnv(key, fallback string) string {
	if v, exists := os.LookupEnv(key); exists && v != "" {
		return v
	}
	return fallback
}

func splitTrimmed(raw string) []string {
	parts := strings.Split(raw, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
