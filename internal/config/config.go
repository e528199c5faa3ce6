package config

import (
	"flag"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"fitroom/internal/genimage"
)

type Config struct {
	Addr        string
	Env         string
	DatabaseURL string
	CatalogPath string
	Store       StoreConfig
	Gemini      GeminiConfig
	Session     SessionConfig
}

type StoreConfig struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type GeminiConfig struct {
	APIKey        string
	Model         string
	Timeout       time.Duration
	MaxConcurrent int
	Fake          bool
}

type SessionConfig struct {
	TTL           time.Duration
	SweepInterval time.Duration
	MaxImageBytes int64
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	port := flag.String("port", "", "server port")
	catalog := flag.String("catalog", "", "wardrobe catalog JSON path")
	flag.Parse()

	cfg := FromEnv()
	if cfg.Addr == "" {
		cfg.Addr = normalizeAddr(firstNonEmpty(*port, ":8080"))
	}
	if cfg.CatalogPath == "" {
		cfg.CatalogPath = *catalog
	}
	return cfg, nil
}

// FromEnv builds a Config from environment variables alone. Values the
// environment does not set fall back to local-development defaults.
func FromEnv() *Config {
	env := strings.TrimSpace(os.Getenv("APP_ENV"))
	if env == "" {
		env = "local"
	}

	return &Config{
		Addr:        normalizeAddr(strings.TrimSpace(os.Getenv("PORT"))),
		Env:         env,
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		CatalogPath: strings.TrimSpace(os.Getenv("CATALOG_PATH")),
		Store: StoreConfig{
			Endpoint:  strings.TrimSpace(os.Getenv("STORE_S3_ENDPOINT")),
			Region:    firstNonEmpty(strings.TrimSpace(os.Getenv("STORE_S3_REGION")), "us-east-1"),
			AccessKey: firstNonEmpty(strings.TrimSpace(os.Getenv("STORE_S3_ACCESS_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_USER"))),
			SecretKey: firstNonEmpty(strings.TrimSpace(os.Getenv("STORE_S3_SECRET_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_PASSWORD"))),
			Bucket:    firstNonEmpty(strings.TrimSpace(os.Getenv("STORE_S3_BUCKET")), "fitroom-renders"),
			UseSSL:    envBool("STORE_S3_USE_SSL", !strings.EqualFold(env, "local")),
		},
		Gemini: GeminiConfig{
			APIKey:        strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
			Model:         firstNonEmpty(strings.TrimSpace(os.Getenv("GEMINI_MODEL")), genimage.DefaultGeminiModel),
			Timeout:       envDuration("GEMINI_TIMEOUT", 90*time.Second),
			MaxConcurrent: envInt("GEMINI_MAX_CONCURRENT", 4),
			Fake:          envBool("FAKE_GATEWAY", false),
		},
		Session: SessionConfig{
			TTL:           envDuration("SESSION_TTL", 2*time.Hour),
			SweepInterval: envDuration("SWEEP_INTERVAL", 10*time.Minute),
			MaxImageBytes: envBytes("MAX_IMAGE_BYTES", 8<<20),
		},
	}
}

func normalizeAddr(addr string) string {
	if addr == "" {
		return ""
	}
	if strings.HasPrefix(addr, ":") || strings.Contains(addr, ":") {
		return addr
	}
	return ":" + addr
}

func envDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func envBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func envBytes(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
