package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	OTLPEndpoint string
	OtelEnabled  bool

	DBType     string
	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	Etsy    EtsyConfig
	Prodigi ProdigiConfig
	Email   EmailConfig

	SkuMapPath  string
	SkuMapWatch bool

	RunInterval time.Duration
	EnabledJobs []string

	OpsAddr string
}

// EtsyConfig carries marketplace API credentials. The access/refresh token
// pair rotates at runtime; SecretsFile is where the rotated pair is persisted
// between invocations.
type EtsyConfig struct {
	BaseURL      string
	ShopID       string
	Keystring    string
	SharedSecret string
	AccessToken  string
	RefreshToken string
	SecretsFile  string
}

type ProdigiConfig struct {
	BaseURL string
	APIKey  string
	Sandbox bool
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	Recipients   []string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	sandbox := getenvBool("PRODIGI_SANDBOX", true)
	prodigiBase := getenv("PRODIGI_BASE_URL", "")
	if prodigiBase == "" {
		if sandbox {
			prodigiBase = "https://api.sandbox.prodigi.com/v4.0"
		} else {
			prodigiBase = "https://api.prodigi.com/v4.0"
		}
	}

	return Config{
		AppName:      getenv("APP_SERVICE", "printsync"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),
		OtelEnabled:  getenvBool("OTEL_ENABLED", false),

		DBType:     getenv("DATABASE_TYPE", "postgres"),
		DBHost:     getenv("DATABASE_HOST", "localhost"),
		DBPort:     getenv("DATABASE_PORT", "5432"),
		DBName:     getenv("DATABASE_NAME", "printsync"),
		DBUser:     getenv("DATABASE_USER", "postgres"),
		DBPassword: getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:  getenv("DATABASE_SSLMODE", "disable"),

		Etsy: EtsyConfig{
			BaseURL:      getenv("ETSY_BASE_URL", "https://api.etsy.com/v3"),
			ShopID:       getenv("ETSY_SHOP_ID", ""),
			Keystring:    strings.TrimSpace(getenv("ETSY_KEYSTRING", "")),
			SharedSecret: strings.TrimSpace(getenv("ETSY_SHARED_SECRET", "")),
			AccessToken:  strings.TrimSpace(getenv("ETSY_ACCESS_TOKEN", "")),
			RefreshToken: strings.TrimSpace(getenv("ETSY_REFRESH_TOKEN", "")),
			SecretsFile:  getenv("ETSY_SECRETS_FILE", "etsy_secrets.json"),
		},
		Prodigi: ProdigiConfig{
			BaseURL: prodigiBase,
			APIKey:  strings.TrimSpace(getenv("PRODIGI_API_KEY", "")),
			Sandbox: sandbox,
		},
		Email: EmailConfig{
			SMTPHost:     getenv("SMTP_HOST", "smtp.gmail.com"),
			SMTPPort:     getenvInt("SMTP_PORT", 587),
			SMTPUsername: getenv("SMTP_USERNAME", ""),
			SMTPPassword: getenv("SMTP_PASSWORD", ""),
			SMTPFrom:     getenv("SMTP_FROM", ""),
			Recipients:   splitList(getenv("ALERT_RECIPIENTS", "")),
		},

		SkuMapPath:  getenv("SKU_MAP_PATH", "sku_map.json"),
		SkuMapWatch: getenvBool("SKU_MAP_WATCH", false),

		RunInterval: getenvDuration("RUN_INTERVAL", time.Minute),
		EnabledJobs: splitList(getenv("ENABLED_JOBS", "")),

		OpsAddr: getenv("OPS_ADDR", ":9090"),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
