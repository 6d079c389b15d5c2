/**
 * @description
 * Configuration for the FDR API. Values come from environment variables,
 * optionally seeded by a .env file, and are bound through Viper.
 *
 * @dependencies
 * - github.com/spf13/viper: configuration loading.
 */

package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the FDR API.
type Config struct {
	ServerPort         string   `mapstructure:"SERVER_PORT"`
	DatabaseURL        string   `mapstructure:"DATABASE_URL"`
	AuthJWKSURL        string   `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience       string   `mapstructure:"AUTH_AUDIENCE"`
	AuthIssuer         string   `mapstructure:"AUTH_ISSUER"`
	InternalAPIKey     string   `mapstructure:"INTERNAL_API_KEY"`
	CORSAllowedOrigins []string `mapstructure:"CORS_ALLOWED_ORIGINS"`

	// Trusts X-User-Id when no bearer token is sent. Local development only.
	AuthAllowHeaderFallback bool `mapstructure:"AUTH_ALLOW_HEADER_FALLBACK"`

	BusinessTimezone   string `mapstructure:"BUSINESS_TIMEZONE"`
	DefaultBankName    string `mapstructure:"DEFAULT_BANK_NAME"`
	DefaultCategory    string `mapstructure:"DEFAULT_FDR_CATEGORY"`
	ExpiringWindowDays int    `mapstructure:"EXPIRING_WINDOW_DAYS"`
	MaxUploadMB        int64  `mapstructure:"MAX_UPLOAD_MB"`

	GCSBucket         string `mapstructure:"GCS_BUCKET"`
	GCSDocumentFolder string `mapstructure:"GCS_DOCUMENT_FOLDER"`
	GCSPublicBaseURL  string `mapstructure:"GCS_PUBLIC_BASE_URL"`

	OCRServiceURL  string  `mapstructure:"OCR_SERVICE_URL"`
	OCRAPIKey      string  `mapstructure:"OCR_API_KEY"`
	LLMAPIBaseURL  string  `mapstructure:"LLM_API_BASE_URL"`
	LLMAPIKey      string  `mapstructure:"LLM_API_KEY"`
	LLMModel       string  `mapstructure:"LLM_MODEL"`
	LLMTemperature float64 `mapstructure:"LLM_TEMPERATURE"`

	RabbitMQURL    string `mapstructure:"RABBITMQ_URL"`
	EventsExchange string `mapstructure:"EVENTS_EXCHANGE"`

	RedisURL                     string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix         string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	ExtractionRateLimitPerMinute int    `mapstructure:"EXTRACTION_RATE_LIMIT_PER_MINUTE"`

	// Resolved from BusinessTimezone.
	Location *time.Location `mapstructure:"-"`
}

// LoadConfig reads configuration from environment variables and an optional
// .env file in path.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("AUTH_ALLOW_HEADER_FALLBACK", false)
	viper.SetDefault("BUSINESS_TIMEZONE", "Asia/Kolkata")
	viper.SetDefault("DEFAULT_BANK_NAME", "IDBI")
	viper.SetDefault("DEFAULT_FDR_CATEGORY", "FD")
	viper.SetDefault("EXPIRING_WINDOW_DAYS", 30)
	viper.SetDefault("MAX_UPLOAD_MB", 20)
	viper.SetDefault("GCS_DOCUMENT_FOLDER", "fdr-documents")
	viper.SetDefault("GCS_PUBLIC_BASE_URL", "https://storage.googleapis.com")
	viper.SetDefault("LLM_API_BASE_URL", "https://api.openai.com/v1")
	viper.SetDefault("LLM_MODEL", "gpt-4o-mini")
	viper.SetDefault("LLM_TEMPERATURE", 0.1)
	viper.SetDefault("EVENTS_EXCHANGE", "fdr_events")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "fdr:rate_limit")
	viper.SetDefault("EXTRACTION_RATE_LIMIT_PER_MINUTE", 10)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("AUTH_JWKS_URL", "AUTH_JWKS_URL", "CLERK_JWKS_URL")
	_ = viper.BindEnv("AUTH_AUDIENCE")
	_ = viper.BindEnv("AUTH_ISSUER")
	_ = viper.BindEnv("AUTH_ALLOW_HEADER_FALLBACK")
	_ = viper.BindEnv("INTERNAL_API_KEY")
	_ = viper.BindEnv("CORS_ALLOWED_ORIGINS")
	_ = viper.BindEnv("BUSINESS_TIMEZONE")
	_ = viper.BindEnv("DEFAULT_BANK_NAME")
	_ = viper.BindEnv("DEFAULT_FDR_CATEGORY")
	_ = viper.BindEnv("EXPIRING_WINDOW_DAYS")
	_ = viper.BindEnv("MAX_UPLOAD_MB")
	_ = viper.BindEnv("GCS_BUCKET")
	_ = viper.BindEnv("GCS_DOCUMENT_FOLDER")
	_ = viper.BindEnv("GCS_PUBLIC_BASE_URL")
	_ = viper.BindEnv("OCR_SERVICE_URL")
	_ = viper.BindEnv("OCR_API_KEY")
	_ = viper.BindEnv("LLM_API_BASE_URL")
	_ = viper.BindEnv("LLM_API_KEY", "LLM_API_KEY", "OPENAI_API_KEY")
	_ = viper.BindEnv("LLM_MODEL")
	_ = viper.BindEnv("LLM_TEMPERATURE")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("EVENTS_EXCHANGE")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("EXTRACTION_RATE_LIMIT_PER_MINUTE")

	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
		err = nil
	}

	if err = viper.Unmarshal(&config); err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.DatabaseURL = strings.TrimSpace(config.DatabaseURL)
	if config.DatabaseURL == "" {
		err = errors.New("DATABASE_URL is required")
		return
	}

	config.InternalAPIKey = strings.TrimSpace(config.InternalAPIKey)
	if config.InternalAPIKey == "" {
		err = errors.New("INTERNAL_API_KEY is required")
		return
	}
	config.AuthJWKSURL = strings.TrimSpace(config.AuthJWKSURL)
	if config.AuthJWKSURL == "" && !config.AuthAllowHeaderFallback {
		err = errors.New("AUTH_JWKS_URL is required unless AUTH_ALLOW_HEADER_FALLBACK is enabled")
		return
	}

	config.DefaultBankName = strings.TrimSpace(config.DefaultBankName)
	if config.DefaultBankName == "" {
		config.DefaultBankName = "IDBI"
	}
	config.DefaultCategory = strings.ToUpper(strings.TrimSpace(config.DefaultCategory))
	switch config.DefaultCategory {
	case "SD", "PG", "FD", "BG":
	default:
		err = fmt.Errorf("DEFAULT_FDR_CATEGORY must be one of SD, PG, FD, BG; got %q", config.DefaultCategory)
		return
	}
	if config.ExpiringWindowDays <= 0 {
		config.ExpiringWindowDays = 30
	}
	if config.MaxUploadMB <= 0 {
		config.MaxUploadMB = 20
	}

	config.Location, err = time.LoadLocation(strings.TrimSpace(config.BusinessTimezone))
	if err != nil {
		err = fmt.Errorf("invalid BUSINESS_TIMEZONE %q: %w", config.BusinessTimezone, err)
		return
	}

	config.CORSAllowedOrigins = splitList(config.CORSAllowedOrigins)
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "fdr:rate_limit"
	}
	return
}

// splitList flattens comma separated env values into one slice.
func splitList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
