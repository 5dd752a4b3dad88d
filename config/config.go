package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort            string   `mapstructure:"APP_PORT"`
	DatabaseURL        string   `mapstructure:"DATABASE_URL"`
	DatabaseName       string   `mapstructure:"DATABASE_NAME"`
	Env                string   `mapstructure:"ENV"`
	JWTSecret          string   `mapstructure:"JWT_SECRET"`
	LogLevel           string   `mapstructure:"LOG_LEVEL"`
	MaxRequestsPerMin  int      `mapstructure:"MAX_REQUESTS_PER_MIN"`
	CORSAllowedOrigins []string `mapstructure:"CORS_ALLOWED_ORIGINS"`

	// Redis configuration.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisCacheDB  int    `mapstructure:"REDIS_CACHE_DB"`
	RedisQueueDB  int    `mapstructure:"REDIS_QUEUE_DB"`

	// Payments.
	StripeKey           string        `mapstructure:"STRIPE_KEY"`
	StripeWebhookSecret string        `mapstructure:"STRIPE_WEBHOOK_SECRET"`
	PaymentTimeout      time.Duration `mapstructure:"PAYMENT_TIMEOUT"`
	RefundRetryDelay    time.Duration `mapstructure:"REFUND_RETRY_DELAY"`

	// Pricing.
	PricingMinCharge float64 `mapstructure:"PRICING_MIN_CHARGE"`
	PricingTimezone  string  `mapstructure:"PRICING_TIMEZONE"`

	// Notifications.
	FirebaseCredentialsFile string `mapstructure:"FIREBASE_CREDENTIALS_FILE"`
	WorkerConcurrency       int    `mapstructure:"WORKER_CONCURRENCY"`
}

var AppConfig Config

func LoadConfig() {
	// Look for a config file named "config.yaml" in the current and "config" directory.
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	// Automatically use environment variables where available.
	viper.AutomaticEnv()

	setDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("MAX_REQUESTS_PER_MIN", 100)
	v.SetDefault("CORS_ALLOWED_ORIGINS", []string{"*"})
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_CACHE_DB", 0)
	v.SetDefault("REDIS_QUEUE_DB", 1)
	v.SetDefault("DATABASE_URL", "mongodb://localhost:27017")
	v.SetDefault("DATABASE_NAME", "consultly")
	v.SetDefault("STRIPE_KEY", "")
	v.SetDefault("STRIPE_WEBHOOK_SECRET", "")
	v.SetDefault("PAYMENT_TIMEOUT", 15*time.Second)
	v.SetDefault("REFUND_RETRY_DELAY", 15*time.Minute)
	v.SetDefault("PRICING_MIN_CHARGE", 0.50)
	v.SetDefault("PRICING_TIMEZONE", "UTC")
	v.SetDefault("FIREBASE_CREDENTIALS_FILE", "")
	v.SetDefault("WORKER_CONCURRENCY", 10)
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}

// PricingLocation resolves the time zone calendar pricing factors are evaluated in.
func PricingLocation() *time.Location {
	loc, err := time.LoadLocation(AppConfig.PricingTimezone)
	if err != nil {
		log.Printf("invalid PRICING_TIMEZONE %q, falling back to UTC: %v", AppConfig.PricingTimezone, err)
		return time.UTC
	}
	return loc
}
