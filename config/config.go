package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Storage selects the backend: "postgres" or "memory".
	Storage string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	RabbitURL  string
	ServerPort string
	CronSecret string

	// GatewayBaseURL overrides the Stripe API endpoint. Live payments are
	// enabled by GatewaySecretKey alone.
	GatewayBaseURL    string
	GatewaySecretKey  string
	GatewayMaxRetries int
	GatewayTimeout    time.Duration
	Currency          string
	CautionHoldAmount int64

	HostResponseWindow time.Duration
	ReviewWindow       time.Duration
	Location           *time.Location

	LogLevel string
}

// Load reads the configuration from the environment. A .env file in the
// working directory is loaded first when present.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[Config] no .env file found, using environment variables")
	}

	loc, err := time.LoadLocation(getEnv("TIMEZONE", "UTC"))
	if err != nil {
		log.Printf("[Config] invalid TIMEZONE, falling back to UTC: %v", err)
		loc = time.UTC
	}

	return &Config{
		Storage: getEnv("STORAGE", "postgres"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "sublet_db"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		RabbitURL:  os.Getenv("RABBITMQ_URL"),
		ServerPort: getEnv("SERVER_PORT", "8082"),
		CronSecret: os.Getenv("CRON_SECRET"),

		GatewayBaseURL:    os.Getenv("GATEWAY_BASE_URL"),
		GatewaySecretKey:  os.Getenv("GATEWAY_SECRET_KEY"),
		GatewayMaxRetries: getEnvInt("GATEWAY_MAX_RETRIES", 3),
		GatewayTimeout:    getEnvDuration("GATEWAY_TIMEOUT", 10*time.Second),
		Currency:          getEnv("CURRENCY", "eur"),
		CautionHoldAmount: int64(getEnvInt("CAUTION_HOLD_AMOUNT", 30000)),

		HostResponseWindow: getEnvDuration("HOST_RESPONSE_WINDOW", 48*time.Hour),
		ReviewWindow:       getEnvDuration("REVIEW_WINDOW", 14*24*time.Hour),
		Location:           loc,

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// ReviewWindowDays is ReviewWindow in whole calendar days.
func (c *Config) ReviewWindowDays() int {
	return int(c.ReviewWindow / (24 * time.Hour))
}

func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Printf("[Config] invalid integer for %s, using default %d", key, fallback)
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Printf("[Config] invalid duration for %s, using default %s", key, fallback)
	}
	return fallback
}
