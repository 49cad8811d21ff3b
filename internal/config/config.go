package config

import (
	"os"      // For environment variables
	"strconv" // For string to int conversion

	"github.com/joho/godotenv" // For loading .env files
)

// Config holds the application configuration
type Config struct {
	AppPort    string // Application port
	DBUser     string // Database user
	DBPassword string // Database password
	DBHost     string // Database host
	DBPort     string // Database port
	DBName     string // Database name
	JWTSecret  string // JWT secret key
	RedisAddr  string // Redis server address
	RedisPass  string // Redis password
	RedisDB    int    // Redis database number
	IsProd     bool   // Is production environment

	PaymentsURL        string // Base URL of the remote payment/tracking functions
	PaymentsKey        string // Bearer key sent to the remote functions
	PaymentPollSeconds int    // Interval between payment status polls

	S3Endpoint  string // S3-compatible endpoint for product images
	S3Region    string // S3 region
	S3Bucket    string // Bucket holding product images
	S3AccessKey string // Static access key
	S3SecretKey string // Static secret key
	S3PublicURL string // Public base URL objects are served from

	RateLimitRPS   int // Requests per second per client on public write endpoints
	RateLimitBurst int // Burst size for the same limiter

	AdminEmail    string // First back-office account, seeded by the migration
	AdminPassword string // Its initial password
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	_ = godotenv.Load() // Load .env file if present
	redisDB, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
	return &Config{
		AppPort:    envOr("APP_PORT", "8080"),      // Application port
		DBUser:     os.Getenv("DB_USER"),           // Database user
		DBPassword: os.Getenv("DB_PASSWORD"),       // Database password
		DBHost:     os.Getenv("DB_HOST"),           // Database host
		DBPort:     os.Getenv("DB_PORT"),           // Database port
		DBName:     os.Getenv("DB_NAME"),           // Database name
		JWTSecret:  os.Getenv("JWT_SECRET"),        // JWT secret key
		RedisAddr:  os.Getenv("REDIS_ADDR"),        // Redis server address
		RedisPass:  os.Getenv("REDIS_PASS"),        // Redis password
		RedisDB:    redisDB,                        // Redis database number
		IsProd:     os.Getenv("IS_PROD") == "true", // Is production environment

		PaymentsURL:        os.Getenv("PAYMENTS_URL"),         // Remote functions base URL
		PaymentsKey:        os.Getenv("PAYMENTS_KEY"),         // Remote functions key
		PaymentPollSeconds: intOr("PAYMENT_POLL_SECONDS", 10), // Poll every 10s by default

		S3Endpoint:  os.Getenv("S3_ENDPOINT"),        // Storage endpoint
		S3Region:    envOr("S3_REGION", "us-east-1"), // Storage region
		S3Bucket:    os.Getenv("S3_BUCKET"),          // Storage bucket
		S3AccessKey: os.Getenv("S3_ACCESS_KEY"),      // Storage access key
		S3SecretKey: os.Getenv("S3_SECRET_KEY"),      // Storage secret key
		S3PublicURL: os.Getenv("S3_PUBLIC_URL"),      // Public URL prefix

		RateLimitRPS:   intOr("RATE_LIMIT_RPS", 5),    // Public write rate
		RateLimitBurst: intOr("RATE_LIMIT_BURST", 10), // Public write burst

		AdminEmail:    os.Getenv("ADMIN_EMAIL"),    // Seeded admin email
		AdminPassword: os.Getenv("ADMIN_PASSWORD"), // Seeded admin password
	}
}

// DSN builds the MySQL data source name
func (c *Config) DSN() string {
	return c.DBUser + ":" + c.DBPassword + "@tcp(" + c.DBHost + ":" + c.DBPort + ")/" + c.DBName + "?parseTime=true&charset=utf8mb4"
}

// envOr returns the variable or a fallback when unset
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// intOr parses a positive integer variable or returns a fallback
func intOr(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
