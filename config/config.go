package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment    string
	ServerPort     string
	AllowedOrigins string

	MongoDBURL  string
	MongoDBName string
	RedisURL    string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	JWTSecret string

	// Admin is a single credential pair from the environment, not a
	// stored record.
	AdminEmail    string
	AdminPassword string

	RazorpayKeyID     string
	RazorpayKeySecret string
	StripeSecretKey   string
	Currency          string
	ClientOrigin      string
}

// getEnvWithDefault gets an environment variable with a default value
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load() // Ignore error since file might not exist in production

	// Get environment with default
	env := getEnvWithDefault("ENVIRONMENT", "development")
	env = strings.ToLower(env)

	// Validate environment value
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[env] {
		return nil, fmt.Errorf("invalid environment value: %s", env)
	}

	config := &Config{
		Environment:    env,
		ServerPort:     getEnvWithDefault("SERVER_PORT", "8080"),
		AllowedOrigins: getEnvWithDefault("ALLOWED_ORIGINS", "*"),

		MongoDBURL:  os.Getenv("MONGODB_URL"),
		MongoDBName: getEnvWithDefault("MONGODB_NAME", "careslot"),
		RedisURL:    os.Getenv("REDIS_URL"),

		MinioEndpoint:  os.Getenv("MINIO_ENDPOINT"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    getEnvWithDefault("MINIO_BUCKET", "profile-pics"),
		MinioUseSSL:    getEnvWithDefault("MINIO_USE_SSL", "true") == "true",

		JWTSecret: os.Getenv("JWT_SECRET"),

		AdminEmail:    os.Getenv("ADMIN_EMAIL"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),

		RazorpayKeyID:     os.Getenv("RAZORPAY_KEY_ID"),
		RazorpayKeySecret: os.Getenv("RAZORPAY_KEY_SECRET"),
		StripeSecretKey:   os.Getenv("STRIPE_SECRET_KEY"),
		Currency:          getEnvWithDefault("CURRENCY", "INR"),
		ClientOrigin:      getEnvWithDefault("CLIENT_ORIGIN", "http://localhost:3000"),
	}

	if config.MongoDBURL == "" {
		return nil, fmt.Errorf("MONGODB_URL environment variable is required")
	}
	if config.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}
	if config.AdminEmail == "" || config.AdminPassword == "" {
		return nil, fmt.Errorf("ADMIN_EMAIL and ADMIN_PASSWORD environment variables are required")
	}

	return config, nil
}

// IsDevelopment returns whether the current environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns whether the current environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
