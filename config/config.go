package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Config struct {
	Port     string
	Env      string
	LogLevel string

	MongoURI    string
	DBName      string
	MongoClient *mongo.Client

	SessionSecret string
	SessionTTL    time.Duration

	FrontendURL string
	HostURL     string
	CORSOrigins []string

	GoogleClientID     string
	GoogleClientSecret string

	OpenCageAPIKey  string
	OpenCageBaseURL string

	GoogleMapsAPIKey  string
	GoogleMapsBaseURL string

	ProviderTimeout  time.Duration
	GeocodeCacheSize int

	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
}

// Load reads the optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env file not found, using environment variables")
	}

	cfg := &Config{
		Port:     getEnv("PORT", "5050"),
		Env:      getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		MongoURI: getEnv("MONGODB_URI", ""),
		DBName:   getEnv("MONGODB_DB", "event_finder"),

		SessionSecret: getEnv("SESSION_SECRET", ""),
		SessionTTL:    getEnvAsDuration("SESSION_TTL", 24*time.Hour),

		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),
		HostURL:     getEnv("HOST_URL", "http://localhost:5050"),
		CORSOrigins: getEnvAsList("CORS_ORIGINS", []string{"http://localhost:5173"}),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),

		OpenCageAPIKey:  getEnv("OPENCAGE_API_KEY", ""),
		OpenCageBaseURL: getEnv("OPENCAGE_BASE_URL", "https://api.opencagedata.com"),

		GoogleMapsAPIKey:  getEnv("GOOGLE_MAPS_API_KEY", ""),
		GoogleMapsBaseURL: getEnv("GOOGLE_MAPS_BASE_URL", "https://maps.googleapis.com"),

		ProviderTimeout:  getEnvAsDuration("PROVIDER_TIMEOUT", 5*time.Second),
		GeocodeCacheSize: getEnvAsInt("GEOCODE_CACHE_SIZE", 512),

		CloudinaryCloudName: getEnv("CLOUDINARY_CLOUD_NAME", ""),
		CloudinaryAPIKey:    getEnv("CLOUDINARY_API_KEY", ""),
		CloudinaryAPISecret: getEnv("CLOUDINARY_API_SECRET", ""),
	}

	if cfg.MongoURI == "" {
		return nil, errors.New("MONGODB_URI is not set")
	}
	if cfg.SessionSecret == "" {
		if cfg.IsProduction() {
			return nil, errors.New("SESSION_SECRET is not set")
		}
		cfg.SessionSecret = "dev-session-secret"
	}

	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// LogFields is the non-secret subset of the configuration, for the startup log line.
func (c *Config) LogFields() []zap.Field {
	return []zap.Field{
		zap.String("environment", c.Env),
		zap.String("port", c.Port),
		zap.String("db_name", c.DBName),
		zap.String("frontend_url", c.FrontendURL),
		zap.Strings("cors_origins", c.CORSOrigins),
		zap.Bool("geocoder_configured", c.OpenCageAPIKey != ""),
		zap.Bool("routing_configured", c.GoogleMapsAPIKey != ""),
		zap.Bool("oauth_configured", c.GoogleClientID != "" && c.GoogleClientSecret != ""),
		zap.Duration("provider_timeout", c.ProviderTimeout),
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
