package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

type Config struct {
	HTTPPort    string
	LogLevel    string
	DatabaseURL string
	JWTSecret   string

	TMDBAPIKey   string
	GeminiAPIKey string

	DatasetPath    string
	DefaultCountry string

	// BaseURL is the externally reachable address used to build
	// verification and password-reset links.
	BaseURL string

	MailHost     string
	MailPort     int
	MailUsername string
	MailPassword string
	MailFrom     string
	MailFromName string
}

var AppConfig Config

func LoadConfig() {
	err := godotenv.Load() // Load .env file if it exists
	if err != nil {
		log.Info("No .env file found, relying on environment variables")
	}

	AppConfig = Config{
		HTTPPort:       getEnv("HTTP_PORT", "8080"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		DatabaseURL:    getEnv("DATABASE_URL", "reelpick.db"),
		JWTSecret:      getEnv("JWT_SECRET", ""),
		TMDBAPIKey:     getEnv("TMDB_API_KEY", ""),
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		DatasetPath:    getEnv("DATA_PATH", "data/movies_with_features.csv"),
		DefaultCountry: getEnv("DEFAULT_COUNTRY", "US"),
		BaseURL:        getEnv("BASE_URL", "http://localhost:8080"),
		MailHost:       getEnv("MAIL_SERVER", "smtp.gmail.com"),
		MailPort:       getEnvAsInt("MAIL_PORT", 587),
		MailUsername:   getEnv("MAIL_USERNAME", ""),
		MailPassword:   getEnv("MAIL_PASSWORD", ""),
		MailFrom:       getEnv("MAIL_DEFAULT_SENDER", "noreply@reelpick.app"),
		MailFromName:   getEnv("MAIL_DEFAULT_SENDER_NAME", "ReelPick"),
	}

	if AppConfig.JWTSecret == "" {
		log.Fatal("JWT_SECRET environment variable is required")
	}

	if AppConfig.TMDBAPIKey == "" {
		log.Fatal("TMDB_API_KEY environment variable is required")
	}
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}
