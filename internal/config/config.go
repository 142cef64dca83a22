package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds runtime configuration values.
type Config struct {
	Port string

	BannerbearAPIKey string
	BannerbearURL    string

	GeminiAPIKey    string
	GeminiModel     string
	GeminiMapsModel string

	Reso ResoConfig

	DatabaseURL string

	Media  MediaConfig
	Vision VisionConfig

	APIKeyHash string
}

// ResoConfig describes how to reach the RESO listings service.
type ResoConfig struct {
	Endpoint     string
	APIKey       string
	TokenURL     string
	ClientID     string
	ClientSecret string
}

// MediaConfig describes S3 or freeimage hosting configuration.
type MediaConfig struct {
	Bucket          string
	Region          string
	Endpoint        string
	PublicURL       string
	KeyPrefix       string
	AccessKey       string
	SecretKey       string
	ForcePathStyle  bool
	FreeImageAPIKey string
}

// VisionConfig describes the optional Imagen photo retoucher.
type VisionConfig struct {
	ProjectID string
	Location  string
	Model     string
	APIKey    string
}

// FromEnv loads configuration from the environment, reading a .env file first
// when present, and applies defaults. Missing required credentials are fatal;
// there is no degraded mode without template or oracle access.
func FromEnv() Config {
	_ = godotenv.Load()

	cfg := Config{
		Port:             getenv("APP_PORT", "8080"),
		BannerbearAPIKey: os.Getenv("BANNERBEAR_API_KEY"),
		BannerbearURL:    os.Getenv("BANNERBEAR_API_URL"),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		GeminiModel:      os.Getenv("GEMINI_MODEL"),
		GeminiMapsModel:  os.Getenv("GEMINI_MAPPING_MODEL"),
		Reso: ResoConfig{
			Endpoint:     os.Getenv("RESO_API_ENDPOINT"),
			APIKey:       os.Getenv("RESO_API_KEY"),
			TokenURL:     os.Getenv("RESO_TOKEN_URL"),
			ClientID:     os.Getenv("RESO_CLIENT_ID"),
			ClientSecret: os.Getenv("RESO_CLIENT_SECRET"),
		},
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Media: MediaConfig{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          os.Getenv("S3_REGION"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			PublicURL:       os.Getenv("S3_PUBLIC_URL"),
			KeyPrefix:       strings.Trim(os.Getenv("S3_KEY_PREFIX"), "/"),
			AccessKey:       os.Getenv("S3_ACCESS_KEY"),
			SecretKey:       os.Getenv("S3_SECRET_KEY"),
			ForcePathStyle:  getenvBool("S3_FORCE_PATH_STYLE", false),
			FreeImageAPIKey: os.Getenv("FREEIMAGE_API_KEY"),
		},
		Vision: VisionConfig{
			ProjectID: os.Getenv("VERTEX_PROJECT_ID"),
			Location:  os.Getenv("VERTEX_LOCATION"),
			Model:     os.Getenv("VERTEX_IMAGEN_MODEL"),
			APIKey:    os.Getenv("VERTEX_API_KEY"),
		},
		APIKeyHash: os.Getenv("API_ACCESS_KEY_HASH"),
	}

	if cfg.BannerbearAPIKey == "" {
		log.Fatal("BANNERBEAR_API_KEY is required")
	}
	if cfg.GeminiAPIKey == "" {
		log.Fatal("GEMINI_API_KEY is required")
	}

	return cfg
}

func getenv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return fallback
}

func getenvBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}

	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}

	return parsed
}
