package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerAddr     string
	MongoURI       string
	SigningKey     []byte
	AllowedOrigins []string
	Environment    string
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(base64Secret)
}

func NewConfig(serverAddr, mongoURI, base64Secret string, allowedOrigins []string) (*Config, error) {
	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if mongoURI == "" {
		return nil, fmt.Errorf("mongo URI cannot be empty")
	}
	if base64Secret == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}

	signingKey, err := decodeSigningSecret(base64Secret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}

	return &Config{
		ServerAddr:     serverAddr,
		MongoURI:       mongoURI,
		SigningKey:     signingKey,
		AllowedOrigins: allowedOrigins,
		Environment:    getEnv("ENVIRONMENT", "development"),
	}, nil
}

// FromEnv builds a Config from environment variables, loading a .env file
// first when one is present. Flag values take precedence over the
// environment, so empty strings fall back to the corresponding variable.
func FromEnv(serverAddr, mongoURI, base64Secret string, allowedOrigins []string) (*Config, error) {
	_ = godotenv.Load()

	if serverAddr == "" {
		serverAddr = getEnv("HEALTHSYNC_ADDR", "localhost:8000")
	}
	if mongoURI == "" {
		mongoURI = getEnv("HEALTHSYNC_MONGO_URI", "mongodb://localhost:27017/healthsync")
	}
	if base64Secret == "" {
		base64Secret = os.Getenv("HEALTHSYNC_SIGNING_KEY")
	}
	if len(allowedOrigins) == 0 {
		if origins := os.Getenv("HEALTHSYNC_ALLOWED_ORIGINS"); origins != "" {
			for _, o := range strings.Split(origins, ",") {
				allowedOrigins = append(allowedOrigins, strings.TrimSpace(o))
			}
		}
	}

	return NewConfig(serverAddr, mongoURI, base64Secret, allowedOrigins)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
