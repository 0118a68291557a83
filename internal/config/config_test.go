package config

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	secret := base64.StdEncoding.EncodeToString([]byte("super-secret"))

	t.Run("valid", func(t *testing.T) {
		cfg, err := NewConfig("localhost:8000", "mongodb://localhost:27017/healthsync", secret,
			[]string{"http://localhost:3000"})
		require.NoError(t, err, "expected config to be created")

		assert.Equal(t, "localhost:8000", cfg.ServerAddr, "expected server address to be set")
		assert.Equal(t, "mongodb://localhost:27017/healthsync", cfg.MongoURI, "expected mongo URI to be set")
		assert.Equal(t, []byte("super-secret"), cfg.SigningKey, "expected signing key to be decoded")
		assert.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins, "expected origins to be set")
	})

	tcases := []struct {
		name       string
		serverAddr string
		mongoURI   string
		secret     string
	}{
		{"missing server address", "", "mongodb://localhost:27017/healthsync", secret},
		{"missing mongo URI", "localhost:8000", "", secret},
		{"missing signing secret", "localhost:8000", "mongodb://localhost:27017/healthsync", ""},
		{"invalid base64 secret", "localhost:8000", "mongodb://localhost:27017/healthsync", "not base64!!"},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewConfig(tc.serverAddr, tc.mongoURI, tc.secret, nil)
			assert.Error(t, err, "expected config creation to fail")
		})
	}
}

func TestFromEnv(t *testing.T) {
	secret := base64.StdEncoding.EncodeToString([]byte("super-secret"))

	t.Run("flags take precedence", func(t *testing.T) {
		t.Setenv("HEALTHSYNC_ADDR", "envhost:9999")

		cfg, err := FromEnv("flaghost:8000", "mongodb://localhost:27017/healthsync", secret, nil)
		require.NoError(t, err, "expected config to be created")
		assert.Equal(t, "flaghost:8000", cfg.ServerAddr, "expected flag value to win")
	})

	t.Run("falls back to environment", func(t *testing.T) {
		t.Setenv("HEALTHSYNC_ADDR", "envhost:9999")
		t.Setenv("HEALTHSYNC_SIGNING_KEY", secret)
		t.Setenv("HEALTHSYNC_ALLOWED_ORIGINS", "http://a.example, http://b.example")

		cfg, err := FromEnv("", "", "", nil)
		require.NoError(t, err, "expected config to be created")
		assert.Equal(t, "envhost:9999", cfg.ServerAddr, "expected address from environment")
		assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.AllowedOrigins,
			"expected origins split and trimmed")
	})
}
