package configs

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()

	for _, key := range []string{
		"ENVIRONMENT", "PORT", "POW_DIFFICULTY", "ALLOWED_ORIGINS", "JWT_SECRET",
		"STORE_DRIVER", "DATABASE_URL", "S3_BUCKET_NAME", "S3_ENDPOINT",
		"S3_ACCESS_KEY_ID", "S3_SECRET_ACCESS_KEY", "S3_PUBLIC_BASE_URL",
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoadConfig_DevelopmentDefaults(t *testing.T) {
	req := require.New(t)
	clearEnv(t)

	cfg, err := LoadConfig()

	req.NoError(err)
	req.True(cfg.IsDevelopment())
	req.Equal(8080, cfg.Port)
	req.Equal(4, cfg.PowDifficulty)
	req.Equal(StorePostgres, cfg.StoreDriver)
	req.NotEmpty(cfg.JWTSecret)
	req.NotEmpty(cfg.DatabaseDSN)
	req.False(cfg.StorageEnabled())
}

func TestLoadConfig_ProductionRequiresSecrets(t *testing.T) {
	req := require.New(t)
	clearEnv(t)
	t.Setenv("ENVIRONMENT", "production")

	_, err := LoadConfig()
	req.ErrorContains(err, "JWT_SECRET")

	t.Setenv("JWT_SECRET", "s3cret")
	_, err = LoadConfig()
	req.ErrorContains(err, "DATABASE_URL")

	t.Setenv("STORE_DRIVER", "memory")
	cfg, err := LoadConfig()
	req.NoError(err)
	req.Equal(StoreMemory, cfg.StoreDriver)
}

func TestLoadConfig_ParsesValues(t *testing.T) {
	req := require.New(t)
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("POW_DIFFICULTY", "0")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com,")
	t.Setenv("S3_BUCKET_NAME", "avatars")
	t.Setenv("S3_ENDPOINT", "https://s3.example.com/")
	t.Setenv("S3_ACCESS_KEY_ID", "id")
	t.Setenv("S3_SECRET_ACCESS_KEY", "key")

	cfg, err := LoadConfig()

	req.NoError(err)
	req.Equal(9090, cfg.Port)
	req.Equal(0, cfg.PowDifficulty)
	req.Equal([]string{"https://a.example.com", "https://b.example.com"}, cfg.AllowedOrigins)
	req.True(cfg.StorageEnabled())
	req.Equal("https://s3.example.com/avatars", cfg.S3PublicBaseURL)
}

func TestLoadConfig_Rejects(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
		want string
	}{
		{name: "privileged port", key: "PORT", val: "80", want: "port number"},
		{name: "non-numeric port", key: "PORT", val: "http", want: "invalid environment"},
		{name: "difficulty too high", key: "POW_DIFFICULTY", val: "12", want: "POW_DIFFICULTY"},
		{name: "unknown driver", key: "STORE_DRIVER", val: "mongo", want: "STORE_DRIVER"},
		{name: "bucket without credentials", key: "S3_BUCKET_NAME", val: "avatars", want: "S3_ENDPOINT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.val)

			_, err := LoadConfig()

			require.ErrorContains(t, err, tt.want)
		})
	}
}
