package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DB_DRIVER", "")
	t.Setenv("CONFIRM_DELAY", "")
	t.Setenv("SERVER_PORT", "")
	t.Setenv("CORS_ORIGINS", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "mysql", cfg.DBDriver)
	assert.Equal(t, 15*time.Second, cfg.ConfirmDelay)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, ":8080", cfg.ServerPort)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("CONFIRM_DELAY", "soon")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("CONFIRM_DELAY", "")
	t.Setenv("DB_DRIVER", "oracle")
	_, err = Load()
	require.Error(t, err)
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := Load()
	require.Error(t, err)
}

func TestDSN(t *testing.T) {
	cfg := &Config{DBDriver: "mysql", DBUser: "u", DBPassword: "p", DBHost: "h", DBPort: "3306", DBName: "db"}
	assert.Equal(t, "u:p@tcp(h:3306)/db", cfg.DSN())

	cfg.DBDriver = "postgres"
	assert.Equal(t, "postgres://u:p@h:3306/db?sslmode=disable", cfg.DSN())

	cfg.DBDSN = "explicit"
	assert.Equal(t, "explicit", cfg.DSN())
}

func TestLoadTracing(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DB_DRIVER", "")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4318")
	t.Setenv("OTEL_INSECURE", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "collector:4318", cfg.OTelEndpoint)
	assert.True(t, cfg.OTelInsecure)

	t.Setenv("OTEL_INSECURE", "maybe")
	_, err = Load()
	require.Error(t, err)
}
