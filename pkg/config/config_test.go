package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/soudis/soliloan/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "soliloan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, time.Hour, cfg.Server.RefreshInterval)
	assert.Equal(t, "soliloan.db", cfg.Database.Path)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	method, err := cfg.DefaultInterestMethod()
	require.NoError(t, err)
	assert.Nil(t, method)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9090"
  refresh_interval: 5m
database:
  path: /var/lib/soliloan/ledger.db
logging:
  level: debug
  format: console
interest:
  default_method: ACT/365_no_compound
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 5*time.Minute, cfg.Server.RefreshInterval)
	assert.Equal(t, "/var/lib/soliloan/ledger.db", cfg.Database.Path)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)

	method, err := cfg.DefaultInterestMethod()
	require.NoError(t, err)
	require.NotNil(t, method)
	assert.Equal(t, models.InterestMethod{Basis: models.BasisAct365, Compounding: models.NoCompound}, *method)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "server:\n  addr: \":9090\"\n")
	t.Setenv("SOLILOAN_SERVER_ADDR", ":7070")
	t.Setenv("SOLILOAN_INTEREST_DEFAULT_METHOD", "30E/360_compound")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Addr)
	method, err := cfg.DefaultInterestMethod()
	require.NoError(t, err)
	assert.True(t, method.IsCompound())
	assert.Equal(t, models.BasisEuro360, method.Basis)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad log level", "logging:\n  level: verbose\n"},
		{"bad log format", "logging:\n  format: xml\n"},
		{"bad interest method", "interest:\n  default_method: daily\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
