package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"treblereport/domain/dataset"
	"treblereport/internal/errors"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "GIN_MODE", "LOG_LEVEL", "MAX_UPLOAD_MB", "REPORT_LOCALE",
		"DEFAULT_PARSE_MODE", "DEFAULT_ENCODING", "UNIQUE_KEY_COLUMN", "SESSION_TTL", "FIX_MOJIBAKE"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.GinMode)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, int64(50<<20), cfg.Upload.MaxBytes())
	assert.Equal(t, "utf-8", cfg.Upload.DefaultEncoding)
	assert.True(t, cfg.Upload.FixMojibake)
	assert.Equal(t, "es-CO", cfg.Report.Locale)
	assert.Equal(t, dataset.ModeAutoInfer, cfg.Report.DefaultParseMode)
	assert.Equal(t, "Celular", cfg.Report.UniqueKeyColumn)
	assert.Equal(t, 2*time.Hour, cfg.Session.TTL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DEFAULT_PARSE_MODE", "DayFirst")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("FIX_MOJIBAKE", "false")
	t.Setenv("REPORT_LOCALE", "en-US")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.Equal(t, dataset.ModeDayFirst, cfg.Report.DefaultParseMode)
	assert.Equal(t, 30*time.Minute, cfg.Session.TTL)
	assert.False(t, cfg.Upload.FixMojibake)
	assert.Equal(t, "en-US", cfg.Report.Locale)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"PORT", "http"},
		{"DEFAULT_PARSE_MODE", "guess"},
		{"DEFAULT_PARSE_MODE", "regex"},
		{"LOG_LEVEL", "LOUD"},
		{"REPORT_LOCALE", "not a locale!"},
		{"MAX_UPLOAD_MB", "-1"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
		})
	}
}
