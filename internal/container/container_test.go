package container

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"treblereport/domain/dataset"
	"treblereport/internal"
	"treblereport/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		LogLevel: "DEBUG",
		Report:   config.ReportConfig{Locale: "es-CO", DefaultParseMode: dataset.ModeDayFirst, UniqueKeyColumn: "Celular"},
		Session:  config.SessionConfig{TTL: time.Hour, CleanupInterval: 5 * time.Millisecond},
	}
}

func TestNew(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)

	level := internal.DefaultLogger.GetLevel()
	defer internal.DefaultLogger.SetLevel(level)

	component := internal.DefaultLogger.With("Report")
	c, err := New(testConfig())
	require.NoError(t, err)
	assert.Equal(t, internal.LogLevelDebug, c.Logger.GetLevel())
	assert.Equal(t, internal.LogLevelDebug, component.GetLevel(), "loggers created before New follow LOG_LEVEL")
	assert.NotNil(t, c.Sessions)
	assert.NotNil(t, c.Cache)

	d := c.ReportDefaults()
	assert.Equal(t, dataset.ModeDayFirst, d.ParseMode)
	assert.Equal(t, "Celular", d.UniqueKeyColumn)
}

func TestCleanupStopsOnShutdown(t *testing.T) {
	cfg := testConfig()
	cfg.Session.TTL = time.Nanosecond
	c, err := New(cfg)
	require.NoError(t, err)

	ctx := context.Background()
	sess, err := c.Sessions.Create(ctx, "a.csv", "k", &dataset.Table{})
	require.NoError(t, err)

	c.StartCleanup(ctx)
	assert.Eventually(t, func() bool {
		list, _ := c.Sessions.List(ctx)
		return len(list) == 0
	}, time.Second, 5*time.Millisecond)

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, c.Shutdown(shutdownCtx))

	_, err = c.Sessions.Get(ctx, sess.ID)
	assert.Error(t, err)
}
