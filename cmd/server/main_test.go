package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkshift/redirector/internal/app"
	"github.com/linkshift/redirector/internal/config"
	"github.com/linkshift/redirector/internal/domain"
)

func testConfig(dataDir string) *config.Config {
	cfg := &config.Config{}
	cfg.Server.Port = 8080
	cfg.Server.ReadTimeout = 5 * time.Second
	cfg.Server.WriteTimeout = 5 * time.Second
	cfg.Server.BodyLimit = 1048576
	cfg.Storage.DataDir = dataDir
	cfg.Storage.RulesFile = "rules.json"
	cfg.Storage.TrackingFile = "tracking.json"
	cfg.Storage.SettingsFile = "settings.json"
	cfg.Storage.LargeFileThreshold = 10485760
	cfg.Cache.ReprocessBatchSize = 1000
	cfg.Cache.DecisionCacheSize = 10000
	cfg.Security.RateLimitRPS = 100
	cfg.Security.RateLimitBurst = 200
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"
	return cfg
}

func TestRulePersistenceAcrossRestart(t *testing.T) {
	cfg := testConfig(t.TempDir())
	ctx := context.Background()

	first, err := app.Build(ctx, cfg)
	require.NoError(t, err)

	_, err = first.Rules.Create(ctx, domain.RuleInput{Matcher: "https://example1.com/*", TargetURL: "/one", RedirectType: domain.RedirectWildcard}, false)
	require.NoError(t, err)
	_, err = first.Rules.Create(ctx, domain.RuleInput{Matcher: "/two", TargetURL: "/2"}, false)
	require.NoError(t, err)

	caseSensitive := true
	_, err = first.SettingsStore.Update(ctx, domain.SettingsPatch{CaseSensitiveQuery: &caseSensitive}, false)
	require.NoError(t, err)

	second, err := app.Build(ctx, cfg)
	require.NoError(t, err)

	rules, err := second.Rules.Rules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "https://example1.com/*", rules[0].Matcher)
	assert.Equal(t, "/two", rules[1].Matcher)

	// the snapshot is built for the persisted matching configuration
	assert.Equal(t, uint64(2), second.Rules.Current().Config.Version)
	assert.True(t, second.Rules.Current().Config.CaseSensitiveQuery)
}

func TestShutdownDeadline(t *testing.T) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	deadline, ok := shutdownCtx.Deadline()
	assert.True(t, ok)
	assert.True(t, time.Until(deadline) > 25*time.Second)
	assert.True(t, time.Until(deadline) <= 30*time.Second)

	// writes acknowledged before the deadline are already durable
	c, err := app.Build(shutdownCtx, testConfig(t.TempDir()))
	require.NoError(t, err)
	_, err = c.Rules.Create(shutdownCtx, domain.RuleInput{Matcher: "/a", TargetURL: "/b"}, false)
	require.NoError(t, err)

	rules, err := c.RuleStore.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, rules, 1)
}

func TestSetupLogger(t *testing.T) {
	original := zerolog.GlobalLevel()
	defer zerolog.SetGlobalLevel(original)

	tests := map[string]zerolog.Level{
		"debug": zerolog.DebugLevel,
		"warn":  zerolog.WarnLevel,
		"error": zerolog.ErrorLevel,
		"info":  zerolog.InfoLevel,
		"":      zerolog.InfoLevel,
	}
	for level, want := range tests {
		setupLogger(level, "json")
		assert.Equal(t, want, zerolog.GlobalLevel(), "level %q", level)
	}
}

func TestStartupLogging(t *testing.T) {
	var logBuffer bytes.Buffer

	originalLogger := log.Logger
	defer func() {
		log.Logger = originalLogger
	}()

	log.Logger = zerolog.New(&logBuffer).With().Timestamp().Logger()

	cfg := testConfig("./data")
	cfg.Security.CORSOrigins = []string{"https://example.com", "https://test.com"}

	logStartupConfig(cfg)

	logOutput := logBuffer.String()
	assert.NotEmpty(t, logOutput)

	var logEntry map[string]interface{}
	err := json.Unmarshal([]byte(strings.TrimSpace(logOutput)), &logEntry)
	require.NoError(t, err)

	assert.Equal(t, "info", logEntry["level"])
	assert.Equal(t, "Configuration loaded successfully", logEntry["message"])

	assert.Equal(t, float64(8080), logEntry["server_port"])
	assert.Equal(t, float64(5000), logEntry["server_read_timeout"])
	assert.Equal(t, float64(5000), logEntry["server_write_timeout"])
	assert.Equal(t, float64(1048576), logEntry["server_body_limit"])
	assert.Equal(t, "./data", logEntry["storage_data_dir"])
	assert.Equal(t, "data/rules.json", logEntry["storage_rules_file"])
	assert.Equal(t, float64(1000), logEntry["cache_reprocess_batch_size"])
	assert.Equal(t, float64(10000), logEntry["cache_decision_size"])
	assert.Equal(t, float64(100), logEntry["security_rate_limit_rps"])
	assert.Equal(t, "info", logEntry["logging_level"])
	assert.Equal(t, "json", logEntry["logging_format"])

	corsOrigins, ok := logEntry["security_cors_origins"].([]interface{})
	require.True(t, ok)
	assert.Len(t, corsOrigins, 2)
	assert.Contains(t, corsOrigins, "https://example.com")
	assert.Contains(t, corsOrigins, "https://test.com")

	assert.NotNil(t, logEntry["time"])
}

func TestStartupLoggingWithEmptyCORSOrigins(t *testing.T) {
	var logBuffer bytes.Buffer

	originalLogger := log.Logger
	defer func() {
		log.Logger = originalLogger
	}()

	log.Logger = zerolog.New(&logBuffer).With().Timestamp().Logger()

	cfg := testConfig("/tmp/data")
	cfg.Server.Port = 3000
	cfg.Server.ReadTimeout = 10 * time.Second
	cfg.Storage.RulesFile = "/srv/rules.json"
	cfg.Security.CORSOrigins = []string{}
	cfg.Logging.Level = "debug"
	cfg.Logging.Format = "text"

	logStartupConfig(cfg)

	var logEntry map[string]interface{}
	err := json.Unmarshal([]byte(strings.TrimSpace(logBuffer.String())), &logEntry)
	require.NoError(t, err)

	assert.Equal(t, float64(3000), logEntry["server_port"])
	assert.Equal(t, float64(10000), logEntry["server_read_timeout"])
	assert.Equal(t, "/srv/rules.json", logEntry["storage_rules_file"])
	assert.Equal(t, "/tmp/data/tracking.json", logEntry["storage_tracking_file"])
	assert.Equal(t, "debug", logEntry["logging_level"])
	assert.Equal(t, "text", logEntry["logging_format"])

	corsOrigins, ok := logEntry["security_cors_origins"].([]interface{})
	require.True(t, ok)
	assert.Len(t, corsOrigins, 0)
}
