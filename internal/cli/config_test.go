package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Twixes/mcpolice/internal/model"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestViper(t *testing.T, configPath string) *viper.Viper {
	t.Helper()
	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	}
	configureViper(v)
	if configPath != "" {
		require.NoError(t, v.ReadInConfig())
	}
	return v
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig(newTestViper(t, ""))
	require.NoError(t, err)

	assert.Equal(t, model.DefaultConfig(), cfg)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9000"
  shutdown_timeout: 3s
store:
  backend: redis
  redis_db: 2
rate_limiting:
  requests_per_second: 0.5
`), 0o600))

	t.Setenv("MCPOLICE_STORE_BACKEND", "postgres")
	t.Setenv("MCPOLICE_PROTOCOL_VERSION", "2025-03-26")

	cfg, err := loadConfig(newTestViper(t, path))
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "postgres", cfg.Store.Backend, "env overrides file")
	assert.Equal(t, 2, cfg.Store.RedisDB)
	assert.Equal(t, 0.5, cfg.RateLimiting.RequestsPerSecond)
	assert.Equal(t, "2025-03-26", cfg.Protocol.Version)
	assert.Equal(t, 10, cfg.RateLimiting.BurstSize, "unset keys keep defaults")
}

func TestLoadConfig_OpenAIKeyFallback(t *testing.T) {
	t.Setenv("MCPOLICE_LLM_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := loadConfig(newTestViper(t, ""))
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(model.LogConfig{Level: "warn", Format: "json"}, &buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"k":"v"`)

	_, err = newLogger(model.LogConfig{Level: "loud"}, io.Discard)
	assert.Error(t, err)
	_, err = newLogger(model.LogConfig{Level: "info", Format: "xml"}, io.Discard)
	assert.Error(t, err)
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, writeDefaultConfig(path))

	// The written file loads back to the defaults
	cfg, err := loadConfig(newTestViper(t, path))
	require.NoError(t, err)
	assert.Equal(t, model.DefaultConfig(), cfg)

	err = writeDefaultConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestShowConfig_MasksSecrets(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.LLM.APIKey = "sk-secret"
	cfg.Store.PostgresDSN = "postgres://user:pw@db/mcpolice"

	var buf bytes.Buffer
	require.NoError(t, showConfig(&buf, cfg))

	out := buf.String()
	assert.NotContains(t, out, "sk-secret")
	assert.NotContains(t, out, "user:pw")
	assert.Contains(t, out, "addr: :8787")
	assert.Equal(t, "sk-secret", cfg.LLM.APIKey, "caller's config is untouched")
}

func testApp(t *testing.T) *app {
	t.Helper()
	cfg := model.DefaultConfig()
	a, err := newApp(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func TestNewApp_UnknownBackend(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Store.Backend = "etcd"

	_, err := newApp(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}

func TestNewApp_StatuteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "statutes.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
statutes:
  - organization: Local Authority
    article: Bylaw 12
    description: Noise after midnight
    severity: low
    jurisdiction: [Springfield]
`), 0o600))

	cfg := model.DefaultConfig()
	cfg.Statutes.File = path
	a, err := newApp(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer a.Close()

	var buf bytes.Buffer
	require.NoError(t, printStatutes(&buf, a.service.Statutes(), false))
	assert.Contains(t, buf.String(), "Bylaw 12")
	assert.Contains(t, buf.String(), "LOW")
}

func TestLoadRegistry_NeedsNoStore(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := model.DefaultConfig()
	cfg.Store.Backend = "postgres"
	cfg.Store.PostgresDSN = "postgres://nobody@127.0.0.1:1/none"

	registry, err := loadRegistry(cfg, logger)
	require.NoError(t, err)
	require.NotZero(t, registry.Len())

	var buf bytes.Buffer
	require.NoError(t, printStatutes(&buf, registry.List(), true))

	var listed []model.StatuteInfo
	require.NoError(t, json.Unmarshal(buf.Bytes(), &listed))
	assert.Equal(t, registry.List(), listed)

	cfg.Statutes.File = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = loadRegistry(cfg, logger)
	assert.Error(t, err)
}

func TestImportFile(t *testing.T) {
	a := testApp(t)

	path := filepath.Join(t.TempDir(), "reports.jsonl")
	lines := []string{
		`# seed data`,
		`{"statute": "GDPR Article 5", "responsible_organization": "Acme", "offending_content": "kept logs forever"}`,
		``,
		`{"statute": "Rome Statute Article 7", "responsible_organization": "Globex", "offending_content": "x", "detected_by": "crawler"}`,
		`{"statute": "Made Up Act", "responsible_organization": "Acme", "offending_content": "x"}`,
	}
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o600))

	var out bytes.Buffer
	err := a.importFile(context.Background(), &out, path, 2, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 reports failed")
	assert.Contains(t, out.String(), "line 5")
	assert.Contains(t, out.String(), "Imported 2 of 3 reports")

	stats, err := a.service.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
}

func TestServerWiring(t *testing.T) {
	a := testApp(t)

	srv, err := a.server(context.Background())
	require.NoError(t, err)
	handler := srv.Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	// The limiter's client count is exported
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "mcpolice_rate_limited_clients 1")

	a.cfg.LLM.Provider = "anthropic"
	_, err = a.server(context.Background())
	assert.Error(t, err)
}

func TestServer_UnreachableLLMStillServes(t *testing.T) {
	llmServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
	}))
	defer llmServer.Close()

	var logs bytes.Buffer
	cfg := model.DefaultConfig()
	cfg.LLM.Provider = "openai"
	cfg.LLM.APIKey = "sk-wrong"
	cfg.LLM.BaseURL = llmServer.URL
	cfg.LLM.Timeout = 5

	a, err := newApp(context.Background(), cfg, slog.New(slog.NewTextHandler(&logs, nil)))
	require.NoError(t, err)
	defer a.Close()

	srv, err := a.server(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, srv)
	assert.Contains(t, logs.String(), "LLM provider is not reachable")
	assert.Contains(t, logs.String(), "provider=openai")
}

func TestPrintDigest_Disabled(t *testing.T) {
	a := testApp(t)

	err := a.printDigest(context.Background(), io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no LLM provider")
}
