package main

import (
	"bytes"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/devnovikov/algoroom/internal/apiserver"
	"github.com/devnovikov/algoroom/internal/apiserver/database"
	"github.com/devnovikov/algoroom/internal/common/config"
	"github.com/devnovikov/algoroom/internal/hub"
	"github.com/devnovikov/algoroom/internal/protocol"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func joinFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	f := pflag.NewFlagSet("join", pflag.ContinueOnError)
	addJoinFlags(f)
	require.NoError(t, f.Parse(args))
	return f
}

func TestVersionCommand(t *testing.T) {
	out := &bytes.Buffer{}
	rootCmd.SetOut(out)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() { rootCmd.SetArgs(nil); rootCmd.SetOut(nil) })

	require.NoError(t, rootCmd.Execute())
	assert.True(t, strings.HasPrefix(out.String(), "algoroom "))
}

func TestLoadClientConfigDefaults(t *testing.T) {
	cfg, err := loadClientConfig(joinFlags(t), "")
	require.NoError(t, err)
	assert.Equal(t, config.DefaultClientConfig(), *cfg)
}

func TestLoadClientConfigPrecedence(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "client.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
server_url: http://from-file:1
debounce: 250ms
reconnect:
  max_attempts: 9
`), 0o644))

	t.Setenv("ALGOROOM_SERVER_URL", "http://from-env:2")
	t.Setenv("ALGOROOM_REQUEST_TIMEOUT", "3s")

	cfg, err := loadClientConfig(joinFlags(t, "--max-attempts=2"), file)
	require.NoError(t, err)

	assert.Equal(t, "http://from-env:2", cfg.ServerURL)
	assert.Equal(t, 250*time.Millisecond, cfg.Debounce)
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 2, cfg.Reconnect.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Reconnect.BaseDelay)
}

func TestLoadClientConfigMissingFile(t *testing.T) {
	_, err := loadClientConfig(joinFlags(t), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadServerConfigFallsBackToDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, path, err := loadServerConfig("")
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Equal(t, 8000, cfg.Port)

	_, _, err = loadServerConfig("missing.yaml")
	assert.Error(t, err)
}

func TestJoin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.ServerConfig{}
	cfg.SetDefaults()
	store := database.NewMemory()
	h := hub.New(zap.NewNop(), store)
	srv := httptest.NewServer(apiserver.NewServer(zap.NewNop(), cfg, store, h, nil).Handler())
	t.Cleanup(srv.Close)

	clientCfg := config.DefaultClientConfig()
	clientCfg.ServerURL = srv.URL
	clientCfg.RequestTimeout = time.Second

	in := strings.NewReader(":lang python\n:lang cobol\n:nope\n:quit\nignored\n")
	out := &syncBuffer{}
	require.NoError(t, join(t.Context(), &clientCfg, "room-7", in, out, zap.NewNop()))

	sess, err := store.Get(t.Context(), "room-7")
	require.NoError(t, err)
	assert.Equal(t, protocol.LanguagePython, sess.Language)
	assert.Equal(t, protocol.DefaultSnippet(protocol.LanguagePython), sess.Code)

	text := out.String()
	assert.Contains(t, text, "# room-7 [javascript]")
	assert.Contains(t, text, "invalid language")
	assert.Contains(t, text, `unknown command ":nope"`)

	assert.Eventually(t, func() bool { return h.Participants("room-7") == 0 }, 3*time.Second, 10*time.Millisecond)
}
