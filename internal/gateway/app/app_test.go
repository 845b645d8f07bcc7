package app

import (
	"context"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labsite/internal/flagstore"
	"labsite/internal/gateway/config"
	"labsite/internal/media"
	"labsite/internal/popup"
)

func localConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Port:           ":0",
		Env:            "local",
		SimBackendURL:  "http://localhost:8000",
		PopupStatePath: filepath.Join(dir, "flags.json"),
		PopupExpiry:    config.PopupExpiryNever,
		PopupLocation:  time.UTC,
		PublicBaseURL:  "http://localhost:8080",
		SessionTTL:     time.Hour,
		MaxSessions:    4,
	}
}

func TestInitStoresLocalFallbacks(t *testing.T) {
	cfg := localConfig(t)
	stores, err := initStores(context.Background(), cfg)
	require.NoError(t, err)
	defer stores.Close()

	assert.IsType(t, &popup.CachedStore{}, stores.popups)
	assert.IsType(t, &flagstore.FileStore{}, stores.durable)
	assert.IsType(t, &media.MemoryStore{}, stores.media)
	assert.Nil(t, stores.db)
	assert.Nil(t, stores.redis)
}

func TestInitStoresSeedsPopups(t *testing.T) {
	cfg := localConfig(t)
	cfg.PopupSeedPath = filepath.Join(t.TempDir(), "popups.json")
	seed := `[{"id":1,"title":"Welcome","content":"<p>hi</p>","isActive":true,"styles":{"popupSize":"lg"}},
	          {"id":2,"title":"Archived","isActive":false}]`
	require.NoError(t, os.WriteFile(cfg.PopupSeedPath, []byte(seed), 0o644))

	stores, err := initStores(context.Background(), cfg)
	require.NoError(t, err)
	defer stores.Close()

	active, err := stores.popups.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Welcome", active[0].Title)
	assert.Equal(t, popup.SizeLarge, active[0].Styles.PopupSize)
}

func TestInitStoresBadSeed(t *testing.T) {
	cfg := localConfig(t)
	cfg.PopupSeedPath = filepath.Join(t.TempDir(), "popups.json")
	require.NoError(t, os.WriteFile(cfg.PopupSeedPath, []byte("{"), 0o644))
	_, err := initStores(context.Background(), cfg)
	assert.Error(t, err)
}

func TestChooseMediaStoreS3(t *testing.T) {
	cfg := localConfig(t)
	cfg.Media = config.MediaConfig{Endpoint: "minio:9000", AccessKey: "a", SecretKey: "b", Bucket: "lab-media"}
	store, err := chooseMediaStore(cfg)
	require.NoError(t, err)
	assert.IsType(t, &media.S3Store{}, store)
}

func TestNewWithConfigRejectsBadBackend(t *testing.T) {
	cfg := localConfig(t)
	cfg.SimBackendURL = "ftp://sim"
	_, err := NewWithConfig(context.Background(), cfg)
	assert.Error(t, err)
}

func TestNewWithConfigShutdown(t *testing.T) {
	a, err := NewWithConfig(context.Background(), localConfig(t))
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, a.Shutdown(ctx))
}

func TestRunStopsOnContextCancel(t *testing.T) {
	cfg := localConfig(t)
	cfg.Port = "127.0.0.1:0"
	cfg.ShutdownTimeout = time.Second
	a, err := NewWithConfig(context.Background(), cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() { result <- a.Run(ctx) }()

	require.Eventually(t, func() bool { return a.Addr() != cfg.Port }, 2*time.Second, 10*time.Millisecond)
	resp, err := http.Get("http://" + a.Addr() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-result:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}

func TestRunReturnsListenError(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	cfg := localConfig(t)
	cfg.Port = busy.Addr().String()
	a, err := NewWithConfig(context.Background(), cfg)
	require.NoError(t, err)

	err = a.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen")
}
