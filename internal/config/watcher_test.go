package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherReloadsIncludedSecrets(t *testing.T) {
	dir := t.TempDir()
	secrets := filepath.Join(dir, "secrets.yaml")
	main := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(secrets, []byte("trading:\n  api_key: \"\"\n  secret: \"\"\n"), 0o644))
	require.NoError(t, os.WriteFile(main, []byte("include:\n  - secrets.yaml\ntrading:\n  symbol: BTCUSDT\n"), 0o644))

	w, err := NewWatcher(main)
	require.NoError(t, err)
	defer w.Close()

	var mu sync.Mutex
	var last *Config
	w.Subscribe(func(cfg *Config) {
		mu.Lock()
		last = cfg
		mu.Unlock()
	})

	// 改凭证文件也要触发重载，不只是主文件。
	require.NoError(t, os.WriteFile(secrets, []byte("trading:\n  api_key: k1\n  secret: s1\n"), 0o644))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return last != nil && last.Trading.APIKey == "k1" && last.Trading.Secret == "s1"
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, "BTCUSDT", last.Trading.Symbol, "main file sections still merge in")
	mu.Unlock()
}

func TestWatcherKeepsConfigOnBrokenEdit(t *testing.T) {
	dir := t.TempDir()
	main := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(main, []byte("trading:\n  symbol: BTCUSDT\n"), 0o644))

	w, err := NewWatcher(main)
	require.NoError(t, err)
	defer w.Close()

	var mu sync.Mutex
	notified := 0
	w.Subscribe(func(*Config) {
		mu.Lock()
		notified++
		mu.Unlock()
	})

	require.NoError(t, os.WriteFile(main, []byte("trading:\n  percent: 150\n"), 0o644))

	// 坏改动不推送，订阅者看不到它。
	time.Sleep(300 * time.Millisecond)
	mu.Lock()
	assert.Zero(t, notified)
	mu.Unlock()
}

func TestWatcherRequiresLoadableConfig(t *testing.T) {
	_, err := NewWatcher(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = NewWatcher(" ")
	assert.Error(t, err)
}
