package config

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "smartport.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

// ── Defaults and env ─────────────────────────────────────────────────────────

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.HTTPAddr)
	require.Equal(t, "sqlite", cfg.DBDriver)
	require.Equal(t, "ABRIR", cfg.DoorOpenPayload)
	require.Equal(t, "DENEGAR", cfg.DoorDenyPayload)
	require.Equal(t, 60.0, cfg.Policy.MatchThreshold)
	require.Equal(t, 23.0, cfg.Policy.OverweightKg)
	require.Equal(t, 15*time.Second, cfg.ReaderTimeout)
	require.Equal(t, 30, cfg.CameraAttempts)
	require.Empty(t, cfg.File)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SMARTPORT_HTTP_ADDR", ":9090")
	t.Setenv("SMARTPORT_MATCH_THRESHOLD", "72,5")
	t.Setenv("SMARTPORT_READER_TIMEOUT", "3s")
	t.Setenv("SMARTPORT_CAMERA_ATTEMPTS", "notanumber")
	t.Setenv("SMARTPORT_ENV", "staging")

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, ":9090", cfg.HTTPAddr)
	require.Equal(t, 72.5, cfg.Policy.MatchThreshold)
	require.Equal(t, 3*time.Second, cfg.ReaderTimeout)
	require.Equal(t, 30, cfg.CameraAttempts, "bad ints fall back to the default")
	require.Equal(t, "dev", cfg.Env)
}

func TestLoad_PostgresRequiresDSN(t *testing.T) {
	t.Setenv("SMARTPORT_DB_DRIVER", "postgres")

	_, err := Load("")
	require.Error(t, err)
}

// ── TOML layering ────────────────────────────────────────────────────────────

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeFile(t, t.TempDir(), `
[server]
http_addr = ":7000"
grpc_addr = ":7001"

[bus]
broker = "tcp://broker:1883"
open_payload = "OPEN"

[devices]
reader_timeout = "9s"
embedding_dim = 64

[policy]
match_threshold = 65.0
overweight_kg = 2.0

[weights]
retention_days = 0
`)
	t.Setenv("SMARTPORT_GRPC_ADDR", ":9001")

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, path, cfg.File)
	require.Equal(t, ":7000", cfg.HTTPAddr)
	require.Equal(t, ":9001", cfg.GRPCAddr, "env wins over file")
	require.Equal(t, "tcp://broker:1883", cfg.MQTTBroker)
	require.Equal(t, "OPEN", cfg.DoorOpenPayload)
	require.Equal(t, "DENEGAR", cfg.DoorDenyPayload)
	require.Equal(t, 9*time.Second, cfg.ReaderTimeout)
	require.Equal(t, 64, cfg.EmbeddingDim)
	require.Equal(t, 65.0, cfg.Policy.MatchThreshold)
	require.Equal(t, 2.0, cfg.Policy.OverweightKg)
	require.Equal(t, 0, cfg.WeightRetentionDays, "explicit zero disables pruning")
}

func TestLoad_FileRejectsUnknownKeys(t *testing.T) {
	path := writeFile(t, t.TempDir(), `
[policy]
match_treshold = 65.0
`)
	_, err := Load(path)
	require.ErrorContains(t, err, "unknown keys")
}

func TestLoad_FileBadDuration(t *testing.T) {
	path := writeFile(t, t.TempDir(), `
[devices]
camera_delay = "soon"
`)
	_, err := Load(path)
	require.ErrorContains(t, err, "devices.camera_delay")
}

func TestLoad_FileRejectsInvalidPolicy(t *testing.T) {
	path := writeFile(t, t.TempDir(), `
[policy]
match_threshold = 140.0
`)
	_, err := Load(path)
	require.Error(t, err)
}

// ── Live reload ──────────────────────────────────────────────────────────────

func TestWatchPolicy_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "[policy]\nmatch_threshold = 60.0\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan Policy, 4)
	err := WatchPolicy(ctx, path, log.New(io.Discard, "", 0), func(p Policy) { got <- p })
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("[policy]\nmatch_threshold = 80.0\n"), 0o644))

	select {
	case p := <-got:
		require.Equal(t, 80.0, p.MatchThreshold)
	case <-time.After(5 * time.Second):
		t.Fatal("policy was not reloaded")
	}
}

func TestWatchPolicy_IgnoresInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "[policy]\nmatch_threshold = 60.0\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan Policy, 4)
	require.NoError(t, WatchPolicy(ctx, path, log.New(io.Discard, "", 0), func(p Policy) { got <- p }))

	require.NoError(t, os.WriteFile(path, []byte("[policy\nbroken"), 0o644))

	select {
	case p := <-got:
		t.Fatalf("unexpected reload: %+v", p)
	case <-time.After(700 * time.Millisecond):
	}
}

func TestWatchPolicy_EmptyPath(t *testing.T) {
	require.Error(t, WatchPolicy(context.Background(), "", log.New(io.Discard, "", 0), func(Policy) {}))
}
