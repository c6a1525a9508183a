package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fariaslabs/sgfsync/types"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
api_base_url: https://gateway.example.com/sgfpod1
auth_token: secret
data_dir: `+dir+`
historical_start: "2023-01-01"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.ChunkDays)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout())
	assert.Equal(t, Intervals{Sales: 10, Purchases: 15, Products: 15, Stock: 10, Sellers: 180, Suppliers: 20}, cfg.Intervals)
	assert.Equal(t, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), cfg.HistoricalStartTime())
	assert.Equal(t, filepath.Join(dir, "sgf_mirror.sqlite"), cfg.StorePath())
}

func TestLoadKeepsExplicitIntervals(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
api_base_url: https://gateway.example.com/sgfpod1
auth_token: secret
data_dir: `+dir+`
historical_start: "2023-01-01"
backfill_chunk_days: 5
intervals:
  sales: 30
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.ChunkDays)
	assert.Equal(t, 30, cfg.Intervals.Sales)
	assert.Equal(t, 15, cfg.Intervals.Purchases)
}

func TestValidateRejectsBadInput(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing url", Config{AuthToken: "t", DataDir: dir, HistoricalStart: "2023-01-01"}},
		{"invalid url", Config{APIBaseURL: "not a url", AuthToken: "t", DataDir: dir, HistoricalStart: "2023-01-01"}},
		{"missing token", Config{APIBaseURL: "https://x.test", DataDir: dir, HistoricalStart: "2023-01-01"}},
		{"bad date", Config{APIBaseURL: "https://x.test", AuthToken: "t", DataDir: dir, HistoricalStart: "01/01/2023"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Error(t, tc.cfg.Validate())
		})
	}
}

func TestStreamsAreStatic(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		APIBaseURL:      "https://gateway.example.com/sgfpod1",
		AuthToken:       "secret",
		DataDir:         dir,
		HistoricalStart: "2023-01-01",
	}
	require.NoError(t, cfg.Validate())

	streams := cfg.Streams()
	require.Len(t, streams, 6)

	byEntity := map[types.Entity]types.Stream{}
	for _, stream := range streams {
		byEntity[stream.Entity] = stream
	}
	assert.Equal(t, types.FULLSNAPSHOT, byEntity[types.Sellers].Mode)
	assert.Equal(t, 10, byEntity[types.Sales].ChunkDays)
	assert.Equal(t, 10, byEntity[types.Purchases].ChunkDays)
	assert.Zero(t, byEntity[types.Products].ChunkDays)
	assert.Equal(t, 10*time.Minute, byEntity[types.Sales].Interval)
	assert.Equal(t, 3*time.Hour, byEntity[types.Sellers].Interval)
}

func TestSyncIDIsStable(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{APIBaseURL: "https://x.test", AuthToken: "a", DataDir: dir, HistoricalStart: "2023-01-01"}
	other := Config{APIBaseURL: "https://x.test", AuthToken: "b", DataDir: dir, HistoricalStart: "2024-06-01"}

	// the identity tracks the gateway and data dir, not the secret
	assert.Equal(t, cfg.SyncID(), other.SyncID())
}
