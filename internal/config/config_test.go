// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/evidence-engine/internal/failure"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

func newViper(t *testing.T, file string) *viper.Viper {
	t.Helper()
	v := viper.New()
	Setup(v, file)
	return v
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "evidence-engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	v := newViper(t, filepath.Join(t.TempDir(), "absent.yaml"))

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "", cfg.Backend.Mode)
	assert.Equal(t, "gpt-4o-mini", cfg.Backend.Model)
	assert.Equal(t, 512, cfg.Backend.MaxTokens)
	assert.Equal(t, 60*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, uint32(5), cfg.Backend.Breaker.ConsecutiveFailures)
	assert.Equal(t, filepath.Join("outputs", "final_report.md"), cfg.Report.Out)
	assert.Equal(t, 10, cfg.Report.TopN)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL)
	assert.Equal(t, filepath.Join("knowledge", "evidence.db"), cfg.Knowledge.DBPath)
}

func TestReadMissingFileIsNotAnError(t *testing.T) {
	v := viper.New()
	v.SetConfigName("does-not-exist")
	v.AddConfigPath(t.TempDir())

	found, err := Read(v)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestReadInvalidYAML(t *testing.T) {
	v := newViper(t, writeConfig(t, "backend: [unclosed\n"))

	_, err := Read(v)
	require.Error(t, err)
	assert.ErrorIs(t, err, failure.ErrConfiguration)
}

func TestLoadFromFile(t *testing.T) {
	v := newViper(t, writeConfig(t, `
log_level: debug
backend:
  mode: local-daemon
  model: llama3
  timeout: 5s
  breaker:
    enabled: true
    open_timeout: 1m
report:
  top_n: 3
  use_llm: true
cache:
  redis_url: redis://localhost:6379/0
`))
	found, err := Read(v)
	require.NoError(t, err)
	require.True(t, found)

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "local-daemon", cfg.Backend.Mode)
	assert.Equal(t, "llama3", cfg.Backend.Model)
	assert.Equal(t, 5*time.Second, cfg.Backend.Timeout)
	assert.True(t, cfg.Backend.Breaker.Enabled)
	assert.Equal(t, time.Minute, cfg.Backend.Breaker.OpenTimeout)
	assert.Equal(t, 3, cfg.Report.TopN)
	assert.True(t, cfg.Report.UseLLM)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Cache.RedisURL)
	// Untouched keys keep their defaults.
	assert.Equal(t, 512, cfg.Backend.MaxTokens)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("EVIDENCE_ENGINE_BACKEND_MODE", "offline")
	t.Setenv("EVIDENCE_ENGINE_BACKEND_TIMEOUT", "90s")
	t.Setenv("EVIDENCE_ENGINE_BACKEND_CREDENTIAL", "sk-env")
	t.Setenv("EVIDENCE_ENGINE_REPORT_TOP_N", "7")

	v := newViper(t, writeConfig(t, "backend:\n  mode: hosted\n"))
	_, err := Read(v)
	require.NoError(t, err)

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "offline", cfg.Backend.Mode, "environment beats the file")
	assert.Equal(t, 90*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, "sk-env", cfg.Backend.Credential)
	assert.Equal(t, 7, cfg.Report.TopN)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{"unknown mode", "backend:\n  mode: cloud\n", "Backend.Mode"},
		{"zero top_n", "report:\n  top_n: 0\n", "Report.TopN"},
		{"bad daemon url", "backend:\n  daemon_url: not a url\n", "Backend.DaemonURL"},
		{"bad log level", "log_level: loud\n", "LogLevel"},
		{"empty db path", "knowledge:\n  db_path: \"\"\n", "Knowledge.DBPath"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newViper(t, writeConfig(t, tt.body))
			_, err := Read(v)
			require.NoError(t, err)

			_, err = Load(v)
			require.Error(t, err)
			assert.ErrorIs(t, err, failure.ErrConfiguration)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestWatchReloads(t *testing.T) {
	path := writeConfig(t, "backend:\n  mode: hosted\n")
	v := newViper(t, path)
	_, err := Read(v)
	require.NoError(t, err)

	changes := make(chan types.Config, 4)
	Watch(v, nil, func(c types.Config) { changes <- c })

	// An invalid edit is ignored; the following valid one is delivered.
	require.NoError(t, os.WriteFile(path, []byte("backend:\n  mode: bogus\n"), 0o644))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("backend:\n  mode: offline\n"), 0o644))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case c := <-changes:
			if c.Backend.Mode == "offline" {
				return
			}
		case <-deadline:
			t.Fatal("config change not delivered")
		}
	}
}
