package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	return path
}

func TestLoadFileMissingUsesDefaults(t *testing.T) {
	t.Setenv("JLLM_API_KEY", "secret")
	t.Setenv("COMPLETION_TOKEN", "")

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ProviderJLLM, cfg.Completion.Provider)
	assert.Equal(t, "secret", cfg.Completion.Token)
	assert.Equal(t, 3, cfg.Completion.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Chat.BotPacing)
	assert.Equal(t, ":8000", cfg.Server.Listen)
	assert.False(t, cfg.Chat.PrimaryPersona)
}

func TestLoadFileOverrides(t *testing.T) {
	path := writeConfig(t, `
completion:
  provider: openai
  base_url: https://openrouter.ai/api/v1
  token: sk-test
  model: some/model
chat:
  bot_pacing: 0s
  max_history: 0
  primary_persona: true
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, ProviderOpenAI, cfg.Completion.Provider)
	assert.Equal(t, "some/model", cfg.Completion.Model)
	assert.Equal(t, time.Duration(0), cfg.Chat.BotPacing)
	assert.Equal(t, 0, cfg.Chat.MaxHistory)
	assert.True(t, cfg.Chat.PrimaryPersona)
	assert.Equal(t, 30*time.Second, cfg.Completion.Timeout)
}

func TestLoadFileValidation(t *testing.T) {
	t.Setenv("JLLM_API_KEY", "")
	t.Setenv("COMPLETION_TOKEN", "")

	tests := []struct {
		name string
		body string
	}{
		{name: "missing token", body: "completion:\n  provider: jllm\n"},
		{name: "unknown provider", body: "completion:\n  provider: nope\n  token: x\n"},
		{name: "openai without model", body: "completion:\n  provider: openai\n  token: x\n"},
		{name: "bad level", body: "log:\n  level: loud\ncompletion:\n  token: x\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadFileEnvOverride(t *testing.T) {
	t.Setenv("COMPLETION_TOKEN", "from-env")
	t.Setenv("LISTEN_ADDR", ":9999")

	cfg, err := LoadFile(writeConfig(t, "completion:\n  token: from-file\n"))
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Completion.Token)
	assert.Equal(t, ":9999", cfg.Server.Listen)
}
