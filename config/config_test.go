package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
latency: 0.25
conversation_ttl: 2h
dispatch_timeout: 5s
chats:
  math: -1001
messages:
  accepted: Спасибо!
report:
  default_problem: другое
  problems:
    - field: situation
      equals: Была найдена опечатка
      text: "опечатка, {grade} класс, {lesson} урок"
dialogue:
  entry: subject
  trees:
    subject:
      question: Какой предмет вас интересует?
      options:
        - text: Математика
          chat: math
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "token")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("CHAT_REGISTRY_KEY", "")

	cfg, err := Load(writeConfig(t, sample), filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "token", cfg.Token)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 250*time.Millisecond, cfg.Latency)
	assert.Equal(t, 2*time.Hour, cfg.ConversationTTL)
	assert.Equal(t, 5*time.Second, cfg.DispatchTimeout)
	assert.Equal(t, "siriusbot:chats", cfg.ChatRegistryKey)
	assert.Equal(t, map[string]int64{"math": -1001}, cfg.Chats)
	assert.Equal(t, "Спасибо!", cfg.Messages.Accepted)
	assert.NotEmpty(t, cfg.Messages.DescribeProblem)
	require.Len(t, cfg.Report.Problems, 1)
	assert.Equal(t, "subject", cfg.Dialogue.Entry.Name)
	assert.Len(t, cfg.Dialogue.Trees["subject"].Options, 1)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "token")

	cfg, err := Load(writeConfig(t, "dialogue:\n  entry: a\n"), filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, DefaultLatency, cfg.Latency)
	assert.Equal(t, DefaultConversationTTL, cfg.ConversationTTL)
	assert.Equal(t, DefaultDispatchTimeout, cfg.DispatchTimeout)
}

func TestLoadRequiresToken(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "")

	_, err := Load(writeConfig(t, sample), filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Token")
}

func TestLoadRejectsNegativeLatency(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "token")

	_, err := Load(writeConfig(t, "latency: -1\ndialogue:\n  entry: a\n"), filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Latency")
}

func TestLoadBadTTL(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "token")

	_, err := Load(writeConfig(t, "conversation_ttl: soon\n"), filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestLoadRequiresDialogueEntry(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "token")

	_, err := Load(writeConfig(t, "latency: 1\n"), filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Entry")
}

func TestLoadBadDispatchTimeout(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "token")

	_, err := Load(writeConfig(t, "dispatch_timeout: later\n"), filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}
