package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"announcement-radar/internal/extraction"
	"announcement-radar/internal/llm"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("RADAR_STORAGE_DRIVER", "memory")

	cfg, err := Load(writeConfig(t, "app:\n  environment: development\n"))
	require.NoError(t, err)

	assert.Equal(t, "announcement-radar", cfg.App.Name)
	assert.Equal(t, "@every 10m", cfg.Poll.Schedule)
	assert.Equal(t, time.Second, cfg.Poll.ClassifyInterval)
	assert.Equal(t, 3, cfg.Poll.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Poll.RetryDelay)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, llm.ProviderOpenAI, cfg.LLM.Provider)
	assert.Equal(t, []string{"binance", "bitget", "okx"}, cfg.Exchanges.Enabled)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)

	strategies, err := cfg.Strategies()
	require.NoError(t, err)
	assert.Equal(t, extraction.StrategyRegex, strategies["bitget"])
	assert.Equal(t, extraction.StrategyAI, strategies["binance"])
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
storage:
  driver: postgres
  postgres_dsn: postgres://radar@localhost/radar
poll:
  schedule: "*/5 * * * *"
  pages: 2
llm:
  provider: Claude
exchanges:
  enabled: [okx]
  strategies:
    OKX: regex
  prompts:
    okx: "custom okx prompt"
  html:
    - exchange: mexc
      url: https://example.com/news?page={page}
      item: li.news
`)
	t.Setenv("RADAR_POLL_PAGES", "3")
	t.Setenv("TELEGRAM_BOT_TOKEN", "bot-token")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "*/5 * * * *", cfg.Poll.Schedule)
	assert.Equal(t, 3, cfg.Poll.Pages, "environment wins over file")
	assert.Equal(t, llm.ProviderClaude, cfg.LLM.Provider)
	assert.Equal(t, "bot-token", cfg.Telegram.Token)
	assert.Equal(t, []string{"okx"}, cfg.Exchanges.Enabled)
	assert.Equal(t, "regex", cfg.Exchanges.Strategies["okx"])
	assert.Equal(t, "custom okx prompt", cfg.Exchanges.Prompts["okx"])
	require.Len(t, cfg.Exchanges.HTML, 1)
	assert.Equal(t, "li.news", cfg.Exchanges.HTML[0].Item)

	settings := cfg.LLMSettings()
	assert.Equal(t, llm.ProviderClaude, settings.Provider)
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"postgres without dsn", "storage:\n  driver: postgres\n  postgres_dsn: \"\"\n"},
		{"unknown provider", "storage:\n  driver: memory\nllm:\n  provider: llama\n"},
		{"unknown strategy", "storage:\n  driver: memory\nexchanges:\n  strategies:\n    binance: guess\n"},
		{"unknown exchange", "storage:\n  driver: memory\nexchanges:\n  enabled: [kraken]\n"},
		{"too many pages", "storage:\n  driver: memory\npoll:\n  pages: 50\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrConfigValidationFailed)
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfigLoadFailed)
}
