package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFromEnv_Defaults(t *testing.T) {
	t.Setenv("DEEPSEEK_API_KEY", "test-key")

	cfg, err := NewFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "test-key", cfg.LLM.APIKey)
	assert.Equal(t, "https://api.deepseek.com", cfg.LLM.APIURL)
	assert.Equal(t, "deepseek-chat", cfg.LLM.Model)
	assert.Equal(t, 4000, cfg.LLM.MaxTokens)
	assert.InDelta(t, 0.3, cfg.LLM.Temperature, 0.001)
	assert.Equal(t, 3000, cfg.Translate.MaxChunkSize)
	assert.Equal(t, 1500, cfg.Translate.CombineThreshold)
	assert.Equal(t, 3, cfg.Translate.MaxRetries)
	assert.Equal(t, 3, cfg.Translate.Workers)
	assert.Equal(t, "0 * * * *", cfg.Translate.BackfillCronExpr)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestNewFromEnv_Overrides(t *testing.T) {
	t.Setenv("DEEPSEEK_API_KEY", "test-key")
	t.Setenv("TRANSLATE_WORKERS", "5")
	t.Setenv("TRANSLATE_MAX_CHUNK_SIZE", "1000")
	t.Setenv("BACKFILL_CRON_EXPR", "*/10 * * * *")
	t.Setenv("HTTP_ADDR", ":9999")

	cfg, err := NewFromEnv()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Translate.Workers)
	assert.Equal(t, 1000, cfg.Translate.MaxChunkSize)
	assert.Equal(t, "*/10 * * * *", cfg.Translate.BackfillCronExpr)
	assert.Equal(t, ":9999", cfg.Server.Addr)
}

func TestNewFromEnv_RequiresAPIKey(t *testing.T) {
	t.Setenv("DEEPSEEK_API_KEY", "")

	_, err := NewFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DEEPSEEK_API_KEY")
}

func TestNewFromEnv_RejectsBadCronExpr(t *testing.T) {
	t.Setenv("DEEPSEEK_API_KEY", "test-key")
	t.Setenv("BACKFILL_CRON_EXPR", "not a cron expr")

	_, err := NewFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BACKFILL_CRON_EXPR")
}

func TestNewFromEnv_InvalidIntFallsBack(t *testing.T) {
	t.Setenv("DEEPSEEK_API_KEY", "test-key")
	t.Setenv("TRANSLATE_WORKERS", "many")

	cfg, err := NewFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Translate.Workers)
}
