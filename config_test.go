package tgfetch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	assert := assert.New(t)
	c := DefaultConfig()
	assert.Equal(int64(49*1024*1024), c.TargetBytes)
	assert.Equal(int64(47*1024*1024), c.SizeBudgetBytes)
	assert.Equal(10, c.CountThreshold)
	assert.Equal(480, c.DefaultHeight)
	// The archive budget must leave room under the inline send limit.
	assert.Less(c.SizeBudgetBytes, c.TargetBytes)
}

func TestLoadConfig(t *testing.T) {
	assert := assert.New(t)
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("DATA_DIR", "/tmp/tgfetch-test")
	t.Setenv("TARGET_MB", "25")
	t.Setenv("COUNT_THRESHOLD", "5")

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal("123:abc", c.BotToken)
	assert.Equal("/tmp/tgfetch-test", c.DataDir)
	assert.Equal(int64(25*1024*1024), c.TargetBytes)
	assert.Equal(5, c.CountThreshold)
	// Unset keys keep their defaults.
	assert.Equal(480, c.DefaultHeight)
}

func TestLoadConfigMissingToken(t *testing.T) {
	assert := assert.New(t)
	t.Setenv("BOT_TOKEN", "")
	_, err := LoadConfig()
	assert.ErrorIs(err, ErrMissingBotToken)
}

func TestLoadConfigRejectsBadNumbers(t *testing.T) {
	assert := assert.New(t)
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("TARGET_MB", "lots")
	_, err := LoadConfig()
	assert.ErrorContains(err, "TARGET_MB")

	t.Setenv("TARGET_MB", "")
	t.Setenv("COUNT_THRESHOLD", "-3")
	_, err = LoadConfig()
	assert.ErrorContains(err, "COUNT_THRESHOLD")
}
