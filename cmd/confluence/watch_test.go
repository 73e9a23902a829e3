package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/confluence/internal/config"
	"github.com/newthinker/confluence/internal/core"
)

func TestNewNotifiers(t *testing.T) {
	none, err := newNotifiers(config.MonitorConfig{})
	require.NoError(t, err)
	assert.Zero(t, none.Len())

	both, err := newNotifiers(config.MonitorConfig{
		Webhook:  config.WebhookConfig{URL: "https://hooks.example.com/confluence"},
		Telegram: config.TelegramConfig{BotToken: "123:abc", ChatID: "-10042"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"telegram", "webhook"}, both.Names())

	_, err = newNotifiers(config.MonitorConfig{
		Telegram: config.TelegramConfig{BotToken: "123:abc"},
	})
	assert.ErrorIs(t, err, core.ErrConfigMissing)
}
