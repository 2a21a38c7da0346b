package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func TestDecode_Defaults(t *testing.T) {
	v := newTestViper()
	v.Set("auth.jwt_secret", "secret")

	cfg, err := decode(v)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 10*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, DefaultPageSize, cfg.Chat.PageSize)
	assert.Equal(t, DefaultGatheringCapacity, cfg.Chat.GatheringCapacity)
	assert.Equal(t, CounterDefaultTTL, cfg.Redis.CounterTTL)
	assert.Equal(t, "notifications", cfg.Notify.Queue)
	assert.Equal(t, 5.0, cfg.Server.WriteRate)
	assert.Equal(t, 10, cfg.Server.WriteBurst)
	assert.False(t, cfg.RedisEnabled())
	assert.False(t, cfg.TelegramEnabled())
}

func TestDecode_RequiresJWTSecret(t *testing.T) {
	_, err := decode(newTestViper())
	assert.ErrorContains(t, err, "jwt_secret")
}

func TestDecode_RejectsBadChatSettings(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  interface{}
	}{
		{"zero message length", "chat.max_message_length", 0},
		{"capacity of one", "chat.gathering_capacity", 1},
		{"page size above max", "chat.page_size", MaxPageSize + 1},
		{"telegram without redis", "telegram.bot_token", "123:abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newTestViper()
			v.Set("auth.jwt_secret", "secret")
			v.Set(tt.key, tt.val)

			_, err := decode(v)
			assert.Error(t, err)
		})
	}
}

func TestDecode_SplitsCORSOrigins(t *testing.T) {
	v := newTestViper()
	v.Set("auth.jwt_secret", "secret")
	v.Set("server.cors_origins", "https://a.example,https://b.example")

	cfg, err := decode(v)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}
