package valkey

import (
	"testing"
	"time"

	coreconfig "github.com/AzielCF/az-infer/core/config"
	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	c := &Client{keyPrefix: "azinfer:"}
	assert.Equal(t, "azinfer:cache:index", c.Key("cache", "index"))
	assert.Equal(t, "azinfer", c.Key())

	bare := &Client{}
	assert.Equal(t, "cache", bare.Key("cache"))
}

func TestConfigFrom(t *testing.T) {
	cfg := ConfigFrom(coreconfig.DatabaseConfig{
		ValkeyAddress:   "cache:6379",
		ValkeyPassword:  "secret",
		ValkeyDB:        2,
		ValkeyKeyPrefix: "gw",
	})
	assert.Equal(t, Config{Address: "cache:6379", Password: "secret", DB: 2, KeyPrefix: "gw"}, cfg)
}

func TestNewClient_Unreachable(t *testing.T) {
	_, err := NewClient(Config{Address: "127.0.0.1:1", ConnectTimeout: 200 * time.Millisecond})
	assert.Error(t, err)
}
