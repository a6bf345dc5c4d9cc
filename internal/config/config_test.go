package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chain:\n  rpc_http: http://localhost:8545\n"), 0o600))

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8545", c.Chain.RPCHTTP)
	assert.Equal(t, uint64(DefaultChainID), c.Chain.ID)
	assert.Equal(t, DefaultWrappedNative, c.Chain.WrappedNative)
	assert.Equal(t, DefaultQuoteRouter, c.Routers.Quote)
	assert.Equal(t, DefaultRouter02, c.Routers.Fallback)
	assert.Equal(t, DefaultLimitContract, c.Limit.Contract)
	assert.Equal(t, 70, c.Trade.HiddenBufferBps)
	assert.Equal(t, 220*time.Millisecond, c.QuoteDebounce())
	assert.Equal(t, 10*time.Second, c.CallTimeout())
	assert.Equal(t, 60*time.Second, c.PriceTTL())
	assert.Equal(t, 30*24*time.Hour, c.LimitExpiry())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	c := Default()
	assert.Equal(t, DefaultRPCHTTP, c.Chain.RPCHTTP)
	assert.Equal(t, "0.5", c.Trade.DefaultSlippagePct)
}
