package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults are PulseChain mainnet; everything can be overridden per file.
const (
	DefaultRPCHTTP       = "https://rpc.pulsechain.com"
	DefaultChainID       = 369
	DefaultWrappedNative = "0xA1077a294dDE1B09bB078844df40758a5D0f9a27"
	DefaultQuoteRouter   = "0xDA9aBA4eACF54E0273f56dfFee6B8F1e20B23Bba"
	DefaultRouter02      = "0x165C3410fC91EF562C50559f7d2289fEbed552d9"
	DefaultSwapRouter    = "0x6CE485B02Cf97a69D8bAbfe18AF83D6a0c829Dde"
	DefaultLimitContract = "0xFEa1023F5d52536beFc71c3404E356ae81C82F4B"
)

type Config struct {
	Chain struct {
		ID            uint64 `yaml:"id"`
		RPCHTTP       string `yaml:"rpc_http"`
		WrappedNative string `yaml:"wrapped_native"`
		NativeSymbol  string `yaml:"native_symbol"`
	} `yaml:"chain"`

	Routers struct {
		Quote     string `yaml:"quote"`    // primary quoting router
		Fallback  string `yaml:"fallback"` // secondary quoting router
		Swap      string `yaml:"swap"`     // fee-wrapping submission router
		Multicall string `yaml:"multicall"`
	} `yaml:"routers"`

	Limit struct {
		Contract    string `yaml:"contract"`
		ExpiryHours int    `yaml:"expiry_hours"`
	} `yaml:"limit"`

	Pricing struct {
		DexscreenerChain     string `yaml:"dexscreener_chain"`
		GeckoTerminalChain   string `yaml:"geckoterminal_chain"`
		TTLSeconds           int    `yaml:"ttl_seconds"`
		DisableGeckoTerminal bool   `yaml:"disable_geckoterminal"`
	} `yaml:"pricing"`

	Trade struct {
		DefaultSlippagePct string `yaml:"default_slippage_pct"`
		HiddenBufferBps    int    `yaml:"hidden_buffer_bps"`
	} `yaml:"trade"`

	Timings struct {
		QuoteDebounceMs int `yaml:"quote_debounce_ms"`
		CallTimeoutMs   int `yaml:"call_timeout_ms"`
	} `yaml:"timings"`

	Redis struct {
		Addr     string `yaml:"addr"`
		DB       int    `yaml:"db"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		Stream   string `yaml:"stream"`
		LastNS   string `yaml:"last_ns"`
	} `yaml:"redis"`

	Server struct {
		Addr        string `yaml:"addr"`
		MetricsAddr string `yaml:"metrics_addr"`
	} `yaml:"server"`
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyDefaults()
	return &c, nil
}

// Default returns a config usable without a file: PulseChain mainnet.
func Default() *Config {
	var c Config
	c.applyDefaults()
	return &c
}

func (c *Config) applyDefaults() {
	if c.Chain.ID == 0 {
		c.Chain.ID = DefaultChainID
	}
	if c.Chain.RPCHTTP == "" {
		c.Chain.RPCHTTP = DefaultRPCHTTP
	}
	if c.Chain.WrappedNative == "" {
		c.Chain.WrappedNative = DefaultWrappedNative
	}
	if c.Chain.NativeSymbol == "" {
		c.Chain.NativeSymbol = "PLS"
	}
	if c.Routers.Quote == "" {
		c.Routers.Quote = DefaultQuoteRouter
	}
	if c.Routers.Fallback == "" {
		c.Routers.Fallback = DefaultRouter02
	}
	if c.Routers.Swap == "" {
		c.Routers.Swap = DefaultSwapRouter
	}
	if c.Limit.Contract == "" {
		c.Limit.Contract = DefaultLimitContract
	}
	if c.Limit.ExpiryHours == 0 {
		c.Limit.ExpiryHours = 30 * 24
	}
	if c.Pricing.DexscreenerChain == "" {
		c.Pricing.DexscreenerChain = "pulsechain"
	}
	if c.Pricing.GeckoTerminalChain == "" {
		c.Pricing.GeckoTerminalChain = "pulsechain"
	}
	if c.Pricing.TTLSeconds == 0 {
		c.Pricing.TTLSeconds = 60
	}
	if c.Trade.DefaultSlippagePct == "" {
		c.Trade.DefaultSlippagePct = "0.5"
	}
	if c.Trade.HiddenBufferBps == 0 {
		c.Trade.HiddenBufferBps = 70
	}
	if c.Timings.QuoteDebounceMs == 0 {
		c.Timings.QuoteDebounceMs = 220
	}
	if c.Timings.CallTimeoutMs == 0 {
		c.Timings.CallTimeoutMs = 10_000
	}
	if c.Redis.Stream == "" {
		c.Redis.Stream = "quote:stream"
	}
	if c.Redis.LastNS == "" {
		c.Redis.LastNS = "quote:last:"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
}

func (c *Config) QuoteDebounce() time.Duration {
	return time.Duration(c.Timings.QuoteDebounceMs) * time.Millisecond
}

func (c *Config) CallTimeout() time.Duration {
	return time.Duration(c.Timings.CallTimeoutMs) * time.Millisecond
}

func (c *Config) PriceTTL() time.Duration {
	return time.Duration(c.Pricing.TTLSeconds) * time.Second
}

func (c *Config) LimitExpiry() time.Duration {
	return time.Duration(c.Limit.ExpiryHours) * time.Hour
}

// SlippageBps converts the percent string to basis points, truncating.
// Unparseable values fall back to 50 (0.5%).
func (c *Config) SlippageBps() int {
	f, err := strconv.ParseFloat(c.Trade.DefaultSlippagePct, 64)
	if err != nil || f < 0 {
		return 50
	}
	return int(f * 100)
}
