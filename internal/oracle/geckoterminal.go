package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const geckoTerminalBase = "https://api.geckoterminal.com/api/v2"

// GeckoTerminal is the secondary reference-price source, consulted only
// when the primary cannot price both sides of a pair.
type GeckoTerminal struct {
	cli     *http.Client
	base    string
	network string // e.g. "pulsechain"
}

func NewGeckoTerminal(cli *http.Client, network string) *GeckoTerminal {
	if cli == nil {
		cli = &http.Client{Timeout: 10 * time.Second}
	}
	return &GeckoTerminal{cli: cli, base: geckoTerminalBase, network: network}
}

func (g *GeckoTerminal) Name() string { return "geckoterminal" }

type gtResponse struct {
	Data struct {
		Attributes struct {
			PriceUSD string `json:"price_usd"`
		} `json:"attributes"`
	} `json:"data"`
}

func (g *GeckoTerminal) USDPrice(ctx context.Context, tokenAddr string) (float64, error) {
	u := fmt.Sprintf("%s/networks/%s/tokens/%s", g.base, g.network, strings.ToLower(strings.TrimSpace(tokenAddr)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("accept", "application/json")
	resp, err := g.cli.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return 0, nil // unlisted token, not an error
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return 0, fmt.Errorf("geckoterminal http %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var out gtResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("geckoterminal decode: %w", err)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(out.Data.Attributes.PriceUSD), 64)
	if err != nil || v < 0 {
		return 0, nil
	}
	return v, nil
}
