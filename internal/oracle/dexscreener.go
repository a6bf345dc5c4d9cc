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

const dexscreenerBase = "https://api.dexscreener.com/latest/dex/tokens/"

// Dexscreener is the primary reference-price source. One GET per token
// returns every tracked pair; the best pair on the target chain wins.
type Dexscreener struct {
	cli   *http.Client
	base  string
	chain string // chainId substring to prefer, e.g. "pulsechain"
}

func NewDexscreener(cli *http.Client, chain string) *Dexscreener {
	if cli == nil {
		cli = &http.Client{Timeout: 10 * time.Second}
	}
	return &Dexscreener{cli: cli, base: dexscreenerBase, chain: strings.ToLower(chain)}
}

func (d *Dexscreener) Name() string { return "dexscreener" }

type dsLiquidity struct {
	USD float64 `json:"usd"`
}

type dsVolume struct {
	H24 float64 `json:"h24"`
}

type dsPair struct {
	ChainID   string       `json:"chainId"`
	PriceUsd  string       `json:"priceUsd"`
	Volume    dsVolume     `json:"volume"`
	Liquidity *dsLiquidity `json:"liquidity"`
}

type dsResponse struct {
	Pairs []dsPair `json:"pairs"`
}

// USDPrice picks the qualifying pair: target-chain pairs beat off-chain
// ones, then higher USD liquidity, ties broken by higher 24h volume.
// Liquidity outranks volume on purpose: thin pools with wash-traded volume
// report worse prices than deep ones. Missing fields and non-numeric price
// strings disqualify a pair quietly.
func (d *Dexscreener) USDPrice(ctx context.Context, tokenAddr string) (float64, error) {
	u := d.base + strings.ToLower(strings.TrimSpace(tokenAddr))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, err
	}
	resp, err := d.cli.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return 0, fmt.Errorf("dexscreener http %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var out dsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("dexscreener decode: %w", err)
	}

	type ranked struct {
		prio int // 0 on target chain, 1 elsewhere
		liq  float64
		vol  float64
		usd  float64
	}
	var best *ranked
	for _, p := range out.Pairs {
		usd, err := strconv.ParseFloat(strings.TrimSpace(p.PriceUsd), 64)
		if err != nil || usd <= 0 {
			continue
		}
		r := ranked{prio: 1, vol: p.Volume.H24, usd: usd}
		if d.chain != "" && strings.Contains(strings.ToLower(p.ChainID), d.chain) {
			r.prio = 0
		}
		if p.Liquidity != nil {
			r.liq = p.Liquidity.USD
		}
		if best == nil ||
			r.prio < best.prio ||
			(r.prio == best.prio && r.liq > best.liq) ||
			(r.prio == best.prio && r.liq == best.liq && r.vol > best.vol) {
			best = &r
		}
	}
	if best == nil {
		return 0, nil
	}
	return best.usd, nil
}
