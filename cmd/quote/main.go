package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/TrevorDev1978/bullscopeswap/internal/app"
	"github.com/TrevorDev1978/bullscopeswap/internal/config"
	"github.com/TrevorDev1978/bullscopeswap/internal/server"
)

func main() {
	cfgPath := flag.String("config", "./config.yaml", "path to config file")
	sell := flag.String("sell", "native", "sell token address, or \"native\"")
	buy := flag.String("buy", "", "buy token address")
	amount := flag.String("amount", "", "human-decimal amount")
	side := flag.String("side", "sell", "sell = size input, buy = size desired output")
	flag.Parse()

	if *buy == "" || *amount == "" {
		fmt.Fprintln(os.Stderr, "usage: quote --buy 0x... --amount 12.5 [--sell native] [--side sell|buy]")
		os.Exit(2)
	}

	var cfg *config.Config
	if _, err := os.Stat(*cfgPath); err == nil {
		var lerr error
		cfg, lerr = config.Load(*cfgPath)
		if lerr != nil {
			fmt.Fprintln(os.Stderr, "config:", lerr)
			os.Exit(1)
		}
	} else {
		cfg = config.Default()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a, err := app.New(cfg, zap.NewNop())
	if err != nil {
		fmt.Fprintln(os.Stderr, "startup:", err)
		os.Exit(1)
	}

	resp, err := a.Quote(ctx, server.QuoteRequest{Sell: *sell, Buy: *buy, Amount: *amount, Side: *side})
	if err != nil {
		fmt.Fprintln(os.Stderr, "quote:", err)
		os.Exit(1)
	}

	fmt.Printf("pair:       %s -> %s\n", resp.Sell, resp.Buy)
	fmt.Printf("path:       %s\n", strings.Join(resp.Path, " -> "))
	fmt.Printf("router:     %s\n", resp.Router)
	fmt.Printf("amount in:  %s\n", resp.AmountIn)
	fmt.Printf("amount out: %s\n", resp.AmountOut)
	fmt.Printf("min recv:   %s\n", resp.MinOut)
	if resp.ImpactPct != nil {
		fmt.Printf("impact:     %.3f%%\n", *resp.ImpactPct)
	} else {
		fmt.Println("impact:     —")
	}
	if resp.SellUSD > 0 {
		fmt.Printf("sell usd:   $%.6f\n", resp.SellUSD)
	}
	if resp.BuyUSD > 0 {
		fmt.Printf("buy usd:    $%.6f\n", resp.BuyUSD)
	}
}
