// Package chain executes read-only contract calls with a wallet-first,
// public-RPC-fallback strategy and caches immutable per-token facts.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/TrevorDev1978/bullscopeswap/internal/token"
)

const erc20ABI = `[
 {"inputs":[],"name":"decimals","outputs":[{"internalType":"uint8","name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
 {"inputs":[{"internalType":"address","name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
 {"inputs":[{"internalType":"address","name":"owner","type":"address"},{"internalType":"address","name":"spender","type":"address"}],"name":"allowance","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

// Caller is the read-only call surface the quoting layers depend on.
type Caller interface {
	Call(ctx context.Context, to common.Address, data []byte) ([]byte, error)
}

// Backend is the subset of an Ethereum client the reader needs. Both the
// injected wallet provider and the public RPC fallback satisfy it;
// *ethclient.Client does out of the box.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// Client prefers the wallet backend when it reports the expected chain id
// (a wallet on the wrong network would silently read the wrong chain) and
// falls back to the public RPC on any error.
type Client struct {
	wallet   Backend // optional
	fallback Backend
	chainID  *big.Int
	timeout  time.Duration
	log      *zap.Logger

	erc20 abi.ABI

	decMu    sync.RWMutex
	decimals map[common.Address]int
}

// New builds a Client over an already-dialed fallback backend. wallet may
// be nil when no injected provider is present.
func New(wallet, fallback Backend, chainID uint64, timeout time.Duration, log *zap.Logger) (*Client, error) {
	if fallback == nil {
		return nil, fmt.Errorf("chain: fallback backend is required")
	}
	eABI, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("bad erc20 abi: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		wallet:   wallet,
		fallback: fallback,
		chainID:  new(big.Int).SetUint64(chainID),
		timeout:  timeout,
		log:      log,
		erc20:    eABI,
		decimals: make(map[common.Address]int, 16),
	}, nil
}

// Dial connects to the public RPC endpoint and builds a Client without a
// wallet backend.
func Dial(rpcURL string, chainID uint64, timeout time.Duration, log *zap.Logger) (*Client, error) {
	ec, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rpcURL, err)
	}
	return New(nil, ec, chainID, timeout, log)
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

// Call executes eth_call against to with the given calldata.
func (c *Client) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	msg := ethereum.CallMsg{To: &to, Data: data}
	if c.wallet != nil {
		if cid, err := c.wallet.ChainID(ctx); err == nil && cid != nil && cid.Cmp(c.chainID) == 0 {
			if raw, err := c.wallet.CallContract(ctx, msg, nil); err == nil {
				return raw, nil
			} else {
				c.log.Debug("wallet call failed, using fallback RPC", zap.Error(err))
			}
		}
	}
	raw, err := c.fallback.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("eth_call %s: %w", to.Hex(), err)
	}
	return raw, nil
}

// Decimals returns a token's decimals. The native sentinel is always 18
// with no network call. Successful reads are cached for the process
// lifetime (decimals are immutable for a deployed contract); failures
// default to 18 without entering the cache so a later call can recover.
func (c *Client) Decimals(ctx context.Context, addr string) int {
	if token.IsNativeAddress(addr) {
		return 18
	}
	a := common.HexToAddress(addr)

	c.decMu.RLock()
	if d, ok := c.decimals[a]; ok {
		c.decMu.RUnlock()
		return d
	}
	c.decMu.RUnlock()

	d, err := c.fetchDecimals(ctx, a)
	if err != nil {
		c.log.Warn("decimals() failed, assuming 18", zap.String("token", a.Hex()), zap.Error(err))
		return 18
	}
	c.decMu.Lock()
	c.decimals[a] = d
	c.decMu.Unlock()
	return d
}

func (c *Client) fetchDecimals(ctx context.Context, a common.Address) (int, error) {
	data, _ := c.erc20.Pack("decimals")
	raw, err := c.Call(ctx, a, data)
	if err != nil {
		return 0, err
	}
	outs, err := c.erc20.Methods["decimals"].Outputs.Unpack(raw)
	if err != nil || len(outs) == 0 {
		return 0, fmt.Errorf("decode decimals")
	}
	switch x := outs[0].(type) {
	case uint8:
		return int(x), nil
	case *big.Int:
		return int(x.Int64()), nil
	default:
		return 0, fmt.Errorf("unexpected decimals type %T", outs[0])
	}
}

// BalanceOf reads an ERC-20 balance, or the native balance for the
// sentinel. Returns 0 on failure per the read-path error policy.
func (c *Client) BalanceOf(ctx context.Context, tokenAddr string, owner common.Address) *big.Int {
	if token.IsNativeAddress(tokenAddr) {
		ctx, cancel := c.withTimeout(ctx)
		defer cancel()
		bal, err := c.fallback.BalanceAt(ctx, owner, nil)
		if err != nil {
			c.log.Warn("native balance read failed", zap.Error(err))
			return new(big.Int)
		}
		return bal
	}

	data, _ := c.erc20.Pack("balanceOf", owner)
	raw, err := c.Call(ctx, common.HexToAddress(tokenAddr), data)
	if err != nil {
		c.log.Warn("balanceOf failed", zap.String("token", tokenAddr), zap.Error(err))
		return new(big.Int)
	}
	outs, err := c.erc20.Methods["balanceOf"].Outputs.Unpack(raw)
	if err != nil || len(outs) == 0 {
		return new(big.Int)
	}
	if v, ok := outs[0].(*big.Int); ok {
		return v
	}
	return new(big.Int)
}

// NativeBalance reads the owner's native-coin balance.
func (c *Client) NativeBalance(ctx context.Context, owner common.Address) *big.Int {
	return c.BalanceOf(ctx, token.NativeSentinel, owner)
}

// Allowance reads an ERC-20 allowance. Returns 0 on failure.
func (c *Client) Allowance(ctx context.Context, tokenAddr common.Address, owner, spender common.Address) *big.Int {
	data, _ := c.erc20.Pack("allowance", owner, spender)
	raw, err := c.Call(ctx, tokenAddr, data)
	if err != nil {
		c.log.Warn("allowance failed", zap.String("token", tokenAddr.Hex()), zap.Error(err))
		return new(big.Int)
	}
	outs, err := c.erc20.Methods["allowance"].Outputs.Unpack(raw)
	if err != nil || len(outs) == 0 {
		return new(big.Int)
	}
	if v, ok := outs[0].(*big.Int); ok {
		return v
	}
	return new(big.Int)
}
