// Package orders talks to the resting limit-order contract: placement,
// cancellation, third-party execution, and read-only views. Signing lives
// behind TxSender; this package only builds calldata.
package orders

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/TrevorDev1978/bullscopeswap/internal/chain"
)

const limitABI = `[
 {"inputs":[{"internalType":"address","name":"tokenIn","type":"address"},{"internalType":"address","name":"tokenOut","type":"address"},{"internalType":"uint256","name":"amountIn","type":"uint256"},{"internalType":"uint256","name":"minOut","type":"uint256"},{"internalType":"uint256","name":"expiry","type":"uint256"}],"name":"placeOrderERC20","outputs":[],"stateMutability":"nonpayable","type":"function"},
 {"inputs":[{"internalType":"address","name":"tokenOut","type":"address"},{"internalType":"uint256","name":"minOut","type":"uint256"},{"internalType":"uint256","name":"expiry","type":"uint256"}],"name":"placeOrderPLS","outputs":[],"stateMutability":"payable","type":"function"},
 {"inputs":[{"internalType":"uint256","name":"id","type":"uint256"}],"name":"cancel","outputs":[],"stateMutability":"nonpayable","type":"function"},
 {"inputs":[{"internalType":"uint256","name":"id","type":"uint256"}],"name":"execute","outputs":[],"stateMutability":"nonpayable","type":"function"},
 {"inputs":[{"internalType":"uint256","name":"","type":"uint256"}],"name":"orders","outputs":[{"internalType":"address","name":"maker","type":"address"},{"internalType":"address","name":"tokenIn","type":"address"},{"internalType":"address","name":"tokenOut","type":"address"},{"internalType":"uint256","name":"amountIn","type":"uint256"},{"internalType":"uint256","name":"minOut","type":"uint256"},{"internalType":"uint256","name":"expiry","type":"uint256"},{"internalType":"uint256","name":"tipPLS","type":"uint256"},{"internalType":"bool","name":"filled","type":"bool"},{"internalType":"bool","name":"cancelled","type":"bool"}],"stateMutability":"view","type":"function"},
 {"inputs":[{"internalType":"address","name":"maker","type":"address"}],"name":"ordersOfMaker","outputs":[{"internalType":"uint256[]","name":"","type":"uint256[]"}],"stateMutability":"view","type":"function"}
]`

const erc20ApproveABI = `[
 {"inputs":[{"internalType":"address","name":"spender","type":"address"},{"internalType":"uint256","name":"amount","type":"uint256"}],"name":"approve","outputs":[{"internalType":"bool","name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"}
]`

// TxSender signs and submits a transaction. Wallet internals stay out of
// this package entirely.
type TxSender interface {
	From() common.Address
	Send(ctx context.Context, to common.Address, data []byte, value *big.Int) (common.Hash, error)
}

// AllowanceReader is the slice of the chain client the approve flow needs.
type AllowanceReader interface {
	Allowance(ctx context.Context, token common.Address, owner, spender common.Address) *big.Int
}

// Order is the decoded on-chain order record.
type Order struct {
	ID        *big.Int
	Maker     common.Address
	TokenIn   common.Address // zero address for native-PLS orders
	TokenOut  common.Address
	AmountIn  *big.Int
	MinOut    *big.Int
	Expiry    *big.Int // unix seconds
	TipPLS    *big.Int
	Filled    bool
	Cancelled bool
}

func (o Order) Open() bool {
	return !o.Filled && !o.Cancelled
}

type Manager struct {
	caller    chain.Caller
	allowance AllowanceReader
	sender    TxSender
	contract  common.Address
	labi      abi.ABI
	eabi      abi.ABI
	expiry    time.Duration
	log       *zap.Logger
	now       func() time.Time
}

// New builds a Manager. sender may be nil for a read-only client; write
// operations then fail with an explicit error.
func New(caller chain.Caller, allowance AllowanceReader, sender TxSender, contract common.Address, expiry time.Duration, log *zap.Logger) (*Manager, error) {
	lABI, err := abi.JSON(strings.NewReader(limitABI))
	if err != nil {
		return nil, err
	}
	eABI, err := abi.JSON(strings.NewReader(erc20ApproveABI))
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		caller:    caller,
		allowance: allowance,
		sender:    sender,
		contract:  contract,
		labi:      lABI,
		eabi:      eABI,
		expiry:    expiry,
		log:       log,
		now:       time.Now,
	}, nil
}

var errNoSender = errors.New("orders: no transaction sender configured")

// A zero amountIn or minOut would create an order that any taker can fill
// for nothing, so placement refuses both outright.
func checkAmounts(amountIn, minOut *big.Int) error {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return errors.New("orders: amountIn must be positive")
	}
	if minOut == nil || minOut.Sign() <= 0 {
		return errors.New("orders: minOut must be positive")
	}
	return nil
}

func (m *Manager) expiryAt() *big.Int {
	return big.NewInt(m.now().Add(m.expiry).Unix())
}

// PlaceERC20 places a resting order selling an ERC-20 token, approving the
// contract first when the standing allowance does not cover amountIn.
func (m *Manager) PlaceERC20(ctx context.Context, tokenIn, tokenOut common.Address, amountIn, minOut *big.Int) (common.Hash, error) {
	if m.sender == nil {
		return common.Hash{}, errNoSender
	}
	if err := checkAmounts(amountIn, minOut); err != nil {
		return common.Hash{}, err
	}

	if err := m.ensureAllowance(ctx, tokenIn, amountIn); err != nil {
		return common.Hash{}, err
	}

	data, err := m.labi.Pack("placeOrderERC20", tokenIn, tokenOut, amountIn, minOut, m.expiryAt())
	if err != nil {
		return common.Hash{}, err
	}
	h, err := m.sender.Send(ctx, m.contract, data, big.NewInt(0))
	if err != nil {
		return common.Hash{}, err
	}
	m.log.Info("limit order placed",
		zap.String("tokenIn", tokenIn.Hex()),
		zap.String("tokenOut", tokenOut.Hex()),
		zap.String("amountIn", amountIn.String()),
		zap.String("minOut", minOut.String()),
		zap.String("tx", h.Hex()))
	return h, nil
}

// PlacePLS places a resting order selling native PLS; amountIn rides as
// the transaction value, so no approval step exists.
func (m *Manager) PlacePLS(ctx context.Context, tokenOut common.Address, amountIn, minOut *big.Int) (common.Hash, error) {
	if m.sender == nil {
		return common.Hash{}, errNoSender
	}
	if err := checkAmounts(amountIn, minOut); err != nil {
		return common.Hash{}, err
	}

	data, err := m.labi.Pack("placeOrderPLS", tokenOut, minOut, m.expiryAt())
	if err != nil {
		return common.Hash{}, err
	}
	h, err := m.sender.Send(ctx, m.contract, data, amountIn)
	if err != nil {
		return common.Hash{}, err
	}
	m.log.Info("native limit order placed",
		zap.String("tokenOut", tokenOut.Hex()),
		zap.String("amountIn", amountIn.String()),
		zap.String("tx", h.Hex()))
	return h, nil
}

func (m *Manager) ensureAllowance(ctx context.Context, tokenIn common.Address, amountIn *big.Int) error {
	current := m.allowance.Allowance(ctx, tokenIn, m.sender.From(), m.contract)
	if current != nil && current.Cmp(amountIn) >= 0 {
		return nil
	}
	data, err := m.eabi.Pack("approve", m.contract, amountIn)
	if err != nil {
		return err
	}
	h, err := m.sender.Send(ctx, tokenIn, data, big.NewInt(0))
	if err != nil {
		return err
	}
	m.log.Info("approval submitted",
		zap.String("token", tokenIn.Hex()), zap.String("tx", h.Hex()))
	return nil
}

func (m *Manager) Cancel(ctx context.Context, id *big.Int) (common.Hash, error) {
	if m.sender == nil {
		return common.Hash{}, errNoSender
	}
	data, err := m.labi.Pack("cancel", id)
	if err != nil {
		return common.Hash{}, err
	}
	return m.sender.Send(ctx, m.contract, data, big.NewInt(0))
}

// Execute fills someone else's order when the market meets its minOut; the
// caller collects the order's tip.
func (m *Manager) Execute(ctx context.Context, id *big.Int) (common.Hash, error) {
	if m.sender == nil {
		return common.Hash{}, errNoSender
	}
	data, err := m.labi.Pack("execute", id)
	if err != nil {
		return common.Hash{}, err
	}
	return m.sender.Send(ctx, m.contract, data, big.NewInt(0))
}

// OrdersOfMaker returns the order ids a maker has ever placed.
func (m *Manager) OrdersOfMaker(ctx context.Context, maker common.Address) ([]*big.Int, error) {
	data, err := m.labi.Pack("ordersOfMaker", maker)
	if err != nil {
		return nil, err
	}
	raw, err := m.caller.Call(ctx, m.contract, data)
	if err != nil {
		return nil, err
	}
	outs, err := m.labi.Methods["ordersOfMaker"].Outputs.Unpack(raw)
	if err != nil || len(outs) == 0 {
		return nil, errors.New("orders: decode ordersOfMaker")
	}
	ids, ok := outs[0].([]*big.Int)
	if !ok {
		return nil, errors.New("orders: unexpected ordersOfMaker shape")
	}
	return ids, nil
}

// OrderByID reads one order record.
func (m *Manager) OrderByID(ctx context.Context, id *big.Int) (Order, error) {
	data, err := m.labi.Pack("orders", id)
	if err != nil {
		return Order{}, err
	}
	raw, err := m.caller.Call(ctx, m.contract, data)
	if err != nil {
		return Order{}, err
	}
	outs, err := m.labi.Methods["orders"].Outputs.Unpack(raw)
	if err != nil || len(outs) != 9 {
		return Order{}, errors.New("orders: decode orders view")
	}
	o := Order{ID: new(big.Int).Set(id)}
	var ok bool
	if o.Maker, ok = outs[0].(common.Address); !ok {
		return Order{}, errors.New("orders: bad maker field")
	}
	o.TokenIn, _ = outs[1].(common.Address)
	o.TokenOut, _ = outs[2].(common.Address)
	o.AmountIn, _ = outs[3].(*big.Int)
	o.MinOut, _ = outs[4].(*big.Int)
	o.Expiry, _ = outs[5].(*big.Int)
	o.TipPLS, _ = outs[6].(*big.Int)
	o.Filled, _ = outs[7].(bool)
	o.Cancelled, _ = outs[8].(bool)
	return o, nil
}

// OpenOrders resolves a maker's ids and filters to still-live orders.
func (m *Manager) OpenOrders(ctx context.Context, maker common.Address) ([]Order, error) {
	ids, err := m.OrdersOfMaker(ctx, maker)
	if err != nil {
		return nil, err
	}
	open := make([]Order, 0, len(ids))
	for _, id := range ids {
		o, err := m.OrderByID(ctx, id)
		if err != nil {
			m.log.Debug("order lookup failed", zap.String("id", id.String()), zap.Error(err))
			continue
		}
		if o.Open() {
			open = append(open, o)
		}
	}
	return open, nil
}
