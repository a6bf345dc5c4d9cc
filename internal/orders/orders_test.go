package orders

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	contractAddr = common.HexToAddress("0xFEa1023F5d52536beFc71c3404E356ae81C82F4B")
	makerAddr    = common.HexToAddress("0x00000000000000000000000000000000000000A1")
	tokenIn      = common.HexToAddress("0x1111111111111111111111111111111111111111")
	tokenOut     = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

type sentTx struct {
	to    common.Address
	data  []byte
	value *big.Int
}

type fakeSender struct {
	sent []sentTx
	err  error
}

func (f *fakeSender) From() common.Address { return makerAddr }

func (f *fakeSender) Send(_ context.Context, to common.Address, data []byte, value *big.Int) (common.Hash, error) {
	if f.err != nil {
		return common.Hash{}, f.err
	}
	f.sent = append(f.sent, sentTx{to: to, data: data, value: value})
	return common.HexToHash("0xabc"), nil
}

type fakeAllowance struct {
	allowance *big.Int
}

func (f *fakeAllowance) Allowance(context.Context, common.Address, common.Address, common.Address) *big.Int {
	return f.allowance
}

type fakeCaller struct {
	ret []byte
	err error
}

func (f *fakeCaller) Call(context.Context, common.Address, []byte) ([]byte, error) {
	return f.ret, f.err
}

func newManager(t *testing.T, caller *fakeCaller, allow *fakeAllowance, sender TxSender) *Manager {
	t.Helper()
	if caller == nil {
		caller = &fakeCaller{}
	}
	if allow == nil {
		allow = &fakeAllowance{}
	}
	m, err := New(caller, allow, sender, contractAddr, 720*time.Hour, nil)
	require.NoError(t, err)
	m.now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	return m
}

func limitTestABI(t *testing.T) abi.ABI {
	t.Helper()
	a, err := abi.JSON(strings.NewReader(limitABI))
	require.NoError(t, err)
	return a
}

func TestPlaceRefusesZeroAmounts(t *testing.T) {
	m := newManager(t, nil, nil, &fakeSender{})

	_, err := m.PlaceERC20(context.Background(), tokenIn, tokenOut, big.NewInt(0), big.NewInt(1))
	assert.ErrorContains(t, err, "amountIn")

	_, err = m.PlaceERC20(context.Background(), tokenIn, tokenOut, big.NewInt(1), nil)
	assert.ErrorContains(t, err, "minOut")

	_, err = m.PlacePLS(context.Background(), tokenOut, big.NewInt(1), big.NewInt(0))
	assert.ErrorContains(t, err, "minOut")
}

func TestPlaceERC20ApprovesWhenAllowanceShort(t *testing.T) {
	sender := &fakeSender{}
	allow := &fakeAllowance{allowance: big.NewInt(5)}
	m := newManager(t, nil, allow, sender)

	_, err := m.PlaceERC20(context.Background(), tokenIn, tokenOut, big.NewInt(100), big.NewInt(90))
	require.NoError(t, err)
	require.Len(t, sender.sent, 2, "approve then place")

	assert.Equal(t, tokenIn, sender.sent[0].to)
	assert.Equal(t, contractAddr, sender.sent[1].to)
	assert.Zero(t, sender.sent[1].value.Sign())

	// placement calldata carries the 30-day expiry from the frozen clock
	a := limitTestABI(t)
	want, err := a.Pack("placeOrderERC20", tokenIn, tokenOut, big.NewInt(100), big.NewInt(90),
		big.NewInt(1_700_000_000+int64(720*time.Hour/time.Second)))
	require.NoError(t, err)
	assert.Equal(t, want, sender.sent[1].data)
}

func TestPlaceERC20SkipsApproveWhenCovered(t *testing.T) {
	sender := &fakeSender{}
	allow := &fakeAllowance{allowance: big.NewInt(1000)}
	m := newManager(t, nil, allow, sender)

	_, err := m.PlaceERC20(context.Background(), tokenIn, tokenOut, big.NewInt(100), big.NewInt(90))
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, contractAddr, sender.sent[0].to)
}

func TestPlacePLSSendsValue(t *testing.T) {
	sender := &fakeSender{}
	m := newManager(t, nil, nil, sender)

	_, err := m.PlacePLS(context.Background(), tokenOut, big.NewInt(777), big.NewInt(500))
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, big.NewInt(777), sender.sent[0].value)
}

func TestWriteOpsNeedSender(t *testing.T) {
	m := newManager(t, nil, nil, nil)

	_, err := m.PlaceERC20(context.Background(), tokenIn, tokenOut, big.NewInt(1), big.NewInt(1))
	assert.ErrorIs(t, err, errNoSender)
	_, err = m.Cancel(context.Background(), big.NewInt(1))
	assert.ErrorIs(t, err, errNoSender)
	_, err = m.Execute(context.Background(), big.NewInt(1))
	assert.ErrorIs(t, err, errNoSender)
}

func TestOrdersOfMakerDecodes(t *testing.T) {
	a := limitTestABI(t)
	raw, err := a.Methods["ordersOfMaker"].Outputs.Pack([]*big.Int{big.NewInt(3), big.NewInt(7)})
	require.NoError(t, err)
	m := newManager(t, &fakeCaller{ret: raw}, nil, nil)

	ids, err := m.OrdersOfMaker(context.Background(), makerAddr)
	require.NoError(t, err)
	assert.Equal(t, []*big.Int{big.NewInt(3), big.NewInt(7)}, ids)
}

func TestOrderByIDDecodesTuple(t *testing.T) {
	a := limitTestABI(t)
	raw, err := a.Methods["orders"].Outputs.Pack(
		makerAddr, tokenIn, tokenOut,
		big.NewInt(100), big.NewInt(90), big.NewInt(1_800_000_000), big.NewInt(2),
		false, true,
	)
	require.NoError(t, err)
	m := newManager(t, &fakeCaller{ret: raw}, nil, nil)

	o, err := m.OrderByID(context.Background(), big.NewInt(9))
	require.NoError(t, err)
	assert.Equal(t, makerAddr, o.Maker)
	assert.Equal(t, big.NewInt(100), o.AmountIn)
	assert.Equal(t, big.NewInt(90), o.MinOut)
	assert.True(t, o.Cancelled)
	assert.False(t, o.Open())
}

func TestOrderByIDCallError(t *testing.T) {
	m := newManager(t, &fakeCaller{err: errors.New("revert")}, nil, nil)
	_, err := m.OrderByID(context.Background(), big.NewInt(1))
	assert.Error(t, err)
}
