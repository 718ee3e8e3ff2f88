package fee

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newCalculator(t *testing.T) *Calculator {
	c, err := NewCalculator(DefaultConfig())
	require.NoError(t, err)
	return c
}

func TestCalculator_ChargeTenDollars(t *testing.T) {
	c := newCalculator(t)

	b, err := c.Charge(d("10.00"))
	require.NoError(t, err)

	assert.True(t, d("0.25").Equal(b.PlatformFee), b.PlatformFee.String())
	assert.True(t, d("0.62").Equal(b.ProcessorFee), b.ProcessorFee.String())
	assert.True(t, d("10.87").Equal(b.TotalCharge), b.TotalCharge.String())

	// processor keeps 2.9% + 0.30, the rest must cover amount + platform fee
	net := b.TotalCharge.Mul(d("0.971"))
	assert.True(t, net.GreaterThanOrEqual(d("10.55")))
}

func TestCalculator_ChargeNeverUndercharges(t *testing.T) {
	c := newCalculator(t)
	cfg := c.Config()
	keep := decimal.NewFromInt(1).Sub(cfg.ProcessorPct)

	for cents := int64(1); cents <= 5000; cents += 7 {
		amount := decimal.New(cents, -2)

		b, err := c.Charge(amount)
		require.NoError(t, err)

		require.True(t, b.TotalCharge.GreaterThanOrEqual(amount), "amount %s", amount)
		require.True(t, b.TotalCharge.Equal(amount.Add(b.PlatformFee).Add(b.ProcessorFee)))
		require.True(t, b.PlatformFee.Equal(b.PlatformFee.Round(2)))
		require.True(t, b.ProcessorFee.Equal(b.ProcessorFee.Round(2)))
		require.True(t, b.PlatformFee.GreaterThanOrEqual(amount.Mul(cfg.PlatformPct)))

		need := amount.Add(b.PlatformFee).Add(cfg.ProcessorFixed)
		require.True(t, b.TotalCharge.Mul(keep).GreaterThanOrEqual(need), "amount %s charge %s", amount, b.TotalCharge)
	}
}

func TestCalculator_ChargeKeepsSubCentRemainder(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ProcessorPct = decimal.Zero
	cfg.ProcessorFixed = d("0.300000000000000000001")
	c, err := NewCalculator(cfg)
	require.NoError(t, err)

	b, err := c.Charge(d("10.00"))
	require.NoError(t, err)

	// 0.300000000000000000001 向上取整为 0.31，不能被除法精度截断成 0.30
	assert.True(t, d("0.31").Equal(b.ProcessorFee), b.ProcessorFee.String())
	assert.True(t, d("10.56").Equal(b.TotalCharge), b.TotalCharge.String())
	assert.True(t, b.TotalCharge.GreaterThanOrEqual(d("10.25").Add(cfg.ProcessorFixed)))
}

func TestCalculator_ChargeCoversFeesForOddRates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ProcessorPct = d("0.0333333333333333333333")
	cfg.ProcessorFixed = d("0.299999999999999999999")
	c, err := NewCalculator(cfg)
	require.NoError(t, err)
	keep := decimal.NewFromInt(1).Sub(cfg.ProcessorPct)

	for cents := int64(1); cents <= 20000; cents += 13 {
		amount := decimal.New(cents, -2)
		b, err := c.Charge(amount)
		require.NoError(t, err)

		need := amount.Add(b.PlatformFee).Add(cfg.ProcessorFixed)
		require.True(t, b.TotalCharge.Mul(keep).GreaterThanOrEqual(need), "amount %s charge %s", amount, b.TotalCharge)
		require.True(t, b.ProcessorFee.Equal(b.ProcessorFee.Round(2)))
	}
}

func TestCalculator_ChargeRejectsInvalidAmounts(t *testing.T) {
	c := newCalculator(t)

	for _, amount := range []string{"0", "-1", "-0.01", "1.005"} {
		_, err := c.Charge(d(amount))
		assert.ErrorIs(t, err, ErrInvalidAmount, amount)
	}
}

func TestCalculator_Payout(t *testing.T) {
	c := newCalculator(t)

	b, err := c.Payout(d("100.00"), d("10.00"))
	require.NoError(t, err)

	assert.True(t, d("110.00").Equal(b.GrossPayout))
	assert.True(t, d("0.25").Equal(b.GatewayFee))
	assert.True(t, d("2.75").Equal(b.PlatformFee))
	assert.True(t, d("107.00").Equal(b.NetPayout), b.NetPayout.String())
	assert.True(t, b.NetPayout.LessThan(b.GrossPayout))
}

func TestCalculator_PayoutRoundsPlatformFeeUp(t *testing.T) {
	c := newCalculator(t)

	b, err := c.Payout(d("10.01"), decimal.Zero)
	require.NoError(t, err)

	// 10.01 * 0.025 = 0.25025
	assert.True(t, d("0.26").Equal(b.PlatformFee), b.PlatformFee.String())
	assert.True(t, d("9.50").Equal(b.NetPayout), b.NetPayout.String())
}

func TestCalculator_PayoutErrors(t *testing.T) {
	c := newCalculator(t)

	_, err := c.Payout(decimal.Zero, decimal.Zero)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = c.Payout(d("5.00"), d("-1.00"))
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = c.Payout(d("0.20"), decimal.Zero)
	assert.ErrorIs(t, err, ErrBelowFees)
}

func TestNewCalculator_RejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ProcessorPct = d("1")
	_, err := NewCalculator(cfg)
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.PayoutFixed = d("-0.25")
	_, err = NewCalculator(cfg)
	assert.Error(t, err)
}

func TestRoundUp(t *testing.T) {
	assert.True(t, d("0.26").Equal(RoundUp(d("0.2501"))))
	assert.True(t, d("0.25").Equal(RoundUp(d("0.25"))))
	assert.True(t, d("1.00").Equal(RoundUp(d("0.999"))))
}
