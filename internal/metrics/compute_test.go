package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal-trade-lab/internal/domain"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ms(year int, month time.Month, day, hour int) int64 {
	return time.Date(year, month, day, hour, 0, 0, 0, time.UTC).UnixMilli()
}

func makeTrade(id string, side domain.Side, entry, exit string, entryTime, exitTime int64) domain.Trade {
	return domain.Trade{
		TradeID:    id,
		EntryPrice: d(entry),
		EntryTime:  entryTime,
		ExitPrice:  d(exit),
		ExitTime:   exitTime,
		Side:       side,
	}
}

// testModel is 1000 initial, 10% per trade, 20x leverage, 0.02% fee: notional 2000, fee 0.4.
func testModel() domain.CapitalModel {
	return domain.DefaultCapitalModel()
}

// zeroFeeModel makes net PnL equal raw PnL, for balance-path tests.
func zeroFeeModel() domain.CapitalModel {
	m := domain.DefaultCapitalModel()
	m.FeeRate = decimal.Zero
	return m
}

func TestComputeTradePnL_Long(t *testing.T) {
	trade := makeTrade("t1", domain.SideLong, "50000", "50500", ms(2024, 1, 1, 0), ms(2024, 1, 1, 1))

	p, err := ComputeTradePnL(trade, testModel(), time.UTC)
	require.NoError(t, err)

	assert.Equal(t, "2000", p.Notional.String())
	assert.Equal(t, "0.04", p.Quantity.String())
	assert.Equal(t, "20", p.RawPnL.String())
	assert.Equal(t, "0.4", p.Fee.String())
	assert.True(t, p.NetPnL.Equal(d("19.6")), "net = %s", p.NetPnL)
	assert.Equal(t, "2024-01", p.MonthKey)
}

func TestComputeTradePnL_Short(t *testing.T) {
	trade := makeTrade("t1", domain.SideShort, "50000", "49500", ms(2024, 1, 1, 0), ms(2024, 1, 1, 1))

	p, err := ComputeTradePnL(trade, testModel(), time.UTC)
	require.NoError(t, err)
	assert.True(t, p.NetPnL.Equal(d("19.6")), "net = %s", p.NetPnL)

	losing := makeTrade("t2", domain.SideShort, "50000", "50500", ms(2024, 1, 1, 0), ms(2024, 1, 1, 1))
	p, err = ComputeTradePnL(losing, testModel(), time.UTC)
	require.NoError(t, err)
	assert.True(t, p.NetPnL.Equal(d("-20.4")), "net = %s", p.NetPnL)
}

func TestComputeTradePnL_Unknown(t *testing.T) {
	trade := makeTrade("t1", domain.SideUnknown, "50000", "60000", ms(2024, 1, 1, 0), ms(2024, 1, 1, 1))

	p, err := ComputeTradePnL(trade, testModel(), time.UTC)
	require.NoError(t, err)
	assert.True(t, p.RawPnL.IsZero())
	assert.True(t, p.Fee.Equal(d("0.4")), "fee = %s", p.Fee)
	assert.True(t, p.NetPnL.Equal(d("-0.4")), "net = %s", p.NetPnL)
}

func TestComputeTradePnL_QuantityRounding(t *testing.T) {
	// 2000 / 30000 = 0.0666666... rounds to 0.066667
	trade := makeTrade("t1", domain.SideLong, "30000", "30300", ms(2024, 1, 1, 0), ms(2024, 1, 1, 1))

	p, err := ComputeTradePnL(trade, testModel(), time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "0.066667", p.Quantity.String())
	assert.Equal(t, "20.0001", p.RawPnL.String())
}

func TestComputeTradePnL_InvalidEntryPrice(t *testing.T) {
	for _, price := range []string{"0", "-1"} {
		trade := makeTrade("bad", domain.SideLong, price, "50500", ms(2024, 1, 1, 0), ms(2024, 1, 1, 1))
		_, err := ComputeTradePnL(trade, testModel(), time.UTC)
		assert.ErrorIs(t, err, ErrInvalidEntryPrice, "price %s", price)
	}

	missing := domain.Trade{TradeID: "missing", ExitPrice: d("1"), EntryTime: 1, ExitTime: 2, Side: domain.SideLong}
	_, err := ComputeTradePnL(missing, testModel(), time.UTC)
	assert.ErrorIs(t, err, ErrInvalidEntryPrice)
}

func TestComputeTradePnL_InvalidTimestamp(t *testing.T) {
	trade := makeTrade("bad", domain.SideLong, "50000", "50500", ms(2024, 1, 1, 0), 0)
	_, err := ComputeTradePnL(trade, testModel(), time.UTC)
	assert.ErrorIs(t, err, ErrInvalidTimestamp)
}

func TestAggregate_DrawdownKeepsPeak(t *testing.T) {
	// Balance path 1000 -> 1050 -> 980 -> 1020 within one month.
	// With notional 2000 and entry 2000, quantity is 1, so raw PnL is the price move.
	trades := []domain.Trade{
		makeTrade("t1", domain.SideLong, "2000", "2050", ms(2024, 3, 1, 0), ms(2024, 3, 1, 1)),
		makeTrade("t2", domain.SideLong, "2000", "1930", ms(2024, 3, 2, 0), ms(2024, 3, 2, 1)),
		makeTrade("t3", domain.SideLong, "2000", "2040", ms(2024, 3, 3, 0), ms(2024, 3, 3, 1)),
	}

	res, err := Aggregate(trades, zeroFeeModel(), time.UTC)
	require.NoError(t, err)

	balances := []string{"1050", "980", "1020"}
	for i, p := range res.Trades {
		assert.True(t, p.BalanceAfter.Equal(d(balances[i])), "balance %d = %s", i, p.BalanceAfter)
	}

	require.Len(t, res.Months, 1)
	march := res.Months[0]
	assert.Equal(t, "2024-03", march.MonthKey)
	assert.True(t, march.MaxDrawdown.Equal(d("70")), "drawdown = %s", march.MaxDrawdown)
	assert.True(t, march.PeakBalance.Equal(d("1050")))
	assert.True(t, march.Earnings.Equal(d("20")))
	assert.True(t, res.TotalEarnings.Equal(d("20")))
	assert.True(t, res.FinalBalance.Equal(d("1020")))
}

func TestAggregate_PeakCarriedAcrossMonths(t *testing.T) {
	// January peaks at 1100; February starts below that peak, so its first
	// trade already counts as drawdown from the carried peak.
	trades := []domain.Trade{
		makeTrade("t1", domain.SideLong, "2000", "2100", ms(2024, 1, 10, 0), ms(2024, 1, 10, 1)), // 1100
		makeTrade("t2", domain.SideLong, "2000", "1950", ms(2024, 1, 20, 0), ms(2024, 1, 20, 1)), // 1050
		makeTrade("t3", domain.SideLong, "2000", "1980", ms(2024, 2, 1, 0), ms(2024, 2, 1, 1)),   // 1030
		makeTrade("t4", domain.SideLong, "2000", "2100", ms(2024, 2, 5, 0), ms(2024, 2, 5, 1)),   // 1130
	}

	res, err := Aggregate(trades, zeroFeeModel(), time.UTC)
	require.NoError(t, err)
	require.Len(t, res.Months, 2)

	jan, feb := res.Months[0], res.Months[1]
	assert.True(t, jan.MaxDrawdown.Equal(d("50")), "jan drawdown = %s", jan.MaxDrawdown)
	assert.True(t, feb.MaxDrawdown.Equal(d("70")), "feb drawdown = %s", feb.MaxDrawdown)
	assert.True(t, feb.PeakBalance.Equal(d("1130")))
	assert.True(t, res.PeakBalance.Equal(d("1130")))
}

func TestAggregate_BucketsByExitMonth(t *testing.T) {
	// Both entries in January; second exit lands in February.
	trades := []domain.Trade{
		makeTrade("t1", domain.SideLong, "50000", "50500", ms(2024, 1, 30, 0), ms(2024, 1, 30, 5)),
		makeTrade("t2", domain.SideLong, "50000", "50500", ms(2024, 1, 31, 20), ms(2024, 2, 1, 2)),
	}

	res, err := Aggregate(trades, testModel(), time.UTC)
	require.NoError(t, err)
	require.Len(t, res.Months, 2)
	assert.Equal(t, "2024-01", res.Months[0].MonthKey)
	assert.Equal(t, "2024-02", res.Months[1].MonthKey)
	assert.Equal(t, 1, res.Months[0].Trades)
	assert.Equal(t, 1, res.Months[1].Trades)
}

func TestAggregate_SortsByExitTime(t *testing.T) {
	feb := makeTrade("feb", domain.SideLong, "50000", "50500", ms(2024, 2, 1, 0), ms(2024, 2, 1, 1))
	jan := makeTrade("jan", domain.SideShort, "50000", "50500", ms(2024, 1, 1, 0), ms(2024, 1, 1, 1))

	res, err := Aggregate([]domain.Trade{feb, jan}, testModel(), time.UTC)
	require.NoError(t, err)

	require.Len(t, res.Trades, 2)
	assert.Equal(t, "jan", res.Trades[0].Trade.TradeID)
	assert.True(t, res.Trades[0].BalanceAfter.Equal(d("979.6")))
	assert.True(t, res.Trades[1].BalanceAfter.Equal(d("999.2")))
	assert.Equal(t, []string{"2024-01", "2024-02"}, []string{res.Months[0].MonthKey, res.Months[1].MonthKey})
}

func TestAggregate_RejectsInvalidTradesAndContinues(t *testing.T) {
	trades := []domain.Trade{
		makeTrade("good", domain.SideLong, "50000", "50500", ms(2024, 1, 1, 0), ms(2024, 1, 1, 1)),
		makeTrade("zero-entry", domain.SideLong, "0", "50500", ms(2024, 1, 2, 0), ms(2024, 1, 2, 1)),
		makeTrade("bad-time", domain.SideLong, "50000", "50500", ms(2024, 1, 3, 0), -1),
	}

	res, err := Aggregate(trades, testModel(), time.UTC)
	require.NoError(t, err)

	assert.Equal(t, 1, res.TradeCount)
	assert.True(t, res.TotalEarnings.Equal(d("19.6")))
	require.Len(t, res.Rejected, 2)

	reasons := map[string]error{}
	for _, r := range res.Rejected {
		reasons[r.TradeID] = r.Reason
	}
	assert.True(t, errors.Is(reasons["zero-entry"], ErrInvalidEntryPrice))
	assert.True(t, errors.Is(reasons["bad-time"], ErrInvalidTimestamp))
	assert.Len(t, res.RejectedMessages(), 2)
}

func TestAggregate_UnknownSidePaysFeeOnly(t *testing.T) {
	trades := []domain.Trade{
		makeTrade("t1", domain.SideLong, "50000", "50500", ms(2024, 1, 1, 0), ms(2024, 1, 1, 1)),
		makeTrade("t2", domain.SideUnknown, "50000", "70000", ms(2024, 1, 2, 0), ms(2024, 1, 2, 1)),
	}

	res, err := Aggregate(trades, testModel(), time.UTC)
	require.NoError(t, err)

	assert.Equal(t, 2, res.TradeCount)
	assert.Equal(t, 1, res.UnknownSideCount)
	assert.Equal(t, 2, res.Months[0].Trades)
	// 19.6 from the LONG trade, minus the 0.4 fee on the UNKNOWN one.
	assert.True(t, res.TotalEarnings.Equal(d("19.2")), "total = %s", res.TotalEarnings)
}

func TestAggregate_TotalEqualsSumOfMonths(t *testing.T) {
	var trades []domain.Trade
	prices := []string{"50123.45", "49876.1", "51234.99", "48765.43", "50000.01", "52345.67"}
	for i := 0; i < 36; i++ {
		side := domain.SideLong
		if i%3 == 0 {
			side = domain.SideShort
		}
		entry := prices[i%len(prices)]
		exit := prices[(i+1)%len(prices)]
		month := time.Month(i%12 + 1)
		trades = append(trades, makeTrade(
			string(rune('a'+i%26))+string(rune('0'+i/26)),
			side, entry, exit,
			ms(2023+i/12, month, 3, 0), ms(2023+i/12, month, 3, 4),
		))
	}

	res, err := Aggregate(trades, testModel(), time.UTC)
	require.NoError(t, err)

	sum := decimal.Zero
	for _, m := range res.Months {
		sum = sum.Add(m.Earnings)
		assert.False(t, m.MaxDrawdown.IsNegative())
	}
	assert.True(t, sum.Equal(res.TotalEarnings), "sum %s != total %s", sum, res.TotalEarnings)
	assert.Len(t, res.Months, 36)
	assert.True(t, res.FinalBalance.Equal(res.InitialInvestment.Add(res.TotalEarnings)))
}

func TestAggregate_NoTrades(t *testing.T) {
	_, err := Aggregate(nil, testModel(), time.UTC)
	assert.ErrorIs(t, err, ErrNoTrades)

	res, err := Aggregate([]domain.Trade{
		makeTrade("bad", domain.SideLong, "0", "1", ms(2024, 1, 1, 0), ms(2024, 1, 1, 1)),
	}, testModel(), time.UTC)
	assert.ErrorIs(t, err, ErrNoTrades)
	require.NotNil(t, res)
	assert.Len(t, res.Rejected, 1)
}

func TestResult_ROI(t *testing.T) {
	res := &Result{InitialInvestment: d("1000"), TotalEarnings: d("19.6")}
	assert.True(t, res.ROI().Equal(d("1.96")), "roi = %s", res.ROI())

	res = &Result{InitialInvestment: d("1000"), TotalEarnings: d("-250")}
	assert.True(t, res.ROI().Equal(d("-25")), "roi = %s", res.ROI())
}
