package normalize

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/rickgao/marketfeed/internal/codec"
	"github.com/rickgao/marketfeed/internal/model"
)

func wireKline(closed bool) codec.WireKline {
	return codec.WireKline{
		EventTime: 1700000060000,
		Symbol:    "BTCUSDT",
		Data: codec.WireKlineData{
			StartTime:           1700000000000,
			CloseTime:           1700000059999,
			Interval:            "1m",
			FirstTradeID:        100,
			LastTradeID:         200,
			Open:                decimal.RequireFromString("42000.00"),
			Close:               decimal.RequireFromString("42010.50"),
			High:                decimal.RequireFromString("42020.00"),
			Low:                 decimal.RequireFromString("41990.00"),
			BaseVolume:          decimal.RequireFromString("12.5"),
			NumTrades:           101,
			IsClosed:            closed,
			QuoteVolume:         decimal.RequireFromString("525000"),
			TakerBuyBaseVolume:  decimal.RequireFromString("6.25"),
			TakerBuyQuoteVolume: decimal.RequireFromString("262500"),
		},
	}
}

func TestNormalize_Trade(t *testing.T) {
	w := codec.WireTrade{
		EventTime:     1700000000000,
		Symbol:        "btcusdt",
		TradeID:       12345,
		Price:         decimal.RequireFromString("42000.50"),
		Quantity:      decimal.RequireFromString("0.01"),
		BuyerOrderID:  1,
		SellerOrderID: 2,
		TradeTime:     1700000000050,
		IsBuyerMaker:  true,
	}

	e, ok := Normalize(w)
	require.True(t, ok)

	trade, isTrade := e.(model.Trade)
	require.True(t, isTrade, "got %T", e)

	assert.Equal(t, "BTCUSDT", trade.Symbol)
	assert.Equal(t, model.ID(12345), trade.TradeID)
	assert.Equal(t, "42000.5", trade.Price.String())
	assert.Equal(t, "0.01", trade.Quantity.String())
	assert.Equal(t, time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC), trade.EventTime)
	assert.Equal(t, time.Date(2023, 11, 14, 22, 13, 20, 50*int(time.Millisecond), time.UTC), trade.TradeTime)
	assert.Equal(t, model.ID(1), trade.BuyerOrderID)
	assert.Equal(t, model.ID(2), trade.SellerOrderID)
	assert.True(t, trade.IsBuyerMaker)
	assert.Equal(t, "trade/BTCUSDT/12345", trade.Key())
}

func TestNormalize_ClosedKline(t *testing.T) {
	e, ok := Normalize(wireKline(true))
	require.True(t, ok)

	k, isKline := e.(model.Kline)
	require.True(t, isKline, "got %T", e)

	assert.Equal(t, model.Interval1m, k.Interval)
	assert.Equal(t, int64(1700000000000), k.StartTime.UnixMilli())
	assert.Equal(t, int64(1700000059999), k.CloseTime.UnixMilli())
	assert.Equal(t, model.ID(100), k.FirstTradeID)
	assert.Equal(t, model.ID(200), k.LastTradeID)
	assert.Equal(t, "42010.5", k.Close.String())
	assert.Equal(t, int64(101), k.NumTrades)
	assert.True(t, k.IsClosed)
	assert.Equal(t, "kline/BTCUSDT/1m/1700000000000", k.Key())
}

func TestNormalize_OpenKlineFiltered(t *testing.T) {
	e, ok := Normalize(wireKline(false))
	assert.False(t, ok)
	assert.Nil(t, e)

	live, isOpen := OpenKline(wireKline(false))
	require.True(t, isOpen)
	assert.False(t, live.IsClosed)
	assert.Equal(t, "BTCUSDT", live.Symbol)

	_, isOpen = OpenKline(wireKline(true))
	assert.False(t, isOpen, "closed kline is not a live kline")
}

func TestNormalize_OpenKlineNeverPersistableProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		w := wireKline(rapid.Bool().Draw(t, "closed"))
		w.Data.Interval = rapid.SampledFrom(model.Intervals()).Draw(t, "interval").String()
		w.Data.StartTime = rapid.Int64Range(0, 1<<45).Draw(t, "start")

		e, ok := Normalize(w)
		if w.Data.IsClosed != ok {
			t.Fatalf("Normalize ok = %v for IsClosed = %v", ok, w.Data.IsClosed)
		}
		if !ok && e != nil {
			t.Fatalf("filtered kline produced event %+v", e)
		}
		if ok && !e.(model.Kline).IsClosed {
			t.Fatal("persistable kline must be closed")
		}
	})
}

func TestNormalize_DecodedFrames(t *testing.T) {
	tests := []struct {
		closed bool
		want   bool
	}{
		{closed: true, want: true},
		{closed: false, want: false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("x=%t", tt.closed), func(t *testing.T) {
			frame := fmt.Sprintf(`{"e":"kline","E":1,"s":"ETHUSDT","k":{"t":0,"T":59999,"i":"1M","f":1,"L":2,"o":"1","c":"2","h":"3","l":"0.5","v":"10","n":2,"x":%t,"q":"20","V":"5","Q":"10"}}`, tt.closed)
			w, err := codec.Decode([]byte(frame))
			require.NoError(t, err)

			e, ok := Normalize(w)
			assert.Equal(t, tt.want, ok)
			if ok {
				assert.Equal(t, model.Interval1M, e.(model.Kline).Interval)
			}
		})
	}
}
