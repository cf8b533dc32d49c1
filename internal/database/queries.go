package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rickgao/marketfeed/internal/model"
)

// ErrKlineOpen is returned when an in-progress kline reaches the history table.
var ErrKlineOpen = errors.New("kline is not closed")

// Queries are the store's write operations. Both are idempotent: repeating a
// call with the same event leaves exactly one row at the event's key, and
// inserted reports whether this call created it.
type Queries interface {
	UpsertTrade(ctx context.Context, t model.Trade) (inserted bool, err error)
	UpsertClosedKline(ctx context.Context, k model.Kline) (inserted bool, err error)
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// queries implements Queries on a single connection.
type queries struct {
	db execer
}

const upsertTradeSQL = `
	INSERT INTO trade (symbol, trade_id, event_time, price, quantity, buyer_order_id, seller_order_id, trade_time, is_buyer_maker)
	VALUES ($1, $2::numeric, $3, $4::numeric, $5::numeric, $6::numeric, $7::numeric, $8, $9)
	ON CONFLICT (symbol, trade_id) DO NOTHING
`

const upsertKlineSQL = `
	INSERT INTO kline (symbol, interval, start_time, close_time, event_time, first_trade_id, last_trade_id,
		open_price, close_price, high_price, low_price, base_volume, quote_volume,
		taker_buy_base_volume, taker_buy_quote_volume, num_trades)
	VALUES ($1, $2::kline_interval, $3, $4, $5, $6::numeric, $7::numeric,
		$8::numeric, $9::numeric, $10::numeric, $11::numeric, $12::numeric, $13::numeric,
		$14::numeric, $15::numeric, $16)
	ON CONFLICT (symbol, interval, start_time) DO NOTHING
`

func (q *queries) UpsertTrade(ctx context.Context, t model.Trade) (bool, error) {
	ct, err := q.db.Exec(ctx, upsertTradeSQL, tradeArgs(t)...)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (q *queries) UpsertClosedKline(ctx context.Context, k model.Kline) (bool, error) {
	if !k.IsClosed {
		return false, ErrKlineOpen
	}
	ct, err := q.db.Exec(ctx, upsertKlineSQL, klineArgs(k)...)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

// Numeric values travel as text so neither uint64 IDs nor decimals pass
// through a lossy Go or wire representation.
func tradeArgs(t model.Trade) []any {
	return []any{
		t.Symbol,
		t.TradeID.String(),
		t.EventTime,
		t.Price.String(),
		t.Quantity.String(),
		t.BuyerOrderID.String(),
		t.SellerOrderID.String(),
		t.TradeTime,
		t.IsBuyerMaker,
	}
}

func klineArgs(k model.Kline) []any {
	return []any{
		k.Symbol,
		k.Interval.String(),
		k.StartTime,
		k.CloseTime,
		k.EventTime,
		k.FirstTradeID.String(),
		k.LastTradeID.String(),
		k.Open.String(),
		k.Close.String(),
		k.High.String(),
		k.Low.String(),
		k.BaseVolume.String(),
		k.QuoteVolume.String(),
		k.TakerBuyBaseVolume.String(),
		k.TakerBuyQuoteVolume.String(),
		k.NumTrades,
	}
}
