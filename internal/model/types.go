package model

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// ID is an unsigned 64-bit exchange identifier (trade or order ID).
type ID uint64

// String renders the ID in base 10. The store receives IDs in this form so
// values above MaxInt64 are never truncated by a signed column or codec.
func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// Kind discriminates Event variants.
type Kind string

const (
	KindTrade Kind = "trade"
	KindKline Kind = "kline"
)

// Event is a canonical, storage-ready record. Implemented by Trade and Kline.
type Event interface {
	Kind() Kind
	// Key identifies the store row. Redelivered events produce the same key.
	Key() string
	isEvent()
}

// Trade is a single executed trade.
type Trade struct {
	EventTime     time.Time
	Symbol        string
	TradeID       ID
	Price         decimal.Decimal
	Quantity      decimal.Decimal
	BuyerOrderID  ID
	SellerOrderID ID
	TradeTime     time.Time
	IsBuyerMaker  bool
}

func (Trade) Kind() Kind { return KindTrade }
func (Trade) isEvent()   {}

// Key returns "trade/{symbol}/{trade_id}".
func (t Trade) Key() string {
	return fmt.Sprintf("trade/%s/%s", t.Symbol, t.TradeID)
}

// Kline is one candlestick. Only closed klines are persisted to history.
type Kline struct {
	EventTime           time.Time
	Symbol              string
	StartTime           time.Time
	CloseTime           time.Time
	Interval            Interval
	FirstTradeID        ID
	LastTradeID         ID
	Open                decimal.Decimal
	Close               decimal.Decimal
	High                decimal.Decimal
	Low                 decimal.Decimal
	BaseVolume          decimal.Decimal
	QuoteVolume         decimal.Decimal
	TakerBuyBaseVolume  decimal.Decimal
	TakerBuyQuoteVolume decimal.Decimal
	NumTrades           int64
	IsClosed            bool
}

func (Kline) Kind() Kind { return KindKline }
func (Kline) isEvent()   {}

// Key returns "kline/{symbol}/{interval}/{start_ms}".
func (k Kline) Key() string {
	return fmt.Sprintf("kline/%s/%s/%d", k.Symbol, k.Interval, k.StartTime.UnixMilli())
}

// FromMillis converts a feed timestamp (ms since epoch) to UTC time.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
