package codec

import (
	"github.com/shopspring/decimal"
)

// Event tags carried in the "e" field.
const (
	TagTrade = "trade"
	TagKline = "kline"
)

// WireEvent is a decoded frame in feed shape. Implemented by WireTrade and
// WireKline.
type WireEvent interface {
	Tag() string
	isWire()
}

// WireTrade is the wire format for trade messages.
type WireTrade struct {
	EventTime     int64           // E, ms since epoch
	Symbol        string          // s
	TradeID       uint64          // t
	Price         decimal.Decimal // p
	Quantity      decimal.Decimal // q
	BuyerOrderID  uint64          // b
	SellerOrderID uint64          // a
	TradeTime     int64           // T, ms since epoch
	IsBuyerMaker  bool            // m
}

func (WireTrade) Tag() string { return TagTrade }
func (WireTrade) isWire()     {}

// WireKline is the wire format for kline messages. Candle fields live in the
// nested "k" object, as on the feed.
type WireKline struct {
	EventTime int64         // E
	Symbol    string        // s
	Data      WireKlineData // k
}

func (WireKline) Tag() string { return TagKline }
func (WireKline) isWire()     {}

// WireKlineData is the "k" object of a kline message.
type WireKlineData struct {
	StartTime           int64           // t
	CloseTime           int64           // T
	Interval            string          // i
	FirstTradeID        uint64          // f
	LastTradeID         uint64          // L
	Open                decimal.Decimal // o
	Close               decimal.Decimal // c
	High                decimal.Decimal // h
	Low                 decimal.Decimal // l
	BaseVolume          decimal.Decimal // v
	NumTrades           int64           // n
	IsClosed            bool            // x
	QuoteVolume         decimal.Decimal // q
	TakerBuyBaseVolume  decimal.Decimal // V
	TakerBuyQuoteVolume decimal.Decimal // Q
}
