// Package normalize maps wire events onto canonical model events.
//
// Normalize is total over decoded wire events: a trade or closed kline yields
// an event, an open (in-progress) kline yields nothing. Filtering an open
// kline is an expected outcome, not an error.
package normalize

import (
	"fmt"
	"strings"

	"github.com/rickgao/marketfeed/internal/codec"
	"github.com/rickgao/marketfeed/internal/model"
)

// Normalize converts w into a persistable event. ok is false when the event is
// filtered (kline whose window has not closed).
func Normalize(w codec.WireEvent) (e model.Event, ok bool) {
	switch v := w.(type) {
	case codec.WireTrade:
		return Trade(v), true
	case codec.WireKline:
		if !v.Data.IsClosed {
			return nil, false
		}
		return Kline(v), true
	default:
		// codec only produces the two variants above
		panic(fmt.Sprintf("normalize: unexpected wire event %T", w))
	}
}

// Trade flattens a wire trade.
func Trade(w codec.WireTrade) model.Trade {
	return model.Trade{
		EventTime:     model.FromMillis(w.EventTime),
		Symbol:        normalizeSymbol(w.Symbol),
		TradeID:       model.ID(w.TradeID),
		Price:         w.Price,
		Quantity:      w.Quantity,
		BuyerOrderID:  model.ID(w.BuyerOrderID),
		SellerOrderID: model.ID(w.SellerOrderID),
		TradeTime:     model.FromMillis(w.TradeTime),
		IsBuyerMaker:  w.IsBuyerMaker,
	}
}

// Kline flattens a wire kline regardless of whether it is closed. Callers
// that persist history must go through Normalize instead.
func Kline(w codec.WireKline) model.Kline {
	d := w.Data
	// codec has already rejected unknown intervals
	interval, _ := model.ParseInterval(d.Interval)

	return model.Kline{
		EventTime:           model.FromMillis(w.EventTime),
		Symbol:              normalizeSymbol(w.Symbol),
		StartTime:           model.FromMillis(d.StartTime),
		CloseTime:           model.FromMillis(d.CloseTime),
		Interval:            interval,
		FirstTradeID:        model.ID(d.FirstTradeID),
		LastTradeID:         model.ID(d.LastTradeID),
		Open:                d.Open,
		Close:               d.Close,
		High:                d.High,
		Low:                 d.Low,
		BaseVolume:          d.BaseVolume,
		QuoteVolume:         d.QuoteVolume,
		TakerBuyBaseVolume:  d.TakerBuyBaseVolume,
		TakerBuyQuoteVolume: d.TakerBuyQuoteVolume,
		NumTrades:           d.NumTrades,
		IsClosed:            d.IsClosed,
	}
}

// OpenKline returns the in-progress kline carried by w, if any. Used for the
// live projection; never for history.
func OpenKline(w codec.WireEvent) (model.Kline, bool) {
	v, ok := w.(codec.WireKline)
	if !ok || v.Data.IsClosed {
		return model.Kline{}, false
	}
	return Kline(v), true
}

// The feed subscribes case-insensitively but reports symbols upper-case.
// Store keys always use the upper-case form.
func normalizeSymbol(s string) string {
	return strings.ToUpper(s)
}
