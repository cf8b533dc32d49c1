package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/bytedance/sonic"

	"github.com/rickgao/marketfeed/internal/model"
)

// api is the JSON implementation used for frames. ConfigStd keeps
// encoding/json semantics (including json.Unmarshaler on decimals).
var api = sonic.ConfigStd

// object is a JSON object split into raw members. Lookups are exact, which
// matters because the feed uses keys that differ only by case ("t"/"T").
type object map[string]json.RawMessage

// Decode parses one frame into a WireTrade or WireKline.
// Frames that are not valid UTF-8 are rejected rather than having bad
// sequences replaced, so a key is never built from altered text.
func Decode(raw []byte) (WireEvent, error) {
	if !utf8.Valid(raw) {
		return nil, newDecodeError(raw, ErrMalformed, "invalid UTF-8")
	}
	obj, err := parseObject(raw)
	if err != nil {
		return nil, newDecodeError(raw, ErrMalformed, err.Error())
	}

	var tag string
	if err := obj.field("e", &tag); err != nil {
		return nil, newDecodeError(raw, err, err.Error())
	}

	switch tag {
	case TagTrade:
		w, err := decodeTrade(obj)
		if err != nil {
			return nil, newDecodeError(raw, err, "trade: "+err.Error())
		}
		return w, nil

	case TagKline:
		w, err := decodeKline(obj)
		if err != nil {
			return nil, newDecodeError(raw, err, "kline: "+err.Error())
		}
		return w, nil

	default:
		return nil, newDecodeError(raw, ErrUnknownEvent, fmt.Sprintf("unknown event type %q", tag))
	}
}

func newDecodeError(raw []byte, err error, cause string) *DecodeError {
	return &DecodeError{
		Raw:   bytes.Clone(raw),
		Cause: cause,
		Err:   err,
	}
}

func parseObject(data []byte) (object, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("expected JSON object")
	}
	var obj object
	if err := api.Unmarshal(trimmed, &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// field decodes the member named key into dst. Absent and null members are
// both reported as missing.
func (o object) field(key string, dst any) error {
	v, ok := o[key]
	if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
		return fmt.Errorf("%w %q", ErrMissingField, key)
	}
	if err := api.Unmarshal(v, dst); err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidField, key, err)
	}
	return nil
}

// member pairs an object key with its decode target.
type member struct {
	key string
	dst any
}

// decode fills members in order, stopping at the first failure.
func (o object) decode(members ...member) error {
	for _, m := range members {
		if err := o.field(m.key, m.dst); err != nil {
			return err
		}
	}
	return nil
}

func decodeTrade(obj object) (WireTrade, error) {
	var w WireTrade
	err := obj.decode(
		member{"E", &w.EventTime},
		member{"s", &w.Symbol},
		member{"t", &w.TradeID},
		member{"p", &w.Price},
		member{"q", &w.Quantity},
		member{"b", &w.BuyerOrderID},
		member{"a", &w.SellerOrderID},
		member{"T", &w.TradeTime},
		member{"m", &w.IsBuyerMaker},
	)
	if err != nil {
		return WireTrade{}, err
	}
	if w.Symbol == "" {
		return WireTrade{}, fmt.Errorf("%w %q: empty symbol", ErrInvalidField, "s")
	}
	return w, nil
}

func decodeKline(obj object) (WireKline, error) {
	var w WireKline
	err := obj.decode(
		member{"E", &w.EventTime},
		member{"s", &w.Symbol},
	)
	if err != nil {
		return WireKline{}, err
	}
	if w.Symbol == "" {
		return WireKline{}, fmt.Errorf("%w %q: empty symbol", ErrInvalidField, "s")
	}

	var k json.RawMessage
	if err := obj.field("k", &k); err != nil {
		return WireKline{}, err
	}
	data, err := parseObject(k)
	if err != nil {
		return WireKline{}, fmt.Errorf("%w %q: %v", ErrInvalidField, "k", err)
	}

	d := &w.Data
	err = data.decode(
		member{"t", &d.StartTime},
		member{"T", &d.CloseTime},
		member{"i", &d.Interval},
		member{"f", &d.FirstTradeID},
		member{"L", &d.LastTradeID},
		member{"o", &d.Open},
		member{"c", &d.Close},
		member{"h", &d.High},
		member{"l", &d.Low},
		member{"v", &d.BaseVolume},
		member{"n", &d.NumTrades},
		member{"x", &d.IsClosed},
		member{"q", &d.QuoteVolume},
		member{"V", &d.TakerBuyBaseVolume},
		member{"Q", &d.TakerBuyQuoteVolume},
	)
	if err != nil {
		return WireKline{}, fmt.Errorf("k.%w", err)
	}
	if _, err := model.ParseInterval(d.Interval); err != nil {
		return WireKline{}, fmt.Errorf("%w %q: %v", ErrInvalidField, "k.i", err)
	}
	return w, nil
}
