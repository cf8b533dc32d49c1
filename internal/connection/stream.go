package connection

import (
	"fmt"
	"strings"

	"github.com/rickgao/marketfeed/internal/model"
)

// Subscription selects one stream for one symbol.
type Subscription struct {
	Symbol   string
	Stream   string         // "trade" or "kline"
	Interval model.Interval // kline only
}

// Topic returns {lowercased-symbol}@{stream}[_{interval}]. The feed matches
// symbols case-insensitively but expects lower case in topics.
func (s Subscription) Topic() string {
	topic := strings.ToLower(s.Symbol) + "@" + s.Stream
	if s.Interval != "" {
		topic += "_" + s.Interval.String()
	}
	return topic
}

// URL returns {base}/ws/{topic}. Reconnects reuse the same URL.
func (s Subscription) URL(base string) string {
	return fmt.Sprintf("%s/ws/%s", strings.TrimRight(base, "/"), s.Topic())
}
