// Package normalizer converts upstream market-data records into the internal schema.
// Every function here is pure: no I/O, no clock, no shared state.
package normalizer

import (
	"strings"

	"astock_backend/internal/feature/ingest/domain/entity"
)

type prefixRule struct {
	prefix   string
	exchange entity.Exchange
	market   entity.Market
}

// "200" is checked before "0" so Shenzhen B-shares are not taken for the main board.
var prefixRules = []prefixRule{
	{"200", entity.ExchangeSZ, entity.MarketSZBShare},
	{"6", entity.ExchangeSH, entity.MarketSHMain},
	{"0", entity.ExchangeSZ, entity.MarketSZMain},
	{"3", entity.ExchangeSZ, entity.MarketChiNext},
	{"4", entity.ExchangeBJ, entity.MarketBJ},
	{"8", entity.ExchangeBJ, entity.MarketBJ},
	{"9", entity.ExchangeSH, entity.MarketSHBShare},
}

// Classify derives the exchange and market classification from the leading digits of symbol.
func Classify(symbol string) (entity.Exchange, entity.Market) {
	s := strings.TrimSpace(symbol)
	for _, r := range prefixRules {
		if strings.HasPrefix(s, r.prefix) {
			return r.exchange, r.market
		}
	}
	return entity.ExchangeUnknown, entity.MarketUnknown
}

// FullSymbol returns the exchange prefix followed by the symbol, e.g. "SH600519".
// Symbols on an unknown exchange are returned bare.
func FullSymbol(symbol string) string {
	s := strings.TrimSpace(symbol)
	ex, _ := Classify(s)
	if ex == entity.ExchangeUnknown {
		return s
	}
	return string(ex) + s
}
