package price

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
)

// Quote is a point-in-time price for one symbol.
type Quote struct {
	Symbol string          `json:"symbol"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
}

// Oracle returns the current price of a symbol. Implementations
// may call out to a network feed, so callers must not hold
// storage locks while waiting on one.
type Oracle interface {
	Quote(ctx context.Context, symbol string) (*Quote, error)
}

// Directory lists the symbols that may be quoted or traded.
type Directory interface {
	ValidSymbols(ctx context.Context) (SymbolSet, error)
}

type SymbolSet map[string]struct{}

func NewSymbolSet(symbols ...string) SymbolSet {
	set := make(SymbolSet, len(symbols))
	for _, s := range symbols {
		set[s] = struct{}{}
	}
	return set
}

func (s SymbolSet) Contains(symbol string) bool {
	_, ok := s[symbol]
	return ok
}

// Sorted returns the symbols in ascending order.
func (s SymbolSet) Sorted() []string {
	symbols := make([]string, 0, len(s))
	for sym := range s {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return symbols
}
