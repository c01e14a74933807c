package price

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type sheetRow struct {
	Symbol string `csv:"symbol"`
	Name   string `csv:"name"`
	Price  string `csv:"price"`
}

// Sheet is an Oracle and Directory backed by a static CSV
// price sheet with a symbol,name,price header. Rows with an
// empty price list the symbol without quoting it.
type Sheet struct {
	quotes map[string]Quote
	names  map[string]string
}

// LoadSheet reads a price sheet from disk.
func LoadSheet(path string) (*Sheet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open price sheet")
	}
	defer f.Close()

	return ReadSheet(f)
}

func ReadSheet(r io.Reader) (*Sheet, error) {
	rows := []*sheetRow{}
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, errors.Wrap(err, "failed to parse price sheet")
	}

	sheet := &Sheet{
		quotes: make(map[string]Quote, len(rows)),
		names:  make(map[string]string, len(rows)),
	}

	for i, row := range rows {
		symbol := strings.ToUpper(strings.TrimSpace(row.Symbol))
		if symbol == "" {
			return nil, fmt.Errorf("price sheet row %d: missing symbol", i+1)
		}

		sheet.names[symbol] = strings.TrimSpace(row.Name)

		raw := strings.TrimSpace(row.Price)
		if raw == "" {
			continue
		}

		p, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "price sheet row %d: invalid price %q", i+1, raw)
		}

		sheet.quotes[symbol] = Quote{
			Symbol: symbol,
			Name:   sheet.names[symbol],
			Price:  p,
		}
	}

	return sheet, nil
}

// Quote returns the sheet's quote for symbol. Listed symbols
// with no usable price report an error.
func (s *Sheet) Quote(ctx context.Context, symbol string) (*Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q, ok := s.quotes[symbol]
	if !ok || !q.Price.IsPositive() {
		return nil, fmt.Errorf("no price for %s", symbol)
	}

	return &q, nil
}

func (s *Sheet) ValidSymbols(ctx context.Context) (SymbolSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	set := make(SymbolSet, len(s.names))
	for symbol := range s.names {
		set[symbol] = struct{}{}
	}
	return set, nil
}
