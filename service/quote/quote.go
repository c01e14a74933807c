package quote

import (
	"context"
	"strings"

	"github.com/alpacahq/gofolio/gberrors"
	"github.com/alpacahq/gofolio/models"
	"github.com/alpacahq/gofolio/price"
	"github.com/alpacahq/gofolio/utils/log"
	"golang.org/x/sync/errgroup"
)

type QuoteService interface {
	Get(ctx context.Context, symbol string) (*price.Quote, error)
	GetMany(ctx context.Context, symbols []string) (map[string]price.Quote, error)
	Symbols(ctx context.Context) ([]string, error)
}

type quoteService struct {
	QuoteService
	oracle    price.Oracle
	directory price.Directory
}

func Service(oracle price.Oracle, directory price.Directory) QuoteService {
	return &quoteService{oracle: oracle, directory: directory}
}

// Normalize trims and upper-cases a user supplied symbol.
func Normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Get validates symbol against the directory and quotes it
// once. Any oracle failure is reported as PriceUnavailable.
func (s *quoteService) Get(ctx context.Context, symbol string) (*price.Quote, error) {
	symbol = Normalize(symbol)

	if symbol == "" {
		return nil, gberrors.ValidationError.WithMsg("symbol is required")
	}

	if models.IsReservedSymbol(symbol) {
		return nil, gberrors.ValidationError.WithMsgf("%s is not a tradable symbol", symbol)
	}

	valid, err := s.directory.ValidSymbols(ctx)
	if err != nil {
		return nil, gberrors.PriceUnavailable.WithMsg("symbol directory unavailable").WithError(err)
	}

	if !valid.Contains(symbol) {
		return nil, gberrors.ValidationError.WithMsgf("unknown symbol %s", symbol)
	}

	return s.lookup(ctx, symbol)
}

// GetMany quotes every symbol concurrently. It fails closed:
// one unavailable price fails the whole call.
func (s *quoteService) GetMany(ctx context.Context, symbols []string) (map[string]price.Quote, error) {
	quotes := make([]*price.Quote, len(symbols))

	g, gctx := errgroup.WithContext(ctx)

	for i, symbol := range symbols {
		i, symbol := i, symbol
		g.Go(func() (err error) {
			quotes[i], err = s.lookup(gctx, symbol)
			return
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	m := make(map[string]price.Quote, len(symbols))
	for i, symbol := range symbols {
		m[symbol] = *quotes[i]
	}

	return m, nil
}

func (s *quoteService) Symbols(ctx context.Context) ([]string, error) {
	valid, err := s.directory.ValidSymbols(ctx)
	if err != nil {
		return nil, gberrors.PriceUnavailable.WithMsg("symbol directory unavailable").WithError(err)
	}
	return valid.Sorted(), nil
}

func (s *quoteService) lookup(ctx context.Context, symbol string) (*price.Quote, error) {
	q, err := s.oracle.Quote(ctx, symbol)
	if err != nil {
		log.Warn("price lookup failed", "symbol", symbol, "error", err)
		return nil, gberrors.PriceUnavailable.WithMsgf("price unavailable for %s", symbol).WithError(err)
	}

	if q == nil || q.Name == "" || !q.Price.IsPositive() {
		log.Warn("price lookup returned unusable quote", "symbol", symbol, "quote", q)
		return nil, gberrors.PriceUnavailable.WithMsgf("price unavailable for %s", symbol)
	}

	return &price.Quote{Symbol: symbol, Name: q.Name, Price: q.Price}, nil
}
