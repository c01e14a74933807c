package portfolio

import (
	"context"
	"time"

	"github.com/alpacahq/gofolio/gberrors"
	"github.com/alpacahq/gofolio/metrics"
	"github.com/alpacahq/gofolio/models"
	"github.com/alpacahq/gofolio/service/ledger"
	"github.com/alpacahq/gofolio/service/quote"
	"github.com/alpacahq/gofolio/utils/clock"
	"github.com/alpacahq/gofolio/utils/db"
	"github.com/jinzhu/gorm"
	"github.com/shopspring/decimal"
)

type PortfolioService interface {
	Snapshot(ctx context.Context, accountID string) (*Snapshot, error)
	History(ctx context.Context, accountID string, limit, offset *int) ([]models.LedgerEntry, error)
}

// Holding values one open position. AverageCost and
// PercentChange are left unrounded for further arithmetic.
type Holding struct {
	Symbol         string          `json:"symbol"`
	Name           string          `json:"name"`
	Shares         int64           `json:"shares"`
	CostBasis      decimal.Decimal `json:"cost_basis"`
	Price          decimal.Decimal `json:"price"`
	MarketValue    decimal.Decimal `json:"market_value"`
	AverageCost    decimal.Decimal `json:"average_cost"`
	UnrealizedGain decimal.Decimal `json:"unrealized_gain"`
	PercentChange  decimal.Decimal `json:"percent_change"`
}

// Weight is one slice of the allocation: a holding, or cash
// under the label "Cash". Percent is its unrounded share of
// the total value.
type Weight struct {
	Label   string          `json:"label"`
	Value   decimal.Decimal `json:"value"`
	Percent decimal.Decimal `json:"percent"`
}

type Snapshot struct {
	AccountID      string          `json:"account_id"`
	Cash           decimal.Decimal `json:"cash"`
	Holdings       []Holding       `json:"holdings"`
	UnrealizedGain decimal.Decimal `json:"unrealized_gain"`
	RealizedGain   decimal.Decimal `json:"realized_gain"`
	TotalGain      decimal.Decimal `json:"total_gain"`
	HoldingsValue  decimal.Decimal `json:"holdings_value"`
	TotalValue     decimal.Decimal `json:"total_value"`
	Allocation     []Weight        `json:"allocation"`
	AsOf           time.Time       `json:"as_of"`
}

type portfolioService struct {
	PortfolioService
	db     *gorm.DB
	ledger ledger.LedgerService
	quotes quote.QuoteService
}

func Service(gdb *gorm.DB, ls ledger.LedgerService, qs quote.QuoteService) PortfolioService {
	return &portfolioService{
		db:     gdb,
		ledger: ls,
		quotes: qs,
	}
}

var hundred = decimal.New(100, 0)

// Snapshot values the account at current prices. Every held
// symbol is quoted before anything is computed, and one missing
// price fails the whole valuation.
func (s *portfolioService) Snapshot(ctx context.Context, accountID string) (*Snapshot, error) {
	defer metrics.ValuationTiming(time.Now())

	var (
		acct      *models.Account
		positions []ledger.Position
	)

	// one transaction so cash and positions come from the
	// same ledger state
	err := db.Transact(ctx, s.db, func(tx *gorm.DB) (err error) {
		srv := s.ledger.WithTx(tx)

		if acct, err = srv.GetAccount(accountID); err != nil {
			return err
		}

		positions, err = srv.ListOpenPositions(accountID)
		return err
	})
	if err != nil {
		return nil, ledger.StorageError(err)
	}

	symbols := make([]string, len(positions))
	for i, p := range positions {
		symbols[i] = p.Symbol
	}

	quotes, err := s.quotes.GetMany(ctx, symbols)
	if err != nil {
		metrics.ValuationFailed()
		return nil, gberrors.Coerce(err, gberrors.PriceUnavailable)
	}

	snap := &Snapshot{
		AccountID:      acct.ID,
		Cash:           acct.Cash,
		Holdings:       make([]Holding, len(positions)),
		UnrealizedGain: decimal.Zero,
		RealizedGain:   acct.RealizedGain,
		HoldingsValue:  decimal.Zero,
		AsOf:           clock.Now(),
	}

	for i, p := range positions {
		h := Value(p, quotes[p.Symbol].Price)

		snap.Holdings[i] = h
		snap.UnrealizedGain = snap.UnrealizedGain.Add(h.UnrealizedGain)
		snap.HoldingsValue = snap.HoldingsValue.Add(h.MarketValue)
	}

	snap.TotalGain = snap.UnrealizedGain.Add(snap.RealizedGain)
	snap.TotalValue = snap.Cash.Add(snap.HoldingsValue)
	snap.Allocation = Allocate(snap.Holdings, snap.Cash, snap.TotalValue)

	return snap, nil
}

// CashLabel labels the cash slice of an allocation.
const CashLabel = "Cash"

// Allocate splits total across the holdings' market values and
// cash, holdings first in their given order. Every percent is
// zero when total is zero.
func Allocate(holdings []Holding, cash, total decimal.Decimal) []Weight {
	weights := make([]Weight, 0, len(holdings)+1)

	share := func(label string, value decimal.Decimal) {
		pct := decimal.Zero
		if !total.IsZero() {
			pct = value.Div(total).Mul(hundred)
		}
		weights = append(weights, Weight{Label: label, Value: value, Percent: pct})
	}

	for _, h := range holdings {
		share(h.Symbol, h.MarketValue)
	}
	share(CashLabel, cash)

	return weights
}

// Value prices one position.
func Value(p ledger.Position, price decimal.Decimal) Holding {
	shares := decimal.New(p.Shares, 0)
	marketValue := shares.Mul(price).Round(2)
	unrealized := marketValue.Sub(p.CostBasis)

	pct := decimal.Zero
	if !p.CostBasis.IsZero() {
		pct = unrealized.Div(p.CostBasis).Mul(hundred)
	}

	return Holding{
		Symbol:         p.Symbol,
		Name:           p.Name,
		Shares:         p.Shares,
		CostBasis:      p.CostBasis,
		Price:          price,
		MarketValue:    marketValue,
		AverageCost:    p.CostBasis.Div(shares),
		UnrealizedGain: unrealized,
		PercentChange:  pct,
	}
}

// History lists the account's ledger, most recent first.
func (s *portfolioService) History(ctx context.Context, accountID string, limit, offset *int) ([]models.LedgerEntry, error) {
	if (limit != nil && *limit < 0) || (offset != nil && *offset < 0) {
		return nil, gberrors.ValidationError.WithMsg("limit and offset must not be negative")
	}

	srv := s.ledger.WithTx(s.db)

	if _, err := srv.GetAccount(accountID); err != nil {
		return nil, err
	}

	return srv.ListHistory(accountID, limit, offset)
}
