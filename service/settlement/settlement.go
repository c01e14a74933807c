package settlement

import (
	"context"
	"errors"

	"github.com/alpacahq/gofolio/gberrors"
	"github.com/alpacahq/gofolio/metrics"
	"github.com/alpacahq/gofolio/models"
	"github.com/alpacahq/gofolio/service/ledger"
	"github.com/alpacahq/gofolio/service/quote"
	"github.com/alpacahq/gofolio/utils/clock"
	"github.com/alpacahq/gofolio/utils/db"
	"github.com/alpacahq/gofolio/utils/gbevents"
	"github.com/alpacahq/gofolio/utils/log"
	"github.com/jinzhu/gorm"
	"github.com/shopspring/decimal"
)

type SettlementService interface {
	Buy(ctx context.Context, accountID, symbol string, shares int64) (*Result, error)
	Sell(ctx context.Context, accountID, symbol string, shares int64) (*Result, error)
	Deposit(ctx context.Context, accountID string, amount decimal.Decimal) (*Result, error)
	Withdraw(ctx context.Context, accountID string, amount decimal.Decimal) (*Result, error)
}

// Result is the account state right after a settlement
// committed, together with the ledger entry it wrote.
type Result struct {
	Cash         decimal.Decimal
	RealizedGain decimal.Decimal
	Entry        *models.LedgerEntry
}

type settlementService struct {
	SettlementService
	db        *gorm.DB
	ledger    ledger.LedgerService
	quotes    quote.QuoteService
	publisher gbevents.Publisher
}

func Service(gdb *gorm.DB, ls ledger.LedgerService, qs quote.QuoteService, publisher gbevents.Publisher) SettlementService {
	return &settlementService{
		db:        gdb,
		ledger:    ls,
		quotes:    qs,
		publisher: publisher,
	}
}

func (s *settlementService) Buy(ctx context.Context, accountID, symbol string, shares int64) (res *Result, err error) {
	defer s.record("buy", &err)

	if shares <= 0 {
		return nil, gberrors.ValidationError.WithMsg("shares must be a positive integer")
	}

	// price first, so no lock is held while the oracle answers
	q, err := s.quotes.Get(ctx, symbol)
	if err != nil {
		return nil, err
	}

	cost := q.Price.Mul(decimal.New(shares, 0)).Round(2)

	res, err = s.settle(ctx, accountID, func(srv ledger.LedgerService, acct *models.Account) (*Result, error) {
		if cost.GreaterThan(acct.Cash) {
			return nil, gberrors.InsufficientFunds.WithMsgf(
				"cannot afford %d %s for %s with %s cash",
				shares, q.Symbol, cost.StringFixed(2), acct.Cash.StringFixed(2))
		}

		return s.commit(srv, acct, acct.Cash.Sub(cost), nil, &models.LedgerEntry{
			Symbol:    q.Symbol,
			Name:      q.Name,
			Shares:    shares,
			Price:     q.Price,
			CostTotal: cost,
		})
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, gbevents.SettlementBuy, accountID, res)

	return res, nil
}

// Sell disposes of shares at the quoted price. The cost basis
// leaves the position pro rata, so the remaining shares keep
// their average cost.
func (s *settlementService) Sell(ctx context.Context, accountID, symbol string, shares int64) (res *Result, err error) {
	defer s.record("sell", &err)

	if shares <= 0 {
		return nil, gberrors.ValidationError.WithMsg("shares must be a positive integer")
	}

	q, err := s.quotes.Get(ctx, symbol)
	if err != nil {
		return nil, err
	}

	res, err = s.settle(ctx, accountID, func(srv ledger.LedgerService, acct *models.Account) (*Result, error) {
		held, basis, err := srv.SumSharesAndCost(acct.ID, q.Symbol)
		if err != nil {
			return nil, err
		}

		if shares > held {
			return nil, gberrors.InsufficientShares.WithMsgf(
				"cannot sell %d %s, holding %d", shares, q.Symbol, held)
		}

		disposed := DisposedCost(basis, shares, held)
		proceeds := q.Price.Mul(decimal.New(shares, 0))

		cash := acct.Cash.Add(proceeds.Round(2))
		realized := acct.RealizedGain.Add(proceeds.Sub(disposed))

		return s.commit(srv, acct, cash, &realized, &models.LedgerEntry{
			Symbol:    q.Symbol,
			Name:      q.Name,
			Shares:    -shares,
			Price:     q.Price,
			CostTotal: disposed.Neg(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, gbevents.SettlementSell, accountID, res)

	return res, nil
}

func (s *settlementService) Deposit(ctx context.Context, accountID string, amount decimal.Decimal) (res *Result, err error) {
	defer s.record("deposit", &err)

	if err = ValidateAmount(amount); err != nil {
		return nil, err
	}

	res, err = s.settle(ctx, accountID, func(srv ledger.LedgerService, acct *models.Account) (*Result, error) {
		return s.commit(srv, acct, acct.Cash.Add(amount), nil, &models.LedgerEntry{
			Symbol:    models.DepositSymbol,
			Name:      "Deposit",
			Price:     decimal.Zero,
			CostTotal: amount,
		})
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, gbevents.SettlementDeposit, accountID, res)

	return res, nil
}

func (s *settlementService) Withdraw(ctx context.Context, accountID string, amount decimal.Decimal) (res *Result, err error) {
	defer s.record("withdraw", &err)

	if err = ValidateAmount(amount); err != nil {
		return nil, err
	}

	res, err = s.settle(ctx, accountID, func(srv ledger.LedgerService, acct *models.Account) (*Result, error) {
		if amount.GreaterThan(acct.Cash) {
			return nil, gberrors.InsufficientFunds.WithMsgf(
				"cannot withdraw %s with %s cash", amount.StringFixed(2), acct.Cash.StringFixed(2))
		}

		return s.commit(srv, acct, acct.Cash.Sub(amount), nil, &models.LedgerEntry{
			Symbol:    models.WithdrawSymbol,
			Name:      "Withdraw",
			Price:     decimal.Zero,
			CostTotal: amount.Neg(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, gbevents.SettlementWithdraw, accountID, res)

	return res, nil
}

// settle runs fn in a transaction with the account row locked.
func (s *settlementService) settle(
	ctx context.Context,
	accountID string,
	fn func(srv ledger.LedgerService, acct *models.Account) (*Result, error)) (*Result, error) {

	var res *Result

	err := db.Transact(ctx, s.db, func(tx *gorm.DB) error {
		srv := s.ledger.WithTx(tx)

		acct, err := srv.GetAccountForUpdate(accountID)
		if err != nil {
			return err
		}

		res, err = fn(srv, acct)
		return err
	})
	if err != nil {
		return nil, ledger.StorageError(err)
	}

	return res, nil
}

// commit writes the new balances and appends entry.
func (s *settlementService) commit(
	srv ledger.LedgerService,
	acct *models.Account,
	cash decimal.Decimal,
	realized *decimal.Decimal,
	entry *models.LedgerEntry) (*Result, error) {

	if err := srv.UpdateAccount(acct.ID, &cash, realized); err != nil {
		return nil, err
	}

	entry.AccountID = acct.ID
	entry.CreatedAt = clock.Now()

	entry, err := srv.AppendEntry(entry)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Cash:         cash,
		RealizedGain: acct.RealizedGain,
		Entry:        entry,
	}
	if realized != nil {
		res.RealizedGain = *realized
	}

	return res, nil
}

func (s *settlementService) emit(ctx context.Context, name, accountID string, res *Result) {
	log.Info(
		"settled",
		"event", name,
		"account_id", accountID,
		"symbol", res.Entry.Symbol,
		"shares", res.Entry.Shares,
		"cost_total", res.Entry.CostTotal,
		"cash", res.Cash)

	gbevents.Trigger(ctx, s.publisher, &gbevents.Event{
		Name:         name,
		AccountID:    accountID,
		Symbol:       symbolOf(res.Entry),
		Shares:       res.Entry.Shares,
		Price:        res.Entry.Price,
		Amount:       res.Entry.CostTotal,
		Cash:         res.Cash,
		RealizedGain: res.RealizedGain,
		OccurredAt:   res.Entry.CreatedAt,
	})
}

func (s *settlementService) record(kind string, err *error) {
	metrics.Settlement(kind, Outcome(*err))
}

func symbolOf(e *models.LedgerEntry) string {
	if e.IsCashMovement() {
		return ""
	}
	return e.Symbol
}

// DisposedCost is the part of basis released by selling sold
// out of held shares. Closing the position releases the whole
// basis so no rounding remainder is left behind.
func DisposedCost(basis decimal.Decimal, sold, held int64) decimal.Decimal {
	if sold == held {
		return basis
	}
	return basis.Mul(decimal.New(sold, 0)).Div(decimal.New(held, 0))
}

// ValidateAmount accepts positive cash amounts with at most
// two decimal places.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return gberrors.ValidationError.WithMsg("amount must be positive")
	}
	if !amount.Equal(amount.Round(2)) {
		return gberrors.ValidationError.WithMsg("amount must have at most 2 decimal places")
	}
	return nil
}

var outcomes = []struct {
	name string
	kind *gberrors.Error
}{
	{"validation_error", gberrors.ValidationError},
	{"insufficient_funds", gberrors.InsufficientFunds},
	{"insufficient_shares", gberrors.InsufficientShares},
	{"price_unavailable", gberrors.PriceUnavailable},
	{"not_found", gberrors.NotFound},
	{"persistence_failure", gberrors.PersistenceFailure},
}

// Outcome names the result of a settlement for metrics.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	for _, o := range outcomes {
		if errors.Is(err, o.kind) {
			return o.name
		}
	}
	return "error"
}
