package gbreg

import (
	"github.com/alpacahq/gofolio/gberrors"
	"github.com/alpacahq/gofolio/price"
	"github.com/alpacahq/gofolio/service/account"
	"github.com/alpacahq/gofolio/service/ledger"
	"github.com/alpacahq/gofolio/service/portfolio"
	"github.com/alpacahq/gofolio/service/quote"
	"github.com/alpacahq/gofolio/service/registry"
	"github.com/alpacahq/gofolio/service/settlement"
	"github.com/alpacahq/gofolio/utils/env"
	"github.com/alpacahq/gofolio/utils/gbevents"
	"github.com/jinzhu/gorm"
	"github.com/shopspring/decimal"
)

type gbRegistry struct {
	db           *gorm.DB
	oracle       price.Oracle
	directory    price.Directory
	publisher    gbevents.Publisher
	startingCash decimal.Decimal
}

// New wires every service around one database handle, one price
// source and one event publisher. A nil publisher drops events.
// STARTING_CASH seeds newly registered accounts.
func New(gdb *gorm.DB, oracle price.Oracle, directory price.Directory, publisher gbevents.Publisher) (registry.Registry, error) {
	startingCash, err := StartingCash()
	if err != nil {
		return nil, err
	}

	if publisher == nil {
		publisher = gbevents.Noop()
	}

	return &gbRegistry{
		db:           gdb,
		oracle:       oracle,
		directory:    directory,
		publisher:    publisher,
		startingCash: startingCash,
	}, nil
}

// StartingCash parses STARTING_CASH, treating an empty value
// as zero.
func StartingCash() (decimal.Decimal, error) {
	v := env.GetVar("STARTING_CASH")
	if v == "" {
		return decimal.Zero, nil
	}

	cash, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, gberrors.ValidationError.WithMsgf("invalid STARTING_CASH %q", v).WithError(err)
	}

	if cash.IsNegative() || !cash.Equal(cash.Round(2)) {
		return decimal.Zero, gberrors.ValidationError.WithMsgf("invalid STARTING_CASH %q", v)
	}

	return cash, nil
}

func (r *gbRegistry) Ledger() ledger.LedgerService {
	return ledger.Service()
}

func (r *gbRegistry) Quote() quote.QuoteService {
	return quote.Service(r.oracle, r.directory)
}

func (r *gbRegistry) Account() account.AccountService {
	return account.Service(r.db, r.Ledger(), r.publisher, r.startingCash)
}

func (r *gbRegistry) Settlement() settlement.SettlementService {
	return settlement.Service(r.db, r.Ledger(), r.Quote(), r.publisher)
}

func (r *gbRegistry) Portfolio() portfolio.PortfolioService {
	return portfolio.Service(r.db, r.Ledger(), r.Quote())
}
