package registry

import (
	"github.com/alpacahq/gofolio/service/account"
	"github.com/alpacahq/gofolio/service/ledger"
	"github.com/alpacahq/gofolio/service/portfolio"
	"github.com/alpacahq/gofolio/service/quote"
	"github.com/alpacahq/gofolio/service/settlement"
)

type Registry interface {
	Ledger() ledger.LedgerService
	Quote() quote.QuoteService
	Account() account.AccountService
	Settlement() settlement.SettlementService
	Portfolio() portfolio.PortfolioService
}
