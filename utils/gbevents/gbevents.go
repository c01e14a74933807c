package gbevents

import (
	"context"
	"strings"
	"time"

	"github.com/alpacahq/gofolio/utils/log"
	"github.com/shopspring/decimal"
)

const (
	AccountRegistered  = "account.registered"
	SettlementBuy      = "settlement.buy"
	SettlementSell     = "settlement.sell"
	SettlementDeposit  = "settlement.deposit"
	SettlementWithdraw = "settlement.withdraw"
)

// Event describes a committed change to an account. Amount is
// the signed cost_total of the ledger entry written, and Cash
// and RealizedGain are the account's values after the commit.
type Event struct {
	Name         string          `json:"name"`
	AccountID    string          `json:"account_id"`
	Symbol       string          `json:"symbol,omitempty"`
	Shares       int64           `json:"shares,omitempty"`
	Price        decimal.Decimal `json:"price"`
	Amount       decimal.Decimal `json:"amount"`
	Cash         decimal.Decimal `json:"cash"`
	RealizedGain decimal.Decimal `json:"realized_gain"`
	OccurredAt   time.Time       `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, evt *Event) error
	Close() error
}

// Trigger publishes evt and logs, rather than returns, any
// failure. Events are sent after the change has committed, so
// a lost event must never undo it.
func Trigger(ctx context.Context, p Publisher, evt *Event) {
	if p == nil {
		return
	}

	if err := p.Publish(ctx, evt); err != nil {
		log.Error(
			"failed to publish event",
			"event", evt.Name,
			"account_id", evt.AccountID,
			"error", err)
	}
}

type noop struct{}

// Noop discards every event.
func Noop() Publisher {
	return noop{}
}

func (noop) Publish(ctx context.Context, evt *Event) error {
	return nil
}

func (noop) Close() error {
	return nil
}

// Multi fans an event out to every publisher, attempting all
// of them even when some fail.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, evt *Event) error {
	var errs multiError
	for _, p := range m {
		if err := p.Publish(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (m Multi) Close() error {
	var errs multiError
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

type multiError []error

func (e multiError) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}
