package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sentinel symbols recorded for cash movements. They can
// never be traded.
const (
	DepositSymbol  = "DEPOSIT"
	WithdrawSymbol = "WITHDRAW"
)

// LedgerEntry is one immutable row of an account's ledger.
// Shares is positive for a buy, negative for a sell and zero
// for a cash movement. CostTotal is the signed capital that
// moved into (or out of) the position.
type LedgerEntry struct {
	ID        uint            `json:"id" gorm:"primary_key"`
	AccountID string          `json:"account_id" gorm:"type:varchar(36);not null;index:idx_ledger_account_symbol"`
	Symbol    string          `json:"symbol" gorm:"type:varchar(16);not null;index:idx_ledger_account_symbol"`
	Name      string          `json:"name" gorm:"type:text;not null"`
	Shares    int64           `json:"shares" gorm:"not null"`
	Price     decimal.Decimal `json:"price" gorm:"type:text;not null"`
	CostTotal decimal.Decimal `json:"cost_total" gorm:"type:text;not null"`
	CreatedAt time.Time       `json:"created_at" gorm:"not null;index"`
}

func (LedgerEntry) TableName() string {
	return "ledger_entries"
}

// IsCashMovement reports whether the entry is a deposit or
// withdrawal rather than a trade.
func (e *LedgerEntry) IsCashMovement() bool {
	return IsReservedSymbol(e.Symbol)
}

func IsReservedSymbol(symbol string) bool {
	return symbol == DepositSymbol || symbol == WithdrawSymbol
}
