package models

import (
	"time"

	"github.com/gofrs/uuid"
	"github.com/jinzhu/gorm"
	"github.com/shopspring/decimal"
)

type Account struct {
	ID           string          `json:"id" gorm:"primary_key;type:varchar(36)"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	Username     string          `json:"username" gorm:"type:varchar(255);not null;unique_index"`
	PasswordHash string          `json:"-" gorm:"type:varchar(255);not null"`
	Cash         decimal.Decimal `json:"cash" gorm:"type:text;not null"`
	RealizedGain decimal.Decimal `json:"realized_gain" gorm:"type:text;not null"`
	Entries      []LedgerEntry   `json:"-" gorm:"ForeignKey:AccountID"`
}

func (a *Account) BeforeCreate(scope *gorm.Scope) error {
	if a.ID == "" {
		a.ID = uuid.Must(uuid.NewV4()).String()
	}
	return scope.SetColumn("id", a.ID)
}
