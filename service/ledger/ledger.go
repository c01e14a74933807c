package ledger

import (
	"errors"
	"math"
	"sort"

	"github.com/alpacahq/gofolio/gberrors"
	"github.com/alpacahq/gofolio/models"
	"github.com/alpacahq/gofolio/utils/clock"
	"github.com/alpacahq/gofolio/utils/db"
	"github.com/jinzhu/gorm"
	"github.com/shopspring/decimal"
)

// LedgerService is the only component that reads or writes
// accounts and ledger entries. Every method runs on the handle
// passed to WithTx.
type LedgerService interface {
	GetAccount(accountID string) (*models.Account, error)
	GetAccountForUpdate(accountID string) (*models.Account, error)
	GetAccountByUsername(username string) (*models.Account, error)
	CreateAccount(acct *models.Account) (*models.Account, error)
	UpdateAccount(accountID string, cash, realized *decimal.Decimal) error
	UpdatePasswordHash(accountID, hash string) error
	AppendEntry(entry *models.LedgerEntry) (*models.LedgerEntry, error)
	SumSharesAndCost(accountID, symbol string) (int64, decimal.Decimal, error)
	ListOpenPositions(accountID string) ([]Position, error)
	ListHistory(accountID string, limit, offset *int) ([]models.LedgerEntry, error)
	WithTx(tx *gorm.DB) LedgerService
}

// Position is the aggregate of an account's entries for one
// symbol.
type Position struct {
	Symbol    string
	Name      string
	Shares    int64
	CostBasis decimal.Decimal
}

type ledgerService struct {
	LedgerService
	tx *gorm.DB
}

func Service() LedgerService {
	return &ledgerService{}
}

func (s *ledgerService) WithTx(tx *gorm.DB) LedgerService {
	return &ledgerService{tx: tx}
}

func (s *ledgerService) GetAccount(accountID string) (*models.Account, error) {
	return s.getAccount(s.tx, "id = ?", accountID)
}

// GetAccountForUpdate reads the account and locks its row until
// the surrounding transaction ends.
func (s *ledgerService) GetAccountForUpdate(accountID string) (*models.Account, error) {
	return s.getAccount(db.Lock(s.tx, db.ForUpdate), "id = ?", accountID)
}

func (s *ledgerService) GetAccountByUsername(username string) (*models.Account, error) {
	return s.getAccount(s.tx, "username = ?", username)
}

func (s *ledgerService) getAccount(q *gorm.DB, where string, arg interface{}) (*models.Account, error) {
	acct := &models.Account{}

	q = q.Where(where, arg).First(acct)

	if q.RecordNotFound() {
		return nil, gberrors.NotFound.WithMsg("account not found")
	}

	if q.Error != nil {
		return nil, StorageError(q.Error)
	}

	return acct, nil
}

func (s *ledgerService) CreateAccount(acct *models.Account) (*models.Account, error) {
	if acct.CreatedAt.IsZero() {
		acct.CreatedAt = clock.Now()
	}

	if err := s.tx.Create(acct).Error; err != nil {
		if db.IsUniqueViolation(err) {
			return nil, gberrors.DuplicateUsername.WithError(err)
		}
		return nil, StorageError(err)
	}

	return acct, nil
}

// UpdateAccount writes whichever of cash and realized gain
// are non-nil.
func (s *ledgerService) UpdateAccount(accountID string, cash, realized *decimal.Decimal) error {
	updates := map[string]interface{}{}

	if cash != nil {
		updates["cash"] = *cash
	}

	if realized != nil {
		updates["realized_gain"] = *realized
	}

	if len(updates) == 0 {
		return nil
	}

	return s.update(accountID, updates)
}

func (s *ledgerService) UpdatePasswordHash(accountID, hash string) error {
	return s.update(accountID, map[string]interface{}{"password_hash": hash})
}

func (s *ledgerService) update(accountID string, updates map[string]interface{}) error {
	updates["updated_at"] = clock.Now()

	q := s.tx.Model(&models.Account{}).Where("id = ?", accountID).Updates(updates)

	if q.Error != nil {
		return StorageError(q.Error)
	}

	if q.RowsAffected == 0 {
		return gberrors.NotFound.WithMsg("account not found")
	}

	return nil
}

// AppendEntry inserts a new ledger entry. Entries are never
// updated afterwards.
func (s *ledgerService) AppendEntry(entry *models.LedgerEntry) (*models.LedgerEntry, error) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = clock.Now()
	}

	if err := s.tx.Create(entry).Error; err != nil {
		return nil, StorageError(err)
	}

	return entry, nil
}

// SumSharesAndCost returns the net holding and cost basis of
// symbol over the account's full history.
func (s *ledgerService) SumSharesAndCost(accountID, symbol string) (int64, decimal.Decimal, error) {
	entries := []models.LedgerEntry{}

	q := s.tx.
		Where("account_id = ? AND symbol = ?", accountID, symbol).
		Find(&entries)

	if q.Error != nil {
		return 0, decimal.Zero, StorageError(q.Error)
	}

	var shares int64
	cost := decimal.Zero

	for _, e := range entries {
		shares += e.Shares
		cost = cost.Add(e.CostTotal)
	}

	return shares, cost, nil
}

// ListOpenPositions folds the account's trade entries by symbol
// and returns those with a positive net holding, ordered by
// symbol. The name is taken from the latest entry.
func (s *ledgerService) ListOpenPositions(accountID string) ([]Position, error) {
	entries := []models.LedgerEntry{}

	q := s.tx.
		Where("account_id = ? AND symbol NOT IN (?)", accountID,
			[]string{models.DepositSymbol, models.WithdrawSymbol}).
		Order("created_at ASC, id ASC").
		Find(&entries)

	if q.Error != nil {
		return nil, StorageError(q.Error)
	}

	bySymbol := map[string]*Position{}

	for _, e := range entries {
		p, ok := bySymbol[e.Symbol]
		if !ok {
			p = &Position{Symbol: e.Symbol, CostBasis: decimal.Zero}
			bySymbol[e.Symbol] = p
		}
		p.Name = e.Name
		p.Shares += e.Shares
		p.CostBasis = p.CostBasis.Add(e.CostTotal)
	}

	positions := []Position{}
	for _, p := range bySymbol {
		if p.Shares > 0 {
			positions = append(positions, *p)
		}
	}

	sort.Slice(positions, func(i, j int) bool {
		return positions[i].Symbol < positions[j].Symbol
	})

	return positions, nil
}

// ListHistory returns the account's entries, most recent first.
func (s *ledgerService) ListHistory(accountID string, limit, offset *int) ([]models.LedgerEntry, error) {
	entries := []models.LedgerEntry{}

	q := s.tx.Where("account_id = ?", accountID)

	if limit != nil {
		q = q.Limit(*limit)
	}

	if offset != nil {
		// sqlite rejects OFFSET without LIMIT
		if limit == nil {
			q = q.Limit(math.MaxInt32)
		}
		q = q.Offset(*offset)
	}

	q = q.Order("created_at DESC, id DESC").Find(&entries)

	if q.Error != nil {
		return nil, StorageError(q.Error)
	}

	return entries, nil
}

// StorageError reports a storage failure as a PersistenceFailure.
// Errors that already carry a code pass through unchanged. Lock
// contention and dropped connections leave nothing behind, so
// their message asks for the operation to be resubmitted.
func StorageError(err error) error {
	if err == nil {
		return nil
	}

	var coded *gberrors.Error
	if errors.As(err, &coded) {
		return err
	}

	if db.IsRetryable(err) {
		return gberrors.PersistenceFailure.WithMsg("storage is busy, retry the operation").WithError(err)
	}

	return gberrors.PersistenceFailure.WithError(err)
}
