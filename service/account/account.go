package account

import (
	"context"
	"strings"

	"github.com/alpacahq/gofolio/gberrors"
	"github.com/alpacahq/gofolio/models"
	"github.com/alpacahq/gofolio/service/ledger"
	"github.com/alpacahq/gofolio/utils/clock"
	"github.com/alpacahq/gofolio/utils/db"
	"github.com/alpacahq/gofolio/utils/gbevents"
	"github.com/alpacahq/gofolio/utils/log"
	"github.com/jinzhu/gorm"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

type AccountService interface {
	Register(ctx context.Context, username, password, confirmation string) (*models.Account, error)
	Authenticate(ctx context.Context, username, password string) (*models.Account, error)
	ChangePassword(ctx context.Context, accountID, current, password, confirmation string) error
	Get(ctx context.Context, accountID string) (*models.Account, error)
}

type accountService struct {
	AccountService
	db           *gorm.DB
	ledger       ledger.LedgerService
	publisher    gbevents.Publisher
	startingCash decimal.Decimal
	hash         func(password []byte) ([]byte, error)
	compare      func(hash, password []byte) error
}

// Service returns an AccountService over gdb. New accounts are
// opened with startingCash, recorded as a deposit.
func Service(gdb *gorm.DB, ls ledger.LedgerService, publisher gbevents.Publisher, startingCash decimal.Decimal) AccountService {
	return &accountService{
		db:           gdb,
		ledger:       ls,
		publisher:    publisher,
		startingCash: startingCash,
		hash: func(password []byte) ([]byte, error) {
			return bcrypt.GenerateFromPassword(password, bcrypt.DefaultCost)
		},
		compare: bcrypt.CompareHashAndPassword,
	}
}

func (s *accountService) Register(ctx context.Context, username, password, confirmation string) (*models.Account, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, gberrors.ValidationError.WithMsg("must provide username")
	}

	_, err := s.ledger.WithTx(s.db).GetAccountByUsername(username)
	switch {
	case err == nil:
		return nil, gberrors.DuplicateUsername
	case !errors.Is(err, gberrors.NotFound):
		return nil, err
	}

	if err = CheckPassword(password, confirmation); err != nil {
		return nil, err
	}

	hash, err := s.hash([]byte(password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, gberrors.ValidationError.WithMsg("password must be at most 72 bytes")
		}
		return nil, errors.Wrap(err, "failed to hash password")
	}

	now := clock.Now()
	acct := &models.Account{
		Username:     username,
		PasswordHash: string(hash),
		Cash:         s.startingCash,
		RealizedGain: decimal.Zero,
		CreatedAt:    now,
	}

	err = db.Transact(ctx, s.db, func(tx *gorm.DB) error {
		srv := s.ledger.WithTx(tx)

		if _, err := srv.CreateAccount(acct); err != nil {
			return err
		}

		if !s.startingCash.IsPositive() {
			return nil
		}

		_, err := srv.AppendEntry(&models.LedgerEntry{
			AccountID: acct.ID,
			Symbol:    models.DepositSymbol,
			Name:      "Opening deposit",
			Price:     decimal.Zero,
			CostTotal: s.startingCash,
			CreatedAt: now,
		})
		return err
	})
	if err != nil {
		return nil, ledger.StorageError(err)
	}

	log.Info("account registered", "account_id", acct.ID, "username", username)

	gbevents.Trigger(ctx, s.publisher, &gbevents.Event{
		Name:         gbevents.AccountRegistered,
		AccountID:    acct.ID,
		Amount:       s.startingCash,
		Cash:         acct.Cash,
		RealizedGain: acct.RealizedGain,
		OccurredAt:   now,
	})

	return acct, nil
}

// Authenticate returns the same error for an unknown username
// and a wrong password.
func (s *accountService) Authenticate(ctx context.Context, username, password string) (*models.Account, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, gberrors.ValidationError.WithMsg("must provide username")
	}
	if password == "" {
		return nil, gberrors.ValidationError.WithMsg("must provide password")
	}

	acct, err := s.ledger.WithTx(s.db).GetAccountByUsername(username)
	if err != nil {
		if errors.Is(err, gberrors.NotFound) {
			return nil, gberrors.InvalidCredentials
		}
		return nil, err
	}

	if err = s.compare([]byte(acct.PasswordHash), []byte(password)); err != nil {
		return nil, gberrors.InvalidCredentials
	}

	return acct, nil
}

func (s *accountService) ChangePassword(ctx context.Context, accountID, current, password, confirmation string) error {
	if current == "" {
		return gberrors.ValidationError.WithMsg("must provide current password")
	}

	err := db.Transact(ctx, s.db, func(tx *gorm.DB) error {
		srv := s.ledger.WithTx(tx)

		acct, err := srv.GetAccountForUpdate(accountID)
		if err != nil {
			return err
		}

		if err = s.compare([]byte(acct.PasswordHash), []byte(current)); err != nil {
			return gberrors.WrongPassword
		}

		if err = CheckPassword(password, confirmation); err != nil {
			return err
		}

		hash, err := s.hash([]byte(password))
		if err != nil {
			if errors.Is(err, bcrypt.ErrPasswordTooLong) {
				return gberrors.ValidationError.WithMsg("password must be at most 72 bytes")
			}
			return errors.Wrap(err, "failed to hash password")
		}

		if err = srv.UpdatePasswordHash(accountID, string(hash)); err != nil {
			return err
		}

		log.Info("password changed", "account_id", accountID)

		return nil
	})

	return ledger.StorageError(err)
}

func (s *accountService) Get(ctx context.Context, accountID string) (*models.Account, error) {
	return s.ledger.WithTx(s.db).GetAccount(accountID)
}
