package account

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/alpacahq/gofolio/dbtest"
	"github.com/alpacahq/gofolio/gberrors"
	"github.com/alpacahq/gofolio/models"
	"github.com/alpacahq/gofolio/service/ledger"
	"github.com/alpacahq/gofolio/utils/gbevents"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"
)

type recorder struct {
	events []*gbevents.Event
}

func (r *recorder) Publish(ctx context.Context, evt *gbevents.Event) error {
	r.events = append(r.events, evt)
	return nil
}

func (r *recorder) Close() error {
	return nil
}

type AccountTestSuite struct {
	dbtest.Suite
	events *recorder
	srv    *accountService
}

func TestAccountTestSuite(t *testing.T) {
	suite.Run(t, new(AccountTestSuite))
}

func (s *AccountTestSuite) SetupTest() {
	s.SetupDB()
	s.events = &recorder{}
	s.srv = Service(s.DB, ledger.Service(), s.events, decimal.Zero).(*accountService)
	s.srv.hash = func(password []byte) ([]byte, error) {
		return bcrypt.GenerateFromPassword(password, bcrypt.MinCost)
	}
}

func (s *AccountTestSuite) TearDownTest() {
	s.TeardownDB()
}

func (s *AccountTestSuite) countAccounts() (n int) {
	require.Nil(s.T(), s.DB.Model(&models.Account{}).Count(&n).Error)
	return
}

func (s *AccountTestSuite) TestRegister() {
	ctx := context.Background()

	acct, err := s.srv.Register(ctx, "  alice ", "secret1!", "secret1!")
	require.Nil(s.T(), err)
	assert.Equal(s.T(), "alice", acct.Username)
	assert.NotEqual(s.T(), "secret1!", acct.PasswordHash)
	assert.True(s.T(), acct.Cash.IsZero())
	assert.True(s.T(), acct.RealizedGain.IsZero())

	got, err := s.srv.Get(ctx, acct.ID)
	require.Nil(s.T(), err)
	assert.Equal(s.T(), acct.ID, got.ID)

	require.Len(s.T(), s.events.events, 1)
	assert.Equal(s.T(), gbevents.AccountRegistered, s.events.events[0].Name)
	assert.Equal(s.T(), acct.ID, s.events.events[0].AccountID)

	var entries int
	require.Nil(s.T(), s.DB.Model(&models.LedgerEntry{}).Count(&entries).Error)
	assert.Equal(s.T(), 0, entries)
}

func (s *AccountTestSuite) TestRegisterDuplicate() {
	ctx := context.Background()

	_, err := s.srv.Register(ctx, "alice", "secret1!", "secret1!")
	require.Nil(s.T(), err)

	_, err = s.srv.Register(ctx, "alice", "other22#", "other22#")
	assert.True(s.T(), errors.Is(err, gberrors.DuplicateUsername))

	// duplicates win over a bad password
	_, err = s.srv.Register(ctx, "alice", "x", "y")
	assert.True(s.T(), errors.Is(err, gberrors.DuplicateUsername))

	assert.Equal(s.T(), 1, s.countAccounts())
	assert.Len(s.T(), s.events.events, 1)
}

func (s *AccountTestSuite) TestRegisterStartingCash() {
	s.srv.startingCash = decimal.RequireFromString("10000.00")

	acct, err := s.srv.Register(context.Background(), "bob", "secret1!", "secret1!")
	require.Nil(s.T(), err)
	assert.True(s.T(), acct.Cash.Equal(decimal.New(10000, 0)))

	entries := []models.LedgerEntry{}
	require.Nil(s.T(), s.DB.Where("account_id = ?", acct.ID).Find(&entries).Error)
	require.Len(s.T(), entries, 1)
	assert.Equal(s.T(), models.DepositSymbol, entries[0].Symbol)
	assert.Equal(s.T(), int64(0), entries[0].Shares)
	assert.True(s.T(), entries[0].CostTotal.Equal(decimal.New(10000, 0)))
}

func (s *AccountTestSuite) TestRegisterValidation() {
	ctx := context.Background()

	cases := []struct {
		username, password, confirmation, msg string
	}{
		{"", "secret1!", "secret1!", "must provide username"},
		{"carol", "", "", "must provide password"},
		{"carol", "s1!", "s1!", "password must be at least 6 characters"},
		{"carol", "secret!!", "secret!!", "password must have at least 1 number"},
		{"carol", "secret11", "secret11", "password must have at least 1 symbol"},
		{"carol", "secret1!", "", "must confirm password"},
		{"carol", "secret1!", "secret1?", "passwords do not match"},
		{"carol", strings.Repeat("a", 80) + "1!", strings.Repeat("a", 80) + "1!", "password must be at most 72 bytes"},
	}

	for _, c := range cases {
		_, err := s.srv.Register(ctx, c.username, c.password, c.confirmation)
		require.True(s.T(), errors.Is(err, gberrors.ValidationError), c.msg)
		assert.Equal(s.T(), c.msg, err.(*gberrors.Error).Message)
	}

	assert.Equal(s.T(), 0, s.countAccounts())
	assert.Empty(s.T(), s.events.events)
}

func (s *AccountTestSuite) TestAuthenticate() {
	ctx := context.Background()

	acct, err := s.srv.Register(ctx, "alice", "secret1!", "secret1!")
	require.Nil(s.T(), err)

	got, err := s.srv.Authenticate(ctx, "alice", "secret1!")
	require.Nil(s.T(), err)
	assert.Equal(s.T(), acct.ID, got.ID)

	_, err = s.srv.Authenticate(ctx, "alice", "wrong1!!")
	assert.True(s.T(), errors.Is(err, gberrors.InvalidCredentials))

	_, err = s.srv.Authenticate(ctx, "nobody", "secret1!")
	assert.True(s.T(), errors.Is(err, gberrors.InvalidCredentials))

	_, err = s.srv.Authenticate(ctx, "", "secret1!")
	assert.True(s.T(), errors.Is(err, gberrors.ValidationError))

	_, err = s.srv.Authenticate(ctx, "alice", "")
	assert.True(s.T(), errors.Is(err, gberrors.ValidationError))
}

func (s *AccountTestSuite) TestChangePassword() {
	ctx := context.Background()

	acct, err := s.srv.Register(ctx, "alice", "secret1!", "secret1!")
	require.Nil(s.T(), err)

	err = s.srv.ChangePassword(ctx, acct.ID, "wrong1!!", "newpass2@", "newpass2@")
	assert.True(s.T(), errors.Is(err, gberrors.WrongPassword))

	err = s.srv.ChangePassword(ctx, acct.ID, "secret1!", "short", "short")
	assert.True(s.T(), errors.Is(err, gberrors.ValidationError))

	err = s.srv.ChangePassword(ctx, acct.ID, "", "newpass2@", "newpass2@")
	assert.True(s.T(), errors.Is(err, gberrors.ValidationError))

	// failed attempts keep the old password
	_, err = s.srv.Authenticate(ctx, "alice", "secret1!")
	require.Nil(s.T(), err)

	require.Nil(s.T(), s.srv.ChangePassword(ctx, acct.ID, "secret1!", "newpass2@", "newpass2@"))

	_, err = s.srv.Authenticate(ctx, "alice", "secret1!")
	assert.True(s.T(), errors.Is(err, gberrors.InvalidCredentials))

	_, err = s.srv.Authenticate(ctx, "alice", "newpass2@")
	assert.Nil(s.T(), err)

	err = s.srv.ChangePassword(ctx, "missing", "secret1!", "newpass2@", "newpass2@")
	assert.True(s.T(), errors.Is(err, gberrors.NotFound))
}

func (s *AccountTestSuite) TestGetMissing() {
	_, err := s.srv.Get(context.Background(), "missing")
	assert.True(s.T(), errors.Is(err, gberrors.NotFound))
}

func TestCheckPassword(t *testing.T) {
	assert.Nil(t, CheckPassword("abc12~", "abc12~"))

	for _, sym := range PasswordSymbols {
		assert.Nil(t, CheckPassword("abcde1"+string(sym), "abcde1"+string(sym)), string(sym))
	}

	assert.NotNil(t, CheckPassword("abcde1<", "abcde1<"))
}
