package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jinzhu/gorm"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type widget struct {
	ID   uint   `gorm:"primary_key"`
	Name string `gorm:"unique_index;not null"`
}

type DBTestSuite struct {
	suite.Suite
	db *gorm.DB
}

func TestDBTestSuite(t *testing.T) {
	suite.Run(t, new(DBTestSuite))
}

func (s *DBTestSuite) SetupTest() {
	var err error
	s.db, err = NewDB(map[string]string{"DB_DIALECT": SQLite, "DB_PATH": ":memory:"})
	require.Nil(s.T(), err)
	require.Nil(s.T(), s.db.AutoMigrate(&widget{}).Error)
}

func (s *DBTestSuite) TearDownTest() {
	s.db.Close()
}

func (s *DBTestSuite) count() (n int) {
	require.Nil(s.T(), s.db.Model(&widget{}).Count(&n).Error)
	return
}

func (s *DBTestSuite) TestTransactCommit() {
	err := Transact(context.Background(), s.db, func(tx *gorm.DB) error {
		return tx.Create(&widget{Name: "a"}).Error
	})
	assert.Nil(s.T(), err)
	assert.Equal(s.T(), 1, s.count())
}

func (s *DBTestSuite) TestTransactRollback() {
	err := Transact(context.Background(), s.db, func(tx *gorm.DB) error {
		if err := tx.Create(&widget{Name: "a"}).Error; err != nil {
			return err
		}
		return fmt.Errorf("nope")
	})
	assert.EqualError(s.T(), err, "nope")
	assert.Equal(s.T(), 0, s.count())
}

func (s *DBTestSuite) TestTransactPanic() {
	assert.Panics(s.T(), func() {
		Transact(context.Background(), s.db, func(tx *gorm.DB) error {
			tx.Create(&widget{Name: "a"})
			panic("boom")
		})
	})
	assert.Equal(s.T(), 0, s.count())
}

func (s *DBTestSuite) TestIsUniqueViolation() {
	require.Nil(s.T(), s.db.Create(&widget{Name: "a"}).Error)

	err := s.db.Create(&widget{Name: "a"}).Error
	require.NotNil(s.T(), err)
	assert.True(s.T(), IsUniqueViolation(err))
	assert.False(s.T(), IsUniqueViolation(fmt.Errorf("other")))
	assert.False(s.T(), IsUniqueViolation(nil))
}

func (s *DBTestSuite) TestLockNoopOnSQLite() {
	q := Lock(s.db, ForUpdate)
	_, ok := q.Get("gorm:query_option")
	assert.False(s.T(), ok)
}

func TestErrorClassification(t *testing.T) {
	assert.False(t, IsConnectionError(nil))
	assert.False(t, IsSerializabilityError(nil))
	assert.True(t, IsSerializabilityError(fmt.Errorf("pq: could not serialize access due to concurrent update")))
	assert.True(t, IsConnectionError(&pq.Error{Code: "08006"}))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(sqlite3.Error{Code: sqlite3.ErrBusy}))
	assert.True(t, IsRetryable(sqlite3.Error{Code: sqlite3.ErrLocked}))
	assert.True(t, IsRetryable(&pq.Error{Code: "40001"}))
	assert.True(t, IsRetryable(&pq.Error{Code: "08006"}))

	assert.False(t, IsRetryable(sqlite3.Error{Code: sqlite3.ErrConstraint}))
	assert.False(t, IsRetryable(&pq.Error{Code: "23505"}))
	assert.False(t, IsRetryable(fmt.Errorf("disk full")))
	assert.False(t, IsRetryable(nil))
}

func TestUnsupportedDialect(t *testing.T) {
	_, err := NewDB(map[string]string{"DB_DIALECT": "oracle"})
	assert.NotNil(t, err)
}
