package dbtest

import (
	"github.com/alpacahq/gofolio/migration"
	"github.com/alpacahq/gofolio/utils/db"
	"github.com/jinzhu/gorm"
	"github.com/stretchr/testify/suite"
)

// Suite gives each test suite its own private, migrated
// in-memory database.
type Suite struct {
	suite.Suite
	DB *gorm.DB
}

func (s *Suite) SetupDB() {
	if s.DB != nil {
		s.FailNow("testing database already set")
	}

	gdb, err := db.NewDB(map[string]string{
		"DB_DIALECT": db.SQLite,
		"DB_PATH":    ":memory:",
	})
	if err != nil {
		s.FailNowf("failed to open testing database", "error: %v", err)
	}

	if err := migration.Migration(gdb).Migrate(); err != nil {
		s.FailNowf("failed to migrate testing database", "error: %v", err)
	}

	s.DB = gdb
}

func (s *Suite) TeardownDB() {
	if s.DB != nil {
		s.DB.Close()
		s.DB = nil
	}
}
