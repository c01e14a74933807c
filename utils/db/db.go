package db

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alpacahq/gofolio/utils/env"
	"github.com/alpacahq/gofolio/utils/log"
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const (
	Postgres = "postgres"
	SQLite   = "sqlite3"

	ForUpdate = "FOR UPDATE"
)

/*
NewDB opens the database configured by the environment.
Optionally pass in a map of options, such as:

	[DB_DIALECT]sqlite3
	[DB_PATH]/tmp/gofolio.db
	[PGHOST]localhost

These override the settings made via environment variables.
*/
func NewDB(optionsList ...map[string]string) (dbT *gorm.DB, err error) {
	opts := map[string]string{}
	for _, key := range []string{
		"DB_DIALECT", "DB_PATH",
		"PGHOST", "PGPORT", "PGUSER", "PGDATABASE", "PGPASSWORD", "PGSSLMODE",
		"LOG_DB", "DB_MAX_OPEN_CONNS", "DB_MAX_IDLE_CONNS",
	} {
		opts[key] = env.GetVar(key)
	}

	if len(optionsList) != 0 {
		for key, val := range optionsList[0] {
			opts[key] = val
		}
	}

	dialect := opts["DB_DIALECT"]
	if dialect == "" {
		dialect = SQLite
	}

	switch dialect {
	case Postgres:
		dbT, err = openPostgres(opts)
	case SQLite:
		dbT, err = openSQLite(opts)
	default:
		return nil, fmt.Errorf("unsupported DB_DIALECT %q", dialect)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s database", dialect)
	}

	logDB, _ := strconv.ParseBool(opts["LOG_DB"])
	dbT.LogMode(logDB)

	return dbT, nil
}

func openPostgres(opts map[string]string) (*gorm.DB, error) {
	sslmode := opts["PGSSLMODE"]
	if sslmode == "" {
		sslmode = "disable"
	}

	params := fmt.Sprintf(
		"host=%v user=%v dbname=%v sslmode=%v password=%v",
		opts["PGHOST"], opts["PGUSER"], opts["PGDATABASE"], sslmode, opts["PGPASSWORD"],
	)
	if opts["PGPORT"] != "" {
		params = fmt.Sprintf("%v port=%v", params, opts["PGPORT"])
	}

	dbT, err := gorm.Open(Postgres, params)
	if err != nil {
		return nil, err
	}

	// default = 20 (Go's default is 0 == unlimited)
	dbT.DB().SetMaxOpenConns(20)
	if v := opts["DB_MAX_OPEN_CONNS"]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			log.Warn("parse error DB_MAX_OPEN_CONNS", "error", err)
		} else {
			dbT.DB().SetMaxOpenConns(n)
			log.Debug("set max open connections", "value", n)
		}
	}

	if v := opts["DB_MAX_IDLE_CONNS"]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			log.Warn("parse error DB_MAX_IDLE_CONNS", "error", err)
		} else {
			dbT.DB().SetMaxIdleConns(n)
		}
	}

	// so it doesn't reuse stale connections
	dbT.DB().SetConnMaxLifetime(30 * time.Minute)

	return dbT, nil
}

// SQLiteDSN builds a DSN whose transactions take the write
// lock at BEGIN, so concurrent settlements queue up instead
// of failing on lock upgrade.
func SQLiteDSN(path string, memory bool) string {
	if memory {
		return fmt.Sprintf("file:%s?mode=memory&cache=shared&_txlock=immediate&_busy_timeout=5000&_foreign_keys=1", path)
	}
	return fmt.Sprintf("file:%s?_txlock=immediate&_busy_timeout=5000&_foreign_keys=1", path)
}

func openSQLite(opts map[string]string) (*gorm.DB, error) {
	path := opts["DB_PATH"]
	if path == "" {
		path = "gofolio.db"
	}

	memory := path == ":memory:"
	if memory {
		path = fmt.Sprintf("gofolio_%d", time.Now().UnixNano())
	}

	dbT, err := gorm.Open(SQLite, SQLiteDSN(path, memory))
	if err != nil {
		return nil, err
	}

	// sqlite serializes writers anyway, and a private memory
	// database only lives as long as its connection
	dbT.DB().SetMaxOpenConns(1)

	return dbT, nil
}

// Transact runs fn inside a transaction on db. The transaction
// commits when fn returns nil and rolls back on an error or a
// panic, which is re-raised after the rollback.
func Transact(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) (err error) {
	tx := db.BeginTx(ctx, nil)
	if tx.Error != nil {
		return tx.Error
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}

	return tx.Commit().Error
}

// Lock applies a row lock to q on dialects that support one.
// SQLite has no row locks; its immediate transactions already
// hold the database write lock.
func Lock(q *gorm.DB, lock string) *gorm.DB {
	if q.Dialect().GetName() != Postgres {
		return q
	}
	return q.Set("gorm:query_option", lock)
}

// IsConnectionError returns true if the supplied error
// is a connection related error based on PostgreSQL
// connection exceptions class. See:
// http://www.postgresql.org/docs/9.4/static/errcodes-appendix.html#ERRCODES-TABLE
// for details.
func IsConnectionError(err error) bool {
	return pqErrorClass(err) == "08"
}

// IsUniqueViolation reports whether err was raised by a
// unique index on either dialect.
func IsUniqueViolation(err error) bool {
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	if liteErr, ok := errors.Cause(err).(sqlite3.Error); ok {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// IsSerializabilityError returns true if the supplied error
// is due to a serializability failure in the DB.
func IsSerializabilityError(err error) bool {
	if err == nil {
		return false
	}
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code == "40001" {
		return true
	}
	return strings.Contains(err.Error(), "could not serialize access due to concurrent update")
}

// IsRetryable reports whether err left no trace and the
// operation can simply be resubmitted: a serialization
// failure, a lost connection, or SQLite finding the database
// busy or locked.
func IsRetryable(err error) bool {
	if liteErr, ok := errors.Cause(err).(sqlite3.Error); ok {
		return liteErr.Code == sqlite3.ErrBusy || liteErr.Code == sqlite3.ErrLocked
	}
	return IsSerializabilityError(err) || IsConnectionError(err)
}

func pqErrorClass(err error) pq.ErrorCode {
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok && len(pqErr.Code) >= 2 {
		return pqErr.Code[0:2]
	}
	return ""
}
