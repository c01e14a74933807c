package migration

import (
	"testing"

	"github.com/alpacahq/gofolio/models"
	"github.com/alpacahq/gofolio/utils/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateAndRollback(t *testing.T) {
	gdb, err := db.NewDB(map[string]string{"DB_DIALECT": db.SQLite, "DB_PATH": ":memory:"})
	require.Nil(t, err)
	defer gdb.Close()

	m := Migration(gdb)
	require.Nil(t, m.Migrate())

	assert.True(t, gdb.HasTable(&models.Account{}))
	assert.True(t, gdb.HasTable(&models.LedgerEntry{}))
	assert.True(t, gdb.Dialect().HasIndex("ledger_entries", "idx_ledger_account_created"))
	assert.True(t, gdb.Dialect().HasIndex("ledger_entries", "idx_ledger_account_symbol"))

	// idempotent
	require.Nil(t, Migration(gdb).Migrate())

	require.Nil(t, Migration(gdb).RollbackLast())
	assert.False(t, gdb.Dialect().HasIndex("ledger_entries", "idx_ledger_account_created"))
}
