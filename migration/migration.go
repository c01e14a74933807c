package migration

import (
	"github.com/alpacahq/gofolio/models"
	"github.com/jinzhu/gorm"
	gormigrate "gopkg.in/gormigrate.v1"
)

// Migration contains all of the incremental migrations that the database
// requires to keep its schema up to date with the gofolio models.
func Migration(db *gorm.DB) *gormigrate.Gormigrate {
	return gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		// initial migration
		{
			ID: "201904021030",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&models.Account{}).Error; err != nil {
					return err
				}
				return tx.AutoMigrate(&models.LedgerEntry{}).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.DropTableIfExists(&models.LedgerEntry{}, &models.Account{}).Error
			},
		},
		// history is read newest first per account
		{
			ID: "201904091415",
			Migrate: func(tx *gorm.DB) error {
				return tx.Model(&models.LedgerEntry{}).
					AddIndex("idx_ledger_account_created", "account_id", "created_at").Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Model(&models.LedgerEntry{}).
					RemoveIndex("idx_ledger_account_created").Error
			},
		},
	})
}
