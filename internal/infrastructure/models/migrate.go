package models

import "gorm.io/gorm"

// All lists every table owned by the ledger service, in creation order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Wallet{},
		&LedgerEntry{},
		&Asset{},
		&AssetUnlock{},
		&Goal{},
		&SupporterTotal{},
		&Notification{},
	}
}

// AutoMigrate creates or updates the schema
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(All()...)
}
