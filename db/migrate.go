package db

import (
	"context"

	"gorm.io/gorm"
)

/*
DefineTables create or update the tables holding documents, key shares, and audit events

Used by the `migrate` command and by unit tests to prepare a database.
*/
func DefineTables(_ context.Context, db *gorm.DB) error {
	return db.AutoMigrate(
		AuditEventDBEntry{},
		DocumentDBEntry{},
		KeyShareDBEntry{},
	)
}
