package db

import "github.com/alwitt/lexvault/models"

// --------------------------------------------------------------------------------------
// Audit events

// AuditEventDBEntry audit event DB entry
type AuditEventDBEntry struct {
	models.AuditEvent
}

// TableName hard code table name
func (AuditEventDBEntry) TableName() string {
	return "audit_events"
}

// --------------------------------------------------------------------------------------
// Documents

// DocumentDBEntry document DB entry
type DocumentDBEntry struct {
	models.Document
}

// TableName hard code table name
func (DocumentDBEntry) TableName() string {
	return "documents"
}

// --------------------------------------------------------------------------------------
// Key shares

// KeyShareDBEntry key share DB entry
type KeyShareDBEntry struct {
	models.KeyShare
	Document DocumentDBEntry `gorm:"constraint:OnDelete:CASCADE;foreignKey:DocumentID" validate:"-"`
}

// TableName hard code table name
func (KeyShareDBEntry) TableName() string {
	return "key_shares"
}
