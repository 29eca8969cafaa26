package models

import "time"

// KeyShare a time-bounded grant of one document's key to another account
type KeyShare struct {
	// ID share ID
	ID string `json:"id" gorm:"column:id;primaryKey;unique" validate:"required,uuid_rfc4122"`

	// DocumentID the shared document
	DocumentID string `json:"document_id" gorm:"column:document_id;not null;index:idx_share_lookup" validate:"required,uuid_rfc4122"`

	// SharedBy the account granting access
	SharedBy string `json:"shared_by" gorm:"column:shared_by;not null" validate:"required"`

	// SharedWith the recipient account
	SharedWith string `json:"shared_with" gorm:"column:shared_with;not null;index:idx_share_lookup" validate:"required,nefield=SharedBy"`

	// EncKeyMaterial the document key wrapped with the server primary RSA key
	EncKeyMaterial []byte `json:"-" gorm:"column:enc_key_material;not null" validate:"required"`

	// ExpiresAt when the share stops yielding the key. Nil never expires.
	ExpiresAt *time.Time `json:"expires_at,omitempty" gorm:"column:expires_at;default:null"`

	// RevokedAt when the owner revoked the share
	RevokedAt *time.Time `json:"revoked_at,omitempty" gorm:"column:revoked_at;default:null"`

	// CreatedAt entry creation timestamp
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt entry update timestamp
	UpdatedAt time.Time `json:"updated_at"`
}

// ShareDenialReasonENUMType why a share did not yield a key
type ShareDenialReasonENUMType string

const (
	// ShareDenialNone the share is live
	ShareDenialNone ShareDenialReasonENUMType = ""
	// ShareDenialNotFound no share exists for the caller
	ShareDenialNotFound ShareDenialReasonENUMType = "NOT_FOUND"
	// ShareDenialExpired the share expired
	ShareDenialExpired ShareDenialReasonENUMType = "EXPIRED"
	// ShareDenialRevoked the share was revoked
	ShareDenialRevoked ShareDenialReasonENUMType = "REVOKED"
)

// LiveAt check whether the share can yield the key at a point in time
//
// The row may outlive its validity for audit purposes, so callers must always pass the
// current clock reading rather than a cached judgement.
func (s *KeyShare) LiveAt(now time.Time) ShareDenialReasonENUMType {
	if s.RevokedAt != nil {
		return ShareDenialRevoked
	}
	if s.ExpiresAt != nil && !now.Before(*s.ExpiresAt) {
		return ShareDenialExpired
	}
	return ShareDenialNone
}

// Redacted copy of the share without key material
func (s KeyShare) Redacted() KeyShare {
	s.EncKeyMaterial = nil
	return s
}
