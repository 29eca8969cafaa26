// Package models - system data models
package models

import "time"

// DocumentKindENUMType document payload kind ENUM type
type DocumentKindENUMType string

const (
	// DocumentKindForm the document payload is form data serialized as JSON
	DocumentKindForm DocumentKindENUMType = "FORM"
	// DocumentKindFile the document payload is raw file bytes held in blob storage
	DocumentKindFile DocumentKindENUMType = "FILE"
)

// Document a legal document record
//
// The record never holds the document key. It only holds the ciphertext (or where
// the ciphertext lives) and the fingerprint of the key which produced it.
type Document struct {
	// ID document ID
	ID string `json:"id" gorm:"column:id;primaryKey;unique" validate:"required,uuid_rfc4122"`

	// OwnerID the account which uploaded the document
	OwnerID string `json:"owner_id" gorm:"column:owner_id;not null;index" validate:"required"`

	// Title document title
	Title string `json:"title" gorm:"column:title;not null" validate:"required"`

	// Kind the document payload kind
	Kind DocumentKindENUMType `json:"kind" gorm:"column:kind;not null" validate:"required,document_kind"`

	// EncryptedContent the ciphertext blob of a FORM document
	EncryptedContent *string `json:"encrypted_content,omitempty" gorm:"column:encrypted_content;default:null"`

	// EncryptionKeyHash fingerprint of the key which encrypted the content
	EncryptionKeyHash string `json:"encryption_key_hash" gorm:"column:encryption_key_hash;not null" validate:"required,hexadecimal"`

	// FilePath blob storage path of a FILE document ciphertext
	FilePath *string `json:"file_path,omitempty" gorm:"column:file_path;default:null"`
	// FileName original file name
	FileName string `json:"file_name,omitempty" gorm:"column:file_name"`
	// FileSize plain text size in bytes
	FileSize int64 `json:"file_size" gorm:"column:file_size" validate:"gte=0"`
	// FileMimeType detected MIME type of the plain text
	FileMimeType string `json:"file_mime_type,omitempty" gorm:"column:file_mime_type"`

	// CreatedAt entry creation timestamp
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt entry update timestamp
	UpdatedAt time.Time `json:"updated_at"`
}

// HasCiphertext whether the record points at ciphertext matching its kind
func (d *Document) HasCiphertext() bool {
	switch d.Kind {
	case DocumentKindForm:
		return d.EncryptedContent != nil && len(*d.EncryptedContent) > 0
	case DocumentKindFile:
		return d.FilePath != nil && len(*d.FilePath) > 0
	}
	return false
}
