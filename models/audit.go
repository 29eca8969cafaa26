package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/datatypes"
)

// AuditEventTypeENUMType audit event type ENUM value type
type AuditEventTypeENUMType string

const (
	// AuditEventTypeKeyGenerated a document key was generated or accepted
	AuditEventTypeKeyGenerated AuditEventTypeENUMType = "KEY_GENERATED"

	// AuditEventTypeDocumentStored new encrypted document committed
	AuditEventTypeDocumentStored AuditEventTypeENUMType = "DOCUMENT_STORED"

	// AuditEventTypeDocumentUpdated document re-encrypted with new content
	AuditEventTypeDocumentUpdated AuditEventTypeENUMType = "DOCUMENT_UPDATED"

	// AuditEventTypeDocumentDeleted document removed
	AuditEventTypeDocumentDeleted AuditEventTypeENUMType = "DOCUMENT_DELETED"

	// AuditEventTypeKeyShared document key shared with another account
	AuditEventTypeKeyShared AuditEventTypeENUMType = "KEY_SHARED"

	// AuditEventTypeKeyShareRevoked key share revoked by the owner
	AuditEventTypeKeyShareRevoked AuditEventTypeENUMType = "KEY_SHARE_REVOKED"

	// AuditEventTypeKeyShareAccessed recipient fetched a shared key
	AuditEventTypeKeyShareAccessed AuditEventTypeENUMType = "KEY_SHARE_ACCESSED"

	// AuditEventTypeKeyShareDenied shared key fetch denied
	AuditEventTypeKeyShareDenied AuditEventTypeENUMType = "KEY_SHARE_DENIED"

	// AuditEventTypeDecryptSucceeded document decrypted
	AuditEventTypeDecryptSucceeded AuditEventTypeENUMType = "DECRYPT_SUCCEEDED"

	// AuditEventTypeDecryptFailed document decryption attempt failed
	AuditEventTypeDecryptFailed AuditEventTypeENUMType = "DECRYPT_FAILED"
)

// AuditEvent recording of a security relevant event
//
// Neither the metadata nor any other field may ever carry key text or plain text.
type AuditEvent struct {
	// ID audit entry ID
	ID string `json:"id" gorm:"column:id;primaryKey;unique" validate:"required"`
	// EventType audit event type
	EventType AuditEventTypeENUMType `json:"type" gorm:"column:type;not null;index" validate:"required,audit_event_type"`
	// ActorID the account which triggered the event
	ActorID string `json:"actor_id" gorm:"column:actor_id;not null" validate:"required"`
	// DocumentID the document the event relates to
	DocumentID string `json:"document_id,omitempty" gorm:"column:document_id;index"`
	// Metadata a metadata relating to the event
	Metadata datatypes.JSON `json:"metadata,omitempty" gorm:"column:metadata;default:null"`
	// CreatedAt entry creation timestamp
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt entry update timestamp
	UpdatedAt time.Time `json:"updated_at"`
}

// ParseMetadata parse the metadata based on the event type
func (a AuditEvent) ParseMetadata(validator *validator.Validate) (interface{}, error) {
	if len(a.Metadata) == 0 {
		return nil, nil
	}
	switch a.EventType {
	case AuditEventTypeKeyGenerated:
		var parsed AuditKeyGenerated
		if err := json.Unmarshal(a.Metadata, &parsed); err != nil {
			return nil, fmt.Errorf("audit event '%s' metadata parse failed [%w]", a.EventType, err)
		}
		return parsed, validator.Struct(&parsed)

	case AuditEventTypeKeyShared:
		fallthrough
	case AuditEventTypeKeyShareRevoked:
		fallthrough
	case AuditEventTypeKeyShareAccessed:
		fallthrough
	case AuditEventTypeKeyShareDenied:
		var parsed AuditKeyShareRelated
		if err := json.Unmarshal(a.Metadata, &parsed); err != nil {
			return nil, fmt.Errorf("audit event '%s' metadata parse failed [%w]", a.EventType, err)
		}
		return parsed, validator.Struct(&parsed)

	case AuditEventTypeDecryptSucceeded:
		fallthrough
	case AuditEventTypeDecryptFailed:
		var parsed AuditDecryptRelated
		if err := json.Unmarshal(a.Metadata, &parsed); err != nil {
			return nil, fmt.Errorf("audit event '%s' metadata parse failed [%w]", a.EventType, err)
		}
		return parsed, validator.Struct(&parsed)

	case AuditEventTypeDocumentStored:
		fallthrough
	case AuditEventTypeDocumentUpdated:
		fallthrough
	case AuditEventTypeDocumentDeleted:
		var parsed AuditDocumentRelated
		if err := json.Unmarshal(a.Metadata, &parsed); err != nil {
			return nil, fmt.Errorf("audit event '%s' metadata parse failed [%w]", a.EventType, err)
		}
		return parsed, validator.Struct(&parsed)
	}
	return nil, nil
}

// AuditKeyGenerated metadata of a key generation event
type AuditKeyGenerated struct {
	// Mode how the key was produced
	Mode KeyModeENUMType `json:"mode" validate:"required,key_mode"`
	// Fingerprint fingerprint of the new key
	Fingerprint string `json:"fingerprint" validate:"required,hexadecimal"`
}

// AuditKeyShareRelated metadata of key share events
type AuditKeyShareRelated struct {
	// ShareID the key share, when one was found
	ShareID string `json:"share_id,omitempty" validate:"omitempty,uuid_rfc4122"`
	// Recipient the account the key is shared with
	Recipient string `json:"recipient" validate:"required"`
	// Reason why access was denied
	Reason ShareDenialReasonENUMType `json:"reason,omitempty"`
}

// AuditDecryptRelated metadata of decryption events
type AuditDecryptRelated struct {
	// Outcome the decryption outcome
	Outcome DecryptionStateENUMType `json:"outcome" validate:"required,decryption_state"`
	// KeySource where the key came from
	KeySource KeySourceENUMType `json:"key_source" validate:"required,key_source"`
}

// AuditDocumentRelated metadata of document events
type AuditDocumentRelated struct {
	// Kind the document kind
	Kind DocumentKindENUMType `json:"kind" validate:"required,document_kind"`
	// Fingerprint fingerprint of the key the content is encrypted with
	Fingerprint string `json:"fingerprint,omitempty" validate:"omitempty,hexadecimal"`
	// Size plain text size
	Size int64 `json:"size" validate:"gte=0"`
}
