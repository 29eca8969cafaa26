package db

import (
	"context"
	"fmt"
	"time"

	"github.com/alwitt/goutils"
	"github.com/alwitt/lexvault/models"
	"github.com/apex/log"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// CommonListEntryQueryFilter common query filter when listing data entries
type CommonListEntryQueryFilter struct {
	Limit  *int
	Offset *int
}

// AuditEventQueryFilter audit event query filter conditions
type AuditEventQueryFilter struct {
	CommonListEntryQueryFilter
	// EventTypes the specific event types to query for
	EventTypes []models.AuditEventTypeENUMType
	// ActorID filter for events triggered by this account
	ActorID *string
	// DocumentID filter for events relating to this document
	DocumentID *string
	// EventsAfter filter for events after this timestamp
	EventsAfter *time.Time
	// EventsBefore filter for events before this timestamp
	EventsBefore *time.Time
}

// DocumentQueryFilter document query filter conditions
type DocumentQueryFilter struct {
	CommonListEntryQueryFilter
	// OwnerID fetch only documents of this owner
	OwnerID *string
	// Kinds the specific document kinds to query for
	Kinds []models.DocumentKindENUMType
}

// KeyShareQueryFilter key share query filter conditions
type KeyShareQueryFilter struct {
	CommonListEntryQueryFilter
	// DocumentID fetch only shares of this document
	DocumentID *string
	// SharedWith fetch only shares granted to this account
	SharedWith *string
	// SharedBy fetch only shares granted by this account
	SharedBy *string
}

// DocumentCiphertextUpdate new ciphertext related fields of a document
type DocumentCiphertextUpdate struct {
	// EncryptedContent new ciphertext blob of a FORM document
	EncryptedContent *string
	// FilePath new blob storage path of a FILE document
	FilePath *string
	// EncryptionKeyHash fingerprint of the new key
	EncryptionKeyHash string `validate:"required,hexadecimal"`
	// FileName original file name
	FileName string
	// FileSize plain text size
	FileSize int64 `validate:"gte=0"`
	// FileMimeType detected MIME type
	FileMimeType string
}

// Database the database handle to interacting with the data base
type Database interface {
	// ------------------------------------------------------------------------------------
	// Audit events

	/*
		RecordAuditEvent record a new audit event

			@param ctx context.Context - execution context
			@param eventType models.AuditEventTypeENUMType - event type
			@param actorID string - account triggering the event
			@param documentID string - related document, may be empty
			@param metadata interface{} - event metadata, may be nil
			@returns the event entry
	*/
	RecordAuditEvent(
		ctx context.Context,
		eventType models.AuditEventTypeENUMType,
		actorID string,
		documentID string,
		metadata interface{},
	) (models.AuditEvent, error)

	/*
		ListAuditEvents list captured audit events

			@param ctx context.Context - execution context
			@param filters AuditEventQueryFilter - entry listing filter
			@return list of audit events
	*/
	ListAuditEvents(
		ctx context.Context, filters AuditEventQueryFilter,
	) ([]models.AuditEvent, error)

	// ------------------------------------------------------------------------------------
	// Documents

	/*
		DefineNewDocument record a new encrypted document

			@param ctx context.Context - execution context
			@param document models.Document - the document; ID is assigned when empty
			@returns the document entry
	*/
	DefineNewDocument(ctx context.Context, document models.Document) (models.Document, error)

	/*
		GetDocument fetch a document by ID

			@param ctx context.Context - execution context
			@param documentID string - document ID
			@returns the document entry
	*/
	GetDocument(ctx context.Context, documentID string) (models.Document, error)

	/*
		ListDocuments list documents

			@param ctx context.Context - execution context
			@param filters DocumentQueryFilter - entry listing filter
			@return list of documents
	*/
	ListDocuments(ctx context.Context, filters DocumentQueryFilter) ([]models.Document, error)

	/*
		UpdateDocumentCiphertext replace the ciphertext and key fingerprint of a document

			@param ctx context.Context - execution context
			@param documentID string - document ID
			@param update DocumentCiphertextUpdate - new ciphertext fields
			@returns the updated document entry
	*/
	UpdateDocumentCiphertext(
		ctx context.Context, documentID string, update DocumentCiphertextUpdate,
	) (models.Document, error)

	/*
		DeleteDocument delete a document and its key shares

			@param ctx context.Context - execution context
			@param documentID string - document ID
	*/
	DeleteDocument(ctx context.Context, documentID string) error

	// ------------------------------------------------------------------------------------
	// Key shares

	/*
		DefineNewKeyShare record a new key share

			@param ctx context.Context - execution context
			@param documentID string - the shared document
			@param sharedBy string - the granting account
			@param sharedWith string - the recipient account
			@param encKeyMaterial []byte - the wrapped document key
			@param expiresAt *time.Time - optional expiry
			@returns the key share entry
	*/
	DefineNewKeyShare(
		ctx context.Context,
		documentID string,
		sharedBy string,
		sharedWith string,
		encKeyMaterial []byte,
		expiresAt *time.Time,
	) (models.KeyShare, error)

	/*
		GetKeyShare fetch one key share

			@param ctx context.Context - execution context
			@param shareID string - the key share ID
			@returns the key share entry
	*/
	GetKeyShare(ctx context.Context, shareID string) (models.KeyShare, error)

	/*
		ListKeyShares list key shares, newest first

			@param ctx context.Context - execution context
			@param filters KeyShareQueryFilter - entry listing filter
			@return list of key shares
	*/
	ListKeyShares(ctx context.Context, filters KeyShareQueryFilter) ([]models.KeyShare, error)

	/*
		RevokeKeyShare mark a key share revoked

			@param ctx context.Context - execution context
			@param shareID string - the key share ID
			@param revokedAt time.Time - revocation timestamp
	*/
	RevokeKeyShare(ctx context.Context, shareID string, revokedAt time.Time) error
}

// databaseImpl implements Database
type databaseImpl struct {
	goutils.Component
	db        *gorm.DB
	validator *validator.Validate
}

// newDatabase define a new database client
func newDatabase(_ context.Context, sqlClient *gorm.DB) (Database, error) {
	logTags := log.Fields{"package": "lexvault", "module": "db", "component": "db-client"}

	instance := &databaseImpl{
		Component: goutils.Component{
			LogTags: logTags,
			LogTagModifiers: []goutils.LogMetadataModifier{
				goutils.ModifyLogMetadataByRestRequestParam,
			},
		},
		db:        sqlClient,
		validator: validator.New(),
	}

	if err := models.RegisterWithValidator(instance.validator); err != nil {
		return nil, fmt.Errorf("failed to install custom validation macros [%w]", err)
	}

	return instance, nil
}

// applyPaging apply the common list filter to a query
func applyPaging(query *gorm.DB, filters CommonListEntryQueryFilter) *gorm.DB {
	if filters.Limit != nil {
		query = query.Limit(*filters.Limit)
	}
	if filters.Offset != nil {
		query = query.Offset(*filters.Offset)
	}
	return query
}
