// Package store - encrypted document storage controllers
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/alwitt/goutils"
	"github.com/alwitt/lexvault/audit"
	"github.com/alwitt/lexvault/auth"
	"github.com/alwitt/lexvault/blobstore"
	"github.com/alwitt/lexvault/db"
	"github.com/alwitt/lexvault/decryption"
	"github.com/alwitt/lexvault/encryption"
	"github.com/alwitt/lexvault/errdefs"
	"github.com/alwitt/lexvault/keyflow"
	"github.com/alwitt/lexvault/models"
	"github.com/apex/log"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

// ContentRequest document content to encrypt and store
type ContentRequest struct {
	// FormJSON form content of a FORM document
	FormJSON string
	// File file content of a FILE document
	File io.Reader
	// FileName original file name of a FILE document
	FileName string
	// CustomKey user supplied passphrase; a key is generated when nil
	CustomKey *string
}

// UploadRequest new document upload
type UploadRequest struct {
	ContentRequest
	// DocumentID client chosen document ID; assigned when empty
	DocumentID string `validate:"omitempty,uuid_rfc4122"`
	// Title document title
	Title string `validate:"required"`
	// Kind document kind
	Kind models.DocumentKindENUMType `validate:"required,document_kind"`
}

// UploadResult the committed document and the one-time key presentation
type UploadResult struct {
	// Document the committed record
	Document models.Document
	// Presentation the key, to be shown once and acknowledged
	Presentation *keyflow.KeyPresentation
}

// DocumentStore encrypts documents before they reach storage
type DocumentStore interface {
	/*
		UploadDocument encrypt and store a new document

		The document record is only committed after the ciphertext is written.

			@param ctx context.Context - execution context
			@param caller auth.Identity - the uploading account, becomes the owner
			@param request UploadRequest - the document
			@param activeDBClient Database - existing database transaction
			@returns the document and key presentation
	*/
	UploadDocument(
		ctx context.Context, caller auth.Identity, request UploadRequest, activeDBClient db.Database,
	) (UploadResult, error)

	/*
		UpdateDocumentContent re-encrypt a document with new content under a new key

			@param ctx context.Context - execution context
			@param caller auth.Identity - the document owner
			@param documentID string - the document
			@param request ContentRequest - the new content
			@param activeDBClient Database - existing database transaction
			@returns the document and key presentation
	*/
	UpdateDocumentContent(
		ctx context.Context,
		caller auth.Identity,
		documentID string,
		request ContentRequest,
		activeDBClient db.Database,
	) (UploadResult, error)

	/*
		LoadCiphertext fetch a document's ciphertext for viewing

		Available to the owner and to accounts the document was ever shared with.

			@param ctx context.Context - execution context
			@param caller auth.Identity - the viewer
			@param documentID string - the document
			@param activeDBClient Database - existing database transaction
			@returns the ciphertext and key fingerprint
	*/
	LoadCiphertext(
		ctx context.Context, caller auth.Identity, documentID string, activeDBClient db.Database,
	) (decryption.DocumentCiphertext, error)

	/*
		OpenDocument start a decryption session for a document

			@param ctx context.Context - execution context
			@param caller auth.Identity - the viewer
			@param documentID string - the document
			@returns the session
	*/
	OpenDocument(
		ctx context.Context, caller auth.Identity, documentID string,
	) (*decryption.Session, error)

	/*
		ListDocuments list the caller's documents

			@param ctx context.Context - execution context
			@param caller auth.Identity - the owner
			@param activeDBClient Database - existing database transaction
			@returns documents
	*/
	ListDocuments(
		ctx context.Context, caller auth.Identity, activeDBClient db.Database,
	) ([]models.Document, error)

	/*
		DeleteDocument delete a document, its shares, and its stored ciphertext

			@param ctx context.Context - execution context
			@param caller auth.Identity - the document owner
			@param documentID string - the document
			@param activeDBClient Database - existing database transaction
	*/
	DeleteDocument(
		ctx context.Context, caller auth.Identity, documentID string, activeDBClient db.Database,
	) error
}

// DocumentStoreParams document store parameters
type DocumentStoreParams struct {
	// Persistence DB client
	Persistence db.Client `validate:"required"`
	// Crypto cryptography engine
	Crypto encryption.CryptographyEngine `validate:"required"`
	// Blobs FILE document ciphertext storage
	Blobs blobstore.Store `validate:"required"`
	// Audit audit event sink
	Audit audit.Sink `validate:"required"`
	// Clock time source, time.Now when nil
	Clock func() time.Time
}

// documentStore implements DocumentStore
type documentStore struct {
	goutils.Component

	persistence  db.Client
	cryptoEngine encryption.CryptographyEngine
	blobs        blobstore.Store
	audit        audit.Sink
	clock        func() time.Time
	validator    *validator.Validate

	inFlightLock sync.Mutex
	inFlight     map[string]bool
}

/*
NewDocumentStore define new document store

	@param params DocumentStoreParams - store parameters
	@returns store instance
*/
func NewDocumentStore(params DocumentStoreParams) (DocumentStore, error) {
	logTags := log.Fields{"package": "lexvault", "module": "store", "component": "document-store"}

	instance := &documentStore{
		Component: goutils.Component{
			LogTags: logTags,
			LogTagModifiers: []goutils.LogMetadataModifier{
				goutils.ModifyLogMetadataByRestRequestParam,
			},
		},
		persistence:  params.Persistence,
		cryptoEngine: params.Crypto,
		blobs:        params.Blobs,
		audit:        params.Audit,
		clock:        params.Clock,
		validator:    validator.New(),
		inFlight:     make(map[string]bool),
	}
	if err := models.RegisterWithValidator(instance.validator); err != nil {
		return nil, fmt.Errorf("failed to install custom validation macros [%w]", err)
	}
	if err := instance.validator.Struct(&params); err != nil {
		return nil, fmt.Errorf("invalid document store parameters [%w]", err)
	}
	if instance.clock == nil {
		instance.clock = time.Now
	}

	return instance, nil
}

// acquire mark an operation on a document in flight
func (s *documentStore) acquire(ownerID, documentID string) (func(), error) {
	guardKey := ownerID + "/" + documentID
	s.inFlightLock.Lock()
	defer s.inFlightLock.Unlock()
	if s.inFlight[guardKey] {
		return nil, errdefs.ErrOperationInProgress
	}
	s.inFlight[guardKey] = true
	return func() {
		s.inFlightLock.Lock()
		defer s.inFlightLock.Unlock()
		delete(s.inFlight, guardKey)
	}, nil
}

// prepareKey generate a key, or accept the caller's passphrase
func (s *documentStore) prepareKey(
	ctx context.Context, ownerID, documentID string, customKey *string,
) (encryption.DocumentKey, error) {
	if customKey != nil {
		return encryption.NewCustomDocumentKey(*customKey)
	}
	return s.cryptoEngine.GenerateDocumentKey(ctx, ownerID, documentID)
}

// encryptedContent ciphertext and related document fields
type encryptedContent struct {
	formBlob *string
	filePath *string
	fileName string
	size     int64
	mimeType string
}

/*
encryptContent encrypt the content and write FILE ciphertext to the blob store

	@returns the ciphertext fields; filePath is set once a blob was written
*/
func (s *documentStore) encryptContent(
	ctx context.Context,
	kind models.DocumentKindENUMType,
	blobPath string,
	request ContentRequest,
	key encryption.DocumentKey,
) (encryptedContent, error) {
	switch kind {
	case models.DocumentKindForm:
		blob, err := s.cryptoEngine.EncryptData(ctx, request.FormJSON, key)
		if err != nil {
			return encryptedContent{}, fmt.Errorf("failed to encrypt form content [%w]", err)
		}
		return encryptedContent{
			formBlob: &blob,
			size:     int64(len(request.FormJSON)),
			mimeType: "application/json",
		}, nil

	case models.DocumentKindFile:
		if request.File == nil {
			return encryptedContent{}, fmt.Errorf("FILE document requires file content")
		}
		encrypted, err := s.cryptoEngine.EncryptFile(ctx, request.File, key)
		if err != nil {
			return encryptedContent{}, fmt.Errorf("failed to encrypt file content [%w]", err)
		}
		if err := s.blobs.Put(ctx, blobPath, []byte(encrypted.Blob)); err != nil {
			return encryptedContent{}, err
		}
		return encryptedContent{
			filePath: &blobPath,
			fileName: request.FileName,
			size:     encrypted.Size,
			mimeType: encrypted.MimeType,
		}, nil
	}
	return encryptedContent{}, fmt.Errorf("unknown document kind '%s'", kind)
}

// discardBlob best effort removal of a ciphertext blob which will not be referenced
func (s *documentStore) discardBlob(ctx context.Context, path *string) {
	if path == nil {
		return
	}
	if err := s.blobs.Delete(context.WithoutCancel(ctx), *path); err != nil {
		log.
			WithError(err).
			WithFields(s.GetLogTagsForContext(ctx)).
			WithField("path", *path).
			Error("Failed to remove unreferenced ciphertext blob")
	}
}

// blobPathFor every ciphertext write gets its own path, so a failed write never
// replaces a blob a committed document still references.
func blobPathFor(ownerID, documentID string) string {
	return fmt.Sprintf("documents/%s/%s.%s.lxv", ownerID, documentID, ulid.Make().String())
}

// checkFormContent FORM content must be a JSON document
func checkFormContent(kind models.DocumentKindENUMType, request ContentRequest) error {
	if kind == models.DocumentKindForm && !json.Valid([]byte(request.FormJSON)) {
		return errdefs.ErrInvalidFormContent
	}
	return nil
}

func (s *documentStore) UploadDocument(
	ctx context.Context, caller auth.Identity, request UploadRequest, activeDBClient db.Database,
) (UploadResult, error) {
	logTags := s.GetLogTagsForContext(ctx)

	if caller.UserID == "" {
		return UploadResult{}, errdefs.ErrUnauthenticated
	}
	if err := s.validator.Struct(&request); err != nil {
		return UploadResult{}, fmt.Errorf("invalid document upload request [%w]", err)
	}
	if err := checkFormContent(request.Kind, request.ContentRequest); err != nil {
		return UploadResult{}, err
	}
	if request.DocumentID == "" {
		request.DocumentID = uuid.NewString()
	}

	release, err := s.acquire(caller.UserID, request.DocumentID)
	if err != nil {
		return UploadResult{}, err
	}
	defer release()

	// Refuse a taken ID before any key or ciphertext exists
	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, s.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			_, err := dbClient.GetDocument(dbCtx, request.DocumentID)
			if err == nil {
				return errdefs.ErrDocumentExists
			}
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		},
	); dbErr != nil {
		return UploadResult{}, fmt.Errorf("can not store document %s [%w]", request.DocumentID, dbErr)
	}

	key, err := s.prepareKey(ctx, caller.UserID, request.DocumentID, request.CustomKey)
	if err != nil {
		return UploadResult{}, err
	}
	fingerprint := encryption.HashKey(key)

	content, err := s.encryptContent(
		ctx, request.Kind, blobPathFor(caller.UserID, request.DocumentID), request.ContentRequest, key,
	)
	if err != nil {
		key.Wipe()
		return UploadResult{}, err
	}

	var document models.Document
	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, s.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			if err := dbCtx.Err(); err != nil {
				return err
			}
			document, err = dbClient.DefineNewDocument(dbCtx, models.Document{
				ID:                request.DocumentID,
				OwnerID:           caller.UserID,
				Title:             request.Title,
				Kind:              request.Kind,
				EncryptedContent:  content.formBlob,
				EncryptionKeyHash: fingerprint,
				FilePath:          content.filePath,
				FileName:          content.fileName,
				FileSize:          content.size,
				FileMimeType:      content.mimeType,
			})
			return err
		},
	); dbErr != nil {
		key.Wipe()
		s.discardBlob(ctx, content.filePath)
		log.
			WithError(dbErr).
			WithFields(logTags).
			WithField("document", request.DocumentID).
			Error("Failed to record new document")
		return UploadResult{}, fmt.Errorf("failed to record new document [%w]", dbErr)
	}

	s.audit.Emit(ctx, audit.Event{
		Type:       models.AuditEventTypeKeyGenerated,
		ActorID:    caller.UserID,
		DocumentID: document.ID,
		Metadata:   models.AuditKeyGenerated{Mode: key.Mode(), Fingerprint: fingerprint},
	})
	s.audit.Emit(ctx, audit.Event{
		Type:       models.AuditEventTypeDocumentStored,
		ActorID:    caller.UserID,
		DocumentID: document.ID,
		Metadata: models.AuditDocumentRelated{
			Kind: document.Kind, Fingerprint: fingerprint, Size: document.FileSize,
		},
	})

	return UploadResult{
		Document: document,
		Presentation: keyflow.NewKeyPresentation(key, keyflow.ExportMetadata{
			DocumentID:    document.ID,
			DocumentTitle: document.Title,
			GeneratedAt:   s.clock(),
			ContentSize:   document.FileSize,
		}),
	}, nil
}

func (s *documentStore) UpdateDocumentContent(
	ctx context.Context,
	caller auth.Identity,
	documentID string,
	request ContentRequest,
	activeDBClient db.Database,
) (UploadResult, error) {
	logTags := s.GetLogTagsForContext(ctx)

	if caller.UserID == "" {
		return UploadResult{}, errdefs.ErrUnauthenticated
	}

	release, err := s.acquire(caller.UserID, documentID)
	if err != nil {
		return UploadResult{}, err
	}
	defer release()

	var current models.Document
	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, s.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			current, err = dbClient.GetDocument(dbCtx, documentID)
			return err
		},
	); dbErr != nil {
		return UploadResult{}, fmt.Errorf("document %s unknown [%w]", documentID, dbErr)
	}
	if current.OwnerID != caller.UserID {
		return UploadResult{}, errdefs.ErrNotOwner
	}
	if err := checkFormContent(current.Kind, request); err != nil {
		return UploadResult{}, err
	}

	key, err := s.prepareKey(ctx, caller.UserID, documentID, request.CustomKey)
	if err != nil {
		return UploadResult{}, err
	}
	fingerprint := encryption.HashKey(key)

	// The current ciphertext stays intact until commit
	content, err := s.encryptContent(
		ctx, current.Kind, blobPathFor(caller.UserID, documentID), request, key,
	)
	if err != nil {
		key.Wipe()
		return UploadResult{}, err
	}

	var document models.Document
	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, s.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			if err := dbCtx.Err(); err != nil {
				return err
			}
			document, err = dbClient.UpdateDocumentCiphertext(
				dbCtx, documentID, db.DocumentCiphertextUpdate{
					EncryptedContent:  content.formBlob,
					FilePath:          content.filePath,
					EncryptionKeyHash: fingerprint,
					FileName:          content.fileName,
					FileSize:          content.size,
					FileMimeType:      content.mimeType,
				},
			)
			if err != nil {
				return err
			}
			// Existing shares hold the superseded key
			shares, err := dbClient.ListKeyShares(
				dbCtx, db.KeyShareQueryFilter{DocumentID: &documentID},
			)
			if err != nil {
				return err
			}
			for _, share := range shares {
				if share.RevokedAt != nil {
					continue
				}
				if err := dbClient.RevokeKeyShare(dbCtx, share.ID, s.clock()); err != nil {
					return err
				}
			}
			return nil
		},
	); dbErr != nil {
		key.Wipe()
		s.discardBlob(ctx, content.filePath)
		log.
			WithError(dbErr).
			WithFields(logTags).
			WithField("document", documentID).
			Error("Failed to record document update")
		return UploadResult{}, fmt.Errorf("failed to update document %s [%w]", documentID, dbErr)
	}

	// Superseded ciphertext
	if current.FilePath != nil && (document.FilePath == nil || *current.FilePath != *document.FilePath) {
		s.discardBlob(ctx, current.FilePath)
	}

	s.audit.Emit(ctx, audit.Event{
		Type:       models.AuditEventTypeKeyGenerated,
		ActorID:    caller.UserID,
		DocumentID: documentID,
		Metadata:   models.AuditKeyGenerated{Mode: key.Mode(), Fingerprint: fingerprint},
	})
	s.audit.Emit(ctx, audit.Event{
		Type:       models.AuditEventTypeDocumentUpdated,
		ActorID:    caller.UserID,
		DocumentID: documentID,
		Metadata: models.AuditDocumentRelated{
			Kind: document.Kind, Fingerprint: fingerprint, Size: document.FileSize,
		},
	})

	return UploadResult{
		Document: document,
		Presentation: keyflow.NewKeyPresentation(key, keyflow.ExportMetadata{
			DocumentID:    document.ID,
			DocumentTitle: document.Title,
			GeneratedAt:   s.clock(),
			ContentSize:   document.FileSize,
		}),
	}, nil
}

func (s *documentStore) LoadCiphertext(
	ctx context.Context, caller auth.Identity, documentID string, activeDBClient db.Database,
) (decryption.DocumentCiphertext, error) {
	var document models.Document
	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, s.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			var err error
			document, err = dbClient.GetDocument(dbCtx, documentID)
			if err != nil {
				return err
			}
			if document.OwnerID == caller.UserID {
				return nil
			}
			shares, err := dbClient.ListKeyShares(dbCtx, db.KeyShareQueryFilter{
				DocumentID: &documentID, SharedWith: &caller.UserID,
			})
			if err != nil {
				return err
			}
			if len(shares) == 0 {
				return errdefs.ErrAccessDenied
			}
			return nil
		},
	); dbErr != nil {
		if errors.Is(dbErr, errdefs.ErrAccessDenied) {
			return decryption.DocumentCiphertext{}, errdefs.ErrAccessDenied
		}
		return decryption.DocumentCiphertext{}, fmt.Errorf(
			"failed to load document %s [%w]", documentID, dbErr,
		)
	}

	result := decryption.DocumentCiphertext{
		DocumentID:     document.ID,
		Kind:           document.Kind,
		KeyFingerprint: document.EncryptionKeyHash,
	}
	switch document.Kind {
	case models.DocumentKindForm:
		if document.EncryptedContent != nil {
			result.Blob = *document.EncryptedContent
		}
	case models.DocumentKindFile:
		if document.FilePath == nil {
			return decryption.DocumentCiphertext{}, fmt.Errorf(
				"document %s has no stored file [%w]", documentID, errdefs.ErrCorruptedData,
			)
		}
		blob, err := s.blobs.Get(ctx, *document.FilePath)
		if err != nil {
			return decryption.DocumentCiphertext{}, err
		}
		result.Blob = string(blob)
	}
	return result, nil
}

func (s *documentStore) OpenDocument(
	ctx context.Context, caller auth.Identity, documentID string,
) (*decryption.Session, error) {
	ciphertext, err := s.LoadCiphertext(ctx, caller, documentID, nil)
	if err != nil {
		return nil, err
	}
	return decryption.NewSession(s.cryptoEngine, ciphertext, s.audit, caller.UserID), nil
}

func (s *documentStore) ListDocuments(
	ctx context.Context, caller auth.Identity, activeDBClient db.Database,
) ([]models.Document, error) {
	var documents []models.Document
	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, s.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			var err error
			documents, err = dbClient.ListDocuments(
				dbCtx, db.DocumentQueryFilter{OwnerID: &caller.UserID},
			)
			return err
		},
	); dbErr != nil {
		return nil, fmt.Errorf("failed to list documents [%w]", dbErr)
	}
	return documents, nil
}

func (s *documentStore) DeleteDocument(
	ctx context.Context, caller auth.Identity, documentID string, activeDBClient db.Database,
) error {
	release, err := s.acquire(caller.UserID, documentID)
	if err != nil {
		return err
	}
	defer release()

	var document models.Document
	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, s.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			document, err = dbClient.GetDocument(dbCtx, documentID)
			if err != nil {
				return err
			}
			if document.OwnerID != caller.UserID {
				return errdefs.ErrNotOwner
			}
			return dbClient.DeleteDocument(dbCtx, documentID)
		},
	); dbErr != nil {
		return fmt.Errorf("failed to delete document %s [%w]", documentID, dbErr)
	}

	s.discardBlob(ctx, document.FilePath)

	s.audit.Emit(ctx, audit.Event{
		Type:       models.AuditEventTypeDocumentDeleted,
		ActorID:    caller.UserID,
		DocumentID: documentID,
		Metadata:   models.AuditDocumentRelated{Kind: document.Kind, Size: document.FileSize},
	})
	return nil
}
