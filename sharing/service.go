// Package sharing - time-bounded document key shares between accounts
package sharing

import (
	"context"
	"fmt"
	"time"

	"github.com/alwitt/goutils"
	"github.com/alwitt/lexvault/audit"
	"github.com/alwitt/lexvault/auth"
	"github.com/alwitt/lexvault/db"
	"github.com/alwitt/lexvault/encryption"
	"github.com/alwitt/lexvault/errdefs"
	"github.com/alwitt/lexvault/models"
	"github.com/apex/log"
	"github.com/go-playground/validator/v10"
)

// Service manages document key shares
//
// The document key is held server side only RSA wrapped, and is released solely through
// FetchSharedKey to the recipient named in a live share.
type Service interface {
	/*
		ShareKey share a document key with another account

			@param ctx context.Context - execution context
			@param caller auth.Identity - the document owner
			@param documentID string - the document
			@param recipientID string - the recipient account
			@param key encryption.DocumentKey - the document key; must match the document
			@param expiresAt *time.Time - optional expiry, must be in the future
			@returns the key share, without key material
	*/
	ShareKey(
		ctx context.Context,
		caller auth.Identity,
		documentID string,
		recipientID string,
		key encryption.DocumentKey,
		expiresAt *time.Time,
	) (models.KeyShare, error)

	/*
		FetchSharedKey fetch a document key shared with the caller

		A missing, expired, or revoked share is a normal outcome reported as (_, false, nil).
		The three cases are indistinguishable to the caller.

			@param ctx context.Context - execution context
			@param token string - caller bearer token
			@param documentID string - the document
			@returns the key, and whether a live share granted it
	*/
	FetchSharedKey(
		ctx context.Context, token string, documentID string,
	) (encryption.DocumentKey, bool, error)

	/*
		RevokeShare revoke a key share

			@param ctx context.Context - execution context
			@param caller auth.Identity - the document owner
			@param shareID string - the key share
	*/
	RevokeShare(ctx context.Context, caller auth.Identity, shareID string) error

	/*
		ListShares list the shares of a document

			@param ctx context.Context - execution context
			@param caller auth.Identity - the document owner
			@param documentID string - the document
			@returns key shares, without key material
	*/
	ListShares(
		ctx context.Context, caller auth.Identity, documentID string,
	) ([]models.KeyShare, error)
}

// ServiceParams key share service parameters
type ServiceParams struct {
	// Persistence DB client
	Persistence db.Client `validate:"required"`
	// Crypto cryptography engine holding the key wrapping RSA key pair
	Crypto encryption.CryptographyEngine `validate:"required"`
	// Authenticator verifies caller tokens
	Authenticator auth.Authenticator `validate:"required"`
	// Audit audit event sink
	Audit audit.Sink `validate:"required"`
	// Clock time source, time.Now when nil
	Clock func() time.Time
}

type serviceImpl struct {
	goutils.Component
	persistence db.Client
	crypto      encryption.CryptographyEngine
	authn       auth.Authenticator
	audit       audit.Sink
	clock       func() time.Time
}

/*
NewService define a key share service

	@param params ServiceParams - service parameters
	@returns service
*/
func NewService(params ServiceParams) (Service, error) {
	if err := validator.New().Struct(&params); err != nil {
		return nil, fmt.Errorf("invalid key share service parameters [%w]", err)
	}
	if params.Clock == nil {
		params.Clock = time.Now
	}
	return &serviceImpl{
		Component: goutils.Component{
			LogTags: log.Fields{
				"package": "lexvault", "module": "sharing", "component": "key-share-service",
			},
			LogTagModifiers: []goutils.LogMetadataModifier{
				goutils.ModifyLogMetadataByRestRequestParam,
			},
		},
		persistence: params.Persistence,
		crypto:      params.Crypto,
		authn:       params.Authenticator,
		audit:       params.Audit,
		clock:       params.Clock,
	}, nil
}

func (s *serviceImpl) ShareKey(
	ctx context.Context,
	caller auth.Identity,
	documentID string,
	recipientID string,
	key encryption.DocumentKey,
	expiresAt *time.Time,
) (models.KeyShare, error) {
	logTags := s.GetLogTagsForContext(ctx)

	if recipientID == "" || recipientID == caller.UserID {
		return models.KeyShare{}, fmt.Errorf("key share recipient must be another account")
	}
	if expiresAt != nil && !expiresAt.After(s.clock()) {
		return models.KeyShare{}, fmt.Errorf("key share expiry must be in the future")
	}

	var share models.KeyShare
	if err := s.persistence.UseDatabaseInTransaction(
		ctx, func(ctx context.Context, dbClient db.Database) error {
			document, err := dbClient.GetDocument(ctx, documentID)
			if err != nil {
				return err
			}
			if document.OwnerID != caller.UserID {
				return errdefs.ErrNotOwner
			}
			if !encryption.VerifyKeyFingerprint(key, document.EncryptionKeyHash) {
				return errdefs.ErrWrongKey
			}

			wrapped, err := s.crypto.WrapKey(ctx, key)
			if err != nil {
				return err
			}

			share, err = dbClient.DefineNewKeyShare(
				ctx, documentID, caller.UserID, recipientID, wrapped, expiresAt,
			)
			return err
		},
	); err != nil {
		log.
			WithError(err).
			WithFields(logTags).
			WithField("document", documentID).
			Error("Failed to share document key")
		return models.KeyShare{}, fmt.Errorf("failed to share document %s key [%w]", documentID, err)
	}

	s.audit.Emit(ctx, audit.Event{
		Type:       models.AuditEventTypeKeyShared,
		ActorID:    caller.UserID,
		DocumentID: documentID,
		Metadata:   models.AuditKeyShareRelated{ShareID: share.ID, Recipient: recipientID},
	})

	return share.Redacted(), nil
}

func (s *serviceImpl) FetchSharedKey(
	ctx context.Context, token string, documentID string,
) (encryption.DocumentKey, bool, error) {
	logTags := s.GetLogTagsForContext(ctx)

	caller, err := s.authn.Verify(token)
	if err != nil {
		return encryption.DocumentKey{}, false, err
	}

	var shares []models.KeyShare
	if err := s.persistence.UseDatabase(
		ctx, func(ctx context.Context, dbClient db.Database) error {
			shares, err = dbClient.ListKeyShares(ctx, db.KeyShareQueryFilter{
				DocumentID: &documentID, SharedWith: &caller.UserID,
			})
			return err
		},
	); err != nil {
		return encryption.DocumentKey{}, false, fmt.Errorf(
			"failed to look up key shares of document %s [%w]", documentID, err,
		)
	}

	// Validity is judged against the clock at fetch time
	now := s.clock()
	reason := models.ShareDenialNotFound
	var live *models.KeyShare
	for idx, share := range shares {
		shareReason := share.LiveAt(now)
		if shareReason == models.ShareDenialNone {
			live = &shares[idx]
			break
		}
		if idx == 0 {
			reason = shareReason
		}
	}

	if live == nil {
		log.
			WithFields(logTags).
			WithField("document", documentID).
			WithField("caller", caller.UserID).
			WithField("reason", reason).
			Info("Shared key fetch denied")
		s.audit.Emit(ctx, audit.Event{
			Type:       models.AuditEventTypeKeyShareDenied,
			ActorID:    caller.UserID,
			DocumentID: documentID,
			Metadata:   models.AuditKeyShareRelated{Recipient: caller.UserID, Reason: reason},
		})
		return encryption.DocumentKey{}, false, nil
	}

	key, err := s.crypto.UnwrapKey(ctx, live.EncKeyMaterial)
	if err != nil {
		return encryption.DocumentKey{}, false, fmt.Errorf(
			"failed to unwrap key of share %s [%w]", live.ID, err,
		)
	}

	s.audit.Emit(ctx, audit.Event{
		Type:       models.AuditEventTypeKeyShareAccessed,
		ActorID:    caller.UserID,
		DocumentID: documentID,
		Metadata:   models.AuditKeyShareRelated{ShareID: live.ID, Recipient: caller.UserID},
	})

	return key, true, nil
}

func (s *serviceImpl) RevokeShare(ctx context.Context, caller auth.Identity, shareID string) error {
	var share models.KeyShare
	if err := s.persistence.UseDatabaseInTransaction(
		ctx, func(ctx context.Context, dbClient db.Database) error {
			var err error
			share, err = dbClient.GetKeyShare(ctx, shareID)
			if err != nil {
				return err
			}
			document, err := dbClient.GetDocument(ctx, share.DocumentID)
			if err != nil {
				return err
			}
			if document.OwnerID != caller.UserID {
				return errdefs.ErrNotOwner
			}
			return dbClient.RevokeKeyShare(ctx, shareID, s.clock())
		},
	); err != nil {
		return fmt.Errorf("failed to revoke key share %s [%w]", shareID, err)
	}

	s.audit.Emit(ctx, audit.Event{
		Type:       models.AuditEventTypeKeyShareRevoked,
		ActorID:    caller.UserID,
		DocumentID: share.DocumentID,
		Metadata:   models.AuditKeyShareRelated{ShareID: share.ID, Recipient: share.SharedWith},
	})
	return nil
}

func (s *serviceImpl) ListShares(
	ctx context.Context, caller auth.Identity, documentID string,
) ([]models.KeyShare, error) {
	result := []models.KeyShare{}
	if err := s.persistence.UseDatabase(
		ctx, func(ctx context.Context, dbClient db.Database) error {
			document, err := dbClient.GetDocument(ctx, documentID)
			if err != nil {
				return err
			}
			if document.OwnerID != caller.UserID {
				return errdefs.ErrNotOwner
			}
			shares, err := dbClient.ListKeyShares(
				ctx, db.KeyShareQueryFilter{DocumentID: &documentID},
			)
			if err != nil {
				return err
			}
			for _, share := range shares {
				result = append(result, share.Redacted())
			}
			return nil
		},
	); err != nil {
		return nil, fmt.Errorf("failed to list key shares of document %s [%w]", documentID, err)
	}
	return result, nil
}
