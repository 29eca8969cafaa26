package db

import (
	"context"
	"fmt"
	"time"

	"github.com/alwitt/lexvault/models"
	"github.com/google/uuid"
	"gorm.io/gorm/clause"
)

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
func (d *databaseImpl) DefineNewKeyShare(
	ctx context.Context,
	documentID string,
	sharedBy string,
	sharedWith string,
	encKeyMaterial []byte,
	expiresAt *time.Time,
) (models.KeyShare, error) {
	newEntry := KeyShareDBEntry{
		KeyShare: models.KeyShare{
			ID:             uuid.NewString(),
			DocumentID:     documentID,
			SharedBy:       sharedBy,
			SharedWith:     sharedWith,
			EncKeyMaterial: encKeyMaterial,
			ExpiresAt:      expiresAt,
		},
	}

	if err := d.validator.Struct(&newEntry); err != nil {
		return models.KeyShare{}, fmt.Errorf(
			"new key share of document %s is invalid [%w]", documentID, err,
		)
	}

	if tmp := d.db.WithContext(ctx).Omit(clause.Associations).Create(&newEntry); tmp.Error != nil {
		return models.KeyShare{}, fmt.Errorf(
			"new key share of document %s insert failed [%w]", documentID, tmp.Error,
		)
	}

	return newEntry.KeyShare, nil
}

/*
GetKeyShare fetch one key share

	@param ctx context.Context - execution context
	@param shareID string - the key share ID
	@returns the key share entry
*/
func (d *databaseImpl) GetKeyShare(ctx context.Context, shareID string) (models.KeyShare, error) {
	var entry KeyShareDBEntry
	if tmp := d.db.WithContext(ctx).Where("id = ?", shareID).First(&entry); tmp.Error != nil {
		return models.KeyShare{}, fmt.Errorf("failed to fetch key share %s [%w]", shareID, tmp.Error)
	}
	return entry.KeyShare, nil
}

/*
ListKeyShares list key shares, newest first

	@param ctx context.Context - execution context
	@param filters KeyShareQueryFilter - entry listing filter
	@return list of key shares
*/
func (d *databaseImpl) ListKeyShares(
	ctx context.Context, filters KeyShareQueryFilter,
) ([]models.KeyShare, error) {
	query := d.db.WithContext(ctx).Model(&KeyShareDBEntry{})

	if filters.DocumentID != nil {
		query = query.Where("document_id = ?", *filters.DocumentID)
	}
	if filters.SharedWith != nil {
		query = query.Where("shared_with = ?", *filters.SharedWith)
	}
	if filters.SharedBy != nil {
		query = query.Where("shared_by = ?", *filters.SharedBy)
	}

	query = applyPaging(query, filters.CommonListEntryQueryFilter)

	query = query.Order("created_at desc")

	var entries []KeyShareDBEntry
	if tmp := query.Find(&entries); tmp.Error != nil {
		return nil, fmt.Errorf("failed to list key shares [%w]", tmp.Error)
	}

	result := []models.KeyShare{}
	for _, entry := range entries {
		result = append(result, entry.KeyShare)
	}

	return result, nil
}

/*
RevokeKeyShare mark a key share revoked

	@param ctx context.Context - execution context
	@param shareID string - the key share ID
	@param revokedAt time.Time - revocation timestamp
*/
func (d *databaseImpl) RevokeKeyShare(
	ctx context.Context, shareID string, revokedAt time.Time,
) error {
	var entry KeyShareDBEntry
	if tmp := d.db.WithContext(ctx).Where("id = ?", shareID).First(&entry); tmp.Error != nil {
		return fmt.Errorf("failed to fetch key share %s [%w]", shareID, tmp.Error)
	}

	if entry.RevokedAt != nil {
		// NOOP
		return nil
	}

	if tmp := d.db.WithContext(ctx).
		Model(&KeyShareDBEntry{}).
		Where("id = ?", shareID).
		Update("revoked_at", revokedAt); tmp.Error != nil {
		return fmt.Errorf("key share %s revocation failed [%w]", shareID, tmp.Error)
	}

	return nil
}
