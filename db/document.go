package db

import (
	"context"
	"fmt"

	"github.com/alwitt/lexvault/models"
	"github.com/google/uuid"
)

/*
DefineNewDocument record a new encrypted document

	@param ctx context.Context - execution context
	@param document models.Document - the document; ID is assigned when empty
	@returns the document entry
*/
func (d *databaseImpl) DefineNewDocument(
	ctx context.Context, document models.Document,
) (models.Document, error) {
	if document.ID == "" {
		document.ID = uuid.NewString()
	}
	newEntry := DocumentDBEntry{Document: document}

	if err := d.validator.Struct(&newEntry); err != nil {
		return models.Document{}, fmt.Errorf("new document '%s' is not valid [%w]", document.Title, err)
	}
	if !newEntry.HasCiphertext() {
		return models.Document{}, fmt.Errorf(
			"new %s document '%s' carries no ciphertext", document.Kind, document.Title,
		)
	}

	if tmp := d.db.WithContext(ctx).Create(&newEntry); tmp.Error != nil {
		return models.Document{}, fmt.Errorf(
			"new document '%s' failed insert [%w]", document.Title, tmp.Error,
		)
	}

	return newEntry.Document, nil
}

// getDocumentEntry find a document by ID
func (d *databaseImpl) getDocumentEntry(ctx context.Context, documentID string) (DocumentDBEntry, error) {
	var entry DocumentDBEntry
	err := d.db.WithContext(ctx).Where("id = ?", documentID).First(&entry).Error
	return entry, err
}

/*
GetDocument fetch a document by ID

	@param ctx context.Context - execution context
	@param documentID string - document ID
	@returns the document entry
*/
func (d *databaseImpl) GetDocument(ctx context.Context, documentID string) (models.Document, error) {
	entry, err := d.getDocumentEntry(ctx, documentID)
	if err != nil {
		return models.Document{}, fmt.Errorf("failed to fetch document %s [%w]", documentID, err)
	}
	return entry.Document, nil
}

/*
ListDocuments list documents

	@param ctx context.Context - execution context
	@param filters DocumentQueryFilter - entry listing filter
	@return list of documents
*/
func (d *databaseImpl) ListDocuments(
	ctx context.Context, filters DocumentQueryFilter,
) ([]models.Document, error) {
	query := d.db.WithContext(ctx).Model(&DocumentDBEntry{})

	if filters.OwnerID != nil {
		query = query.Where("owner_id = ?", *filters.OwnerID)
	}
	if len(filters.Kinds) > 0 {
		query = query.Where("kind in ?", filters.Kinds)
	}

	query = applyPaging(query, filters.CommonListEntryQueryFilter)

	query = query.Order("created_at desc")

	var entries []DocumentDBEntry
	if tmp := query.Find(&entries); tmp.Error != nil {
		return nil, fmt.Errorf("failed to list documents [%w]", tmp.Error)
	}

	result := []models.Document{}
	for _, entry := range entries {
		result = append(result, entry.Document)
	}

	return result, nil
}

/*
UpdateDocumentCiphertext replace the ciphertext and key fingerprint of a document

	@param ctx context.Context - execution context
	@param documentID string - document ID
	@param update DocumentCiphertextUpdate - new ciphertext fields
	@returns the updated document entry
*/
func (d *databaseImpl) UpdateDocumentCiphertext(
	ctx context.Context, documentID string, update DocumentCiphertextUpdate,
) (models.Document, error) {
	if err := d.validator.Struct(&update); err != nil {
		return models.Document{}, fmt.Errorf(
			"document %s ciphertext update is not valid [%w]", documentID, err,
		)
	}

	entry, err := d.getDocumentEntry(ctx, documentID)
	if err != nil {
		return models.Document{}, fmt.Errorf("failed to fetch document %s [%w]", documentID, err)
	}

	entry.EncryptedContent = update.EncryptedContent
	entry.FilePath = update.FilePath
	entry.EncryptionKeyHash = update.EncryptionKeyHash
	entry.FileName = update.FileName
	entry.FileSize = update.FileSize
	entry.FileMimeType = update.FileMimeType
	if !entry.HasCiphertext() {
		return models.Document{}, fmt.Errorf(
			"%s document %s ciphertext update carries no ciphertext", entry.Kind, documentID,
		)
	}

	// Select all so that nil-ed pointer columns are written too
	if tmp := d.db.WithContext(ctx).Model(&entry).Select("*").Updates(&entry); tmp.Error != nil {
		return models.Document{}, fmt.Errorf(
			"document %s ciphertext update failed [%w]", documentID, tmp.Error,
		)
	}

	return entry.Document, nil
}

/*
DeleteDocument delete a document and its key shares

	@param ctx context.Context - execution context
	@param documentID string - document ID
*/
func (d *databaseImpl) DeleteDocument(ctx context.Context, documentID string) error {
	entry, err := d.getDocumentEntry(ctx, documentID)
	if err != nil {
		return fmt.Errorf("failed to fetch document %s [%w]", documentID, err)
	}

	if tmp := d.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Delete(&KeyShareDBEntry{}); tmp.Error != nil {
		return fmt.Errorf("failed to delete key shares of document %s [%w]", documentID, tmp.Error)
	}

	if tmp := d.db.WithContext(ctx).Delete(&entry); tmp.Error != nil {
		return fmt.Errorf("failed to delete document %s [%w]", documentID, tmp.Error)
	}

	return nil
}
