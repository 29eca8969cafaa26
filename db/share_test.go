package db_test

import (
	"context"
	"testing"
	"time"

	"github.com/alwitt/lexvault/db"
	"github.com/alwitt/lexvault/models"
	"github.com/apex/log"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestDBKeyShareCRUD(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	utCtx := context.Background()
	uut := newTestDB(t)

	owner := uuid.NewString()
	recipient1 := uuid.NewString()
	recipient2 := uuid.NewString()
	content := "Y2lwaGVy"

	var doc models.Document
	assert.Nil(uut.UseDatabaseInTransaction(
		utCtx, func(ctx context.Context, dbClient db.Database) error {
			var err error
			doc, err = dbClient.DefineNewDocument(ctx, models.Document{
				OwnerID:           owner,
				Title:             "settlement",
				Kind:              models.DocumentKindForm,
				EncryptedContent:  &content,
				EncryptionKeyHash: "aa55",
			})
			return err
		},
	))

	// Case 0: sharing with oneself is refused
	err := uut.UseDatabaseInTransaction(utCtx, func(ctx context.Context, dbClient db.Database) error {
		_, err := dbClient.DefineNewKeyShare(ctx, doc.ID, owner, owner, []byte("wrapped"), nil)
		return err
	})
	assert.Error(err)

	// Case 1: no key material is refused
	err = uut.UseDatabaseInTransaction(utCtx, func(ctx context.Context, dbClient db.Database) error {
		_, err := dbClient.DefineNewKeyShare(ctx, doc.ID, owner, recipient1, nil, nil)
		return err
	})
	assert.Error(err)

	// Case 2: two shares
	expire := time.Now().Add(time.Hour).UTC()
	var share1, share2 models.KeyShare
	err = uut.UseDatabaseInTransaction(utCtx, func(ctx context.Context, dbClient db.Database) error {
		var err error
		share1, err = dbClient.DefineNewKeyShare(
			ctx, doc.ID, owner, recipient1, []byte("wrapped-1"), &expire,
		)
		if err != nil {
			return err
		}
		share2, err = dbClient.DefineNewKeyShare(
			ctx, doc.ID, owner, recipient2, []byte("wrapped-2"), nil,
		)
		return err
	})
	assert.Nil(err)

	err = uut.UseDatabase(utCtx, func(ctx context.Context, dbClient db.Database) error {
		entry, err := dbClient.GetKeyShare(ctx, share1.ID)
		assert.Nil(err)
		assert.Equal([]byte("wrapped-1"), entry.EncKeyMaterial)
		assert.NotNil(entry.ExpiresAt)
		assert.True(expire.Equal(*entry.ExpiresAt))
		assert.Nil(entry.RevokedAt)

		entries, err := dbClient.ListKeyShares(ctx, db.KeyShareQueryFilter{
			DocumentID: &doc.ID, SharedWith: &recipient2,
		})
		assert.Nil(err)
		assert.Len(entries, 1)
		assert.Equal(share2.ID, entries[0].ID)

		entries, err = dbClient.ListKeyShares(ctx, db.KeyShareQueryFilter{SharedBy: &owner})
		assert.Nil(err)
		assert.Len(entries, 2)
		return err
	})
	assert.Nil(err)

	// Revoke share 1, twice
	revokeAt := time.Now().UTC()
	for i := 0; i < 2; i++ {
		err = uut.UseDatabaseInTransaction(utCtx, func(ctx context.Context, dbClient db.Database) error {
			return dbClient.RevokeKeyShare(ctx, share1.ID, revokeAt)
		})
		assert.Nil(err)
	}
	err = uut.UseDatabase(utCtx, func(ctx context.Context, dbClient db.Database) error {
		entry, err := dbClient.GetKeyShare(ctx, share1.ID)
		assert.Nil(err)
		assert.NotNil(entry.RevokedAt)
		assert.Equal(models.ShareDenialRevoked, entry.LiveAt(time.Now()))
		return err
	})
	assert.Nil(err)

	// Unknown share
	err = uut.UseDatabaseInTransaction(utCtx, func(ctx context.Context, dbClient db.Database) error {
		return dbClient.RevokeKeyShare(ctx, uuid.NewString(), revokeAt)
	})
	assert.Error(err)

	// Deleting the document removes its shares
	err = uut.UseDatabaseInTransaction(utCtx, func(ctx context.Context, dbClient db.Database) error {
		return dbClient.DeleteDocument(ctx, doc.ID)
	})
	assert.Nil(err)
	err = uut.UseDatabase(utCtx, func(ctx context.Context, dbClient db.Database) error {
		entries, err := dbClient.ListKeyShares(ctx, db.KeyShareQueryFilter{DocumentID: &doc.ID})
		assert.Nil(err)
		assert.Len(entries, 0)
		return err
	})
	assert.Nil(err)
}
