package lexvault_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alwitt/lexvault"
	"github.com/alwitt/lexvault/api"
	"github.com/alwitt/lexvault/auth"
	"github.com/alwitt/lexvault/config"
	"github.com/alwitt/lexvault/encryption"
	"github.com/alwitt/lexvault/models"
	"github.com/alwitt/lexvault/store"
	"github.com/apex/log"
	"github.com/apex/log/handlers/memory"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
)

// TestDocumentVaultEndToEnd upload a FORM document, share its key, and let the
// recipient fetch the key over HTTP to decrypt the document.
func TestDocumentVaultEndToEnd(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	ctx := context.Background()

	certFile, err := filepath.Abs("./test/ut_rsa.crt")
	assert.Nil(err)
	keyFile, err := filepath.Abs("./test/ut_rsa.key")
	assert.Nil(err)

	cfg := config.DefaultConfig()
	cfg.Database.SqliteFile = fmt.Sprintf("/tmp/lexvault_ut_%s.db", ulid.Make().String())
	cfg.Crypto.PrimaryRSACertFile = certFile
	cfg.Crypto.PrimaryRSAKeyFile = keyFile
	cfg.Crypto.Argon2 = encryption.Argon2Params{Time: 1, MemoryKiB: 1024, Threads: 1}
	cfg.Auth.JWTSecret = "0123456789abcdef0123456789abcdef"

	vault, err := lexvault.NewDocumentVault(ctx, cfg)
	assert.Nil(err)
	assert.Nil(vault.Migrate(ctx))

	owner := auth.Identity{UserID: uuid.NewString()}
	reviewer := auth.Identity{UserID: uuid.NewString()}
	formJSON := `{"client":"Acme","matter":"lease renewal"}`

	// ------------------------------------------------------------------
	// 1. Upload with a generated key
	// ------------------------------------------------------------------
	uploaded, err := vault.Documents.UploadDocument(ctx, owner, store.UploadRequest{
		ContentRequest: store.ContentRequest{FormJSON: formJSON},
		Title:          "Lease",
		Kind:           models.DocumentKindForm,
	}, nil)
	assert.Nil(err)

	// The owner must save the key before leaving the key screen
	presentation := uploaded.Presentation
	assert.Nil(presentation.Display())
	keyText, err := presentation.Copy()
	assert.Nil(err)
	assert.Equal(encryption.HashKeyText(keyText), uploaded.Document.EncryptionKeyHash)
	assert.NotNil(presentation.Continue())
	assert.Nil(presentation.SetAcknowledged(true))
	assert.Nil(presentation.Continue())

	// ------------------------------------------------------------------
	// 2. Share the key with the reviewer
	// ------------------------------------------------------------------
	expires := time.Now().Add(time.Hour)
	share, err := vault.Shares.ShareKey(
		ctx,
		owner,
		uploaded.Document.ID,
		reviewer.UserID,
		encryption.ParseDocumentKey(keyText),
		&expires,
	)
	assert.Nil(err)
	assert.Empty(share.EncKeyMaterial)

	// ------------------------------------------------------------------
	// 3. Reviewer fetches the key over HTTP
	// ------------------------------------------------------------------
	token, err := vault.Authenticator.Issue(reviewer.UserID, time.Minute)
	assert.Nil(err)
	router := vault.Router()

	var fetched api.SharedKeyResponse
	{
		req := httptest.NewRequest(
			http.MethodPost,
			fmt.Sprintf("/v1/documents/%s/shared-key", uploaded.Document.ID),
			nil,
		)
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("X-Request-ID", "e2e-fetch")
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		assert.Equal(http.StatusOK, resp.Code)
		assert.Equal("e2e-fetch", resp.Header().Get("X-Request-ID"))
		assert.Nil(json.Unmarshal(resp.Body.Bytes(), &fetched))
		assert.True(fetched.Success)
		assert.Equal("e2e-fetch", fetched.RequestID)
		assert.Equal(keyText, fetched.Key)
	}

	// A stranger gets nothing
	{
		strangerToken, err := vault.Authenticator.Issue(uuid.NewString(), time.Minute)
		assert.Nil(err)
		req := httptest.NewRequest(
			http.MethodPost,
			fmt.Sprintf("/v1/documents/%s/shared-key", uploaded.Document.ID),
			nil,
		)
		req.Header.Set("Authorization", "Bearer "+strangerToken)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		assert.Equal(http.StatusNotFound, resp.Code)
	}

	// ------------------------------------------------------------------
	// 4. Reviewer decrypts with the fetched key
	// ------------------------------------------------------------------
	session, err := vault.Documents.OpenDocument(ctx, reviewer, uploaded.Document.ID)
	assert.Nil(err)
	state, err := session.Attempt(
		ctx, encryption.ParseDocumentKey(fetched.Key), models.KeySourceShared, true,
	)
	assert.Nil(err)
	assert.Equal(models.DecryptionDecrypted, state)
	plainText, err := session.Plaintext()
	assert.Nil(err)
	assert.Equal(formJSON, string(plainText))
	session.Hide()
	assert.Equal(models.DecryptionAwaitingKey, session.State())

	// ------------------------------------------------------------------
	// 5. Owner revokes; the reviewer is refused
	// ------------------------------------------------------------------
	assert.Nil(vault.Shares.RevokeShare(ctx, owner, share.ID))
	{
		req := httptest.NewRequest(
			http.MethodPost,
			fmt.Sprintf("/v1/documents/%s/shared-key", uploaded.Document.ID),
			nil,
		)
		req.Header.Set("Authorization", "Bearer "+token)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		assert.Equal(http.StatusNotFound, resp.Code)
	}

	// ------------------------------------------------------------------
	// 6. Delete the document
	// ------------------------------------------------------------------
	assert.Nil(vault.Documents.DeleteDocument(ctx, owner, uploaded.Document.ID, nil))
	docs, err := vault.Documents.ListDocuments(ctx, owner, nil)
	assert.Nil(err)
	assert.Empty(docs)

	{
		req := httptest.NewRequest(http.MethodGet, "/v1/ready", nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		assert.Equal(http.StatusOK, resp.Code)
	}
	assert.Nil(vault.Close())
}

func TestDocumentVaultMemoryBackendWarning(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	ctx := context.Background()

	certFile, err := filepath.Abs("./test/ut_rsa.crt")
	assert.Nil(err)
	keyFile, err := filepath.Abs("./test/ut_rsa.key")
	assert.Nil(err)

	previous := log.Log.(*log.Logger).Handler
	logs := memory.New()
	log.SetHandler(logs)
	defer log.SetHandler(previous)

	cfg := config.DefaultConfig()
	cfg.Database.SqliteFile = fmt.Sprintf("/tmp/lexvault_ut_%s.db", ulid.Make().String())
	cfg.Crypto.PrimaryRSACertFile = certFile
	cfg.Crypto.PrimaryRSAKeyFile = keyFile
	cfg.Crypto.Argon2 = encryption.Argon2Params{Time: 1, MemoryKiB: 1024, Threads: 1}
	cfg.Auth.JWTSecret = "0123456789abcdef0123456789abcdef"

	vault, err := lexvault.NewDocumentVault(ctx, cfg)
	assert.Nil(err)
	defer func() {
		assert.Nil(vault.Close())
	}()

	warned := false
	for _, entry := range logs.Entries {
		if entry.Level == log.WarnLevel && strings.Contains(entry.Message, "process memory") {
			warned = true
		}
	}
	assert.True(warned)
}
