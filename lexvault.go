// Package lexvault - client side document encryption and key lifecycle
package lexvault

import (
	"context"
	"fmt"

	"github.com/alwitt/goutils"
	"github.com/alwitt/lexvault/api"
	"github.com/alwitt/lexvault/audit"
	"github.com/alwitt/lexvault/auth"
	"github.com/alwitt/lexvault/blobstore"
	"github.com/alwitt/lexvault/config"
	"github.com/alwitt/lexvault/db"
	"github.com/alwitt/lexvault/encryption"
	"github.com/alwitt/lexvault/sharing"
	"github.com/alwitt/lexvault/store"
	"github.com/apex/log"
	"github.com/gorilla/mux"
)

// DocumentVault the assembled document vault
type DocumentVault struct {
	// Persistence DB client
	Persistence db.Client
	// Crypto cryptography engine
	Crypto encryption.CryptographyEngine
	// Blobs FILE document ciphertext storage
	Blobs blobstore.Store
	// Audit audit event sink
	Audit audit.Sink
	// Authenticator caller identity tokens
	Authenticator auth.Authenticator
	// Documents document store
	Documents store.DocumentStore
	// Shares key share service
	Shares sharing.Service

	httpConfig config.HTTPConfig
}

/*
NewDocumentVault initialize a document vault instance.

Each instance is backed by a SQL database; two instances using the same database and
blob store are essentially copies of each other.

	@param ctx context.Context - execution context
	@param cfg config.Config - vault configuration
	@returns new vault instance
*/
func NewDocumentVault(ctx context.Context, cfg config.Config) (*DocumentVault, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Prepare persistence
	persistence, err := db.NewConnection(cfg.Database.Dialector(), cfg.Database.GormLogLevel())
	if err != nil {
		return nil, fmt.Errorf("failed to initialized persistence client [%w]", err)
	}

	// Prepare cryptography engine
	cryptoEngine, err := encryption.NewCryptographyEngine(ctx, encryption.CryptographyEngineParams{
		PrimaryRSACertFile: cfg.Crypto.PrimaryRSACertFile,
		PrimaryRSAKeyFile:  cfg.Crypto.PrimaryRSAKeyFile,
		Argon2:             cfg.Crypto.Argon2,
		MaxPayloadBytes:    cfg.Crypto.MaxPayloadBytes,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialized cryptography engine [%w]", err)
	}

	// Prepare ciphertext storage
	var blobs blobstore.Store
	switch cfg.BlobStore.Backend {
	case "s3":
		blobs, err = blobstore.NewS3Store(ctx, cfg.BlobStore.S3)
		if err != nil {
			return nil, fmt.Errorf("failed to initialized S3 blob store [%w]", err)
		}
	case "memory":
		log.WithFields(log.Fields{"package": "lexvault", "module": "vault"}).Warn(
			"FILE document ciphertext is held in process memory and is lost on restart",
		)
		blobs = blobstore.NewMemoryStore()
	default:
		return nil, fmt.Errorf("unknown blob store backend '%s'", cfg.BlobStore.Backend)
	}

	// Prepare audit trail
	sinks := []audit.Sink{}
	if cfg.Audit.Database {
		sinks = append(sinks, audit.NewDBSink(persistence))
	}
	if cfg.Audit.Log {
		sinks = append(sinks, audit.NewLogSink(cfg.Audit.AuditLogLevel()))
	}
	var auditSink audit.Sink
	switch len(sinks) {
	case 0:
		auditSink = audit.NewNopSink()
	case 1:
		auditSink = sinks[0]
	default:
		auditSink = audit.NewMultiSink(sinks...)
	}

	authn, err := auth.NewJWTAuthenticator([]byte(cfg.Auth.JWTSecret), cfg.Auth.Issuer, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialized authenticator [%w]", err)
	}

	documents, err := store.NewDocumentStore(store.DocumentStoreParams{
		Persistence: persistence,
		Crypto:      cryptoEngine,
		Blobs:       blobs,
		Audit:       auditSink,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialized document store [%w]", err)
	}

	shares, err := sharing.NewService(sharing.ServiceParams{
		Persistence:   persistence,
		Crypto:        cryptoEngine,
		Authenticator: authn,
		Audit:         auditSink,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialized key share service [%w]", err)
	}

	return &DocumentVault{
		Persistence:   persistence,
		Crypto:        cryptoEngine,
		Blobs:         blobs,
		Audit:         auditSink,
		Authenticator: authn,
		Documents:     documents,
		Shares:        shares,
		httpConfig:    cfg.HTTP,
	}, nil
}

/*
Migrate create or update the vault's tables

	@param ctx context.Context - execution context
*/
func (v *DocumentVault) Migrate(ctx context.Context) error {
	if err := v.Persistence.RunSQLInTransaction(ctx, db.DefineTables); err != nil {
		return fmt.Errorf("failed to define tables [%w]", err)
	}
	return nil
}

// Router the HTTP router serving the key share endpoints
func (v *DocumentVault) Router() *mux.Router {
	return api.BuildRouter(api.NewKeyShareHandler(
		v.Shares, v.Authenticator, v.Persistence.Ping, api.RequestLogging{
			RequestIDHeader: v.httpConfig.RequestIDHeader,
			LogLevel:        goutils.HTTPRequestLogLevel(v.httpConfig.LogLevel),
		},
	))
}

// Close release the vault's DB connections
func (v *DocumentVault) Close() error {
	return v.Persistence.Close()
}
