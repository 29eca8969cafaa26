// Package encryption - document encryption and key lifecycle engine
package encryption

import (
	"context"
	"crypto/rsa"
	"fmt"
	"io"

	cgoCrypto "github.com/alwitt/cgoutils/crypto"
	"github.com/alwitt/goutils"
	"github.com/alwitt/lexvault/models"
	"github.com/apex/log"
	"github.com/go-playground/validator/v10"
)

/*
CryptographyEngine the system's cryptography engine. It is solely responsible for all
cryptographic operations which need key material or randomness.

Document keys never leave the engine's callers in a persisted form: only ciphertext,
key fingerprints, and RSA wrapped keys (for key shares) are produced for storage.
*/
type CryptographyEngine interface {
	// ------------------------------------------------------------------------------------
	// Document keys

	/*
		GenerateDocumentKey generate a new document key

		The key mixes fresh CSPRNG output with the owner and seed, so it can not be
		reproduced from the owner and seed alone.

			@param ctx context.Context - execution context
			@param ownerID string - the document owner
			@param documentSeed string - per document uniqueness seed, need not be secret
			@returns the new key
	*/
	GenerateDocumentKey(ctx context.Context, ownerID, documentSeed string) (DocumentKey, error)

	/*
		WrapKey wrap a document key with the primary RSA public key for server side escrow

			@param ctx context.Context - execution context
			@param key DocumentKey - the document key
			@returns wrapped key material
	*/
	WrapKey(ctx context.Context, key DocumentKey) ([]byte, error)

	/*
		UnwrapKey unwrap RSA wrapped key material

			@param ctx context.Context - execution context
			@param wrapped []byte - wrapped key material
			@returns the document key
	*/
	UnwrapKey(ctx context.Context, wrapped []byte) (DocumentKey, error)

	// ------------------------------------------------------------------------------------
	// Payload cipher

	/*
		EncryptData encrypt a text payload (i.e. form JSON)

			@param ctx context.Context - execution context
			@param plainText string - the payload
			@param key DocumentKey - the document key
			@returns the ciphertext blob
	*/
	EncryptData(ctx context.Context, plainText string, key DocumentKey) (string, error)

	/*
		EncryptBytes encrypt a byte payload

			@param ctx context.Context - execution context
			@param plainText []byte - the payload
			@param key DocumentKey - the document key
			@returns the ciphertext blob
	*/
	EncryptBytes(ctx context.Context, plainText []byte, key DocumentKey) (string, error)

	/*
		EncryptFile read the whole content of a file and encrypt it

			@param ctx context.Context - execution context
			@param file io.Reader - the file content
			@param key DocumentKey - the document key
			@returns the ciphertext blob along with plain text size and MIME type
	*/
	EncryptFile(ctx context.Context, file io.Reader, key DocumentKey) (EncryptedFile, error)

	/*
		DecryptData decrypt a ciphertext blob

		Fails with errdefs.ErrWrongKey when the AEAD authentication fails and with
		errdefs.ErrCorruptedData when the blob is malformed.

			@param ctx context.Context - execution context
			@param blob string - the ciphertext blob
			@param key DocumentKey - the document key
			@returns the plain text
	*/
	DecryptData(ctx context.Context, blob string, key DocumentKey) ([]byte, error)
}

// EncryptedFile result of encrypting a file
type EncryptedFile struct {
	// Blob the ciphertext blob
	Blob string
	// Size the plain text size in bytes
	Size int64
	// MimeType the detected MIME type of the plain text
	MimeType string
}

// Argon2Params Argon2id parameters used to stretch custom passphrase keys
type Argon2Params struct {
	// Time number of passes
	Time uint32 `validate:"gte=1,lte=10" yaml:"time"`
	// MemoryKiB memory cost in KiB
	MemoryKiB uint32 `validate:"gte=8,lte=1048576" yaml:"memoryKiB"`
	// Threads degree of parallelism
	Threads uint8 `validate:"gte=1" yaml:"threads"`
}

// DefaultArgon2Params the default Argon2id parameters
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{Time: 3, MemoryKiB: 64 * 1024, Threads: 4}
}

// DefaultMaxPayloadBytes the default payload size limit
const DefaultMaxPayloadBytes int64 = 25 * 1024 * 1024

// cryptoEngine implements CryptographyEngine
type cryptoEngine struct {
	goutils.Component

	validator *validator.Validate

	crypto cgoCrypto.Engine

	rsaKey    *rsa.PrivateKey
	rsaPubKey *rsa.PublicKey

	argon2          Argon2Params
	maxPayloadBytes int64
}

// CryptographyEngineParams cryptography engine init parameters
//
// The primary RSA key pair is used to wrap document keys held by key shares
type CryptographyEngineParams struct {
	// PrimaryRSACertFile file path to the primary RSA certificate PEM
	PrimaryRSACertFile string `validate:"required,file"`
	// PrimaryRSAKeyFile file path to the primary RSA certificate private key PEM
	PrimaryRSAKeyFile string `validate:"required,file"`
	// Argon2 custom key stretching parameters; zero value selects the defaults
	Argon2 Argon2Params `validate:"-"`
	// MaxPayloadBytes payload size limit; zero selects the default
	MaxPayloadBytes int64 `validate:"gte=0"`
}

/*
NewCryptographyEngine define new cryptography engine

	@param ctx context.Context - execution context
	@param params CryptographyEngineParams - engine parameters
	@returns engine instance
*/
func NewCryptographyEngine(
	ctx context.Context, params CryptographyEngineParams,
) (CryptographyEngine, error) {
	// Prepare core crypto engine
	engine, err := cgoCrypto.NewEngine(log.Fields{
		"package": "cgoutils", "module": "crypto", "component": "crypto-engine",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to prepare core cryptography [%w]", err)
	}

	logTags := log.Fields{"module": "encryption", "component": "crypto-engine"}

	instance := &cryptoEngine{
		Component: goutils.Component{
			LogTags: logTags,
			LogTagModifiers: []goutils.LogMetadataModifier{
				goutils.ModifyLogMetadataByRestRequestParam,
			},
		},
		validator:       validator.New(),
		crypto:          engine,
		argon2:          params.Argon2,
		maxPayloadBytes: params.MaxPayloadBytes,
	}
	if err := models.RegisterWithValidator(instance.validator); err != nil {
		return nil, fmt.Errorf("failed to install custom validation macros [%w]", err)
	}

	if err := instance.validator.Struct(&params); err != nil {
		return nil, fmt.Errorf("invalid engine init parameters [%w]", err)
	}
	if instance.argon2 == (Argon2Params{}) {
		instance.argon2 = DefaultArgon2Params()
	}
	if err := instance.validator.Struct(&instance.argon2); err != nil {
		return nil, fmt.Errorf("invalid argon2 parameters [%w]", err)
	}
	if instance.maxPayloadBytes == 0 {
		instance.maxPayloadBytes = DefaultMaxPayloadBytes
	}

	// Load the primary RSA certificate and private key
	if err := instance.loadRSAKeyPair(
		ctx, params.PrimaryRSACertFile, params.PrimaryRSAKeyFile,
	); err != nil {
		return nil, fmt.Errorf("failed to load primary RSA key pair [%w]", err)
	}

	return instance, nil
}
