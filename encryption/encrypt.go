package encryption

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/alwitt/lexvault/errdefs"
	"github.com/apex/log"
	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
)

const payloadKeyInfo = "lexvault/payload-key/v1"

/*
deriveKey derive the AEAD key for one payload

	@param key DocumentKey - the document key
	@param header payloadHeader - the payload parameters
	@returns the AEAD key, or errdefs.ErrWrongKey if the key can not be used with the KDF
*/
func deriveKey(key DocumentKey, header payloadHeader) ([]byte, error) {
	switch header.kdf {
	case kdfHKDF:
		raw, ok := decodeAutoKey(key)
		if !ok {
			return nil, errdefs.ErrWrongKey
		}
		defer wipeBytes(raw)
		derived := make([]byte, payloadKeyLen)
		if _, err := io.ReadFull(
			hkdf.New(sha256.New, raw, header.salt, []byte(payloadKeyInfo)), derived,
		); err != nil {
			return nil, fmt.Errorf("HKDF failure [%w]", err)
		}
		return derived, nil

	case kdfArgon2:
		return argon2.IDKey(
			key.bytes(),
			header.salt,
			header.argon2.Time,
			header.argon2.MemoryKiB,
			header.argon2.Threads,
			payloadKeyLen,
		), nil

	default:
		return nil, errdefs.ErrCorruptedData
	}
}

// EncryptData encrypt a text payload (i.e. form JSON)
func (e *cryptoEngine) EncryptData(
	ctx context.Context, plainText string, key DocumentKey,
) (string, error) {
	return e.EncryptBytes(ctx, []byte(plainText), key)
}

/*
EncryptBytes encrypt a byte payload

	@param ctx context.Context - execution context
	@param plainText []byte - the payload
	@param key DocumentKey - the document key
	@returns the ciphertext blob
*/
func (e *cryptoEngine) EncryptBytes(
	ctx context.Context, plainText []byte, key DocumentKey,
) (string, error) {
	if key.IsZero() {
		return "", errdefs.ErrKeyDiscarded
	}
	if int64(len(plainText)) > e.maxPayloadBytes {
		return "", errdefs.ErrPayloadTooLarge
	}

	// Generated keys already carry full entropy; passphrases get stretched
	header := payloadHeader{kdf: kdfArgon2, argon2: e.argon2, salt: make([]byte, payloadSaltLen)}
	if raw, ok := decodeAutoKey(key); ok {
		wipeBytes(raw)
		header.kdf = kdfHKDF
		header.argon2 = Argon2Params{}
	}

	rng := e.crypto.GetRNGReader()
	if n, err := rng.Read(header.salt); err != nil {
		return "", fmt.Errorf("failed to read %d bytes from RNG [%w]", payloadSaltLen, err)
	} else if n != payloadSaltLen {
		return "", fmt.Errorf("did not get %d bytes from RNG, only %d", payloadSaltLen, n)
	}

	derived, err := deriveKey(key, header)
	if err != nil {
		return "", fmt.Errorf("failed to derive payload key [%w]", err)
	}
	defer wipeBytes(derived)

	aead, err := e.setupAEAD(ctx, derived, nil)
	if err != nil {
		return "", fmt.Errorf("failed to setup AEAD client [%w]", err)
	}

	// Grab the nonce
	nonce, err := aead.Nonce().GetSlice()
	if err != nil {
		return "", fmt.Errorf("failed to get nonce [%w]", err)
	}
	if len(nonce) != payloadNonceLen {
		return "", fmt.Errorf("unexpected nonce length %d", len(nonce))
	}
	header.nonce = make([]byte, payloadNonceLen)
	copy(header.nonce, nonce)

	cipherText := make([]byte, aead.ExpectedCipherLen(int64(len(plainText))))
	if err := aead.Seal(ctx, 0, plainText, nil, cipherText); err != nil {
		return "", fmt.Errorf("failed to encrypt plain text [%w]", err)
	}

	return header.encode(cipherText), nil
}

/*
EncryptFile read the whole content of a file and encrypt it

	@param ctx context.Context - execution context
	@param file io.Reader - the file content
	@param key DocumentKey - the document key
	@returns the ciphertext blob along with plain text size and MIME type
*/
func (e *cryptoEngine) EncryptFile(
	ctx context.Context, file io.Reader, key DocumentKey,
) (EncryptedFile, error) {
	logTags := e.GetLogTagsForContext(ctx)

	content, err := io.ReadAll(io.LimitReader(file, e.maxPayloadBytes+1))
	if err != nil {
		return EncryptedFile{}, fmt.Errorf("failed to read file content [%w]", err)
	}
	defer wipeBytes(content)
	if int64(len(content)) > e.maxPayloadBytes {
		return EncryptedFile{}, errdefs.ErrPayloadTooLarge
	}

	mime, err := mimetype.DetectReader(bytes.NewReader(content))
	if err != nil {
		return EncryptedFile{}, fmt.Errorf("failed to detect file MIME type [%w]", err)
	}

	blob, err := e.EncryptBytes(ctx, content, key)
	if err != nil {
		return EncryptedFile{}, err
	}

	log.WithFields(logTags).
		WithField("size", len(content)).
		WithField("mime", mime.String()).
		Debug("Encrypted file content")

	return EncryptedFile{Blob: blob, Size: int64(len(content)), MimeType: mime.String()}, nil
}

/*
DecryptData decrypt a ciphertext blob

	@param ctx context.Context - execution context
	@param blob string - the ciphertext blob
	@param key DocumentKey - the document key
	@returns the plain text
*/
func (e *cryptoEngine) DecryptData(
	ctx context.Context, blob string, key DocumentKey,
) ([]byte, error) {
	if key.IsZero() {
		return nil, errdefs.ErrKeyDiscarded
	}

	header, cipherText, err := decodePayload(blob)
	if err != nil {
		return nil, err
	}

	derived, err := deriveKey(key, header)
	if err != nil {
		return nil, err
	}
	defer wipeBytes(derived)

	aead, err := e.setupAEAD(ctx, derived, header.nonce)
	if err != nil {
		return nil, fmt.Errorf("failed to setup AEAD client [%w]", err)
	}

	plainLen := aead.ExpectedPlainTextLen(int64(len(cipherText)))
	if plainLen < 0 {
		return nil, fmt.Errorf("ciphertext too short [%w]", errdefs.ErrCorruptedData)
	}
	plainText := make([]byte, plainLen)
	if err := aead.Unseal(ctx, 0, cipherText, nil, plainText); err != nil {
		log.WithError(err).WithFields(e.GetLogTagsForContext(ctx)).Debug("AEAD authentication failed")
		return nil, errdefs.ErrWrongKey
	}

	return plainText, nil
}
