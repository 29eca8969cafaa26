package encryption_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/alwitt/lexvault/encryption"
	"github.com/alwitt/lexvault/errdefs"
	"github.com/apex/log"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestPayloadRoundTrip(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	utCtx := context.Background()

	uut := newTestEngine(t, 0)

	autoKey, err := uut.GenerateDocumentKey(utCtx, uuid.NewString(), uuid.NewString())
	assert.Nil(err)
	customKey, err := encryption.NewCustomDocumentKey("Str0ng#Key2024!")
	assert.Nil(err)

	payloads := []string{
		"",
		`{"clientName":"Jane Doe","matter":"Estate of J. Doe","amount":1250.75}`,
		strings.Repeat("Lorem ipsum dolor sit amet ", 4096),
		"unicode: 契約書 – § 12(b)",
	}

	for _, key := range []encryption.DocumentKey{autoKey, customKey} {
		for idx, plainText := range payloads {
			blob1, err := uut.EncryptData(utCtx, plainText, key)
			assert.Nil(err, "case %d", idx)
			blob2, err := uut.EncryptData(utCtx, plainText, key)
			assert.Nil(err, "case %d", idx)

			// Randomized
			assert.NotEqual(blob1, blob2, "case %d", idx)
			if len(plainText) > 0 {
				assert.NotContains(blob1, plainText)
			}

			decrypted, err := uut.DecryptData(utCtx, blob1, key)
			assert.Nil(err, "case %d", idx)
			assert.Equal(plainText, string(decrypted), "case %d", idx)
		}
	}
}

func TestDecryptWrongKey(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	utCtx := context.Background()

	uut := newTestEngine(t, 0)

	autoKey1, err := uut.GenerateDocumentKey(utCtx, uuid.NewString(), uuid.NewString())
	assert.Nil(err)
	autoKey2, err := uut.GenerateDocumentKey(utCtx, uuid.NewString(), uuid.NewString())
	assert.Nil(err)
	customKey1 := encryption.ParseDocumentKey("Str0ng#Key2024!")
	customKey2 := encryption.ParseDocumentKey("Str0ng#Key2024?")

	plainText := `{"field":"value"}`

	// Case 0: generated key, different generated key
	{
		blob, err := uut.EncryptData(utCtx, plainText, autoKey1)
		assert.Nil(err)
		_, err = uut.DecryptData(utCtx, blob, autoKey2)
		assert.ErrorIs(err, errdefs.ErrWrongKey)

		// A passphrase can never open an HKDF blob
		_, err = uut.DecryptData(utCtx, blob, customKey1)
		assert.ErrorIs(err, errdefs.ErrWrongKey)
	}

	// Case 1: custom key, near miss
	{
		blob, err := uut.EncryptData(utCtx, plainText, customKey1)
		assert.Nil(err)
		_, err = uut.DecryptData(utCtx, blob, customKey2)
		assert.ErrorIs(err, errdefs.ErrWrongKey)
		_, err = uut.DecryptData(utCtx, blob, autoKey1)
		assert.ErrorIs(err, errdefs.ErrWrongKey)
	}

	// Case 2: discarded key
	{
		blob, err := uut.EncryptData(utCtx, plainText, customKey1)
		assert.Nil(err)
		_, err = uut.DecryptData(utCtx, blob, encryption.DocumentKey{})
		assert.ErrorIs(err, errdefs.ErrKeyDiscarded)
	}
}

func TestDecryptCorruptedData(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	utCtx := context.Background()

	uut := newTestEngine(t, 0)

	key := encryption.ParseDocumentKey("Str0ng#Key2024!")

	blob, err := uut.EncryptData(utCtx, "some legal content", key)
	assert.Nil(err)
	raw, err := base64.StdEncoding.DecodeString(blob)
	assert.Nil(err)

	corrupt := []string{
		"",
		"!!! not base64 !!!",
		base64.StdEncoding.EncodeToString([]byte("XXXX")),
		base64.StdEncoding.EncodeToString(raw[:20]),
		base64.StdEncoding.EncodeToString(raw[:len(raw)-len("some legal content")-16]),
	}
	{
		// Unknown version
		badVersion := bytes.Clone(raw)
		badVersion[4] = 9
		corrupt = append(corrupt, base64.StdEncoding.EncodeToString(badVersion))
	}
	{
		// Unknown KDF
		badKDF := bytes.Clone(raw)
		badKDF[5] = 7
		corrupt = append(corrupt, base64.StdEncoding.EncodeToString(badKDF))
	}
	{
		// Absurd argon2 memory cost
		badArgon := bytes.Clone(raw)
		badArgon[22+4] = 0xff
		corrupt = append(corrupt, base64.StdEncoding.EncodeToString(badArgon))
	}

	for idx, oneBlob := range corrupt {
		_, err := uut.DecryptData(utCtx, oneBlob, key)
		assert.ErrorIs(err, errdefs.ErrCorruptedData, "case %d", idx)
	}

	// A flipped ciphertext bit fails authentication
	{
		flipped := bytes.Clone(raw)
		flipped[len(flipped)-1] ^= 0x01
		_, err := uut.DecryptData(utCtx, base64.StdEncoding.EncodeToString(flipped), key)
		assert.ErrorIs(err, errdefs.ErrWrongKey)
	}
}

func TestEncryptPayloadLimit(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	utCtx := context.Background()

	uut := newTestEngine(t, 1024)

	key := encryption.ParseDocumentKey("Str0ng#Key2024!")

	_, err := uut.EncryptBytes(utCtx, make([]byte, 1024), key)
	assert.Nil(err)
	_, err = uut.EncryptBytes(utCtx, make([]byte, 1025), key)
	assert.ErrorIs(err, errdefs.ErrPayloadTooLarge)
	_, err = uut.EncryptFile(utCtx, bytes.NewReader(make([]byte, 2048)), key)
	assert.ErrorIs(err, errdefs.ErrPayloadTooLarge)
}

func TestEncryptFile(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	utCtx := context.Background()

	uut := newTestEngine(t, 0)

	key, err := uut.GenerateDocumentKey(utCtx, uuid.NewString(), uuid.NewString())
	assert.Nil(err)

	content := []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n%%EOF\n")

	result, err := uut.EncryptFile(utCtx, bytes.NewReader(content), key)
	assert.Nil(err)
	assert.Equal(int64(len(content)), result.Size)
	assert.Equal("application/pdf", result.MimeType)

	decrypted, err := uut.DecryptData(utCtx, result.Blob, key)
	assert.Nil(err)
	assert.Equal(content, decrypted)
}
