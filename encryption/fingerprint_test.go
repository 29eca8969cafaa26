package encryption_test

import (
	"encoding/hex"
	"testing"

	"github.com/alwitt/lexvault/encryption"
	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/blake2b"
)

func TestKeyFingerprint(t *testing.T) {
	assert := assert.New(t)

	key1 := encryption.ParseDocumentKey("Str0ng#Key2024!")
	key2 := encryption.ParseDocumentKey("Str0ng#Key2025!")

	// Deterministic
	assert.Equal(encryption.HashKey(key1), encryption.HashKey(key1))
	assert.Equal(encryption.HashKey(key1), encryption.HashKeyText("Str0ng#Key2024!"))
	assert.Len(encryption.HashKey(key1), 64)

	// Distinct keys, distinct fingerprints
	assert.NotEqual(encryption.HashKey(key1), encryption.HashKey(key2))

	// Never the key itself
	assert.NotContains(encryption.HashKey(key1), "Str0ng")

	// Empty input still fingerprints
	assert.Equal(encryption.HashKeyText(""), encryption.HashKeyText(""))
	assert.Len(encryption.HashKeyText(""), 64)

	assert.True(encryption.VerifyKeyFingerprint(key1, encryption.HashKey(key1)))
	assert.False(encryption.VerifyKeyFingerprint(key2, encryption.HashKey(key1)))
	assert.False(encryption.VerifyKeyFingerprint(encryption.DocumentKey{}, encryption.HashKeyText("")))
}

func TestPassphraseFingerprintIsStretched(t *testing.T) {
	assert := assert.New(t)

	passphrase := "Str0ng#Key2024!"
	key := encryption.ParseDocumentKey(passphrase)
	fingerprint := encryption.HashKey(key)

	// Not a plain digest of the passphrase
	plain := blake2b.Sum256([]byte(passphrase))
	domained := blake2b.Sum256([]byte("lexvault/key-fingerprint/v1\x00" + passphrase))
	assert.NotEqual(hex.EncodeToString(plain[:]), fingerprint)
	assert.NotEqual(hex.EncodeToString(domained[:]), fingerprint)

	// Still deterministic and verifiable
	assert.Equal(fingerprint, encryption.HashKeyText(passphrase))
	assert.True(encryption.VerifyKeyFingerprint(key, fingerprint))
	assert.False(encryption.VerifyKeyFingerprint(
		encryption.ParseDocumentKey("Str0ng#Key2024?"), fingerprint,
	))

	// Generated keys keep the fast digest
	generated := "dk1.q7xN2m5Vb0cJ4LwZ8eR1tY6uI3oP9aSdFgHjKlZxCvB"
	generatedDigest := blake2b.Sum256([]byte("lexvault/key-fingerprint/v1\x00" + generated))
	assert.Equal(hex.EncodeToString(generatedDigest[:]), encryption.HashKeyText(generated))
}
