package encryption

import (
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/blake2b"
)

const fingerprintDomain = "lexvault/key-fingerprint/v1\x00"

// Passphrase fingerprints go through Argon2id so a leaked fingerprint column can not be
// searched at hash speed. Generated keys carry 256 bits of entropy and take the fast path.
const (
	fingerprintArgon2Time      = 2
	fingerprintArgon2MemoryKiB = 19 * 1024
	fingerprintArgon2Threads   = 1
	fingerprintBytes           = 32
)

// HashKey compute the fingerprint of a document key
//
// The fingerprint identifies a key without revealing it. It is not a KDF output and can
// not be used to decrypt.
func HashKey(key DocumentKey) string {
	return fingerprintOf(key.bytes())
}

// HashKeyText compute the fingerprint of raw key text
func HashKeyText(text string) string {
	return fingerprintOf([]byte(text))
}

// fingerprintOf pick the fingerprint derivation by the key's text form
//
// Custom keys can never carry the generated key prefix, so the text alone decides.
func fingerprintOf(text []byte) string {
	if strings.HasPrefix(string(text), autoKeyPrefix) {
		return hashKeyText(text)
	}
	return stretchKeyText(text)
}

func hashKeyText(text []byte) string {
	hasher, _ := blake2b.New256(nil)
	_, _ = hasher.Write([]byte(fingerprintDomain))
	_, _ = hasher.Write(text)
	return hex.EncodeToString(hasher.Sum(nil))
}

func stretchKeyText(text []byte) string {
	stretched := argon2.IDKey(
		text,
		[]byte(fingerprintDomain),
		fingerprintArgon2Time,
		fingerprintArgon2MemoryKiB,
		fingerprintArgon2Threads,
		fingerprintBytes,
	)
	defer wipeBytes(stretched)
	return hex.EncodeToString(stretched)
}

/*
VerifyKeyFingerprint check whether a key matches a recorded fingerprint

	@param key DocumentKey - the candidate key
	@param fingerprint string - the recorded fingerprint
	@returns whether they match
*/
func VerifyKeyFingerprint(key DocumentKey, fingerprint string) bool {
	if key.IsZero() {
		return false
	}
	computed := HashKey(key)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(fingerprint)) == 1
}
