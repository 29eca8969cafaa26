package encryption

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/alwitt/lexvault/errdefs"
	"github.com/alwitt/lexvault/models"
	"github.com/apex/log"
	"golang.org/x/crypto/hkdf"
)

const (
	// autoKeyPrefix marks the text form of a generated key
	autoKeyPrefix = "dk1."
	// autoKeyBytes generated key size
	autoKeyBytes = 32
	// keyGenerationInfo HKDF context of generated keys
	keyGenerationInfo = "lexvault/document-key/v1"

	// MinCustomKeyLength minimum length of a custom key
	MinCustomKeyLength = 10
	// MaxCustomKeyLength maximum encoded size of a custom key; bounded by RSA wrapping
	MaxCustomKeyLength = 256
)

// DocumentKey an in-memory document key
//
// The value shares its buffer across copies, so Wipe discards the key for every holder.
// String returns the masked form so that a key never lands in a log line.
type DocumentKey struct {
	mode models.KeyModeENUMType
	text []byte
}

// ParseDocumentKey wrap key text entered by a user
//
// No strength policy is applied: the key is only checked against the ciphertext.
func ParseDocumentKey(text string) DocumentKey {
	mode := models.KeyModeCustom
	if strings.HasPrefix(text, autoKeyPrefix) {
		mode = models.KeyModeAuto
	}
	return DocumentKey{mode: mode, text: []byte(text)}
}

/*
NewCustomDocumentKey accept a user supplied passphrase as a document key

	@param passphrase string - the passphrase
	@returns the key, or *errdefs.WeakKeyError when the strength policy is not met
*/
func NewCustomDocumentKey(passphrase string) (DocumentKey, error) {
	if err := CheckKeyStrength(passphrase); err != nil {
		return DocumentKey{}, err
	}
	return DocumentKey{mode: models.KeyModeCustom, text: []byte(passphrase)}, nil
}

/*
CheckKeyStrength apply the custom key strength policy

Policy: at least MinCustomKeyLength characters, at most MaxCustomKeyLength, an upper
case letter, a lower case letter, a digit, and a symbol.

	@param passphrase string - the candidate key
	@returns *errdefs.WeakKeyError listing every failed rule
*/
func CheckKeyStrength(passphrase string) error {
	var hasUpper, hasLower, hasDigit, hasSymbol bool
	length := 0
	for _, r := range passphrase {
		length++
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSymbol = true
		}
	}

	failed := []string{}
	if length < MinCustomKeyLength {
		failed = append(failed, fmt.Sprintf("at least %d characters", MinCustomKeyLength))
	}
	if len(passphrase) > MaxCustomKeyLength {
		failed = append(failed, fmt.Sprintf("at most %d bytes", MaxCustomKeyLength))
	}
	if !hasUpper {
		failed = append(failed, "an upper case letter")
	}
	if !hasLower {
		failed = append(failed, "a lower case letter")
	}
	if !hasDigit {
		failed = append(failed, "a digit")
	}
	if !hasSymbol {
		failed = append(failed, "a symbol")
	}
	if strings.HasPrefix(passphrase, autoKeyPrefix) {
		failed = append(failed, fmt.Sprintf("must not start with '%s'", autoKeyPrefix))
	}

	if len(failed) > 0 {
		return &errdefs.WeakKeyError{Failed: failed}
	}
	return nil
}

// Mode how the key was produced
func (k DocumentKey) Mode() models.KeyModeENUMType {
	return k.mode
}

// IsZero whether the key holds no material, either never set or wiped
func (k DocumentKey) IsZero() bool {
	return len(k.text) == 0 || k.wiped()
}

func (k DocumentKey) wiped() bool {
	for _, b := range k.text {
		if b != 0 {
			return false
		}
	}
	return true
}

// Reveal the key text
func (k DocumentKey) Reveal() (string, error) {
	if k.IsZero() {
		return "", errdefs.ErrKeyDiscarded
	}
	return string(k.text), nil
}

// Masked the key text with all but the last four characters hidden
func (k DocumentKey) Masked() string {
	if k.IsZero() {
		return ""
	}
	runes := []rune(string(k.text))
	visible := 4
	if len(runes) <= 8 {
		visible = 0
	}
	return strings.Repeat("•", len(runes)-visible) + string(runes[len(runes)-visible:])
}

// String implements fmt.Stringer with the masked form
func (k DocumentKey) String() string {
	return k.Masked()
}

// Wipe zero the key buffer
func (k DocumentKey) Wipe() {
	for i := range k.text {
		k.text[i] = 0
	}
}

// bytes the raw key text
func (k DocumentKey) bytes() []byte {
	return k.text
}

/*
GenerateDocumentKey generate a new document key

	@param ctx context.Context - execution context
	@param ownerID string - the document owner
	@param documentSeed string - per document uniqueness seed, need not be secret
	@returns the new key
*/
func (e *cryptoEngine) GenerateDocumentKey(
	ctx context.Context, ownerID, documentSeed string,
) (DocumentKey, error) {
	logTags := e.GetLogTagsForContext(ctx)

	// Secrecy comes from the RNG; owner and seed only make keys unique per document
	rng := e.crypto.GetRNGReader()
	entropy := make([]byte, autoKeyBytes)
	if n, err := io.ReadFull(rng, entropy); err != nil {
		return DocumentKey{}, fmt.Errorf("failed to read %d bytes from RNG [%w]", autoKeyBytes, err)
	} else if n != autoKeyBytes {
		return DocumentKey{}, fmt.Errorf("did not get %d bytes from RNG, only %d", autoKeyBytes, n)
	}
	defer wipeBytes(entropy)

	kdf := hkdf.New(
		sha256.New, entropy, []byte(documentSeed), []byte(keyGenerationInfo+"|"+ownerID),
	)
	keyMaterial := make([]byte, autoKeyBytes)
	if _, err := io.ReadFull(kdf, keyMaterial); err != nil {
		return DocumentKey{}, fmt.Errorf("failed to derive document key [%w]", err)
	}
	defer wipeBytes(keyMaterial)

	text := make([]byte, len(autoKeyPrefix)+base64.RawURLEncoding.EncodedLen(autoKeyBytes))
	copy(text, autoKeyPrefix)
	base64.RawURLEncoding.Encode(text[len(autoKeyPrefix):], keyMaterial)

	log.WithFields(logTags).WithField("owner", ownerID).Debug("Generated document key")

	return DocumentKey{mode: models.KeyModeAuto, text: text}, nil
}

// decodeAutoKey recover the raw key material from a generated key's text
func decodeAutoKey(key DocumentKey) ([]byte, bool) {
	text := key.bytes()
	if len(text) <= len(autoKeyPrefix) || string(text[:len(autoKeyPrefix)]) != autoKeyPrefix {
		return nil, false
	}
	raw := make([]byte, base64.RawURLEncoding.DecodedLen(len(text)-len(autoKeyPrefix)))
	n, err := base64.RawURLEncoding.Strict().Decode(raw, text[len(autoKeyPrefix):])
	if err != nil || n != autoKeyBytes {
		wipeBytes(raw)
		return nil, false
	}
	return raw[:n], true
}

func wipeBytes(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
}
