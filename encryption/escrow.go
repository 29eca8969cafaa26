package encryption

import (
	"context"
	"fmt"

	"github.com/alwitt/lexvault/models"
)

// wrapped key layout: one mode byte followed by the key text
const (
	wrappedModeAuto   byte = 1
	wrappedModeCustom byte = 2
)

/*
WrapKey wrap a document key with the primary RSA public key for server side escrow

	@param ctx context.Context - execution context
	@param key DocumentKey - the document key
	@returns wrapped key material
*/
func (e *cryptoEngine) WrapKey(ctx context.Context, key DocumentKey) ([]byte, error) {
	if key.IsZero() {
		return nil, fmt.Errorf("can not wrap empty key")
	}

	mode := wrappedModeCustom
	if key.Mode() == models.KeyModeAuto {
		mode = wrappedModeAuto
	}
	plain := make([]byte, 0, len(key.bytes())+1)
	plain = append(plain, mode)
	plain = append(plain, key.bytes()...)
	defer wipeBytes(plain)

	wrapped, err := e.crypto.RSAEncrypt(ctx, plain, e.rsaPubKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to wrap document key [%w]", err)
	}
	return wrapped, nil
}

/*
UnwrapKey unwrap RSA wrapped key material

	@param ctx context.Context - execution context
	@param wrapped []byte - wrapped key material
	@returns the document key
*/
func (e *cryptoEngine) UnwrapKey(ctx context.Context, wrapped []byte) (DocumentKey, error) {
	plain, err := e.crypto.RSADecrypt(ctx, wrapped, e.rsaKey, nil)
	if err != nil {
		return DocumentKey{}, fmt.Errorf("failed to unwrap document key [%w]", err)
	}
	defer wipeBytes(plain)

	if len(plain) < 2 {
		return DocumentKey{}, fmt.Errorf("unwrapped key material too short")
	}

	var mode models.KeyModeENUMType
	switch plain[0] {
	case wrappedModeAuto:
		mode = models.KeyModeAuto
	case wrappedModeCustom:
		mode = models.KeyModeCustom
	default:
		return DocumentKey{}, fmt.Errorf("unknown wrapped key mode %d", plain[0])
	}

	text := make([]byte, len(plain)-1)
	copy(text, plain[1:])
	return DocumentKey{mode: mode, text: text}, nil
}
