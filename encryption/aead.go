package encryption

import (
	"context"
	"fmt"

	cgoCrypto "github.com/alwitt/cgoutils/crypto"
)

// setupAEAD prepare an XChaCha20-Poly1305 AEAD
//
// A fresh random nonce is installed when nonce is empty.
func (e *cryptoEngine) setupAEAD(
	ctx context.Context, key []byte, nonce []byte,
) (cgoCrypto.AEAD, error) {
	aead, err := e.crypto.GetAEAD(ctx, cgoCrypto.AEADTypeXChaCha20Poly1305)
	if err != nil {
		return nil, fmt.Errorf("unable to define AEAD client [%w]", err)
	}

	keyBuffer, err := e.secureCopy(key, aead.ExpectedKeyLen())
	if err != nil {
		return nil, fmt.Errorf("failed to prepare AEAD key [%w]", err)
	}
	if err := aead.SetKey(keyBuffer); err != nil {
		return nil, fmt.Errorf("failed to install AEAD key [%w]", err)
	}

	var nonceBuffer cgoCrypto.SecureCSlice
	if len(nonce) == 0 {
		nonceBuffer, err = e.crypto.GetRandomBuf(ctx, aead.ExpectedNonceLen())
	} else {
		nonceBuffer, err = e.secureCopy(nonce, aead.ExpectedNonceLen())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to prepare AEAD nonce [%w]", err)
	}
	if err := aead.SetNonce(nonceBuffer); err != nil {
		return nil, fmt.Errorf("failed to install AEAD nonce [%w]", err)
	}

	return aead, nil
}

// secureCopy place material in locked memory; material must be exactly size bytes
func (e *cryptoEngine) secureCopy(material []byte, size int) (cgoCrypto.SecureCSlice, error) {
	if len(material) != size {
		return nil, fmt.Errorf("expected %d bytes, got %d", size, len(material))
	}
	buffer, err := e.crypto.AllocateSecureCSlice(size)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate secure buffer [%w]", err)
	}
	core, err := buffer.GetSlice()
	if err != nil {
		return nil, fmt.Errorf("failed to access secure buffer core [%w]", err)
	}
	copy(core, material)
	return buffer, nil
}
