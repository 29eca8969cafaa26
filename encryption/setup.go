package encryption

import (
	"context"
	"fmt"
	"os"
)

// minEscrowRSAKeyBytes smallest RSA modulus able to OAEP wrap the longest custom key
// plus its mode byte under a 512 bit digest. 4096 bit keys qualify.
const minEscrowRSAKeyBytes = 2*64 + 2 + 1 + MaxCustomKeyLength

// loadRSAKeyPair load the primary RSA key pair used for wrapping shared document keys
func (e *cryptoEngine) loadRSAKeyPair(
	ctx context.Context, certFilePath string, keyFilePath string,
) error {
	certContent, err := os.ReadFile(certFilePath)
	if err != nil {
		return fmt.Errorf("%s read error [%w]", certFilePath, err)
	}

	keyContent, err := os.ReadFile(keyFilePath)
	if err != nil {
		return fmt.Errorf("%s read error [%w]", keyFilePath, err)
	}

	parsedCert, err := e.crypto.ParseCertificateFromPEM(ctx, string(certContent))
	if err != nil {
		return fmt.Errorf("failed to parse x509 certificate in %s [%w]", certFilePath, err)
	}

	parsedKey, err := e.crypto.ParseRSAPrivateKeyFromPEM(ctx, string(keyContent))
	if err != nil {
		return fmt.Errorf("failed to parse RSA private key in %s [%w]", keyFilePath, err)
	}

	parsedPubKey, err := e.crypto.ReadRSAPublicKeyFromCert(ctx, parsedCert)
	if err != nil {
		return fmt.Errorf(
			"failed to pull RSA public key from x509 certificate in %s [%w]", certFilePath, err,
		)
	}

	if !parsedKey.PublicKey.Equal(parsedPubKey) {
		return fmt.Errorf(
			"RSA private key in %s does not belong to certificate %s", keyFilePath, certFilePath,
		)
	}
	if parsedPubKey.Size() < minEscrowRSAKeyBytes {
		return fmt.Errorf(
			"RSA key in %s is %d bits; escrow needs at least %d",
			certFilePath, parsedPubKey.Size()*8, minEscrowRSAKeyBytes*8,
		)
	}

	e.rsaKey = parsedKey
	e.rsaPubKey = parsedPubKey

	return nil
}
