package encryption

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"github.com/alwitt/lexvault/errdefs"
)

// Ciphertext blob layout, base64 (standard) encoded as a whole:
//
//	magic "LXV1" | version | kdf | salt (16)
//	| argon2 only: time (uint32 BE) | memory KiB (uint32 BE) | threads (1)
//	| nonce (24) | ciphertext with tag
const (
	payloadMagic   = "LXV1"
	payloadVersion = byte(1)

	kdfHKDF   = byte(1)
	kdfArgon2 = byte(2)

	payloadSaltLen  = 16
	payloadNonceLen = 24
	payloadTagLen   = 16
	payloadKeyLen   = 32

	argon2ParamsLen = 9

	// bounds applied to parameters read from a blob
	maxArgon2Time      = 10
	maxArgon2MemoryKiB = 1024 * 1024
)

// payloadHeader parameters carried by a ciphertext blob
type payloadHeader struct {
	kdf    byte
	salt   []byte
	argon2 Argon2Params
	nonce  []byte
}

func (h payloadHeader) encode(cipherText []byte) string {
	size := len(payloadMagic) + 2 + payloadSaltLen + len(h.nonce) + len(cipherText)
	if h.kdf == kdfArgon2 {
		size += argon2ParamsLen
	}
	buf := make([]byte, 0, size)
	buf = append(buf, payloadMagic...)
	buf = append(buf, payloadVersion, h.kdf)
	buf = append(buf, h.salt...)
	if h.kdf == kdfArgon2 {
		buf = binary.BigEndian.AppendUint32(buf, h.argon2.Time)
		buf = binary.BigEndian.AppendUint32(buf, h.argon2.MemoryKiB)
		buf = append(buf, h.argon2.Threads)
	}
	buf = append(buf, h.nonce...)
	buf = append(buf, cipherText...)
	return base64.StdEncoding.EncodeToString(buf)
}

/*
decodePayload split a ciphertext blob into its header and ciphertext

	@param blob string - the ciphertext blob
	@returns header and ciphertext, or errdefs.ErrCorruptedData
*/
func decodePayload(blob string) (payloadHeader, []byte, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return payloadHeader{}, nil, fmt.Errorf("blob is not base64 [%w]", errdefs.ErrCorruptedData)
	}

	fixed := len(payloadMagic) + 2 + payloadSaltLen
	if len(raw) < fixed || string(raw[:len(payloadMagic)]) != payloadMagic {
		return payloadHeader{}, nil, fmt.Errorf("unknown blob format [%w]", errdefs.ErrCorruptedData)
	}
	if version := raw[len(payloadMagic)]; version != payloadVersion {
		return payloadHeader{}, nil, fmt.Errorf(
			"unsupported blob version %d [%w]", version, errdefs.ErrCorruptedData,
		)
	}

	header := payloadHeader{kdf: raw[len(payloadMagic)+1]}
	header.salt = raw[len(payloadMagic)+2 : fixed]
	rest := raw[fixed:]

	switch header.kdf {
	case kdfHKDF:
	case kdfArgon2:
		if len(rest) < argon2ParamsLen {
			return payloadHeader{}, nil, fmt.Errorf("blob truncated [%w]", errdefs.ErrCorruptedData)
		}
		header.argon2 = Argon2Params{
			Time:      binary.BigEndian.Uint32(rest[0:4]),
			MemoryKiB: binary.BigEndian.Uint32(rest[4:8]),
			Threads:   rest[8],
		}
		rest = rest[argon2ParamsLen:]
		if header.argon2.Time < 1 || header.argon2.Time > maxArgon2Time ||
			header.argon2.MemoryKiB < 8 || header.argon2.MemoryKiB > maxArgon2MemoryKiB ||
			header.argon2.Threads < 1 {
			return payloadHeader{}, nil, fmt.Errorf(
				"blob carries invalid argon2 parameters [%w]", errdefs.ErrCorruptedData,
			)
		}
	default:
		return payloadHeader{}, nil, fmt.Errorf(
			"unknown key derivation %d [%w]", header.kdf, errdefs.ErrCorruptedData,
		)
	}

	if len(rest) < payloadNonceLen+payloadTagLen {
		return payloadHeader{}, nil, fmt.Errorf("blob truncated [%w]", errdefs.ErrCorruptedData)
	}
	header.nonce = rest[:payloadNonceLen]

	return header, rest[payloadNonceLen:], nil
}
