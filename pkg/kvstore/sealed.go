package kvstore

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

// sealer encrypts values at rest with a device-scoped key. Tokens never hit
// disk in the clear.
type sealer struct {
	key [32]byte
}

func newSealer(hexKey string) (*sealer, error) {
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("kvstore: seal key must be hex: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("kvstore: seal key must be 32 bytes, got %d", len(raw))
	}
	s := &sealer{}
	copy(s.key[:], raw)
	return s, nil
}

func (s *sealer) seal(plain []byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("kvstore: generate nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], plain, &nonce, &s.key), nil
}

func (s *sealer) open(sealed []byte) ([]byte, error) {
	if len(sealed) < nonceSize {
		return nil, errors.New("kvstore: sealed value too short")
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	plain, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &s.key)
	if !ok {
		return nil, errors.New("kvstore: sealed value failed to open")
	}
	return plain, nil
}
