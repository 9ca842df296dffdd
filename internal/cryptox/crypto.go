// Package cryptox seals small secrets (collector access tokens) at rest.
// Keys are derived with argon2id from the server secret and a per-secret
// salt; payloads are sealed with AES-256-GCM.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"

	"github.com/dmitrijs2005/howyoubeen/internal/common"
	"golang.org/x/crypto/argon2"
)

const (
	saltSize = 16
	keySize  = 32
)

// Sealed is an encrypted secret together with what is needed to open it
// again given the same server secret.
type Sealed struct {
	Ciphertext []byte `json:"ciphertext"`
	Nonce      []byte `json:"nonce"`
	Salt       []byte `json:"salt"`
}

// DeriveKey stretches secret into a 256-bit key.
func DeriveKey(secret []byte, salt []byte) []byte {
	return argon2.IDKey(secret, salt, 1, 64*1024, 4, keySize)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Seal encrypts plaintext under a key derived from secret and a fresh salt.
func Seal(plaintext, secret []byte) (*Sealed, error) {
	if len(secret) == 0 {
		return nil, errors.New("empty secret")
	}

	salt := common.GenerateRandByteArray(saltSize)
	key := DeriveKey(secret, salt)
	defer common.WipeByteArray(key)

	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := common.GenerateRandByteArray(aesgcm.NonceSize())

	return &Sealed{
		Ciphertext: aesgcm.Seal(nil, nonce, plaintext, nil),
		Nonce:      nonce,
		Salt:       salt,
	}, nil
}

// Open reverses Seal. A wrong secret or tampered payload yields an error.
func Open(s *Sealed, secret []byte) ([]byte, error) {
	if s == nil {
		return nil, errors.New("nothing to open")
	}

	key := DeriveKey(secret, s.Salt)
	defer common.WipeByteArray(key)

	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	return aesgcm.Open(nil, s.Nonce, s.Ciphertext, nil)
}
