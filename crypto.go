package sealfs

import (
	"crypto/aes"
	"crypto/cipher"
)

// Node sealing uses AES-128-GCM with a zero IV. Every key seals exactly
// one message, so IV reuse cannot occur.

const (
	keySize   = 16
	macSize   = 16
	gcmIVSize = 12
)

var zeroIV [gcmIVSize]byte

// Key is a 128-bit AES-GCM key.
type Key [keySize]byte

// Mac is a 128-bit GCM authentication tag.
type Mac [macSize]byte

// KeyID is the key-derivation nonce recorded in the metadata header so
// the metadata key can be restored on open.
type KeyID [32]byte

func newGCM(key Key) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// gcmSeal encrypts plaintext into dst and returns the authentication
// tag. dst must be len(plaintext) bytes; aad is authenticated but not
// encrypted. plaintext may be empty for tag-only sealing.
func gcmSeal(key Key, dst, plaintext, aad []byte) (Mac, error) {
	var mac Mac
	aead, err := newGCM(key)
	if err != nil {
		return mac, err
	}
	out := aead.Seal(nil, zeroIV[:], plaintext, aad)
	copy(dst, out[:len(plaintext)])
	copy(mac[:], out[len(plaintext):])
	return mac, nil
}

// gcmOpen authenticates ciphertext and mac against aad and decrypts into
// dst. dst must be len(ciphertext) bytes.
func gcmOpen(key Key, dst, ciphertext []byte, mac Mac, aad []byte) error {
	aead, err := newGCM(key)
	if err != nil {
		return err
	}
	sealed := make([]byte, len(ciphertext)+macSize)
	copy(sealed, ciphertext)
	copy(sealed[len(ciphertext):], mac[:])
	out, err := aead.Open(nil, zeroIV[:], sealed, aad)
	if err != nil {
		return err
	}
	copy(dst, out)
	return nil
}
