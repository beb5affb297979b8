package sealfs

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
)

// Key-derivation labels. These are bound into every derived key, so
// changing one changes the on-disk format.
const (
	kdfLabelMetadata = "sealfs-metadata-key"
	kdfLabelRandom   = "sealfs-random-key"
)

// masterKeyMaxUsage bounds how many node keys one master key may derive
// before it is replaced with a fresh random key.
const masterKeyMaxUsage = 65536

// KeySealer binds metadata keys to an external secret, typically a
// platform sealing facility. Implementations must return the same key
// for the same KeyID for as long as the sealed data must stay readable.
type KeySealer interface {
	SealKey(id KeyID) (Key, error)
}

// DeriveUserKey stretches a password into a user key with argon2id.
func DeriveUserKey(password, salt []byte) Key {
	var key Key
	raw := argon2.IDKey(password, salt, 3, 64*1024, 4, keySize)
	copy(key[:], raw)
	return key
}

func randomKeyID() (KeyID, error) {
	var id KeyID
	if _, err := io.ReadFull(rand.Reader, id[:]); err != nil {
		return id, fmt.Errorf("generating key nonce: %w", err)
	}
	return id, nil
}

// deriveKey expands secret into a node key bound to the label, the node
// number and a nonce, using HKDF-SHA256.
func deriveKey(secret []byte, label string, nodeNumber uint64, nonce KeyID) (Key, error) {
	var key Key
	info := make([]byte, 0, len(label)+8)
	info = append(info, label...)
	info = binary.LittleEndian.AppendUint64(info, nodeNumber)
	r := hkdf.New(sha256.New, secret, nonce[:], info)
	if _, err := io.ReadFull(r, key[:]); err != nil {
		return key, fmt.Errorf("deriving key: %w", err)
	}
	return key, nil
}

// keyGen issues the per-commit keys for one open file. Node keys are
// single-use and recoverable only through the hash-tree slots they are
// stored in; the metadata key is re-derivable from the KeyID persisted
// in the container header.
type keyGen struct {
	mode    EncryptMode
	userKey Key
	sealer  KeySealer

	master      Key
	masterCount uint32

	// restored holds the last metadata key recovered by
	// restoreMetadataKey, kept for key export.
	restored Key
}

func newKeyGen(cfg *Config) *keyGen {
	return &keyGen{mode: cfg.Mode, userKey: cfg.Key, sealer: cfg.Sealer}
}

func (g *keyGen) integrityOnly() bool { return g.mode == IntegrityOnly }

// nodeKey returns a fresh single-use key for sealing one node.
func (g *keyGen) nodeKey(nodeNumber uint64) (Key, error) {
	if g.integrityOnly() {
		return Key{}, nil
	}
	if g.masterCount == 0 || g.masterCount >= masterKeyMaxUsage {
		if _, err := io.ReadFull(rand.Reader, g.master[:]); err != nil {
			return Key{}, fmt.Errorf("renewing master key: %w", err)
		}
		g.masterCount = 0
	}
	nonce, err := randomKeyID()
	if err != nil {
		return Key{}, err
	}
	g.masterCount++
	return deriveKey(g.master[:], kdfLabelRandom, nodeNumber, nonce)
}

// metadataKey returns a fresh metadata key together with the KeyID that
// allows restoreMetadataKey to recover it later.
func (g *keyGen) metadataKey() (Key, KeyID, error) {
	var id KeyID
	if g.integrityOnly() {
		return Key{}, id, nil
	}
	id, err := randomKeyID()
	if err != nil {
		return Key{}, id, err
	}
	key, err := g.restoreMetadataKey(id)
	return key, id, err
}

// restoreMetadataKey re-derives the metadata key recorded under id.
func (g *keyGen) restoreMetadataKey(id KeyID) (Key, error) {
	switch g.mode {
	case EncryptUserKey:
		key, err := deriveKey(g.userKey[:], kdfLabelMetadata, metaPhysNumber, id)
		if err != nil {
			return Key{}, err
		}
		g.restored = key
		return key, nil
	case EncryptAutoKey:
		key, err := g.sealer.SealKey(id)
		if err != nil {
			return Key{}, fmt.Errorf("sealing metadata key: %w", err)
		}
		g.restored = key
		return key, nil
	default:
		return Key{}, nil
	}
}

// adoptUserKey switches the generator to user-key mode. Used by key
// import to re-seal the metadata under a caller-provided key.
func (g *keyGen) adoptUserKey(key Key) {
	g.mode = EncryptUserKey
	g.userKey = key
	g.sealer = nil
}
