package sealfs

import (
	"github.com/absfs/absfs"
)

// ExportKey opens an auto-keyed container read-only and returns its
// current metadata key. Together with MAC this lets a remote party
// verify or decrypt the container without access to the sealer.
func ExportKey(fsys absfs.FileSystem, path string, sealer KeySealer) (Key, error) {
	cfg := &Config{Mode: EncryptAutoKey, Sealer: sealer}
	f, err := Open(fsys, path, OpenOptions{Read: true}, cfg)
	if err != nil {
		return Key{}, err
	}
	key := f.keys.restored
	if err := f.Close(); err != nil {
		return Key{}, err
	}
	return key, nil
}

// ImportKey re-seals an auto-keyed container's metadata under key, so
// the file can afterwards be opened in EncryptUserKey mode with that
// key. The sealer is still required to read the current metadata.
func ImportKey(fsys absfs.FileSystem, path string, key Key, sealer KeySealer) error {
	if key == (Key{}) {
		return NewValidationError("key", nil, "import key must not be all zero")
	}
	cfg := &Config{Mode: EncryptAutoKey, Sealer: sealer}
	f, err := Open(fsys, path, OpenOptions{Read: true, Update: true}, cfg)
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.keys.adoptUserKey(key)
	f.meta.flags &^= flagAutoKey
	f.meta.needWriting = true
	f.fileInner.needWriting = true
	err = f.internalFlush(true)
	f.mu.Unlock()

	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}
