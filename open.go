package sealfs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/absfs/absfs"
	"go.uber.org/zap"
)

// Open opens or creates a protected file at path on the host filesystem.
// Read mode requires an existing container; Write mode discards any
// existing container and its journal. If a crash interrupted the last
// flush, the recovery journal is replayed before any metadata is
// trusted.
func Open(fsys absfs.FileSystem, path string, opts OpenOptions, cfg *Config) (*File, error) {
	if err := opts.check(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	if len(path) >= fullNameMaxLen {
		return nil, ErrNameTooLong
	}
	name := filepath.Base(path)
	if name == "" || name == "." || name == string(filepath.Separator) {
		return nil, fmt.Errorf("%w: path %q has no file name", ErrInvalidArgument, path)
	}
	if len(name) >= nameMaxLen {
		return nil, ErrNameTooLong
	}

	log := cfg.Logger
	exists := hostExists(fsys, path)
	if opts.Read && !exists {
		return nil, NewIOError("open", path, os.ErrNotExist)
	}
	if opts.Write && exists {
		// truncating create: drop the old container and any stale journal
		if err := fsys.Remove(path); err != nil {
			return nil, NewIOError("remove", path, err)
		}
		fsys.Remove(journalPath(path))
		exists = false
	}

	f := &File{fileInner: fileInner{
		fs:     fsys,
		path:   path,
		opts:   opts,
		cfg:    cfg,
		log:    log,
		keys:   newKeyGen(cfg),
		cache:  newNodeCache(cfg.CachePages),
		status: StatusNotInitialized,
	}}
	in := &f.fileInner

	if !exists {
		meta, err := newMetadataNode(cfg.Mode, name)
		if err != nil {
			return nil, err
		}
		host, err := openHostFile(fsys, path, false)
		if err != nil {
			return nil, err
		}
		in.meta = meta
		in.rootMht = newRootMhtNode(cfg.Mode == IntegrityOnly)
		in.host = host
		in.needWriting = true
		in.status = StatusOK
		log.Debug("created protected file",
			zap.String("path", path), zap.Stringer("mode", cfg.Mode))
		return f, nil
	}

	host, err := openHostFile(fsys, path, opts.readonly())
	if err != nil {
		return nil, err
	}
	in.host = host
	if err := in.loadExisting(name); err != nil {
		host.Close()
		if !errors.Is(err, ErrRecoveryNeeded) {
			return nil, err
		}
		log.Info("replaying recovery journal", zap.String("path", path))
		if err := replayJournal(fsys, path); err != nil {
			return nil, err
		}
		host, err = openHostFile(fsys, path, opts.readonly())
		if err != nil {
			return nil, err
		}
		in.host = host
		if err := in.loadExisting(name); err != nil {
			host.Close()
			return nil, err
		}
	}
	if opts.Append {
		in.offset = in.meta.size
	}
	in.status = StatusOK
	log.Debug("opened protected file",
		zap.String("path", path), zap.Int64("size", in.meta.size))
	return f, nil
}

// loadExisting reads and verifies the metadata and, when content nodes
// exist, the root hash node. It returns ErrRecoveryNeeded when the
// container shows an interrupted flush that the journal can repair.
func (in *fileInner) loadExisting(name string) error {
	size, err := in.host.Size()
	if err != nil {
		return err
	}
	if size == 0 || size%NodeSize != 0 {
		return fmt.Errorf("%w: host size %d", ErrNotSealedFile, size)
	}

	meta := &metadataNode{}
	if err := meta.readFromDisk(in.host); err != nil {
		return err
	}
	if err := meta.parseHeader(); err != nil {
		return err
	}

	encrypted := meta.flags&flagEncrypted != 0
	autoKey := meta.flags&flagAutoKey != 0
	switch in.cfg.Mode {
	case EncryptUserKey:
		if !encrypted || autoKey {
			return ErrModeMismatch
		}
	case EncryptAutoKey:
		if !encrypted || !autoKey {
			return ErrModeMismatch
		}
	case IntegrityOnly:
		if encrypted {
			return ErrModeMismatch
		}
	}
	meta.integrityOnly = !encrypted

	hasJournal := hostExists(in.fs, journalPath(in.path))
	if meta.updateFlag != 0 {
		if !hasJournal {
			return fmt.Errorf("%w: interrupted flush with no recovery journal", ErrCorrupted)
		}
		return ErrRecoveryNeeded
	}

	key, err := in.keys.restoreMetadataKey(meta.keyID)
	if err != nil {
		return err
	}
	if err := meta.unseal(key); err != nil {
		if hasJournal {
			// torn metadata write; the journal holds the pre-image
			return ErrRecoveryNeeded
		}
		return err
	}
	if meta.fileName() != name {
		return fmt.Errorf("%w: container records %q", ErrNameMismatch, meta.fileName())
	}

	in.meta = meta
	in.rootMht = newRootMhtNode(meta.integrityOnly)
	if meta.size > mdUserDataSize {
		in.rootMht.newNode = false
		if err := in.rootMht.readFromDisk(in.host); err != nil {
			return err
		}
		if err := in.rootMht.decrypt(meta.rootKey, meta.rootMac); err != nil {
			return NewCorruptionError(in.path, rootMhtPhysNumber,
				"root hash node authentication failed")
		}
	}
	if hasJournal {
		// stale journal from an aborted flush that never tainted the
		// header; the committed state is intact
		in.fs.Remove(journalPath(in.path))
	}
	return nil
}

// Remove deletes a protected file and any recovery journal next to it.
func Remove(fsys absfs.FileSystem, path string) error {
	if err := fsys.Remove(path); err != nil {
		return NewIOError("remove", path, err)
	}
	fsys.Remove(journalPath(path))
	return nil
}
