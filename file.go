package sealfs

import (
	"io"
	"sync"

	"github.com/absfs/absfs"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// File is an open protected file. A single mutex serializes every
// operation, so File is safe for concurrent use by multiple goroutines.
type File struct {
	mu sync.Mutex
	fileInner
}

// fileInner carries all state guarded by the File mutex.
type fileInner struct {
	fs   absfs.FileSystem
	host nodeStore
	path string

	opts OpenOptions
	cfg  *Config
	log  *zap.Logger

	meta    *metadataNode
	rootMht *fileNode
	cache   *nodeCache
	keys    *keyGen

	offset      int64
	endOfFile   bool
	needWriting bool

	status    FileStatus
	lastError error
}

// guard converts a panic inside the engine into the memory-corrupted
// state. The decrypted buffers can no longer be trusted, so the file
// stays usable only for Close; ClearError does not recover this state.
func (in *fileInner) guard(err *error) {
	if r := recover(); r != nil {
		in.status = StatusMemoryCorrupted
		in.lastError = ErrMemoryCorrupted
		*err = ErrMemoryCorrupted
		if in.log != nil {
			in.log.Error("panic in protected file operation",
				zap.Any("panic", r), zap.String("path", in.path))
		}
	}
}

// statusError maps a sticky non-OK status to its error.
func (in *fileInner) statusError() error {
	switch in.status {
	case StatusOK:
		return nil
	case StatusNotInitialized:
		return ErrFileNotInitialized
	case StatusFlushError:
		return ErrFlushFailed
	case StatusWriteToDiskFailed:
		return ErrWriteToDiskFailed
	case StatusCryptoError:
		return ErrCryptoFailure
	case StatusCorrupted:
		return ErrCorrupted
	case StatusMemoryCorrupted:
		return ErrMemoryCorrupted
	case StatusClosed:
		return ErrFileClosed
	default:
		return ErrInvalidArgument
	}
}

func (in *fileInner) setLastError(err error) {
	if err != nil && err != io.EOF {
		in.lastError = err
	}
}

// Read reads up to len(p) bytes at the current offset.
func (f *File) Read(p []byte) (n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	defer f.guard(&err)
	n, err = f.read(p)
	f.setLastError(err)
	return n, err
}

// ReadAt reads at off without moving the file offset.
func (f *File) ReadAt(p []byte, off int64) (n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	defer f.guard(&err)
	n, err = f.readAt(p, off)
	f.setLastError(err)
	return n, err
}

// Write writes len(p) bytes at the current offset, extending the file
// as needed. In append mode the offset moves to the end of file first.
func (f *File) Write(p []byte) (n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	defer f.guard(&err)
	n, err = f.write(p)
	f.setLastError(err)
	return n, err
}

// WriteAt writes at off without moving the file offset.
func (f *File) WriteAt(p []byte, off int64) (n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	defer f.guard(&err)
	n, err = f.writeAt(p, off)
	f.setLastError(err)
	return n, err
}

// Seek sets the offset for the next Read or Write. Seeking past the end
// of file is allowed; the gap is zero-filled if written to.
func (f *File) Seek(offset int64, whence int) (pos int64, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	defer f.guard(&err)
	pos, err = f.seek(offset, whence)
	f.setLastError(err)
	return pos, err
}

// Tell returns the current file offset.
func (f *File) Tell() (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.statusError(); err != nil {
		return 0, err
	}
	return f.offset, nil
}

// Size returns the protected content size in bytes.
func (f *File) Size() (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.statusError(); err != nil {
		return 0, err
	}
	return f.meta.size, nil
}

// EOF reports whether the last read hit the end of file.
func (f *File) EOF() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.endOfFile
}

// LastError returns the error recorded by the most recent failing
// operation, or the sticky status error if none was recorded.
func (f *File) LastError() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lastError != nil {
		return f.lastError
	}
	return f.statusError()
}

// Status returns the current file status.
func (f *File) Status() FileStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

// Flush commits all pending changes to the host and syncs them.
func (f *File) Flush() (err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	defer f.guard(&err)
	err = f.flush()
	f.setLastError(err)
	return err
}

// Truncate changes the content size. Growing zero-fills; shrinking
// wipes the dropped tail before cutting the size.
func (f *File) Truncate(size int64) (err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	defer f.guard(&err)
	err = f.truncate(size)
	f.setLastError(err)
	return err
}

// ClearCache flushes pending changes and drops every resident node.
func (f *File) ClearCache() (err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	defer f.guard(&err)
	err = f.clearCache()
	f.setLastError(err)
	return err
}

// ClearError recovers the file from transient failures. Flush and
// write-to-disk failures are retried; corruption, crypto and memory
// failures stay sticky.
func (f *File) ClearError() (err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	defer f.guard(&err)
	return f.clearError()
}

// MAC flushes pending changes and returns the GCM tag of the metadata
// node, which authenticates the entire container state.
func (f *File) MAC() (mac Mac, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	defer f.guard(&err)
	mac, err = f.metadataMac()
	f.setLastError(err)
	return mac, err
}

// FileID returns the container's stable identity, assigned at creation
// and preserved across renames.
func (f *File) FileID() (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.statusError(); err != nil {
		return uuid.UUID{}, err
	}
	return f.meta.fileID, nil
}

// Name returns the container path on the host filesystem.
func (f *File) Name() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.path
}

// Rename validates that the container is bound to oldName, rebinds it to
// newName, commits, and renames the host file.
func (f *File) Rename(oldName, newName string) (err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	defer f.guard(&err)
	err = f.rename(oldName, newName)
	f.setLastError(err)
	return err
}

// Close flushes pending changes, wipes decrypted state and releases the
// host file. The file is unusable afterwards.
func (f *File) Close() (err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	defer f.guard(&err)
	return f.close()
}

func (in *fileInner) close() error {
	if in.status == StatusClosed {
		return ErrFileClosed
	}
	var firstErr error
	if in.status == StatusOK && !in.opts.readonly() {
		if err := in.internalFlush(true); err != nil {
			firstErr = err
		}
	}
	if in.cache != nil {
		in.cache.clear()
	}
	if in.rootMht != nil {
		in.rootMht.wipe()
	}
	if in.meta != nil {
		in.meta.wipe()
	}
	if in.host != nil {
		if err := in.host.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	in.status = StatusClosed
	in.log.Debug("closed protected file", zap.String("path", in.path))
	return firstErr
}

func (in *fileInner) clearError() error {
	switch in.status {
	case StatusOK:
		in.lastError = nil
		in.endOfFile = false
		return nil
	case StatusFlushError:
		if err := in.internalFlush(true); err != nil {
			return err
		}
		in.status = StatusOK
		in.lastError = nil
		return nil
	case StatusWriteToDiskFailed:
		if err := in.writeAll(true); err != nil {
			return err
		}
		in.needWriting = false
		in.fs.Remove(journalPath(in.path))
		in.status = StatusOK
		in.lastError = nil
		return nil
	default:
		return in.statusError()
	}
}

func (in *fileInner) clearCache() error {
	if in.status.ok() {
		if err := in.internalFlush(true); err != nil {
			return err
		}
	} else if err := in.clearError(); err != nil {
		return err
	}
	in.cache.clear()
	return nil
}

func (in *fileInner) metadataMac() (Mac, error) {
	if err := in.statusError(); err != nil {
		return Mac{}, err
	}
	if err := in.internalFlush(true); err != nil {
		return Mac{}, err
	}
	return in.meta.gmac, nil
}
