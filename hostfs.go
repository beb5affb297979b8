package sealfs

import (
	"io"
	"os"

	"github.com/absfs/absfs"
)

// nodeStore is the untrusted host seam: raw node-granular I/O with no
// knowledge of the protection scheme.
type nodeStore interface {
	ReadNode(number uint64, buf []byte) error
	WriteNode(number uint64, buf []byte) error
	Sync() error
	Size() (int64, error)
	Close() error
}

// hostFile adapts an absfs.File to node-granular I/O.
type hostFile struct {
	file absfs.File
	path string
}

func openHostFile(fs absfs.FileSystem, path string, readonly bool) (*hostFile, error) {
	flag := os.O_RDWR | os.O_CREATE
	if readonly {
		flag = os.O_RDONLY
	}
	f, err := fs.OpenFile(path, flag, 0600)
	if err != nil {
		return nil, NewIOError("open", path, err)
	}
	return &hostFile{file: f, path: path}, nil
}

func (h *hostFile) ReadNode(number uint64, buf []byte) error {
	if _, err := h.file.Seek(int64(number)*NodeSize, io.SeekStart); err != nil {
		return NewIOError("seek", h.path, err)
	}
	if _, err := io.ReadFull(h.file, buf); err != nil {
		return NewIOError("read", h.path, err)
	}
	return nil
}

func (h *hostFile) WriteNode(number uint64, buf []byte) error {
	if _, err := h.file.Seek(int64(number)*NodeSize, io.SeekStart); err != nil {
		return NewIOError("seek", h.path, err)
	}
	if _, err := h.file.Write(buf); err != nil {
		return NewIOError("write", h.path, err)
	}
	return nil
}

func (h *hostFile) Sync() error {
	if err := h.file.Sync(); err != nil {
		return NewIOError("sync", h.path, err)
	}
	return nil
}

func (h *hostFile) Size() (int64, error) {
	info, err := h.file.Stat()
	if err != nil {
		return 0, NewIOError("stat", h.path, err)
	}
	return info.Size(), nil
}

func (h *hostFile) Close() error {
	return h.file.Close()
}

func hostExists(fs absfs.FileSystem, path string) bool {
	_, err := fs.Stat(path)
	return err == nil
}
