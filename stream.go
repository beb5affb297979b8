package sealfs

import (
	"errors"
	"os"

	"github.com/absfs/absfs"
)

// OpenStream opens path with a C-style fopen mode string such as "r",
// "w+b" or "a". The returned Stream implements absfs.File.
func OpenStream(fsys absfs.FileSystem, path, mode string, cfg *Config) (*Stream, error) {
	opts, err := ParseMode(mode)
	if err != nil {
		return nil, err
	}
	f, err := Open(fsys, path, opts, cfg)
	if err != nil {
		return nil, err
	}
	return &Stream{f: f, fs: fsys, path: path}, nil
}

// Stream adapts a protected File to the absfs.File interface.
type Stream struct {
	f    *File
	fs   absfs.FileSystem
	path string
}

var _ absfs.File = (*Stream)(nil)

// File returns the underlying protected file for operations the
// absfs.File interface does not cover.
func (s *Stream) File() *File { return s.f }

func (s *Stream) Name() string { return s.path }

func (s *Stream) Read(p []byte) (int, error) { return s.f.Read(p) }

func (s *Stream) ReadAt(p []byte, off int64) (int, error) { return s.f.ReadAt(p, off) }

func (s *Stream) Write(p []byte) (int, error) { return s.f.Write(p) }

func (s *Stream) WriteAt(p []byte, off int64) (int, error) { return s.f.WriteAt(p, off) }

func (s *Stream) WriteString(str string) (int, error) { return s.f.Write([]byte(str)) }

func (s *Stream) Seek(offset int64, whence int) (int64, error) {
	return s.f.Seek(offset, whence)
}

func (s *Stream) Sync() error { return s.f.Flush() }

func (s *Stream) Truncate(size int64) error { return s.f.Truncate(size) }

func (s *Stream) Close() error { return s.f.Close() }

// Stat reports the host container's file info. The size reflects the
// sealed container, not the protected content; use File().Size for the
// content size.
func (s *Stream) Stat() (os.FileInfo, error) { return s.fs.Stat(s.path) }

func (s *Stream) Readdir(int) ([]os.FileInfo, error) {
	return nil, &os.PathError{Op: "readdir", Path: s.path, Err: errors.New("not a directory")}
}

func (s *Stream) Readdirnames(int) ([]string, error) {
	return nil, &os.PathError{Op: "readdirnames", Path: s.path, Err: errors.New("not a directory")}
}
