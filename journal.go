package sealfs

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/absfs/absfs"
)

// The recovery journal sits next to the container as <path>_recovery.
// Each record is the pre-image of one node about to be rewritten: an
// 8-byte little-endian physical number followed by the committed
// ciphertext. Replaying every record restores the last committed state.
const (
	journalSuffix     = "_recovery"
	journalRecordSize = 8 + NodeSize
)

func journalPath(path string) string { return path + journalSuffix }

type journalWriter struct {
	file absfs.File
	path string
	buf  [journalRecordSize]byte
}

func createJournal(fs absfs.FileSystem, path string) (*journalWriter, error) {
	jp := journalPath(path)
	f, err := fs.OpenFile(jp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return nil, NewIOError("create", jp, err)
	}
	return &journalWriter{file: f, path: jp}, nil
}

func (w *journalWriter) writeRecord(number uint64, node []byte) error {
	binary.LittleEndian.PutUint64(w.buf[:8], number)
	copy(w.buf[8:], node)
	if _, err := w.file.Write(w.buf[:]); err != nil {
		return NewIOError("write", w.path, err)
	}
	return nil
}

// commit syncs and closes the journal. The journal is only trustworthy
// after commit returns nil.
func (w *journalWriter) commit() error {
	if err := w.file.Sync(); err != nil {
		w.file.Close()
		return NewIOError("sync", w.path, err)
	}
	if err := w.file.Close(); err != nil {
		return NewIOError("close", w.path, err)
	}
	return nil
}

// abort discards a partially written journal.
func (w *journalWriter) abort(fs absfs.FileSystem) {
	w.file.Close()
	fs.Remove(w.path)
}

// replayJournal rewrites every journaled pre-image into the container,
// syncs it and removes the journal. A partial trailing record, left by a
// crash during journal writing, is ignored.
func replayJournal(fs absfs.FileSystem, path string) error {
	jp := journalPath(path)
	j, err := fs.OpenFile(jp, os.O_RDONLY, 0)
	if err != nil {
		return NewIOError("open", jp, err)
	}
	defer j.Close()

	info, err := j.Stat()
	if err != nil {
		return NewIOError("stat", jp, err)
	}
	records := info.Size() / journalRecordSize

	host, err := openHostFile(fs, path, false)
	if err != nil {
		return err
	}
	defer host.Close()

	var rec [journalRecordSize]byte
	for i := int64(0); i < records; i++ {
		if _, err := io.ReadFull(j, rec[:]); err != nil {
			return NewIOError("read", jp, err)
		}
		number := binary.LittleEndian.Uint64(rec[:8])
		if err := host.WriteNode(number, rec[8:]); err != nil {
			return err
		}
	}
	if err := host.Sync(); err != nil {
		return err
	}
	if err := fs.Remove(jp); err != nil {
		return NewIOError("remove", jp, err)
	}
	return nil
}
