package sealfs

import (
	"bytes"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/absfs/absfs"
	"github.com/absfs/memfs"
)

func newTestFS(t *testing.T) absfs.FileSystem {
	t.Helper()
	fs, err := memfs.NewFS()
	if err != nil {
		t.Fatalf("memfs.NewFS: %v", err)
	}
	return fs
}

var testKey = Key{0x42, 0x13, 0x37, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0A, 0x0B, 0x0C, 0x0D}

func testConfig() *Config {
	return &Config{Mode: EncryptUserKey, Key: testKey}
}

// pattern produces deterministic non-repeating-looking content.
func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7 + i/251)
	}
	return b
}

func createFile(t *testing.T, fs absfs.FileSystem, path string, content []byte) {
	t.Helper()
	f, err := Open(fs, path, OpenOptions{Write: true}, testConfig())
	if err != nil {
		t.Fatalf("Open(write) %s: %v", path, err)
	}
	if _, err := f.Write(content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func readFile(t *testing.T, fs absfs.FileSystem, path string) []byte {
	t.Helper()
	f, err := Open(fs, path, OpenOptions{Read: true}, testConfig())
	if err != nil {
		t.Fatalf("Open(read) %s: %v", path, err)
	}
	defer f.Close()
	size, err := f.Size()
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	out := make([]byte, size)
	if _, err := io.ReadFull(f, out); err != nil {
		t.Fatalf("read content: %v", err)
	}
	return out
}

func rawContainer(t *testing.T, fs absfs.FileSystem, path string) []byte {
	t.Helper()
	h, err := fs.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		t.Fatalf("open container: %v", err)
	}
	defer h.Close()
	raw, err := io.ReadAll(h)
	if err != nil {
		t.Fatalf("read container: %v", err)
	}
	return raw
}

func writeRawContainer(t *testing.T, fs absfs.FileSystem, path string, raw []byte) {
	t.Helper()
	h, err := fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		t.Fatalf("open container for write: %v", err)
	}
	if _, err := h.Write(raw); err != nil {
		t.Fatalf("write container: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("close container: %v", err)
	}
}

func TestCreateWriteReadBack(t *testing.T) {
	fs := newTestFS(t)
	content := pattern(1 << 20) // crosses several hash-tree groups
	createFile(t, fs, "/data.seal", content)

	got := readFile(t, fs, "/data.seal")
	if !bytes.Equal(got, content) {
		t.Fatal("content does not round-trip")
	}
}

func TestInlineOnlyFile(t *testing.T) {
	fs := newTestFS(t)
	content := []byte("short inline content")
	createFile(t, fs, "/inline.seal", content)

	// inline content fits in the metadata node alone
	info, err := fs.Stat("/inline.seal")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Size() != NodeSize {
		t.Fatalf("container size = %d, want %d", info.Size(), NodeSize)
	}
	if got := readFile(t, fs, "/inline.seal"); !bytes.Equal(got, content) {
		t.Fatal("inline content does not round-trip")
	}
}

func TestInlineBoundarySpanningWrite(t *testing.T) {
	fs := newTestFS(t)
	f, err := Open(fs, "/span.seal", OpenOptions{Write: true, Update: true}, testConfig())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := f.Write(pattern(3000)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	span := pattern(200)
	if _, err := f.WriteAt(span, 3000); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err = Open(fs, "/span.seal", OpenOptions{Read: true}, testConfig())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer f.Close()
	got := make([]byte, 200)
	if _, err := f.ReadAt(got, 3000); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if !bytes.Equal(got, span) {
		t.Fatal("write spanning the inline boundary did not round-trip")
	}
	if size, _ := f.Size(); size != 3200 {
		t.Fatalf("size = %d, want 3200", size)
	}
}

func TestReadShortAndEOF(t *testing.T) {
	fs := newTestFS(t)
	createFile(t, fs, "/short.seal", pattern(100))

	f, err := Open(fs, "/short.seal", OpenOptions{Read: true}, testConfig())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	buf := make([]byte, 200)
	n, err := f.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != 100 {
		t.Fatalf("short read returned %d, want 100", n)
	}
	if !f.EOF() {
		t.Error("EOF flag not set after short read")
	}
	if _, err := f.Read(buf); err != io.EOF {
		t.Fatalf("read at end returned %v, want io.EOF", err)
	}
}

func TestSeekSemantics(t *testing.T) {
	fs := newTestFS(t)
	createFile(t, fs, "/seek.seal", pattern(5000))

	f, err := Open(fs, "/seek.seal", OpenOptions{Read: true}, testConfig())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	if pos, err := f.Seek(4000, io.SeekStart); err != nil || pos != 4000 {
		t.Fatalf("SeekStart: pos=%d err=%v", pos, err)
	}
	if pos, err := f.Seek(-1000, io.SeekCurrent); err != nil || pos != 3000 {
		t.Fatalf("SeekCurrent: pos=%d err=%v", pos, err)
	}
	if pos, err := f.Seek(-5000, io.SeekEnd); err != nil || pos != 0 {
		t.Fatalf("SeekEnd: pos=%d err=%v", pos, err)
	}
	if _, err := f.Seek(-1, io.SeekStart); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("negative seek returned %v, want ErrInvalidArgument", err)
	}

	// seeking past the end is allowed
	if pos, err := f.Seek(100000, io.SeekStart); err != nil || pos != 100000 {
		t.Fatalf("seek past end: pos=%d err=%v", pos, err)
	}
	if tell, err := f.Tell(); err != nil || tell != 100000 {
		t.Fatalf("Tell: pos=%d err=%v", tell, err)
	}
}

func TestSeekPastEndZeroFillsOnWrite(t *testing.T) {
	fs := newTestFS(t)
	f, err := Open(fs, "/gap.seal", OpenOptions{Write: true}, testConfig())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := f.Write([]byte("abc")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := f.Seek(10000, io.SeekStart); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	if _, err := f.Write([]byte("xyz")); err != nil {
		t.Fatalf("Write after gap: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got := readFile(t, fs, "/gap.seal")
	if len(got) != 10003 {
		t.Fatalf("size = %d, want 10003", len(got))
	}
	if string(got[:3]) != "abc" || string(got[10000:]) != "xyz" {
		t.Fatal("written regions corrupt")
	}
	for i := 3; i < 10000; i++ {
		if got[i] != 0 {
			t.Fatalf("gap byte %d = %#x, want 0", i, got[i])
		}
	}
}

func TestAppendMode(t *testing.T) {
	fs := newTestFS(t)
	createFile(t, fs, "/log.seal", []byte("first."))

	f, err := Open(fs, "/log.seal", OpenOptions{Append: true}, testConfig())
	if err != nil {
		t.Fatalf("Open(append): %v", err)
	}
	if tell, _ := f.Tell(); tell != 6 {
		t.Fatalf("append offset = %d, want 6", tell)
	}
	if _, err := f.Write([]byte("second.")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if got := readFile(t, fs, "/log.seal"); string(got) != "first.second." {
		t.Fatalf("content = %q", got)
	}
}

func TestUpdateInPlace(t *testing.T) {
	fs := newTestFS(t)
	content := pattern(200000)
	createFile(t, fs, "/upd.seal", content)

	f, err := Open(fs, "/upd.seal", OpenOptions{Read: true, Update: true}, testConfig())
	if err != nil {
		t.Fatalf("Open(r+): %v", err)
	}
	patch := []byte("PATCHED-REGION")
	if _, err := f.WriteAt(patch, 100000); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	copy(content[100000:], patch)
	if got := readFile(t, fs, "/upd.seal"); !bytes.Equal(got, content) {
		t.Fatal("in-place update did not round-trip")
	}
}

func TestTruncate(t *testing.T) {
	fs := newTestFS(t)
	content := pattern(50000)
	createFile(t, fs, "/trunc.seal", content)

	f, err := Open(fs, "/trunc.seal", OpenOptions{Read: true, Update: true}, testConfig())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := f.Truncate(10000); err != nil {
		t.Fatalf("Truncate shrink: %v", err)
	}
	if size, _ := f.Size(); size != 10000 {
		t.Fatalf("size after shrink = %d", size)
	}
	if err := f.Truncate(20000); err != nil {
		t.Fatalf("Truncate grow: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got := readFile(t, fs, "/trunc.seal")
	if len(got) != 20000 {
		t.Fatalf("size = %d, want 20000", len(got))
	}
	if !bytes.Equal(got[:10000], content[:10000]) {
		t.Fatal("surviving prefix corrupt")
	}
	for i := 10000; i < 20000; i++ {
		if got[i] != 0 {
			t.Fatalf("regrown byte %d = %#x, want 0", i, got[i])
		}
	}
}

func TestReadOnlyRejectsWrites(t *testing.T) {
	fs := newTestFS(t)
	createFile(t, fs, "/ro.seal", pattern(100))

	f, err := Open(fs, "/ro.seal", OpenOptions{Read: true}, testConfig())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	if _, err := f.Write([]byte("x")); !errors.Is(err, ErrReadOnly) {
		t.Errorf("Write returned %v, want ErrReadOnly", err)
	}
	if err := f.Truncate(10); !errors.Is(err, ErrReadOnly) {
		t.Errorf("Truncate returned %v, want ErrReadOnly", err)
	}
	if err := f.Flush(); err != nil {
		t.Errorf("Flush on clean read-only file: %v", err)
	}
}

func TestOpenMissingFile(t *testing.T) {
	fs := newTestFS(t)
	_, err := Open(fs, "/missing.seal", OpenOptions{Read: true}, testConfig())
	if err == nil {
		t.Fatal("opening a missing file succeeded")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("error = %v, want wrapped os.ErrNotExist", err)
	}
}

func TestWrongKeyRejected(t *testing.T) {
	fs := newTestFS(t)
	createFile(t, fs, "/locked.seal", pattern(100))

	wrong := testConfig()
	wrong.Key = Key{0xFF, 0xFE}
	if _, err := Open(fs, "/locked.seal", OpenOptions{Read: true}, wrong); !errors.Is(err, ErrCorrupted) {
		t.Fatalf("open with wrong key returned %v, want ErrCorrupted", err)
	}
}

func TestModeMismatchRejected(t *testing.T) {
	fs := newTestFS(t)
	createFile(t, fs, "/mode.seal", pattern(100))

	cfg := &Config{Mode: IntegrityOnly}
	if _, err := Open(fs, "/mode.seal", OpenOptions{Read: true}, cfg); !errors.Is(err, ErrModeMismatch) {
		t.Fatalf("open returned %v, want ErrModeMismatch", err)
	}
}

func TestNameBinding(t *testing.T) {
	fs := newTestFS(t)
	createFile(t, fs, "/orig.seal", pattern(100))

	raw := rawContainer(t, fs, "/orig.seal")
	writeRawContainer(t, fs, "/copy.seal", raw)

	if _, err := Open(fs, "/copy.seal", OpenOptions{Read: true}, testConfig()); !errors.Is(err, ErrNameMismatch) {
		t.Fatalf("open of copied container returned %v, want ErrNameMismatch", err)
	}
}

func TestNotSealedFileRejected(t *testing.T) {
	fs := newTestFS(t)
	writeRawContainer(t, fs, "/junk.seal", bytes.Repeat([]byte{0xAB}, 3*NodeSize))
	if _, err := Open(fs, "/junk.seal", OpenOptions{Read: true}, testConfig()); !errors.Is(err, ErrNotSealedFile) {
		t.Fatalf("open returned %v, want ErrNotSealedFile", err)
	}

	writeRawContainer(t, fs, "/odd.seal", make([]byte, NodeSize+17))
	if _, err := Open(fs, "/odd.seal", OpenOptions{Read: true}, testConfig()); !errors.Is(err, ErrNotSealedFile) {
		t.Fatalf("unaligned container returned %v, want ErrNotSealedFile", err)
	}
}

func TestTamperedDataNodeDetected(t *testing.T) {
	fs := newTestFS(t)
	createFile(t, fs, "/tamper.seal", pattern(20000))

	raw := rawContainer(t, fs, "/tamper.seal")
	raw[2*NodeSize+10] ^= 0x01 // first content node
	writeRawContainer(t, fs, "/tamper.seal", raw)

	f, err := Open(fs, "/tamper.seal", OpenOptions{Read: true}, testConfig())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	buf := make([]byte, 20000)
	if _, err := io.ReadFull(f, buf); err == nil {
		t.Fatal("read of tampered node succeeded")
	}
	if f.Status() != StatusCorrupted {
		t.Fatalf("status = %v, want corrupted", f.Status())
	}
	// corruption is sticky
	if _, err := f.Seek(0, io.SeekStart); !errors.Is(err, ErrCorrupted) {
		t.Fatalf("operation after corruption returned %v, want ErrCorrupted", err)
	}
	if err := f.ClearError(); !errors.Is(err, ErrCorrupted) {
		t.Fatalf("ClearError returned %v, corruption must stay sticky", err)
	}
}

func TestTamperedMetadataDetected(t *testing.T) {
	fs := newTestFS(t)
	createFile(t, fs, "/meta.seal", pattern(100))

	raw := rawContainer(t, fs, "/meta.seal")
	raw[headerSize+50] ^= 0x01 // inside the sealed payload
	writeRawContainer(t, fs, "/meta.seal", raw)

	if _, err := Open(fs, "/meta.seal", OpenOptions{Read: true}, testConfig()); !errors.Is(err, ErrCorrupted) {
		t.Fatalf("open returned %v, want ErrCorrupted", err)
	}
}

func TestEncryptedContentNotVisible(t *testing.T) {
	fs := newTestFS(t)
	marker := bytes.Repeat([]byte("TOP-SECRET-MARKER"), 4)
	content := append(pattern(10000), marker...)
	createFile(t, fs, "/secret.seal", content)

	raw := rawContainer(t, fs, "/secret.seal")
	if bytes.Contains(raw, marker) {
		t.Fatal("plaintext marker visible in container")
	}
}

func TestIntegrityOnlyMode(t *testing.T) {
	fs := newTestFS(t)
	cfg := &Config{Mode: IntegrityOnly}

	f, err := Open(fs, "/plain.seal", OpenOptions{Write: true}, cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	inline := []byte("visible inline!!")
	if _, err := f.Write(inline); err != nil {
		t.Fatalf("Write: %v", err)
	}
	nodeContent := pattern(NodeSize)
	if _, err := f.WriteAt(nodeContent, mdUserDataSize); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// content is stored in the clear
	raw := rawContainer(t, fs, "/plain.seal")
	if !bytes.Equal(raw[headerSize+pldUserOff:headerSize+pldUserOff+len(inline)], inline) {
		t.Error("inline content not visible in integrity-only container")
	}
	if !bytes.Equal(raw[2*NodeSize:3*NodeSize], nodeContent) {
		t.Error("node content not visible in integrity-only container")
	}

	// but it is still authenticated
	raw[2*NodeSize+5] ^= 0x01
	writeRawContainer(t, fs, "/plain.seal", raw)
	f, err = Open(fs, "/plain.seal", OpenOptions{Read: true}, cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer f.Close()
	buf := make([]byte, NodeSize)
	if _, err := f.ReadAt(buf, mdUserDataSize); err == nil {
		t.Fatal("tampered integrity-only node read succeeded")
	}
}

func TestRename(t *testing.T) {
	fs := newTestFS(t)
	content := pattern(5000)

	f, err := Open(fs, "/a.seal", OpenOptions{Write: true}, testConfig())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := f.Write(content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := f.Rename("wrong.seal", "b.seal"); !errors.Is(err, ErrNameMismatch) {
		t.Fatalf("rename with wrong old name returned %v, want ErrNameMismatch", err)
	}
	if err := f.Rename("a.seal", "b.seal"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if hostExists(fs, "/a.seal") {
		t.Error("old container still present")
	}
	if got := readFile(t, fs, "/b.seal"); !bytes.Equal(got, content) {
		t.Fatal("content lost across rename")
	}
	if _, err := Open(fs, "/a.seal", OpenOptions{Read: true}, testConfig()); err == nil {
		t.Fatal("old name still opens")
	}
}

func TestFileIDStable(t *testing.T) {
	fs := newTestFS(t)
	createFile(t, fs, "/id.seal", pattern(100))

	f, err := Open(fs, "/id.seal", OpenOptions{Read: true, Update: true}, testConfig())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	id1, err := f.FileID()
	if err != nil {
		t.Fatalf("FileID: %v", err)
	}
	if err := f.Rename("id.seal", "id2.seal"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	f.Close()

	f, err = Open(fs, "/id2.seal", OpenOptions{Read: true}, testConfig())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer f.Close()
	id2, err := f.FileID()
	if err != nil {
		t.Fatalf("FileID: %v", err)
	}
	if id1 != id2 {
		t.Fatal("file id changed across rename and reopen")
	}
}

func TestMACStableAcrossReopen(t *testing.T) {
	fs := newTestFS(t)

	f, err := Open(fs, "/mac.seal", OpenOptions{Write: true}, testConfig())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := f.Write(pattern(8000)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	mac1, err := f.MAC()
	if err != nil {
		t.Fatalf("MAC: %v", err)
	}
	if mac1 == (Mac{}) {
		t.Fatal("MAC is zero")
	}
	f.Close()

	f, err = Open(fs, "/mac.seal", OpenOptions{Read: true}, testConfig())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer f.Close()
	mac2, err := f.MAC()
	if err != nil {
		t.Fatalf("MAC: %v", err)
	}
	if mac1 != mac2 {
		t.Fatal("MAC changed without content changes")
	}
}

func TestWriteModeTruncatesExisting(t *testing.T) {
	fs := newTestFS(t)
	createFile(t, fs, "/re.seal", pattern(100000))
	createFile(t, fs, "/re.seal", []byte("tiny"))

	if got := readFile(t, fs, "/re.seal"); string(got) != "tiny" {
		t.Fatalf("content = %q, want %q", got, "tiny")
	}
}

func TestRemove(t *testing.T) {
	fs := newTestFS(t)
	createFile(t, fs, "/rm.seal", pattern(100))
	if err := Remove(fs, "/rm.seal"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if hostExists(fs, "/rm.seal") {
		t.Fatal("container still present")
	}
	if err := Remove(fs, "/rm.seal"); err == nil {
		t.Fatal("removing a missing container succeeded")
	}
}

func TestClearErrorResetsEOF(t *testing.T) {
	fs := newTestFS(t)
	createFile(t, fs, "/eof.seal", pattern(10))

	f, err := Open(fs, "/eof.seal", OpenOptions{Read: true}, testConfig())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()
	buf := make([]byte, 100)
	f.Read(buf)
	if !f.EOF() {
		t.Fatal("EOF not set")
	}
	if err := f.ClearError(); err != nil {
		t.Fatalf("ClearError: %v", err)
	}
	if f.EOF() {
		t.Fatal("EOF still set after ClearError")
	}
	if f.LastError() != nil {
		t.Fatalf("LastError = %v after ClearError", f.LastError())
	}
}

func TestConfigValidation(t *testing.T) {
	fs := newTestFS(t)
	tests := []struct {
		name string
		cfg  *Config
	}{
		{"nil config", nil},
		{"zero user key", &Config{Mode: EncryptUserKey}},
		{"auto without sealer", &Config{Mode: EncryptAutoKey}},
		{"bad mode", &Config{Mode: EncryptMode(99)}},
		{"negative cache", &Config{Mode: IntegrityOnly, CachePages: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Open(fs, "/cfg.seal", OpenOptions{Write: true}, tt.cfg); err == nil {
				t.Fatal("invalid config accepted")
			}
		})
	}
}

func TestOpenOptionValidation(t *testing.T) {
	fs := newTestFS(t)
	if _, err := Open(fs, "/o.seal", OpenOptions{}, testConfig()); err == nil {
		t.Fatal("empty options accepted")
	}
	if _, err := Open(fs, "/o.seal", OpenOptions{Read: true, Write: true}, testConfig()); err == nil {
		t.Fatal("conflicting options accepted")
	}
}

func TestSmallCacheStillCorrect(t *testing.T) {
	fs := newTestFS(t)
	cfg := testConfig()
	cfg.CachePages = 4

	content := pattern(150 * NodeSize) // far more nodes than cache pages
	f, err := Open(fs, "/small.seal", OpenOptions{Write: true, Update: true}, cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := f.Write(content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := f.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	// random-access reads force eviction and reload with verification
	buf := make([]byte, NodeSize)
	for _, off := range []int64{0, 140 * NodeSize, 3 * NodeSize, 99 * NodeSize, 70 * NodeSize} {
		if _, err := f.ReadAt(buf, off); err != nil {
			t.Fatalf("ReadAt %d: %v", off, err)
		}
		if !bytes.Equal(buf, content[off:off+NodeSize]) {
			t.Fatalf("content mismatch at %d", off)
		}
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if got := readFile(t, fs, "/small.seal"); !bytes.Equal(got, content) {
		t.Fatal("content does not round-trip with a small cache")
	}
}
