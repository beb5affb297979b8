package sealfs

import (
	"io"
	"math"
	"path/filepath"

	"go.uber.org/zap"
)

func (in *fileInner) read(p []byte) (int, error) {
	if err := in.statusError(); err != nil {
		return 0, err
	}
	if !in.opts.Read && !in.opts.Update {
		return 0, ErrInvalidArgument
	}
	if len(p) == 0 {
		return 0, nil
	}
	if in.offset >= in.meta.size {
		in.endOfFile = true
		return 0, io.EOF
	}
	n, err := in.readAtOffset(p)
	if err != nil {
		return n, err
	}
	if n < len(p) {
		in.endOfFile = true
	}
	return n, nil
}

func (in *fileInner) readAtOffset(p []byte) (int, error) {
	total := 0
	for total < len(p) && in.offset < in.meta.size {
		chunk := len(p) - total
		if rem := in.meta.size - in.offset; int64(chunk) > rem {
			chunk = int(rem)
		}
		if in.offset < mdUserDataSize {
			if max := int(mdUserDataSize - in.offset); chunk > max {
				chunk = max
			}
			copy(p[total:total+chunk], in.meta.userData[in.offset:])
		} else {
			node, err := in.dataNodeForOffset(in.offset)
			if err != nil {
				return total, err
			}
			nodeOff := int((in.offset - mdUserDataSize) % NodeSize)
			if max := NodeSize - nodeOff; chunk > max {
				chunk = max
			}
			copy(p[total:total+chunk], node.plaintext[nodeOff:nodeOff+chunk])
		}
		in.offset += int64(chunk)
		total += chunk
	}
	return total, nil
}

func (in *fileInner) readAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, ErrInvalidArgument
	}
	saved, savedEOF := in.offset, in.endOfFile
	in.offset = off
	n, err := in.read(p)
	in.offset, in.endOfFile = saved, savedEOF
	return n, err
}

func (in *fileInner) write(p []byte) (int, error) {
	if err := in.statusError(); err != nil {
		return 0, err
	}
	if in.opts.readonly() {
		return 0, ErrReadOnly
	}
	if len(p) == 0 {
		return 0, nil
	}
	if in.opts.Append {
		in.offset = in.meta.size
	}
	if in.offset > in.meta.size {
		if err := in.fillGap(); err != nil {
			return 0, err
		}
	}
	return in.writeAtOffset(p)
}

func (in *fileInner) writeAtOffset(p []byte) (int, error) {
	total := 0
	for total < len(p) {
		chunk := len(p) - total
		if in.offset < mdUserDataSize {
			if max := int(mdUserDataSize - in.offset); chunk > max {
				chunk = max
			}
			copy(in.meta.userData[in.offset:], p[total:total+chunk])
			in.meta.needWriting = true
			in.needWriting = true
		} else {
			node, err := in.dataNodeForOffset(in.offset)
			if err != nil {
				return total, err
			}
			nodeOff := int((in.offset - mdUserDataSize) % NodeSize)
			if max := NodeSize - nodeOff; chunk > max {
				chunk = max
			}
			copy(node.plaintext[nodeOff:], p[total:total+chunk])
			in.markDirty(node)
		}
		in.offset += int64(chunk)
		total += chunk
		if in.offset > in.meta.size {
			in.meta.size = in.offset
			in.meta.needWriting = true
		}
	}
	in.endOfFile = false
	return total, nil
}

// fillGap zero-fills from the end of file up to the current offset, so
// a write after a seek past the end leaves no undefined bytes.
func (in *fileInner) fillGap() error {
	target := in.offset
	in.offset = in.meta.size
	var zeros [NodeSize]byte
	for in.offset < target {
		chunk := target - in.offset
		if chunk > NodeSize {
			chunk = NodeSize
		}
		if _, err := in.writeAtOffset(zeros[:chunk]); err != nil {
			in.offset = target
			return err
		}
	}
	return nil
}

func (in *fileInner) writeAt(p []byte, off int64) (int, error) {
	if err := in.statusError(); err != nil {
		return 0, err
	}
	if in.opts.readonly() {
		return 0, ErrReadOnly
	}
	if off < 0 {
		return 0, ErrInvalidArgument
	}
	if len(p) == 0 {
		return 0, nil
	}
	saved := in.offset
	in.offset = off
	if in.offset > in.meta.size {
		if err := in.fillGap(); err != nil {
			in.offset = saved
			return 0, err
		}
	}
	n, err := in.writeAtOffset(p)
	in.offset = saved
	return n, err
}

func (in *fileInner) seek(offset int64, whence int) (int64, error) {
	if err := in.statusError(); err != nil {
		return 0, err
	}
	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = in.offset
	case io.SeekEnd:
		base = in.meta.size
	default:
		return 0, ErrInvalidArgument
	}
	pos := base + offset
	if offset > 0 && pos < base {
		// overflow clamps to the maximum representable offset
		pos = math.MaxInt64
	}
	if pos < 0 {
		return 0, ErrInvalidArgument
	}
	in.offset = pos
	in.endOfFile = false
	return pos, nil
}

func (in *fileInner) truncate(size int64) error {
	if err := in.statusError(); err != nil {
		return err
	}
	if in.opts.readonly() {
		return ErrReadOnly
	}
	if size < 0 {
		return ErrInvalidArgument
	}
	if size == in.meta.size {
		return nil
	}
	saved := in.offset
	if size > in.meta.size {
		in.offset = size
		if err := in.fillGap(); err != nil {
			in.offset = saved
			return err
		}
	} else {
		// wipe the dropped tail so stale plaintext cannot resurface if
		// the file grows again
		in.offset = size
		var zeros [NodeSize]byte
		for in.offset < in.meta.size {
			chunk := in.meta.size - in.offset
			if chunk > NodeSize {
				chunk = NodeSize
			}
			if _, err := in.writeAtOffset(zeros[:chunk]); err != nil {
				in.offset = saved
				return err
			}
		}
		in.meta.size = size
		in.meta.needWriting = true
		in.needWriting = true
	}
	in.offset = saved
	if in.offset > in.meta.size {
		in.offset = in.meta.size
	}
	return nil
}

func (in *fileInner) rename(oldName, newName string) error {
	if err := in.statusError(); err != nil {
		return err
	}
	if in.opts.readonly() {
		return ErrReadOnly
	}
	if in.meta.fileName() != oldName {
		return ErrNameMismatch
	}
	if err := in.meta.setName(newName); err != nil {
		return err
	}
	in.meta.needWriting = true
	in.needWriting = true
	if err := in.internalFlush(true); err != nil {
		return err
	}
	newPath := filepath.Join(filepath.Dir(in.path), newName)
	if err := in.fs.Rename(in.path, newPath); err != nil {
		return NewIOError("rename", in.path, err)
	}
	in.log.Info("renamed protected file",
		zap.String("from", in.path), zap.String("to", newPath))
	in.path = newPath
	return nil
}
