package sealfs

import (
	"sort"

	"go.uber.org/zap"
)

func (in *fileInner) flush() error {
	if err := in.statusError(); err != nil {
		return err
	}
	return in.internalFlush(true)
}

// internalFlush commits every dirty node: journal the pre-images, taint
// the on-disk header, re-seal dirty nodes bottom-up under fresh keys,
// write them in ascending physical order with the metadata last, sync,
// then drop the journal. A crash at any point leaves either the old or
// the new committed state reachable on the next open.
//
// A brand-new container skips the journal and taint steps; there is no
// committed state to fall back to yet.
func (in *fileInner) internalFlush(syncToDisk bool) error {
	if !in.needWriting {
		return nil
	}
	journaled := false
	if !in.meta.newNode {
		if err := in.writeJournal(); err != nil {
			in.status = StatusFlushError
			return err
		}
		if err := in.meta.writeTaint(in.host, 1); err != nil {
			in.status = StatusFlushError
			return err
		}
		if syncToDisk {
			if err := in.host.Sync(); err != nil {
				in.status = StatusFlushError
				return err
			}
		}
		journaled = true
	}

	if err := in.updateNodes(); err != nil {
		in.status = StatusCryptoError
		if journaled {
			// raw metadata image is still the committed one; best effort
			// to clear the taint so the journal is not replayed
			in.meta.writeTaint(in.host, 0)
		}
		return err
	}
	if err := in.updateMetadata(); err != nil {
		in.status = StatusCryptoError
		return err
	}
	if err := in.writeAll(syncToDisk); err != nil {
		in.status = StatusWriteToDiskFailed
		return err
	}
	in.needWriting = false
	if journaled {
		if err := in.fs.Remove(journalPath(in.path)); err != nil {
			in.log.Warn("removing recovery journal", zap.Error(err))
		}
	}
	in.log.Debug("flush committed",
		zap.String("path", in.path), zap.Int64("size", in.meta.size))
	return nil
}

// dirtyNodes returns every dirty resident node, root included, in
// ascending physical order.
func (in *fileInner) dirtyNodes() []*fileNode {
	nodes := make([]*fileNode, 0, in.cache.len()+1)
	for _, n := range in.cache.nodes() {
		if n.needWriting {
			nodes = append(nodes, n)
		}
	}
	if in.rootMht.needWriting {
		nodes = append(nodes, in.rootMht)
	}
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].physNumber < nodes[j].physNumber
	})
	return nodes
}

// writeJournal records the committed pre-image of every node the flush
// is about to rewrite. Nodes that were never committed have none.
func (in *fileInner) writeJournal() error {
	j, err := createJournal(in.fs, in.path)
	if err != nil {
		return err
	}
	for _, node := range in.dirtyNodes() {
		if node.newNode {
			continue
		}
		if err := j.writeRecord(node.physNumber, node.ciphertext[:]); err != nil {
			j.abort(in.fs)
			return err
		}
	}
	if err := j.writeRecord(metaPhysNumber, in.meta.node[:]); err != nil {
		j.abort(in.fs)
		return err
	}
	if err := j.commit(); err != nil {
		in.fs.Remove(journalPath(in.path))
		return err
	}
	return nil
}

// updateNodes re-seals every dirty node under a fresh key. Content nodes
// go first so their (key, mac) pairs land in the hash nodes before those
// are sealed; hash nodes then go bottom-up, root last, and the root's
// pair moves into the metadata payload.
func (in *fileInner) updateNodes() error {
	dirty := in.dirtyNodes()

	for _, n := range dirty {
		if n.kind != nodeData {
			continue
		}
		key, err := in.keys.nodeKey(n.physNumber)
		if err != nil {
			return err
		}
		if _, err := n.encrypt(key); err != nil {
			return err
		}
	}

	mhts := make([]*fileNode, 0, len(dirty))
	for _, n := range dirty {
		if n.kind == nodeMht && n != in.rootMht {
			mhts = append(mhts, n)
		}
	}
	sort.Slice(mhts, func(i, j int) bool {
		return mhts[i].physNumber > mhts[j].physNumber
	})
	for _, n := range mhts {
		key, err := in.keys.nodeKey(n.physNumber)
		if err != nil {
			return err
		}
		if _, err := n.encrypt(key); err != nil {
			return err
		}
	}

	if in.rootMht.needWriting {
		key, err := in.keys.nodeKey(rootMhtPhysNumber)
		if err != nil {
			return err
		}
		mac, err := in.rootMht.encrypt(key)
		if err != nil {
			return err
		}
		in.meta.rootKey = key
		in.meta.rootMac = mac
	}
	return nil
}

// updateMetadata seals the metadata payload under a fresh key recorded
// via its KeyID in the header.
func (in *fileInner) updateMetadata() error {
	key, id, err := in.keys.metadataKey()
	if err != nil {
		return err
	}
	in.meta.keyID = id
	return in.meta.seal(key)
}

// writeAll commits the sealed dirty nodes in ascending physical order,
// the metadata node last, then syncs the host.
func (in *fileInner) writeAll(syncToDisk bool) error {
	for _, n := range in.dirtyNodes() {
		if err := n.writeToDisk(in.host); err != nil {
			return err
		}
	}
	if err := in.meta.writeToDisk(in.host); err != nil {
		return err
	}
	if syncToDisk {
		if err := in.host.Sync(); err != nil {
			return err
		}
	}
	return nil
}
