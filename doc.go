// Package sealfs implements an authenticated, encrypted single-file
// container over the AbsFs filesystem abstraction, providing
// confidentiality, integrity and crash consistency for one protected
// file per container.
//
// # Overview
//
// sealfs stores file content in fixed 4096-byte nodes inside a host
// container file. Every node is sealed with AES-128-GCM under a
// single-use key; the per-node keys and authentication tags are stored
// in a Merkle hash tree whose root is anchored in an encrypted metadata
// node. Any modification of the container by the host is detected when
// the affected nodes are read back.
//
// # Protection Modes
//
//   - EncryptUserKey: all keys derive from a caller-supplied 128-bit key
//   - EncryptAutoKey: the metadata key comes from a KeySealer, typically
//     backed by a platform sealing facility
//   - IntegrityOnly: content is stored in the clear but still
//     authenticated node by node
//
// # Basic Usage
//
//	base, _ := memfs.NewFS()
//
//	config := &sealfs.Config{
//	    Mode: sealfs.EncryptUserKey,
//	    Key:  sealfs.DeriveUserKey([]byte("password"), salt),
//	}
//
//	f, err := sealfs.Open(base, "/data.seal", sealfs.OpenOptions{Write: true}, config)
//	if err != nil {
//	    panic(err)
//	}
//	f.Write([]byte("protected content"))
//	f.Close()
//
// A C-style facade is available through OpenStream, which accepts fopen
// mode strings ("r", "w+b", "a") and returns a value implementing
// absfs.File.
//
// # Crash Consistency
//
// Before a flush rewrites any committed node, the pre-images of every
// node about to change are written to a recovery journal next to the
// container (<path>_recovery) and synced. If the process dies mid-flush
// the next Open detects the interrupted commit and replays the journal,
// restoring the last fully committed state. A flush is therefore atomic:
// a reader observes either the old content or the new content, never a
// mix.
//
// # Security Considerations
//
// Protected against:
//   - Disclosure of file content beyond node-granular size information
//   - Tampering with any node, including truncation and node reordering
//   - Torn writes and partial flushes
//
// Not protected against:
//   - Rollback of the whole container to an older, fully consistent copy
//   - Memory disclosure while the file is open
//   - A host that refuses to store data (availability)
//
// # File Format
//
// Physical node 0 holds the metadata: a plaintext header (magic,
// version, mode flags, key-derivation nonce, GCM tag) followed by the
// encrypted metadata payload (file name, size, root node key and tag,
// file identity, and the first 3072 bytes of content). Physical node 1
// is the root of the hash tree. Nodes then repeat in groups of one hash
// node followed by 96 content nodes.
package sealfs
