package sealfs

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// Metadata node layout (physical node 0). The header is plaintext; the
// payload is sealed under the metadata key. All integers are
// little-endian.
//
//	header:  magic u64 | major u8 | minor u8 | flags u8 | updateFlag u8 |
//	         keyID [32] | gmac [16]
//	payload: name [260] | size u64 | rootKey [16] | rootMac [16] |
//	         fileID [16] | userData [3072]
//
// The rest of the node is zero padding.
const (
	// sealMagic reads "SEALFSv1" on disk.
	sealMagic = 0x317653464c414553

	formatMajor = 1
	formatMinor = 0

	flagEncrypted = 1 << 0
	flagAutoKey   = 1 << 1

	nameMaxLen     = 260
	fullNameMaxLen = 772

	hdrMagicOff  = 0
	hdrMajorOff  = 8
	hdrMinorOff  = 9
	hdrFlagsOff  = 10
	hdrUpdateOff = 11
	hdrKeyIDOff  = 12
	hdrMacOff    = 44
	headerSize   = 60

	pldNameOff    = 0
	pldSizeOff    = nameMaxLen
	pldRootKeyOff = pldSizeOff + 8
	pldRootMacOff = pldRootKeyOff + keySize
	pldFileIDOff  = pldRootMacOff + macSize
	pldUserOff    = pldFileIDOff + 16
	payloadSize   = pldUserOff + mdUserDataSize
)

// metadataNode is the in-memory image of physical node 0.
type metadataNode struct {
	flags      byte
	updateFlag byte
	keyID      KeyID
	gmac       Mac

	name     [nameMaxLen]byte
	size     int64
	rootKey  Key
	rootMac  Mac
	fileID   uuid.UUID
	userData [mdUserDataSize]byte

	// node is the raw on-disk image, kept in sync with the fields above
	// by seal and unseal. It doubles as the journal pre-image.
	node [NodeSize]byte

	integrityOnly bool
	needWriting   bool
	newNode       bool
}

func newMetadataNode(mode EncryptMode, name string) (*metadataNode, error) {
	m := &metadataNode{
		integrityOnly: mode == IntegrityOnly,
		needWriting:   true,
		newNode:       true,
		fileID:        uuid.New(),
	}
	switch mode {
	case EncryptUserKey:
		m.flags = flagEncrypted
	case EncryptAutoKey:
		m.flags = flagEncrypted | flagAutoKey
	}
	if err := m.setName(name); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *metadataNode) setName(name string) error {
	if len(name) == 0 {
		return fmt.Errorf("%w: empty file name", ErrInvalidArgument)
	}
	if len(name) >= nameMaxLen {
		return ErrNameTooLong
	}
	m.name = [nameMaxLen]byte{}
	copy(m.name[:], name)
	return nil
}

func (m *metadataNode) fileName() string {
	i := bytes.IndexByte(m.name[:], 0)
	if i < 0 {
		i = nameMaxLen
	}
	return string(m.name[:i])
}

// parseHeader validates the plaintext header in the raw node image and
// loads its fields.
func (m *metadataNode) parseHeader() error {
	if binary.LittleEndian.Uint64(m.node[hdrMagicOff:]) != sealMagic {
		return fmt.Errorf("%w: bad magic", ErrNotSealedFile)
	}
	if m.node[hdrMajorOff] != formatMajor {
		return fmt.Errorf("%w: major version %d", ErrUnsupportedVersion, m.node[hdrMajorOff])
	}
	m.flags = m.node[hdrFlagsOff]
	if m.flags&^(flagEncrypted|flagAutoKey) != 0 {
		return fmt.Errorf("%w: reserved flag bits set", ErrNotSealedFile)
	}
	m.updateFlag = m.node[hdrUpdateOff]
	copy(m.keyID[:], m.node[hdrKeyIDOff:hdrKeyIDOff+len(m.keyID)])
	copy(m.gmac[:], m.node[hdrMacOff:hdrMacOff+macSize])
	return nil
}

func (m *metadataNode) storeHeader() {
	binary.LittleEndian.PutUint64(m.node[hdrMagicOff:], sealMagic)
	m.node[hdrMajorOff] = formatMajor
	m.node[hdrMinorOff] = formatMinor
	m.node[hdrFlagsOff] = m.flags
	m.node[hdrUpdateOff] = m.updateFlag
	copy(m.node[hdrKeyIDOff:], m.keyID[:])
	copy(m.node[hdrMacOff:], m.gmac[:])
}

// seal serializes the payload fields, encrypts them under key and
// refreshes the raw node image, header included.
func (m *metadataNode) seal(key Key) error {
	var payload [payloadSize]byte
	copy(payload[pldNameOff:], m.name[:])
	binary.LittleEndian.PutUint64(payload[pldSizeOff:], uint64(m.size))
	copy(payload[pldRootKeyOff:], m.rootKey[:])
	copy(payload[pldRootMacOff:], m.rootMac[:])
	copy(payload[pldFileIDOff:], m.fileID[:])
	copy(payload[pldUserOff:], m.userData[:])

	ct := m.node[headerSize : headerSize+payloadSize]
	var err error
	if m.integrityOnly {
		copy(ct, payload[:])
		m.gmac, err = gcmSeal(key, nil, nil, payload[:])
	} else {
		m.gmac, err = gcmSeal(key, ct, payload[:], nil)
	}
	if err != nil {
		return fmt.Errorf("%w: sealing metadata: %v", ErrCryptoFailure, err)
	}
	for i := headerSize + payloadSize; i < NodeSize; i++ {
		m.node[i] = 0
	}
	m.storeHeader()
	return nil
}

// unseal authenticates and decrypts the payload from the raw node image.
// integrityOnly must be set from the header flags before calling.
func (m *metadataNode) unseal(key Key) error {
	var payload [payloadSize]byte
	ct := m.node[headerSize : headerSize+payloadSize]
	var err error
	if m.integrityOnly {
		err = gcmOpen(key, nil, nil, m.gmac, ct)
		copy(payload[:], ct)
	} else {
		err = gcmOpen(key, payload[:], ct, m.gmac, nil)
	}
	if err != nil {
		return fmt.Errorf("%w: metadata authentication failed", ErrCorrupted)
	}
	copy(m.name[:], payload[pldNameOff:pldSizeOff])
	m.size = int64(binary.LittleEndian.Uint64(payload[pldSizeOff:]))
	copy(m.rootKey[:], payload[pldRootKeyOff:pldRootMacOff])
	copy(m.rootMac[:], payload[pldRootMacOff:pldFileIDOff])
	copy(m.fileID[:], payload[pldFileIDOff:pldUserOff])
	copy(m.userData[:], payload[pldUserOff:])
	return nil
}

func (m *metadataNode) readFromDisk(host nodeStore) error {
	return host.ReadNode(metaPhysNumber, m.node[:])
}

// writeToDisk commits the raw node image. seal must have run first.
func (m *metadataNode) writeToDisk(host nodeStore) error {
	m.storeHeader()
	if err := host.WriteNode(metaPhysNumber, m.node[:]); err != nil {
		return err
	}
	m.needWriting = false
	m.newNode = false
	return nil
}

// writeTaint stamps the update flag into the on-disk header without
// touching the sealed payload. A non-zero flag on disk marks a flush in
// progress; open treats it as a signal to replay the recovery journal.
func (m *metadataNode) writeTaint(host nodeStore, flag byte) error {
	m.updateFlag = flag
	m.storeHeader()
	m.updateFlag = 0
	return host.WriteNode(metaPhysNumber, m.node[:])
}

// wipe clears decrypted payload fields.
func (m *metadataNode) wipe() {
	m.userData = [mdUserDataSize]byte{}
	m.rootKey = Key{}
	m.rootMac = Mac{}
}
