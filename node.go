package sealfs

// nodeKind distinguishes content nodes from hash-tree nodes.
type nodeKind uint8

const (
	nodeData nodeKind = iota
	nodeMht
)

// gcmData is one hash-tree slot: the key a child node was sealed with
// and the resulting tag.
type gcmData struct {
	key Key
	mac Mac
}

// fileNode is one resident container node. ciphertext always holds the
// last committed on-disk image; plaintext is the working copy. A node
// with needWriting set must not be evicted, and a node with newNode set
// has never been committed, so it has no journal pre-image.
type fileNode struct {
	kind        nodeKind
	logicNumber uint64
	physNumber  uint64
	parent      *fileNode

	integrityOnly bool
	needWriting   bool
	newNode       bool

	plaintext  [NodeSize]byte
	ciphertext [NodeSize]byte
}

func newDataNode(logic, phys uint64, parent *fileNode, integrityOnly bool) *fileNode {
	return &fileNode{
		kind:          nodeData,
		logicNumber:   logic,
		physNumber:    phys,
		parent:        parent,
		integrityOnly: integrityOnly,
	}
}

func newMhtNode(logic, phys uint64, parent *fileNode, integrityOnly bool) *fileNode {
	return &fileNode{
		kind:          nodeMht,
		logicNumber:   logic,
		physNumber:    phys,
		parent:        parent,
		integrityOnly: integrityOnly,
	}
}

func newRootMhtNode(integrityOnly bool) *fileNode {
	return &fileNode{
		kind:          nodeMht,
		logicNumber:   0,
		physNumber:    rootMhtPhysNumber,
		integrityOnly: integrityOnly,
		newNode:       true,
	}
}

// slotOffset locates this node's gcmData inside its parent hash node.
func (n *fileNode) slotOffset() int {
	if n.kind == nodeData {
		return dataSlotOffset(n.logicNumber)
	}
	return mhtSlotOffset(n.logicNumber)
}

func (n *fileNode) slotInParent() gcmData {
	var gd gcmData
	off := n.slotOffset()
	copy(gd.key[:], n.parent.plaintext[off:off+keySize])
	copy(gd.mac[:], n.parent.plaintext[off+keySize:off+gcmDataSize])
	return gd
}

func (n *fileNode) storeSlotInParent(gd gcmData) {
	off := n.slotOffset()
	copy(n.parent.plaintext[off:], gd.key[:])
	copy(n.parent.plaintext[off+keySize:], gd.mac[:])
}

// encrypt seals the plaintext under key into the ciphertext buffer and
// records (key, mac) in the parent slot. The root has no parent; its
// pair is returned for the metadata payload. In integrity-only mode the
// ciphertext equals the plaintext and the tag covers the content as
// associated data.
func (n *fileNode) encrypt(key Key) (Mac, error) {
	var mac Mac
	var err error
	if n.integrityOnly {
		copy(n.ciphertext[:], n.plaintext[:])
		mac, err = gcmSeal(key, nil, nil, n.plaintext[:])
	} else {
		mac, err = gcmSeal(key, n.ciphertext[:], n.plaintext[:], nil)
	}
	if err != nil {
		return mac, err
	}
	if n.parent != nil {
		n.storeSlotInParent(gcmData{key: key, mac: mac})
	}
	return mac, nil
}

// decrypt verifies the ciphertext against (key, mac) and fills the
// plaintext buffer.
func (n *fileNode) decrypt(key Key, mac Mac) error {
	if n.integrityOnly {
		if err := gcmOpen(key, nil, nil, mac, n.ciphertext[:]); err != nil {
			return err
		}
		copy(n.plaintext[:], n.ciphertext[:])
		return nil
	}
	return gcmOpen(key, n.plaintext[:], n.ciphertext[:], mac, nil)
}

func (n *fileNode) readFromDisk(host nodeStore) error {
	return host.ReadNode(n.physNumber, n.ciphertext[:])
}

func (n *fileNode) writeToDisk(host nodeStore) error {
	if err := host.WriteNode(n.physNumber, n.ciphertext[:]); err != nil {
		return err
	}
	n.needWriting = false
	n.newNode = false
	return nil
}

// wipe clears the decrypted content.
func (n *fileNode) wipe() {
	n.plaintext = [NodeSize]byte{}
}
