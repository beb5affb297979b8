package sealfs

// Container geometry. The node is the atomic unit of sealing and I/O.
// Physical node 0 is the metadata, node 1 the root of the hash tree;
// after that, nodes repeat in groups of one hash node followed by 96
// content nodes. Each hash node carries 128 slots of 32 bytes: 96 for
// its attached content nodes and 32 for child hash nodes.
const (
	// NodeSize is the fixed size of every container node.
	NodeSize = 4096

	// mdUserDataSize is the slice of file content stored inline in the
	// encrypted metadata payload. Offsets below this never touch a
	// content node.
	mdUserDataSize = NodeSize * 3 / 4

	attachedDataNodes = 96
	childMhtNodes     = 32

	gcmDataSize = keySize + macSize // one hash-tree slot

	metaPhysNumber    = 0
	rootMhtPhysNumber = 1
)

// nodeNumbers resolves the logical and physical node numbers covering a
// file offset at or past mdUserDataSize.
type nodeNumbers struct {
	dataLogic uint64 // zero-based content node index
	dataPhys  uint64 // physical node number in the container
	mhtLogic  uint64 // hash node covering this content node
	mhtPhys   uint64
}

func numbersForOffset(offset int64) nodeNumbers {
	dataLogic := uint64(offset-mdUserDataSize) / NodeSize
	mhtLogic := dataLogic / attachedDataNodes
	return nodeNumbers{
		dataLogic: dataLogic,
		dataPhys:  dataLogic + 2 + mhtLogic,
		mhtLogic:  mhtLogic,
		mhtPhys:   mhtPhysNumber(mhtLogic),
	}
}

// mhtPhysNumber maps a hash node's logical number to its physical node
// number.
func mhtPhysNumber(logic uint64) uint64 {
	return 1 + logic*(attachedDataNodes+1)
}

// mhtParentLogic returns the logical number of the hash node holding the
// child slot for hash node logic. Only valid for logic >= 1; the root
// has no parent.
func mhtParentLogic(logic uint64) uint64 {
	return (logic - 1) / childMhtNodes
}

// dataSlotOffset locates a content node's slot inside its hash node.
func dataSlotOffset(dataLogic uint64) int {
	return int(dataLogic%attachedDataNodes) * gcmDataSize
}

// mhtSlotOffset locates a child hash node's slot inside its parent.
// Child slots follow the 96 content slots.
func mhtSlotOffset(mhtLogic uint64) int {
	return (attachedDataNodes + int((mhtLogic-1)%childMhtNodes)) * gcmDataSize
}
