package sealfs

// dataNodeForOffset returns the resident content node covering offset,
// reading and verifying it (and any missing ancestors) from the host,
// or materializing a fresh node when offset sits exactly at the end of
// file on a node boundary.
func (in *fileInner) dataNodeForOffset(offset int64) (*fileNode, error) {
	nums := numbersForOffset(offset)
	var node *fileNode
	var err error
	if offset == in.meta.size && (offset-mdUserDataSize)%NodeSize == 0 {
		node, err = in.appendDataNode(nums)
	} else {
		node, err = in.readDataNode(nums)
	}
	if err != nil {
		return nil, err
	}
	in.touchAncestors(node)
	in.cache.shrink()
	return node, nil
}

func (in *fileInner) appendDataNode(nums nodeNumbers) (*fileNode, error) {
	if node, ok := in.cache.get(nums.dataPhys); ok {
		return node, nil
	}
	mht, err := in.mhtNodeForAppend(nums)
	if err != nil {
		return nil, err
	}
	node := newDataNode(nums.dataLogic, nums.dataPhys, mht, in.keys.integrityOnly())
	node.newNode = true
	in.cache.put(node)
	return node, nil
}

// mhtNodeForAppend returns the hash node that will hold the slot of a
// freshly appended content node. The first content node of a new group
// gets a fresh hash node; otherwise the group's hash node already
// exists.
func (in *fileInner) mhtNodeForAppend(nums nodeNumbers) (*fileNode, error) {
	if nums.mhtLogic == 0 {
		return in.rootMht, nil
	}
	if node, ok := in.cache.get(nums.mhtPhys); ok {
		return node, nil
	}
	if nums.dataLogic%attachedDataNodes == 0 {
		return in.appendMhtNode(nums.mhtLogic)
	}
	return in.readMhtNode(nums.mhtLogic)
}

func (in *fileInner) appendMhtNode(logic uint64) (*fileNode, error) {
	parent, err := in.readMhtNode(mhtParentLogic(logic))
	if err != nil {
		return nil, err
	}
	node := newMhtNode(logic, mhtPhysNumber(logic), parent, in.keys.integrityOnly())
	node.newNode = true
	in.cache.put(node)
	return node, nil
}

// readMhtNode returns the resident hash node for logic, reading and
// verifying ancestors recursively as needed.
func (in *fileInner) readMhtNode(logic uint64) (*fileNode, error) {
	if logic == 0 {
		return in.rootMht, nil
	}
	phys := mhtPhysNumber(logic)
	if node, ok := in.cache.get(phys); ok {
		return node, nil
	}
	parent, err := in.readMhtNode(mhtParentLogic(logic))
	if err != nil {
		return nil, err
	}
	node := newMhtNode(logic, phys, parent, in.keys.integrityOnly())
	if err := in.loadNode(node); err != nil {
		return nil, err
	}
	in.cache.put(node)
	return node, nil
}

func (in *fileInner) readDataNode(nums nodeNumbers) (*fileNode, error) {
	if node, ok := in.cache.get(nums.dataPhys); ok {
		return node, nil
	}
	mht, err := in.readMhtNode(nums.mhtLogic)
	if err != nil {
		return nil, err
	}
	node := newDataNode(nums.dataLogic, nums.dataPhys, mht, in.keys.integrityOnly())
	if err := in.loadNode(node); err != nil {
		return nil, err
	}
	in.cache.put(node)
	return node, nil
}

// loadNode reads a node from the host and verifies it against the
// (key, mac) slot in its parent. A verification failure poisons the
// file: the container no longer matches its hash tree.
func (in *fileInner) loadNode(node *fileNode) error {
	if err := node.readFromDisk(in.host); err != nil {
		return err
	}
	gd := node.slotInParent()
	if err := node.decrypt(gd.key, gd.mac); err != nil {
		in.status = StatusCorrupted
		return NewCorruptionError(in.path, node.physNumber, "node authentication failed")
	}
	return nil
}

// touchAncestors keeps a node's hash chain warm in the cache so the
// chain is not evicted ahead of the nodes below it.
func (in *fileInner) touchAncestors(node *fileNode) {
	for p := node.parent; p != nil && p != in.rootMht; p = p.parent {
		in.cache.touch(p.physNumber)
	}
}

// markDirty flags a node and its entire hash chain for rewriting, so
// the dirty set is complete before the next flush journals pre-images.
func (in *fileInner) markDirty(node *fileNode) {
	node.needWriting = true
	for p := node.parent; p != nil; p = p.parent {
		p.needWriting = true
	}
	in.meta.needWriting = true
	in.needWriting = true
}
