package sealfs

import "container/list"

// maxCachePages is the default node cache capacity.
const maxCachePages = 48

// nodeCache is an LRU of resident nodes keyed by physical number. Dirty
// nodes are never evicted, so the cache can exceed its capacity until
// the next flush cleans them. The root hash node and the metadata live
// outside the cache.
type nodeCache struct {
	capacity int
	ll       *list.List // front = most recently used
	items    map[uint64]*list.Element
}

func newNodeCache(capacity int) *nodeCache {
	if capacity <= 0 {
		capacity = maxCachePages
	}
	return &nodeCache{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[uint64]*list.Element),
	}
}

func (c *nodeCache) len() int { return c.ll.Len() }

func (c *nodeCache) get(phys uint64) (*fileNode, bool) {
	el, ok := c.items[phys]
	if !ok {
		return nil, false
	}
	c.ll.MoveToFront(el)
	return el.Value.(*fileNode), true
}

func (c *nodeCache) touch(phys uint64) {
	if el, ok := c.items[phys]; ok {
		c.ll.MoveToFront(el)
	}
}

func (c *nodeCache) put(node *fileNode) {
	if el, ok := c.items[node.physNumber]; ok {
		el.Value = node
		c.ll.MoveToFront(el)
		return
	}
	c.items[node.physNumber] = c.ll.PushFront(node)
}

// nodes returns the resident nodes in most-recently-used order.
func (c *nodeCache) nodes() []*fileNode {
	out := make([]*fileNode, 0, c.ll.Len())
	for el := c.ll.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*fileNode))
	}
	return out
}

// shrink evicts clean nodes, least recently used first, until the cache
// fits its capacity. Clean content nodes go before clean hash nodes, and
// a hash node is only evicted once no resident node points to it. When
// everything left is pinned the cache stays oversized.
func (c *nodeCache) shrink() {
	for c.ll.Len() > c.capacity {
		if !c.evictOne() {
			return
		}
	}
}

func (c *nodeCache) evictOne() bool {
	var mhtVictim *list.Element
	for el := c.ll.Back(); el != nil; el = el.Prev() {
		node := el.Value.(*fileNode)
		if node.needWriting {
			continue
		}
		if node.kind == nodeData {
			c.remove(el)
			return true
		}
		if mhtVictim == nil && !c.hasResidentChild(node) {
			mhtVictim = el
		}
	}
	if mhtVictim != nil {
		c.remove(mhtVictim)
		return true
	}
	return false
}

func (c *nodeCache) hasResidentChild(parent *fileNode) bool {
	for el := c.ll.Front(); el != nil; el = el.Next() {
		if el.Value.(*fileNode).parent == parent {
			return true
		}
	}
	return false
}

func (c *nodeCache) remove(el *list.Element) {
	node := el.Value.(*fileNode)
	delete(c.items, node.physNumber)
	c.ll.Remove(el)
	node.wipe()
}

// clear wipes and drops every resident node.
func (c *nodeCache) clear() {
	for el := c.ll.Front(); el != nil; el = el.Next() {
		el.Value.(*fileNode).wipe()
	}
	c.ll.Init()
	c.items = make(map[uint64]*list.Element)
}
