package transfer

import "sync"

type counterKey struct {
	port PortID
	node NodeID
}

// Counter hands out transfer-ids, one wrapping counter per port and remote
// node, so a destination sees consecutive ids however many peers share the
// port.
type Counter struct {
	next map[counterKey]TransferID
	lock sync.Mutex
}

// Next returns the transfer-id to use for port towards node and advances the
// counter.
func (c *Counter) Next(port PortID, node NodeID) TransferID {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.next == nil {
		c.next = make(map[counterKey]TransferID)
	}
	key := counterKey{port: port, node: node}
	tid := c.next[key]
	c.next[key] = tid.Next()
	return tid
}
