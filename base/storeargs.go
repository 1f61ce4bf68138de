package base

import (
	"github.com/facebookgo/clock"
)

// StoreArgs bundles the process-wide collaborators handed down the store tree at creation
//
// The same args value is shared by every node; nodes must not mutate it.
type StoreArgs struct {
	Clock         clock.Clock    // all rotation and retry decisions read this clock
	ConnPool      ConnPool       // shared peer connections for NetworkStores, nil to force dedicated connections
	MetricFactory *MetricFactory // parent factory; nodes derive sub-factories with their own labels
}

// StoreFlags are the per-node creation flags of one store in the tree
type StoreFlags struct {
	Readable      bool // the node must implement the read side (BufferStore secondaries)
	MultiCategory bool // the node accepts entries from multiple categories
}
