// Package conn provides the process-wide connection pool shared by NetworkStores that
// target the same peer daemon. Stores hold peer addresses as lookup keys; the pool owns
// every connection and mints additional ones per peer under contention, up to a cap.
package conn

import (
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync"
	"github.com/relex/gotils/logger"

	"github.com/parchment-log/parchment/base"
	"github.com/parchment-log/parchment/defs"
	"github.com/parchment-log/parchment/forward"
)

// Pool implements base.ConnPool
type Pool struct {
	logger   logger.Logger
	peers    *xsync.MapOf[*pooledPeer]
	compress bool
	metrics  poolMetrics
}

type poolMetrics struct {
	openPeers     func(delta int64)
	networkErrors func()
}

// pooledPeer tracks the connections and users of one peer address
type pooledPeer struct {
	address string
	lock    sync.Mutex
	users   int // NetworkStores currently holding this peer open
	total   int // connections minted and not yet discarded
	counted bool
	idle    chan *forward.Client
}

// NewPool creates an empty pool
func NewPool(parentLogger logger.Logger, compress bool, metricFactory *base.MetricFactory) *Pool {
	plogger := parentLogger.WithField(defs.LabelComponent, "ConnPool")
	openPeers := metricFactory.AddOrGetGauge("connpool_open_peers", "Numbers of peers with pooled connections", nil, nil)
	networkErrors := metricFactory.AddOrGetCounter("connpool_network_errors_total", "Numbers of network errors on pooled connections", nil, nil)
	return &Pool{
		logger:   plogger,
		peers:    xsync.NewMapOf[*pooledPeer](),
		compress: compress,
		metrics: poolMetrics{
			openPeers:     func(delta int64) { openPeers.Add(delta) },
			networkErrors: func() { networkErrors.Inc() },
		},
	}
}

// Open registers a user of the peer, dialling the first connection if needed
func (pool *Pool) Open(peerAddr string) bool {
	peer, _ := pool.peers.LoadOrStore(peerAddr, &pooledPeer{
		address: peerAddr,
		idle:    make(chan *forward.Client, defs.ConnectionPoolMaxPerPeer),
	})
	peer.lock.Lock()
	defer peer.lock.Unlock()

	if peer.total == 0 {
		client, err := forward.Dial(pool.logger, peerAddr, defs.NetworkStoreDefaultTimeout, pool.compress)
		if err != nil {
			pool.logger.Warnf("failed to connect peer %s: %s", peerAddr, err.Error())
			pool.metrics.networkErrors()
			return false
		}
		peer.idle <- client
		peer.total = 1
		if !peer.counted {
			peer.counted = true
			pool.metrics.openPeers(1)
		}
	}
	peer.users++
	return true
}

// Send borrows a connection to the peer, performs one Log call and returns it
//
// Callers serialize on the available connections; when all are busy and the per-peer
// cap is not reached, a new connection is minted.
func (pool *Pool) Send(peerAddr string, batch base.MessageBatch) base.SendResult {
	peer, found := pool.peers.Load(peerAddr)
	if !found {
		pool.logger.Errorf("BUG: send to unopened peer %s", peerAddr)
		return base.SendError
	}

	client := pool.borrow(peer)
	if client == nil {
		return base.SendError
	}

	result, err := client.Log(batch)
	if err != nil {
		pool.logger.Warnf("error sending to peer %s: %s", peerAddr, err.Error())
		pool.metrics.networkErrors()
		client.Close()
		pool.discard(peer)
		return base.SendError
	}
	pool.give(peer, client)
	return result
}

// Release unregisters a user; all connections are closed when the last user leaves
func (pool *Pool) Release(peerAddr string) {
	peer, found := pool.peers.Load(peerAddr)
	if !found {
		return
	}
	peer.lock.Lock()
	defer peer.lock.Unlock()
	peer.users--
	if peer.users > 0 {
		return
	}

	for {
		select {
		case client := <-peer.idle:
			client.Close()
			peer.total--
		default:
			if peer.total > 0 {
				// borrowed connections are closed by their borrowers on error; leave them
				pool.logger.Warnf("releasing peer %s with %d connections still borrowed", peerAddr, peer.total)
			}
			pool.peers.Delete(peerAddr)
			if peer.counted {
				pool.metrics.openPeers(-1)
			}
			return
		}
	}
}

func (pool *Pool) borrow(peer *pooledPeer) *forward.Client {
	select {
	case client := <-peer.idle:
		return client
	default:
	}

	peer.lock.Lock()
	canMint := peer.total < defs.ConnectionPoolMaxPerPeer
	if canMint {
		peer.total++
	}
	peer.lock.Unlock()

	if canMint {
		client, err := forward.Dial(pool.logger, peer.address, defs.NetworkStoreDefaultTimeout, pool.compress)
		if err != nil {
			pool.logger.Warnf("failed to connect peer %s: %s", peer.address, err.Error())
			pool.metrics.networkErrors()
			peer.lock.Lock()
			peer.total--
			peer.lock.Unlock()
			return nil
		}
		return client
	}

	select {
	case client := <-peer.idle:
		return client
	case <-time.After(defs.NetworkStoreDefaultTimeout):
		pool.logger.Warnf("timed out waiting for a pooled connection to %s", peer.address)
		return nil
	}
}

func (pool *Pool) give(peer *pooledPeer, client *forward.Client) {
	select {
	case peer.idle <- client:
	default:
		// pool shrank concurrently; drop the extra connection
		client.Close()
		pool.discard(peer)
	}
}

func (pool *Pool) discard(peer *pooledPeer) {
	peer.lock.Lock()
	peer.total--
	peer.lock.Unlock()
}
