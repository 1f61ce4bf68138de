package conn

import (
	"bufio"
	"net"
	"sync"
	"testing"

	"github.com/relex/gotils/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parchment-log/parchment/base"
	"github.com/parchment-log/parchment/forward"
)

// startEchoPeer runs a minimal forward-protocol receiver, recording entries and
// answering with the configured result code
func startEchoPeer(t *testing.T, code forward.ResultCode) (string, *sync.Mutex, *[]forward.Entry) {
	listener, lerr := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, lerr)
	t.Cleanup(func() { listener.Close() })

	lock := &sync.Mutex{}
	received := &[]forward.Entry{}

	go func() {
		for {
			conn, aerr := listener.Accept()
			if aerr != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				reader := bufio.NewReader(conn)
				writer := bufio.NewWriter(conn)
				for {
					var request forward.LogRequest
					if err := forward.ReadFrame(reader, &request); err != nil {
						return
					}
					lock.Lock()
					*received = append(*received, request.Entries...)
					lock.Unlock()
					if err := forward.WriteFrame(writer, &forward.LogResponse{Code: code}, false); err != nil {
						return
					}
					if err := writer.Flush(); err != nil {
						return
					}
				}
			}(conn)
		}
	}()
	return listener.Addr().String(), lock, received
}

func TestPoolSendOK(t *testing.T) {
	address, lock, received := startEchoPeer(t, forward.ResultOK)
	pool := NewPool(logger.Root(), false, base.NewMetricFactory("t_pool_ok_", nil, nil))

	require.True(t, pool.Open(address))
	// a second store sharing the peer only adds a user
	require.True(t, pool.Open(address))

	batch := base.MessageBatch{
		{Category: "foo", Message: "a"},
		{Category: "foo", Message: "b"},
	}
	assert.Equal(t, base.SendOK, pool.Send(address, batch))

	lock.Lock()
	assert.Equal(t, []forward.Entry{
		{Category: "foo", Message: "a"},
		{Category: "foo", Message: "b"},
	}, *received)
	lock.Unlock()

	pool.Release(address)
	pool.Release(address)
}

func TestPoolSendTryLater(t *testing.T) {
	address, _, _ := startEchoPeer(t, forward.ResultTryLater)
	pool := NewPool(logger.Root(), false, base.NewMetricFactory("t_pool_later_", nil, nil))

	require.True(t, pool.Open(address))
	batch := base.MessageBatch{{Category: "foo", Message: "m"}}
	assert.Equal(t, base.SendTryLater, pool.Send(address, batch))
	pool.Release(address)
}

func TestPoolOpenFailure(t *testing.T) {
	pool := NewPool(logger.Root(), false, base.NewMetricFactory("t_pool_fail_", nil, nil))
	// nothing listens on this port
	assert.False(t, pool.Open("127.0.0.1:1"))
}

func TestPoolCompressedTransport(t *testing.T) {
	address, lock, received := startEchoPeer(t, forward.ResultOK)
	pool := NewPool(logger.Root(), true, base.NewMetricFactory("t_pool_gzip_", nil, nil))

	require.True(t, pool.Open(address))
	batch := base.MessageBatch{{Category: "foo", Message: "compressed payload"}}
	assert.Equal(t, base.SendOK, pool.Send(address, batch))

	lock.Lock()
	require.Len(t, *received, 1)
	assert.Equal(t, "compressed payload", (*received)[0].Message)
	lock.Unlock()
	pool.Release(address)
}
