package forward

import (
	"bufio"
	"net"
	"sync/atomic"
	"time"

	"github.com/relex/gotils/logger"

	"github.com/parchment-log/parchment/base"
	"github.com/parchment-log/parchment/defs"
)

// Client is one connection to a peer daemon
//
// A client serializes at most one outstanding Log call; concurrent callers must hold
// their own lock or go through the connection pool.
type Client struct {
	logger   logger.Logger
	conn     net.Conn
	reader   *bufio.Reader
	writer   *bufio.Writer
	compress bool
	closed   int32 // atomic; Close may be called more than once
}

// Dial connects to a peer daemon at the given address
func Dial(parentLogger logger.Logger, address string, timeout time.Duration, compress bool) (*Client, error) {
	conn, err := net.DialTimeout("tcp", address, defs.ConnectionDialTimeout)
	if err != nil {
		return nil, err
	}
	clogger := parentLogger.WithField(defs.LabelRemote, address)
	wrapped := newDeadlineConn(conn, timeout)
	clogger.Info("connected")
	return &Client{
		logger:   clogger,
		conn:     conn,
		reader:   bufio.NewReader(wrapped),
		writer:   bufio.NewWriter(wrapped),
		compress: compress,
	}, nil
}

// RemoteAddr returns the peer address
func (client *Client) RemoteAddr() string {
	return client.conn.RemoteAddr().String()
}

// Log sends the batch as one call and waits for the reply
//
// A transport error renders the client unusable; the caller must close it.
func (client *Client) Log(batch base.MessageBatch) (base.SendResult, error) {
	request := LogRequest{Entries: ToWire(batch)}
	if err := WriteFrame(client.writer, &request, client.compress); err != nil {
		return base.SendError, err
	}
	if err := client.writer.Flush(); err != nil {
		return base.SendError, err
	}

	var response LogResponse
	if err := ReadFrame(client.reader, &response); err != nil {
		return base.SendError, err
	}
	if response.Code == ResultTryLater {
		return base.SendTryLater, nil
	}
	return base.SendOK, nil
}

// Close shuts down the connection; safe to call more than once
func (client *Client) Close() {
	if !atomic.CompareAndSwapInt32(&client.closed, 0, 1) {
		return
	}
	if err := client.conn.Close(); err != nil {
		client.logger.Warnf("error closing connection: %s", err.Error())
	}
}
