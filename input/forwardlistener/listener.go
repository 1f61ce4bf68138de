// Package forwardlistener implements the wire-protocol adapter: a TCP listener
// accepting framed Log calls from clients and peer daemons, handing each batch to the
// category runtime and answering OK or TRY_LATER.
package forwardlistener

import (
	"bufio"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/relex/gotils/channels"
	"github.com/relex/gotils/logger"

	"github.com/parchment-log/parchment/base"
	"github.com/parchment-log/parchment/defs"
	"github.com/parchment-log/parchment/forward"
	"github.com/parchment-log/parchment/orchestrate"
)

// Submitter is the submission surface of the category runtime
type Submitter interface {
	Log(batch base.MessageBatch) orchestrate.Result
}

// Listener accepts forward-protocol connections and feeds the submitter
type Listener struct {
	logger      logger.Logger
	socket      net.Listener
	submitter   Submitter
	stopRequest channels.Awaitable
	taskCounter *sync.WaitGroup
	stopped     channels.Awaitable
	connsLock   sync.Mutex
	conns       map[net.Conn]struct{}
}

// NewListener creates a socket listening on the given TCP address
//
// The address may use port zero to let the OS assign one; the bound address is returned.
func NewListener(parentLogger logger.Logger, address string, submitter Submitter,
	stopRequest channels.Awaitable) (*Listener, string, error) {

	socket, err := net.Listen("tcp", address)
	if err != nil {
		return nil, "", err
	}
	boundAddr := socket.Addr().String()

	llogger := parentLogger.WithField(defs.LabelComponent, "ForwardListener").WithField(defs.LabelLocal, boundAddr)
	llogger.Info("start listening")

	// counted as one task itself; connections add more
	taskCounter := &sync.WaitGroup{}
	taskCounter.Add(1)

	return &Listener{
		logger:      llogger,
		socket:      socket,
		submitter:   submitter,
		stopRequest: stopRequest,
		taskCounter: taskCounter,
		stopped:     channels.NewWaitGroupAwaitable(taskCounter),
		conns:       make(map[net.Conn]struct{}, 16),
	}, boundAddr, nil
}

// Launch starts the accept loop in background
func (lsnr *Listener) Launch() {
	go lsnr.run()
}

// Stopped is signaled after the listener and all connections have stopped
func (lsnr *Listener) Stopped() channels.Awaitable {
	return lsnr.stopped
}

func (lsnr *Listener) run() {
	defer lsnr.taskCounter.Done()

	go func() {
		lsnr.stopRequest.WaitForever()
		lsnr.logger.Info("close listener on stop request")
		lsnr.socket.Close()
		lsnr.closeAllConnections()
	}()

	for {
		conn, err := lsnr.socket.Accept()
		if err != nil {
			if !lsnr.stopRequest.Peek() || !errors.Is(err, net.ErrClosed) {
				lsnr.logger.Error("accept() error: ", err)
			}
			return
		}
		lsnr.trackConnection(conn, true)
		lsnr.taskCounter.Add(1)
		go lsnr.serveConnection(conn)
	}
}

func (lsnr *Listener) serveConnection(conn net.Conn) {
	defer lsnr.taskCounter.Done()
	defer lsnr.trackConnection(conn, false)
	defer conn.Close()

	clogger := lsnr.logger.WithField(defs.LabelRemote, conn.RemoteAddr().String())
	clogger.Info("new connection")
	reader := bufio.NewReader(conn)
	writer := bufio.NewWriter(conn)

	for {
		var request forward.LogRequest
		if err := forward.ReadFrame(reader, &request); err != nil {
			if errors.Is(err, io.EOF) || lsnr.stopRequest.Peek() {
				clogger.Info("connection closed")
			} else {
				clogger.Warnf("error reading request: %s", err.Error())
			}
			return
		}

		code := forward.ResultOK
		if lsnr.submitter.Log(forward.FromWire(request.Entries)) != orchestrate.ResultOK {
			code = forward.ResultTryLater
		}

		if err := forward.WriteFrame(writer, &forward.LogResponse{Code: code}, false); err != nil {
			clogger.Warnf("error writing response: %s", err.Error())
			return
		}
		if err := writer.Flush(); err != nil {
			clogger.Warnf("error writing response: %s", err.Error())
			return
		}
	}
}

func (lsnr *Listener) trackConnection(conn net.Conn, add bool) {
	lsnr.connsLock.Lock()
	defer lsnr.connsLock.Unlock()
	if add {
		lsnr.conns[conn] = struct{}{}
	} else {
		delete(lsnr.conns, conn)
	}
}

func (lsnr *Listener) closeAllConnections() {
	lsnr.connsLock.Lock()
	defer lsnr.connsLock.Unlock()
	for conn := range lsnr.conns {
		conn.Close()
	}
}
