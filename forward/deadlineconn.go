package forward

import (
	"net"
	"time"
)

// deadlineConn keeps rolling read and write deadlines on a peer connection
//
// Deadlines are only pushed forward when less than the configured timeout remains,
// so a busy connection pays one SetDeadline syscall per timeout window instead of
// one per call. The effective timeout therefore lands anywhere between one and two
// times the configured value.
type deadlineConn struct {
	conn          net.Conn
	timeout       time.Duration
	readDeadline  time.Time
	writeDeadline time.Time
}

func newDeadlineConn(conn net.Conn, timeout time.Duration) *deadlineConn {
	return &deadlineConn{conn: conn, timeout: timeout}
}

func (dc *deadlineConn) Read(buffer []byte) (int, error) {
	if dc.timeout > 0 {
		now := time.Now()
		if dc.readDeadline.Sub(now) < dc.timeout {
			dc.readDeadline = now.Add(dc.timeout * 2)
			if err := dc.conn.SetReadDeadline(dc.readDeadline); err != nil {
				return 0, err
			}
		}
	}
	return dc.conn.Read(buffer)
}

func (dc *deadlineConn) Write(buffer []byte) (int, error) {
	if dc.timeout > 0 {
		now := time.Now()
		if dc.writeDeadline.Sub(now) < dc.timeout {
			dc.writeDeadline = now.Add(dc.timeout * 2)
			if err := dc.conn.SetWriteDeadline(dc.writeDeadline); err != nil {
				return 0, err
			}
		}
	}
	return dc.conn.Write(buffer)
}
