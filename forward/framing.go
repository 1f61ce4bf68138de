package forward

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/vmihailenco/msgpack/v4"
)

// Frame layout: 4-byte big-endian body length, 1-byte flags, then the msgpack body.
// flagGzip marks a gzip-compressed body.
const (
	flagGzip byte = 1 << 0

	// maxFrameBytes bounds a single Log call on the wire; oversized frames indicate a
	// protocol error or a misbehaving peer
	maxFrameBytes = 64 * 1024 * 1024
)

// WriteFrame encodes the given value and writes one frame
func WriteFrame(writer io.Writer, value interface{}, compress bool) error {
	body, merr := msgpack.Marshal(value)
	if merr != nil {
		return fmt.Errorf("failed to encode frame body: %w", merr)
	}

	var flags byte
	if compress {
		compressed := &bytes.Buffer{}
		gzWriter := gzip.NewWriter(compressed)
		if _, err := gzWriter.Write(body); err != nil {
			return fmt.Errorf("failed to compress frame body: %w", err)
		}
		if err := gzWriter.Close(); err != nil {
			return fmt.Errorf("failed to finish compressing frame body: %w", err)
		}
		body = compressed.Bytes()
		flags |= flagGzip
	}

	header := make([]byte, 5)
	binary.BigEndian.PutUint32(header[0:4], uint32(len(body)))
	header[4] = flags
	if _, err := writer.Write(header); err != nil {
		return err
	}
	_, err := writer.Write(body)
	return err
}

// ReadFrame reads one frame and decodes it into the given pointer
func ReadFrame(reader io.Reader, value interface{}) error {
	header := make([]byte, 5)
	if _, err := io.ReadFull(reader, header); err != nil {
		return err
	}
	length := binary.BigEndian.Uint32(header[0:4])
	if length > maxFrameBytes {
		return fmt.Errorf("frame length %d exceeds limit", length)
	}
	flags := header[4]

	body := make([]byte, length)
	if _, err := io.ReadFull(reader, body); err != nil {
		return err
	}

	if flags&flagGzip != 0 {
		gzReader, gerr := gzip.NewReader(bytes.NewReader(body))
		if gerr != nil {
			return fmt.Errorf("failed to open compressed frame body: %w", gerr)
		}
		uncompressed, rerr := io.ReadAll(gzReader)
		if rerr != nil {
			return fmt.Errorf("failed to decompress frame body: %w", rerr)
		}
		body = uncompressed
	}

	return msgpack.Unmarshal(body, value)
}
