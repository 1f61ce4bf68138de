package forward

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parchment-log/parchment/base"
)

func TestFrameRoundTrip(t *testing.T) {
	request := LogRequest{Entries: []Entry{
		{Category: "foo", Message: "hello"},
		{Category: "bar", Message: "world"},
	}}

	buffer := &bytes.Buffer{}
	require.NoError(t, WriteFrame(buffer, &request, false))

	var decoded LogRequest
	require.NoError(t, ReadFrame(buffer, &decoded))
	assert.Equal(t, request, decoded)
}

func TestCompressedFrameRoundTrip(t *testing.T) {
	request := LogRequest{Entries: []Entry{
		{Category: "foo", Message: "compressible compressible compressible"},
	}}

	buffer := &bytes.Buffer{}
	require.NoError(t, WriteFrame(buffer, &request, true))
	assert.Equal(t, flagGzip, buffer.Bytes()[4]&flagGzip)

	var decoded LogRequest
	require.NoError(t, ReadFrame(buffer, &decoded))
	assert.Equal(t, request, decoded)
}

func TestResponseRoundTrip(t *testing.T) {
	buffer := &bytes.Buffer{}
	require.NoError(t, WriteFrame(buffer, &LogResponse{Code: ResultTryLater}, false))

	var decoded LogResponse
	require.NoError(t, ReadFrame(buffer, &decoded))
	assert.Equal(t, ResultTryLater, decoded.Code)
}

func TestWireConversion(t *testing.T) {
	batch := base.MessageBatch{
		{Category: "a", Message: "1"},
		{Category: "b", Message: "2"},
	}
	assert.Equal(t, batch, FromWire(ToWire(batch)))
}
