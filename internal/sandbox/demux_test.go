package sandbox

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frame(stream byte, payload string) []byte {
	header := make([]byte, demuxHeaderLen)
	header[0] = stream
	binary.BigEndian.PutUint32(header[4:8], uint32(len(payload)))
	return append(header, payload...)
}

func TestDemuxSplitsStreams(t *testing.T) {
	var in bytes.Buffer
	in.Write(frame(streamStdout, "hello "))
	in.Write(frame(streamStderr, "oops"))
	in.Write(frame(streamStdout, "world\n"))

	var stdout, stderr bytes.Buffer
	require.NoError(t, demux(&in, &stdout, &stderr))
	assert.Equal(t, "hello world\n", stdout.String())
	assert.Equal(t, "oops", stderr.String())
}

func TestDemuxTruncatedHeader(t *testing.T) {
	var in bytes.Buffer
	in.Write(frame(streamStdout, "partial"))
	in.Write([]byte{1, 0, 0})

	var stdout, stderr bytes.Buffer
	require.NoError(t, demux(&in, &stdout, &stderr))
	assert.Equal(t, "partial", stdout.String())
}

func TestDemuxTruncatedPayload(t *testing.T) {
	header := make([]byte, demuxHeaderLen)
	header[0] = streamStdout
	binary.BigEndian.PutUint32(header[4:8], 100)
	in := bytes.NewReader(append(header, "only this"...))

	var stdout, stderr bytes.Buffer
	require.NoError(t, demux(in, &stdout, &stderr))
	assert.Equal(t, "only this", stdout.String())
}

func TestDemuxDiscardsUnknownStreams(t *testing.T) {
	var in bytes.Buffer
	in.Write(frame(0, "stdin echo"))
	in.Write(frame(streamStdout, "kept"))
	in.Write(frame(7, "junk"))

	var stdout, stderr bytes.Buffer
	require.NoError(t, demux(&in, &stdout, &stderr))
	assert.Equal(t, "kept", stdout.String())
	assert.Empty(t, stderr.String())
}

func TestDemuxEmpty(t *testing.T) {
	var stdout, stderr bytes.Buffer
	require.NoError(t, demux(bytes.NewReader(nil), &stdout, &stderr))
	assert.Empty(t, stdout.String())
}

func TestLimitedBufferCapsOutput(t *testing.T) {
	b := newLimitedBuffer(10)
	n, err := b.Write([]byte(strings.Repeat("x", 25)))
	require.NoError(t, err)
	assert.Equal(t, 25, n)
	assert.Len(t, b.String(), 10)

	// Further writes are accepted but dropped.
	_, err = b.Write([]byte("more"))
	require.NoError(t, err)
	assert.Len(t, b.String(), 10)
}
