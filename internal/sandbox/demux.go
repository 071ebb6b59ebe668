package sandbox

import (
	"encoding/binary"
	"io"
)

// Docker multiplexes stdout and stderr onto one stream when the
// container has no TTY. Each frame is an 8 byte header (stream type,
// three reserved bytes, big-endian payload size) followed by the
// payload.
const (
	streamStdout = 1
	streamStderr = 2

	demuxHeaderLen = 8
)

// demux splits a multiplexed container stream into stdout and stderr.
// A truncated trailing frame (connection torn down mid-write when the
// container is killed) ends the stream cleanly instead of erroring.
func demux(r io.Reader, stdout, stderr io.Writer) error {
	header := make([]byte, demuxHeaderLen)
	for {
		if _, err := io.ReadFull(r, header); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil
			}
			return err
		}

		size := binary.BigEndian.Uint32(header[4:8])
		var dst io.Writer
		switch header[0] {
		case streamStdout:
			dst = stdout
		case streamStderr:
			dst = stderr
		default:
			dst = io.Discard
		}

		if _, err := io.CopyN(dst, r, int64(size)); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil
			}
			return err
		}
	}
}

// limitedBuffer keeps the first max bytes written and drops the rest,
// bounding how much container output the worker retains.
type limitedBuffer struct {
	buf []byte
	max int
}

func newLimitedBuffer(max int) *limitedBuffer {
	return &limitedBuffer{max: max}
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if remaining := b.max - len(b.buf); remaining > 0 {
		if len(p) > remaining {
			b.buf = append(b.buf, p[:remaining]...)
		} else {
			b.buf = append(b.buf, p...)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	return string(b.buf)
}
