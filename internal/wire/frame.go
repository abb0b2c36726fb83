// Package wire implements the length-prefixed frame codec, authenticated
// symmetric encryption, and optional zlib compression described in spec
// §4.B.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxFrameSize is the largest single frame the codec will encode or
// decode, per spec §4.B framing limits. Larger payloads must be streamed
// as multiple frames (see internal/protocol's chunked file transfer).
const MaxFrameSize = 64 * 1024 * 1024

// WriteFrame writes one wire frame: cmd_len, data_len (both big-endian
// uint32), then the raw cmd and data bytes.
func WriteFrame(w io.Writer, cmd []byte, data []byte) error {
	if len(data) > MaxFrameSize {
		return fmt.Errorf("frame payload %d bytes exceeds max frame size %d", len(data), MaxFrameSize)
	}

	header := make([]byte, 8)
	binary.BigEndian.PutUint32(header[0:4], uint32(len(cmd)))
	binary.BigEndian.PutUint32(header[4:8], uint32(len(data)))

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if _, err := w.Write(cmd); err != nil {
		return fmt.Errorf("write frame cmd: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write frame data: %w", err)
	}
	return nil
}

// ReadFrame reads one wire frame and returns its raw cmd and data bytes.
func ReadFrame(r io.Reader) (cmd []byte, data []byte, err error) {
	header := make([]byte, 8)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, nil, err
	}

	cmdLen := binary.BigEndian.Uint32(header[0:4])
	dataLen := binary.BigEndian.Uint32(header[4:8])

	if dataLen > MaxFrameSize {
		return nil, nil, fmt.Errorf("frame payload %d bytes exceeds max frame size %d", dataLen, MaxFrameSize)
	}

	cmd = make([]byte, cmdLen)
	if _, err := io.ReadFull(r, cmd); err != nil {
		return nil, nil, fmt.Errorf("read frame cmd: %w", err)
	}

	data = make([]byte, dataLen)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, nil, fmt.Errorf("read frame data: %w", err)
	}

	return cmd, data, nil
}
