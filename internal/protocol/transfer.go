package protocol

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gosyncbox/syncbox/internal/wire"
)

// SmallFileThreshold is the size, in bytes, at or below which a file body
// travels as a single whole-file frame (spec §4.D file transfer modes).
const SmallFileThreshold = 1024 * 1024

// DefaultChunkSize is sync.chunk_size's default (spec §6).
const DefaultChunkSize = 65536

// ErrTransferIntegrity indicates a received file failed size or hash
// verification and was discarded (spec §4.D, §7 property 3).
var ErrTransferIntegrity = errors.New("protocol: transfer failed integrity check")

// HashBytes returns the MD5 hex fingerprint of body (spec's content
// fingerprint, shared by transfer verification and the server-side
// session writer).
func HashBytes(body []byte) string {
	sum := md5.Sum(body)
	return hex.EncodeToString(sum[:])
}

// SendFile streams body to the peer as FILE_DATA frame(s), choosing the
// whole-file or chunked header+body form based on size.
func SendFile(conn *wire.Conn, path string, body []byte, chunkSize int) error {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	hash := HashBytes(body)

	if len(body) <= SmallFileThreshold {
		return SendJSON(conn, CmdFileData, SmallFilePayload{Path: path, Hash: hash, Body: body})
	}

	chunks := (len(body) + chunkSize - 1) / chunkSize
	if err := SendJSON(conn, CmdFileData, FileHeader{Path: path, Size: int64(len(body)), Hash: hash, Chunks: chunks}); err != nil {
		return fmt.Errorf("send file header for %s: %w", path, err)
	}

	for i := 0; i < chunks; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > len(body) {
			end = len(body)
		}
		if err := conn.Send(string(CmdFileData), body[start:end]); err != nil {
			return fmt.Errorf("send chunk %d/%d for %s: %w", i+1, chunks, path, err)
		}
	}
	return nil
}

// RecvFile reads one FILE_DATA transmission (whole-file or chunked) and
// returns the reassembled body, verifying size and hash. A failed
// verification discards the body and returns ErrTransferIntegrity; the
// caller is expected to send an ERROR frame for that transfer only and
// continue the session (spec §7 property 3).
func RecvFile(conn *wire.Conn) (path string, body []byte, err error) {
	var probe map[string]json.RawMessage
	cmd, data, err := conn.Recv()
	if err != nil {
		return "", nil, err
	}
	if Command(cmd) != CmdFileData {
		return "", nil, fmt.Errorf("%w: expected FILE_DATA, got %s", ErrUnexpectedCommand, cmd)
	}

	if err := json.Unmarshal(data, &probe); err != nil {
		return "", nil, fmt.Errorf("protocol: decode file header: %w", err)
	}

	if _, isChunked := probe["chunks"]; isChunked {
		var hdr FileHeader
		if err := json.Unmarshal(data, &hdr); err != nil {
			return "", nil, fmt.Errorf("protocol: decode file header: %w", err)
		}
		return recvChunked(conn, hdr)
	}

	var small SmallFilePayload
	if err := json.Unmarshal(data, &small); err != nil {
		return "", nil, fmt.Errorf("protocol: decode small file payload: %w", err)
	}
	if HashBytes(small.Body) != small.Hash {
		return "", nil, fmt.Errorf("%w: %s", ErrTransferIntegrity, small.Path)
	}
	return small.Path, small.Body, nil
}

func recvChunked(conn *wire.Conn, hdr FileHeader) (string, []byte, error) {
	body := make([]byte, 0, hdr.Size)
	for i := 0; i < hdr.Chunks; i++ {
		cmd, chunk, err := conn.Recv()
		if err != nil {
			return "", nil, fmt.Errorf("recv chunk %d/%d for %s: %w", i+1, hdr.Chunks, hdr.Path, err)
		}
		if Command(cmd) != CmdFileData {
			return "", nil, fmt.Errorf("%w: expected FILE_DATA chunk, got %s", ErrUnexpectedCommand, cmd)
		}
		body = append(body, chunk...)
	}

	if int64(len(body)) != hdr.Size {
		return "", nil, fmt.Errorf("%w: %s size mismatch: got %d want %d", ErrTransferIntegrity, hdr.Path, len(body), hdr.Size)
	}
	if HashBytes(body) != hdr.Hash {
		return "", nil, fmt.Errorf("%w: %s hash mismatch", ErrTransferIntegrity, hdr.Path)
	}
	return hdr.Path, body, nil
}
