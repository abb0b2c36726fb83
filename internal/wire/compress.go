package wire

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// CompressThreshold is the size, in bytes, above which a frame's data
// payload (every command's, not only file bodies and state documents) is
// wrapped compressed rather than plain when compression is enabled.
const CompressThreshold = 1024

// envelope is the `{"compressed":bool,"data":base64}` wire shape spec
// §4.B prescribes for file bodies and state documents.
type envelope struct {
	Compressed bool   `json:"compressed"`
	Data       string `json:"data"`
}

// WrapPayload encodes payload as a compression envelope. It compresses
// with zlib only when compress is requested and the payload exceeds
// CompressThreshold; otherwise it wraps the payload uncompressed.
func WrapPayload(payload []byte, compress bool) ([]byte, error) {
	env := envelope{}

	if compress && len(payload) > CompressThreshold {
		var buf bytes.Buffer
		zw := zlib.NewWriter(&buf)
		if _, err := zw.Write(payload); err != nil {
			zw.Close()
			return nil, fmt.Errorf("compress payload: %w", err)
		}
		if err := zw.Close(); err != nil {
			return nil, fmt.Errorf("finalize compressed payload: %w", err)
		}
		env.Compressed = true
		env.Data = base64.StdEncoding.EncodeToString(buf.Bytes())
	} else {
		env.Compressed = false
		env.Data = base64.StdEncoding.EncodeToString(payload)
	}

	out, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return out, nil
}

// UnwrapPayload decodes a compression envelope, decompressing if needed.
func UnwrapPayload(wrapped []byte) ([]byte, error) {
	var env envelope
	if err := json.Unmarshal(wrapped, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	raw, err := base64.StdEncoding.DecodeString(env.Data)
	if err != nil {
		return nil, fmt.Errorf("decode envelope data: %w", err)
	}

	if !env.Compressed {
		return raw, nil
	}

	zr, err := zlib.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("open compressed payload: %w", err)
	}
	defer zr.Close()

	decompressed, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("decompress payload: %w", err)
	}
	return decompressed, nil
}
