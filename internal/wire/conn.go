package wire

import (
	"fmt"
	"net"
	"time"
)

// Conn wraps a net.Conn with the frame codec and, optionally, the
// authenticated encryption layer from spec §4.B. cmd and data are sealed
// independently when a key is configured.
type Conn struct {
	net.Conn
	key         *Key
	compress    bool
	idleTimeout time.Duration
}

// NewConn wraps conn. key may be nil to disable encryption.
func NewConn(conn net.Conn, key *Key) *Conn {
	return &Conn{Conn: conn, key: key}
}

// SetCompression enables or disables zlib compression inside the payload
// envelope for data this connection sends (sync.compression, spec §6); the
// envelope itself is always applied, and Recv decompresses whatever the
// envelope marks as compressed regardless of this setting. Compression is
// applied before encryption on send and undone after decryption on recv,
// per spec §4.B.
func (c *Conn) SetCompression(enabled bool) {
	c.compress = enabled
}

// SetIdleTimeout arms per-frame deadline refresh: every successfully
// decoded frame pushes the connection's deadline another d out, so a
// session that's actively making progress never trips it no matter how
// long it runs overall. A stalled session (no frame arrives within d)
// still gets dropped. d<=0 disables refresh; the caller owns any initial
// deadline set before the first Recv.
func (c *Conn) SetIdleTimeout(d time.Duration) {
	c.idleTimeout = d
}

// Send writes one frame, encrypting cmd and data independently if a key
// is configured.
func (c *Conn) Send(cmd string, data []byte) error {
	cmdBytes := []byte(cmd)

	wrapped, err := WrapPayload(data, c.compress)
	if err != nil {
		return fmt.Errorf("wrap payload: %w", err)
	}

	if c.key != nil {
		sealedCmd, err := c.key.Seal(cmdBytes)
		if err != nil {
			return fmt.Errorf("seal cmd: %w", err)
		}
		sealedData, err := c.key.Seal(wrapped)
		if err != nil {
			return fmt.Errorf("seal data: %w", err)
		}
		return WriteFrame(c.Conn, sealedCmd, sealedData)
	}

	return WriteFrame(c.Conn, cmdBytes, wrapped)
}

// Recv reads one frame, decrypting cmd and data independently if a key is
// configured. A failed authentication tag returns ErrAuthFailed; the
// caller must close the connection without retrying.
func (c *Conn) Recv() (cmd string, data []byte, err error) {
	rawCmd, rawData, err := ReadFrame(c.Conn)
	if err != nil {
		return "", nil, err
	}

	if c.key != nil {
		openCmd, err := c.key.Open(rawCmd)
		if err != nil {
			return "", nil, err
		}
		openData, err := c.key.Open(rawData)
		if err != nil {
			return "", nil, err
		}
		rawCmd, rawData = openCmd, openData
	}

	unwrapped, err := UnwrapPayload(rawData)
	if err != nil {
		return "", nil, fmt.Errorf("unwrap payload: %w", err)
	}

	if c.idleTimeout > 0 {
		_ = c.Conn.SetDeadline(time.Now().Add(c.idleTimeout))
	}

	return string(rawCmd), unwrapped, nil
}
