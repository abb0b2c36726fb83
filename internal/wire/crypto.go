package wire

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// KeySize is the length, in bytes, of the raw key material loaded from a
// key file (spec §6: "32 bytes of entropy before encoding").
const KeySize = 32

const (
	subkeySize = 16 // AES-128 key / HMAC-SHA256 truncation-free half
	ivSize     = aes.BlockSize
	macSize    = sha256.Size
)

// ErrAuthFailed is returned when a sealed token's authentication tag does
// not verify. Per spec §4.B, the connection must be terminated with no
// retry on this error.
var ErrAuthFailed = errors.New("wire: authentication failed")

// ErrKeyFileNotFound is returned by LoadKeyFromFile when the configured
// key file does not exist. Per spec §6, this is a fatal startup error
// when encryption is enabled.
var ErrKeyFileNotFound = errors.New("wire: encryption key file not found")

// Key holds the two subkeys derived from a shared secret: one for
// AES-128-CBC confidentiality, one for HMAC-SHA256 authentication. This is
// the Fernet-equivalent construction named in spec §4.B.
type Key struct {
	signingKey    [subkeySize]byte
	encryptionKey [subkeySize]byte
}

// NewKey derives a Key from exactly KeySize bytes of secret material using
// HKDF-SHA256,
// rather than slicing the raw bytes directly, so that a single bit
// flipped anywhere in the key file changes both subkeys instead of only
// one half of the authentication tag.
func NewKey(secret []byte) (*Key, error) {
	if len(secret) != KeySize {
		return nil, fmt.Errorf("wire: key must be %d bytes, got %d", KeySize, len(secret))
	}

	hk := hkdf.New(sha256.New, secret, nil, []byte("syncbox-wire-subkeys"))
	derived := make([]byte, subkeySize*2)
	if _, err := io.ReadFull(hk, derived); err != nil {
		return nil, fmt.Errorf("derive subkeys: %w", err)
	}

	k := &Key{}
	copy(k.signingKey[:], derived[:subkeySize])
	copy(k.encryptionKey[:], derived[subkeySize:])
	return k, nil
}

// GenerateKey returns 32 bytes of cryptographically random key material,
// suitable for use with NewKey or SaveKeyToFile.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return key, nil
}

// SaveKeyToFile writes raw key material to path as a single line of
// URL-safe base64, per spec §6.
func SaveKeyToFile(raw []byte, path string) error {
	if len(raw) != KeySize {
		return fmt.Errorf("wire: key must be %d bytes, got %d", KeySize, len(raw))
	}
	encoded := base64.URLEncoding.EncodeToString(raw)
	return os.WriteFile(path, []byte(encoded+"\n"), 0o600)
}

// LoadKeyFromFile reads a single-line base64-urlsafe key file and derives
// a Key from it.
func LoadKeyFromFile(path string) (*Key, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrKeyFileNotFound
		}
		return nil, fmt.Errorf("read key file: %w", err)
	}

	line := strings.TrimSpace(string(data))
	raw, err := base64.URLEncoding.DecodeString(line)
	if err != nil {
		return nil, fmt.Errorf("decode key file: %w", err)
	}

	return NewKey(raw)
}

// Seal encrypts and authenticates plaintext, returning a URL-safe
// base64-encoded token: base64(iv || ciphertext || hmac).
func (k *Key) Seal(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(k.encryptionKey[:])
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}

	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, fmt.Errorf("generate iv: %w", err)
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	body := make([]byte, 0, ivSize+len(ciphertext)+macSize)
	body = append(body, iv...)
	body = append(body, ciphertext...)

	mac := hmac.New(sha256.New, k.signingKey[:])
	mac.Write(body)
	body = mac.Sum(body)

	encoded := make([]byte, base64.URLEncoding.EncodedLen(len(body)))
	base64.URLEncoding.Encode(encoded, body)
	return encoded, nil
}

// Open verifies and decrypts a token produced by Seal. A failed
// authentication tag returns ErrAuthFailed and must not be retried.
func (k *Key) Open(token []byte) ([]byte, error) {
	body := make([]byte, base64.URLEncoding.DecodedLen(len(token)))
	n, err := base64.URLEncoding.Decode(body, token)
	if err != nil {
		return nil, fmt.Errorf("%w: decode token: %v", ErrAuthFailed, err)
	}
	body = body[:n]

	if len(body) < ivSize+macSize {
		return nil, fmt.Errorf("%w: token too short", ErrAuthFailed)
	}

	cut := len(body) - macSize
	signed, gotMAC := body[:cut], body[cut:]

	mac := hmac.New(sha256.New, k.signingKey[:])
	mac.Write(signed)
	wantMAC := mac.Sum(nil)

	if subtle.ConstantTimeCompare(gotMAC, wantMAC) != 1 {
		return nil, ErrAuthFailed
	}

	iv := signed[:ivSize]
	ciphertext := signed[ivSize:]
	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: malformed ciphertext", ErrAuthFailed)
	}

	block, err := aes.NewCipher(k.encryptionKey[:])
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}

	padded := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(padded, ciphertext)

	plaintext, err := pkcs7Unpad(padded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	return plaintext, nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padding := bytes.Repeat([]byte{byte(padLen)}, padLen)
	return append(append([]byte{}, data...), padding...)
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.New("empty padded data")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > len(data) {
		return nil, errors.New("invalid padding")
	}
	return data[:len(data)-padLen], nil
}
