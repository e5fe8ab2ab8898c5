package database

import (
	"encoding/hex"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/crypto/sha3"
)

// codec compresses snapshot values and computes their checksums.
// zstd encoders and decoders are safe for concurrent EncodeAll/DecodeAll.
type codec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newCodec() (*codec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = enc.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &codec{enc: enc, dec: dec}, nil
}

func (c *codec) encode(value []byte) (compressed []byte, checksum string) {
	return c.enc.EncodeAll(value, nil), Checksum(value)
}

func (c *codec) decode(key string, compressed []byte, checksum string) ([]byte, error) {
	value, err := c.dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress snapshot %q: %w", key, err)
	}
	if Checksum(value) != checksum {
		return nil, fmt.Errorf("%w: %q", ErrChecksumMismatch, key)
	}
	return value, nil
}

func (c *codec) close() {
	_ = c.enc.Close()
	c.dec.Close()
}

// Checksum returns the hex SHA3-256 digest of data.
func Checksum(data []byte) string {
	sum := sha3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
