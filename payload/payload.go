// Package payload turns the engine binary into chunked radix-64 text that a
// page can decode a piece at a time.
package payload

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/zeebo/blake3"
)

// DefaultChunkSize is 256 KiB of encoded text.
const DefaultChunkSize = 256 * 1024

const (
	EncodingBase64  = "base64"
	CompressionNone = "none"
	CompressionGzip = "gzip"
)

var (
	ErrChunkSize   = errors.New("chunk size must be a positive multiple of 4")
	ErrCompression = errors.New("unknown compression")
	ErrCorrupt     = errors.New("payload does not match its digest")
)

// Payload is the encoded form of a binary. Joining Chunks in order gives
// the complete encoding.
type Payload struct {
	Encoding    string   `json:"encoding"`
	Compression string   `json:"compression"`
	Size        int      `json:"size"`
	Digest      string   `json:"digest"`
	Chunks      []string `json:"chunks"`
}

type Options struct {
	// ChunkSize is the encoded length of every chunk but the last.
	// Zero selects DefaultChunkSize.
	ChunkSize   int
	Compression string
}

// Sum returns the hex BLAKE3-256 digest of data.
func Sum(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func Encode(data []byte, opts Options) (*Payload, error) {
	size := opts.ChunkSize
	if size == 0 {
		size = DefaultChunkSize
	}
	// base64 quanta are 4 characters; any other split would leave chunks
	// that cannot be decoded on their own.
	if size < 0 || size%4 != 0 {
		return nil, fmt.Errorf("%w: %d", ErrChunkSize, size)
	}

	p := &Payload{
		Encoding:    EncodingBase64,
		Compression: opts.Compression,
		Size:        len(data),
		Digest:      Sum(data),
		Chunks:      []string{},
	}
	body := data
	switch opts.Compression {
	case "", CompressionNone:
		p.Compression = CompressionNone
	case CompressionGzip:
		var buf bytes.Buffer
		zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
		if err != nil {
			return nil, err
		}
		if _, err := zw.Write(data); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		body = buf.Bytes()
	default:
		return nil, fmt.Errorf("%w: %q", ErrCompression, opts.Compression)
	}

	text := base64.StdEncoding.EncodeToString(body)
	for len(text) > 0 {
		n := min(size, len(text))
		p.Chunks = append(p.Chunks, text[:n])
		text = text[n:]
	}
	return p, nil
}

// Decode reverses Encode and checks the result against Size and Digest.
func Decode(p *Payload) ([]byte, error) {
	if p.Encoding != EncodingBase64 {
		return nil, fmt.Errorf("unsupported encoding %q", p.Encoding)
	}
	var body bytes.Buffer
	for i, chunk := range p.Chunks {
		b, err := base64.StdEncoding.DecodeString(chunk)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", i, err)
		}
		body.Write(b)
	}

	data := body.Bytes()
	switch p.Compression {
	case "", CompressionNone:
	case CompressionGzip:
		zr, err := gzip.NewReader(&body)
		if err != nil {
			return nil, fmt.Errorf("gunzip: %w", err)
		}
		data, err = io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("gunzip: %w", err)
		}
		if err := zr.Close(); err != nil {
			return nil, fmt.Errorf("gunzip: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrCompression, p.Compression)
	}

	if len(data) != p.Size {
		return nil, fmt.Errorf("%w: size %d, want %d", ErrCorrupt, len(data), p.Size)
	}
	if p.Digest != "" && Sum(data) != p.Digest {
		return nil, ErrCorrupt
	}
	return data, nil
}

// EncodedLen is the total length of the encoded text.
func (p *Payload) EncodedLen() int {
	n := 0
	for _, c := range p.Chunks {
		n += len(c)
	}
	return n
}
