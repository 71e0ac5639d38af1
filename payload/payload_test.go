package payload

import (
	"bytes"
	"encoding/base64"
	"errors"
	"math/rand"
	"strings"
	"testing"
)

func randomBytes(n int, seed int64) []byte {
	b := make([]byte, n)
	rand.New(rand.NewSource(seed)).Read(b)
	return b
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		size  int
		chunk int
		comp  string
	}{
		{"empty", 0, 0, ""},
		{"one byte", 1, 4, ""},
		{"deadbeef", 4, 0, ""},
		{"exact multiple", 3 * 100, 4, CompressionNone},
		{"uneven tail", 1001, 16, CompressionNone},
		{"default chunking", 600 * 1024, 0, CompressionNone},
		{"gzip small", 37, 8, CompressionGzip},
		{"gzip large", 400 * 1024, 1024, CompressionGzip},
		{"gzip empty", 0, 0, CompressionGzip},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := randomBytes(tt.size, int64(i))
			p, err := Encode(data, Options{ChunkSize: tt.chunk, Compression: tt.comp})
			if err != nil {
				t.Fatal(err)
			}
			got, err := Decode(p)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(got, data) {
				t.Fatalf("round trip mismatch for %d bytes", tt.size)
			}
		})
	}
}

func TestChunksJoinToFullEncoding(t *testing.T) {
	data := randomBytes(5000, 7)
	p, err := Encode(data, Options{ChunkSize: 400})
	if err != nil {
		t.Fatal(err)
	}
	want := base64.StdEncoding.EncodeToString(data)
	if got := strings.Join(p.Chunks, ""); got != want {
		t.Fatal("chunks do not join to the full encoding")
	}
	for i, c := range p.Chunks[:len(p.Chunks)-1] {
		if len(c) != 400 {
			t.Fatalf("chunk %d has length %d", i, len(c))
		}
	}
	if p.EncodedLen() != len(want) {
		t.Fatalf("EncodedLen = %d, want %d", p.EncodedLen(), len(want))
	}
	// every chunk decodes independently
	var joined []byte
	for _, c := range p.Chunks {
		b, err := base64.StdEncoding.DecodeString(c)
		if err != nil {
			t.Fatal(err)
		}
		joined = append(joined, b...)
	}
	if !bytes.Equal(joined, data) {
		t.Fatal("independently decoded chunks differ")
	}
}

func TestDeadBeef(t *testing.T) {
	p, err := Encode([]byte{0xDE, 0xAD, 0xBE, 0xEF}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Chunks) != 1 || p.Chunks[0] != "3q2+7w==" {
		t.Fatalf("chunks = %q", p.Chunks)
	}
	if p.Size != 4 || p.Encoding != EncodingBase64 || p.Compression != CompressionNone {
		t.Fatalf("payload = %+v", p)
	}
}

func TestEncodeRejects(t *testing.T) {
	for _, size := range []int{-4, 3, 262145} {
		if _, err := Encode([]byte("x"), Options{ChunkSize: size}); !errors.Is(err, ErrChunkSize) {
			t.Fatalf("chunk %d: want ErrChunkSize, got %v", size, err)
		}
	}
	if _, err := Encode([]byte("x"), Options{Compression: "lzma"}); !errors.Is(err, ErrCompression) {
		t.Fatalf("want ErrCompression, got %v", err)
	}
}

func TestDecodeDetectsCorruption(t *testing.T) {
	data := randomBytes(64, 3)
	p, err := Encode(data, Options{ChunkSize: 8})
	if err != nil {
		t.Fatal(err)
	}

	swapped := *p
	swapped.Chunks = append([]string(nil), p.Chunks...)
	swapped.Chunks[0], swapped.Chunks[1] = swapped.Chunks[1], swapped.Chunks[0]
	if _, err := Decode(&swapped); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("reordered chunks: want ErrCorrupt, got %v", err)
	}

	short := *p
	short.Chunks = p.Chunks[:len(p.Chunks)-1]
	if _, err := Decode(&short); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("missing chunk: want ErrCorrupt, got %v", err)
	}

	garbage := *p
	garbage.Chunks = []string{"!!!!"}
	if _, err := Decode(&garbage); err == nil {
		t.Fatal("expected base64 error")
	}
}

func TestGzipShrinksRepetitiveData(t *testing.T) {
	data := bytes.Repeat([]byte("nannboy "), 4096)
	plain, err := Encode(data, Options{})
	if err != nil {
		t.Fatal(err)
	}
	packed, err := Encode(data, Options{Compression: CompressionGzip})
	if err != nil {
		t.Fatal(err)
	}
	if packed.EncodedLen() >= plain.EncodedLen() {
		t.Fatalf("gzip %d >= plain %d", packed.EncodedLen(), plain.EncodedLen())
	}
	if packed.Digest != plain.Digest {
		t.Fatal("digest must cover the raw payload")
	}
}
