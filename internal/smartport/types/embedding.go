package types

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Embedding is a fixed-length face feature vector produced by the
// external extractor.
type Embedding []float64

// ElementWidth selects how each vector component is stored.
type ElementWidth int

const (
	Float64 ElementWidth = 8
	Float32 ElementWidth = 4
)

var ErrBadEmbedding = errors.New("malformed embedding")

// EmbeddingCodec serializes embeddings to a fixed-length little-endian
// blob. Dim == 0 accepts any length.
type EmbeddingCodec struct {
	Dim   int
	Width ElementWidth
}

func DefaultEmbeddingCodec() EmbeddingCodec {
	return EmbeddingCodec{Dim: 128, Width: Float64}
}

func ParseElementWidth(s string) (ElementWidth, error) {
	switch s {
	case "", "float64", "f64":
		return Float64, nil
	case "float32", "f32":
		return Float32, nil
	}
	return 0, fmt.Errorf("unknown embedding element width %q", s)
}

func (c EmbeddingCodec) width() ElementWidth {
	if c.Width == Float32 {
		return Float32
	}
	return Float64
}

// Validate checks length and that every component is finite.
func (c EmbeddingCodec) Validate(e Embedding) error {
	if len(e) == 0 {
		return fmt.Errorf("%w: empty", ErrBadEmbedding)
	}
	if c.Dim > 0 && len(e) != c.Dim {
		return fmt.Errorf("%w: got %d components, want %d", ErrBadEmbedding, len(e), c.Dim)
	}
	for i, v := range e {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: component %d is not finite", ErrBadEmbedding, i)
		}
	}
	return nil
}

func (c EmbeddingCodec) Encode(e Embedding) ([]byte, error) {
	if err := c.Validate(e); err != nil {
		return nil, err
	}
	w := int(c.width())
	out := make([]byte, len(e)*w)
	for i, v := range e {
		if w == int(Float32) {
			binary.LittleEndian.PutUint32(out[i*w:], math.Float32bits(float32(v)))
		} else {
			binary.LittleEndian.PutUint64(out[i*w:], math.Float64bits(v))
		}
	}
	return out, nil
}

// Decode returns nil for an empty blob (no embedding enrolled).
func (c EmbeddingCodec) Decode(b []byte) (Embedding, error) {
	if len(b) == 0 {
		return nil, nil
	}
	w := int(c.width())
	if len(b)%w != 0 {
		return nil, fmt.Errorf("%w: blob length %d not a multiple of %d", ErrBadEmbedding, len(b), w)
	}
	n := len(b) / w
	if c.Dim > 0 && n != c.Dim {
		return nil, fmt.Errorf("%w: blob holds %d components, want %d", ErrBadEmbedding, n, c.Dim)
	}
	out := make(Embedding, n)
	for i := range out {
		if w == int(Float32) {
			out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(b[i*w:])))
		} else {
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*w:]))
		}
	}
	return out, nil
}
