package types_test

import (
	"errors"
	"math"
	"testing"

	"github.com/smartport-kiosk/smartport/internal/smartport/types"
)

func TestNormalizeTagCode(t *testing.T) {
	cases := map[string]string{
		"":            "",
		"  a1b2c3d4 ": "A1B2C3D4",
		"A1B2C3D4E5":  "A1B2C3D4",
		"3F2":         "000003F2",
		"zz":          "ZZ",
	}
	for in, want := range cases {
		if got := types.NormalizeTagCode(in); got != want {
			t.Errorf("NormalizeTagCode(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTagCodeFromUID(t *testing.T) {
	// 0x1234ABCD5E -> first 8 hex chars
	if got := types.TagCodeFromUID(0x1234ABCD5E); got != "1234ABCD" {
		t.Errorf("got %q", got)
	}
	if got := types.TagCodeFromUID(0xFF); got != "000000FF" {
		t.Errorf("got %q", got)
	}
}

func TestNormalizeName(t *testing.T) {
	if got := types.NormalizeName("  ana   lopez "); got != "ANA LOPEZ" {
		t.Errorf("got %q", got)
	}
}

func TestEmbeddingCodec_Float32LosesOnlyPrecision(t *testing.T) {
	c := types.EmbeddingCodec{Dim: 3, Width: types.Float32}
	blob, err := c.Encode(types.Embedding{0.1, -0.25, 0.5})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(blob) != 12 {
		t.Fatalf("expected 12 bytes, got %d", len(blob))
	}
	got, err := c.Decode(blob)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if math.Abs(got[0]-0.1) > 1e-6 || got[1] != -0.25 || got[2] != 0.5 {
		t.Errorf("unexpected decode: %v", got)
	}
}

func TestEmbeddingCodec_RejectsWrongDimension(t *testing.T) {
	c := types.EmbeddingCodec{Dim: 4, Width: types.Float64}
	if _, err := c.Encode(types.Embedding{1, 2, 3}); !errors.Is(err, types.ErrBadEmbedding) {
		t.Fatalf("expected ErrBadEmbedding, got %v", err)
	}
	if _, err := c.Decode(make([]byte, 24)); !errors.Is(err, types.ErrBadEmbedding) {
		t.Fatalf("expected ErrBadEmbedding on decode, got %v", err)
	}
	if _, err := c.Encode(types.Embedding{1, math.NaN(), 3, 4}); !errors.Is(err, types.ErrBadEmbedding) {
		t.Fatalf("expected ErrBadEmbedding for NaN, got %v", err)
	}
}

func TestEmbeddingCodec_EmptyBlobIsNoEmbedding(t *testing.T) {
	got, err := types.DefaultEmbeddingCodec().Decode(nil)
	if err != nil || got != nil {
		t.Fatalf("expected nil, nil; got %v, %v", got, err)
	}
}
