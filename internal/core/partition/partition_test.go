package partition

import (
	"errors"
	"testing"

	"github.com/trajstore-lab/trajstore/internal/core/interval"
)

func TestSplit_Contiguous(t *testing.T) {
	chunks, err := Split(0, 100, 4)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) != 4 {
		t.Fatalf("got %d chunks, want 4", len(chunks))
	}
	for i := 1; i < len(chunks); i++ {
		if chunks[i].Lower.Value != chunks[i-1].Upper.Value {
			t.Errorf("chunk %d starts at %v, previous ends at %v", i, chunks[i].Lower.Value, chunks[i-1].Upper.Value)
		}
		if chunks[i-1].Upper.Closed {
			t.Errorf("interior chunk %d has a closed upper bound", i-1)
		}
	}
	last := chunks[len(chunks)-1]
	if last.Upper != interval.Closed(100) {
		t.Errorf("last upper = %v, want [100", last.Upper)
	}
}

func TestSplit_EveryValueInOneChunk(t *testing.T) {
	chunks, err := Split(10, 20, 3)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	for _, v := range []float64{10, 11.5, 13.3333, 15, 16.6667, 19.99, 20} {
		hits := 0
		for _, c := range chunks {
			if c.Contains(v) {
				hits++
			}
		}
		if hits != 1 {
			t.Errorf("value %v is in %d chunks, want 1", v, hits)
		}
	}
}

func TestSplit_SingleChunk(t *testing.T) {
	for _, tc := range []struct {
		lo, hi float64
		n      int
	}{
		{0, 10, 1},
		{0, 10, 0},
		{5, 5, 8},
	} {
		chunks, err := Split(tc.lo, tc.hi, tc.n)
		if err != nil {
			t.Fatalf("Split(%v, %v, %d): %v", tc.lo, tc.hi, tc.n, err)
		}
		if len(chunks) != 1 {
			t.Fatalf("Split(%v, %v, %d) = %d chunks, want 1", tc.lo, tc.hi, tc.n, len(chunks))
		}
		if !chunks[0].Lower.Closed || !chunks[0].Upper.Closed {
			t.Errorf("single chunk must be closed on both ends, got %v", chunks[0])
		}
	}
}

func TestSplit_Inverted(t *testing.T) {
	if _, err := Split(2, 1, 2); !errors.Is(err, interval.ErrInvalidInterval) {
		t.Fatalf("err = %v, want ErrInvalidInterval", err)
	}
}
