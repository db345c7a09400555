package rpak

import (
	"math"
	"testing"
)

func TestFrame(t *testing.T) {
	tests := []struct {
		mask, pos, end uint64
		i, n           uint64
	}{
		{15, 0, 100, 0, 16},
		{15, 4, 100, 4, 12},
		{15, 20, 100, 4, 12},
		{15, 20, 22, 4, 2},
		{15, 32, 32, 0, 0},
		{math.MaxUint64, 0, 100, 0, 100},
		{math.MaxUint64, 30, 100, 30, 70},
	}
	for _, tc := range tests {
		i, n := frame(tc.mask, tc.pos, tc.end)
		if i != tc.i || n != tc.n {
			t.Errorf("frame(%#x, %d, %d) = %d, %d; want %d, %d",
				tc.mask, tc.pos, tc.end, i, n, tc.i, tc.n)
		}
	}
}

func TestRingSize(t *testing.T) {
	tests := []struct{ n, s uint64 }{
		{0, 1}, {1, 1}, {2, 2}, {3, 4}, {4096, 4096}, {4097, 8192},
	}
	for _, tc := range tests {
		if s := ringSize(tc.n); s != tc.s {
			t.Errorf("ringSize(%d) = %d; want %d", tc.n, s, tc.s)
		}
	}
}
