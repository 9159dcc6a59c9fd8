package pools

import (
	"testing"
)

func TestBytePool_Tiers(t *testing.T) {
	pool := NewBytePool()

	tests := []struct {
		size    int
		wantCap int
	}{
		{100, 4096},
		{4096, 4096},
		{4097, 16384},
		{65536, 65536},
		{70000, 70000},
	}

	for _, tt := range tests {
		buf := pool.Get(tt.size)
		if len(buf) != tt.size {
			t.Errorf("Get(%d): len = %d", tt.size, len(buf))
		}
		if cap(buf) != tt.wantCap {
			t.Errorf("Get(%d): cap = %d, want %d", tt.size, cap(buf), tt.wantCap)
		}
		pool.Put(buf)
	}

	stats := pool.Stats()
	if stats.Gets != 5 || stats.Misses != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestBufferPool_ResetsLength(t *testing.T) {
	pool := NewBufferPool()

	buf := pool.Get(10)
	*buf = append(*buf, "hello"...)
	pool.Put(buf)

	again := pool.Get(10)
	if len(*again) != 0 {
		t.Errorf("expected empty buffer, got %d bytes", len(*again))
	}
}

func TestBufferPool_DropsOversized(t *testing.T) {
	pool := NewBufferPool()

	buf := pool.Get(LargeBufferSize)
	*buf = append(*buf, make([]byte, 2*LargeBufferSize)...)
	pool.Put(buf)

	if got := pool.Stats().Dropped; got != 1 {
		t.Errorf("Dropped = %d, want 1", got)
	}
}

func BenchmarkBytePool(b *testing.B) {
	pool := NewBytePool()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		buf := pool.Get(4096)
		pool.Put(buf)
	}
}
