package cmap

import (
	"fmt"
	"sync"
	"testing"
)

func TestNewWithShards(t *testing.T) {
	tests := []struct {
		input    int
		expected int
	}{
		{0, DefaultShardCount},  // invalid → default
		{-1, DefaultShardCount}, // invalid → default
		{3, DefaultShardCount},  // not power of 2 → default
		{1, 1},
		{8, 8},
		{32, 32},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("shards=%d", tt.input), func(t *testing.T) {
			m := NewWithShards[string, int](tt.input)
			if m.shardCount() != tt.expected {
				t.Errorf("NewWithShards(%d) shard count = %d, want %d",
					tt.input, m.shardCount(), tt.expected)
			}
		})
	}
}

func TestSetGetDelete(t *testing.T) {
	m := New[string, int]()

	m.Set("balance", 100)
	m.Set("history", 200)

	if val, ok := m.Get("balance"); !ok || val != 100 {
		t.Errorf("Get(balance) = (%d, %v), want (100, true)", val, ok)
	}
	if _, ok := m.Get("nonexistent"); ok {
		t.Error("Get(nonexistent) should miss")
	}

	m.Delete("balance")
	if _, ok := m.Get("balance"); ok {
		t.Error("balance should not exist after deletion")
	}
	m.Delete("nonexistent")

	if m.Count() != 1 {
		t.Errorf("Count() = %d, want 1", m.Count())
	}
}

func TestPop(t *testing.T) {
	m := New[string, int]()
	m.Set("tx", 7)

	if v, ok := m.Pop("tx"); !ok || v != 7 {
		t.Errorf("Pop(tx) = (%d, %v), want (7, true)", v, ok)
	}
	if _, ok := m.Pop("tx"); ok {
		t.Error("second Pop should miss")
	}
}

func TestClear(t *testing.T) {
	m := New[string, int]()
	for i := 0; i < 50; i++ {
		m.Set(fmt.Sprintf("k%d", i), i)
	}
	m.Clear()
	if m.Count() != 0 {
		t.Errorf("Count() after Clear = %d, want 0", m.Count())
	}
}

func TestIntKeyDistribution(t *testing.T) {
	m := NewWithShards[int, int](4)
	for i := 0; i < 1000; i++ {
		m.Set(i, i)
	}
	for i, s := range m.shards {
		if len(s.items) == 0 {
			t.Errorf("shard %d is empty after 1000 inserts", i)
		}
	}
	if m.Count() != 1000 {
		t.Errorf("Count() = %d, want 1000", m.Count())
	}
}

func TestConcurrentAccess(t *testing.T) {
	m := New[string, int]()
	var wg sync.WaitGroup

	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("g%d-%d", g, i)
				m.Set(key, i)
				m.Get(key)
				if i%2 == 0 {
					m.Delete(key)
				}
			}
		}(g)
	}
	wg.Wait()

	if m.Count() != 8*100 {
		t.Errorf("Count() = %d, want %d", m.Count(), 8*100)
	}
}
