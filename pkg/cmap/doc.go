// Package cmap provides a concurrent map for DogPay client state.
//
// The map is split into shards, each guarded by its own RWMutex, so
// readers of unrelated keys do not contend. Keys are routed to shards by
// a murmur3 hash of their string form.
//
// Usage:
//
//	m := cmap.NewWithShards[string, entry](4)
//	m.Set("balance", e)
//	val, ok := m.Get("balance")
//
// Thread Safety:
//
// All operations are thread-safe. Read operations (Get, Range, Values) use
// RLock, write operations (Set, Delete, Pop, DeleteFunc) use Lock.
package cmap
