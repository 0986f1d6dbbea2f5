// Package storage provides the local key-value engine used by the DogPay
// client to keep its session record across restarts.
//
// The KVEngine interface is backed by Badger v3. On disk the engine lives
// under the configured session directory; tests open it in memory.
package storage
