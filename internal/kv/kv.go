// Package kv defines the device-local key/value store used as the durable
// offline mirror.
package kv

// Store is a flat string key/value store scoped to the local device.
type Store interface {
	// Get returns the value and whether the key exists.
	Get(key string) (string, bool, error)
	Set(key, value string) error
	// Remove deletes key; removing a missing key is not an error.
	Remove(key string) error
	ListKeys() ([]string, error)
}
