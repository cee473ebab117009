// Package devicestore defines the durable keyed storage the sync client
// keeps consent records in. The contract assumes the backing store is
// durable and tamper-resistant; how a platform achieves that (encrypted
// preferences, keychain) is up to the implementation. All operations are
// synchronous and atomic: after Put(k, v) returns, Get(k) returns v even
// across a process restart.
package devicestore

import "errors"

var ErrKeyNotFound = errors.New("devicestore: key not found")

type Store interface {
	// Get returns the value for key, or ErrKeyNotFound.
	Get(key []byte) ([]byte, error)
	// Put stores value under key, overwriting any previous value.
	Put(key, value []byte) error
	Close() error
}
