// Package storage - Serialization helpers for BadgerDB.
package storage

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// encodeItem converts an item to gob bytes for BadgerDB storage.
// gob preserves Go types (int64 vs float64) unlike JSON.
func encodeItem[T any](item T) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&item); err != nil {
		return nil, fmt.Errorf("encoding item: %w", err)
	}
	return buf.Bytes(), nil
}

// decodeItem converts gob bytes back to an item.
func decodeItem[T any](data []byte) (T, error) {
	var item T
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&item); err != nil {
		return item, fmt.Errorf("decoding item: %w", err)
	}
	return item, nil
}

// itemKey derives the storage key from the encoded item: a blake2b-256
// digest of the gob bytes. Content addressing makes storing the same item
// twice idempotent, the persistent analogue of the engine's dedup policy.
func itemKey(encoded []byte) []byte {
	sum := blake2b.Sum256(encoded)
	return sum[:]
}
