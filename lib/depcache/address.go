// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package depcache

import (
	"encoding/hex"
	"io"

	"github.com/zeebo/blake3"
)

// Domain keys for BLAKE3 keyed hashing: ASCII names zero-padded to 32
// bytes. Changing either invalidates every existing entry.
var (
	addressDomainKey = [32]byte{
		'b', 'u', 'r', 'e', 'a', 'u', '.', 'r', 'e', 'l', 'e', 'a', 's', 'e', '.',
		'c', 'a', 'c', 'h', 'e', '.', 'k', 'e', 'y', 0, 0, 0, 0, 0, 0, 0, 0,
	}
	payloadDomainKey = [32]byte{
		'b', 'u', 'r', 'e', 'a', 'u', '.', 'r', 'e', 'l', 'e', 'a', 's', 'e', '.',
		'c', 'a', 'c', 'h', 'e', '.', 'p', 'a', 'y', 'l', 'o', 'a', 'd', 0, 0, 0, 0,
	}
)

// address returns the file name stem for a key string.
func address(key string) string {
	hasher, err := blake3.NewKeyed(addressDomainKey[:])
	if err != nil {
		// Only fails for keys that are not 32 bytes.
		panic("depcache: " + err.Error())
	}
	hasher.Write([]byte(key))
	return hex.EncodeToString(hasher.Sum(nil))
}

// payloadHasher returns a hasher for payload digests.
func payloadHasher() *blake3.Hasher {
	hasher, err := blake3.NewKeyed(payloadDomainKey[:])
	if err != nil {
		panic("depcache: " + err.Error())
	}
	return hasher
}

// hashPayload digests everything reader yields.
func hashPayload(reader io.Reader) ([]byte, error) {
	hasher := payloadHasher()
	if _, err := io.Copy(hasher, reader); err != nil {
		return nil, err
	}
	return hasher.Sum(nil), nil
}
