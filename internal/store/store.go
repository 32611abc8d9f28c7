// Package store caches parsed forests keyed by a digest of their input.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"

	"github.com/dgallion1/syntaxd/internal/forest"
)

// ForestCache stores forests by key. Get reports ok=false on a miss.
type ForestCache interface {
	Get(ctx context.Context, key string) (*forest.Forest, bool, error)
	Put(ctx context.Context, key string, f *forest.Forest) error
}

// Key digests text and the parser settings that shape its forest. Parts are
// length-prefixed so distinct inputs cannot collide by concatenation.
func Key(text string, parts ...string) string {
	h := sha256.New()
	write := func(s string) {
		var n [8]byte
		l := uint64(len(s))
		for i := range n {
			n[i] = byte(l >> (8 * i))
		}
		h.Write(n[:])
		io.WriteString(h, s)
	}
	write(text)
	for _, p := range parts {
		write(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Nop never hits and discards writes.
type Nop struct{}

func (Nop) Get(context.Context, string) (*forest.Forest, bool, error) {
	return nil, false, nil
}

func (Nop) Put(context.Context, string, *forest.Forest) error {
	return nil
}
