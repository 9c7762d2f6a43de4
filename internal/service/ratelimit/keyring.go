package ratelimit

import (
	"errors"
	"sync/atomic"
)

// ErrNoKeys is returned when a KeyRing has no credentials.
var ErrNoKeys = errors.New("ratelimit: no credentials configured")

// KeyRing hands out credentials round-robin to spread load across buckets.
type KeyRing struct {
	keys []string
	idx  atomic.Uint64
}

// NewKeyRing copies keys, dropping empty entries.
func NewKeyRing(keys []string) *KeyRing {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k != "" {
			out = append(out, k)
		}
	}
	return &KeyRing{keys: out}
}

// Next returns the next credential in rotation.
func (r *KeyRing) Next() (string, error) {
	if len(r.keys) == 0 {
		return "", ErrNoKeys
	}
	i := r.idx.Add(1) - 1
	return r.keys[i%uint64(len(r.keys))], nil
}

// Len returns the pool size.
func (r *KeyRing) Len() int { return len(r.keys) }
