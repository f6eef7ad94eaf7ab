package vm

import (
	"encoding/binary"
	"math"
)

// CacheKey is the hashable encoding of an argument vector.
type CacheKey string

// Key tags
const (
	keyNull byte = iota
	keyNumber
	keyBool
	keyString
)

// NewCacheKey encodes args as a cache key. It fails when any argument is not
// hashable or is a NaN, which can never equal a previous argument.
func NewCacheKey(args []Value) (CacheKey, bool) {
	buf := make([]byte, 0, 1+len(args)*9)
	for _, a := range args {
		switch a.kind {
		case KindNull:
			buf = append(buf, keyNull)
		case KindNumber:
			n := a.num
			if math.IsNaN(n) {
				return "", false
			}
			if n == 0 {
				n = 0 // fold -0 into +0
			}
			buf = append(buf, keyNumber)
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(n))
		case KindBool:
			buf = append(buf, keyBool)
			if a.Bool() {
				buf = append(buf, 1)
			} else {
				buf = append(buf, 0)
			}
		case KindString:
			buf = append(buf, keyString)
			buf = binary.AppendUvarint(buf, uint64(len(a.str)))
			buf = append(buf, a.str...)
		default:
			return "", false
		}
	}
	return CacheKey(buf), true
}

// FnCache memoizes the results of one cacheable function.
type FnCache struct {
	entries map[CacheKey]Value
	hits    int
	misses  int
}

// NewFnCache creates an empty cache.
func NewFnCache() *FnCache {
	return &FnCache{entries: make(map[CacheKey]Value)}
}

// Lookup returns the cached result for key.
func (c *FnCache) Lookup(key CacheKey) (Value, bool) {
	v, ok := c.entries[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return v, ok
}

// Store records the result for key.
func (c *FnCache) Store(key CacheKey, v Value) {
	c.entries[key] = v
}

// Len returns the number of cached results.
func (c *FnCache) Len() int { return len(c.entries) }

// Stats returns the hit and miss counts.
func (c *FnCache) Stats() (hits, misses int) {
	return c.hits, c.misses
}
