// Package kv provides a small associative structure for (string, string) pairs, used
// throughout the engine for headers and decoded argument maps. It favours linear search
// over a map because these collections are small (a few dozen pairs at most) and are
// rebuilt once per request.
package kv

import (
	"iter"

	"github.com/indigo-web/utils/strcomp"
)

type Pair struct {
	Key, Value string
}

// Storage is an ordered, case-insensitive-by-key collection of pairs.
type Storage struct {
	pairs      []Pair
	uniqueBuff []string
	valuesBuff []string
	max        int
}

// New returns an empty, uncapped Storage.
func New() *Storage {
	return new(Storage)
}

// NewPrealloc returns an instance of Storage with pre-allocated underlying storage.
func NewPrealloc(n int) *Storage {
	return &Storage{pairs: make([]Pair, 0, n)}
}

// NewCapped returns a Storage that rejects entries past max via TryAdd. Used for the
// query-string and form-body argument maps, which are capped to guard against hash-flooding.
func NewCapped(max int) *Storage {
	return &Storage{max: max}
}

// Add appends a new pair unconditionally.
func (s *Storage) Add(key, value string) *Storage {
	s.pairs = append(s.pairs, Pair{Key: key, Value: value})
	return s
}

// TryAdd appends a new pair unless the Storage is capped and already full.
func (s *Storage) TryAdd(key, value string) bool {
	if s.max > 0 && len(s.pairs) >= s.max {
		return false
	}

	s.pairs = append(s.pairs, Pair{Key: key, Value: value})
	return true
}

// Set replaces every existing value under key with a single (key, value) pair, case-insensitively.
// If the key isn't present yet, it behaves like Add.
func (s *Storage) Set(key, value string) *Storage {
	for i := range s.pairs {
		if strcomp.EqualFold(s.pairs[i].Key, key) {
			s.pairs[i].Value = value
			return s.deleteRest(i, key)
		}
	}

	return s.Add(key, value)
}

func (s *Storage) deleteRest(from int, key string) *Storage {
	kept := s.pairs[:from+1]
	for _, pair := range s.pairs[from+1:] {
		if !strcomp.EqualFold(pair.Key, key) {
			kept = append(kept, pair)
		}
	}

	s.pairs = kept
	return s
}

// Value returns the first value corresponding to the key, or "" if absent.
func (s *Storage) Value(key string) string {
	return s.ValueOr(key, "")
}

// ValueOr returns either the first value corresponding to the key or the fallback.
func (s *Storage) ValueOr(key, or string) string {
	value, found := s.Get(key)
	if !found {
		return or
	}

	return value
}

// Get returns a value and whether it was found.
func (s *Storage) Get(key string) (value string, found bool) {
	for _, pair := range s.pairs {
		if strcomp.EqualFold(key, pair.Key) {
			return pair.Value, true
		}
	}

	return "", false
}

// Values returns all values stored under key. The returned slice is reused across calls.
func (s *Storage) Values(key string) (values []string) {
	s.valuesBuff = s.valuesBuff[:0]

	for _, pair := range s.pairs {
		if strcomp.EqualFold(pair.Key, key) {
			s.valuesBuff = append(s.valuesBuff, pair.Value)
		}
	}

	if len(s.valuesBuff) == 0 {
		return nil
	}

	return s.valuesBuff
}

// Keys returns all unique keys, preserving first-seen order. The returned slice is reused
// across calls.
func (s *Storage) Keys() []string {
	s.uniqueBuff = s.uniqueBuff[:0]

	for _, pair := range s.pairs {
		if !contains(s.uniqueBuff, pair.Key) {
			s.uniqueBuff = append(s.uniqueBuff, pair.Key)
		}
	}

	return s.uniqueBuff
}

// Iter returns an iterator over the pairs in insertion order.
func (s *Storage) Iter() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, pair := range s.pairs {
			if !yield(pair.Key, pair.Value) {
				return
			}
		}
	}
}

// Has reports whether an entry by key exists.
func (s *Storage) Has(key string) bool {
	_, found := s.Get(key)
	return found
}

// Len returns the number of stored pairs.
func (s *Storage) Len() int {
	return len(s.pairs)
}

func (s *Storage) Empty() bool {
	return s.Len() == 0
}

// Expose exposes the underlying pairs slice directly.
func (s *Storage) Expose() []Pair {
	return s.pairs
}

// Clear empties the Storage without releasing the backing array.
func (s *Storage) Clear() *Storage {
	s.pairs = s.pairs[:0]
	return s
}

func contains(collection []string, key string) bool {
	for _, element := range collection {
		if strcomp.EqualFold(element, key) {
			return true
		}
	}

	return false
}
