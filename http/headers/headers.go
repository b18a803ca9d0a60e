// Package headers implements a case-insensitive header set: a mapping from header name to the
// last value seen, with repeated fields on the wire joined by ", " as RFC 7230 §3.2.2
// prescribes.
package headers

import (
	"iter"
	"strings"

	"github.com/loomhttp/loom/kv"
)

// Set is a case-insensitive multi-map of header name to value(s).
type Set struct {
	storage *kv.Storage
}

// New returns an empty Set.
func New() *Set {
	return &Set{storage: kv.New()}
}

// Add records one occurrence of a header line. A second occurrence of the same key (folded)
// is joined onto the first with ", ", matching how a compliant client-facing view of repeated
// headers is expected to look.
func (s *Set) Add(key, value string) {
	if existing, found := s.storage.Get(key); found {
		s.storage.Set(key, existing+", "+value)
		return
	}

	s.storage.Add(key, value)
}

// Replace unconditionally sets key to value, discarding any prior occurrence — unlike Add,
// which joins onto an existing value. Used by response builders for headers that are
// inherently single-valued, such as Content-Type.
func (s *Set) Replace(key, value string) {
	s.storage.Set(key, value)
}

// Value returns the (possibly joined) value stored under key, or "" if absent.
func (s *Set) Value(key string) string {
	return s.storage.Value(key)
}

// Get returns the value stored under key and whether it was present.
func (s *Set) Get(key string) (string, bool) {
	return s.storage.Get(key)
}

// Has reports whether key is present, case-insensitively.
func (s *Set) Has(key string) bool {
	return s.storage.Has(key)
}

// HasToken reports whether key's value, treated as a comma-separated list, contains token
// case-insensitively. Used for Connection: close / Connection: keep-alive checks.
func (s *Set) HasToken(key, token string) bool {
	value, found := s.storage.Get(key)
	if !found {
		return false
	}

	for _, part := range strings.Split(value, ",") {
		if strings.EqualFold(strings.TrimSpace(part), token) {
			return true
		}
	}

	return false
}

// Len returns the number of distinct header keys recorded.
func (s *Set) Len() int {
	return s.storage.Len()
}

// Iter returns an iterator over (key, value) pairs in first-seen order.
func (s *Set) Iter() iter.Seq2[string, string] {
	return s.storage.Iter()
}

// Clear empties the Set for reuse across requests on a kept-alive connection.
func (s *Set) Clear() {
	s.storage.Clear()
}
