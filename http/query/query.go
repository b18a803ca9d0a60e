// Package query implements the Arguments map: a mapping from string key to either a single
// string or an ordered sequence of strings, capped at a fixed number of entries per source to
// guard against hash-flooding.
package query

import (
	"iter"

	"github.com/loomhttp/loom/internal/percent"
	"github.com/loomhttp/loom/kv"
)

// Args is a lazily-parsed, capped key/value(s) map decoded from a query string or an
// application/x-www-form-urlencoded body.
type Args struct {
	storage *kv.Storage
	raw     []byte
	parsed  bool
	err     error
}

// New returns an Args bound to raw, not yet parsed. maxEntries caps how many pairs will be
// accepted; further pairs are silently dropped as a hash-flood guard.
func New(raw []byte, maxEntries int) *Args {
	return &Args{storage: kv.NewCapped(maxEntries), raw: raw}
}

func (a *Args) ensureParsed() error {
	if a.parsed {
		return a.err
	}

	a.parsed = true
	a.err = parseInto(a.raw, a.storage)
	return a.err
}

// Add records an additional key/value pair under the same entry cap query-string parsing
// honors, joining it onto any prior value(s) for key rather than replacing them. Used to merge
// a decoded application/x-www-form-urlencoded body into the same Arguments map a query string
// populates.
func (a *Args) Add(key, value string) bool {
	if err := a.ensureParsed(); err != nil {
		return false
	}

	return a.storage.TryAdd(key, value)
}

// Get returns the first value for key.
func (a *Args) Get(key string) (string, bool) {
	if err := a.ensureParsed(); err != nil {
		return "", false
	}

	return a.storage.Get(key)
}

// Value returns the first value for key, or "" if absent or on a parse error.
func (a *Args) Value(key string) string {
	v, _ := a.Get(key)
	return v
}

// Values returns every value recorded under key, in submission order.
func (a *Args) Values(key string) []string {
	if err := a.ensureParsed(); err != nil {
		return nil
	}

	return a.storage.Values(key)
}

// Len returns the number of key/value pairs actually stored (never exceeding the configured
// cap), or 0 on a parse error.
func (a *Args) Len() int {
	if err := a.ensureParsed(); err != nil {
		return 0
	}

	return a.storage.Len()
}

// Err returns any error encountered while parsing (lazily triggered by the first accessor
// call).
func (a *Args) Err() error {
	return a.ensureParsed()
}

// Iter returns an iterator over (key, value) pairs in submission order. Iterating before the
// first accessor call triggers parsing; any parse error is silently swallowed here and must
// be observed via Err.
func (a *Args) Iter() iter.Seq2[string, string] {
	_ = a.ensureParsed()
	return a.storage.Iter()
}

// parseInto decodes the `key=value&key2=value2` grammar shared by query strings and
// urlencoded form bodies into storage, honoring storage's entry cap.
func parseInto(data []byte, storage *kv.Storage) error {
	for len(data) > 0 {
		var pair []byte
		if amp := indexByte(data, '&'); amp != -1 {
			pair, data = data[:amp], data[amp+1:]
		} else {
			pair, data = data, nil
		}

		if len(pair) == 0 {
			continue
		}

		key, value := pair, []byte(nil)
		if eq := indexByte(pair, '='); eq != -1 {
			key, value = pair[:eq], pair[eq+1:]
		}

		decodedKey, err := percent.DecodeForm(key, nil)
		if err != nil {
			return err
		}

		decodedValue, err := percent.DecodeForm(value, nil)
		if err != nil {
			return err
		}

		storage.TryAdd(string(decodedKey), string(decodedValue))
	}

	return nil
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}

	return -1
}
