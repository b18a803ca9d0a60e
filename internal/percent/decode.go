// Package percent implements percent-decoding for query strings and form bodies: %HH decodes
// to a byte, invalid hex digits are a hard error.
package percent

import (
	"bytes"

	"github.com/loomhttp/loom/errors"
)

var halfbyte = [256]int8{}

func init() {
	for i := range halfbyte {
		halfbyte[i] = -1
	}
	for c := '0'; c <= '9'; c++ {
		halfbyte[c] = int8(c - '0')
	}
	for c := 'a'; c <= 'f'; c++ {
		halfbyte[c] = int8(c-'a') + 10
	}
	for c := 'A'; c <= 'F'; c++ {
		halfbyte[c] = int8(c-'A') + 10
	}
}

// Decode percent-decodes src into dst (which may alias src[:0]) and returns the result.
// It does not treat '+' specially; use DecodeForm for application/x-www-form-urlencoded data.
func Decode(src, dst []byte) ([]byte, error) {
	return decode(src, dst, false)
}

// DecodeForm percent-decodes src into dst, additionally translating '+' into a space, as
// application/x-www-form-urlencoded and query strings require.
func DecodeForm(src, dst []byte) ([]byte, error) {
	return decode(src, dst, true)
}

func decode(src, dst []byte, plusAsSpace bool) ([]byte, error) {
	start := len(dst)

	for {
		next := bytes.IndexAny(src, escapeChars(plusAsSpace))
		if next == -1 {
			dst = append(dst, src...)
			return dst[start:], nil
		}

		dst = append(dst, src[:next]...)

		if plusAsSpace && src[next] == '+' {
			dst = append(dst, ' ')
			src = src[next+1:]
			continue
		}

		if next+2 >= len(src) {
			return nil, errors.ErrMalformedEncoding
		}

		hi, lo := halfbyte[src[next+1]], halfbyte[src[next+2]]
		if hi < 0 || lo < 0 {
			return nil, errors.ErrMalformedEncoding
		}

		dst = append(dst, byte(hi)<<4|byte(lo))
		src = src[next+3:]
	}
}

func escapeChars(plusAsSpace bool) string {
	if plusAsSpace {
		return "%+"
	}

	return "%"
}
