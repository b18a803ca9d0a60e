// Package headparser implements the pure, allocation-light parse of a complete HTTP/1.x
// request head (request line plus header block). It never touches a socket: callers hand it
// the bytes a Stream already read up to the terminating "\r\n\r\n".
package headparser

import (
	"bytes"

	"github.com/loomhttp/loom/errors"
	"github.com/loomhttp/loom/http/headers"
	"github.com/loomhttp/loom/http/method"
	"github.com/loomhttp/loom/http/proto"
)

// Limits bounds how many headers, and how long each header's key/value, the parser accepts
// before giving up — the same hash-flood guard the argument maps apply.
type Limits struct {
	MaxHeaderCount      int
	MaxHeaderKeyLength   int
	MaxHeaderValueLength int
}

// Head is the structured result of parsing a request line and header block.
type Head struct {
	Method   string
	Path     string
	RawQuery []byte
	Proto    proto.Proto
	Headers  *headers.Set
}

// Parse decodes raw, which must end with "\r\n\r\n", into a Head. The request line must be
// well-formed; header lines that don't match "token: value" are skipped permissively rather
// than failing the whole request.
func Parse(raw []byte, limits Limits) (Head, error) {
	line, rest, ok := cutLine(raw)
	if !ok {
		return Head{}, errors.ErrMalformedHead
	}

	head, err := parseRequestLine(line)
	if err != nil {
		return Head{}, err
	}

	head.Headers = headers.New()

	for len(rest) > 0 {
		line, rest, ok = cutLine(rest)
		if !ok {
			return Head{}, errors.ErrMalformedHead
		}

		if len(line) == 0 {
			return head, nil
		}

		if head.Headers.Len() >= limits.MaxHeaderCount {
			continue
		}

		key, value, ok := splitHeaderLine(line)
		if !ok {
			// permissive: lines that don't parse as "key: value" are skipped
			continue
		}

		if len(key) > limits.MaxHeaderKeyLength || len(value) > limits.MaxHeaderValueLength {
			return Head{}, errors.ErrBufferOverflow
		}

		head.Headers.Add(string(key), string(value))
	}

	return Head{}, errors.ErrMalformedHead
}

// cutLine splits off the first "\r\n" or "\n"-terminated line from data.
func cutLine(data []byte) (line, rest []byte, ok bool) {
	newline := bytes.IndexByte(data, '\n')
	if newline == -1 {
		return nil, nil, false
	}

	line = data[:newline]
	rest = data[newline+1:]

	if len(line) > 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}

	return line, rest, true
}

func parseRequestLine(line []byte) (Head, error) {
	methodEnd := bytes.IndexByte(line, ' ')
	if methodEnd <= 0 {
		return Head{}, errors.ErrMalformedHead
	}

	methodToken := string(line[:methodEnd])
	if !method.Valid(methodToken) {
		return Head{}, errors.ErrInvalidMethod
	}

	rest := line[methodEnd+1:]
	uriEnd := bytes.IndexByte(rest, ' ')
	if uriEnd <= 0 {
		return Head{}, errors.ErrMalformedHead
	}

	uri := rest[:uriEnd]
	versionToken := rest[uriEnd+1:]

	p := proto.Parse(versionToken)
	if p == proto.Unknown {
		return Head{}, errors.ErrInvalidVersion
	}

	path, query := splitURI(uri)

	return Head{
		Method:   methodToken,
		Path:     string(path),
		RawQuery: query,
		Proto:    p,
	}, nil
}

func splitURI(uri []byte) (path, query []byte) {
	if q := bytes.IndexByte(uri, '?'); q != -1 {
		return uri[:q], uri[q+1:]
	}

	return uri, nil
}

func splitHeaderLine(line []byte) (key, value []byte, ok bool) {
	colon := bytes.IndexByte(line, ':')
	if colon <= 0 {
		return nil, nil, false
	}

	key = line[:colon]
	value = line[colon+1:]

	if len(value) > 0 && value[0] == ' ' {
		value = value[1:]
	}

	return key, value, true
}
