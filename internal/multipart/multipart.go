// Package multipart implements a minimal multipart/form-data body decoder: enough to recover
// each part's name, filename, content type, charset and value, honoring the "_charset_" field
// convention.
package multipart

import (
	"strings"

	"github.com/loomhttp/loom/errors"
	"github.com/loomhttp/loom/internal/percent"
	"github.com/loomhttp/loom/internal/scanner"
)

// Part is a single decoded multipart/form-data entry.
type Part struct {
	Name, Filename, ContentType, Charset, Value string
}

// Parse decodes a multipart/form-data body delimited by boundary (the raw boundary value taken
// from the Content-Type parameter, without the leading "--"). defaultCharset and
// defaultContentType are applied to parts that don't specify their own.
func Parse(body []byte, boundary, defaultCharset, defaultContentType string) ([]Part, error) {
	if len(boundary) == 0 {
		return nil, errors.ErrNoBoundary
	}

	delim := "--" + boundary
	charset := defaultCharset

	c := scanner.New(string(body))
	if !skipToBoundary(&c, delim) {
		return nil, errors.ErrMalformedBody
	}

	if !c.Consume("\r\n") {
		return nil, errors.ErrMalformedBody
	}

	var parts []Part

	for {
		hdr, ok := parseHeaders(&c)
		if !ok {
			return nil, errors.ErrMalformedBody
		}

		next := c.Find(delim)
		if next == -1 {
			return nil, errors.ErrMalformedBody
		}

		value := stripTrailingCRLF(c.Advance(next))
		c.Advance(len(delim))

		if c.Consume("--\r\n") || (c.Empty()) {
			finalizePart(&parts, hdr, value, &charset, defaultContentType)
			break
		}

		if !c.Consume("\r\n") {
			return nil, errors.ErrMalformedBody
		}

		finalizePart(&parts, hdr, value, &charset, defaultContentType)
	}

	return parts, nil
}

func finalizePart(parts *[]Part, hdr partHeader, value string, charset *string, defaultContentType string) {
	if hdr.name == "_charset_" {
		if len(value) > 0 {
			*charset = value
		}
		return
	}

	if len(hdr.name) == 0 {
		return
	}

	partCharset := hdr.charset
	if len(partCharset) == 0 {
		partCharset = *charset
	}

	contentType := hdr.contentType
	if len(contentType) == 0 {
		contentType = defaultContentType
	}

	*parts = append(*parts, Part{
		Name:        hdr.name,
		Filename:    hdr.filename,
		ContentType: contentType,
		Charset:     partCharset,
		Value:       value,
	})
}

func skipToBoundary(c *scanner.Cursor, delim string) bool {
	offset := c.Find(delim)
	if offset == -1 {
		return false
	}

	c.Advance(offset + len(delim))
	return true
}

type partHeader struct {
	name, filename, contentType, charset string
}

func parseHeaders(c *scanner.Cursor) (hdr partHeader, ok bool) {
	for {
		line, lineOK := c.Line()
		if !lineOK {
			return partHeader{}, false
		}

		if len(line) == 0 {
			return hdr, true
		}

		if err := parseHeaderLine(line, &hdr); err != nil {
			return partHeader{}, false
		}
	}
}

func parseHeaderLine(line string, hdr *partHeader) error {
	switch {
	case hasFoldPrefix(line, "Content-Disposition:"):
		params := strings.TrimSpace(line[len("Content-Disposition:"):])
		params = strings.TrimPrefix(params, "form-data;")
		return parseDispositionParams(strings.TrimSpace(params), hdr)
	case hasFoldPrefix(line, "Content-Type:"):
		value := strings.TrimSpace(line[len("Content-Type:"):])
		mediaType, params := cutParams(value)
		hdr.contentType = mediaType
		return parseContentTypeParams(params, hdr)
	default:
		return nil
	}
}

func hasFoldPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

func cutParams(header string) (value, params string) {
	sep := strings.IndexByte(header, ';')
	if sep == -1 {
		return header, ""
	}

	return header[:sep], strings.TrimSpace(header[sep+1:])
}

func parseDispositionParams(params string, hdr *partHeader) error {
	for key, value := range walkParams(params) {
		switch key {
		case "name":
			decoded, err := percent.Decode([]byte(value), nil)
			if err != nil {
				return err
			}
			hdr.name = string(decoded)
		case "filename":
			decoded, err := percent.Decode([]byte(value), nil)
			if err != nil {
				return err
			}
			hdr.filename = string(decoded)
		}
	}

	return nil
}

func parseContentTypeParams(params string, hdr *partHeader) error {
	for key, value := range walkParams(params) {
		if key == "charset" {
			hdr.charset = value
		}
	}

	return nil
}

// walkParams iterates over `key=value; key2="value2"` style parameter lists.
func walkParams(data string) func(func(string, string) bool) {
	return func(yield func(string, string) bool) {
		for len(data) > 0 {
			eq := strings.IndexByte(data, '=')
			if eq == -1 {
				return
			}

			key := strings.TrimSpace(data[:eq])
			data = data[eq+1:]

			var value string
			if len(data) > 0 && data[0] == '"' {
				end := strings.IndexByte(data[1:], '"')
				if end == -1 {
					return
				}

				value = data[1 : 1+end]
				data = data[1+end+1:]
				if semi := strings.IndexByte(data, ';'); semi != -1 {
					data = data[semi+1:]
				} else {
					data = ""
				}
			} else {
				semi := strings.IndexByte(data, ';')
				if semi == -1 {
					value, data = data, ""
				} else {
					value, data = data[:semi], data[semi+1:]
				}
			}

			if !yield(key, strings.TrimSpace(value)) {
				return
			}

			data = strings.TrimSpace(data)
		}
	}
}

func stripTrailingCRLF(s string) string {
	s = strings.TrimSuffix(s, "\n")
	s = strings.TrimSuffix(s, "\r")
	return s
}
