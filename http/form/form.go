// Package form implements decoding of request bodies carrying either
// application/x-www-form-urlencoded or multipart/form-data content.
package form

import (
	"iter"
	"strings"

	"github.com/loomhttp/loom/errors"
	"github.com/loomhttp/loom/http/query"
	"github.com/loomhttp/loom/internal/multipart"
)

// Data is a single decoded form field: either a plain value, or a file upload when Filename
// is non-empty.
type Data struct {
	Name     string
	Filename string
	Type     string
	Charset  string
	Value    string
}

// Form is the ordered collection of fields decoded from a request body.
type Form []Data

// Field returns the first Data matching name.
func (f Form) Field(name string) (Data, bool) {
	for data := range f.Fields(name) {
		return data, true
	}

	return Data{}, false
}

// Fields returns an iterator over every Data matching name.
func (f Form) Fields(name string) iter.Seq[Data] {
	return func(yield func(Data) bool) {
		for _, entry := range f {
			if entry.Name == name {
				if !yield(entry) {
					return
				}
			}
		}
	}
}

// File returns the first Data whose Filename matches name.
func (f Form) File(name string) (Data, bool) {
	for data := range f.Files(name) {
		return data, true
	}

	return Data{}, false
}

// Files returns an iterator over every Data whose Filename matches name.
func (f Form) Files(name string) iter.Seq[Data] {
	return func(yield func(Data) bool) {
		for _, entry := range f {
			if entry.Filename == name {
				if !yield(entry) {
					return
				}
			}
		}
	}
}

const (
	defaultCharset     = "utf-8"
	defaultContentType = "text/plain"

	contentTypeURLEncoded = "application/x-www-form-urlencoded"
	contentTypeMultipart  = "multipart/form-data"
)

// IsURLEncoded reports whether contentType names application/x-www-form-urlencoded, ignoring
// any media-type parameters. Connection uses this to decide whether a decoded body belongs in
// the query-style Arguments map rather than Files.
func IsURLEncoded(contentType string) bool {
	mediaType, _ := splitMediaType(contentType)
	return strings.EqualFold(mediaType, contentTypeURLEncoded)
}

// Parse decodes body according to the media type named by contentType (as found in the
// request's Content-Type header), dispatching to the urlencoded or multipart decoder.
func Parse(contentType string, body []byte, maxEntries int) (Form, error) {
	mediaType, params := splitMediaType(contentType)

	switch {
	case strings.EqualFold(mediaType, contentTypeURLEncoded):
		return parseURLEncoded(body, maxEntries)
	case strings.EqualFold(mediaType, contentTypeMultipart):
		boundary, ok := params["boundary"]
		if !ok {
			return nil, errors.ErrMalformedBody
		}

		return parseMultipart(body, boundary)
	default:
		return Form{}, nil
	}
}

func parseURLEncoded(body []byte, maxEntries int) (Form, error) {
	args := query.New(body, maxEntries)
	if err := args.Err(); err != nil {
		return nil, err
	}

	form := make(Form, 0, args.Len())
	for key, value := range args.Iter() {
		form = append(form, Data{Name: key, Type: contentTypeURLEncoded, Charset: defaultCharset, Value: value})
	}

	return form, nil
}

func parseMultipart(body []byte, boundary string) (Form, error) {
	parts, err := multipart.Parse(body, boundary, defaultCharset, defaultContentType)
	if err != nil {
		return nil, err
	}

	form := make(Form, 0, len(parts))
	for _, p := range parts {
		form = append(form, Data{
			Name:     p.Name,
			Filename: p.Filename,
			Type:     p.ContentType,
			Charset:  p.Charset,
			Value:    p.Value,
		})
	}

	return form, nil
}

// splitMediaType splits a Content-Type header value into its media type and a parameter map,
// e.g. `multipart/form-data; boundary=xyz` -> ("multipart/form-data", {"boundary": "xyz"}).
func splitMediaType(contentType string) (mediaType string, params map[string]string) {
	parts := strings.Split(contentType, ";")
	mediaType = strings.TrimSpace(parts[0])
	params = make(map[string]string, len(parts)-1)

	for _, raw := range parts[1:] {
		raw = strings.TrimSpace(raw)
		eq := strings.IndexByte(raw, '=')
		if eq == -1 {
			continue
		}

		key := strings.ToLower(strings.TrimSpace(raw[:eq]))
		value := strings.Trim(strings.TrimSpace(raw[eq+1:]), `"`)
		params[key] = value
	}

	return mediaType, params
}
