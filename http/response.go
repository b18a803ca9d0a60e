package http

import (
	"strconv"

	"github.com/loomhttp/loom/http/headers"
	"github.com/loomhttp/loom/http/status"
)

// Response is the builder the application mutates before or while writing a reply. It is the
// authoritative description of what gets serialized onto the wire: the engine never
// synthesizes a status line on the application's behalf, the lone exception being the
// 100-continue line a Connection may emit on its own. It carries no body buffer of its own —
// Request.Write streams chunks straight to the connection once the head has gone out.
type Response struct {
	code    status.Code
	status  string
	headers *headers.Set
}

func newResponse() *Response {
	return &Response{
		code:    status.OK,
		headers: headers.New(),
	}
}

// Code sets the status code to reply with.
func (r *Response) Code(code status.Code) *Response {
	r.code = code
	return r
}

// Status overrides the status text that otherwise defaults to the table in http/status.
func (r *Response) Status(text string) *Response {
	r.status = text
	return r
}

// Header records a response header. A second call with the same key (case-insensitively)
// joins onto the first, as headers.Set does for parsed request headers.
func (r *Response) Header(key, value string) *Response {
	r.headers.Add(key, value)
	return r
}

// ContentType sets the Content-Type header, overwriting any value already set.
func (r *Response) ContentType(value string) *Response {
	r.headers.Replace("Content-Type", value)
	return r
}

// Clear resets the builder to its zero response (200 OK, no headers), for reuse across
// requests on a kept-alive connection.
func (r *Response) Clear() *Response {
	r.code = status.OK
	r.status = ""
	r.headers.Clear()
	return r
}

// head renders the status line followed by every recorded header and the terminating blank
// line. proto is the wire token ("HTTP/1.1" or "HTTP/1.0") the request arrived with.
func (r *Response) head(proto string) []byte {
	out := r.statusLine(proto)

	for key, value := range r.headers.Iter() {
		out = append(out, key...)
		out = append(out, ':', ' ')
		out = append(out, value...)
		out = append(out, '\r', '\n')
	}

	out = append(out, '\r', '\n')
	return out
}

func (r *Response) statusLine(proto string) []byte {
	text := r.status
	if len(text) == 0 {
		text = status.Text(r.code)
	}

	line := make([]byte, 0, len(proto)+len(text)+16)
	line = append(line, proto...)
	line = append(line, ' ')
	line = strconv.AppendInt(line, int64(r.code), 10)
	line = append(line, ' ')
	line = append(line, text...)
	line = append(line, '\r', '\n')

	return line
}
