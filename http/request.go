// Package http holds the passive value types exchanged between the application callback and
// the connection engine: Request, the immutable-after-construction container for one decoded
// request, and Response, the builder the application fills in before the reply is written.
package http

import (
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/loomhttp/loom/http/form"
	"github.com/loomhttp/loom/http/headers"
	"github.com/loomhttp/loom/http/proto"
	"github.com/loomhttp/loom/http/query"
)

// Writer is the handle a Request uses to push bytes back to its owning Connection, without
// the http package needing to import the connection package (which would create a cycle).
// Connection implements it.
type Writer interface {
	WriteChunk(chunk []byte, cb func(error))
	FinishResponse()
}

// Request is a passive container for one fully-parsed HTTP request plus a handle to write the
// response. It is immutable after construction except for Body, Arguments, Files and
// FinishTime.
type Request struct {
	Method   string
	Path     string
	Version  proto.Proto
	Headers  *headers.Set
	Body     []byte
	RemoteIP string
	Protocol string // "http" or "https"
	Host     string

	Arguments *query.Args
	Files     form.Form

	StartTime  time.Time
	FinishTime time.Time

	// Response is the builder the application mutates ahead of Write / WriteJSON / Finish.
	Response *Response

	conn       Writer
	serialized bool
}

// New constructs a Request bound to conn, the Connection that will eventually carry its
// response onto the wire. The Connection is responsible for populating the remaining fields
// once the request head (and, if present, body) have been parsed.
func New(conn Writer) *Request {
	return &Request{
		Response:  newResponse(),
		Arguments: query.New(nil, 0),
		conn:      conn,
	}
}

// Write appends a raw chunk to the pending response. The status line and headers are
// serialized lazily, on the first call to Write or Finish, and enqueued ahead of the chunk.
func (r *Request) Write(body []byte) {
	r.flushHead()

	if len(body) > 0 {
		r.conn.WriteChunk(body, nil)
	}
}

// WriteJSON encodes v with json-iterator, sets Content-Type to application/json unless the
// application already set one, and forwards the encoded bytes to Write.
func (r *Request) WriteJSON(v any) error {
	encoded, err := jsoniter.Marshal(v)
	if err != nil {
		return err
	}

	if !r.Response.headers.Has("Content-Type") {
		r.Response.ContentType("application/json")
	}

	r.Write(encoded)
	return nil
}

// Finish serializes the status line and headers (if Write hasn't already) and signals the
// Connection that the response is complete, so it can run the keep-alive decision once the
// write queue drains.
func (r *Request) Finish() {
	r.flushHead()
	r.FinishTime = time.Now()
	r.conn.FinishResponse()
}

// flushHead serializes the status line and headers exactly once per request, on the first
// call to Write or Finish.
func (r *Request) flushHead() {
	if r.serialized {
		return
	}

	r.serialized = true
	r.conn.WriteChunk(r.Response.head(r.Version.String()), nil)
}

// Reset clears the request for reuse on a kept-alive connection.
func (r *Request) Reset() {
	r.Method = ""
	r.Path = ""
	r.Body = nil
	r.Host = ""
	r.Files = nil
	r.Headers = nil
	r.Arguments = query.New(nil, 0)
	r.StartTime = time.Time{}
	r.FinishTime = time.Time{}
	r.serialized = false
	r.Response.Clear()
}
