package conn

import (
	"github.com/loomhttp/loom/http/headers"
	"github.com/loomhttp/loom/http/method"
	"github.com/loomhttp/loom/http/proto"
)

// DecideKeepAlive implements the keep-alive truth table: no_keep_alive wins outright; HTTP/1.1
// stays open unless Connection: close was present; HTTP/1.0 stays open only when it looks like
// the peer can tell where the body ends (Content-Length, or a body-less method) and it asked
// for keep-alive explicitly.
func DecideKeepAlive(noKeepAlive bool, version proto.Proto, h *headers.Set, requestMethod string, hasContentLength bool) bool {
	if noKeepAlive {
		return false
	}

	if version == proto.HTTP11 {
		return !h.HasToken("Connection", "close")
	}

	if hasContentLength || requestMethod == method.HEAD || requestMethod == method.GET {
		return h.HasToken("Connection", "keep-alive")
	}

	return false
}
