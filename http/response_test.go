package http

import (
	"strings"
	"testing"

	"github.com/loomhttp/loom/http/status"
	"github.com/stretchr/testify/require"
)

func TestResponseHeadDefaultStatus(t *testing.T) {
	r := newResponse()
	head := string(r.head("HTTP/1.1"))

	require.True(t, strings.HasPrefix(head, "HTTP/1.1 200 OK\r\n"))
	require.True(t, strings.HasSuffix(head, "\r\n\r\n"))
}

func TestResponseHeadCustomCodeAndHeaders(t *testing.T) {
	r := newResponse().Code(status.NotFound).Header("X-Trace", "abc")
	head := string(r.head("HTTP/1.1"))

	require.True(t, strings.HasPrefix(head, "HTTP/1.1 404 Not Found\r\n"))
	require.Contains(t, head, "X-Trace: abc\r\n")
}

func TestResponseContentTypeOverwrites(t *testing.T) {
	r := newResponse().Header("Content-Type", "text/plain").ContentType("application/json")
	head := string(r.head("HTTP/1.1"))

	require.Contains(t, head, "Content-Type: application/json\r\n")
	require.NotContains(t, head, "text/plain")
}

func TestResponseClearResetsState(t *testing.T) {
	r := newResponse().Code(status.InternalServerError).Header("X", "1")
	r.Clear()

	require.Equal(t, status.OK, r.code)
	require.False(t, r.headers.Has("X"))
}
