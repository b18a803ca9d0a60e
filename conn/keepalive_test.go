package conn

import (
	"testing"

	"github.com/loomhttp/loom/http/headers"
	"github.com/loomhttp/loom/http/method"
	"github.com/loomhttp/loom/http/proto"
	"github.com/stretchr/testify/require"
)

func TestDecideKeepAliveNoKeepAliveWins(t *testing.T) {
	require.False(t, DecideKeepAlive(true, proto.HTTP11, headers.New(), method.GET, false))
}

func TestDecideKeepAliveHTTP11DefaultsOpen(t *testing.T) {
	require.True(t, DecideKeepAlive(false, proto.HTTP11, headers.New(), method.GET, false))
}

func TestDecideKeepAliveHTTP11ConnectionClose(t *testing.T) {
	h := headers.New()
	h.Add("Connection", "close")

	require.False(t, DecideKeepAlive(false, proto.HTTP11, h, method.GET, false))
}

func TestDecideKeepAliveHTTP10ClosesByDefault(t *testing.T) {
	require.False(t, DecideKeepAlive(false, proto.HTTP10, headers.New(), method.POST, true))
}

func TestDecideKeepAliveHTTP10KeepAliveWithContentLength(t *testing.T) {
	h := headers.New()
	h.Add("Connection", "keep-alive")

	require.True(t, DecideKeepAlive(false, proto.HTTP10, h, method.POST, true))
}

func TestDecideKeepAliveHTTP10GetWithoutContentLength(t *testing.T) {
	h := headers.New()
	h.Add("Connection", "keep-alive")

	require.True(t, DecideKeepAlive(false, proto.HTTP10, h, method.GET, false))
}

func TestDecideKeepAliveHTTP10NoBodySignalCloses(t *testing.T) {
	h := headers.New()
	h.Add("Connection", "keep-alive")

	require.False(t, DecideKeepAlive(false, proto.HTTP10, h, method.POST, false))
}
