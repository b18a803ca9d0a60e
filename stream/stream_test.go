//go:build linux

package stream

import (
	"testing"
	"time"

	"github.com/loomhttp/loom/errors"
	"github.com/loomhttp/loom/reactor"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func socketPair(t *testing.T) (a, b int) {
	t.Helper()

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	require.NoError(t, unix.SetNonblock(fds[0], true))
	require.NoError(t, unix.SetNonblock(fds[1], true))

	return fds[0], fds[1]
}

func runReactor(t *testing.T, r reactor.Reactor) chan error {
	t.Helper()

	done := make(chan error, 1)
	go func() { done <- r.Run() }()
	return done
}

func TestStreamReadUntilDelimiter(t *testing.T) {
	r, err := reactor.New(nil)
	require.NoError(t, err)

	local, peer := socketPair(t)
	s, err := New(local, r, 1<<20, 4096, nil)
	require.NoError(t, err)

	result := make(chan []byte, 1)
	s.ReadUntil([]byte("\r\n\r\n"), func(data []byte, err error) {
		require.NoError(t, err)
		result <- data
		r.Stop()
	})

	_, werr := unix.Write(peer, []byte("GET / HTTP/1.1\r\n\r\n"))
	require.NoError(t, werr)

	done := runReactor(t, r)

	select {
	case data := <-result:
		require.Equal(t, "GET / HTTP/1.1\r\n\r\n", string(data))
	case <-time.After(time.Second):
		t.Fatal("read never completed")
	}

	require.NoError(t, <-done)
}

func TestStreamSecondReadRejectedWhilePending(t *testing.T) {
	r, err := reactor.New(nil)
	require.NoError(t, err)

	local, _ := socketPair(t)
	s, err := New(local, r, 1<<20, 4096, nil)
	require.NoError(t, err)

	s.ReadUntil([]byte("\n"), func([]byte, error) {})

	var secondErr error
	s.ReadBytes(4, func(_ []byte, err error) { secondErr = err })

	require.ErrorIs(t, secondErr, errors.ErrPendingRead)
}

func TestStreamWriteDrains(t *testing.T) {
	r, err := reactor.New(nil)
	require.NoError(t, err)

	local, peer := socketPair(t)
	s, err := New(local, r, 1<<20, 4096, nil)
	require.NoError(t, err)

	flushed := make(chan struct{}, 1)
	s.Write([]byte("hello"), func(err error) {
		require.NoError(t, err)
		flushed <- struct{}{}
		r.Stop()
	})

	done := runReactor(t, r)

	select {
	case <-flushed:
	case <-time.After(time.Second):
		t.Fatal("write never flushed")
	}
	require.NoError(t, <-done)

	buf := make([]byte, 5)
	n, rerr := unix.Read(peer, buf)
	require.NoError(t, rerr)
	require.Equal(t, "hello", string(buf[:n]))
}

func TestStreamReadAfterCloseFails(t *testing.T) {
	r, err := reactor.New(nil)
	require.NoError(t, err)

	local, _ := socketPair(t)
	s, err := New(local, r, 1<<20, 4096, nil)
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.True(t, s.Closed())

	var gotErr error
	s.ReadBytes(1, func(_ []byte, err error) { gotErr = err })
	require.ErrorIs(t, gotErr, errors.ErrClosed)
}
