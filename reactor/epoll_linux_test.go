//go:build linux

package reactor

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReactorFiresOnReadable(t *testing.T) {
	r, err := New(nil)
	require.NoError(t, err)
	defer r.(*epollReactor).Close()

	pr, pw, err := os.Pipe()
	require.NoError(t, err)
	defer pr.Close()
	defer pw.Close()

	fired := make(chan Mask, 1)
	require.NoError(t, r.Add(int(pr.Fd()), Read, func(fd int, ready Mask) {
		fired <- ready
		r.Stop()
	}))

	go func() {
		time.Sleep(10 * time.Millisecond)
		_, _ = pw.Write([]byte("x"))
	}()

	done := make(chan error, 1)
	go func() { done <- r.Run() }()

	select {
	case ready := <-fired:
		require.NotZero(t, ready&Read)
	case <-time.After(time.Second):
		t.Fatal("reactor never fired")
	}

	require.NoError(t, <-done)
}

func TestReactorTimerFires(t *testing.T) {
	r, err := New(nil)
	require.NoError(t, err)
	defer r.(*epollReactor).Close()

	fired := make(chan struct{}, 1)
	r.AddTimeout(time.Now().Add(20*time.Millisecond), func() {
		fired <- struct{}{}
		r.Stop()
	})

	done := make(chan error, 1)
	go func() { done <- r.Run() }()

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}

	require.NoError(t, <-done)
}

func TestReactorRemoveTimeoutCancels(t *testing.T) {
	r, err := New(nil)
	require.NoError(t, err)
	defer r.(*epollReactor).Close()

	fired := false
	h := r.AddTimeout(time.Now().Add(20*time.Millisecond), func() { fired = true })
	r.RemoveTimeout(h)

	r.AddTimeout(time.Now().Add(40*time.Millisecond), func() { r.Stop() })
	require.NoError(t, r.Run())
	require.False(t, fired)
}
