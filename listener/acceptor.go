// Package listener implements the Acceptor: bind, listen, and on every accepted socket hand
// off a Stream and remote address to a new Connection. Plaintext sockets are driven through
// the same reactor as every other Stream; TLS sockets, whose handshake and framing live
// entirely inside crypto/tls's blocking net.Conn model, take the separate path in tls.go.
package listener

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"os"
	"syscall"

	"github.com/loomhttp/loom/conn"
	"github.com/loomhttp/loom/config"
	"github.com/loomhttp/loom/reactor"
	"github.com/loomhttp/loom/stream"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// Acceptor owns one listening socket and spins up a Connection for every accepted client.
type Acceptor struct {
	fd       int
	file     *os.File
	reactor  reactor.Reactor
	cfg      *config.Config
	logger   *zap.Logger
	callback conn.Callback
	closed   bool
	addr     net.Addr

	tlsListener net.Listener
}

// Addr returns the bound local address, useful when addr was given as "host:0" and the actual
// port needs to be discovered.
func (a *Acceptor) Addr() net.Addr {
	return a.addr
}

// Listen binds addr (host:port) and, depending on cfg.TLSConfig, either registers the
// listening socket with r for non-blocking reactor-driven accepts, or — when TLS is
// configured — hands the listener to a dedicated goroutine running crypto/tls's blocking
// accept loop (see tls.go). callback is invoked once per fully-parsed request on every
// accepted connection, regardless of which path accepted it.
//
// When reusePort is true, the listening socket is bound with SO_REUSEPORT, letting several
// independent reactors — each with its own Acceptor bound to the same addr — share accepts of
// one logical listener, the kernel load-balancing across them. Used by the multi-reactor
// scaling mode; a single-reactor server passes false.
func Listen(addr string, r reactor.Reactor, cfg *config.Config, callback conn.Callback, reusePort bool) (*Acceptor, error) {
	ln, err := listenTCP(addr, reusePort)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	tcpLn, ok := ln.(*net.TCPListener)
	if !ok {
		_ = ln.Close()
		return nil, fmt.Errorf("listen on %s: not a TCP listener", addr)
	}

	a := &Acceptor{
		reactor:  r,
		cfg:      cfg,
		logger:   cfg.Logger,
		callback: callback,
		addr:     tcpLn.Addr(),
	}

	if cfg.TLSConfig != nil {
		a.tlsListener = tls.NewListener(tcpLn, cfg.TLSConfig)
		go a.acceptTLSLoop()
		return a, nil
	}

	file, err := tcpLn.File()
	_ = ln.Close()
	if err != nil {
		return nil, fmt.Errorf("dup listener fd: %w", err)
	}

	fd := int(file.Fd())
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("set listener nonblocking: %w", err)
	}

	a.fd, a.file = fd, file

	if err := r.Add(fd, reactor.Read, a.onAcceptable); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("register listener: %w", err)
	}

	return a, nil
}

// Close stops accepting new connections. Connections already handed off keep running until
// they close themselves.
func (a *Acceptor) Close() error {
	if a.closed {
		return nil
	}

	a.closed = true

	if a.tlsListener != nil {
		return a.tlsListener.Close()
	}

	_ = a.reactor.Remove(a.fd)
	return a.file.Close()
}

func (a *Acceptor) onAcceptable(int, reactor.Mask) {
	for {
		connFd, sa, err := unix.Accept4(a.fd, unix.SOCK_NONBLOCK)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return
			}
			if err == unix.EINTR {
				continue
			}

			a.logger.Warn("accept failed", zap.Error(err))
			return
		}

		a.handleAccepted(connFd, sockaddrString(sa))
	}
}

func (a *Acceptor) handleAccepted(fd int, peerAddr string) {
	s, err := stream.New(fd, a.reactor, a.cfg.NET.MaxBufferSize, a.cfg.NET.ReadChunkSize, a.logger)
	if err != nil {
		a.logger.Warn("failed to register accepted socket", zap.Error(err), zap.String("remote", peerAddr))
		_ = unix.Close(fd)
		return
	}

	c := conn.New(s, a.reactor, a.cfg, false, peerAddr, a.callback)
	c.Start()
}

// listenTCP binds addr, optionally setting SO_REUSEPORT on the socket before bind so multiple
// independent listeners (one per reactor) can share the same address.
func listenTCP(addr string, reusePort bool) (net.Listener, error) {
	if !reusePort {
		return net.Listen("tcp", addr)
	}

	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var sockErr error
			if err := c.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
			}); err != nil {
				return err
			}
			return sockErr
		},
	}

	return lc.Listen(context.Background(), "tcp", addr)
}

func sockaddrString(sa unix.Sockaddr) string {
	switch addr := sa.(type) {
	case *unix.SockaddrInet4:
		return fmt.Sprintf("%d.%d.%d.%d:%d", addr.Addr[0], addr.Addr[1], addr.Addr[2], addr.Addr[3], addr.Port)
	case *unix.SockaddrInet6:
		return fmt.Sprintf("[%x]:%d", addr.Addr, addr.Port)
	default:
		return "unknown"
	}
}
