// Package loom wires the reactor, acceptor, and connection state machine into a runnable
// server. App is the builder a caller starts from; everything underneath is driven by the
// packages in reactor, listener, and conn.
package loom

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/loomhttp/loom/config"
	"github.com/loomhttp/loom/conn"
	"github.com/loomhttp/loom/errors"
	"github.com/loomhttp/loom/listener"
	"github.com/loomhttp/loom/reactor"
	"go.uber.org/zap"
)

type hooks struct {
	OnStart, OnStop func()
}

func callIfNotNil(f func()) {
	if f != nil {
		f()
	}
}

type loop struct {
	r   reactor.Reactor
	acc *listener.Acceptor
}

// App builds and runs a server bound to a single address. Each reactor instance it spawns
// (see Loops) owns its own Acceptor and drives every connection accepted through it; reactors
// never share a Stream or a Connection.
type App struct {
	addr     string
	cfg      *config.Config
	callback conn.Callback
	loops    int
	hooks    hooks
	errCh    chan error
}

// New returns an App listening on addr with the given request callback. Use Tune to override
// the default Config before calling Serve.
func New(addr string, callback conn.Callback) *App {
	return &App{
		addr:     addr,
		cfg:      config.Default(),
		callback: callback,
		loops:    1,
		errCh:    make(chan error, 1),
	}
}

// Tune replaces the default Config. Zero-valued fields of cfg are filled from config.Default.
func (a *App) Tune(cfg *config.Config) *App {
	a.cfg = config.Fill(cfg)
	return a
}

// Loops sets how many independent reactors accept on addr concurrently, each bound with
// SO_REUSEPORT so the kernel load-balances across them. n <= 1 runs a single reactor with a
// plain (non-SO_REUSEPORT) listener.
func (a *App) Loops(n int) *App {
	if n < 1 {
		n = 1
	}

	a.loops = n
	return a
}

// NotifyOnStart calls cb once every reactor has started accepting. It is not guaranteed that
// connections are flowing yet, only that every Acceptor has been registered.
func (a *App) NotifyOnStart(cb func()) *App {
	a.hooks.OnStart = cb
	return a
}

// NotifyOnStop calls cb once every reactor has stopped and every listening socket is closed.
func (a *App) NotifyOnStop(cb func()) *App {
	a.hooks.OnStop = cb
	return a
}

// Serve starts every reactor loop and blocks until Stop is called or a reactor fails. It
// returns errors.ErrShutdown on a clean Stop, or the first failure otherwise.
func (a *App) Serve() error {
	logger := a.cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	reusePort := a.loops > 1

	loops, err := a.startLoops(logger, reusePort)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	var failSilently atomic.Bool

	for _, l := range loops {
		wg.Add(1)

		go func(r reactor.Reactor) {
			defer wg.Done()

			runErr := r.Run()

			if failSilently.Swap(true) {
				return
			}

			if runErr == nil {
				runErr = errors.ErrShutdown
			}

			a.errCh <- runErr
		}(l.r)
	}

	callIfNotNil(a.hooks.OnStart)
	err = <-a.errCh
	failSilently.Store(true)

	for _, l := range loops {
		_ = l.acc.Close()
		l.r.Stop()
	}

	wg.Wait()

	for _, l := range loops {
		_ = l.r.Close()
	}

	callIfNotNil(a.hooks.OnStop)

	return err
}

func (a *App) startLoops(logger *zap.Logger, reusePort bool) ([]loop, error) {
	loops := make([]loop, 0, a.loops)

	for i := 0; i < a.loops; i++ {
		r, err := reactor.New(logger)
		if err != nil {
			closeLoops(loops)
			return nil, fmt.Errorf("loom: start reactor %d: %w", i, err)
		}

		acc, err := listener.Listen(a.addr, r, a.cfg, a.callback, reusePort)
		if err != nil {
			_ = r.Close()
			closeLoops(loops)
			return nil, fmt.Errorf("loom: listen on %s: %w", a.addr, err)
		}

		loops = append(loops, loop{r: r, acc: acc})
	}

	return loops, nil
}

func closeLoops(loops []loop) {
	for _, l := range loops {
		if l.acc != nil {
			_ = l.acc.Close()
		}

		l.r.Stop()
		_ = l.r.Close()
	}
}

// Stop shuts every reactor down. The call does not block; Serve returns once every loop has
// drained its current dispatch round.
func (a *App) Stop() {
	select {
	case a.errCh <- errors.ErrShutdown:
	default:
	}
}
