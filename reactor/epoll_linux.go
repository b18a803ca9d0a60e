//go:build linux

package reactor

import (
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

const maxEvents = 128

type registration struct {
	mask Mask
	cb   Callback
}

// epollReactor implements Reactor on top of Linux's epoll, level-triggered.
type epollReactor struct {
	epfd      int
	logger    *zap.Logger
	registry  map[int]*registration
	timers    *timerQueue
	stopping  atomic.Bool
	wakeupR   int
	wakeupW   int
}

// New returns a Reactor backed by epoll. logger defaults to a no-op logger when nil.
func New(logger *zap.Logger) (Reactor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}

	r, w, err := pipe2NonBlocking()
	if err != nil {
		unix.Close(epfd)
		return nil, fmt.Errorf("wakeup pipe: %w", err)
	}

	er := &epollReactor{
		epfd:     epfd,
		logger:   logger,
		registry: make(map[int]*registration),
		timers:   newTimerQueue(),
		wakeupR:  r,
		wakeupW:  w,
	}

	if err := er.addFD(r, Read); err != nil {
		unix.Close(epfd)
		unix.Close(r)
		unix.Close(w)
		return nil, err
	}
	er.registry[r] = &registration{mask: Read, cb: er.drainWakeup}

	return er, nil
}

func pipe2NonBlocking() (r, w int, err error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_NONBLOCK); err != nil {
		return 0, 0, err
	}

	return fds[0], fds[1], nil
}

func (r *epollReactor) drainWakeup(int, Mask) {
	var buf [64]byte
	for {
		_, err := unix.Read(r.wakeupR, buf[:])
		if err != nil {
			return
		}
	}
}

func toEpollEvents(mask Mask) uint32 {
	var ev uint32
	if mask&Read != 0 {
		ev |= unix.EPOLLIN
	}
	if mask&Write != 0 {
		ev |= unix.EPOLLOUT
	}

	return ev
}

func (r *epollReactor) addFD(fd int, mask Mask) error {
	event := unix.EpollEvent{Events: toEpollEvents(mask), Fd: int32(fd)}
	return unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, &event)
}

func (r *epollReactor) Add(fd int, mask Mask, cb Callback) error {
	if _, exists := r.registry[fd]; exists {
		return fmt.Errorf("fd %d already registered", fd)
	}

	if err := r.addFD(fd, mask); err != nil {
		return fmt.Errorf("epoll ctl add: %w", err)
	}

	r.registry[fd] = &registration{mask: mask, cb: cb}
	return nil
}

func (r *epollReactor) Modify(fd int, mask Mask) error {
	reg, exists := r.registry[fd]
	if !exists {
		return fmt.Errorf("fd %d is not registered", fd)
	}

	event := unix.EpollEvent{Events: toEpollEvents(mask), Fd: int32(fd)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, fd, &event); err != nil {
		return fmt.Errorf("epoll ctl mod: %w", err)
	}

	reg.mask = mask
	return nil
}

func (r *epollReactor) Remove(fd int) error {
	if _, exists := r.registry[fd]; !exists {
		return nil
	}

	delete(r.registry, fd)
	_ = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	return nil
}

func (r *epollReactor) AddTimeout(deadline time.Time, cb func()) TimerHandle {
	return r.timers.Add(deadline, cb)
}

func (r *epollReactor) RemoveTimeout(h TimerHandle) {
	r.timers.Remove(h)
}

func (r *epollReactor) Stop() {
	r.stopping.Store(true)
	_, _ = unix.Write(r.wakeupW, []byte{0})
}

func (r *epollReactor) Run() error {
	var events [maxEvents]unix.EpollEvent

	for !r.stopping.Load() {
		timeoutMs := r.nextTimeoutMs()

		n, err := unix.EpollWait(r.epfd, events[:], timeoutMs)
		if err != nil {
			if err == unix.EINTR {
				continue
			}

			return fmt.Errorf("epoll wait: %w", err)
		}

		for i := 0; i < n; i++ {
			r.dispatch(events[i])
		}

		r.fireExpiredTimers()
	}

	return nil
}

func (r *epollReactor) nextTimeoutMs() int {
	deadline, ok := r.timers.NextDeadline()
	if !ok {
		return -1
	}

	remaining := deadline.Sub(time.Now())
	if remaining <= 0 {
		return 0
	}

	ms := remaining.Milliseconds()
	if ms > 1<<31-1 {
		ms = 1<<31 - 1
	}

	return int(ms)
}

func (r *epollReactor) dispatch(ev unix.EpollEvent) {
	fd := int(ev.Fd)

	reg, exists := r.registry[fd]
	if !exists {
		return
	}

	var ready Mask
	if ev.Events&unix.EPOLLIN != 0 {
		ready |= Read
	}
	if ev.Events&unix.EPOLLOUT != 0 {
		ready |= Write
	}
	if ev.Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
		ready |= Read | Write
	}

	r.safeInvoke(fd, func() { reg.cb(fd, ready) })
}

func (r *epollReactor) fireExpiredTimers() {
	for _, entry := range r.timers.PopExpired(time.Now()) {
		cb := entry.cb
		r.safeInvoke(-1, cb)
	}
}

// safeInvoke runs fn with panic recovery, matching ErrUserCallbackFault: a panic inside a
// user callback is logged with its stack and, when it originated from an fd's callback (fd
// >= 0), that fd alone is force-closed. The reactor loop continues regardless.
func (r *epollReactor) safeInvoke(fd int, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("reactor callback panicked",
				zap.Int("fd", fd),
				zap.Any("panic", rec),
			)

			if fd >= 0 {
				_ = r.Remove(fd)
				_ = unix.Close(fd)
			}
		}
	}()

	fn()
}

func (r *epollReactor) Close() error {
	_ = unix.Close(r.wakeupR)
	_ = unix.Close(r.wakeupW)
	return unix.Close(r.epfd)
}
