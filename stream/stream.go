// Package stream implements a non-blocking buffered reader/writer over one socket:
// read-until-delimiter, read-exactly-N-bytes and write-chunk, all completion-style, all
// driven by the reactor's readiness callbacks.
package stream

import (
	"time"

	"github.com/eapache/queue"
	"github.com/loomhttp/loom/errors"
	"github.com/loomhttp/loom/reactor"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

type readKind uint8

const (
	readNone readKind = iota
	readUntilDelim
	readExactly
)

type pendingRead struct {
	kind  readKind
	delim []byte
	n     int
	cb    func([]byte, error)
}

type writeItem struct {
	data   []byte
	offset int
	cb     func(error)
}

// Stream is a non-blocking buffered wrapper around one socket file descriptor. It is not safe
// for concurrent use; every method must be called from the reactor goroutine that owns it.
type Stream struct {
	fd            int
	reactor       reactor.Reactor
	logger        *zap.Logger
	maxBufferSize int
	readChunkSize int

	readBuf []byte
	pending pendingRead

	writeQueue    *queue.Queue
	writeInterest bool

	closed bool
}

// New wraps fd in a Stream and registers it with reactor for readability. maxBufferSize bounds
// the read buffer; readChunkSize sizes the scratch buffer used per non-blocking read.
func New(fd int, r reactor.Reactor, maxBufferSize, readChunkSize int, logger *zap.Logger) (*Stream, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Stream{
		fd:            fd,
		reactor:       r,
		logger:        logger,
		maxBufferSize: maxBufferSize,
		readChunkSize: readChunkSize,
		writeQueue:    queue.New(),
	}

	if err := r.Add(fd, reactor.Read, s.onReady); err != nil {
		return nil, err
	}

	return s, nil
}

// Closed reports whether the stream has been closed, by either party.
func (s *Stream) Closed() bool {
	return s.closed
}

// Writing reports whether the stream currently has queued, undrained writes.
func (s *Stream) Writing() bool {
	return s.writeQueue.Length() > 0
}

// Close releases the socket and drops any pending read or queued writes. Their callbacks are
// never invoked.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}

	s.closed = true
	s.pending = pendingRead{}
	s.writeQueue = queue.New()
	_ = s.reactor.Remove(s.fd)

	return unix.Close(s.fd)
}

func (s *Stream) closeWithError(err error) {
	s.logger.Warn("closing stream", zap.Int("fd", s.fd), zap.Error(err))
	_ = s.Close()
}

// ReadUntil requests a callback once delim appears in the stream, delivering everything up to
// and including it. Only one read may be pending at a time. If delim is already present in the
// buffer, the callback still fires on the next reactor tick, never synchronously.
func (s *Stream) ReadUntil(delim []byte, cb func([]byte, error)) {
	if s.closed {
		cb(nil, errors.ErrClosed)
		return
	}

	if s.pending.kind != readNone {
		cb(nil, errors.ErrPendingRead)
		return
	}

	s.pending = pendingRead{kind: readUntilDelim, delim: delim, cb: cb}
	s.deferIfSatisfiable()
}

// ReadBytes requests a callback once n bytes are available, delivering exactly n. Only one
// read may be pending at a time.
func (s *Stream) ReadBytes(n int, cb func([]byte, error)) {
	if s.closed {
		cb(nil, errors.ErrClosed)
		return
	}

	if s.pending.kind != readNone {
		cb(nil, errors.ErrPendingRead)
		return
	}

	s.pending = pendingRead{kind: readExactly, n: n, cb: cb}
	s.deferIfSatisfiable()
}

// deferIfSatisfiable schedules an immediate re-check of the pending read on the next reactor
// tick, so a delimiter or byte count already present in the buffer at submission time still
// fires asynchronously, preserving uniform ordering with genuinely-async completions.
func (s *Stream) deferIfSatisfiable() {
	if !s.satisfiable() {
		return
	}

	s.reactor.AddTimeout(time.Now(), func() {
		if s.closed {
			return
		}

		s.tryFulfillPending()
	})
}

func (s *Stream) satisfiable() bool {
	switch s.pending.kind {
	case readUntilDelim:
		return indexOf(s.readBuf, s.pending.delim) != -1
	case readExactly:
		return len(s.readBuf) >= s.pending.n
	default:
		return false
	}
}

// Write enqueues chunk for delivery, in submission order relative to other queued writes. cb,
// if non-nil, fires once chunk has been fully flushed to the socket.
func (s *Stream) Write(chunk []byte, cb func(error)) {
	if s.closed {
		if cb != nil {
			cb(errors.ErrClosed)
		}
		return
	}

	s.writeQueue.Add(&writeItem{data: chunk, cb: cb})

	if !s.writeInterest {
		s.writeInterest = true
		_ = s.reactor.Modify(s.fd, reactor.Read|reactor.Write)
	}
}

// onReady is the reactor callback registered for this stream's fd.
func (s *Stream) onReady(fd int, ready reactor.Mask) {
	if s.closed {
		return
	}

	if ready&reactor.Read != 0 {
		s.handleReadable()
	}

	if s.closed {
		return
	}

	if ready&reactor.Write != 0 {
		s.handleWritable()
	}
}

func (s *Stream) handleReadable() {
	scratch := make([]byte, s.readChunkSize)

	for {
		n, err := unix.Read(s.fd, scratch)
		if n > 0 {
			s.readBuf = append(s.readBuf, scratch[:n]...)

			if len(s.readBuf) > s.maxBufferSize {
				s.failPending(errors.ErrBufferOverflow)
				s.closeWithError(errors.ErrBufferOverflow)
				return
			}
		}

		if err == nil && n > 0 {
			continue
		}

		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			break
		}

		if n == 0 || err != nil {
			s.handleReadEOF(err)
			return
		}
	}

	s.tryFulfillPending()
}

func (s *Stream) handleReadEOF(err error) {
	if s.pending.kind == readNone {
		s.Close()
		return
	}

	cause := errors.ErrPeerClosed
	if err != nil && err != unix.EAGAIN && err != unix.EWOULDBLOCK {
		cause = errors.ErrIO
	}

	s.failPending(cause)
	s.closeWithError(cause)
}

func (s *Stream) failPending(err error) {
	if s.pending.kind == readNone {
		return
	}

	cb := s.pending.cb
	s.pending = pendingRead{}
	cb(nil, err)
}

// tryFulfillPending consumes the pending read's bytes if the buffer now satisfies it, clearing
// the pending request before invoking the callback so the callback may submit the next read
// synchronously.
func (s *Stream) tryFulfillPending() {
	switch s.pending.kind {
	case readUntilDelim:
		idx := indexOf(s.readBuf, s.pending.delim)
		if idx == -1 {
			return
		}

		end := idx + len(s.pending.delim)
		result := make([]byte, end)
		copy(result, s.readBuf[:end])
		s.readBuf = append(s.readBuf[:0], s.readBuf[end:]...)

		cb := s.pending.cb
		s.pending = pendingRead{}
		cb(result, nil)
	case readExactly:
		if len(s.readBuf) < s.pending.n {
			return
		}

		result := make([]byte, s.pending.n)
		copy(result, s.readBuf[:s.pending.n])
		s.readBuf = append(s.readBuf[:0], s.readBuf[s.pending.n:]...)

		cb := s.pending.cb
		s.pending = pendingRead{}
		cb(result, nil)
	}
}

func (s *Stream) handleWritable() {
	for s.writeQueue.Length() > 0 {
		item := s.writeQueue.Peek().(*writeItem)

		n, err := unix.Write(s.fd, item.data[item.offset:])
		if n > 0 {
			item.offset += n
		}

		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			break
		}

		if err != nil {
			s.writeQueue.Remove()
			if item.cb != nil {
				item.cb(errors.ErrIO)
			}
			s.closeWithError(errors.ErrIO)
			return
		}

		if item.offset < len(item.data) {
			continue
		}

		s.writeQueue.Remove()
		if item.cb != nil {
			item.cb(nil)
		}
	}

	if s.writeQueue.Length() == 0 && s.writeInterest {
		s.writeInterest = false
		_ = s.reactor.Modify(s.fd, reactor.Read)
	}
}

func indexOf(haystack, needle []byte) int {
	if len(needle) == 0 || len(haystack) < len(needle) {
		return -1
	}

	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}

		if match {
			return i
		}
	}

	return -1
}
