// Package conn implements the per-socket HTTP/1.x state machine that sequences a Stream's
// reads and writes into requests and responses, and decides, after each one, whether the
// socket stays open for another.
package conn

import (
	"strconv"
	"time"

	"github.com/dchest/uniuri"
	"github.com/loomhttp/loom/config"
	"github.com/loomhttp/loom/errors"
	gohttp "github.com/loomhttp/loom/http"
	"github.com/loomhttp/loom/http/form"
	"github.com/loomhttp/loom/http/headparser"
	"github.com/loomhttp/loom/http/query"
	"github.com/loomhttp/loom/reactor"
	"github.com/loomhttp/loom/stream"
	"go.uber.org/zap"
)

// correlationIDLen matches the short ID length used elsewhere for log correlation; long
// enough to tell connections apart in a log stream, short enough not to clutter it.
const correlationIDLen = 8

// State is one position in the per-connection lifecycle.
type State uint8

const (
	AwaitingHeaders State = iota
	ReadingBody
	Dispatched
	Writing
	Closed
)

const headDelimiter = "\r\n\r\n"

// Callback is the application's request handler. It must eventually call Request.Finish;
// it may call Request.Write any number of times first, synchronously or across reactor ticks.
type Callback func(*gohttp.Request)

// Connection drives one accepted socket through repeated request/response cycles until
// either side closes it. It is not safe for concurrent use; every method runs on the reactor
// goroutine that owns its Stream.
type Connection struct {
	stream   *stream.Stream
	reactor  reactor.Reactor
	cfg      *config.Config
	logger   *zap.Logger
	callback Callback

	id       string
	peerAddr string
	isTLS    bool

	state State
	req   *gohttp.Request

	pendingWrites int
	pendingFinish bool

	idleTimer armed
}

type armed struct {
	handle reactor.TimerHandle
	set    bool
}

// New wraps s in a Connection that will invoke callback once per fully-parsed request.
// peerAddr is the remote socket address, used as the default remote_ip absent a trusted
// X-Header override.
func New(s *stream.Stream, r reactor.Reactor, cfg *config.Config, isTLS bool, peerAddr string, callback Callback) *Connection {
	c := &Connection{
		stream:   s,
		reactor:  r,
		cfg:      cfg,
		logger:   cfg.Logger,
		callback: callback,
		id:       uniuri.NewLen(correlationIDLen),
		peerAddr: peerAddr,
		isTLS:    isTLS,
	}

	return c
}

// Start issues the first read, putting the connection in AwaitingHeaders.
func (c *Connection) Start() {
	c.enterAwaitingHeaders()
}

func (c *Connection) enterAwaitingHeaders() {
	c.state = AwaitingHeaders
	c.armIdleTimer()
	c.stream.ReadUntil([]byte(headDelimiter), c.onHeadRead)
}

func (c *Connection) armIdleTimer() {
	if c.cfg.NET.IdleTimeout <= 0 {
		return
	}

	c.idleTimer.handle = c.reactor.AddTimeout(time.Now().Add(c.cfg.NET.IdleTimeout), c.onIdleTimeout)
	c.idleTimer.set = true
}

func (c *Connection) disarmIdleTimer() {
	if !c.idleTimer.set {
		return
	}

	c.reactor.RemoveTimeout(c.idleTimer.handle)
	c.idleTimer.set = false
}

func (c *Connection) onIdleTimeout() {
	if c.state != AwaitingHeaders {
		return
	}

	c.logger.Debug("idle timeout", zap.String("conn", c.id), zap.String("remote", c.peerAddr), zap.Error(errors.ErrIdleTimeout))
	c.idleTimer.set = false
	c.state = Closed
	_ = c.stream.Close()
}

func (c *Connection) onHeadRead(raw []byte, err error) {
	c.disarmIdleTimer()

	if err != nil {
		c.onStreamError(err)
		return
	}

	head, err := headparser.Parse(raw, headparser.Limits{
		MaxHeaderCount:       c.cfg.Headers.MaxCount,
		MaxHeaderKeyLength:   c.cfg.Headers.MaxKeyLength,
		MaxHeaderValueLength: c.cfg.Headers.MaxValueLength,
	})
	if err != nil {
		c.logger.Warn("malformed request head", zap.String("conn", c.id), zap.String("remote", c.peerAddr), zap.Error(err))
		c.state = Closed
		_ = c.stream.Close()
		return
	}

	c.req = c.buildRequest(head)

	contentLength, hasContentLength := head.Headers.Get("Content-Length")
	if !hasContentLength {
		c.dispatch()
		return
	}

	n, convErr := strconv.Atoi(contentLength)
	if convErr != nil || n < 0 {
		c.logger.Warn("malformed content-length", zap.String("conn", c.id), zap.String("remote", c.peerAddr))
		c.state = Closed
		_ = c.stream.Close()
		return
	}

	if n > c.cfg.NET.MaxBufferSize {
		c.logger.Warn("payload too large", zap.String("conn", c.id), zap.String("remote", c.peerAddr), zap.Int("declared", n), zap.Error(errors.ErrPayloadTooLarge))
		c.state = Closed
		_ = c.stream.Close()
		return
	}

	if n == 0 {
		c.dispatch()
		return
	}

	if head.Headers.HasToken("Expect", "100-continue") {
		c.stream.Write([]byte("HTTP/1.1 100 (Continue)\r\n\r\n"), nil)
	}

	c.state = ReadingBody
	c.stream.ReadBytes(n, c.onBodyRead)
}

func (c *Connection) buildRequest(head headparser.Head) *gohttp.Request {
	req := gohttp.New(c)
	req.Method = head.Method
	req.Path = head.Path
	req.Version = head.Proto
	req.Headers = head.Headers
	req.Host = head.Headers.Value("Host")
	req.StartTime = time.Now()
	req.Arguments = query.New(head.RawQuery, c.cfg.Body.MaxArguments)

	req.RemoteIP, req.Protocol = c.peerAddr, DefaultProtocol(c.isTLS)
	if c.cfg.XHeaders {
		req.RemoteIP, req.Protocol = OverlayXHeaders(head.Headers, c.peerAddr, c.isTLS)
	}

	return req
}

func (c *Connection) onBodyRead(body []byte, err error) {
	if err != nil {
		c.onStreamError(err)
		return
	}

	c.req.Body = body

	if contentType := c.req.Headers.Value("Content-Type"); contentType != "" {
		decoded, ferr := form.Parse(contentType, body, c.cfg.Body.MaxArguments)
		if ferr != nil {
			c.logger.Warn("malformed request body", zap.String("conn", c.id), zap.String("remote", c.peerAddr), zap.Error(ferr))
			c.state = Closed
			_ = c.stream.Close()
			return
		}

		if form.IsURLEncoded(contentType) {
			for _, field := range decoded {
				c.req.Arguments.Add(field.Name, field.Value)
			}
		} else {
			c.req.Files = decoded
		}
	}

	c.dispatch()
}

// onStreamError handles a failed read. The Stream either was already closed when the read was
// submitted or closes itself (logging the cause) as soon as this callback returns; there's
// nothing left to do but stop feeding it further reads.
func (c *Connection) onStreamError(error) {
	c.state = Closed
}

func (c *Connection) dispatch() {
	c.state = Dispatched
	c.callback(c.req)
}

// WriteChunk implements http.Writer: it forwards chunk to the Stream, tracking in-flight
// writes so FinishResponse can tell when the queue has actually drained. Called with no
// request currently dispatched (e.g. a handler that kept writing after Finish), it refuses
// the write instead of queuing a chunk for whatever happens to be read next.
func (c *Connection) WriteChunk(chunk []byte, userCB func(error)) {
	if c.req == nil {
		c.logger.Warn("write with no current request", zap.String("conn", c.id), zap.Error(errors.ErrNoCurrentRequest))
		if userCB != nil {
			userCB(errors.ErrNoCurrentRequest)
		}
		return
	}

	if c.state == Dispatched {
		c.state = Writing
	}

	c.pendingWrites++
	c.stream.Write(chunk, func(err error) {
		c.pendingWrites--

		if userCB != nil {
			userCB(err)
		}

		if c.pendingFinish && c.pendingWrites == 0 {
			c.completeResponse()
		}
	})
}

// FinishResponse implements http.Writer: it marks the response complete and, once every
// queued chunk has drained, runs the keep-alive decision. Called a second time for the same
// request (c.req already cleared by the first call's completeResponse), it is a no-op rather
// than a nil dereference.
func (c *Connection) FinishResponse() {
	if c.req == nil {
		c.logger.Warn("finish with no current request", zap.String("conn", c.id), zap.Error(errors.ErrNoCurrentRequest))
		return
	}

	c.pendingFinish = true

	if c.pendingWrites == 0 {
		c.completeResponse()
	}
}

func (c *Connection) completeResponse() {
	c.pendingFinish = false

	req := c.req
	c.req = nil

	_, hasContentLength := req.Headers.Get("Content-Length")
	keepAlive := DecideKeepAlive(c.cfg.NoKeepAlive, req.Version, req.Headers, req.Method, hasContentLength)

	if !keepAlive {
		c.state = Closed
		_ = c.stream.Close()
		return
	}

	c.enterAwaitingHeaders()
}
