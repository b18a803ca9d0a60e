package listener

import (
	"bufio"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/loomhttp/loom/conn"
	gohttp "github.com/loomhttp/loom/http"
	"github.com/loomhttp/loom/http/form"
	"github.com/loomhttp/loom/http/headparser"
	"github.com/loomhttp/loom/http/query"
	"go.uber.org/zap"
)

// acceptTLSLoop runs crypto/tls's ordinary blocking accept loop, goroutine-per-connection,
// mirroring how the teacher's own TLS listener is driven. crypto/tls performs record framing
// and the handshake through Go's blocking net.Conn model, which the raw non-blocking fd this
// engine's Stream operates on cannot host; every TLS connection therefore gets its own
// goroutine and its own blocking read loop instead of joining the reactor.
func (a *Acceptor) acceptTLSLoop() {
	for {
		c, err := a.tlsListener.Accept()
		if err != nil {
			if a.closed {
				return
			}

			a.logger.Warn("tls accept failed", zap.Error(err))
			return
		}

		go a.serveTLS(c)
	}
}

func (a *Acceptor) serveTLS(netConn net.Conn) {
	defer netConn.Close()

	peerAddr := netConn.RemoteAddr().String()
	r := bufio.NewReaderSize(netConn, a.cfg.NET.ReadChunkSize)

	for {
		if a.cfg.NET.IdleTimeout > 0 {
			_ = netConn.SetReadDeadline(time.Now().Add(a.cfg.NET.IdleTimeout))
		}

		raw, err := readHead(r, a.cfg.NET.MaxBufferSize)
		if err != nil {
			return
		}

		_ = netConn.SetReadDeadline(time.Time{})

		head, err := headparser.Parse(raw, headparser.Limits{
			MaxHeaderCount:       a.cfg.Headers.MaxCount,
			MaxHeaderKeyLength:   a.cfg.Headers.MaxKeyLength,
			MaxHeaderValueLength: a.cfg.Headers.MaxValueLength,
		})
		if err != nil {
			a.logger.Warn("malformed request head", zap.String("remote", peerAddr), zap.Error(err))
			return
		}

		writer := &blockingWriter{conn: netConn, done: make(chan struct{})}
		req := gohttp.New(writer)
		req.Method = head.Method
		req.Path = head.Path
		req.Version = head.Proto
		req.Headers = head.Headers
		req.Host = head.Headers.Value("Host")
		req.StartTime = time.Now()
		req.Arguments = query.New(head.RawQuery, a.cfg.Body.MaxArguments)

		req.RemoteIP, req.Protocol = peerAddr, conn.DefaultProtocol(true)
		if a.cfg.XHeaders {
			req.RemoteIP, req.Protocol = conn.OverlayXHeaders(head.Headers, peerAddr, true)
		}

		contentLength, hasContentLength := head.Headers.Get("Content-Length")
		if hasContentLength {
			n, convErr := strconv.Atoi(contentLength)
			if convErr != nil || n < 0 {
				a.logger.Warn("malformed content-length", zap.String("remote", peerAddr))
				return
			}

			if n > a.cfg.NET.MaxBufferSize {
				a.logger.Warn("payload too large", zap.String("remote", peerAddr), zap.Int("declared", n))
				return
			}

			if n > 0 {
				if head.Headers.HasToken("Expect", "100-continue") {
					if _, werr := netConn.Write([]byte("HTTP/1.1 100 (Continue)\r\n\r\n")); werr != nil {
						return
					}
				}

				body := make([]byte, n)
				if _, rerr := io.ReadFull(r, body); rerr != nil {
					return
				}

				req.Body = body

				if contentType := req.Headers.Value("Content-Type"); contentType != "" {
					decoded, ferr := form.Parse(contentType, body, a.cfg.Body.MaxArguments)
					if ferr != nil {
						a.logger.Warn("malformed request body", zap.String("remote", peerAddr), zap.Error(ferr))
						return
					}

					if form.IsURLEncoded(contentType) {
						for _, field := range decoded {
							req.Arguments.Add(field.Name, field.Value)
						}
					} else {
						req.Files = decoded
					}
				}
			}
		}

		a.callback(req)
		<-writer.done

		_, hasCL := req.Headers.Get("Content-Length")
		if !conn.DecideKeepAlive(a.cfg.NoKeepAlive, req.Version, req.Headers, req.Method, hasCL) {
			return
		}
	}
}

// readHead reads from r up to and including "\r\n\r\n", enforcing maxSize the same way the
// reactor-driven Stream does.
func readHead(r *bufio.Reader, maxSize int) ([]byte, error) {
	var out []byte

	for {
		line, err := r.ReadBytes('\n')
		out = append(out, line...)

		if len(out) > maxSize {
			return nil, io.ErrShortBuffer
		}

		if err != nil {
			return nil, err
		}

		if isBlankLine(line) {
			return out, nil
		}
	}
}

func isBlankLine(line []byte) bool {
	return (len(line) == 2 && line[0] == '\r' && line[1] == '\n') || (len(line) == 1 && line[0] == '\n')
}

// blockingWriter implements http.Writer over a blocking net.Conn, for TLS connections that
// bypass the reactor's Stream entirely. Every write happens synchronously on the connection's
// own goroutine, so there is no write queue to drain: FinishResponse closes done immediately.
type blockingWriter struct {
	conn net.Conn
	done chan struct{}
}

func (w *blockingWriter) WriteChunk(chunk []byte, cb func(error)) {
	_, err := w.conn.Write(chunk)
	if cb != nil {
		cb(err)
	}
}

func (w *blockingWriter) FinishResponse() {
	close(w.done)
}
