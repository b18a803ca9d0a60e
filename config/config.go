// Package config holds the tunables accepted on server construction. You should always start
// from Default() and override individual fields rather than constructing a Config from scratch.
package config

import (
	"crypto/tls"
	"time"

	"go.uber.org/zap"
)

type (
	// Headers governs header-block parsing limits.
	Headers struct {
		// MaxCount caps the number of distinct header lines accepted per request.
		MaxCount int
		// MaxKeyLength caps a single header key's length in bytes.
		MaxKeyLength int
		// MaxValueLength caps a single header value's length in bytes.
		MaxValueLength int
	}

	// URI governs request-line parsing limits.
	URI struct {
		// MaxLength is a request URI (path + query) length in bytes. Default/Fill populate
		// it, but the request-line parser does not check it: a URI is bounded only by
		// NET.MaxBufferSize.
		MaxLength int
	}

	// Body governs request body handling.
	Body struct {
		// MaxArguments caps the number of key/value pairs accepted from a single query
		// string or form body, guarding against hash-flooding. Defaults to 256; exposed
		// here only so tests can shrink it.
		MaxArguments int
	}

	// NET governs the raw socket/stream layer.
	NET struct {
		// MaxBufferSize is the hard cap on a Stream's read buffer; a request whose
		// Content-Length exceeds it is rejected with ErrPayloadTooLarge before any read
		// is issued, and an unread buffer that would cross it closes the stream with
		// ErrBufferOverflow.
		MaxBufferSize int
		// ReadChunkSize is the size of the scratch buffer used for each non-blocking
		// socket read.
		ReadChunkSize int
		// IdleTimeout bounds how long a connection, freshly accepted or kept alive, may sit
		// in AwaitingHeaders before being force-closed.
		IdleTimeout time.Duration
	}
)

// Config holds every tunable accepted by the engine.
type Config struct {
	Headers Headers
	URI     URI
	Body    Body
	NET     NET

	// NoKeepAlive, when true, closes the connection after every response regardless of
	// what the keep-alive truth table would otherwise decide.
	NoKeepAlive bool
	// XHeaders, when true, trusts X-Real-Ip/X-Forwarded-* headers from a reverse proxy.
	XHeaders bool
	// TLSConfig, when non-nil, causes the listener to be wrapped with crypto/tls; TLS
	// connections are then served by a blocking goroutine-per-connection loop instead of a
	// reactor-driven Stream. Certificate provisioning is the caller's responsibility; this
	// engine only wraps the socket it's handed a config for.
	TLSConfig *tls.Config
	// Logger receives structured diagnostics from every layer. Defaults to a no-op
	// logger so the engine never requires a caller to configure logging.
	Logger *zap.Logger
}

// Default returns a Config with conservative, well-tested defaults.
func Default() *Config {
	return &Config{
		Headers: Headers{
			MaxCount:       100,
			MaxKeyLength:   256,
			MaxValueLength: 8 * 1024,
		},
		URI: URI{
			MaxLength: 16 * 1024,
		},
		Body: Body{
			MaxArguments: 256,
		},
		NET: NET{
			MaxBufferSize: 100 * 1024 * 1024, // 100 MiB
			ReadChunkSize: 4 * 1024,
			IdleTimeout:   75 * time.Second,
		},
		Logger: zap.NewNop(),
	}
}

// Fill replaces zero-valued fields of cfg with Default()'s values and returns cfg.
func Fill(cfg *Config) *Config {
	def := Default()

	if cfg.Headers.MaxCount == 0 {
		cfg.Headers.MaxCount = def.Headers.MaxCount
	}
	if cfg.Headers.MaxKeyLength == 0 {
		cfg.Headers.MaxKeyLength = def.Headers.MaxKeyLength
	}
	if cfg.Headers.MaxValueLength == 0 {
		cfg.Headers.MaxValueLength = def.Headers.MaxValueLength
	}
	if cfg.URI.MaxLength == 0 {
		cfg.URI.MaxLength = def.URI.MaxLength
	}
	if cfg.Body.MaxArguments == 0 {
		cfg.Body.MaxArguments = def.Body.MaxArguments
	}
	if cfg.NET.MaxBufferSize == 0 {
		cfg.NET.MaxBufferSize = def.NET.MaxBufferSize
	}
	if cfg.NET.ReadChunkSize == 0 {
		cfg.NET.ReadChunkSize = def.NET.ReadChunkSize
	}
	if cfg.NET.IdleTimeout == 0 {
		cfg.NET.IdleTimeout = def.NET.IdleTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = def.Logger
	}

	return cfg
}
