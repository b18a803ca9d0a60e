// Command loomd runs a bare loom server: one request callback that answers every request with
// a fixed body, wired up purely to exercise the engine's flags and shutdown path. Anything
// resembling routing belongs in the caller's own callback, not in this binary.
package main

import (
	"crypto/tls"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/loomhttp/loom"
	"github.com/loomhttp/loom/config"
	gohttp "github.com/loomhttp/loom/http"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		addr          string
		idleTimeout   time.Duration
		maxBufferSize int
		noKeepAlive   bool
		xHeaders      bool
		loops         int
		tlsCert       string
		tlsKey        string
		verbose       bool
	)

	cmd := &cobra.Command{
		Use:   "loomd",
		Short: "loomd runs a minimal loom HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(verbose)
			if err != nil {
				return fmt.Errorf("build logger: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			cfg := config.Default()
			cfg.Logger = logger
			cfg.NoKeepAlive = noKeepAlive
			cfg.XHeaders = xHeaders
			if idleTimeout > 0 {
				cfg.NET.IdleTimeout = idleTimeout
			}
			if maxBufferSize > 0 {
				cfg.NET.MaxBufferSize = maxBufferSize
			}

			if (tlsCert == "") != (tlsKey == "") {
				return fmt.Errorf("--tls-cert and --tls-key must be given together")
			}
			if tlsCert != "" {
				cert, err := tls.LoadX509KeyPair(tlsCert, tlsKey)
				if err != nil {
					return fmt.Errorf("load TLS keypair: %w", err)
				}
				cfg.TLSConfig = &tls.Config{Certificates: []tls.Certificate{cert}}
			}

			app := loom.New(addr, echoCallback).Tune(cfg).Loops(loops)
			app.NotifyOnStart(func() {
				logger.Info("loomd started", zap.String("addr", addr), zap.Int("loops", loops))
			})
			app.NotifyOnStop(func() {
				logger.Info("loomd stopped")
			})

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer cancel()

			g, gctx := errgroup.WithContext(ctx)
			g.Go(app.Serve)
			g.Go(func() error {
				<-gctx.Done()
				app.Stop()
				return nil
			})

			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "address to listen on")
	cmd.Flags().DurationVar(&idleTimeout, "idle-timeout", 0, "idle timeout for kept-alive connections (0 keeps the default)")
	cmd.Flags().IntVar(&maxBufferSize, "max-buffer-size", 0, "read buffer cap in bytes (0 keeps the default)")
	cmd.Flags().BoolVar(&noKeepAlive, "no-keep-alive", false, "close every connection after one response")
	cmd.Flags().BoolVar(&xHeaders, "x-headers", false, "trust X-Real-Ip/X-Forwarded-* from a reverse proxy")
	cmd.Flags().IntVar(&loops, "loops", 1, "number of reactor loops, each bound with SO_REUSEPORT when >1")
	cmd.Flags().StringVar(&tlsCert, "tls-cert", "", "TLS certificate path")
	cmd.Flags().StringVar(&tlsKey, "tls-key", "", "TLS private key path")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "enable debug-level logging")

	return cmd
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}

	return zap.NewProduction()
}

func echoCallback(req *gohttp.Request) {
	req.Response.ContentType("text/plain; charset=utf-8")
	req.Write([]byte("loomd is up\n"))
	req.Finish()
}
