// Package server owns the client-facing transports: the TCP listener the
// spec's wire protocol rides on, and the WebSocket gateway that carries the
// same frames for browser clients. Both hand connections to ordinary chat
// sessions; past the wire layer they are indistinguishable.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/parley-chat/parley/internal/v1/metrics"
	"github.com/parley-chat/parley/internal/v1/room"
	"github.com/parley-chat/parley/internal/v1/session"
	"github.com/parley-chat/parley/internal/v1/wire"
)

// Listener accepts TCP connections and runs one chat session per
// connection. No connection cap is imposed here; operators configure FD
// limits.
type Listener struct {
	addr         string
	manager      *room.Manager
	writeTimeout time.Duration
	sessionBuf   int

	mu    sync.Mutex
	ln    net.Listener
	ready chan struct{} // closed once the socket is bound
}

// NewListener builds a listener bound later by Serve.
func NewListener(addr string, manager *room.Manager, writeTimeout time.Duration, sessionBuf int) *Listener {
	return &Listener{
		addr:         addr,
		manager:      manager,
		writeTimeout: writeTimeout,
		sessionBuf:   sessionBuf,
		ready:        make(chan struct{}),
	}
}

// Addr returns the bound address, or nil before Serve has bound the socket.
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

// Ready is closed once the socket is bound; the readiness probe waits on it.
func (l *Listener) Ready() <-chan struct{} {
	return l.ready
}

// Serve binds the socket and accepts until ctx is cancelled, then waits for
// every session to finish its Closing phase before returning.
func (l *Listener) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", l.addr)
	if err != nil {
		return fmt.Errorf("binding chat listener on %s: %w", l.addr, err)
	}
	l.mu.Lock()
	l.ln = ln
	l.mu.Unlock()
	close(l.ready)
	slog.Info("chat listener accepting", "addr", ln.Addr().String())

	// Cancellation closes the socket, which unblocks Accept.
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	var sessions sync.WaitGroup
	for {
		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			slog.Warn("accept failed", "error", err)
			continue
		}

		metrics.IncConnection("tcp")
		sessions.Add(1)
		go func() {
			defer sessions.Done()
			defer metrics.DecConnection("tcp")

			sess := session.New(wire.NewConn(nc, l.writeTimeout), l.manager, l.sessionBuf)
			if err := sess.Run(ctx); err != nil {
				slog.Debug("session ended with error", "remote", nc.RemoteAddr().String(), "error", err)
			}
		}()
	}

	slog.Info("chat listener draining sessions")
	sessions.Wait()
	slog.Info("chat listener stopped")
	return nil
}
