// Package testutil provides shared helpers for package tests.
package testutil

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"testing"
)

// IPv4Server is a loopback HTTP server pinned to 127.0.0.1. It avoids the
// dual-stack ambiguity of httptest.NewServer on hosts where ::1 resolves
// differently from 127.0.0.1.
type IPv4Server struct {
	URL string

	srv    *http.Server
	httpc  *http.Client
	served chan struct{}
	once   sync.Once
}

// NewIPv4Server starts a server for handler on an ephemeral IPv4 port.
// The test is skipped when no IPv4 loopback listener can be opened.
func NewIPv4Server(t *testing.T, handler http.Handler) *IPv4Server {
	t.Helper()
	if handler == nil {
		handler = http.NotFoundHandler()
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("no IPv4 loopback: %v", err)
	}
	s := &IPv4Server{
		URL:    "http://" + ln.Addr().String(),
		srv:    &http.Server{Handler: handler},
		httpc:  &http.Client{Transport: &http.Transport{}},
		served: make(chan struct{}),
	}
	go func() {
		defer close(s.served)
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Logf("testutil: serve: %v", err)
		}
	}()
	return s
}

// Client returns a client with a private transport, so closed test servers
// never leave pooled connections behind for later tests.
func (s *IPv4Server) Client() *http.Client {
	return s.httpc
}

// Close stops the server and waits for the accept loop to exit. Safe to
// call more than once.
func (s *IPv4Server) Close() {
	s.once.Do(func() {
		_ = s.srv.Shutdown(context.Background())
		<-s.served
		s.httpc.CloseIdleConnections()
	})
}
