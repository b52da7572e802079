package handler

import (
	"context"
	"io"
	"log/slog"

	"github.com/xinstan/xinstan/internal/proxy"
	"github.com/xinstan/xinstan/pkg/rapidapi"
)

// testLogger returns a silent logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockMediaProxy is a test implementation of MediaProxy.
type mockMediaProxy struct {
	result *proxy.Result
	err    error
	calls  int
	last   proxy.Request
}

func (m *mockMediaProxy) Fetch(ctx context.Context, req proxy.Request) (*proxy.Result, error) {
	m.calls++
	m.last = req
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

// mockConverter is a test implementation of rapidapi.Client.
type mockConverter struct {
	configured bool
	resp       *rapidapi.Response
	err        error
	calls      int
	lastURL    string
}

func (m *mockConverter) Configured() bool {
	return m.configured
}

func (m *mockConverter) Convert(ctx context.Context, postURL string) (*rapidapi.Response, error) {
	m.calls++
	m.lastURL = postURL
	if m.err != nil {
		return nil, m.err
	}
	return m.resp, nil
}

// errReader fails after delivering its prefix.
type errReader struct {
	prefix []byte
	err    error
}

func (r *errReader) Read(p []byte) (int, error) {
	if len(r.prefix) > 0 {
		n := copy(p, r.prefix)
		r.prefix = r.prefix[n:]
		return n, nil
	}
	return 0, r.err
}

func (r *errReader) Close() error { return nil }
