// Package preview manages the single media preview of a client session: it fetches one
// item through the proxy into a local object handle and releases the handle when the
// preview is replaced or closed.
package preview

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/xinstan/xinstan/internal/domain"
	"github.com/xinstan/xinstan/internal/objectstore"
	"github.com/xinstan/xinstan/internal/transfer"
)

// ErrNoSession is returned by Download when no preview is open.
var ErrNoSession = errors.New("no preview open")

// State is the lifecycle state of a preview session.
type State string

const (
	StateIdle     State = "idle"
	StateLoading  State = "loading"
	StateReady    State = "ready"
	StateFallback State = "fallback"
	StateClosed   State = "closed"
)

// Session is a snapshot of the current preview.
type Session struct {
	Descriptor  domain.MediaDescriptor
	Slot        int
	Handle      objectstore.Handle
	FallbackURL string
	Loading     bool
	State       State
	Err         error
}

// Downloader saves previewed media.
type Downloader interface {
	DownloadOne(ctx context.Context, d domain.MediaDescriptor, slot int) (transfer.Outcome, error)
	SaveHandle(ctx context.Context, h objectstore.Handle, d domain.MediaDescriptor, slot int) (string, error)
}

// Manager owns at most one preview at a time.
type Manager struct {
	fetcher    transfer.ProxyFetcher
	store      *objectstore.Store
	downloader Downloader
	logger     *slog.Logger

	mu        sync.Mutex
	session   Session
	gen       uint64
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	observers []func(Session)
}

// NewManager creates an idle preview manager.
func NewManager(fetcher transfer.ProxyFetcher, store *objectstore.Store, downloader Downloader, logger *slog.Logger) *Manager {
	return &Manager{
		fetcher:    fetcher,
		store:      store,
		downloader: downloader,
		logger:     logger.With("component", "preview"),
		session:    Session{State: StateIdle},
	}
}

// OnChange registers fn to receive a snapshot after every state change.
func (m *Manager) OnChange(fn func(Session)) {
	m.mu.Lock()
	m.observers = append(m.observers, fn)
	m.mu.Unlock()
}

// Current returns the current session.
func (m *Manager) Current() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// Blob returns the object loaded for the current preview.
func (m *Manager) Blob() (objectstore.Blob, bool) {
	m.mu.Lock()
	h := m.session.Handle
	m.mu.Unlock()

	if h.IsZero() {
		return objectstore.Blob{}, false
	}
	blob, err := m.store.Get(h)
	if err != nil {
		return objectstore.Blob{}, false
	}
	return blob, true
}

// Open starts a preview of d, replacing any previous one. The fetch runs in the
// background; use Wait or OnChange to observe the result.
func (m *Manager) Open(ctx context.Context, d domain.MediaDescriptor, slot int) {
	m.mu.Lock()
	m.releaseLocked()
	m.gen++
	gen := m.gen
	fetchCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.session = Session{
		Descriptor: d,
		Slot:       slot,
		Loading:    true,
		State:      StateLoading,
	}
	snap := m.session
	m.wg.Add(1)
	m.mu.Unlock()

	m.emit(snap)
	go m.load(fetchCtx, gen, d)
}

func (m *Manager) load(ctx context.Context, gen uint64, d domain.MediaDescriptor) {
	defer m.wg.Done()

	h, err := m.fetch(ctx, d)

	m.mu.Lock()
	if gen != m.gen {
		// Superseded while in flight.
		m.mu.Unlock()
		m.store.Revoke(h)
		m.logger.Debug("discarded stale preview", "url", d.SourceURL)
		return
	}
	m.session.Loading = false
	if err != nil {
		m.session.State = StateFallback
		m.session.FallbackURL = d.SourceURL
		m.session.Err = err
		m.logger.Warn("preview fetch failed, falling back to source URL",
			"kind", domain.KindOf(err),
			"error", err,
		)
	} else {
		m.session.State = StateReady
		m.session.Handle = h
	}
	snap := m.session
	m.mu.Unlock()

	m.emit(snap)
}

func (m *Manager) fetch(ctx context.Context, d domain.MediaDescriptor) (objectstore.Handle, error) {
	media, err := m.fetcher.FetchMedia(ctx, d.SourceURL)
	if err != nil {
		return "", err
	}
	blob, err := NormalizePayload(media.Payload, d.Kind)
	if err != nil {
		return "", err
	}
	h, err := m.store.Create(blob)
	if err != nil {
		return "", domain.WrapProxyError(domain.KindProxyInternal, err)
	}
	return h, nil
}

// Close ends the current preview and releases its handle.
func (m *Manager) Close() {
	m.mu.Lock()
	m.releaseLocked()
	m.gen++
	m.session = Session{State: StateClosed}
	snap := m.session
	m.mu.Unlock()

	m.emit(snap)
}

// releaseLocked cancels the in-flight fetch and revokes the owned handle.
func (m *Manager) releaseLocked() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.store.Revoke(m.session.Handle)
	m.session.Handle = ""
}

// Download saves the previewed item. A loaded preview is saved from its handle;
// otherwise the regular single-item download path runs.
func (m *Manager) Download(ctx context.Context) (transfer.Outcome, error) {
	s := m.Current()
	if s.State == StateIdle || s.State == StateClosed {
		return "", ErrNoSession
	}

	if !s.Handle.IsZero() {
		_, err := m.downloader.SaveHandle(ctx, s.Handle, s.Descriptor, s.Slot)
		if err == nil {
			return transfer.OutcomeSaved, nil
		}
		m.logger.Warn("saving preview handle failed", "error", err)
	}
	return m.downloader.DownloadOne(ctx, s.Descriptor, s.Slot)
}

// Wait blocks until every started fetch has finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) emit(s Session) {
	m.mu.Lock()
	observers := append([]func(Session){}, m.observers...)
	m.mu.Unlock()

	for _, fn := range observers {
		fn(s)
	}
}

// NormalizePayload turns any payload shape the proxy client may return into a blob
// tagged with the kind's MIME type.
func NormalizePayload(v any, kind domain.MediaKind) (objectstore.Blob, error) {
	blob, err := objectstore.Normalize(v, kind.MIMEType())
	if err != nil {
		return objectstore.Blob{}, domain.WrapProxyError(domain.KindProxyInternal, err)
	}
	return blob, nil
}
