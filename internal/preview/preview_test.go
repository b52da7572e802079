package preview

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/xinstan/xinstan/internal/client"
	"github.com/xinstan/xinstan/internal/domain"
	"github.com/xinstan/xinstan/internal/objectstore"
	"github.com/xinstan/xinstan/internal/transfer"
)

type gatedFetcher struct {
	mu      sync.Mutex
	gates   map[string]chan struct{}
	payload any
	err     error
	calls   int
}

func (f *gatedFetcher) FetchMedia(ctx context.Context, mediaURL string) (*client.Media, error) {
	f.mu.Lock()
	f.calls++
	gate := f.gates[mediaURL]
	payload, err := f.payload, f.err
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			// A superseded fetch still completes here so the stale path is exercised.
			<-gate
		}
	}
	if err != nil {
		return nil, err
	}
	return &client.Media{Payload: payload}, nil
}

type fakeDownloader struct {
	saveHandleCalls  int
	downloadOneCalls int
	saveErr          error
	lastHandle       objectstore.Handle
	lastSlot         int
}

func (d *fakeDownloader) DownloadOne(ctx context.Context, md domain.MediaDescriptor, slot int) (transfer.Outcome, error) {
	d.downloadOneCalls++
	d.lastSlot = slot
	return transfer.OutcomeOpenedExternally, nil
}

func (d *fakeDownloader) SaveHandle(ctx context.Context, h objectstore.Handle, md domain.MediaDescriptor, slot int) (string, error) {
	d.saveHandleCalls++
	d.lastHandle = h
	d.lastSlot = slot
	if d.saveErr != nil {
		return "", d.saveErr
	}
	return "/out/" + md.SlotFilename(slot), nil
}

func newTestManager(f *gatedFetcher, store *objectstore.Store, dl *fakeDownloader) *Manager {
	return NewManager(f, store, dl, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

var (
	video = domain.MediaDescriptor{SourceURL: "https://scontent.cdninstagram.com/v.mp4", Kind: domain.MediaKindVideo}
	image = domain.MediaDescriptor{SourceURL: "https://scontent.cdninstagram.com/i.jpg", Kind: domain.MediaKindImage}
)

func TestManager_InitiallyIdle(t *testing.T) {
	m := newTestManager(&gatedFetcher{}, objectstore.NewStore(4), &fakeDownloader{})
	if m.Current().State != StateIdle {
		t.Errorf("state = %q, want idle", m.Current().State)
	}
	if _, err := m.Download(context.Background()); !errors.Is(err, ErrNoSession) {
		t.Errorf("err = %v, want ErrNoSession", err)
	}
}

func TestManager_OpenReady(t *testing.T) {
	store := objectstore.NewStore(4)
	f := &gatedFetcher{payload: []byte("mp4")}
	m := newTestManager(f, store, &fakeDownloader{})

	var states []State
	m.OnChange(func(s Session) { states = append(states, s.State) })

	m.Open(context.Background(), video, 0)
	m.Wait()

	s := m.Current()
	if s.State != StateReady || s.Loading {
		t.Fatalf("session = %+v, want ready", s)
	}
	if !s.Handle.Valid() {
		t.Errorf("handle %q should be valid", s.Handle)
	}

	blob, err := store.Get(s.Handle)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if blob.MIMEType() != "video/mp4" || string(blob.Bytes()) != "mp4" {
		t.Errorf("blob = %q %q", blob.MIMEType(), blob.Bytes())
	}

	if len(states) != 2 || states[0] != StateLoading || states[1] != StateReady {
		t.Errorf("states = %v, want [loading ready]", states)
	}
}

func TestManager_Blob(t *testing.T) {
	m := newTestManager(&gatedFetcher{payload: []byte("jpeg")}, objectstore.NewStore(4), &fakeDownloader{})

	if _, ok := m.Blob(); ok {
		t.Error("idle manager should have no blob")
	}

	m.Open(context.Background(), image, 0)
	m.Wait()

	blob, ok := m.Blob()
	if !ok {
		t.Fatal("expected a loaded blob")
	}
	if blob.Size() != 4 || blob.MIMEType() != "image/jpeg" {
		t.Errorf("blob size = %d, MIME = %q", blob.Size(), blob.MIMEType())
	}

	m.Close()
	if _, ok := m.Blob(); ok {
		t.Error("closed manager should have no blob")
	}
}

func TestManager_OpenFallback(t *testing.T) {
	store := objectstore.NewStore(4)
	f := &gatedFetcher{err: domain.NewProxyError(domain.KindUpstreamFailure, 403, "Failed to fetch media: 403")}
	m := newTestManager(f, store, &fakeDownloader{})

	m.Open(context.Background(), image, 1)
	m.Wait()

	s := m.Current()
	if s.State != StateFallback {
		t.Fatalf("state = %q, want fallback", s.State)
	}
	if s.FallbackURL != image.SourceURL {
		t.Errorf("FallbackURL = %q", s.FallbackURL)
	}
	if !s.Handle.IsZero() {
		t.Error("fallback should hold no handle")
	}
	if store.Len() != 0 {
		t.Errorf("handles = %d, want 0", store.Len())
	}
}

func TestManager_UnsupportedPayloadFallsBack(t *testing.T) {
	m := newTestManager(&gatedFetcher{payload: "text"}, objectstore.NewStore(4), &fakeDownloader{})

	m.Open(context.Background(), image, 0)
	m.Wait()

	s := m.Current()
	if s.State != StateFallback {
		t.Fatalf("state = %q, want fallback", s.State)
	}
	if domain.KindOf(s.Err) != domain.KindProxyInternal {
		t.Errorf("kind = %q, want proxy internal", domain.KindOf(s.Err))
	}
}

func TestManager_ReopenRevokesPrevious(t *testing.T) {
	store := objectstore.NewStore(4)
	m := newTestManager(&gatedFetcher{payload: []byte("x")}, store, &fakeDownloader{})

	m.Open(context.Background(), video, 0)
	m.Wait()
	first := m.Current().Handle

	m.Open(context.Background(), image, 1)
	m.Wait()

	if _, err := store.Get(first); !errors.Is(err, objectstore.ErrUnknownHandle) {
		t.Errorf("previous handle should be revoked, got err = %v", err)
	}
	if store.Len() != 1 {
		t.Errorf("handles = %d, want 1", store.Len())
	}
	if m.Current().Descriptor != image {
		t.Errorf("descriptor = %+v, want image", m.Current().Descriptor)
	}
}

func TestManager_StaleResultIsDiscarded(t *testing.T) {
	store := objectstore.NewStore(4)
	slow := make(chan struct{})
	f := &gatedFetcher{
		payload: []byte("x"),
		gates:   map[string]chan struct{}{video.SourceURL: slow},
	}
	m := newTestManager(f, store, &fakeDownloader{})

	m.Open(context.Background(), video, 0)
	m.Open(context.Background(), image, 1)

	// Let the superseded fetch finish after the newer one.
	close(slow)
	m.Wait()

	s := m.Current()
	if s.Descriptor != image || s.State != StateReady {
		t.Fatalf("session = %+v, want ready image", s)
	}
	if store.Len() != 1 {
		t.Errorf("handles = %d, want 1 (stale handle must be revoked)", store.Len())
	}
}

func TestManager_CloseRevokes(t *testing.T) {
	store := objectstore.NewStore(4)
	m := newTestManager(&gatedFetcher{payload: []byte("x")}, store, &fakeDownloader{})

	m.Open(context.Background(), video, 0)
	m.Wait()
	m.Close()

	if store.Len() != 0 {
		t.Errorf("handles = %d, want 0", store.Len())
	}
	if m.Current().State != StateClosed {
		t.Errorf("state = %q, want closed", m.Current().State)
	}

	// Closing again is harmless.
	m.Close()
}

func TestManager_CloseWhileLoading(t *testing.T) {
	store := objectstore.NewStore(4)
	gate := make(chan struct{})
	f := &gatedFetcher{payload: []byte("x"), gates: map[string]chan struct{}{video.SourceURL: gate}}
	m := newTestManager(f, store, &fakeDownloader{})

	m.Open(context.Background(), video, 0)
	m.Close()
	close(gate)
	m.Wait()

	if m.Current().State != StateClosed {
		t.Errorf("state = %q, want closed", m.Current().State)
	}
	if store.Len() != 0 {
		t.Errorf("handles = %d, want 0", store.Len())
	}
}

func TestManager_DownloadReusesHandle(t *testing.T) {
	dl := &fakeDownloader{}
	m := newTestManager(&gatedFetcher{payload: []byte("x")}, objectstore.NewStore(4), dl)

	m.Open(context.Background(), video, 2)
	m.Wait()

	outcome, err := m.Download(context.Background())
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if outcome != transfer.OutcomeSaved {
		t.Errorf("outcome = %q, want saved", outcome)
	}
	if dl.saveHandleCalls != 1 || dl.downloadOneCalls != 0 {
		t.Errorf("SaveHandle = %d, DownloadOne = %d", dl.saveHandleCalls, dl.downloadOneCalls)
	}
	if dl.lastHandle != m.Current().Handle || dl.lastSlot != 2 {
		t.Errorf("handle = %q slot = %d", dl.lastHandle, dl.lastSlot)
	}
}

func TestManager_DownloadWithoutHandleDelegates(t *testing.T) {
	dl := &fakeDownloader{}
	m := newTestManager(&gatedFetcher{err: errors.New("down")}, objectstore.NewStore(4), dl)

	m.Open(context.Background(), image, 0)
	m.Wait()

	outcome, err := m.Download(context.Background())
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if outcome != transfer.OutcomeOpenedExternally {
		t.Errorf("outcome = %q", outcome)
	}
	if dl.downloadOneCalls != 1 || dl.saveHandleCalls != 0 {
		t.Errorf("SaveHandle = %d, DownloadOne = %d", dl.saveHandleCalls, dl.downloadOneCalls)
	}
}

func TestManager_DownloadFallsThroughOnSaveError(t *testing.T) {
	dl := &fakeDownloader{saveErr: errors.New("disk full")}
	m := newTestManager(&gatedFetcher{payload: []byte("x")}, objectstore.NewStore(4), dl)

	m.Open(context.Background(), image, 0)
	m.Wait()

	if _, err := m.Download(context.Background()); err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if dl.saveHandleCalls != 1 || dl.downloadOneCalls != 1 {
		t.Errorf("SaveHandle = %d, DownloadOne = %d", dl.saveHandleCalls, dl.downloadOneCalls)
	}
}

func TestNormalizePayload(t *testing.T) {
	tests := []struct {
		name    string
		payload any
		want    string
		wantErr bool
	}{
		{"bytes", []byte("abc"), "abc", false},
		{"blob", objectstore.NewBlob([]byte("abc"), "application/octet-stream"), "abc", false},
		{"keyed", map[string]any{"0": float64(97), "1": float64(98)}, "ab", false},
		{"string", "abc", "", true},
		{"nil", nil, "", true},
		{"keyed gap", map[string]any{"0": float64(97), "2": float64(98)}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blob, err := NormalizePayload(tt.payload, domain.MediaKindImage)
			if tt.wantErr {
				if !errors.Is(err, domain.ErrProxyInternal) {
					t.Errorf("err = %v, want ErrProxyInternal", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(blob.Bytes()) != tt.want {
				t.Errorf("bytes = %q, want %q", blob.Bytes(), tt.want)
			}
			if blob.MIMEType() != "image/jpeg" {
				t.Errorf("MIME = %q, want image/jpeg", blob.MIMEType())
			}
		})
	}
}
