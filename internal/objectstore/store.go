// Package objectstore keeps materialized media bytes addressable through short-lived
// handles until their owner revokes them.
package objectstore

import (
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// HandlePrefix starts every handle issued by a Store.
const HandlePrefix = "blob:xinstan/"

// DefaultMaxHandles is the outstanding-handle ceiling used when none is configured.
const DefaultMaxHandles = 64

// ErrTooManyHandles is returned by Create when the ceiling is reached.
var ErrTooManyHandles = errors.New("too many outstanding object handles")

// ErrUnknownHandle is returned for handles that were never issued or already revoked.
var ErrUnknownHandle = errors.New("unknown object handle")

// Blob is an immutable binary object tagged with a MIME type.
type Blob struct {
	data     []byte
	mimeType string
}

// NewBlob creates a blob. data is not copied; callers must not modify it afterwards.
func NewBlob(data []byte, mimeType string) Blob {
	return Blob{data: data, mimeType: mimeType}
}

// Bytes returns the blob contents.
func (b Blob) Bytes() []byte { return b.data }

// MIMEType returns the type the blob was tagged with.
func (b Blob) MIMEType() string { return b.mimeType }

// Size returns the number of bytes held.
func (b Blob) Size() int { return len(b.data) }

// WithType returns a blob with the same bytes and a different MIME type.
func (b Blob) WithType(mimeType string) Blob {
	return Blob{data: b.data, mimeType: mimeType}
}

// Handle is a local reference to a stored blob.
type Handle string

// IsZero reports whether h is the empty handle.
func (h Handle) IsZero() bool { return h == "" }

// Valid reports whether h has the shape of a handle issued by a Store.
func (h Handle) Valid() bool {
	return strings.HasPrefix(string(h), HandlePrefix) && len(h) > len(HandlePrefix)
}

func (h Handle) String() string { return string(h) }

// Store holds blobs keyed by handle.
type Store struct {
	mu      sync.RWMutex
	objects map[Handle]Blob
	max     int
}

// NewStore creates a store that refuses to hold more than maxHandles blobs at once.
func NewStore(maxHandles int) *Store {
	if maxHandles <= 0 {
		maxHandles = DefaultMaxHandles
	}
	return &Store{
		objects: make(map[Handle]Blob),
		max:     maxHandles,
	}
}

// Create stores b and returns a new handle for it.
func (s *Store) Create(b Blob) (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.objects) >= s.max {
		return "", ErrTooManyHandles
	}

	h := Handle(HandlePrefix + uuid.NewString())
	s.objects[h] = b
	return h, nil
}

// Get returns the blob behind h.
func (s *Store) Get(h Handle) (Blob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.objects[h]
	if !ok {
		return Blob{}, ErrUnknownHandle
	}
	return b, nil
}

// Revoke releases h. Revoking an unknown or already revoked handle is a no-op,
// so every exit path may revoke unconditionally.
func (s *Store) Revoke(h Handle) {
	if h.IsZero() {
		return
	}
	s.mu.Lock()
	delete(s.objects, h)
	s.mu.Unlock()
}

// Len returns the number of outstanding handles.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
