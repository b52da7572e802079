package transfer

import (
	"context"

	"github.com/xinstan/xinstan/internal/client"
	"github.com/xinstan/xinstan/internal/domain"
	"github.com/xinstan/xinstan/internal/objectstore"
)

// ProxyFetcher pulls one media item through the proxy.
type ProxyFetcher interface {
	FetchMedia(ctx context.Context, mediaURL string) (*client.Media, error)
}

// Resolver turns a post URL into media descriptors.
type Resolver interface {
	Resolve(ctx context.Context, postURL string) ([]domain.MediaDescriptor, error)
}

// Saver persists a materialized object under filename and returns where it went.
type Saver interface {
	Save(ctx context.Context, filename string, blob objectstore.Blob) (string, error)
}

// Opener shows a remote URL to the user directly, bypassing the proxy.
type Opener interface {
	Open(url string) error
}

// Level is the severity of a user-facing notice.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notifier surfaces user-facing notices.
type Notifier interface {
	Notify(level Level, message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(level Level, message string)

// Notify calls f.
func (f NotifierFunc) Notify(level Level, message string) { f(level, message) }
