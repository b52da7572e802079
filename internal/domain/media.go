package domain

import (
	"strconv"
	"strings"
)

// MediaKind is the normalized kind of a discoverable media item.
type MediaKind string

const (
	MediaKindImage MediaKind = "image"
	MediaKindVideo MediaKind = "video"
)

// String returns the string representation of the MediaKind.
func (k MediaKind) String() string {
	return string(k)
}

// NormalizeKind maps the type strings reported by the resolver API onto a MediaKind.
// "video", "mp4", "webm" and "mov" are videos; everything else is an image.
func NormalizeKind(raw string) MediaKind {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "video", "mp4", "webm", "mov":
		return MediaKindVideo
	default:
		return MediaKindImage
	}
}

// MIMEType returns the MIME type used when materializing media of this kind locally.
func (k MediaKind) MIMEType() string {
	if k == MediaKindVideo {
		return "video/mp4"
	}
	return "image/jpeg"
}

// Extension returns the file extension used for saved media of this kind.
func (k MediaKind) Extension() string {
	if k == MediaKindVideo {
		return "mp4"
	}
	return "jpg"
}

// MediaDescriptor describes one media item found in a post.
// Descriptors are immutable once created.
type MediaDescriptor struct {
	SourceURL    string    `json:"url"`
	Kind         MediaKind `json:"type"`
	ThumbnailURL string    `json:"thumbnail,omitempty"`
	QualityLabel string    `json:"quality,omitempty"`
}

// IsVideo returns true if the descriptor points at a video.
func (d MediaDescriptor) IsVideo() bool {
	return d.Kind == MediaKindVideo
}

// HasThumbnail returns true if the resolver supplied a thumbnail URL.
func (d MediaDescriptor) HasThumbnail() bool {
	return d.ThumbnailURL != ""
}

// SlotFilename returns the deterministic local filename for the item shown
// at the given 0-based slot, e.g. "video_3.mp4".
func (d MediaDescriptor) SlotFilename(slot int) string {
	return d.Kind.String() + "_" + strconv.Itoa(slot+1) + "." + d.Kind.Extension()
}
