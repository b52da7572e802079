package ui

import (
	"strings"
	"testing"

	"github.com/xinstan/xinstan/internal/domain"
	"github.com/xinstan/xinstan/internal/objectstore"
	"github.com/xinstan/xinstan/internal/preview"
)

func TestFormatProgress(t *testing.T) {
	idle := formatProgress(domain.TransferJob{Status: domain.TransferStatusIdle})
	if !strings.Contains(idle, "No bulk download running") {
		t.Errorf("idle text = %q", idle)
	}

	job := domain.NewTransferJob("j", make([]domain.MediaDescriptor, 4))
	job.Advance(true)
	job.Advance(false)

	got := formatProgress(*job)
	if !strings.Contains(got, " 50%") || !strings.Contains(got, "2/4 files, 1 ok") {
		t.Errorf("running text = %q", got)
	}
	if strings.Count(got, "█") != progressWidth/2 {
		t.Errorf("filled cells = %d, want %d", strings.Count(got, "█"), progressWidth/2)
	}
}

func TestFormatPreview(t *testing.T) {
	d := domain.MediaDescriptor{
		SourceURL:    "https://scontent.cdninstagram.com/v.mp4",
		Kind:         domain.MediaKindVideo,
		QualityLabel: "720p",
	}

	tests := []struct {
		name    string
		session preview.Session
		size    int
		want    []string
	}{
		{
			name:    "idle",
			session: preview.Session{State: preview.StateIdle},
			size:    -1,
			want:    []string{"Nothing previewed"},
		},
		{
			name:    "loading",
			session: preview.Session{State: preview.StateLoading, Descriptor: d, Slot: 1},
			size:    -1,
			want:    []string{"Loading", "video_2.mp4", "720p"},
		},
		{
			name:    "ready",
			session: preview.Session{State: preview.StateReady, Descriptor: d, Handle: objectstore.Handle("blob:xinstan/abc")},
			size:    1500000,
			want:    []string{"Ready", "1.5 MB", "blob:xinstan/abc", "to save"},
		},
		{
			name: "fallback",
			session: preview.Session{
				State:       preview.StateFallback,
				Descriptor:  d,
				FallbackURL: d.SourceURL,
				Err:         domain.NewProxyError(domain.KindRateLimited, 429, "slow down"),
			},
			size: -1,
			want: []string{"Preview unavailable", domain.MessageRateLimited, "open it in the browser"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatPreview(tt.session, tt.size, "")
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("missing %q in %q", w, got)
				}
			}
		})
	}
}

func TestShorten(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"abcdefghij", 8, "abcde..."},
		{"abcdef", 3, "abc"},
	}
	for _, tt := range tests {
		if got := shorten(tt.in, tt.n); got != tt.want {
			t.Errorf("shorten(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
