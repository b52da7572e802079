package domain

import (
	"errors"
	"fmt"
	"testing"
)

// =============================================================================
// Media Tests
// =============================================================================

func TestNormalizeKind(t *testing.T) {
	tests := []struct {
		raw  string
		want MediaKind
	}{
		{"video", MediaKindVideo},
		{"mp4", MediaKindVideo},
		{"webm", MediaKindVideo},
		{"mov", MediaKindVideo},
		{" Video ", MediaKindVideo},
		{"MP4", MediaKindVideo},
		{"image", MediaKindImage},
		{"jpg", MediaKindImage},
		{"photo", MediaKindImage},
		{"", MediaKindImage},
		{"gif", MediaKindImage},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := NormalizeKind(tt.raw); got != tt.want {
				t.Errorf("NormalizeKind(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestMediaKind_MIMETypeAndExtension(t *testing.T) {
	if got := MediaKindVideo.MIMEType(); got != "video/mp4" {
		t.Errorf("video MIME = %q", got)
	}
	if got := MediaKindImage.MIMEType(); got != "image/jpeg" {
		t.Errorf("image MIME = %q", got)
	}
	if got := MediaKindVideo.Extension(); got != "mp4" {
		t.Errorf("video ext = %q", got)
	}
	if got := MediaKindImage.Extension(); got != "jpg" {
		t.Errorf("image ext = %q", got)
	}
}

func TestMediaDescriptor_SlotFilename(t *testing.T) {
	tests := []struct {
		name string
		kind MediaKind
		slot int
		want string
	}{
		{"first video", MediaKindVideo, 0, "video_1.mp4"},
		{"third image", MediaKindImage, 2, "image_3.jpg"},
		{"tenth video", MediaKindVideo, 9, "video_10.mp4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := MediaDescriptor{Kind: tt.kind}
			if got := d.SlotFilename(tt.slot); got != tt.want {
				t.Errorf("SlotFilename(%d) = %q, want %q", tt.slot, got, tt.want)
			}
		})
	}
}

// =============================================================================
// Error Tests
// =============================================================================

func TestProxyError_Is(t *testing.T) {
	err := fmt.Errorf("resolve: %w", NewProxyError(KindQuotaExceeded, 0, "cap hit"))

	if !errors.Is(err, ErrQuotaExceeded) {
		t.Error("expected errors.Is to match ErrQuotaExceeded")
	}
	if errors.Is(err, ErrRateLimited) {
		t.Error("quota error should not match ErrRateLimited")
	}
	if KindOf(err) != KindQuotaExceeded {
		t.Errorf("KindOf = %q", KindOf(err))
	}
}

func TestProxyError_Error(t *testing.T) {
	err := NewProxyError(KindUpstreamFailure, 404, "Failed to fetch media: 404")
	want := "upstream_failure (status 404): Failed to fetch media: 404"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if StatusOf(err) != 404 {
		t.Errorf("StatusOf = %d, want 404", StatusOf(err))
	}
}

func TestKindOf_Sentinels(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{ErrInvalidInput, KindInvalidInput},
		{fmt.Errorf("wrap: %w", ErrRateLimited), KindRateLimited},
		{errors.New("boom"), KindProxyInternal},
		{WrapProxyError(KindUpstreamFailure, ErrNoMedia), KindUpstreamFailure},
	}

	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("KindOf(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"quota", NewProxyError(KindQuotaExceeded, 200, "x"), MessageQuotaExceeded},
		{"rate limited", NewProxyError(KindRateLimited, 429, "x"), MessageRateLimited},
		{"invalid", ErrInvalidInput, MessageInvalidPost},
		{"no media", WrapProxyError(KindUpstreamFailure, ErrNoMedia), "No media found in the response"},
		{"upstream message", NewProxyError(KindUpstreamFailure, 500, "Failed to fetch from Instagram"), "Failed to fetch from Instagram"},
		{"plain", errors.New("boom"), MessageGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.want {
				t.Errorf("UserMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

// =============================================================================
// Transfer Tests
// =============================================================================

func TestTransferJob_Advance(t *testing.T) {
	items := make([]MediaDescriptor, 4)
	job := NewTransferJob("job-1", items)

	if job.Status != TransferStatusRunning {
		t.Fatalf("Status = %q, want running", job.Status)
	}

	job.Advance(true)
	job.Advance(false)
	if job.CurrentIndex != 2 || job.SuccessCount != 1 {
		t.Errorf("index=%d success=%d, want 2/1", job.CurrentIndex, job.SuccessCount)
	}
	if job.Progress != 50 {
		t.Errorf("Progress = %v, want 50", job.Progress)
	}

	job.Advance(true)
	job.Advance(true)
	job.Advance(true) // past the end is ignored
	if job.CurrentIndex != 4 || job.SuccessCount != 3 {
		t.Errorf("index=%d success=%d, want 4/3", job.CurrentIndex, job.SuccessCount)
	}
	if !job.Done() {
		t.Error("job should be done")
	}
	if job.Progress != 100 {
		t.Errorf("Progress = %v, want 100", job.Progress)
	}
}

func TestTransferJob_Reset(t *testing.T) {
	job := NewTransferJob("job-1", make([]MediaDescriptor, 2))
	job.Advance(true)
	job.Reset()

	if job.Status != TransferStatusIdle || job.CurrentIndex != 0 || job.SuccessCount != 0 || job.Progress != 0 {
		t.Errorf("unexpected state after reset: %+v", job)
	}
}

func TestTransferJob_SnapshotCopiesItems(t *testing.T) {
	items := []MediaDescriptor{{SourceURL: "a"}}
	job := NewTransferJob("job-1", items)
	snap := job.Snapshot()
	snap.Items[0].SourceURL = "changed"

	if job.Items[0].SourceURL != "a" {
		t.Error("snapshot should not alias job items")
	}
}

func TestOutcomeFor(t *testing.T) {
	tests := []struct {
		succeeded, total int
		want             TransferOutcome
	}{
		{3, 3, TransferOutcomeAll},
		{2, 3, TransferOutcomePartial},
		{0, 3, TransferOutcomeNone},
		{0, 0, TransferOutcomeNone},
	}

	for _, tt := range tests {
		if got := OutcomeFor(tt.succeeded, tt.total); got != tt.want {
			t.Errorf("OutcomeFor(%d, %d) = %q, want %q", tt.succeeded, tt.total, got, tt.want)
		}
	}
}
