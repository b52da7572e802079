// Package transfer downloads resolved media through the proxy, one item at a time
// or as a sequential bulk job.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xinstan/xinstan/internal/domain"
	"github.com/xinstan/xinstan/internal/objectstore"
)

// DefaultPause is the delay inserted between bulk items.
const DefaultPause = 500 * time.Millisecond

var (
	// ErrJobRunning is returned when a bulk download is requested while one is in progress.
	ErrJobRunning = errors.New("a bulk download is already running")

	// ErrNoItems is returned when a bulk download is requested for an empty list.
	ErrNoItems = errors.New("no media to download")
)

// Outcome is the result of a single-item download.
type Outcome string

const (
	OutcomeSaved            Outcome = "saved"
	OutcomeOpenedExternally Outcome = "opened_externally"
)

// User-facing notices.
const (
	MessageMediaFound      = "Media found! Click to download."
	MessageOpeningFallback = "Opening media in new tab..."
)

// Orchestrator owns the resolved media list and the bulk job state of one client session.
type Orchestrator struct {
	fetcher  ProxyFetcher
	resolver Resolver
	store    *objectstore.Store
	saver    Saver
	opener   Opener
	notifier Notifier
	pause    time.Duration
	logger   *slog.Logger

	// sleep waits between bulk items; replaced in tests
	sleep func(ctx context.Context, d time.Duration) error

	mu        sync.Mutex
	items     []domain.MediaDescriptor
	job       domain.TransferJob
	stopJob   context.CancelFunc
	observers []func(domain.TransferJob)
}

// New creates an orchestrator. A negative pause is treated as zero.
func New(
	fetcher ProxyFetcher,
	resolver Resolver,
	store *objectstore.Store,
	saver Saver,
	opener Opener,
	notifier Notifier,
	pause time.Duration,
	logger *slog.Logger,
) *Orchestrator {
	if pause < 0 {
		pause = 0
	}
	if notifier == nil {
		notifier = NotifierFunc(func(Level, string) {})
	}
	return &Orchestrator{
		fetcher:  fetcher,
		resolver: resolver,
		store:    store,
		saver:    saver,
		opener:   opener,
		notifier: notifier,
		pause:    pause,
		logger:   logger.With("component", "transfer"),
		sleep:    sleepContext,
		job:      domain.TransferJob{Status: domain.TransferStatusIdle},
	}
}

// OnProgress registers fn to receive a job snapshot after every state change.
// fn runs on the goroutine that changed the state and must not block.
func (o *Orchestrator) OnProgress(fn func(domain.TransferJob)) {
	o.mu.Lock()
	o.observers = append(o.observers, fn)
	o.mu.Unlock()
}

// Snapshot returns a copy of the current job state.
func (o *Orchestrator) Snapshot() domain.TransferJob {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.job.Snapshot()
}

// Items returns the currently resolved media list.
func (o *Orchestrator) Items() []domain.MediaDescriptor {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]domain.MediaDescriptor(nil), o.items...)
}

// Resolve replaces the held media list with the resolution of postURL.
// On failure the list is left empty and the classified message is surfaced.
func (o *Orchestrator) Resolve(ctx context.Context, postURL string) ([]domain.MediaDescriptor, error) {
	o.mu.Lock()
	o.items = nil
	o.mu.Unlock()

	items, err := o.resolver.Resolve(ctx, postURL)
	if err != nil {
		o.logger.Warn("resolve failed", "kind", domain.KindOf(err), "error", err)
		o.notifier.Notify(LevelError, domain.UserMessage(err))
		return nil, err
	}

	o.mu.Lock()
	o.items = append([]domain.MediaDescriptor(nil), items...)
	o.mu.Unlock()

	o.notifier.Notify(LevelSuccess, MessageMediaFound)
	return items, nil
}

// DownloadOne saves a single item. When the proxy path fails the source URL is
// opened directly instead and the call still succeeds. Only absolute http(s)
// source URLs are handed to the opener.
func (o *Orchestrator) DownloadOne(ctx context.Context, d domain.MediaDescriptor, slot int) (Outcome, error) {
	path, err := o.fetchAndSave(ctx, d, slot)
	if err == nil {
		o.notifier.Notify(LevelSuccess, "Saved "+path)
		return OutcomeSaved, nil
	}

	o.logger.Warn("proxy download failed, opening source directly",
		"slot", slot,
		"kind", domain.KindOf(err),
		"error", err,
	)
	if openErr := checkOpenURL(d.SourceURL); openErr != nil {
		o.notifier.Notify(LevelError, domain.MessageGeneric)
		return "", fmt.Errorf("open source url: %w", errors.Join(err, openErr))
	}
	o.notifier.Notify(LevelInfo, MessageOpeningFallback)
	if openErr := o.opener.Open(d.SourceURL); openErr != nil {
		o.notifier.Notify(LevelError, domain.MessageGeneric)
		return "", fmt.Errorf("open source url: %w", errors.Join(err, openErr))
	}
	return OutcomeOpenedExternally, nil
}

// SaveHandle saves an object that is already materialized under h. The caller keeps
// ownership of h.
func (o *Orchestrator) SaveHandle(ctx context.Context, h objectstore.Handle, d domain.MediaDescriptor, slot int) (string, error) {
	blob, err := o.store.Get(h)
	if err != nil {
		return "", err
	}
	path, err := o.saver.Save(ctx, d.SlotFilename(slot), blob)
	if err != nil {
		return "", err
	}
	o.notifier.Notify(LevelSuccess, "Saved "+path)
	return path, nil
}

// fetchAndSave runs the proxy path: fetch, materialize as a local handle tagged with
// the kind's MIME type, save, release.
func (o *Orchestrator) fetchAndSave(ctx context.Context, d domain.MediaDescriptor, slot int) (string, error) {
	media, err := o.fetcher.FetchMedia(ctx, d.SourceURL)
	if err != nil {
		return "", err
	}

	blob, err := objectstore.Normalize(media.Payload, d.Kind.MIMEType())
	if err != nil {
		return "", domain.WrapProxyError(domain.KindProxyInternal, err)
	}

	h, err := o.store.Create(blob)
	if err != nil {
		return "", domain.WrapProxyError(domain.KindProxyInternal, err)
	}
	defer o.store.Revoke(h)

	stored, err := o.store.Get(h)
	if err != nil {
		return "", domain.WrapProxyError(domain.KindProxyInternal, err)
	}
	return o.saver.Save(ctx, d.SlotFilename(slot), stored)
}

// DownloadAll saves every item in order, one at a time, pausing between items.
// A failed item is counted and skipped; it never opens the source URL.
// The job state is reset to idle when the call returns.
func (o *Orchestrator) DownloadAll(ctx context.Context, items []domain.MediaDescriptor) (domain.TransferSummary, error) {
	if len(items) == 0 {
		return domain.TransferSummary{}, ErrNoItems
	}

	o.mu.Lock()
	if o.job.Status == domain.TransferStatusRunning {
		o.mu.Unlock()
		return domain.TransferSummary{}, ErrJobRunning
	}
	id := uuid.NewString()
	o.job = *domain.NewTransferJob(id, append([]domain.MediaDescriptor(nil), items...))
	stopCtx, stop := context.WithCancel(ctx)
	o.stopJob = stop
	snap := o.job.Snapshot()
	o.mu.Unlock()
	defer stop()

	o.emit(snap)
	o.logger.Info("bulk download started", "job_id", id, "items", len(items))
	o.notifier.Notify(LevelInfo, fmt.Sprintf("Downloading %d files...", len(items)))

	summary := domain.TransferSummary{JobID: id, Total: len(items)}
	cancelled := false

	for i, d := range items {
		if stopCtx.Err() != nil {
			cancelled = true
			break
		}

		// The current item finishes even if Cancel is called meanwhile.
		_, err := o.fetchAndSave(ctx, d, i)
		summary.Attempted++
		if err != nil {
			o.logger.Warn("bulk item failed", "job_id", id, "index", i, "error", err)
		} else {
			summary.Succeeded++
		}

		o.mu.Lock()
		if o.job.ID != id {
			// Cancelled, and possibly superseded by a newer job.
			o.mu.Unlock()
			cancelled = true
			break
		}
		o.job.Advance(err == nil)
		snap = o.job.Snapshot()
		o.mu.Unlock()
		o.emit(snap)

		if i < len(items)-1 {
			if err := o.sleep(stopCtx, o.pause); err != nil {
				cancelled = true
				break
			}
		}
	}

	if cancelled {
		summary.Outcome = domain.TransferOutcomeCancelled
	} else {
		summary.Outcome = domain.OutcomeFor(summary.Succeeded, summary.Total)
	}

	o.finish(id)
	o.notifySummary(summary)
	o.logger.Info("bulk download finished",
		"job_id", id,
		"outcome", summary.Outcome,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed(),
	)
	return summary, nil
}

// Cancel stops a running bulk job from starting further items and returns the
// orchestrator to idle immediately. The item in flight is allowed to finish.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	if o.job.Status != domain.TransferStatusRunning {
		o.mu.Unlock()
		return
	}
	if o.stopJob != nil {
		o.stopJob()
		o.stopJob = nil
	}
	o.logger.Info("bulk download cancelled", "job_id", o.job.ID, "index", o.job.CurrentIndex)
	o.job.Reset()
	snap := o.job.Snapshot()
	o.mu.Unlock()

	o.emit(snap)
}

// finish resets the job if it is still the one identified by id.
func (o *Orchestrator) finish(id string) {
	o.mu.Lock()
	if o.job.ID != id {
		o.mu.Unlock()
		return
	}
	o.job.MarkCompleted()
	completed := o.job.Snapshot()
	o.job.Reset()
	o.stopJob = nil
	idle := o.job.Snapshot()
	o.mu.Unlock()

	o.emit(completed)
	o.emit(idle)
}

func (o *Orchestrator) notifySummary(s domain.TransferSummary) {
	switch s.Outcome {
	case domain.TransferOutcomeAll:
		o.notifier.Notify(LevelSuccess, fmt.Sprintf("All %d files downloaded!", s.Total))
	case domain.TransferOutcomePartial:
		o.notifier.Notify(LevelInfo, fmt.Sprintf("Downloaded %d of %d files", s.Succeeded, s.Total))
	case domain.TransferOutcomeNone:
		o.notifier.Notify(LevelError, "Failed to download files")
	case domain.TransferOutcomeCancelled:
		o.notifier.Notify(LevelInfo, fmt.Sprintf("Download cancelled after %d of %d files", s.Attempted, s.Total))
	}
}

func (o *Orchestrator) emit(job domain.TransferJob) {
	o.mu.Lock()
	observers := append([]func(domain.TransferJob){}, o.observers...)
	o.mu.Unlock()

	for _, fn := range observers {
		fn(job)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
