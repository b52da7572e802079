package domain

import "time"

// TransferStatus represents the current state of a bulk transfer job.
type TransferStatus string

const (
	TransferStatusIdle      TransferStatus = "idle"
	TransferStatusRunning   TransferStatus = "running"
	TransferStatusCompleted TransferStatus = "completed"
)

// TransferJob is the state of one bulk download run.
// CurrentIndex only moves forward and never exceeds len(Items);
// SuccessCount never exceeds CurrentIndex.
type TransferJob struct {
	ID           string
	Items        []MediaDescriptor
	CurrentIndex int
	SuccessCount int
	Progress     float64 // 0 to 100
	Status       TransferStatus
	StartedAt    time.Time
	UpdatedAt    time.Time
}

// NewTransferJob creates a running job over items.
func NewTransferJob(id string, items []MediaDescriptor) *TransferJob {
	now := time.Now()
	return &TransferJob{
		ID:        id,
		Items:     items,
		Status:    TransferStatusRunning,
		StartedAt: now,
		UpdatedAt: now,
	}
}

// Total returns the number of items in the job.
func (j *TransferJob) Total() int {
	return len(j.Items)
}

// Advance records the outcome of the item at CurrentIndex and moves to the next one.
func (j *TransferJob) Advance(succeeded bool) {
	if j.CurrentIndex >= len(j.Items) {
		return
	}
	if succeeded {
		j.SuccessCount++
	}
	j.CurrentIndex++
	if len(j.Items) > 0 {
		j.Progress = float64(j.CurrentIndex) / float64(len(j.Items)) * 100
	}
	j.UpdatedAt = time.Now()
}

// Done returns true once every item has been attempted.
func (j *TransferJob) Done() bool {
	return j.CurrentIndex >= len(j.Items)
}

// MarkCompleted updates the job status to completed.
func (j *TransferJob) MarkCompleted() {
	j.Status = TransferStatusCompleted
	j.UpdatedAt = time.Now()
}

// Reset returns the job to its idle state.
func (j *TransferJob) Reset() {
	j.ID = ""
	j.Items = nil
	j.CurrentIndex = 0
	j.SuccessCount = 0
	j.Progress = 0
	j.Status = TransferStatusIdle
	j.UpdatedAt = time.Now()
}

// Snapshot returns a copy safe to hand to observers.
func (j *TransferJob) Snapshot() TransferJob {
	cp := *j
	cp.Items = append([]MediaDescriptor(nil), j.Items...)
	return cp
}

// TransferOutcome is the final tri-state result of a bulk job, plus cancellation.
type TransferOutcome string

const (
	TransferOutcomeAll       TransferOutcome = "all"
	TransferOutcomePartial   TransferOutcome = "partial"
	TransferOutcomeNone      TransferOutcome = "none"
	TransferOutcomeCancelled TransferOutcome = "cancelled"
)

// TransferSummary reports how a bulk job ended.
type TransferSummary struct {
	JobID     string
	Total     int
	Attempted int
	Succeeded int
	Outcome   TransferOutcome
}

// Failed returns the number of attempted items that failed.
func (s TransferSummary) Failed() int {
	return s.Attempted - s.Succeeded
}

// OutcomeFor classifies a finished job.
func OutcomeFor(succeeded, total int) TransferOutcome {
	switch {
	case total > 0 && succeeded == total:
		return TransferOutcomeAll
	case succeeded > 0:
		return TransferOutcomePartial
	default:
		return TransferOutcomeNone
	}
}
