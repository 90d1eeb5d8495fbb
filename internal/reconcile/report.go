package reconcile

import (
	"context"
	"errors"
	"sync"
)

// Phase names the reconciliation step an item failure happened in.
type Phase string

const (
	PhaseValidate Phase = "validate"
	PhaseDelete   Phase = "delete"
	PhaseCaption  Phase = "caption"
	PhaseAdd      Phase = "add"
	PhaseRead     Phase = "read"
)

// FailureKind classifies an item failure.
type FailureKind string

const (
	KindStoreFailure FailureKind = "store_failure"
	KindTimeout      FailureKind = "timeout"
	KindCanceled     FailureKind = "canceled"
	KindValidation   FailureKind = "validation"
)

// Failure is one attachment-level operation that did not complete.
type Failure struct {
	Phase        Phase       `json:"phase"`
	AttachmentID int64       `json:"attachment_id,omitempty"`
	Filename     string      `json:"filename,omitempty"`
	BlobKey      string      `json:"blob_key,omitempty"`
	Kind         FailureKind `json:"kind"`
	Error        string      `json:"error"`
}

// Report collects item failures of one request. The zero value is an empty report.
type Report struct {
	Failures []Failure `json:"failures"`
}

// Empty reports whether nothing failed.
func (r Report) Empty() bool {
	return len(r.Failures) == 0
}

// Len returns the number of failures.
func (r Report) Len() int {
	return len(r.Failures)
}

// Append adds failures produced outside the reconciler, such as delta parse errors.
func (r *Report) Append(failures ...Failure) {
	r.Failures = append(r.Failures, failures...)
}

// ValidationFailure builds a failure for malformed client input.
func ValidationFailure(phase Phase, err error) Failure {
	return Failure{Phase: phase, Kind: KindValidation, Error: err.Error()}
}

// reportBuilder is the concurrency-safe collector used while phases run.
type reportBuilder struct {
	mu       sync.Mutex
	failures []Failure
}

func (b *reportBuilder) add(f Failure) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = append(b.failures, f)
	failuresTotal.WithLabelValues(string(f.Phase), string(f.Kind)).Inc()
}

func (b *reportBuilder) report() Report {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Failure, len(b.failures))
	copy(out, b.failures)
	return Report{Failures: out}
}

// classify maps an error to its failure kind.
func classify(err error) FailureKind {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	default:
		return KindStoreFailure
	}
}
