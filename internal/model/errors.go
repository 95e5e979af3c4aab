package model

import (
	"errors"
	"fmt"
	"time"
)

// HTTPError wraps an HTTP status code so retry logic can inspect it.
type HTTPError struct {
	StatusCode int
	RetryAfter time.Duration // from Retry-After header, zero if absent
	Err        error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("HTTP %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// ErrRejected is matched by every Rejection via errors.Is.
var ErrRejected = errors.New("record rejected")

// Rejection drops a record from the pipeline without failing the run.
type Rejection struct {
	Stage  string // "validate" or "dedupe"
	Reason string
}

func (e *Rejection) Error() string {
	return fmt.Sprintf("%s: %s", e.Stage, e.Reason)
}

func (e *Rejection) Is(target error) bool {
	return target == ErrRejected
}

// Reject builds a Rejection for stage.
func Reject(stage, format string, args ...any) error {
	return &Rejection{Stage: stage, Reason: fmt.Sprintf(format, args...)}
}

// IsDuplicate reports whether err is a dedupe-stage rejection.
func IsDuplicate(err error) bool {
	var rej *Rejection
	return errors.As(err, &rej) && rej.Stage == StageDedupe
}

// Stage names used in rejections and logs.
const (
	StageValidate = "validate"
	StageDedupe   = "dedupe"
)

// PageError marks one unit of adapter work (a page or worklist entry) as failed.
type PageError struct {
	Source string
	Entity string // company, keyword or board the page belongs to
	Page   int
	Err    error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("%s %s page %d: %v", e.Source, e.Entity, e.Page, e.Err)
}

func (e *PageError) Unwrap() error {
	return e.Err
}

// Persistence targets.
const (
	TargetRelational = "relational"
	TargetSearch     = "search"
)

// PersistError carries enough context to replay a failed write by hand.
type PersistError struct {
	Target   string
	Source   string
	SourceID string
	Err      error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist %s for %s/%s: %v", e.Target, e.Source, e.SourceID, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}
