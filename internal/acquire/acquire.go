// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package acquire downloads article PDFs through an ordered cascade of
// retrieval strategies and fetches XML full text from known links. Every
// strategy reports an Outcome; network failures never escape as errors,
// while local I/O failures are returned wrapped in ErrLocalIO and an
// interrupted run returns the context error.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvalidSignature marks a downloaded file whose leading bytes do
	// not match the expected format.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrRateLimited marks a mirror response carrying a throttling signal.
	ErrRateLimited = errors.New("rate limited")

	// ErrNoDirectLink marks a record without a direct retrieval URL.
	ErrNoDirectLink = errors.New("no direct link provided")

	// ErrMirrorLookup marks a failed mirror lookup or page resolution.
	ErrMirrorLookup = errors.New("mirror lookup failed")

	// ErrLocalIO marks a failure writing to the local filesystem. It aborts the run.
	ErrLocalIO = errors.New("local I/O error")
)

// Status is the tagged result of one strategy.
type Status int

const (
	StatusSkipped Status = iota
	StatusFailed
	StatusSucceeded
)

func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	default:
		return "skipped"
	}
}

// Outcome is the result of one strategy for one article. Message is always
// set once the cascade completes.
type Outcome struct {
	Strategy string
	Status   Status
	Message  string
}

// Attempted reports whether the strategy actually ran.
func (o Outcome) Attempted() bool { return o.Status != StatusSkipped }

func (o Outcome) Succeeded() bool { return o.Status == StatusSucceeded }

func (o Outcome) String() string {
	return fmt.Sprintf("%s: %s (%s)", o.Strategy, o.Status, o.Message)
}

func skipped(name, format string, args ...any) Outcome {
	return Outcome{Strategy: name, Status: StatusSkipped, Message: fmt.Sprintf(format, args...)}
}

func failed(name, format string, args ...any) Outcome {
	return Outcome{Strategy: name, Status: StatusFailed, Message: fmt.Sprintf(format, args...)}
}

func succeeded(name, format string, args ...any) Outcome {
	return Outcome{Strategy: name, Status: StatusSucceeded, Message: fmt.Sprintf(format, args...)}
}

// DownloadResult holds one Outcome per strategy in cascade order.
type DownloadResult struct {
	Outcomes []Outcome
}

// Success reports whether any strategy succeeded.
func (r DownloadResult) Success() bool {
	for _, o := range r.Outcomes {
		if o.Succeeded() {
			return true
		}
	}
	return false
}

// Outcome returns the outcome of the named strategy.
func (r DownloadResult) Outcome(name string) (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.Strategy == name {
			return o, true
		}
	}
	return Outcome{}, false
}

// String joins every outcome for status lines.
func (r DownloadResult) String() string {
	parts := make([]string, len(r.Outcomes))
	for i, o := range r.Outcomes {
		parts[i] = o.String()
	}
	return strings.Join(parts, "; ")
}

// Target is the article a strategy retrieves and where the file goes.
type Target struct {
	// ID is the normalized identifier.
	ID string
	// URL is the direct link, empty when unknown.
	URL string
	// Dest is the artifact path.
	Dest string
}

// Strategy is one retrieval method in the cascade. Attempt leaves either a
// valid file at Dest or no file at all. The error return is reserved for
// local I/O failures and cancellation of ctx.
type Strategy interface {
	Name() string
	// OpenAccess reports whether the strategy may run in open-access-only mode.
	OpenAccess() bool
	Attempt(ctx context.Context, t Target) (Outcome, error)
}

// sleepContext waits for d or until ctx is done.
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
