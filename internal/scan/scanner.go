package scan

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"signal-hud.klederson.com/internal/signal"
)

// Scanner runs one scan for a source type and returns what it heard. It must
// honour ctx; the scheduler gives every call a deadline.
type Scanner interface {
	Scan(ctx context.Context) ([]signal.RawReport, error)
}

// ScannerFunc adapts a function to the Scanner interface.
type ScannerFunc func(ctx context.Context) ([]signal.RawReport, error)

func (f ScannerFunc) Scan(ctx context.Context) ([]signal.RawReport, error) {
	return f(ctx)
}

// Observed tags every report from the wrapped scanner with an observer name.
// Reports that already name an observer are left alone.
func Observed(name string, s Scanner) Scanner {
	return ScannerFunc(func(ctx context.Context) ([]signal.RawReport, error) {
		reports, err := s.Scan(ctx)
		if err != nil {
			err = fmt.Errorf("%s: %w", name, err)
		}
		for i := range reports {
			if reports[i].Observer == "" {
				reports[i].Observer = name
			}
		}
		return reports, err
	})
}

// PartialError is returned by Fanout alongside the reports of the members
// that succeeded.
type PartialError struct {
	Failed int
	Total  int
	Err    error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("%d of %d scanners failed: %v", e.Failed, e.Total, e.Err)
}

func (e *PartialError) Unwrap() error { return e.Err }

// Fanout runs several scanners for the same source concurrently, typically
// the local radio plus peer anchor nodes, and concatenates their reports in
// member order. If only some members fail it returns the reports it has
// together with a *PartialError; if every member fails it returns no reports.
type Fanout []Scanner

func (f Fanout) Scan(ctx context.Context) ([]signal.RawReport, error) {
	results := make([][]signal.RawReport, len(f))
	errs := make([]error, len(f))

	// members fail independently, so no shared cancellation
	var g errgroup.Group
	for i, s := range f {
		g.Go(func() error {
			results[i], errs[i] = s.Scan(ctx)
			return errs[i]
		})
	}
	if g.Wait() == nil {
		var out []signal.RawReport
		for _, r := range results {
			out = append(out, r...)
		}
		return out, nil
	}

	var out []signal.RawReport
	failed := 0
	for i := range f {
		if errs[i] != nil {
			failed++
			continue
		}
		out = append(out, results[i]...)
	}
	joined := errors.Join(errs...)
	if failed == len(f) {
		return nil, fmt.Errorf("all %d scanners failed: %w", failed, joined)
	}
	return out, &PartialError{Failed: failed, Total: len(f), Err: joined}
}
