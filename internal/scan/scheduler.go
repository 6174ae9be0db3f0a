package scan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"signal-hud.klederson.com/internal/config"
	"signal-hud.klederson.com/internal/signal"
)

// State is where a scan loop currently is in its cycle.
type State int

const (
	StateIdle State = iota
	StateScanning
	StatePublishing
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateScanning:
		return "scanning"
	case StatePublishing:
		return "publishing"
	case StateStopped:
		return "stopped"
	default:
		return "idle"
	}
}

// Job describes one periodic scan loop.
type Job struct {
	Source   signal.SourceType
	Scanner  Scanner
	Interval time.Duration // sleep after a successful cycle
	Timeout  time.Duration // upper bound for one Scan call
	Backoff  time.Duration // sleep after a failed cycle
}

// Recorder is notified of every published batch.
type Recorder interface {
	RecordBatch(ctx context.Context, b signal.Batch) error
}

// LoopStatus is a point-in-time view of one loop.
type LoopStatus struct {
	Source      signal.SourceType `json:"source_type"`
	State       string            `json:"state"`
	Cycles      int               `json:"cycles"`
	Failures    int               `json:"failures"`
	LastError   string            `json:"last_error,omitempty"`
	LastPublish time.Time         `json:"last_publish,omitempty"`
	Readings    int               `json:"readings"`
}

type loop struct {
	job Job

	mu     sync.Mutex
	status LoopStatus
	state  State
}

// Scheduler runs one independent loop per source type. Loops share nothing
// but the Store, and each owns its own key in it.
type Scheduler struct {
	store      *signal.Store
	normalizer *signal.Normalizer
	recorder   Recorder
	records    chan signal.Batch
	log        logrus.FieldLogger
	loops      []*loop
}

// NewScheduler validates the jobs and creates a Scheduler.
func NewScheduler(store *signal.Store, norm *signal.Normalizer, jobs []Job, log logrus.FieldLogger) (*Scheduler, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Scheduler{store: store, normalizer: norm, log: log}
	seen := make(map[signal.SourceType]bool, len(jobs))
	for _, j := range jobs {
		if j.Scanner == nil {
			return nil, fmt.Errorf("job %s: no scanner", j.Source)
		}
		if seen[j.Source] {
			return nil, fmt.Errorf("job %s: duplicate source", j.Source)
		}
		seen[j.Source] = true
		if j.Interval <= 0 {
			j.Interval = config.DefaultScanInterval
		}
		if j.Timeout <= 0 {
			j.Timeout = config.DefaultScanTimeout
		}
		if j.Backoff <= 0 {
			j.Backoff = config.DefaultScanBackoff
		}
		s.loops = append(s.loops, &loop{job: j, status: LoopStatus{Source: j.Source}})
	}
	return s, nil
}

// SetRecorder attaches a Recorder. Must be called before Run. Batches are
// handed to it from a single goroutine through a bounded queue; when the
// queue is full the batch is dropped from the record, never from the store.
func (s *Scheduler) SetRecorder(r Recorder) {
	s.recorder = r
	s.records = make(chan signal.Batch, config.RecordQueueSize)
}

// Run starts every loop and blocks until ctx is cancelled and all loops have
// returned.
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup
	if s.recorder != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.record(ctx)
		}()
	}
	for _, l := range s.loops {
		wg.Add(1)
		go func(l *loop) {
			defer wg.Done()
			s.runLoop(ctx, l)
		}(l)
	}
	wg.Wait()
}

// Status returns the state of every loop in job order.
func (s *Scheduler) Status() []LoopStatus {
	out := make([]LoopStatus, 0, len(s.loops))
	for _, l := range s.loops {
		l.mu.Lock()
		st := l.status
		st.State = l.state.String()
		l.mu.Unlock()
		out = append(out, st)
	}
	return out
}

func (s *Scheduler) runLoop(ctx context.Context, l *loop) {
	log := s.log.WithField("source", l.job.Source)
	log.WithField("interval", l.job.Interval).Info("Scan loop started")
	defer func() {
		l.setState(StateStopped)
		log.Info("Scan loop stopped")
	}()

	for {
		wait := l.job.Interval
		if err := s.cycle(ctx, l); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.WithError(err).Warn("Scan cycle failed")
			wait = l.job.Backoff
		}

		l.setState(StateIdle)
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// cycle runs one Scanning -> Publishing pass. Scanner failures come back as
// *signal.ScanError and leave the store untouched. A partial failure still
// publishes what was heard but counts as a failure.
func (s *Scheduler) cycle(ctx context.Context, l *loop) error {
	l.setState(StateScanning)
	reports, err := s.scan(ctx, l.job)
	var partial *PartialError
	if err != nil && !errors.As(err, &partial) {
		l.fail(err)
		return err
	}

	l.setState(StatePublishing)
	batch := s.normalizer.Normalize(l.job.Source, reports)
	s.store.Publish(batch)
	l.published(batch, err)

	if partial != nil {
		s.log.WithField("source", l.job.Source).WithError(err).Warn("Scan cycle partially failed")
	}

	s.log.WithFields(logrus.Fields{
		"source":   l.job.Source,
		"cycle":    batch.Cycle,
		"readings": len(batch.Readings),
	}).Debug("Published batch")

	if s.records != nil {
		select {
		case s.records <- batch:
		default:
			s.log.WithField("source", l.job.Source).Warn("Recorder is behind, batch not recorded")
		}
	}
	return nil
}

// record drains the record queue until ctx is cancelled.
func (s *Scheduler) record(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case b := <-s.records:
			if ctx.Err() != nil {
				return
			}
			if err := s.recorder.RecordBatch(ctx, b); err != nil && ctx.Err() == nil {
				s.log.WithField("source", b.Source).WithError(err).Warn("Failed to record batch")
			}
		}
	}
}

type scanResult struct {
	reports []signal.RawReport
	err     error
}

// scan calls the scanner under a deadline. A scanner that ignores its
// context is abandoned once the deadline passes.
func (s *Scheduler) scan(ctx context.Context, job Job) ([]signal.RawReport, error) {
	sctx, cancel := context.WithTimeout(ctx, job.Timeout)
	defer cancel()

	done := make(chan scanResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- scanResult{err: fmt.Errorf("scanner panic: %v", r)}
			}
		}()
		reports, err := job.Scanner.Scan(sctx)
		done <- scanResult{reports: reports, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			var partial *PartialError
			if errors.As(res.err, &partial) {
				return res.reports, &signal.ScanError{Source: job.Source, Err: res.err}
			}
			return nil, &signal.ScanError{Source: job.Source, Err: res.err}
		}
		return res.reports, nil
	case <-sctx.Done():
		err := sctx.Err()
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s: %w", job.Timeout, err)
		}
		return nil, &signal.ScanError{Source: job.Source, Err: err}
	}
}

func (l *loop) setState(st State) {
	l.mu.Lock()
	l.state = st
	l.mu.Unlock()
}

func (l *loop) fail(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.status.Cycles++
	l.status.Failures++
	l.status.LastError = err.Error()
}

func (l *loop) published(b signal.Batch, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.status.Cycles++
	l.status.LastError = ""
	if err != nil {
		l.status.Failures++
		l.status.LastError = err.Error()
	}
	l.status.LastPublish = b.PublishedAt
	l.status.Readings = len(b.Readings)
}
