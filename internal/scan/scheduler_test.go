package scan

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal-hud.klederson.com/internal/signal"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func fixed(reports ...signal.RawReport) ScannerFunc {
	return func(ctx context.Context) ([]signal.RawReport, error) {
		out := make([]signal.RawReport, len(reports))
		copy(out, reports)
		return out, nil
	}
}

type recorderFunc func(ctx context.Context, b signal.Batch) error

func (f recorderFunc) RecordBatch(ctx context.Context, b signal.Batch) error { return f(ctx, b) }

func newTestScheduler(t *testing.T, store *signal.Store, jobs ...Job) *Scheduler {
	t.Helper()
	log := quietLogger()
	s, err := NewScheduler(store, signal.NewNormalizer(nil, nil, log), jobs, log)
	require.NoError(t, err)
	return s
}

func runFor(s *Scheduler, d time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	s.Run(ctx)
}

func TestSchedulerPublishes(t *testing.T) {
	store := signal.NewStore()
	var recorded atomic.Int32
	s := newTestScheduler(t, store, Job{
		Source:   signal.SourceWiFi,
		Scanner:  fixed(signal.Report("AP1", -50)),
		Interval: 10 * time.Millisecond,
	})
	s.SetRecorder(recorderFunc(func(ctx context.Context, b signal.Batch) error {
		recorded.Add(1)
		return errors.New("disk full")
	}))

	runFor(s, 100*time.Millisecond)

	readings := store.Snapshot().Batch(signal.SourceWiFi)
	require.Len(t, readings, 1)
	require.NotNil(t, readings[0].Distance)
	assert.InDelta(t, 1.0, *readings[0].Distance, 1e-12)
	assert.Nil(t, readings[0].Estimated)
	assert.Greater(t, recorded.Load(), int32(1), "recorder errors do not stop the loop")

	st := s.Status()
	require.Len(t, st, 1)
	assert.Equal(t, "stopped", st[0].State)
	assert.Greater(t, st[0].Cycles, 1)
	assert.Zero(t, st[0].Failures)
	assert.Equal(t, 1, st[0].Readings)
}

func TestSchedulerFailureIsolation(t *testing.T) {
	store := signal.NewStore()
	var failing atomic.Int32

	s := newTestScheduler(t, store,
		Job{
			Source:   signal.SourceBluetooth,
			Interval: 5 * time.Millisecond,
			Backoff:  5 * time.Millisecond,
			Scanner: ScannerFunc(func(ctx context.Context) ([]signal.RawReport, error) {
				failing.Add(1)
				return nil, errors.New("adapter missing")
			}),
		},
		Job{
			Source:   signal.SourceFlipper,
			Interval: 5 * time.Millisecond,
			Backoff:  5 * time.Millisecond,
			Scanner: ScannerFunc(func(ctx context.Context) ([]signal.RawReport, error) {
				panic("serial driver exploded")
			}),
		},
		Job{
			Source:   signal.SourceWiFi,
			Interval: 5 * time.Millisecond,
			Scanner:  fixed(signal.Report("AP1", -60)),
		},
	)

	runFor(s, 100*time.Millisecond)

	assert.Greater(t, failing.Load(), int32(2), "failing loop keeps retrying")
	assert.Len(t, store.Snapshot().Batch(signal.SourceWiFi), 1)
	_, ok := store.Batch(signal.SourceBluetooth)
	assert.False(t, ok)

	for _, st := range s.Status() {
		switch st.Source {
		case signal.SourceBluetooth:
			assert.Equal(t, st.Cycles, st.Failures)
			assert.Contains(t, st.LastError, "adapter missing")
		case signal.SourceFlipper:
			assert.Contains(t, st.LastError, "panic")
		case signal.SourceWiFi:
			assert.Zero(t, st.Failures)
		}
	}
}

func TestSchedulerTimesOutHungScanner(t *testing.T) {
	store := signal.NewStore()
	release := make(chan struct{})
	defer close(release)

	var calls atomic.Int32
	s := newTestScheduler(t, store, Job{
		Source:   signal.SourceFlipper,
		Timeout:  10 * time.Millisecond,
		Backoff:  5 * time.Millisecond,
		Interval: 5 * time.Millisecond,
		Scanner: ScannerFunc(func(ctx context.Context) ([]signal.RawReport, error) {
			calls.Add(1)
			<-release // ignores ctx on purpose
			return nil, nil
		}),
	})

	runFor(s, 120*time.Millisecond)

	assert.Greater(t, calls.Load(), int32(1), "loop reaches its next cycle despite the hang")
	st := s.Status()[0]
	assert.Contains(t, st.LastError, "timed out")
}

func TestSchedulerScanErrorType(t *testing.T) {
	s := newTestScheduler(t, signal.NewStore())
	_, err := s.scan(context.Background(), Job{
		Source:  signal.SourceWiFi,
		Timeout: time.Second,
		Scanner: ScannerFunc(func(ctx context.Context) ([]signal.RawReport, error) {
			return nil, io.ErrUnexpectedEOF
		}),
	})

	var se *signal.ScanError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, signal.SourceWiFi, se.Source)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestSchedulerShutdown(t *testing.T) {
	s := newTestScheduler(t, signal.NewStore(), Job{
		Source:   signal.SourceWiFi,
		Interval: time.Hour,
		Scanner:  fixed(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.Run(ctx)
	}()

	assert.Eventually(t, func() bool { return s.Status()[0].Cycles == 1 }, time.Second, time.Millisecond)
	cancel()

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestNewSchedulerRejectsBadJobs(t *testing.T) {
	norm := signal.NewNormalizer(nil, nil, quietLogger())
	_, err := NewScheduler(signal.NewStore(), norm, []Job{{Source: signal.SourceWiFi}}, nil)
	assert.Error(t, err)

	_, err = NewScheduler(signal.NewStore(), norm, []Job{
		{Source: signal.SourceWiFi, Scanner: fixed()},
		{Source: signal.SourceWiFi, Scanner: fixed()},
	}, nil)
	assert.Error(t, err)
}

func TestFanout(t *testing.T) {
	local := Observed("node-a", fixed(signal.Report("X", -60)))
	peer := fixed(signal.RawReport{Identifier: "X", RSSI: "-70", Observer: "node-b"})
	broken := ScannerFunc(func(ctx context.Context) ([]signal.RawReport, error) {
		return nil, errors.New("unreachable")
	})

	reports, err := Fanout{local, peer}.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "node-a", reports[0].Observer)
	assert.Equal(t, "node-b", reports[1].Observer)

	reports, err = Fanout{local, broken, peer}.Scan(context.Background())
	require.Len(t, reports, 2)
	var partial *PartialError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, 1, partial.Failed)
	assert.Equal(t, 3, partial.Total)
	assert.ErrorContains(t, err, "unreachable")

	_, err = Fanout{broken, Observed("node-c", broken)}.Scan(context.Background())
	assert.ErrorContains(t, err, "all 2 scanners failed")
	assert.ErrorContains(t, err, "node-c: unreachable")
	assert.False(t, errors.As(err, &partial))
}

func TestSchedulerPartialFailure(t *testing.T) {
	log, hook := logtest.NewNullLogger()
	store := signal.NewStore()
	broken := ScannerFunc(func(ctx context.Context) ([]signal.RawReport, error) {
		return nil, errors.New("peer node-b: connection refused")
	})
	s, err := NewScheduler(store, signal.NewNormalizer(nil, nil, log), []Job{{
		Source:   signal.SourceWiFi,
		Scanner:  Fanout{fixed(signal.Report("AP1", -50)), broken},
		Interval: 10 * time.Millisecond,
	}}, log)
	require.NoError(t, err)

	runFor(s, 100*time.Millisecond)

	assert.Len(t, store.Snapshot().Batch(signal.SourceWiFi), 1, "partial results are still published")

	st := s.Status()
	require.Len(t, st, 1)
	assert.Greater(t, st[0].Cycles, 1)
	assert.Equal(t, st[0].Cycles, st[0].Failures)
	assert.Contains(t, st[0].LastError, "connection refused")

	warned := 0
	for _, e := range hook.AllEntries() {
		if e.Level <= logrus.WarnLevel {
			warned++
		}
	}
	assert.Greater(t, warned, 1)
}

func TestSchedulerSlowRecorderDoesNotStallLoops(t *testing.T) {
	store := signal.NewStore()
	jobs := make([]Job, 0, 2)
	for _, src := range []signal.SourceType{signal.SourceWiFi, signal.SourceBluetooth} {
		jobs = append(jobs, Job{Source: src, Scanner: fixed(signal.Report("E", -60)), Interval: 5 * time.Millisecond})
	}
	s := newTestScheduler(t, store, jobs...)

	var calls atomic.Int32
	s.SetRecorder(recorderFunc(func(ctx context.Context, b signal.Batch) error {
		calls.Add(1)
		<-ctx.Done()
		return ctx.Err()
	}))

	start := time.Now()
	runFor(s, 200*time.Millisecond)

	assert.Less(t, time.Since(start), 400*time.Millisecond, "shutdown is not held up by the recorder")
	assert.Equal(t, int32(1), calls.Load())
	for _, st := range s.Status() {
		assert.Greater(t, st.Cycles, 10, "%s loop kept its pace", st.Source)
		assert.Zero(t, st.Failures)
	}
}
