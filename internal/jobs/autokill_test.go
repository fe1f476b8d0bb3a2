package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"salesops_backend/internal/events"
	"salesops_backend/internal/pipeline/domain"
	"salesops_backend/internal/pipeline/repository"
	"salesops_backend/platform/clock"
	"salesops_backend/platform/logger"

	"github.com/google/uuid"
)

// fakeKillStore holds eligible pipelines per rule; a rule run drains its
// candidates, like the guarded UPDATE returning each row at most once.
type fakeKillStore struct {
	mu         sync.Mutex
	stalled    []repository.KilledPipeline
	noShows    []repository.KilledPipeline
	reschedule []repository.KilledPipeline
	noShowErr  error
	events     []repository.AppendEventParams
}

func (f *fakeKillStore) drain(set *[]repository.KilledPipeline) []repository.KilledPipeline {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := *set
	*set = nil
	return out
}

func (f *fakeKillStore) KillStalledInstalls(_ context.Context, _, _ time.Time) ([]repository.KilledPipeline, error) {
	return f.drain(&f.stalled), nil
}

func (f *fakeKillStore) KillRepeatedNoShows(_ context.Context, _ time.Time) ([]repository.KilledPipeline, error) {
	if f.noShowErr != nil {
		return nil, f.noShowErr
	}
	return f.drain(&f.noShows), nil
}

func (f *fakeKillStore) KillExcessiveReschedules(_ context.Context, _ time.Time) ([]repository.KilledPipeline, error) {
	return f.drain(&f.reschedule), nil
}

func (f *fakeKillStore) AppendEvent(_ context.Context, params repository.AppendEventParams) (repository.ActivationEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, params)
	return repository.ActivationEvent{ID: uuid.New()}, nil
}

type recordingBus struct {
	mu        sync.Mutex
	published []events.Event
}

func (b *recordingBus) Publish(_ context.Context, e events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, e)
}

func (b *recordingBus) PublishSync(ctx context.Context, e events.Event) error {
	b.Publish(ctx, e)
	return nil
}

func (b *recordingBus) Subscribe(string, events.Handler) {}

func killed(n int) []repository.KilledPipeline {
	out := make([]repository.KilledPipeline, n)
	for i := range out {
		out[i] = repository.KilledPipeline{ID: uuid.New()}
	}
	return out
}

func TestAutoKillRun(t *testing.T) {
	store := &fakeKillStore{
		stalled:    killed(2),
		noShows:    killed(1),
		reschedule: killed(3),
	}
	bus := &recordingBus{}
	clk := clock.NewFake(time.Date(2026, 3, 2, 4, 0, 0, 0, time.UTC))
	job := NewAutoKillJob(store, bus, clk, logger.New("test"))

	summary := job.Run(context.Background())

	if summary.Stalled != 2 || summary.NoShow != 1 || summary.Reschedule != 3 {
		t.Errorf("summary = %+v", summary)
	}
	if len(summary.Errors) != 0 {
		t.Errorf("errors = %v", summary.Errors)
	}
	if len(store.events) != 6 {
		t.Fatalf("audit events = %d, want one per kill", len(store.events))
	}
	for _, e := range store.events {
		if e.EventType != "auto_killed" {
			t.Errorf("event type = %s", e.EventType)
		}
		if e.Metadata["triggered_by"] != "auto_kill" {
			t.Errorf("triggered_by = %v", e.Metadata["triggered_by"])
		}
		if e.ActorUserID != nil {
			t.Error("auto kills are system-initiated, actor must be nil")
		}
	}
	if len(bus.published) != 6 {
		t.Errorf("published = %d status changes, want 6", len(bus.published))
	}
}

func TestAutoKillSecondRunFindsNothing(t *testing.T) {
	store := &fakeKillStore{stalled: killed(2)}
	clk := clock.NewFake(time.Date(2026, 3, 2, 4, 0, 0, 0, time.UTC))
	job := NewAutoKillJob(store, &recordingBus{}, clk, logger.New("test"))

	first := job.Run(context.Background())
	if first.Stalled != 2 {
		t.Fatalf("first run stalled = %d", first.Stalled)
	}

	clk.Advance(time.Hour)
	second := job.Run(context.Background())
	if second.Stalled != 0 || second.NoShow != 0 || second.Reschedule != 0 {
		t.Errorf("second run killed again: %+v", second)
	}
}

func TestAutoKillRuleFailureDoesNotBlockOthers(t *testing.T) {
	store := &fakeKillStore{
		stalled:    killed(1),
		reschedule: killed(1),
		noShowErr:  errors.New("query timeout"),
	}
	clk := clock.NewFake(time.Date(2026, 3, 2, 4, 0, 0, 0, time.UTC))
	job := NewAutoKillJob(store, &recordingBus{}, clk, logger.New("test"))

	summary := job.Run(context.Background())

	if summary.Stalled != 1 || summary.Reschedule != 1 {
		t.Errorf("other rules blocked: %+v", summary)
	}
	if len(summary.Errors) != 1 {
		t.Fatalf("errors = %v, want the no-show failure collected", summary.Errors)
	}
}

func TestStalledKillCutoff(t *testing.T) {
	// The job derives the cutoff from the clock; verify the 14-day window.
	var gotCutoff time.Time
	store := &cutoffCapture{}
	clk := clock.NewFake(time.Date(2026, 3, 16, 4, 0, 0, 0, time.UTC))
	job := NewAutoKillJob(store, &recordingBus{}, clk, logger.New("test"))

	job.Run(context.Background())
	gotCutoff = store.cutoff

	want := time.Date(2026, 3, 2, 4, 0, 0, 0, time.UTC)
	if !gotCutoff.Equal(want) {
		t.Errorf("cutoff = %v, want %v (14 days before now)", gotCutoff, want)
	}
}

type cutoffCapture struct {
	fakeKillStore
	cutoff time.Time
}

func (c *cutoffCapture) KillStalledInstalls(_ context.Context, cutoff, _ time.Time) ([]repository.KilledPipeline, error) {
	c.mu.Lock()
	c.cutoff = cutoff
	c.mu.Unlock()
	return nil, nil
}

// Keep the threshold constants honest.
func TestKillThresholds(t *testing.T) {
	if domain.MaxNoShows != 2 {
		t.Errorf("MaxNoShows = %d, want 2", domain.MaxNoShows)
	}
	if domain.MaxReschedules != 3 {
		t.Errorf("MaxReschedules = %d, want 3", domain.MaxReschedules)
	}
	if domain.StalledAfterDays != 14 {
		t.Errorf("StalledAfterDays = %d, want 14", domain.StalledAfterDays)
	}
}
