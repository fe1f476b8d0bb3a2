package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"salesops_backend/internal/events"
	"salesops_backend/internal/meetings/repository"
	"salesops_backend/internal/meetings/transport"
	"salesops_backend/platform/apperr"
	"salesops_backend/platform/clock"
	"salesops_backend/platform/logger"

	"github.com/google/uuid"
)

// fakeStore reproduces the exclusion-constraint semantics in memory.
type fakeStore struct {
	mu       sync.Mutex
	meetings map[uuid.UUID]*repository.Meeting
	// leads maps crm_lead_id to pipeline id for the reconcile pass.
	leads map[string]uuid.UUID
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		meetings: make(map[uuid.UUID]*repository.Meeting),
		leads:    make(map[string]uuid.UUID),
	}
}

func copyMeeting(m *repository.Meeting) *repository.Meeting {
	cp := *m
	return &cp
}

func (f *fakeStore) overlaps(activatorID uuid.UUID, start, end time.Time, exclude uuid.UUID) *repository.Meeting {
	for _, m := range f.meetings {
		if m.ID == exclude || m.ActivatorUserID != activatorID || m.Status != repository.StatusScheduled {
			continue
		}
		if m.ScheduledStartAt.Before(end) && m.ScheduledEndAt.After(start) {
			return m
		}
	}
	return nil
}

func (f *fakeStore) Create(_ context.Context, params repository.CreateParams) (*repository.Meeting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.overlaps(params.ActivatorUserID, params.ScheduledStartAt, params.ScheduledEndAt, uuid.Nil) != nil {
		return nil, apperr.Conflict("activator already has a meeting in this window")
	}
	m := &repository.Meeting{
		ID:                uuid.New(),
		PipelineID:        params.PipelineID,
		CRMLeadID:         params.CRMLeadID,
		ActivatorUserID:   params.ActivatorUserID,
		ScheduledBySDRID:  params.ScheduledBySDRID,
		ScheduledStartAt:  params.ScheduledStartAt,
		ScheduledEndAt:    params.ScheduledEndAt,
		Timezone:          params.Timezone,
		Status:            repository.StatusScheduled,
		RescheduledFromID: params.RescheduledFromID,
		AttendeeName:      params.AttendeeName,
		AttendeePhone:     params.AttendeePhone,
		AttendeeEmail:     params.AttendeeEmail,
		CreatedAt:         params.Now,
		UpdatedAt:         params.Now,
	}
	f.meetings[m.ID] = m
	return copyMeeting(m), nil
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*repository.Meeting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.meetings[id]
	if !ok {
		return nil, apperr.NotFound("meeting not found")
	}
	return copyMeeting(m), nil
}

func (f *fakeStore) FindBlocking(_ context.Context, activatorID uuid.UUID, start, end time.Time, excludeID uuid.UUID) (*repository.Meeting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m := f.overlaps(activatorID, start, end, excludeID); m != nil {
		return copyMeeting(m), nil
	}
	return nil, nil
}

func (f *fakeStore) Reassign(_ context.Context, id uuid.UUID, newActivatorID uuid.UUID, at time.Time) (*repository.Meeting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.meetings[id]
	if !ok {
		return nil, apperr.NotFound("meeting not found")
	}
	if m.Status != repository.StatusScheduled {
		return nil, apperr.Conflict("meeting is already " + string(m.Status))
	}
	if f.overlaps(newActivatorID, m.ScheduledStartAt, m.ScheduledEndAt, id) != nil {
		return nil, apperr.Conflict("new activator already has a meeting in this window")
	}
	m.ActivatorUserID = newActivatorID
	m.UpdatedAt = at
	return copyMeeting(m), nil
}

func (f *fakeStore) MarkOutcome(_ context.Context, id uuid.UUID, outcome repository.Status, at time.Time) (*repository.Meeting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.meetings[id]
	if !ok {
		return nil, apperr.NotFound("meeting not found")
	}
	if m.Status != repository.StatusScheduled {
		return nil, apperr.Conflict("meeting is already " + string(m.Status))
	}
	m.Status = outcome
	m.UpdatedAt = at
	return copyMeeting(m), nil
}

func (f *fakeStore) Reschedule(_ context.Context, oldID uuid.UUID, newStart, newEnd time.Time, at time.Time) (*repository.Meeting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	old, ok := f.meetings[oldID]
	if !ok {
		return nil, apperr.NotFound("meeting not found")
	}
	if old.Status != repository.StatusScheduled {
		return nil, apperr.Conflict("meeting is already " + string(old.Status))
	}
	old.Status = repository.StatusRescheduled
	old.UpdatedAt = at
	if f.overlaps(old.ActivatorUserID, newStart, newEnd, oldID) != nil {
		old.Status = repository.StatusScheduled
		return nil, apperr.Conflict("activator already has a meeting in the new window")
	}
	successor := &repository.Meeting{
		ID:                uuid.New(),
		PipelineID:        old.PipelineID,
		CRMLeadID:         old.CRMLeadID,
		ActivatorUserID:   old.ActivatorUserID,
		ScheduledBySDRID:  old.ScheduledBySDRID,
		ScheduledStartAt:  newStart,
		ScheduledEndAt:    newEnd,
		Timezone:          old.Timezone,
		Status:            repository.StatusScheduled,
		RescheduledFromID: &old.ID,
		AttendeeName:      old.AttendeeName,
		AttendeePhone:     old.AttendeePhone,
		AttendeeEmail:     old.AttendeeEmail,
		CreatedAt:         at,
		UpdatedAt:         at,
	}
	f.meetings[successor.ID] = successor
	return copyMeeting(successor), nil
}

func (f *fakeStore) MarkReminderSent(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.meetings[id]
	if !ok || m.Status != repository.StatusScheduled || m.Reminder24hSentAt != nil {
		return false, nil
	}
	stamp := at
	m.Reminder24hSentAt = &stamp
	return true, nil
}

func (f *fakeStore) DueForReminder(_ context.Context, from, to time.Time) ([]repository.Meeting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var due []repository.Meeting
	for _, m := range f.meetings {
		if m.Status == repository.StatusScheduled && m.Reminder24hSentAt == nil &&
			!m.ScheduledStartAt.Before(from) && m.ScheduledStartAt.Before(to) {
			due = append(due, *m)
		}
	}
	return due, nil
}

func (f *fakeStore) ReconcileLinks(_ context.Context, at time.Time) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var linked []uuid.UUID
	for _, m := range f.meetings {
		if m.PipelineID != nil {
			continue
		}
		if pid, ok := f.leads[m.CRMLeadID]; ok {
			id := pid
			m.PipelineID = &id
			m.UpdatedAt = at
			linked = append(linked, m.ID)
		}
	}
	return linked, nil
}

// fakePipelines records every hook invocation.
type fakePipelines struct {
	mu            sync.Mutex
	leads         map[string]uuid.UUID
	scheduled     int
	attended      int
	noShows       int
	reschedules   int
	reassignments int
	markErr       error
}

func newFakePipelines() *fakePipelines {
	return &fakePipelines{leads: make(map[string]uuid.UUID)}
}

func (f *fakePipelines) LookupIDByLead(_ context.Context, crmLeadID string) (*uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := f.leads[crmLeadID]; ok {
		return &id, nil
	}
	return nil, nil
}

func (f *fakePipelines) MarkScheduled(context.Context, uuid.UUID, uuid.UUID, uuid.UUID, uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return f.markErr
	}
	f.scheduled++
	return nil
}

func (f *fakePipelines) MarkAttended(context.Context, uuid.UUID, uuid.UUID, uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attended++
	return nil
}

func (f *fakePipelines) RecordNoShow(context.Context, uuid.UUID, uuid.UUID, uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.noShows++
	return nil
}

func (f *fakePipelines) RecordReschedule(context.Context, uuid.UUID, uuid.UUID, uuid.UUID, uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reschedules++
	return nil
}

func (f *fakePipelines) ReassignActivator(context.Context, uuid.UUID, uuid.UUID, uuid.UUID, uuid.UUID, uuid.UUID, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reassignments++
	return nil
}

type fakeBus struct {
	mu        sync.Mutex
	published []events.Event
}

func (b *fakeBus) Publish(_ context.Context, e events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, e)
}

func (b *fakeBus) PublishSync(ctx context.Context, e events.Event) error {
	b.Publish(ctx, e)
	return nil
}

func (b *fakeBus) Subscribe(string, events.Handler) {}

func newTestService(store *fakeStore, pipelines *fakePipelines) (*Service, *clock.Fake) {
	clk := clock.NewFake(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	svc := New(store, pipelines, &fakeBus{}, clk, logger.New("test"))
	return svc, clk
}

func scheduleReq(lead string, activator uuid.UUID, start time.Time, d time.Duration) transport.ScheduleRequest {
	return transport.ScheduleRequest{
		CRMLeadID:       lead,
		ActivatorUserID: activator,
		StartAt:         start,
		EndAt:           start.Add(d),
		AttendeeName:    "Jan de Vries",
	}
}

func TestScheduleRejectsOverlap(t *testing.T) {
	store := newFakeStore()
	pipelines := newFakePipelines()
	svc, clk := newTestService(store, pipelines)

	activator := uuid.New()
	start := clk.Now().Add(48 * time.Hour)
	if _, err := svc.Schedule(context.Background(), scheduleReq("lead-1", activator, start, time.Hour), uuid.New()); err != nil {
		t.Fatalf("first schedule: %v", err)
	}

	// Overlaps the tail of the first window.
	_, err := svc.Schedule(context.Background(), scheduleReq("lead-2", activator, start.Add(30*time.Minute), time.Hour), uuid.New())
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("err = %v, want conflict", err)
	}

	// Back to back is allowed: [start,end) windows touching do not overlap.
	if _, err := svc.Schedule(context.Background(), scheduleReq("lead-3", activator, start.Add(time.Hour), time.Hour), uuid.New()); err != nil {
		t.Errorf("adjacent schedule: %v", err)
	}

	// A different activator is free to take the same window.
	if _, err := svc.Schedule(context.Background(), scheduleReq("lead-4", uuid.New(), start, time.Hour), uuid.New()); err != nil {
		t.Errorf("other activator schedule: %v", err)
	}
}

func TestScheduleLinksPipelineWhenPresent(t *testing.T) {
	store := newFakeStore()
	pipelines := newFakePipelines()
	svc, clk := newTestService(store, pipelines)

	pipelineID := uuid.New()
	pipelines.leads["lead-5"] = pipelineID

	resp, err := svc.Schedule(context.Background(), scheduleReq("lead-5", uuid.New(), clk.Now().Add(24*time.Hour), time.Hour), uuid.New())
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if resp.PipelineID == nil || *resp.PipelineID != pipelineID {
		t.Errorf("pipeline id = %v, want %s", resp.PipelineID, pipelineID)
	}
	if pipelines.scheduled != 1 {
		t.Errorf("MarkScheduled calls = %d, want 1", pipelines.scheduled)
	}
}

func TestScheduleBeforePipelineExists(t *testing.T) {
	store := newFakeStore()
	pipelines := newFakePipelines()
	svc, clk := newTestService(store, pipelines)

	resp, err := svc.Schedule(context.Background(), scheduleReq("lead-6", uuid.New(), clk.Now().Add(24*time.Hour), time.Hour), uuid.New())
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if resp.PipelineID != nil {
		t.Errorf("pipeline id = %v, want unlinked", resp.PipelineID)
	}
	if pipelines.scheduled != 0 {
		t.Errorf("MarkScheduled calls = %d, want 0", pipelines.scheduled)
	}

	// Once the trial exists the reconcile pass links the meeting exactly once.
	pipelines.leads["lead-6"] = uuid.New()
	store.leads["lead-6"] = pipelines.leads["lead-6"]
	linked, err := svc.ReconcileLinks(context.Background())
	if err != nil {
		t.Fatalf("ReconcileLinks: %v", err)
	}
	if len(linked) != 1 {
		t.Fatalf("linked = %v, want 1 meeting", linked)
	}
	again, err := svc.ReconcileLinks(context.Background())
	if err != nil {
		t.Fatalf("second ReconcileLinks: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("second pass relinked %v", again)
	}
}

func TestReassignConflictLeavesMeetingUnchanged(t *testing.T) {
	store := newFakeStore()
	pipelines := newFakePipelines()
	svc, clk := newTestService(store, pipelines)

	start := clk.Now().Add(24 * time.Hour)
	original := uuid.New()
	busy := uuid.New()

	booked, err := svc.Schedule(context.Background(), scheduleReq("lead-7", original, start, time.Hour), uuid.New())
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	// The target activator already has an overlapping meeting.
	if _, err := svc.Schedule(context.Background(), scheduleReq("lead-8", busy, start.Add(15*time.Minute), time.Hour), uuid.New()); err != nil {
		t.Fatalf("busy schedule: %v", err)
	}

	_, err = svc.Reassign(context.Background(), booked.ID, transport.ReassignRequest{NewActivatorUserID: busy}, uuid.New())
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("err = %v, want conflict", err)
	}

	got, _ := store.GetByID(context.Background(), booked.ID)
	if got.ActivatorUserID != original {
		t.Errorf("activator changed to %s after failed reassign", got.ActivatorUserID)
	}
}

func TestReassignPropagatesToPipeline(t *testing.T) {
	store := newFakeStore()
	pipelines := newFakePipelines()
	svc, clk := newTestService(store, pipelines)

	pipelines.leads["lead-9"] = uuid.New()
	booked, err := svc.Schedule(context.Background(), scheduleReq("lead-9", uuid.New(), clk.Now().Add(24*time.Hour), time.Hour), uuid.New())
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	newActivator := uuid.New()
	resp, err := svc.Reassign(context.Background(), booked.ID, transport.ReassignRequest{
		NewActivatorUserID: newActivator,
		Reason:             "vakantie",
	}, uuid.New())
	if err != nil {
		t.Fatalf("Reassign: %v", err)
	}
	if resp.ActivatorUserID != newActivator {
		t.Errorf("activator = %s", resp.ActivatorUserID)
	}
	if pipelines.reassignments != 1 {
		t.Errorf("ReassignActivator calls = %d, want 1", pipelines.reassignments)
	}
}

func TestMarkOutcomeDrivesPipeline(t *testing.T) {
	tests := []struct {
		outcome     string
		wantAttends int
		wantNoShows int
	}{
		{outcome: "completed", wantAttends: 1},
		{outcome: "no_show", wantNoShows: 1},
		{outcome: "canceled"},
	}

	for _, tt := range tests {
		t.Run(tt.outcome, func(t *testing.T) {
			store := newFakeStore()
			pipelines := newFakePipelines()
			svc, clk := newTestService(store, pipelines)

			pipelines.leads["lead-10"] = uuid.New()
			booked, err := svc.Schedule(context.Background(), scheduleReq("lead-10", uuid.New(), clk.Now().Add(24*time.Hour), time.Hour), uuid.New())
			if err != nil {
				t.Fatalf("Schedule: %v", err)
			}

			resp, err := svc.MarkOutcome(context.Background(), booked.ID, transport.OutcomeRequest{Outcome: tt.outcome}, uuid.New())
			if err != nil {
				t.Fatalf("MarkOutcome: %v", err)
			}
			if resp.Meeting.Status != tt.outcome {
				t.Errorf("status = %s, want %s", resp.Meeting.Status, tt.outcome)
			}
			if pipelines.attended != tt.wantAttends {
				t.Errorf("MarkAttended calls = %d, want %d", pipelines.attended, tt.wantAttends)
			}
			if pipelines.noShows != tt.wantNoShows {
				t.Errorf("RecordNoShow calls = %d, want %d", pipelines.noShows, tt.wantNoShows)
			}

			// A second outcome on the same meeting is rejected.
			_, err = svc.MarkOutcome(context.Background(), booked.ID, transport.OutcomeRequest{Outcome: "completed"}, uuid.New())
			if !apperr.Is(err, apperr.KindConflict) {
				t.Errorf("second outcome err = %v, want conflict", err)
			}
		})
	}
}

func TestRescheduleChain(t *testing.T) {
	store := newFakeStore()
	pipelines := newFakePipelines()
	svc, clk := newTestService(store, pipelines)

	pipelines.leads["lead-11"] = uuid.New()
	start := clk.Now().Add(24 * time.Hour)
	first, err := svc.Schedule(context.Background(), scheduleReq("lead-11", uuid.New(), start, time.Hour), uuid.New())
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	current := first.ID
	for i := 0; i < 2; i++ {
		newStart := start.Add(time.Duration(i+1) * 24 * time.Hour)
		newEnd := newStart.Add(time.Hour)
		resp, err := svc.MarkOutcome(context.Background(), current, transport.OutcomeRequest{
			Outcome:    "rescheduled",
			NewStartAt: &newStart,
			NewEndAt:   &newEnd,
		}, uuid.New())
		if err != nil {
			t.Fatalf("reschedule %d: %v", i+1, err)
		}
		if resp.Successor == nil {
			t.Fatalf("reschedule %d: no successor", i+1)
		}
		if resp.Successor.RescheduledFromID == nil || *resp.Successor.RescheduledFromID != current {
			t.Errorf("reschedule %d: successor links %v, want %s", i+1, resp.Successor.RescheduledFromID, current)
		}
		if resp.Successor.AttendeeName != "Jan de Vries" {
			t.Errorf("reschedule %d: attendee info not carried over", i+1)
		}
		current = resp.Successor.ID
	}

	if pipelines.reschedules != 2 {
		t.Errorf("RecordReschedule calls = %d, want 2", pipelines.reschedules)
	}
	if len(store.meetings) != 3 {
		t.Errorf("meeting rows = %d, want a 3-row chain", len(store.meetings))
	}
}

func TestRescheduleRequiresWindow(t *testing.T) {
	store := newFakeStore()
	svc, clk := newTestService(store, newFakePipelines())

	booked, err := svc.Schedule(context.Background(), scheduleReq("lead-12", uuid.New(), clk.Now().Add(24*time.Hour), time.Hour), uuid.New())
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	_, err = svc.MarkOutcome(context.Background(), booked.ID, transport.OutcomeRequest{Outcome: "rescheduled"}, uuid.New())
	if !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("err = %v, want validation", err)
	}
}
