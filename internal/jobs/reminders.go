package jobs

import (
	"context"
	"fmt"
	"time"

	meetingsrepo "salesops_backend/internal/meetings/repository"
	"salesops_backend/internal/pipeline/repository"
	"salesops_backend/platform/clock"
	"salesops_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Reminder window boundaries. The 2h slack absorbs the dispatcher's own
// run interval so a meeting cannot slip between two runs.
const (
	reminderWindowFrom = 23 * time.Hour
	reminderWindowTo   = 25 * time.Hour
)

// ReminderMeetings is the slice of the meetings service the dispatcher needs.
type ReminderMeetings interface {
	DueForReminder(ctx context.Context, from, to time.Time) ([]meetingsrepo.Meeting, error)
	MarkReminderSent(ctx context.Context, id uuid.UUID) (bool, error)
}

// ReminderMailer sends the primary reminder channel.
type ReminderMailer interface {
	SendMeetingReminderEmail(ctx context.Context, toEmail, recipientName, meetingTime, timezone string) error
}

// ReminderSMS sends the secondary reminder channel, best-effort.
type ReminderSMS interface {
	SendMessage(ctx context.Context, phoneNumber string, message string) error
}

// ReminderSummary reports one dispatcher run.
type ReminderSummary struct {
	Candidates int      `json:"candidates"`
	Sent       int      `json:"sent"`
	SMSSent    int      `json:"smsSent"`
	Skipped    int      `json:"skipped"`
	Errors     []string `json:"errors,omitempty"`
}

// ReminderEvents appends the audit events for reminded meetings.
type ReminderEvents interface {
	AppendEvent(ctx context.Context, params repository.AppendEventParams) (repository.ActivationEvent, error)
}

// ReminderJob sends the 24h meeting reminders.
type ReminderJob struct {
	meetings ReminderMeetings
	eventLog ReminderEvents
	mailer   ReminderMailer
	sms      ReminderSMS
	limiter  *rate.Limiter
	clk      clock.Clock
	log      *logger.Logger
}

// NewReminderJob creates the reminder dispatcher. sms may be nil.
func NewReminderJob(meetings ReminderMeetings, eventLog ReminderEvents, mailer ReminderMailer, sms ReminderSMS, sendRate float64, burst int, clk clock.Clock, log *logger.Logger) *ReminderJob {
	if sendRate <= 0 {
		sendRate = 5
	}
	if burst <= 0 {
		burst = 1
	}
	return &ReminderJob{
		meetings: meetings,
		eventLog: eventLog,
		mailer:   mailer,
		sms:      sms,
		limiter:  rate.NewLimiter(rate.Limit(sendRate), burst),
		clk:      clk,
		log:      log,
	}
}

// Run finds meetings starting 23-25h out with no reminder sent, emails
// the attendee, and stamps the dedup marker only on email success. SMS is
// best-effort on top: its failure never blocks the marker, its success
// alone never sets it.
func (j *ReminderJob) Run(ctx context.Context) ReminderSummary {
	now := j.clk.Now()
	due, err := j.meetings.DueForReminder(ctx, now.Add(reminderWindowFrom), now.Add(reminderWindowTo))
	if err != nil {
		return ReminderSummary{Errors: []string{err.Error()}}
	}

	summary := ReminderSummary{Candidates: len(due)}
	for _, meeting := range due {
		if meeting.AttendeeEmail == "" {
			summary.Skipped++
			continue
		}
		if err := j.limiter.Wait(ctx); err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", meeting.ID, err))
			break
		}

		meetingTime := meeting.ScheduledStartAt.Format("Monday 2 January 15:04")
		if err := j.mailer.SendMeetingReminderEmail(ctx, meeting.AttendeeEmail, meeting.AttendeeName, meetingTime, meeting.Timezone); err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", meeting.ID, err))
			j.log.BatchItemError("reminders", meeting.ID.String(), err)
			continue
		}

		marked, err := j.meetings.MarkReminderSent(ctx, meeting.ID)
		if err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", meeting.ID, err))
			continue
		}
		if !marked {
			// Another run stamped the marker between our read and write.
			summary.Skipped++
			continue
		}
		summary.Sent++
		j.appendEvent(ctx, meeting, "reminder_sent", now)

		if j.sms != nil && meeting.AttendeePhone != "" {
			body := fmt.Sprintf("Reminder: your installation call is tomorrow at %s.", meeting.ScheduledStartAt.Format("15:04"))
			if err := j.sms.SendMessage(ctx, meeting.AttendeePhone, body); err != nil {
				j.log.Warn("reminder sms failed", "meeting_id", meeting.ID, "error", err)
			} else {
				summary.SMSSent++
				j.appendEvent(ctx, meeting, "sms_sent", now)
			}
		}
	}

	j.log.Info("reminder run finished",
		"candidates", summary.Candidates,
		"sent", summary.Sent,
		"sms_sent", summary.SMSSent,
		"skipped", summary.Skipped,
		"errors", len(summary.Errors),
	)
	return summary
}

func (j *ReminderJob) appendEvent(ctx context.Context, meeting meetingsrepo.Meeting, eventType string, now time.Time) {
	if meeting.PipelineID == nil {
		return
	}
	_, err := j.eventLog.AppendEvent(ctx, repository.AppendEventParams{
		PipelineID: *meeting.PipelineID,
		EventType:  eventType,
		Metadata:   map[string]any{"meeting_id": meeting.ID.String()},
		OccurredAt: now,
	})
	if err != nil {
		j.log.Warn("reminder audit event failed", "meeting_id", meeting.ID, "error", err)
	}
}
