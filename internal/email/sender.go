package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"salesops_backend/platform/config"
)

// Sender delivers the transactional emails of the activation pipeline.
type Sender interface {
	SendTrialWelcomeEmail(ctx context.Context, toEmail, recipientName, accountName string) error
	SendMeetingReminderEmail(ctx context.Context, toEmail, recipientName, meetingTime, timezone string) error
	SendMeetingRescheduledEmail(ctx context.Context, toEmail, recipientName, oldTime, newTime string) error
}

// NoopSender swallows all sends. Used when email is disabled.
type NoopSender struct{}

func (NoopSender) SendTrialWelcomeEmail(ctx context.Context, toEmail, recipientName, accountName string) error {
	return nil
}

func (NoopSender) SendMeetingReminderEmail(ctx context.Context, toEmail, recipientName, meetingTime, timezone string) error {
	return nil
}

func (NoopSender) SendMeetingRescheduledEmail(ctx context.Context, toEmail, recipientName, oldTime, newTime string) error {
	return nil
}

// NewSender builds the configured Sender implementation.
func NewSender(cfg config.EmailConfig) (Sender, error) {
	if !cfg.GetEmailEnabled() {
		return NoopSender{}, nil
	}

	switch cfg.GetEmailProvider() {
	case "smtp":
		return NewSMTPSender(
			cfg.GetSMTPHost(), cfg.GetSMTPPort(),
			cfg.GetSMTPUsername(), cfg.GetSMTPPassword(),
			cfg.GetEmailFromAddress(), cfg.GetEmailFromName(),
		), nil
	default:
		client := &http.Client{Timeout: 10 * time.Second}
		return &BrevoSender{
			apiKey:    cfg.GetBrevoAPIKey(),
			fromName:  cfg.GetEmailFromName(),
			fromEmail: cfg.GetEmailFromAddress(),
			client:    client,
		}, nil
	}
}

// BrevoSender delivers email through the Brevo transactional API.
type BrevoSender struct {
	apiKey    string
	fromName  string
	fromEmail string
	client    *http.Client
}

type brevoEmailRequest struct {
	Sender struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"sender"`
	To []struct {
		Email string `json:"email"`
	} `json:"to"`
	Subject     string `json:"subject"`
	HTMLContent string `json:"htmlContent"`
}

func (b *BrevoSender) SendTrialWelcomeEmail(ctx context.Context, toEmail, recipientName, accountName string) error {
	content, err := renderEmailTemplate("trial_welcome.html", trialWelcomeEmailData{
		baseEmailData: baseEmailData{
			Title:   "Your trial is ready",
			Heading: "Your trial is ready",
		},
		RecipientName: recipientName,
		AccountName:   accountName,
	})
	if err != nil {
		return err
	}
	return b.send(ctx, toEmail, subjectTrialWelcome, content)
}

func (b *BrevoSender) SendMeetingReminderEmail(ctx context.Context, toEmail, recipientName, meetingTime, timezone string) error {
	content, err := renderEmailTemplate("meeting_reminder.html", meetingReminderEmailData{
		baseEmailData: baseEmailData{
			Title:   "Your activation call is tomorrow",
			Heading: "Your activation call is tomorrow",
		},
		RecipientName: recipientName,
		MeetingTime:   meetingTime,
		Timezone:      timezone,
	})
	if err != nil {
		return err
	}
	return b.send(ctx, toEmail, subjectMeetingReminder, content)
}

func (b *BrevoSender) SendMeetingRescheduledEmail(ctx context.Context, toEmail, recipientName, oldTime, newTime string) error {
	content, err := renderEmailTemplate("meeting_rescheduled.html", meetingRescheduledEmailData{
		baseEmailData: baseEmailData{
			Title:   "Your activation call was moved",
			Heading: "Your activation call was moved",
		},
		RecipientName: recipientName,
		OldTime:       oldTime,
		NewTime:       newTime,
	})
	if err != nil {
		return err
	}
	return b.send(ctx, toEmail, subjectMeetingRescheduled, content)
}

func (b *BrevoSender) send(ctx context.Context, toEmail, subject, htmlContent string) error {
	payload := brevoEmailRequest{
		Subject:     subject,
		HTMLContent: htmlContent,
	}
	payload.Sender.Name = b.fromName
	payload.Sender.Email = b.fromEmail
	payload.To = []struct {
		Email string `json:"email"`
	}{{Email: toEmail}}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.brevo.com/v3/smtp/email", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("api-key", b.apiKey)
	req.Header.Set("content-type", "application/json")
	req.Header.Set("accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("brevo send failed: status %d: %s", resp.StatusCode, string(data))
	}

	return nil
}
