package email

import (
	"context"
	"fmt"
	"net"
	"time"

	gomail "github.com/wneessen/go-mail"
)

// SMTPSender implements the Sender interface using a direct SMTP connection via go-mail.
// It renders the same HTML templates as BrevoSender but delivers via the configured SMTP server.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

// NewSMTPSender creates a new SMTPSender with the given SMTP credentials.
func NewSMTPSender(host string, port int, username, password, fromEmail, fromName string) *SMTPSender {
	return &SMTPSender{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		fromName:  fromName,
		fromEmail: fromEmail,
	}
}

func (s *SMTPSender) send(ctx context.Context, toEmail, subject, htmlContent string) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlContent)

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	return nil
}

func (s *SMTPSender) SendTrialWelcomeEmail(ctx context.Context, toEmail, recipientName, accountName string) error {
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
	return s.send(ctx, toEmail, subjectTrialWelcome, content)
}

func (s *SMTPSender) SendMeetingReminderEmail(ctx context.Context, toEmail, recipientName, meetingTime, timezone string) error {
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
	return s.send(ctx, toEmail, subjectMeetingReminder, content)
}

func (s *SMTPSender) SendMeetingRescheduledEmail(ctx context.Context, toEmail, recipientName, oldTime, newTime string) error {
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
	return s.send(ctx, toEmail, subjectMeetingRescheduled, content)
}
