package email

const (
	subjectTrialWelcome       = "Your trial account is ready"
	subjectMeetingReminder    = "Reminder: your activation call is tomorrow"
	subjectMeetingRescheduled = "Your activation call has a new time"
)
