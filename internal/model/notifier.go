package model

// Notifier sends a rendered notification to its configured recipients.
type Notifier interface {
	Send(subject, body string) error
}
