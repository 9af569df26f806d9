package notification

import (
	"fmt"
	"net/smtp"
	"strings"

	"DDoSDefender/internal/config"
	"DDoSDefender/internal/model"
)

// EmailNotifier implements the Notifier interface for sending emails.
type EmailNotifier struct {
	cfg      config.SMTPConfig
	auth     smtp.Auth
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailNotifier creates a new EmailNotifier.
func NewEmailNotifier(cfg config.SMTPConfig) (model.Notifier, error) {
	if cfg.Host == "" || cfg.From == "" || len(recipients(cfg.To)) == 0 {
		return nil, fmt.Errorf("smtp notifier needs host, from and to")
	}
	// PlainAuth will not send credentials until the server identifies itself as a trusted one.
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &EmailNotifier{cfg: cfg, auth: auth, sendMail: smtp.SendMail}, nil
}

// Send sends an email to the configured recipients.
func (n *EmailNotifier) Send(subject, body string) error {
	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)
	to := recipients(n.cfg.To)

	if err := n.sendMail(addr, n.auth, n.cfg.From, to, buildMessage(n.cfg.From, to, subject, body)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func buildMessage(from string, to []string, subject, body string) []byte {
	return []byte("To: " + strings.Join(to, ", ") + "\r\n" +
		"From: " + from + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/html; charset=UTF-8\r\n" +
		"\r\n" +
		body)
}

func recipients(list string) []string {
	var out []string
	for _, r := range strings.Split(list, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}
