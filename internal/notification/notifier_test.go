package notification

import (
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"DDoSDefender/internal/config"
)

func TestNewEmailNotifierValidates(t *testing.T) {
	if _, err := NewEmailNotifier(config.SMTPConfig{Host: "mail", From: "a@x"}); err == nil {
		t.Error("Expected an error without recipients")
	}
}

func TestSendBuildsHTMLMessage(t *testing.T) {
	n, err := NewEmailNotifier(config.SMTPConfig{
		Host: "mail.example.com", Port: 2525, From: "ddos@example.com", To: "ops@example.com, sec@example.com",
	})
	if err != nil {
		t.Fatal(err)
	}

	var gotAddr string
	var gotTo []string
	var gotMsg []byte
	n.(*EmailNotifier).sendMail = func(addr string, _ smtp.Auth, _ string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, msg
		return nil
	}

	if err := n.Send("Alert", "<h1>hi</h1>"); err != nil {
		t.Fatal(err)
	}
	if gotAddr != "mail.example.com:2525" {
		t.Errorf("Unexpected address %q", gotAddr)
	}
	if len(gotTo) != 2 || gotTo[1] != "sec@example.com" {
		t.Errorf("Unexpected recipients %v", gotTo)
	}
	msg := string(gotMsg)
	for _, want := range []string{"Subject: Alert\r\n", "Content-Type: text/html", "\r\n\r\n<h1>hi</h1>"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Message is missing %q:\n%s", want, msg)
		}
	}
}

func TestSendWrapsErrors(t *testing.T) {
	n, err := NewEmailNotifier(config.SMTPConfig{Host: "mail", From: "a@x", To: "b@x"})
	if err != nil {
		t.Fatal(err)
	}
	boom := errors.New("refused")
	n.(*EmailNotifier).sendMail = func(string, smtp.Auth, string, []string, []byte) error { return boom }
	if err := n.Send("s", "b"); !errors.Is(err, boom) {
		t.Errorf("Expected the send error to be wrapped, got %v", err)
	}
}
