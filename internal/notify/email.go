package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// Email sends plain-text alert mail over SMTP. Kept deliberately minimal;
// templating and HTML bodies belong to a dedicated mailer service.
type Email struct {
	Addr string // host:port of the SMTP server
	From string
	To   []string

	// sendMail is swapped out in tests.
	sendMail func(addr, from string, to []string, msg []byte) error
}

func NewEmail(addr, from string, to []string) *Email {
	if addr == "" || from == "" || len(to) == 0 {
		return nil
	}
	return &Email{
		Addr: addr,
		From: from,
		To:   to,
		sendMail: func(addr, from string, to []string, msg []byte) error {
			return smtp.SendMail(addr, nil, from, to, msg)
		},
	}
}

func (e *Email) Send(ctx context.Context, it Intent) error {
	if e == nil {
		return fmt.Errorf("email disabled")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", e.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(e.To, ", "))
	fmt.Fprintf(&b, "Subject: [%s] %s\r\n", strings.ToUpper(string(it.Alert.Severity)), it.Alert.Title)
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "Target: %s (%s)\r\n", it.Target.Name, it.Target.URL)
	fmt.Fprintf(&b, "%s\r\n", it.Alert.Message)
	fmt.Fprintf(&b, "First detected: %s\r\n", it.Alert.FirstDetectedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "Occurrences: %d\r\n", it.Alert.OccurrenceCount)

	return e.sendMail(e.Addr, e.From, e.To, []byte(b.String()))
}
