package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-mail/mail/v2"
)

const (
	sendAttempts = 3
	resetSubject = "Reset your password"
)

type sender interface {
	DialAndSend(m ...*mail.Message) error
}

type SMTPNotifier struct {
	sender sender
	from   string
	// backoff returns the pause before the next attempt.
	backoff func(attempt int) time.Duration
}

func NewSMTPNotifier(host string, port int, username, password, from string) *SMTPNotifier {
	dialer := mail.NewDialer(host, port, username, password)
	dialer.Timeout = 30 * time.Second

	switch port {
	case 587:
		dialer.StartTLSPolicy = mail.MandatoryStartTLS
	case 465:
		dialer.SSL = true
		dialer.StartTLSPolicy = mail.NoStartTLS
	default:
		dialer.StartTLSPolicy = mail.OpportunisticStartTLS
	}

	return &SMTPNotifier{
		sender:  dialer,
		from:    from,
		backoff: func(attempt int) time.Duration { return time.Duration(attempt) * time.Second },
	}
}

func (n *SMTPNotifier) message(to, link string) *mail.Message {
	msg := mail.NewMessage()
	msg.SetHeader("From", n.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", resetSubject)
	msg.SetBody("text/plain", fmt.Sprintf(
		"Someone asked to reset the password for this account.\n\n"+
			"Open the link below within one hour to choose a new password:\n%s\n\n"+
			"If you did not ask for this, ignore this message.", link))
	msg.AddAlternative("text/html", fmt.Sprintf(
		`<p>Someone asked to reset the password for this account.</p>`+
			`<p><a href="%s">Choose a new password</a> (valid for one hour).</p>`+
			`<p>If you did not ask for this, ignore this message.</p>`, link))
	return msg
}

// SendResetLink mails link to the recipient, retrying transient failures.
// It gives up early when ctx is done.
func (n *SMTPNotifier) SendResetLink(ctx context.Context, to string, link string) error {
	msg := n.message(to, link)

	var err error
	for attempt := 1; attempt <= sendAttempts; attempt++ {
		if err = n.sender.DialAndSend(msg); err == nil {
			return nil
		}
		if attempt == sendAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("send reset link: %w", ctx.Err())
		case <-time.After(n.backoff(attempt)):
		}
	}
	return fmt.Errorf("send reset link after %d attempts: %w", sendAttempts, err)
}
