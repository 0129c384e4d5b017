package notify

import (
	"context"
	"errors"
	"fmt"
	"net/textproto"
	"regexp"
	"strings"
	"time"

	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/gitshield/internal/config"
	"github.com/maxbolgarin/gitshield/internal/model"
	"github.com/maxbolgarin/logze/v2"
	"github.com/wneessen/go-mail"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// EmailSink delivers alerts over SMTP. Transient transport errors are retried
// with exponential backoff; authentication failures are permanent and
// reported immediately.
type EmailSink struct {
	cfg config.EmailConfig
	log logze.Logger
}

// NewEmailSink creates the SMTP sink.
func NewEmailSink(cfg config.EmailConfig) *EmailSink {
	return &EmailSink{
		cfg: cfg,
		log: logze.With("module", "notify", "sink", "email"),
	}
}

func (s *EmailSink) Name() string { return "email" }

// Send validates the recipient list, drops syntactically invalid addresses,
// and delivers the alert to the remaining ones.
func (s *EmailSink) Send(ctx context.Context, alert model.AlertRecord) error {
	recipients := s.validRecipients()
	if len(recipients) == 0 {
		return errm.New("no valid email recipients configured")
	}

	msg := mail.NewMsg()
	if err := msg.From(s.cfg.From); err != nil {
		return errm.Wrap(err, "set sender")
	}
	if err := msg.To(recipients...); err != nil {
		return errm.Wrap(err, "set recipients")
	}
	msg.Subject(fmt.Sprintf("Security Alert: %s risk in %s", alert.Severity, alert.Repository))
	msg.SetBodyString(mail.TypeTextPlain, s.body(alert))

	client, err := s.newClient()
	if err != nil {
		return errm.Wrap(err, "create smtp client")
	}

	var lastErr error
	for attempt := 0; attempt < s.cfg.MaxRetries; attempt++ {
		lastErr = client.DialAndSendWithContext(ctx, msg)
		if lastErr == nil {
			s.log.Info("alert email sent", "recipients", len(recipients), "alert_id", alert.ID)
			return nil
		}
		if isAuthErr(lastErr) {
			// Bad credentials will not fix themselves between attempts.
			return errm.Wrap(lastErr, "smtp authentication failed")
		}
		if attempt == s.cfg.MaxRetries-1 {
			break
		}
		wait := s.cfg.RetryBase << attempt
		s.log.Warn("smtp send failed, retrying", "wait", wait.String(), "error", lastErr.Error())
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return errm.Wrap(ctx.Err(), "email send cancelled")
		}
	}
	return errm.Wrap(lastErr, "smtp send failed after retries")
}

func (s *EmailSink) newClient() (*mail.Client, error) {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTimeout(s.cfg.Timeout),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(s.cfg.From),
		mail.WithPassword(s.cfg.Password),
	}
	if s.cfg.UseTLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	return mail.NewClient(s.cfg.Host, opts...)
}

// validRecipients filters the configured recipient list against the address
// syntax pattern. Invalid entries are logged and dropped, not fatal.
func (s *EmailSink) validRecipients() []string {
	valid := make([]string, 0, len(s.cfg.Recipients))
	for _, addr := range s.cfg.Recipients {
		addr = strings.TrimSpace(addr)
		if emailPattern.MatchString(addr) {
			valid = append(valid, addr)
		} else {
			s.log.Warn("dropping invalid email recipient", "address", addr)
		}
	}
	return valid
}

func (s *EmailSink) body(alert model.AlertRecord) string {
	var b strings.Builder
	b.WriteString("Commit risk alert\n\n")
	b.WriteString(alert.Message)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Repository: %s\n", alert.Repository)
	fmt.Fprintf(&b, "Commit:     %s\n", alert.CommitID)
	fmt.Fprintf(&b, "Severity:   %s\n", alert.Severity)
	fmt.Fprintf(&b, "Raised at:  %s\n", alert.CreatedAt.Format(time.RFC3339))
	b.WriteString("\nThis is an automated message. Please investigate immediately.\n")
	return b.String()
}

// isAuthErr reports whether the SMTP failure is an authentication problem.
// The server answers those with a permanent 53x reply code.
func isAuthErr(err error) bool {
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		switch tpErr.Code {
		case 530, 534, 535:
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "authentication failed") ||
		strings.Contains(msg, "username and password not accepted")
}
