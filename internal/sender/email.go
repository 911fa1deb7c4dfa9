package sender

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

const maxSendAttempts = 5

// EmailConfig holds the SMTP connection settings.
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// EmailSender delivers HTML mail over SMTP with exponential backoff.
type EmailSender struct {
	config EmailConfig
	log    *logrus.Logger

	// sendMail and newBackOff are swapped out in tests.
	sendMail   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	newBackOff func() backoff.BackOff
}

func NewEmailSender(config EmailConfig, log *logrus.Logger) *EmailSender {
	return &EmailSender{
		config:     config,
		log:        log,
		sendMail:   smtp.SendMail,
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
	}
}

func (s *EmailSender) Send(ctx context.Context, msg Message) error {
	if msg.User == nil || msg.User.Email == "" {
		s.log.Warn("Subscriber has no email address, dropping message")
		return nil
	}

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	var a smtp.Auth
	if s.config.Username != "" {
		a = smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	}
	raw := s.buildMessage(msg)

	operation := func() error {
		return s.sendMail(addr, a, s.config.From, []string{msg.User.Email}, raw)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(s.newBackOff(), maxSendAttempts-1),
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		s.log.WithError(err).WithField("recipient", msg.User.Email).Error("Email delivery failed")
		return fmt.Errorf("%w: %v", ErrSendMessage, err)
	}
	return nil
}

func (s *EmailSender) buildMessage(msg Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.config.From)
	fmt.Fprintf(&b, "To: %s\r\n", msg.User.Email)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	return []byte(b.String())
}
