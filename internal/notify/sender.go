// Package notify delivers lead and viewing emails to agents and visitors. Sends
// run in the background and never fail a chat turn.
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/kiranshivaraju/propchat/internal/config"
	"github.com/kiranshivaraju/propchat/pkg/models"
)

// EmailSender delivers one email.
type EmailSender interface {
	Send(ctx context.Context, email models.Email) error
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender sends multipart text/HTML mail through an SMTP relay, retrying
// transient failures with exponential backoff.
type SMTPSender struct {
	cfg      config.SMTPConfig
	auth     smtp.Auth
	send     sendMailFunc
	executor failsafe.Executor[any]
}

// NewSMTPSender creates a sender for cfg. Authentication is used only when a
// username and password are both set.
func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	return newSMTPSender(cfg, smtp.SendMail, 500*time.Millisecond)
}

func newSMTPSender(cfg config.SMTPConfig, send sendMailFunc, backoff time.Duration) *SMTPSender {
	var auth smtp.Auth
	if cfg.Username != "" && cfg.Password != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}

	retry := retrypolicy.NewBuilder[any]().
		WithBackoff(backoff, 10*backoff).
		WithMaxRetries(2).
		WithJitterFactor(0.1).
		HandleIf(func(_ any, err error) bool {
			return err != nil && !isPermanent(err)
		}).
		Build()

	return &SMTPSender{
		cfg:      cfg,
		auth:     auth,
		send:     send,
		executor: failsafe.With[any](retry),
	}
}

// Send delivers email. 5xx SMTP replies are permanent and not retried.
func (s *SMTPSender) Send(ctx context.Context, email models.Email) error {
	to := sanitizeHeader(email.To)
	if to == "" {
		return fmt.Errorf("send email: empty recipient")
	}
	msg, err := buildMessage(s.cfg.From, email)
	if err != nil {
		return fmt.Errorf("build message: %w", err)
	}

	addr := s.cfg.Host + ":" + strconv.Itoa(s.cfg.Port)
	_, err = s.executor.WithContext(ctx).Get(func() (any, error) {
		return nil, s.send(addr, s.auth, s.cfg.From, []string{to}, msg)
	})
	if err != nil {
		return fmt.Errorf("send email to %s: %w", to, err)
	}
	return nil
}

// isPermanent reports whether the relay rejected the message outright.
func isPermanent(err error) bool {
	var tpErr *textproto.Error
	return errors.As(err, &tpErr) && tpErr.Code >= 500
}

func buildMessage(from string, email models.Email) ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	parts := []struct {
		contentType string
		content     string
	}{
		{"text/plain; charset=UTF-8", email.Text},
		{"text/html; charset=UTF-8", email.HTML},
	}
	for _, p := range parts {
		if p.content == "" {
			continue
		}
		w, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {p.contentType}})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write([]byte(p.content)); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	headers := []string{
		"From: " + sanitizeHeader(from),
		"To: " + sanitizeHeader(email.To),
		"Subject: " + sanitizeHeader(email.Subject),
		"MIME-Version: 1.0",
		"Content-Type: multipart/alternative; boundary=" + mw.Boundary(),
		"",
		"",
	}
	return append([]byte(strings.Join(headers, "\r\n")), body.Bytes()...), nil
}

func sanitizeHeader(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", "")
	return strings.TrimSpace(s)
}

// LogSender writes emails to the log instead of sending them. It stands in
// when no SMTP relay is configured.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, email models.Email) error {
	s.logger.Info("email not sent, smtp disabled",
		"to", email.To,
		"subject", email.Subject,
	)
	return nil
}
